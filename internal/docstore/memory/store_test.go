package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ST10104037/hippocampus-site/internal/docstore"
)

func fields(t *testing.T, v any) docstore.Fields {
	t.Helper()
	f, err := docstore.EncodeFields(v)
	require.NoError(t, err)
	return f
}

type recorder struct {
	snaps chan docstore.Snapshot
	errs  chan error
}

func subscribe(t *testing.T, s *Store, q docstore.Query) (*recorder, func()) {
	t.Helper()
	r := &recorder{snaps: make(chan docstore.Snapshot, 64), errs: make(chan error, 64)}
	unsub, err := s.Subscribe(q,
		func(snap docstore.Snapshot) { r.snaps <- snap },
		func(err error) { r.errs <- err })
	require.NoError(t, err)
	t.Cleanup(unsub)
	return r, unsub
}

func (r *recorder) next(t *testing.T) docstore.Snapshot {
	t.Helper()
	select {
	case snap := <-r.snaps:
		return snap
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
		return docstore.Snapshot{}
	}
}

func (r *recorder) quiet(t *testing.T) {
	t.Helper()
	select {
	case snap := <-r.snaps:
		t.Fatalf("unexpected snapshot %d", snap.Seq)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestStore_SetGetMerge(t *testing.T) {
	ctx := context.Background()
	s := New()
	path := docstore.RoleDocPath("app", "u1")

	doc, err := s.Get(ctx, path)
	require.NoError(t, err)
	assert.Nil(t, doc)

	require.NoError(t, s.Set(ctx, path, fields(t, map[string]string{"role": "student", "name": "Ann"}), false))
	require.NoError(t, s.Set(ctx, path, fields(t, map[string]string{"phone": "082"}), true))

	doc, err = s.Get(ctx, path)
	require.NoError(t, err)
	require.NotNil(t, doc)
	var got map[string]string
	require.NoError(t, doc.Data.Decode(&got))
	assert.Equal(t, map[string]string{"role": "student", "name": "Ann", "phone": "082"}, got)

	require.NoError(t, s.Set(ctx, path, fields(t, map[string]string{"role": "admin"}), false))
	doc, err = s.Get(ctx, path)
	require.NoError(t, err)
	got = nil
	require.NoError(t, doc.Data.Decode(&got))
	assert.Equal(t, map[string]string{"role": "admin"}, got)
}

func TestStore_UpdateMissing(t *testing.T) {
	s := New()
	err := s.Update(context.Background(), docstore.RoleDocPath("app", "nobody"), docstore.Fields{})
	assert.True(t, errors.Is(err, docstore.ErrNotFound))
}

func TestStore_UpdateIfRejectedLeavesDocument(t *testing.T) {
	ctx := context.Background()
	s := New()
	path := docstore.RoleDocPath("app", "u1")
	require.NoError(t, s.Set(ctx, path, fields(t, map[string]string{"status": "accepted"}), false))

	r, _ := subscribe(t, s, docstore.DocumentQuery(path))
	r.next(t)

	errTaken := errors.New("already decided")
	err := s.UpdateIf(ctx, path, func(doc *docstore.Document) error {
		var cur map[string]string
		require.NoError(t, doc.Data.Decode(&cur))
		if cur["status"] != "pending" {
			return errTaken
		}
		return nil
	}, fields(t, map[string]string{"status": "rejected"}))
	assert.ErrorIs(t, err, errTaken)
	r.quiet(t)

	doc, err := s.Get(ctx, path)
	require.NoError(t, err)
	var got map[string]string
	require.NoError(t, doc.Data.Decode(&got))
	assert.Equal(t, "accepted", got["status"])
}

func TestStore_DeleteAbsentIsNoop(t *testing.T) {
	s := New()
	assert.NoError(t, s.Delete(context.Background(), docstore.UserDocPath("app", "nobody")))
}

func TestStore_DocumentSubscription(t *testing.T) {
	ctx := context.Background()
	s := New()
	path := docstore.RoleDocPath("app", "u1")

	r, _ := subscribe(t, s, docstore.DocumentQuery(path))

	first := r.next(t)
	assert.False(t, first.Exists)

	require.NoError(t, s.Set(ctx, path, fields(t, map[string]string{"role": "student"}), false))
	snap := r.next(t)
	require.True(t, snap.Exists)
	require.Len(t, snap.Changes, 1)
	assert.Equal(t, docstore.ChangeAdded, snap.Changes[0].Kind)

	require.NoError(t, s.Delete(ctx, path))
	snap = r.next(t)
	assert.False(t, snap.Exists)
	require.Len(t, snap.Changes, 1)
	assert.Equal(t, docstore.ChangeRemoved, snap.Changes[0].Kind)
}

func TestStore_GroupQueryFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	s := New()

	q := docstore.GroupQuery(docstore.RoleCollection,
		docstore.Eq("role", "student"),
		docstore.Eq("lecturerUid", "L1"))
	r, _ := subscribe(t, s, q)
	assert.Empty(t, r.next(t).Docs)

	require.NoError(t, s.Set(ctx, docstore.RoleDocPath("app", "s2"),
		fields(t, map[string]string{"role": "student", "lecturerUid": "L1"}), false))
	require.NoError(t, s.Set(ctx, docstore.RoleDocPath("app", "s1"),
		fields(t, map[string]string{"role": "student", "lecturerUid": "L1"}), false))

	r.next(t)
	snap := r.next(t)
	require.Len(t, snap.Docs, 2)
	assert.Equal(t, "artifacts/app/users/s1/user_role/role", snap.Docs[0].Path.String())
	assert.Equal(t, "artifacts/app/users/s2/user_role/role", snap.Docs[1].Path.String())

	// other lecturer's student does not change the result
	require.NoError(t, s.Set(ctx, docstore.RoleDocPath("app", "s3"),
		fields(t, map[string]string{"role": "student", "lecturerUid": "L2"}), false))
	r.quiet(t)

	// reassigning away removes it
	require.NoError(t, s.Update(ctx, docstore.RoleDocPath("app", "s1"),
		fields(t, map[string]string{"lecturerUid": "L2"})))
	snap = r.next(t)
	require.Len(t, snap.Docs, 1)
	require.Len(t, snap.Changes, 1)
	assert.Equal(t, docstore.ChangeRemoved, snap.Changes[0].Kind)
}

func TestStore_SnapshotsDeliveredInOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	path := docstore.BookingsPath("app")
	r, _ := subscribe(t, s, docstore.CollectionQuery(path))
	r.next(t)

	for i := 0; i < 20; i++ {
		require.NoError(t, s.Set(ctx, path.Child(string(rune('a'+i))),
			fields(t, map[string]int{"n": i}), false))
	}

	var last uint64
	for i := 0; i < 20; i++ {
		snap := r.next(t)
		assert.Greater(t, snap.Seq, last)
		assert.Len(t, snap.Docs, i+1)
		last = snap.Seq
	}
}

func TestStore_UnsubscribeStopsDelivery(t *testing.T) {
	ctx := context.Background()
	s := New()
	path := docstore.BookingsPath("app")
	r, unsub := subscribe(t, s, docstore.CollectionQuery(path))
	r.next(t)

	unsub()
	unsub()

	require.NoError(t, s.Set(ctx, path.Child("b1"), fields(t, map[string]string{"status": "pending"}), false))
	r.quiet(t)
}

func TestStore_DeniedSubscriptionReportsError(t *testing.T) {
	s := New(WithRules(func(op docstore.Op, path docstore.Path) bool {
		return op == docstore.OpRead && path == docstore.Path(docstore.RoleCollection)
	}))

	r, _ := subscribe(t, s, docstore.GroupQuery(docstore.RoleCollection))

	select {
	case err := <-r.errs:
		assert.True(t, errors.Is(err, docstore.ErrPermissionDenied))
	case <-time.After(time.Second):
		t.Fatal("no error delivered")
	}

	require.NoError(t, s.Set(context.Background(), docstore.RoleDocPath("app", "u1"),
		fields(t, map[string]string{"role": "student"}), false))
	r.quiet(t)
}

func TestStore_DeniedWrite(t *testing.T) {
	s := New()
	s.SetRules(func(op docstore.Op, path docstore.Path) bool { return op == docstore.OpWrite })

	err := s.Set(context.Background(), docstore.UserDocPath("app", "u1"), docstore.Fields{}, false)
	var perr *docstore.PermissionError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, docstore.OpWrite, perr.Op)
}
