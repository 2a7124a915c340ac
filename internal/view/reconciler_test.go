package view

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ST10104037/hippocampus-site/internal/docstore"
	"github.com/ST10104037/hippocampus-site/internal/grading"
	"github.com/ST10104037/hippocampus-site/internal/model"
	"github.com/ST10104037/hippocampus-site/internal/subscription"
)

const testApp = "app"

type fakeLiveness struct {
	mu   sync.Mutex
	gens map[subscription.Purpose]uint64
}

func newLiveness() *fakeLiveness {
	return &fakeLiveness{gens: make(map[subscription.Purpose]uint64)}
}

func (f *fakeLiveness) set(p subscription.Purpose, gen uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gens[p] = gen
}

func (f *fakeLiveness) IsCurrent(p subscription.Purpose, gen uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gens[p] == gen && gen != 0
}

type recordingSink struct {
	mu      sync.Mutex
	updates []Update
}

func (s *recordingSink) Publish(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, u)
}

func (s *recordingSink) SessionChanged(SessionEvent) {}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

// blockingFetcher returns profiles once released
type blockingFetcher struct {
	release  chan struct{}
	profiles map[string]*model.UserProfile
}

func (f *blockingFetcher) Get(ctx context.Context, uid string) (*model.UserProfile, error) {
	if f.release != nil {
		<-f.release
	}
	return f.profiles[uid], nil
}

func profileDoc(t *testing.T, p map[string]any) docstore.Document {
	t.Helper()
	fields, err := docstore.EncodeFields(p)
	require.NoError(t, err)
	uid, _ := p["uid"].(string)
	return docstore.Document{Path: docstore.RoleDocPath(testApp, uid), Data: fields}
}

func bookingDoc(t *testing.T, id string, p map[string]any) docstore.Document {
	t.Helper()
	fields, err := docstore.EncodeFields(p)
	require.NoError(t, err)
	return docstore.Document{Path: docstore.BookingsPath(testApp).Child(id), Data: fields}
}

func snapshot(docs ...docstore.Document) docstore.Snapshot {
	return docstore.Snapshot{Docs: docs, Exists: len(docs) > 0}
}

func newReconciler(t *testing.T, fetcher ProfileFetcher) (*Reconciler, *fakeLiveness, *recordingSink) {
	t.Helper()
	live := newLiveness()
	sink := &recordingSink{}
	return NewReconciler(live, fetcher, sink, zap.NewNop()), live, sink
}

func TestAdminView_ExcludesViewerAndSortsBySurname(t *testing.T) {
	r, live, _ := newReconciler(t, nil)
	r.Reset("admin1")
	live.set(subscription.PurposeAdminRoster, 1)

	r.Begin(subscription.PurposeAdminRoster, 1)
	assert.Equal(t, StateLoading, r.Current(subscription.PurposeAdminRoster).State)

	r.Apply(subscription.PurposeAdminRoster, 1, snapshot(
		profileDoc(t, map[string]any{"uid": "admin1", "role": "admin", "surname": "Aaron"}),
		profileDoc(t, map[string]any{"uid": "u3", "role": "student", "surname": "smith"}),
		profileDoc(t, map[string]any{"uid": "u4", "role": "student", "surname": "Ölz"}),
		profileDoc(t, map[string]any{"uid": "u2", "role": "lecturer", "surname": "Brown"}),
		profileDoc(t, map[string]any{"uid": "u1", "role": "student", "surname": "Brown"}),
		profileDoc(t, map[string]any{"role": "student", "surname": "NoUID"}),
	))

	cur := r.Current(subscription.PurposeAdminRoster)
	require.Equal(t, StateReady, cur.State)
	users := cur.View.(AdminView).Users

	var uids []string
	for _, u := range users {
		uids = append(uids, u.UID)
	}
	assert.Equal(t, []string{"u1", "u2", "u4", "u3"}, uids)
}

func TestStudentView(t *testing.T) {
	r, live, _ := newReconciler(t, nil)
	r.Reset("s1")
	live.set(subscription.PurposeMyProfile, 5)

	r.Apply(subscription.PurposeMyProfile, 5, docstore.Snapshot{Exists: false})
	cur := r.Current(subscription.PurposeMyProfile)
	require.Equal(t, StateReady, cur.State)
	assert.True(t, cur.View.(StudentView).NoProfile)

	doc := profileDoc(t, map[string]any{"uid": "s1", "role": "student"})
	require.NoError(t, doc.Data.Set("markingScheme", model.Weights{{Name: "assignment1", Value: 0.4}, {Name: "exam", Value: 0.6}}))
	require.NoError(t, doc.Data.Set("marks", map[string]float64{"assignment1": 80, "exam": 70}))
	r.Apply(subscription.PurposeMyProfile, 5, snapshot(doc))

	sv := r.Current(subscription.PurposeMyProfile).View.(StudentView)
	assert.False(t, sv.NoProfile)
	assert.InDelta(t, 74.0, sv.Grades.FinalGrade, 1e-9)
	assert.Equal(t, "assignment1", sv.Grades.Rows[0].Assessment)
}

func TestReconciler_StaleSnapshotDropped(t *testing.T) {
	r, live, sink := newReconciler(t, nil)
	r.Reset("admin1")
	live.set(subscription.PurposeAdminRoster, 2)

	r.Apply(subscription.PurposeAdminRoster, 1, snapshot(
		profileDoc(t, map[string]any{"uid": "u1", "role": "student"}),
	))
	assert.Equal(t, 0, sink.count())
	assert.Equal(t, StateNoData, r.Current(subscription.PurposeAdminRoster).State)
}

func TestReconciler_ErrorIsDistinctState(t *testing.T) {
	r, live, _ := newReconciler(t, nil)
	r.Reset("admin1")
	live.set(subscription.PurposeAdminRoster, 3)

	denied := &docstore.PermissionError{Op: docstore.OpRead, Path: docstore.RoleCollection}
	r.Fail(subscription.PurposeAdminRoster, 3, denied)

	cur := r.Current(subscription.PurposeAdminRoster)
	assert.Equal(t, StateError, cur.State)
	assert.Nil(t, cur.View)
	assert.True(t, errors.Is(cur.Err, docstore.ErrPermissionDenied))

	// Begin for the same gen does not hide the error
	r.Begin(subscription.PurposeAdminRoster, 3)
	assert.Equal(t, StateError, r.Current(subscription.PurposeAdminRoster).State)
}

func TestReconciler_CloseState(t *testing.T) {
	r, live, _ := newReconciler(t, nil)
	r.Reset("s1")
	live.set(subscription.PurposeMyProfile, 1)
	r.Apply(subscription.PurposeMyProfile, 1, docstore.Snapshot{})

	r.CloseAll()
	cur := r.Current(subscription.PurposeMyProfile)
	assert.Equal(t, StateClosed, cur.State)
	assert.Nil(t, cur.View)
}

func TestLecturerView_BookingsAndDistributions(t *testing.T) {
	r, live, _ := newReconciler(t, &blockingFetcher{profiles: map[string]*model.UserProfile{}})
	r.Reset("L1")
	live.set(subscription.PurposeLecturerBookings, 10)
	live.set(subscription.PurposeLecturerRoster, 11)

	var students []docstore.Document
	for i, mark := range []float64{80, 60, 40, 0} {
		uid := string(rune('a' + i))
		doc := profileDoc(t, map[string]any{"uid": uid, "role": "student", "name": "N" + uid, "surname": "S" + uid, "lecturerUid": "L1"})
		require.NoError(t, doc.Data.Set("marks", map[string]float64{"exam": mark, "assignment1": 55}))
		students = append(students, doc)
	}
	r.Apply(subscription.PurposeLecturerRoster, 11, snapshot(students...))

	r.Apply(subscription.PurposeLecturerBookings, 10, snapshot(
		bookingDoc(t, "b2", map[string]any{"studentUid": "a", "lecturerUid": "unassigned", "moduleName": "M", "status": "pending", "createdAt": "2024-03-02T10:00:00Z"}),
		bookingDoc(t, "b1", map[string]any{"studentUid": "b", "lecturerUid": "L1", "moduleName": "M", "status": "accepted", "createdAt": "2024-03-01T10:00:00Z"}),
		bookingDoc(t, "b3", map[string]any{"studentUid": "c", "lecturerUid": "L2", "moduleName": "M", "status": "pending", "createdAt": "2024-03-01T09:00:00Z"}),
		bookingDoc(t, "b0", map[string]any{"studentUid": "c", "moduleName": "M", "status": "pending", "createdAt": "2024-03-02T10:00:00Z"}),
	))
	r.WaitFetches()

	lv := r.Current(subscription.PurposeLecturerBookings).View.(LecturerView)
	var ids []string
	for _, b := range lv.Bookings {
		ids = append(ids, b.ID)
	}
	assert.Equal(t, []string{"b1", "b0", "b2"}, ids)
	assert.Equal(t, "Na Sa", lv.StudentName("a"))

	assert.Equal(t, grading.Bands{grading.BandDistinction: 1, grading.BandPass: 1, grading.BandFail: 1, grading.BandNoMark: 1}, lv.DistributionExam)
	assert.Equal(t, 4, lv.DistributionAss1[grading.BandPass])

	// the roster slot carries the same combined view
	rv := r.Current(subscription.PurposeLecturerRoster).View.(LecturerView)
	assert.Len(t, rv.Bookings, 3)
}

func TestLecturerView_RosterReplacedWholesale(t *testing.T) {
	r, live, _ := newReconciler(t, nil)
	r.Reset("L1")
	live.set(subscription.PurposeLecturerRoster, 1)

	r.Apply(subscription.PurposeLecturerRoster, 1, snapshot(
		profileDoc(t, map[string]any{"uid": "a", "role": "student", "lecturerUid": "L1"}),
		profileDoc(t, map[string]any{"uid": "b", "role": "student", "lecturerUid": "L1"}),
	))
	r.Apply(subscription.PurposeLecturerRoster, 1, snapshot(
		profileDoc(t, map[string]any{"uid": "b", "role": "student", "lecturerUid": "L1"}),
	))

	lv := r.Current(subscription.PurposeLecturerRoster).View.(LecturerView)
	require.Len(t, lv.AssignedStudents, 1)
	assert.Equal(t, "b", lv.AssignedStudents[0].UID)
}

func TestLecturerView_SecondaryFetchApplied(t *testing.T) {
	fetcher := &blockingFetcher{profiles: map[string]*model.UserProfile{
		"x": {UID: "x", Name: "Xola", Surname: "Khumalo"},
	}}
	r, live, _ := newReconciler(t, fetcher)
	r.Reset("L1")
	live.set(subscription.PurposeLecturerBookings, 7)

	r.Apply(subscription.PurposeLecturerBookings, 7, snapshot(
		bookingDoc(t, "b1", map[string]any{"studentUid": "x", "lecturerUid": "L1", "moduleName": "M", "status": "pending", "createdAt": "2024-03-01T10:00:00Z"}),
	))
	r.WaitFetches()

	lv := r.Current(subscription.PurposeLecturerBookings).View.(LecturerView)
	assert.Equal(t, "Xola Khumalo", lv.StudentName("x"))
}

func TestLecturerView_LateFetchAfterCloseIgnored(t *testing.T) {
	fetcher := &blockingFetcher{
		release:  make(chan struct{}),
		profiles: map[string]*model.UserProfile{"x": {UID: "x", Name: "Xola"}},
	}
	r, live, sink := newReconciler(t, fetcher)
	r.Reset("L1")
	live.set(subscription.PurposeLecturerBookings, 7)

	r.Apply(subscription.PurposeLecturerBookings, 7, snapshot(
		bookingDoc(t, "b1", map[string]any{"studentUid": "x", "lecturerUid": "L1", "moduleName": "M", "status": "pending", "createdAt": "2024-03-01T10:00:00Z"}),
	))
	before := r.Current(subscription.PurposeLecturerBookings)
	assert.Equal(t, "x", before.View.(LecturerView).StudentName("x"))

	live.set(subscription.PurposeLecturerBookings, 0)
	r.Close(subscription.PurposeLecturerBookings)
	published := sink.count()

	close(fetcher.release)
	done := make(chan struct{})
	go func() {
		r.WaitFetches()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("fetch did not complete")
	}

	after := r.Current(subscription.PurposeLecturerBookings)
	assert.Equal(t, StateClosed, after.State)
	assert.Nil(t, after.View)
	assert.Equal(t, published, sink.count())
}
