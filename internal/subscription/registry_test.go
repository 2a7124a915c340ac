package subscription

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ST10104037/hippocampus-site/internal/docstore"
	"github.com/ST10104037/hippocampus-site/internal/docstore/memory"
)

// countingStore counts unsubscribe calls per query
type countingStore struct {
	*memory.Store
	mu     sync.Mutex
	closes map[string]int
}

func newCountingStore() *countingStore {
	return &countingStore{Store: memory.New(), closes: make(map[string]int)}
}

func (s *countingStore) Subscribe(q docstore.Query, onNext func(docstore.Snapshot), onError func(error)) (func(), error) {
	cancel, err := s.Store.Subscribe(q, onNext, onError)
	if err != nil {
		return nil, err
	}
	return func() {
		s.mu.Lock()
		s.closes[q.String()]++
		s.mu.Unlock()
		cancel()
	}, nil
}

func (s *countingStore) closeCount(q docstore.Query) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes[q.String()]
}

func bookings() docstore.Query {
	return docstore.CollectionQuery(docstore.BookingsPath("app"))
}

func TestHandle_DeliversInitialSnapshotAndChanges(t *testing.T) {
	store := memory.New()
	snaps := make(chan docstore.Snapshot, 8)

	h, err := Open(store, bookings(), func(gen uint64, snap docstore.Snapshot) {
		snaps <- snap
	}, nil)
	require.NoError(t, err)
	defer h.Close()

	first := <-snaps
	assert.Empty(t, first.Docs)

	require.NoError(t, store.Set(context.Background(), docstore.BookingsPath("app").Child("b1"), docstore.Fields{}, false))
	select {
	case snap := <-snaps:
		assert.Len(t, snap.Docs, 1)
	case <-time.After(time.Second):
		t.Fatal("no snapshot after write")
	}
}

func TestHandle_MissingDocumentDeliversAbsence(t *testing.T) {
	store := memory.New()
	snaps := make(chan docstore.Snapshot, 1)

	h, err := Open(store, docstore.DocumentQuery(docstore.RoleDocPath("app", "u1")),
		func(gen uint64, snap docstore.Snapshot) { snaps <- snap }, nil)
	require.NoError(t, err)
	defer h.Close()

	snap := <-snaps
	assert.False(t, snap.Exists)
}

func TestHandle_CloseWaitsForDeliveryAndStopsCallbacks(t *testing.T) {
	store := memory.New()
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	var inFlight atomic.Bool

	h, err := Open(store, bookings(), func(gen uint64, snap docstore.Snapshot) {
		calls.Add(1)
		inFlight.Store(true)
		if calls.Load() == 1 {
			close(started)
			<-release
		}
		inFlight.Store(false)
	}, nil)
	require.NoError(t, err)

	<-started
	closed := make(chan struct{})
	go func() {
		h.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned during a delivery")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	<-closed
	assert.False(t, inFlight.Load())
	assert.False(t, h.Alive())

	require.NoError(t, store.Set(context.Background(), docstore.BookingsPath("app").Child("b1"), docstore.Fields{}, false))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	h.Close()
}

func TestHandle_GenerationsAreUnique(t *testing.T) {
	store := memory.New()
	a, err := Open(store, bookings(), nil, nil)
	require.NoError(t, err)
	defer a.Close()
	b, err := Open(store, bookings(), nil, nil)
	require.NoError(t, err)
	defer b.Close()

	assert.NotEqual(t, a.Gen(), b.Gen())
}

func TestRegistry_ActivateTwiceClosesFirstOnce(t *testing.T) {
	store := newCountingStore()
	reg := NewRegistry(store, zap.NewNop())
	q := bookings()

	first, err := reg.Activate(PurposeLecturerBookings, q, nil, nil)
	require.NoError(t, err)
	second, err := reg.Activate(PurposeLecturerBookings, q, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, store.closeCount(q))
	assert.Equal(t, []Purpose{PurposeLecturerBookings}, reg.Active())
	assert.False(t, reg.IsCurrent(PurposeLecturerBookings, first))
	assert.True(t, reg.IsCurrent(PurposeLecturerBookings, second))

	reg.DeactivateAll()
	assert.Equal(t, 2, store.closeCount(q))
	assert.Empty(t, reg.Active())
}

func TestRegistry_DeactivateAll(t *testing.T) {
	store := newCountingStore()
	reg := NewRegistry(store, zap.NewNop())

	_, err := reg.Activate(PurposeLecturerBookings, bookings(), nil, nil)
	require.NoError(t, err)
	gen, err := reg.Activate(PurposeLecturerRoster, docstore.GroupQuery(docstore.RoleCollection), nil, nil)
	require.NoError(t, err)
	assert.Len(t, reg.Active(), 2)

	reg.Deactivate(PurposeLecturerRoster)
	assert.False(t, reg.IsCurrent(PurposeLecturerRoster, gen))
	reg.Deactivate(PurposeLecturerRoster)

	reg.DeactivateAll()
	assert.Empty(t, reg.Active())
}

func TestRegistry_StaleDeliveriesAreDetectable(t *testing.T) {
	store := memory.New()
	reg := NewRegistry(store, zap.NewNop())

	var mu sync.Mutex
	var current []bool
	onSnapshot := func(gen uint64, snap docstore.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		current = append(current, reg.IsCurrent(PurposeAdminRoster, gen))
	}

	_, err := reg.Activate(PurposeAdminRoster, docstore.GroupQuery(docstore.RoleCollection), onSnapshot, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(current) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.True(t, current[0])
	mu.Unlock()
	reg.DeactivateAll()
}
