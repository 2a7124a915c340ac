package subscription

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ST10104037/hippocampus-site/internal/docstore"
)

// Purpose names what a subscription is for. At most one handle per purpose
// is open at a time.
type Purpose string

const (
	PurposeAdminRoster      Purpose = "admin-roster"
	PurposeMyProfile        Purpose = "my-profile"
	PurposeLecturerBookings Purpose = "lecturer-bookings"
	PurposeLecturerRoster   Purpose = "lecturer-roster"
	// PurposeSessionProfile watches the signed-in user's own role document
	PurposeSessionProfile Purpose = "session-profile"
)

// Registry is the only place subscriptions are opened and closed.
type Registry struct {
	store  docstore.Store
	logger *zap.Logger

	mu      sync.Mutex
	handles map[Purpose]*Handle
}

func NewRegistry(store docstore.Store, logger *zap.Logger) *Registry {
	return &Registry{
		store:   store,
		logger:  logger.Named("subscriptions"),
		handles: make(map[Purpose]*Handle),
	}
}

// Activate closes the handle currently serving purpose, then opens a new one
// for q. It returns the generation of the new handle.
func (r *Registry) Activate(purpose Purpose, q docstore.Query, onSnapshot SnapshotFunc, onError ErrorFunc) (uint64, error) {
	r.close(purpose, r.take(purpose))

	counted := func(gen uint64, snap docstore.Snapshot) {
		snapshotsDelivered.WithLabelValues(string(purpose)).Inc()
		if onSnapshot != nil {
			onSnapshot(gen, snap)
		}
	}

	h, err := openPaused(r.store, q, counted, onError)
	if err != nil {
		r.logger.Error("Failed to open subscription",
			zap.String("purpose", string(purpose)),
			zap.Stringer("query", q),
			zap.Error(err))
		return 0, err
	}
	subscriptionOpens.WithLabelValues(string(purpose)).Inc()
	activeSubscriptions.WithLabelValues(string(purpose)).Inc()

	r.mu.Lock()
	// a concurrent Activate for the same purpose may have won the slot
	prev := r.handles[purpose]
	r.handles[purpose] = h
	r.mu.Unlock()
	close(h.started)
	r.close(purpose, prev)

	r.logger.Debug("Subscription activated",
		zap.String("purpose", string(purpose)),
		zap.Stringer("query", q),
		zap.Uint64("gen", h.Gen()))

	return h.Gen(), nil
}

// Deactivate closes the handle serving purpose, if any
func (r *Registry) Deactivate(purpose Purpose) {
	r.close(purpose, r.take(purpose))
}

// DeactivateAll closes every handle
func (r *Registry) DeactivateAll() {
	r.mu.Lock()
	handles := r.handles
	r.handles = make(map[Purpose]*Handle)
	r.mu.Unlock()

	for purpose, h := range handles {
		r.close(purpose, h)
	}
}

// Active lists the purposes with an open handle
func (r *Registry) Active() []Purpose {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Purpose, 0, len(r.handles))
	for p := range r.handles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsCurrent reports whether gen is the live handle of purpose
func (r *Registry) IsCurrent(purpose Purpose, gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.handles[purpose]
	return ok && h.Gen() == gen && h.Alive()
}

func (r *Registry) take(purpose Purpose) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := r.handles[purpose]
	delete(r.handles, purpose)
	return h
}

// close runs outside r.mu: Close waits for a delivery that may call IsCurrent
func (r *Registry) close(purpose Purpose, h *Handle) {
	if h == nil {
		return
	}
	h.Close()
	subscriptionCloses.WithLabelValues(string(purpose)).Inc()
	activeSubscriptions.WithLabelValues(string(purpose)).Dec()

	r.logger.Debug("Subscription closed",
		zap.String("purpose", string(purpose)),
		zap.Uint64("gen", h.Gen()))
}
