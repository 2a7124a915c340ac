package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ST10104037/hippocampus-site/internal/docstore"
	"github.com/ST10104037/hippocampus-site/internal/identity"
	"github.com/ST10104037/hippocampus-site/internal/model"
	"github.com/ST10104037/hippocampus-site/internal/subscription"
	"github.com/ST10104037/hippocampus-site/internal/view"
)

const profileFetchTimeout = 10 * time.Second

// Profiles is what the controller needs from the profile store
type Profiles interface {
	Get(ctx context.Context, uid string) (*model.UserProfile, error)
	RoleQuery() docstore.Query
	StudentsOfQuery(lecturerUID string) docstore.Query
	DocumentQuery(uid string) docstore.Query
}

type Bookings interface {
	CollectionQuery() docstore.Query
}

// rolePurposes are the purposes a role switch replaces
var rolePurposes = []subscription.Purpose{
	subscription.PurposeAdminRoster,
	subscription.PurposeMyProfile,
	subscription.PurposeLecturerBookings,
	subscription.PurposeLecturerRoster,
}

// Controller owns the session state machine
// LoggedOut -> Authenticating -> LoggedIn -> LoggedOut.
type Controller struct {
	provider   identity.Provider
	registry   *subscription.Registry
	reconciler *view.Reconciler
	profiles   Profiles
	bookings   Bookings
	sink       view.Sink
	policy     RolePolicy
	logger     *zap.Logger
	now        func() time.Time

	// switchMu serialises subscription changes; mu guards the fields below
	switchMu sync.Mutex
	mu       sync.Mutex
	state    State
	current  *Context
	// epoch grows with every auth event; completions of older epochs are dropped
	epoch      uint64
	cancelAuth func()
	// inflight counts sign-in completions and resubscribes; idle is signalled
	// when it drops to zero
	inflight int
	idle     *sync.Cond
	stopped  bool
}

func NewController(
	provider identity.Provider,
	registry *subscription.Registry,
	reconciler *view.Reconciler,
	profiles Profiles,
	bookings Bookings,
	sink view.Sink,
	policy RolePolicy,
	logger *zap.Logger,
) *Controller {
	c := &Controller{
		provider:   provider,
		registry:   registry,
		reconciler: reconciler,
		profiles:   profiles,
		bookings:   bookings,
		sink:       sink,
		policy:     policy,
		logger:     logger.Named("session"),
		now:        time.Now,
	}
	c.idle = sync.NewCond(&c.mu)
	return c
}

// Start listens to auth state changes
func (c *Controller) Start() {
	cancel := c.provider.OnAuthStateChange(c.handleAuth)

	c.mu.Lock()
	c.cancelAuth = cancel
	c.stopped = false
	c.mu.Unlock()
}

// Stop stops listening and tears the session down
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel := c.cancelAuth
	c.cancelAuth = nil
	c.stopped = true
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.logout()
	c.Wait()
}

// SignIn signs in through the provider; the session follows from the auth event
func (c *Controller) SignIn(ctx context.Context, email, password string) error {
	_, err := c.provider.SignInWithPassword(ctx, email, password)
	return err
}

func (c *Controller) SignOut(ctx context.Context) error {
	return c.provider.SignOut(ctx)
}

// Session returns a copy of the current session, nil when signed out
func (c *Controller) Session() *Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.clone()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Wait blocks until in-flight sign-in completions and role resubscribes
// finished. It may be called while new ones are being started.
func (c *Controller) Wait() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.inflight > 0 {
		c.idle.Wait()
	}
}

// goLocked runs fn on its own goroutine and counts it as in flight. Nothing
// runs once the controller is stopped. c.mu must be held.
func (c *Controller) goLocked(fn func()) {
	if c.stopped {
		return
	}
	c.inflight++
	go func() {
		defer c.done()
		fn()
	}()
}

func (c *Controller) done() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--
	if c.inflight == 0 {
		c.idle.Broadcast()
	}
}

func (c *Controller) handleAuth(id *identity.Identity) {
	if id == nil {
		c.logout()
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.epoch++
	epoch := c.epoch
	c.state = StateAuthenticating

	c.logger.Info("🔐 Authenticating", zap.String("uid", id.UID))

	ident := *id
	c.goLocked(func() { c.completeLogin(epoch, ident) })
}

func (c *Controller) completeLogin(epoch uint64, id identity.Identity) {
	profile, synthesized := c.loadProfile(id)

	c.switchMu.Lock()
	defer c.switchMu.Unlock()

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		c.logger.Debug("Dropped stale login", zap.String("uid", id.UID))
		return
	}
	sess := &Context{
		Identity:    id,
		Profile:     profile,
		Role:        profile.Role,
		Synthesized: synthesized,
		LoginAt:     c.now(),
	}
	c.current = sess
	c.state = StateLoggedIn
	// the live profile watch replaces c.current, so work from a private copy
	sess = sess.clone()
	ev := sessionEvent(sess)
	c.mu.Unlock()

	c.logger.Info("✅ Logged in",
		zap.String("uid", id.UID),
		zap.String("role", string(sess.Role)),
		zap.Bool("synthesized", synthesized))

	c.registry.DeactivateAll()
	c.reconciler.Reset(id.UID)
	c.activateRole(sess)
	if c.policy == RoleLive {
		c.watchOwnProfile(sess.UID(), epoch)
	}
	c.sink.SessionChanged(ev)
}

// loadProfile fetches the role document, falling back to a default student
// profile when it is missing or unreadable
func (c *Controller) loadProfile(id identity.Identity) (*model.UserProfile, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), profileFetchTimeout)
	defer cancel()

	profile, err := c.profiles.Get(ctx, id.UID)
	if err != nil {
		c.logger.Warn("Failed to fetch profile, using default",
			zap.String("uid", id.UID),
			zap.Error(err))
		return model.DefaultProfile(id.UID, id.Email), true
	}
	if profile == nil {
		c.logger.Info("No profile document, using default", zap.String("uid", id.UID))
		return model.DefaultProfile(id.UID, id.Email), true
	}
	return profile, false
}

func (c *Controller) logout() {
	c.mu.Lock()
	c.epoch++
	wasIn := c.current != nil
	c.current = nil
	c.state = StateLoggedOut
	c.mu.Unlock()

	c.switchMu.Lock()
	defer c.switchMu.Unlock()

	c.registry.DeactivateAll()
	c.reconciler.CloseAll()
	if wasIn {
		c.logger.Info("👋 Logged out")
	}
	c.sink.SessionChanged(view.SessionEvent{SignedIn: false})
}

// activateRole opens the subscriptions of the session's role
func (c *Controller) activateRole(sess *Context) {
	uid := sess.UID()

	switch sess.Role {
	case model.RoleAdmin:
		c.activate(subscription.PurposeAdminRoster, c.profiles.RoleQuery())
	case model.RoleLecturer:
		c.activate(subscription.PurposeLecturerBookings, c.bookings.CollectionQuery())
		c.activate(subscription.PurposeLecturerRoster, c.profiles.StudentsOfQuery(uid))
	default:
		c.activate(subscription.PurposeMyProfile, c.profiles.DocumentQuery(uid))
	}
}

func (c *Controller) activate(purpose subscription.Purpose, q docstore.Query) {
	gen, err := c.registry.Activate(purpose, q,
		func(gen uint64, snap docstore.Snapshot) { c.reconciler.Apply(purpose, gen, snap) },
		func(gen uint64, err error) { c.reconciler.Fail(purpose, gen, err) },
	)
	if err != nil {
		c.reconciler.FailOpen(purpose, err)
		return
	}
	c.reconciler.Begin(purpose, gen)
}

// watchOwnProfile follows the user's role document under the live policy
func (c *Controller) watchOwnProfile(uid string, epoch uint64) {
	_, err := c.registry.Activate(subscription.PurposeSessionProfile,
		c.profiles.DocumentQuery(uid),
		func(gen uint64, snap docstore.Snapshot) { c.onOwnProfile(epoch, snap) },
		func(gen uint64, err error) {
			c.logger.Warn("Own profile subscription error", zap.Error(err))
		},
	)
	if err != nil {
		c.logger.Error("Failed to watch own profile", zap.Error(err))
	}
}

func (c *Controller) onOwnProfile(epoch uint64, snap docstore.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch || c.current == nil {
		return
	}

	profile := model.DefaultProfile(c.current.UID(), c.current.Identity.Email)
	synthesized := true
	if doc, ok := snap.Doc(); ok {
		p, err := model.DecodeProfile(doc.Data.Bytes())
		if err != nil {
			c.logger.Warn("Own profile is malformed", zap.Error(err))
			return
		}
		profile, synthesized = p, false
	}

	next := c.current.clone()
	roleChanged := profile.Role != next.Role
	next.Profile = profile
	next.Synthesized = synthesized
	next.Role = profile.Role
	c.current = next

	if roleChanged {
		c.logger.Info("🔄 Role changed",
			zap.String("uid", next.UID()),
			zap.String("role", string(profile.Role)))
		// re-subscribing from here would close this handle inside its own callback
		c.goLocked(func() { c.resubscribe(epoch) })
	}
}

func (c *Controller) resubscribe(epoch uint64) {
	c.switchMu.Lock()
	defer c.switchMu.Unlock()

	c.mu.Lock()
	if c.epoch != epoch || c.current == nil {
		c.mu.Unlock()
		return
	}
	sess := c.current.clone()
	ev := sessionEvent(sess)
	c.mu.Unlock()

	for _, p := range rolePurposes {
		c.registry.Deactivate(p)
		c.reconciler.Close(p)
	}
	c.reconciler.Reset(sess.UID())
	c.activateRole(sess)
	c.sink.SessionChanged(ev)
}

func sessionEvent(sess *Context) view.SessionEvent {
	ev := view.SessionEvent{
		UID:         sess.UID(),
		Email:       sess.Identity.Email,
		Role:        sess.Role,
		Synthesized: sess.Synthesized,
		SignedIn:    true,
	}
	if sess.Profile != nil {
		ev.Name = sess.Profile.FullName()
	}
	return ev
}
