package view

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/ST10104037/hippocampus-site/internal/docstore"
	"github.com/ST10104037/hippocampus-site/internal/grading"
	"github.com/ST10104037/hippocampus-site/internal/model"
	"github.com/ST10104037/hippocampus-site/internal/subscription"
)

const fetchTimeout = 10 * time.Second

// Liveness tells whether a subscription generation still serves its purpose
type Liveness interface {
	IsCurrent(purpose subscription.Purpose, gen uint64) bool
}

// ProfileFetcher resolves a profile by uid, nil when absent
type ProfileFetcher interface {
	Get(ctx context.Context, uid string) (*model.UserProfile, error)
}

type slot struct {
	state State
	gen   uint64
	view  View
	err   error
}

// lecturerData is the raw input of the lecturer view; two purposes feed it
type lecturerData struct {
	bookings []*model.Booking
	students []*model.UserProfile
	fetched  map[string]string
	fetching map[string]uint64
}

// Reconciler keeps one state machine per purpose and republishes the view of
// a purpose after every snapshot. Every completion carries the generation of
// the subscription that produced it and is dropped when that generation is
// no longer current.
type Reconciler struct {
	live     Liveness
	profiles ProfileFetcher
	sink     Sink
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	collator *collate.Collator
	viewer   string
	slots    map[subscription.Purpose]*slot
	lecturer lecturerData
	fetches  sync.WaitGroup
}

func NewReconciler(live Liveness, profiles ProfileFetcher, sink Sink, logger *zap.Logger) *Reconciler {
	r := &Reconciler{
		live:     live,
		profiles: profiles,
		sink:     sink,
		logger:   logger.Named("reconciler"),
		now:      time.Now,
		collator: collate.New(language.English),
		slots:    make(map[subscription.Purpose]*slot),
	}
	r.lecturer = newLecturerData()
	return r
}

func newLecturerData() lecturerData {
	return lecturerData{
		fetched:  make(map[string]string),
		fetching: make(map[string]uint64),
	}
}

// Reset forgets all views and sets the uid of the signed-in user
func (r *Reconciler) Reset(viewerUID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.viewer = viewerUID
	r.slots = make(map[subscription.Purpose]*slot)
	r.lecturer = newLecturerData()
}

// Begin marks purpose as loading for the subscription gen
func (r *Reconciler) Begin(purpose subscription.Purpose, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.slot(purpose)
	if s.gen == gen && (s.state == StateReady || s.state == StateError) {
		// the first snapshot already arrived
		return
	}
	s.gen = gen
	s.state = StateLoading
	s.view = nil
	s.err = nil
	r.publishLocked(purpose, s)
}

// Apply recomputes the view of purpose from a snapshot
func (r *Reconciler) Apply(purpose subscription.Purpose, gen uint64, snap docstore.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.live.IsCurrent(purpose, gen) {
		staleCompletions.WithLabelValues(string(purpose), "snapshot").Inc()
		r.logger.Debug("Dropped stale snapshot",
			zap.String("purpose", string(purpose)),
			zap.Uint64("gen", gen))
		return
	}

	s := r.slot(purpose)
	s.gen = gen

	view, err := r.buildLocked(purpose, gen, snap)
	if err != nil {
		s.state = StateError
		s.view = nil
		s.err = err
	} else {
		s.state = StateReady
		s.view = view
		s.err = nil
	}
	r.publishLocked(purpose, s)

	if purpose == subscription.PurposeLecturerBookings || purpose == subscription.PurposeLecturerRoster {
		r.republishLecturerLocked(purpose)
	}
}

// Fail moves purpose to the error state
func (r *Reconciler) Fail(purpose subscription.Purpose, gen uint64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.live.IsCurrent(purpose, gen) {
		staleCompletions.WithLabelValues(string(purpose), "error").Inc()
		return
	}

	r.logger.Warn("Subscription error",
		zap.String("purpose", string(purpose)),
		zap.Uint64("gen", gen),
		zap.Error(err))

	s := r.slot(purpose)
	s.gen = gen
	s.state = StateError
	s.view = nil
	s.err = err
	r.publishLocked(purpose, s)
}

// FailOpen records that the subscription for purpose could not be opened
func (r *Reconciler) FailOpen(purpose subscription.Purpose, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.slot(purpose)
	s.gen = 0
	s.state = StateError
	s.view = nil
	s.err = err
	r.publishLocked(purpose, s)
}

// Close moves purpose to the closed state and drops its data
func (r *Reconciler) Close(purpose subscription.Purpose) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.slot(purpose)
	if s.state == StateClosed {
		return
	}
	s.gen = 0
	s.state = StateClosed
	s.view = nil
	s.err = nil

	switch purpose {
	case subscription.PurposeLecturerBookings:
		r.lecturer.bookings = nil
		r.lecturer.fetching = make(map[string]uint64)
	case subscription.PurposeLecturerRoster:
		r.lecturer.students = nil
	}
	r.publishLocked(purpose, s)
}

// CloseAll closes every known purpose
func (r *Reconciler) CloseAll() {
	r.mu.Lock()
	purposes := make([]subscription.Purpose, 0, len(r.slots))
	for p := range r.slots {
		purposes = append(purposes, p)
	}
	r.mu.Unlock()

	for _, p := range purposes {
		r.Close(p)
	}
}

// Current returns the latest update of purpose
func (r *Reconciler) Current(purpose subscription.Purpose) Update {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[purpose]
	if !ok {
		return Update{Purpose: purpose, State: StateNoData}
	}
	return r.updateLocked(purpose, s)
}

// WaitFetches blocks until in-flight secondary fetches completed
func (r *Reconciler) WaitFetches() {
	r.fetches.Wait()
}

func (r *Reconciler) slot(purpose subscription.Purpose) *slot {
	s, ok := r.slots[purpose]
	if !ok {
		s = &slot{state: StateNoData}
		r.slots[purpose] = s
	}
	return s
}

func (r *Reconciler) updateLocked(purpose subscription.Purpose, s *slot) Update {
	return Update{
		Purpose: purpose,
		State:   s.state,
		View:    s.view,
		Err:     s.err,
		Gen:     s.gen,
		At:      r.now(),
	}
}

func (r *Reconciler) publishLocked(purpose subscription.Purpose, s *slot) {
	viewTransitions.WithLabelValues(string(purpose), s.state.String()).Inc()
	r.sink.Publish(r.updateLocked(purpose, s))
}

func (r *Reconciler) buildLocked(purpose subscription.Purpose, gen uint64, snap docstore.Snapshot) (View, error) {
	switch purpose {
	case subscription.PurposeAdminRoster:
		users := r.decodeProfilesLocked(purpose, snap.Docs)
		users = excludeUID(users, r.viewer)
		r.sortProfilesLocked(users)
		return AdminView{Users: users}, nil

	case subscription.PurposeMyProfile:
		return r.buildStudentView(snap)

	case subscription.PurposeLecturerBookings:
		r.lecturer.bookings = r.decodeBookingsLocked(purpose, snap.Docs)
		r.fetchMissingNamesLocked(gen)
		return r.lecturerViewLocked(), nil

	case subscription.PurposeLecturerRoster:
		students := r.decodeProfilesLocked(purpose, snap.Docs)
		r.sortProfilesLocked(students)
		r.lecturer.students = students
		if b, ok := r.slots[subscription.PurposeLecturerBookings]; ok {
			r.fetchMissingNamesLocked(b.gen)
		}
		return r.lecturerViewLocked(), nil

	default:
		return nil, nil
	}
}

func (r *Reconciler) buildStudentView(snap docstore.Snapshot) (View, error) {
	doc, ok := snap.Doc()
	if !ok {
		return StudentView{NoProfile: true}, nil
	}

	profile, err := model.DecodeProfile(doc.Data.Bytes())
	if err != nil {
		return nil, err
	}

	return StudentView{
		Profile: profile,
		Grades:  grading.Aggregate(profile.MarkingScheme, profile.Marks),
	}, nil
}

// republishLecturerLocked refreshes the lecturer view held by the other
// lecturer purpose so both slots show the same combined view
func (r *Reconciler) republishLecturerLocked(changed subscription.Purpose) {
	other := subscription.PurposeLecturerRoster
	if changed == subscription.PurposeLecturerRoster {
		other = subscription.PurposeLecturerBookings
	}

	s, ok := r.slots[other]
	if !ok || s.state != StateReady {
		return
	}
	s.view = r.lecturerViewLocked()
	r.publishLocked(other, s)
}

func (r *Reconciler) lecturerViewLocked() LecturerView {
	names := make(map[string]string, len(r.lecturer.students)+len(r.lecturer.fetched))
	for uid, name := range r.lecturer.fetched {
		names[uid] = name
	}
	for _, s := range r.lecturer.students {
		names[s.UID] = s.FullName()
	}

	return LecturerView{
		Bookings:         append([]*model.Booking(nil), r.lecturer.bookings...),
		AssignedStudents: append([]*model.UserProfile(nil), r.lecturer.students...),
		DistributionAss1: grading.Distribution(r.lecturer.students, grading.AssessmentAssignment1),
		DistributionExam: grading.Distribution(r.lecturer.students, grading.AssessmentExam),
		StudentNames:     names,
	}
}

// fetchMissingNamesLocked resolves the names of booking students that are
// not in the assigned roster. Results are applied only while the bookings
// subscription gen is still current.
func (r *Reconciler) fetchMissingNamesLocked(gen uint64) {
	if gen == 0 || r.profiles == nil {
		return
	}

	known := make(map[string]struct{}, len(r.lecturer.students))
	for _, s := range r.lecturer.students {
		known[s.UID] = struct{}{}
	}

	for _, b := range r.lecturer.bookings {
		uid := b.StudentUID
		if _, ok := known[uid]; ok {
			continue
		}
		if _, ok := r.lecturer.fetched[uid]; ok {
			continue
		}
		if g, ok := r.lecturer.fetching[uid]; ok && g == gen {
			continue
		}

		r.lecturer.fetching[uid] = gen
		r.fetches.Add(1)
		go r.fetchName(gen, uid)
	}
}

func (r *Reconciler) fetchName(gen uint64, uid string) {
	defer r.fetches.Done()

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	profile, err := r.profiles.Get(ctx, uid)

	r.mu.Lock()
	defer r.mu.Unlock()

	purpose := subscription.PurposeLecturerBookings
	if !r.live.IsCurrent(purpose, gen) || r.lecturer.fetching[uid] != gen {
		staleCompletions.WithLabelValues(string(purpose), "fetch").Inc()
		r.logger.Debug("Dropped stale profile fetch",
			zap.String("uid", uid),
			zap.Uint64("gen", gen))
		return
	}
	delete(r.lecturer.fetching, uid)

	if err != nil {
		r.logger.Warn("Failed to fetch booking student",
			zap.String("uid", uid),
			zap.Error(err))
		return
	}

	name := uid
	if profile != nil && profile.FullName() != "" {
		name = profile.FullName()
	}
	r.lecturer.fetched[uid] = name

	s := r.slot(purpose)
	if s.state != StateReady {
		return
	}
	s.view = r.lecturerViewLocked()
	r.publishLocked(purpose, s)
	r.republishLecturerLocked(purpose)
}

func (r *Reconciler) decodeProfilesLocked(purpose subscription.Purpose, docs []docstore.Document) []*model.UserProfile {
	out := make([]*model.UserProfile, 0, len(docs))
	for _, doc := range docs {
		p, err := model.DecodeProfile(doc.Data.Bytes())
		if err != nil {
			malformedDocuments.WithLabelValues(string(purpose)).Inc()
			r.logger.Warn("Skipped malformed role document",
				zap.String("path", doc.Path.String()),
				zap.Error(err))
			continue
		}
		out = append(out, p)
	}
	return out
}

func (r *Reconciler) decodeBookingsLocked(purpose subscription.Purpose, docs []docstore.Document) []*model.Booking {
	out := make([]*model.Booking, 0, len(docs))
	for _, doc := range docs {
		b, err := model.DecodeBooking(doc.ID(), doc.Data.Bytes())
		if err != nil {
			malformedDocuments.WithLabelValues(string(purpose)).Inc()
			r.logger.Warn("Skipped malformed booking",
				zap.String("path", doc.Path.String()),
				zap.Error(err))
			continue
		}
		if b.IsFor(r.viewer) {
			out = append(out, b)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// sortProfilesLocked orders by surname using English collation, then uid
func (r *Reconciler) sortProfilesLocked(users []*model.UserProfile) {
	sort.SliceStable(users, func(i, j int) bool {
		if c := r.collator.CompareString(users[i].Surname, users[j].Surname); c != 0 {
			return c < 0
		}
		return users[i].UID < users[j].UID
	})
}

func excludeUID(users []*model.UserProfile, uid string) []*model.UserProfile {
	out := users[:0]
	for _, u := range users {
		if u.UID != uid {
			out = append(out, u)
		}
	}
	return out
}
