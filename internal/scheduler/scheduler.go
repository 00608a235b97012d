// Package scheduler runs one polling loop per watched course.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/badgerwatch/internal/enrollment"
	"github.com/example/badgerwatch/internal/events"
	"go.uber.org/zap"
)

var (
	ErrNotStarted    = errors.New("scheduler not started")
	ErrInvalidCourse = errors.New("course needs an id, term and subject")
	ErrRemoved       = errors.New("course was removed while it was being added")
)

const fetchTimeout = 15 * time.Second

type Fetcher interface {
	FetchDetails(ctx context.Context, termCode, subjectCode, courseID string) (enrollment.Snapshot, error)
}

type Store interface {
	Watched(ctx context.Context) (map[string]enrollment.WatchedCourse, error)
	PutWatched(ctx context.Context, courseID string, c enrollment.WatchedCourse) error
	RemoveWatched(ctx context.Context, courseID string) error
}

type Notifier interface {
	Dispatch(c enrollment.WatchedCourse, ch enrollment.Change)
	Announce(c enrollment.WatchedCourse)
}

type Publisher interface {
	Publish(e events.Event)
}

type Options struct {
	Interval     time.Duration
	StartupDelay time.Duration
	// StaleAfter consecutive failures publish one course-stale event.
	// Zero disables it.
	StaleAfter int
}

// View is what the UI sees of a watched course.
type View struct {
	CourseID     string              `json:"courseId"`
	TermCode     string              `json:"termCode"`
	SubjectCode  string              `json:"subjectCode"`
	Designation  string              `json:"courseDesignation"`
	Title        string              `json:"title"`
	Sections     enrollment.Snapshot `json:"sections"`
	OpenSeats    int                 `json:"availableSeats"`
	Failures     int                 `json:"consecutiveFailures"`
	Stale        bool                `json:"stale"`
	AddedAt      time.Time           `json:"addedAt"`
	LastPolledAt time.Time           `json:"lastPolledAt"`
}

type AddResult struct {
	Course         View `json:"course"`
	AlreadyWatched bool `json:"alreadyWatched"`
}

// Update is the payload of a course-update event.
type Update struct {
	Statuses       []enrollment.Status `json:"status"`
	AvailableSeats int                 `json:"availableSeats"`
}

type watch struct {
	// tick holds for the whole fetch, diff and persist of one tick.
	tick sync.Mutex

	mu        sync.Mutex
	course    enrollment.WatchedCourse
	failures  int
	staleSent bool
	removed   bool
	cancel    context.CancelFunc
}

func (w *watch) view() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	c := w.course
	return View{
		CourseID:     c.CourseID,
		TermCode:     c.TermCode,
		SubjectCode:  c.SubjectCode,
		Designation:  c.Designation,
		Title:        c.Title,
		Sections:     c.Snapshot.Clone(),
		OpenSeats:    c.Snapshot.OpenSeats(),
		Failures:     w.failures,
		Stale:        w.staleSent,
		AddedAt:      c.AddedAt,
		LastPolledAt: c.LastPolledAt,
	}
}

// pendingAdd marks an Add between its first fetch and registration.
type pendingAdd struct{ cancelled bool }

type Scheduler struct {
	fetch  Fetcher
	store  Store
	notify Notifier
	events Publisher
	logger *zap.Logger
	opts   Options
	now    func() time.Time

	mu      sync.Mutex
	started bool
	base    context.Context
	stop    context.CancelFunc
	watches map[string]*watch
	pending map[string]*pendingAdd
	wg      sync.WaitGroup
}

func New(f Fetcher, st Store, n Notifier, pub Publisher, opts Options, logger *zap.Logger) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	return &Scheduler{
		fetch:   f,
		store:   st,
		notify:  n,
		events:  pub,
		logger:  logger.Named("scheduler"),
		opts:    opts,
		now:     time.Now,
		watches: make(map[string]*watch),
		pending: make(map[string]*pendingAdd),
	}
}

// Start registers every stored course right away and, after the startup
// delay, announces them as restored and starts their loops.
func (s *Scheduler) Start(ctx context.Context) error {
	stored, err := s.store.Watched(ctx)
	if err != nil {
		return fmt.Errorf("load watched courses: %w", err)
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("scheduler already started")
	}
	s.base, s.stop = context.WithCancel(ctx)
	restored := make([]*watch, 0, len(stored))
	for id, c := range stored {
		if c.CourseID == "" {
			c.CourseID = id
		}
		w := &watch{course: c}
		s.watches[id] = w
		restored = append(restored, w)
	}
	s.started = true
	s.wg.Add(1)
	s.mu.Unlock()
	s.logger.Info("restored watched courses", zap.Int("count", len(restored)))

	go func() {
		defer s.wg.Done()
		select {
		case <-s.base.Done():
			return
		case <-time.After(s.opts.StartupDelay):
		}
		for _, w := range restored {
			v := w.view()
			if !s.startLoop(w, true) {
				continue
			}
			s.publish(events.Event{Kind: events.CourseRestored, CourseID: v.CourseID, Data: v})
		}
	}()
	return nil
}

// Stop cancels every loop and waits for in-flight ticks.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	stop := s.stop
	s.mu.Unlock()

	stop()
	s.wg.Wait()
}

// Add starts watching c. It takes one successful fetch to be accepted.
func (s *Scheduler) Add(ctx context.Context, c enrollment.WatchedCourse) (AddResult, error) {
	if c.CourseID == "" || c.TermCode == "" || c.SubjectCode == "" {
		return AddResult{}, ErrInvalidCourse
	}
	id := c.CourseID

	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return AddResult{}, ErrNotStarted
	}
	if w, ok := s.watches[id]; ok {
		s.mu.Unlock()
		return AddResult{Course: w.view(), AlreadyWatched: true}, nil
	}
	if _, ok := s.pending[id]; ok {
		s.mu.Unlock()
		return AddResult{Course: View{CourseID: id, Designation: c.Designation, Title: c.Title}, AlreadyWatched: true}, nil
	}
	p := &pendingAdd{}
	s.pending[id] = p
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if s.pending[id] == p {
			delete(s.pending, id)
		}
		s.mu.Unlock()
	}()

	log := s.logger.With(zap.String("course_id", id))
	snap, err := s.fetch.FetchDetails(ctx, c.TermCode, c.SubjectCode, id)
	if err != nil {
		log.Warn("add rejected, fetch failed", zap.Error(err))
		return AddResult{}, fmt.Errorf("fetch %s: %w", id, err)
	}

	now := s.now()
	c.Snapshot = snap
	c.AddedAt = now
	c.LastPolledAt = now

	// From here on Remove finds the watch instead of the pending entry.
	w := &watch{course: c}
	s.mu.Lock()
	switch {
	case p.cancelled:
		s.mu.Unlock()
		log.Info("course removed while being added")
		return AddResult{}, ErrRemoved
	case !s.started:
		s.mu.Unlock()
		return AddResult{}, ErrNotStarted
	}
	s.watches[id] = w
	delete(s.pending, id)
	s.mu.Unlock()

	if err := s.store.PutWatched(ctx, id, c.Clone()); err != nil {
		s.unregister(id, w)
		return AddResult{}, fmt.Errorf("save %s: %w", id, err)
	}
	w.mu.Lock()
	removed := w.removed
	w.mu.Unlock()
	if removed {
		// Remove may have deleted the record before the write above landed.
		if err := s.store.RemoveWatched(ctx, id); err != nil {
			log.Error("drop record of removed course", zap.Error(err))
		}
		log.Info("course removed while being added")
		return AddResult{}, ErrRemoved
	}
	log.Info("watching course", zap.String("designation", c.Designation), zap.Int("sections", len(snap)))

	s.notify.Announce(c.Clone())
	s.tickOnce(w)
	s.startLoop(w, false)

	return AddResult{Course: w.view()}, nil
}

// Remove stops watching a course. Unknown ids are a no-op. An Add still in
// flight for the same course is cancelled and returns ErrRemoved.
func (s *Scheduler) Remove(ctx context.Context, courseID string) error {
	s.mu.Lock()
	w, ok := s.watches[courseID]
	delete(s.watches, courseID)
	if p, pending := s.pending[courseID]; pending {
		p.cancelled = true
	}
	s.mu.Unlock()

	if ok {
		w.mu.Lock()
		w.removed = true
		cancel := w.cancel
		w.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		s.logger.Info("stopped watching course", zap.String("course_id", courseID))
	}
	if err := s.store.RemoveWatched(ctx, courseID); err != nil {
		return fmt.Errorf("remove %s: %w", courseID, err)
	}
	return nil
}

// unregister drops w if it is still the registered watch for id.
func (s *Scheduler) unregister(id string, w *watch) {
	s.mu.Lock()
	if s.watches[id] == w {
		delete(s.watches, id)
	}
	s.mu.Unlock()
	w.mu.Lock()
	w.removed = true
	w.mu.Unlock()
}

func (s *Scheduler) List() []View {
	s.mu.Lock()
	ws := make([]*watch, 0, len(s.watches))
	for _, w := range s.watches {
		ws = append(ws, w)
	}
	s.mu.Unlock()

	out := make([]View, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.view())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CourseID < out[j].CourseID })
	return out
}

func (s *Scheduler) Get(courseID string) (View, bool) {
	s.mu.Lock()
	w, ok := s.watches[courseID]
	s.mu.Unlock()
	if !ok {
		return View{}, false
	}
	return w.view(), true
}

// startLoop reports false when the course was removed or the scheduler
// stopped in the meantime. The WaitGroup is only grown under s.mu while
// started, so it never races Stop's Wait.
func (s *Scheduler) startLoop(w *watch, immediate bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return false
	}
	w.mu.Lock()
	if w.removed || w.cancel != nil {
		w.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(s.base)
	w.cancel = cancel
	w.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx, w, immediate)
	return true
}

func (s *Scheduler) loop(ctx context.Context, w *watch, immediate bool) {
	defer s.wg.Done()
	t := time.NewTicker(s.opts.Interval)
	defer t.Stop()

	if immediate {
		s.goTick(w)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.goTick(w)
		}
	}
}

func (s *Scheduler) goTick(w *watch) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.tickOnce(w)
	}()
}

// tickOnce drops the tick when the previous one for the same course is
// still running.
func (s *Scheduler) tickOnce(w *watch) {
	if !w.tick.TryLock() {
		s.logger.Debug("previous tick still running, skipping")
		return
	}
	defer w.tick.Unlock()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tick panicked", zap.Any("panic", r))
		}
	}()
	s.runTick(w)
}

func (s *Scheduler) runTick(w *watch) {
	w.mu.Lock()
	c := w.course.Clone()
	removed := w.removed
	w.mu.Unlock()
	if removed {
		return
	}
	log := s.logger.With(zap.String("course_id", c.CourseID))
	s.publish(events.Event{Kind: events.CourseLoad, CourseID: c.CourseID})

	// The base context: cancelling one course must not abort its request
	// and count as an API failure.
	ctx, cancel := context.WithTimeout(s.base, fetchTimeout)
	defer cancel()
	snap, err := s.fetch.FetchDetails(ctx, c.TermCode, c.SubjectCode, c.CourseID)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.removed {
		log.Debug("course removed during tick, discarding result")
		return
	}

	if err != nil {
		w.failures++
		log.Warn("fetch failed", zap.Int("consecutive_failures", w.failures), zap.Error(err))
		if s.opts.StaleAfter > 0 && w.failures >= s.opts.StaleAfter && !w.staleSent {
			w.staleSent = true
			s.publish(events.Event{Kind: events.CourseStale, CourseID: c.CourseID, Data: map[string]int{"consecutiveFailures": w.failures}})
		}
		return
	}
	if w.staleSent {
		log.Info("course recovered", zap.Int("after_failures", w.failures))
	}
	w.failures = 0
	w.staleSent = false

	res := enrollment.Diff(w.course.Snapshot, snap)
	if res.Mismatch {
		log.Warn("section layout changed",
			zap.Int("previous", len(w.course.Snapshot)),
			zap.Int("current", len(snap)),
			zap.String("matching", string(res.Matching)))
	}

	w.course.Snapshot = snap
	w.course.LastPolledAt = s.now()
	updated := w.course.Clone()
	if err := s.store.PutWatched(s.base, updated.CourseID, updated); err != nil {
		// memory keeps the new snapshot so the same change is not sent twice
		log.Error("persist snapshot", zap.Error(err))
	}

	for _, ch := range res.Changes {
		ch.CourseID = updated.CourseID
		log.Info("enrollment changed",
			zap.String("kind", string(ch.Kind)),
			zap.String("section", ch.SectionKey),
			zap.String("old_status", string(ch.OldStatus)),
			zap.String("new_status", string(ch.NewStatus)),
			zap.Int("old_seats", ch.OldSeats),
			zap.Int("new_seats", ch.NewSeats))
		s.notify.Dispatch(updated, ch)
		s.publish(events.Event{Kind: events.CourseChange, CourseID: updated.CourseID, Data: ch})
	}

	s.publish(events.Event{Kind: events.CourseUpdate, CourseID: updated.CourseID, Data: Update{
		Statuses:       snap.Statuses(),
		AvailableSeats: snap.OpenSeats(),
	}})
}

func (s *Scheduler) publish(e events.Event) {
	if s.events != nil {
		s.events.Publish(e)
	}
}
