package radio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"LiveRadio/logger"
	"LiveRadio/model"

	"github.com/google/uuid"
)

// State of the scheduler lifecycle.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

var (
	// ErrStopTimeout is returned when the tick goroutine does not exit in time.
	// No further tick runs even then.
	ErrStopTimeout = errors.New("scheduler stop timed out")
	// ErrAlreadyRunning is returned by Start on a running scheduler.
	ErrAlreadyRunning = errors.New("scheduler already running")
)

// SnapshotPublisher receives every new snapshot. Publish must not block.
type SnapshotPublisher interface {
	Publish(snap model.Snapshot)
}

// Options tunes the scheduler. Zero fields take DefaultOptions values.
type Options struct {
	TickInterval time.Duration
	StopTimeout  time.Duration
	Modulus      int64
	Now          func() time.Time
	NewSessionID func() string
}

// DefaultOptions are used for zero option fields.
var DefaultOptions = Options{
	TickInterval: time.Second,
	StopTimeout:  2 * time.Second,
	Modulus:      model.DefaultModulus,
	Now:          time.Now,
	NewSessionID: uuid.NewString,
}

// Status is a read-only view of the playback state.
type Status struct {
	State        string       `json:"state"`
	Track        *model.Track `json:"track,omitempty"`
	Elapsed      int          `json:"elapsed"`
	SessionID    string       `json:"sessionId,omitempty"`
	BackgroundID int          `json:"backgroundId"`
	Generation   uint64       `json:"generation"`
	Ticks        uint64       `json:"ticks"`
	CatalogSize  int          `json:"catalogSize"`
}


// Scheduler owns the playback state and advances it once per tick.
// The tick goroutine is the only writer; readers use Snapshot and Status.
// Catalog I/O runs outside mu so readers and Stop never wait on storage.
type Scheduler struct {
	catalog     *Catalog
	backgrounds *BackgroundRotator
	publisher   SnapshotPublisher
	opts        Options

	// lifecycle serializes Start, Stop and Restart and guards the fields below.
	lifecycle sync.Mutex
	stopChan  chan struct{}
	done      chan struct{}
	loops     uint64

	// owner is the id of the tick loop allowed to commit state; 0 when stopped.
	owner atomic.Uint64

	mu           sync.RWMutex
	state        State
	current      *model.Track
	elapsed      int
	playIndex    int
	idle         bool // the last load found nothing playable
	sessionID    string
	backgroundID int
	generation   uint64
	ticks        uint64
	snapshot     model.Snapshot
	hasSnapshot  bool
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(catalog *Catalog, backgrounds *BackgroundRotator, publisher SnapshotPublisher, opts Options) *Scheduler {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultOptions.TickInterval
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultOptions.StopTimeout
	}
	if opts.Modulus <= 0 {
		opts.Modulus = DefaultOptions.Modulus
	}
	if opts.Now == nil {
		opts.Now = DefaultOptions.Now
	}
	if opts.NewSessionID == nil {
		opts.NewSessionID = DefaultOptions.NewSessionID
	}
	if backgrounds == nil {
		backgrounds = NewBackgroundRotator(0, nil)
	}

	return &Scheduler{
		catalog:     catalog,
		backgrounds: backgrounds,
		publisher:   publisher,
		opts:        opts,
	}
}

// Start launches the tick goroutine.
func (s *Scheduler) Start() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	return s.start()
}

// Stop halts the tick goroutine. When Stop returns no further tick commits,
// even if the goroutine is still stuck in catalog I/O (ErrStopTimeout).
func (s *Scheduler) Stop() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	return s.stop()
}

// Restart stops the scheduler, rewinds to the first catalog position and
// starts it again.
func (s *Scheduler) Restart() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if err := s.stop(); err != nil {
		logger.Warn("restart: previous tick loop did not exit in time", logger.ErrorField(err))
	}

	s.mu.Lock()
	s.current = nil
	s.elapsed = 0
	s.playIndex = 0
	s.idle = false
	s.mu.Unlock()

	return s.start()
}

func (s *Scheduler) start() error {
	if s.stopChan != nil {
		logger.Info("scheduler already running")
		return ErrAlreadyRunning
	}

	s.loops++
	id := s.loops
	stop := make(chan struct{})
	done := make(chan struct{})
	s.stopChan, s.done = stop, done
	s.owner.Store(id)

	s.mu.Lock()
	s.state = Running
	s.mu.Unlock()

	go s.loop(id, stop, done)

	logger.Info("scheduler started", logger.Duration("tickInterval", s.opts.TickInterval))
	return nil
}

func (s *Scheduler) stop() error {
	if s.stopChan == nil {
		return nil
	}
	stop, done := s.stopChan, s.done
	s.stopChan, s.done = nil, nil

	s.owner.Store(0)
	close(stop)

	// mu is only ever held for in-memory work, so this waits at most for a
	// commit already in progress. Afterwards no commit can pass the owner check.
	s.mu.Lock()
	s.state = Stopped
	s.mu.Unlock()

	select {
	case <-done:
		logger.Info("scheduler stopped")
		return nil
	case <-time.After(s.opts.StopTimeout):
		logger.Warn("scheduler stop timed out, abandoning tick loop", logger.Duration("timeout", s.opts.StopTimeout))
		return ErrStopTimeout
	}
}

func (s *Scheduler) loop(id uint64, stop, done chan struct{}) {
	defer close(done)

	// Load the first track right away instead of waiting a full interval.
	s.tick(id)

	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.tick(id)
		}
	}
}

func (s *Scheduler) owns(id uint64) bool {
	return s.owner.Load() == id
}

// tickPlan is what a tick decided under the lock: whether a track must be
// loaded, from which index, and whether the catalog is re-listed first.
type tickPlan struct {
	load     bool
	index    int
	refresh  bool
	finished *model.Track
}

// tick advances the playback state by one step on behalf of loop id.
func (s *Scheduler) tick(id uint64) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("scheduler tick panicked", logger.Any("panic", r))
		}
	}()

	plan, ok := s.advance(id)
	if !ok || !plan.load {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.TickInterval)
	defer cancel()

	if plan.refresh {
		if err := s.catalog.Refresh(ctx); err != nil {
			logger.Warn("idle catalog refresh failed", logger.ErrorField(err))
		}
	}
	track := s.resolve(ctx, plan.index)
	s.commit(id, track, plan.finished)
}

// advance counts the tick and either moves elapsed forward or plans a load.
func (s *Scheduler) advance(id uint64) (tickPlan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.owns(id) {
		return tickPlan{}, false
	}
	s.ticks++

	if s.current == nil {
		// An idle scheduler re-lists the source: files may have been added,
		// removed or replaced behind the catalog's back.
		return tickPlan{
			load:    true,
			index:   s.playIndex,
			refresh: s.idle || s.catalog.IsEmpty(),
		}, true
	}

	next := s.elapsed + 1
	if next < s.current.Duration {
		s.elapsed = next
		return tickPlan{}, true
	}
	return tickPlan{
		load:     true,
		index:    s.catalog.RandomIndex(),
		finished: s.current,
	}, true
}

// resolve loads index, redrawing random indices on failure. Attempts are
// capped at the catalog size plus one. Returns nil when nothing is playable.
func (s *Scheduler) resolve(ctx context.Context, index int) *model.Track {
	attempts := s.catalog.Len() + 1
	for i := 0; i < attempts; i++ {
		if s.catalog.IsEmpty() {
			return nil
		}

		track, err := s.catalog.Resolve(ctx, index)
		if err != nil {
			logger.Warn("failed to load track, redrawing",
				logger.Int("index", index),
				logger.ErrorField(err))
			index = s.catalog.RandomIndex()
			continue
		}
		return track
	}
	return nil
}

// commit applies the result of a load unless loop id was stopped meanwhile.
func (s *Scheduler) commit(id uint64, track, finished *model.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.owns(id) {
		logger.Info("discarding load from an abandoned tick loop")
		return
	}
	if track != nil {
		s.play(track)
		return
	}
	if finished != nil {
		logger.Warn("track finished and no replacement could be loaded", logger.String("track", finished.Name))
	}
	s.goIdle()
}

// goIdle clears the current track. The first time it publishes an idle
// snapshot so clients stop rendering the finished track. Callers hold s.mu.
func (s *Scheduler) goIdle() {
	s.current = nil
	s.elapsed = 0
	if s.idle {
		return
	}
	s.idle = true
	logger.Warn("no tracks available, scheduler idle", logger.Int("catalogSize", s.catalog.Len()))

	if s.hasSnapshot && !s.snapshot.Idle() {
		s.sessionID = s.opts.NewSessionID()
		s.backgroundID = NoBackground
		s.publish(s.newSnapshot(nil))
	}
}

// play makes track current and publishes a fresh snapshot. Callers hold s.mu.
func (s *Scheduler) play(track *model.Track) {
	s.current = track
	s.playIndex = track.Index
	s.elapsed = 0
	s.idle = false
	s.sessionID = s.opts.NewSessionID()
	s.backgroundID = s.backgrounds.PickRandom()

	s.publish(s.newSnapshot(track))

	logger.Info("now playing",
		logger.String("track", track.Name),
		logger.Int("index", track.Index),
		logger.Int("duration", track.Duration),
		logger.String("sessionId", s.sessionID),
		logger.Int("background", s.backgroundID))
}

// newSnapshot describes track (nil for idle) with the current session and
// background. Callers hold s.mu.
func (s *Scheduler) newSnapshot(track *model.Track) model.Snapshot {
	now := s.opts.Now()
	s.generation++

	unix := float64(now.Unix()) + float64(now.Nanosecond())/float64(time.Second)
	snap := model.Snapshot{
		Generation:   s.generation,
		StartedAt:    now,
		Reference:    math.Mod(unix, float64(s.opts.Modulus)),
		Modulus:      s.opts.Modulus,
		BackgroundID: s.backgroundID,
		SessionID:    s.sessionID,
	}
	if track != nil {
		snap.Handle = track.Handle
		snap.Name = track.Name
		snap.Title = track.Title
		snap.Duration = track.Duration
	}
	return snap
}

// publish swaps the readable snapshot and hands it on. Callers hold s.mu.
func (s *Scheduler) publish(snap model.Snapshot) {
	// Readers only ever see whole snapshots: the swap happens under s.mu.
	s.snapshot = snap
	s.hasSnapshot = true

	if s.publisher != nil {
		s.publisher.Publish(snap)
	}
}

// Snapshot returns the latest snapshot; false before the first track loads.
// An idle snapshot (see model.Snapshot.Idle) means nothing is on air.
func (s *Scheduler) Snapshot() (model.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot, s.hasSnapshot
}

// Status returns a copy of the playback state.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		State:        s.state.String(),
		Elapsed:      s.elapsed,
		BackgroundID: s.backgroundID,
		Generation:   s.generation,
		Ticks:        s.ticks,
		CatalogSize:  s.catalog.Len(),
	}
	if s.current != nil {
		track := *s.current
		st.Track = &track
		st.SessionID = s.sessionID
	}
	return st
}

// State reports whether the scheduler is running.
func (s *Scheduler) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Scheduler) String() string {
	st := s.Status()
	if st.Track == nil {
		return fmt.Sprintf("scheduler(%s, idle)", st.State)
	}
	return fmt.Sprintf("scheduler(%s, %s %d/%ds)", st.State, st.Track.Name, st.Elapsed, st.Track.Duration)
}
