package radio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"LiveRadio/logger"
	"LiveRadio/model"
)

// ErrKeyNotFound is returned by Store.Get for keys that were never set.
var ErrKeyNotFound = errors.New("key not found")

// Store is the durable key-value sink for published snapshots.
// Values are stored as JSON.
type Store interface {
	Set(ctx context.Context, key string, value any) error
	// Get decodes the value into dest, or returns ErrKeyNotFound.
	Get(ctx context.Context, key string, dest any) error
}

// BatchStore writes several keys as one unit.
type BatchStore interface {
	Store
	SetBatch(ctx context.Context, values map[string]any) error
}

// PlayRecorder receives every published snapshot, e.g. for play history.
type PlayRecorder interface {
	RecordPlay(ctx context.Context, snap model.Snapshot) error
}

// PublisherOptions tunes the publish worker.
type PublisherOptions struct {
	WriteTimeout  time.Duration // bound on one store write
	RetryInterval time.Duration // delay before retrying a failed write
	Recorder      PlayRecorder  // optional
}

// DefaultPublisherOptions are used for zero option fields.
var DefaultPublisherOptions = PublisherOptions{
	WriteTimeout:  500 * time.Millisecond,
	RetryInterval: time.Second,
}

// Publisher hands snapshots to a background worker so the scheduler tick
// never waits on store I/O. Only the newest unwritten snapshot is kept.
type Publisher struct {
	store Store
	opts  PublisherOptions

	mu      sync.Mutex
	pending *model.Snapshot
	written uint64 // generation of the last successful write
	closed  bool

	notify    chan struct{}
	stopChan  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewPublisher starts the publish worker. Call Close to stop it.
func NewPublisher(store Store, opts PublisherOptions) *Publisher {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultPublisherOptions.WriteTimeout
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultPublisherOptions.RetryInterval
	}

	p := &Publisher{
		store:    store,
		opts:     opts,
		notify:   make(chan struct{}, 1),
		stopChan: make(chan struct{}),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// Publish queues snap for writing and returns immediately. Older pending
// snapshots are superseded; snapshots older than the last write are dropped.
func (p *Publisher) Publish(snap model.Snapshot) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		logger.Warn("publisher closed, snapshot dropped", logger.Uint64("generation", snap.Generation))
		return
	}
	if snap.Generation <= p.written || (p.pending != nil && p.pending.Generation > snap.Generation) {
		p.mu.Unlock()
		return
	}
	p.pending = &snap
	p.record(snap)
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Written returns the generation of the last snapshot that reached the store.
func (p *Publisher) Written() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written
}

// Close stops the worker after one last attempt to write a pending snapshot.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.stopChan)
		p.wg.Wait()
	})
}

func (p *Publisher) run() {
	defer p.wg.Done()

	var retry <-chan time.Time
	for {
		select {
		case <-p.stopChan:
			p.flush()
			return
		case <-p.notify:
		case <-retry:
		}

		if p.flush() {
			retry = nil
		} else {
			retry = time.After(p.opts.RetryInterval)
		}
	}
}

// flush writes the pending snapshot, if any. It reports false when a write
// failed and the snapshot is still pending.
func (p *Publisher) flush() bool {
	p.mu.Lock()
	snap := p.pending
	p.pending = nil
	p.mu.Unlock()

	if snap == nil {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.opts.WriteTimeout)
	defer cancel()

	if err := p.write(ctx, *snap); err != nil {
		logger.Warn("failed to publish snapshot, will retry",
			logger.Uint64("generation", snap.Generation),
			logger.ErrorField(err))

		p.mu.Lock()
		if p.pending == nil {
			p.pending = snap
		}
		p.mu.Unlock()
		return false
	}

	p.mu.Lock()
	if snap.Generation > p.written {
		p.written = snap.Generation
	}
	p.mu.Unlock()

	logger.Debug("snapshot published",
		logger.Uint64("generation", snap.Generation),
		logger.String("sessionId", snap.SessionID))
	return true
}

func (p *Publisher) write(ctx context.Context, snap model.Snapshot) error {
	if bs, ok := p.store.(BatchStore); ok {
		return bs.SetBatch(ctx, map[string]any{
			model.KeySnapshot:      snap,
			model.KeySongPath:      snap.SongPath(),
			model.KeySongStartData: snap.StartData(),
			model.KeyBiSi:          snap.BiSi(),
		})
	}

	// bi-si goes last: clients refetch the song when its session id changes.
	writes := []struct {
		key   string
		value any
	}{
		{model.KeySnapshot, snap},
		{model.KeySongPath, snap.SongPath()},
		{model.KeySongStartData, snap.StartData()},
		{model.KeyBiSi, snap.BiSi()},
	}
	for _, w := range writes {
		if err := p.store.Set(ctx, w.key, w.value); err != nil {
			return fmt.Errorf("set %s: %w", w.key, err)
		}
	}
	return nil
}

// record must be called with p.mu held.
func (p *Publisher) record(snap model.Snapshot) {
	if p.opts.Recorder == nil || snap.Idle() {
		return
	}
	// Recording runs beside the store write and is never retried.
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.opts.WriteTimeout)
		defer cancel()
		if err := p.opts.Recorder.RecordPlay(ctx, snap); err != nil {
			logger.Warn("failed to record play", logger.String("track", snap.Name), logger.ErrorField(err))
		}
	}()
}

// FetchSnapshot returns the stored snapshot.
func (p *Publisher) FetchSnapshot(ctx context.Context) (model.Snapshot, bool) {
	var snap model.Snapshot
	if err := p.fetch(ctx, model.KeySnapshot, &snap); err != nil {
		return model.Snapshot{}, false
	}
	return snap, true
}

// FetchSongPath returns the stored content handle of the current track.
func (p *Publisher) FetchSongPath(ctx context.Context) (model.SongPath, bool) {
	var sp model.SongPath
	if err := p.fetch(ctx, model.KeySongPath, &sp); err != nil || sp.Path == "" {
		return model.SongPath{}, false
	}
	return sp, true
}

// FetchStartData returns the stored timing tuple or {t: 0, mod: 1}.
func (p *Publisher) FetchStartData(ctx context.Context) model.SongStartData {
	sd := model.SongStartData{}
	if err := p.fetch(ctx, model.KeySongStartData, &sd); err != nil || sd.Mod <= 0 {
		return model.SongStartData{T: 0, Mod: 1}
	}
	return sd
}

// FetchBiSi returns the stored background/session pair or its zero value.
func (p *Publisher) FetchBiSi(ctx context.Context) model.BiSi {
	var bs model.BiSi
	if err := p.fetch(ctx, model.KeyBiSi, &bs); err != nil {
		return model.BiSi{}
	}
	return bs
}

func (p *Publisher) fetch(ctx context.Context, key string, dest any) error {
	err := p.store.Get(ctx, key, dest)
	if err != nil && !errors.Is(err, ErrKeyNotFound) {
		logger.Warn("failed to read sync key", logger.String("key", key), logger.ErrorField(err))
	}
	return err
}
