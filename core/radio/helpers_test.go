package radio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"testing"

	"LiveRadio/model"

	"github.com/stretchr/testify/require"
)

// memSource is an in-memory CatalogSource.
type memSource struct {
	mu       sync.Mutex
	payloads map[string][]byte
	listErr  error
}

func newMemSource() *memSource {
	return &memSource{payloads: make(map[string][]byte)}
}

func (m *memSource) List(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	names := make([]string, 0, len(m.payloads))
	for name := range m.payloads {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *memSource) Read(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payloads[name]
	if !ok {
		return nil, errors.New("no such track")
	}
	return p, nil
}

func (m *memSource) Handle(name string) string {
	return "mem://" + name
}

func (m *memSource) Add(_ context.Context, name string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads[name] = payload
	return nil
}

func (m *memSource) Remove(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payloads[name]; !ok {
		return errors.New("no such track")
	}
	delete(m.payloads, name)
	return nil
}

func (m *memSource) addTrack(t *testing.T, name, duration string) {
	t.Helper()
	payload, err := json.Marshal(map[string]string{
		"title":    "Title " + name,
		"duration": duration,
		"audio":    "AAAA",
	})
	require.NoError(t, err)
	require.NoError(t, m.Add(context.Background(), name, payload))
}

// sequence returns an IntnFunc cycling through 0, 1, 2, ... starting at first.
func sequence(first int) IntnFunc {
	var mu sync.Mutex
	k := first
	return func(n int) int {
		mu.Lock()
		defer mu.Unlock()
		v := k % n
		k++
		return v
	}
}

// recordingPublisher keeps every snapshot it receives.
type recordingPublisher struct {
	mu    sync.Mutex
	snaps []model.Snapshot
}

func (r *recordingPublisher) Publish(snap model.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
}

func (r *recordingPublisher) all() []model.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Snapshot, len(r.snaps))
	copy(out, r.snaps)
	return out
}

func sessionCounter() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("session-%d", n)
	}
}

// manualLoop is the owner id used by stepN on a scheduler that was never started.
const manualLoop = math.MaxUint64

// stepN runs n ticks synchronously, bypassing the timer.
func stepN(s *Scheduler, n int) {
	if s.owner.Load() == 0 {
		s.owner.Store(manualLoop)
	}
	id := s.owner.Load()
	for i := 0; i < n; i++ {
		s.tick(id)
	}
}

// stallingSource blocks the first Read until unblock is called, ignoring
// the context the way a hung network mount would.
type stallingSource struct {
	*memSource
	entered     chan struct{}
	release     chan struct{}
	enterOnce   sync.Once
	releaseOnce sync.Once
}

func newStallingSource(t *testing.T, src *memSource) *stallingSource {
	s := &stallingSource{
		memSource: src,
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	t.Cleanup(s.unblock)
	return s
}

func (s *stallingSource) Read(ctx context.Context, name string) ([]byte, error) {
	first := false
	s.enterOnce.Do(func() {
		first = true
		close(s.entered)
	})
	if first {
		<-s.release
	}
	return s.memSource.Read(ctx, name)
}

func (s *stallingSource) unblock() {
	s.releaseOnce.Do(func() { close(s.release) })
}

// memStore is an in-memory Store.
type memStore struct {
	mu     sync.Mutex
	values map[string][]byte
	sets   int
	failN  int // fail the first failN Set calls
}

func newMemStore() *memStore {
	return &memStore{values: make(map[string][]byte)}
}

func (m *memStore) Set(_ context.Context, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.failN > 0 {
		m.failN--
		return errors.New("store unavailable")
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.values[key] = data
	return nil
}

func (m *memStore) Get(_ context.Context, key string, dest any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.values[key]
	if !ok {
		return ErrKeyNotFound
	}
	return json.Unmarshal(data, dest)
}

func (m *memStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[key]
	return ok
}
