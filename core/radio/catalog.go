package radio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"LiveRadio/logger"
	"LiveRadio/model"
)

// EmptyIndex is returned by RandomIndex when the catalog has no entries.
const EmptyIndex = -1

// ErrTrackNotFound is returned by Resolve for out-of-range or stale indices.
var ErrTrackNotFound = errors.New("track not found")

// CatalogSource enumerates and stores raw track payloads.
type CatalogSource interface {
	// List returns the ordered track identifiers.
	List(ctx context.Context) ([]string, error)
	// Read returns the raw payload of a track.
	Read(ctx context.Context, name string) ([]byte, error)
	// Handle returns the content handle published to clients.
	Handle(name string) string
	Add(ctx context.Context, name string, payload []byte) error
	Remove(ctx context.Context, name string) error
}

// IntnFunc returns a uniformly random integer in [0, n). n is always > 0.
type IntnFunc func(n int) int

// Catalog holds the current snapshot of track identifiers.
type Catalog struct {
	source CatalogSource
	intn   IntnFunc

	mu      sync.RWMutex
	entries []string
}

// NewCatalog creates an empty catalog; call Refresh to populate it.
func NewCatalog(source CatalogSource, intn IntnFunc) *Catalog {
	if intn == nil {
		intn = rand.Intn
	}
	return &Catalog{source: source, intn: intn}
}

// Source exposes the underlying store for administrative operations.
func (c *Catalog) Source() CatalogSource {
	return c.source
}

// Refresh re-enumerates the source and swaps the snapshot. On failure the
// previous snapshot stays in place.
func (c *Catalog) Refresh(ctx context.Context) error {
	names, err := c.source.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list catalog: %w", err)
	}

	entries := make([]string, len(names))
	copy(entries, names)

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()

	logger.Debug("catalog refreshed", logger.Int("tracks", len(entries)))
	return nil
}

func (c *Catalog) snapshot() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries
}

// Len returns the size of the current snapshot.
func (c *Catalog) Len() int {
	return len(c.snapshot())
}

// IsEmpty reports whether the current snapshot has no tracks.
func (c *Catalog) IsEmpty() bool {
	return c.Len() == 0
}

// Entries returns a copy of the current snapshot.
func (c *Catalog) Entries() []string {
	entries := c.snapshot()
	out := make([]string, len(entries))
	copy(out, entries)
	return out
}

// RandomIndex draws a uniform index, or EmptyIndex for an empty catalog.
func (c *Catalog) RandomIndex() int {
	n := c.Len()
	if n == 0 {
		return EmptyIndex
	}
	return c.intn(n)
}

// Resolve loads the track at index in the current snapshot. Indices outside
// the snapshot, or entries whose payload vanished since the last refresh,
// fail with ErrTrackNotFound.
func (c *Catalog) Resolve(ctx context.Context, index int) (*model.Track, error) {
	entries := c.snapshot()
	if index < 0 || index >= len(entries) {
		return nil, fmt.Errorf("index %d of %d: %w", index, len(entries), ErrTrackNotFound)
	}

	name := entries[index]
	payload, err := c.source.Read(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %v: %w", name, err, ErrTrackNotFound)
	}

	meta := parseMeta(name, payload)
	return &model.Track{
		Index:    index,
		Name:     name,
		Handle:   c.source.Handle(name),
		Title:    meta.Title,
		Duration: ParseDuration(meta.Duration),
	}, nil
}

// Describe lists the catalog with parsed metadata for administrators.
func (c *Catalog) Describe(ctx context.Context) []model.CatalogEntry {
	entries := c.snapshot()
	out := make([]model.CatalogEntry, 0, len(entries))
	for i, name := range entries {
		entry := model.CatalogEntry{Index: i, Name: name}
		if payload, err := c.source.Read(ctx, name); err == nil {
			meta := parseMeta(name, payload)
			entry.Title = meta.Title
			entry.Duration = FormatDuration(ParseDuration(meta.Duration))
		}
		out = append(out, entry)
	}
	return out
}

// parseMeta never fails: unreadable metadata degrades to a zero duration.
func parseMeta(name string, payload []byte) model.TrackMeta {
	var raw struct {
		Title    string          `json:"title"`
		Duration json.RawMessage `json:"duration"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		logger.Warn("malformed track payload", logger.String("track", name), logger.ErrorField(err))
		return model.TrackMeta{}
	}

	meta := model.TrackMeta{Title: raw.Title}
	if len(raw.Duration) == 0 {
		return meta
	}
	// Accept both "3:25" and a bare number of seconds.
	var s string
	if err := json.Unmarshal(raw.Duration, &s); err == nil {
		meta.Duration = s
		return meta
	}
	var n json.Number
	if err := json.Unmarshal(raw.Duration, &n); err == nil {
		meta.Duration = n.String()
		return meta
	}
	logger.Warn("unreadable track duration", logger.String("track", name), logger.String("duration", string(raw.Duration)))
	return meta
}
