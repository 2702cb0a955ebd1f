package radio

import (
	"math/rand"
	"sync/atomic"
)

// NoBackground is selected when the pool is empty.
const NoBackground = 0

// BackgroundRotator picks background ids from the dense range 1..N.
type BackgroundRotator struct {
	count atomic.Int64
	intn  IntnFunc
}

// NewBackgroundRotator creates a rotator over count backgrounds.
func NewBackgroundRotator(count int, intn IntnFunc) *BackgroundRotator {
	if intn == nil {
		intn = rand.Intn
	}
	r := &BackgroundRotator{intn: intn}
	r.SetCount(count)
	return r
}

// SetCount replaces the pool size, e.g. after the directory was normalized again.
func (r *BackgroundRotator) SetCount(count int) {
	if count < 0 {
		count = 0
	}
	r.count.Store(int64(count))
}

// Count returns the pool size.
func (r *BackgroundRotator) Count() int {
	return int(r.count.Load())
}

// PickRandom returns a uniform id in [1, N], or NoBackground when N is 0.
// Repeats are allowed.
func (r *BackgroundRotator) PickRandom() int {
	n := r.Count()
	if n == 0 {
		return NoBackground
	}
	return r.intn(n) + 1
}
