package radio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBackgroundRotator_Empty(t *testing.T) {
	t.Parallel()

	r := NewBackgroundRotator(0, nil)
	for i := 0; i < 10; i++ {
		assert.Equal(t, NoBackground, r.PickRandom())
	}

	r = NewBackgroundRotator(-3, nil)
	assert.Equal(t, 0, r.Count())
	assert.Equal(t, NoBackground, r.PickRandom())
}

func TestBackgroundRotator_Range(t *testing.T) {
	t.Parallel()

	r := NewBackgroundRotator(5, nil)
	seen := make(map[int]bool)
	for i := 0; i < 2000; i++ {
		id := r.PickRandom()
		assert.GreaterOrEqual(t, id, 1)
		assert.LessOrEqual(t, id, 5)
		seen[id] = true
	}
	assert.Len(t, seen, 5)
}

func TestBackgroundRotator_SetCount(t *testing.T) {
	t.Parallel()

	r := NewBackgroundRotator(0, func(n int) int { return n - 1 })
	assert.Equal(t, NoBackground, r.PickRandom())

	r.SetCount(3)
	assert.Equal(t, 3, r.PickRandom())
}
