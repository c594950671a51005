package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWandererHeadingIsUnitLength(t *testing.T) {
	w := CreateWanderer(WanderParams{Seed: 3, Wander: true})
	assert.InDelta(t, 1.0, w.Heading().Len(), 1e-5)
}

func TestWandererMovesOnInterval(t *testing.T) {
	w := CreateWanderer(WanderParams{Seed: 1, Wander: true, MoveEvery: 50 * time.Millisecond, TurnEvery: time.Hour})

	assert.Nil(t, w.Tick(20*time.Millisecond).Move)
	assert.Nil(t, w.Tick(20*time.Millisecond).Move)

	out := w.Tick(20 * time.Millisecond)
	require.NotNil(t, out.Move)
	assert.True(t, out.Move.Direction.ApproxEqual(w.Heading()))
}

func TestWandererTurns(t *testing.T) {
	w := CreateWanderer(WanderParams{Seed: 9, Wander: true, TurnEvery: 10 * time.Millisecond})
	before := w.Heading()

	changed := false
	for i := 0; i < 10; i++ {
		w.Tick(10 * time.Millisecond)
		if !w.Heading().ApproxEqual(before) {
			changed = true
		}
	}
	assert.True(t, changed)
}

func TestWandererQuacksWithoutWandering(t *testing.T) {
	w := CreateWanderer(WanderParams{QuackEvery: 30 * time.Millisecond})

	quacks := 0
	for i := 0; i < 9; i++ {
		out := w.Tick(10 * time.Millisecond)
		assert.Nil(t, out.Move)
		if out.Quack {
			quacks++
		}
	}
	assert.Equal(t, 3, quacks)
}
