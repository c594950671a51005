package bot

import (
	"math"
	"math/rand"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/sessamekesh/duckpond-client/pkg/netcode"
)

type WanderParams struct {
	Seed int64

	// Wander turns on random movement. A zero QuackEvery never quacks.
	Wander     bool
	MoveEvery  time.Duration
	TurnEvery  time.Duration
	QuackEvery time.Duration
}

type Actions struct {
	Move  *netcode.MoveIntent
	Quack bool
}

// Wanderer produces the inputs of an idle duck: drift in one heading, turn now
// and then, quack on a timer.
type Wanderer struct {
	params  WanderParams
	rng     *rand.Rand
	heading mgl32.Vec2

	sinceMove  time.Duration
	sinceTurn  time.Duration
	sinceQuack time.Duration
}

func CreateWanderer(params WanderParams) *Wanderer {
	if params.MoveEvery <= 0 {
		params.MoveEvery = 100 * time.Millisecond
	}
	if params.TurnEvery <= 0 {
		params.TurnEvery = 2 * time.Second
	}

	w := &Wanderer{
		params: params,
		rng:    rand.New(rand.NewSource(params.Seed)),
	}
	w.turn()
	return w
}

func (w *Wanderer) turn() {
	angle := w.rng.Float32() * 2 * math.Pi
	w.heading = mgl32.Rotate2D(angle).Mul2x1(mgl32.Vec2{1, 0}).Normalize()
}

func (w *Wanderer) Heading() mgl32.Vec2 {
	return w.heading
}

// Tick advances the timers by delta and returns what the duck does this tick.
func (w *Wanderer) Tick(delta time.Duration) Actions {
	out := Actions{}

	if w.params.QuackEvery > 0 {
		w.sinceQuack += delta
		if w.sinceQuack >= w.params.QuackEvery {
			w.sinceQuack = 0
			out.Quack = true
		}
	}

	if !w.params.Wander {
		return out
	}

	w.sinceTurn += delta
	if w.sinceTurn >= w.params.TurnEvery {
		w.sinceTurn = 0
		w.turn()
	}

	w.sinceMove += delta
	if w.sinceMove >= w.params.MoveEvery {
		w.sinceMove = 0
		move := netcode.MoveIntent{Direction: w.heading}
		out.Move = &move
	}

	return out
}
