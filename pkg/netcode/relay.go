package netcode

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/sessamekesh/duckpond-client/internal"
	"github.com/sessamekesh/duckpond-client/pkg/errors"
	"github.com/sessamekesh/duckpond-client/pkg/events"
	"go.uber.org/zap"
)

type JoinIntent struct {
	FriendlyName string
}

// MoveIntent carries the raw input direction. Components are sent as-is, so
// a keyboard diagonal is (1, 1), not a unit vector.
type MoveIntent struct {
	Direction mgl32.Vec2
}

func MoveIntentFromAxes(x, y float32) MoveIntent {
	return MoveIntent{Direction: mgl32.Vec2{x, y}}
}

type QuackIntent struct{}

type InteractIntent struct{}

type RelayParams struct {
	Store   *internal.ConnectionStore
	Metrics *Metrics
	Logger  *zap.Logger
}

// Relay drains one intent queue per tick and writes every intent to every
// installed connection. Writes are at most once: a full outbound buffer drops
// the frame and nothing is retried.
type Relay[T any] struct {
	name   string
	queue  *events.Queue[T]
	encode func(T) ([]byte, error)

	store   *internal.ConnectionStore
	metrics *Metrics
	log     *zap.Logger
}

func CreateRelay[T any](name string, queue *events.Queue[T], encode func(T) ([]byte, error), params RelayParams) *Relay[T] {
	logger := params.Logger
	if logger == nil {
		logger = zap.Must(zap.NewDevelopment())
	}
	metrics := params.Metrics
	if metrics == nil {
		metrics = CreateMetrics()
	}

	return &Relay[T]{
		name:    name,
		queue:   queue,
		encode:  encode,
		store:   params.Store,
		metrics: metrics,
		log:     logger.With(zap.String("handler", "Relay"), zap.String("intent", name)),
	}
}

// Tick returns the number of frames accepted for writing.
func (r *Relay[T]) Tick(now time.Time) int {
	intents := r.queue.Drain()
	if len(intents) == 0 {
		return 0
	}

	slots := r.store.Slots()
	if len(slots) == 0 {
		r.log.Debug("No connection installed, dropping intents", zap.Int("count", len(intents)))
		r.metrics.WritesDropped.WithLabelValues(r.name).Add(float64(len(intents)))
		return 0
	}

	sent := 0
	for _, intent := range intents {
		frame, err := r.encode(intent)
		if err != nil {
			r.log.Error("Failed to encode intent", zap.Error(err))
			r.metrics.WritesFailed.WithLabelValues(r.name).Inc()
			continue
		}

		for _, slotId := range slots {
			if r.write(slotId, frame, now) {
				sent++
			}
		}
	}
	return sent
}

func (r *Relay[T]) write(slotId uint32, frame []byte, now time.Time) bool {
	connection, err := r.store.Get(slotId)
	if err != nil {
		return false
	}

	err = connection.Conn.TryWrite(frame)
	switch {
	case err == nil:
		r.store.MarkSend(slotId, now.UnixMilli())
		r.metrics.WritesSent.WithLabelValues(r.name).Inc()
		return true
	case errors.IsWouldBlock(err):
		r.metrics.WritesDropped.WithLabelValues(r.name).Inc()
	default:
		r.log.Error("Failed to write intent", zap.Uint32("slotId", slotId), zap.Error(err))
		r.metrics.WritesFailed.WithLabelValues(r.name).Inc()
	}
	return false
}
