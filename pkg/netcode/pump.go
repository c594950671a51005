package netcode

import (
	"fmt"
	"strings"
	"time"

	"github.com/sessamekesh/duckpond-client/internal"
	"github.com/sessamekesh/duckpond-client/pkg/errors"
	"github.com/sessamekesh/duckpond-client/pkg/message/server"
	"go.uber.org/zap"
)

type DrainMode int

const (
	// One frame per connection per tick.
	DrainMode_Single DrainMode = iota
	// Frames until would-block, capped at MaxFramesPerTick.
	DrainMode_UntilEmpty
)

func (m DrainMode) String() string {
	if m == DrainMode_UntilEmpty {
		return "until_empty"
	}
	return "single"
}

func ParseDrainMode(s string) (DrainMode, error) {
	switch strings.ToLower(s) {
	case "", "single":
		return DrainMode_Single, nil
	case "until_empty":
		return DrainMode_UntilEmpty, nil
	}
	return DrainMode_Single, fmt.Errorf("unknown drain mode %q", s)
}

type PumpParams struct {
	Store            *internal.ConnectionStore
	Dispatcher       *Dispatcher
	DrainMode        DrainMode
	MaxFramesPerTick int
	Metrics          *Metrics
	Logger           *zap.Logger
}

// Pump moves inbound frames from installed connections to the Dispatcher,
// without ever waiting on the network.
type Pump struct {
	store            *internal.ConnectionStore
	dispatcher       *Dispatcher
	mode             DrainMode
	maxFramesPerTick int
	metrics          *Metrics
	log              *zap.Logger
}

func CreatePump(params PumpParams) *Pump {
	logger := params.Logger
	if logger == nil {
		logger = zap.Must(zap.NewDevelopment())
	}
	metrics := params.Metrics
	if metrics == nil {
		metrics = CreateMetrics()
	}
	maxFrames := params.MaxFramesPerTick
	if maxFrames <= 0 {
		maxFrames = 64
	}

	return &Pump{
		store:            params.Store,
		dispatcher:       params.Dispatcher,
		mode:             params.DrainMode,
		maxFramesPerTick: maxFrames,
		metrics:          metrics,
		log:              logger.With(zap.String("handler", "Pump")),
	}
}

// Tick reads from every installed connection and returns how many frames were
// dispatched.
func (p *Pump) Tick(now time.Time) int {
	dispatched := 0
	for _, slotId := range p.store.Slots() {
		dispatched += p.pumpSlot(slotId, now)
	}
	return dispatched
}

func (p *Pump) pumpSlot(slotId uint32, now time.Time) int {
	connection, err := p.store.Get(slotId)
	if err != nil {
		return 0
	}

	limit := 1
	if p.mode == DrainMode_UntilEmpty {
		limit = p.maxFramesPerTick
	}

	dispatched := 0
	for dispatched < limit {
		frame, readErr := connection.Conn.TryRead()
		if readErr != nil {
			if !errors.IsWouldBlock(readErr) {
				p.onReadError(slotId, readErr)
			}
			break
		}

		p.metrics.FramesReceived.Inc()
		p.store.MarkRecv(slotId, now.UnixMilli())

		env, parseErr := server.ParseEnvelope(frame)
		if parseErr != nil {
			p.log.Warn("Undecodable frame, treating as empty action",
				zap.Uint32("slotId", slotId), zap.Int("size", len(frame)), zap.Error(parseErr))
			p.metrics.FramesUndecodable.WithLabelValues(undecodableReason(parseErr)).Inc()
		}

		p.dispatcher.Dispatch(env)
		dispatched++
	}
	return dispatched
}

func undecodableReason(err error) string {
	var unknown *errors.UnknownActionType
	if errors.As(err, &unknown) {
		return "unknown_action"
	}
	return "malformed"
}

func (p *Pump) onReadError(slotId uint32, err error) {
	p.metrics.ReadErrors.Inc()
	isNew, _ := p.store.RecordReadError(slotId, err)
	if isNew {
		p.log.Error("Failed to read from connection", zap.Uint32("slotId", slotId), zap.Error(err))
	}
}
