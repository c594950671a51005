package netcode

import (
	"fmt"
	"strings"

	"github.com/sessamekesh/duckpond-client/pkg/message/server"
	"go.uber.org/zap"
)

type PayloadErrorPolicy int

const (
	// Log the decode error and publish the "error"-tagged placeholder event.
	PayloadErrorPolicy_SubstitutePlaceholder PayloadErrorPolicy = iota
	// Log the decode error and publish nothing.
	PayloadErrorPolicy_DropEvent
)

func (p PayloadErrorPolicy) String() string {
	if p == PayloadErrorPolicy_DropEvent {
		return "drop"
	}
	return "placeholder"
}

func ParsePayloadErrorPolicy(s string) (PayloadErrorPolicy, error) {
	switch strings.ToLower(s) {
	case "", "placeholder":
		return PayloadErrorPolicy_SubstitutePlaceholder, nil
	case "drop":
		return PayloadErrorPolicy_DropEvent, nil
	}
	return PayloadErrorPolicy_SubstitutePlaceholder, fmt.Errorf("unknown payload error policy %q", s)
}

type DispatchOutcome int

const (
	DispatchOutcome_Published DispatchOutcome = iota
	DispatchOutcome_PublishedPlaceholder
	DispatchOutcome_Logged
	DispatchOutcome_Ignored
	DispatchOutcome_Dropped
)

// Publisher receives domain events. *events.Bus satisfies it.
type Publisher interface {
	Publish(ev server.Event)
}

type DispatcherParams struct {
	Publisher Publisher
	Policy    PayloadErrorPolicy
	Metrics   *Metrics
	Logger    *zap.Logger
}

// Dispatcher maps each decoded action to exactly one outcome. It keeps no
// state between calls.
type Dispatcher struct {
	publisher Publisher
	policy    PayloadErrorPolicy
	metrics   *Metrics
	log       *zap.Logger
}

func CreateDispatcher(params DispatcherParams) *Dispatcher {
	logger := params.Logger
	if logger == nil {
		logger = zap.Must(zap.NewDevelopment())
	}
	metrics := params.Metrics
	if metrics == nil {
		metrics = CreateMetrics()
	}

	return &Dispatcher{
		publisher: params.Publisher,
		policy:    params.Policy,
		metrics:   metrics,
		log:       logger.With(zap.String("handler", "Dispatcher")),
	}
}

func isLogOnly(a server.ActionType) bool {
	return a == server.ActionType_YouQuacked || a == server.ActionType_YouMoved
}

func (d *Dispatcher) Dispatch(env server.Envelope) DispatchOutcome {
	action := env.ActionType

	if action == server.ActionType_Empty {
		d.log.Debug("Received empty action")
		return DispatchOutcome_Ignored
	}

	ev, err := server.DecodeEvent(env)
	if err != nil {
		if d.policy == PayloadErrorPolicy_DropEvent {
			d.log.Warn("Dropping event with undecodable payload", zap.Stringer("actionType", action), zap.Error(err))
			d.metrics.PayloadErrors.WithLabelValues(action.String(), "dropped").Inc()
			return DispatchOutcome_Dropped
		}
		d.log.Warn("Undecodable payload, substituting placeholder", zap.Stringer("actionType", action), zap.Error(err))
		d.metrics.PayloadErrors.WithLabelValues(action.String(), "placeholder").Inc()
		ev = server.PlaceholderEvent(action)
		if isLogOnly(action) {
			d.metrics.EventsLogged.WithLabelValues(action.String()).Inc()
			return DispatchOutcome_Logged
		}
		d.publish(ev)
		return DispatchOutcome_PublishedPlaceholder
	}

	switch e := ev.(type) {
	case server.YouQuacked:
		d.log.Info("Server acknowledged our quack",
			zap.Float32("x", e.Data.PlayerXPosition),
			zap.Float32("y", e.Data.PlayerYPosition),
			zap.Float32("pitch", e.Data.QuackPitch))
		d.metrics.EventsLogged.WithLabelValues(action.String()).Inc()
		return DispatchOutcome_Logged
	case server.YouMoved:
		d.log.Debug("Server acknowledged our move",
			zap.Float32("x", e.Data.NewXPosition),
			zap.Float32("y", e.Data.NewYPosition))
		d.metrics.EventsLogged.WithLabelValues(action.String()).Inc()
		return DispatchOutcome_Logged
	}

	d.publish(ev)
	return DispatchOutcome_Published
}

func (d *Dispatcher) publish(ev server.Event) {
	if d.publisher != nil {
		d.publisher.Publish(ev)
	}
	d.metrics.EventsPublished.WithLabelValues(ev.ActionType().String()).Inc()
}
