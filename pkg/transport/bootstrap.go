package transport

import (
	"context"
	"sync"

	"github.com/sessamekesh/duckpond-client/pkg/errors"
	"go.uber.org/zap"
)

type BootstrapState int32

const (
	BootstrapState_NotStarted BootstrapState = iota
	BootstrapState_InFlight
	BootstrapState_Ready
	BootstrapState_Failed
)

func (s BootstrapState) String() string {
	switch s {
	case BootstrapState_NotStarted:
		return "not_started"
	case BootstrapState_InFlight:
		return "in_flight"
	case BootstrapState_Ready:
		return "ready"
	case BootstrapState_Failed:
		return "failed"
	}
	return "unknown"
}

// BootstrapTask is the blocking work run off the tick. Its result is handed
// back to the tick thread through Poll, so it should be something the tick can
// apply directly (a deferred command, for example).
type BootstrapTask[T any] func(ctx context.Context) (T, error)

type BootstrapParams[T any] struct {
	Task   BootstrapTask[T]
	Logger *zap.Logger
}

type bootstrapResult[T any] struct {
	value T
	err   error
}

// Bootstrap runs a BootstrapTask exactly once per Start in a background
// goroutine, and lets a polling caller observe completion without blocking.
//
// State transitions: NotStarted -> InFlight -> Ready | Failed. Start is
// rejected while InFlight or Ready; after Failed it may be called again.
type Bootstrap[T any] struct {
	task BootstrapTask[T]

	mut_state sync.Mutex
	state     BootstrapState
	lastErr   error
	result    chan bootstrapResult[T]
	finished  chan struct{}
	cancel    context.CancelFunc

	log *zap.Logger
}

func CreateBootstrap[T any](params BootstrapParams[T]) *Bootstrap[T] {
	logger := params.Logger
	if logger == nil {
		logger = zap.Must(zap.NewDevelopment())
	}

	return &Bootstrap[T]{
		task:  params.Task,
		state: BootstrapState_NotStarted,
		log:   logger.With(zap.String("handler", "Bootstrap")),
	}
}

func (b *Bootstrap[T]) State() BootstrapState {
	b.mut_state.Lock()
	defer b.mut_state.Unlock()
	return b.state
}

// LastError is the error of the most recent failed attempt, if any.
func (b *Bootstrap[T]) LastError() error {
	b.mut_state.Lock()
	defer b.mut_state.Unlock()
	return b.lastErr
}

// Start launches the task. Cancelling ctx aborts an in-flight task; the
// attempt then completes as Failed.
func (b *Bootstrap[T]) Start(ctx context.Context) error {
	b.mut_state.Lock()
	defer b.mut_state.Unlock()

	if b.state == BootstrapState_InFlight || b.state == BootstrapState_Ready {
		return &errors.BootstrapInFlight{State: b.state.String()}
	}

	taskCtx, cancel := context.WithCancel(ctx)
	result := make(chan bootstrapResult[T], 1)
	finished := make(chan struct{})

	b.state = BootstrapState_InFlight
	b.lastErr = nil
	b.result = result
	b.finished = finished
	b.cancel = cancel

	b.log.Info("Starting connection bootstrap")

	go func() {
		defer cancel()
		value, err := b.task(taskCtx)
		result <- bootstrapResult[T]{value: value, err: err}
		close(finished)
	}()

	return nil
}

// Poll checks for completion without blocking. completed is true exactly once
// per Start, on the call that observes the task finishing; value is only
// meaningful when completed is true and err is nil.
func (b *Bootstrap[T]) Poll() (value T, completed bool, err error) {
	b.mut_state.Lock()
	defer b.mut_state.Unlock()

	if b.state != BootstrapState_InFlight {
		return value, false, nil
	}

	select {
	case r := <-b.result:
		b.result = nil
		b.finished = nil
		b.cancel = nil
		if r.err != nil {
			b.state = BootstrapState_Failed
			b.lastErr = r.err
			b.log.Error("Connection bootstrap failed", zap.Error(r.err))
			return value, true, r.err
		}
		b.state = BootstrapState_Ready
		b.log.Info("Connection bootstrap complete")
		return r.value, true, nil
	default:
		return value, false, nil
	}
}

// Cancel aborts an in-flight task. The outcome is still reported by Poll.
func (b *Bootstrap[T]) Cancel() {
	b.mut_state.Lock()
	defer b.mut_state.Unlock()
	if b.cancel != nil {
		b.cancel()
	}
}

// Await blocks until an in-flight task returns, then reports it like Poll. It
// returns immediately when nothing is in flight. Pair it with Cancel on
// shutdown so a handshake that finished late is not leaked.
func (b *Bootstrap[T]) Await() (value T, completed bool, err error) {
	b.mut_state.Lock()
	finished := b.finished
	b.mut_state.Unlock()

	if finished == nil {
		return value, false, nil
	}
	<-finished
	return b.Poll()
}
