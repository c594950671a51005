package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Command is a deferred mutation. Commands may be pushed from any goroutine and
// are applied on the tick goroutine at the end of the tick that observes them.
type Command func()

type CommandQueue struct {
	mut      sync.Mutex
	commands []Command
}

func (q *CommandQueue) Push(cmd Command) {
	q.mut.Lock()
	defer q.mut.Unlock()
	q.commands = append(q.commands, cmd)
}

func (q *CommandQueue) drain() []Command {
	q.mut.Lock()
	defer q.mut.Unlock()
	cmds := q.commands
	q.commands = nil
	return cmds
}

func (q *CommandQueue) Len() int {
	q.mut.Lock()
	defer q.mut.Unlock()
	return len(q.commands)
}

type TickInfo struct {
	Number uint64
	Delta  time.Duration
	Now    time.Time
}

// System is one step of the tick. Systems run in the order they are added.
type System struct {
	Name string
	Run  func(ctx context.Context, tick TickInfo)
}

type SystemPanic struct {
	System string
	Value  any
}

func (e *SystemPanic) Error() string {
	return fmt.Sprintf("System %s panicked: %v", e.System, e.Value)
}

type EngineParams struct {
	TickRate time.Duration
	Logger   *zap.Logger
}

type Engine struct {
	tickRate time.Duration

	startup  []System
	systems  []System
	shutdown []System

	commands *CommandQueue

	tickCount atomic.Uint64
	started   bool
	lastTick  time.Time

	log *zap.Logger
}

func CreateEngine(params EngineParams) *Engine {
	logger := params.Logger
	if logger == nil {
		logger = zap.Must(zap.NewDevelopment())
	}

	tickRate := params.TickRate
	if tickRate <= 0 {
		tickRate = time.Second / 60
	}

	return &Engine{
		tickRate: tickRate,
		commands: &CommandQueue{},
		log:      logger.With(zap.String("handler", "Engine")),
	}
}

func (e *Engine) Commands() *CommandQueue {
	return e.commands
}

func (e *Engine) TickCount() uint64 {
	return e.tickCount.Load()
}

// AddStartupSystem registers a system run once, before the first tick's systems.
func (e *Engine) AddStartupSystem(name string, run func(ctx context.Context, tick TickInfo)) {
	e.startup = append(e.startup, System{Name: name, Run: run})
}

func (e *Engine) AddSystem(name string, run func(ctx context.Context, tick TickInfo)) {
	e.systems = append(e.systems, System{Name: name, Run: run})
}

// AddShutdownSystem registers a system run once when Run returns.
func (e *Engine) AddShutdownSystem(name string, run func(ctx context.Context, tick TickInfo)) {
	e.shutdown = append(e.shutdown, System{Name: name, Run: run})
}

func (e *Engine) runSystem(ctx context.Context, s System, tick TickInfo) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("System panicked, continuing", zap.Error(&SystemPanic{System: s.Name, Value: r}))
		}
	}()
	s.Run(ctx, tick)
}

// ApplyCommands runs every queued command now. Registered as a system, it
// acts as a sync point so later systems in the same tick see the mutations.
func (e *Engine) ApplyCommands() {
	for _, cmd := range e.commands.drain() {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.log.Error("Deferred command panicked", zap.Any("panic", r))
				}
			}()
			cmd()
		}()
	}
}

// Tick runs one full tick: startup systems (first tick only), every system in
// order, then the commands queued so far.
func (e *Engine) Tick(ctx context.Context, now time.Time) {
	info := TickInfo{
		Number: e.tickCount.Inc(),
		Now:    now,
	}
	if !e.lastTick.IsZero() {
		info.Delta = now.Sub(e.lastTick)
	}
	e.lastTick = now

	if !e.started {
		e.started = true
		for _, s := range e.startup {
			e.runSystem(ctx, s, info)
		}
	}

	for _, s := range e.systems {
		e.runSystem(ctx, s, info)
	}

	e.ApplyCommands()
}

// Run ticks at the configured rate until ctx is done, then runs shutdown systems.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.tickRate)
	defer ticker.Stop()

	e.log.Info("Starting tick loop", zap.Duration("tickRate", e.tickRate))

	for {
		select {
		case <-ctx.Done():
			e.log.Info("Tick loop stopping", zap.Uint64("ticks", e.TickCount()))
			info := TickInfo{Number: e.TickCount(), Now: time.Now()}
			for _, s := range e.shutdown {
				e.runSystem(context.Background(), s, info)
			}
			e.ApplyCommands()
			return ctx.Err()
		case now := <-ticker.C:
			e.Tick(ctx, now)
		}
	}
}
