package netcode

import (
	"context"
	"time"

	"github.com/sessamekesh/duckpond-client/internal"
	"github.com/sessamekesh/duckpond-client/internal/engine"
	"github.com/sessamekesh/duckpond-client/pkg/errors"
	"github.com/sessamekesh/duckpond-client/pkg/events"
	"github.com/sessamekesh/duckpond-client/pkg/message/client"
	"github.com/sessamekesh/duckpond-client/pkg/transport"
	"go.uber.org/zap"
)

const DefaultServerUrl = "ws://127.0.0.1:8000/ws"

// SetupConnection asks the bootstrap system to start a handshake.
type SetupConnection struct {
	Reason string
}

type SessionConfig struct {
	ServerUrl        string
	HandshakeTimeout time.Duration

	ReadBufferFrames   int
	WriteBufferFrames  int
	MaxReadMessageSize int64

	DrainMode          DrainMode
	MaxFramesPerTick   int
	PayloadErrorPolicy PayloadErrorPolicy

	// Send short action tags (j, m, q, i) instead of the long ones.
	ShortTags bool

	// Dial overrides the WebSocket handshake, mostly for tests.
	Dial func(ctx context.Context) (transport.Conn, error)

	Bus     *events.Bus
	Metrics *Metrics
	Logger  *zap.Logger
}

type Health struct {
	BootstrapState string `json:"bootstrap_state"`
	Connections    int    `json:"connections"`
	Ready          bool   `json:"ready"`
	LastError      string `json:"last_error,omitempty"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
}

// Session is the client's network state: one connection slot, the bootstrap
// that fills it, and the per-tick pump and relays around it.
type Session struct {
	config SessionConfig

	store     *internal.ConnectionStore
	bootstrap *transport.Bootstrap[engine.Command]
	commands  *engine.CommandQueue
	startTime time.Time

	bus        *events.Bus
	dispatcher *Dispatcher
	pump       *Pump

	setupRequests *events.Queue[SetupConnection]
	joins         *events.Queue[JoinIntent]
	moves         *events.Queue[MoveIntent]
	quacks        *events.Queue[QuackIntent]
	interacts     *events.Queue[InteractIntent]

	joinRelay     *Relay[JoinIntent]
	moveRelay     *Relay[MoveIntent]
	quackRelay    *Relay[QuackIntent]
	interactRelay *Relay[InteractIntent]

	metrics *Metrics
	log     *zap.Logger
}

func CreateSession(config SessionConfig) *Session {
	logger := config.Logger
	if logger == nil {
		logger = zap.Must(zap.NewDevelopment())
	}
	if config.ServerUrl == "" {
		config.ServerUrl = DefaultServerUrl
	}

	metrics := config.Metrics
	if metrics == nil {
		metrics = CreateMetrics()
	}
	bus := config.Bus
	if bus == nil {
		bus = events.CreateBus(logger)
	}

	store := internal.CreateConnectionStore(1)

	dispatcher := CreateDispatcher(DispatcherParams{
		Publisher: bus,
		Policy:    config.PayloadErrorPolicy,
		Metrics:   metrics,
		Logger:    logger,
	})

	s := &Session{
		config:    config,
		store:     store,
		commands:  &engine.CommandQueue{},
		startTime: time.Now(),

		bus:        bus,
		dispatcher: dispatcher,
		pump: CreatePump(PumpParams{
			Store:            store,
			Dispatcher:       dispatcher,
			DrainMode:        config.DrainMode,
			MaxFramesPerTick: config.MaxFramesPerTick,
			Metrics:          metrics,
			Logger:           logger,
		}),

		setupRequests: events.CreateQueue[SetupConnection](),
		joins:         events.CreateQueue[JoinIntent](),
		moves:         events.CreateQueue[MoveIntent](),
		quacks:        events.CreateQueue[QuackIntent](),
		interacts:     events.CreateQueue[InteractIntent](),

		metrics: metrics,
		log:     logger.With(zap.String("handler", "Session")),
	}

	s.bootstrap = transport.CreateBootstrap(transport.BootstrapParams[engine.Command]{
		Task:   s.connect,
		Logger: logger,
	})

	serializer := client.ClientMessageSerializer{ShortTags: config.ShortTags}
	relayParams := RelayParams{Store: store, Metrics: metrics, Logger: logger}

	s.joinRelay = CreateRelay("join", s.joins, func(i JoinIntent) ([]byte, error) {
		return serializer.SerializeJoin(i.FriendlyName)
	}, relayParams)
	s.moveRelay = CreateRelay("move", s.moves, func(i MoveIntent) ([]byte, error) {
		return serializer.SerializeMove(i.Direction.X(), i.Direction.Y())
	}, relayParams)
	s.quackRelay = CreateRelay("quack", s.quacks, func(QuackIntent) ([]byte, error) {
		return serializer.SerializeQuack()
	}, relayParams)
	s.interactRelay = CreateRelay("interact", s.interacts, func(InteractIntent) ([]byte, error) {
		return serializer.SerializeInteract()
	}, relayParams)

	return s
}

func (s *Session) dial(ctx context.Context) (transport.Conn, error) {
	if s.config.Dial != nil {
		return s.config.Dial(ctx)
	}
	conn, err := transport.DialWebsocket(ctx, transport.WebsocketDialParams{
		Url:                s.config.ServerUrl,
		HandshakeTimeout:   s.config.HandshakeTimeout,
		ReadBufferFrames:   s.config.ReadBufferFrames,
		WriteBufferFrames:  s.config.WriteBufferFrames,
		MaxReadMessageSize: s.config.MaxReadMessageSize,
		Logger:             s.log,
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// connect runs off the tick. The returned command installs the connection when
// the tick applies it.
func (s *Session) connect(ctx context.Context) (engine.Command, error) {
	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	return func() { s.install(conn) }, nil
}

func (s *Session) install(conn transport.Conn) {
	slotId := s.store.GetNewSlotId()
	if err := s.store.Install(slotId, "WebSocket", conn, time.Now().UnixMilli()); err != nil {
		s.log.Error("Failed to install connection, closing it", zap.Error(err))
		conn.Close()
		return
	}
	s.metrics.InstalledConnCount.Set(float64(s.store.Count()))
	s.log.Info("Connection installed", zap.Uint32("slotId", slotId))
}

// Register adds the session's systems to the engine, in tick order.
func (s *Session) Register(e *engine.Engine) {
	s.commands = e.Commands()

	e.AddStartupSystem("netcode.setup", func(ctx context.Context, tick engine.TickInfo) {
		s.RequestConnection("startup")
	})
	e.AddSystem("netcode.bootstrap", func(ctx context.Context, tick engine.TickInfo) {
		s.BootstrapTick(ctx)
	})
	e.AddSystem("netcode.apply_commands", func(ctx context.Context, tick engine.TickInfo) {
		e.ApplyCommands()
	})
	e.AddSystem("netcode.pump", func(ctx context.Context, tick engine.TickInfo) {
		s.pump.Tick(tick.Now)
	})
	e.AddSystem("netcode.relays", func(ctx context.Context, tick engine.TickInfo) {
		s.RelayTick(tick.Now)
	})
	e.AddSystem("netcode.flush", func(ctx context.Context, tick engine.TickInfo) {
		s.bus.Flush()
	})
	e.AddShutdownSystem("netcode.shutdown", func(ctx context.Context, tick engine.TickInfo) {
		s.Close()
	})
}

// RequestConnection queues a handshake for the next bootstrap tick. It is the
// only way to try again after a failed handshake.
func (s *Session) RequestConnection(reason string) {
	s.setupRequests.Push(SetupConnection{Reason: reason})
}

// BootstrapTick consumes setup requests and polls the in-flight handshake.
func (s *Session) BootstrapTick(ctx context.Context) {
	for _, req := range s.setupRequests.Drain() {
		if err := s.bootstrap.Start(ctx); err != nil {
			s.log.Warn("Ignoring connection request", zap.String("reason", req.Reason), zap.Error(err))
			continue
		}
		s.log.Info("Connecting to game server", zap.String("url", s.config.ServerUrl), zap.String("reason", req.Reason))
	}

	cmd, completed, err := s.bootstrap.Poll()
	if completed && err == nil {
		s.commands.Push(cmd)
	}
	s.metrics.BootstrapState.Set(float64(s.bootstrap.State()))
}

func (s *Session) PumpTick(now time.Time) int {
	return s.pump.Tick(now)
}

func (s *Session) RelayTick(now time.Time) int {
	sent := s.joinRelay.Tick(now)
	sent += s.moveRelay.Tick(now)
	sent += s.quackRelay.Tick(now)
	sent += s.interactRelay.Tick(now)
	return sent
}

func (s *Session) Bus() *events.Bus {
	return s.bus
}

func (s *Session) Metrics() *Metrics {
	return s.metrics
}

func (s *Session) Join(friendlyName string) {
	s.joins.Push(JoinIntent{FriendlyName: friendlyName})
}

func (s *Session) Move(intent MoveIntent) {
	s.moves.Push(intent)
}

func (s *Session) Quack() {
	s.quacks.Push(QuackIntent{})
}

func (s *Session) Interact() {
	s.interacts.Push(InteractIntent{})
}

// Connected reports whether a connection is installed. Safe from any goroutine.
func (s *Session) Connected() bool {
	return s.store.Count() > 0
}

func (s *Session) State() transport.BootstrapState {
	return s.bootstrap.State()
}

// Health is safe to call from any goroutine.
func (s *Session) Health() Health {
	state := s.bootstrap.State()
	connections := s.store.Count()
	h := Health{
		BootstrapState: state.String(),
		Connections:    connections,
		Ready:          state == transport.BootstrapState_Ready && connections > 0,
		UptimeSeconds:  int64(time.Since(s.startTime).Seconds()),
	}
	if err := s.bootstrap.LastError(); err != nil {
		h.LastError = err.Error()
	}
	return h
}

// Close cancels a pending handshake and closes every installed connection. A
// handshake that completed after the last tick is installed first so that it
// is closed too.
func (s *Session) Close() error {
	s.bootstrap.Cancel()
	if cmd, completed, err := s.bootstrap.Await(); completed && err == nil {
		cmd()
	}
	err := s.store.CloseAll()
	s.metrics.InstalledConnCount.Set(0)
	if err != nil && !errors.Is(err, errors.ErrConnectionClosed) {
		s.log.Warn("Error closing connections", zap.Error(err))
		return err
	}
	return nil
}
