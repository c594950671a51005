package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sessamekesh/duckpond-client/internal/bot"
	"github.com/sessamekesh/duckpond-client/internal/config"
	"github.com/sessamekesh/duckpond-client/internal/engine"
	"github.com/sessamekesh/duckpond-client/internal/logging"
	"github.com/sessamekesh/duckpond-client/internal/status"
	"github.com/sessamekesh/duckpond-client/pkg/message/server"
	"github.com/sessamekesh/duckpond-client/pkg/netcode"
	"github.com/sessamekesh/duckpond-client/pkg/roster"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func newRunCmd() *cobra.Command {
	v := viper.New()
	var configFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to a pond and play",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, configFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()
			return run(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "YAML, JSON or TOML config file")
	if err := config.BindFlags(cmd.Flags(), v); err != nil {
		panic(err)
	}
	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	logger, cleanup, err := logging.Build(logging.Params{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer cleanup()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sessionConfig := cfg.SessionConfig()
	sessionConfig.Metrics = netcode.CreateMetrics(netcode.WithRegistry(registry))
	sessionConfig.Logger = logger
	session := netcode.CreateSession(sessionConfig)

	pond := roster.CreateRoster(logger)
	pond.Attach(session.Bus())
	attachPondLogger(session, logger)

	e := engine.CreateEngine(engine.EngineParams{
		TickRate: cfg.TickInterval(),
		Logger:   logger,
	})
	session.Register(e)

	wanderer := bot.CreateWanderer(bot.WanderParams{
		Seed:       time.Now().UnixNano(),
		Wander:     cfg.Wander,
		QuackEvery: cfg.QuackEvery,
	})
	joined := false
	e.AddSystem("client.input", func(ctx context.Context, tick engine.TickInfo) {
		if !session.Connected() {
			return
		}
		if !joined {
			joined = true
			logger.Info("Joining pond", zap.String("name", cfg.FriendlyName))
			session.Join(cfg.FriendlyName)
			return
		}
		actions := wanderer.Tick(tick.Delta)
		if actions.Move != nil {
			session.Move(*actions.Move)
		}
		if actions.Quack {
			session.Quack()
		}
	})

	wg := sync.WaitGroup{}
	if cfg.MetricsAddr != "" {
		statusServer := status.CreateServer(status.Params{
			Addr:     cfg.MetricsAddr,
			Health:   session,
			Gatherer: registry,
			Logger:   logger,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := statusServer.Start(ctx); err != nil {
				logger.Error("Status server stopped", zap.Error(err))
			}
		}()
	}

	logger.Info("Starting duck pond client", zap.String("url", cfg.ServerUrl), zap.String("version", version))
	e.Run(ctx)
	wg.Wait()

	self, ok := pond.Self()
	if ok {
		logger.Info("Left the pond", zap.String("name", self.Name), zap.Uint64("score", self.Score))
	}
	return nil
}

// attachPondLogger narrates the pond at info level.
func attachPondLogger(session *netcode.Session, logger *zap.Logger) {
	log := logger.With(zap.String("handler", "Pond"))

	session.Bus().Subscribe("pond-logger", func(ev server.Event) {
		switch e := ev.(type) {
		case server.YouJoined:
			log.Info("Joined pond", zap.String("uuid", e.Data.PlayerUuid), zap.String("color", e.Data.Color))
		case server.OtherPlayerJoined:
			log.Info("Duck joined", zap.String("name", e.Data.PlayerFriendlyName))
		case server.OtherPlayerQuacked:
			log.Info("Quack!", zap.String("name", e.Data.PlayerFriendlyName), zap.Float32("pitch", e.Data.QuackPitch))
		case server.YouGotCrackers:
			log.Info("Got crackers", zap.Uint64("score", e.Data.NewPlayerScore))
		case server.OtherPlayerGotCrackers:
			log.Info("Someone else got crackers", zap.String("name", e.Data.PlayerFriendlyName))
		case server.YouDied:
			log.Warn("You died")
		case server.UserDisconnected:
			log.Info("Duck left", zap.String("uuid", e.Data.DisconnectedPlayerUuid))
		case server.LeaderboardUpdate:
			log.Info("Leaderboard",
				zap.Uint64("yourPoints", e.Data.YourPoints),
				zap.Uint64("yourPlace", e.Data.YourLeaderboardPlace),
				zap.Int("ranked", len(e.Data.Entries())))
		}
	})
}
