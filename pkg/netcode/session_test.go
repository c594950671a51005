package netcode

import (
	"context"
	goerrs "errors"
	"testing"
	"time"

	"github.com/sessamekesh/duckpond-client/internal/engine"
	"github.com/sessamekesh/duckpond-client/pkg/message/server"
	"github.com/sessamekesh/duckpond-client/pkg/pondtest"
	"github.com/sessamekesh/duckpond-client/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sessionHarness struct {
	session *Session
	engine  *engine.Engine
	conn    *pondtest.FakeConn
	release chan struct{}
}

func createSessionHarness(t *testing.T, dialErr error) *sessionHarness {
	t.Helper()
	h := &sessionHarness{
		conn:    pondtest.CreateFakeConn(0),
		release: make(chan struct{}),
	}
	h.session = CreateSession(SessionConfig{
		Dial: func(ctx context.Context) (transport.Conn, error) {
			select {
			case <-h.release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			if dialErr != nil {
				return nil, dialErr
			}
			return h.conn, nil
		},
		Logger: zap.NewNop(),
	})
	h.engine = engine.CreateEngine(engine.EngineParams{Logger: zap.NewNop()})
	h.session.Register(h.engine)
	return h
}

func (h *sessionHarness) tick() {
	h.engine.Tick(context.Background(), time.Now())
}

func (h *sessionHarness) tickUntil(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		h.tick()
		return cond()
	}, 5*time.Second, time.Millisecond)
}

func TestSessionInstallsConnectionAfterHandshake(t *testing.T) {
	h := createSessionHarness(t, nil)

	h.tick()
	assert.Equal(t, transport.BootstrapState_InFlight, h.session.State())
	assert.False(t, h.session.Connected())
	assert.False(t, h.session.Health().Ready)

	close(h.release)
	h.tickUntil(t, h.session.Connected)

	health := h.session.Health()
	assert.Equal(t, "ready", health.BootstrapState)
	assert.Equal(t, 1, health.Connections)
	assert.True(t, health.Ready)
}

func TestSessionFailedHandshakeLeavesNoConnection(t *testing.T) {
	h := createSessionHarness(t, goerrs.New("connection refused"))
	close(h.release)

	h.tickUntil(t, func() bool { return h.session.State() == transport.BootstrapState_Failed })
	for i := 0; i < 5; i++ {
		h.tick()
	}

	assert.False(t, h.session.Connected())
	assert.Equal(t, transport.BootstrapState_Failed, h.session.State())
	assert.Equal(t, "connection refused", h.session.Health().LastError)
}

func TestSessionIgnoresDuplicateSetupRequest(t *testing.T) {
	h := createSessionHarness(t, nil)
	h.tick()

	h.session.RequestConnection("again")
	h.tick()
	assert.Equal(t, transport.BootstrapState_InFlight, h.session.State())

	close(h.release)
	h.tickUntil(t, h.session.Connected)
	assert.Equal(t, 1, h.session.Health().Connections)
}

func TestSessionEndToEnd(t *testing.T) {
	h := createSessionHarness(t, nil)
	close(h.release)
	h.tickUntil(t, h.session.Connected)

	var got []server.Event
	h.session.Bus().Subscribe("test", func(ev server.Event) { got = append(got, ev) })

	h.session.Join("Mallard")
	h.session.Move(MoveIntentFromAxes(1, 0))
	h.session.Quack()
	h.conn.Inject(`{"action_type":"yj","data":{"player_uuid":"me","player_friendly_name":"Mallard","color":"green","x_position":5,"y_position":6}}`)
	h.tick()

	assert.Equal(t, []string{
		`{"action_type":"join","data":{"friendly_name":"Mallard"}}`,
		`{"action_type":"move","data":{"x_direction":1.0,"y_direction":0.0}}`,
		`{"action_type":"quack","data":{}}`,
	}, h.conn.Written())

	require.Len(t, got, 1)
	joined, ok := got[0].(server.YouJoined)
	require.True(t, ok)
	assert.Equal(t, "green", joined.Data.Color)
}

func TestSessionCloseClosesConnection(t *testing.T) {
	h := createSessionHarness(t, nil)
	close(h.release)
	h.tickUntil(t, h.session.Connected)

	require.NoError(t, h.session.Close())
	assert.True(t, h.conn.IsClosed())
	assert.False(t, h.session.Connected())
}

func TestSessionShutdownCancelsPendingHandshake(t *testing.T) {
	h := createSessionHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	h.engine.Tick(ctx, time.Now())
	assert.Equal(t, transport.BootstrapState_InFlight, h.session.State())

	cancel()
	h.tickUntil(t, func() bool { return h.session.State() == transport.BootstrapState_Failed })
	assert.False(t, h.session.Connected())
}

func TestSessionCloseReleasesLateHandshake(t *testing.T) {
	conn := pondtest.CreateFakeConn(0)
	dialed := make(chan struct{})
	release := make(chan struct{})
	session := CreateSession(SessionConfig{
		Dial: func(ctx context.Context) (transport.Conn, error) {
			close(dialed)
			<-release
			return conn, nil
		},
		Logger: zap.NewNop(),
	})
	e := engine.CreateEngine(engine.EngineParams{Logger: zap.NewNop()})
	session.Register(e)

	e.Tick(context.Background(), time.Now())
	<-dialed
	assert.Equal(t, transport.BootstrapState_InFlight, session.State())

	close(release)
	require.NoError(t, session.Close())
	assert.True(t, conn.IsClosed())
	assert.False(t, session.Connected())
}
