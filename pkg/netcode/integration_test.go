package netcode

import (
	"context"
	"testing"
	"time"

	"github.com/sessamekesh/duckpond-client/internal/engine"
	"github.com/sessamekesh/duckpond-client/pkg/message/client"
	"github.com/sessamekesh/duckpond-client/pkg/message/server"
	"github.com/sessamekesh/duckpond-client/pkg/pondtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSessionAgainstPondServer(t *testing.T) {
	pond := pondtest.CreatePondServer(pondtest.PondServerParams{
		AllowAllHosts: true,
		AutoRespond:   true,
		Logger:        zap.NewNop(),
	})
	pond.Start()
	defer pond.Close()

	session := CreateSession(SessionConfig{
		ServerUrl:        pond.WsUrl(),
		HandshakeTimeout: 5 * time.Second,
		DrainMode:        DrainMode_UntilEmpty,
		Logger:           zap.NewNop(),
	})
	defer session.Close()

	e := engine.CreateEngine(engine.EngineParams{Logger: zap.NewNop()})
	session.Register(e)

	var joined []server.YouJoined
	session.Bus().Subscribe("test", func(ev server.Event) {
		joined = append(joined, ev.(server.YouJoined))
	}, server.ActionType_YouJoined)

	tick := func() { e.Tick(context.Background(), time.Now()) }

	require.Eventually(t, func() bool {
		tick()
		return session.Connected()
	}, 5*time.Second, time.Millisecond)

	session.Join("Mallard")
	session.Move(MoveIntentFromAxes(1, 0))

	require.Eventually(t, func() bool {
		tick()
		return len(joined) == 1
	}, 5*time.Second, time.Millisecond)
	assert.Equal(t, "Mallard", joined[0].Data.PlayerFriendlyName)

	var actions []client.ActionType
	for len(actions) < 2 {
		select {
		case got := <-pond.Received():
			actions = append(actions, got.Message.ActionType)
		case <-time.After(5 * time.Second):
			t.Fatal("pond never received intents")
		}
	}
	assert.Equal(t, []client.ActionType{client.ActionType_Join, client.ActionType_Move}, actions)
}
