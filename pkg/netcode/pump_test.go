package netcode

import (
	goerrs "errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sessamekesh/duckpond-client/internal"
	"github.com/sessamekesh/duckpond-client/pkg/message/server"
	"github.com/sessamekesh/duckpond-client/pkg/pondtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func createTestPump(t *testing.T, mode DrainMode, maxFrames int) (*Pump, *pondtest.FakeConn, *recordingPublisher, *Metrics, *internal.ConnectionStore) {
	t.Helper()
	store := internal.CreateConnectionStore(1)
	conn := pondtest.CreateFakeConn(0)
	require.NoError(t, store.Install(store.GetNewSlotId(), "fake", conn, 0))

	d, pub, metrics := createTestDispatcher(PayloadErrorPolicy_SubstitutePlaceholder)
	p := CreatePump(PumpParams{
		Store:            store,
		Dispatcher:       d,
		DrainMode:        mode,
		MaxFramesPerTick: maxFrames,
		Metrics:          metrics,
		Logger:           zap.NewNop(),
	})
	return p, conn, pub, metrics, store
}

func quackedUuid(t *testing.T, ev server.Event) string {
	t.Helper()
	q, ok := ev.(server.OtherPlayerQuacked)
	require.True(t, ok)
	return q.Data.PlayerUuid
}

func TestPumpSingleModeDeliversOneFramePerTick(t *testing.T) {
	p, conn, pub, _, _ := createTestPump(t, DrainMode_Single, 0)
	conn.Inject(
		`{"action_type":"opq","data":{"player_uuid":"u1","player_friendly_name":"A","player_x_position":0,"player_y_position":0,"quack_pitch":1}}`,
		`{"action_type":"opq","data":{"player_uuid":"u2","player_friendly_name":"B","player_x_position":0,"player_y_position":0,"quack_pitch":1}}`,
		`{"action_type":"opq","data":{"player_uuid":"u3","player_friendly_name":"C","player_x_position":0,"player_y_position":0,"quack_pitch":1}}`,
	)

	now := time.Now()
	for i := 1; i <= 3; i++ {
		assert.Equal(t, 1, p.Tick(now))
		assert.Len(t, pub.events, i)
	}
	assert.Equal(t, 0, p.Tick(now))

	assert.Equal(t, "u1", quackedUuid(t, pub.events[0]))
	assert.Equal(t, "u2", quackedUuid(t, pub.events[1]))
	assert.Equal(t, "u3", quackedUuid(t, pub.events[2]))
}

func TestPumpUntilEmptyIsBounded(t *testing.T) {
	p, conn, pub, _, _ := createTestPump(t, DrainMode_UntilEmpty, 2)
	for i := 0; i < 5; i++ {
		conn.Inject(`{"action_type":"ud","data":{"disconnected_player_uuid":"x"}}`)
	}

	assert.Equal(t, 2, p.Tick(time.Now()))
	assert.Equal(t, 2, p.Tick(time.Now()))
	assert.Equal(t, 1, p.Tick(time.Now()))
	assert.Len(t, pub.events, 5)
}

func TestPumpWouldBlockIsSilent(t *testing.T) {
	p, conn, pub, metrics, _ := createTestPump(t, DrainMode_Single, 0)

	assert.Equal(t, 0, p.Tick(time.Now()))
	assert.Equal(t, 1, conn.TryReadCalls())
	assert.Empty(t, pub.events)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.ReadErrors))
}

func TestPumpLeaderboardPublishesOnce(t *testing.T) {
	p, conn, pub, _, _ := createTestPump(t, DrainMode_Single, 0)
	conn.Inject(`{"action_type":"lu","data":{"your_points":42,"your_leaderboard_place":1}}`)

	p.Tick(time.Now())
	p.Tick(time.Now())

	require.Len(t, pub.events, 1)
	lu, ok := pub.events[0].(server.LeaderboardUpdate)
	require.True(t, ok)
	assert.Equal(t, uint64(42), lu.Data.YourPoints)
}

func TestPumpMalformedFrameBecomesEmpty(t *testing.T) {
	p, conn, pub, metrics, _ := createTestPump(t, DrainMode_Single, 0)
	conn.Inject(`{{{`, `{"action_type":"quack_loudly","data":{}}`)

	assert.Equal(t, 1, p.Tick(time.Now()))
	assert.Equal(t, 1, p.Tick(time.Now()))
	assert.Empty(t, pub.events)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FramesUndecodable.WithLabelValues("malformed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FramesUndecodable.WithLabelValues("unknown_action")))
}

func TestPumpReadErrorKeepsConnectionInstalled(t *testing.T) {
	p, conn, _, metrics, store := createTestPump(t, DrainMode_UntilEmpty, 8)
	conn.FailReads(goerrs.New("connection reset by peer"))

	for i := 0; i < 3; i++ {
		assert.NotPanics(t, func() { p.Tick(time.Now()) })
	}

	assert.Equal(t, 1, store.Count())
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.ReadErrors))
	meta, err := store.Get(store.Slots()[0])
	require.NoError(t, err)
	assert.Equal(t, "connection reset by peer", meta.LastReadError)
}
