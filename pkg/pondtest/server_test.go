package pondtest

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sessamekesh/duckpond-client/pkg/errors"
	"github.com/sessamekesh/duckpond-client/pkg/message/client"
	"github.com/sessamekesh/duckpond-client/pkg/message/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startPond(t *testing.T, autoRespond bool) *PondServer {
	t.Helper()
	ps := CreatePondServer(PondServerParams{
		AllowAllHosts: true,
		AutoRespond:   autoRespond,
		CrackerSeed:   1,
		Logger:        zap.NewNop(),
	})
	ps.Start()
	t.Cleanup(ps.Close)
	return ps
}

func dialPond(t *testing.T, ps *PondServer) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(ps.WsUrl(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func readEvent(t *testing.T, c *websocket.Conn) server.Event {
	t.Helper()
	c.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, payload, err := c.ReadMessage()
	require.NoError(t, err)
	env, err := server.DecodeEnvelope(payload)
	require.NoError(t, err)
	ev, err := server.DecodeEvent(env)
	require.NoError(t, err)
	return ev
}

func sendJoin(t *testing.T, c *websocket.Conn, name string) {
	t.Helper()
	frame, err := client.ClientMessageSerializer{}.SerializeJoin(name)
	require.NoError(t, err)
	require.NoError(t, c.WriteMessage(websocket.TextMessage, frame))
}

func TestPondRecordsClientFrames(t *testing.T) {
	ps := startPond(t, false)
	c := dialPond(t, ps)

	frame, err := client.ClientMessageSerializer{ShortTags: true}.SerializeMove(1, 0)
	require.NoError(t, err)
	require.NoError(t, c.WriteMessage(websocket.TextMessage, frame))

	select {
	case got := <-ps.Received():
		require.NotNil(t, got.Message)
		assert.Equal(t, client.ActionType_Move, got.Message.ActionType)
		assert.Equal(t, float32(1), float32(got.Message.Move.XDirection))
		assert.Equal(t, string(frame), got.Raw)
	case <-time.After(5 * time.Second):
		t.Fatal("frame never recorded")
	}
}

func TestPondJoinAnnouncesToOthers(t *testing.T) {
	ps := startPond(t, true)

	first := dialPond(t, ps)
	sendJoin(t, first, "First")
	youJoined, ok := readEvent(t, first).(server.YouJoined)
	require.True(t, ok)
	assert.Equal(t, "First", youJoined.Data.PlayerFriendlyName)
	assert.NotZero(t, youJoined.Data.CrackerPoints)
	_, ok = readEvent(t, first).(server.LeaderboardUpdate)
	require.True(t, ok)

	second := dialPond(t, ps)
	sendJoin(t, second, "Second")

	_, ok = readEvent(t, second).(server.YouJoined)
	require.True(t, ok)
	existing, ok := readEvent(t, second).(server.OtherPlayerJoined)
	require.True(t, ok)
	assert.Equal(t, youJoined.Data.PlayerUuid, existing.Data.PlayerUuid)

	announced, ok := readEvent(t, first).(server.OtherPlayerJoined)
	require.True(t, ok)
	assert.Equal(t, "Second", announced.Data.PlayerFriendlyName)
}

func TestPondSendRawToPlayer(t *testing.T) {
	ps := startPond(t, false)
	c := dialPond(t, ps)

	var playerUuid string
	select {
	case playerUuid = <-ps.Accepted():
	case <-time.After(5 * time.Second):
		t.Fatal("connection never accepted")
	}

	require.NoError(t, ps.SendRaw(playerUuid, []byte(`not json`)))
	c.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, payload, err := c.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "not json", string(payload))

	assert.Error(t, ps.SendRaw("nobody", []byte("{}")))
}

func TestCheckOrigin(t *testing.T) {
	params := PondServerParams{AllowlistedHosts: []string{"http://pond.local"}, DenylistedHosts: []string{"http://evil.local"}}

	req := func(origin string) *http.Request {
		r, _ := http.NewRequest(http.MethodGet, "/ws", strings.NewReader(""))
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	assert.True(t, checkOrigin(req(""), params))
	assert.True(t, checkOrigin(req("http://pond.local"), params))
	assert.False(t, checkOrigin(req("http://other.local"), params))
	assert.False(t, checkOrigin(req("http://evil.local"), PondServerParams{AllowAllHosts: true, DenylistedHosts: []string{"http://evil.local"}}))
}

func TestPondRejectsDuplicateName(t *testing.T) {
	ps := CreatePondServer(PondServerParams{AutoRespond: true, CrackerSeed: 1, Logger: zap.NewNop()})

	first := &pondPlayer{uuid: uuid.NewString(), outgoing: make(chan []byte, 16)}
	second := &pondPlayer{uuid: uuid.NewString(), outgoing: make(chan []byte, 16)}
	ps.players[first.uuid] = first
	ps.players[second.uuid] = second

	require.NoError(t, ps.onJoin(first, "Mallard"))

	err := ps.onJoin(second, "Mallard")
	var collision *errors.NameCollision
	require.ErrorAs(t, err, &collision)
	assert.Equal(t, "Mallard", collision.Name)
	assert.False(t, second.joined)
	assert.Empty(t, second.outgoing)

	require.NoError(t, ps.onJoin(first, "Mallard"))
	require.NoError(t, ps.onJoin(second, "Teal"))
	assert.True(t, second.joined)
}
