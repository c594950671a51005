package netcode

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sessamekesh/duckpond-client/pkg/message/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingPublisher struct {
	events []server.Event
}

func (p *recordingPublisher) Publish(ev server.Event) {
	p.events = append(p.events, ev)
}

func createTestDispatcher(policy PayloadErrorPolicy) (*Dispatcher, *recordingPublisher, *Metrics) {
	pub := &recordingPublisher{}
	metrics := CreateMetrics()
	return CreateDispatcher(DispatcherParams{
		Publisher: pub,
		Policy:    policy,
		Metrics:   metrics,
		Logger:    zap.NewNop(),
	}), pub, metrics
}

func envelope(t *testing.T, frame string) server.Envelope {
	t.Helper()
	env, err := server.DecodeEnvelope([]byte(frame))
	require.NoError(t, err)
	return env
}

func TestDispatchPublishesOtherPlayerQuacked(t *testing.T) {
	d, pub, metrics := createTestDispatcher(PayloadErrorPolicy_SubstitutePlaceholder)

	outcome := d.Dispatch(envelope(t, `{"action_type":"opq","data":{"player_uuid":"u2","player_friendly_name":"Them",
		"player_x_position":1.0,"player_y_position":2.0,"quack_pitch":0.8}}`))

	assert.Equal(t, DispatchOutcome_Published, outcome)
	require.Len(t, pub.events, 1)
	quack, ok := pub.events[0].(server.OtherPlayerQuacked)
	require.True(t, ok)
	assert.Equal(t, "Them", quack.Data.PlayerFriendlyName)
	assert.Equal(t, float32(0.8), quack.Data.QuackPitch)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EventsPublished.WithLabelValues("other_player_quacked")))
}

func TestDispatchLogsOwnEchoes(t *testing.T) {
	d, pub, metrics := createTestDispatcher(PayloadErrorPolicy_SubstitutePlaceholder)

	assert.Equal(t, DispatchOutcome_Logged, d.Dispatch(envelope(t, `{"action_type":"yq","data":{"player_uuid":"me",
		"player_friendly_name":"Me","player_x_position":0,"player_y_position":0,"quack_pitch":1}}`)))
	assert.Equal(t, DispatchOutcome_Logged, d.Dispatch(envelope(t, `{"action_type":"you_moved","data":{"player_uuid":"me",
		"player_friendly_name":"Me","color":"red","old_x_position":0,"old_y_position":0,"new_x_position":1,"new_y_position":0}}`)))

	assert.Empty(t, pub.events)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EventsLogged.WithLabelValues("you_moved")))
}

func TestDispatchIgnoresEmpty(t *testing.T) {
	d, pub, _ := createTestDispatcher(PayloadErrorPolicy_SubstitutePlaceholder)

	assert.Equal(t, DispatchOutcome_Ignored, d.Dispatch(server.EmptyEnvelope()))
	assert.Equal(t, DispatchOutcome_Ignored, d.Dispatch(envelope(t, `{"action_type":"e","data":null}`)))
	assert.Empty(t, pub.events)
}

func TestDispatchSubstitutesPlaceholder(t *testing.T) {
	d, pub, metrics := createTestDispatcher(PayloadErrorPolicy_SubstitutePlaceholder)

	outcome := d.Dispatch(envelope(t, `{"action_type":"ygc","data":{"player_uuid":"me","player_friendly_name":"Me",
		"old_cracker_x_position":1,"old_cracker_y_position":2,"new_cracker_x_position":3,"new_cracker_y_position":4,
		"old_cracker_point_value":5,"new_cracker_point_value":10}}`))

	assert.Equal(t, DispatchOutcome_PublishedPlaceholder, outcome)
	require.Len(t, pub.events, 1)
	crackers, ok := pub.events[0].(server.YouGotCrackers)
	require.True(t, ok)
	assert.Equal(t, uint64(0), crackers.Data.NewPlayerScore)
	assert.Equal(t, server.PlaceholderString, crackers.Data.PlayerUuid)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PayloadErrors.WithLabelValues("you_got_crackers", "placeholder")))
}

func TestDispatchDropsUnderDropPolicy(t *testing.T) {
	d, pub, metrics := createTestDispatcher(PayloadErrorPolicy_DropEvent)

	outcome := d.Dispatch(envelope(t, `{"action_type":"ud","data":{}}`))

	assert.Equal(t, DispatchOutcome_Dropped, outcome)
	assert.Empty(t, pub.events)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PayloadErrors.WithLabelValues("user_disconnected", "dropped")))
}

func TestDispatchCoversEveryAction(t *testing.T) {
	d, pub, _ := createTestDispatcher(PayloadErrorPolicy_SubstitutePlaceholder)

	published := 0
	for _, a := range server.AllActionTypes {
		outcome := d.Dispatch(server.Envelope{ActionType: a, Data: []byte("null")})
		switch a {
		case server.ActionType_Empty:
			assert.Equal(t, DispatchOutcome_Ignored, outcome)
		case server.ActionType_YouQuacked, server.ActionType_YouMoved:
			assert.Equal(t, DispatchOutcome_Logged, outcome)
		default:
			assert.Equal(t, DispatchOutcome_PublishedPlaceholder, outcome, a.String())
			published++
		}
	}
	assert.Len(t, pub.events, published)
}

func TestParsePolicyAndDrainMode(t *testing.T) {
	p, err := ParsePayloadErrorPolicy("drop")
	require.NoError(t, err)
	assert.Equal(t, PayloadErrorPolicy_DropEvent, p)
	_, err = ParsePayloadErrorPolicy("retry")
	assert.Error(t, err)

	m, err := ParseDrainMode("until_empty")
	require.NoError(t, err)
	assert.Equal(t, DrainMode_UntilEmpty, m)
	assert.Equal(t, "single", DrainMode_Single.String())
	_, err = ParseDrainMode("all")
	assert.Error(t, err)
}
