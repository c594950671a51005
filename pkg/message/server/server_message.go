package server

import (
	"bytes"
	"encoding/json"

	"github.com/sessamekesh/duckpond-client/pkg/errors"
	"github.com/sessamekesh/duckpond-client/pkg/message"
)

// ActionType enumerates server -> client actions.
type ActionType uint8

const (
	ActionType_YouJoined ActionType = iota
	ActionType_OtherPlayerJoined
	ActionType_YouQuacked
	ActionType_OtherPlayerQuacked
	ActionType_YouMoved
	ActionType_OtherPlayerMoved
	ActionType_YouGotCrackers
	ActionType_OtherPlayerGotCrackers
	ActionType_YouDied
	ActionType_OtherPlayerDied
	ActionType_UserDisconnected
	ActionType_LeaderboardUpdate

	// Sentinel for frames that could not be parsed or carried an unknown tag.
	ActionType_Empty
)

// AllActionTypes lists the closed set in declaration order.
var AllActionTypes = []ActionType{
	ActionType_YouJoined,
	ActionType_OtherPlayerJoined,
	ActionType_YouQuacked,
	ActionType_OtherPlayerQuacked,
	ActionType_YouMoved,
	ActionType_OtherPlayerMoved,
	ActionType_YouGotCrackers,
	ActionType_OtherPlayerGotCrackers,
	ActionType_YouDied,
	ActionType_OtherPlayerDied,
	ActionType_UserDisconnected,
	ActionType_LeaderboardUpdate,
	ActionType_Empty,
}

var longTags = map[ActionType]string{
	ActionType_YouJoined:              "you_joined",
	ActionType_OtherPlayerJoined:      "other_player_joined",
	ActionType_YouQuacked:             "you_quacked",
	ActionType_OtherPlayerQuacked:     "other_player_quacked",
	ActionType_YouMoved:               "you_moved",
	ActionType_OtherPlayerMoved:       "other_player_moved",
	ActionType_YouGotCrackers:         "you_got_crackers",
	ActionType_OtherPlayerGotCrackers: "other_player_got_crackers",
	ActionType_YouDied:                "you_died",
	ActionType_OtherPlayerDied:        "other_player_died",
	ActionType_UserDisconnected:       "user_disconnected",
	ActionType_LeaderboardUpdate:      "leaderboard_update",
	ActionType_Empty:                  "empty",
}

var shortTags = map[ActionType]string{
	ActionType_YouJoined:              "yj",
	ActionType_OtherPlayerJoined:      "opj",
	ActionType_YouQuacked:             "yq",
	ActionType_OtherPlayerQuacked:     "opq",
	ActionType_YouMoved:               "ym",
	ActionType_OtherPlayerMoved:       "opm",
	ActionType_YouGotCrackers:         "ygc",
	ActionType_OtherPlayerGotCrackers: "opgc",
	ActionType_YouDied:                "yd",
	ActionType_OtherPlayerDied:        "opd",
	ActionType_UserDisconnected:       "ud",
	ActionType_LeaderboardUpdate:      "lu",
	ActionType_Empty:                  "e",
}

var tagToActionType = func() map[string]ActionType {
	m := make(map[string]ActionType, len(longTags)*2)
	for a, tag := range longTags {
		m[tag] = a
	}
	for a, tag := range shortTags {
		m[tag] = a
	}
	return m
}()

func ParseActionType(tag string) (ActionType, error) {
	a, has := tagToActionType[tag]
	if !has {
		return ActionType_Empty, &errors.UnknownActionType{
			EnumName: "server.ActionType",
			Tag:      tag,
		}
	}
	return a, nil
}

func (a ActionType) String() string {
	if tag, has := longTags[a]; has {
		return tag
	}
	return longTags[ActionType_Empty]
}

func (a ActionType) ShortString() string {
	if tag, has := shortTags[a]; has {
		return tag
	}
	return shortTags[ActionType_Empty]
}

// Envelope is the wire-level unit. Data stays raw until the dispatcher decodes
// it into the payload type for ActionType.
type Envelope struct {
	ActionType ActionType
	Data       json.RawMessage
}

// EmptyEnvelope is what bad frames degrade to.
func EmptyEnvelope() Envelope {
	return Envelope{
		ActionType: ActionType_Empty,
		Data:       json.RawMessage("null"),
	}
}

type wireEnvelope struct {
	ActionType string          `json:"action_type"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope parses the tag and leaves data untouched.
func DecodeEnvelope(frame []byte) (Envelope, error) {
	var env wireEnvelope
	if err := json.Unmarshal(bytes.TrimSpace(frame), &env); err != nil {
		return EmptyEnvelope(), &errors.MalformedFrame{
			MessageName: "Envelope",
			FrameSize:   len(frame),
			Reason:      err,
		}
	}

	actionType, err := ParseActionType(env.ActionType)
	if err != nil {
		return EmptyEnvelope(), err
	}

	data := env.Data
	if len(data) == 0 {
		data = json.RawMessage("null")
	}

	return Envelope{
		ActionType: actionType,
		Data:       data,
	}, nil
}

// ParseEnvelope never fails: an unparseable frame or unknown tag yields the
// Empty envelope. The returned error only reports why the frame degraded.
func ParseEnvelope(frame []byte) (Envelope, error) {
	env, err := DecodeEnvelope(frame)
	if err != nil {
		return EmptyEnvelope(), err
	}
	return env, nil
}

type ServerMessageSerializer struct {
	ShortTags bool
}

// Serialize writes an event the way the game server does. Used by the test pond
// server.
func (s ServerMessageSerializer) Serialize(ev Event) ([]byte, error) {
	rawData, err := message.Marshal(ev.payload())
	if err != nil {
		return nil, err
	}

	tag := ev.ActionType().String()
	if s.ShortTags {
		tag = ev.ActionType().ShortString()
	}

	return message.Marshal(wireEnvelope{
		ActionType: tag,
		Data:       rawData,
	})
}
