package client

import (
	"bytes"
	"encoding/json"

	"github.com/sessamekesh/duckpond-client/pkg/errors"
	"github.com/sessamekesh/duckpond-client/pkg/message"
)

// ActionType enumerates client -> server actions.
type ActionType uint8

const (
	ActionType_Join ActionType = iota
	ActionType_Quack
	ActionType_Move
	ActionType_Interact

	// Used as a default so invalid inputs are ignored instead of failing.
	ActionType_Empty
)

var longTags = map[ActionType]string{
	ActionType_Join:     "join",
	ActionType_Quack:    "quack",
	ActionType_Move:     "move",
	ActionType_Interact: "interact",
	ActionType_Empty:    "empty",
}

var shortTags = map[ActionType]string{
	ActionType_Join:     "j",
	ActionType_Quack:    "q",
	ActionType_Move:     "m",
	ActionType_Interact: "i",
	ActionType_Empty:    "e",
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

// ParseActionType accepts both the long ("move") and short ("m") tag forms.
func ParseActionType(tag string) (ActionType, error) {
	a, has := tagToActionType[tag]
	if !has {
		return ActionType_Empty, &errors.UnknownActionType{
			EnumName: "client.ActionType",
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

func (a ActionType) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *ActionType) UnmarshalText(text []byte) error {
	parsed, err := ParseActionType(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

type JoinRequest struct {
	FriendlyName string `json:"friendly_name"`
}

type MoveRequest struct {
	XDirection message.Float32 `json:"x_direction"`
	YDirection message.Float32 `json:"y_direction"`
}

// ClientMessage is the decoded form of a client -> server frame. Exactly one of
// the request pointers is set for join and move; quack, interact and empty
// carry no payload.
type ClientMessage struct {
	ActionType ActionType
	Join       *JoinRequest
	Move       *MoveRequest
}

type wireEnvelope struct {
	ActionType string          `json:"action_type"`
	Data       json.RawMessage `json:"data"`
}

type ClientMessageSerializer struct {
	// ShortTags writes "j"/"m"/... instead of "join"/"move"/...
	ShortTags bool
}

func (s ClientMessageSerializer) tag(a ActionType) string {
	if s.ShortTags {
		return a.ShortString()
	}
	return a.String()
}

func (s ClientMessageSerializer) serialize(a ActionType, data any) ([]byte, error) {
	rawData, err := message.Marshal(data)
	if err != nil {
		return nil, err
	}

	return message.Marshal(wireEnvelope{
		ActionType: s.tag(a),
		Data:       rawData,
	})
}

func (s ClientMessageSerializer) SerializeJoin(friendlyName string) ([]byte, error) {
	return s.serialize(ActionType_Join, JoinRequest{FriendlyName: friendlyName})
}

func (s ClientMessageSerializer) SerializeMove(xDirection, yDirection float32) ([]byte, error) {
	return s.serialize(ActionType_Move, MoveRequest{
		XDirection: message.Float32(xDirection),
		YDirection: message.Float32(yDirection),
	})
}

func (s ClientMessageSerializer) SerializeQuack() ([]byte, error) {
	return s.serialize(ActionType_Quack, struct{}{})
}

func (s ClientMessageSerializer) SerializeInteract() ([]byte, error) {
	return s.serialize(ActionType_Interact, struct{}{})
}

// Parse decodes a client -> server frame. It is what the game server does with
// our writes; the client only uses it in tests and the example pond server.
func (s ClientMessageSerializer) Parse(msg []byte) (*ClientMessage, error) {
	var env wireEnvelope
	if err := json.Unmarshal(bytes.TrimSpace(msg), &env); err != nil {
		return nil, &errors.MalformedFrame{
			MessageName: "ClientMessage",
			FrameSize:   len(msg),
			Reason:      err,
		}
	}

	actionType, err := ParseActionType(env.ActionType)
	if err != nil {
		return nil, err
	}

	parsed := &ClientMessage{ActionType: actionType}

	switch actionType {
	case ActionType_Join:
		join := &JoinRequest{}
		if err := message.DecodePayload("join", env.Data, join, "friendly_name"); err != nil {
			return nil, err
		}
		parsed.Join = join
	case ActionType_Move:
		move := &MoveRequest{}
		if err := message.DecodePayload("move", env.Data, move, "x_direction", "y_direction"); err != nil {
			return nil, err
		}
		parsed.Move = move
	case ActionType_Quack, ActionType_Interact, ActionType_Empty:
		// no payload
	}

	return parsed, nil
}
