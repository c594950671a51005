package server

// Event is a typed server -> client message. The set of implementations is
// closed: one per ActionType.
type Event interface {
	ActionType() ActionType
	payload() any
}

type YouJoined struct{ Data PlayerJoinedData }
type OtherPlayerJoined struct{ Data PlayerJoinedData }
type YouQuacked struct{ Data QuackData }
type OtherPlayerQuacked struct{ Data QuackData }
type YouMoved struct{ Data MovedData }
type OtherPlayerMoved struct{ Data MovedData }
type YouGotCrackers struct{ Data CrackersData }
type OtherPlayerGotCrackers struct{ Data CrackersData }
type YouDied struct{ Data DiedData }
type OtherPlayerDied struct{ Data DiedData }
type UserDisconnected struct{ Data UserDisconnectedData }
type LeaderboardUpdate struct{ Data LeaderboardData }
type Empty struct{}

func (YouJoined) ActionType() ActionType              { return ActionType_YouJoined }
func (OtherPlayerJoined) ActionType() ActionType      { return ActionType_OtherPlayerJoined }
func (YouQuacked) ActionType() ActionType             { return ActionType_YouQuacked }
func (OtherPlayerQuacked) ActionType() ActionType     { return ActionType_OtherPlayerQuacked }
func (YouMoved) ActionType() ActionType               { return ActionType_YouMoved }
func (OtherPlayerMoved) ActionType() ActionType       { return ActionType_OtherPlayerMoved }
func (YouGotCrackers) ActionType() ActionType         { return ActionType_YouGotCrackers }
func (OtherPlayerGotCrackers) ActionType() ActionType { return ActionType_OtherPlayerGotCrackers }
func (YouDied) ActionType() ActionType                { return ActionType_YouDied }
func (OtherPlayerDied) ActionType() ActionType        { return ActionType_OtherPlayerDied }
func (UserDisconnected) ActionType() ActionType       { return ActionType_UserDisconnected }
func (LeaderboardUpdate) ActionType() ActionType      { return ActionType_LeaderboardUpdate }
func (Empty) ActionType() ActionType                  { return ActionType_Empty }

func (e YouJoined) payload() any              { return e.Data }
func (e OtherPlayerJoined) payload() any      { return e.Data }
func (e YouQuacked) payload() any             { return e.Data }
func (e OtherPlayerQuacked) payload() any     { return e.Data }
func (e YouMoved) payload() any               { return e.Data }
func (e OtherPlayerMoved) payload() any       { return e.Data }
func (e YouGotCrackers) payload() any         { return e.Data }
func (e OtherPlayerGotCrackers) payload() any { return e.Data }
func (e YouDied) payload() any                { return e.Data }
func (e OtherPlayerDied) payload() any        { return e.Data }
func (e UserDisconnected) payload() any       { return e.Data }
func (e LeaderboardUpdate) payload() any      { return e.Data }
func (Empty) payload() any                    { return nil }

// DecodeEvent decodes the envelope's payload into its typed event. On error the
// returned event is nil; callers decide whether to substitute PlaceholderEvent.
func DecodeEvent(env Envelope) (Event, error) {
	name := env.ActionType.String()

	switch env.ActionType {
	case ActionType_YouJoined:
		d, err := DecodePlayerJoined(name, env.Data)
		if err != nil {
			return nil, err
		}
		return YouJoined{Data: d}, nil
	case ActionType_OtherPlayerJoined:
		d, err := DecodePlayerJoined(name, env.Data)
		if err != nil {
			return nil, err
		}
		return OtherPlayerJoined{Data: d}, nil
	case ActionType_YouQuacked:
		d, err := DecodeQuack(name, env.Data)
		if err != nil {
			return nil, err
		}
		return YouQuacked{Data: d}, nil
	case ActionType_OtherPlayerQuacked:
		d, err := DecodeQuack(name, env.Data)
		if err != nil {
			return nil, err
		}
		return OtherPlayerQuacked{Data: d}, nil
	case ActionType_YouMoved:
		d, err := DecodeMoved(name, env.Data)
		if err != nil {
			return nil, err
		}
		return YouMoved{Data: d}, nil
	case ActionType_OtherPlayerMoved:
		d, err := DecodeMoved(name, env.Data)
		if err != nil {
			return nil, err
		}
		return OtherPlayerMoved{Data: d}, nil
	case ActionType_YouGotCrackers:
		d, err := DecodeCrackers(name, env.Data)
		if err != nil {
			return nil, err
		}
		return YouGotCrackers{Data: d}, nil
	case ActionType_OtherPlayerGotCrackers:
		d, err := DecodeCrackers(name, env.Data)
		if err != nil {
			return nil, err
		}
		return OtherPlayerGotCrackers{Data: d}, nil
	case ActionType_YouDied:
		d, err := DecodeDied(name, env.Data)
		if err != nil {
			return nil, err
		}
		return YouDied{Data: d}, nil
	case ActionType_OtherPlayerDied:
		d, err := DecodeDied(name, env.Data)
		if err != nil {
			return nil, err
		}
		return OtherPlayerDied{Data: d}, nil
	case ActionType_UserDisconnected:
		d, err := DecodeUserDisconnected(env.Data)
		if err != nil {
			return nil, err
		}
		return UserDisconnected{Data: d}, nil
	case ActionType_LeaderboardUpdate:
		d, err := DecodeLeaderboard(env.Data)
		if err != nil {
			return nil, err
		}
		return LeaderboardUpdate{Data: d}, nil
	}

	return Empty{}, nil
}

// PlaceholderEvent is the "error"-tagged, zero-valued event for an action whose
// payload could not be decoded.
func PlaceholderEvent(a ActionType) Event {
	switch a {
	case ActionType_YouJoined:
		return YouJoined{Data: PlaceholderPlayerJoined()}
	case ActionType_OtherPlayerJoined:
		return OtherPlayerJoined{Data: PlaceholderPlayerJoined()}
	case ActionType_YouQuacked:
		return YouQuacked{Data: PlaceholderQuack()}
	case ActionType_OtherPlayerQuacked:
		return OtherPlayerQuacked{Data: PlaceholderQuack()}
	case ActionType_YouMoved:
		return YouMoved{Data: PlaceholderMoved()}
	case ActionType_OtherPlayerMoved:
		return OtherPlayerMoved{Data: PlaceholderMoved()}
	case ActionType_YouGotCrackers:
		return YouGotCrackers{Data: PlaceholderCrackers()}
	case ActionType_OtherPlayerGotCrackers:
		return OtherPlayerGotCrackers{Data: PlaceholderCrackers()}
	case ActionType_YouDied:
		return YouDied{Data: PlaceholderDied()}
	case ActionType_OtherPlayerDied:
		return OtherPlayerDied{Data: PlaceholderDied()}
	case ActionType_UserDisconnected:
		return UserDisconnected{Data: PlaceholderUserDisconnected()}
	case ActionType_LeaderboardUpdate:
		return LeaderboardUpdate{Data: PlaceholderLeaderboard()}
	}
	return Empty{}
}
