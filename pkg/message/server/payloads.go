package server

import (
	"encoding/json"

	"github.com/samber/lo"
	"github.com/sessamekesh/duckpond-client/pkg/message"
)

// PlaceholderString fills string fields of payloads that failed to decode.
const PlaceholderString = "error"

type PlayerJoinedData struct {
	PlayerUuid         string  `json:"player_uuid"`
	PlayerFriendlyName string  `json:"player_friendly_name"`
	Color              string  `json:"color"`
	XPosition          float32 `json:"x_position"`
	YPosition          float32 `json:"y_position"`

	// Only sent by some server versions
	CrackerX      float32 `json:"cracker_x,omitempty"`
	CrackerY      float32 `json:"cracker_y,omitempty"`
	CrackerPoints uint64  `json:"cracker_points,omitempty"`
}

type QuackData struct {
	PlayerUuid         string  `json:"player_uuid"`
	PlayerFriendlyName string  `json:"player_friendly_name"`
	PlayerXPosition    float32 `json:"player_x_position"`
	PlayerYPosition    float32 `json:"player_y_position"`
	QuackPitch         float32 `json:"quack_pitch"`
}

type MovedData struct {
	PlayerUuid         string  `json:"player_uuid"`
	PlayerFriendlyName string  `json:"player_friendly_name"`
	Color              string  `json:"color"`
	OldXPosition       float32 `json:"old_x_position"`
	OldYPosition       float32 `json:"old_y_position"`
	NewXPosition       float32 `json:"new_x_position"`
	NewYPosition       float32 `json:"new_y_position"`
}

type CrackersData struct {
	PlayerUuid           string  `json:"player_uuid"`
	PlayerFriendlyName   string  `json:"player_friendly_name"`
	OldCrackerXPosition  float32 `json:"old_cracker_x_position"`
	OldCrackerYPosition  float32 `json:"old_cracker_y_position"`
	NewCrackerXPosition  float32 `json:"new_cracker_x_position"`
	NewCrackerYPosition  float32 `json:"new_cracker_y_position"`
	OldCrackerPointValue uint64  `json:"old_cracker_point_value"`
	NewCrackerPointValue uint64  `json:"new_cracker_point_value"`
	NewPlayerScore       uint64  `json:"new_player_score"`
}

type DiedData struct {
	PlayerUuid         string `json:"player_uuid"`
	PlayerFriendlyName string `json:"player_friendly_name,omitempty"`
}

type UserDisconnectedData struct {
	DisconnectedPlayerUuid string `json:"disconnected_player_uuid"`
}

type LeaderboardData struct {
	YourPoints           uint64 `json:"your_points"`
	YourLeaderboardPlace uint64 `json:"your_leaderboard_place"`

	Name1stPlace string `json:"leaderboard_name_1st_place"`
	Name2ndPlace string `json:"leaderboard_name_2nd_place"`
	Name3rdPlace string `json:"leaderboard_name_3rd_place"`
	Name4thPlace string `json:"leaderboard_name_4th_place"`
	Name5thPlace string `json:"leaderboard_name_5th_place"`

	Score1stPlace uint64 `json:"leaderboard_score_1st_place"`
	Score2ndPlace uint64 `json:"leaderboard_score_2nd_place"`
	Score3rdPlace uint64 `json:"leaderboard_score_3rd_place"`
	Score4thPlace uint64 `json:"leaderboard_score_4th_place"`
	Score5thPlace uint64 `json:"leaderboard_score_5th_place"`
}

type LeaderboardEntry struct {
	Place uint64
	Name  string
	Score uint64
}

// Entries returns the filled top-5 rows, best first. Unused slots (empty
// names) are skipped.
func (d LeaderboardData) Entries() []LeaderboardEntry {
	rows := []LeaderboardEntry{
		{Place: 1, Name: d.Name1stPlace, Score: d.Score1stPlace},
		{Place: 2, Name: d.Name2ndPlace, Score: d.Score2ndPlace},
		{Place: 3, Name: d.Name3rdPlace, Score: d.Score3rdPlace},
		{Place: 4, Name: d.Name4thPlace, Score: d.Score4thPlace},
		{Place: 5, Name: d.Name5thPlace, Score: d.Score5thPlace},
	}
	return lo.Filter(rows, func(e LeaderboardEntry, _ int) bool {
		return e.Name != ""
	})
}

func DecodePlayerJoined(messageName string, data json.RawMessage) (PlayerJoinedData, error) {
	out := PlayerJoinedData{}
	err := message.DecodePayload(messageName, data, &out,
		"player_uuid", "player_friendly_name", "color", "x_position", "y_position")
	return out, err
}

func DecodeQuack(messageName string, data json.RawMessage) (QuackData, error) {
	out := QuackData{}
	err := message.DecodePayload(messageName, data, &out,
		"player_uuid", "player_friendly_name", "player_x_position", "player_y_position", "quack_pitch")
	return out, err
}

func DecodeMoved(messageName string, data json.RawMessage) (MovedData, error) {
	out := MovedData{}
	err := message.DecodePayload(messageName, data, &out,
		"player_uuid", "player_friendly_name", "color",
		"old_x_position", "old_y_position", "new_x_position", "new_y_position")
	return out, err
}

func DecodeCrackers(messageName string, data json.RawMessage) (CrackersData, error) {
	out := CrackersData{}
	err := message.DecodePayload(messageName, data, &out,
		"player_uuid", "player_friendly_name",
		"old_cracker_x_position", "old_cracker_y_position",
		"new_cracker_x_position", "new_cracker_y_position",
		"old_cracker_point_value", "new_cracker_point_value",
		"new_player_score")
	return out, err
}

func DecodeDied(messageName string, data json.RawMessage) (DiedData, error) {
	out := DiedData{}
	err := message.DecodePayload(messageName, data, &out, "player_uuid")
	return out, err
}

func DecodeUserDisconnected(data json.RawMessage) (UserDisconnectedData, error) {
	out := UserDisconnectedData{}
	err := message.DecodePayload(ActionType_UserDisconnected.String(), data, &out, "disconnected_player_uuid")
	return out, err
}

// DecodeLeaderboard requires only the local player's standing; a pond with
// fewer than five ducks leaves the trailing rows out.
func DecodeLeaderboard(data json.RawMessage) (LeaderboardData, error) {
	out := LeaderboardData{}
	err := message.DecodePayload(ActionType_LeaderboardUpdate.String(), data, &out,
		"your_points", "your_leaderboard_place")
	return out, err
}

func PlaceholderPlayerJoined() PlayerJoinedData {
	return PlayerJoinedData{
		PlayerUuid:         PlaceholderString,
		PlayerFriendlyName: PlaceholderString,
		Color:              PlaceholderString,
	}
}

func PlaceholderQuack() QuackData {
	return QuackData{
		PlayerUuid:         PlaceholderString,
		PlayerFriendlyName: PlaceholderString,
	}
}

func PlaceholderMoved() MovedData {
	return MovedData{
		PlayerUuid:         PlaceholderString,
		PlayerFriendlyName: PlaceholderString,
		Color:              PlaceholderString,
	}
}

func PlaceholderCrackers() CrackersData {
	return CrackersData{
		PlayerUuid:         PlaceholderString,
		PlayerFriendlyName: PlaceholderString,
	}
}

func PlaceholderDied() DiedData {
	return DiedData{
		PlayerUuid:         PlaceholderString,
		PlayerFriendlyName: PlaceholderString,
	}
}

func PlaceholderUserDisconnected() UserDisconnectedData {
	return UserDisconnectedData{
		DisconnectedPlayerUuid: PlaceholderString,
	}
}

func PlaceholderLeaderboard() LeaderboardData {
	return LeaderboardData{}
}
