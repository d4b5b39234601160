// network/protocol.go
package network

import (
	"github.com/ShomaShirai/Ito-game/feed"
	"github.com/ShomaShirai/Ito-game/models"
	"github.com/ShomaShirai/Ito-game/scoring"
)

// メッセージID定義
const (
	// client -> server
	MsgCreateRoom uint16 = 1001
	MsgJoinRoom   uint16 = 1002
	MsgLeaveRoom  uint16 = 1003
	MsgStartGame  uint16 = 1004
	MsgMatchWord  uint16 = 1005
	MsgSaveOrder  uint16 = 1006
	MsgNextRound  uint16 = 1007
	MsgRevealDone uint16 = 1008
	MsgHeartbeat  uint16 = 1999

	// server -> client
	MsgRoomState     uint16 = 2001
	MsgFeedEvent     uint16 = 2002
	MsgRoundResult   uint16 = 2003
	MsgError         uint16 = 2900
	MsgHeartbeatAck  uint16 = 2999
)

type CreateRoomRequest struct {
	PlayerName string `json:"player_name"`
}

type JoinRoomRequest struct {
	RoomCode   string `json:"room_code"`
	PlayerName string `json:"player_name"`
}

type StartGameRequest struct {
	Genre models.Genre `json:"genre"`
}

type MatchWordRequest struct {
	Word string `json:"word"`
}

type SaveOrderRequest struct {
	PlayerIDs []string `json:"player_ids"`
}

// RoomState is the full snapshot pushed after a lifecycle action.
type RoomState struct {
	Room    *models.Room    `json:"room,omitempty"`
	Self    *models.Player  `json:"self,omitempty"`
	Players []models.Player `json:"players"`
	Game    *models.Game    `json:"game,omitempty"`
	Topic   *models.Topic   `json:"topic,omitempty"`
}

// FeedFrame forwards one change-feed event to the client verbatim.
type FeedFrame struct {
	Event feed.Event `json:"event"`
}

type RoundResult struct {
	GameID  string          `json:"game_id"`
	Outcome scoring.Outcome `json:"outcome"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}
