// feed/event.go
package feed

import (
	"encoding/json"
	"fmt"

	"github.com/ShomaShirai/Ito-game/models"
)

// Action 行级变更类型
type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Table names the backend table an event originated from.
type Table string

const (
	TableRooms         Table = "rooms"
	TablePlayers       Table = "players"
	TableGames         Table = "games"
	TablePlayerNumbers Table = "player_numbers"
)

// Event is one row-level change notification. RoomID and GameID carry the
// foreign-key scope the row belongs to; Payload is the full row after the
// change (or before it, for deletes).
type Event struct {
	Table   Table           `json:"table"`
	Action  Action          `json:"action"`
	RoomID  string          `json:"room_id,omitempty"`
	GameID  string          `json:"game_id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// Room decodes the payload as a room row.
func (e Event) Room() (*models.Room, error) {
	var r models.Room
	if err := json.Unmarshal(e.Payload, &r); err != nil {
		return nil, fmt.Errorf("decode room event payload: %w", err)
	}
	return &r, nil
}

// Player decodes the payload as a player row.
func (e Event) Player() (*models.Player, error) {
	var p models.Player
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode player event payload: %w", err)
	}
	return &p, nil
}

// Game decodes the payload as a game row.
func (e Event) Game() (*models.Game, error) {
	var g models.Game
	if err := json.Unmarshal(e.Payload, &g); err != nil {
		return nil, fmt.Errorf("decode game event payload: %w", err)
	}
	return &g, nil
}

// PlayerNumber decodes the payload as a player_numbers row.
func (e Event) PlayerNumber() (*models.PlayerNumber, error) {
	var pn models.PlayerNumber
	if err := json.Unmarshal(e.Payload, &pn); err != nil {
		return nil, fmt.Errorf("decode player number event payload: %w", err)
	}
	return &pn, nil
}

// --- 事件构造 ---

func RoomEvent(action Action, room *models.Room) Event {
	raw, _ := json.Marshal(room)
	return Event{Table: TableRooms, Action: action, RoomID: room.ID, Payload: raw}
}

func PlayerEvent(action Action, player *models.Player) Event {
	raw, _ := json.Marshal(player)
	return Event{Table: TablePlayers, Action: action, RoomID: player.RoomID, Payload: raw}
}

func GameEvent(action Action, game *models.Game) Event {
	raw, _ := json.Marshal(game)
	return Event{Table: TableGames, Action: action, RoomID: game.RoomID, GameID: game.ID, Payload: raw}
}

func PlayerNumberEvent(action Action, pn *models.PlayerNumber) Event {
	raw, _ := json.Marshal(pn)
	return Event{Table: TablePlayerNumbers, Action: action, GameID: pn.GameID, Payload: raw}
}

// Scope selects the slice of the change feed a subscriber cares about:
// a table plus the room or game the rows must belong to. Room events are
// scoped by their own row id through RoomID.
type Scope struct {
	Table  Table
	RoomID string
	GameID string
}

// Matches reports whether an event falls inside the scope.
func (s Scope) Matches(e Event) bool {
	if s.Table != e.Table {
		return false
	}
	if s.RoomID != "" && s.RoomID != e.RoomID {
		return false
	}
	if s.GameID != "" && s.GameID != e.GameID {
		return false
	}
	return true
}

// String is used as a subject/channel key by the external transports.
func (s Scope) String() string {
	switch {
	case s.GameID != "":
		return fmt.Sprintf("%s.game.%s", s.Table, s.GameID)
	case s.RoomID != "":
		return fmt.Sprintf("%s.room.%s", s.Table, s.RoomID)
	default:
		return string(s.Table)
	}
}
