// models/gorm_models.go
package models

import (
	"time"

	"gorm.io/datatypes"
)

// GormRoom 房间表
type GormRoom struct {
	ID           string `gorm:"primaryKey;type:uuid"`
	RoomCode     string `gorm:"uniqueIndex;size:12;not null"`
	HostID       string `gorm:"type:uuid"`
	Status       string `gorm:"size:16;not null;default:waiting"`
	CurrentRound int    `gorm:"not null;default:0"`
	MaxRounds    int    `gorm:"not null;default:3"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (GormRoom) TableName() string { return "rooms" }

// GormPlayer 玩家表
type GormPlayer struct {
	ID          string `gorm:"primaryKey;type:uuid"`
	RoomID      string `gorm:"type:uuid;index;not null;uniqueIndex:idx_players_room_name"`
	Name        string `gorm:"size:64;not null;uniqueIndex:idx_players_room_name"`
	AvatarColor string `gorm:"size:16"`
	TotalLife   int    `gorm:"not null;default:3"`
	IsHost      bool   `gorm:"not null;default:false"`
	IsOnline    bool   `gorm:"not null;default:true"`
	JoinedAt    time.Time
}

func (GormPlayer) TableName() string { return "players" }

// GormGame 对局表
type GormGame struct {
	ID          string                       `gorm:"primaryKey;type:uuid"`
	RoomID      string                       `gorm:"type:uuid;index;not null;uniqueIndex:idx_games_room_round"`
	RoundNumber int                          `gorm:"not null;uniqueIndex:idx_games_room_round"`
	TopicID     string                       `gorm:"type:uuid;not null"`
	TopicNumber int                          `gorm:"not null"`
	Phase       string                       `gorm:"size:16;not null;default:discuss"`
	PlayerOrder datatypes.JSONSlice[string]  `gorm:"type:jsonb"`
	StartedAt   time.Time
	EndedAt     *time.Time
}

func (GormGame) TableName() string { return "games" }

// GormPlayerNumber 玩家数字表
type GormPlayerNumber struct {
	ID        string `gorm:"primaryKey;type:uuid"`
	GameID    string `gorm:"type:uuid;index;not null;uniqueIndex:idx_numbers_game_player"`
	PlayerID  string `gorm:"type:uuid;not null;uniqueIndex:idx_numbers_game_player"`
	Number    int    `gorm:"not null"`
	Position  *int
	MatchWord string `gorm:"size:280"`
}

func (GormPlayerNumber) TableName() string { return "player_numbers" }

// GormTopic 题目表
type GormTopic struct {
	ID          string `gorm:"primaryKey;type:uuid"`
	Number      int    `gorm:"uniqueIndex;not null"`
	Title       string `gorm:"size:128;not null"`
	Description string `gorm:"size:280"`
	Category    string `gorm:"size:32;index;not null"`
}

func (GormTopic) TableName() string { return "topics" }

// --- 模型转换 ---

func (m *GormRoom) ToRoom() *Room {
	return &Room{
		ID:           m.ID,
		RoomCode:     m.RoomCode,
		HostID:       m.HostID,
		Status:       RoomStatus(m.Status),
		CurrentRound: m.CurrentRound,
		MaxRounds:    m.MaxRounds,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func FromRoom(r *Room) *GormRoom {
	return &GormRoom{
		ID:           r.ID,
		RoomCode:     r.RoomCode,
		HostID:       r.HostID,
		Status:       string(r.Status),
		CurrentRound: r.CurrentRound,
		MaxRounds:    r.MaxRounds,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (m *GormPlayer) ToPlayer() *Player {
	return &Player{
		ID:          m.ID,
		RoomID:      m.RoomID,
		Name:        m.Name,
		AvatarColor: m.AvatarColor,
		TotalLife:   m.TotalLife,
		IsHost:      m.IsHost,
		IsOnline:    m.IsOnline,
		JoinedAt:    m.JoinedAt,
	}
}

func FromPlayer(p *Player) *GormPlayer {
	return &GormPlayer{
		ID:          p.ID,
		RoomID:      p.RoomID,
		Name:        p.Name,
		AvatarColor: p.AvatarColor,
		TotalLife:   p.TotalLife,
		IsHost:      p.IsHost,
		IsOnline:    p.IsOnline,
		JoinedAt:    p.JoinedAt,
	}
}

func (m *GormGame) ToGame() *Game {
	return &Game{
		ID:          m.ID,
		RoomID:      m.RoomID,
		RoundNumber: m.RoundNumber,
		TopicID:     m.TopicID,
		TopicNumber: m.TopicNumber,
		Phase:       Phase(m.Phase),
		PlayerOrder: []string(m.PlayerOrder),
		StartedAt:   m.StartedAt,
		EndedAt:     m.EndedAt,
	}
}

func FromGame(g *Game) *GormGame {
	return &GormGame{
		ID:          g.ID,
		RoomID:      g.RoomID,
		RoundNumber: g.RoundNumber,
		TopicID:     g.TopicID,
		TopicNumber: g.TopicNumber,
		Phase:       string(g.Phase),
		PlayerOrder: datatypes.NewJSONSlice(g.PlayerOrder),
		StartedAt:   g.StartedAt,
		EndedAt:     g.EndedAt,
	}
}

func (m *GormPlayerNumber) ToPlayerNumber() *PlayerNumber {
	return &PlayerNumber{
		ID:        m.ID,
		GameID:    m.GameID,
		PlayerID:  m.PlayerID,
		Number:    m.Number,
		Position:  m.Position,
		MatchWord: m.MatchWord,
	}
}

func FromPlayerNumber(pn *PlayerNumber) *GormPlayerNumber {
	return &GormPlayerNumber{
		ID:        pn.ID,
		GameID:    pn.GameID,
		PlayerID:  pn.PlayerID,
		Number:    pn.Number,
		Position:  pn.Position,
		MatchWord: pn.MatchWord,
	}
}

func (m *GormTopic) ToTopic() *Topic {
	return &Topic{
		ID:          m.ID,
		Number:      m.Number,
		Title:       m.Title,
		Description: m.Description,
		Category:    Genre(m.Category),
	}
}
