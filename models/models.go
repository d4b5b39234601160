// models/models.go
package models

import (
	"strings"
	"time"
)

// RoomStatus 表示房间的生命周期状态
type RoomStatus string

const (
	RoomWaiting  RoomStatus = "waiting"
	RoomPlaying  RoomStatus = "playing"
	RoomFinished RoomStatus = "finished"
)

// Phase 表示一局游戏的阶段，只能按顺序前进
type Phase string

const (
	PhaseDiscuss Phase = "discuss"
	PhaseArrange Phase = "arrange"
	PhaseReveal  Phase = "reveal"
	PhaseResult  Phase = "result"
)

// phaseOrder is the only legal progression of a round.
var phaseOrder = []Phase{PhaseDiscuss, PhaseArrange, PhaseReveal, PhaseResult}

// Next returns the phase that follows p. ok is false when p is the final
// phase or not a known phase.
func (p Phase) Next() (next Phase, ok bool) {
	for i, ph := range phaseOrder {
		if ph == p && i+1 < len(phaseOrder) {
			return phaseOrder[i+1], true
		}
	}
	return "", false
}

// Valid reports whether p is one of the four round phases.
func (p Phase) Valid() bool {
	for _, ph := range phaseOrder {
		if ph == p {
			return true
		}
	}
	return false
}

// Room 房间模型
type Room struct {
	ID           string     `json:"id"`
	RoomCode     string     `json:"room_code"`
	HostID       string     `json:"host_id"`
	Status       RoomStatus `json:"status"`
	CurrentRound int        `json:"current_round"`
	MaxRounds    int        `json:"max_rounds"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Player 玩家模型
type Player struct {
	ID          string    `json:"id"`
	RoomID      string    `json:"room_id"`
	Name        string    `json:"name"`
	AvatarColor string    `json:"avatar_color"`
	TotalLife   int       `json:"total_life"`
	IsHost      bool      `json:"is_host"`
	IsOnline    bool      `json:"is_online"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Game 一局游戏。一个房间按回合依次产生多局
type Game struct {
	ID          string     `json:"id"`
	RoomID      string     `json:"room_id"`
	RoundNumber int        `json:"round_number"`
	TopicID     string     `json:"topic_id"`
	TopicNumber int        `json:"topic_number"`
	Phase       Phase      `json:"phase"`
	PlayerOrder []string   `json:"player_order"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

// PlayerNumber 每局中每个玩家持有的秘密数字
type PlayerNumber struct {
	ID        string `json:"id"`
	GameID    string `json:"game_id"`
	PlayerID  string `json:"player_id"`
	Number    int    `json:"number"`
	Position  *int   `json:"position,omitempty"`
	MatchWord string `json:"match_word,omitempty"`
}

// Submitted reports whether this player has sent a usable clue.
func (pn *PlayerNumber) Submitted() bool {
	return strings.TrimSpace(pn.MatchWord) != ""
}

// Topic 题目（静态参照数据）
type Topic struct {
	ID          string `json:"id"`
	Number      int    `json:"number"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    Genre  `json:"category"`
}

// AvatarColors is the palette a new player's color is picked from.
var AvatarColors = []string{"#3B82F6", "#EF4444", "#10B981", "#F59E0B", "#8B5CF6", "#F97316"}
