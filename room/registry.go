// room/registry.go
package room

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ShomaShirai/Ito-game/logger"
	"github.com/ShomaShirai/Ito-game/models"
	"github.com/ShomaShirai/Ito-game/persistence"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomNotJoinable = errors.New("room is not accepting players")
	ErrNameTaken       = errors.New("player name already taken in this room")
	ErrNotHost         = errors.New("only the host can do this")
)

const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// codeAttempts bounds the collision retry loop on room creation.
const codeAttempts = 5

// Registry 负责房间的创建、加入和退出
type Registry struct {
	store       persistence.Store
	rng         *rand.Rand
	codeLength  int
	initialLife int
	maxRounds   int
}

func NewRegistry(store persistence.Store, codeLength, initialLife, maxRounds int) *Registry {
	return &Registry{
		store:       store,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		codeLength:  codeLength,
		initialLife: initialLife,
		maxRounds:   maxRounds,
	}
}

// GenerateRoomCode returns an uppercase alphanumeric code of the configured
// length. Uniqueness is enforced by the retry loop in CreateRoom plus the
// store's unique index.
func (r *Registry) GenerateRoomCode() string {
	b := make([]byte, r.codeLength)
	for i := range b {
		b[i] = roomCodeAlphabet[r.rng.Intn(len(roomCodeAlphabet))]
	}
	return string(b)
}

// CreateRoom persists a waiting room plus its host player and links the
// host back to the room. Room and player creation are two writes against
// the backend; if the host insert fails the room is deleted again so no
// hostless room is left behind.
func (r *Registry) CreateRoom(ctx context.Context, hostName string) (*models.Room, *models.Player, error) {
	hostName = strings.TrimSpace(hostName)
	if hostName == "" {
		return nil, nil, errors.New("host name must not be empty")
	}

	var room *models.Room
	for attempt := 0; attempt < codeAttempts; attempt++ {
		candidate := &models.Room{
			ID:           uuid.New().String(),
			RoomCode:     r.GenerateRoomCode(),
			Status:       models.RoomWaiting,
			CurrentRound: 0,
			MaxRounds:    r.maxRounds,
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		}
		if _, err := r.store.GetRoomByCode(ctx, candidate.RoomCode); err == nil {
			logger.Log.Warnf("room code %s collided, retrying", candidate.RoomCode)
			continue
		} else if !errors.Is(err, persistence.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("check room code: %w", err)
		}
		if err := r.store.CreateRoom(ctx, candidate); err != nil {
			return nil, nil, fmt.Errorf("create room: %w", err)
		}
		room = candidate
		break
	}
	if room == nil {
		return nil, nil, errors.New("could not allocate a unique room code")
	}

	host := &models.Player{
		ID:          uuid.New().String(),
		RoomID:      room.ID,
		Name:        hostName,
		AvatarColor: models.AvatarColors[r.rng.Intn(len(models.AvatarColors))],
		TotalLife:   r.initialLife,
		IsHost:      true,
		IsOnline:    true,
		JoinedAt:    time.Now(),
	}
	if err := r.store.CreatePlayer(ctx, host); err != nil {
		// compensating delete so no hostless room remains
		if delErr := r.store.DeleteRoom(ctx, room.ID); delErr != nil {
			logger.Log.Errorf("leak: room %s has no host and could not be deleted: %v", room.ID, delErr)
		}
		return nil, nil, fmt.Errorf("create host player: %w", err)
	}

	room.HostID = host.ID
	if err := r.store.UpdateRoom(ctx, room); err != nil {
		return nil, nil, fmt.Errorf("link host to room: %w", err)
	}

	logger.Log.Infof("room %s created by %s", room.RoomCode, hostName)
	return room, host, nil
}

// JoinRoom appends a non-host player to a waiting room. The code lookup is
// case-insensitive; the name collision check is a case-sensitive exact
// match against current members.
func (r *Registry) JoinRoom(ctx context.Context, code, name string) (*models.Room, *models.Player, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil, errors.New("player name must not be empty")
	}

	room, err := r.store.GetRoomByCode(ctx, strings.ToUpper(code))
	if err != nil {
		if errors.Is(err, persistence.ErrRecordNotFound) {
			return nil, nil, ErrRoomNotFound
		}
		return nil, nil, fmt.Errorf("look up room: %w", err)
	}
	if room.Status != models.RoomWaiting {
		return nil, nil, ErrRoomNotJoinable
	}

	existing, err := r.store.ListPlayers(ctx, room.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list players: %w", err)
	}
	for i := range existing {
		if existing[i].Name == name {
			return nil, nil, ErrNameTaken
		}
	}

	player := &models.Player{
		ID:          uuid.New().String(),
		RoomID:      room.ID,
		Name:        name,
		AvatarColor: models.AvatarColors[r.rng.Intn(len(models.AvatarColors))],
		TotalLife:   r.initialLife,
		IsHost:      false,
		IsOnline:    true,
		JoinedAt:    time.Now(),
	}
	if err := r.store.CreatePlayer(ctx, player); err != nil {
		return nil, nil, fmt.Errorf("create player: %w", err)
	}

	logger.Log.Infof("%s joined room %s", name, room.RoomCode)
	return room, player, nil
}

// Leave hard-deletes the player row. Other clients observing the room see
// the removal through the change feed.
func (r *Registry) Leave(ctx context.Context, playerID string) error {
	if err := r.store.DeletePlayer(ctx, playerID); err != nil {
		return fmt.Errorf("delete player: %w", err)
	}
	return nil
}

// Players returns the current members of a room in join order.
func (r *Registry) Players(ctx context.Context, roomID string) ([]models.Player, error) {
	return r.store.ListPlayers(ctx, roomID)
}
