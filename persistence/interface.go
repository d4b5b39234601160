// persistence/interface.go
package persistence

import (
	"context"
	"errors"

	"github.com/ShomaShirai/Ito-game/models"
)

// ErrRecordNotFound 记录不存在
var ErrRecordNotFound = errors.New("record not found")

// Store 数据库接口
//
// This is the contract the game consumes from its backing store: four
// mutable tables plus static topic reference data. Implementations must be
// safe for concurrent use.
type Store interface {
	CreateRoom(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, id string) (*models.Room, error)
	GetRoomByCode(ctx context.Context, code string) (*models.Room, error)
	UpdateRoom(ctx context.Context, room *models.Room) error
	DeleteRoom(ctx context.Context, id string) error

	CreatePlayer(ctx context.Context, player *models.Player) error
	GetPlayer(ctx context.Context, id string) (*models.Player, error)
	ListPlayers(ctx context.Context, roomID string) ([]models.Player, error)
	UpdatePlayer(ctx context.Context, player *models.Player) error
	DeletePlayer(ctx context.Context, id string) error

	CreateGame(ctx context.Context, game *models.Game) error
	GetGame(ctx context.Context, id string) (*models.Game, error)
	LatestGame(ctx context.Context, roomID string) (*models.Game, error)
	UpdateGame(ctx context.Context, game *models.Game) error

	CreatePlayerNumbers(ctx context.Context, numbers []*models.PlayerNumber) error
	ListPlayerNumbers(ctx context.Context, gameID string) ([]models.PlayerNumber, error)
	UpdatePlayerNumber(ctx context.Context, number *models.PlayerNumber) error

	GetTopic(ctx context.Context, id string) (*models.Topic, error)
	GetTopicByNumber(ctx context.Context, number int) (*models.Topic, error)
	ListTopicsByCategory(ctx context.Context, category models.Genre, excludeID string) ([]models.Topic, error)

	Close() error
}
