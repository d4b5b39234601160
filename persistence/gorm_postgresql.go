// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ShomaShirai/Ito-game/models"
)

// GormStore 使用GORM的PostgreSQL实现
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 创建GORM PostgreSQL数据库连接
func NewGormStore(host string, port int, user, password, dbname string) (*GormStore, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)
	return NewGormStoreDSN(dsn)
}

func NewGormStoreDSN(dsn string) (*GormStore, error) {
	gormLogger := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold: time.Second,
			LogLevel:      gormlogger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := autoMigrate(db); err != nil {
		return nil, err
	}
	if err := seedTopics(db); err != nil {
		return nil, err
	}

	return &GormStore{db: db}, nil
}

// autoMigrate 自动迁移表结构
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GormRoom{},
		&models.GormPlayer{},
		&models.GormGame{},
		&models.GormPlayerNumber{},
		&models.GormTopic{},
	)
}

// seedTopics inserts any catalog topic that is not present yet, keyed by
// its stable topic number.
func seedTopics(db *gorm.DB) error {
	for _, seed := range models.TopicCatalog {
		var count int64
		if err := db.Model(&models.GormTopic{}).Where("number = ?", seed.Number).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		topic := models.GormTopic{
			ID:          uuid.New().String(),
			Number:      seed.Number,
			Title:       seed.Title,
			Description: seed.Description,
			Category:    string(seed.Category),
		}
		if err := db.Create(&topic).Error; err != nil {
			return err
		}
	}
	return nil
}

func wrapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	return err
}

// --- rooms ---

func (s *GormStore) CreateRoom(ctx context.Context, room *models.Room) error {
	return s.db.WithContext(ctx).Create(models.FromRoom(room)).Error
}

func (s *GormStore) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	var row models.GormRoom
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return row.ToRoom(), nil
}

func (s *GormStore) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	var row models.GormRoom
	if err := s.db.WithContext(ctx).First(&row, "room_code = ?", code).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return row.ToRoom(), nil
}

func (s *GormStore) UpdateRoom(ctx context.Context, room *models.Room) error {
	res := s.db.WithContext(ctx).Model(&models.GormRoom{}).Where("id = ?", room.ID).Updates(map[string]interface{}{
		"host_id":       room.HostID,
		"status":        string(room.Status),
		"current_round": room.CurrentRound,
		"max_rounds":    room.MaxRounds,
		"updated_at":    time.Now(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *GormStore) DeleteRoom(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&models.GormRoom{}, "id = ?", id).Error
}

// --- players ---

func (s *GormStore) CreatePlayer(ctx context.Context, player *models.Player) error {
	return s.db.WithContext(ctx).Create(models.FromPlayer(player)).Error
}

func (s *GormStore) GetPlayer(ctx context.Context, id string) (*models.Player, error) {
	var row models.GormPlayer
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return row.ToPlayer(), nil
}

func (s *GormStore) ListPlayers(ctx context.Context, roomID string) ([]models.Player, error) {
	var rows []models.GormPlayer
	if err := s.db.WithContext(ctx).Where("room_id = ?", roomID).Order("joined_at asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	players := make([]models.Player, 0, len(rows))
	for i := range rows {
		players = append(players, *rows[i].ToPlayer())
	}
	return players, nil
}

func (s *GormStore) UpdatePlayer(ctx context.Context, player *models.Player) error {
	res := s.db.WithContext(ctx).Model(&models.GormPlayer{}).Where("id = ?", player.ID).Updates(map[string]interface{}{
		"total_life": player.TotalLife,
		"is_online":  player.IsOnline,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *GormStore) DeletePlayer(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&models.GormPlayer{}, "id = ?", id).Error
}

// --- games ---

func (s *GormStore) CreateGame(ctx context.Context, game *models.Game) error {
	return s.db.WithContext(ctx).Create(models.FromGame(game)).Error
}

func (s *GormStore) GetGame(ctx context.Context, id string) (*models.Game, error) {
	var row models.GormGame
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return row.ToGame(), nil
}

func (s *GormStore) LatestGame(ctx context.Context, roomID string) (*models.Game, error) {
	var row models.GormGame
	err := s.db.WithContext(ctx).Where("room_id = ?", roomID).Order("round_number desc").First(&row).Error
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return row.ToGame(), nil
}

func (s *GormStore) UpdateGame(ctx context.Context, game *models.Game) error {
	res := s.db.WithContext(ctx).Model(&models.GormGame{}).Where("id = ?", game.ID).Updates(map[string]interface{}{
		"phase":    string(game.Phase),
		"ended_at": game.EndedAt,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// --- player numbers ---

func (s *GormStore) CreatePlayerNumbers(ctx context.Context, numbers []*models.PlayerNumber) error {
	rows := make([]*models.GormPlayerNumber, 0, len(numbers))
	for _, pn := range numbers {
		rows = append(rows, models.FromPlayerNumber(pn))
	}
	return s.db.WithContext(ctx).Create(rows).Error
}

func (s *GormStore) ListPlayerNumbers(ctx context.Context, gameID string) ([]models.PlayerNumber, error) {
	var rows []models.GormPlayerNumber
	if err := s.db.WithContext(ctx).Where("game_id = ?", gameID).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	numbers := make([]models.PlayerNumber, 0, len(rows))
	for i := range rows {
		numbers = append(numbers, *rows[i].ToPlayerNumber())
	}
	return numbers, nil
}

func (s *GormStore) UpdatePlayerNumber(ctx context.Context, number *models.PlayerNumber) error {
	res := s.db.WithContext(ctx).Model(&models.GormPlayerNumber{}).Where("id = ?", number.ID).Updates(map[string]interface{}{
		"position":   number.Position,
		"match_word": number.MatchWord,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// --- topics ---

func (s *GormStore) GetTopic(ctx context.Context, id string) (*models.Topic, error) {
	var row models.GormTopic
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return row.ToTopic(), nil
}

func (s *GormStore) GetTopicByNumber(ctx context.Context, number int) (*models.Topic, error) {
	var row models.GormTopic
	if err := s.db.WithContext(ctx).First(&row, "number = ?", number).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return row.ToTopic(), nil
}

func (s *GormStore) ListTopicsByCategory(ctx context.Context, category models.Genre, excludeID string) ([]models.Topic, error) {
	var rows []models.GormTopic
	q := s.db.WithContext(ctx).Where("category = ?", string(category))
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Order("number asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	topics := make([]models.Topic, 0, len(rows))
	for i := range rows {
		topics = append(topics, *rows[i].ToTopic())
	}
	return topics, nil
}

// Close 关闭数据库连接
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transaction 事务支持
func (s *GormStore) Transaction(fn func(tx *gorm.DB) error) error {
	return s.db.Transaction(fn)
}
