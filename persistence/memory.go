// persistence/memory.go
package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ShomaShirai/Ito-game/models"
)

// Memory is an in-process Store used by tests and by the memory backend
// mode. It preloads the built-in topic catalog.
type Memory struct {
	mutex   sync.RWMutex
	rooms   map[string]*models.Room
	players map[string]*models.Player
	games   map[string]*models.Game
	numbers map[string]*models.PlayerNumber
	topics  map[string]*models.Topic
}

func NewMemory() *Memory {
	m := &Memory{
		rooms:   make(map[string]*models.Room),
		players: make(map[string]*models.Player),
		games:   make(map[string]*models.Game),
		numbers: make(map[string]*models.PlayerNumber),
		topics:  make(map[string]*models.Topic),
	}
	for _, seed := range models.TopicCatalog {
		t := &models.Topic{
			ID:          uuid.New().String(),
			Number:      seed.Number,
			Title:       seed.Title,
			Description: seed.Description,
			Category:    seed.Category,
		}
		m.topics[t.ID] = t
	}
	return m
}

// --- rooms ---

func (m *Memory) CreateRoom(ctx context.Context, room *models.Room) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	c := *room
	m.rooms[room.ID] = &c
	return nil
}

func (m *Memory) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	room, exists := m.rooms[id]
	if !exists {
		return nil, ErrRecordNotFound
	}
	c := *room
	return &c, nil
}

func (m *Memory) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	for _, room := range m.rooms {
		if room.RoomCode == code {
			c := *room
			return &c, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *Memory) UpdateRoom(ctx context.Context, room *models.Room) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, exists := m.rooms[room.ID]; !exists {
		return ErrRecordNotFound
	}
	c := *room
	m.rooms[room.ID] = &c
	return nil
}

func (m *Memory) DeleteRoom(ctx context.Context, id string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.rooms, id)
	return nil
}

// --- players ---

func (m *Memory) CreatePlayer(ctx context.Context, player *models.Player) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	c := *player
	m.players[player.ID] = &c
	return nil
}

func (m *Memory) GetPlayer(ctx context.Context, id string) (*models.Player, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	player, exists := m.players[id]
	if !exists {
		return nil, ErrRecordNotFound
	}
	c := *player
	return &c, nil
}

func (m *Memory) ListPlayers(ctx context.Context, roomID string) ([]models.Player, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	var result []models.Player
	for _, player := range m.players {
		if player.RoomID == roomID {
			result = append(result, *player)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].JoinedAt.Before(result[j].JoinedAt)
	})
	return result, nil
}

func (m *Memory) UpdatePlayer(ctx context.Context, player *models.Player) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, exists := m.players[player.ID]; !exists {
		return ErrRecordNotFound
	}
	c := *player
	m.players[player.ID] = &c
	return nil
}

func (m *Memory) DeletePlayer(ctx context.Context, id string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.players, id)
	return nil
}

// --- games ---

func (m *Memory) CreateGame(ctx context.Context, game *models.Game) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	c := *game
	c.PlayerOrder = append([]string(nil), game.PlayerOrder...)
	m.games[game.ID] = &c
	return nil
}

func (m *Memory) GetGame(ctx context.Context, id string) (*models.Game, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	game, exists := m.games[id]
	if !exists {
		return nil, ErrRecordNotFound
	}
	c := *game
	c.PlayerOrder = append([]string(nil), game.PlayerOrder...)
	return &c, nil
}

func (m *Memory) LatestGame(ctx context.Context, roomID string) (*models.Game, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	var latest *models.Game
	for _, game := range m.games {
		if game.RoomID != roomID {
			continue
		}
		if latest == nil || game.RoundNumber > latest.RoundNumber {
			latest = game
		}
	}
	if latest == nil {
		return nil, ErrRecordNotFound
	}
	c := *latest
	c.PlayerOrder = append([]string(nil), latest.PlayerOrder...)
	return &c, nil
}

func (m *Memory) UpdateGame(ctx context.Context, game *models.Game) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, exists := m.games[game.ID]; !exists {
		return ErrRecordNotFound
	}
	c := *game
	c.PlayerOrder = append([]string(nil), game.PlayerOrder...)
	m.games[game.ID] = &c
	return nil
}

// --- player numbers ---

func (m *Memory) CreatePlayerNumbers(ctx context.Context, numbers []*models.PlayerNumber) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for _, pn := range numbers {
		c := *pn
		m.numbers[pn.ID] = &c
	}
	return nil
}

func (m *Memory) ListPlayerNumbers(ctx context.Context, gameID string) ([]models.PlayerNumber, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	var result []models.PlayerNumber
	for _, pn := range m.numbers {
		if pn.GameID == gameID {
			result = append(result, *pn)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) UpdatePlayerNumber(ctx context.Context, number *models.PlayerNumber) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, exists := m.numbers[number.ID]; !exists {
		return ErrRecordNotFound
	}
	c := *number
	m.numbers[number.ID] = &c
	return nil
}

// --- topics ---

func (m *Memory) GetTopic(ctx context.Context, id string) (*models.Topic, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	topic, exists := m.topics[id]
	if !exists {
		return nil, ErrRecordNotFound
	}
	c := *topic
	return &c, nil
}

func (m *Memory) GetTopicByNumber(ctx context.Context, number int) (*models.Topic, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	for _, topic := range m.topics {
		if topic.Number == number {
			c := *topic
			return &c, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (m *Memory) ListTopicsByCategory(ctx context.Context, category models.Genre, excludeID string) ([]models.Topic, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	var result []models.Topic
	for _, topic := range m.topics {
		if topic.Category == category && topic.ID != excludeID {
			result = append(result, *topic)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Number < result[j].Number
	})
	return result, nil
}

func (m *Memory) Close() error {
	return nil
}
