// game/engine.go
package game

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
	"github.com/ShomaShirai/Ito-game/state"
)

var (
	ErrNotEnoughPlayers  = errors.New("not enough players to start a round")
	ErrUnknownGenre      = errors.New("unknown genre")
	ErrNoAlternateTopic  = errors.New("no other topic available in this category")
	ErrEmptyMatchWord    = errors.New("match word must not be empty")
	ErrOrderNotPermuted  = errors.New("arranged order is not a permutation of the round's players")
	ErrRangeTooSmall     = errors.New("number range smaller than player count")
	ErrRoundAlreadyBegun = errors.New("a game for this round already exists")
)

// Engine 回合引擎：开局、出题、收集表达、定序、推进阶段
type Engine struct {
	store      persistence.Store
	rng        *rand.Rand
	numberMin  int
	numberMax  int
	minPlayers int
}

func NewEngine(store persistence.Store, numberMin, numberMax, minPlayers int) *Engine {
	return &Engine{
		store:      store,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		numberMin:  numberMin,
		numberMax:  numberMax,
		minPlayers: minPlayers,
	}
}

// drawUniqueNumbers draws count distinct integers from [min, max] by
// rejection sampling. It fails fast when the range cannot hold count
// values instead of looping forever.
func (e *Engine) drawUniqueNumbers(count int) ([]int, error) {
	size := e.numberMax - e.numberMin + 1
	if count > size {
		return nil, fmt.Errorf("%w: need %d from [%d,%d]", ErrRangeTooSmall, count, e.numberMin, e.numberMax)
	}

	numbers := make([]int, 0, count)
	used := make(map[int]bool, count)
	for len(numbers) < count {
		n := e.rng.Intn(size) + e.numberMin
		if used[n] {
			continue
		}
		used[n] = true
		numbers = append(numbers, n)
	}
	return numbers, nil
}

// pickTopic selects a topic uniformly at random from the genre's number band.
func (e *Engine) pickTopic(ctx context.Context, genre models.Genre) (*models.Topic, error) {
	band, ok := models.BandFor(genre)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGenre, genre)
	}
	number := e.rng.Intn(band.Max-band.Min+1) + band.Min
	topic, err := e.store.GetTopicByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("get topic %d: %w", number, err)
	}
	return topic, nil
}

// createRound creates the game row in discuss phase with the player list
// snapshotted, then draws and persists one secret number per player.
func (e *Engine) createRound(ctx context.Context, room *models.Room, players []models.Player, topic *models.Topic, roundNumber int) (*models.Game, []models.PlayerNumber, error) {
	game := &models.Game{
		ID:          uuid.New().String(),
		RoomID:      room.ID,
		RoundNumber: roundNumber,
		TopicID:     topic.ID,
		TopicNumber: topic.Number,
		Phase:       models.PhaseDiscuss,
		PlayerOrder: playerIDs(players),
		StartedAt:   time.Now(),
	}
	if err := e.store.CreateGame(ctx, game); err != nil {
		return nil, nil, fmt.Errorf("create game: %w", err)
	}

	drawn, err := e.drawUniqueNumbers(len(players))
	if err != nil {
		return nil, nil, err
	}
	rows := make([]*models.PlayerNumber, 0, len(players))
	for i := range players {
		rows = append(rows, &models.PlayerNumber{
			ID:       uuid.New().String(),
			GameID:   game.ID,
			PlayerID: players[i].ID,
			Number:   drawn[i],
		})
	}
	if err := e.store.CreatePlayerNumbers(ctx, rows); err != nil {
		return nil, nil, fmt.Errorf("assign numbers: %w", err)
	}

	numbers := make([]models.PlayerNumber, 0, len(rows))
	for _, pn := range rows {
		numbers = append(numbers, *pn)
	}
	logger.Log.Infof("room %s round %d started on topic %d with %d players",
		room.RoomCode, roundNumber, topic.Number, len(players))
	return game, numbers, nil
}

// StartRound begins round one: flips the room to playing and creates the
// first game of the match.
func (e *Engine) StartRound(ctx context.Context, room *models.Room, players []models.Player, genre models.Genre) (*models.Game, *models.Topic, []models.PlayerNumber, error) {
	if len(players) < e.minPlayers {
		return nil, nil, nil, ErrNotEnoughPlayers
	}
	// Guard against double invocation of round start.
	if _, err := e.store.LatestGame(ctx, room.ID); err == nil {
		return nil, nil, nil, ErrRoundAlreadyBegun
	} else if !errors.Is(err, persistence.ErrRecordNotFound) {
		return nil, nil, nil, fmt.Errorf("check existing game: %w", err)
	}

	topic, err := e.pickTopic(ctx, genre)
	if err != nil {
		return nil, nil, nil, err
	}

	room.Status = models.RoomPlaying
	room.CurrentRound = 1
	if err := e.store.UpdateRoom(ctx, room); err != nil {
		return nil, nil, nil, fmt.Errorf("mark room playing: %w", err)
	}

	game, numbers, err := e.createRound(ctx, room, players, topic, 1)
	if err != nil {
		return nil, nil, nil, err
	}
	return game, topic, numbers, nil
}

// NextRound supersedes the current game with a fresh one: round counter
// bumped, a different topic from the same category, new numbers.
func (e *Engine) NextRound(ctx context.Context, room *models.Room, players []models.Player, current *models.Game) (*models.Game, *models.Topic, []models.PlayerNumber, error) {
	if len(players) < e.minPlayers {
		return nil, nil, nil, ErrNotEnoughPlayers
	}

	currentTopic, err := e.store.GetTopic(ctx, current.TopicID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("get current topic: %w", err)
	}
	alternates, err := e.store.ListTopicsByCategory(ctx, currentTopic.Category, currentTopic.ID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("list alternate topics: %w", err)
	}
	if len(alternates) == 0 {
		return nil, nil, nil, ErrNoAlternateTopic
	}
	topic := alternates[e.rng.Intn(len(alternates))]

	nextRound := current.RoundNumber + 1
	// Duplicate-round guard against a double-tapped "next round".
	if latest, err := e.store.LatestGame(ctx, room.ID); err == nil && latest.RoundNumber >= nextRound {
		return nil, nil, nil, ErrRoundAlreadyBegun
	}

	room.CurrentRound = nextRound
	if err := e.store.UpdateRoom(ctx, room); err != nil {
		return nil, nil, nil, fmt.Errorf("bump room round: %w", err)
	}

	game, numbers, err := e.createRound(ctx, room, players, &topic, nextRound)
	if err != nil {
		return nil, nil, nil, err
	}
	return game, &topic, numbers, nil
}

// SubmitMatchWord records a player's clue for the current game, trimmed of
// surrounding whitespace.
func (e *Engine) SubmitMatchWord(ctx context.Context, pn *models.PlayerNumber, word string) error {
	word = strings.TrimSpace(word)
	if word == "" {
		return ErrEmptyMatchWord
	}
	pn.MatchWord = word
	if err := e.store.UpdatePlayerNumber(ctx, pn); err != nil {
		return fmt.Errorf("save match word: %w", err)
	}
	return nil
}

// AllSubmitted reports whether every current player has a non-empty trimmed
// clue recorded for the game's numbers.
func AllSubmitted(players []models.Player, numbers []models.PlayerNumber) bool {
	if len(players) == 0 {
		return false
	}
	byPlayer := make(map[string]*models.PlayerNumber, len(numbers))
	for i := range numbers {
		byPlayer[numbers[i].PlayerID] = &numbers[i]
	}
	for i := range players {
		pn, ok := byPlayer[players[i].ID]
		if !ok || !pn.Submitted() {
			return false
		}
	}
	return true
}

// SaveOrder assigns 1-based positions following the arranged id list, then
// advances the game to the reveal phase. The position writes are applied
// one by one but any failure surfaces as a single error and the phase is
// left untouched.
func (e *Engine) SaveOrder(ctx context.Context, game *models.Game, numbers []models.PlayerNumber, arrangedIDs []string) error {
	byPlayer := make(map[string]*models.PlayerNumber, len(numbers))
	for i := range numbers {
		byPlayer[numbers[i].PlayerID] = &numbers[i]
	}
	if len(arrangedIDs) != len(numbers) {
		return ErrOrderNotPermuted
	}
	seen := make(map[string]bool, len(arrangedIDs))
	for _, id := range arrangedIDs {
		if _, ok := byPlayer[id]; !ok || seen[id] {
			return ErrOrderNotPermuted
		}
		seen[id] = true
	}

	for index, id := range arrangedIDs {
		pn := byPlayer[id]
		position := index + 1
		pn.Position = &position
		if err := e.store.UpdatePlayerNumber(ctx, pn); err != nil {
			return fmt.Errorf("save position for player %s: %w", id, err)
		}
	}

	return e.AdvancePhase(ctx, game, models.PhaseReveal)
}

// AdvancePhase moves the game to the requested phase, accepting only the
// next phase in sequence. There is deliberately no unconditional phase
// overwrite.
func (e *Engine) AdvancePhase(ctx context.Context, game *models.Game, to models.Phase) error {
	if game.Phase == to {
		return state.ErrAlreadyInPhase
	}
	if !state.CanAdvance(game.Phase, to) {
		return state.ErrTransitionNotAllowed
	}
	previous := game.Phase
	game.Phase = to
	if to == models.PhaseResult {
		now := time.Now()
		game.EndedAt = &now
	}
	if err := e.store.UpdateGame(ctx, game); err != nil {
		game.Phase = previous
		game.EndedAt = nil
		return fmt.Errorf("advance phase: %w", err)
	}
	logger.Log.Infof("game %s advanced %s -> %s", game.ID, previous, to)
	return nil
}

func playerIDs(players []models.Player) []string {
	ids := make([]string, 0, len(players))
	for i := range players {
		ids = append(ids, players[i].ID)
	}
	return ids
}
