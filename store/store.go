// store/store.go
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ShomaShirai/Ito-game/feed"
	"github.com/ShomaShirai/Ito-game/game"
	"github.com/ShomaShirai/Ito-game/logger"
	"github.com/ShomaShirai/Ito-game/models"
	"github.com/ShomaShirai/Ito-game/persistence"
	"github.com/ShomaShirai/Ito-game/room"
	"github.com/ShomaShirai/Ito-game/scoring"
	"github.com/ShomaShirai/Ito-game/state"
	"github.com/ShomaShirai/Ito-game/timer"
)

// ErrNotHost is returned when a non-host player invokes a host-only action.
var ErrNotHost = room.ErrNotHost

// ErrNotInRoom is returned when an action requires room membership.
var ErrNotInRoom = errors.New("not in a room")

// recheckDelay debounces the host's all-submitted re-check after a clue
// notification arrives.
const recheckDelay = time.Second

// GameStore is one client's view of a room and its current round: a local
// cache kept eventually consistent with the backend through the change
// feed, plus the actions that mutate the shared state.
//
// The authoritative state lives in the backend; everything here may be
// momentarily stale. Reconciliation handlers are idempotent so duplicate
// or out-of-order deliveries converge to the same local state.
type GameStore struct {
	backend   persistence.Store
	transport feed.Transport
	registry  *room.Registry
	engine    *game.Engine
	timers    *timer.TimerManager

	mutex   sync.Mutex
	room    *models.Room
	self    *models.Player
	players []models.Player
	game    *models.Game
	topic   *models.Topic
	numbers []models.PlayerNumber
	phase   *state.PhaseMachine

	revealed map[string]bool // player_number id -> shown locally
	scored   map[string]bool // game id -> penalties already applied

	errMsg  string
	loading bool

	playersSub    feed.Subscription
	roomSub       feed.Subscription
	gameStartSub  feed.Subscription
	gameplaySub   feed.Subscription
	numbersSub    feed.Subscription
	recheckTimer  int64
}

func New(backend persistence.Store, transport feed.Transport, registry *room.Registry, engine *game.Engine, timers *timer.TimerManager) *GameStore {
	return &GameStore{
		backend:   backend,
		transport: transport,
		registry:  registry,
		engine:    engine,
		timers:    timers,
		revealed:  make(map[string]bool),
		scored:    make(map[string]bool),
	}
}

// --- 状态读取 ---

func (s *GameStore) Room() *models.Room {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.room == nil {
		return nil
	}
	c := *s.room
	return &c
}

func (s *GameStore) Self() *models.Player {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.self == nil {
		return nil
	}
	c := *s.self
	return &c
}

func (s *GameStore) Players() []models.Player {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]models.Player(nil), s.players...)
}

func (s *GameStore) Game() *models.Game {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.game == nil {
		return nil
	}
	c := *s.game
	return &c
}

func (s *GameStore) Topic() *models.Topic {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.topic == nil {
		return nil
	}
	c := *s.topic
	return &c
}

func (s *GameStore) Numbers() []models.PlayerNumber {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]models.PlayerNumber(nil), s.numbers...)
}

// OwnNumber returns this client's secret number row for the current round.
func (s *GameStore) OwnNumber() *models.PlayerNumber {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.self == nil {
		return nil
	}
	for i := range s.numbers {
		if s.numbers[i].PlayerID == s.self.ID {
			c := s.numbers[i]
			return &c
		}
	}
	return nil
}

func (s *GameStore) ErrMessage() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.errMsg
}

func (s *GameStore) ClearError() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.errMsg = ""
}

func (s *GameStore) Loading() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.loading
}

// fail records a user-facing message for the error screen, logs the cause,
// and passes the error through.
func (s *GameStore) fail(msg string, err error) error {
	s.mutex.Lock()
	s.errMsg = msg
	s.loading = false
	s.mutex.Unlock()
	logger.Log.Errorf("%s: %v", msg, err)
	return err
}

func (s *GameStore) setLoading(v bool) {
	s.mutex.Lock()
	s.loading = v
	if v {
		s.errMsg = ""
	}
	s.mutex.Unlock()
}

// --- 房间操作 ---

// CreateRoom creates a room with this client as host and returns the
// shareable room code.
func (s *GameStore) CreateRoom(ctx context.Context, playerName string) (string, error) {
	s.setLoading(true)

	rm, host, err := s.registry.CreateRoom(ctx, playerName)
	if err != nil {
		return "", s.fail("ルームの作成に失敗しました", err)
	}

	s.mutex.Lock()
	s.room = rm
	s.self = host
	s.players = []models.Player{*host}
	s.loading = false
	s.mutex.Unlock()

	s.subscribeToPlayers(rm.ID)
	s.subscribeToGameStart(rm.ID)
	return rm.RoomCode, nil
}

// JoinRoom adds this client to an existing waiting room.
func (s *GameStore) JoinRoom(ctx context.Context, code, playerName string) error {
	s.setLoading(true)

	rm, player, err := s.registry.JoinRoom(ctx, code, playerName)
	if err != nil {
		switch {
		case errors.Is(err, room.ErrRoomNotFound):
			return s.fail("ルームが見つかりません", err)
		case errors.Is(err, room.ErrRoomNotJoinable):
			return s.fail("このルームは既にゲーム中です", err)
		case errors.Is(err, room.ErrNameTaken):
			return s.fail("この名前は既に利用されています。別の名前を選んでください。", err)
		default:
			return s.fail("ルームへの参加に失敗しました", err)
		}
	}

	players, err := s.registry.Players(ctx, rm.ID)
	if err != nil {
		return s.fail("プレイヤー一覧の取得に失敗しました", err)
	}

	s.mutex.Lock()
	s.room = rm
	s.self = player
	s.players = players
	s.loading = false
	s.mutex.Unlock()

	s.subscribeToPlayers(rm.ID)
	s.subscribeToGameStart(rm.ID)
	return nil
}

// LeaveRoom tears down all subscriptions, deletes this client's player row
// and resets the local cache.
func (s *GameStore) LeaveRoom(ctx context.Context) error {
	s.UnsubscribeFromRoom()

	s.mutex.Lock()
	self := s.self
	s.mutex.Unlock()

	var err error
	if self != nil {
		err = s.registry.Leave(ctx, self.ID)
		if err != nil {
			logger.Log.Errorf("leave room: %v", err)
		}
	}

	s.mutex.Lock()
	s.room = nil
	s.self = nil
	s.players = nil
	s.game = nil
	s.topic = nil
	s.numbers = nil
	s.phase = nil
	s.revealed = make(map[string]bool)
	s.errMsg = ""
	s.mutex.Unlock()
	return err
}

// --- 回合操作 ---

// StartGame begins the first round. Host only.
func (s *GameStore) StartGame(ctx context.Context, genre models.Genre) error {
	s.mutex.Lock()
	rm, self := s.room, s.self
	players := append([]models.Player(nil), s.players...)
	s.mutex.Unlock()

	if rm == nil || self == nil {
		return ErrNotInRoom
	}
	if !self.IsHost {
		return ErrNotHost
	}
	s.setLoading(true)

	roomCopy := *rm
	g, topic, numbers, err := s.engine.StartRound(ctx, &roomCopy, players, genre)
	if err != nil {
		if errors.Is(err, game.ErrNotEnoughPlayers) {
			return s.fail("プレイヤーが足りません", err)
		}
		return s.fail("ゲームの開始に失敗しました", err)
	}

	s.mutex.Lock()
	s.room = &roomCopy
	s.game = g
	s.topic = topic
	s.numbers = numbers
	s.phase = state.NewPhaseMachine(g.Phase)
	s.revealed = make(map[string]bool)
	s.loading = false
	s.mutex.Unlock()

	s.subscribeToGameplay(roomCopy.ID, g.ID)
	return nil
}

// SendMatchWord records this client's clue for the current round and, when
// this client is the host, immediately re-checks completeness.
func (s *GameStore) SendMatchWord(ctx context.Context, word string) error {
	s.mutex.Lock()
	self, g := s.self, s.game
	var own *models.PlayerNumber
	for i := range s.numbers {
		if self != nil && s.numbers[i].PlayerID == self.ID {
			c := s.numbers[i]
			own = &c
			break
		}
	}
	s.mutex.Unlock()

	if self == nil || g == nil || own == nil {
		return ErrNotInRoom
	}

	if err := s.engine.SubmitMatchWord(ctx, own, word); err != nil {
		if errors.Is(err, game.ErrEmptyMatchWord) {
			return err
		}
		return s.fail("表現の送信に失敗しました", err)
	}

	s.mutex.Lock()
	for i := range s.numbers {
		if s.numbers[i].ID == own.ID {
			s.numbers[i] = *own
		}
	}
	s.mutex.Unlock()

	s.CheckAllPlayersSubmitted(ctx)
	return nil
}

// CheckAllPlayersSubmitted advances discuss -> arrange once every player
// has a clue. Host only; a no-op in any other phase, and safe to call any
// number of times (repeat invocations after the phase moved do nothing).
func (s *GameStore) CheckAllPlayersSubmitted(ctx context.Context) {
	s.mutex.Lock()
	self, g := s.self, s.game
	players := append([]models.Player(nil), s.players...)
	numbers := append([]models.PlayerNumber(nil), s.numbers...)
	s.mutex.Unlock()

	if self == nil || g == nil || !self.IsHost {
		return
	}
	if g.Phase != models.PhaseDiscuss {
		return
	}
	if !game.AllSubmitted(players, numbers) {
		return
	}

	gameCopy := *g
	if err := s.engine.AdvancePhase(ctx, &gameCopy, models.PhaseArrange); err != nil {
		if errors.Is(err, state.ErrAlreadyInPhase) || errors.Is(err, state.ErrTransitionNotAllowed) {
			// another invocation won the race
			return
		}
		s.fail("フェーズの更新に失敗しました", err)
		return
	}
	s.adoptGame(&gameCopy)
}

// SavePlayerOrder persists the host's arrangement as 1-based positions and
// moves the round to the reveal phase.
func (s *GameStore) SavePlayerOrder(ctx context.Context, arrangedPlayerIDs []string) error {
	s.mutex.Lock()
	self, g := s.self, s.game
	numbers := append([]models.PlayerNumber(nil), s.numbers...)
	s.mutex.Unlock()

	if self == nil || g == nil {
		return ErrNotInRoom
	}
	if !self.IsHost {
		return ErrNotHost
	}

	gameCopy := *g
	if err := s.engine.SaveOrder(ctx, &gameCopy, numbers, arrangedPlayerIDs); err != nil {
		return s.fail("順番の保存に失敗しました", err)
	}

	s.mutex.Lock()
	s.numbers = numbers
	s.mutex.Unlock()
	s.adoptGame(&gameCopy)
	return nil
}

// StartNextGame rolls the room over to the next round. Host only.
func (s *GameStore) StartNextGame(ctx context.Context) error {
	s.mutex.Lock()
	rm, self, g := s.room, s.self, s.game
	players := append([]models.Player(nil), s.players...)
	s.mutex.Unlock()

	if rm == nil || self == nil || g == nil {
		return ErrNotInRoom
	}
	if !self.IsHost {
		return ErrNotHost
	}
	s.setLoading(true)

	roomCopy := *rm
	next, topic, numbers, err := s.engine.NextRound(ctx, &roomCopy, players, g)
	if err != nil {
		if errors.Is(err, game.ErrNoAlternateTopic) {
			return s.fail("利用可能なトピックがありません", err)
		}
		return s.fail("次のゲームの開始に失敗しました", err)
	}

	s.mutex.Lock()
	s.room = &roomCopy
	s.game = next
	s.topic = topic
	s.numbers = numbers
	s.phase = state.NewPhaseMachine(next.Phase)
	s.revealed = make(map[string]bool)
	s.loading = false
	s.mutex.Unlock()

	s.subscribeToGameplay(roomCopy.ID, next.ID)
	return nil
}

// adoptGame replaces the cached game and keeps the phase machine in step.
// The machine refuses to move backwards, and the cached row follows the
// machine, so a stale replay can never rewind the screen.
func (s *GameStore) adoptGame(g *models.Game) {
	s.mutex.Lock()
	if s.game == nil || s.game.ID != g.ID {
		s.mutex.Unlock()
		return
	}
	pm := s.phase
	s.mutex.Unlock()

	if pm != nil {
		pm.Observe(g.Phase)
	}

	s.mutex.Lock()
	if s.game != nil && s.game.ID == g.ID {
		c := *g
		if pm != nil {
			c.Phase = pm.Current()
		}
		s.game = &c
	}
	s.mutex.Unlock()
}

// --- 开牌与判定 ---

// RevealNext marks the next unrevealed player (in arranged order) as shown.
// When the last one flips, the round is scored exactly once and the host
// advances the round to the result phase.
func (s *GameStore) RevealNext(ctx context.Context) error {
	s.mutex.Lock()
	if s.game == nil || s.game.Phase != models.PhaseReveal {
		s.mutex.Unlock()
		return fmt.Errorf("not in reveal phase")
	}
	ordered := arrangedOrder(s.numbers)
	for _, pn := range ordered {
		if !s.revealed[pn.ID] {
			s.revealed[pn.ID] = true
			break
		}
	}
	done := len(ordered) > 0 && allRevealed(ordered, s.revealed)
	s.mutex.Unlock()

	if done {
		return s.finishReveal(ctx)
	}
	return nil
}

// RevealAll flips every remaining number at once.
func (s *GameStore) RevealAll(ctx context.Context) error {
	s.mutex.Lock()
	if s.game == nil || s.game.Phase != models.PhaseReveal {
		s.mutex.Unlock()
		return fmt.Errorf("not in reveal phase")
	}
	ordered := arrangedOrder(s.numbers)
	for _, pn := range ordered {
		s.revealed[pn.ID] = true
	}
	done := len(ordered) > 0
	s.mutex.Unlock()

	if done {
		return s.finishReveal(ctx)
	}
	return nil
}

// Revealed reports whether a number row has been shown locally.
func (s *GameStore) Revealed(playerNumberID string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.revealed[playerNumberID]
}

// finishReveal applies the round penalty exactly once per game, no matter
// how many times the reveal completes (re-renders, duplicate events).
func (s *GameStore) finishReveal(ctx context.Context) error {
	s.mutex.Lock()
	g, self := s.game, s.self
	if g == nil || s.scored[g.ID] {
		s.mutex.Unlock()
		return nil
	}
	s.scored[g.ID] = true
	numbers := append([]models.PlayerNumber(nil), s.numbers...)
	s.mutex.Unlock()

	outcome, err := scoring.Evaluate(numbers)
	if err != nil {
		s.mutex.Lock()
		delete(s.scored, g.ID)
		s.mutex.Unlock()
		return s.fail("結果の集計に失敗しました", err)
	}

	// Only the host writes the penalties; everyone else sees them arrive
	// through player update events. Running this on every client would
	// multiply the penalty.
	if self != nil && self.IsHost && !outcome.Perfect {
		if err := s.applyPenalties(ctx, outcome.Penalized); err != nil {
			// Partial effect is possible; surface without rolling back.
			return s.fail("点数の更新に失敗しました", err)
		}
	}

	// Only the host closes out the round.
	if self != nil && self.IsHost {
		gameCopy := *g
		if err := s.engine.AdvancePhase(ctx, &gameCopy, models.PhaseResult); err != nil &&
			!errors.Is(err, state.ErrAlreadyInPhase) {
			return s.fail("フェーズの更新に失敗しました", err)
		}
		s.adoptGame(&gameCopy)
	}
	return nil
}

// applyPenalties decrements one life from every penalized player. Each
// write is independent; failures are joined and reported together while
// successful updates stand.
func (s *GameStore) applyPenalties(ctx context.Context, playerIDs []string) error {
	var errs []error
	for _, id := range playerIDs {
		if err := s.UpdatePlayerLife(ctx, id, -scoring.Penalty); err != nil {
			errs = append(errs, fmt.Errorf("player %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// UpdatePlayerLife adjusts a player's life optimistically: the local cache
// changes first, the backend write follows, and the local change is
// reverted if the write fails.
func (s *GameStore) UpdatePlayerLife(ctx context.Context, playerID string, delta int) error {
	var updated *models.Player

	apply := func() {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		for i := range s.players {
			if s.players[i].ID == playerID {
				s.players[i].TotalLife += delta
				c := s.players[i]
				updated = &c
				if s.self != nil && s.self.ID == playerID {
					s.self.TotalLife += delta
				}
				return
			}
		}
	}
	revert := func() {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		for i := range s.players {
			if s.players[i].ID == playerID {
				s.players[i].TotalLife -= delta
			}
		}
		if s.self != nil && s.self.ID == playerID {
			s.self.TotalLife -= delta
		}
	}
	write := func() error {
		if updated == nil {
			return fmt.Errorf("player %s not in local cache", playerID)
		}
		return s.backend.UpdatePlayer(ctx, updated)
	}

	return s.applyOptimistic(apply, revert, write)
}

// applyOptimistic is the shared apply-locally / confirm-remotely / revert-
// on-failure helper every optimistic mutation goes through.
func (s *GameStore) applyOptimistic(apply, revert func(), write func() error) error {
	apply()
	if err := write(); err != nil {
		revert()
		return err
	}
	return nil
}

// Close releases the store's subscriptions.
func (s *GameStore) Close() {
	s.UnsubscribeFromRoom()
}

// --- helpers ---

func arrangedOrder(numbers []models.PlayerNumber) []models.PlayerNumber {
	var ordered []models.PlayerNumber
	for i := range numbers {
		if numbers[i].Position != nil {
			ordered = append(ordered, numbers[i])
		}
	}
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && *ordered[j].Position < *ordered[j-1].Position; j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}
	return ordered
}

func allRevealed(ordered []models.PlayerNumber, revealed map[string]bool) bool {
	for i := range ordered {
		if !revealed[ordered[i].ID] {
			return false
		}
	}
	return true
}
