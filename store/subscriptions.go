// store/subscriptions.go
package store

import (
	"context"
	"errors"

	"github.com/ShomaShirai/Ito-game/feed"
	"github.com/ShomaShirai/Ito-game/logger"
	"github.com/ShomaShirai/Ito-game/models"
	"github.com/ShomaShirai/Ito-game/persistence"
	"github.com/ShomaShirai/Ito-game/state"
)

// subscribeToPlayers follows membership changes for a room.
func (s *GameStore) subscribeToPlayers(roomID string) {
	s.mutex.Lock()
	old := s.playersSub
	s.mutex.Unlock()
	if old != nil {
		old.Unsubscribe()
	}

	sub, err := s.transport.Subscribe(
		feed.Scope{Table: feed.TablePlayers, RoomID: roomID},
		s.handlePlayerEvent,
	)
	if err != nil {
		s.fail("リアルタイム購読に失敗しました", err)
		return
	}

	s.mutex.Lock()
	s.playersSub = sub
	s.mutex.Unlock()
}

// subscribeToGameStart follows the room row (to notice the game starting)
// and game inserts (to notice round rollover) for a room.
func (s *GameStore) subscribeToGameStart(roomID string) {
	s.mutex.Lock()
	oldRoom, oldStart := s.roomSub, s.gameStartSub
	s.mutex.Unlock()
	if oldRoom != nil {
		oldRoom.Unsubscribe()
	}
	if oldStart != nil {
		oldStart.Unsubscribe()
	}

	roomSub, err := s.transport.Subscribe(
		feed.Scope{Table: feed.TableRooms, RoomID: roomID},
		s.handleRoomEvent,
	)
	if err != nil {
		s.fail("リアルタイム購読に失敗しました", err)
		return
	}
	startSub, err := s.transport.Subscribe(
		feed.Scope{Table: feed.TableGames, RoomID: roomID},
		s.handleGameInsertEvent,
	)
	if err != nil {
		roomSub.Unsubscribe()
		s.fail("リアルタイム購読に失敗しました", err)
		return
	}

	s.mutex.Lock()
	s.roomSub = roomSub
	s.gameStartSub = startSub
	s.mutex.Unlock()
}

// subscribeToGameplay follows phase updates for the room's games and
// clue/position updates for one specific game. It is re-established for
// every new game id, tearing down the previous round's subscriptions
// first so events are never delivered twice.
func (s *GameStore) subscribeToGameplay(roomID, gameID string) {
	s.mutex.Lock()
	oldGame, oldNumbers := s.gameplaySub, s.numbersSub
	s.mutex.Unlock()
	if oldGame != nil {
		oldGame.Unsubscribe()
	}
	if oldNumbers != nil {
		oldNumbers.Unsubscribe()
	}

	gameSub, err := s.transport.Subscribe(
		feed.Scope{Table: feed.TableGames, RoomID: roomID},
		s.handleGameUpdateEvent,
	)
	if err != nil {
		s.fail("リアルタイム購読に失敗しました", err)
		return
	}
	numbersSub, err := s.transport.Subscribe(
		feed.Scope{Table: feed.TablePlayerNumbers, GameID: gameID},
		s.handlePlayerNumberEvent,
	)
	if err != nil {
		gameSub.Unsubscribe()
		s.fail("リアルタイム購読に失敗しました", err)
		return
	}

	s.mutex.Lock()
	s.gameplaySub = gameSub
	s.numbersSub = numbersSub
	s.mutex.Unlock()
}

// UnsubscribeFromRoom tears down every live subscription. Safe to call
// repeatedly and when nothing is subscribed.
func (s *GameStore) UnsubscribeFromRoom() {
	s.mutex.Lock()
	subs := []feed.Subscription{s.playersSub, s.roomSub, s.gameStartSub, s.gameplaySub, s.numbersSub}
	s.playersSub, s.roomSub, s.gameStartSub, s.gameplaySub, s.numbersSub = nil, nil, nil, nil, nil
	recheck := s.recheckTimer
	s.recheckTimer = 0
	s.mutex.Unlock()

	for _, sub := range subs {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
	if recheck != 0 && s.timers != nil {
		s.timers.RemoveTimer(recheck)
	}
}

// --- reconciliation handlers ---
//
// Every handler upserts/removes by identity so duplicate and out-of-order
// deliveries converge: an insert seen twice adds one entry, an update for
// an unknown row inserts it, a delete for an unknown row is a no-op.

func (s *GameStore) handlePlayerEvent(e feed.Event) {
	player, err := e.Player()
	if err != nil {
		logger.Log.Errorf("player event: %v", err)
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	switch e.Action {
	case feed.ActionInsert, feed.ActionUpdate:
		found := false
		for i := range s.players {
			if s.players[i].ID == player.ID {
				s.players[i] = *player
				found = true
				break
			}
		}
		if !found {
			s.players = append(s.players, *player)
		}
		if s.self != nil && s.self.ID == player.ID {
			c := *player
			s.self = &c
		}
	case feed.ActionDelete:
		kept := s.players[:0]
		for i := range s.players {
			if s.players[i].ID != player.ID {
				kept = append(kept, s.players[i])
			}
		}
		s.players = kept
	}
}

// roomStatusOrder mirrors the phase machine for the room lifecycle: the
// status only moves waiting → playing → finished, so a replayed row with
// an earlier status is stale.
var roomStatusOrder = map[models.RoomStatus]int{
	models.RoomWaiting:  0,
	models.RoomPlaying:  1,
	models.RoomFinished: 2,
}

func (s *GameStore) handleRoomEvent(e feed.Event) {
	if e.Action != feed.ActionUpdate {
		return
	}
	rm, err := e.Room()
	if err != nil {
		logger.Log.Errorf("room event: %v", err)
		return
	}

	s.mutex.Lock()
	if s.room == nil || s.room.ID != rm.ID {
		s.mutex.Unlock()
		return
	}
	cur, curKnown := roomStatusOrder[s.room.Status]
	next, nextKnown := roomStatusOrder[rm.Status]
	if !nextKnown || (curKnown && next < cur) {
		s.mutex.Unlock()
		return
	}
	s.room = rm
	needFetch := rm.Status == models.RoomPlaying && s.game == nil
	s.mutex.Unlock()

	// A non-host client learns the game started from the room flipping to
	// playing; it then pulls the freshly created round.
	if needFetch {
		s.loadCurrentRound(context.Background(), rm.ID)
	}
}

func (s *GameStore) handleGameInsertEvent(e feed.Event) {
	if e.Action != feed.ActionInsert {
		return
	}
	g, err := e.Game()
	if err != nil {
		logger.Log.Errorf("game insert event: %v", err)
		return
	}

	s.mutex.Lock()
	// Rounds only move forward: a replayed insert for the current or a
	// superseded round is stale.
	stale := s.game != nil && (s.game.ID == g.ID || g.RoundNumber <= s.game.RoundNumber)
	roomID := ""
	if s.room != nil {
		roomID = s.room.ID
	}
	s.mutex.Unlock()

	if stale || roomID == "" {
		return
	}
	s.adoptRound(context.Background(), roomID, g)
}

func (s *GameStore) handleGameUpdateEvent(e feed.Event) {
	if e.Action != feed.ActionUpdate {
		return
	}
	g, err := e.Game()
	if err != nil {
		logger.Log.Errorf("game update event: %v", err)
		return
	}
	// Only the round currently on screen is replaced; an update for a
	// superseded game id is stale and dropped.
	s.adoptGame(g)
}

func (s *GameStore) handlePlayerNumberEvent(e feed.Event) {
	pn, err := e.PlayerNumber()
	if err != nil {
		logger.Log.Errorf("player number event: %v", err)
		return
	}

	s.mutex.Lock()
	if s.game == nil || pn.GameID != s.game.ID {
		s.mutex.Unlock()
		return
	}
	found := false
	for i := range s.numbers {
		if s.numbers[i].ID == pn.ID {
			s.numbers[i] = *pn
			found = true
			break
		}
	}
	if !found && e.Action != feed.ActionDelete {
		s.numbers = append(s.numbers, *pn)
	}
	isHost := s.self != nil && s.self.IsHost
	inDiscuss := s.game.Phase == models.PhaseDiscuss
	s.mutex.Unlock()

	// Host-only reactive trigger: debounce the completeness re-check so a
	// burst of clue updates causes one pass.
	if isHost && inDiscuss {
		s.scheduleSubmittedRecheck()
	}
}

func (s *GameStore) scheduleSubmittedRecheck() {
	if s.timers == nil {
		s.CheckAllPlayersSubmitted(context.Background())
		return
	}

	s.mutex.Lock()
	pending := s.recheckTimer
	s.mutex.Unlock()
	if pending != 0 {
		s.timers.RemoveTimer(pending)
	}

	id := s.timers.AddTimer(recheckDelay, 0, func() {
		s.mutex.Lock()
		s.recheckTimer = 0
		s.mutex.Unlock()
		s.CheckAllPlayersSubmitted(context.Background())
	})

	s.mutex.Lock()
	s.recheckTimer = id
	s.mutex.Unlock()
}

// loadCurrentRound pulls the latest game plus its topic and numbers, then
// rewires the gameplay subscriptions to the new game id.
func (s *GameStore) loadCurrentRound(ctx context.Context, roomID string) {
	g, err := s.backend.LatestGame(ctx, roomID)
	if errors.Is(err, persistence.ErrRecordNotFound) {
		// The room flipped to playing before the game row landed; the
		// games insert notification will bring the round in.
		return
	}
	if err != nil {
		s.fail("ゲーム情報の取得に失敗しました", err)
		return
	}
	s.adoptRound(ctx, roomID, g)
}

// adoptRound installs a (possibly freshly discovered) game as the current
// round: fetches topic and numbers, resets reveal bookkeeping, and
// re-subscribes under the new game id.
func (s *GameStore) adoptRound(ctx context.Context, roomID string, g *models.Game) {
	topic, err := s.backend.GetTopic(ctx, g.TopicID)
	if err != nil {
		s.fail("トピック情報の取得に失敗しました", err)
		return
	}
	numbers, err := s.backend.ListPlayerNumbers(ctx, g.ID)
	if err != nil {
		s.fail("数字情報の取得に失敗しました", err)
		return
	}

	s.mutex.Lock()
	// Re-checked under the lock: the fetches above dropped it, and another
	// adoption may have won in the meantime.
	if s.game != nil && (s.game.ID == g.ID || g.RoundNumber <= s.game.RoundNumber) {
		s.mutex.Unlock()
		return
	}
	s.game = g
	s.topic = topic
	s.numbers = numbers
	s.phase = state.NewPhaseMachine(g.Phase)
	s.revealed = make(map[string]bool)
	s.mutex.Unlock()

	s.subscribeToGameplay(roomID, g.ID)
	logger.Log.Infof("adopted round %d (game %s)", g.RoundNumber, g.ID)
}
