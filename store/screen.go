// store/screen.go
package store

import (
	"github.com/ShomaShirai/Ito-game/models"
)

// Screen is the client presentation state: which view a client should be
// rendering, derived purely from the cached room/game state.
type Screen string

const (
	ScreenTitle   Screen = "title"
	ScreenWaiting Screen = "waiting"
	ScreenDiscuss Screen = "discuss"
	ScreenArrange Screen = "arrange"
	ScreenReveal  Screen = "reveal"
	ScreenResult  Screen = "result"
	ScreenError   Screen = "error"
	ScreenLoading Screen = "loading"
)

// Screen derives the current view. An error message replaces the whole
// game UI; the only way out is back to the title.
func (s *GameStore) Screen() Screen {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	switch {
	case s.errMsg != "":
		return ScreenError
	case s.loading:
		return ScreenLoading
	case s.room == nil:
		return ScreenTitle
	case s.room.Status == models.RoomWaiting:
		return ScreenWaiting
	case s.room.Status == models.RoomFinished:
		return ScreenResult
	case s.game == nil:
		return ScreenLoading
	}

	switch s.game.Phase {
	case models.PhaseDiscuss:
		return ScreenDiscuss
	case models.PhaseArrange:
		return ScreenArrange
	case models.PhaseReveal:
		return ScreenReveal
	case models.PhaseResult:
		return ScreenResult
	}
	return ScreenLoading
}

// CanStartGame reports whether the start control should be enabled:
// host, waiting room, at least the minimum player count. Disabling the
// control is preferred over post-hoc errors.
func (s *GameStore) CanStartGame(minPlayers int) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.room != nil &&
		s.room.Status == models.RoomWaiting &&
		s.self != nil && s.self.IsHost &&
		len(s.players) >= minPlayers
}
