// services/life_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/ShomaShirai/Ito-game/models"
	"github.com/ShomaShirai/Ito-game/persistence"
	"github.com/ShomaShirai/Ito-game/scoring"
)

// Transactor is implemented by SQL-backed stores.
type Transactor interface {
	Transaction(fn func(tx *gorm.DB) error) error
}

// LifeService applies round penalties and reports room standings.
type LifeService struct {
	store persistence.Store
}

func NewLifeService(store persistence.Store) *LifeService {
	return &LifeService{store: store}
}

// AdjustLife changes one player's life by delta, never below zero.
// SQL backends get an atomic in-database update.
func (s *LifeService) AdjustLife(ctx context.Context, playerID string, delta int) error {
	if tx, ok := s.store.(Transactor); ok {
		return tx.Transaction(func(db *gorm.DB) error {
			result := db.WithContext(ctx).
				Model(&models.GormPlayer{}).
				Where("id = ? AND total_life + ? >= 0", playerID, delta).
				Update("total_life", gorm.Expr("total_life + ?", delta))
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return persistence.ErrRecordNotFound
			}
			return nil
		})
	}

	player, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return err
	}
	if player.TotalLife+delta < 0 {
		return persistence.ErrRecordNotFound
	}
	player.TotalLife += delta
	return s.store.UpdatePlayer(ctx, player)
}

// ApplyOutcome subtracts the round penalty from every penalized player.
// Each write is independent so one failure does not block the rest.
func (s *LifeService) ApplyOutcome(ctx context.Context, outcome scoring.Outcome) error {
	var errs []error
	for _, playerID := range outcome.Penalized {
		if err := s.AdjustLife(ctx, playerID, -scoring.Penalty); err != nil {
			errs = append(errs, fmt.Errorf("penalize player %s: %w", playerID, err))
		}
	}
	return errors.Join(errs...)
}

// Standing is one row of a room's life ranking.
type Standing struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Life       int    `json:"life"`
	IsHost     bool   `json:"is_host"`
}

// Standings returns the room's players ordered by remaining life,
// ties broken by join order.
func (s *LifeService) Standings(ctx context.Context, roomID string) ([]Standing, error) {
	players, err := s.store.ListPlayers(ctx, roomID)
	if err != nil {
		return nil, err
	}
	standings := make([]Standing, 0, len(players))
	for _, p := range players {
		standings = append(standings, Standing{
			PlayerID:   p.ID,
			PlayerName: p.Name,
			Life:       p.TotalLife,
			IsHost:     p.IsHost,
		})
	}
	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Life > standings[j].Life
	})
	return standings, nil
}
