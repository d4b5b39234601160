// rpc/rpc.go
package rpc

import (
	"context"
	"fmt"
	"net"
	"net/rpc"
	"strings"

	"github.com/ShomaShirai/Ito-game/logger"
	"github.com/ShomaShirai/Ito-game/persistence"
	"github.com/ShomaShirai/Ito-game/services"
)

// StatsService exposes room standings over net/rpc for ops tooling.
type StatsService struct {
	store persistence.Store
	lives *services.LifeService
}

func NewStatsService(store persistence.Store, lives *services.LifeService) *StatsService {
	return &StatsService{store: store, lives: lives}
}

type StandingsArgs struct {
	RoomCode string
}

type StandingsReply struct {
	RoomID    string
	RoomCode  string
	Status    string
	Standings []services.Standing
}

// GetRoomStandings returns the life ranking for a room by its code.
func (s *StatsService) GetRoomStandings(args *StandingsArgs, reply *StandingsReply) error {
	ctx := context.Background()
	room, err := s.store.GetRoomByCode(ctx, strings.ToUpper(args.RoomCode))
	if err != nil {
		return fmt.Errorf("room %s: %w", args.RoomCode, err)
	}
	standings, err := s.lives.Standings(ctx, room.ID)
	if err != nil {
		return err
	}
	reply.RoomID = room.ID
	reply.RoomCode = room.RoomCode
	reply.Status = string(room.Status)
	reply.Standings = standings
	return nil
}

type RoundArgs struct {
	RoomCode string
}

type RoundReply struct {
	GameID      string
	RoundNumber int
	Phase       string
	Category    string
}

// GetCurrentRound reports the latest round of a room.
func (s *StatsService) GetCurrentRound(args *RoundArgs, reply *RoundReply) error {
	ctx := context.Background()
	room, err := s.store.GetRoomByCode(ctx, strings.ToUpper(args.RoomCode))
	if err != nil {
		return fmt.Errorf("room %s: %w", args.RoomCode, err)
	}
	game, err := s.store.LatestGame(ctx, room.ID)
	if err != nil {
		return fmt.Errorf("latest game: %w", err)
	}
	reply.GameID = game.ID
	reply.RoundNumber = game.RoundNumber
	reply.Phase = string(game.Phase)
	if topic, err := s.store.GetTopic(ctx, game.TopicID); err == nil {
		reply.Category = string(topic.Category)
	}
	return nil
}

// StartServer registers the service and serves on addr.
func StartServer(addr string, svc *StatsService) error {
	server := rpc.NewServer()
	if err := server.RegisterName("Stats", svc); err != nil {
		return err
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		logger.Log.Infof("rpc server listening on %s", addr)
		server.Accept(listener)
	}()
	return nil
}
