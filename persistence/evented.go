// persistence/evented.go
package persistence

import (
	"context"

	"github.com/ShomaShirai/Ito-game/feed"
	"github.com/ShomaShirai/Ito-game/logger"
	"github.com/ShomaShirai/Ito-game/models"
)

// Evented decorates a Store so every successful mutation publishes a
// row-level change event, which is what the original hosted backend's
// realtime channels provided for free. Reads pass straight through.
type Evented struct {
	Store
	transport feed.Transport
}

func NewEvented(store Store, transport feed.Transport) *Evented {
	return &Evented{Store: store, transport: transport}
}

func (e *Evented) publish(ev feed.Event) {
	if err := e.transport.Publish(ev); err != nil {
		// Writes are authoritative; a lost notification only delays
		// convergence for remote clients.
		logger.Log.Warnf("publish %s %s event: %v", ev.Table, ev.Action, err)
	}
}

func (e *Evented) CreateRoom(ctx context.Context, room *models.Room) error {
	if err := e.Store.CreateRoom(ctx, room); err != nil {
		return err
	}
	e.publish(feed.RoomEvent(feed.ActionInsert, room))
	return nil
}

func (e *Evented) UpdateRoom(ctx context.Context, room *models.Room) error {
	if err := e.Store.UpdateRoom(ctx, room); err != nil {
		return err
	}
	e.publish(feed.RoomEvent(feed.ActionUpdate, room))
	return nil
}

func (e *Evented) DeleteRoom(ctx context.Context, id string) error {
	room, err := e.Store.GetRoom(ctx, id)
	if err != nil {
		return err
	}
	if err := e.Store.DeleteRoom(ctx, id); err != nil {
		return err
	}
	e.publish(feed.RoomEvent(feed.ActionDelete, room))
	return nil
}

func (e *Evented) CreatePlayer(ctx context.Context, player *models.Player) error {
	if err := e.Store.CreatePlayer(ctx, player); err != nil {
		return err
	}
	e.publish(feed.PlayerEvent(feed.ActionInsert, player))
	return nil
}

func (e *Evented) UpdatePlayer(ctx context.Context, player *models.Player) error {
	if err := e.Store.UpdatePlayer(ctx, player); err != nil {
		return err
	}
	e.publish(feed.PlayerEvent(feed.ActionUpdate, player))
	return nil
}

func (e *Evented) DeletePlayer(ctx context.Context, id string) error {
	player, err := e.Store.GetPlayer(ctx, id)
	if err != nil {
		return err
	}
	if err := e.Store.DeletePlayer(ctx, id); err != nil {
		return err
	}
	e.publish(feed.PlayerEvent(feed.ActionDelete, player))
	return nil
}

func (e *Evented) CreateGame(ctx context.Context, game *models.Game) error {
	if err := e.Store.CreateGame(ctx, game); err != nil {
		return err
	}
	e.publish(feed.GameEvent(feed.ActionInsert, game))
	return nil
}

func (e *Evented) UpdateGame(ctx context.Context, game *models.Game) error {
	if err := e.Store.UpdateGame(ctx, game); err != nil {
		return err
	}
	e.publish(feed.GameEvent(feed.ActionUpdate, game))
	return nil
}

func (e *Evented) CreatePlayerNumbers(ctx context.Context, numbers []*models.PlayerNumber) error {
	if err := e.Store.CreatePlayerNumbers(ctx, numbers); err != nil {
		return err
	}
	for _, pn := range numbers {
		e.publish(feed.PlayerNumberEvent(feed.ActionInsert, pn))
	}
	return nil
}

func (e *Evented) UpdatePlayerNumber(ctx context.Context, number *models.PlayerNumber) error {
	if err := e.Store.UpdatePlayerNumber(ctx, number); err != nil {
		return err
	}
	e.publish(feed.PlayerNumberEvent(feed.ActionUpdate, number))
	return nil
}
