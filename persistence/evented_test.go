// persistence/evented_test.go
package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/ShomaShirai/Ito-game/feed"
	"github.com/ShomaShirai/Ito-game/models"
)

func collectEvents(t *testing.T, bus *feed.Bus, scope feed.Scope) *[]feed.Event {
	t.Helper()
	var events []feed.Event
	if _, err := bus.Subscribe(scope, func(e feed.Event) {
		events = append(events, e)
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	return &events
}

func TestEventedPublishesMutations(t *testing.T) {
	bus := feed.NewBus()
	store := NewEvented(NewMemory(), bus)
	ctx := context.Background()

	roomEvents := collectEvents(t, bus, feed.Scope{Table: feed.TableRooms})
	playerEvents := collectEvents(t, bus, feed.Scope{Table: feed.TablePlayers})
	numberEvents := collectEvents(t, bus, feed.Scope{Table: feed.TablePlayerNumbers})

	room := &models.Room{ID: "r1", RoomCode: "AAAAAA", Status: models.RoomWaiting}
	if err := store.CreateRoom(ctx, room); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	room.Status = models.RoomPlaying
	if err := store.UpdateRoom(ctx, room); err != nil {
		t.Fatalf("UpdateRoom: %v", err)
	}

	player := &models.Player{ID: "p1", RoomID: "r1", Name: "Alice"}
	if err := store.CreatePlayer(ctx, player); err != nil {
		t.Fatalf("CreatePlayer: %v", err)
	}
	if err := store.DeletePlayer(ctx, "p1"); err != nil {
		t.Fatalf("DeletePlayer: %v", err)
	}

	if err := store.CreatePlayerNumbers(ctx, []*models.PlayerNumber{
		{ID: "n1", GameID: "g1", PlayerID: "p1", Number: 10},
		{ID: "n2", GameID: "g1", PlayerID: "p2", Number: 20},
	}); err != nil {
		t.Fatalf("CreatePlayerNumbers: %v", err)
	}

	if got := len(*roomEvents); got != 2 {
		t.Errorf("room events = %d, want insert+update", got)
	}
	if (*roomEvents)[1].Action != feed.ActionUpdate {
		t.Errorf("second room event action = %s", (*roomEvents)[1].Action)
	}

	if got := len(*playerEvents); got != 2 {
		t.Fatalf("player events = %d, want insert+delete", got)
	}
	if (*playerEvents)[1].Action != feed.ActionDelete {
		t.Errorf("second player event action = %s", (*playerEvents)[1].Action)
	}
	// Delete events carry the row as it was before removal.
	deleted, err := (*playerEvents)[1].Player()
	if err != nil {
		t.Fatalf("decode deleted player: %v", err)
	}
	if deleted.Name != "Alice" {
		t.Errorf("deleted payload name = %q", deleted.Name)
	}

	if got := len(*numberEvents); got != 2 {
		t.Errorf("number events = %d, want one per row", got)
	}
}

type failingStore struct {
	Store
}

func (s *failingStore) UpdateRoom(ctx context.Context, room *models.Room) error {
	return errors.New("write failed")
}

func TestEventedSkipsEventOnFailedWrite(t *testing.T) {
	bus := feed.NewBus()
	store := NewEvented(&failingStore{Store: NewMemory()}, bus)

	events := collectEvents(t, bus, feed.Scope{Table: feed.TableRooms})

	err := store.UpdateRoom(context.Background(), &models.Room{ID: "r1"})
	if err == nil {
		t.Fatal("expected write failure to surface")
	}
	if len(*events) != 0 {
		t.Errorf("events published for a failed write: %d", len(*events))
	}
}

func TestEventedDeleteMissingRowPublishesNothing(t *testing.T) {
	bus := feed.NewBus()
	store := NewEvented(NewMemory(), bus)

	events := collectEvents(t, bus, feed.Scope{Table: feed.TablePlayers})

	if err := store.DeletePlayer(context.Background(), "ghost"); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("err = %v, want ErrRecordNotFound", err)
	}
	if len(*events) != 0 {
		t.Errorf("events published for a missing row: %d", len(*events))
	}
}
