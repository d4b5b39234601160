// room/registry_test.go
package room

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ShomaShirai/Ito-game/models"
	"github.com/ShomaShirai/Ito-game/persistence"
)

func newTestRegistry() (*Registry, persistence.Store) {
	store := persistence.NewMemory()
	return NewRegistry(store, 6, 3, 3), store
}

func TestCreateRoom(t *testing.T) {
	registry, store := newTestRegistry()
	ctx := context.Background()

	rm, host, err := registry.CreateRoom(ctx, "Alice")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	if len(rm.RoomCode) != 6 {
		t.Errorf("room code %q, want 6 characters", rm.RoomCode)
	}
	if rm.RoomCode != strings.ToUpper(rm.RoomCode) {
		t.Errorf("room code %q is not uppercase", rm.RoomCode)
	}
	if rm.Status != models.RoomWaiting {
		t.Errorf("status = %s, want waiting", rm.Status)
	}
	if rm.HostID != host.ID {
		t.Errorf("HostID = %s, want %s", rm.HostID, host.ID)
	}
	if !host.IsHost {
		t.Error("host player is not flagged as host")
	}
	if host.TotalLife != 3 {
		t.Errorf("host life = %d, want 3", host.TotalLife)
	}

	stored, err := store.GetRoom(ctx, rm.ID)
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if stored.HostID != host.ID {
		t.Errorf("stored HostID = %s, want %s", stored.HostID, host.ID)
	}
}

func TestCreateRoomRejectsEmptyName(t *testing.T) {
	registry, _ := newTestRegistry()

	if _, _, err := registry.CreateRoom(context.Background(), "   "); err == nil {
		t.Error("expected error for blank host name")
	}
}

func TestJoinRoom(t *testing.T) {
	registry, _ := newTestRegistry()
	ctx := context.Background()

	rm, _, err := registry.CreateRoom(ctx, "Alice")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	// Code lookup is case-insensitive.
	joined, player, err := registry.JoinRoom(ctx, strings.ToLower(rm.RoomCode), "Bob")
	if err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	if joined.ID != rm.ID {
		t.Errorf("joined room %s, want %s", joined.ID, rm.ID)
	}
	if player.IsHost {
		t.Error("joining player must not be host")
	}

	players, err := registry.Players(ctx, rm.ID)
	if err != nil {
		t.Fatalf("Players: %v", err)
	}
	if len(players) != 2 {
		t.Fatalf("room has %d players, want 2", len(players))
	}
	if players[0].Name != "Alice" || players[1].Name != "Bob" {
		t.Errorf("join order = %s, %s", players[0].Name, players[1].Name)
	}
}

func TestJoinRoomUnknownCode(t *testing.T) {
	registry, _ := newTestRegistry()

	if _, _, err := registry.JoinRoom(context.Background(), "ZZZZZZ", "Bob"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("err = %v, want ErrRoomNotFound", err)
	}
}

func TestJoinRoomNotWaiting(t *testing.T) {
	registry, store := newTestRegistry()
	ctx := context.Background()

	rm, _, err := registry.CreateRoom(ctx, "Alice")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	rm.Status = models.RoomPlaying
	if err := store.UpdateRoom(ctx, rm); err != nil {
		t.Fatalf("UpdateRoom: %v", err)
	}

	if _, _, err := registry.JoinRoom(ctx, rm.RoomCode, "Bob"); !errors.Is(err, ErrRoomNotJoinable) {
		t.Errorf("err = %v, want ErrRoomNotJoinable", err)
	}
}

func TestJoinRoomNameTaken(t *testing.T) {
	registry, _ := newTestRegistry()
	ctx := context.Background()

	rm, _, err := registry.CreateRoom(ctx, "Alice")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	if _, _, err := registry.JoinRoom(ctx, rm.RoomCode, "Alice"); !errors.Is(err, ErrNameTaken) {
		t.Errorf("duplicate name: err = %v, want ErrNameTaken", err)
	}

	// Different casing is a different name.
	if _, _, err := registry.JoinRoom(ctx, rm.RoomCode, "alice"); err != nil {
		t.Errorf("lowercase variant rejected: %v", err)
	}
}

func TestLeaveRemovesPlayer(t *testing.T) {
	registry, _ := newTestRegistry()
	ctx := context.Background()

	rm, _, err := registry.CreateRoom(ctx, "Alice")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	_, bob, err := registry.JoinRoom(ctx, rm.RoomCode, "Bob")
	if err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}

	if err := registry.Leave(ctx, bob.ID); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	players, err := registry.Players(ctx, rm.ID)
	if err != nil {
		t.Fatalf("Players: %v", err)
	}
	if len(players) != 1 || players[0].Name != "Alice" {
		t.Errorf("players after leave = %v", players)
	}
}

// collidingStore reports the first n code lookups as taken, regardless of
// the generated code, to exercise the retry loop.
type collidingStore struct {
	persistence.Store
	collisions int
	lookups    int
}

func (s *collidingStore) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	s.lookups++
	if s.lookups <= s.collisions {
		return &models.Room{ID: "occupied", RoomCode: code}, nil
	}
	return s.Store.GetRoomByCode(ctx, code)
}

func TestCreateRoomRetriesOnCodeCollision(t *testing.T) {
	store := &collidingStore{Store: persistence.NewMemory(), collisions: 3}
	registry := NewRegistry(store, 6, 3, 3)

	rm, _, err := registry.CreateRoom(context.Background(), "Alice")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if rm == nil || rm.ID == "occupied" {
		t.Fatal("got the colliding room back")
	}
	if store.lookups != 4 {
		t.Errorf("code lookups = %d, want 4", store.lookups)
	}
}

func TestCreateRoomGivesUpAfterRetries(t *testing.T) {
	store := &collidingStore{Store: persistence.NewMemory(), collisions: 100}
	registry := NewRegistry(store, 6, 3, 3)

	if _, _, err := registry.CreateRoom(context.Background(), "Alice"); err == nil {
		t.Error("expected failure after exhausting code attempts")
	}
}

// hostInsertFailStore fails player creation so the compensating room
// delete can be observed.
type hostInsertFailStore struct {
	persistence.Store
	deletedRooms []string
}

func (s *hostInsertFailStore) CreatePlayer(ctx context.Context, player *models.Player) error {
	return errors.New("boom")
}

func (s *hostInsertFailStore) DeleteRoom(ctx context.Context, id string) error {
	s.deletedRooms = append(s.deletedRooms, id)
	return s.Store.DeleteRoom(ctx, id)
}

func TestCreateRoomRollsBackOnHostFailure(t *testing.T) {
	inner := persistence.NewMemory()
	store := &hostInsertFailStore{Store: inner}
	registry := NewRegistry(store, 6, 3, 3)

	_, _, err := registry.CreateRoom(context.Background(), "Alice")
	if err == nil {
		t.Fatal("expected host insert failure to surface")
	}

	// The half-created room must be gone again.
	if len(store.deletedRooms) != 1 {
		t.Fatalf("compensating deletes = %d, want 1", len(store.deletedRooms))
	}
	if _, err := inner.GetRoom(context.Background(), store.deletedRooms[0]); !errors.Is(err, persistence.ErrRecordNotFound) {
		t.Errorf("room still present after rollback: err = %v", err)
	}
}
