// server/server_test.go
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ShomaShirai/Ito-game/feed"
	"github.com/ShomaShirai/Ito-game/game"
	"github.com/ShomaShirai/Ito-game/models"
	"github.com/ShomaShirai/Ito-game/monitor"
	"github.com/ShomaShirai/Ito-game/network"
	"github.com/ShomaShirai/Ito-game/persistence"
	"github.com/ShomaShirai/Ito-game/room"
	"github.com/ShomaShirai/Ito-game/services"
)

func newTestServer(t *testing.T) (*GameServer, *room.Registry, *httptest.Server) {
	t.Helper()

	bus := feed.NewBus()
	store := persistence.NewEvented(persistence.NewMemory(), bus)
	registry := room.NewRegistry(store, 6, 3, 3)
	engine := game.NewEngine(store, 1, 100, 2)
	lives := services.NewLifeService(store)

	srv := NewGameServer(store, bus, registry, engine, lives)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, registry, ts
}

func TestHealthz(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestRoomLookup(t *testing.T) {
	_, registry, ts := newTestServer(t)

	rm, _, err := registry.CreateRoom(context.Background(), "Alice")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	// Lookup is case-insensitive like the join flow.
	resp, err := http.Get(ts.URL + "/rooms/" + strings.ToLower(rm.RoomCode))
	if err != nil {
		t.Fatalf("GET room: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body roomLookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.RoomCode != rm.RoomCode {
		t.Errorf("room code = %q, want %q", body.RoomCode, rm.RoomCode)
	}
	if body.PlayerCount != 1 {
		t.Errorf("player count = %d, want 1", body.PlayerCount)
	}
	if !body.Joinable {
		t.Error("waiting room reported as not joinable")
	}
}

func TestRoomLookupNotFound(t *testing.T) {
	_, _, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/rooms/ZZZZZZ")
	if err != nil {
		t.Fatalf("GET room: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestRoomQR(t *testing.T) {
	_, registry, ts := newTestServer(t)

	rm, _, err := registry.CreateRoom(context.Background(), "Alice")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	resp, err := http.Get(ts.URL + "/rooms/" + rm.RoomCode + "/qr")
	if err != nil {
		t.Fatalf("GET qr: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type = %q, want image/png", ct)
	}
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, msgID uint16, payload interface{}) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, network.EncodeFrame(msgID, data)); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

// readFrame skips frames until one with the wanted id arrives.
func readFrame(t *testing.T, conn *websocket.Conn, wantID uint16) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, buf, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read frame: %v", err)
		}
		msgID, data, err := network.DecodeFrame(buf)
		if err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		if msgID == network.MsgError {
			t.Fatalf("server error: %s", data)
		}
		if msgID == wantID {
			return data
		}
	}
}

func TestWebSocketCreateAndJoin(t *testing.T) {
	_, _, ts := newTestServer(t)

	host := dialWS(t, ts)
	sendFrame(t, host, network.MsgCreateRoom, network.CreateRoomRequest{PlayerName: "Alice"})

	var hostState network.RoomState
	if err := json.Unmarshal(readFrame(t, host, network.MsgRoomState), &hostState); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if hostState.Room == nil || len(hostState.Room.RoomCode) != 6 {
		t.Fatal("host state has no room code")
	}
	if hostState.Self == nil || !hostState.Self.IsHost {
		t.Fatal("host state self is not host")
	}

	guest := dialWS(t, ts)
	sendFrame(t, guest, network.MsgJoinRoom, network.JoinRoomRequest{
		RoomCode:   hostState.Room.RoomCode,
		PlayerName: "Bob",
	})

	var guestState network.RoomState
	if err := json.Unmarshal(readFrame(t, guest, network.MsgRoomState), &guestState); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if guestState.Self == nil || guestState.Self.IsHost {
		t.Fatal("guest state self flagged as host")
	}
	if len(guestState.Players) != 2 {
		t.Errorf("guest sees %d players, want 2", len(guestState.Players))
	}

	// The host hears about Bob through the forwarded change feed.
	frame := readFrame(t, host, network.MsgFeedEvent)
	var ff network.FeedFrame
	if err := json.Unmarshal(frame, &ff); err != nil {
		t.Fatalf("decode feed frame: %v", err)
	}
	if ff.Event.Table != feed.TablePlayers || ff.Event.Action != feed.ActionInsert {
		t.Errorf("feed event = %s/%s, want players insert", ff.Event.Table, ff.Event.Action)
	}
	joined, err := ff.Event.Player()
	if err != nil {
		t.Fatalf("decode event payload: %v", err)
	}
	if joined.Name != "Bob" {
		t.Errorf("joined player = %q, want Bob", joined.Name)
	}
}

func TestWebSocketStartGame(t *testing.T) {
	_, _, ts := newTestServer(t)

	host := dialWS(t, ts)
	sendFrame(t, host, network.MsgCreateRoom, network.CreateRoomRequest{PlayerName: "Alice"})
	var hostState network.RoomState
	if err := json.Unmarshal(readFrame(t, host, network.MsgRoomState), &hostState); err != nil {
		t.Fatalf("decode state: %v", err)
	}

	guest := dialWS(t, ts)
	sendFrame(t, guest, network.MsgJoinRoom, network.JoinRoomRequest{
		RoomCode:   hostState.Room.RoomCode,
		PlayerName: "Bob",
	})
	readFrame(t, guest, network.MsgRoomState)

	sendFrame(t, host, network.MsgStartGame, network.StartGameRequest{Genre: models.GenreParty})

	var started network.RoomState
	if err := json.Unmarshal(readFrame(t, host, network.MsgRoomState), &started); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if started.Game == nil || started.Game.Phase != models.PhaseDiscuss {
		t.Fatal("started state has no discuss-phase game")
	}
	if started.Topic == nil || started.Topic.Category != models.GenreParty {
		t.Fatal("started state has no party topic")
	}

	// The guest sees the game insert through the feed.
	deadline := time.Now().Add(5 * time.Second)
	for {
		if time.Now().After(deadline) {
			t.Fatal("guest never saw the games insert event")
		}
		var ff network.FeedFrame
		if err := json.Unmarshal(readFrame(t, guest, network.MsgFeedEvent), &ff); err != nil {
			t.Fatalf("decode feed frame: %v", err)
		}
		if ff.Event.Table == feed.TableGames && ff.Event.Action == feed.ActionInsert {
			g, err := ff.Event.Game()
			if err != nil {
				t.Fatalf("decode game payload: %v", err)
			}
			if g.RoundNumber != 1 {
				t.Errorf("round = %d, want 1", g.RoundNumber)
			}
			return
		}
	}
}

func TestWebSocketHostOnlyGuard(t *testing.T) {
	_, _, ts := newTestServer(t)

	host := dialWS(t, ts)
	sendFrame(t, host, network.MsgCreateRoom, network.CreateRoomRequest{PlayerName: "Alice"})
	var hostState network.RoomState
	if err := json.Unmarshal(readFrame(t, host, network.MsgRoomState), &hostState); err != nil {
		t.Fatalf("decode state: %v", err)
	}

	guest := dialWS(t, ts)
	sendFrame(t, guest, network.MsgJoinRoom, network.JoinRoomRequest{
		RoomCode:   hostState.Room.RoomCode,
		PlayerName: "Bob",
	})
	readFrame(t, guest, network.MsgRoomState)

	sendFrame(t, guest, network.MsgStartGame, network.StartGameRequest{Genre: models.GenreLove})

	guest.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, buf, err := guest.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		msgID, data, err := network.DecodeFrame(buf)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if msgID != network.MsgError {
			continue
		}
		var resp network.ErrorResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			t.Fatalf("decode error frame: %v", err)
		}
		if resp.Message == "" {
			t.Error("empty error message")
		}
		return
	}
}

func TestRoomsActiveGaugeBalances(t *testing.T) {
	srv, _, _ := newTestServer(t)

	before := testutil.ToFloat64(monitor.RoomsActive)

	// Two players share one room feed via the refcount.
	srv.acquireRoomFeed("room-gauge")
	srv.acquireRoomFeed("room-gauge")
	if got := testutil.ToFloat64(monitor.RoomsActive); got != before+1 {
		t.Fatalf("gauge = %v after two acquires, want %v", got, before+1)
	}

	srv.releaseRoomFeed("room-gauge")
	if got := testutil.ToFloat64(monitor.RoomsActive); got != before+1 {
		t.Fatalf("gauge = %v with a player still connected, want %v", got, before+1)
	}

	srv.releaseRoomFeed("room-gauge")
	if got := testutil.ToFloat64(monitor.RoomsActive); got != before {
		t.Errorf("gauge = %v after the room emptied, want %v", got, before)
	}
}
