// server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/ShomaShirai/Ito-game/broadcast"
	"github.com/ShomaShirai/Ito-game/feed"
	"github.com/ShomaShirai/Ito-game/game"
	"github.com/ShomaShirai/Ito-game/logger"
	"github.com/ShomaShirai/Ito-game/models"
	"github.com/ShomaShirai/Ito-game/monitor"
	"github.com/ShomaShirai/Ito-game/network"
	"github.com/ShomaShirai/Ito-game/persistence"
	"github.com/ShomaShirai/Ito-game/room"
	"github.com/ShomaShirai/Ito-game/scoring"
	"github.com/ShomaShirai/Ito-game/services"
	"github.com/ShomaShirai/Ito-game/session"
	"github.com/ShomaShirai/Ito-game/state"
)

// GameServer は WebSocket でクライアントを捌くサーバ本体。
// 状態はすべて persistence.Store にあり、変更は feed 経由で配られる。
type GameServer struct {
	store       persistence.Store
	transport   feed.Transport
	registry    *room.Registry
	engine      *game.Engine
	lives       *services.LifeService
	sessions    *session.Manager
	broadcaster *broadcast.RoomBroadcaster
	upgrader    websocket.Upgrader

	// publicBaseURL is the address encoded into invite QR codes.
	publicBaseURL string

	mutex     sync.Mutex
	roomFeeds map[string]*roomFeed
	scored    map[string]bool
}

// SetPublicBaseURL sets the externally reachable address for invites.
func (s *GameServer) SetPublicBaseURL(url string) {
	s.publicBaseURL = url
}

// roomFeed holds the feed subscriptions forwarding a room's changes to
// its connected sessions. numbersSub follows the room's current game.
type roomFeed struct {
	roomID     string
	subs       []feed.Subscription
	numbersSub feed.Subscription
	gameID     string
	refs       int
}

func NewGameServer(store persistence.Store, transport feed.Transport, registry *room.Registry, engine *game.Engine, lives *services.LifeService) *GameServer {
	return &GameServer{
		store:       store,
		transport:   transport,
		registry:    registry,
		engine:      engine,
		lives:       lives,
		sessions:    session.NewManager(),
		broadcaster: nil,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		roomFeeds: make(map[string]*roomFeed),
		scored:    make(map[string]bool),
	}
}

// Router builds the HTTP surface: websocket endpoint plus a small REST
// facade for room lookup and QR invites.
func (s *GameServer) Router() *mux.Router {
	if s.broadcaster == nil {
		s.broadcaster = broadcast.NewRoomBroadcaster(s.sessions)
	}
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.handleWebSocket)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{code}", s.handleRoomLookup).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{code}/qr", s.handleRoomQR).Methods(http.MethodGet)
	return r
}

func (s *GameServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Errorf("websocket upgrade: %v", err)
		return
	}

	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessions.Add(sess)
	monitor.PlayersOnline.Inc()
	logger.Log.Infof("session %s connected", sess.GetID())

	go s.readLoop(sess, wsConn)
}

func (s *GameServer) readLoop(sess *session.Session, conn *network.WSConnection) {
	defer s.dropSession(sess)

	for {
		msgID, data, err := conn.Receive()
		if err != nil {
			logger.Log.Debugf("session %s read: %v", sess.GetID(), err)
			return
		}
		s.dispatch(sess, msgID, data)
	}
}

// dropSession cleans up after a disconnect. A bound player leaves its
// room so the remaining clients see the departure.
func (s *GameServer) dropSession(sess *session.Session) {
	playerID, roomID := sess.Binding()
	if playerID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.registry.Leave(ctx, playerID); err != nil {
			logger.Log.Warnf("leave on disconnect, player %s: %v", playerID, err)
		}
		cancel()
	}
	if roomID != "" {
		s.releaseRoomFeed(roomID)
	}
	s.sessions.Remove(sess.GetID())
	monitor.PlayersOnline.Dec()
	sess.Close()
	logger.Log.Infof("session %s disconnected", sess.GetID())
}

func (s *GameServer) dispatch(sess *session.Session, msgID uint16, data []byte) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var err error
	switch msgID {
	case network.MsgCreateRoom:
		err = s.handleCreateRoom(ctx, sess, data)
		monitor.ObserveAction("create_room", start)
	case network.MsgJoinRoom:
		err = s.handleJoinRoom(ctx, sess, data)
		monitor.ObserveAction("join_room", start)
	case network.MsgLeaveRoom:
		err = s.handleLeaveRoom(ctx, sess)
	case network.MsgStartGame:
		err = s.handleStartGame(ctx, sess, data)
		monitor.ObserveAction("start_game", start)
	case network.MsgMatchWord:
		err = s.handleMatchWord(ctx, sess, data)
	case network.MsgSaveOrder:
		err = s.handleSaveOrder(ctx, sess, data)
	case network.MsgNextRound:
		err = s.handleNextRound(ctx, sess)
	case network.MsgRevealDone:
		err = s.handleRevealDone(ctx, sess)
	case network.MsgHeartbeat:
		err = sess.Send(network.MsgHeartbeatAck, nil)
	default:
		err = fmt.Errorf("unknown message id %d", msgID)
	}

	if err != nil {
		s.sendError(sess, err)
	}
}

func (s *GameServer) sendError(sess *session.Session, err error) {
	logger.Log.Warnf("session %s: %v", sess.GetID(), err)
	payload, _ := json.Marshal(network.ErrorResponse{Message: err.Error()})
	if sendErr := sess.Send(network.MsgError, payload); sendErr != nil {
		logger.Log.Debugf("error frame to session %s: %v", sess.GetID(), sendErr)
	}
}

func (s *GameServer) sendState(ctx context.Context, sess *session.Session, st network.RoomState) error {
	if st.Room != nil && st.Players == nil {
		players, err := s.registry.Players(ctx, st.Room.ID)
		if err != nil {
			return err
		}
		st.Players = players
	}
	payload, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return sess.Send(network.MsgRoomState, payload)
}

func (s *GameServer) handleCreateRoom(ctx context.Context, sess *session.Session, data []byte) error {
	var req network.CreateRoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("decode create room: %w", err)
	}

	rm, host, err := s.registry.CreateRoom(ctx, req.PlayerName)
	if err != nil {
		return err
	}
	sess.Bind(host.ID, rm.ID)
	s.acquireRoomFeed(rm.ID)

	return s.sendState(ctx, sess, network.RoomState{Room: rm, Self: host})
}

func (s *GameServer) handleJoinRoom(ctx context.Context, sess *session.Session, data []byte) error {
	var req network.JoinRoomRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("decode join room: %w", err)
	}

	rm, player, err := s.registry.JoinRoom(ctx, req.RoomCode, req.PlayerName)
	if err != nil {
		return err
	}
	sess.Bind(player.ID, rm.ID)
	s.acquireRoomFeed(rm.ID)

	return s.sendState(ctx, sess, network.RoomState{Room: rm, Self: player})
}

func (s *GameServer) handleLeaveRoom(ctx context.Context, sess *session.Session) error {
	playerID, roomID := sess.Binding()
	if playerID == "" {
		return errors.New("not in a room")
	}
	if err := s.registry.Leave(ctx, playerID); err != nil {
		return err
	}
	sess.Unbind()
	s.releaseRoomFeed(roomID)
	return s.sendState(ctx, sess, network.RoomState{})
}

// requireHost loads the bound player and room, rejecting non-hosts.
func (s *GameServer) requireHost(ctx context.Context, sess *session.Session) (*models.Room, *models.Player, error) {
	playerID, roomID := sess.Binding()
	if playerID == "" {
		return nil, nil, errors.New("not in a room")
	}
	player, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, nil, err
	}
	if !player.IsHost {
		return nil, nil, room.ErrNotHost
	}
	rm, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	return rm, player, nil
}

func (s *GameServer) handleStartGame(ctx context.Context, sess *session.Session, data []byte) error {
	var req network.StartGameRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("decode start game: %w", err)
	}

	rm, _, err := s.requireHost(ctx, sess)
	if err != nil {
		return err
	}
	players, err := s.registry.Players(ctx, rm.ID)
	if err != nil {
		return err
	}

	g, topic, _, err := s.engine.StartRound(ctx, rm, players, req.Genre)
	if err != nil {
		return err
	}
	s.trackGame(rm.ID, g.ID)
	monitor.RoundsStarted.Inc()

	return s.sendState(ctx, sess, network.RoomState{
		Room: rm, Players: players, Game: g, Topic: topic,
	})
}

func (s *GameServer) handleMatchWord(ctx context.Context, sess *session.Session, data []byte) error {
	var req network.MatchWordRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("decode match word: %w", err)
	}

	playerID, roomID := sess.Binding()
	if playerID == "" {
		return errors.New("not in a room")
	}
	g, err := s.store.LatestGame(ctx, roomID)
	if err != nil {
		return err
	}
	numbers, err := s.store.ListPlayerNumbers(ctx, g.ID)
	if err != nil {
		return err
	}

	var own *models.PlayerNumber
	for i := range numbers {
		if numbers[i].PlayerID == playerID {
			own = &numbers[i]
			break
		}
	}
	if own == nil {
		return errors.New("no number assigned for this round")
	}
	if err := s.engine.SubmitMatchWord(ctx, own, req.Word); err != nil {
		return err
	}
	return s.checkAllSubmitted(ctx, roomID, g)
}

// checkAllSubmitted advances discuss to arrange once every player has a
// clue in. Concurrent submits racing past the phase gate are harmless.
func (s *GameServer) checkAllSubmitted(ctx context.Context, roomID string, g *models.Game) error {
	if g.Phase != models.PhaseDiscuss {
		return nil
	}
	players, err := s.registry.Players(ctx, roomID)
	if err != nil {
		return err
	}
	numbers, err := s.store.ListPlayerNumbers(ctx, g.ID)
	if err != nil {
		return err
	}
	if !game.AllSubmitted(players, numbers) {
		return nil
	}
	err = s.engine.AdvancePhase(ctx, g, models.PhaseArrange)
	if errors.Is(err, state.ErrAlreadyInPhase) || errors.Is(err, state.ErrTransitionNotAllowed) {
		return nil
	}
	return err
}

func (s *GameServer) handleSaveOrder(ctx context.Context, sess *session.Session, data []byte) error {
	var req network.SaveOrderRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("decode save order: %w", err)
	}

	rm, _, err := s.requireHost(ctx, sess)
	if err != nil {
		return err
	}
	g, err := s.store.LatestGame(ctx, rm.ID)
	if err != nil {
		return err
	}
	numbers, err := s.store.ListPlayerNumbers(ctx, g.ID)
	if err != nil {
		return err
	}
	return s.engine.SaveOrder(ctx, g, numbers, req.PlayerIDs)
}

func (s *GameServer) handleNextRound(ctx context.Context, sess *session.Session) error {
	rm, _, err := s.requireHost(ctx, sess)
	if err != nil {
		return err
	}
	players, err := s.registry.Players(ctx, rm.ID)
	if err != nil {
		return err
	}
	current, err := s.store.LatestGame(ctx, rm.ID)
	if err != nil {
		return err
	}

	g, topic, _, err := s.engine.NextRound(ctx, rm, players, current)
	if err != nil {
		return err
	}
	s.trackGame(rm.ID, g.ID)
	monitor.RoundsStarted.Inc()

	rm, err = s.store.GetRoom(ctx, rm.ID)
	if err != nil {
		return err
	}
	return s.sendState(ctx, sess, network.RoomState{
		Room: rm, Players: players, Game: g, Topic: topic,
	})
}

// handleRevealDone closes a round: the host reports the reveal finished,
// the server scores the arrangement once and applies life penalties.
func (s *GameServer) handleRevealDone(ctx context.Context, sess *session.Session) error {
	rm, _, err := s.requireHost(ctx, sess)
	if err != nil {
		return err
	}
	g, err := s.store.LatestGame(ctx, rm.ID)
	if err != nil {
		return err
	}

	s.mutex.Lock()
	if s.scored[g.ID] {
		s.mutex.Unlock()
		return nil
	}
	s.scored[g.ID] = true
	s.mutex.Unlock()

	numbers, err := s.store.ListPlayerNumbers(ctx, g.ID)
	if err != nil {
		s.unmarkScored(g.ID)
		return err
	}
	outcome, err := scoring.Evaluate(numbers)
	if err != nil {
		s.unmarkScored(g.ID)
		return err
	}
	if err := s.lives.ApplyOutcome(ctx, *outcome); err != nil {
		logger.Log.Errorf("apply penalties for game %s: %v", g.ID, err)
	}

	err = s.engine.AdvancePhase(ctx, g, models.PhaseResult)
	if err != nil && !errors.Is(err, state.ErrAlreadyInPhase) {
		return err
	}

	payload, err := json.Marshal(network.RoundResult{GameID: g.ID, Outcome: *outcome})
	if err != nil {
		return err
	}
	s.broadcaster.BroadcastToRoom(rm.ID, network.MsgRoundResult, payload)
	return nil
}

func (s *GameServer) unmarkScored(gameID string) {
	s.mutex.Lock()
	delete(s.scored, gameID)
	s.mutex.Unlock()
}
