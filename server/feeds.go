// server/feeds.go
package server

import (
	"encoding/json"

	"github.com/ShomaShirai/Ito-game/feed"
	"github.com/ShomaShirai/Ito-game/logger"
	"github.com/ShomaShirai/Ito-game/monitor"
	"github.com/ShomaShirai/Ito-game/network"
)

// acquireRoomFeed subscribes the server to a room's change feed the
// first time one of its players connects. Subsequent players share the
// same subscriptions via a refcount.
func (s *GameServer) acquireRoomFeed(roomID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if rf, ok := s.roomFeeds[roomID]; ok {
		rf.refs++
		return
	}

	rf := &roomFeed{roomID: roomID, refs: 1}
	monitor.RoomsActive.Inc()
	scopes := []feed.Scope{
		{Table: feed.TablePlayers, RoomID: roomID},
		{Table: feed.TableRooms, RoomID: roomID},
		{Table: feed.TableGames, RoomID: roomID},
	}
	for _, scope := range scopes {
		sub, err := s.transport.Subscribe(scope, s.makeForwarder(roomID))
		if err != nil {
			logger.Log.Errorf("subscribe %s: %v", scope.String(), err)
			continue
		}
		rf.subs = append(rf.subs, sub)
	}
	s.roomFeeds[roomID] = rf
}

func (s *GameServer) releaseRoomFeed(roomID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	rf, ok := s.roomFeeds[roomID]
	if !ok {
		return
	}
	rf.refs--
	if rf.refs > 0 {
		return
	}
	for _, sub := range rf.subs {
		if err := sub.Unsubscribe(); err != nil {
			logger.Log.Warnf("unsubscribe room %s: %v", roomID, err)
		}
	}
	if rf.numbersSub != nil {
		if err := rf.numbersSub.Unsubscribe(); err != nil {
			logger.Log.Warnf("unsubscribe numbers for room %s: %v", roomID, err)
		}
	}
	delete(s.roomFeeds, roomID)
	monitor.RoomsActive.Dec()
}

// trackGame points the room's number subscription at a new round.
func (s *GameServer) trackGame(roomID, gameID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	rf, ok := s.roomFeeds[roomID]
	if !ok || rf.gameID == gameID {
		return
	}
	if rf.numbersSub != nil {
		if err := rf.numbersSub.Unsubscribe(); err != nil {
			logger.Log.Warnf("unsubscribe stale numbers feed: %v", err)
		}
		rf.numbersSub = nil
	}
	sub, err := s.transport.Subscribe(
		feed.Scope{Table: feed.TablePlayerNumbers, GameID: gameID},
		s.makeForwarder(roomID),
	)
	if err != nil {
		logger.Log.Errorf("subscribe numbers for game %s: %v", gameID, err)
		return
	}
	rf.numbersSub = sub
	rf.gameID = gameID
}

// makeForwarder relays one feed event to every session in the room.
// Game inserts also retarget the number subscription, so rounds started
// by another server instance are followed too.
func (s *GameServer) makeForwarder(roomID string) feed.Handler {
	return func(e feed.Event) {
		monitor.FeedEvents.WithLabelValues(string(e.Table), string(e.Action)).Inc()

		if e.Table == feed.TableGames && e.Action == feed.ActionInsert && e.GameID != "" {
			go s.trackGame(roomID, e.GameID)
		}

		payload, err := json.Marshal(network.FeedFrame{Event: e})
		if err != nil {
			logger.Log.Errorf("encode feed frame: %v", err)
			return
		}
		s.broadcaster.BroadcastToRoom(roomID, network.MsgFeedEvent, payload)
	}
}
