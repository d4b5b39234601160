// broadcast/broadcast.go
package broadcast

import (
	"github.com/ShomaShirai/Ito-game/logger"
	"github.com/ShomaShirai/Ito-game/session"
)

// RoomBroadcaster fans messages out to the sessions bound to a room.
type RoomBroadcaster struct {
	sessions *session.Manager
}

func NewRoomBroadcaster(sessions *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{sessions: sessions}
}

// BroadcastToRoom sends to every session in the room.
func (b *RoomBroadcaster) BroadcastToRoom(roomID string, msgID uint16, data []byte) {
	for _, sess := range b.sessions.GetByRoom(roomID) {
		if err := sess.Send(msgID, data); err != nil {
			logger.Log.Warnf("broadcast to session %s failed: %v", sess.GetID(), err)
		}
	}
}

// BroadcastToRoomExcept sends to every session in the room except one.
func (b *RoomBroadcaster) BroadcastToRoomExcept(roomID, exceptSessionID string, msgID uint16, data []byte) {
	for _, sess := range b.sessions.GetByRoom(roomID) {
		if sess.GetID() == exceptSessionID {
			continue
		}
		if err := sess.Send(msgID, data); err != nil {
			logger.Log.Warnf("broadcast to session %s failed: %v", sess.GetID(), err)
		}
	}
}

// SendToPlayer delivers to the session bound to a player, if connected.
func (b *RoomBroadcaster) SendToPlayer(playerID string, msgID uint16, data []byte) bool {
	sess, ok := b.sessions.GetByPlayer(playerID)
	if !ok {
		return false
	}
	if err := sess.Send(msgID, data); err != nil {
		logger.Log.Warnf("send to player %s failed: %v", playerID, err)
		return false
	}
	return true
}
