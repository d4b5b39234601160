// network/connection.go
package network

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ShomaShirai/Ito-game/logger"
)

// フレーム形式: [2byte msgID][2byte length][payload]
const headerSize = 4

var ErrFrameTooShort = errors.New("frame shorter than header")

// Connection is the transport seam between sessions and the wire.
type Connection interface {
	Send(msgID uint16, data []byte) error
	Close() error
}

// WSConnection wraps a websocket connection with binary framing.
type WSConnection struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func NewWSConnection(conn *websocket.Conn) *WSConnection {
	return &WSConnection{conn: conn}
}

// EncodeFrame prepends the binary header to a payload.
func EncodeFrame(msgID uint16, data []byte) []byte {
	buf := make([]byte, headerSize+len(data))
	binary.BigEndian.PutUint16(buf[0:2], msgID)
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(data)))
	copy(buf[headerSize:], data)
	return buf
}

// DecodeFrame splits a raw frame into message id and payload.
func DecodeFrame(buf []byte) (msgID uint16, data []byte, err error) {
	if len(buf) < headerSize {
		return 0, nil, ErrFrameTooShort
	}
	msgID = binary.BigEndian.Uint16(buf[0:2])
	length := binary.BigEndian.Uint16(buf[2:4])
	if int(length) > len(buf)-headerSize {
		return 0, nil, ErrFrameTooShort
	}
	return msgID, buf[headerSize : headerSize+int(length)], nil
}

func (c *WSConnection) Send(msgID uint16, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, EncodeFrame(msgID, data))
}

// Receive blocks until the next frame arrives.
func (c *WSConnection) Receive() (msgID uint16, data []byte, err error) {
	_, buf, err := c.conn.ReadMessage()
	if err != nil {
		return 0, nil, err
	}
	return DecodeFrame(buf)
}

func (c *WSConnection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
		if err != nil {
			logger.Log.Debugf("websocket close: %v", err)
		}
	})
	return err
}
