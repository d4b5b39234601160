// client/main.go
//
// 動作確認用の簡易クライアント。部屋を作るか既存の部屋に入り、
// 届いたフレームを標準出力に流す。
//
//	go run ./client -name Alice
//	go run ./client -name Bob -join ABC123
package main

import (
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/gorilla/websocket"
)

const (
	msgCreateRoom uint16 = 1001
	msgJoinRoom   uint16 = 1002
	msgRoomState  uint16 = 2001
	msgFeedEvent  uint16 = 2002
	msgError      uint16 = 2900
)

func send(conn *websocket.Conn, msgID uint16, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	buf := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(buf[0:2], msgID)
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(data)))
	copy(buf[4:], data)
	return conn.WriteMessage(websocket.BinaryMessage, buf)
}

func main() {
	var (
		addr = flag.String("addr", "ws://localhost:8080/ws", "server websocket address")
		name = flag.String("name", "player", "player name")
		join = flag.String("join", "", "room code to join (empty: create a room)")
	)
	flag.Parse()

	conn, _, err := websocket.DefaultDialer.Dial(*addr, nil)
	if err != nil {
		log.Fatalf("dial %s: %v", *addr, err)
	}
	defer conn.Close()

	if *join == "" {
		err = send(conn, msgCreateRoom, map[string]string{"player_name": *name})
	} else {
		err = send(conn, msgJoinRoom, map[string]string{"room_code": *join, "player_name": *name})
	}
	if err != nil {
		log.Fatalf("send: %v", err)
	}

	for {
		_, buf, err := conn.ReadMessage()
		if err != nil {
			log.Printf("read: %v", err)
			return
		}
		if len(buf) < 4 {
			continue
		}
		msgID := binary.BigEndian.Uint16(buf[0:2])
		payload := buf[4:]

		switch msgID {
		case msgRoomState:
			fmt.Printf("state: %s\n", payload)
		case msgFeedEvent:
			fmt.Printf("event: %s\n", payload)
		case msgError:
			fmt.Fprintf(os.Stderr, "error: %s\n", payload)
		default:
			fmt.Printf("msg %d: %s\n", msgID, payload)
		}
	}
}
