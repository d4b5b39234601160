// feed/pglisten.go
package feed

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/ShomaShirai/Ito-game/logger"
)

// channel names must be valid identifiers, so events are multiplexed onto
// one NOTIFY channel per table and filtered by scope on the subscriber side.
var pgChannels = map[Table]string{
	TableRooms:         "ito_feed_rooms",
	TablePlayers:       "ito_feed_players",
	TableGames:         "ito_feed_games",
	TablePlayerNumbers: "ito_feed_player_numbers",
}

// PGTransport carries the change feed over PostgreSQL LISTEN/NOTIFY,
// the same mechanism the original hosted backend built its realtime
// channels on.
type PGTransport struct {
	db       *sql.DB
	listener *pq.Listener

	mutex  sync.RWMutex
	subs   map[int64]*pgSubscription
	nextID int64
	done   chan struct{}
}

func NewPGTransport(dsn string) (*PGTransport, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres for feed: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres for feed: %w", err)
	}

	listener := pq.NewListener(dsn, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Log.Warnf("pg listener event %d: %v", ev, err)
		}
	})
	for _, ch := range pgChannels {
		if err := listener.Listen(ch); err != nil {
			listener.Close()
			db.Close()
			return nil, fmt.Errorf("listen %s: %w", ch, err)
		}
	}

	t := &PGTransport{
		db:       db,
		listener: listener,
		subs:     make(map[int64]*pgSubscription),
		nextID:   1,
		done:     make(chan struct{}),
	}
	go t.dispatch()
	return t, nil
}

func (t *PGTransport) dispatch() {
	for {
		select {
		case <-t.done:
			return
		case n := <-t.listener.Notify:
			if n == nil {
				// reconnect marker; subscribers simply miss what was lost
				continue
			}
			var e Event
			if err := json.Unmarshal([]byte(n.Extra), &e); err != nil {
				logger.Log.Errorf("drop malformed notify on %s: %v", n.Channel, err)
				continue
			}
			t.mutex.RLock()
			var handlers []Handler
			for _, sub := range t.subs {
				if sub.scope.Matches(e) {
					handlers = append(handlers, sub.handler)
				}
			}
			t.mutex.RUnlock()
			for _, h := range handlers {
				h(e)
			}
		}
	}
}

func (t *PGTransport) Publish(e Event) error {
	ch, ok := pgChannels[e.Table]
	if !ok {
		return fmt.Errorf("no notify channel for table %q", e.Table)
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode feed event: %w", err)
	}
	_, err = t.db.Exec("SELECT pg_notify($1, $2)", ch, string(data))
	return err
}

func (t *PGTransport) Subscribe(scope Scope, h Handler) (Subscription, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	sub := &pgSubscription{transport: t, id: t.nextID, scope: scope, handler: h}
	t.nextID++
	t.subs[sub.id] = sub
	return sub, nil
}

func (t *PGTransport) Close() error {
	close(t.done)
	t.listener.Close()
	return t.db.Close()
}

type pgSubscription struct {
	transport *PGTransport
	id        int64
	scope     Scope
	handler   Handler
	once      sync.Once
}

func (s *pgSubscription) Unsubscribe() error {
	s.once.Do(func() {
		s.transport.mutex.Lock()
		delete(s.transport.subs, s.id)
		s.transport.mutex.Unlock()
	})
	return nil
}
