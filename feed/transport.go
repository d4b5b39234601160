// feed/transport.go
package feed

// Handler receives change events. Handlers must tolerate duplicate and
// out-of-order delivery; the feed makes no ordering promise beyond what the
// underlying transport provides.
type Handler func(Event)

// Subscription is a live handle on a scoped slice of the feed.
// Unsubscribe is idempotent: calling it twice, or on an already torn-down
// subscription, is a no-op.
type Subscription interface {
	Unsubscribe() error
}

// Transport 变更通知的发布/订阅抽象
//
// The in-process Bus accepts any scope. The external transports (NATS,
// Postgres LISTEN/NOTIFY) address events by their canonical scope:
// rooms/players/games by room id, player_numbers by game id.
type Transport interface {
	Publish(e Event) error
	Subscribe(scope Scope, h Handler) (Subscription, error)
	Close() error
}

// canonicalScope returns the scope an event is addressed under by the
// external transports.
func canonicalScope(e Event) Scope {
	if e.Table == TablePlayerNumbers {
		return Scope{Table: e.Table, GameID: e.GameID}
	}
	return Scope{Table: e.Table, RoomID: e.RoomID}
}
