// feed/nats.go
package feed

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ShomaShirai/Ito-game/logger"
)

const natsSubjectPrefix = "ito.feed."

// NATSTransport carries the change feed over NATS core subjects, one subject
// per canonical scope.
type NATSTransport struct {
	nc *nats.Conn
}

func NewNATSTransport(url string) (*NATSTransport, error) {
	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Log.Warnf("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Log.Infof("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSTransport{nc: nc}, nil
}

func subjectFor(scope Scope) string {
	// NATS tokens must not contain dots; uuids do not, but guard anyway.
	return natsSubjectPrefix + strings.ReplaceAll(scope.String(), ".", "_")
}

func (t *NATSTransport) Publish(e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode feed event: %w", err)
	}
	return t.nc.Publish(subjectFor(canonicalScope(e)), data)
}

func (t *NATSTransport) Subscribe(scope Scope, h Handler) (Subscription, error) {
	sub, err := t.nc.Subscribe(subjectFor(scope), func(msg *nats.Msg) {
		var e Event
		if err := json.Unmarshal(msg.Data, &e); err != nil {
			logger.Log.Errorf("drop malformed feed event on %s: %v", msg.Subject, err)
			return
		}
		h(e)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", scope, err)
	}
	return &natsSubscription{sub: sub}, nil
}

func (t *NATSTransport) Close() error {
	t.nc.Close()
	return nil
}

type natsSubscription struct {
	sub  *nats.Subscription
	once sync.Once
}

func (s *natsSubscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		err = s.sub.Unsubscribe()
	})
	return err
}
