package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"storyboard/internal/domain"
	"storyboard/internal/infra"
	"storyboard/internal/sqlinline"
)

// NotifyChannel is the Postgres LISTEN/NOTIFY channel carrying changes.
const NotifyChannel = "storyboard_changes"

// PGPublisher sends changes through pg_notify so every API process can
// relay them to its own subscribers.
type PGPublisher struct {
	sql infra.SQLExecutor
}

func NewPGPublisher(sql infra.SQLExecutor) *PGPublisher {
	return &PGPublisher{sql: sql}
}

func (p *PGPublisher) Publish(ctx context.Context, c Change) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if _, err := p.sql.Exec(ctx, sqlinline.QNotifyChange, NotifyChannel, string(raw)); err != nil {
		return fmt.Errorf("%w: notify change: %w", domain.ErrPersistence, err)
	}
	return nil
}

// Bridge relays notifications from a lib/pq listener into a local hub.
type Bridge struct {
	hub    Publisher
	logger infra.Logger
}

func NewBridge(hub Publisher, logger infra.Logger) *Bridge {
	return &Bridge{hub: hub, logger: logger.With().Str("component", "feed_bridge").Logger()}
}

// Listen opens a dedicated connection to dsn and relays until ctx is done.
func (b *Bridge) Listen(ctx context.Context, dsn string) error {
	listener := pq.NewListener(dsn, 2*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			b.logger.Info().Msg("feed listener connected")
		case pq.ListenerEventDisconnected:
			b.logger.Warn().Err(err).Msg("feed listener disconnected")
		case pq.ListenerEventReconnected:
			b.logger.Info().Msg("feed listener reconnected")
		case pq.ListenerEventConnectionAttemptFailed:
			b.logger.Warn().Err(err).Msg("feed listener connect failed")
		}
	})
	defer listener.Close()
	if err := listener.Listen(NotifyChannel); err != nil {
		return fmt.Errorf("listen %s: %w", NotifyChannel, err)
	}
	b.consume(ctx, listener.Notify, func() {
		go func() {
			if err := listener.Ping(); err != nil {
				b.logger.Warn().Err(err).Msg("feed listener ping failed")
			}
		}()
	})
	return nil
}

func (b *Bridge) consume(ctx context.Context, notifications <-chan *pq.Notification, ping func()) {
	idle := time.NewTicker(90 * time.Second)
	defer idle.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notifications:
			if !ok {
				return
			}
			// nil is sent after a reconnect; changes during the gap are lost
			// and clients recover by re-reading state.
			if n == nil {
				continue
			}
			var c Change
			if err := json.Unmarshal([]byte(n.Extra), &c); err != nil {
				b.logger.Warn().Err(err).Msg("feed bridge: bad payload")
				continue
			}
			if err := b.hub.Publish(ctx, c); err != nil {
				b.logger.Warn().Err(err).Str("unit_id", c.UnitID).Msg("feed bridge: publish failed")
			}
		case <-idle.C:
			if ping != nil {
				ping()
			}
		}
	}
}

var _ Publisher = (*PGPublisher)(nil)
