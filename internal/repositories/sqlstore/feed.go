package sqlstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/almarpuit/site/internal/domain"
	"github.com/almarpuit/site/internal/repositories/changehub"
)

const (
	listenBackoffMin = 500 * time.Millisecond
	listenBackoffMax = 30 * time.Second
)

// listener holds a dedicated connection LISTENing on NotifyChannel and
// republishes every notification on the local hub.
type listener struct {
	dsn    string
	hub    *changehub.Hub
	logger *zap.Logger

	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

func newListener(dsn string, hub *changehub.Hub, logger *zap.Logger) *listener {
	return &listener{dsn: dsn, hub: hub, logger: logger, done: make(chan struct{})}
}

// Subscribe implements repositories.ChangeFeed.
func (l *listener) Subscribe(ctx context.Context, table domain.Table, sectionID string, fn func(domain.Change)) (func(), error) {
	l.once.Do(l.start)
	return l.hub.Subscribe(ctx, table, sectionID, fn)
}

func (l *listener) start() {
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	go l.run(ctx)
}

func (l *listener) stop() {
	l.once.Do(func() { close(l.done) })
	if l.cancel != nil {
		l.cancel()
		<-l.done
	}
}

func (l *listener) run(ctx context.Context) {
	defer close(l.done)
	backoff := listenBackoffMin
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		l.logger.Warn("sqlstore: change listener disconnected", zap.Error(err), zap.Duration("retry_in", backoff))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, listenBackoffMax)
	}
}

func (l *listener) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{NotifyChannel}.Sanitize()); err != nil {
		return err
	}
	l.logger.Debug("sqlstore: listening for changes", zap.String("channel", NotifyChannel))
	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		var change domain.Change
		if err := json.Unmarshal([]byte(notification.Payload), &change); err != nil {
			l.logger.Warn("sqlstore: malformed change payload", zap.Error(err))
			continue
		}
		l.hub.Publish(change)
	}
}
