package pubsub

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"visits-observer/src/interfaces"
	"visits-observer/src/logger"
)

const (
	minReconnectInterval = time.Second
	maxReconnectInterval = time.Minute
)

// PostgresPubsub delivers events over PostgreSQL LISTEN/NOTIFY. Reconnects
// are handled by the pq listener; notifications sent while disconnected are
// lost.
type PostgresPubsub struct {
	pgListener *pq.Listener
	db         *sql.DB
	logger     *logger.Logger

	// listenMu orders LISTEN/UNLISTEN round trips; mut guards the map only,
	// so dispatch never waits on the network.
	listenMu  sync.Mutex
	mut       sync.Mutex
	listeners map[string]map[uuid.UUID]interfaces.Listener

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPostgres opens a listener on connectURL and starts dispatching.
// db is used for publishing and is not closed by Close.
func NewPostgres(ctx context.Context, db *sql.DB, connectURL string, log *logger.Logger) (*PostgresPubsub, error) {
	errCh := make(chan error, 1)
	var once sync.Once
	listener := pq.NewListener(connectURL, minReconnectInterval, maxReconnectInterval, func(event pq.ListenerEventType, err error) {
		// first state change reports whether the initial connect worked
		once.Do(func() {
			errCh <- err
		})

		switch event {
		case pq.ListenerEventDisconnected:
			log.Warning("Postgres listener disconnected: %v", err)
		case pq.ListenerEventReconnected:
			log.Info("Postgres listener reconnected")
		case pq.ListenerEventConnectionAttemptFailed:
			log.Warning("Postgres listener connection attempt failed: %v", err)
		}
	})

	select {
	case err := <-errCh:
		if err != nil {
			_ = listener.Close()
			return nil, fmt.Errorf("create pq listener: %w", err)
		}
	case <-ctx.Done():
		_ = listener.Close()
		return nil, ctx.Err()
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	p := &PostgresPubsub{
		pgListener: listener,
		db:         db,
		logger:     log,
		listeners:  make(map[string]map[uuid.UUID]interfaces.Listener),
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go p.listen(listenCtx)

	return p, nil
}

// -----------------------------------------------------------------------------

func (p *PostgresPubsub) Subscribe(channel, event string, listener interfaces.Listener) (cancel func(), err error) {
	p.listenMu.Lock()
	defer p.listenMu.Unlock()

	key := topic(channel, event)
	err = p.pgListener.Listen(key)
	if errors.Is(err, pq.ErrChannelAlreadyOpen) {
		err = nil
	}
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", key, err)
	}

	id := p.addListener(key, listener)

	return func() {
		p.listenMu.Lock()
		defer p.listenMu.Unlock()

		if p.removeListener(key, id) == 0 {
			_ = p.pgListener.Unlisten(key)
		}
	}, nil
}

// -----------------------------------------------------------------------------

func (p *PostgresPubsub) addListener(key string, listener interfaces.Listener) uuid.UUID {
	p.mut.Lock()
	defer p.mut.Unlock()

	eventListeners, ok := p.listeners[key]
	if !ok {
		eventListeners = map[uuid.UUID]interfaces.Listener{}
		p.listeners[key] = eventListeners
	}

	var id uuid.UUID
	for {
		id = uuid.New()
		if _, ok = eventListeners[id]; !ok {
			break
		}
	}
	eventListeners[id] = listener
	return id
}

// removeListener drops id and returns how many listeners remain on key
func (p *PostgresPubsub) removeListener(key string, id uuid.UUID) int {
	p.mut.Lock()
	defer p.mut.Unlock()

	listeners := p.listeners[key]
	delete(listeners, id)
	if len(listeners) == 0 {
		delete(p.listeners, key)
	}
	return len(listeners)
}

// -----------------------------------------------------------------------------

func (p *PostgresPubsub) Publish(channel, event string, message []byte) error {
	return notify(p.db, channel, event, message)
}

// -----------------------------------------------------------------------------

func (p *PostgresPubsub) Close() error {
	p.cancel()
	<-p.done
	return nil
}

// -----------------------------------------------------------------------------

func (p *PostgresPubsub) listen(ctx context.Context) {
	defer close(p.done)
	defer p.pgListener.Close()

	for {
		var (
			notif *pq.Notification
			ok    bool
		)
		select {
		case <-ctx.Done():
			return
		case notif, ok = <-p.pgListener.Notify:
			if !ok {
				return
			}
		}
		// A nil notification is dispatched on reconnect.
		if notif == nil {
			p.logger.Debug("Postgres listener reconnected; events sent while disconnected are lost")
			continue
		}
		p.listenReceive(ctx, notif)
	}
}

// -----------------------------------------------------------------------------

// listenReceive runs the listeners of one notification on the listen loop,
// so notifications reach them in the order the server sent them.
func (p *PostgresPubsub) listenReceive(ctx context.Context, notif *pq.Notification) {
	p.mut.Lock()
	listeners := make([]interfaces.Listener, 0, len(p.listeners[notif.Channel]))
	for _, listener := range p.listeners[notif.Channel] {
		listeners = append(listeners, listener)
	}
	p.mut.Unlock()

	extra := []byte(notif.Extra)
	for _, listener := range listeners {
		listener(ctx, extra)
	}
}

// -----------------------------------------------------------------------------

// PostgresPublisher sends notifications without holding a listener connection
type PostgresPublisher struct {
	db *sql.DB
}

func NewPostgresPublisher(db *sql.DB) *PostgresPublisher {
	return &PostgresPublisher{db: db}
}

func (p *PostgresPublisher) Publish(channel, event string, message []byte) error {
	return notify(p.db, channel, event, message)
}

// -----------------------------------------------------------------------------

func notify(db *sql.DB, channel, event string, message []byte) error {
	// the topic is quoted as a literal, the payload is bound
	//nolint:gosec
	_, err := db.ExecContext(context.Background(), `select pg_notify(`+pq.QuoteLiteral(topic(channel, event))+`, $1)`, string(message))
	if err != nil {
		return fmt.Errorf("exec pg_notify: %w", err)
	}
	return nil
}
