package main

import (
	"context"
	"database/sql"
	"fmt"

	"visits-observer/src/config"
	"visits-observer/src/helpers"
	"visits-observer/src/interfaces"
	"visits-observer/src/logger"
	"visits-observer/src/pubsub"
)

// -----------------------------------------------------------------------------

type eventTransport struct {
	pubsub interfaces.IPubsub
	db     *sql.DB
	log    *logger.Logger
}

// openTransport builds the event transport named in the config. The postgres
// connection is retried with backoff before giving up.
func openTransport(ctx context.Context, cfg *config.Config, log *logger.Logger) (*eventTransport, error) {
	switch cfg.Transport.Type {
	case config.TransportPostgres:
		db, err := sql.Open("postgres", cfg.Transport.DBConnectionString)
		if err != nil {
			return nil, helpers.NewTransportError("failed to open database", err)
		}

		var ps *pubsub.PostgresPubsub
		errs := helpers.NewErrorHandler(log)
		err = errs.ExecuteWithRetry("connect postgres", func() error {
			if err := db.PingContext(ctx); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
			var err error
			ps, err = pubsub.NewPostgres(ctx, db, cfg.Transport.DBConnectionString, log)
			return err
		}, cfg.Transport.ConnectRetries)
		if err != nil {
			db.Close()
			return nil, err
		}

		log.Info("Using postgres LISTEN/NOTIFY transport")
		return &eventTransport{pubsub: ps, db: db, log: log}, nil

	default:
		log.Info("Using in-memory transport")
		return &eventTransport{pubsub: pubsub.NewInMemory(), log: log}, nil
	}
}

// -----------------------------------------------------------------------------

func (t *eventTransport) close() {
	if err := t.pubsub.Close(); err != nil {
		t.log.Warning("Transport close: %v", err)
	}
	if t.db != nil {
		if err := t.db.Close(); err != nil {
			t.log.Warning("Database close: %v", err)
		}
	}
}
