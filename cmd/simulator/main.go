package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"visits-observer/src/config"
	datasource "visits-observer/src/data_source"
	"visits-observer/src/helpers"
	"visits-observer/src/interfaces"
	"visits-observer/src/logger"
	"visits-observer/src/network"
	"visits-observer/src/pubsub"
)

// -----------------------------------------------------------------------------

// The simulator is the external producer the observer's trigger points at.
// GET /simulate starts publishing random visitor counts; POST /stop ends it.
func main() {

	// Parse command line flags
	configPath := flag.String("config", "", "path to config file (built-in defaults when empty)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.NewConfig(*configPath); err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	appLogger := logger.NewLogger(cfg.LogLevel, cfg.Name+"-simulator")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Publisher
	publisher, closePublisher, err := openPublisher(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Critical("Failed to open publisher: %v", err)
	}
	defer closePublisher()

	sim := datasource.NewSimulator(cfg.MConfig, publisher, appLogger)

	// 2. HTTP surface
	if !appLogger.Enabled(logger.LevelDebug) {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.Default()
	engine.GET("/simulate", func(c *gin.Context) {
		sim.Fire()
		c.String(http.StatusOK, "Simulation begun")
	})
	engine.POST("/stop", func(c *gin.Context) {
		if err := sim.Stop(); err != nil {
			c.String(http.StatusConflict, err.Error())
			return
		}
		c.String(http.StatusOK, "Simulation stopped")
	})

	addr := fmt.Sprintf("%s:%d", cfg.Simulator.Host, cfg.Simulator.Port)
	srv := &http.Server{Addr: addr, Handler: engine, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		appLogger.Info("Simulator listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Warning("Server shutdown: %v", err)
	}
	if sim.Running() {
		sim.Stop()
	}
}

// -----------------------------------------------------------------------------

// openPublisher notifies postgres directly when the observer listens there,
// otherwise it posts to the observer's ingest route.
func openPublisher(ctx context.Context, cfg *config.Config, log *logger.Logger) (interfaces.IPublisher, func(), error) {
	if cfg.Transport.Type != config.TransportPostgres {
		if cfg.Simulator.TargetURL == "" {
			return nil, nil, helpers.NewConfigurationError("simulator target_url is required for the memory transport", nil)
		}
		poster := network.NewEventPoster(cfg.Simulator.TargetURL, 5*time.Second, log.Named("poster"))
		log.Info("Posting events to %s", cfg.Simulator.TargetURL)
		return poster, poster.Close, nil
	}

	db, err := sql.Open("postgres", cfg.Transport.DBConnectionString)
	if err != nil {
		return nil, nil, helpers.NewTransportError("failed to open database", err)
	}

	errs := helpers.NewErrorHandler(log)
	err = errs.ExecuteWithRetry("connect postgres", func() error {
		return db.PingContext(ctx)
	}, cfg.Transport.ConnectRetries)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	log.Info("Notifying postgres channel %s", cfg.Transport.Channel)
	return pubsub.NewPostgresPublisher(db), func() { db.Close() }, nil
}
