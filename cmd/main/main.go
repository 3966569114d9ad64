package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"visits-observer/src/config"
	"visits-observer/src/controller"
	"visits-observer/src/grpc_control"
	"visits-observer/src/interfaces"
	"visits-observer/src/logger"
	"visits-observer/src/metrics"
	"visits-observer/src/network"
	"visits-observer/src/render"
	"visits-observer/src/server"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "", "path to config file (built-in defaults when empty)")
	flag.Parse()

	// Load config from YAML file
	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(cfg.LogLevel, cfg.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	controllerMetrics := metrics.NewControllerMetrics(registry)

	// 2. Transport
	events, err := openTransport(ctx, cfg, appLogger.Named("pubsub"))
	if err != nil {
		appLogger.Critical("Failed to open %s transport: %v", cfg.Transport.Type, err)
	}

	// 3. Simulate trigger
	var simulate interfaces.ITrigger
	triggerClient := network.NewTriggerClient(cfg.MConfig, appLogger.Named("trigger"))
	if triggerClient.Enabled() {
		simulate = triggerClient
		appLogger.Info("Simulate requests go to %s", cfg.Trigger.URL)
	}

	// 4. Renderers and server
	chart := render.NewChartRenderer(cfg.MConfig)
	srv := server.NewChartServer(cfg.MConfig, appLogger.Named("server"), server.Options{
		Trigger:   simulate,
		Publisher: events.pubsub,
		Chart:     chart,
		Metrics:   controllerMetrics,
		Gatherer:  registry,
	})

	renderers := []interfaces.IRenderer{srv, chart}
	if cfg.Render.Terminal {
		renderers = append(renderers, render.NewTerminalRenderer(os.Stdout))
	}

	// 5. Controller
	ctrl := controller.NewController(cfg.MConfig, render.NewFanout(renderers...), controllerMetrics, appLogger.Named("controller"))
	srv.SetSource(ctrl)

	// 6. gRPC health
	control := grpc_control.NewControlServer(cfg.MConfig, appLogger.Named("grpc"))
	ctrl.OnListening(func() { control.SetServing(true) })

	// 7. Start servers
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Error("Server failed: %v", err)
			stop()
		}
	}()
	if control.Enabled() {
		go func() {
			if err := control.Start(); err != nil {
				appLogger.Error("gRPC server failed: %v", err)
			}
		}()
	}

	// 8. Subscribe
	if err := ctrl.Start(events.pubsub); err != nil {
		appLogger.Critical("Failed to start controller: %v", err)
	}
	appLogger.Info("Listening for %s/%s events", cfg.Transport.Channel, cfg.Transport.Event)

	<-ctx.Done()
	appLogger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	control.Shutdown()
	if err := ctrl.Close(); err != nil {
		appLogger.Warning("Controller close: %v", err)
	}
	triggerClient.Wait()
	if err := srv.Stop(shutdownCtx); err != nil {
		appLogger.Warning("Server shutdown: %v", err)
	}
	control.Stop()
	events.close()

	status := ctrl.Status()
	appLogger.Info("Stopped. %d events accepted, %d rejected", status.EventsAccepted, status.EventsRejected)
}

// -----------------------------------------------------------------------------

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.NewConfig(path)
}
