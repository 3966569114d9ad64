package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"visits-observer/src/interfaces"
	"visits-observer/src/logger"
	"visits-observer/src/models"
)

// Simulator publishes random visitor counts on the configured channel/event
// at a fixed interval.
type Simulator struct {
	Logger    *logger.Logger
	publisher interfaces.IPublisher
	channel   string
	event     string
	interval  time.Duration
	maxValue  int

	mu         sync.Mutex
	cancelFunc context.CancelFunc
	isRunning  atomic.Bool
	wg         sync.WaitGroup

	rngMu     sync.Mutex
	rng       *rand.Rand
	published atomic.Int64
}

// -----------------------------------------------------------------------------

func NewSimulator(cfg *models.MConfig, pub interfaces.IPublisher, log *logger.Logger) *Simulator {
	now := uint64(time.Now().UnixNano())
	return &Simulator{
		Logger:    log,
		publisher: pub,
		channel:   cfg.Transport.Channel,
		event:     cfg.Transport.Event,
		interval:  time.Duration(cfg.Simulator.IntervalMs) * time.Millisecond,
		maxValue:  cfg.Simulator.MaxValue,
		rng:       rand.New(rand.NewPCG(now, now>>1)),
	}
}

// -----------------------------------------------------------------------------

// Start begins the publishing loop
func (s *Simulator) Start(parentCtx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning.Load() {
		return fmt.Errorf("simulator is already running")
	}

	// Derive a context so Stop ends just this loop
	ctx, cancel := context.WithCancel(parentCtx)
	s.cancelFunc = cancel
	s.isRunning.Store(true)

	s.wg.Add(1)
	go s.runLoop(ctx)
	s.Logger.Info("Simulation begun, publishing every %s", s.interval)
	return nil
}

// -----------------------------------------------------------------------------

// Fire starts the loop if it is not running yet
func (s *Simulator) Fire() {
	if err := s.Start(context.Background()); err != nil {
		s.Logger.Debug("Simulate ignored: %v", err)
	}
}

// -----------------------------------------------------------------------------

// Stop signals the loop to exit and waits for it
func (s *Simulator) Stop() error {
	s.mu.Lock()
	if !s.isRunning.Load() {
		s.mu.Unlock()
		return fmt.Errorf("simulator is not running")
	}
	s.cancelFunc()
	s.isRunning.Store(false)
	s.mu.Unlock()

	s.wg.Wait()
	s.Logger.Info("Simulation stopped after %d events", s.published.Load())
	return nil
}

// -----------------------------------------------------------------------------

func (s *Simulator) Running() bool {
	return s.isRunning.Load()
}

// -----------------------------------------------------------------------------

// PublishOnce sends a single random event
func (s *Simulator) PublishOnce() error {
	s.rngMu.Lock()
	data := models.MVisitsData{
		Pages: float64(s.rng.IntN(s.maxValue)),
		Count: float64(s.rng.IntN(s.maxValue)),
	}
	s.rngMu.Unlock()

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal visits: %w", err)
	}

	if err := s.publisher.Publish(s.channel, s.event, payload); err != nil {
		return fmt.Errorf("publish visits: %w", err)
	}
	s.published.Add(1)
	return nil
}

// -----------------------------------------------------------------------------

func (s *Simulator) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.PublishOnce(); err != nil {
				s.Logger.Warning("Simulated event failed: %v", err)
			}
		}
	}
}
