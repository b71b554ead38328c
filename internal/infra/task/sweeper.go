package task

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PendingSweeper resolves payment requests stuck in pending.
type PendingSweeper interface {
	SweepPending(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// SweepRecorder receives sweep measurements.
type SweepRecorder interface {
	RecordSweep(resolved int)
}

// Config contains sweeper configuration.
type Config struct {
	// Interval between sweeps. Zero disables the sweeper.
	Interval time.Duration
	// PendingThreshold is how long a request stays pending before it is probed.
	PendingThreshold time.Duration
	// BatchSize caps the requests probed per sweep.
	BatchSize int
	// RunTimeout bounds a single sweep.
	RunTimeout time.Duration
}

// DefaultConfig returns the default sweeper configuration.
func DefaultConfig() *Config {
	return &Config{
		Interval:         time.Minute,
		PendingThreshold: 2 * time.Minute,
		BatchSize:        50,
		RunTimeout:       45 * time.Second,
	}
}

// Sweeper periodically probes the provider for requests whose callback
// never arrived.
type Sweeper struct {
	target   PendingSweeper
	recorder SweepRecorder
	config   *Config
	logger   *zap.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSweeper creates a new sweeper. recorder may be nil.
func NewSweeper(target PendingSweeper, recorder SweepRecorder, config *Config, logger *zap.Logger) *Sweeper {
	if config == nil {
		config = DefaultConfig()
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = DefaultConfig().RunTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Sweeper{
		target:   target,
		recorder: recorder,
		config:   config,
		logger:   logger.Named("sweeper"),
		stopCh:   make(chan struct{}),
	}
}

// Start launches the sweep loop. It returns immediately.
func (s *Sweeper) Start() {
	if s.config.Interval <= 0 {
		s.logger.Info("pending sweeper disabled")
		return
	}

	s.logger.Info("starting pending sweeper",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("pending_threshold", s.config.PendingThreshold),
		zap.Int("batch_size", s.config.BatchSize))

	s.wg.Add(1)
	go s.loop()
}

// Stop stops the sweep loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
	s.logger.Info("pending sweeper stopped")
}

func (s *Sweeper) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			_, _ = s.RunOnce(context.Background())
		}
	}
}

// RunOnce performs a single sweep and returns how many requests resolved.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	start := time.Now()
	resolved, err := s.target.SweepPending(ctx, s.config.PendingThreshold, s.config.BatchSize)
	if s.recorder != nil {
		s.recorder.RecordSweep(resolved)
	}
	if err != nil {
		s.logger.Warn("sweep failed", zap.Error(err))
		return resolved, err
	}

	if resolved > 0 {
		s.logger.Info("sweep resolved pending requests",
			zap.Int("resolved", resolved),
			zap.Duration("took", time.Since(start)))
	}
	return resolved, nil
}
