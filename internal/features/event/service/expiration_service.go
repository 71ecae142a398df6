package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	apperrors "giveaway-poll-backend/internal/common/errors"
	"giveaway-poll-backend/internal/features/event/repository"
)

// ExpirationConfig sets the schedule of an ExpirationService. Zero values
// fall back to the defaults.
type ExpirationConfig struct {
	InitialDelay time.Duration
	Interval     time.Duration
	StopTimeout  time.Duration
}

// ExpirationStats are running totals since start.
type ExpirationStats struct {
	Ticks    int64 `json:"ticks"`
	Closed   int64 `json:"closed"`
	Failures int64 `json:"failures"`
}

// ExpirationService periodically closes open events whose end time has
// passed.
type ExpirationService struct {
	ctx       context.Context
	cancel    context.CancelFunc
	lifecycle *LifecycleService
	config    ExpirationConfig
	logger    zerolog.Logger
	wg        sync.WaitGroup

	started  atomic.Bool
	stopOnce sync.Once

	ticks    atomic.Int64
	closed   atomic.Int64
	failures atomic.Int64
}

func NewExpirationService(lifecycle *LifecycleService, config ExpirationConfig, logger zerolog.Logger) *ExpirationService {
	if config.InitialDelay <= 0 {
		config.InitialDelay = DefaultInitialDelay
	}
	if config.Interval <= 0 {
		config.Interval = DefaultCheckInterval
	}
	if config.StopTimeout <= 0 {
		config.StopTimeout = DefaultStopTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ExpirationService{
		ctx:       ctx,
		cancel:    cancel,
		lifecycle: lifecycle,
		config:    config,
		logger:    logger.With().Str("domain", lifecycle.store.Domain()).Logger(),
	}
}

// Name identifies the service in logs and the module registry.
func (s *ExpirationService) Name() string {
	return "expiration:" + s.lifecycle.store.Domain()
}

// Start runs the check loop in the background. Calling it twice is a no-op.
func (s *ExpirationService) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	s.logger.Info().
		Dur("initial_delay", s.config.InitialDelay).
		Dur("interval", s.config.Interval).
		Msg("Starting expiration service")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(s.config.InitialDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-s.ctx.Done():
			return
		}
		s.Tick(s.ctx)

		ticker := time.NewTicker(s.config.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Tick(s.ctx)
			case <-s.ctx.Done():
				return
			}
		}
	}()
}

// Stop halts future checks and waits up to StopTimeout for a running one.
func (s *ExpirationService) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info().Msg("Stopping expiration service")
		s.cancel()

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			s.logger.Info().Msg("Expiration service stopped")
		case <-time.After(s.config.StopTimeout):
			s.logger.Warn().Dur("timeout", s.config.StopTimeout).Msg("Expiration check still running after stop timeout")
		}
	})
}

// Tick runs one check synchronously and returns the number of events it
// closed. Cancelling ctx stops the check between events; a closure already
// started is allowed to finish.
func (s *ExpirationService) Tick(ctx context.Context) int {
	s.ticks.Add(1)
	now := s.lifecycle.now()

	closed := 0
	for _, entry := range s.lifecycle.store.ListAll() {
		if ctx.Err() != nil {
			break
		}
		if !entry.Event.DueForClosure(now) {
			continue
		}
		if s.process(ctx, entry) {
			closed++
		}
	}

	if closed > 0 {
		s.logger.Info().Int("closed", closed).Msg("Expired events closed")
	}
	return closed
}

// process closes one expired event. Failures are contained to the event.
func (s *ExpirationService) process(ctx context.Context, entry repository.Entry) (closed bool) {
	log := s.logger.With().Str("key", entry.Key.String()).Str("event_id", entry.Event.ID).Logger()
	defer func() {
		if r := recover(); r != nil {
			s.failures.Add(1)
			log.Error().Err(fmt.Errorf("panic: %v", r)).Msg("Closing expired event panicked")
			closed = false
		}
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ProcessingTimeout)
	defer cancel()

	result, err := s.lifecycle.CloseExpired(ctx, entry.Key)
	if err != nil {
		switch apperrors.CodeOf(err) {
		case apperrors.ErrCodePersistence:
			log.Warn().Err(err).Msg("Expired event closed but not persisted")
		case apperrors.ErrCodeNotFound, apperrors.ErrCodeInvalidState:
			log.Debug().Err(err).Msg("Skipping expired event")
			return false
		default:
			// selection errors leave the event open for the next check
			s.failures.Add(1)
			log.Error().Err(err).Msg("Failed to close expired event")
			return false
		}
	}

	if result.Status != CloseClosed {
		return false
	}
	s.closed.Add(1)
	return true
}

// Stats returns the running totals.
func (s *ExpirationService) Stats() ExpirationStats {
	return ExpirationStats{
		Ticks:    s.ticks.Load(),
		Closed:   s.closed.Load(),
		Failures: s.failures.Load(),
	}
}
