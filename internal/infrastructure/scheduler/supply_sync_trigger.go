package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/printhub/fulfillment/internal/application/supplysync"
)

// Period is how often a schedule fires
type Period string

const (
	PeriodHourly Period = "hourly"
	PeriodDaily  Period = "daily"
)

// Schedule fires a full sync of one kind. Hourly schedules ignore Hour.
type Schedule struct {
	Kind   supplysync.Kind
	Every  Period
	Hour   int
	Minute int
}

// slotKey identifies the period a schedule fires in, for dedupe
func (s Schedule) slotKey(now time.Time) string {
	if s.Every == PeriodHourly {
		return now.Format("2006-01-02T15")
	}
	return now.Format(time.DateOnly)
}

// due reports whether now falls on the schedule's minute
func (s Schedule) due(now time.Time) bool {
	if now.Minute() != s.Minute {
		return false
	}
	return s.Every == PeriodHourly || now.Hour() == s.Hour
}

func (s Schedule) validate() error {
	if !s.Kind.IsValid() {
		return fmt.Errorf("%w: kind %q", ErrInvalidConfig, s.Kind)
	}
	if s.Every != PeriodHourly && s.Every != PeriodDaily {
		return fmt.Errorf("%w: period %q", ErrInvalidConfig, s.Every)
	}
	if s.Hour < 0 || s.Hour > 23 || s.Minute < 0 || s.Minute > 59 {
		return fmt.Errorf("%w: time %02d:%02d", ErrInvalidConfig, s.Hour, s.Minute)
	}
	return nil
}

// SupplySyncTriggerConfig holds configuration for the supply sync trigger
type SupplySyncTriggerConfig struct {
	// CheckInterval is how often the clock is checked; must not exceed one minute
	CheckInterval time.Duration
	// Location is the time zone schedules are evaluated in
	Location  *time.Location
	Schedules []Schedule
}

// DefaultSupplySyncTriggerConfig returns the default schedules:
// catalog daily at 03:00, inventory hourly at :00, pricing daily at 04:00
func DefaultSupplySyncTriggerConfig() SupplySyncTriggerConfig {
	return SupplySyncTriggerConfig{
		CheckInterval: time.Minute,
		Location:      time.UTC,
		Schedules: []Schedule{
			{Kind: supplysync.KindCatalog, Every: PeriodDaily, Hour: 3},
			{Kind: supplysync.KindInventory, Every: PeriodHourly},
			{Kind: supplysync.KindPricing, Every: PeriodDaily, Hour: 4},
		},
	}
}

// Validate validates the configuration and fills defaults
func (c *SupplySyncTriggerConfig) Validate() error {
	if c.CheckInterval <= 0 || c.CheckInterval > time.Minute {
		return ErrInvalidConfig
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	for _, s := range c.Schedules {
		if err := s.validate(); err != nil {
			return err
		}
	}
	return nil
}

// SupplySyncTrigger turns wall-clock schedules into scheduler jobs.
// The trigger source (ticker) is separate from Tick, so schedules are testable
// with any clock.
type SupplySyncTrigger struct {
	config    SupplySyncTriggerConfig
	scheduler *SupplySyncScheduler
	logger    *zap.Logger
	clock     func() time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	lastFired map[int]string
}

// NewSupplySyncTrigger creates a trigger. clock may be nil for time.Now.
func NewSupplySyncTrigger(
	config SupplySyncTriggerConfig,
	scheduler *SupplySyncScheduler,
	clock func() time.Time,
	logger *zap.Logger,
) (*SupplySyncTrigger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = time.Now
	}
	return &SupplySyncTrigger{
		config:    config,
		scheduler: scheduler,
		logger:    logger,
		clock:     clock,
		lastFired: make(map[int]string),
	}, nil
}

// Start starts the trigger loop
func (c *SupplySyncTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("Supply sync trigger started",
		zap.Int("schedules", len(c.config.Schedules)),
		zap.Duration("check_interval", c.config.CheckInterval),
	)
	return nil
}

// Stop stops the trigger loop
func (c *SupplySyncTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Supply sync trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *SupplySyncTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Tick(c.clock())
		}
	}
}

// Tick fires every schedule due at now that has not yet fired in its period,
// and returns the kinds it queued
func (c *SupplySyncTrigger) Tick(now time.Time) []supplysync.Kind {
	now = now.In(c.config.Location)

	var fired []supplysync.Kind
	for i, s := range c.config.Schedules {
		if !s.due(now) {
			continue
		}
		key := s.slotKey(now)

		c.mu.Lock()
		already := c.lastFired[i] == key
		c.mu.Unlock()
		if already {
			continue
		}

		jobID, err := c.scheduler.ScheduleSync(s.Kind, nil, "schedule")
		if err != nil {
			c.logger.Error("Failed to schedule supply sync",
				zap.String("kind", string(s.Kind)),
				zap.Error(err),
			)
			continue
		}

		c.mu.Lock()
		c.lastFired[i] = key
		c.mu.Unlock()

		c.logger.Info("Scheduled supply sync",
			zap.String("kind", string(s.Kind)),
			zap.String("job_id", jobID.String()),
		)
		fired = append(fired, s.Kind)
	}
	return fired
}
