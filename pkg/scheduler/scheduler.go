// Package scheduler hosts the tick loop that decides which Zaps are due and
// dispatches them to workers over the event bus.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/zapflow/zapflow/pkg/catalog"
	"github.com/zapflow/zapflow/pkg/eventbus"
	"github.com/zapflow/zapflow/pkg/events"
	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/persistence"
)

// DefaultTickInterval is how often the scheduler scans for due Zaps.
const DefaultTickInterval = time.Minute

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Scheduler scans enabled Zaps every tick and publishes a ZapTriggered event
// for each one whose trigger is due. It never runs anything itself; workers
// consume the events and invoke the runner.
type Scheduler struct {
	logger       *slog.Logger
	persistence  persistence.Persistence
	publisher    eventbus.EventPublisher
	tickInterval time.Duration

	ticker  *time.Ticker
	done    chan bool
	started bool
	mu      sync.RWMutex

	now func() time.Time
}

func NewScheduler(logger *slog.Logger, p persistence.Persistence, publisher eventbus.EventPublisher, tickInterval time.Duration) *Scheduler {
	if tickInterval <= 0 {
		tickInterval = DefaultTickInterval
	}

	return &Scheduler{
		logger:       logger.With("module", "scheduler"),
		persistence:  p,
		publisher:    publisher,
		tickInterval: tickInterval,
		now:          time.Now,
	}
}

// Start begins the tick loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info("Starting scheduler", "tick_interval", s.tickInterval)

	s.ticker = time.NewTicker(s.tickInterval)
	s.done = make(chan bool)
	s.started = true

	go s.loop(ctx)

	return nil
}

// Stop gracefully shuts down the tick loop.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info("Stopping scheduler")

	if s.ticker != nil {
		s.ticker.Stop()
	}

	select {
	case s.done <- true:
	default:
	}

	s.started = false

	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-s.ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick scans all enabled Zaps once and dispatches the due ones. Exposed so
// operators (and tests) can force an immediate scan.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now().UTC()

	zaps, err := s.persistence.Zaps(ctx)
	if err != nil {
		s.logger.Error("Failed to list zaps", "error", err)

		return
	}

	dispatched := 0

	for _, zap := range zaps {
		if !zap.Enabled {
			continue
		}

		trigger := zap.TriggerStep()
		if trigger == nil {
			s.logger.Warn("Enabled zap has no trigger step", "zap_id", zap.ID)

			continue
		}

		source, due := s.dueness(trigger, now)
		if !due {
			continue
		}

		event := events.ZapTriggered{
			BaseEvent: events.NewBaseEvent(events.ZapTriggeredEvent, zap.ID),
			Source:    source,
		}

		err = s.publisher.Publish(ctx, zap.ID, event)
		if err != nil {
			s.logger.Error("Failed to publish trigger event", "zap_id", zap.ID, "error", err)

			continue
		}

		dispatched++
	}

	if dispatched > 0 {
		s.logger.Info("Dispatched due zaps", "count", dispatched, "scanned", len(zaps))
	}
}

// dueness decides whether a trigger step should be checked now. Webhook
// triggers are never scheduled; they arrive through the ingestion server.
func (s *Scheduler) dueness(trigger *models.Step, now time.Time) (events.TriggerSource, bool) {
	definition, ok := catalog.TriggerByClassName(trigger.ClassName)
	if !ok {
		// Custom registration without a catalog entry: poll every tick.
		return events.SourcePolling, true
	}

	switch definition.Kind {
	case models.TriggerKindWebhook:
		return "", false

	case models.TriggerKindSchedule:
		return events.SourceSchedule, s.cronDue(trigger, now)

	case models.TriggerKindPolling:
		if trigger.LastExecution == nil {
			return events.SourcePolling, true
		}

		interval := definition.PollingInterval
		if interval <= 0 {
			interval = s.tickInterval
		}

		return events.SourcePolling, now.Sub(*trigger.LastExecution) >= interval
	}

	return "", false
}

// cronDue reports whether the cron expression has a fire time between the
// last check and now. A first-ever check is always due so the schedule
// anchors itself.
func (s *Scheduler) cronDue(trigger *models.Step, now time.Time) bool {
	expression, _ := trigger.Payload["cron"].(string)

	schedule, err := cronParser.Parse(expression)
	if err != nil {
		s.logger.Warn("Invalid cron expression", "step_id", trigger.ID, "cron", expression, "error", err)

		return false
	}

	if trigger.LastExecution == nil {
		return true
	}

	return !schedule.Next(*trigger.LastExecution).After(now)
}
