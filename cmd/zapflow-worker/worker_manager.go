package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/zapflow/zapflow/pkg/eventbus"
	"github.com/zapflow/zapflow/pkg/events"
	"github.com/zapflow/zapflow/pkg/lock"
	"github.com/zapflow/zapflow/pkg/log"
	"github.com/zapflow/zapflow/pkg/persistence"
	"github.com/zapflow/zapflow/pkg/registry"
	"github.com/zapflow/zapflow/pkg/runner"
)

// runLockTTL bounds how long a crashed worker can hold a Zap. Live runs
// renew the lock at half the TTL, so only a crash leaves it to expire.
const runLockTTL = 5 * time.Minute

type WorkerManager struct {
	id       string
	logger   *slog.Logger
	eventBus eventbus.EventBus
	locker   lock.Locker
	runner   *runner.Runner
}

func NewWorkerManager(
	id string,
	p persistence.Persistence,
	eventBus eventbus.EventBus,
	locker lock.Locker,
	logger *slog.Logger,
	reg *registry.Registry,
) *WorkerManager {
	return &WorkerManager{
		id:       id,
		logger:   logger.With("module", "zapflow-worker", "worker_id", id),
		eventBus: eventBus,
		locker:   locker,
		runner:   runner.NewRunner(logger, p, reg, eventBus, id, runner.Config{}),
	}
}

// Start registers the event handlers and begins consuming. It returns once
// the subscription is live.
func (w *WorkerManager) Start(ctx context.Context) error {
	err := w.eventBus.Handle(events.ZapTriggeredEvent, w.handleZapTriggered)
	if err != nil {
		return err
	}

	err = w.eventBus.Subscribe(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	return nil
}

func (w *WorkerManager) handleZapTriggered(ctx context.Context, event any) error {
	triggered, ok := event.(*events.ZapTriggered)
	if !ok {
		w.logger.ErrorContext(ctx, "Invalid event type for ZapTriggered")

		return nil
	}

	logger := log.WithZap(w.logger, triggered.ZapID).With("source", triggered.Source, "event_id", triggered.ID)

	acquired, err := w.locker.Acquire(ctx, triggered.ZapID, runLockTTL)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to acquire run lock", "error", err)

		return err
	}

	if !acquired {
		// Another worker is already running this Zap. The event is
		// consumed, not retried, so concurrent fires coalesce.
		logger.InfoContext(ctx, "Zap is locked by another worker, skipping")

		return nil
	}

	defer func() {
		err := w.locker.Release(ctx, triggered.ZapID)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to release run lock", "error", err)
		}
	}()

	// Long action chains can outlive the TTL, so the lock is renewed for as
	// long as the run is in flight.
	renewCtx, stopRenewal := context.WithCancel(ctx)
	defer stopRenewal()

	go w.renewLock(renewCtx, logger, triggered.ZapID)

	logger.InfoContext(ctx, "Processing zap triggered event")

	if triggered.Source == events.SourceWebhook {
		err = w.runner.RunTriggered(ctx, triggered.ZapID, triggered.Variables)
	} else {
		err = w.runner.Run(ctx, triggered.ZapID)
	}

	if err != nil {
		logger.ErrorContext(ctx, "Zap run failed", "error", err)

		return err
	}

	return nil
}

func (w *WorkerManager) renewLock(ctx context.Context, logger *slog.Logger, zapID string) {
	ticker := time.NewTicker(runLockTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			extended, err := w.locker.Refresh(ctx, zapID, runLockTTL)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to renew run lock", "error", err)

				continue
			}

			if !extended {
				logger.WarnContext(ctx, "Run lock expired mid-run")

				return
			}
		}
	}
}
