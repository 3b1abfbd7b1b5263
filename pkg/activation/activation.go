// Package activation turns draft Zaps into runnable ones: it validates the
// step chain, registers webhook subscriptions with external providers, and
// snapshots polling baselines so pre-existing items never fire retroactively.
package activation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/zapflow/zapflow/pkg/catalog"
	"github.com/zapflow/zapflow/pkg/log"
	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/persistence"
	"github.com/zapflow/zapflow/pkg/protocol"
	"github.com/zapflow/zapflow/pkg/registry"
)

var (
	ErrAlreadyEnabled     = errors.New("zap is already enabled")
	ErrTriggerMisplaced   = errors.New("zap needs exactly one trigger step at ordinal 0")
	ErrOrdinalGap         = errors.New("step ordinals must be contiguous")
	ErrConnectionRequired = errors.New("trigger requires a connection")
	ErrHookRejected       = errors.New("webhook subscription was rejected by the provider")
)

// Service activates and deactivates Zaps.
type Service struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	validate    *validator.Validate

	// webhookBaseURL is the public base the ingestion server listens on,
	// e.g. "https://hooks.example.com". Delivery URLs are baseURL/webhooks/<zapID>.
	webhookBaseURL string

	now func() time.Time
}

func NewService(logger *slog.Logger, p persistence.Persistence, r *registry.Registry, webhookBaseURL string) *Service {
	return &Service{
		logger:         logger.With("module", "activation"),
		persistence:    p,
		registry:       r,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		webhookBaseURL: webhookBaseURL,
		now:            time.Now,
	}
}

// Activate validates a Zap end to end and enables it. Any validation or
// subscription failure leaves the Zap disabled.
func (s *Service) Activate(ctx context.Context, zapID string) error {
	logger := log.WithZap(s.logger, zapID)

	zap, err := s.persistence.ZapByID(ctx, zapID)
	if err != nil {
		return fmt.Errorf("failed to fetch zap %s: %w", zapID, err)
	}

	if zap.Enabled {
		return ErrAlreadyEnabled
	}

	err = s.validateChain(ctx, zap)
	if err != nil {
		return fmt.Errorf("zap %s failed validation: %w", zapID, err)
	}

	trigger := zap.TriggerStep()

	definition, cataloged := catalog.TriggerByClassName(trigger.ClassName)
	if cataloged {
		switch definition.Kind {
		case models.TriggerKindWebhook:
			err = s.registerHook(ctx, zap, trigger)
			if err != nil {
				return fmt.Errorf("failed to register webhook for zap %s: %w", zapID, err)
			}

		case models.TriggerKindPolling:
			err = s.snapshotBaseline(ctx, trigger)
			if err != nil {
				return fmt.Errorf("failed to snapshot polling baseline for zap %s: %w", zapID, err)
			}

		case models.TriggerKindSchedule:
		}
	}

	zap.Enabled = true

	err = s.persistence.SaveZap(ctx, zap)
	if err != nil {
		return fmt.Errorf("failed to save zap %s: %w", zapID, err)
	}

	logger.Info("Activated zap", "class_name", trigger.ClassName)

	return nil
}

// Deactivate disables a Zap. Scheduled checks stop immediately; webhook
// deliveries are dropped at the ingestion server.
func (s *Service) Deactivate(ctx context.Context, zapID string) error {
	zap, err := s.persistence.ZapByID(ctx, zapID)
	if err != nil {
		return fmt.Errorf("failed to fetch zap %s: %w", zapID, err)
	}

	if !zap.Enabled {
		return nil
	}

	zap.Enabled = false

	err = s.persistence.SaveZap(ctx, zap)
	if err != nil {
		return fmt.Errorf("failed to save zap %s: %w", zapID, err)
	}

	s.logger.Info("Deactivated zap", "zap_id", zapID)

	return nil
}

// validateChain checks structure, catalog payload schemas, and connection
// requirements for every step.
func (s *Service) validateChain(ctx context.Context, zap *models.Zap) error {
	err := s.validate.Struct(zap)
	if err != nil {
		return err
	}

	if zap.TriggerStep() == nil {
		return ErrTriggerMisplaced
	}

	for i, step := range zap.Steps {
		if step.Ordinal != i {
			return fmt.Errorf("%w: step %s has ordinal %d at position %d", ErrOrdinalGap, step.ID, step.Ordinal, i)
		}

		if i > 0 && step.Type != models.StepTypeAction {
			return fmt.Errorf("%w: extra trigger at ordinal %d", ErrTriggerMisplaced, step.Ordinal)
		}

		err = s.validateStep(ctx, step)
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *Service) validateStep(ctx context.Context, step *models.Step) error {
	var (
		requiresConnection bool
		err                error
	)

	if step.Type == models.StepTypeTrigger {
		definition, ok := catalog.TriggerByClassName(step.ClassName)
		if ok {
			requiresConnection = definition.RequiresConnection
			err = catalog.ValidateTriggerPayload(step.ClassName, step.Payload)
		}
	} else {
		definition, ok := catalog.ActionByClassName(step.ClassName)
		if ok {
			requiresConnection = definition.RequiresConnection
			err = catalog.ValidateActionPayload(step.ClassName, step.Payload)
		}
	}

	if err != nil {
		return fmt.Errorf("step %s payload is invalid: %w", step.ID, err)
	}

	if !requiresConnection {
		return nil
	}

	if step.ConnectionID == nil {
		return fmt.Errorf("%w: step %s (%s)", ErrConnectionRequired, step.ID, step.ClassName)
	}

	connection, err := s.persistence.ConnectionByID(ctx, *step.ConnectionID)
	if err != nil {
		return fmt.Errorf("step %s connection: %w", step.ID, err)
	}

	if connection.Expired(s.now()) {
		return fmt.Errorf("step %s connection %s is expired", step.ID, connection.ID)
	}

	return nil
}

// registerHook builds the trigger job and asks the external provider to
// start delivering to our ingestion URL. The job must implement
// protocol.WebhookJob.
func (s *Service) registerHook(ctx context.Context, zap *models.Zap, trigger *models.Step) error {
	accessToken, err := s.stepToken(ctx, trigger)
	if err != nil {
		return err
	}

	job, err := s.buildTrigger(trigger, accessToken)
	if err != nil {
		return err
	}

	webhookJob, ok := job.(protocol.WebhookJob)
	if !ok {
		return fmt.Errorf("trigger class %q does not support webhook subscriptions", trigger.ClassName)
	}

	secret := uuid.NewString()
	webhookURL := s.webhookBaseURL + "/webhooks/" + zap.ID

	registered, err := webhookJob.Hook(ctx, webhookURL, secret, trigger.Payload, accessToken)
	if err != nil {
		return err
	}

	if !registered {
		return ErrHookRejected
	}

	return nil
}

// snapshotBaseline runs one initial check so the first scheduled poll
// compares against the world as it was at activation. The baseline is set on
// the in-memory step: Activate's final SaveZap replaces steps wholesale, so
// writing it straight to persistence here would be undone.
func (s *Service) snapshotBaseline(ctx context.Context, trigger *models.Step) error {
	accessToken, err := s.stepToken(ctx, trigger)
	if err != nil {
		return err
	}

	job, err := s.buildTrigger(trigger, accessToken)
	if err != nil {
		return err
	}

	result, err := job.Check(ctx)
	if err != nil {
		return err
	}

	if result.Status == protocol.StatusFailure {
		return errors.New("baseline trigger check failed")
	}

	if result.ComparisonData != nil {
		trigger.ComparisonData = result.ComparisonData
	}

	checkedAt := s.now().UTC()
	trigger.LastExecution = &checkedAt

	return nil
}

func (s *Service) buildTrigger(trigger *models.Step, accessToken string) (protocol.TriggerJob, error) {
	definition, _ := catalog.TriggerByClassName(trigger.ClassName)

	return s.registry.BuildTrigger(trigger.ClassName, protocol.TriggerParams{
		StepID:          trigger.ID,
		Kind:            definition.Kind,
		LastExecution:   trigger.LastExecution,
		PollingInterval: definition.PollingInterval,
		AccessToken:     accessToken,
		Payload:         trigger.Payload,
		ComparisonData:  trigger.ComparisonData,
	})
}

func (s *Service) stepToken(ctx context.Context, step *models.Step) (string, error) {
	if step.ConnectionID == nil {
		return "", nil
	}

	connection, err := s.persistence.ConnectionByID(ctx, *step.ConnectionID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch connection %s: %w", *step.ConnectionID, err)
	}

	return connection.AccessToken, nil
}
