// Package webhook provides the ingestion HTTP server that turns inbound
// webhook deliveries into ZapTriggered events for the workers.
package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"

	"github.com/zapflow/zapflow/pkg/catalog"
	"github.com/zapflow/zapflow/pkg/eventbus"
	"github.com/zapflow/zapflow/pkg/events"
	"github.com/zapflow/zapflow/pkg/log"
	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/persistence"
	"github.com/zapflow/zapflow/pkg/protocol"
)

// Server receives webhook deliveries at /webhooks/:zapID, maps them to
// variables via the trigger's adapter, and publishes ZapTriggered events. It
// never runs Zaps itself.
type Server struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	port        int

	mu       sync.RWMutex
	adapters map[string]protocol.WebhookAdapter
	app      *fiber.App
}

func NewServer(logger *slog.Logger, p persistence.Persistence, publisher eventbus.EventPublisher, port int) *Server {
	return &Server{
		logger:      logger.With("module", "webhook"),
		persistence: p,
		publisher:   publisher,
		port:        port,
		adapters:    make(map[string]protocol.WebhookAdapter),
	}
}

// RegisterAdapter binds a trigger class name to the adapter that extracts
// variables from its deliveries.
func (s *Server) RegisterAdapter(className string, adapter protocol.WebhookAdapter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.adapters[className] = adapter
}

func (s *Server) App() *fiber.App {
	app := fiber.New()

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/health", s.handleHealth)

	app.Post("/webhooks/:zapID", s.handleDelivery)

	// PubSubHubbub sends subscription verification as GET with a challenge.
	app.Get("/webhooks/:zapID", s.handleVerification)

	return app
}

func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	s.app = s.App()
	app := s.app
	s.mu.Unlock()

	s.logger.Info("Starting webhook server", "port", s.port)

	return app.Listen(":" + strconv.Itoa(s.port))
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.RLock()
	app := s.app
	s.mu.RUnlock()

	if app == nil {
		return nil
	}

	s.logger.Info("Stopping webhook server")

	return app.ShutdownWithContext(ctx)
}

func (s *Server) handleDelivery(c fiber.Ctx) error {
	zapID := c.Params("zapID")
	logger := log.WithZap(s.logger, zapID)

	zap, err := s.persistence.ZapByID(c.Context(), zapID)
	if err != nil {
		if persistence.IsZapNotFound(err) {
			return zapNotFound(c, zapID)
		}

		logger.Error("Failed to fetch zap", "error", err)

		return internalError(c, err)
	}

	// Disabled Zaps swallow deliveries with a 2xx so providers stop
	// retrying; nothing is dispatched.
	if !zap.Enabled {
		logger.Info("Dropping delivery for disabled zap")

		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "dropped"})
	}

	trigger := zap.TriggerStep()
	if trigger == nil {
		return badRequest(c, "zap has no trigger step")
	}

	definition, ok := catalog.TriggerByClassName(trigger.ClassName)
	if ok && definition.Kind != models.TriggerKindWebhook {
		return badRequest(c, "zap trigger does not accept webhook deliveries")
	}

	adapter, ok := s.adapter(trigger.ClassName)
	if !ok {
		logger.Error("No adapter registered for trigger class", "class_name", trigger.ClassName)

		return internalError(c, fmt.Errorf("no webhook adapter for class %q", trigger.ClassName))
	}

	body, err := decodeBody(c.Get(fiber.HeaderContentType), c.Body())
	if err != nil {
		return badRequest(c, err.Error())
	}

	hook := protocol.InboundWebhook{
		Headers: requestHeaders(c),
		Query:   c.Queries(),
		Body:    body,
	}

	variables, err := adapter.ExtractVariables(hook)
	if err != nil {
		logger.Warn("Failed to extract variables from delivery", "error", err)

		return badRequest(c, "unrecognized delivery payload: "+err.Error())
	}

	event := events.ZapTriggered{
		BaseEvent: events.NewBaseEvent(events.ZapTriggeredEvent, zap.ID),
		Source:    events.SourceWebhook,
		Variables: variables,
	}

	err = s.publisher.Publish(c.Context(), zap.ID, event)
	if err != nil {
		logger.Error("Failed to publish trigger event", "error", err)

		return internalError(c, err)
	}

	logger.Info("Accepted webhook delivery", "class_name", trigger.ClassName, "variables", len(variables))

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status": "accepted",
		"zap_id": zap.ID,
	})
}

func (s *Server) handleHealth(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := fiber.StatusOK

	err := s.persistence.HealthCheck(c.Context())
	if err != nil {
		status = "unhealthy"
		httpStatus = fiber.StatusInternalServerError
	}

	s.mu.RLock()
	registered := len(s.adapters)
	s.mu.RUnlock()

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":              status,
		"registered_adapters": registered,
		"timestamp":           time.Now().UTC(),
	})
}

// handleVerification answers subscription handshakes: PubSubHubbub expects
// the hub.challenge echoed back verbatim.
func (s *Server) handleVerification(c fiber.Ctx) error {
	if challenge := c.Query("hub.challenge"); challenge != "" {
		return c.SendString(challenge)
	}

	return c.SendStatus(fiber.StatusOK)
}

func (s *Server) adapter(className string) (protocol.WebhookAdapter, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adapter, ok := s.adapters[className]

	return adapter, ok
}

func requestHeaders(c fiber.Ctx) map[string]string {
	headers := make(map[string]string)

	c.Request().Header.VisitAll(func(key, value []byte) {
		headers[string(key)] = string(value)
	})

	return headers
}
