// Package schedule implements the cron trigger. The scheduler gates when a
// check happens; the check itself always fires.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/zapflow/zapflow/pkg/models"
	"github.com/zapflow/zapflow/pkg/protocol"
)

var ErrCronRequired = errors.New("schedule trigger requires a cron expression")

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

type Trigger struct {
	cronExpr string
	logger   *slog.Logger

	now func() time.Time
}

func NewTrigger(payload map[string]any, logger *slog.Logger) (*Trigger, error) {
	cronExpr, _ := payload["cron"].(string)
	if cronExpr == "" {
		return nil, ErrCronRequired
	}

	_, err := parser.Parse(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}

	return &Trigger{
		cronExpr: cronExpr,
		logger:   logger.With("trigger", "schedule"),
		now:      time.Now,
	}, nil
}

func (t *Trigger) Check(ctx context.Context) (protocol.CheckResult, error) {
	firedAt := t.now().UTC()

	t.logger.DebugContext(ctx, "Schedule fired", "cron", t.cronExpr, "at", firedAt)

	return protocol.CheckResult{
		Status:    protocol.StatusSuccess,
		Triggered: true,
		Variables: models.Variables{
			{Key: "FiredAt", Value: firedAt.Format(time.RFC3339)},
		},
	}, nil
}
