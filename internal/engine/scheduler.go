package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "sheetcal/internal/log"
)

// StartScheduler reloads e on the given standard cron spec until ctx is
// done. Overlapping runs are allowed; the newer reload supersedes the
// older one.
func StartScheduler(ctx context.Context, e *Engine, spec string, loc *time.Location) (*cron.Cron, error) {
	if loc == nil {
		loc = time.Local
	}
	c := cron.New(cron.WithLocation(loc))

	_, err := c.AddFunc(spec, func() {
		ReloadAndLog(ctx, e, "cron")
	})
	if err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}

	c.Start()
	appLog.Info("refresh scheduler started", "schedule", spec, "timezone", loc.String())

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		appLog.Info("refresh scheduler stopped")
	}()
	return c, nil
}

// ReloadAndLog runs one reload and logs its failure. Superseded reloads
// are not failures.
func ReloadAndLog(ctx context.Context, e *Engine, trigger string) {
	err := e.Reload(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrSuperseded), errors.Is(err, context.Canceled):
		appLog.Debug("reload superseded", "trigger", trigger)
	default:
		appLog.Error("reload failed; keeping previous index", err, "trigger", trigger)
	}
}
