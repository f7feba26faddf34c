package main

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/intigym/backoffice/core"
	"github.com/intigym/backoffice/core/member"
	metricsvc "github.com/intigym/backoffice/services/metrics"
)

// jobs runs the periodic membership tasks of the API process.
type jobs struct {
	conf    *core.Config
	logger  core.Logger
	members member.Service
	metrics *metricsvc.Metrics
}

// run blocks until ctx is done. A zero interval disables its job.
func (j *jobs) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		every(gctx, j.conf.Membership.StatusRefreshInterval, j.refreshStatuses)
		return nil
	})
	g.Go(func() error {
		every(gctx, j.conf.Membership.ReminderInterval, j.sendReminders)
		return nil
	})
	return g.Wait()
}

func (j *jobs) refreshStatuses(ctx context.Context) {
	res, err := j.members.RefreshStatuses(ctx, j.conf.Today())
	if err != nil {
		j.logger.Error("refreshing payment statuses", err)
		return
	}
	j.metrics.RecordStatusRefresh(res.Expired, res.Current)
	if res.Expired+res.Current > 0 {
		j.logger.Info("payment statuses refreshed", map[string]interface{}{"expired": res.Expired, "current": res.Current})
	}
}

func (j *jobs) sendReminders(ctx context.Context) {
	n, err := j.members.SendReminders(ctx, j.conf.Today(), 0)
	if err != nil {
		j.logger.Error("sending expiration reminders", err)
	}
	j.metrics.RemindersSentTotal.Add(float64(n))
	if n > 0 {
		j.logger.Info("expiration reminders sent", map[string]interface{}{"sent": n})
	}
}

// every calls fn right away, then each interval until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) {
	if interval <= 0 {
		return
	}
	fn(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
