// Package schedule runs background maintenance jobs on cron specs. Jobs
// never overlap with themselves; a tick that fires while the previous run
// is still going is skipped.
package schedule

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type CronScheduler struct {
	cron *cron.Cron
	ctx  context.Context
}

func NewCronScheduler() *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &CronScheduler{
		cron: cron.New(cron.WithParser(parser)),
	}
}

func (c *CronScheduler) AddJob(job Job, spec string) error {
	guarded := &guardedJob{sched: c, job: job, spec: spec}
	if _, err := c.cron.AddFunc(spec, guarded.tick); err != nil {
		logutil.GetLogger(context.Background()).Error("schedule job failed",
			zap.String("job", job.Name()), zap.String("spec", spec), zap.Error(err))
		return err
	}
	logutil.GetLogger(context.Background()).Info("job scheduled",
		zap.String("job", job.Name()), zap.String("spec", spec))
	return nil
}

func (c *CronScheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.ctx = ctx
	c.cron.Start()
}

func (c *CronScheduler) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}

// guardedJob serializes runs of one job across ticks.
type guardedJob struct {
	sched   *CronScheduler
	job     Job
	spec    string
	running atomic.Bool
}

func (g *guardedJob) tick() {
	ctx := g.sched.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	logger := logutil.GetLogger(ctx).With(zap.String("job", g.job.Name()), zap.String("spec", g.spec))
	if !g.running.CompareAndSwap(false, true) {
		logger.Info("previous run still active, skipping tick")
		return
	}
	defer g.running.Store(false)

	start := time.Now()
	logger.Info("job started")
	if err := g.job.Run(ctx); err != nil {
		logger.Error("job failed", zap.Error(err), zap.Duration("cost", time.Since(start)))
		return
	}
	logger.Info("job done", zap.Duration("cost", time.Since(start)))
}
