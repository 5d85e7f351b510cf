package schedule

import (
	"context"
	"fmt"
	"sync"
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

// CronScheduler runs maintenance jobs on standard five-field cron specs.
// A job never overlaps with itself; a tick that finds it still running is dropped.
type CronScheduler struct {
	cron   *cron.Cron
	parser cron.Parser

	mu    sync.Mutex
	ctx   context.Context
	tasks map[string]*task
}

type task struct {
	job     Job
	spec    string
	entry   cron.EntryID
	running atomic.Bool
}

func NewCronScheduler() *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &CronScheduler{
		cron:   cron.New(cron.WithParser(parser)),
		parser: parser,
		ctx:    context.Background(),
		tasks:  make(map[string]*task),
	}
}

func (c *CronScheduler) AddJob(job Job, spec string) error {
	if _, err := c.parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid cron spec %q for job %s: %w", spec, job.Name(), err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tasks[job.Name()]; ok {
		return fmt.Errorf("job %s already scheduled", job.Name())
	}
	t := &task{job: job, spec: spec}
	entry, err := c.cron.AddFunc(spec, func() { c.execute(c.context(), t) })
	if err != nil {
		return err
	}
	t.entry = entry
	c.tasks[job.Name()] = t
	logutil.GetLogger(context.Background()).Info("job scheduled",
		zap.String("job", job.Name()),
		zap.String("spec", spec),
	)
	return nil
}

// Trigger runs a scheduled job right away, outside its cron slot. It reports
// false when the job is unknown or already running.
func (c *CronScheduler) Trigger(ctx context.Context, name string) (bool, error) {
	c.mu.Lock()
	t, ok := c.tasks[name]
	c.mu.Unlock()
	if !ok {
		return false, nil
	}
	return c.execute(ctx, t)
}

func (c *CronScheduler) Start(ctx context.Context) {
	if ctx != nil {
		c.mu.Lock()
		c.ctx = ctx
		c.mu.Unlock()
	}
	c.cron.Start()
}

func (c *CronScheduler) Stop() {
	<-c.cron.Stop().Done()
}

func (c *CronScheduler) context() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

func (c *CronScheduler) execute(ctx context.Context, t *task) (bool, error) {
	logger := logutil.GetLogger(ctx).With(
		zap.String("job", t.job.Name()),
		zap.String("spec", t.spec),
	)
	if !t.running.CompareAndSwap(false, true) {
		logger.Info("job skipped: still running")
		return false, nil
	}
	defer t.running.Store(false)

	start := time.Now()
	logger.Info("job started")
	err := t.job.Run(ctx)
	elapsed := time.Since(start)
	if err != nil {
		logger.Error("job finished", zap.Error(err), zap.Duration("duration", elapsed))
		return true, err
	}
	logger.Info("job finished", zap.Duration("duration", elapsed))
	return true, nil
}
