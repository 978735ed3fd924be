package warmup

import (
	"context"
	"fmt"
	"time"

	cronv3 "github.com/robfig/cron/v3"

	"github.com/ignite/warmup-scheduler/internal/pkg/logger"
)

// DefaultSweepSchedule runs one minute after local midnight.
const DefaultSweepSchedule = "1 0 * * *"

// Sweeper rolls every record over once a day so idle identities still get
// their history archived and quota refreshed.
type Sweeper struct {
	store    *Store
	cron     *cronv3.Cron
	schedule string
	timeout  time.Duration
	observe  func(n int)
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewSweeper schedules store.Sweep on a standard five-field cron spec
// evaluated in loc.
func NewSweeper(store *Store, schedule string, loc *time.Location) *Sweeper {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if loc == nil {
		loc = time.Local
	}
	return &Sweeper{
		store:    store,
		schedule: schedule,
		timeout:  5 * time.Minute,
		cron: cronv3.New(
			cronv3.WithLocation(loc),
			cronv3.WithChain(
				cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
				cronv3.Recover(cronv3.DefaultLogger),
			),
		),
	}
}

// OnSweep registers fn to be called with the record count after every
// successful sweep.
func (sw *Sweeper) OnSweep(fn func(n int)) { sw.observe = fn }

// Start registers the job and starts the cron loop.
func (sw *Sweeper) Start() error {
	sw.ctx, sw.cancel = context.WithCancel(context.Background())
	if _, err := sw.cron.AddFunc(sw.schedule, sw.Run); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", sw.schedule, err)
	}
	sw.cron.Start()
	logger.Info("[WarmupSweeper] started", "schedule", sw.schedule)
	return nil
}

// Stop halts the cron loop and waits for a running sweep to finish.
func (sw *Sweeper) Stop() {
	if sw.cancel != nil {
		sw.cancel()
	}
	<-sw.cron.Stop().Done()
	logger.Info("[WarmupSweeper] stopped")
}

// Run performs one sweep.
func (sw *Sweeper) Run() {
	parent := sw.ctx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, sw.timeout)
	defer cancel()

	start := time.Now()
	n, err := sw.store.Sweep(ctx)
	if sw.observe != nil {
		sw.observe(n)
	}
	if err != nil {
		logger.Warn("[WarmupSweeper] sweep finished with errors", "records", n, "error", err)
		return
	}
	logger.Info("[WarmupSweeper] sweep complete", "records", n, "took", time.Since(start).String())
}
