package kernel

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/Connor22/hydrus/errors"
	"github.com/Connor22/hydrus/logger"
)

// Maintenance job intervals shared by both roles.
const (
	MaintainDBInterval         = 300 * time.Second
	SleepCheckInterval         = 120 * time.Second
	MaintainMemoryFastInterval = 60 * time.Second
	MaintainMemorySlowInterval = 300 * time.Second
	ServicesUPnPInterval       = 43200 * time.Second
)

// DbFactory opens the storage engine for a role. Concrete implementations
// live in the store package; the kernel only depends on this interface so it
// never imports a particular driver.
type DbFactory interface {
	Open(dbDir string) (*sql.DB, error)
}

// RoleHooks supplies the behavior that differs between the client and the
// server process: which maintenance jobs and listeners to bring up once the
// shared kernel is ready, and what to tear down first on the way out.
type RoleHooks interface {
	// Role returns a short identifier used in the run-marker filename and logs.
	Role() string
	// InitView runs once the kernel (schedulers, pools, db queue, thread
	// slots, idle detector) is live, and registers whatever role-specific
	// maintenance jobs and service daemons the role needs.
	InitView(ctrl *Controller) error
	// ShutdownView tears down role-specific daemons and listeners before the
	// shared kernel itself shuts down.
	ShutdownView(ctrl *Controller) error
}

// Controller composes the runtime kernel: the pub/sub bus, both job
// schedulers, both worker pools, the database request pipe, the thread-slot
// governor and the idle/sleep detector. A client and a server process each
// construct one, parameterized by a DbFactory and RoleHooks.
type Controller struct {
	DBDir string
	Role  string

	PubSub          *PubSub
	FastScheduler   *Scheduler
	SlowScheduler   *Scheduler
	ShortTaskPool   *WorkerPool
	LongRunningPool *WorkerPool
	DBQueue         *DBQueue
	ThreadSlots     *ThreadSlots
	Idle            *IdleDetector
	Flags           *RuntimeFlags
	Handlers        *HandlerRegistry

	DB *sql.DB

	hooks RoleHooks
}

// ControllerConfig carries the tunables a Controller needs at construction;
// see config.KernelConfig and config.IdleConfig for the on-disk shape these
// are loaded from.
type ControllerConfig struct {
	DBDir                   string
	FastSchedulerInterval   time.Duration
	SlowSchedulerInterval   time.Duration
	ShortTaskPoolCap        int
	ThreadSlotCapacities    map[string]int
	Idle                    IdleConfig
}

// NewController wires up C1 through C6 but does not yet open the database or
// run InitView; call Boot for that.
func NewController(cfg ControllerConfig, hooks RoleHooks) *Controller {
	c := &Controller{
		DBDir:       cfg.DBDir,
		Role:        hooks.Role(),
		PubSub:      NewPubSub(),
		ThreadSlots: NewThreadSlots(cfg.ThreadSlotCapacities),
		Idle:        NewIdleDetector(cfg.Idle),
		Flags:       NewRuntimeFlags(),
		Handlers:    NewHandlerRegistry(),
		DBQueue:     NewDBQueue(256),
		hooks:       hooks,
	}
	ctxFn := func() CallContext { return CallContext{Controller: c} }
	c.FastScheduler = NewScheduler("fast", cfg.FastSchedulerInterval, c.PubSub, ctxFn)
	c.SlowScheduler = NewScheduler("slow", cfg.SlowSchedulerInterval, c.PubSub, ctxFn)
	c.FastScheduler.SetIdleProvider(c.Idle)
	c.SlowScheduler.SetIdleProvider(c.Idle)
	c.ShortTaskPool = NewWorkerPool("short_task", cfg.ShortTaskPoolCap)
	c.LongRunningPool = NewWorkerPool("long_running", 0)
	return c
}

// Boot runs the two-phase startup sequence: ensure the temp and db
// directories exist, open the database through factory, write the run
// marker, register the baseline maintenance jobs, then hand off to the
// role's InitView for anything role-specific.
func (c *Controller) Boot(factory DbFactory) error {
	logger.KernelOpenInfow("controller boot starting", "role", c.Role, "db_dir", c.DBDir)

	if err := c.initTempDir(); err != nil {
		return errors.Wrap(err, "init temp dir")
	}

	db, err := factory.Open(c.DBDir)
	if err != nil {
		return errors.Wrap(err, "open database")
	}
	c.DB = db

	if err := WriteRunMarker(c.DBDir, c.Role); err != nil {
		return errors.Wrap(err, "write run marker")
	}

	c.registerMaintenanceJobs()

	if err := c.hooks.InitView(c); err != nil {
		return errors.Wrap(err, "role InitView")
	}

	c.Flags.SetBootedOK(true)
	logger.KernelOpenInfow("controller boot complete", "role", c.Role)
	return nil
}

func (c *Controller) initTempDir() error {
	tempDir := filepath.Join(c.DBDir, "tmp")
	return os.MkdirAll(tempDir, 0755)
}

func (c *Controller) registerMaintenanceJobs() {
	now := time.Now()

	c.SlowScheduler.AddJob(NewRepeatingJob(now.Add(MaintainDBInterval), MaintainDBInterval, c.maintainDB).Named("maintain_db"))
	c.SlowScheduler.AddJob(NewRepeatingJob(now.Add(SleepCheckInterval), SleepCheckInterval, c.sleepCheck).Named("sleep_check").ShouldDelayOnWakeup())
	c.FastScheduler.AddJob(NewRepeatingJob(now.Add(MaintainMemoryFastInterval), MaintainMemoryFastInterval, c.maintainMemoryFast).Named("maintain_memory_fast"))
	c.SlowScheduler.AddJob(NewRepeatingJob(now.Add(MaintainMemorySlowInterval), MaintainMemorySlowInterval, c.maintainMemorySlow).Named("maintain_memory_slow"))
	c.SlowScheduler.AddJob(NewRepeatingJob(now.Add(ServicesUPnPInterval), ServicesUPnPInterval, c.servicesUPnP).Named("services_upnp"))
}

func (c *Controller) maintainDB(ctx CallContext) {
	logger.DBQueueDebugw("running periodic db maintenance")
	_ = c.DBQueue.WriteSynchronous(context.Background(), func() (interface{}, error) {
		_, err := c.DB.Exec("PRAGMA optimize")
		return nil, err
	})
}

func (c *Controller) sleepCheck(ctx CallContext) {
	c.Idle.SleepCheck()
	if c.Idle.JustWokeFromSleep() {
		c.PubSub.PubImmediate("system_woke_from_sleep", nil)
	}
}

func (c *Controller) maintainMemoryFast(ctx CallContext) {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	if stats.HeapAlloc > 512*1024*1024 {
		runtime.GC()
	}
}

func (c *Controller) maintainMemorySlow(ctx CallContext) {
	runtime.GC()
	debug.FreeOSMemory()
}

func (c *Controller) servicesUPnP(ctx CallContext) {
	logger.ComponentLogger("kernel.controller").Debugw("upnp mapping refresh due", "role", c.Role)
}

// Shutdown runs the two-phase teardown: ShutdownView for role-specific
// daemons and listeners first, then the shared kernel (schedulers, pools, db
// queue, pub/sub) in dependency order, finally removing the run marker.
func (c *Controller) Shutdown() error {
	logger.KernelCloseInfow("controller shutdown starting", "role", c.Role)
	c.Flags.SetShuttingDown(true)

	if err := c.hooks.ShutdownView(c); err != nil {
		logger.ComponentLogger("kernel.controller").Errorw("role ShutdownView failed", "error", err)
	}

	c.FastScheduler.Shutdown()
	c.SlowScheduler.Shutdown()
	c.ShortTaskPool.Shutdown()
	c.LongRunningPool.Shutdown()
	c.DBQueue.Shutdown()
	c.PubSub.Shutdown()

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			logger.ComponentLogger("kernel.controller").Errorw("db close failed", "error", err)
		}
	}

	if err := RemoveRunMarker(c.DBDir, c.Role); err != nil {
		logger.ComponentLogger("kernel.controller").Errorw("remove run marker failed", "error", err)
	}

	logger.KernelCloseInfow("controller shutdown complete", "role", c.Role)
	return nil
}

// HealthSnapshot is a point-in-time summary of kernel load, suitable for a
// /busy-style status endpoint.
type HealthSnapshot struct {
	ShortTaskPoolStatus   BusyStatus
	LongRunningPoolStatus BusyStatus
	ShortTaskPoolWorkers  int
	FastSchedulerJobs     int
	SlowSchedulerJobs     int
	CurrentlyIdle         bool
	CurrentlyVeryIdle     bool
	SystemBusy            bool
}

// Health returns a snapshot of current kernel load across every component.
func (c *Controller) Health() HealthSnapshot {
	return HealthSnapshot{
		ShortTaskPoolStatus:   c.ShortTaskPool.Status(),
		LongRunningPoolStatus: c.LongRunningPool.Status(),
		ShortTaskPoolWorkers:  c.ShortTaskPool.Len(),
		FastSchedulerJobs:     c.FastScheduler.Len(),
		SlowSchedulerJobs:     c.SlowScheduler.Len(),
		CurrentlyIdle:         c.Idle.CurrentlyIdle(),
		CurrentlyVeryIdle:     c.Idle.CurrentlyVeryIdle(),
		SystemBusy:            c.Idle.SystemBusy(),
	}
}

// DebugScheduledJobs renders a human-readable summary of both schedulers'
// pending jobs, for an admin diagnostic resource.
func (c *Controller) DebugScheduledJobs() string {
	var b strings.Builder
	for _, sched := range []*Scheduler{c.FastScheduler, c.SlowScheduler} {
		fmt.Fprintf(&b, "%s scheduler (%d jobs):\n", sched.name, sched.Len())
		for _, job := range sched.JobSummaries() {
			kind := "one-shot"
			if job.Periodic {
				kind = "periodic"
			}
			fmt.Fprintf(&b, "  %s: due in %s, %s, %s\n", job.Name, job.DueIn.Round(time.Millisecond), job.Status, kind)
		}
	}
	return b.String()
}

// ThreadInfo is one entry in ThreadsSnapshot: a pool worker or a scheduler.
type ThreadInfo struct {
	Source string // "short_task", "long_running", "fast_scheduler", "slow_scheduler"
	Detail string
}

// ThreadsSnapshot combines both worker pools and both schedulers into one
// flat list, for an admin diagnostic resource.
func (c *Controller) ThreadsSnapshot() []ThreadInfo {
	var out []ThreadInfo
	for _, w := range c.ShortTaskPool.WorkerSummaries() {
		out = append(out, ThreadInfo{Source: w.Pool, Detail: fmt.Sprintf("worker %d idle=%v", w.ID, w.Idle)})
	}
	for _, w := range c.LongRunningPool.WorkerSummaries() {
		out = append(out, ThreadInfo{Source: w.Pool, Detail: fmt.Sprintf("worker %d idle=%v", w.ID, w.Idle)})
	}
	out = append(out, ThreadInfo{Source: "fast_scheduler", Detail: fmt.Sprintf("%d jobs pending", c.FastScheduler.Len())})
	out = append(out, ThreadInfo{Source: "slow_scheduler", Detail: fmt.Sprintf("%d jobs pending", c.SlowScheduler.Len())})
	return out
}
