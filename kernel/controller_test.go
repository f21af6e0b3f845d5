package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopRoleHooks struct{}

func (noopRoleHooks) Role() string                   { return "test" }
func (noopRoleHooks) InitView(*Controller) error     { return nil }
func (noopRoleHooks) ShutdownView(*Controller) error { return nil }

func newTestController(t *testing.T) *Controller {
	t.Helper()
	c := NewController(ControllerConfig{
		DBDir:                 t.TempDir(),
		FastSchedulerInterval: time.Hour,
		SlowSchedulerInterval: time.Hour,
		ShortTaskPoolCap:      10,
	}, noopRoleHooks{})
	c.registerMaintenanceJobs()
	t.Cleanup(func() {
		c.FastScheduler.Shutdown()
		c.SlowScheduler.Shutdown()
		c.ShortTaskPool.Shutdown()
		c.LongRunningPool.Shutdown()
		c.DBQueue.Shutdown()
		c.PubSub.Shutdown()
	})
	return c
}

func TestController_DebugScheduledJobsListsBaselineJobsByName(t *testing.T) {
	c := newTestController(t)

	summary := c.DebugScheduledJobs()
	for _, name := range []string{"maintain_db", "sleep_check", "maintain_memory_fast", "maintain_memory_slow", "services_upnp"} {
		assert.Contains(t, summary, name)
	}
}

func TestController_ThreadsSnapshotCombinesPoolsAndSchedulers(t *testing.T) {
	c := newTestController(t)

	snapshot := c.ThreadsSnapshot()
	var sawFast, sawSlow bool
	for _, ti := range snapshot {
		switch ti.Source {
		case "fast_scheduler":
			sawFast = true
		case "slow_scheduler":
			sawSlow = true
		}
	}
	require.True(t, sawFast, "snapshot should report the fast scheduler")
	require.True(t, sawSlow, "snapshot should report the slow scheduler")
}
