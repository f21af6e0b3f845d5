package kernel

import "sync/atomic"

// RuntimeFlags collects the process-wide mutable flags that would otherwise
// be scattered package-level globals, so each is visibly an atomic and the
// whole set lives in one place a reader can audit.
type RuntimeFlags struct {
	shuttingDown  atomic.Bool
	bootedOK      atomic.Bool
	dbLocked      atomic.Bool
	maintenanceOn atomic.Bool
}

// NewRuntimeFlags returns a zero-valued flag set (not shutting down, not yet
// booted, db unlocked, maintenance jobs not yet running).
func NewRuntimeFlags() *RuntimeFlags {
	return &RuntimeFlags{}
}

func (f *RuntimeFlags) SetShuttingDown(v bool)  { f.shuttingDown.Store(v) }
func (f *RuntimeFlags) ShuttingDown() bool      { return f.shuttingDown.Load() }
func (f *RuntimeFlags) SetBootedOK(v bool)      { f.bootedOK.Store(v) }
func (f *RuntimeFlags) BootedOK() bool          { return f.bootedOK.Load() }
func (f *RuntimeFlags) SetDBLocked(v bool)      { f.dbLocked.Store(v) }
func (f *RuntimeFlags) DBLocked() bool          { return f.dbLocked.Load() }
func (f *RuntimeFlags) SetMaintenanceOn(v bool) { f.maintenanceOn.Store(v) }
func (f *RuntimeFlags) MaintenanceOn() bool     { return f.maintenanceOn.Load() }
