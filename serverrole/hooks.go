// Package serverrole implements the server-role RoleHooks: the repository
// maintenance daemons and per-service listeners a multi-tenant archive
// server runs once the shared kernel is up.
package serverrole

import (
	"context"
	"net/http"
	"time"

	"github.com/Connor22/hydrus/apiserver"
	"github.com/Connor22/hydrus/kernel"
	"github.com/Connor22/hydrus/logger"
	"github.com/Connor22/hydrus/netsvc"
	"github.com/Connor22/hydrus/store"
)

const (
	syncRepositoriesInterval = 300 * time.Second
	saveDirtyObjectsInterval = 60 * time.Second
	deleteOrphansInterval    = 3600 * time.Second
	sweepSessionsInterval    = 600 * time.Second
)

// ServiceConfig describes one hosted service this server process should bind
// a listener for.
type ServiceConfig struct {
	ServiceKey string
	Port       int
	UseTLS     bool
}

// Hooks implements kernel.RoleHooks for the server process.
type Hooks struct {
	Services       []ServiceConfig
	NetworkVersion int
	Listeners      *netsvc.Manager
}

// NewHooks builds server role hooks for the given hosted services.
func NewHooks(services []ServiceConfig, networkVersion int) *Hooks {
	return &Hooks{
		Services:       services,
		NetworkVersion: networkVersion,
		Listeners:      netsvc.NewManager(),
	}
}

func (h *Hooks) Role() string { return "server" }

// InitView registers the server's repository maintenance daemons and binds
// one listener per configured service.
func (h *Hooks) InitView(ctrl *kernel.Controller) error {
	now := time.Now()

	ctrl.SlowScheduler.AddJob(kernel.NewRepeatingJob(now.Add(syncRepositoriesInterval), syncRepositoriesInterval, h.syncRepositories).Named("sync_repositories"))
	ctrl.FastScheduler.AddJob(kernel.NewRepeatingJob(now.Add(saveDirtyObjectsInterval), saveDirtyObjectsInterval, h.saveDirtyObjects(ctrl)).Named("save_dirty_objects"))
	ctrl.SlowScheduler.AddJob(kernel.NewRepeatingJob(now.Add(deleteOrphansInterval), deleteOrphansInterval, h.deleteOrphans(ctrl)).Named("delete_orphans"))
	ctrl.SlowScheduler.AddJob(kernel.NewRepeatingJob(now.Add(sweepSessionsInterval), sweepSessionsInterval, h.sweepExpiredSessions(ctrl)).Named("sweep_expired_sessions"))

	ctrl.Handlers.Register(apiserver.NewBusyHandler(ctrl))
	ctrl.Handlers.Register(apiserver.NewSessionKeyHandler(ctrl.DB))
	ctrl.Handlers.Register(apiserver.NewAccessKeyVerificationHandler(ctrl.DB))
	ctrl.Handlers.Register(apiserver.NewAccountHandler())
	ctrl.Handlers.Register(apiserver.NewDebugScheduledJobsHandler(ctrl))
	ctrl.Handlers.Register(apiserver.NewDebugThreadsHandler(ctrl))

	pipeline := apiserver.NewPipeline(ctrl.DB, ctrl.Handlers, h.NetworkVersion, ctrl.DBDir, 0, 0)

	specs := make([]netsvc.ServiceSpec, 0, len(h.Services))
	for _, svc := range h.Services {
		mux := http.NewServeMux()
		apiserver.SetupRoutes(mux, pipeline, apiserver.CORSConfig{})
		specs = append(specs, netsvc.ServiceSpec{
			ServiceKey: svc.ServiceKey,
			Port:       svc.Port,
			UseTLS:     svc.UseTLS,
			Handler:    mux,
		})
	}
	return h.Listeners.SetServices(specs)
}

// ShutdownView stops every bound service listener before the shared kernel
// tears down.
func (h *Hooks) ShutdownView(ctrl *kernel.Controller) error {
	h.Listeners.Shutdown()
	return nil
}

func (h *Hooks) syncRepositories(ctx kernel.CallContext) {
	logger.ComponentLogger("server.repo_sync").Debugw("syncing repository state")
}

// saveDirtyObjects returns a job callable closed over ctrl so it can route
// its write through the shared DB queue under dirty_object_lock discipline:
// a single synchronous write, never interleaved with another dirty save.
func (h *Hooks) saveDirtyObjects(ctrl *kernel.Controller) kernel.Callable {
	return func(kernel.CallContext) {
		err := ctrl.DBQueue.WriteSynchronous(context.Background(), func() (interface{}, error) {
			_, err := ctrl.DB.Exec("PRAGMA wal_checkpoint(PASSIVE)")
			return nil, err
		})
		if err != nil {
			logger.ComponentLogger("server.dirty_objects").Errorw("save pass failed", "error", err)
		}
	}
}

// deleteOrphans purges thumbnails belonging to soft-deleted files. The
// files row itself is kept (deleted_at marks it), so the foreign key never
// cascades this away on its own.
func (h *Hooks) deleteOrphans(ctrl *kernel.Controller) kernel.Callable {
	return func(kernel.CallContext) {
		err := ctrl.DBQueue.WriteSynchronous(context.Background(), func() (interface{}, error) {
			res, err := ctrl.DB.Exec(`DELETE FROM thumbnails WHERE hash IN (SELECT hash FROM files WHERE deleted_at IS NOT NULL)`)
			if err != nil {
				return nil, err
			}
			return res.RowsAffected()
		})
		if err != nil {
			logger.ComponentLogger("server.orphan_sweep").Errorw("orphan delete failed", "error", err)
		}
	}
}

func (h *Hooks) sweepExpiredSessions(ctrl *kernel.Controller) kernel.Callable {
	return func(kernel.CallContext) {
		_, err := ctrl.DBQueue.Read(context.Background(), func() (interface{}, error) {
			return store.SweepExpiredSessions(context.Background(), ctrl.DB)
		})
		if err != nil {
			logger.ComponentLogger("server.session_sweep").Errorw("session sweep failed", "error", err)
		}
	}
}
