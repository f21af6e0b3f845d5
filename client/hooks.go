// Package client implements the client-role RoleHooks: the maintenance jobs
// and local API listener a single-user archive client runs once the shared
// kernel is up.
package client

import (
	"context"
	"crypto/sha256"
	"io"
	"net/http"
	"time"

	"github.com/Connor22/hydrus/apiserver"
	"github.com/Connor22/hydrus/errors"
	"github.com/Connor22/hydrus/internal/httpclient"
	"github.com/Connor22/hydrus/kernel"
	"github.com/Connor22/hydrus/logger"
	"github.com/Connor22/hydrus/netsvc"
	"github.com/Connor22/hydrus/store"
)

const (
	downloadFilesInterval     = 30 * time.Second
	subscriptionsSyncInterval = 3600 * time.Second
	trashInterval             = 86400 * time.Second
	repoSyncInterval          = 600 * time.Second
	importExportInterval      = 60 * time.Second
	accountSyncInterval       = 3600 * time.Second
	mouseIdleProbeInterval    = 5 * time.Second

	downloadBatchSize   = 10
	downloadMaxAttempts = 5
	downloadTimeout     = 60 * time.Second
)

// Hooks implements kernel.RoleHooks for the client process.
type Hooks struct {
	ClientAPIPort int
	Listeners     *netsvc.Manager
}

// NewHooks builds client role hooks listening on clientAPIPort for the local
// client API.
func NewHooks(clientAPIPort int) *Hooks {
	return &Hooks{
		ClientAPIPort: clientAPIPort,
		Listeners:     netsvc.NewManager(),
	}
}

func (h *Hooks) Role() string { return "client" }

// InitView registers the client's maintenance daemons and brings up the
// local client API listener.
func (h *Hooks) InitView(ctrl *kernel.Controller) error {
	now := time.Now()

	ctrl.SlowScheduler.AddJob(kernel.NewRepeatingJob(now.Add(downloadFilesInterval), downloadFilesInterval, h.downloadFiles).Named("download_files"))
	ctrl.SlowScheduler.AddJob(kernel.NewRepeatingJob(now.Add(subscriptionsSyncInterval), subscriptionsSyncInterval, h.syncSubscriptions).Named("sync_subscriptions"))
	ctrl.SlowScheduler.AddJob(kernel.NewRepeatingJob(now.Add(trashInterval), trashInterval, h.emptyTrash).Named("empty_trash"))
	ctrl.SlowScheduler.AddJob(kernel.NewRepeatingJob(now.Add(repoSyncInterval), repoSyncInterval, h.syncRepositories).Named("sync_repositories"))
	ctrl.FastScheduler.AddJob(kernel.NewRepeatingJob(now.Add(importExportInterval), importExportInterval, h.processImportExportFolders).Named("process_import_export_folders"))
	ctrl.SlowScheduler.AddJob(kernel.NewRepeatingJob(now.Add(accountSyncInterval), accountSyncInterval, h.syncAccounts).Named("sync_accounts"))
	ctrl.FastScheduler.AddJob(kernel.NewRepeatingJob(now.Add(mouseIdleProbeInterval), mouseIdleProbeInterval, h.probeMouseIdle).Named("probe_mouse_idle"))

	ctrl.Handlers.Register(apiserver.NewBusyHandler(ctrl))
	ctrl.Handlers.Register(apiserver.NewSessionKeyHandler(ctrl.DB))
	ctrl.Handlers.Register(apiserver.NewAccessKeyVerificationHandler(ctrl.DB))
	ctrl.Handlers.Register(apiserver.NewAccountHandler())
	ctrl.Handlers.Register(apiserver.NewDebugScheduledJobsHandler(ctrl))
	ctrl.Handlers.Register(apiserver.NewDebugThreadsHandler(ctrl))

	pipeline := apiserver.NewPipeline(ctrl.DB, ctrl.Handlers, 1, ctrl.DBDir, 0, 0)
	mux := http.NewServeMux()
	apiserver.SetupRoutes(mux, pipeline, apiserver.CORSConfig{AllowedOrigins: []string{"http://localhost", "http://127.0.0.1"}})

	return h.Listeners.StartService(netsvc.ServiceSpec{
		ServiceKey: "client_api",
		Port:       h.ClientAPIPort,
		Handler:    mux,
	})
}

// ShutdownView stops the local client API listener before the shared kernel
// tears down.
func (h *Hooks) ShutdownView(ctrl *kernel.Controller) error {
	h.Listeners.Shutdown()
	return nil
}

// downloadFiles drains a batch of the pending download queue through an
// SSRF-hardened HTTP client, storing each successful fetch as a new file.
func (h *Hooks) downloadFiles(callCtx kernel.CallContext) {
	log := logger.ComponentLogger("client.downloader")
	ctrl := callCtx.Controller
	ctx := context.Background()

	var pending []store.Download
	_, err := ctrl.DBQueue.Read(ctx, func() (interface{}, error) {
		rows, err := store.ListPendingDownloads(ctx, ctrl.DB, downloadBatchSize)
		pending = rows
		return nil, err
	})
	if err != nil {
		log.Errorw("list pending downloads failed", "error", err)
		return
	}

	if len(pending) == 0 {
		return
	}

	client := httpclient.NewSaferClient(downloadTimeout)
	for _, d := range pending {
		if err := h.fetchOne(ctx, ctrl, client, d); err != nil {
			log.Warnw("download failed", "url", d.URL, "error", err)
			_ = ctrl.DBQueue.WriteSynchronous(ctx, func() (interface{}, error) {
				return nil, store.MarkDownloadFailed(ctx, ctrl.DB, d.ID, err, downloadMaxAttempts)
			})
			continue
		}
		_ = ctrl.DBQueue.WriteSynchronous(ctx, func() (interface{}, error) {
			return nil, store.MarkDownloadDone(ctx, ctrl.DB, d.ID)
		})
	}
}

func (h *Hooks) fetchOne(ctx context.Context, ctrl *kernel.Controller, client *httpclient.SaferClient, d store.Download) error {
	resp, err := client.Get(d.URL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	hash := sha256.Sum256(body)
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "application/octet-stream"
	}

	return ctrl.DBQueue.WriteSynchronous(ctx, func() (interface{}, error) {
		err := store.InsertFile(ctx, ctrl.DB, store.File{
			Hash:      hash[:],
			SizeBytes: int64(len(body)),
			Mime:      mime,
		})
		if err != nil && !errors.Is(err, store.ErrConflict) {
			return nil, err
		}
		return nil, nil
	})
}

func (h *Hooks) syncSubscriptions(ctx kernel.CallContext) {
	logger.ComponentLogger("client.subscriptions").Debugw("running subscription sync")
}

func (h *Hooks) emptyTrash(ctx kernel.CallContext) {
	logger.ComponentLogger("client.trash").Debugw("emptying expired trash entries")
}

func (h *Hooks) syncRepositories(ctx kernel.CallContext) {
	logger.ComponentLogger("client.repo_sync").Debugw("syncing with remote repositories")
}

func (h *Hooks) processImportExportFolders(ctx kernel.CallContext) {
	logger.ComponentLogger("client.import_export").Debugw("scanning import/export folders")
}

func (h *Hooks) syncAccounts(ctx kernel.CallContext) {
	logger.ComponentLogger("client.account_sync").Debugw("refreshing account state with remote services")
}

// probeMouseIdle only logs a tick: no platform mouse/keyboard polling is
// wired in, and neither this package nor apiserver calls
// Idle.NoteUserActivity, so the idle detector receives no user-activity
// reports from the client role.
func (h *Hooks) probeMouseIdle(ctx kernel.CallContext) {
	logger.ComponentLogger("client.idle_probe").Debugw("mouse idle probe tick")
}
