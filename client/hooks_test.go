package client

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Connor22/hydrus/internal/httpclient"
	"github.com/Connor22/hydrus/internal/util"
	"github.com/Connor22/hydrus/kernel"
	"github.com/Connor22/hydrus/store"
)

type memDBFactory struct{}

func (memDBFactory) Open(dbDir string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}
	if err := store.Migrate(db, nil); err != nil {
		return nil, err
	}
	return db, nil
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestHooks_InitViewBindsClientAPIAndRegistersJobs(t *testing.T) {
	port := freePort(t)
	hooks := NewHooks(port)

	ctrl := kernel.NewController(kernel.ControllerConfig{
		DBDir:                 t.TempDir(),
		FastSchedulerInterval: 50 * time.Millisecond,
		SlowSchedulerInterval: 50 * time.Millisecond,
		ShortTaskPoolCap:      10,
	}, hooks)

	require.NoError(t, ctrl.Boot(memDBFactory{}))
	defer ctrl.Shutdown()

	assert.True(t, hooks.Listeners.Bound("client_api"))
	assert.True(t, ctrl.SlowScheduler.Len() > 0)
	assert.True(t, ctrl.FastScheduler.Len() > 0)

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/busy", port))
	require.NoError(t, err)
	resp.Body.Close()
}

func TestHooks_FetchOneStoresDownloadedFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("fake-file-bytes"))
	}))
	defer srv.Close()

	db, err := memDBFactory{}.Open(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	ctrl := &kernel.Controller{DB: db, DBQueue: kernel.NewDBQueue(1)}
	defer ctrl.DBQueue.Shutdown()

	client := httpclient.NewSaferClientWithOptions(5*time.Second, httpclient.SaferClientOptions{BlockPrivateIP: util.Ptr(false)})

	hooks := NewHooks(0)
	err = hooks.fetchOne(context.Background(), ctrl, client, store.Download{URL: srv.URL})
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM files`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestHooks_ShutdownViewStopsListener(t *testing.T) {
	port := freePort(t)
	hooks := NewHooks(port)

	ctrl := kernel.NewController(kernel.ControllerConfig{
		DBDir:                 t.TempDir(),
		FastSchedulerInterval: 50 * time.Millisecond,
		SlowSchedulerInterval: 50 * time.Millisecond,
		ShortTaskPoolCap:      10,
	}, hooks)
	require.NoError(t, ctrl.Boot(memDBFactory{}))

	require.NoError(t, ctrl.Shutdown())
	assert.False(t, hooks.Listeners.Bound("client_api"))
}
