package serverrole

import (
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"

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

func TestHooks_InitViewBindsEachConfiguredService(t *testing.T) {
	portAdmin := freePort(t)
	portFiles := freePort(t)

	hooks := NewHooks([]ServiceConfig{
		{ServiceKey: "admin", Port: portAdmin},
		{ServiceKey: "file_repository", Port: portFiles},
	}, 1)

	ctrl := kernel.NewController(kernel.ControllerConfig{
		DBDir:                 t.TempDir(),
		FastSchedulerInterval: 50 * time.Millisecond,
		SlowSchedulerInterval: 50 * time.Millisecond,
		ShortTaskPoolCap:      10,
	}, hooks)

	require.NoError(t, ctrl.Boot(memDBFactory{}))
	defer ctrl.Shutdown()

	assert.True(t, hooks.Listeners.Bound("admin"))
	assert.True(t, hooks.Listeners.Bound("file_repository"))
	assert.True(t, ctrl.SlowScheduler.Len() > 0)
	assert.True(t, ctrl.FastScheduler.Len() > 0)

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/busy", portAdmin))
	require.NoError(t, err)
	resp.Body.Close()
}

func TestHooks_ShutdownViewStopsAllListeners(t *testing.T) {
	port := freePort(t)
	hooks := NewHooks([]ServiceConfig{{ServiceKey: "admin", Port: port}}, 1)

	ctrl := kernel.NewController(kernel.ControllerConfig{
		DBDir:                 t.TempDir(),
		FastSchedulerInterval: 50 * time.Millisecond,
		SlowSchedulerInterval: 50 * time.Millisecond,
		ShortTaskPoolCap:      10,
	}, hooks)
	require.NoError(t, ctrl.Boot(memDBFactory{}))

	require.NoError(t, ctrl.Shutdown())
	assert.False(t, hooks.Listeners.Bound("admin"))
}

func TestHooks_DeleteOrphansRemovesThumbnailsOfSoftDeletedFiles(t *testing.T) {
	db, err := memDBFactory{}.Open(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`INSERT INTO files (hash, size_bytes, mime, deleted_at) VALUES (?, 1, 'image/png', CURRENT_TIMESTAMP)`, "deadbeef")
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO thumbnails (hash, data) VALUES (?, ?)`, "deadbeef", []byte{1, 2, 3})
	require.NoError(t, err)

	ctrl := &kernel.Controller{DB: db, DBQueue: kernel.NewDBQueue(1)}
	defer ctrl.DBQueue.Shutdown()

	hooks := NewHooks(nil, 1)
	hooks.deleteOrphans(ctrl)(kernel.CallContext{Controller: ctrl})

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM thumbnails`).Scan(&count))
	assert.Equal(t, 0, count)
}
