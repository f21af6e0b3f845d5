package apiserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	itesting "github.com/Connor22/hydrus/internal/testing"
	"github.com/Connor22/hydrus/kernel"
)

func TestSessionKeyHandler_ThroughPipelineSetsCookie(t *testing.T) {
	db := itesting.CreateTestDB(t)

	_, err := db.Exec(`INSERT INTO services (service_key, service_type, port) VALUES (?, 'client_api', 45869)`, []byte("svc1"))
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO accounts (id, account_key, service_key, account_type, permissions) VALUES (1, ?, ?, 'normal', 'import')`, []byte("acct1"), []byte("svc1"))
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO access_keys (access_key, account_id) VALUES (?, 1)`, []byte{0xca, 0xfe})

	require.NoError(t, err)

	handlers := kernel.NewHandlerRegistry()
	handlers.Register(NewSessionKeyHandler(db))

	pipeline := NewPipeline(db, handlers, 1, t.TempDir(), 0, 0)
	mux := http.NewServeMux()
	SetupRoutes(mux, pipeline, CORSConfig{})

	req := httptest.NewRequest(http.MethodGet, "/session_key", nil)
	req.Header.Set("Hydrus-Key", "cafe")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookieName, cookies[0].Name)
	assert.NotEmpty(t, cookies[0].Value)
}

func TestSessionKeyHandler_UnknownAccessKeyFails(t *testing.T) {
	db := itesting.CreateTestDB(t)

	handlers := kernel.NewHandlerRegistry()
	handlers.Register(NewSessionKeyHandler(db))

	pipeline := NewPipeline(db, handlers, 1, t.TempDir(), 0, 0)
	mux := http.NewServeMux()
	SetupRoutes(mux, pipeline, CORSConfig{})

	req := httptest.NewRequest(http.MethodGet, "/session_key", nil)
	req.Header.Set("Hydrus-Key", "deadbeef")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestBusyHandler_ReportsZeroWhenNotHeavilyLoaded(t *testing.T) {
	db := itesting.CreateTestDB(t)

	ctrl := &kernel.Controller{ShortTaskPool: kernel.NewWorkerPool("short_task", 200)}
	defer ctrl.ShortTaskPool.Shutdown()

	handlers := kernel.NewHandlerRegistry()
	handlers.Register(NewBusyHandler(ctrl))

	pipeline := NewPipeline(db, handlers, 1, t.TempDir(), 0, 0)
	mux := http.NewServeMux()
	SetupRoutes(mux, pipeline, CORSConfig{})

	req := httptest.NewRequest(http.MethodGet, "/busy", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Body.String())
}
