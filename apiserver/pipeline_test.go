package apiserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	itesting "github.com/Connor22/hydrus/internal/testing"
	"github.com/Connor22/hydrus/kernel"
)

func newTestPipeline(t *testing.T) *Pipeline {
	db := itesting.CreateTestDB(t)
	handlers := kernel.NewHandlerRegistry()
	return NewPipeline(db, handlers, 1, t.TempDir(), 0, 0)
}

func TestPipeline_UnknownMethodFailsRestrictions(t *testing.T) {
	p := newTestPipeline(t)
	resource := Resource{Path: "/busy", Methods: []string{http.MethodGet}, Class: ClassBase}

	req := httptest.NewRequest(http.MethodPost, "/busy", nil)
	rec := httptest.NewRecorder()
	p.ServeResource(rec, req, resource)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPipeline_NetworkVersionMismatchFails(t *testing.T) {
	p := newTestPipeline(t)
	resource := Resource{Path: "/account", Methods: []string{http.MethodGet}, Class: ClassRestricted}

	req := httptest.NewRequest(http.MethodGet, "/account", nil)
	req.Header.Set("User-Agent", "hydrus/999")
	rec := httptest.NewRecorder()
	p.ServeResource(rec, req, resource)

	assert.Equal(t, 426, rec.Code)
}

func TestPipeline_RestrictedEndpointWithoutSessionFails(t *testing.T) {
	p := newTestPipeline(t)
	resource := Resource{Path: "/account", Methods: []string{http.MethodGet}, Class: ClassRestricted}

	req := httptest.NewRequest(http.MethodGet, "/account", nil)
	rec := httptest.NewRecorder()
	p.ServeResource(rec, req, resource)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPipeline_BaseEndpointDispatchesAndRenders(t *testing.T) {
	p := newTestPipeline(t)
	p.Handlers.Register(kernel.NewHandlerFunc("/busy", func(ctx context.Context, payload interface{}) (interface{}, error) {
		return &ResponseContext{Status: http.StatusOK, JSONBody: map[string]bool{"busy": false}}, nil
	}))
	resource := Resource{Path: "/busy", Methods: []string{http.MethodGet}, Class: ClassBase}

	req := httptest.NewRequest(http.MethodGet, "/busy", nil)
	rec := httptest.NewRecorder()
	p.ServeResource(rec, req, resource)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"busy":false}`, rec.Body.String())
}

func TestPipeline_NoHandlerRegisteredIs404(t *testing.T) {
	p := newTestPipeline(t)
	resource := Resource{Path: "/busy", Methods: []string{http.MethodGet}, Class: ClassBase}

	req := httptest.NewRequest(http.MethodGet, "/busy", nil)
	rec := httptest.NewRecorder()
	p.ServeResource(rec, req, resource)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResources_ByPath(t *testing.T) {
	r, ok := ByPath("/file")
	require.True(t, ok)
	assert.Equal(t, ClassFileRepository, r.Class)

	_, ok = ByPath("/nonexistent")
	assert.False(t, ok)
}

func TestResourceClass_RequiresSessionAndAdmin(t *testing.T) {
	assert.False(t, ClassBase.RequiresSession())
	assert.True(t, ClassRestricted.RequiresSession())
	assert.False(t, ClassRestricted.RequiresAdmin())
	assert.True(t, ClassAdmin.RequiresAdmin())
}
