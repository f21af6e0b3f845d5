package apiserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	itesting "github.com/Connor22/hydrus/internal/testing"
)

func TestIssueSessionThenResolveAccountRoundTrips(t *testing.T) {
	db := itesting.CreateTestDB(t)

	_, err := db.Exec(`INSERT INTO services (service_key, service_type, port) VALUES (?, 'client_api', 45869)`, []byte("svc1"))
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO accounts (id, account_key, service_key, account_type, permissions) VALUES (1, ?, ?, 'normal', 'import,tag')`, []byte("acct1"), []byte("svc1"))
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO access_keys (access_key, account_id) VALUES (?, 1)`, []byte{0xde, 0xad, 0xbe, 0xef})
	require.NoError(t, err)

	issueReq := httptest.NewRequest(http.MethodGet, "/session_key", nil)
	issueReq.Header.Set("Hydrus-Key", "deadbeef")

	sessionKey, expiresAt, err := IssueSession(issueReq, db)
	require.NoError(t, err)
	assert.NotEmpty(t, sessionKey)
	assert.True(t, expiresAt.After(time.Now()))

	resolveReq := httptest.NewRequest(http.MethodGet, "/account", nil)
	resolveReq.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sessionKey})

	account, err := ResolveAccount(resolveReq, db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), account.ID)
	assert.True(t, account.HasPermission("tag"))
	assert.False(t, account.HasPermission("admin"))
}

func TestIssueSessionFailsForUnknownAccessKey(t *testing.T) {
	db := itesting.CreateTestDB(t)

	req := httptest.NewRequest(http.MethodGet, "/session_key", nil)
	req.Header.Set("Hydrus-Key", "00112233")

	_, _, err := IssueSession(req, db)
	assert.Error(t, err)
}
