package apiserver

import (
	"context"
	"database/sql"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/Connor22/hydrus/store"
)

// SessionCookieName is the cookie key carrying a resolved session key.
const SessionCookieName = "session_key"

// ResolveAccount extracts the session_key cookie from r, resolves it to an
// account, and checks that the account is functional. Returns a
// KindMissingCredentials failure if the cookie is absent, KindSessionInvalid
// if the session key doesn't resolve or has expired, and
// KindInsufficientCredentials if the account is not functional.
func ResolveAccount(r *http.Request, db *sql.DB) (store.Account, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return store.Account{}, Fail(KindMissingCredentials, "no session_key cookie")
	}

	rawKey, err := hex.DecodeString(cookie.Value)
	if err != nil {
		return store.Account{}, WrapFail(KindSessionInvalid, err, "malformed session_key cookie")
	}

	sess, err := store.LookupSession(r.Context(), db, rawKey)
	if err != nil {
		return store.Account{}, WrapFail(KindSessionInvalid, err, "session lookup failed")
	}

	account, err := store.LookupAccountByID(r.Context(), db, sess.AccountID)
	if err != nil {
		return store.Account{}, WrapFail(KindSessionInvalid, err, "account lookup failed")
	}
	if !account.Functional(time.Now()) {
		return store.Account{}, Fail(KindInsufficientCredentials, "account is not functional")
	}
	return account, nil
}

// RequirePermission fails the request unless account has capability.
func RequirePermission(account store.Account, capability string) error {
	if !account.HasPermission(capability) {
		return Failf(KindInsufficientCredentials, "account lacks %s permission", capability)
	}
	return nil
}

// ResolveAccessKey extracts an access key from the Hydrus-Key header, used
// by /access_key_verification and /session_key.
func ResolveAccessKey(r *http.Request) ([]byte, error) {
	return resolveAccessKeyFromHeader(r.Header)
}

func resolveAccessKeyFromHeader(h http.Header) ([]byte, error) {
	hexKey := h.Get("Hydrus-Key")
	if hexKey == "" {
		return nil, Fail(KindMissingCredentials, "missing Hydrus-Key header")
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, WrapFail(KindBadRequest, err, "malformed Hydrus-Key header")
	}
	return key, nil
}

// defaultSessionTTL bounds how long an issued session key stays valid before
// the caller must re-present its access key.
const defaultSessionTTL = 30 * time.Minute

// IssueSession resolves the caller's access key, mints a fresh session key
// for the matched account, and persists it. The returned session key is
// hex-encoded, matching the form ResolveAccount expects on lookup.
func IssueSession(r *http.Request, db *sql.DB) (sessionKey string, expiresAt time.Time, err error) {
	accessKey, err := ResolveAccessKey(r)
	if err != nil {
		return "", time.Time{}, err
	}
	return issueSessionForAccessKey(r.Context(), db, accessKey)
}

// IssueSessionFromHeader is IssueSession for callers that only have the
// request's headers (e.g. a handler dispatched through RequestArgs rather
// than holding the *http.Request directly).
func IssueSessionFromHeader(ctx context.Context, db *sql.DB, header http.Header) (sessionKey string, expiresAt time.Time, err error) {
	accessKey, err := resolveAccessKeyFromHeader(header)
	if err != nil {
		return "", time.Time{}, err
	}
	return issueSessionForAccessKey(ctx, db, accessKey)
}

func issueSessionForAccessKey(ctx context.Context, db *sql.DB, accessKey []byte) (sessionKey string, expiresAt time.Time, err error) {
	account, err := store.LookupAccountByAccessKey(ctx, db, accessKey)
	if err != nil {
		return "", time.Time{}, WrapFail(KindMissingCredentials, err, "access key not recognized")
	}
	if !account.Functional(time.Now()) {
		return "", time.Time{}, Fail(KindInsufficientCredentials, "account is not functional")
	}

	rawKey := store.NewSessionKey()
	expiresAt = time.Now().Add(defaultSessionTTL)
	if err := store.CreateSession(ctx, db, rawKey, account.ID, account.ServiceKey, defaultSessionTTL); err != nil {
		return "", time.Time{}, WrapFail(KindBadRequest, err, "failed to create session")
	}

	return hex.EncodeToString(rawKey), expiresAt, nil
}

// SetSessionCookie writes a session_key cookie with max-age set so it
// expires exactly when the session does.
func SetSessionCookie(w http.ResponseWriter, sessionKey string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionKey,
		Path:     "/",
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
	})
}
