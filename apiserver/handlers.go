package apiserver

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/Connor22/hydrus/kernel"
	"github.com/Connor22/hydrus/store"
)

// payloadArgs recovers the RequestArgs Pipeline.dispatch packs into every
// handler call. Resources that don't go through Pipeline (tests dispatching
// directly) get a zero-value RequestArgs instead of a panic.
func payloadArgs(payload interface{}) *RequestArgs {
	m, ok := payload.(map[string]interface{})
	if !ok {
		return &RequestArgs{}
	}
	args, _ := m["args"].(*RequestArgs)
	if args == nil {
		return &RequestArgs{}
	}
	return args
}

// payloadAccount recovers the account sessionAccount resolved, if any.
func payloadAccount(payload interface{}) (store.Account, bool) {
	m, ok := payload.(map[string]interface{})
	if !ok {
		return store.Account{}, false
	}
	acct, ok := m["account"].(store.Account)
	return acct, ok
}

// sessionCookie builds the session_key cookie a successful /session_key or
// /access_key_verification call sets, expiring exactly when the session does.
func sessionCookie(sessionKey string, expiresAt time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionKey,
		Path:     "/",
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
	}
}

// NewAccessKeyVerificationHandler checks that the caller's Hydrus-Key header
// resolves to a functional account, without requiring a prior session.
func NewAccessKeyVerificationHandler(db *sql.DB) *kernel.HandlerFunc {
	return kernel.NewHandlerFunc("/access_key_verification", func(ctx context.Context, payload interface{}) (interface{}, error) {
		args := payloadArgs(payload)
		accessKey, err := resolveAccessKeyFromHeader(args.Header)
		if err != nil {
			return nil, err
		}
		account, err := store.LookupAccountByAccessKey(ctx, db, accessKey)
		if err != nil {
			return nil, WrapFail(KindMissingCredentials, err, "access key not recognized")
		}
		if !account.Functional(time.Now()) {
			return nil, Fail(KindInsufficientCredentials, "account is not functional")
		}
		return &ResponseContext{JSONBody: map[string]interface{}{
			"human_result_text": "Valid access key!",
			"permissions":       account.Permissions,
		}}, nil
	})
}

// NewSessionKeyHandler mints a session for the caller's access key and
// returns it both as the session_key cookie and in the JSON body.
func NewSessionKeyHandler(db *sql.DB) *kernel.HandlerFunc {
	return kernel.NewHandlerFunc("/session_key", func(ctx context.Context, payload interface{}) (interface{}, error) {
		args := payloadArgs(payload)
		sessionKey, expiresAt, err := IssueSessionFromHeader(ctx, db, args.Header)
		if err != nil {
			return nil, err
		}
		return &ResponseContext{
			JSONBody: map[string]string{"session_key": sessionKey},
			Cookies:  []*http.Cookie{sessionCookie(sessionKey, expiresAt)},
		}, nil
	})
}

// NewAccountHandler reports the calling account's type, permissions and
// quota usage, as resolved by the session/account pipeline stage.
func NewAccountHandler() *kernel.HandlerFunc {
	return kernel.NewHandlerFunc("/account", func(ctx context.Context, payload interface{}) (interface{}, error) {
		account, ok := payloadAccount(payload)
		if !ok {
			return nil, Fail(KindMissingCredentials, "no account resolved for this request")
		}
		return &ResponseContext{JSONBody: map[string]interface{}{
			"account_type": account.AccountType,
			"permissions":  account.Permissions,
			"max_bytes":    account.MaxBytes,
			"max_requests": account.MaxRequests,
			"banned":       account.Banned,
		}}, nil
	})
}

// NewDebugScheduledJobsHandler reports the pending jobs on both schedulers,
// grounded on the reference controller's DebugShowScheduledJobs.
func NewDebugScheduledJobsHandler(ctrl *kernel.Controller) *kernel.HandlerFunc {
	return kernel.NewHandlerFunc("/debug/scheduled_jobs", func(ctx context.Context, payload interface{}) (interface{}, error) {
		return &ResponseContext{RawBody: []byte(ctrl.DebugScheduledJobs()), MimeType: "text/plain"}, nil
	})
}

// NewDebugThreadsHandler reports every live pool worker and scheduler,
// grounded on the reference controller's GetThreadsSnapshot.
func NewDebugThreadsHandler(ctrl *kernel.Controller) *kernel.HandlerFunc {
	return kernel.NewHandlerFunc("/debug/threads", func(ctx context.Context, payload interface{}) (interface{}, error) {
		return &ResponseContext{JSONBody: ctrl.ThreadsSnapshot()}, nil
	})
}

// NewBusyHandler reports whether the server is presently too busy to
// service a repository-class request: "0" means go ahead, "1" means back off.
func NewBusyHandler(ctrl *kernel.Controller) *kernel.HandlerFunc {
	return kernel.NewHandlerFunc("/busy", func(ctx context.Context, payload interface{}) (interface{}, error) {
		body := []byte("0")
		if ctrl.ShortTaskPool.Status() == kernel.BusyHeavy {
			body = []byte("1")
		}
		return &ResponseContext{RawBody: body, MimeType: "text/plain"}, nil
	})
}
