package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Connor22/hydrus/errors"
)

// Session resolves a session key to the account and service it was issued for.
type Session struct {
	SessionKey []byte
	AccountID  int64
	ServiceKey []byte
	ExpiresAt  time.Time
}

// Account is a caller's capability and quota record on one service.
type Account struct {
	ID          int64
	AccountKey  []byte
	ServiceKey  []byte
	AccountType string
	Permissions []string
	MaxBytes    int64
	MaxRequests int64
	ExpiresAt   sql.NullTime
	Banned      bool
}

// Functional reports whether the account can currently be used: it exists,
// is not banned, and (if it has an expiry) has not passed it.
func (a Account) Functional(now time.Time) bool {
	if a.Banned {
		return false
	}
	if a.ExpiresAt.Valid && now.After(a.ExpiresAt.Time) {
		return false
	}
	return true
}

// CreateSession inserts a new session row, expiring at now+ttl.
func CreateSession(ctx context.Context, db *sql.DB, sessionKey []byte, accountID int64, serviceKey []byte, ttl time.Duration) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO sessions (session_key, account_id, service_key, expires_at) VALUES (?, ?, ?, ?)`,
		sessionKey, accountID, serviceKey, time.Now().Add(ttl),
	)
	if err != nil {
		return errors.Wrap(err, "insert session")
	}
	return nil
}

// LookupSession resolves a session key. ErrNotFound is returned both when the
// key is unknown and when it has expired, since a caller should treat both
// the same way: the session is no longer valid.
func LookupSession(ctx context.Context, db *sql.DB, sessionKey []byte) (Session, error) {
	var s Session
	row := db.QueryRowContext(ctx,
		`SELECT session_key, account_id, service_key, expires_at FROM sessions WHERE session_key = ?`,
		sessionKey,
	)
	if err := row.Scan(&s.SessionKey, &s.AccountID, &s.ServiceKey, &s.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, errors.Wrap(err, "scan session")
	}
	if time.Now().After(s.ExpiresAt) {
		return Session{}, ErrNotFound
	}
	return s, nil
}

// DropSession deletes a session key, e.g. on explicit logout or when the
// owning account is banned mid-session.
func DropSession(ctx context.Context, db *sql.DB, sessionKey []byte) error {
	_, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE session_key = ?`, sessionKey)
	if err != nil {
		return errors.Wrap(err, "delete session")
	}
	return nil
}

// SweepExpiredSessions removes every session past its expiry, returning how
// many rows were deleted. Intended to run from a maintenance job.
func SweepExpiredSessions(ctx context.Context, db *sql.DB) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, time.Now())
	if err != nil {
		return 0, errors.Wrap(err, "sweep expired sessions")
	}
	return res.RowsAffected()
}

// LookupAccountByAccessKey resolves an access key to the account it belongs to.
func LookupAccountByAccessKey(ctx context.Context, db *sql.DB, accessKey []byte) (Account, error) {
	var a Account
	var permissions string
	row := db.QueryRowContext(ctx, `
		SELECT accounts.id, accounts.account_key, accounts.service_key, accounts.account_type,
		       accounts.permissions, accounts.max_bytes, accounts.max_requests,
		       accounts.expires_at, accounts.banned
		FROM accounts
		JOIN access_keys ON access_keys.account_id = accounts.id
		WHERE access_keys.access_key = ?`, accessKey)
	if err := row.Scan(&a.ID, &a.AccountKey, &a.ServiceKey, &a.AccountType,
		&permissions, &a.MaxBytes, &a.MaxRequests, &a.ExpiresAt, &a.Banned); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, errors.Wrap(err, "scan account by access key")
	}
	a.Permissions = splitPermissions(permissions)
	return a, nil
}

// LookupAccountByID fetches an account by its primary key.
func LookupAccountByID(ctx context.Context, db *sql.DB, id int64) (Account, error) {
	var a Account
	var permissions string
	row := db.QueryRowContext(ctx, `
		SELECT id, account_key, service_key, account_type, permissions,
		       max_bytes, max_requests, expires_at, banned
		FROM accounts WHERE id = ?`, id)
	if err := row.Scan(&a.ID, &a.AccountKey, &a.ServiceKey, &a.AccountType,
		&permissions, &a.MaxBytes, &a.MaxRequests, &a.ExpiresAt, &a.Banned); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, errors.Wrap(err, "scan account by id")
	}
	a.Permissions = splitPermissions(permissions)
	return a, nil
}

// HasPermission reports whether the account's permission set includes capability.
func (a Account) HasPermission(capability string) bool {
	for _, p := range a.Permissions {
		if p == capability {
			return true
		}
	}
	return false
}

func splitPermissions(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

// NewSessionKey mints a fresh random session key. Session keys are UUIDs
// rendered as their raw 16 bytes, matching the byte-slice shape every
// session/account/service key already takes in this schema.
func NewSessionKey() []byte {
	id := uuid.New()
	return id[:]
}
