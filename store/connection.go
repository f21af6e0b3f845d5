// Package store owns the SQLite storage engine: opening the database file
// with the pragmas the archive needs, and applying embedded schema
// migrations in order.
package store

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/Connor22/hydrus/errors"
	"github.com/Connor22/hydrus/logger"
)

const (
	// JournalMode is forced to WAL so readers never block the single writer
	// goroutine the kernel's DBQueue funnels every write through.
	JournalMode = "WAL"
	// BusyTimeoutMS bounds how long a connection waits on a lock before
	// giving up, rather than failing immediately under contention.
	BusyTimeoutMS = 5000
)

// Open creates path's parent directory if needed, opens the SQLite file at
// path, applies the archive's connection pragmas, and returns the handle
// unmigrated. Callers that also need migrations should call OpenWithMigrations.
func Open(path string, log *zap.SugaredLogger) (*sql.DB, error) {
	if log == nil {
		log = logger.WithSubsystem(logger.SubsystemDBQueue)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "create database directory %s", dir)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite database %s", path)
	}

	// the kernel's DBQueue serializes every access onto one goroutine, so a
	// single connection is correct and avoids SQLite's multi-connection
	// write-lock contention entirely.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = " + JournalMode,
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "apply pragma %q", p)
		}
	}

	log.Infow("database opened", "path", path)
	return db, nil
}

// OpenWithMigrations opens path and applies every pending migration before
// returning.
func OpenWithMigrations(path string, log *zap.SugaredLogger) (*sql.DB, error) {
	db, err := Open(path, log)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db, log); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "apply migrations")
	}
	return db, nil
}
