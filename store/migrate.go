package store

import (
	"database/sql"
	"embed"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Connor22/hydrus/errors"
	"github.com/Connor22/hydrus/logger"
)

//go:embed sqlite/migrations/*.sql
var migrationsFS embed.FS

// Migrate applies every migration under sqlite/migrations that schema_migrations
// does not yet record, in filename order (files are named with a numeric
// prefix, e.g. 001_init.sql). A missing schema_migrations table is only
// tolerated for the very first migration, which creates it.
func Migrate(db *sql.DB, log *zap.SugaredLogger) error {
	if log == nil {
		log = logger.WithSubsystem(logger.SubsystemDBQueue)
	}

	entries, err := migrationsFS.ReadDir("sqlite/migrations")
	if err != nil {
		return errors.Wrap(err, "read embedded migrations directory")
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	applied, err := appliedVersions(db)
	if err != nil {
		return errors.Wrap(err, "read applied migration versions")
	}

	for _, name := range names {
		version := versionOf(name)
		if applied[version] {
			continue
		}

		sqlBytes, err := migrationsFS.ReadFile("sqlite/migrations/" + name)
		if err != nil {
			return errors.Wrapf(err, "read migration %s", name)
		}

		tx, err := db.Begin()
		if err != nil {
			return errors.Wrapf(err, "begin transaction for migration %s", name)
		}
		if _, err := tx.Exec(string(sqlBytes)); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "apply migration %s", name)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "record migration %s", name)
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrapf(err, "commit migration %s", name)
		}
		log.Infow("migration applied", "migration", name, "version", version)
	}
	return nil
}

func versionOf(filename string) string {
	idx := strings.IndexByte(filename, '_')
	if idx < 0 {
		return filename
	}
	return filename[:idx]
}

func appliedVersions(db *sql.DB) (map[string]bool, error) {
	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		// schema_migrations doesn't exist yet: only the first migration
		// (which creates it) is allowed to proceed from a clean slate.
		if strings.Contains(err.Error(), "no such table") {
			return map[string]bool{}, nil
		}
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}
