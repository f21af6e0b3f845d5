package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/Connor22/hydrus/errors"
)

// File is a single archived file's metadata, keyed by content hash.
type File struct {
	Hash       []byte
	SizeBytes  int64
	Mime       string
	Width      sql.NullInt64
	Height     sql.NullInt64
	DurationMS sql.NullInt64
	NumFrames  sql.NullInt64
	ImportedAt time.Time
	DeletedAt  sql.NullTime
}

// InsertFile records a newly imported file. ErrConflict is returned if the
// hash already exists.
func InsertFile(ctx context.Context, db *sql.DB, f File) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO files (hash, size_bytes, mime, width, height, duration_ms, num_frames)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.Hash, f.SizeBytes, f.Mime, f.Width, f.Height, f.DurationMS, f.NumFrames,
	)
	if err != nil {
		if isUniqueConstraintErr(err) {
			return ErrConflict
		}
		return errors.Wrap(err, "insert file")
	}
	return nil
}

// LookupFile fetches a file's metadata by content hash.
func LookupFile(ctx context.Context, db *sql.DB, hash []byte) (File, error) {
	var f File
	row := db.QueryRowContext(ctx, `
		SELECT hash, size_bytes, mime, width, height, duration_ms, num_frames, imported_at, deleted_at
		FROM files WHERE hash = ?`, hash)
	if err := row.Scan(&f.Hash, &f.SizeBytes, &f.Mime, &f.Width, &f.Height, &f.DurationMS, &f.NumFrames, &f.ImportedAt, &f.DeletedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return File{}, ErrNotFound
		}
		return File{}, errors.Wrap(err, "scan file")
	}
	return f, nil
}

// SoftDeleteFile marks hash as deleted without removing its row, so tag
// mappings and petition history stay intact.
func SoftDeleteFile(ctx context.Context, db *sql.DB, hash []byte) error {
	res, err := db.ExecContext(ctx, `UPDATE files SET deleted_at = ? WHERE hash = ? AND deleted_at IS NULL`, time.Now(), hash)
	if err != nil {
		return errors.Wrap(err, "soft delete file")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "read rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertThumbnail stores the rendered thumbnail bytes for hash, replacing any
// existing thumbnail for that file.
func InsertThumbnail(ctx context.Context, db *sql.DB, hash, data []byte) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO thumbnails (hash, data) VALUES (?, ?)
		ON CONFLICT(hash) DO UPDATE SET data = excluded.data`, hash, data)
	if err != nil {
		return errors.Wrap(err, "insert thumbnail")
	}
	return nil
}

// LookupThumbnail fetches the thumbnail bytes for hash.
func LookupThumbnail(ctx context.Context, db *sql.DB, hash []byte) ([]byte, error) {
	var data []byte
	row := db.QueryRowContext(ctx, `SELECT data FROM thumbnails WHERE hash = ?`, hash)
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "scan thumbnail")
	}
	return data, nil
}

// UpsertTag resolves (namespace, subtag) to its tag id, inserting it if new.
func UpsertTag(ctx context.Context, db *sql.DB, namespace, subtag string) (int64, error) {
	_, err := db.ExecContext(ctx, `
		INSERT INTO tags (namespace, subtag) VALUES (?, ?)
		ON CONFLICT(namespace, subtag) DO NOTHING`, namespace, subtag)
	if err != nil {
		return 0, errors.Wrap(err, "upsert tag")
	}
	var id int64
	row := db.QueryRowContext(ctx, `SELECT id FROM tags WHERE namespace = ? AND subtag = ?`, namespace, subtag)
	if err := row.Scan(&id); err != nil {
		return 0, errors.Wrap(err, "resolve tag id")
	}
	return id, nil
}

// AddMapping associates fileHash with tagID.
func AddMapping(ctx context.Context, db *sql.DB, fileHash []byte, tagID int64) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO mappings (file_hash, tag_id) VALUES (?, ?)
		ON CONFLICT(file_hash, tag_id) DO NOTHING`, fileHash, tagID)
	if err != nil {
		return errors.Wrap(err, "insert mapping")
	}
	return nil
}

// TagsForFile lists every (namespace, subtag) pair mapped to fileHash.
func TagsForFile(ctx context.Context, db *sql.DB, fileHash []byte) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT tags.namespace, tags.subtag FROM mappings
		JOIN tags ON tags.id = mappings.tag_id
		WHERE mappings.file_hash = ?
		ORDER BY tags.namespace, tags.subtag`, fileHash)
	if err != nil {
		return nil, errors.Wrap(err, "query tags for file")
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var namespace, subtag string
		if err := rows.Scan(&namespace, &subtag); err != nil {
			return nil, errors.Wrap(err, "scan tag")
		}
		if namespace != "" {
			tags = append(tags, namespace+":"+subtag)
		} else {
			tags = append(tags, subtag)
		}
	}
	return tags, rows.Err()
}

func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed: UNIQUE")
}
