package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/Connor22/hydrus/errors"
)

// Download is one queued fetch for the client's import/subscription
// downloader.
type Download struct {
	ID        int64
	URL       string
	SourceTag sql.NullString
	Status    string
	Attempts  int
}

// EnqueueDownload queues url for fetching, tagged with the subscription or
// folder that discovered it.
func EnqueueDownload(ctx context.Context, db *sql.DB, url, sourceTag string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO downloads (url, source_tag) VALUES (?, ?)`, url, sourceTag)
	if err != nil {
		return errors.Wrap(err, "enqueue download")
	}
	return nil
}

// ListPendingDownloads returns up to limit downloads still awaiting a fetch
// attempt, oldest first.
func ListPendingDownloads(ctx context.Context, db *sql.DB, limit int) ([]Download, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, url, source_tag, status, attempts FROM downloads
		WHERE status = 'pending' ORDER BY created_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query pending downloads")
	}
	defer rows.Close()

	var out []Download
	for rows.Next() {
		var d Download
		if err := rows.Scan(&d.ID, &d.URL, &d.SourceTag, &d.Status, &d.Attempts); err != nil {
			return nil, errors.Wrap(err, "scan download")
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// MarkDownloadDone records a successful fetch.
func MarkDownloadDone(ctx context.Context, db *sql.DB, id int64) error {
	_, err := db.ExecContext(ctx, `
		UPDATE downloads SET status = 'done', completed_at = ? WHERE id = ?`, time.Now(), id)
	return errors.Wrap(err, "mark download done")
}

// MarkDownloadFailed records a failed fetch attempt. After maxAttempts the
// download is retired with status "failed" instead of retried forever.
func MarkDownloadFailed(ctx context.Context, db *sql.DB, id int64, fetchErr error, maxAttempts int) error {
	row := db.QueryRowContext(ctx, `SELECT attempts FROM downloads WHERE id = ?`, id)
	var attempts int
	if err := row.Scan(&attempts); err != nil {
		return errors.Wrap(err, "read download attempts")
	}
	attempts++

	status := "pending"
	if attempts >= maxAttempts {
		status = "failed"
	}

	_, err := db.ExecContext(ctx, `
		UPDATE downloads SET attempts = ?, status = ?, last_error = ? WHERE id = ?`,
		attempts, status, fetchErr.Error(), id)
	return errors.Wrap(err, "update failed download")
}
