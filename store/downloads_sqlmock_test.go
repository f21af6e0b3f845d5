package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MarkDownloadFailed does a read-then-write; sqlmock lets us assert the exact
// query shape and argument sequence of both statements without a real file.
func TestMarkDownloadFailed_RetriesBelowMaxAttempts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT attempts FROM downloads WHERE id = \?`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"attempts"}).AddRow(1))

	mock.ExpectExec(`UPDATE downloads SET attempts = \?, status = \?, last_error = \? WHERE id = \?`).
		WithArgs(2, "pending", "fetch timed out", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = MarkDownloadFailed(context.Background(), db, 7, errors.New("fetch timed out"), 5)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkDownloadFailed_RetiresAtMaxAttempts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT attempts FROM downloads WHERE id = \?`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"attempts"}).AddRow(4))

	mock.ExpectExec(`UPDATE downloads SET attempts = \?, status = \?, last_error = \? WHERE id = \?`).
		WithArgs(5, "failed", "404 not found", int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = MarkDownloadFailed(context.Background(), db, 9, errors.New("404 not found"), 5)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
