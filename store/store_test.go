package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	itesting "github.com/Connor22/hydrus/internal/testing"
	"github.com/Connor22/hydrus/store"
)

func TestMigrate_CreatesCoreTables(t *testing.T) {
	db := itesting.CreateTestDB(t)

	for _, table := range []string{"files", "tags", "mappings", "services", "accounts", "sessions"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, "table %s should exist after migration", table)
		assert.Equal(t, table, name)
	}
}

func TestFiles_InsertAndLookup(t *testing.T) {
	db := itesting.CreateTestDB(t)
	ctx := context.Background()
	hash := []byte("deadbeef")

	err := store.InsertFile(ctx, db, store.File{Hash: hash, SizeBytes: 1024, Mime: "image/png"})
	require.NoError(t, err)

	f, err := store.LookupFile(ctx, db, hash)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), f.SizeBytes)
	assert.Equal(t, "image/png", f.Mime)
}

func TestFiles_InsertDuplicateHashConflicts(t *testing.T) {
	db := itesting.CreateTestDB(t)
	ctx := context.Background()
	hash := []byte("dupehash")

	require.NoError(t, store.InsertFile(ctx, db, store.File{Hash: hash, SizeBytes: 1, Mime: "image/png"}))
	err := store.InsertFile(ctx, db, store.File{Hash: hash, SizeBytes: 2, Mime: "image/png"})
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestFiles_LookupMissingReturnsNotFound(t *testing.T) {
	db := itesting.CreateTestDB(t)
	_, err := store.LookupFile(context.Background(), db, []byte("nope"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTags_UpsertIsIdempotentAndMappingIsQueryable(t *testing.T) {
	db := itesting.CreateTestDB(t)
	ctx := context.Background()
	hash := []byte("tagged-file")

	require.NoError(t, store.InsertFile(ctx, db, store.File{Hash: hash, SizeBytes: 1, Mime: "image/png"}))

	id1, err := store.UpsertTag(ctx, db, "character", "alice")
	require.NoError(t, err)
	id2, err := store.UpsertTag(ctx, db, "character", "alice")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	require.NoError(t, store.AddMapping(ctx, db, hash, id1))
	tags, err := store.TagsForFile(ctx, db, hash)
	require.NoError(t, err)
	assert.Equal(t, []string{"character:alice"}, tags)
}

func TestSessions_LookupExpiredReturnsNotFound(t *testing.T) {
	db := itesting.CreateTestDB(t)
	ctx := context.Background()

	_, err := db.Exec(`INSERT INTO services (service_key, service_type, port) VALUES (?, ?, ?)`, []byte("svc"), "client_api", 45869)
	require.NoError(t, err)
	res, err := db.Exec(`INSERT INTO accounts (account_key, service_key, account_type) VALUES (?, ?, ?)`, []byte("acct"), []byte("svc"), "regular")
	require.NoError(t, err)
	accountID, err := res.LastInsertId()
	require.NoError(t, err)

	require.NoError(t, store.CreateSession(ctx, db, []byte("sess"), accountID, []byte("svc"), -time.Minute))

	_, err = store.LookupSession(ctx, db, []byte("sess"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSessions_SweepExpiredRemovesOnlyPastSessions(t *testing.T) {
	db := itesting.CreateTestDB(t)
	ctx := context.Background()

	_, err := db.Exec(`INSERT INTO services (service_key, service_type, port) VALUES (?, ?, ?)`, []byte("svc"), "client_api", 45869)
	require.NoError(t, err)
	res, err := db.Exec(`INSERT INTO accounts (account_key, service_key, account_type) VALUES (?, ?, ?)`, []byte("acct"), []byte("svc"), "regular")
	require.NoError(t, err)
	accountID, err := res.LastInsertId()
	require.NoError(t, err)

	require.NoError(t, store.CreateSession(ctx, db, []byte("expired"), accountID, []byte("svc"), -time.Minute))
	require.NoError(t, store.CreateSession(ctx, db, []byte("live"), accountID, []byte("svc"), time.Hour))

	n, err := store.SweepExpiredSessions(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.LookupSession(ctx, db, []byte("live"))
	assert.NoError(t, err)
}

func TestAccount_Functional(t *testing.T) {
	now := time.Now()
	a := store.Account{}
	assert.True(t, a.Functional(now))

	a.Banned = true
	assert.False(t, a.Functional(now))
}
