package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robocup-autoref/autoref/internal/model"
)

func TestConfig_DSN(t *testing.T) {
	cfg := Config{Host: "db", Port: "5432", Username: "ref", Password: "pw", Database: "autoref"}
	assert.Equal(t, "host=db port=5432 user=ref password=pw dbname=autoref sslmode=disable", cfg.DSN())
}

func TestMigrateAndDump(t *testing.T) {
	db, err := GetSqliteDB("")
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	s := model.Session{StartedAt: time.Now().UTC(), Identifier: "test"}
	require.NoError(t, db.Create(&s).Error)
	require.NotZero(t, s.ID)

	path := filepath.Join(t.TempDir(), "journal.db")
	require.NoError(t, DumpMemoryDBToDisk(db, path))
	require.NoError(t, DumpMemoryDBToDisk(db, path), "existing dump is replaced")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	disk, err := GetSqliteDB(path)
	require.NoError(t, err)
	var got model.Session
	require.NoError(t, disk.First(&got, s.ID).Error)
	assert.Equal(t, "test", got.Identifier)
}

func TestDumpWithoutPath(t *testing.T) {
	db, err := GetSqliteDB("")
	require.NoError(t, err)
	assert.Error(t, DumpMemoryDBToDisk(db, ""))
}

func TestManager_FallsBackToSqlite(t *testing.T) {
	m := NewManager(zerolog.Nop())
	m.SqliteFilePath = filepath.Join(t.TempDir(), "fallback.db")

	require.NoError(t, m.Connect(Config{Host: "127.0.0.1", Port: "1", Username: "x", Password: "x", Database: "x"}))
	assert.True(t, m.IsValid)
	assert.True(t, m.ShouldSaveLocal)
	require.NoError(t, m.Setup())
	require.NoError(t, m.DumpMemoryToDisk())

	_, err := os.Stat(m.SqliteFilePath)
	assert.NoError(t, err)
}
