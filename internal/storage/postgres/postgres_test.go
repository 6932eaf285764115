package postgres

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robocup-autoref/autoref/internal/database"
	"github.com/robocup-autoref/autoref/internal/model"
	"github.com/robocup-autoref/autoref/pkg/core"
)

func unreachable(fallback string) Config {
	return Config{
		Config:       database.Config{Host: "127.0.0.1", Port: "1", Username: "ref", Password: "ref", Database: "autoref"},
		FallbackPath: fallback,
	}
}

func TestBackend_FallsBackToSqlite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fallback.db")
	b := New(unreachable(path), model.Session{Identifier: "fallback"}, zerolog.Nop())
	require.NoError(t, b.Init())
	assert.True(t, b.IsFallback())

	require.NoError(t, b.RecordDecision(&core.DecisionEntry{
		Kind: core.DecisionReply,
		Time: time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC),
		Name: "STOP",
	}))
	require.NoError(t, b.Flush())
	got, err := b.Decisions()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, core.DecisionReply, got[0].Kind)

	require.NoError(t, b.Close())
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestBackend_CloseBeforeInit(t *testing.T) {
	b := New(unreachable(""), model.Session{}, zerolog.Nop())
	assert.NoError(t, b.Close())
}
