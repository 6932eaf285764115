package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robocup-autoref/autoref/internal/field"
	"github.com/robocup-autoref/autoref/internal/phase"
	"github.com/robocup-autoref/autoref/internal/source"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"mode": "passive",
		"storage": { "postgres": { "host": "10.0.0.1", "port": "5433" } }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "passive", viper.GetString("mode"))
	assert.Equal(t, "10.0.0.1", viper.GetString("storage.postgres.host"))
	assert.Equal(t, "5433", viper.GetString("storage.postgres.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./autoreflogs", viper.GetString("logsDir"))
	assert.Equal(t, "active", viper.GetString("mode"))
	assert.Equal(t, FieldDivB, viper.GetString("field.preset"))
	assert.Equal(t, "tracker", viper.GetString("source.type"))
	assert.Equal(t, "sqlite", viper.GetString("storage.type"))
	assert.Equal(t, "1m", viper.GetString("storage.sqlite.dumpInterval"))
	assert.Equal(t, "autoref", viper.GetString("storage.postgres.database"))
	assert.Equal(t, false, viper.GetBool("influx.enabled"))
	assert.Equal(t, "autoref", viper.GetString("influx.org"))
	assert.Equal(t, false, viper.GetBool("otel.enabled"))
	assert.Equal(t, "autoref", viper.GetString("otel.serviceName"))
	assert.Equal(t, true, viper.GetBool("otel.insecure"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
	assert.Equal(t, "info", GetString("logLevel"), "defaults survive a missing file")
}

func TestGetString(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	assert.Equal(t, "testValue", GetString("testKey"))
}

func TestGetBool(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testBool", true)
	assert.Equal(t, true, GetBool("testBool"))
}

func TestGet_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg, err := Get()
	require.NoError(t, err)

	assert.Equal(t, "active", cfg.Mode)
	assert.Equal(t, phase.DefaultConfig(), cfg.Phases)
	assert.Equal(t, source.DefaultTrackerConfig(), cfg.Source.Tracker)
	assert.Equal(t, 1.0, cfg.Source.Replay.Speed)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, time.Minute, cfg.Storage.Sqlite.DumpInterval)
	assert.Equal(t, "localhost", cfg.Storage.Postgres.Host)
	assert.Equal(t, 256, cfg.Journal.Buffer)
	assert.Equal(t, 5*time.Second, cfg.OTel.BatchTimeout)
	assert.Equal(t, time.Second, cfg.Monitor.Interval)
	assert.Equal(t, 10007, cfg.Protocol.Port)
	assert.Equal(t, field.DivisionB(), cfg.Geometry())
}

func TestGet_OverridesKeepOtherDefaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"simulation": true,
		"field": { "preset": "divA" },
		"phases": { "maxPlacementFailures": 3, "minStopTime": "4s" },
		"protocol": { "host": "gc.local", "port": 11007 },
		"source": { "type": "replay", "replay": { "path": "match.jsonl.gz", "speed": 2 } },
		"storage": { "type": "postgres", "postgres": { "host": "db", "fallbackPath": "/tmp/fb.db" } },
		"otel": { "enabled": true, "batchTimeout": "30s", "endpoint": "localhost:4317" }
	}`)))

	cfg, err := Get()
	require.NoError(t, err)

	assert.True(t, cfg.Simulation)
	assert.Equal(t, field.DivisionA(), cfg.Geometry())

	assert.Equal(t, 3, cfg.Phases.MaxPlacementFailures)
	assert.Equal(t, 4*time.Second, cfg.Phases.MinStopTime)
	assert.Equal(t, phase.DefaultConfig().PlacementTimeout, cfg.Phases.PlacementTimeout)

	assert.Equal(t, "gc.local", cfg.Protocol.Host)
	assert.Equal(t, 11007, cfg.Protocol.Port)
	assert.Equal(t, "autoref-go", cfg.Protocol.Identifier)

	assert.Equal(t, "replay", cfg.Source.Type)
	assert.Equal(t, "match.jsonl.gz", cfg.Source.Replay.Path)
	assert.Equal(t, 2.0, cfg.Source.Replay.Speed)
	assert.Equal(t, source.DefaultTrackerConfig().URL, cfg.Source.Tracker.URL)

	assert.Equal(t, "postgres", cfg.Storage.Type)
	assert.Equal(t, "db", cfg.Storage.Postgres.Host)
	assert.Equal(t, "5432", cfg.Storage.Postgres.Port)
	assert.Equal(t, "/tmp/fb.db", cfg.Storage.Postgres.FallbackPath)

	assert.True(t, cfg.OTel.Enabled)
	assert.Equal(t, 30*time.Second, cfg.OTel.BatchTimeout)
	assert.Equal(t, "localhost:4317", cfg.OTel.Endpoint)
}
