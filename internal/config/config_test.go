package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dashboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultColumns(), cfg.Data.Columns)
	assert.Equal(t, DefaultListenAddr, cfg.Server.ListenAddr)
	assert.True(t, cfg.CORSEnabled())
	assert.Equal(t, DefaultTopN, cfg.Engine.TopN)
	assert.Equal(t, DefaultFocusCountry, cfg.Focus())
	assert.Equal(t, DefaultCacheTTL, cfg.Engine.CacheTTL)
	assert.Equal(t, DefaultCacheCapacity, *cfg.Engine.CacheCapacity)
	assert.Equal(t, runtime.NumCPU(), cfg.Engine.Workers)

	// events_path has no default
	require.Error(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
data:
  events_path: data/athlete_events.csv
  gender_path: data/gender.csv
  max_rows: 500000
  columns:
    participant: AthleteID
server:
  listen_addr: ":9090"
  cors: false
engine:
  top_n: 5
  focus_country: Norway
  cache_ttl: 30s
  cache_capacity: 0
log:
  verbose: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "data/athlete_events.csv", cfg.Data.EventsPath)
	assert.Equal(t, "data/gender.csv", cfg.Data.GenderPath)
	assert.Equal(t, 500000, cfg.Data.MaxRows)
	assert.Equal(t, "AthleteID", cfg.Data.Columns.Participant)
	assert.Equal(t, "Year", cfg.Data.Columns.Year, "unset columns keep their defaults")
	assert.Equal(t, ":9090", cfg.Server.ListenAddr)
	assert.False(t, cfg.CORSEnabled())
	assert.Equal(t, 5, cfg.Engine.TopN)
	assert.Equal(t, "Norway", cfg.Focus())
	assert.Equal(t, 30*time.Second, cfg.Engine.CacheTTL)
	assert.Equal(t, 0, *cfg.Engine.CacheCapacity, "an explicit 0 disables the cache")
	assert.True(t, cfg.Log.Verbose)
}

func TestLoad_FocusCountryDisabled(t *testing.T) {
	cfg, err := Load(writeConfig(t, "data: {events_path: e.csv}\nengine: {focus_country: \"\"}\n"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.NotNil(t, cfg.Engine.FocusCountry)
	assert.Empty(t, cfg.Focus())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"negative top_n", "data: {events_path: e.csv}\nengine: {top_n: -1}\n"},
		{"negative max_rows", "data: {events_path: e.csv, max_rows: -5}\n"},
		{"negative cache capacity", "data: {events_path: e.csv}\nengine: {cache_capacity: -1}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.content))
			require.NoError(t, err)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "data: [not, a, map]\n"))
	require.Error(t, err)
}
