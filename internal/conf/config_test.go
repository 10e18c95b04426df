package conf

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/freshness-go/internal/errors"
)

// writeConfig writes content to config.yaml in a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// resetViper gives each test a clean global viper instance.
func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoadAppliesDefaults(t *testing.T) {
	resetViper(t)

	settings, err := Load(writeConfig(t, "debug: false\n"))
	require.NoError(t, err)

	assert.InDelta(t, 0.5, settings.Detector.Threshold, 0)
	assert.Len(t, settings.Detector.Labels, 8)
	assert.Equal(t, "apple_fresh", settings.Detector.Labels[0])
	assert.Equal(t, map[string]int{"apple": 7, "onion": 10, "carrot": 5, "tomato": 3}, settings.Ledger.Lifespans)
	assert.Equal(t, OutputCSV, settings.Output.Type)
	assert.Equal(t, "detection_fresh_count.csv", settings.Output.CSV.Path)
	assert.Equal(t, "3306", settings.Output.MySQL.Port)
	assert.Equal(t, "0.0.0.0:8080", settings.WebServer.Listen)
	assert.Equal(t, 10*time.Second, settings.WebServer.ShutdownTimeout)
	assert.False(t, settings.MQTT.Enabled)
	assert.Equal(t, "freshness/detections", settings.MQTT.Topic)
	require.NotNil(t, settings.Logging.Console)
	assert.True(t, settings.Logging.Console.Enabled)
}

func TestLoadReadsFileValues(t *testing.T) {
	resetViper(t)

	path := writeConfig(t, `
detector:
  threshold: 0.65
ledger:
  timezone: UTC
  lifespans:
    apple: 9
    kiwi: 4
output:
  type: sqlite
  sqlite:
    path: data/ledger.db
webserver:
  listen: 127.0.0.1:9000
  shutdowntimeout: 3s
`)

	settings, err := Load(path)
	require.NoError(t, err)

	assert.InDelta(t, 0.65, settings.Detector.Threshold, 1e-9)
	assert.Equal(t, 9, settings.Ledger.Lifespans["apple"])
	assert.Equal(t, 4, settings.Ledger.Lifespans["kiwi"])
	assert.Equal(t, OutputSQLite, settings.Output.Type)
	assert.Equal(t, "data/ledger.db", settings.Output.SQLite.Path)
	assert.Equal(t, "127.0.0.1:9000", settings.WebServer.Listen)
	assert.Equal(t, 3*time.Second, settings.WebServer.ShutdownTimeout)

	loc, err := settings.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoadEnvironmentOverride(t *testing.T) {
	resetViper(t)
	t.Setenv("FRESHNESS_DETECTOR_THRESHOLD", "0.75")
	t.Setenv("FRESHNESS_OUTPUT_CSV_PATH", "/tmp/ledger.csv")

	settings, err := Load(writeConfig(t, "detector:\n  threshold: 0.6\n"))
	require.NoError(t, err)

	assert.InDelta(t, 0.75, settings.Detector.Threshold, 1e-9)
	assert.Equal(t, "/tmp/ledger.csv", settings.Output.CSV.Path)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	resetViper(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	resetViper(t)

	_, err := Load(writeConfig(t, "detector:\n  threshold: 1.5\noutput:\n  type: excel\n"))
	require.Error(t, err)

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 2)
}

func TestEmbeddedConfigMatchesDefaults(t *testing.T) {
	resetViper(t)
	data, err := getDefaultConfig()
	require.NoError(t, err)
	fromEmbedded, err := Load(writeConfig(t, string(data)))
	require.NoError(t, err)

	resetViper(t)
	fromDefaults, err := Load(writeConfig(t, "debug: false\n"))
	require.NoError(t, err)

	assert.Equal(t, fromDefaults, fromEmbedded)
}

func TestSaveYAMLConfigRoundTrip(t *testing.T) {
	resetViper(t)

	settings, err := Load(writeConfig(t, "ledger:\n  timezone: UTC\n"))
	require.NoError(t, err)
	settings.Detector.Threshold = 0.8
	settings.MQTT.Enabled = true

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, SaveYAMLConfig(path, settings))

	resetViper(t)
	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, settings, reloaded)
}

func TestWriteYAML(t *testing.T) {
	resetViper(t)

	settings, err := Load(writeConfig(t, "debug: true\n"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, settings))

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, true, decoded["debug"])
	assert.Contains(t, decoded, "detector")
	assert.Contains(t, decoded, "output")
}
