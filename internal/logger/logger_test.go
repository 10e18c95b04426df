package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var records []map[string]any
	for line := range strings.SplitSeq(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		records = append(records, rec)
	}
	return records
}

func TestSlogLoggerWritesStructuredFields(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelDebug, time.UTC).Module("ledger")

	log.Info("entry created",
		String("product", "apple"),
		Int("sequence", 0),
		Float64("confidence", 0.912345),
		Bool("fresh", true),
		Duration("elapsed", 1500*time.Microsecond))

	records := decodeLines(t, buf)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "entry created", rec["msg"])
	assert.Equal(t, "ledger", rec["module"])
	assert.Equal(t, "apple", rec["product"])
	assert.InDelta(t, 0.912, rec["confidence"], 0.0001)
	assert.Equal(t, true, rec["fresh"])
	assert.Equal(t, "2ms", rec["elapsed"])
}

func TestLevelFiltering(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelWarn, nil)

	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("shown")
	log.Error("shown too", Error(assert.AnError))
	log.Log(LogLevelInfo, "hidden")

	records := decodeLines(t, buf)
	require.Len(t, records, 2)
	assert.Equal(t, assert.AnError.Error(), records[1]["error"])
}

func TestModuleNestingAndWith(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	base := NewSlogLogger(buf, LogLevelInfo, nil).Module("processor")
	batchLog := base.Module("batch").With(String("batch_id", "b-1"))

	batchLog.Info("batch committed")
	base.Info("plain")

	records := decodeLines(t, buf)
	require.Len(t, records, 2)
	assert.Equal(t, "processor.batch", records[0]["module"])
	assert.Equal(t, "b-1", records[0]["batch_id"])
	assert.Equal(t, "processor", records[1]["module"])
	assert.NotContains(t, records[1], "batch_id")
}

func TestWithContextAddsTraceID(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := NewSlogLogger(buf, LogLevelInfo, nil)

	ctx := WithTraceID(context.Background(), "trace-42")
	log.WithContext(ctx).Info("with trace")
	log.WithContext(context.Background()).Info("without trace")

	records := decodeLines(t, buf)
	require.Len(t, records, 2)
	assert.Equal(t, "trace-42", records[0]["trace_id"])
	assert.NotContains(t, records[1], "trace_id")
}

func TestCentralLoggerFileOutput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "freshness.log")
	central, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "debug",
		Timezone:     "UTC",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: path, Level: "debug"},
		ModuleLevels: map[string]string{"datastore": "error"},
	})
	require.NoError(t, err)

	central.Module("ledger").Debug("ledger debug line")
	central.Module("datastore").Info("suppressed by module level")
	require.NoError(t, central.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ledger debug line")
	assert.NotContains(t, string(data), "suppressed by module level")
}

func TestCentralLoggerRejectsBadTimezone(t *testing.T) {
	t.Parallel()

	_, err := NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus_Mons"})
	require.Error(t, err)
}

func TestCentralLoggerNilConfig(t *testing.T) {
	t.Parallel()

	_, err := NewCentralLogger(nil)
	require.Error(t, err)
}
