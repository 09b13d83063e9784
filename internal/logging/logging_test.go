package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMaskedLogsOnlyWhenBitsOverlap(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)

	l.Masked(LevelDebug, LevelInfo, "should not log")
	require.Zero(t, buf.Len(), "Masked logged with no overlapping bits: %q", buf.String())

	l.Masked(LevelDebug, LevelDebug|LevelTrace, "should log", "key", "value")
	require.NotZero(t, buf.Len(), "Masked did not log despite overlapping bits")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded), "output is not valid JSON: %q", buf.String())
	require.Equal(t, "should log", decoded["message"])
	require.Equal(t, "value", decoded["key"])
}

func TestWithAttachesFieldsToSubsequentLogs(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf).With("job", "import-1")
	l.Info("started")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, "import-1", decoded["job"])
}

func TestLevelOrdering(t *testing.T) {
	require.Zero(t, LevelError&LevelWarn, "LevelError and LevelWarn should not overlap")
	require.NotZero(t, LevelAll&LevelTrace, "LevelAll should include LevelTrace")
}

func TestNopDiscardsOutput(t *testing.T) {
	l := Nop()
	l.Error("nothing should happen")
	l.Masked(LevelDebug, LevelAll, "nor this")
	// Nop must not panic and must implement Logger fully.
	_ = l.With("k", "v")
}
