package reporting

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type countingSink struct{ n int }

func (c *countingSink) Report(error, map[string]any) { c.n++ }

func TestLogWritesFields(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLog(zerolog.New(&buf))

	sink.Report(errors.New("status poll failed"), map[string]any{"job_id": "j1", "attempt": 3})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "error", entry["level"])
	require.Equal(t, "status poll failed", entry["error"])
	require.Equal(t, "j1", entry["job_id"])
	require.Equal(t, float64(3), entry["attempt"])
	require.Equal(t, "reporter", entry["component"])
}

func TestLogIgnoresNil(t *testing.T) {
	var buf bytes.Buffer
	NewLog(zerolog.New(&buf)).Report(nil, nil)
	require.Zero(t, buf.Len())
}

func TestMultiFansOut(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	Multi{a, b}.Report(errors.New("x"), nil)
	require.Equal(t, 1, a.n)
	require.Equal(t, 1, b.n)
}

func TestRollbarDisabledWithoutToken(t *testing.T) {
	sink := NewRollbar("", "test", "dev")
	sink.Report(errors.New("x"), map[string]any{"job_id": "j1"})
	require.NoError(t, sink.Close())
}
