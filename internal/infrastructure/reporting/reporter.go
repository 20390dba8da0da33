package reporting

import (
	"os"

	"github.com/rollbar/rollbar-go"
	"github.com/rs/zerolog"
)

// Sink receives handled errors with context fields.
type Sink interface {
	Report(err error, fields map[string]any)
}

// Log writes reports to a zerolog logger.
type Log struct {
	logger zerolog.Logger
}

// NewLog creates a logging sink.
func NewLog(logger zerolog.Logger) *Log {
	return &Log{logger: logger.With().Str("component", "reporter").Logger()}
}

func (l *Log) Report(err error, fields map[string]any) {
	if err == nil {
		return
	}
	l.logger.Error().Err(err).Fields(fields).Msg("reported error")
}

// Rollbar forwards reports to Rollbar.
type Rollbar struct {
	client *rollbar.Client
}

// NewRollbar creates a Rollbar sink for the given project token.
func NewRollbar(token, environment, version string) *Rollbar {
	host, _ := os.Hostname()
	client := rollbar.New(token, environment, version, host, "")
	client.SetEnabled(token != "")
	return &Rollbar{client: client}
}

func (r *Rollbar) Report(err error, fields map[string]any) {
	if err == nil {
		return
	}
	r.client.ErrorWithExtras(rollbar.ERR, err, fields)
}

// Close flushes queued items.
func (r *Rollbar) Close() error {
	r.client.Wait()
	return r.client.Close()
}

// Multi fans a report out to every sink.
type Multi []Sink

func (m Multi) Report(err error, fields map[string]any) {
	for _, sink := range m {
		sink.Report(err, fields)
	}
}
