package history

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogSink writes each entry as one structured log line carrying the
// flattened history document.
type LogSink struct {
	Level zerolog.Level
}

var _ Sink = LogSink{}

func (LogSink) Name() string { return "log" }

func (s LogSink) Write(_ context.Context, e Entry) error {
	doc, err := e.Document()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	log.WithLevel(s.Level).
		Str("symbol", e.Symbol).
		Str("action", e.Action).
		Str("outcome", e.Outcome).
		RawJSON("history", raw).
		Msg("trade history")
	return nil
}
