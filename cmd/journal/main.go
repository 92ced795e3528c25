// Command journal exports executions recorded in the local journal as
// newline-delimited JSON and prints a summary by outcome.
package main

import (
	"encoding/json"
	"flag"
	"io"
	"os"
	"sort"
	"time"

	"github.com/joelsfoster/gizmo/internal/history"
	"github.com/joelsfoster/gizmo/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		dataPath   = flag.String("data", "./data", "Journal data directory")
		outputPath = flag.String("output", "", "Output file (stdout when empty)")
		symbol     = flag.String("symbol", "BTCUSD", "Symbol to export")
		days       = flag.Int("days", 7, "Number of days to export")
		failedOnly = flag.Bool("failed", false, "Only export executions with a failed step")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatal().Err(err).Str("data", *dataPath).Msg("Failed to open journal")
	}
	defer store.Close()

	end := time.Now()
	start := end.AddDate(0, 0, -*days)
	entries, err := store.GetExecutions(*symbol, start, end)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read journal")
	}

	var out io.Writer = os.Stdout
	if *outputPath != "" {
		f, err := os.Create(*outputPath)
		if err != nil {
			log.Fatal().Err(err).Str("output", *outputPath).Msg("Failed to create output file")
		}
		defer f.Close()
		out = f
	}

	written, err := export(out, entries, *failedOnly)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to write record")
	}
	log.Info().
		Str("symbol", *symbol).
		Int("exported", written).
		Int("total", len(entries)).
		Msg("Export finished")

	if len(entries) > 0 {
		log.Info().
			Time("from", entries[0].ExecutedAt).
			Time("to", entries[len(entries)-1].ExecutedAt).
			Msg("Time range")

		counts := summarize(entries)
		outcomes := make([]string, 0, len(counts))
		for o := range counts {
			outcomes = append(outcomes, o)
		}
		sort.Strings(outcomes)

		for _, o := range outcomes {
			log.Info().Str("outcome", o).Int("count", counts[o]).Msg("Executions by outcome")
		}
	}
}

// export writes the flattened history document of each entry, one per
// line.
func export(w io.Writer, entries []history.Entry, failedOnly bool) (int, error) {
	encoder := json.NewEncoder(w)
	written := 0
	for _, e := range entries {
		if failedOnly && len(e.Failed()) == 0 {
			continue
		}
		doc, err := e.Document()
		if err != nil {
			log.Warn().Err(err).Time("executed_at", e.ExecutedAt).Msg("Skipping malformed entry")
			continue
		}
		if err := encoder.Encode(doc); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

func summarize(entries []history.Entry) map[string]int {
	counts := make(map[string]int)
	for _, e := range entries {
		counts[e.Outcome]++
	}
	return counts
}
