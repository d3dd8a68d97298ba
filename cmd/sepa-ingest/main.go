// Command sepa-ingest runs the daily SEPA ingestion pipeline for one
// business date. The CLI layer stays thin: flags and env config in, one
// pipeline run out. Archive acquisition is a separate concern; this command
// expects the date's archives already on disk under DATA_DIR/<date>/.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"sepaetl/internal/config"
	"sepaetl/internal/extract"
	"sepaetl/internal/fecha"
	"sepaetl/internal/metrics"
	"sepaetl/internal/metrics/prompush"
	csvparser "sepaetl/internal/parser/csv"
	"sepaetl/internal/pipeline"
	"sepaetl/internal/storage/postgres"
)

func main() {
	os.Exit(run())
}

// run carries the whole invocation so deferred cleanup (pool close, metrics
// flush) executes on every exit path.
func run() int {
	var (
		dateFlag string
		verbose  bool
	)
	flag.StringVar(&dateFlag, "date", "", "business date to ingest (YYYY-MM-DD, default: today in Argentina time)")
	flag.BoolVar(&verbose, "v", false, "enable debug logs")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if !verbose {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	targetDate := fecha.Hoy()
	if dateFlag != "" {
		var err error
		targetDate, err = fecha.ParseISO(dateFlag)
		if err != nil {
			log.Error().Str("date", dateFlag).Err(err).Msg("invalid -date")
			return 1
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("load config")
		return 1
	}

	switch cfg.MetricsBackend {
	case "pushgateway":
		b, err := prompush.NewBackend("sepa_ingest", cfg.PushgatewayURL)
		if err != nil {
			log.Warn().Err(err).Msg("metrics: pushgateway init failed; using nop")
		} else {
			metrics.SetBackend(b)
			defer func() {
				if err := metrics.Flush(); err != nil {
					log.Warn().Err(err).Msg("metrics: flush failed")
				}
			}()
		}
	case "", "none":
		// metrics disabled; nop backend remains
	default:
		log.Warn().Str("backend", cfg.MetricsBackend).Msg("metrics: unknown backend; metrics disabled")
	}

	ctx := context.Background()

	repo, closeRepo, err := postgres.New(ctx, cfg.DatabaseURL, log.Logger)
	if err != nil {
		log.Error().Err(err).Msg("connect to postgres")
		return 1
	}
	defer closeRepo()

	p := &pipeline.Pipeline{
		Repo: repo,
		Extractor: &extract.Extractor{
			DataDir:  cfg.DataDir,
			Workers:  cfg.ExtractWorkers,
			MinBytes: cfg.MinArchiveBytes,
			Log:      log.Logger,
		},
		Parser:     csvparser.NewParser(csvparser.Options{}),
		ArchiveDir: cfg.ArchiveDir,
		Log:        log.Logger,
	}

	sum, err := p.Process(ctx, targetDate)
	if err != nil {
		log.Error().Str("date", fecha.ISO(targetDate)).Err(err).Msg("run aborted")
		return 1
	}
	if sum.Partial() {
		log.Warn().
			Int("failed_archives", len(sum.ArchivesFailed)).
			Int("failed_chunks", len(sum.FailedChunks)).
			Int64("fact_rows", sum.FactRows).
			Msg("run completed with partial success")
		return 2
	}
	log.Info().Int64("fact_rows", sum.FactRows).Msg("run completed")
	return 0
}
