package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/david/civic-crawler/internal/crawl"
	"github.com/david/civic-crawler/internal/db"
	"github.com/david/civic-crawler/internal/models"
	"github.com/david/civic-crawler/internal/pipeline"
	"github.com/david/civic-crawler/internal/storage"
	"github.com/david/civic-crawler/internal/telemetry"
)

// Exit codes.
const (
	exitOK        = 0
	exitConfig    = 1
	exitCancelled = 2
	exitFatal     = 3
)

type options struct {
	domains   []string
	maxURLs   int
	maxDepth  int
	workers   int
	rateDelay int
	seedFile  string
	dryRun    bool
	resume    bool
	fetcher   string
	verbose   bool
}

func main() {
	opts := &options{}

	root := &cobra.Command{
		Use:          "crawler",
		Short:        "Polite crawler for local-government transparency data",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			os.Exit(run(opts))
			return nil
		},
	}

	root.Flags().StringArrayVar(&opts.domains, "domain", nil, "restrict to domains matching this glob (repeatable)")
	root.Flags().IntVar(&opts.maxURLs, "max-urls", 0, "global URL cap, 0 = per-domain quotas only")
	root.Flags().IntVar(&opts.maxDepth, "max-depth", 3, "maximum link depth from seeds")
	root.Flags().IntVar(&opts.workers, "workers", 8, "fetch worker count")
	root.Flags().IntVar(&opts.rateDelay, "rate-delay", 2000, "per-host delay between requests in ms")
	root.Flags().StringVar(&opts.seedFile, "seed-file", "", "seed registry YAML, overrides the embedded one")
	root.Flags().BoolVar(&opts.dryRun, "dry-run", false, "run the pipeline without writing to the database")
	root.Flags().BoolVar(&opts.resume, "resume", false, "skip URLs recorded in a previous run's snapshot")
	root.Flags().StringVar(&opts.fetcher, "fetcher", "polite", "fetcher implementation: polite or colly")
	root.Flags().BoolVar(&opts.verbose, "verbose", false, "debug logging")

	if err := root.Execute(); err != nil {
		os.Exit(exitFatal)
	}
}

func run(opts *options) int {
	level := zerolog.InfoLevel
	if opts.verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Hard kill 30s after the cancellation signal if the drain hangs.
	go func() {
		<-ctx.Done()
		time.Sleep(30 * time.Second)
		logger.Error().Msg("grace period elapsed, exiting")
		os.Exit(exitCancelled)
	}()

	reg, err := crawl.LoadRegistry(opts.seedFile)
	if err != nil {
		logger.Error().Err(err).Msg("loading seed registry")
		return exitConfig
	}
	if len(opts.domains) > 0 {
		match := func(host string) bool {
			for _, glob := range opts.domains {
				if ok, _ := path.Match(glob, host); ok {
					return true
				}
			}
			return false
		}
		if err := reg.Restrict(match); err != nil {
			logger.Error().Err(err).Msg("applying --domain filter")
			return exitConfig
		}
	}

	dataDir := os.Getenv("CRAWL_DATA_DIR")
	if dataDir == "" {
		dataDir = filepath.Join(os.TempDir(), "civic-crawler")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		logger.Error().Err(err).Str("dir", dataDir).Msg("creating data directory")
		return exitConfig
	}

	expected := make(map[string]map[string]int)
	for _, d := range reg.Domains() {
		if len(d.Expected) > 0 {
			expected[d.Domain] = d.Expected
		}
	}
	monitor := telemetry.NewMonitor(expected, logger)
	citations := telemetry.NewCitations()

	var base storage.Sink
	if opts.dryRun {
		base = storage.NewMemorySink()
		logger.Info().Msg("dry run: records stay in memory")
	} else {
		pool, err := db.Connect(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("connecting to database")
			return exitConfig
		}
		if err := db.ApplyMigrations(ctx, pool); err != nil {
			logger.Error().Err(err).Msg("applying migrations")
			return exitConfig
		}
		base = db.NewStore(pool)
	}

	frontier := crawl.NewFrontier(reg, opts.maxDepth, opts.maxURLs)
	sink := storage.NewBuffered(base, storage.DefaultHighWater, storage.DefaultLowWater, frontier.Pause, frontier.Resume)

	seenPath := filepath.Join(dataDir, "seen.json")
	if opts.resume {
		if err := frontier.LoadSeen(seenPath); err != nil && !os.IsNotExist(err) {
			logger.Warn().Err(err).Msg("could not load seen snapshot")
		} else if err == nil {
			logger.Info().Int("urls", frontier.SeenCount()).Msg("resuming with seen snapshot")
		}
	}

	fetchCfg := crawl.FetchConfig{
		UserAgent:    os.Getenv("CRAWL_USER_AGENT"),
		RequestDelay: time.Duration(opts.rateDelay) * time.Millisecond,
	}
	if mb := os.Getenv("CRAWL_MAX_FILE_SIZE_MB"); mb != "" {
		n, err := strconv.Atoi(mb)
		if err != nil || n <= 0 {
			logger.Error().Str("CRAWL_MAX_FILE_SIZE_MB", mb).Msg("invalid max file size")
			return exitConfig
		}
		fetchCfg.MaxFileSize = int64(n) << 20
	}

	var fetcher crawl.Fetcher
	switch opts.fetcher {
	case "polite":
		fetcher = crawl.NewPoliteFetcher(fetchCfg, reg, monitor)
	case "colly":
		fetcher = crawl.NewCollyFetcher(fetchCfg, reg, monitor)
	default:
		logger.Error().Str("fetcher", opts.fetcher).Msg("unknown fetcher, want polite or colly")
		return exitConfig
	}

	pipe := pipeline.New(sink, monitor, citations, dataDir, logger)
	orch := crawl.NewOrchestrator(reg, frontier, fetcher, sink, monitor, pipe, crawl.OrchestratorConfig{
		Workers: opts.workers,
	}, logger)

	runErr := orch.Run(ctx)
	cancelled := errors.Is(runErr, context.Canceled) || ctx.Err() != nil

	// The report is written even for a cancelled run, flagged partial.
	report := monitor.Report(cancelled)
	closeCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()
	if err := sink.Write(closeCtx, models.KindCoverageReport, *report); err != nil {
		logger.Error().Err(err).Msg("writing coverage report")
	}
	if err := frontier.SaveSeen(seenPath); err != nil {
		logger.Warn().Err(err).Msg("saving seen snapshot")
	}
	if err := sink.Close(closeCtx); err != nil {
		logger.Error().Err(err).Msg("flushing storage")
		if runErr == nil && !cancelled {
			runErr = err
		}
	}

	telemetry.Render(os.Stdout, report)

	switch {
	case cancelled:
		logger.Info().Msg("run cancelled, partial report written")
		return exitCancelled
	case errors.Is(runErr, crawl.ErrConfig):
		logger.Error().Err(runErr).Msg("configuration error")
		return exitConfig
	case runErr != nil:
		logger.Error().Err(runErr).Msg("crawl failed")
		return exitFatal
	}
	return exitOK
}
