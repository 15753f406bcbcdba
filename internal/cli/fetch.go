package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	httpadapter "github.com/AkkshayaRajesh/ghcnd-pipeline/internal/adapter/http"
	"github.com/AkkshayaRajesh/ghcnd-pipeline/internal/adapter/noaa"
	"github.com/AkkshayaRajesh/ghcnd-pipeline/internal/config"
	"github.com/AkkshayaRajesh/ghcnd-pipeline/internal/domain"
	"github.com/AkkshayaRajesh/ghcnd-pipeline/internal/observability"
	"github.com/AkkshayaRajesh/ghcnd-pipeline/internal/pipeline"
	"github.com/AkkshayaRajesh/ghcnd-pipeline/internal/store"
	"github.com/spf13/cobra"
)

func newFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch and aggregate daily observations per state",
		Long: `fetch lists the GHCND stations of each requested state, selects one
representative station, downloads its daily observations year by year, and
writes a weekly or monthly period summary per state. Failed states are
skipped with a warning; the command exits zero as long as the run itself
was viable.`,
		Args: cobra.NoArgs,
		RunE: runFetch,
	}

	f := cmd.Flags()
	f.String("outdir", "ghcnd_out_rep", "output directory")
	f.String("vars", strings.Join(domain.DefaultVariables, ","), "comma-separated GHCND datatype ids")
	f.String("states", "", "comma-separated 2-digit FIPS codes (default: the 50 states)")
	f.String("units", "standard", "units reported by the API (standard or metric)")
	f.String("freq", "weekly", "aggregation frequency (weekly or monthly)")
	f.Bool("prefer-usw", false, "prefer priority-network (USW) stations when selecting")
	f.Bool("no-resume", false, "refetch station-years even when a cached part exists")
	f.Bool("no-save-raw", false, "do not persist per-station-year raw parts")
	f.Float64("coverage-tolerance", domain.DefaultCoverageTolerance, "tolerance when comparing datacoverage fractions")
	f.Int("start-year", 2002, "first year of the fetch window")
	f.Int("end-year", 2025, "last year of the fetch window")
	f.Int("concurrency", 1, "states fetched in parallel (keep low: one shared API quota)")
	f.String("http-addr", "", "address of the status/metrics server (empty disables it)")
	f.String("timeout", "40s", "per-request timeout")
	f.Int("page-limit", 1000, "results per API page (max 1000)")
	f.String("page-pause", "200ms", "pause between pages")
	f.Int("retry-max-attempts", 3, "attempts per request before giving up")
	f.String("retry-base-delay", "500ms", "first backoff delay")
	f.String("retry-max-delay", "30s", "backoff delay cap")
	f.String("retry-jitter", "300ms", "upper bound of backoff jitter")

	return cmd
}

func runFetch(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.ValidateFetch(); err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	token, err := resolveToken(cfg.Token)
	if err != nil {
		return err
	}

	st, err := store.New(cfg.OutDir)
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	client := noaa.NewClient(token, noaa.Config{
		Timeout:   cfg.Timeout,
		PageLimit: cfg.PageLimit,
		PagePause: cfg.PagePause,
		Units:     cfg.Units,
		Retry: noaa.RetryPolicy{
			MaxAttempts: cfg.RetryMaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			MaxDelay:    cfg.RetryMaxDelay,
			Jitter:      cfg.RetryJitter,
		},
	}, logger, metrics)

	p := pipeline.New(client, client, st, pipeline.Options{
		Variables:         cfg.Variables,
		Frequency:         cfg.Frequency,
		PreferPriority:    cfg.PreferUSW,
		CoverageTolerance: cfg.CoverageTolerance,
		StartYear:         cfg.StartYear,
		EndYear:           cfg.EndYear,
		Resume:            cfg.Resume,
		SaveRaw:           cfg.SaveRaw,
	}, logger, metrics)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("status server shutdown error", "error", err)
			}
		}()
	}

	report, err := p.RunAll(ctx, cfg.States, cfg.Concurrency)
	if err != nil {
		return err
	}

	logger.Info("run complete",
		"completed", len(report.Completed),
		"skipped", len(report.Skipped),
		"outdir", cfg.OutDir,
	)
	for _, s := range report.Skipped {
		logger.Warn("state was skipped", "fips", s.FIPS, "reason", s.Reason)
	}
	// Skipped states are not a failure; the merge runs over whatever succeeded.
	return nil
}
