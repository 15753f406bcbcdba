package cli

import (
	"github.com/AkkshayaRajesh/ghcnd-pipeline/internal/config"
	"github.com/AkkshayaRajesh/ghcnd-pipeline/internal/merge"
	"github.com/AkkshayaRajesh/ghcnd-pipeline/internal/observability"
	"github.com/AkkshayaRajesh/ghcnd-pipeline/internal/store"
	"github.com/spf13/cobra"
)

func newMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge per-state summaries into one nationwide dataset",
		Long: `merge reads every state's period summary from a fetch output directory
and concatenates them into a nationwide wide-format CSV, optionally with a
long/tidy companion. States without a readable summary are skipped with a
warning unless --require-all is set. Inputs must share one frequency.`,
		Args: cobra.NoArgs,
		RunE: runMerge,
	}

	f := cmd.Flags()
	f.String("indir", "ghcnd_out_rep", "directory containing FIPS_XX subdirectories")
	f.String("outfile", "", "output filename (default auto-names by frequency)")
	f.String("states", "", "comma-separated 2-digit FIPS codes (default: the 50 states)")
	f.Bool("long", false, "also write the long/tidy layout")
	f.Bool("require-all", false, "fail if any state's summary is missing")
	f.Bool("sort", false, "sort rows by period start, then state")

	return cmd
}

func runMerge(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.ValidateMerge(); err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	st, err := store.New(cfg.InDir)
	if err != nil {
		return err
	}

	m := merge.New(st, merge.Options{
		States:     cfg.States,
		OutFile:    cfg.OutFile,
		Long:       cfg.Long,
		RequireAll: cfg.RequireAll,
		Sort:       cfg.Sort,
	}, logger)

	result, err := m.Run()
	if err != nil {
		return err
	}

	logger.Info("merge complete",
		"frequency", result.Frequency,
		"states", len(result.Merged),
		"skipped", len(result.Skipped),
		"wide", result.WidePath,
		"wide_rows", result.WideRows,
	)
	if result.LongPath != "" {
		logger.Info("long dataset", "path", result.LongPath, "rows", result.LongRows)
	}
	return nil
}
