package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"gobiodiv/adapters/diversity"
	"gobiodiv/adapters/excel"
	"gobiodiv/adapters/postgres"
	"gobiodiv/adapters/rng"
	"gobiodiv/domain/stats"
	"gobiodiv/internal/analysis"
	"gobiodiv/internal/config"
	"gobiodiv/internal/evenness"
	"gobiodiv/internal/migration"
	"gobiodiv/internal/report"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
)

type analyzeOptions struct {
	analysis   config.AnalysisConfig
	reader     excel.ReaderConfig
	plots      []string
	plotWidth  int
	reportPath string
	jsonPath   string
	save       bool
	database   config.DatabaseConfig
}

func newAnalyzeCmd() *cobra.Command {
	opts := analyzeOptions{reader: excel.DefaultReaderConfig()}
	var configPath string

	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Compute diversity metrics and test them for group differences",
		Long: `Read a sites x species table (xlsx, csv or json), compute N, S, S_rare,
S_asymp, PIE, ENS_PIE and betaPIE per site and per pooled group, and run a
permutation one-way ANOVA on every tested metric.

Non-numeric columns are site attributes; --group names the one that
defines the groups.

Example: gobiodiv analyze plots.csv --group treatment --nperm 999 --seed 42 --plot S,PIE`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if configPath != "" {
				fileCfg, err := config.LoadAnalysis(configPath)
				if err != nil {
					return err
				}
				cfg.Analysis = *fileCfg
			}
			mergeAnalysisFlags(cmd, &cfg.Analysis, opts.analysis)
			if err := cfg.Analysis.Validate(); err != nil {
				return err
			}
			opts.analysis = cfg.Analysis
			opts.database = cfg.Database
			return runAnalyze(cmd.Context(), args[0], opts, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "YAML file with analysis parameters")
	flags.StringVar(&opts.analysis.GroupColumn, "group", "group", "Site attribute that defines the groups")
	flags.StringSliceVar(&opts.analysis.Levels, "levels", nil, "Group levels in report order (default: sorted)")
	flags.Float64Var(&opts.analysis.NMin, "n-min", config.DefaultNMin, "Minimum individuals for a site to be rarefied")
	flags.IntVar(&opts.analysis.NPerm, "nperm", config.DefaultNPerm, "Number of permutations")
	flags.Int64Var(&opts.analysis.Seed, "seed", 0, "Random seed (0 draws a fresh one)")
	flags.IntVar(&opts.analysis.Workers, "workers", 0, "Permutation workers (0 means one per CPU)")
	flags.BoolVar(&opts.analysis.UnbiasedPIE, "unbiased-pie", false, "Use the small-sample corrected PIE")
	flags.StringVar(&opts.reader.SiteColumn, "site-column", "", "Site identifier column (default: detect)")
	flags.StringVar(&opts.reader.Sheet, "sheet", opts.reader.Sheet, "Worksheet for xlsx input")
	flags.StringVar(&opts.reader.DataPath, "data-path", "", "gjson path of the record array in json input")
	flags.StringSliceVar(&opts.plots, "plot", nil, "Metrics to plot per site by group")
	flags.IntVar(&opts.plotWidth, "plot-width", 0, "Plot width in columns")
	flags.StringVar(&opts.reportPath, "report", "", "Write a markdown report to this path")
	flags.StringVar(&opts.jsonPath, "json", "", "Write the result bundle as JSON to this path")
	flags.BoolVar(&opts.save, "save", false, "Store the result in Postgres (needs DATABASE_URL)")

	return cmd
}

// mergeAnalysisFlags lets explicitly set flags override env and file values
func mergeAnalysisFlags(cmd *cobra.Command, dst *config.AnalysisConfig, flags config.AnalysisConfig) {
	changed := cmd.Flags().Changed
	if changed("group") {
		dst.GroupColumn = flags.GroupColumn
	}
	if changed("levels") {
		dst.Levels = flags.Levels
	}
	if changed("n-min") {
		dst.NMin = flags.NMin
	}
	if changed("nperm") {
		dst.NPerm = flags.NPerm
	}
	if changed("seed") {
		dst.Seed = flags.Seed
	}
	if changed("workers") {
		dst.Workers = flags.Workers
	}
	if changed("unbiased-pie") {
		dst.UnbiasedPIE = flags.UnbiasedPIE
	}
}

func runAnalyze(ctx context.Context, path string, opts analyzeOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	reader := excel.NewDataReader(path, readerConfig(opts))
	ds, err := reader.ReadCommunity(ctx)
	if err != nil {
		return err
	}
	g, err := ds.Grouping(opts.analysis.GroupColumn, opts.analysis.Levels)
	if err != nil {
		return err
	}

	engine := analysis.NewEngine(diversity.NewHurlbertRarefier(), diversity.NewChao1Estimator(), rng.NewSeededRNG())
	if opts.analysis.Workers > 0 {
		engine.SetWorkers(opts.analysis.Workers)
	}
	if opts.analysis.UnbiasedPIE {
		engine.SetEvenness(evenness.NewCalculator(evenness.Options{Unbiased: true}))
	}

	bundle, err := engine.Run(ctx, analysis.Request{
		Matrix:      ds.Matrix,
		Grouping:    g,
		GroupColumn: opts.analysis.GroupColumn,
		NMin:        opts.analysis.NMin,
		NPerm:       opts.analysis.NPerm,
		Seed:        opts.analysis.Seed,
		Workers:     opts.analysis.Workers,
	})
	if err != nil {
		return err
	}

	rc := report.NewRenderContext(out)
	fmt.Fprintf(out, "%s: %d sites, %d species, groups %v, seed %d\n\n",
		ds.Name, ds.Matrix.Sites(), ds.Matrix.Species(), bundle.Params().Levels, bundle.Params().Seed)
	if err := report.WriteSummary(rc, bundle); err != nil {
		return err
	}

	for _, name := range opts.plots {
		metric, err := stats.ParseMetric(name)
		if err != nil {
			return err
		}
		plotRC := rc
		plotRC.Width = opts.plotWidth
		fmt.Fprintln(out)
		if err := report.PlotMetric(plotRC, bundle, metric); err != nil {
			return err
		}
	}

	if opts.reportPath != "" {
		if err := writeFile(opts.reportPath, func(w io.Writer) error {
			return report.WriteMarkdown(report.NewRenderContext(w), ds.Name, bundle)
		}); err != nil {
			return err
		}
		fmt.Fprintf(out, "\nreport written to %s\n", opts.reportPath)
	}

	if opts.jsonPath != "" {
		if err := writeFile(opts.jsonPath, func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(bundle)
		}); err != nil {
			return err
		}
		fmt.Fprintf(out, "result written to %s\n", opts.jsonPath)
	}

	if opts.save {
		if err := saveResult(ctx, opts.database, ds.Name, bundle); err != nil {
			return err
		}
		fmt.Fprintf(out, "saved run %s\n", bundle.RunID())
	}
	return nil
}

// readerConfig marks the group column as a site attribute so numeric codes
// such as block 1/2 are not read as a species
func readerConfig(opts analyzeOptions) excel.ReaderConfig {
	cfg := opts.reader
	group := opts.analysis.GroupColumn
	if group == "" {
		return cfg
	}
	for _, a := range cfg.AttributeColumns {
		if a == group {
			return cfg
		}
	}
	cfg.AttributeColumns = append(append([]string(nil), cfg.AttributeColumns...), group)
	return cfg
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func saveResult(ctx context.Context, db config.DatabaseConfig, name string, bundle *stats.ResultBundle) error {
	if !db.Enabled() {
		return fmt.Errorf("--save needs DATABASE_URL")
	}
	conn, err := sqlx.ConnectContext(ctx, "postgres", db.DSN())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()

	if err := migration.NewRunner().Run(ctx, conn); err != nil {
		return err
	}
	log.Printf("[CLI] saving run %s", bundle.RunID())
	return postgres.NewResultRepository(conn).Save(ctx, name, bundle)
}
