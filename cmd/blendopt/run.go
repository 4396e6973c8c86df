package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cwbudde/blendopt/internal/blend"
	"github.com/cwbudde/blendopt/internal/plan"
	"github.com/cwbudde/blendopt/internal/store"
)

var (
	inputPath     string
	outputPath    string
	optimizerFlag string
	outputFormat  string
	saveRun       bool
	runDataDir    string
	deSeed        int64
	deMaxIter     int
	gaSeed        int64
	gaGenerations int
	gaPopulation  int
	sequential    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Optimize a blend once",
	Long: `Reads tanks and a target blend from an input document, finds the
least-cost allocation and writes the report (input plus optimized blend).`,
	RunE: runOptimization,
}

func init() {
	runCmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input document path (required)")
	runCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Report path (default stdout)")
	runCmd.Flags().StringVar(&optimizerFlag, "optimizer", "both", "Optimizer: de, ga (deap), both, mayfly, all")
	runCmd.Flags().StringVar(&outputFormat, "format", "json", "Report format: json, yaml")
	runCmd.Flags().BoolVar(&saveRun, "save", false, "Persist the run to the data directory")
	runCmd.Flags().StringVar(&runDataDir, "data-dir", "", "Data directory (overrides store.data_dir)")
	runCmd.Flags().Int64Var(&deSeed, "de-seed", 0, "Differential evolution seed")
	runCmd.Flags().IntVar(&deMaxIter, "maxiter", 0, "Differential evolution generations")
	runCmd.Flags().Int64Var(&gaSeed, "ga-seed", 0, "Genetic algorithm seed")
	runCmd.Flags().IntVar(&gaGenerations, "generations", 0, "Genetic algorithm generations")
	runCmd.Flags().IntVar(&gaPopulation, "population", 0, "Genetic algorithm population")
	runCmd.Flags().BoolVar(&sequential, "sequential", false, "Run optimizers one after another")

	runCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(runCmd)
}

// applyRunFlags copies explicitly set flags over the loaded configuration.
func applyRunFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("de-seed") {
		cfg.Optimizer.DE.Seed = deSeed
	}
	if flags.Changed("maxiter") {
		cfg.Optimizer.DE.MaxGenerations = deMaxIter
	}
	if flags.Changed("ga-seed") {
		cfg.Optimizer.GA.Seed = gaSeed
	}
	if flags.Changed("generations") {
		cfg.Optimizer.GA.Generations = gaGenerations
	}
	if flags.Changed("population") {
		cfg.Optimizer.GA.PopulationSize = gaPopulation
	}
	if sequential {
		cfg.Optimizer.Parallel = false
	}
	if runDataDir != "" {
		cfg.Store.DataDir = runDataDir
	}
}

func runOptimization(cmd *cobra.Command, args []string) error {
	applyRunFlags(cmd)
	if err := cfg.Optimizer.Validate(); err != nil {
		return err
	}

	mode, err := plan.ParseMode(optimizerFlag)
	if err != nil {
		return err
	}

	in, err := blend.LoadInput(inputPath)
	if err != nil {
		return err
	}
	logger.Info("loaded input", zap.String("path", inputPath), zap.Int("tanks", len(in.Tanks)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := plan.New(cfg.Optimizer, logger).Optimize(ctx, in, mode)
	if err != nil {
		return fmt.Errorf("optimization failed: %w", err)
	}
	report := plan.NewReport(in, res)

	out := os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := report.Write(out, outputFormat); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if saveRun {
		if err := persistRun(in, mode, report, res); err != nil {
			return err
		}
	}

	printSummary(res)
	return nil
}

func persistRun(in blend.Input, mode plan.Mode, report *plan.Report, res *plan.Result) error {
	st, err := store.NewFSStore(cfg.Store.DataDir, logger)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}

	id := uuid.New().String()
	rec := store.NewRunRecord(id, store.RunConfig{
		Mode:      string(mode),
		InputPath: inputPath,
		Optimizer: cfg.Optimizer,
	}, report)
	if err := st.SaveRun(rec); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	if err := st.SaveTrace(id, res.Outcomes); err != nil {
		return fmt.Errorf("failed to save trace: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Saved run %s\n", id)
	return nil
}

// printSummary writes the cost, blend and elapsed time to stderr so that the
// report on stdout stays machine-readable.
func printSummary(res *plan.Result) {
	b := res.Blend
	fmt.Fprintf(os.Stderr, "Minimum cost: %s (%s)\n", plan.FormatCost(res.MinCost), res.Winner)
	if !res.Feasible {
		fmt.Fprintln(os.Stderr, "No allocation satisfies the target blend")
	}
	fmt.Fprintf(os.Stderr, "Blend: volume %.2f, mass %.2f, API %.2f, viscosity %.2f, sulfur %.3f%%, flash %.1f, CCAI %.1f\n",
		b.Volume, b.TotalMass, b.API, b.Viscosity, b.SulfurPcnt, b.Flash, b.CCAI)
	fmt.Fprintf(os.Stderr, "Allocation: %v\n", []float64(res.Allocation))
	fmt.Fprintf(os.Stderr, "Elapsed: %s\n", res.Elapsed.Round(time.Millisecond))
}
