package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"spacey/internal/evo"
	"spacey/internal/model"
	"spacey/internal/stadium"
	"spacey/internal/storage"
	spaceyapi "spacey/pkg/spacey"
)

const (
	artifactsDir  = "runs"
	exportsDir    = "exports"
	defaultDBPath = "spacey.db"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "fitness":
		return runFitness(ctx, args[1:])
	case "champion":
		return runChampion(ctx, args[1:])
	case "plot":
		return runPlot(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

// clientFlags are shared by every subcommand that opens a client.
type clientFlags struct {
	storeKind *string
	dbPath    *string
	logLevel  *string
	logJSON   *bool
}

func addClientFlags(fs *flag.FlagSet) clientFlags {
	return clientFlags{
		storeKind: fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite"),
		dbPath:    fs.String("db-path", defaultDBPath, "sqlite database path"),
		logLevel:  fs.String("log-level", "info", "log level: debug|info|warn|error"),
		logJSON:   fs.Bool("log-json", false, "emit logs as JSON"),
	}
}

func (f clientFlags) open() (*spaceyapi.Client, error) {
	logger, err := newLogger(os.Stderr, *f.logLevel, *f.logJSON)
	if err != nil {
		return nil, err
	}
	return spaceyapi.New(spaceyapi.Options{
		StoreKind:    *f.storeKind,
		DBPath:       *f.dbPath,
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
		Logger:       logger,
	})
}

func newLogger(w io.Writer, level string, jsonOut bool) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if jsonOut {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional run config JSON path")
	population := fs.Int("pop", 50, "population size")
	generations := fs.Int("gens", 10, "generation count")
	workers := fs.Int("workers", 0, "worker count (0 uses GOMAXPROCS)")
	seed := fs.Int64("seed", 1, "rng seed")
	dt := fs.Float64("dt", stadium.DefaultDT, "simulation step in seconds")
	timeCeiling := fs.Float64("time-ceiling", 90, "simulated seconds per generation")
	tickTimeout := fs.Duration("tick-timeout", 0, "abort when a tick takes longer than this (0 disables)")
	smoke := fs.Bool("smoke", false, "simulate exhaust particles")
	activation := fs.String("activation", "tanh", "controller activation function")
	selectionName := fs.String("selection", "elite", "parent selection strategy: elite|tournament")
	mutationName := fs.String("mutation", "gaussian", "mutation operator: "+strings.Join(evo.ListMutations(), "|"))
	mutationRate := fs.Float64("mutation-rate", 0, "per-gene mutation probability (0 keeps the operator default)")
	mutationSigma := fs.Float64("mutation-sigma", 0, "mutation magnitude (0 keeps the operator default)")
	dnaIn := fs.String("dna-in", "", "preload population parameters from this file")
	dnaOut := fs.String("dna-out", "", "write the final population parameters to this file")
	quiet := fs.Bool("quiet", false, "suppress per-generation progress")
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	req, err := loadOrDefaultRunRequest(*configPath)
	if err != nil {
		return err
	}
	if *configPath == "" {
		req = spaceyapi.RunRequest{
			Population:    *population,
			Generations:   *generations,
			Workers:       *workers,
			Seed:          *seed,
			DT:            *dt,
			TimeCeiling:   *timeCeiling,
			TickTimeout:   *tickTimeout,
			Smoke:         *smoke,
			Activation:    *activation,
			Selection:     *selectionName,
			Mutation:      *mutationName,
			MutationRate:  *mutationRate,
			MutationSigma: *mutationSigma,
			DNAIn:         *dnaIn,
			DNAOut:        *dnaOut,
		}
	} else {
		err := overrideFromFlags(&req, setFlags, map[string]any{
			"pop":            *population,
			"gens":           *generations,
			"workers":        *workers,
			"seed":           *seed,
			"dt":             *dt,
			"time-ceiling":   *timeCeiling,
			"tick-timeout":   *tickTimeout,
			"smoke":          *smoke,
			"activation":     *activation,
			"selection":      *selectionName,
			"mutation":       *mutationName,
			"mutation-rate":  *mutationRate,
			"mutation-sigma": *mutationSigma,
			"dna-in":         *dnaIn,
			"dna-out":        *dnaOut,
		})
		if err != nil {
			return err
		}
	}
	if req.Population < 0 || req.Generations < 0 {
		return errors.New("pop and gens must be >= 0")
	}
	if !*quiet {
		req.Progress = newProgressPrinter(os.Stdout, req.Generations)
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	started := time.Now()
	summary, err := client.Run(ctx, req)
	if req.Progress != nil && len(summary.Generations) > 0 {
		finishProgress(os.Stdout)
	}
	if err != nil {
		if summary.RunID != "" {
			fmt.Printf("run interrupted run_id=%s completed_generations=%d\n", summary.RunID, len(summary.Generations))
		}
		return err
	}

	fmt.Printf("run completed run_id=%s pop=%d gens=%d seed=%d elapsed=%s\n",
		summary.RunID, req.Population, len(summary.Generations), req.Seed, time.Since(started).Round(time.Millisecond))
	if summary.LoadedDNA > 0 {
		fmt.Printf("dna_loaded=%d\n", summary.LoadedDNA)
	}
	fmt.Printf("final_best_fitness=%s\n", formatFitness(summary.FinalBestFitness))
	fmt.Printf("artifacts_dir=%s\n", filepath.Clean(summary.ArtifactsDir))
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit runs as JSON")
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit < 0 {
		*limit = 0
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, *limit)
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(os.Stdout, runs)
	}
	if len(runs) == 0 {
		fmt.Println("no runs")
		return nil
	}
	for _, r := range runs {
		fmt.Printf("run_id=%s created=%s pop=%d gens=%d/%d seed=%d best_fitness=%s selection=%s mutation=%s\n",
			r.ID,
			humanize.Time(r.CreatedAt),
			r.PopulationSize,
			r.CompletedGenerations,
			r.Generations,
			r.Seed,
			formatFitness(r.BestFitness),
			r.Selection,
			r.Mutation,
		)
	}
	return nil
}

func runFitness(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id (defaults to the most recent run)")
	limit := fs.Int("limit", 50, "max generations to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit fitness history as JSON")
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.FitnessHistory(ctx, *runID)
	if err != nil {
		return err
	}
	if *limit > 0 && len(history) > *limit {
		history = history[:*limit]
	}
	if *jsonOut {
		return writeJSON(os.Stdout, history)
	}
	if len(history) == 0 {
		fmt.Println("no fitness history")
		return nil
	}
	for _, g := range history {
		fmt.Println(formatGeneration(g))
	}
	return nil
}

func runChampion(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("champion", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id (defaults to the most recent run)")
	jsonOut := fs.Bool("json", false, "emit the champion including its parameters as JSON")
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	champion, err := client.Champion(ctx, *runID)
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(os.Stdout, champion)
	}
	fmt.Printf("run_id=%s generation=%d fitness=%s architecture=%v parameters=%s\n",
		champion.RunID,
		champion.Generation,
		formatFitness(champion.Fitness),
		champion.Architecture,
		humanize.Comma(int64(len(champion.DNA))),
	)
	return nil
}

func runPlot(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("plot", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id (defaults to the most recent run)")
	outDir := fs.String("out", exportsDir, "output directory")
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.open()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, *runID, *outDir)
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s dir=%s\n", exported.RunID, filepath.Clean(exported.Directory))
	fmt.Printf("plot=%s\nchart=%s\n", filepath.Clean(exported.Plot), filepath.Clean(exported.Chart))
	return nil
}

// newProgressPrinter rewrites a single status line on terminals and prints
// one line per generation otherwise.
func newProgressPrinter(w *os.File, total int) func(model.GenerationRecord) {
	tty := isatty.IsTerminal(w.Fd()) || isatty.IsCygwinTerminal(w.Fd())
	return func(g model.GenerationRecord) {
		line := fmt.Sprintf("[%d/%d] %s", g.Generation+1, total, formatGeneration(g))
		if tty {
			fmt.Fprintf(w, "\r\033[K%s", line)
			return
		}
		fmt.Fprintln(w, line)
	}
}

func finishProgress(w *os.File) {
	if isatty.IsTerminal(w.Fd()) || isatty.IsCygwinTerminal(w.Fd()) {
		fmt.Fprintln(w)
	}
}

func formatGeneration(g model.GenerationRecord) string {
	return fmt.Sprintf("generation=%d best=%s mean=%s min=%s alive=%d sim_time=%.2fs ticks=%s stop=%s",
		g.Generation,
		formatFitness(g.BestFitness),
		formatFitness(g.MeanFitness),
		formatFitness(g.MinFitness),
		g.Alive,
		g.SimTime,
		humanize.Comma(int64(g.Ticks)),
		g.StopReason,
	)
}

func formatFitness(v float64) string {
	return humanize.FtoaWithDigits(v, 4)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: spaceyctl <run|runs|fitness|champion|plot> [flags]", msg)
}
