package spacey

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"spacey/internal/dna"
	"spacey/internal/evo"
	"spacey/internal/model"
	"spacey/internal/nn"
	"spacey/internal/stadium"
	"spacey/internal/stats"
	"spacey/internal/storage"
	"spacey/internal/swarm"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "spacey.db"
	defaultActivation   = "tanh"
)

var ErrNoRuns = errors.New("no runs available")

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	Logger       *slog.Logger
}

type Client struct {
	store  storage.Store
	logger *slog.Logger

	initMu      sync.Mutex
	initialized bool

	artifactsDir string
	exportsDir   string
}

type RunRequest struct {
	Population    int
	Generations   int
	Workers       int
	Seed          int64
	DT            float64
	TimeCeiling   float64
	TickTimeout   time.Duration
	Smoke         bool
	Activation    string
	Selection     string
	Mutation      string
	MutationRate  float64
	MutationSigma float64
	// DNAIn preloads population slots from a parameter file before the
	// first generation.
	DNAIn string
	// DNAOut receives the parameters of the last simulated population.
	DNAOut string
	// Progress, when set, is called after every simulated generation.
	Progress func(model.GenerationRecord)
}

type RunSummary struct {
	RunID            string
	ArtifactsDir     string
	LoadedDNA        int
	Generations      []model.GenerationRecord
	BestByGeneration []float64
	FinalBestFitness float64
	Champion         model.ChampionRecord
}

type ExportSummary struct {
	RunID     string
	Directory string
	Plot      string
	Chart     string
}

func New(opts Options) (*Client, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	store, err := storage.NewStore(opts.StoreKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		logger:       logger,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) ensureStore(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	c.initialized = true
	return nil
}

// Run evolves req.Generations generations and records each of them. When ctx
// is cancelled the generations completed so far are still persisted and the
// returned error wraps ctx.Err().
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	req = withDefaults(req)
	if err := validateRequest(req); err != nil {
		return RunSummary{}, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return RunSummary{}, err
	}

	selectorCfg, err := selectorConfigFromRequest(req)
	if err != nil {
		return RunSummary{}, err
	}
	arch := nn.DefaultArchitecture
	selector, err := evo.NewSelector(selectorCfg, stadium.RocketFactory(arch, req.Activation))
	if err != nil {
		return RunSummary{}, fmt.Errorf("build population: %w", err)
	}

	pool := swarm.New(req.Workers)
	stadiumCfg := stadium.DefaultConfig()
	stadiumCfg.TimeCeiling = req.TimeCeiling
	stadiumCfg.TickTimeout = req.TickTimeout
	stadiumCfg.Seed = req.Seed

	runID := uuid.NewString()
	logger := c.logger.With("run_id", runID)
	st, err := stadium.New(stadiumCfg, selector, pool, logger)
	if err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{RunID: runID}
	if req.DNAIn != "" {
		loaded, err := st.LoadDNAFromFile(req.DNAIn)
		if err != nil {
			var cfgErr *dna.ConfigurationError
			if errors.As(err, &cfgErr) {
				return RunSummary{}, fmt.Errorf("dna file does not match the %v controller: %w", arch, err)
			}
			return RunSummary{}, err
		}
		summary.LoadedDNA = loaded
	}

	run := model.RunRecord{
		VersionedRecord: storage.Versioned(),
		ID:              runID,
		CreatedAt:       time.Now().UTC(),
		Seed:            req.Seed,
		PopulationSize:  req.Population,
		Generations:     req.Generations,
		Workers:         pool.Workers(),
		DT:              req.DT,
		TimeCeiling:     req.TimeCeiling,
		Architecture:    append([]int(nil), arch...),
		Selection:       selectorCfg.Parent.Name(),
		Mutation:        selectorCfg.Mutation.Name(),
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return RunSummary{}, fmt.Errorf("save run: %w", err)
	}
	logger.Info("run start",
		"population", req.Population,
		"generations", req.Generations,
		"workers", pool.Workers(),
		"selection", run.Selection,
		"mutation", run.Mutation,
	)

	champion := model.ChampionRecord{
		VersionedRecord: storage.Versioned(),
		RunID:           runID,
		Architecture:    append([]int(nil), arch...),
		Generation:      -1,
	}
	var runErr error
	for g := 0; g < req.Generations; g++ {
		result, err := st.RunIteration(ctx, req.DT, req.Smoke)
		if err != nil {
			runErr = fmt.Errorf("generation %d: %w", g, err)
			break
		}
		if result.Reason == stadium.StopCancelled {
			runErr = fmt.Errorf("generation %d: %w", g, ctx.Err())
			break
		}

		record := generationRecord(runID, result)
		// Storage writes must land even when ctx is cancelled mid-run.
		if err := c.store.AppendGeneration(context.WithoutCancel(ctx), record); err != nil {
			runErr = fmt.Errorf("append generation %d: %w", g, err)
			break
		}
		summary.Generations = append(summary.Generations, record)
		summary.BestByGeneration = append(summary.BestByGeneration, record.BestFitness)

		if top := selector.Rank()[0]; champion.Generation < 0 || top.Fitness > champion.Fitness {
			champion.Generation = result.Generation
			champion.Fitness = top.Fitness
			champion.DNA = append([]float32(nil), top.DNA...)
		}
		if req.Progress != nil {
			req.Progress(record)
		}

		if g == req.Generations-1 {
			break
		}
		if err := st.NextIteration(); err != nil {
			runErr = fmt.Errorf("breed generation %d: %w", g+1, err)
			break
		}
	}

	if err := c.finishRun(context.WithoutCancel(ctx), req, selectorCfg, st, run, champion, &summary); err != nil {
		return summary, errors.Join(runErr, err)
	}
	return summary, runErr
}

func (c *Client) finishRun(ctx context.Context, req RunRequest, selectorCfg evo.SelectorConfig, st *stadium.Stadium, run model.RunRecord, champion model.ChampionRecord, summary *RunSummary) error {
	run.CompletedGenerations = len(summary.Generations)
	if champion.Generation >= 0 {
		run.BestFitness = champion.Fitness
		summary.FinalBestFitness = champion.Fitness
		summary.Champion = champion
		if err := c.store.SaveChampion(ctx, champion); err != nil {
			return fmt.Errorf("save champion: %w", err)
		}
	}
	if err := c.store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	artifacts := stats.RunArtifacts{
		Config:      runConfig(run, req, selectorCfg),
		Generations: summary.Generations,
	}
	if champion.Generation >= 0 {
		artifacts.Champion = &champion
	}
	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, artifacts)
	if err != nil {
		return fmt.Errorf("write artifacts: %w", err)
	}
	summary.ArtifactsDir = runDir
	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:            run.ID,
		PopulationSize:   run.PopulationSize,
		Generations:      run.CompletedGenerations,
		Seed:             run.Seed,
		Workers:          run.Workers,
		FinalBestFitness: run.BestFitness,
		CreatedAtUTC:     run.CreatedAt.Format(time.RFC3339Nano),
	}); err != nil {
		return fmt.Errorf("update run index: %w", err)
	}

	if req.DNAOut != "" {
		if err := st.SaveDNAToFile(req.DNAOut); err != nil {
			return fmt.Errorf("save dna: %w", err)
		}
		c.logger.Info("dna saved", "run_id", run.ID, "path", req.DNAOut)
	}
	c.logger.Info("run done",
		"run_id", run.ID,
		"generations", run.CompletedGenerations,
		"best_fitness", run.BestFitness,
		"artifacts", runDir,
	)
	return nil
}

// Runs lists stored runs newest first.
func (c *Client) Runs(ctx context.Context, limit int) ([]model.RunRecord, error) {
	if limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	runs, err := c.store.ListRuns(ctx, limit)
	if err != nil || len(runs) > 0 {
		return runs, err
	}
	return c.runsFromArtifacts(limit)
}

// runsFromArtifacts rebuilds run records from the on-disk run index. A
// memory store only knows the runs of its own process, while the artifacts
// directory outlives it.
func (c *Client) runsFromArtifacts(limit int) ([]model.RunRecord, error) {
	index, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, fmt.Errorf("read run index: %w", err)
	}
	runs := make([]model.RunRecord, 0, len(index))
	for _, entry := range index {
		if limit > 0 && len(runs) == limit {
			break
		}
		run := model.RunRecord{
			VersionedRecord:      storage.Versioned(),
			ID:                   entry.RunID,
			Seed:                 entry.Seed,
			PopulationSize:       entry.PopulationSize,
			Generations:          entry.Generations,
			CompletedGenerations: entry.Generations,
			Workers:              entry.Workers,
			BestFitness:          entry.FinalBestFitness,
		}
		if created, err := time.Parse(time.RFC3339Nano, entry.CreatedAtUTC); err == nil {
			run.CreatedAt = created
		}
		cfg, ok, err := stats.ReadRunConfig(c.artifactsDir, entry.RunID)
		if err != nil {
			return nil, fmt.Errorf("read config of run %s: %w", entry.RunID, err)
		}
		if ok {
			run.Generations = cfg.Generations
			run.DT = cfg.DT
			run.TimeCeiling = cfg.TimeCeiling
			run.Architecture = cfg.Architecture
			run.Selection = cfg.Selection
			run.Mutation = cfg.Mutation
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// FitnessHistory returns the generation records of runID, or of the newest
// run when runID is empty.
func (c *Client) FitnessHistory(ctx context.Context, runID string) ([]model.GenerationRecord, error) {
	runID, err := c.resolveRunID(ctx, runID)
	if err != nil {
		return nil, err
	}
	generations, ok, err := c.store.GetGenerations(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		generations, ok, err = stats.ReadGenerations(c.artifactsDir, runID)
		if err != nil {
			return nil, fmt.Errorf("read generations of run %s: %w", runID, err)
		}
	}
	if !ok {
		return nil, fmt.Errorf("fitness history not found for run id: %s", runID)
	}
	return generations, nil
}

// Champion returns the best controller of runID, or of the newest run when
// runID is empty.
func (c *Client) Champion(ctx context.Context, runID string) (model.ChampionRecord, error) {
	runID, err := c.resolveRunID(ctx, runID)
	if err != nil {
		return model.ChampionRecord{}, err
	}
	champion, ok, err := c.store.GetChampion(ctx, runID)
	if err != nil {
		return model.ChampionRecord{}, err
	}
	if !ok {
		champion, ok, err = stats.ReadChampion(c.artifactsDir, runID)
		if err != nil {
			return model.ChampionRecord{}, fmt.Errorf("read champion of run %s: %w", runID, err)
		}
	}
	if !ok {
		return model.ChampionRecord{}, fmt.Errorf("champion not found for run id: %s", runID)
	}
	return champion, nil
}

// Export renders the fitness history of a run as a png plot and an html
// chart under outDir/<run id>, together with the run artifacts when they are
// available locally.
func (c *Client) Export(ctx context.Context, runID, outDir string) (ExportSummary, error) {
	generations, err := c.FitnessHistory(ctx, runID)
	if err != nil {
		return ExportSummary{}, err
	}
	if len(generations) == 0 {
		return ExportSummary{}, fmt.Errorf("run %s has no generations to export", runID)
	}
	runID = generations[0].RunID
	if outDir == "" {
		outDir = c.exportsDir
	}

	srcDir := filepath.Join(c.artifactsDir, runID)
	haveArtifacts := true
	if _, err := os.Stat(srcDir); err != nil {
		if !os.IsNotExist(err) {
			return ExportSummary{}, err
		}
		haveArtifacts = false
		srcDir = filepath.Join(outDir, runID)
		if err := os.MkdirAll(srcDir, 0o755); err != nil {
			return ExportSummary{}, err
		}
	}

	title := "spacey run " + runID
	if err := stats.PlotFitnessHistory(filepath.Join(srcDir, stats.FitnessPlotFile), title, generations); err != nil {
		return ExportSummary{}, fmt.Errorf("plot fitness: %w", err)
	}
	chart, err := os.Create(filepath.Join(srcDir, stats.FitnessChartFile))
	if err != nil {
		return ExportSummary{}, err
	}
	if err := stats.RenderFitnessChart(chart, title, generations); err != nil {
		_ = chart.Close()
		return ExportSummary{}, fmt.Errorf("render chart: %w", err)
	}
	if err := chart.Close(); err != nil {
		return ExportSummary{}, err
	}

	dir := srcDir
	if haveArtifacts {
		dir, err = stats.ExportRunArtifacts(c.artifactsDir, runID, outDir)
		if err != nil {
			return ExportSummary{}, err
		}
	}
	return ExportSummary{
		RunID:     runID,
		Directory: dir,
		Plot:      filepath.Join(dir, stats.FitnessPlotFile),
		Chart:     filepath.Join(dir, stats.FitnessChartFile),
	}, nil
}

func (c *Client) resolveRunID(ctx context.Context, runID string) (string, error) {
	if err := c.ensureStore(ctx); err != nil {
		return "", err
	}
	if runID != "" {
		return runID, nil
	}
	runs, err := c.store.ListRuns(ctx, 1)
	if err != nil {
		return "", err
	}
	if len(runs) > 0 {
		return runs[0].ID, nil
	}
	index, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return "", fmt.Errorf("read run index: %w", err)
	}
	if len(index) == 0 {
		return "", ErrNoRuns
	}
	return index[0].RunID, nil
}

func withDefaults(req RunRequest) RunRequest {
	if req.Population <= 0 {
		req.Population = 50
	}
	if req.Generations <= 0 {
		req.Generations = 10
	}
	if req.DT <= 0 {
		req.DT = stadium.DefaultDT
	}
	if req.TimeCeiling <= 0 {
		req.TimeCeiling = stadium.DefaultConfig().TimeCeiling
	}
	if req.Activation == "" {
		req.Activation = defaultActivation
	}
	if req.Selection == "" {
		req.Selection = "elite"
	}
	if req.Mutation == "" {
		req.Mutation = evo.GaussianMutation{}.Name()
	}
	return req
}

func validateRequest(req RunRequest) error {
	if req.Workers < 0 {
		return errors.New("workers must be >= 0")
	}
	if req.MutationRate < 0 || req.MutationRate > 1 {
		return fmt.Errorf("mutation rate must be in [0, 1], got %v", req.MutationRate)
	}
	if req.MutationSigma < 0 {
		return fmt.Errorf("mutation sigma must be >= 0, got %v", req.MutationSigma)
	}
	if req.TickTimeout < 0 {
		return errors.New("tick timeout must be >= 0")
	}
	return nil
}

func selectorConfigFromRequest(req RunRequest) (evo.SelectorConfig, error) {
	cfg := evo.DefaultSelectorConfig(req.Population)
	cfg.Seed = req.Seed

	parent, err := evo.ResolveParentSelector(req.Selection)
	if err != nil {
		return evo.SelectorConfig{}, err
	}
	cfg.Parent = parent

	mutation, err := evo.ResolveMutation(req.Mutation)
	if err != nil {
		return evo.SelectorConfig{}, err
	}
	cfg.Mutation = tuneMutation(mutation, req.MutationRate, req.MutationSigma)
	return cfg, nil
}

// tuneMutation overrides the registered defaults with explicit non-zero
// rate and sigma values.
func tuneMutation(m evo.Mutation, rate, sigma float64) evo.Mutation {
	switch op := m.(type) {
	case evo.GaussianMutation:
		if rate > 0 {
			op.Rate = rate
		}
		if sigma > 0 {
			op.Sigma = sigma
		}
		return op
	case evo.ResetMutation:
		if rate > 0 {
			op.Rate = rate
		}
		if sigma > 0 {
			op.Sigma = sigma
		}
		return op
	case evo.PerturbProportional:
		if sigma > 0 {
			op.MaxDelta = sigma
		}
		return op
	default:
		return m
	}
}

func generationRecord(runID string, result stadium.IterationResult) model.GenerationRecord {
	s := stats.Summarize(result.Fitness)
	return model.GenerationRecord{
		VersionedRecord: storage.Versioned(),
		RunID:           runID,
		Generation:      result.Generation,
		BestFitness:     result.BestFitness,
		MeanFitness:     s.Mean,
		MedianFitness:   s.Median,
		MinFitness:      s.Min,
		StdFitness:      s.Std,
		Alive:           result.Alive,
		SimTime:         result.Time,
		Ticks:           result.Ticks,
		StopReason:      string(result.Reason),
	}
}

func runConfig(run model.RunRecord, req RunRequest, selectorCfg evo.SelectorConfig) stats.RunConfig {
	rate, sigma := mutationParams(selectorCfg.Mutation)
	return stats.RunConfig{
		RunID:          run.ID,
		PopulationSize: run.PopulationSize,
		Generations:    run.Generations,
		Seed:           run.Seed,
		Workers:        run.Workers,
		DT:             run.DT,
		TimeCeiling:    run.TimeCeiling,
		Smoke:          req.Smoke,
		Architecture:   run.Architecture,
		Activation:     req.Activation,
		Selection:      run.Selection,
		Mutation:       run.Mutation,
		MutationRate:   rate,
		MutationSigma:  sigma,
		SurvivorRatio:  selectorCfg.SurvivorRatio,
		ParentRatio:    selectorCfg.ParentRatio,
		DNAIn:          req.DNAIn,
		DNAOut:         req.DNAOut,
	}
}

func mutationParams(m evo.Mutation) (rate, sigma float64) {
	switch op := m.(type) {
	case evo.GaussianMutation:
		return op.Rate, op.Sigma
	case evo.ResetMutation:
		return op.Rate, op.Sigma
	case evo.PerturbProportional:
		return 0, op.MaxDelta
	}
	return 0, 0
}
