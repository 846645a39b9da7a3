package spacey

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"spacey/internal/dna"
	"spacey/internal/model"
	"spacey/internal/nn"
	"spacey/internal/stadium"
	"spacey/internal/stats"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	return newTestClientAt(t, t.TempDir())
}

func newTestClientAt(t *testing.T, base string) *Client {
	t.Helper()
	client, err := New(Options{
		StoreKind:    "memory",
		ArtifactsDir: filepath.Join(base, "runs"),
		ExportsDir:   filepath.Join(base, "exports"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func smallRun() RunRequest {
	return RunRequest{
		Population:  6,
		Generations: 3,
		Workers:     2,
		Seed:        7,
		DT:          0.02,
		TimeCeiling: 2,
	}
}

func TestRunPersistsGenerationsChampionAndArtifacts(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	var progress []int
	req := smallRun()
	req.Progress = func(g model.GenerationRecord) { progress = append(progress, g.Generation) }

	summary, err := client.Run(ctx, req)
	require.NoError(t, err)
	require.NotEmpty(t, summary.RunID)
	require.Len(t, summary.Generations, 3)
	require.Equal(t, []int{0, 1, 2}, progress)

	for i, g := range summary.Generations {
		require.Equal(t, i, g.Generation)
		require.Equal(t, summary.RunID, g.RunID)
		require.GreaterOrEqual(t, g.BestFitness, g.MeanFitness)
		require.GreaterOrEqual(t, g.MeanFitness, g.MinFitness)
		require.LessOrEqual(t, g.SimTime, req.TimeCeiling+req.DT)
		require.Contains(t, []string{string(stadium.StopExtinct), string(stadium.StopTimeCeiling)}, g.StopReason)
	}

	runs, err := client.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, summary.RunID, runs[0].ID)
	require.Equal(t, 3, runs[0].CompletedGenerations)
	require.Equal(t, "elite", runs[0].Selection)
	require.Equal(t, "gaussian", runs[0].Mutation)
	require.Equal(t, summary.FinalBestFitness, runs[0].BestFitness)

	history, err := client.FitnessHistory(ctx, "")
	require.NoError(t, err)
	if diff := cmp.Diff(summary.Generations, history); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}

	champion, err := client.Champion(ctx, summary.RunID)
	require.NoError(t, err)
	require.Len(t, champion.DNA, nn.ParameterCount(nn.DefaultArchitecture))
	require.Equal(t, summary.FinalBestFitness, champion.Fitness)
	for _, g := range summary.Generations {
		require.LessOrEqual(t, g.BestFitness, champion.Fitness)
	}

	for _, file := range []string{"config.json", "generations.json", "champion.json", "fitness_series.csv"} {
		_, err := os.Stat(filepath.Join(summary.ArtifactsDir, file))
		require.NoError(t, err, file)
	}
	index, err := stats.ListRunIndex(client.artifactsDir)
	require.NoError(t, err)
	require.Len(t, index, 1)
	require.Equal(t, summary.RunID, index[0].RunID)
}

func TestRunIsDeterministicAcrossWorkerCounts(t *testing.T) {
	ctx := context.Background()

	req := smallRun()
	req.Workers = 1
	a, err := newTestClient(t).Run(ctx, req)
	require.NoError(t, err)

	req.Workers = 3
	b, err := newTestClient(t).Run(ctx, req)
	require.NoError(t, err)

	if diff := cmp.Diff(a.BestByGeneration, b.BestByGeneration); diff != "" {
		t.Fatalf("best fitness differs between worker counts (-1 +3):\n%s", diff)
	}
}

func TestRunDNARoundTrip(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "population.dna")

	req := smallRun()
	req.Generations = 1
	req.DNAOut = path
	_, err := client.Run(ctx, req)
	require.NoError(t, err)

	count, err := dna.Count(path, dna.RecordBytes(nn.ParameterCount(nn.DefaultArchitecture)))
	require.NoError(t, err)
	require.Equal(t, req.Population, count)

	req.DNAOut = ""
	req.DNAIn = path
	req.Population = 10
	summary, err := client.Run(ctx, req)
	require.NoError(t, err)
	require.Equal(t, 6, summary.LoadedDNA)
}

func TestRunRefusesMismatchedDNA(t *testing.T) {
	client := newTestClient(t)
	path := filepath.Join(t.TempDir(), "bad.dna")
	require.NoError(t, dna.WriteAll(path, []dna.DNA{{1, 2, 3}}))

	req := smallRun()
	req.DNAIn = path
	_, err := client.Run(context.Background(), req)
	require.Error(t, err)
	var cfgErr *dna.ConfigurationError
	require.True(t, errors.As(err, &cfgErr), "expected configuration error, got %v", err)

	runs, err := client.Runs(context.Background(), 0)
	require.NoError(t, err)
	require.Empty(t, runs)
}

func TestRunCancelledKeepsRunRecord(t *testing.T) {
	client := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := client.Run(ctx, smallRun())
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, summary.Generations)

	runs, err := client.Runs(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, 0, runs[0].CompletedGenerations)
}

func TestRunRejectsUnknownOperators(t *testing.T) {
	client := newTestClient(t)

	req := smallRun()
	req.Selection = "roulette"
	_, err := client.Run(context.Background(), req)
	require.Error(t, err)

	req = smallRun()
	req.Mutation = "scramble"
	_, err = client.Run(context.Background(), req)
	require.Error(t, err)
}

func TestRunRecordsTunedMutation(t *testing.T) {
	client := newTestClient(t)
	req := smallRun()
	req.Generations = 1
	req.Mutation = "gaussian_reset"
	req.MutationRate = 0.2
	req.MutationSigma = 0.5
	req.Selection = "tournament"

	summary, err := client.Run(context.Background(), req)
	require.NoError(t, err)

	cfg, ok, err := stats.ReadRunConfig(client.artifactsDir, summary.RunID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "gaussian_reset", cfg.Mutation)
	require.Equal(t, "tournament", cfg.Selection)
	require.Equal(t, 0.2, cfg.MutationRate)
	require.Equal(t, 0.5, cfg.MutationSigma)
}

func TestWithDefaults(t *testing.T) {
	req := withDefaults(RunRequest{})
	require.Equal(t, 50, req.Population)
	require.Equal(t, 10, req.Generations)
	require.Equal(t, 0.007, req.DT)
	require.Equal(t, stadium.DefaultConfig().TimeCeiling, req.TimeCeiling)
	require.Equal(t, "elite", req.Selection)
	require.Equal(t, "gaussian", req.Mutation)

	req = withDefaults(RunRequest{DT: 0.02})
	require.Equal(t, 0.02, req.DT)
}

func TestQueriesWithoutRuns(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.FitnessHistory(ctx, "")
	require.ErrorIs(t, err, ErrNoRuns)
	_, err = client.Champion(ctx, "")
	require.ErrorIs(t, err, ErrNoRuns)
	_, err = client.FitnessHistory(ctx, "missing")
	require.Error(t, err)
	_, err = client.Runs(ctx, -1)
	require.Error(t, err)
}

func TestExportWritesCharts(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	summary, err := client.Run(ctx, smallRun())
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "out")
	exported, err := client.Export(ctx, summary.RunID, out)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(out, summary.RunID), exported.Directory)

	for _, file := range []string{stats.FitnessPlotFile, stats.FitnessChartFile, "config.json", "generations.json", "fitness_series.csv"} {
		info, err := os.Stat(filepath.Join(exported.Directory, file))
		require.NoError(t, err, file)
		require.Positive(t, info.Size(), file)
	}
}

func TestQueriesFallBackToArtifactsOfEarlierProcess(t *testing.T) {
	base := t.TempDir()
	ctx := context.Background()

	summary, err := newTestClientAt(t, base).Run(ctx, smallRun())
	require.NoError(t, err)

	// A fresh memory store has no records; everything comes from disk.
	reader := newTestClientAt(t, base)

	runs, err := reader.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, summary.RunID, runs[0].ID)
	require.Equal(t, 3, runs[0].CompletedGenerations)
	require.Equal(t, "elite", runs[0].Selection)
	require.Equal(t, nn.DefaultArchitecture, runs[0].Architecture)
	require.Equal(t, summary.FinalBestFitness, runs[0].BestFitness)
	require.False(t, runs[0].CreatedAt.IsZero())

	history, err := reader.FitnessHistory(ctx, "")
	require.NoError(t, err)
	if diff := cmp.Diff(summary.Generations, history); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}

	champion, err := reader.Champion(ctx, "")
	require.NoError(t, err)
	if diff := cmp.Diff(summary.Champion, champion); diff != "" {
		t.Fatalf("champion mismatch (-want +got):\n%s", diff)
	}

	exported, err := reader.Export(ctx, "", filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	require.Equal(t, summary.RunID, exported.RunID)
	_, err = os.Stat(exported.Plot)
	require.NoError(t, err)
}
