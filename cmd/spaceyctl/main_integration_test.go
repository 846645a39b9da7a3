//go:build sqlite

package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"spacey/internal/stats"
)

func TestSQLiteRunThenQueryCommands(t *testing.T) {
	workdir := chdirTemp(t)
	dbPath := filepath.Join(workdir, "spacey.db")
	common := []string{"--store", "sqlite", "--db-path", dbPath, "--log-level", "error"}

	runArgs := append([]string{"run", "--pop", "6", "--gens", "2", "--seed", "5", "--dt", "0.02", "--time-ceiling", "1", "--quiet"}, common...)
	if _, err := captureStdout(func() error { return run(context.Background(), runArgs) }); err != nil {
		t.Fatalf("run command: %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected sqlite db at %s: %v", dbPath, err)
	}
	entries, err := stats.ListRunIndex(artifactsDir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one indexed run, entries=%v err=%v", entries, err)
	}
	runID := entries[0].RunID

	output, err := captureStdout(func() error {
		return run(context.Background(), append([]string{"runs"}, common...))
	})
	if err != nil {
		t.Fatalf("runs command: %v", err)
	}
	if !strings.Contains(output, "run_id="+runID) || !strings.Contains(output, "gens=2/2") {
		t.Fatalf("unexpected runs output:\n%s", output)
	}

	output, err = captureStdout(func() error {
		return run(context.Background(), append([]string{"fitness", "--run-id", runID}, common...))
	})
	if err != nil {
		t.Fatalf("fitness command: %v", err)
	}
	if strings.Count(output, "generation=") != 2 {
		t.Fatalf("expected 2 generation lines, got:\n%s", output)
	}

	output, err = captureStdout(func() error {
		return run(context.Background(), append([]string{"champion"}, common...))
	})
	if err != nil {
		t.Fatalf("champion command: %v", err)
	}
	if !strings.Contains(output, "run_id="+runID) || !strings.Contains(output, "parameters=182") {
		t.Fatalf("unexpected champion output:\n%s", output)
	}

	outDir := filepath.Join(workdir, "charts")
	if _, err := captureStdout(func() error {
		return run(context.Background(), append([]string{"plot", "--out", outDir}, common...))
	}); err != nil {
		t.Fatalf("plot command: %v", err)
	}
	for _, file := range []string{stats.FitnessPlotFile, stats.FitnessChartFile} {
		if _, err := os.Stat(filepath.Join(outDir, runID, file)); err != nil {
			t.Fatalf("expected %s: %v", file, err)
		}
	}
}
