package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const smallConfigYAML = `problem: zdt1
dimensions: 3
seed: 5
metaepochs: 2
max_level: 1
max_sprouts_no: 2
sproutiveness: 1
delegates_no: 2
levels:
  - population_size: 10
    metaepoch_len: 2
    cost_modifier: 1
    min_progress_ratio: 0.5
    mutation_eta: 10
    crossover_eta: 15
    crossover_rate: 0.9
  - population_size: 5
    metaepoch_len: 1
    cost_modifier: 0.5
    min_progress_ratio: 0.1
    min_dist: 0.05
    mutation_eta: 20
    crossover_eta: 20
    crossover_rate: 0.9
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunWritesRecordAndInspectReadsIt(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "hms.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(smallConfigYAML), 0o644))
	recordPath := filepath.Join(dir, "run.json")

	out, err := execute(t, "run", "--config", configPath, "--run-id", "cli-run", "--metaepochs", "3", "--out", recordPath)
	require.NoError(t, err, out)
	assert.Equal(t, 3, strings.Count(out, "round="), out)
	assert.Contains(t, out, "run_id=cli-run problem=zdt1 rounds=3")
	require.FileExists(t, recordPath)

	out, err = execute(t, "show", "--file", recordPath)
	require.NoError(t, err)
	assert.Contains(t, out, "run_id=cli-run")
	assert.Contains(t, out, "node=0 level=0")

	out, err = execute(t, "population", "--file", recordPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], " | ")
}

func TestShowRequiresSource(t *testing.T) {
	_, err := execute(t, "show")
	assert.Error(t, err)
}

func TestRunsOnEmptyMemoryStore(t *testing.T) {
	out, err := execute(t, "runs")
	require.NoError(t, err)
	assert.Equal(t, "no runs found", strings.TrimSpace(out))

	_, err = execute(t, "runs", "--limit", "0")
	assert.Error(t, err)
}

func TestProblemsListsBenchmarks(t *testing.T) {
	out, err := execute(t, "problems")
	require.NoError(t, err)
	for _, name := range []string{"zdt1", "dtlz2", "kursawe"} {
		assert.Contains(t, out, name)
	}
}

func TestUnknownStoreFails(t *testing.T) {
	_, err := execute(t, "runs", "--store", "etcd")
	assert.Error(t, err)
}
