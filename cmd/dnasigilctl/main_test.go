package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dnasigil/internal/model"
	"dnasigil/internal/stats"
	"dnasigil/pkg/dnasigil"
)

type cli struct {
	t    *testing.T
	base []string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	t.Setenv("DNASIGIL_LOG_LEVEL", "error")
	return &cli{t: t, base: []string{"--store", "badger", "--db", filepath.Join(t.TempDir(), "data"), "--seed", "9"}}
}

func (c *cli) run(args ...string) ([]byte, error) {
	c.t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(append([]string{}, c.base...), args...))
	err := cmd.ExecuteContext(context.Background())
	return out.Bytes(), err
}

func (c *cli) mustRun(v any, args ...string) {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, "dnasigilctl %s\n%s", strings.Join(args, " "), out)
	if v != nil {
		require.NoError(c.t, json.Unmarshal(out, v), "decode output of %s:\n%s", args[0], out)
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestCommandsRoundTripThroughBadger(t *testing.T) {
	c := newCLI(t)
	entityA := writeFile(t, "a.yaml", `
id: source-a
consciousness_state:
  phi: 0.8
  awareness: 0.8
  coherence: 0.8
  integration: 0.8
`)
	entityB := writeFile(t, "b.json", `{"id": "source-b", "consciousness_state": {"phi": 0.81, "awareness": 0.79, "coherence": 0.8, "integration": 0.8}}`)

	var a, b model.EncodedEntity
	c.mustRun(&a, "encode", entityA)
	c.mustRun(&b, "encode", entityB)
	assert.Equal(t, "source-a", a.OriginalEntityID)
	assert.Equal(t, "source-b", b.OriginalEntityID)

	pressures := writeFile(t, "pressures.yaml", "consciousness:\n  phi: 0.9\n")
	var evolved dnasigil.EvolveResult
	c.mustRun(&evolved, "evolve", a.ID, "--pressures", pressures, "--generations", "3")
	assert.Equal(t, 3, evolved.Entity.EvolutionGeneration)
	assert.Equal(t, 0.9, evolved.Pressures.Consciousness.Phi)

	damage := writeFile(t, "damage.yaml", "consciousness_disruption: 0.5\nmarker_loss: 0.4\n")
	var healed dnasigil.HealResult
	c.mustRun(&healed, "heal", a.ID, "--damage", damage)
	assert.Equal(t, 1, healed.Entity.HealingCount)

	var result model.InteractionResult
	c.mustRun(&result, "interact", a.ID, b.ID, "--context", "pairing")
	assert.Equal(t, "pairing", result.Context)

	var lines []historyLine
	c.mustRun(&lines, "history", a.ID)
	kinds := map[string]int{}
	for _, line := range lines {
		kinds[line.Kind]++
		assert.NotEmpty(t, line.Age)
	}
	assert.Equal(t, map[string]int{"evolution": 3, "healing": 1, "interaction": 1}, kinds)

	c.mustRun(&lines, "history", b.ID, "--kind", "interaction")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0].Summary, a.ID)

	var metrics stats.EncodingMetrics
	c.mustRun(&metrics, "metrics")
	assert.Equal(t, 2, metrics.Count)
	assert.Equal(t, 1.5, metrics.AvgGeneration)
	assert.Equal(t, 1, metrics.TotalHealings)

	exports := t.TempDir()
	var exported map[string]string
	c.mustRun(&exported, "export", a.ID, "--out", exports)
	assert.Equal(t, filepath.Join(exports, a.ID), exported["dir"])
	_, err := os.Stat(filepath.Join(exported["dir"], "fitness_series.csv"))
	require.NoError(t, err)

	var index []stats.ExportIndexEntry
	c.mustRun(&index, "export", "--list", "--out", exports)
	require.Len(t, index, 1)
	assert.Equal(t, 3, index[0].Generation)
}

func TestUnknownEntityFails(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("evolve", "missing")
	require.ErrorIs(t, err, dnasigil.ErrNotFound)

	_, err = c.run("history", "missing", "--kind", "lineage")
	require.ErrorContains(t, err, "unknown history kind")
}

func TestEncodeRejectsUnknownFields(t *testing.T) {
	c := newCLI(t)
	path := writeFile(t, "bad.yaml", "id: x\nconsciousness: {}\n")
	_, err := c.run("encode", path)
	require.ErrorContains(t, err, "decode")
}

func TestEvolveRejectsZeroGenerations(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("evolve", "any", "--generations", "0")
	require.Error(t, err)
}

func TestInvalidStoreKind(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--store", "etcd", "metrics"})
	err := cmd.Execute()
	require.ErrorContains(t, err, "invalid config")
}

func TestMetricsFileWrittenOnExit(t *testing.T) {
	c := newCLI(t)
	entity := writeFile(t, "a.yaml", "id: source-a\n")
	metricsPath := filepath.Join(t.TempDir(), "dnasigil.prom")

	var a model.EncodedEntity
	c.mustRun(&a, "encode", entity, "--metrics-file", metricsPath)
	_, err := c.run("evolve", "missing", "--metrics-file", metricsPath)
	require.Error(t, err)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `dnasigil_operations_total{op="evolve",outcome="not_found"} 1`)
	assert.NotContains(t, string(data), `op="encode"`, "each invocation dumps its own counters")
}

func TestHistoryLinesRelativeAge(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	client, err := dnasigil.New(ctx, dnasigil.Options{StoreKind: "memory", Seed: 1, Clock: func() time.Time { return now.Add(-3 * time.Hour) }})
	require.NoError(t, err)
	defer client.Close()

	encoded, err := client.Encode(ctx, model.SourceEntity{ID: "src"}, dnasigil.EncodeParams{})
	require.NoError(t, err)
	_, err = client.Evolve(ctx, encoded.ID, model.Pressures{})
	require.NoError(t, err)

	lines, err := historyLines(ctx, client, encoded.ID, "evolution", now)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "3 hours ago", lines[0].Age)
	assert.Contains(t, lines[0].Summary, "generation 1")
}
