package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gobiodiv/adapters/excel"
	"gobiodiv/domain/stats"
	"gobiodiv/internal/config"
	"gobiodiv/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simulated(t *testing.T) string {
	t.Helper()
	cfg := testkit.DefaultCommunityConfig()
	cfg.SitesPerGroup = 6
	cfg.GroupEffect = 1.5
	path := filepath.Join(t.TempDir(), "plots.csv")
	var out bytes.Buffer
	require.NoError(t, runSimulate(cfg, path, &out))
	assert.Contains(t, out.String(), "wrote 12 sites")
	return path
}

func testOptions() analyzeOptions {
	a := config.DefaultAnalysis()
	a.NPerm = 50
	a.Seed = 11
	a.Workers = 2
	return analyzeOptions{analysis: a, reader: excel.DefaultReaderConfig()}
}

func TestSimulateToStdout(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runSimulate(testkit.DefaultCommunityConfig(), "", &out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 21)
	assert.True(t, strings.HasPrefix(lines[0], "site,group,"))
}

func TestAnalyzeWritesSummaryReportAndJSON(t *testing.T) {
	path := simulated(t)
	dir := t.TempDir()
	opts := testOptions()
	opts.plots = []string{"S"}
	opts.reportPath = filepath.Join(dir, "report.md")
	opts.jsonPath = filepath.Join(dir, "result.json")

	var out bytes.Buffer
	require.NoError(t, runAnalyze(context.Background(), path, opts, &out))
	text := out.String()
	assert.Contains(t, text, "plots: 12 sites, 25 species, groups [A B], seed 11")
	assert.Contains(t, text, "betaPIE")
	assert.Contains(t, text, "S per site by group")

	md, err := os.ReadFile(opts.reportPath)
	require.NoError(t, err)
	assert.Contains(t, string(md), "# plots")

	raw, err := os.ReadFile(opts.jsonPath)
	require.NoError(t, err)
	var bundle stats.ResultBundle
	require.NoError(t, json.Unmarshal(raw, &bundle))
	assert.Equal(t, 50, bundle.Params().NPerm)
	assert.Len(t, bundle.Sites(), 12)
}

func TestAnalyzeErrors(t *testing.T) {
	path := simulated(t)

	opts := testOptions()
	opts.analysis.GroupColumn = "habitat"
	assert.Error(t, runAnalyze(context.Background(), path, opts, &bytes.Buffer{}))

	opts = testOptions()
	opts.plots = []string{"Shannon"}
	assert.Error(t, runAnalyze(context.Background(), path, opts, &bytes.Buffer{}))

	opts = testOptions()
	opts.save = true
	assert.ErrorContains(t, runAnalyze(context.Background(), path, opts, &bytes.Buffer{}), "DATABASE_URL")

	assert.Error(t, runAnalyze(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), testOptions(), &bytes.Buffer{}))
}

func TestAnalyzeNumericGroupColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"site,block,sp1,sp2,sp3\n"+
			"s1,1,10,2,0\n"+
			"s2,1,8,3,1\n"+
			"s3,2,1,9,6\n"+
			"s4,2,0,7,8\n"), 0o644))

	opts := testOptions()
	opts.analysis.GroupColumn = "block"
	opts.analysis.NMin = 5
	opts.jsonPath = filepath.Join(t.TempDir(), "blocks.json")

	var out bytes.Buffer
	require.NoError(t, runAnalyze(context.Background(), path, opts, &out))
	assert.Contains(t, out.String(), "blocks: 4 sites, 3 species, groups [1 2], seed 11")

	raw, err := os.ReadFile(opts.jsonPath)
	require.NoError(t, err)
	var bundle stats.ResultBundle
	require.NoError(t, json.Unmarshal(raw, &bundle))
	assert.Equal(t, stats.Of(12), bundle.Sites()[0].N)
	assert.Equal(t, "block", bundle.Params().GroupColumn)
}

func TestReaderConfigAddsGroupColumn(t *testing.T) {
	opts := testOptions()
	opts.analysis.GroupColumn = "block"
	opts.reader.AttributeColumns = []string{"habitat"}

	cfg := readerConfig(opts)
	assert.Equal(t, []string{"habitat", "block"}, cfg.AttributeColumns)
	assert.Equal(t, []string{"habitat"}, opts.reader.AttributeColumns)

	opts.analysis.GroupColumn = "habitat"
	assert.Equal(t, []string{"habitat"}, readerConfig(opts).AttributeColumns)
}

func TestAnalyzeCommandFlags(t *testing.T) {
	path := simulated(t)
	t.Setenv("MOB_NPERM", "500")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"analyze", path, "--nperm", "30", "--seed", "5", "--levels", "B,A"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "groups [B A], seed 5")
}
