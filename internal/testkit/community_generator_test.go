package testkit

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"gobiodiv/domain/community"
	"gobiodiv/domain/core"
	"gobiodiv/domain/stats"
	"gobiodiv/internal/analysis"
)

func TestCommunityGenerator_Basic(t *testing.T) {
	config := DefaultCommunityConfig()
	config.Groups = 3
	config.SitesPerGroup = 4
	config.Species = 12

	ds, err := NewCommunityGenerator(config).Generate()
	if err != nil {
		t.Fatalf("Failed to generate community: %v", err)
	}

	if ds.Matrix.Sites() != 12 {
		t.Errorf("Expected 12 sites, got %d", ds.Matrix.Sites())
	}
	if ds.Matrix.Species() != 12 {
		t.Errorf("Expected 12 species, got %d", ds.Matrix.Species())
	}

	g, err := ds.Grouping("group", nil)
	if err != nil {
		t.Fatalf("Failed to build grouping: %v", err)
	}
	for k, size := range g.Sizes() {
		if size != 4 {
			t.Errorf("Group %s has %d sites, expected 4", g.Level(k), size)
		}
	}

	for i, n := range ds.Matrix.RowTotals() {
		if n <= 0 {
			t.Errorf("Site %d has no individuals with EmptySiteRate 0", i)
		}
	}
}

func TestCommunityGenerator_Deterministic(t *testing.T) {
	a, err := NewCommunityGenerator(DefaultCommunityConfig()).Generate()
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewCommunityGenerator(DefaultCommunityConfig()).Generate()
	if err != nil {
		t.Fatal(err)
	}
	if a.Matrix.Fingerprint() != b.Matrix.Fingerprint() {
		t.Error("Same seed produced different communities")
	}
}

func TestCommunityGenerator_EmptySites(t *testing.T) {
	config := DefaultCommunityConfig()
	config.EmptySiteRate = 1
	ds, err := NewCommunityGenerator(config).Generate()
	if err != nil {
		t.Fatal(err)
	}
	for i, n := range ds.Matrix.RowTotals() {
		if n != 0 {
			t.Errorf("Site %d should be empty, has %v individuals", i, n)
		}
	}
}

func TestWriteCSV(t *testing.T) {
	config := DefaultCommunityConfig()
	config.SitesPerGroup = 2
	config.Species = 3
	ds, err := NewCommunityGenerator(config).Generate()
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, ds); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("Expected header plus 4 rows, got %d lines", len(lines))
	}
	if lines[0] != "site,group,sp001,sp002,sp003" {
		t.Errorf("Unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "g1_s01,A,") {
		t.Errorf("Unexpected first row %q", lines[1])
	}
}

func TestInMemoryResultRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryResultRepository()

	fp := core.Fingerprint(99)
	first := stats.NewResultBundle(stats.BundleParts{RunID: core.NewRunID(), Fingerprint: fp, Params: stats.Parameters{NPerm: 10}})
	second := stats.NewResultBundle(stats.BundleParts{RunID: core.NewRunID(), Fingerprint: fp})

	if err := repo.Save(ctx, "one", first); err != nil {
		t.Fatal(err)
	}
	if err := repo.Save(ctx, "two", second); err != nil {
		t.Fatal(err)
	}

	got, err := repo.Get(ctx, first.RunID())
	if err != nil || got.RunID() != first.RunID() {
		t.Fatalf("Get returned %v, %v", got, err)
	}

	newest, err := repo.FindByFingerprint(ctx, fp)
	if err != nil || newest.RunID() != second.RunID() {
		t.Errorf("FindByFingerprint should return the newest run")
	}

	list, err := repo.List(ctx, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Name != "one" || list[0].NPerm != 10 {
		t.Errorf("Unexpected page %+v", list)
	}

	if _, err := repo.Get(ctx, core.NewRunID()); !core.IsNotFoundError(err) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestTestKitEngine(t *testing.T) {
	kit, err := NewTestKit()
	if err != nil {
		t.Fatal(err)
	}
	config := DefaultCommunityConfig()
	config.GroupEffect = 1.5
	ds, err := NewCommunityGenerator(config).Generate()
	if err != nil {
		t.Fatal(err)
	}
	g, err := ds.Grouping("group", nil)
	if err != nil {
		t.Fatal(err)
	}

	engine := kit.Engine()
	engine.SetWorkers(2)
	bundle, err := engine.Run(ctx(), analysisRequest(ds.Matrix, g))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if err := kit.ResultRepository().Save(ctx(), ds.Name, bundle); err != nil {
		t.Fatal(err)
	}
	smallest := 1.0
	for _, m := range stats.TestedMetrics {
		if p := bundle.PValue(m); p.Valid && p.V < smallest {
			smallest = p.V
		}
	}
	if smallest > 0.05 {
		t.Errorf("Strong group effect should give at least one small p-value, smallest was %v", smallest)
	}
}

func ctx() context.Context { return context.Background() }

func analysisRequest(m *community.Matrix, g *community.Grouping) analysis.Request {
	return analysis.Request{Matrix: m, Grouping: g, NMin: 5, NPerm: 199, Seed: 11}
}
