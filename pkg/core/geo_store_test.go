package core

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"geokd/pkg/codec"
	"geokd/pkg/common"
	"geokd/pkg/config"
	"geokd/pkg/logger"
	"geokd/pkg/query"
)

const worldCSV = `city,lat,lng
Paris,48.8566,2.3522
Berlin,52.52,13.405
Madrid,40.4168,-3.7038
Rome,41.8933,12.4828
Lisbon,38.7077,-9.1366
broken-line
Vienna,48.2083,16.3725
`

func newTestStore(t *testing.T, mutate func(*config.Config)) *GeoStore {
	t.Helper()
	cfg := config.Default()
	cfg.Data.TreePath = filepath.Join(t.TempDir(), "kdtree.json")
	if mutate != nil {
		mutate(cfg)
	}
	gs, err := NewGeoStore(cfg, logger.Discard())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { gs.Close() })
	return gs
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadCSVAndQuery(t *testing.T) {
	gs := newTestStore(t, nil)
	rs, err := gs.LoadCSV(writeFile(t, "world.csv", worldCSV))
	if err != nil {
		t.Fatalf("load csv: %v", err)
	}
	if rs.Records != 6 || rs.Skipped != 1 {
		t.Fatalf("unexpected read stats: %+v", rs)
	}
	if gs.Len() != 6 {
		t.Fatalf("expected 6 records, got %d", gs.Len())
	}

	rec, dist, err := gs.Nearest(48.85, 2.35)
	if err != nil {
		t.Fatalf("nearest: %v", err)
	}
	if rec.City != "Paris" || dist > 1 {
		t.Fatalf("expected Paris within 1km, got %v at %.3fkm", rec, dist)
	}

	got := gs.Range(common.Rect{MinLat: 40, MinLon: -5, MaxLat: 50, MaxLon: 13})
	names := map[string]bool{}
	for _, r := range got {
		names[r.City] = true
	}
	if len(got) != 3 || !names["Paris"] || !names["Madrid"] || !names["Rome"] {
		t.Fatalf("unexpected range result: %v", got)
	}

	if found := gs.Find("berlin"); len(found) != 1 || found[0].Lat != 52.52 {
		t.Fatalf("find berlin: %v", found)
	}

	stats := gs.Stats()
	if stats["skipped_lines"].(uint64) != 1 {
		t.Fatalf("skipped lines not counted: %v", stats)
	}
}

func TestStrictCSVKeepsPreviousTree(t *testing.T) {
	gs := newTestStore(t, func(c *config.Config) { c.Import.StrictCSV = true })
	good := writeFile(t, "good.csv", "city,lat,lng\nOslo,59.9133,10.7389\n")
	if _, err := gs.LoadCSV(good); err != nil {
		t.Fatalf("load good csv: %v", err)
	}

	_, err := gs.LoadCSV(writeFile(t, "world.csv", worldCSV))
	var mle *codec.MalformedLineError
	if !errors.As(err, &mle) {
		t.Fatalf("expected malformed line error, got %v", err)
	}
	if gs.Len() != 1 || len(gs.Find("Oslo")) != 1 {
		t.Fatalf("failed import must keep previous tree, have %v", gs.Records())
	}
}

func TestNearestOnEmptyStore(t *testing.T) {
	gs := newTestStore(t, nil)
	if _, _, err := gs.Nearest(0, 0); !errors.Is(err, common.ErrEmptyTree) {
		t.Fatalf("expected ErrEmptyTree, got %v", err)
	}
	if got := gs.Range(common.Rect{MinLat: -90, MinLon: -180, MaxLat: 90, MaxLon: 180}); len(got) != 0 {
		t.Fatalf("expected empty range, got %v", got)
	}
	if err := gs.SaveTree(gs.conf.Data.TreePath); !errors.Is(err, common.ErrEmptyTree) {
		t.Fatalf("saving an empty tree should fail, got %v", err)
	}
}

func TestNonFiniteCoordinatesAreRejected(t *testing.T) {
	gs := newTestStore(t, nil)
	if err := gs.Insert(common.Record{City: "Paris", Lat: 48.8566, Lon: 2.3522}, false); err != nil {
		t.Fatalf("insert: %v", err)
	}
	for _, rec := range []common.Record{
		{City: "Ghost", Lat: math.NaN(), Lon: 1},
		{City: "Far", Lat: 1, Lon: math.Inf(-1)},
	} {
		if err := gs.Insert(rec, true); !errors.Is(err, common.ErrInvalidCoordinate) {
			t.Fatalf("insert %v: expected ErrInvalidCoordinate, got %v", rec, err)
		}
	}
	if gs.Len() != 1 || len(gs.Find("ghost")) != 0 {
		t.Fatalf("rejected records leaked into the store: len=%d", gs.Len())
	}
	if _, _, err := gs.Nearest(math.NaN(), 0); !errors.Is(err, common.ErrInvalidCoordinate) {
		t.Fatalf("expected ErrInvalidCoordinate for NaN target, got %v", err)
	}

	rs, err := gs.LoadCSV(writeFile(t, "ghost.csv", "city,lat,lng\nGhost,NaN,1\nRome,41.8933,12.4828\n"))
	if err != nil || rs.Skipped != 1 {
		t.Fatalf("expected the NaN line skipped, got %+v %v", rs, err)
	}
	if err := gs.SaveTree(gs.conf.Data.TreePath); err != nil {
		t.Fatalf("save after skipped NaN line: %v", err)
	}
}

func TestInsertAndMerge(t *testing.T) {
	gs := newTestStore(t, nil)
	gs.Insert(common.Record{City: "A", Lat: 0, Lon: 0}, false)
	gs.Insert(common.Record{City: "B", Lat: 10, Lon: 10}, false)
	gs.Insert(common.Record{City: "C", Lat: 20, Lon: 20}, false)
	if gs.Height() != 3 {
		t.Fatalf("raw inserts in sorted order should chain, height=%d", gs.Height())
	}

	gs.Insert(common.Record{City: "D", Lat: 30, Lon: 30}, true)
	if gs.Height() != 3 {
		t.Fatalf("balanced insert should rebuild to height 3, got %d", gs.Height())
	}

	rs, err := gs.MergeCSV(writeFile(t, "more.csv", "city,lat,lng\nE,40,40\nF,50,50\n"))
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if rs.Records != 2 || gs.Len() != 6 {
		t.Fatalf("merge stats %+v, len %d", rs, gs.Len())
	}
	if len(gs.Find("f")) != 1 {
		t.Fatal("merged records should be searchable by name")
	}

	if _, err := gs.MergeCSV(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Fatal("merging a missing file should fail")
	}
	if gs.Len() != 6 {
		t.Fatalf("failed merge changed the tree: %d", gs.Len())
	}
}

func TestSaveAndLoadTree(t *testing.T) {
	gs := newTestStore(t, nil)
	if _, err := gs.LoadCSV(writeFile(t, "world.csv", worldCSV)); err != nil {
		t.Fatalf("load csv: %v", err)
	}
	path := gs.conf.Data.TreePath
	if err := gs.SaveTree(path); err != nil {
		t.Fatalf("save tree: %v", err)
	}
	var before strings.Builder
	gs.Print(&before)

	other := newTestStore(t, nil)
	if err := other.LoadTree(path); err != nil {
		t.Fatalf("load tree: %v", err)
	}
	var after strings.Builder
	other.Print(&after)
	if before.String() != after.String() {
		t.Fatalf("tree shape changed:\n%s\nvs\n%s", before.String(), after.String())
	}

	bad := writeFile(t, "bad.json", `{"data": {"city": 1}}`)
	if err := other.LoadTree(bad); err == nil {
		t.Fatal("expected parse error")
	}
	if other.Len() != 6 {
		t.Fatalf("failed load replaced the tree: %d records", other.Len())
	}
}

func TestExportCSV(t *testing.T) {
	gs := newTestStore(t, nil)
	gs.Insert(common.Record{City: "Paris", Lat: 48.8566, Lon: 2.3522}, true)
	path := filepath.Join(t.TempDir(), "out.csv")
	if err := gs.ExportCSV(path); err != nil {
		t.Fatalf("export: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if string(b) != "city,lat,lng\nParis,48.8566,2.3522\n" {
		t.Fatalf("unexpected export: %q", string(b))
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cities.db")
	gs := newTestStore(t, func(c *config.Config) { c.Data.SQLitePath = dbPath })
	if _, err := gs.LoadCSV(writeFile(t, "world.csv", worldCSV)); err != nil {
		t.Fatalf("load csv: %v", err)
	}
	if err := gs.SaveSnapshot(); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}
	if n := gs.Stats()["snapshot_records"]; n != 6 {
		t.Fatalf("expected 6 snapshot records in stats, got %v", n)
	}
	gs.Reset()
	if gs.Len() != 0 {
		t.Fatal("reset should empty the store")
	}
	if err := gs.LoadSnapshot(); err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if gs.Len() != 6 {
		t.Fatalf("expected 6 records from snapshot, got %d", gs.Len())
	}

	plain := newTestStore(t, nil)
	if err := plain.SaveSnapshot(); !errors.Is(err, ErrNoBackend) {
		t.Fatalf("expected ErrNoBackend, got %v", err)
	}
	if _, ok := plain.Stats()["snapshot_records"]; ok {
		t.Fatal("stats should not report snapshot records without a backend")
	}
}

func TestQuery(t *testing.T) {
	gs := newTestStore(t, nil)
	if _, err := gs.LoadCSV(writeFile(t, "world.csv", worldCSV)); err != nil {
		t.Fatalf("load csv: %v", err)
	}

	cases := []struct {
		sql  string
		want int
	}{
		{"SELECT * FROM cities", 6},
		{"SELECT * FROM cities LIMIT 2", 2},
		{"SELECT * FROM cities NEAR 41.9 12.5", 1},
		{"SELECT * FROM cities WITHIN 35 -10 50 20", 5},
		{"SELECT * FROM cities WITHIN 35 -10 50 20 LIMIT 1", 1},
		{"SELECT * FROM cities WHERE city = 'rome'", 1},
		{"SELECT * FROM cities WHERE city LIKE 'L%'", 1},
		{"SELECT * FROM cities WHERE city LIKE 'L%' LIMIT 0", 0},
		{"SELECT * FROM cities WHERE city = 'rome' LIMIT 0", 0},
		{"SELECT * FROM cities WITHIN 35 -10 50 20 LIMIT 0", 0},
		{"SELECT * FROM cities LIMIT 0", 0},
	}
	for _, c := range cases {
		stmt, err := query.Parse(c.sql)
		if err != nil {
			t.Fatalf("parse %q: %v", c.sql, err)
		}
		got, err := gs.Query(stmt)
		if err != nil {
			t.Fatalf("query %q: %v", c.sql, err)
		}
		if len(got) != c.want {
			t.Fatalf("query %q: got %d rows, want %d (%v)", c.sql, len(got), c.want, got)
		}
	}
}

func TestBenchmarkAlgo(t *testing.T) {
	gs := newTestStore(t, nil)
	if _, _, err := gs.BenchmarkAlgo(10); !errors.Is(err, common.ErrEmptyTree) {
		t.Fatalf("expected ErrEmptyTree, got %v", err)
	}
	if _, err := gs.LoadCSV(writeFile(t, "world.csv", worldCSV)); err != nil {
		t.Fatalf("load csv: %v", err)
	}
	kd, linear, err := gs.BenchmarkAlgo(100)
	if err != nil {
		t.Fatalf("benchmark: %v", err)
	}
	if kd < 0 || linear < 0 {
		t.Fatalf("negative timings: %v %v", kd, linear)
	}
}

func TestLinearIndexAgreesWithTree(t *testing.T) {
	gs := newTestStore(t, nil)
	if _, err := gs.LoadCSV(writeFile(t, "world.csv", worldCSV)); err != nil {
		t.Fatalf("load csv: %v", err)
	}
	li := LinearIndex(gs.Records())
	for _, target := range []common.Record{{Lat: 45, Lon: 5}, {Lat: 39, Lon: -8}, {Lat: 50, Lon: 15}} {
		want, _, _ := li.Nearest(target)
		got, _, err := gs.NearestExact(target.Lat, target.Lon)
		if err != nil {
			t.Fatalf("nearest exact: %v", err)
		}
		if got != want {
			t.Fatalf("target %v: tree %v, linear %v", target, got, want)
		}
	}
}
