package core

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"geokd/pkg/codec"
	"geokd/pkg/common"
	"geokd/pkg/config"
	"geokd/pkg/core/kdtree"
	"geokd/pkg/core/memory"
	"geokd/pkg/monitor"
	"geokd/pkg/query"
	"geokd/pkg/storage"
)

// ErrNoBackend is returned by snapshot operations when no SQLite path is configured.
var ErrNoBackend = errors.New("snapshot backend not configured")

// GeoStore owns one KD-tree and serializes access to it: queries share a
// read lock, every mutation takes the write lock. A failed load or import
// never replaces the current tree.
type GeoStore struct {
	mu      sync.RWMutex
	tree    *kdtree.Tree
	catalog *memory.Catalog
	backend storage.Backend
	stats   *monitor.WorkloadStats
	conf    *config.Config
	log     *slog.Logger
}

func NewGeoStore(cfg *config.Config, log *slog.Logger) (*GeoStore, error) {
	gs := &GeoStore{
		tree:    kdtree.New(),
		catalog: memory.NewCatalog(cfg.Import.CatalogDegree),
		stats:   monitor.NewWorkloadStats(),
		conf:    cfg,
		log:     log,
	}
	if cfg.Data.SQLitePath != "" {
		b, err := storage.OpenSQLite(cfg.Data.SQLitePath)
		if err != nil {
			return nil, err
		}
		gs.backend = b
		log.Info("snapshot_backend_open", "path", cfg.Data.SQLitePath)
	}
	return gs, nil
}

func (gs *GeoStore) readOptions(path string) codec.ReadOptions {
	opts := codec.ReadOptions{
		OnSkip: func(line int, text, reason string) {
			gs.log.Debug("csv_line_skipped", "path", path, "line", line, "reason", reason)
		},
	}
	if gs.conf.Import.StrictCSV {
		opts.Policy = codec.FailMalformed
	}
	return opts
}

// replaceLocked swaps in a new tree and reindexes names. Caller holds mu.
func (gs *GeoStore) replaceLocked(t *kdtree.Tree) {
	gs.tree = t
	gs.catalog.Reset(t.Dump())
	gs.stats.RecordRebuild()
	gs.stats.SetShape(t.Len(), t.Height())
}

// LoadCSV replaces the tree with one built from the city table at path.
func (gs *GeoStore) LoadCSV(path string) (codec.ReadStats, error) {
	records, rs, err := codec.ReadCSVFile(path, gs.readOptions(path))
	if err != nil {
		gs.log.Warn("csv_load_failed", "path", path, "err", err)
		return rs, err
	}
	t := kdtree.Build(records)

	gs.mu.Lock()
	gs.replaceLocked(t)
	gs.mu.Unlock()

	gs.stats.RecordSkipped(rs.Skipped)
	if rs.Skipped > 0 {
		gs.log.Warn("csv_lines_skipped", "path", path, "skipped", rs.Skipped)
	}
	gs.log.Info("csv_loaded", "path", path, "records", rs.Records, "height", t.Height())
	return rs, nil
}

// MergeCSV adds the city table at path to the current tree.
func (gs *GeoStore) MergeCSV(path string) (codec.ReadStats, error) {
	records, rs, err := codec.ReadCSVFile(path, gs.readOptions(path))
	if err != nil {
		gs.log.Warn("csv_merge_failed", "path", path, "err", err)
		return rs, err
	}

	gs.mu.Lock()
	if gs.conf.Import.RebuildOnMerge {
		gs.tree.Merge(records)
		gs.stats.RecordRebuild()
	} else {
		for _, rec := range records {
			gs.tree.InsertRaw(rec)
		}
	}
	for _, rec := range records {
		gs.catalog.Add(rec)
	}
	gs.stats.SetShape(gs.tree.Len(), gs.tree.Height())
	size := gs.tree.Len()
	gs.mu.Unlock()

	gs.stats.RecordSkipped(rs.Skipped)
	gs.log.Info("csv_merged", "path", path, "added", rs.Records, "skipped", rs.Skipped, "records", size)
	return rs, nil
}

// Insert adds one record, either as a raw leaf or by rebuilding the tree.
// Non-finite coordinates are rejected before the tree is touched.
func (gs *GeoStore) Insert(rec common.Record, balanced bool) error {
	if err := common.CheckCoords(rec.Lat, rec.Lon); err != nil {
		return err
	}
	gs.mu.Lock()
	defer gs.mu.Unlock()

	if balanced {
		gs.tree.InsertBalanced(rec)
	} else {
		gs.tree.InsertRaw(rec)
	}
	gs.catalog.Add(rec)
	gs.stats.RecordInsert(balanced)
	gs.stats.SetShape(gs.tree.Len(), gs.tree.Height())
	gs.log.Debug("record_inserted", "city", rec.City, "lat", rec.Lat, "lon", rec.Lon, "balanced", balanced)
	return nil
}

func (gs *GeoStore) nearest(lat, lon float64, exact bool) (common.Record, float64, error) {
	if err := common.CheckCoords(lat, lon); err != nil {
		return common.Record{}, 0, err
	}
	start := time.Now()
	defer gs.stats.RecordNearest(start)

	target := common.Record{Lat: lat, Lon: lon}
	gs.mu.RLock()
	defer gs.mu.RUnlock()

	var (
		rec  common.Record
		dist float64
		ok   bool
	)
	if exact {
		rec, dist, ok = gs.tree.NearestExact(target)
	} else {
		rec, dist, ok = gs.tree.Nearest(target)
	}
	if !ok {
		return common.Record{}, 0, common.ErrEmptyTree
	}
	return rec, dist, nil
}

// Nearest returns the closest city and its distance in km.
func (gs *GeoStore) Nearest(lat, lon float64) (common.Record, float64, error) {
	return gs.nearest(lat, lon, false)
}

// NearestExact is Nearest with geodesically sound pruning.
func (gs *GeoStore) NearestExact(lat, lon float64) (common.Record, float64, error) {
	return gs.nearest(lat, lon, true)
}

// Range returns the cities inside rect in pre-order.
func (gs *GeoStore) Range(rect common.Rect) []common.Record {
	start := time.Now()
	defer gs.stats.RecordRange(start)

	gs.mu.RLock()
	defer gs.mu.RUnlock()
	return gs.tree.Range(rect)
}

// Find returns every city named name, ignoring case.
func (gs *GeoStore) Find(name string) []common.Record {
	start := time.Now()
	defer gs.stats.RecordLookup(start)

	gs.mu.RLock()
	defer gs.mu.RUnlock()
	return gs.catalog.Lookup(name)
}

func (gs *GeoStore) FindPrefix(prefix string, limit int) []common.Record {
	start := time.Now()
	defer gs.stats.RecordLookup(start)

	gs.mu.RLock()
	defer gs.mu.RUnlock()
	return gs.catalog.Prefix(prefix, limit)
}

// Query executes a parsed SELECT statement.
func (gs *GeoStore) Query(stmt *query.SelectStmt) ([]common.Record, error) {
	switch stmt.Kind {
	case query.KindNearest:
		rec, _, err := gs.nearest(stmt.Target.Lat, stmt.Target.Lon, stmt.Exact)
		if err != nil {
			return nil, err
		}
		return []common.Record{rec}, nil
	case query.KindRange:
		return stmt.ApplyLimit(gs.Range(stmt.Rect)), nil
	case query.KindName:
		return stmt.ApplyLimit(gs.Find(stmt.Name)), nil
	case query.KindPrefix:
		return gs.FindPrefix(stmt.Name, stmt.Limit), nil
	case query.KindAll:
		return stmt.ApplyLimit(gs.Records()), nil
	}
	return nil, fmt.Errorf("unsupported query kind %v", stmt.Kind)
}

// SaveTree writes the tree document to path. An empty tree is not saved.
func (gs *GeoStore) SaveTree(path string) error {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	if err := codec.SaveTreeFile(path, gs.tree); err != nil {
		return err
	}
	gs.log.Info("tree_saved", "path", path, "records", gs.tree.Len())
	return nil
}

// LoadTree replaces the tree with the document at path, keeping its shape.
func (gs *GeoStore) LoadTree(path string) error {
	t, err := codec.LoadTreeFile(path)
	if err != nil {
		gs.log.Warn("tree_load_failed", "path", path, "err", err)
		return err
	}
	if err := t.Validate(); err != nil {
		gs.log.Warn("tree_invariant_violated", "path", path, "err", err)
	}

	gs.mu.Lock()
	gs.replaceLocked(t)
	gs.mu.Unlock()

	gs.log.Info("tree_loaded", "path", path, "records", t.Len(), "height", t.Height())
	return nil
}

// WriteDocument encodes the current tree to w.
func (gs *GeoStore) WriteDocument(w io.Writer) error {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	return codec.EncodeTree(w, gs.tree)
}

// ExportCSV writes all records in pre-order as a city table.
func (gs *GeoStore) ExportCSV(path string) error {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	if err := codec.ExportCSVFile(path, gs.tree); err != nil {
		return err
	}
	gs.log.Info("csv_exported", "path", path, "records", gs.tree.Len())
	return nil
}

// WriteCSV streams the city table to w.
func (gs *GeoStore) WriteCSV(w io.Writer) error {
	return codec.WriteRecords(w, gs.Records())
}

// SaveSnapshot stores the flat record list in the SQLite backend.
func (gs *GeoStore) SaveSnapshot() error {
	if gs.backend == nil {
		return ErrNoBackend
	}
	records := gs.Records()
	if err := gs.backend.ReplaceAll(records); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	gs.log.Info("snapshot_saved", "records", len(records))
	return nil
}

// LoadSnapshot rebuilds the tree from the SQLite backend.
func (gs *GeoStore) LoadSnapshot() error {
	if gs.backend == nil {
		return ErrNoBackend
	}
	records, err := gs.backend.LoadAll()
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	t := kdtree.Build(records)

	gs.mu.Lock()
	gs.replaceLocked(t)
	gs.mu.Unlock()

	gs.log.Info("snapshot_loaded", "records", t.Len())
	return nil
}

// Records returns every record in pre-order.
func (gs *GeoStore) Records() []common.Record {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	return gs.tree.Dump()
}

func (gs *GeoStore) Len() int {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	return gs.tree.Len()
}

func (gs *GeoStore) Height() int {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	return gs.tree.Height()
}

func (gs *GeoStore) Print(w io.Writer) error {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	return gs.tree.Print(w)
}

// Reset drops the whole tree.
func (gs *GeoStore) Reset() {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.tree.Clear()
	gs.catalog.Reset(nil)
	gs.stats.SetShape(0, 0)
}

func (gs *GeoStore) Stats() map[string]interface{} {
	s := gs.stats.Snapshot()
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	out := map[string]interface{}{
		"records":        gs.tree.Len(),
		"height":         gs.tree.Height(),
		"named_entries":  gs.catalog.Len(),
		"nearest_count":  s.NearestCount,
		"range_count":    s.RangeCount,
		"lookup_count":   s.LookupCount,
		"insert_count":   s.InsertCount,
		"rebuild_count":  s.RebuildCount,
		"skipped_lines":  s.SkippedLines,
		"rw_ratio":       gs.stats.GetReadWriteRatio(),
		"snapshot_store": gs.backend != nil,
		"mode":           gs.tree.Type(),
	}
	if gs.backend != nil {
		if n, err := gs.backend.Count(); err == nil {
			out["snapshot_records"] = n
		} else {
			gs.log.Warn("snapshot_count_failed", "err", err)
		}
	}
	return out
}

// BenchmarkAlgo times nearest-neighbor lookups on the KD-tree against a
// linear scan over the same records, returning average ns per query.
func (gs *GeoStore) BenchmarkAlgo(iterations int) (float64, float64, error) {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	if gs.tree.Empty() {
		return 0, 0, common.ErrEmptyTree
	}
	if iterations <= 0 {
		return 0, 0, fmt.Errorf("iterations must be positive")
	}

	rng := rand.New(rand.NewSource(1))
	targets := make([]common.Record, iterations)
	for i := range targets {
		targets[i] = common.Record{Lat: rng.Float64()*180 - 90, Lon: rng.Float64()*360 - 180}
	}

	indexes := []Index{gs.tree, LinearIndex(gs.tree.Dump())}
	avg := make([]float64, len(indexes))
	for i, idx := range indexes {
		start := time.Now()
		for _, target := range targets {
			idx.Nearest(target)
		}
		avg[i] = float64(time.Since(start).Nanoseconds()) / float64(iterations)
	}
	return avg[0], avg[1], nil
}

func (gs *GeoStore) Close() error {
	if gs.backend != nil {
		return gs.backend.Close()
	}
	return nil
}
