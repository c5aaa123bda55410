package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	_, err := Load("/nonexistent/path/geokd.yaml")
	if err == nil {
		t.Fatal("expected error for nonexistent path")
	}
	// Load with empty path uses default search (may use defaults if no config file)
	cfg, _ := Load("")
	if cfg.Server.Addr != ":8080" {
		t.Errorf("default addr: got %s", cfg.Server.Addr)
	}
	if cfg.Server.TCPAddr != ":9090" {
		t.Errorf("default tcp_addr: got %s", cfg.Server.TCPAddr)
	}
	if cfg.Data.CSVPath != "./worldcities.csv" {
		t.Errorf("default csv_path: got %s", cfg.Data.CSVPath)
	}
	if cfg.Import.CatalogDegree != 32 {
		t.Errorf("default catalog_degree: got %d", cfg.Import.CatalogDegree)
	}
	if cfg.Import.StrictCSV {
		t.Error("strict_csv should default to false")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	content := `
server:
  addr: ":9000"
  tcp_addr: ":9001"
data:
  csv_path: "cities.csv"
  sqlite_path: "cities.db"
import:
  strict_csv: true
  catalog_degree: 1
log:
  level: "debug"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("addr: got %s", cfg.Server.Addr)
	}
	if cfg.Data.CSVPath != "cities.csv" {
		t.Errorf("csv_path: got %s", cfg.Data.CSVPath)
	}
	if cfg.Data.SQLitePath != "cities.db" {
		t.Errorf("sqlite_path: got %s", cfg.Data.SQLitePath)
	}
	if cfg.Data.TreePath != "./kdtree.json" {
		t.Errorf("tree_path should keep default: got %s", cfg.Data.TreePath)
	}
	if !cfg.Import.StrictCSV {
		t.Error("strict_csv: expected true")
	}
	if cfg.Import.CatalogDegree != 32 {
		t.Errorf("catalog_degree below 2 should fall back to 32: got %d", cfg.Import.CatalogDegree)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level: got %s", cfg.Log.Level)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	if err := os.WriteFile(path, []byte("data:\n  csv_path: \"file.csv\"\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("GEOKD_CSV", "env.csv")
	t.Setenv("GEOKD_STRICT_CSV", "true")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Data.CSVPath != "env.csv" {
		t.Errorf("csv_path: got %s", cfg.Data.CSVPath)
	}
	if !cfg.Import.StrictCSV {
		t.Error("strict_csv: expected env override")
	}
	if cfg.Log.Format != "json" {
		t.Errorf("log format: got %s", cfg.Log.Format)
	}
}
