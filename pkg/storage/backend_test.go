package storage

import (
	"path/filepath"
	"testing"

	"geokd/pkg/common"
)

func TestSQLiteReplaceAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cities.db")
	b, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer b.Close()

	if n, err := b.Count(); err != nil || n != 0 {
		t.Fatalf("expected empty table, got %d (%v)", n, err)
	}
	if err := b.ReplaceAll([]common.Record{{City: "Stale", Lat: 1, Lon: 1}}); err != nil {
		t.Fatalf("replace all: %v", err)
	}

	records := []common.Record{
		{City: "Paris", Lat: 48.8566, Lon: 2.3522},
		{City: "Berlin", Lat: 52.52, Lon: 13.405},
		{City: "Quito", Lat: -0.22, Lon: -78.5125},
	}
	if err := b.ReplaceAll(records); err != nil {
		t.Fatalf("replace all: %v", err)
	}

	got, err := b.LoadAll()
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if len(got) != len(records) {
		t.Fatalf("expected %d records, got %d", len(records), len(got))
	}
	for i := range records {
		if got[i] != records[i] {
			t.Fatalf("record %d: got %v want %v", i, got[i], records[i])
		}
	}
	if n, err := b.Count(); err != nil || n != 3 {
		t.Fatalf("expected count 3, got %d (%v)", n, err)
	}

	if err := b.ReplaceAll(nil); err != nil {
		t.Fatalf("replace with nothing: %v", err)
	}
	if n, err := b.Count(); err != nil || n != 0 {
		t.Fatalf("expected empty table after replace, got %d (%v)", n, err)
	}
}

func TestSQLiteReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cities.db")
	b, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := b.ReplaceAll([]common.Record{{City: "Oslo", Lat: 59.9133, Lon: 10.7389}}); err != nil {
		t.Fatalf("replace all: %v", err)
	}
	b.Close()

	b2, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	defer b2.Close()
	got, err := b2.LoadAll()
	if err != nil {
		t.Fatalf("load all: %v", err)
	}
	if len(got) != 1 || got[0].City != "Oslo" {
		t.Fatalf("unexpected records after reopen: %v", got)
	}
}
