package codec

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"geokd/pkg/common"
	"geokd/pkg/core/kdtree"
)

// writeFileAtomic writes through a temp file in the target directory and
// renames it into place, so a failed write leaves the old file untouched.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".geokd-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	_ = f.Chmod(0644)
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// SaveTreeFile persists t as a tree document at path.
func SaveTreeFile(path string, t *kdtree.Tree) error {
	if t == nil || t.Empty() {
		return common.ErrEmptyTree
	}
	if err := writeFileAtomic(path, func(w io.Writer) error { return EncodeTree(w, t) }); err != nil {
		return fmt.Errorf("save tree %s: %w", path, err)
	}
	return nil
}

// LoadTreeFile reads a tree document from path.
func LoadTreeFile(path string) (*kdtree.Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load tree: %w", err)
	}
	defer f.Close()
	t, err := DecodeTree(f)
	if err != nil {
		return nil, fmt.Errorf("load tree %s: %w", path, err)
	}
	return t, nil
}

// ReadCSVFile parses the city table at path.
func ReadCSVFile(path string, opts ReadOptions) ([]common.Record, ReadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ReadStats{}, fmt.Errorf("read csv: %w", err)
	}
	defer f.Close()
	return ReadRecords(f, opts)
}

// ExportCSVFile writes the records of t in pre-order.
func ExportCSVFile(path string, t *kdtree.Tree) error {
	if err := writeFileAtomic(path, func(w io.Writer) error { return WriteRecords(w, t.Dump()) }); err != nil {
		return fmt.Errorf("export csv %s: %w", path, err)
	}
	return nil
}
