package storage

import (
	"database/sql"
	"fmt"
	"sync"

	"geokd/pkg/common"

	_ "modernc.org/sqlite"
)

// Backend 是城市表的持久化后端：只保存扁平记录，不保存树形结构
type Backend interface {
	ReplaceAll(records []common.Record) error
	LoadAll() ([]common.Record, error)
	Count() (int, error)
	Close() error
}

type SQLiteBackend struct {
	db *sql.DB
	mu sync.Mutex
}

func OpenSQLite(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	query := `
	CREATE TABLE IF NOT EXISTS cities (
		seq  INTEGER PRIMARY KEY AUTOINCREMENT,
		city TEXT NOT NULL,
		lat  REAL NOT NULL,
		lng  REAL NOT NULL
	);`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cities table: %w", err)
	}

	// WAL 模式失败不致命，继续使用默认日志模式
	db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
	`)

	return &SQLiteBackend{db: db}, nil
}

// ReplaceAll 在一个事务内清空并写入全部记录，失败时保留旧数据
func (s *SQLiteBackend) ReplaceAll(records []common.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	if _, err := tx.Exec("DELETE FROM cities"); err != nil {
		tx.Rollback()
		return err
	}

	stmt, err := tx.Prepare("INSERT INTO cities (city, lat, lng) VALUES (?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.Exec(rec.City, rec.Lat, rec.Lon); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteBackend) LoadAll() ([]common.Record, error) {
	rows, err := s.db.Query("SELECT city, lat, lng FROM cities ORDER BY seq ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []common.Record
	for rows.Next() {
		var rec common.Record
		if err := rows.Scan(&rec.City, &rec.Lat, &rec.Lon); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLiteBackend) Count() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM cities").Scan(&n)
	return n, err
}

func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}
