// Package tints persists the cover tints clients sample for each card.
package tints

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// ErrNotFound is returned when a card has no stored tint.
var ErrNotFound = errors.New("tint not found")

// Store is a SQLite-backed card → color table.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the database at path. The path can be ":memory:".
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and writes serialized.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores color for card, replacing any previous value.
func (s *Store) Put(card, color string) error {
	_, err := s.db.Exec(
		`INSERT INTO tints (card, color, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(card) DO UPDATE SET color = excluded.color, updated_at = excluded.updated_at`,
		card, color, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store tint for %s: %w", card, err)
	}
	return nil
}

// Get returns the stored color for card.
func (s *Store) Get(card string) (string, error) {
	var color string
	err := s.db.QueryRow(`SELECT color FROM tints WHERE card = ?`, card).Scan(&color)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read tint for %s: %w", card, err)
	}
	return color, nil
}

// All returns every stored tint.
func (s *Store) All() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT card, color FROM tints`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tints: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var card, color string
		if err := rows.Scan(&card, &color); err != nil {
			return nil, fmt.Errorf("failed to scan tint: %w", err)
		}
		out[card] = color
	}
	return out, rows.Err()
}

type migration struct {
	version int
	sql     string
}

func loadMigrations() ([]migration, error) {
	entries, err := migrationFiles.ReadDir("sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory: %w", err)
	}

	var out []migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		version, err := strconv.Atoi(strings.SplitN(name, "_", 2)[0])
		if err != nil {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.ToSlash(filepath.Join("sql", name)))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", name, err)
		}
		out = append(out, migration{version: version, sql: string(content)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

func migrate(db *sql.DB) error {
	migrations, err := loadMigrations()
	if err != nil {
		return err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, m := range migrations {
		var exists bool
		if err := db.QueryRow(`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)`, m.version).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check migration status: %w", err)
		}
		if exists {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}
	}
	return nil
}
