// Package store implements the persistent lobby layer (spec component C1):
// users, sessions, rooms, room members and the declared-but-core-unused
// economy/social tables, backed by database/sql over SQLite or Postgres.
//
// Generalizes the teacher's internal/database package (global *sql.DB,
// Initialize, schema-per-table helpers) from a MUD world schema to the
// tables in spec.md §6.4.
package store

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"gridmatch/internal/config"
)

// Store wraps the SQL connection and knows which dialect it is speaking,
// since a handful of statements (placeholder style, advisory locks) differ
// between SQLite and Postgres.
type Store struct {
	DB      *sql.DB
	Dialect string // "sqlite" or "postgres"
}

// Open establishes the database connection, applies pool settings and runs
// the schema migration, guarded by an advisory lock under Postgres so only
// one server replica applies DDL concurrently (spec.md §4.7).
func Open(cfg *config.Config) (*Store, error) {
	log.Println("Initializing database connection...")

	var (
		db  *sql.DB
		err error
	)

	switch cfg.DBType {
	case "sqlite":
		db, err = openSQLite(cfg.DatabaseURL)
	case "postgres":
		db, err = sql.Open("postgres", cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.DBType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(cfg.DBMaxConnections)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)

	s := &Store{DB: db, Dialect: cfg.DBType}

	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	log.Printf("Database connection established (%s)", cfg.DBType)
	return s, nil
}

func openSQLite(dbName string) (*sql.DB, error) {
	dbDir := filepath.Dir(dbName)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbName)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		log.Printf("Warning: failed to set WAL mode: %v", err)
	}

	return db, nil
}

// migrate applies the schema. Under Postgres it takes a fixed advisory lock
// first so concurrent server replicas serialize DDL; SQLite has only a single
// writer by construction so no extra lock is needed.
func (s *Store) migrate() error {
	if s.Dialect == "postgres" {
		const migrationLockKey = 0x67696D6C // "giml" — grid match lock
		if _, err := s.DB.Exec("SELECT pg_advisory_lock($1)", migrationLockKey); err != nil {
			return fmt.Errorf("failed to acquire migration lock: %w", err)
		}
		defer s.DB.Exec("SELECT pg_advisory_unlock($1)", migrationLockKey)
	}

	schema := schemaFor(s.Dialect)
	if _, err := s.DB.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	log.Println("Database schema ready")
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.DB != nil {
		log.Println("Closing database connection...")
		return s.DB.Close()
	}
	return nil
}

// placeholder returns the positional placeholder for argument index n
// (1-based), since SQLite uses "?" and Postgres uses "$n".
func (s *Store) placeholder(n int) string {
	if s.Dialect == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}
