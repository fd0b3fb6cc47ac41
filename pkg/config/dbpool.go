package config

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DBPool hands out shared *sql.DB handles keyed by DSN.
// SQLite only supports one writer at a time, so its handles are pinned to a
// single connection to avoid "database is locked" errors.
type DBPool struct {
	mu    sync.Mutex
	pools map[string]*sql.DB
}

func NewDBPool() *DBPool {
	return &DBPool{pools: make(map[string]*sql.DB)}
}

// Get returns the pool for cfg, creating it on first use.
func (p *DBPool) Get(cfg *DatabaseConfig) (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	dsn := cfg.DSN()
	if db, ok := p.pools[dsn]; ok {
		return db, nil
	}

	db, err := p.open(cfg)
	if err != nil {
		return nil, err
	}
	p.pools[dsn] = db
	return db, nil
}

func (p *DBPool) open(cfg *DatabaseConfig) (*sql.DB, error) {
	driverName := cfg.DriverName()

	if driverName == "sqlite3" {
		if dir := filepath.Dir(cfg.Database); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open(driverName, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driverName == "sqlite3" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		slog.Debug("SQLite: using single connection mode")
	} else {
		if cfg.MaxConns > 0 {
			db.SetMaxOpenConns(cfg.MaxConns)
		}
		if cfg.MaxIdle > 0 {
			db.SetMaxIdleConns(cfg.MaxIdle)
		}
	}
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driverName == "sqlite3" {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			slog.Warn("Failed to enable WAL mode", "error", err)
		}
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
			slog.Warn("Failed to set busy timeout", "error", err)
		}
	}

	return db, nil
}

// Close closes every pool.
func (p *DBPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for dsn, db := range p.pools {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s: %w", dsn, err))
		}
	}
	p.pools = make(map[string]*sql.DB)

	if len(errs) > 0 {
		return fmt.Errorf("errors closing pools: %v", errs)
	}
	return nil
}
