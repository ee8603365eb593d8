package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "almanac/pkg/logx"
)

//go:embed migrations.sql
var migrationsSQL string

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
	ns  string
}

func openSQLite(cfg Config, log logx.Logger) (backend, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required when storage.driver=sqlite")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = time.Second
	}
	_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()))
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(context.Background(), migrationsSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &sqliteStore{db: db, log: log, ns: cfg.Namespace}, nil
}

func (s *sqliteStore) all(ctx context.Context) (map[string]map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tenant_id, field, value FROM tenant_fields WHERE namespace = ?`, s.ns)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]map[string]string{}
	for rows.Next() {
		var id, field, value string
		if err := rows.Scan(&id, &field, &value); err != nil {
			return nil, err
		}
		applyField(out, id, field, value)
	}
	return out, rows.Err()
}

func (s *sqliteStore) get(ctx context.Context, id string) (map[string]string, bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT field, value FROM tenant_fields WHERE namespace = ? AND tenant_id = ?`, s.ns, id)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var out map[string]string
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, false, err
		}
		if out == nil {
			out = map[string]string{}
		}
		out[field] = value
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

func (s *sqliteStore) set(ctx context.Context, id, field, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenant_fields(namespace, tenant_id, field, value, updated_at) VALUES(?,?,?,?,?)
		 ON CONFLICT(namespace, tenant_id, field) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		s.ns, id, field, value, time.Now().UnixMilli(),
	)
	return err
}

func (s *sqliteStore) close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
