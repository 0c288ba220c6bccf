package persistence

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/isndotbiz/llm-optimization-framework-sub001/internal/jobs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteStore is the durable registry behind the run queue. One process
// owns the database file; the connection pool is pinned to a single
// connection so modernc's driver serializes writes.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	// Bootstrap schema_migrations table so we can track applied versions.
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

func (s *SQLiteStore) LoadRuns(ctx context.Context) ([]*jobs.OrchestrationRun, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, source, dedupe_key, kind, model_id, prompts, error_strategy, definition_path, status, error, checkpoint_id, created_at, updated_at
		 FROM runs
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]*jobs.OrchestrationRun, 0)
	for rows.Next() {
		var item jobs.OrchestrationRun
		var kind, status, prompts string
		if err := rows.Scan(
			&item.ID,
			&item.Source,
			&item.DedupeKey,
			&kind,
			&item.Payload.ModelID,
			&prompts,
			&item.Payload.ErrorStrategy,
			&item.Payload.DefinitionPath,
			&status,
			&item.Error,
			&item.CheckpointID,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		item.Payload.Kind = jobs.Kind(kind)
		item.Status = jobs.Status(status)
		if err := json.Unmarshal([]byte(prompts), &item.Payload.Prompts); err != nil {
			return nil, fmt.Errorf("decode prompts for run %s: %w", item.ID, err)
		}
		ret = append(ret, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *SQLiteStore) DeleteRun(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	return err
}

func (s *SQLiteStore) UpsertRun(ctx context.Context, run *jobs.OrchestrationRun) error {
	if run == nil {
		return fmt.Errorf("run is nil")
	}
	prompts, err := json.Marshal(run.Payload.Prompts)
	if err != nil {
		return fmt.Errorf("encode prompts for run %s: %w", run.ID, err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO runs (
			id, source, dedupe_key, kind, model_id, prompts, error_strategy, definition_path, status, error, checkpoint_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source=excluded.source,
			dedupe_key=excluded.dedupe_key,
			kind=excluded.kind,
			model_id=excluded.model_id,
			prompts=excluded.prompts,
			error_strategy=excluded.error_strategy,
			definition_path=excluded.definition_path,
			status=excluded.status,
			error=excluded.error,
			checkpoint_id=excluded.checkpoint_id,
			updated_at=excluded.updated_at`,
		run.ID,
		run.Source,
		run.DedupeKey,
		string(run.Payload.Kind),
		run.Payload.ModelID,
		string(prompts),
		run.Payload.ErrorStrategy,
		run.Payload.DefinitionPath,
		string(run.Status),
		run.Error,
		run.CheckpointID,
		run.CreatedAt,
		run.UpdatedAt,
	)
	return err
}
