// Package database connects to Postgres and applies the schema migrations.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"
)

//go:embed migrations/*.sql
var embedded embed.FS

// Migrations returns the embedded schema migrations rooted at their directory.
func Migrations() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

const (
	createMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version    TEXT        PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	selectAppliedMigrations = `SELECT version FROM schema_migrations`
	insertAppliedMigration  = `INSERT INTO schema_migrations (version) VALUES ($1)`
)

// Migrator applies plain .up.sql migrations in lexical order, recording each
// applied file in schema_migrations. Each migration runs in its own transaction.
type Migrator struct {
	db  *sql.DB
	log *slog.Logger
}

// NewMigrator constructs a Migrator that logs through the provided logger instance.
func NewMigrator(db *sql.DB, log *slog.Logger) *Migrator {
	if log == nil {
		log = slog.Default()
	}

	return &Migrator{
		db:  db,
		log: log,
	}
}

// Apply runs every migration in fsys that has not been applied yet and
// returns the names of the applied files.
func (m *Migrator) Apply(ctx context.Context, fsys fs.FS) ([]string, error) {
	names, err := ListMigrations(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}

	if len(names) == 0 {
		m.log.InfoContext(ctx, "no .up.sql migrations found")
		return nil, nil
	}

	if _, err := m.db.ExecContext(ctx, createMigrationsTable); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, name := range Pending(names, applied) {
		if err := m.applyFile(ctx, fsys, name); err != nil {
			return done, err
		}
		done = append(done, name)
	}

	m.log.InfoContext(ctx, "migrations applied", slog.Int("count", len(done)), slog.Int("total", len(names)))

	return done, nil
}

func (m *Migrator) applied(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, selectAppliedMigrations)
	if err != nil {
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan schema_migrations: %w", err)
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

func (m *Migrator) applyFile(ctx context.Context, fsys fs.FS, name string) error {
	scopedLog := m.log.With(slog.String("file", name))
	start := time.Now()

	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read migration %q: %w", name, err)
	}

	statement := strings.TrimSpace(string(data))

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction for migration %q: %w", name, err)
	}

	if statement == "" {
		scopedLog.WarnContext(ctx, "migration is empty")
	} else if _, execErr := tx.ExecContext(ctx, statement); execErr != nil {
		m.rollback(ctx, scopedLog, tx)
		return fmt.Errorf("execute migration %q: %w", name, execErr)
	}

	if _, err := tx.ExecContext(ctx, insertAppliedMigration, name); err != nil {
		m.rollback(ctx, scopedLog, tx)
		return fmt.Errorf("record migration %q: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %q: %w", name, err)
	}

	scopedLog.InfoContext(ctx, "migration applied", slog.Duration("duration", time.Since(start)))
	return nil
}

func (m *Migrator) rollback(ctx context.Context, log *slog.Logger, tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
		log.ErrorContext(ctx, "rollback error", slog.Any("error", err))
	}
}

func isUpMigration(name string) bool {
	return strings.HasSuffix(name, ".up.sql")
}

// ListMigrations returns all .up.sql files in dir in lexical order.
func ListMigrations(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !isUpMigration(e.Name()) {
			continue
		}
		names = append(names, path.Join(dir, e.Name()))
	}

	sort.Strings(names)

	return names, nil
}

// Pending returns names not present in applied, keeping their order.
func Pending(names []string, applied map[string]bool) []string {
	pending := make([]string, 0, len(names))
	for _, name := range names {
		if !applied[name] {
			pending = append(pending, name)
		}
	}
	return pending
}
