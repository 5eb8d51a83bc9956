package run

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Repository interface {
	Save(ctx context.Context, r *Run) error
	ListBySite(ctx context.Context, site string, limit int) ([]Run, error)
	CountBySite(ctx context.Context, site string) (int, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// Migrate applies the ledger schema.
func Migrate(db *sql.DB) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("migration source error: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver error: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migration instance error: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up error: %w", err)
	}
	return nil
}

func (r *PostgresRepo) Save(ctx context.Context, run *Run) error {
	query := `INSERT INTO index_runs (id, kind, site, source, found, indexed, skipped, deleted, status, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.db.ExecContext(ctx, query,
		run.ID, string(run.Kind), run.Site, run.Source, run.Found, run.Indexed, run.Skipped, run.Deleted,
		string(run.Status), run.Error, run.StartedAt, run.FinishedAt)
	return err
}

func (r *PostgresRepo) ListBySite(ctx context.Context, site string, limit int) ([]Run, error) {
	query := `SELECT id, kind, site, source, found, indexed, skipped, deleted, status, error, started_at, finished_at
		FROM index_runs WHERE site = $1 ORDER BY started_at DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, site, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var kind, status string
		if err := rows.Scan(&run.ID, &kind, &run.Site, &run.Source, &run.Found, &run.Indexed, &run.Skipped,
			&run.Deleted, &status, &run.Error, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, err
		}
		run.Kind, run.Status = Kind(kind), Status(status)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *PostgresRepo) CountBySite(ctx context.Context, site string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM index_runs WHERE site = $1`
	err := r.db.QueryRowContext(ctx, query, site).Scan(&count)
	return count, err
}
