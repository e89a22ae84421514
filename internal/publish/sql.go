package publish

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	pq "github.com/lib/pq"

	"github.com/stasazaryarozet/sitemirror/internal/config"
	"github.com/stasazaryarozet/sitemirror/internal/pipeline"
)

// SnapshotWriter records run metadata and page/asset snapshots in Postgres,
// so successive mirror runs of a site can be compared and audited.
type SnapshotWriter struct {
	db          *sql.DB
	autoMigrate bool
}

// NewSnapshotWriter opens the database and optionally applies the schema.
func NewSnapshotWriter(cfg config.SQLConfig) (*SnapshotWriter, error) {
	if cfg.Driver == "" || cfg.DSN == "" {
		return nil, errors.New("sql config missing driver or dsn")
	}
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open sql connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sql connection: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime.Duration > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime.Duration)
	}

	w := &SnapshotWriter{db: db, autoMigrate: cfg.AutoMigrate}
	if cfg.AutoMigrate {
		if err := w.ensureSchema(context.Background()); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return w, nil
}

// Publish stores the run row plus one row per page and asset. On an
// undefined-table error with auto-migration enabled the schema is applied
// and the write retried once.
func (w *SnapshotWriter) Publish(ctx context.Context, result *pipeline.Result) error {
	if w == nil || w.db == nil {
		return nil
	}
	if err := w.writeRun(ctx, result); err != nil {
		if w.autoMigrate && isUndefinedTableErr(err) {
			if schemaErr := w.ensureSchema(ctx); schemaErr != nil {
				return fmt.Errorf("ensure schema: %w", schemaErr)
			}
			if retryErr := w.writeRun(ctx, result); retryErr != nil {
				return fmt.Errorf("write snapshot: %w", retryErr)
			}
			return nil
		}
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func (w *SnapshotWriter) writeRun(ctx context.Context, result *pipeline.Result) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
        INSERT INTO mirror_runs (run_id, base_url, started_at, duration_ms, pages, assets, pages_failed, assets_failed)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (run_id) DO NOTHING
    `,
		result.RunID,
		result.BaseURL,
		result.StartedAt,
		result.Duration.Milliseconds(),
		len(result.Pages),
		len(result.Assets),
		result.PagesFailed,
		result.AssetsFailed,
	); err != nil {
		return err
	}

	pageStmt, err := tx.PrepareContext(ctx, `
        INSERT INTO mirror_pages (run_id, url, file_name, html)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (run_id, url) DO UPDATE SET
            file_name = EXCLUDED.file_name,
            html = EXCLUDED.html
    `)
	if err != nil {
		return err
	}
	defer pageStmt.Close()

	for _, page := range result.Pages {
		if _, err := pageStmt.ExecContext(ctx, result.RunID, page.URL, page.FileName, page.HTML); err != nil {
			return err
		}
	}

	assetStmt, err := tx.PrepareContext(ctx, `
        INSERT INTO mirror_assets (run_id, source_url, local_path, kind, fetched, content)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (run_id, source_url) DO UPDATE SET
            local_path = EXCLUDED.local_path,
            kind = EXCLUDED.kind,
            fetched = EXCLUDED.fetched,
            content = EXCLUDED.content
    `)
	if err != nil {
		return err
	}
	defer assetStmt.Close()

	for _, asset := range result.Assets {
		if _, err := assetStmt.ExecContext(ctx,
			result.RunID,
			asset.SourceURL,
			asset.LocalPath,
			string(asset.Kind),
			asset.Fetched,
			asset.Content,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Close releases the database connection.
func (w *SnapshotWriter) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

func (w *SnapshotWriter) ensureSchema(ctx context.Context) error {
	if w == nil || w.db == nil || !w.autoMigrate {
		return nil
	}
	schemaCtx := ctx
	if schemaCtx == nil || schemaCtx.Err() != nil {
		schemaCtx = context.Background()
	}
	schemaCtx, cancel := context.WithTimeout(schemaCtx, 10*time.Second)
	defer cancel()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS mirror_runs (
		    run_id TEXT PRIMARY KEY,
		    base_url TEXT NOT NULL,
		    started_at TIMESTAMPTZ,
		    duration_ms BIGINT,
		    pages INT,
		    assets INT,
		    pages_failed INT,
		    assets_failed INT
		)`,
		`CREATE TABLE IF NOT EXISTS mirror_pages (
		    run_id TEXT NOT NULL REFERENCES mirror_runs (run_id) ON DELETE CASCADE,
		    url TEXT NOT NULL,
		    file_name TEXT NOT NULL,
		    html TEXT,
		    PRIMARY KEY (run_id, url)
		)`,
		`CREATE TABLE IF NOT EXISTS mirror_assets (
		    run_id TEXT NOT NULL REFERENCES mirror_runs (run_id) ON DELETE CASCADE,
		    source_url TEXT NOT NULL,
		    local_path TEXT NOT NULL,
		    kind TEXT,
		    fetched BOOLEAN,
		    content BYTEA,
		    PRIMARY KEY (run_id, source_url)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_mirror_runs_started_at ON mirror_runs (started_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := w.db.ExecContext(schemaCtx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func isUndefinedTableErr(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "42P01"
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "relation") && strings.Contains(lower, "does not exist")
}
