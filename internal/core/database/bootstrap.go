package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/markdave123-py/contexta-ingest/internal/logger"
)

// schemaVersion is the contexta_meta row written by the last statement of initdb.sql.
// Version 2 added search_knowledge_by_keyword. Every statement in the script is
// idempotent, so an older database is upgraded by rerunning the whole file.
const schemaVersion = 2

const bootstrapScript = "scripts/initdb.sql"

//go:embed scripts/initdb.sql
var bootstrapFS embed.FS

// appliedVersionQuery yields 0 when contexta_meta does not exist yet.
const appliedVersionQuery = `
	SELECT CASE
	  WHEN to_regclass('contexta_meta') IS NULL THEN 0
	  ELSE (SELECT coalesce(max(version), 0) FROM contexta_meta)
	END`

// EnsureBootstrapped brings the schema up to schemaVersion, running the embedded
// script inside one transaction when the database is behind.
func EnsureBootstrapped(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	applied, err := appliedSchemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if applied >= schemaVersion {
		logger.Debug("schema up to date", "version", applied)
		return nil
	}

	logger.Info("applying schema", "from_version", applied, "to_version", schemaVersion)
	return applyScript(ctx, db)
}

func appliedSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, appliedVersionQuery).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

func applyScript(ctx context.Context, db *sql.DB) error {
	script, err := bootstrapFS.ReadFile(bootstrapScript)
	if err != nil {
		return fmt.Errorf("read %s: %w", bootstrapScript, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, string(script)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("apply %s: %w", bootstrapScript, err)
	}
	return tx.Commit()
}
