package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lake-loader/internal/domain"
)

var _ domain.CommitLog = (*TableCommitRepo)(nil)

// TableCommitRepo keeps table transaction logs in SQLite. The primary key on
// (table_path, version) makes a conditional append atomic.
type TableCommitRepo struct {
	db *sql.DB
}

// NewTableCommitRepo creates a TableCommitRepo. db should be the write pool.
func NewTableCommitRepo(db *sql.DB) *TableCommitRepo {
	return &TableCommitRepo{db: db}
}

// Read returns the latest version, every committed dedupe key and the
// current schema of tablePath. An unknown table is at version 0.
func (r *TableCommitRepo) Read(ctx context.Context, tablePath string) (*domain.TableState, error) {
	st := &domain.TableState{DedupeKeys: make(map[string]struct{})}

	var schemaJSON string
	err := r.db.QueryRowContext(ctx, `
		SELECT version, schema_json FROM table_commits
		WHERE table_path = ? ORDER BY version DESC LIMIT 1`, tablePath,
	).Scan(&st.Version, &schemaJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read latest commit: %w", err)
	}
	if err := json.Unmarshal([]byte(schemaJSON), &st.Schema); err != nil {
		return nil, fmt.Errorf("decode schema of %s@%d: %w", tablePath, st.Version, err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT dedupe_key FROM table_commits
		WHERE table_path = ? AND dedupe_key <> ''`, tablePath)
	if err != nil {
		return nil, fmt.Errorf("read dedupe keys: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		st.DedupeKeys[key] = struct{}{}
	}
	return st, rows.Err()
}

// Append inserts the commit as version req.Expected+1 if the table is still
// at req.Expected. A lost race or an already committed dedupe key yields a
// *domain.VersionConflictError.
func (r *TableCommitRepo) Append(ctx context.Context, tablePath string, req domain.CommitRequest) (domain.TableVersion, error) {
	partitions, err := json.Marshal(partitionsOrEmpty(req.Partitions))
	if err != nil {
		return 0, fmt.Errorf("encode partitions: %w", err)
	}
	schemaJSON, err := json.Marshal(req.Schema)
	if err != nil {
		return 0, fmt.Errorf("encode schema: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin commit: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var current domain.TableVersion
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM table_commits WHERE table_path = ?`, tablePath,
	).Scan(&current); err != nil {
		return 0, fmt.Errorf("read current version: %w", err)
	}
	if current != req.Expected {
		return 0, &domain.VersionConflictError{Table: tablePath, Expected: req.Expected}
	}

	next := req.Expected + 1
	_, err = tx.ExecContext(ctx, `
		INSERT INTO table_commits
			(table_path, version, artifact, row_count, size_bytes, partitions, dedupe_key, schema_json, committed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tablePath, next, req.Artifact.Path, req.Artifact.RowCount, req.Artifact.SizeBytes,
		string(partitions), req.DedupeKey, string(schemaJSON),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return 0, &domain.VersionConflictError{Table: tablePath, Expected: req.Expected}
		}
		return 0, fmt.Errorf("insert commit: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return next, nil
}

// List returns the commits of tablePath in version order.
func (r *TableCommitRepo) List(ctx context.Context, tablePath string) ([]domain.Commit, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT version, artifact, row_count, size_bytes, partitions, dedupe_key, schema_json, committed_at
		FROM table_commits WHERE table_path = ? ORDER BY version`, tablePath)
	if err != nil {
		return nil, fmt.Errorf("list commits: %w", err)
	}
	defer rows.Close()

	var out []domain.Commit
	for rows.Next() {
		var c domain.Commit
		var partitions, schemaJSON, committedAt string
		if err := rows.Scan(&c.Version, &c.Artifact.Path, &c.Artifact.RowCount, &c.Artifact.SizeBytes,
			&partitions, &c.DedupeKey, &schemaJSON, &committedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(partitions), &c.Partitions); err != nil {
			return nil, fmt.Errorf("decode partitions of version %d: %w", c.Version, err)
		}
		if err := json.Unmarshal([]byte(schemaJSON), &c.Schema); err != nil {
			return nil, fmt.Errorf("decode schema of version %d: %w", c.Version, err)
		}
		c.CommittedAt, _ = time.Parse(time.RFC3339Nano, committedAt)
		out = append(out, c)
	}
	return out, rows.Err()
}
