package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // Pure Go driver, CGO-free, compatible with CGO_ENABLED=0

	"code-review-orchestrator/internal/domain"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dsn string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func migrate(db *sql.DB) error {
	schema := `
    CREATE TABLE IF NOT EXISTS reviews (
        id            TEXT PRIMARY KEY,
        workspace     TEXT NOT NULL,
        project       TEXT NOT NULL,
        pr_id         TEXT NOT NULL,
        branch        TEXT,
        commit_sha    TEXT,
        response_data TEXT,
        created_at    DATETIME DEFAULT CURRENT_TIMESTAMP,
        duration_ms   INTEGER,
        status        TEXT NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_reviews_pr ON reviews(workspace, project, pr_id);
    CREATE INDEX IF NOT EXISTS idx_reviews_created ON reviews(created_at);
    `
	_, err := db.Exec(schema)
	return err
}

func (r *SQLiteRepository) SaveReview(ctx context.Context, record *ReviewRecord) error {
	responseData := []byte("null")
	if record.Response != nil {
		var err error
		responseData, err = json.Marshal(record.Response)
		if err != nil {
			return fmt.Errorf("marshal response: %w", err)
		}
	}

	_, err := r.db.ExecContext(ctx, `
        INSERT INTO reviews (id, workspace, project, pr_id, branch, commit_sha, response_data, duration_ms, status, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, record.ID, record.Workspace, record.Project, record.PRID, record.Branch,
		record.Commit, string(responseData), record.DurationMs, record.Status, record.CreatedAt)
	return err
}

func (r *SQLiteRepository) ListReviewsByPR(ctx context.Context, workspace, project, prID string) ([]*ReviewRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, workspace, project, pr_id, branch, commit_sha, response_data, created_at, duration_ms, status
        FROM reviews
        WHERE workspace = ? AND project = ? AND pr_id = ?
        ORDER BY created_at DESC
    `, workspace, project, prID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReviews(rows)
}

func (r *SQLiteRepository) ListRecentReviews(ctx context.Context, limit int) ([]*ReviewRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, workspace, project, pr_id, branch, commit_sha, response_data, created_at, duration_ms, status
        FROM reviews
        ORDER BY created_at DESC
        LIMIT ?
    `, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReviews(rows)
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func scanReviews(rows *sql.Rows) ([]*ReviewRecord, error) {
	var reviews []*ReviewRecord
	for rows.Next() {
		var rec ReviewRecord
		var responseData string
		var createdAt time.Time

		if err := rows.Scan(&rec.ID, &rec.Workspace, &rec.Project, &rec.PRID, &rec.Branch,
			&rec.Commit, &responseData, &createdAt, &rec.DurationMs, &rec.Status); err != nil {
			slog.Warn("scan review failed", "error", err)
			continue
		}
		rec.CreatedAt = createdAt

		if responseData != "" && responseData != "null" {
			var resp domain.ReviewResponse
			if err := json.Unmarshal([]byte(responseData), &resp); err != nil {
				slog.Warn("unmarshal review response failed", "error", err)
			} else {
				rec.Response = &resp
			}
		}
		reviews = append(reviews, &rec)
	}
	return reviews, rows.Err()
}
