package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"code-review-orchestrator/internal/domain"
)

// ReviewRecord is one finished review persisted for auditing. The pipeline
// never reads records back; prior issues always arrive with the request.
type ReviewRecord struct {
	ID         string                 `json:"id"`
	Workspace  string                 `json:"workspace"`
	Project    string                 `json:"project"`
	PRID       string                 `json:"pr_id"`
	Branch     string                 `json:"branch"`
	Commit     string                 `json:"commit"`
	Response   *domain.ReviewResponse `json:"response,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
	DurationMs int64                  `json:"duration_ms"`
	Status     string                 `json:"status"` // success, failed, cancelled
}

// NewRecord builds an audit record from a finished (or failed) review.
func NewRecord(req *domain.ReviewRequest, resp *domain.ReviewResponse, duration time.Duration, status string) *ReviewRecord {
	return &ReviewRecord{
		ID:         fmt.Sprintf("%s-%s-%s-%s", req.Workspace, req.Project, req.PRID, uuid.NewString()[:8]),
		Workspace:  req.Workspace,
		Project:    req.Project,
		PRID:       req.PRID,
		Branch:     req.Branch,
		Commit:     req.Commit,
		Response:   resp,
		CreatedAt:  time.Now(),
		DurationMs: duration.Milliseconds(),
		Status:     status,
	}
}

// Repository is the audit storage interface.
type Repository interface {
	SaveReview(ctx context.Context, record *ReviewRecord) error
	ListReviewsByPR(ctx context.Context, workspace, project, prID string) ([]*ReviewRecord, error)
	ListRecentReviews(ctx context.Context, limit int) ([]*ReviewRecord, error)
	Close() error
}
