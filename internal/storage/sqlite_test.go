package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"code-review-orchestrator/internal/domain"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "reviews.db")
	repo, err := NewSQLiteRepository(dsn)
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSaveAndListReviews(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	req := &domain.ReviewRequest{Workspace: "ws", Project: "proj", Branch: "main", PRID: "12"}
	resp := &domain.ReviewResponse{
		Comment: "looks fine",
		Issues: []domain.Issue{
			{ID: "i1", Severity: domain.SeverityLow, Category: domain.CategoryStyle, File: "a.go", Line: 3, Reason: "nit"},
		},
	}

	record := NewRecord(req, resp, 1500*time.Millisecond, "success")
	if err := repo.SaveReview(ctx, record); err != nil {
		t.Fatalf("save: %v", err)
	}

	// A failed review has no response payload.
	failed := NewRecord(req, nil, 10*time.Millisecond, "failed")
	if err := repo.SaveReview(ctx, failed); err != nil {
		t.Fatalf("save failed record: %v", err)
	}

	byPR, err := repo.ListReviewsByPR(ctx, "ws", "proj", "12")
	if err != nil {
		t.Fatalf("list by pr: %v", err)
	}
	if len(byPR) != 2 {
		t.Fatalf("expected 2 records, got %d", len(byPR))
	}

	var withResponse *ReviewRecord
	for _, r := range byPR {
		if r.Response != nil {
			withResponse = r
		}
	}
	if withResponse == nil {
		t.Fatal("expected one record with a response payload")
	}
	if withResponse.Response.Comment != "looks fine" {
		t.Errorf("comment round-trip failed: %q", withResponse.Response.Comment)
	}
	if len(withResponse.Response.Issues) != 1 || withResponse.Response.Issues[0].ID != "i1" {
		t.Errorf("issues round-trip failed: %+v", withResponse.Response.Issues)
	}

	recent, err := repo.ListRecentReviews(ctx, 1)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(recent) != 1 {
		t.Errorf("expected limit to apply, got %d", len(recent))
	}
}

func TestListReviewsByPRScoping(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	a := NewRecord(&domain.ReviewRequest{Workspace: "ws", Project: "a", Branch: "main", PRID: "1"}, nil, 0, "success")
	b := NewRecord(&domain.ReviewRequest{Workspace: "ws", Project: "b", Branch: "main", PRID: "1"}, nil, 0, "success")
	if err := repo.SaveReview(ctx, a); err != nil {
		t.Fatal(err)
	}
	if err := repo.SaveReview(ctx, b); err != nil {
		t.Fatal(err)
	}

	got, err := repo.ListReviewsByPR(ctx, "ws", "a", "1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Project != "a" {
		t.Errorf("scoping failed: %+v", got)
	}
}
