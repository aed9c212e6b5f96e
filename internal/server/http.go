// Package server is the thin HTTP surface over the review orchestrator and
// indexer: request decoding, optional SSE progress streaming, and async
// index job submission. All logic lives below it.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"code-review-orchestrator/internal/config"
	"code-review-orchestrator/internal/domain"
	"code-review-orchestrator/internal/index"
	"code-review-orchestrator/internal/review"
	"code-review-orchestrator/internal/types"
)

// Handler bundles the HTTP endpoints.
type Handler struct {
	cfg          *config.Config
	orchestrator *review.Orchestrator
	indexer      *index.Indexer
	pool         *WorkerPool
}

// NewHandler creates the HTTP handler set.
func NewHandler(cfg *config.Config, orchestrator *review.Orchestrator, indexer *index.Indexer, pool *WorkerPool) *Handler {
	return &Handler{cfg: cfg, orchestrator: orchestrator, indexer: indexer, pool: pool}
}

// Register installs the routes on a mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/review", h.handleReview)
	mux.HandleFunc("POST /api/v1/index", h.handleIndex)
	mux.HandleFunc("POST /api/v1/files", h.handleUpdateFiles)
	mux.HandleFunc("DELETE /api/v1/files", h.handleDeleteFiles)
	mux.HandleFunc("DELETE /api/v1/branches/{branch}", h.handleDeleteBranch)
}

// handleReview runs a review synchronously. When the client asks for
// text/event-stream, progress events stream as SSE and the final event
// carries the result; otherwise the response is one JSON document.
func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	var req domain.ReviewRequest
	body := http.MaxBytesReader(w, r.Body, h.cfg.Server.MaxBodySize)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		h.reviewSSE(w, r, &req)
		return
	}

	resp, err := h.orchestrator.Run(r.Context(), &req, nil)
	if err != nil {
		writeReviewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) reviewSSE(w http.ResponseWriter, r *http.Request, req *domain.ReviewRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	emit := func(e domain.Event) {
		data, err := json.Marshal(e)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	if _, err := h.orchestrator.Run(r.Context(), req, emit); err != nil {
		// The error event was already emitted by the orchestrator.
		slog.Warn("streamed review failed", "pr", req.PRID, "error", err)
	}
}

// indexRequest is the body of index and file-update calls.
type indexRequest struct {
	Workspace string            `json:"workspace"`
	Project   string            `json:"project"`
	Branch    string            `json:"branch"`
	Commit    string            `json:"commit,omitempty"`
	RepoPath  string            `json:"repoPath,omitempty"`
	Files     map[string]string `json:"files,omitempty"`
	Paths     []string          `json:"paths,omitempty"`
}

func (r *indexRequest) validate(needRepo, needFiles, needPaths bool) error {
	var missing []string
	if r.Workspace == "" {
		missing = append(missing, "workspace")
	}
	if r.Project == "" {
		missing = append(missing, "project")
	}
	if r.Branch == "" {
		missing = append(missing, "branch")
	}
	if needRepo && r.RepoPath == "" {
		missing = append(missing, "repoPath")
	}
	if needFiles && len(r.Files) == 0 {
		missing = append(missing, "files")
	}
	if needPaths && len(r.Paths) == 0 {
		missing = append(missing, "paths")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// handleIndex submits an async repository indexing job: 202 on acceptance.
func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if err := req.validate(true, false, false); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := func(ctx context.Context) error {
		_, err := h.indexer.IndexRepository(ctx, req.RepoPath, req.Workspace, req.Project, req.Branch, req.Commit)
		return err
	}
	if err := h.pool.Submit(job); err != nil {
		http.Error(w, "indexing queue full, retry later", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// handleUpdateFiles replaces indexed chunks for specific files, synchronously.
func (h *Handler) handleUpdateFiles(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if err := req.validate(false, true, false); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.indexer.UpdateFiles(r.Context(), req.Workspace, req.Project, req.Branch, req.Commit, req.Files); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": len(req.Files)})
}

func (h *Handler) handleDeleteFiles(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if err := req.validate(false, false, true); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.indexer.DeleteFiles(r.Context(), req.Workspace, req.Project, req.Branch, req.Paths); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": len(req.Paths)})
}

func (h *Handler) handleDeleteBranch(w http.ResponseWriter, r *http.Request) {
	branch := r.PathValue("branch")
	workspace := r.URL.Query().Get("workspace")
	project := r.URL.Query().Get("project")
	if workspace == "" || project == "" || branch == "" {
		http.Error(w, "workspace, project and branch are required", http.StatusBadRequest)
		return
	}

	if err := h.indexer.DeleteBranch(r.Context(), workspace, project, branch); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "branch": branch})
}

func writeReviewError(w http.ResponseWriter, err error) {
	var verr *types.ValidationError
	if errors.As(err, &verr) {
		http.Error(w, verr.Error(), http.StatusBadRequest)
		return
	}
	var berr *types.BudgetExceededError
	if errors.As(err, &berr) {
		http.Error(w, berr.Error(), http.StatusUnprocessableEntity)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response failed", "error", err)
	}
}
