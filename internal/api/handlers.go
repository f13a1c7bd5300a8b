package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sellerkit/improver/internal/jobs"
	"github.com/sellerkit/improver/internal/model"
	"github.com/sellerkit/improver/internal/store"
)

// Enqueuer plans and creates rating-improve jobs.
type Enqueuer interface {
	EnqueueRatingImprove(ctx context.Context, req jobs.Request) (*model.Job, error)
}

// ---------------------------------------------------------------------------
// POST /api/jobs
// ---------------------------------------------------------------------------

type createJobRequest struct {
	Products []model.ProductRef `json:"products"`
	// Ratings is keyed by product SKU (falling back to id). A missing
	// key means the product's rating is unknown.
	Ratings      map[string]json.RawMessage `json:"ratings,omitempty"`
	TargetRating float64                    `json:"target_rating,omitempty"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Products) == 0 {
		writeError(w, http.StatusBadRequest, "products is required")
		return
	}
	for _, p := range req.Products {
		if p.ID == "" {
			writeError(w, http.StatusBadRequest, "every product needs an id")
			return
		}
	}

	ratings := make(map[string]*model.RatingEntry, len(req.Ratings))
	for key, raw := range req.Ratings {
		var entry model.RatingEntry
		if err := json.Unmarshal(raw, &entry); err != nil {
			writeError(w, http.StatusBadRequest, "invalid rating entry for "+key)
			return
		}
		entry.Raw = raw
		ratings[key] = &entry
	}

	job, err := s.enqueuer.EnqueueRatingImprove(r.Context(), jobs.Request{
		Refs:         req.Products,
		Ratings:      ratings,
		TargetRating: req.TargetRating,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":     job.ID,
		"kind":   job.Kind,
		"status": job.Status,
		"items":  len(req.Products),
	})
}

// ---------------------------------------------------------------------------
// GET /api/jobs
// ---------------------------------------------------------------------------

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListJobs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	if list == nil {
		list = []model.Job{}
	}
	writeJSON(w, http.StatusOK, list)
}

// ---------------------------------------------------------------------------
// GET /api/jobs/{id}
// ---------------------------------------------------------------------------

type jobDetailResponse struct {
	Job   *model.Job   `json:"job"`
	Items []model.Item `json:"items"`
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	job, err := s.store.GetJob(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	items, err := s.store.ListItemsByJob(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list job items")
		return
	}
	if items == nil {
		items = []model.Item{}
	}

	writeJSON(w, http.StatusOK, jobDetailResponse{Job: job, Items: items})
}

// ---------------------------------------------------------------------------
// PATCH /api/jobs/{id}/status
// ---------------------------------------------------------------------------

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdateJobStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !model.ValidJobStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "unknown job status")
		return
	}

	err := s.store.UpdateJobStatus(r.Context(), id, req.Status)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update status")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": req.Status})
}

// ---------------------------------------------------------------------------
// GET /api/items/{id}
// ---------------------------------------------------------------------------

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	item, err := s.store.GetItem(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "item not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get item")
		return
	}

	writeJSON(w, http.StatusOK, item)
}

// ---------------------------------------------------------------------------
// POST /api/worker/run
// ---------------------------------------------------------------------------

func (s *Server) handleRunWorker(w http.ResponseWriter, r *http.Request) {
	pass, err := s.worker.RunOnce(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "worker pass failed")
		return
	}
	writeJSON(w, http.StatusOK, pass)
}
