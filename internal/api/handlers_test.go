package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sellerkit/improver/internal/engine"
	"github.com/sellerkit/improver/internal/jobs"
	"github.com/sellerkit/improver/internal/model"
	"github.com/sellerkit/improver/internal/store"
	"github.com/sellerkit/improver/internal/worker"
)

func newTestServer(t *testing.T) (*Server, store.JobStore) {
	t.Helper()
	st := store.NewMemory()
	t.Cleanup(func() { st.Close() })

	pipeline := engine.NewPipeline(&engine.StubAdapter{}, &engine.StubModelClient{})
	w := worker.New(st, pipeline, time.Second)
	return New(st, jobs.NewEnqueuer(st, 75), w), st
}

func doRequest(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func enqueueBatch(t *testing.T, srv *Server) string {
	t.Helper()
	rec := doRequest(t, srv, http.MethodPost, "/api/jobs", map[string]any{
		"products": []map[string]string{
			{"id": "p-42", "sku": "42"},
			{"id": "p-7", "sku": "7"},
		},
		"ratings": map[string]any{
			"42": map[string]any{"product": map[string]string{"id": "p-42", "sku": "42"}, "rating": 50},
			"7":  map[string]any{"product": map[string]string{"id": "p-7", "sku": "7"}, "rating": 90},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create job status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	decodeBody(t, rec, &resp)
	id, _ := resp["id"].(string)
	if id == "" {
		t.Fatal("create job response missing id")
	}
	return id
}

func TestCreateJob(t *testing.T) {
	srv, _ := newTestServer(t)
	id := enqueueBatch(t, srv)

	rec := doRequest(t, srv, http.MethodGet, "/api/jobs/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get job status = %d", rec.Code)
	}
	var detail jobDetailResponse
	decodeBody(t, rec, &detail)

	if detail.Job == nil || detail.Job.Status != model.JobPending {
		t.Errorf("job = %+v, want pending", detail.Job)
	}
	if len(detail.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(detail.Items))
	}
	for _, item := range detail.Items {
		if item.Status != model.ItemPending {
			t.Errorf("item %s status = %q, want pending", item.ID, item.Status)
		}
		if item.InputSnapshot == nil {
			t.Errorf("item %s missing input snapshot", item.ID)
		}
	}
}

func TestCreateJob_Validation(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/jobs", map[string]any{"products": []any{}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty products status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/jobs", map[string]any{
		"products": []map[string]string{{"sku": "42"}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing id status = %d, want 400", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/jobs", bytes.NewBufferString("{not json"))
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rec.Code)
	}
}

func TestListJobs(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/jobs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var list []model.Job
	decodeBody(t, rec, &list)
	if len(list) != 0 {
		t.Errorf("jobs = %d, want 0 (and an empty array, not null)", len(list))
	}

	enqueueBatch(t, srv)
	rec = doRequest(t, srv, http.MethodGet, "/api/jobs", nil)
	decodeBody(t, rec, &list)
	if len(list) != 1 {
		t.Errorf("jobs = %d, want 1", len(list))
	}
}

func TestGetJob_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/api/jobs/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestUpdateJobStatus(t *testing.T) {
	srv, _ := newTestServer(t)
	id := enqueueBatch(t, srv)

	rec := doRequest(t, srv, http.MethodPatch, "/api/jobs/"+id+"/status", map[string]string{"status": "running"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, srv, http.MethodPatch, "/api/jobs/"+id+"/status", map[string]string{"status": "sleeping"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown status code = %d, want 400", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPatch, "/api/jobs/nope/status", map[string]string{"status": "paused"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing job code = %d, want 404", rec.Code)
	}
}

func TestRunWorker(t *testing.T) {
	srv, st := newTestServer(t)
	id := enqueueBatch(t, srv)

	rec := doRequest(t, srv, http.MethodPost, "/api/worker/run", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("worker run status = %d, body %s", rec.Code, rec.Body.String())
	}
	var pass worker.PassResult
	decodeBody(t, rec, &pass)
	if pass.Processed != 2 {
		t.Errorf("processed = %d, want 2", pass.Processed)
	}

	items, err := st.ListItemsByJob(context.Background(), id)
	if err != nil {
		t.Fatalf("ListItemsByJob: %v", err)
	}
	byOffer := make(map[string]model.Item, len(items))
	for _, item := range items {
		byOffer[item.OfferID] = item
	}

	// Rating 50 is below target, so the low-rated product is generated.
	low := byOffer["p-42"]
	if low.Status != model.ItemDone {
		t.Errorf("p-42 status = %q, want done", low.Status)
	}
	if low.ResultSnapshot == nil || len(low.ResultSnapshot.AIOutputs) == 0 {
		t.Errorf("p-42 result = %+v, want generated outputs", low.ResultSnapshot)
	}

	// Rating 90 meets the target, so the item is skipped by plan.
	high := byOffer["p-7"]
	if high.Status != model.ItemSkipped {
		t.Errorf("p-7 status = %q, want skipped", high.Status)
	}
	if high.ResultSnapshot == nil || !high.ResultSnapshot.SkippedByPlan() {
		t.Errorf("p-7 result = %+v, want skipped_by_plan", high.ResultSnapshot)
	}
}

func TestGetItem(t *testing.T) {
	srv, st := newTestServer(t)
	id := enqueueBatch(t, srv)

	items, err := st.ListItemsByJob(context.Background(), id)
	if err != nil || len(items) == 0 {
		t.Fatalf("ListItemsByJob: %v (%d items)", err, len(items))
	}

	rec := doRequest(t, srv, http.MethodGet, "/api/items/"+items[0].ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get item status = %d", rec.Code)
	}
	var item model.Item
	decodeBody(t, rec, &item)
	if item.ID != items[0].ID {
		t.Errorf("item id = %q, want %q", item.ID, items[0].ID)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/items/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing item status = %d, want 404", rec.Code)
	}
}
