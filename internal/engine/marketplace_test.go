package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sellerkit/improver/internal/model"
)

func TestHTTPAdapter_FetchProductSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/products/p-42" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Api-Key"); got != "key-1" {
			t.Errorf("Api-Key = %q, want key-1", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":         "p-42",
			"name":       "Steel Mug",
			"brand":      "MugCo",
			"annotation": "A mug.",
			"images":     []string{"https://cdn.example/1.jpg"},
			"attributes": map[string]any{"volume": "350ml"},
			"page_url":   "https://market.example/p/42",
		})
	}))
	defer srv.Close()

	a := NewHTTPAdapter("testmarket", srv.URL, "key-1")
	snap, err := a.FetchProductSnapshot(context.Background(), model.ProductRef{ID: "p-42", SKU: "42"})
	if err != nil {
		t.Fatalf("FetchProductSnapshot: %v", err)
	}
	if snap.Name() != "Steel Mug" {
		t.Errorf("name = %q, want %q", snap.Name(), "Steel Mug")
	}
	if snap.Media == nil || len(snap.Media.Images) != 1 {
		t.Errorf("media = %+v, want 1 image", snap.Media)
	}
	if url, _ := snap.Extra["page_url"].(string); url != "https://market.example/p/42" {
		t.Errorf("page_url = %q", url)
	}
}

func TestHTTPAdapter_ApplyProductChanges(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/products/p-42/content" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var changes map[string]any
		if err := json.NewDecoder(r.Body).Decode(&changes); err != nil {
			t.Fatalf("decode changes: %v", err)
		}
		if _, ok := changes["rich_content"]; !ok {
			t.Error("changes missing rich_content")
		}
		json.NewEncoder(w).Encode(map[string]any{"task_id": "t-1"})
	}))
	defer srv.Close()

	a := NewHTTPAdapter("testmarket", srv.URL, "key-1")
	resp, err := a.ApplyProductChanges(context.Background(), model.ProductRef{ID: "p-42"},
		map[string]any{"rich_content": json.RawMessage(`{"version":1}`)})
	if err != nil {
		t.Fatalf("ApplyProductChanges: %v", err)
	}
	if resp["task_id"] != "t-1" {
		t.Errorf("task_id = %v, want t-1", resp["task_id"])
	}
}

func TestHTTPAdapter_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	a := NewHTTPAdapter("testmarket", srv.URL, "key-1")
	if _, err := a.FetchProductSnapshot(context.Background(), model.ProductRef{ID: "p-1"}); err == nil {
		t.Error("expected error for HTTP 403")
	}
}
