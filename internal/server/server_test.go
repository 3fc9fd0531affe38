package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"planner-agent/internal/model"
	"planner-agent/internal/service"
)

type fakeEntries map[model.Category]int

func (f fakeEntries) Counts() map[model.Category]int { return f }

type fakeJobs []service.Job

func (f fakeJobs) Pending() []service.Job { return f }

func TestHealthz(t *testing.T) {
	h := NewRouter(fakeEntries{model.CategoryReminder: 2}, fakeJobs{{EntryID: 1}})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.PendingReminders != 1 || body.Entries[model.CategoryReminder] != 2 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestMetrics(t *testing.T) {
	h := NewRouter(fakeEntries{}, fakeJobs{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Fatal("metrics output missing default collectors")
	}
}
