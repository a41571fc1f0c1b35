package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/field-dispatch/internal/config"
	"github.com/example/field-dispatch/internal/logging"
	"github.com/example/field-dispatch/internal/models"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.ServerConfig{CaptureTimeout: time.Second}
	return NewServer(cfg, logging.NewLogger("error"))
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func createJob(t *testing.T, s *Server, staff ...string) models.ServiceRequest {
	t.Helper()
	rec := doJSON(t, s, http.MethodPost, "/api/v1/jobs", map[string]any{
		"title":          "Dead battery on I-35",
		"customer_name":  "Ann",
		"service_type":   "jump_start",
		"location":       map[string]any{"latitude": 30.2672, "longitude": -97.7431, "address": "Austin, TX"},
		"assigned_staff": staff,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create job: %d %s", rec.Code, rec.Body.String())
	}
	var job models.ServiceRequest
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	return job
}

func acceptBody(userID string) map[string]any {
	return map[string]any{
		"user":        map[string]any{"id": userID, "name": "Worker", "role": "worker"},
		"platform":    "android",
		"coordinates": map[string]any{"latitude": 30.2700, "longitude": -97.7400},
	}
}

func TestAcceptFlow(t *testing.T) {
	s := testServer(t)
	job := createJob(t, s, "w1")

	rec := doJSON(t, s, http.MethodPost, "/api/v1/jobs/"+job.ID+"/accept", acceptBody("w1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("accept: %d %s", rec.Code, rec.Body.String())
	}
	var updated models.ServiceRequest
	_ = json.Unmarshal(rec.Body.Bytes(), &updated)
	if updated.Status != models.StatusScheduled {
		t.Fatalf("expected scheduled, got %s", updated.Status)
	}

	// the acceptance must now appear on the job detail
	rec = doJSON(t, s, http.MethodGet, "/api/v1/jobs/"+job.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get job: %d", rec.Code)
	}
	var detail struct {
		AcceptanceLogs []models.AcceptanceLog `json:"acceptance_logs"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &detail)
	if len(detail.AcceptanceLogs) != 1 {
		t.Fatalf("expected one acceptance log, got %d", len(detail.AcceptanceLogs))
	}
}

func TestAcceptUnauthorizedIsConflict(t *testing.T) {
	s := testServer(t)
	job := createJob(t, s, "w1")

	rec := doJSON(t, s, http.MethodPost, "/api/v1/jobs/"+job.ID+"/accept", acceptBody("intruder"))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestAcceptBadCoordinatesIsUnprocessable(t *testing.T) {
	s := testServer(t)
	job := createJob(t, s, "w1")

	body := acceptBody("w1")
	body["coordinates"] = map[string]any{"latitude": 0, "longitude": 0}
	rec := doJSON(t, s, http.MethodPost, "/api/v1/jobs/"+job.ID+"/accept", body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d %s", rec.Code, rec.Body.String())
	}
	var out map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	if out["error"] == "" {
		t.Fatal("error reason must be surfaced to the operator")
	}
}

func TestAcceptMissingJobIsNotFound(t *testing.T) {
	s := testServer(t)
	rec := doJSON(t, s, http.MethodPost, "/api/v1/jobs/nope/accept", acceptBody("w1"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestDeclineEndpoint(t *testing.T) {
	s := testServer(t)
	job := createJob(t, s, "w1", "w2")

	rec := doJSON(t, s, http.MethodPost, "/api/v1/jobs/"+job.ID+"/decline",
		map[string]any{"user": map[string]any{"id": "w1", "name": "Worker", "role": "worker"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("decline: %d %s", rec.Code, rec.Body.String())
	}
	var updated models.ServiceRequest
	_ = json.Unmarshal(rec.Body.Bytes(), &updated)
	if updated.Status != models.StatusPending || len(updated.AssignedStaff) != 1 {
		t.Fatalf("unexpected job after decline: %+v", updated)
	}
}

func TestLifecycleEndpoints(t *testing.T) {
	s := testServer(t)
	job := createJob(t, s, "w1")

	if rec := doJSON(t, s, http.MethodPost, "/api/v1/jobs/"+job.ID+"/complete", nil); rec.Code != http.StatusConflict {
		t.Fatalf("pending -> completed should 409, got %d", rec.Code)
	}
	if rec := doJSON(t, s, http.MethodPost, "/api/v1/jobs/"+job.ID+"/accept", acceptBody("w1")); rec.Code != http.StatusOK {
		t.Fatalf("accept: %d", rec.Code)
	}
	if rec := doJSON(t, s, http.MethodPost, "/api/v1/jobs/"+job.ID+"/complete", nil); rec.Code != http.StatusOK {
		t.Fatalf("complete: %d %s", rec.Code, rec.Body.String())
	}
}

func TestMileageReportEndpoint(t *testing.T) {
	s := testServer(t)
	for i := 0; i < 3; i++ {
		job := createJob(t, s, "w1")
		if rec := doJSON(t, s, http.MethodPost, "/api/v1/jobs/"+job.ID+"/accept", acceptBody("w1")); rec.Code != http.StatusOK {
			t.Fatalf("accept %d: %d", i, rec.Code)
		}
	}
	createJob(t, s, "w1") // never accepted, still reported

	rec := doJSON(t, s, http.MethodGet, "/api/v1/reports/mileage?sort=distance", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("report: %d %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Entries []models.MileageEntry `json:"entries"`
		Summary struct {
			Total       int `json:"total"`
			ActiveCount int `json:"active_count"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if out.Summary.Total != 4 || len(out.Entries) != 4 {
		t.Fatalf("expected 4 jobs in report, got %+v", out.Summary)
	}
	for i, e := range out.Entries {
		if len(e.AcceptanceLogs) > 0 && fmt.Sprintf("%.2f", e.DistanceKm) != "0.43" {
			t.Fatalf("entry %d: expected ~0.43 km, got %f", i, e.DistanceKm)
		}
	}
}
