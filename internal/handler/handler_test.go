package handler

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"sheger-walk-admin/internal/config"
	"sheger-walk-admin/internal/database"
	"sheger-walk-admin/internal/features"
	"sheger-walk-admin/internal/models"
	"sheger-walk-admin/internal/service"
	"sheger-walk-admin/internal/upstream"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// fakeAPI serves a small Sheger Walk backend.
func fakeAPI() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/challenges", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"challenges": []models.Challenge{
			{ID: "c1", Name: "Entoto Climb", Participants: 4, StartDate: testNow.Add(-time.Hour), EndDate: testNow.Add(48 * time.Hour)},
			{ID: "c2", Name: "Bole Sprint", Participants: 9, StartDate: testNow.Add(24 * time.Hour), EndDate: testNow.Add(72 * time.Hour)},
		}})
	})
	mux.HandleFunc("GET /api/challenges/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Challenge not found"})
	})
	mux.HandleFunc("GET /api/providers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"providers": []models.ChallengeProvider{{ID: "p1", Name: "Ethio Telecom"}}})
	})
	mux.HandleFunc("POST /api/providers", func(w http.ResponseWriter, r *http.Request) {
		p := models.ChallengeProvider{ID: "p2"}
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			p.Name = r.FormValue("name")
			if fh := r.MultipartForm.File["logo"]; len(fh) == 1 {
				p.LogoURL = "/uploads/" + fh[0].Filename
			}
		} else {
			json.NewDecoder(r.Body).Decode(&p)
			p.ID = "p2"
		}
		writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": map[string]any{"provider": p}})
	})
	mux.HandleFunc("GET /api/rewards", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"rewards": []models.Reward{}})
	})
	mux.HandleFunc("DELETE /api/rewards/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/admin/transactions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "ledger offline"})
	})
	mux.HandleFunc("GET /api/admin/withdrawals", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"withdrawals": []models.Withdrawal{}})
	})
	mux.HandleFunc("PUT /api/admin/withdrawals/{id}/reject", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"withdrawal": models.Withdrawal{ID: r.PathValue("id"), Status: models.WithdrawalRejected}})
	})
	return mux
}

func setupTestHandler(t *testing.T) (*chi.Mux, *features.Manager) {
	api := httptest.NewServer(fakeAPI())
	t.Cleanup(api.Close)

	dbPath := os.TempDir() + "/test_handler_" + uuid.NewString() + ".db"
	db, err := database.NewDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		os.Remove(dbPath)
	})

	flags := features.NewFromConfig(&config.Config{Cache: config.CacheConfig{Backend: "none"}})
	client := upstream.NewClient(config.UpstreamConfig{BaseURL: api.URL, TimeoutSeconds: 5})
	svc := service.NewService(client, db,
		service.WithClock(func() time.Time { return testNow }),
		service.WithFeatures(flags),
	)

	r := chi.NewRouter()
	NewHandler(svc).Routes(r)
	return r, flags
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var response models.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal error response: %v", err)
	}
	return response
}

func TestHealthCheck(t *testing.T) {
	r, _ := setupTestHandler(t)

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	if rr.Body.String() != "OK" {
		t.Errorf("Expected body 'OK', got '%s'", rr.Body.String())
	}
}

func TestListChallenges_Success(t *testing.T) {
	r, _ := setupTestHandler(t)

	req := httptest.NewRequest("GET", "/challenges?tab=upcoming&pageSize=5", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	var response struct {
		Items []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"items"`
		TotalItems int `json:"total_items"`
		PageSize   int `json:"page_size"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response.TotalItems != 1 || response.Items[0].ID != "c2" || response.Items[0].Status != "upcoming" {
		t.Errorf("Expected only the upcoming challenge, got %+v", response)
	}
	if response.PageSize != 5 {
		t.Errorf("Expected page size 5, got %d", response.PageSize)
	}
}

func TestListChallenges_InvalidPage(t *testing.T) {
	r, _ := setupTestHandler(t)

	req := httptest.NewRequest("GET", "/challenges?page=two", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
}

func TestGetChallenge_NotFound(t *testing.T) {
	r, _ := setupTestHandler(t)

	req := httptest.NewRequest("GET", "/challenges/missing", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
	if got := decodeError(t, rr).Error; got != "Challenge not found" {
		t.Errorf("Expected backend message, got %q", got)
	}
}

func TestListTransactions_UpstreamFailure(t *testing.T) {
	r, _ := setupTestHandler(t)

	req := httptest.NewRequest("GET", "/transactions", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Errorf("Expected status 502, got %d", rr.Code)
	}
	if got := decodeError(t, rr).Error; got != "ledger offline" {
		t.Errorf("Expected backend message, got %q", got)
	}
}

func TestListLeaderboard_UnknownScope(t *testing.T) {
	r, _ := setupTestHandler(t)

	req := httptest.NewRequest("GET", "/leaderboards/daily", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
}

func TestCreateProvider_JSON(t *testing.T) {
	r, _ := setupTestHandler(t)

	body, _ := json.Marshal(models.ChallengeProvider{Name: "  Dashen Bank  ", Phone: "+251 911 234567"})
	req := httptest.NewRequest("POST", "/providers", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	var response service.Mutation[models.ChallengeProvider]
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response.Item == nil || response.Item.Name != "Dashen Bank" {
		t.Errorf("Expected sanitized provider name, got %+v", response.Item)
	}
	if len(response.List) != 1 {
		t.Errorf("Expected refreshed provider list, got %d", len(response.List))
	}
}

func TestCreateProvider_MultipartLogo(t *testing.T) {
	r, _ := setupTestHandler(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("data", `{"name":"Dashen Bank"}`)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="logo"; filename="dashen.png"`)
	h.Set("Content-Type", "image/png")
	part, _ := mw.CreatePart(h)
	part.Write([]byte("\x89PNG"))
	mw.Close()

	req := httptest.NewRequest("POST", "/providers", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d. Body: %s", rr.Code, rr.Body.String())
	}
	var response service.Mutation[models.ChallengeProvider]
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response.Item.LogoURL != "/uploads/dashen.png" {
		t.Errorf("Expected logo to be forwarded, got %q", response.Item.LogoURL)
	}
}

func TestCreateProvider_NonImageLogo(t *testing.T) {
	r, _ := setupTestHandler(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("data", `{"name":"Dashen Bank"}`)
	fw, _ := mw.CreateFormFile("logo", "notes.txt")
	fw.Write([]byte("hello"))
	mw.Close()

	req := httptest.NewRequest("POST", "/providers", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rr.Code)
	}
	if _, ok := decodeError(t, rr).Fields["logo"]; !ok {
		t.Error("Expected a logo field error")
	}
}

func TestCreateProvider_ValidationError(t *testing.T) {
	r, _ := setupTestHandler(t)

	req := httptest.NewRequest("POST", "/providers", bytes.NewBufferString(`{"name":"   "}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
	if msg := decodeError(t, rr).Fields["name"]; msg != "is required" {
		t.Errorf("Expected name field error, got %q", msg)
	}
}

func TestCreateProvider_InvalidJSON(t *testing.T) {
	r, _ := setupTestHandler(t)

	req := httptest.NewRequest("POST", "/providers", bytes.NewBufferString("invalid json"))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
	if decodeError(t, rr).Error == "" {
		t.Error("Expected error message in response")
	}
}

func TestCreateReward_EmptyBody(t *testing.T) {
	r, _ := setupTestHandler(t)

	req := httptest.NewRequest("POST", "/rewards", nil)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
	if got := decodeError(t, rr).Error; got != "request body is required" {
		t.Errorf("Unexpected error %q", got)
	}
}

func TestDeleteReward(t *testing.T) {
	r, _ := setupTestHandler(t)

	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{"without confirm", "/rewards/r1", http.StatusBadRequest},
		{"confirm false", "/rewards/r1?confirm=false", http.StatusBadRequest},
		{"confirmed", "/rewards/r1?confirm=true", http.StatusOK},
		{"invalid id", "/rewards/bad%20id?confirm=true", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("DELETE", tt.target, nil)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d. Body: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestRejectWithdrawal(t *testing.T) {
	r, flags := setupTestHandler(t)

	body := `{"reason":"Account name mismatch"}`
	req := httptest.NewRequest("POST", "/withdrawals/w1/reject", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 while review is disabled, got %d", rr.Code)
	}

	flags.Set(features.FeatureWithdrawalReview, true)

	req = httptest.NewRequest("POST", "/withdrawals/w1/reject", bytes.NewBufferString(body))
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d. Body: %s", rr.Code, rr.Body.String())
	}

	var response service.Mutation[models.Withdrawal]
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response.Item == nil || response.Item.Status != models.WithdrawalRejected {
		t.Errorf("Expected rejected withdrawal, got %+v", response.Item)
	}
}

func TestListAudit_InvalidLimit(t *testing.T) {
	r, _ := setupTestHandler(t)

	req := httptest.NewRequest("GET", "/audit?limit=-1", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
}

func TestListAudit_Empty(t *testing.T) {
	r, _ := setupTestHandler(t)

	req := httptest.NewRequest("GET", "/audit", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if body := bytes.TrimSpace(rr.Body.Bytes()); string(body) != "[]" {
		t.Errorf("Expected empty array, got %s", body)
	}
}

func TestSetFeature(t *testing.T) {
	r, flags := setupTestHandler(t)

	req := httptest.NewRequest("PUT", "/features/"+features.FeatureServerSideFiltering, bytes.NewBufferString(`{"enabled":true}`))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if !flags.IsEnabled(features.FeatureServerSideFiltering) {
		t.Error("Expected flag to be enabled")
	}

	req = httptest.NewRequest("PUT", "/features/unknown", bytes.NewBufferString(`{"enabled":true}`))
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rr.Code)
	}
}

func TestDashboard_ReportsFailedSections(t *testing.T) {
	r, _ := setupTestHandler(t)

	req := httptest.NewRequest("GET", "/dashboard", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	var response struct {
		Errors map[string]string `json:"errors"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if _, ok := response.Errors["users"]; !ok {
		t.Errorf("Expected the missing users endpoint to be reported, got %v", response.Errors)
	}
	if _, ok := response.Errors["challenges"]; ok {
		t.Error("Expected challenges to load")
	}
}
