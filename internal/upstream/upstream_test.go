package upstream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheger-walk-admin/internal/config"
)

type provider struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(config.UpstreamConfig{BaseURL: srv.URL, Token: "secret-token", TimeoutSeconds: 5})
}

func TestDecode_AdminEnvelope(t *testing.T) {
	body := `{"success":true,"data":{"providers":[{"id":"p1","name":"Ethio Telecom"}]},"message":"ok"}`

	got := decode[[]provider](200, []byte(body), "providers")

	require.True(t, got.OK, got.ErrorMessage)
	require.Len(t, got.Value, 1)
	assert.Equal(t, "Ethio Telecom", got.Value[0].Name)
}

func TestDecode_AdHocShape(t *testing.T) {
	got := decode[[]provider](200, []byte(`{"providers":[{"id":"p1"},{"id":"p2"}]}`), "providers")

	require.True(t, got.OK)
	assert.Len(t, got.Value, 2)
}

func TestDecode_BareArrayAndEmptyBody(t *testing.T) {
	got := decode[[]provider](200, []byte(`[{"id":"p1"}]`), "providers")
	require.True(t, got.OK)
	assert.Len(t, got.Value, 1)

	empty := decode[provider](204, nil, "")
	assert.True(t, empty.OK)
}

func TestDecode_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"envelope unsuccessful", 200, `{"success":false,"message":"Challenge name already exists"}`, "Challenge name already exists"},
		{"envelope error field", 400, `{"success":false,"error":"bad dates"}`, "bad dates"},
		{"ad hoc message", 404, `{"message":"Provider not found"}`, "Provider not found"},
		{"ad hoc error", 500, `{"error":"boom"}`, "boom"},
		{"no message", 502, `<html>bad gateway</html>`, "request failed with status 502"},
		{"empty object", 403, `{}`, "request failed with status 403"},
		{"bad json", 200, `{"providers": [}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decode[[]provider](tt.status, []byte(tt.body), "providers")
			assert.False(t, got.OK)
			if tt.want != "" {
				assert.Equal(t, tt.want, got.ErrorMessage)
			} else {
				assert.NotEmpty(t, got.ErrorMessage)
			}
			var apiErr *APIError
			require.ErrorAs(t, got.Err(), &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
		})
	}
}

func TestBuildQuery(t *testing.T) {
	var nilPtr *string
	q := BuildQuery(Params{
		"page":         2,
		"limit":        10,
		"search":       "",
		"activityType": "all",
		"sortBy":       nilPtr,
		"sortOrder":    nil,
		"stepsMin":     1001.0,
		"userRanks":    []string{"GOLD", "", "SILVER"},
		"startDate":    time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
		"endDate":      time.Time{},
	})

	assert.Equal(t, "2", q.Get("page"))
	assert.Equal(t, "10", q.Get("limit"))
	assert.Equal(t, "1001", q.Get("stepsMin"))
	assert.Equal(t, []string{"GOLD", "SILVER"}, q["userRanks"])
	assert.Equal(t, "2026-10-01T00:00:00Z", q.Get("startDate"))
	for _, k := range []string{"search", "activityType", "sortBy", "sortOrder", "endDate"} {
		_, present := q[k]
		assert.False(t, present, k)
	}
	assert.Len(t, BuildQuery(Params{"userRanks": []string{"all"}}), 0)
}

func TestGet_SendsBearerAndQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/providers", r.URL.Path)
		assert.Equal(t, []string{"GOLD", "SILVER"}, r.URL.Query()["rank"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"providers":[{"id":"p1","name":"Awash Bank"}]}`))
	})

	got := Get[[]provider](context.Background(), c, "/api/providers", "providers", Params{"rank": []string{"GOLD", "SILVER"}})

	require.True(t, got.OK, got.ErrorMessage)
	assert.Equal(t, "Awash Bank", got.Value[0].Name)
}

func TestSend_JSONBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var in provider
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		in.ID = uuid.NewString()
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": in})
	})

	got := Send[provider](context.Background(), c, http.MethodPost, "/api/providers", "", provider{Name: "Dashen"})

	require.True(t, got.OK, got.ErrorMessage)
	assert.Equal(t, "Dashen", got.Value.Name)
	_, err := uuid.Parse(got.Value.ID)
	assert.NoError(t, err)
}

func TestSendMultipart_FilePart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Dashen", r.FormValue("name"))
		f, hdr, err := r.FormFile("logo")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "logo.png", hdr.Filename)
		assert.Equal(t, "image/png", hdr.Header.Get("Content-Type"))
		assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":"p9","name":"Dashen"}}`))
	})

	got := SendMultipart[provider](context.Background(), c, http.MethodPost, "/api/providers", "", Form{
		Fields: map[string]string{"name": "Dashen"},
		File:   &FilePart{Field: "logo", Filename: "logo.png", ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}},
	})

	require.True(t, got.OK, got.ErrorMessage)
	assert.Equal(t, "p9", got.Value.ID)
}

func TestGet_NetworkFailure(t *testing.T) {
	c := NewClient(config.UpstreamConfig{BaseURL: "http://127.0.0.1:1", TimeoutSeconds: 1})

	got := Get[[]provider](context.Background(), c, "/api/providers", "providers", nil)

	assert.False(t, got.OK)
	assert.Contains(t, got.ErrorMessage, "request failed")
}

func TestSequencer_SupersedesOlderFetch(t *testing.T) {
	s := NewSequencer()

	ctxA, a := s.Begin(context.Background(), "view-1:users")
	ctxB, b := s.Begin(context.Background(), "view-1:users")
	_, other := s.Begin(context.Background(), "view-2:users")

	assert.True(t, a.Stale())
	assert.ErrorIs(t, ctxA.Err(), context.Canceled)
	assert.False(t, b.Stale())
	assert.NoError(t, ctxB.Err())
	assert.False(t, other.Stale())

	a.Done()
	assert.False(t, b.Stale())
	b.Done()
	assert.ErrorIs(t, ctxB.Err(), context.Canceled)
	other.Done()
}
