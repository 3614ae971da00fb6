// Package handler provides unit tests for the HTTP handlers.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/health-triage/internal/domain"
	"github.com/health-triage/internal/snapshot"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeTriager struct {
	resp *domain.TriageResponse
	err  error
	body []byte
}

func (f *fakeTriager) Triage(_ context.Context, raw []byte) (*domain.TriageResponse, error) {
	f.body = raw
	return f.resp, f.err
}

type fakeCatalogs struct {
	catalogs map[string][]byte
	err      error
}

func (f *fakeCatalogs) Catalog(_ context.Context, name string) ([]byte, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	body, ok := f.catalogs[name]
	return body, ok, nil
}

type fakeHolder struct {
	snap *snapshot.Snapshot
}

func (f *fakeHolder) Snapshot() *snapshot.Snapshot { return f.snap }

func newTestRouter(triager Triager, catalogs CatalogProvider, holder SnapshotHolder) *gin.Engine {
	logger := zap.NewNop()
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.Use(RecoveryMiddleware(logger))
	router.Use(CORSMiddleware("*"))
	router.Use(BodyLimitMiddleware(1024))

	router.GET("/health", NewHealthHandler(logger).Handle)
	router.GET("/ready", NewReadyHandler(holder, logger).Handle)
	router.GET("/config/:name", NewCatalogHandler(catalogs, logger).Handle)
	router.POST("/api/v1/triage", NewTriageHandler(triager, logger).Handle)
	router.GET("/panic", func(c *gin.Context) { panic("boom") })
	return router
}

func serve(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, w.Body.String())
	}
	return body
}

func TestTriageHandler(t *testing.T) {
	okResponse := &domain.TriageResponse{
		OK: true,
		Result: &domain.TriageResult{
			Level:        domain.LevelL2,
			MatchedRules: []string{"R_HR"},
		},
		SnapshotVersion: "v1",
		ProcessedAt:     time.Now(),
	}

	tests := []struct {
		name       string
		triager    *fakeTriager
		body       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "success",
			triager:    &fakeTriager{resp: okResponse},
			body:       `{"symptoms":["S_FEVER"]}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "invalid input",
			triager:    &fakeTriager{err: domain.WrapError("parse_request", domain.ErrInvalidInput)},
			body:       `[]`,
			wantStatus: http.StatusBadRequest,
			wantError:  codeBadRequest,
		},
		{
			name:       "configuration unavailable",
			triager:    &fakeTriager{err: domain.WrapError("reload", domain.ErrConfigUnavailable)},
			body:       `{}`,
			wantStatus: http.StatusServiceUnavailable,
			wantError:  codeConfigUnavailable,
		},
		{
			name:       "unexpected error",
			triager:    &fakeTriager{err: errors.New("boom")},
			body:       `{}`,
			wantStatus: http.StatusInternalServerError,
			wantError:  codeInternal,
		},
		{
			name:       "body too large",
			triager:    &fakeTriager{resp: okResponse},
			body:       `{"symptoms":["` + strings.Repeat("x", 2048) + `"]}`,
			wantStatus: http.StatusRequestEntityTooLarge,
			wantError:  codeTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(tt.triager, &fakeCatalogs{}, &fakeHolder{})

			w := serve(router, http.MethodPost, "/api/v1/triage", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}

			body := decodeBody(t, w)
			if tt.wantError == "" {
				if body["ok"] != true {
					t.Errorf("ok = %v, want true", body["ok"])
				}
				result, _ := body["result"].(map[string]any)
				if result["level"] != "L2" {
					t.Errorf("result = %v", body["result"])
				}
				if string(tt.triager.body) != tt.body {
					t.Errorf("triager got body %q, want %q", tt.triager.body, tt.body)
				}
				return
			}
			if body["ok"] != false || body["error"] != tt.wantError {
				t.Errorf("body = %v, want error %s", body, tt.wantError)
			}
			if _, ok := body["result"]; ok {
				t.Error("error response carries a result")
			}
		})
	}
}

func TestTriageHandler_InvalidInputMessage(t *testing.T) {
	router := newTestRouter(
		&fakeTriager{err: domain.WrapError("parse_request", domain.ErrInvalidInput)},
		&fakeCatalogs{}, &fakeHolder{},
	)

	w := serve(router, http.MethodPost, "/api/v1/triage", `not json`)
	body := decodeBody(t, w)
	if body["message"] != domain.ErrInvalidInput.Error() {
		t.Errorf("message = %v, want %q", body["message"], domain.ErrInvalidInput.Error())
	}
}

func TestHealthHandler(t *testing.T) {
	router := newTestRouter(&fakeTriager{}, &fakeCatalogs{}, &fakeHolder{})

	w := serve(router, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["ok"] != true || body["service"] != ServiceName {
		t.Errorf("body = %v", body)
	}
	ts, _ := body["ts"].(string)
	if _, err := time.Parse(time.RFC3339Nano, ts); err != nil {
		t.Errorf("ts = %q is not RFC 3339: %v", ts, err)
	}
}

func TestReadyHandler(t *testing.T) {
	t.Run("no snapshot", func(t *testing.T) {
		router := newTestRouter(&fakeTriager{}, &fakeCatalogs{}, &fakeHolder{})

		w := serve(router, http.MethodGet, "/ready", "")
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", w.Code)
		}
		if body := decodeBody(t, w); body["status"] != "not_ready" {
			t.Errorf("body = %v", body)
		}
	})

	t.Run("snapshot loaded", func(t *testing.T) {
		snap, err := snapshot.New("rev-3", snapshot.Parts{
			Rules: []domain.Rule{{ID: "R1", Priority: 1}},
		})
		if err != nil {
			t.Fatalf("snapshot.New() error = %v", err)
		}
		router := newTestRouter(&fakeTriager{}, &fakeCatalogs{}, &fakeHolder{snap: snap})

		w := serve(router, http.MethodGet, "/ready", "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		body := decodeBody(t, w)
		if body["snapshot_version"] != "rev-3" || body["rules"] != float64(1) {
			t.Errorf("body = %v", body)
		}
	})
}

func TestCatalogHandler(t *testing.T) {
	catalogs := &fakeCatalogs{catalogs: map[string][]byte{
		snapshot.CatalogSymptoms: []byte(`[{"id":"S_FEVER"}]`),
	}}

	tests := []struct {
		name       string
		provider   *fakeCatalogs
		path       string
		wantStatus int
		wantBody   string
	}{
		{"configured catalog", catalogs, "/config/symptoms", http.StatusOK, `[{"id":"S_FEVER"}]`},
		{"known but not configured", catalogs, "/config/vitals", http.StatusNotFound, ""},
		{"unknown catalog", catalogs, "/config/secrets", http.StatusNotFound, ""},
		{"configuration unavailable", &fakeCatalogs{err: domain.ErrConfigUnavailable}, "/config/symptoms", http.StatusServiceUnavailable, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&fakeTriager{}, tt.provider, &fakeHolder{})

			w := serve(router, http.MethodGet, tt.path, "")
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantBody != "" {
				if w.Body.String() != tt.wantBody {
					t.Errorf("body = %s, want %s", w.Body.String(), tt.wantBody)
				}
				if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
					t.Errorf("Content-Type = %q", ct)
				}
			}
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	router := newTestRouter(&fakeTriager{}, &fakeCatalogs{}, &fakeHolder{})

	w := serve(router, http.MethodGet, "/health", "")
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("response has no request ID")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if got := w.Header().Get(RequestIDHeader); got != "req-123" {
		t.Errorf("request ID = %q, want the caller's", got)
	}
}

func TestCORSMiddleware(t *testing.T) {
	router := newTestRouter(&fakeTriager{}, &fakeCatalogs{}, &fakeHolder{})

	w := serve(router, http.MethodOptions, "/api/v1/triage", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	router := newTestRouter(&fakeTriager{}, &fakeCatalogs{}, &fakeHolder{})

	w := serve(router, http.MethodGet, "/panic", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if body := decodeBody(t, w); body["error"] != codeInternal {
		t.Errorf("body = %v", body)
	}
}
