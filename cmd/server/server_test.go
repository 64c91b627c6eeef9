package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark-rom/egrul-bot/internal/platform/config"
)

// fakeRegistry answers the token, search and extraction endpoints for one organization.
func fakeRegistry(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body["query"] != "7707083893" {
			_, _ = io.WriteString(w, `{"t":"empty-token"}`)
			return
		}
		_, _ = io.WriteString(w, `{"t":"search-token"}`)
	})
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /search-result/search-token", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"rows":[{"k":"ul","c":"ПАО СБЕРБАНК","g":"ПРЕЗИДЕНТ: ГРЕФ ГЕРМАН ОСКАРОВИЧ",`+
			`"i":"7707083893","o":"1027700132195","p":"773601001","a":"Г. МОСКВА, УЛ. ВАВИЛОВА, Д. 19","t":"vyp-token"}]}`)
	})
	mux.HandleFunc("GET /search-result/empty-token", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"rows":[]}`)
	})
	mux.HandleFunc("GET /vyp-request/vyp-token", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"t":"vyp-token"}`)
	})
	mux.HandleFunc("GET /vyp-status/vyp-token", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"ready"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// TestRouterEndToEnd builds the real dependency graph once; metrics register globally.
func TestRouterEndToEnd(t *testing.T) {
	registry := fakeRegistry(t)

	cfg := config.Default()
	cfg.Registry.BaseURL = registry.URL
	cfg.Registry.PollInterval = time.Millisecond
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	deps, err := buildDependencies(context.Background(), cfg, log)
	require.NoError(t, err)
	defer deps.Close()

	router, err := newRouter(cfg, deps, log)
	require.NoError(t, err)

	call := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-User-ID", "tg:1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("info", func(t *testing.T) {
		w := call(http.MethodPost, "/egrul/info", `{"query":"7707083893"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), "ПАО СБЕРБАНК")
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("info from cache", func(t *testing.T) {
		w := call(http.MethodPost, "/egrul/info", `{"query":"7707083893"}`)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("no match", func(t *testing.T) {
		w := call(http.MethodPost, "/egrul/info", `{"query":"1234567890"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid identifier", func(t *testing.T) {
		w := call(http.MethodPost, "/egrul/info", `{"query":"77O7"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid_identifier")
	})

	t.Run("extraction", func(t *testing.T) {
		w := call(http.MethodPost, "/egrul/extraction", `{"query":"7707083893"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), registry.URL+"/vyp-download/vyp-token")
	})

	t.Run("history", func(t *testing.T) {
		w := call(http.MethodGet, "/egrul/history", "")
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Requests []map[string]any `json:"requests"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Len(t, resp.Requests, 3)
	})

	t.Run("wrong content type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/egrul/info", strings.NewReader(`query=1`))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	})

	t.Run("readiness", func(t *testing.T) {
		w := call(http.MethodGet, "/health/ready", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"registry":"up"`)
	})

	t.Run("metrics", func(t *testing.T) {
		w := call(http.MethodGet, "/metrics", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "egrul_")
	})
}
