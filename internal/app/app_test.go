package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/http/cookiejar"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/pharmacy-storefront/pkg/health"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		Addr:    defaultAddr,
		Env:     "development",
		DataDir: filepath.Join(t.TempDir(), "data"),
		Session: SessionConfig{
			Secret:     "test-secret",
			CookieName: "pharma.sid",
			TTL:        24 * time.Hour,
		},
		Admin:     AdminConfig{Username: "admin", Password: "admin123"},
		Login:     LoginConfig{Attempts: 5, Every: time.Minute},
		RateLimit: RateLimitConfig{Max: 3, Window: time.Minute},
		CORS: CORSConfig{
			Origins:          []string{"http://localhost:3001"},
			AllowCredentials: true,
		},
	}
}

func startServer(t *testing.T, cfg *Config) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	st, err := openStores(ctx, zap.NewNop(), cfg, tracenoop.NewTracerProvider())
	require.NoError(t, err)
	t.Cleanup(st.Close)

	healthSvc := health.New()
	for _, p := range st.probes {
		healthSvc.Add(p)
	}
	healthSvc.SetReady(true)

	h, err := newHandler(ctx, cfg, st, []byte(cfg.Session.Secret), healthSvc,
		tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func send(t *testing.T, c *http.Client, method, url, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestServer_AdminFlow(t *testing.T) {
	cfg := testConfig(t)
	srv := startServer(t, cfg)
	c := newClient(t)

	// Fresh data dir: empty catalog and a default admin.
	code, body := send(t, c, http.MethodGet, srv.URL+"/api/products", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, body)

	code, _ = send(t, c, http.MethodPost, srv.URL+"/api/products", `{"name":"Aspirin","image":"a.png","price":3}`)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = send(t, c, http.MethodPost, srv.URL+"/api/login", `{"username":"admin","password":"admin123"}`)
	require.Equal(t, http.StatusOK, code)

	code, body = send(t, c, http.MethodPost, srv.URL+"/api/products", `{"name":"Aspirin","image":"a.png","price":3,"tag":"sale"}`)
	require.Equal(t, http.StatusCreated, code, body)

	var created struct {
		Message string         `json:"message"`
		Product map[string]any `json:"product"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &created))
	assert.Equal(t, "Product added!", created.Message)
	assert.Equal(t, "SALE", created.Product["tag"])

	data, err := os.ReadFile(filepath.Join(cfg.DataDir, "products.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name": "Aspirin"`)

	code, _ = send(t, c, http.MethodPost, srv.URL+"/api/logout", "")
	assert.Equal(t, http.StatusOK, code)
	code, body = send(t, c, http.MethodGet, srv.URL+"/api/check-auth", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"authenticated":false}`, body)
}

func TestServer_Health(t *testing.T) {
	srv := startServer(t, testConfig(t))
	c := newClient(t)

	code, _ := send(t, c, http.MethodGet, srv.URL+"/livez", "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = send(t, c, http.MethodGet, srv.URL+"/readyz", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestServer_CORSPreflight(t *testing.T) {
	srv := startServer(t, testConfig(t))

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/products", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3001")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3001", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestServer_LoginRateLimit(t *testing.T) {
	srv := startServer(t, testConfig(t))
	c := newClient(t)

	for range 3 {
		code, _ := send(t, c, http.MethodPost, srv.URL+"/api/login", `{"username":"nobody","password":"x"}`)
		assert.Equal(t, http.StatusUnauthorized, code)
	}
	code, _ := send(t, c, http.MethodPost, srv.URL+"/api/login", `{"username":"nobody","password":"x"}`)
	assert.Equal(t, http.StatusTooManyRequests, code)

	code, _ = send(t, c, http.MethodGet, srv.URL+"/api/products", "")
	assert.Equal(t, http.StatusOK, code, "catalog reads are not limited")
}

func TestServer_StaticDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.StaticDir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(cfg.StaticDir, "index.html"), []byte("<h1>Pharmacy</h1>"), 0o600))
	srv := startServer(t, cfg)

	code, body := send(t, newClient(t), http.MethodGet, srv.URL+"/", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "Pharmacy")
}

func TestServer_ExistingUsersFileKept(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.DataDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DataDir, "users.json"), []byte(`[]`), 0o600))

	srv := startServer(t, cfg)
	code, _ := send(t, newClient(t), http.MethodPost, srv.URL+"/api/login", `{"username":"admin","password":"admin123"}`)
	assert.Equal(t, http.StatusUnauthorized, code, "no default admin when users.json exists")
}
