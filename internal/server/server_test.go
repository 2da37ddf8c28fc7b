package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thruflo/sightline/internal/auth"
	"github.com/thruflo/sightline/internal/config"
	"github.com/thruflo/sightline/internal/results"
)

const testPassword = "test-password-123"

// writeRun stores a minimal run under root/dir.
func writeRun(t *testing.T, root, dir, name string, status results.RunStatus, start time.Time) {
	t.Helper()
	run := results.TestRun{
		Name:            name,
		Status:          status,
		StartTime:       start,
		EndTime:         start.Add(3 * time.Second),
		DurationSeconds: 3,
		URL:             "https://example.test",
		Steps: []results.StepResult{
			{Step: 1, Description: "Initial page load", Status: results.StatusInfo, Timestamp: start},
			{Step: 2, Description: "Log in", Status: results.StatusPass, Timestamp: start.Add(time.Second)},
		},
	}
	data, err := json.Marshal(run)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, dir, results.ResultsFile), data, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, dir, "report.html"), []byte("<html>"+name+"</html>"), 0644))
}

// createTestServer creates a server over a reports root holding two runs.
func createTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	hash, err := auth.HashPasswordWith(testPassword, auth.Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 16, SaltLen: 8})
	require.NoError(t, err)

	root := t.TempDir()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	writeRun(t, root, "Login", "Login", results.RunPass, t0)
	writeRun(t, root, "Checkout_Flow", "Checkout Flow", results.RunFail, t0.Add(time.Hour))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0755))

	srv, err := NewServer(&Config{Port: 0, Root: root, PasswordHash: hash})
	require.NoError(t, err)
	return srv, root
}

func login(t *testing.T, h http.Handler) string {
	t.Helper()
	form := url.Values{"password": {testPassword}}
	req := httptest.NewRequest(http.MethodPost, "/auth", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Token)
	return body.Token
}

func TestNewServer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{"nil config", nil, "config is required"},
		{"empty password hash", &Config{Root: "/tmp"}, "password hash is required"},
		{"empty root", &Config{PasswordHash: "$argon2id$x"}, "reports directory is required"},
		{"valid", &Config{Port: 8080, Root: "/tmp", PasswordHash: "$argon2id$x"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv, err := NewServer(tt.cfg)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 8080, srv.Port())
		})
	}
}

func TestNewServerFromConfig(t *testing.T) {
	t.Parallel()

	srv, err := NewServerFromConfig(config.ServerConfig{Port: 9999, PasswordHash: "$argon2id$x"}, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 9999, srv.Port())

	_, err = NewServerFromConfig(config.ServerConfig{Port: 9999}, t.TempDir())
	assert.Error(t, err)
}

func TestTokens(t *testing.T) {
	t.Parallel()

	srv, _ := createTestServer(t)

	token, err := srv.GenerateToken()
	require.NoError(t, err)
	assert.Len(t, token, 64)
	assert.True(t, srv.ValidateToken(token))
	assert.False(t, srv.ValidateToken(""))
	assert.False(t, srv.ValidateToken("not-a-token"))

	other, err := srv.GenerateToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)

	srv.RevokeToken(token)
	assert.False(t, srv.ValidateToken(token))
	assert.True(t, srv.ValidateToken(other))
}

func TestHandleAuth(t *testing.T) {
	t.Parallel()

	srv, _ := createTestServer(t)
	h := srv.Handler()

	tests := []struct {
		name     string
		password string
		accept   string
		want     int
	}{
		{"missing password", "", "", http.StatusBadRequest},
		{"wrong password", "nope", "", http.StatusUnauthorized},
		{"correct password", testPassword, "", http.StatusOK},
		{"browser login redirects", testPassword, "text/html", http.StatusSeeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := url.Values{"password": {tt.password}}
			req := httptest.NewRequest(http.MethodPost, "/auth", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			req.Header.Set("Accept", tt.accept)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK || tt.want == http.StatusSeeOther {
				cookies := rec.Result().Cookies()
				require.Len(t, cookies, 1)
				assert.Equal(t, CookieName, cookies[0].Name)
				assert.True(t, cookies[0].HttpOnly)
				assert.True(t, srv.ValidateToken(cookies[0].Value))
			}
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/auth", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleAuth_RateLimited(t *testing.T) {
	t.Parallel()

	srv, _ := createTestServer(t)
	srv.limiter = newRateLimiter(RateLimitConfig{MaxAttempts: 2, Window: time.Minute, BlockAfter: 10, BlockTime: time.Minute})
	h := srv.Handler()

	post := func() *httptest.ResponseRecorder {
		form := url.Values{"password": {"wrong"}}
		req := httptest.NewRequest(http.MethodPost, "/auth", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.RemoteAddr = "203.0.113.9:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, post().Code)
	assert.Equal(t, http.StatusUnauthorized, post().Code)

	rec := post()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	srv, _ := createTestServer(t)
	h := srv.Handler()
	token := login(t, h)

	tests := []struct {
		name   string
		header string
		cookie string
		accept string
		want   int
	}{
		{"no credentials", "", "", "", http.StatusUnauthorized},
		{"browser without credentials", "", "", "text/html,application/xhtml+xml", http.StatusSeeOther},
		{"bad scheme", "Basic " + token, "", "", http.StatusUnauthorized},
		{"unknown token", "Bearer deadbeef", "", "", http.StatusUnauthorized},
		{"bearer token", "Bearer " + token, "", "", http.StatusOK},
		{"cookie", "", token, "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CookieName, Value: tt.cookie})
			}
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusSeeOther {
				assert.Equal(t, "/login", rec.Header().Get("Location"))
			}
		})
	}
}

func TestRunsEndpoint(t *testing.T) {
	t.Parallel()

	srv, _ := createTestServer(t)
	h := srv.Handler()
	token := login(t, h)

	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var runs []RunEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 2)
	assert.Equal(t, "Checkout Flow", runs[0].Name)
	assert.Equal(t, "Checkout_Flow", runs[0].Dir)
	assert.Equal(t, results.RunFail, runs[0].Status)
	assert.Equal(t, "Login", runs[1].Name)
	// The initial page load carries no verdict and is not counted.
	assert.Equal(t, 1, runs[1].Steps)
	assert.Equal(t, 1, runs[1].Passed)
	assert.Equal(t, "2026-03-01 12:00:00", runs[1].StartTime)
}

func TestIndexAndReports(t *testing.T) {
	t.Parallel()

	srv, _ := createTestServer(t)
	h := srv.Handler()
	token := login(t, h)

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := get("/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `href="/reports/Login/report.html"`)
	assert.Contains(t, body, `class="fail"`)
	assert.Contains(t, body, "<td>1/1</td>")
	assert.Less(t, strings.Index(body, "Checkout Flow"), strings.Index(body, ">Login<"))

	rec = get("/reports/Login/report.html")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html>Login</html>", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, get("/reports/Login/missing.png").Code)
	assert.Equal(t, http.StatusNotFound, get("/nope").Code)
}

func TestLoginAndLogout(t *testing.T) {
	t.Parallel()

	srv, _ := createTestServer(t)
	h := srv.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `action="/auth"`)

	token := login(t, h)
	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.False(t, srv.ValidateToken(token))
}

func TestListRuns_MissingRoot(t *testing.T) {
	t.Parallel()

	runs, err := ListRuns(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestServerStartStop(t *testing.T) {
	srv, _ := createTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	require.Eventually(t, func() bool { return srv.ListenAddr() != "" }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + srv.ListenAddr() + "/login")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	err = srv.Start(ctx)
	assert.ErrorContains(t, err, "already started")

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not exit in time")
	}
}

func TestServerStopNotStarted(t *testing.T) {
	t.Parallel()

	srv, _ := createTestServer(t)
	assert.NoError(t, srv.Stop())
}
