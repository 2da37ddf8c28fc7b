package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/thruflo/sightline/internal/auth"
	"github.com/thruflo/sightline/internal/config"
	"github.com/thruflo/sightline/internal/logging"
	"github.com/thruflo/sightline/internal/report"
)

// CookieName carries the session token for browser clients.
const CookieName = "sightline_session"

// tokenExpiry is how long tokens are valid.
const tokenExpiry = 24 * time.Hour

// Server serves the reports directory behind a password.
type Server struct {
	port         int
	root         string
	passwordHash string
	limiter      *rateLimiter

	server   *http.Server
	listener net.Listener

	mu      sync.RWMutex
	tokens  map[string]time.Time // token -> expiry
	started bool
}

// Config holds server configuration options.
type Config struct {
	Port         int
	Root         string // reports directory
	PasswordHash string
	RateLimit    RateLimitConfig
}

// NewServer creates a new Server instance.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.PasswordHash == "" {
		return nil, errors.New("password hash is required")
	}
	if cfg.Root == "" {
		return nil, errors.New("reports directory is required")
	}

	return &Server{
		port:         cfg.Port,
		root:         cfg.Root,
		passwordHash: cfg.PasswordHash,
		limiter:      newRateLimiter(cfg.RateLimit),
		tokens:       make(map[string]time.Time),
	}, nil
}

// NewServerFromConfig creates a Server for the reports under root.
func NewServerFromConfig(cfg config.ServerConfig, root string) (*Server, error) {
	return NewServer(&Config{
		Port:         cfg.Port,
		Root:         root,
		PasswordHash: cfg.PasswordHash,
	})
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Start listens and serves until ctx is cancelled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("server already started")
	}

	addr := fmt.Sprintf(":%d", s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	s.started = true
	s.mu.Unlock()

	go s.housekeeping(ctx)
	go func() {
		<-ctx.Done()
		if err := s.Stop(); err != nil {
			logging.Warn("failed to stop report server", "error", err)
		}
	}()

	logging.Info("serving reports", "addr", listener.Addr().String(), "root", s.root)
	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.started || s.server == nil {
		s.mu.Unlock()
		return nil
	}
	srv := s.server
	s.started = false
	s.mu.Unlock()

	// In-flight handlers take mu, so shut down without holding it.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}

// ListenAddr returns the address the server is listening on, or "" before
// Start.
func (s *Server) ListenAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", s.handleLogin)
	mux.HandleFunc("POST /auth", s.handleAuth)
	mux.HandleFunc("POST /logout", s.handleLogout)
	mux.HandleFunc("GET /api/runs", s.withAuth(s.handleRuns))
	mux.Handle("GET /reports/", s.withAuth(http.StripPrefix("/reports/", http.FileServer(http.Dir(s.root))).ServeHTTP))
	mux.HandleFunc("GET /{$}", s.withAuth(s.handleIndex))
	return mux
}

// withAuth rejects requests without a valid token. Browser page loads are
// sent to the login form instead.
func (s *Server) withAuth(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.ValidateToken(requestToken(r)) {
			handler(w, r)
			return
		}
		if strings.Contains(r.Header.Get("Accept"), "text/html") {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		http.Error(w, "authorization required", http.StatusUnauthorized)
	}
}

// requestToken reads the bearer header, falling back to the cookie.
func requestToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		token, ok := strings.CutPrefix(h, "Bearer ")
		if !ok {
			return ""
		}
		return token
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// VerifyPassword checks password against the stored hash.
func (s *Server) VerifyPassword(password string) (bool, error) {
	return auth.VerifyPassword(password, s.passwordHash)
}

// GenerateToken creates and stores a new session token.
func (s *Server) GenerateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	token := hex.EncodeToString(buf)

	s.mu.Lock()
	s.tokens[token] = time.Now().Add(tokenExpiry)
	s.mu.Unlock()
	return token, nil
}

// ValidateToken reports whether token is known and unexpired.
func (s *Server) ValidateToken(token string) bool {
	if token == "" {
		return false
	}
	s.mu.RLock()
	expiry, ok := s.tokens[token]
	s.mu.RUnlock()
	return ok && time.Now().Before(expiry)
}

// RevokeToken forgets token.
func (s *Server) RevokeToken(token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}

// housekeeping drops expired tokens and limiter state.
func (s *Server) housekeeping(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for token, expiry := range s.tokens {
				if now.After(expiry) {
					delete(s.tokens, token)
				}
			}
			s.mu.Unlock()
			s.limiter.cleanup()
		}
	}
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if d := s.limiter.allow(ip); !d.Allowed {
		w.Header().Set("Retry-After", strconv.Itoa(int(d.RetryAfter.Round(time.Second).Seconds())))
		http.Error(w, d.Reason, http.StatusTooManyRequests)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	password := r.FormValue("password")
	if password == "" {
		http.Error(w, "password required", http.StatusBadRequest)
		return
	}

	valid, err := s.VerifyPassword(password)
	if err != nil {
		logging.Error("failed to verify password", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !valid {
		s.limiter.recordFailure(ip)
		http.Error(w, "invalid password", http.StatusUnauthorized)
		return
	}
	s.limiter.recordSuccess(ip)

	token, err := s.GenerateToken()
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(tokenExpiry.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	writeJSON(w, map[string]string{"token": token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.RevokeToken(requestToken(r))
	http.SetCookie(w, &http.Cookie{Name: CookieName, Value: "", Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := ListRuns(s.root)
	if err != nil {
		logging.Error("failed to list runs", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []RunEntry{}
	}
	writeJSON(w, runs)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	runs, err := ListRuns(s.root)
	if err != nil {
		logging.Error("failed to list runs", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, indexData{Runs: runs, ReportFile: report.HTMLFile}); err != nil {
		logging.Warn("failed to render index", "error", err)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(loginPage))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("failed to write response", "error", err)
	}
}

type indexData struct {
	Runs       []RunEntry
	ReportFile string
}

var indexTemplate = template.Must(template.New("index").Funcs(template.FuncMap{
	"lower": func(v any) string { return strings.ToLower(fmt.Sprint(v)) },
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Sightline reports</title>
<style>
body { font-family: Arial, sans-serif; margin: 20px; }
table { border-collapse: collapse; width: 100%; }
th, td { text-align: left; padding: 8px; border-bottom: 1px solid #ddd; }
.pass { color: #00aa00; } .fail, .error { color: #ff0000; } .running { color: #d7af00; }
</style>
</head>
<body>
<h1>Test runs</h1>
<form method="post" action="/logout"><button type="submit">Sign out</button></form>
{{if .Runs}}
<table>
<tr><th>Test</th><th>Status</th><th>Started (UTC)</th><th>Duration</th><th>Steps</th><th>URL</th></tr>
{{range .Runs}}
<tr>
<td><a href="/reports/{{.Dir}}/{{$.ReportFile}}">{{.Name}}</a></td>
<td class="{{lower .Status}}">{{.Status}}</td>
<td>{{.StartTime}}</td>
<td>{{printf "%.2f" .DurationSeconds}}s</td>
<td>{{.Passed}}/{{.Steps}}</td>
<td>{{.URL}}</td>
</tr>
{{end}}
</table>
{{else}}
<p>No runs yet.</p>
{{end}}
</body>
</html>
`))

const loginPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Sightline</title></head>
<body style="font-family: Arial, sans-serif; margin: 40px">
<h1>Sightline reports</h1>
<form method="post" action="/auth">
<input type="password" name="password" placeholder="Password" autofocus>
<button type="submit">Sign in</button>
</form>
</body>
</html>
`
