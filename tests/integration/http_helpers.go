package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/mkessler/hypercloud/internal/auth"
	"github.com/mkessler/hypercloud/internal/database"
	"github.com/mkessler/hypercloud/internal/handlers"
	"github.com/mkessler/hypercloud/internal/lock"
	middlewareCustom "github.com/mkessler/hypercloud/internal/middleware"
	"github.com/mkessler/hypercloud/internal/repositories"
	"github.com/mkessler/hypercloud/internal/routes"
	"github.com/mkessler/hypercloud/internal/services"
	pkglogger "github.com/mkessler/hypercloud/pkg/logger"
)

const (
	testSessionSecret = "test-secret-32-characters-long-for-testing"
	testHostname      = "test.local"
)

// TestServer wraps httptest.Server with a real database and a capturing mailer
type TestServer struct {
	Server   *httptest.Server
	DB       *database.DB
	Mailer   *services.MockMailer
	Sessions *auth.SessionManager
}

// TestServerOptions controls the parts of the wiring tests vary
type TestServerOptions struct {
	RegistrationOpen bool
	AllowedEmails    []string
}

// NewTestServer wires a complete HTTP server the way cmd/api does,
// with a real database and the mailer replaced by a capturing mock
func NewTestServer(db *database.DB, opts TestServerOptions) *TestServer {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	userRepo := repositories.NewUserRepository(db)
	sessions := auth.NewSessionManager(testSessionSecret, time.Hour)
	cookieConfig := auth.CookieConfig{Secure: false, MaxAge: 3600}
	auditLogger := pkglogger.NewAuditLogger(logger)
	mailer := &services.MockMailer{}

	authService := services.NewAuthService(
		userRepo,
		lock.NewManager(),
		sessions,
		mailer,
		auth.NewTimingDelay(auth.TimingConfig{}),
		services.RegistrationPolicy{Open: opts.RegistrationOpen, Allowed: opts.AllowedEmails},
		testHostname,
		"test",
		logger,
		auditLogger,
	)
	userService := services.NewUserService(
		userRepo,
		services.NewProofService(testSessionSecret),
		logger,
		auditLogger,
	)

	authHandler := handlers.NewAuthHandler(authService, cookieConfig)
	userHandler := handlers.NewUserHandler(userService)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: "test"}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(r, authHandler, userHandler, sessions)

	return &TestServer{
		Server:   httptest.NewServer(r),
		DB:       db,
		Mailer:   mailer,
		Sessions: sessions,
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// Request makes an HTTP request to the test server
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	url := ts.Server.URL + path

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return http.DefaultClient.Do(req)
}

// RequestWithSession makes a request carrying a session token as a
// Bearer header, the API-client transport
func (ts *TestServer) RequestWithSession(method, path, token string, body interface{}) (*http.Response, error) {
	headers := map[string]string{
		"Authorization": "Bearer " + token,
	}
	return ts.Request(method, path, body, headers)
}

// ParseJSONResponse parses the JSON response body into target
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// SessionCookie returns the sess cookie from the response, or nil
func SessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == auth.SessionCookieName {
			return c
		}
	}
	return nil
}
