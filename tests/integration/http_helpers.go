package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/floretapp/floret/internal/auth"
	"github.com/floretapp/floret/internal/config"
	"github.com/floretapp/floret/internal/database"
	"github.com/floretapp/floret/internal/handlers"
	middlewareCustom "github.com/floretapp/floret/internal/middleware"
	"github.com/floretapp/floret/internal/routes"
	"github.com/floretapp/floret/internal/services"
	pkglogger "github.com/floretapp/floret/pkg/logger"
)

// SentEmail represents a captured email message
type SentEmail struct {
	To      string
	Subject string
	Data    services.MagicLinkData
}

// CapturingEmailService records sent emails for test assertions
type CapturingEmailService struct {
	SentEmails []SentEmail
	mu         sync.Mutex
}

func (m *CapturingEmailService) record(email, subject string, data services.MagicLinkData) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentEmails = append(m.SentEmails, SentEmail{To: email, Subject: subject, Data: data})
}

// SendTwoFactorEmail records the two-factor challenge email
func (m *CapturingEmailService) SendTwoFactorEmail(ctx context.Context, email string, data services.MagicLinkData) error {
	m.record(email, "Confirm your sign-in", data)
	return nil
}

// SendVerificationEmail records the verification email
func (m *CapturingEmailService) SendVerificationEmail(ctx context.Context, email string, data services.MagicLinkData) error {
	m.record(email, "Verify your email", data)
	return nil
}

// SendPasswordResetEmail records the password reset email
func (m *CapturingEmailService) SendPasswordResetEmail(ctx context.Context, email string, data services.MagicLinkData) error {
	m.record(email, "Reset your password", data)
	return nil
}

// GetLastEmail returns the most recent email sent
func (m *CapturingEmailService) GetLastEmail() *SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.SentEmails) == 0 {
		return nil
	}
	return &m.SentEmails[len(m.SentEmails)-1]
}

// Reset drops all captured emails
func (m *CapturingEmailService) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentEmails = nil
}

// TestServer wraps httptest.Server with database and all dependencies
type TestServer struct {
	Server       *httptest.Server
	DB           *database.DB
	EmailService *CapturingEmailService
	Config       *config.Config
	TokenManager *auth.TokenManager
}

// NewTestServer initializes a complete HTTP server with real database + captured email
func NewTestServer(db *database.DB) *TestServer {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg := &config.Config{
		Auth: config.AuthConfig{
			SessionSecret: "test-secret-32-characters-long-for-testing",
			SessionExpiry: 14 * 24 * time.Hour,
			SecretTTL:     24 * time.Hour,
		},
		Device: config.DeviceConfig{
			CookieMaxAge:   365 * 24 * time.Hour,
			StaleThreshold: 90 * 24 * time.Hour,
			SweepInterval:  12 * time.Hour,
		},
		Server: config.ServerConfig{
			Port:    "0",
			Env:     "test",
			BaseURL: "http://localhost:3000",
		},
	}

	userRepo, deviceRepo, secretRepo := InitializeRepositories(db)

	mockEmail := &CapturingEmailService{}

	tokenManager := auth.NewTokenManager(cfg.Auth.SessionSecret, cfg.Auth.SessionExpiry)
	auditLogger := pkglogger.NewAuditLogger(logger)

	resolver := services.NewResolver(deviceRepo, logger, auditLogger)
	secretService := services.NewSecretService(secretRepo, logger, auditLogger, cfg.Auth.SecretTTL)
	deviceService := services.NewDeviceService(deviceRepo, logger, auditLogger)
	userService := services.NewUserService(userRepo, logger)
	authService := services.NewAuthService(
		userRepo,
		resolver,
		secretService,
		deviceService,
		mockEmail,
		tokenManager,
		logger,
		auditLogger,
		cfg.Server.BaseURL,
	)

	authHandler := handlers.NewAuthHandler(authService, cfg.Device.CookieMaxAge, cfg.Auth.SessionExpiry)
	userHandler := handlers.NewUserHandler(userService)
	deviceHandler := handlers.NewDeviceHandler(deviceService)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(r, authHandler, userHandler, deviceHandler, tokenManager)

	server := httptest.NewServer(r)

	return &TestServer{
		Server:       server,
		DB:           db,
		EmailService: mockEmail,
		Config:       cfg,
		TokenManager: tokenManager,
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// PostForm submits form-encoded values, the way browsers deliver signal fields
func (ts *TestServer) PostForm(path string, form url.Values, cookies []*http.Cookie) (*http.Response, error) {
	req, err := http.NewRequest("POST", ts.Server.URL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	return noRedirectClient.Do(req)
}

// Request makes a JSON HTTP request to the test server
func (ts *TestServer) Request(method, path string, body interface{}, cookies []*http.Cookie) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, ts.Server.URL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	return noRedirectClient.Do(req)
}

// Get issues a plain GET with the given cookies
func (ts *TestServer) Get(path string, cookies []*http.Cookie) (*http.Response, error) {
	return ts.Request("GET", path, nil, cookies)
}

// noRedirectClient keeps Set-Cookie headers on the original response visible
var noRedirectClient = &http.Client{
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

// ParseJSONResponse parses JSON response body into target struct
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// CookieByName finds a response cookie by name
func CookieByName(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// GetErrorMessage extracts error message from error response
func GetErrorMessage(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	var errResp map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return "", err
	}
	if msg, ok := errResp["message"].(string); ok {
		return msg, nil
	}
	return "", nil
}
