package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/halcyongrid/logind/internal/domain"
)

// LoginService is the slice of the login core the HTTP layer needs.
type LoginService interface {
	Login(ctx context.Context, req *domain.LoginRequest) *domain.LoginResult
	MinimumLevel() int
	SetMinimumLevel(ctx context.Context, scopeID, firstName, lastName, credential string, level int) error
}

// LoginHandler handles the login and admin policy endpoints.
type LoginHandler struct {
	svc LoginService
}

// NewLoginHandler creates a new login handler.
func NewLoginHandler(svc LoginService) *LoginHandler {
	return &LoginHandler{svc: svc}
}

// RegisterRoutes registers login routes.
func (h *LoginHandler) RegisterRoutes(r chi.Router) {
	r.Post("/login", h.Login)
	r.Route("/admin", func(r chi.Router) {
		r.Get("/minimum-level", h.GetMinimumLevel)
		r.Post("/minimum-level", h.SetMinimumLevel)
	})
}

// Login runs one login attempt. The response body is always a
// LoginResult; the HTTP status mirrors its failure kind.
func (h *LoginHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "malformed login request")
		return
	}
	if req.FirstName == "" || req.LastName == "" {
		Error(w, http.StatusBadRequest, "first and last name are required")
		return
	}
	req.ClientIP = clientIP(r)

	result := h.svc.Login(r.Context(), &req)
	JSON(w, statusForResult(result), result)
}

// setLevelRequest is the admin request to change the minimum login
// level. The requesting account authenticates inline.
type setLevelRequest struct {
	FirstName  string `json:"first"`
	LastName   string `json:"last"`
	Credential string `json:"passwd"`
	ScopeID    string `json:"scope_id,omitempty"`
	Level      int    `json:"level"`
}

// SetMinimumLevel changes the minimum account level accepted for login.
func (h *LoginHandler) SetMinimumLevel(w http.ResponseWriter, r *http.Request) {
	var req setLevelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "malformed request")
		return
	}

	err := h.svc.SetMinimumLevel(r.Context(), req.ScopeID, req.FirstName, req.LastName, req.Credential, req.Level)
	if err != nil {
		slog.Warn("minimum level change rejected", "by", req.FirstName+" "+req.LastName, "error", err)
		Error(w, http.StatusForbidden, err.Error())
		return
	}
	JSON(w, http.StatusOK, map[string]int{"minimum_level": h.svc.MinimumLevel()})
}

// GetMinimumLevel reports the current minimum login level.
func (h *LoginHandler) GetMinimumLevel(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]int{"minimum_level": h.svc.MinimumLevel()})
}

// statusForResult maps a login outcome onto an HTTP status. Clients
// read the body either way; the status exists for proxies and probes.
func statusForResult(result *domain.LoginResult) int {
	if result.Success {
		return http.StatusOK
	}
	switch result.Kind {
	case domain.FailureUser:
		return http.StatusUnauthorized
	case domain.FailureGrid:
		return http.StatusBadGateway
	case domain.FailureInventory:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// clientIP strips the port from the request's remote address. RealIP
// middleware has already folded X-Forwarded-For into RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Pinger is the dependency probe the health endpoint checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health returns the health status of the service and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := map[string]interface{}{
		"status": "healthy",
		"checks": map[string]string{"api": "ok"},
	}
	statusCode := http.StatusOK

	if err := h.db.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		status["checks"].(map[string]string)["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		status["checks"].(map[string]string)["database"] = "ok"
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/healthz", h.Health)
}
