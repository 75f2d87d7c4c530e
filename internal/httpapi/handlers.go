package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rathinamtrainers/google-adk-mcp-demo-1/internal/auth"
	"github.com/rathinamtrainers/google-adk-mcp-demo-1/internal/obs"
)

// Dispatcher invokes a tool after the permission gate passes. The
// arithmetic implementations live outside this subsystem.
type Dispatcher func(ctx context.Context, toolName string, args map[string]any) (any, error)

// ReadyProbe checks backing-store readiness (DB ping when configured).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the auth service.
type API struct {
	mux        *http.ServeMux
	svc        *auth.Service
	dispatch   Dispatcher
	readyProbe ReadyProbe
	version    string
	limiter    *roleLimiter
}

func New(svc *auth.Service, dispatch Dispatcher, rp ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		svc:        svc,
		dispatch:   dispatch,
		readyProbe: rp,
		version:    version,
		limiter:    newRoleLimiter(),
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/auth/me", a.handleMe)

	a.mux.HandleFunc("/v1/tools", a.handleListTools)
	a.mux.HandleFunc("/v1/tools/", a.handleCallTool)

	a.mux.HandleFunc("/v1/admin/users", a.handleCreateUser)
	a.mux.HandleFunc("/v1/admin/users/", a.handleUserResource)
	a.mux.HandleFunc("/v1/admin/ip-access", a.handleIPAccess)
	a.mux.HandleFunc("/v1/admin/audit", a.handleAuditLog)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	h := http.Handler(a.mux)
	h = a.withAudit(h)
	h = a.withRateLimit(h)
	h = a.withAuth(h)
	h = a.withIPGate(h)
	h = SecurityHeaders(h)
	h = CORS(h)
	h = Logging(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "mcp-rbac-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	if code == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeJSON(w, code, map[string]any{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// handleAuthError maps service sentinels onto transport status codes.
// Authentication failures stay uniform so callers cannot tell which
// check failed.
func handleAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "not authenticated")
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, http.StatusForbidden, "permission denied")
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, auth.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func credentialsFromRequest(r *http.Request) auth.Credentials {
	return auth.Credentials{
		BearerToken: bearerFromHeader(r.Header.Get("Authorization")),
		APIKey:      strings.TrimSpace(r.Header.Get("X-API-Key")),
	}
}

func bearerFromHeader(header string) string {
	header = strings.TrimSpace(header)
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
