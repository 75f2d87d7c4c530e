package httpapi

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rathinamtrainers/google-adk-mcp-demo-1/internal/auth"
)

// payloadSnapshotLimit bounds how much of a request body lands in the
// audit log.
const payloadSnapshotLimit = 4 << 10

// withAudit appends one AuditRecord per completed request. Anonymous
// requests are recorded with an empty user reference; records never leave
// the log once written.
func (a *API) withAudit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) && r.URL.Path != "/v1/auth/login" && r.URL.Path != "/v1/auth/refresh" {
			next.ServeHTTP(w, r)
			return
		}

		var payload []byte
		if r.Body != nil && r.Method != http.MethodGet {
			limited := io.LimitReader(r.Body, payloadSnapshotLimit)
			buf, _ := io.ReadAll(limited)
			rest, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(buf), bytes.NewReader(rest)))
			payload = buf
		}
		if strings.HasPrefix(r.URL.Path, "/v1/auth/") {
			// credentials never land in the audit log
			payload = nil
		}

		sw := &statusWriter{ResponseWriter: w, code: 200}
		start := time.Now()
		next.ServeHTTP(sw, r)

		rec := &auth.AuditRecord{
			Endpoint:       r.URL.Path,
			Method:         r.Method,
			IPAddress:      ClientIP(r),
			UserAgent:      r.UserAgent(),
			RequestPayload: payload,
			ResponseStatus: sw.code,
			DurationMS:     time.Since(start).Milliseconds(),
		}
		rec.ToolName, rec.Action = auditAction(r)
		if user, ok := auth.UserFromContext(r.Context()); ok {
			rec.UserID = user.ID
			rec.Username = user.Username
		}
		_ = a.svc.Audit(r.Context(), rec)
	})
}

// auditReject records a request turned away in middleware, before any
// handler runs. Failed authentication attempts are the rows a security
// log exists for, so rejects get the same treatment as completed
// requests, minus the payload.
func (a *API) auditReject(r *http.Request, status int, msg string) {
	if isPublicPath(r.URL.Path) {
		return
	}
	rec := &auth.AuditRecord{
		Endpoint:        r.URL.Path,
		Method:          r.Method,
		IPAddress:       ClientIP(r),
		UserAgent:       r.UserAgent(),
		ResponseStatus:  status,
		ResponseMessage: msg,
	}
	rec.ToolName, rec.Action = auditAction(r)
	if user, ok := auth.UserFromContext(r.Context()); ok {
		rec.UserID = user.ID
		rec.Username = user.Username
	}
	_ = a.svc.Audit(r.Context(), rec)
}

// auditAction derives the logged action kind from the route.
func auditAction(r *http.Request) (toolName, action string) {
	path := r.URL.Path
	switch {
	case path == "/v1/auth/login":
		return "", "login"
	case path == "/v1/auth/refresh":
		return "", "refresh"
	case path == "/v1/auth/logout":
		return "", "logout"
	case path == "/v1/tools" && r.Method == http.MethodGet:
		return "", "list_tools"
	case strings.HasPrefix(path, "/v1/tools/"):
		return toolNameFromPath(path), "execute_tool"
	case strings.HasPrefix(path, "/v1/admin/"):
		return "", "admin"
	default:
		return "", strings.ToLower(r.Method)
	}
}
