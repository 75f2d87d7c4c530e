package httpapi

import (
	"net/http"
	"strings"

	"github.com/rathinamtrainers/google-adk-mcp-demo-1/internal/auth"
)

// Paths reachable without credentials in either enforcement mode.
var publicPaths = []string{
	"/healthz",
	"/readyz",
	"/metrics",
	"/v1/auth/login",
	"/v1/auth/refresh",
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

// anonymousAllowed reports whether an unauthenticated request may reach
// the path in permissive mode. Anonymous callers get list access only;
// execution and admin surfaces always require identity.
func anonymousAllowed(r *http.Request) bool {
	return r.Method == http.MethodGet && r.URL.Path == "/v1/tools"
}

// withIPGate rejects callers on the deny list before any identity work.
func (a *API) withIPGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, err := a.svc.IPAllowed(r.Context(), ClientIP(r))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "ip gate failed")
			return
		}
		if !ok {
			a.auditReject(r, http.StatusForbidden, "address not allowed")
			writeError(w, http.StatusForbidden, "address not allowed")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withAuth resolves the request identity and attaches it to the context.
// Resolution failure is not an error by itself: public paths pass
// through, and permissive mode lets anonymous requests reach the
// list-only surface. Everything else gets 401.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		user, err := a.svc.Resolve(r.Context(), credentialsFromRequest(r))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "authentication error")
			return
		}
		if user == nil {
			if a.svc.Permissive() && anonymousAllowed(r) {
				next.ServeHTTP(w, r)
				return
			}
			a.auditReject(r, http.StatusUnauthorized, "not authenticated")
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		if !user.IsActive {
			a.auditReject(r, http.StatusForbidden, "inactive user")
			writeError(w, http.StatusForbidden, "inactive user")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithUser(r.Context(), user)))
	})
}

// requireAdmin loads the context user and checks admin privilege.
func (a *API) requireAdmin(w http.ResponseWriter, r *http.Request) (*auth.User, bool) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return nil, false
	}
	if user.IsSuperuser {
		return user, true
	}
	names, err := a.svc.RoleNames(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "role lookup failed")
		return nil, false
	}
	for _, name := range names {
		if name == auth.RoleAdmin {
			return user, true
		}
	}
	writeError(w, http.StatusForbidden, "admin privileges required")
	return nil, false
}

// toolNameFromPath extracts the tool segment of /v1/tools/{name}.
func toolNameFromPath(path string) string {
	name := strings.TrimPrefix(path, "/v1/tools/")
	name = strings.Trim(name, "/")
	if strings.Contains(name, "/") {
		return ""
	}
	return name
}
