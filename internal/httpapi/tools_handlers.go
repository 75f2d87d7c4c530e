package httpapi

import (
	"net/http"

	"github.com/rathinamtrainers/google-adk-mcp-demo-1/internal/auth"
)

type callToolRequest struct {
	Arguments map[string]any `json:"arguments"`
}

func knownTool(name string) bool {
	for _, t := range auth.ToolNames {
		if t == name {
			return true
		}
	}
	return false
}

func (a *API) handleListTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	user, ok := auth.UserFromContext(r.Context())
	if ok {
		allowed, err := a.svc.CheckPermission(r.Context(), user, auth.Wildcard, auth.ActionList)
		if err != nil {
			handleAuthError(w, err)
			return
		}
		if !allowed {
			writeError(w, http.StatusForbidden, "permission denied")
			return
		}
	}
	// No context user only happens in permissive mode; the listing is
	// the one surface anonymous callers get.

	writeJSON(w, http.StatusOK, map[string]any{
		"tools": auth.ToolNames,
		"count": len(auth.ToolNames),
	})
}

func (a *API) handleCallTool(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	name := toolNameFromPath(r.URL.Path)
	if name == "" || !knownTool(name) {
		writeError(w, http.StatusNotFound, "unknown tool")
		return
	}

	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	if _, err := a.svc.RequirePermission(r.Context(), user, name, auth.ActionExecute); err != nil {
		handleAuthError(w, err)
		return
	}

	var req callToolRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if a.dispatch == nil {
		writeError(w, http.StatusNotImplemented, "tool dispatch not configured")
		return
	}
	result, err := a.dispatch(r.Context(), name, req.Arguments)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tool":   name,
		"result": result,
	})
}
