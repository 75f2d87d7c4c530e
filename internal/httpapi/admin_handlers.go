package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/rathinamtrainers/google-adk-mcp-demo-1/internal/auth"
)

type createUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type assignRoleRequest struct {
	Role string `json:"role"`
}

type ipAccessRequest struct {
	IPAddress   string `json:"ip_address"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.svc.CreateUser(r.Context(), req.Username, req.Email, req.Password, req.FullName)
	if err != nil {
		handleAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
	})
}

// handleUserResource routes /v1/admin/users/{id} and its sub-resources.
func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}

	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/admin/users/"), "/")
	parts := strings.Split(rest, "/")
	if rest == "" || len(parts) > 2 {
		http.NotFound(w, r)
		return
	}
	userID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, http.MethodDelete)
			return
		}
		if err := a.svc.DeleteUser(r.Context(), userID); err != nil {
			handleAuthError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
		return
	}

	switch parts[1] {
	case "roles":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		var req assignRoleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.svc.AssignRole(r.Context(), userID, req.Role); err != nil {
			handleAuthError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "role_assigned", "role": req.Role})
	case "api-key":
		switch r.Method {
		case http.MethodPost:
			key, err := a.svc.RotateAPIKey(r.Context(), userID)
			if err != nil {
				handleAuthError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"api_key": key})
		case http.MethodDelete:
			if err := a.svc.RevokeAPIKey(r.Context(), userID); err != nil {
				handleAuthError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"status": "api_key_revoked"})
		default:
			methodNotAllowed(w, "POST, DELETE")
		}
	default:
		http.NotFound(w, r)
	}
}

func (a *API) handleIPAccess(w http.ResponseWriter, r *http.Request) {
	admin, ok := a.requireAdmin(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req ipAccessRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		req.IPAddress = strings.TrimSpace(req.IPAddress)
		if req.IPAddress == "" {
			writeError(w, http.StatusBadRequest, "ip_address is required")
			return
		}
		if req.Type != auth.IPTypeWhitelist && req.Type != auth.IPTypeBlacklist {
			writeError(w, http.StatusBadRequest, "type must be whitelist or blacklist")
			return
		}
		entry := &auth.IPAccessEntry{
			IPAddress:   req.IPAddress,
			Type:        req.Type,
			Description: req.Description,
			IsActive:    true,
			CreatedBy:   admin.ID,
		}
		if err := a.svc.Store().IPAccess().Create(r.Context(), entry); err != nil {
			handleAuthError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"id":         entry.ID,
			"ip_address": entry.IPAddress,
			"type":       entry.Type,
		})
	case http.MethodDelete:
		ip := strings.TrimSpace(r.URL.Query().Get("ip"))
		if ip == "" {
			writeError(w, http.StatusBadRequest, "ip query parameter is required")
			return
		}
		if err := a.svc.Store().IPAccess().Deactivate(r.Context(), ip); err != nil {
			handleAuthError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "deactivated"})
	default:
		methodNotAllowed(w, "POST, DELETE")
	}
}

func (a *API) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}
	records, err := a.svc.Store().Audit().ListRecent(r.Context(), limit)
	if err != nil {
		handleAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
	})
}
