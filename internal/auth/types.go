package auth

import "time"

// Wildcard matches any tool name or action in a permission.
const Wildcard = "*"

// Actions recognised by the authorization engine.
const (
	ActionList    = "list"
	ActionExecute = "execute"
)

// User represents a human or service account that calls tools.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	APIKey       string // empty when no key issued
	IsActive     bool
	IsSuperuser  bool
	FullName     string
	Description  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLogin    time.Time
}

// Role groups permissions and carries a per-role request budget.
type Role struct {
	ID           string
	Name         string
	Description  string
	IsSystemRole bool
	RateLimit    int // requests per minute
	CreatedAt    time.Time
}

// Permission is a (tool, action) capability; either field may be Wildcard.
type Permission struct {
	ID          string
	ToolName    string
	Action      string
	Description string
	CreatedAt   time.Time
}

// Matches reports whether the permission covers the given tool and action.
func (p Permission) Matches(toolName, action string) bool {
	toolOK := p.ToolName == Wildcard || p.ToolName == toolName
	actionOK := p.Action == Wildcard || p.Action == action
	return toolOK && actionOK
}

// RefreshToken is a persisted refresh credential bound to one user.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	IsRevoked bool
	RevokedAt time.Time
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

// Valid reports whether the token can still be redeemed at the given time.
func (t RefreshToken) Valid(now time.Time) bool {
	return !t.IsRevoked && now.Before(t.ExpiresAt)
}

// AuditRecord is one append-only entry describing a completed request.
// UserID stays empty for anonymous calls and is nulled when the user is
// deleted; the denormalized Username survives either way.
type AuditRecord struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id,omitempty"`
	Username        string    `json:"username,omitempty"`
	ToolName        string    `json:"tool_name,omitempty"`
	Action          string    `json:"action,omitempty"`
	Endpoint        string    `json:"endpoint"`
	Method          string    `json:"method"`
	IPAddress       string    `json:"ip_address"`
	UserAgent       string    `json:"user_agent,omitempty"`
	RequestPayload  []byte    `json:"request_payload,omitempty"`
	ResponseStatus  int       `json:"response_status"`
	ResponseMessage string    `json:"response_message,omitempty"`
	DurationMS      int64     `json:"duration_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

// IP entry kinds.
const (
	IPTypeWhitelist = "whitelist"
	IPTypeBlacklist = "blacklist"
)

// IPAccessEntry gates requests at the network level, independent of identity.
type IPAccessEntry struct {
	ID          string
	IPAddress   string
	Type        string // IPTypeWhitelist or IPTypeBlacklist
	Description string
	IsActive    bool
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TokenPair bundles freshly minted access and refresh credentials.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"` // access token lifetime, seconds
}
