package auth

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rathinamtrainers/google-adk-mcp-demo-1/internal/ids"
)

var _ Store = (*MemStore)(nil)

// MemStore is an in-memory Store used when no database DSN is configured
// and by tests. It enforces the same uniqueness invariants as the
// Postgres store.
type MemStore struct {
	mu sync.Mutex

	users       map[string]*User   // by id
	roles       map[string]*Role   // by id
	permissions []*Permission
	userRoles   map[string]map[string]struct{} // userID -> roleIDs
	rolePerms   map[string]map[string]struct{} // roleID -> permissionIDs
	refresh     map[string]*RefreshToken       // by id
	audit       []*AuditRecord
	ipAccess    map[string]*IPAccessEntry // by ip address
}

func NewMemStore() *MemStore {
	return &MemStore{
		users:     make(map[string]*User),
		roles:     make(map[string]*Role),
		userRoles: make(map[string]map[string]struct{}),
		rolePerms: make(map[string]map[string]struct{}),
		refresh:   make(map[string]*RefreshToken),
		ipAccess:  make(map[string]*IPAccessEntry),
	}
}

func (m *MemStore) Users() UserStore                 { return (*memUsers)(m) }
func (m *MemStore) Roles() RoleStore                 { return (*memRoles)(m) }
func (m *MemStore) Permissions() PermissionStore     { return (*memPermissions)(m) }
func (m *MemStore) RefreshTokens() RefreshTokenStore { return (*memRefresh)(m) }
func (m *MemStore) Audit() AuditStore                { return (*memAudit)(m) }
func (m *MemStore) IPAccess() IPAccessStore          { return (*memIPAccess)(m) }

func copyUser(u *User) *User {
	c := *u
	return &c
}

// User store ---------------------------------------------------------------

type memUsers MemStore

func (m *memUsers) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return ErrAlreadyExists
		}
		if u.APIKey != "" && existing.APIKey == u.APIKey {
			return ErrAlreadyExists
		}
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	m.users[u.ID] = copyUser(u)
	return nil
}

func (m *memUsers) Find(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(u), nil
}

func (m *memUsers) FindByUsername(_ context.Context, username string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return copyUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (m *memUsers) FindByAPIKey(_ context.Context, apiKey string) (*User, error) {
	if apiKey == "" {
		return nil, ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.APIKey == apiKey && u.IsActive {
			return copyUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (m *memUsers) SetAPIKey(_ context.Context, userID, apiKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	if apiKey != "" {
		for id, other := range m.users {
			if id != userID && other.APIKey == apiKey {
				return ErrAlreadyExists
			}
		}
	}
	u.APIKey = apiKey
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memUsers) SetLastLogin(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.LastLogin = time.Now().UTC()
	return nil
}

func (m *memUsers) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	delete(m.userRoles, id)
	for tokID, tok := range m.refresh {
		if tok.UserID == id {
			delete(m.refresh, tokID)
		}
	}
	// audit rows survive with the user reference nulled
	for _, rec := range m.audit {
		if rec.UserID == id {
			rec.UserID = ""
		}
	}
	return nil
}

// Role store ---------------------------------------------------------------

type memRoles MemStore

func (m *memRoles) Create(_ context.Context, role *Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.roles {
		if existing.Name == role.Name {
			return ErrAlreadyExists
		}
	}
	if role.ID == "" {
		role.ID = ids.New()
	}
	role.CreatedAt = time.Now().UTC()
	c := *role
	m.roles[role.ID] = &c
	return nil
}

func (m *memRoles) FindByName(_ context.Context, name string) (*Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.roles {
		if r.Name == name {
			c := *r
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memRoles) List(_ context.Context) ([]*Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	roles := make([]*Role, 0, len(m.roles))
	for _, r := range m.roles {
		c := *r
		roles = append(roles, &c)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].CreatedAt.Before(roles[j].CreatedAt) })
	return roles, nil
}

func (m *memRoles) Assign(_ context.Context, userID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.userRoles[userID] == nil {
		m.userRoles[userID] = make(map[string]struct{})
	}
	m.userRoles[userID][roleID] = struct{}{}
	return nil
}

func (m *memRoles) RolesForUser(_ context.Context, userID string) ([]*Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var roles []*Role
	for roleID := range m.userRoles[userID] {
		if r, ok := m.roles[roleID]; ok {
			c := *r
			roles = append(roles, &c)
		}
	}
	return roles, nil
}

// Permission store ---------------------------------------------------------

type memPermissions MemStore

func (m *memPermissions) Create(_ context.Context, perm *Permission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.permissions {
		if existing.ToolName == perm.ToolName && existing.Action == perm.Action {
			return ErrAlreadyExists
		}
	}
	if perm.ID == "" {
		perm.ID = ids.New()
	}
	perm.CreatedAt = time.Now().UTC()
	c := *perm
	m.permissions = append(m.permissions, &c)
	return nil
}

func (m *memPermissions) Find(_ context.Context, toolName, action string) (*Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.permissions {
		if p.ToolName == toolName && p.Action == action {
			c := *p
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memPermissions) List(_ context.Context) ([]*Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	perms := make([]*Permission, 0, len(m.permissions))
	for _, p := range m.permissions {
		c := *p
		perms = append(perms, &c)
	}
	return perms, nil
}

func (m *memPermissions) Attach(_ context.Context, roleID, permissionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rolePerms[roleID] == nil {
		m.rolePerms[roleID] = make(map[string]struct{})
	}
	m.rolePerms[roleID][permissionID] = struct{}{}
	return nil
}

func (m *memPermissions) PermissionsForRole(_ context.Context, roleID string) ([]*Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var perms []*Permission
	for _, p := range m.permissions {
		if _, ok := m.rolePerms[roleID][p.ID]; ok {
			c := *p
			perms = append(perms, &c)
		}
	}
	return perms, nil
}

// Refresh token store ------------------------------------------------------

type memRefresh MemStore

func (m *memRefresh) Create(_ context.Context, tok *RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.refresh {
		if existing.Token == tok.Token {
			return ErrAlreadyExists
		}
	}
	if tok.ID == "" {
		tok.ID = ids.New()
	}
	tok.CreatedAt = time.Now().UTC()
	c := *tok
	m.refresh[tok.ID] = &c
	return nil
}

func (m *memRefresh) FindByToken(_ context.Context, token string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.refresh {
		if t.Token == token {
			c := *t
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memRefresh) Revoke(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.refresh[id]
	if !ok {
		return ErrNotFound
	}
	if !t.IsRevoked {
		t.IsRevoked = true
		t.RevokedAt = time.Now().UTC()
	}
	return nil
}

func (m *memRefresh) RevokeAllForUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for _, t := range m.refresh {
		if t.UserID == userID && !t.IsRevoked {
			t.IsRevoked = true
			t.RevokedAt = now
		}
	}
	return nil
}

// Audit store --------------------------------------------------------------

type memAudit MemStore

func (m *memAudit) Append(_ context.Context, rec *AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	c := *rec
	m.audit = append(m.audit, &c)
	return nil
}

func (m *memAudit) ListRecent(_ context.Context, limit int) ([]*AuditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.audit) {
		limit = len(m.audit)
	}
	recs := make([]*AuditRecord, 0, limit)
	for i := len(m.audit) - 1; i >= 0 && len(recs) < limit; i-- {
		c := *m.audit[i]
		recs = append(recs, &c)
	}
	return recs, nil
}

// IP access store ----------------------------------------------------------

type memIPAccess MemStore

func (m *memIPAccess) Create(_ context.Context, entry *IPAccessEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.ipAccess[entry.IPAddress]; ok {
		return ErrAlreadyExists
	}
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	c := *entry
	m.ipAccess[entry.IPAddress] = &c
	return nil
}

func (m *memIPAccess) ListActive(_ context.Context) ([]*IPAccessEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var entries []*IPAccessEntry
	for _, e := range m.ipAccess {
		if e.IsActive {
			c := *e
			entries = append(entries, &c)
		}
	}
	return entries, nil
}

func (m *memIPAccess) Deactivate(_ context.Context, ipAddress string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.ipAccess[ipAddress]
	if !ok {
		return ErrNotFound
	}
	e.IsActive = false
	e.UpdatedAt = time.Now().UTC()
	return nil
}
