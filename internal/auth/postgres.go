package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rathinamtrainers/google-adk-mcp-demo-1/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Users() UserStore                 { return &userStore{db: s.db} }
func (s *PGStore) Roles() RoleStore                 { return &roleStore{db: s.db} }
func (s *PGStore) Permissions() PermissionStore     { return &permissionStore{db: s.db} }
func (s *PGStore) RefreshTokens() RefreshTokenStore { return &refreshTokenStore{db: s.db} }
func (s *PGStore) Audit() AuditStore                { return &auditStore{db: s.db} }
func (s *PGStore) IPAccess() IPAccessStore          { return &ipAccessStore{db: s.db} }

const uniqueViolation = "23505"

// mapConstraint turns a unique-constraint violation into ErrAlreadyExists
// so callers can treat concurrent duplicate inserts as "already seeded".
func mapConstraint(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrAlreadyExists
	}
	return err
}

// User store ---------------------------------------------------------------

type userStore struct{ db *sql.DB }

func (s *userStore) Create(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, username, email, password_hash, api_key, is_active, is_superuser, full_name, description)
		 values($1,$2,$3,$4,nullif($5,''),$6,$7,$8,$9)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.APIKey, u.IsActive, u.IsSuperuser, u.FullName, u.Description,
	)
	return mapConstraint(err)
}

const userColumns = `id, username, email, password_hash, coalesce(api_key,''), is_active, is_superuser,
	coalesce(full_name,''), coalesce(description,''), created_at, updated_at, coalesce(last_login, to_timestamp(0))`

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.APIKey, &u.IsActive, &u.IsSuperuser,
		&u.FullName, &u.Description, &u.CreatedAt, &u.UpdatedAt, &u.LastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *userStore) Find(ctx context.Context, id string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id))
}

func (s *userStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where username=$1`, username))
}

func (s *userStore) FindByAPIKey(ctx context.Context, apiKey string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where api_key=$1 and is_active=true`, apiKey))
}

func (s *userStore) SetAPIKey(ctx context.Context, userID, apiKey string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set api_key=nullif($2,''), updated_at=now() where id=$1`, userID, apiKey)
	if err != nil {
		return mapConstraint(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *userStore) SetLastLogin(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`update users set last_login=now() where id=$1`, userID)
	return err
}

func (s *userStore) Delete(ctx context.Context, id string) error {
	// refresh_tokens cascade and audit_logs null out via FK actions
	res, err := s.db.ExecContext(ctx, `delete from users where id=$1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Role store ---------------------------------------------------------------

type roleStore struct{ db *sql.DB }

func (s *roleStore) Create(ctx context.Context, role *Role) error {
	if role.ID == "" {
		role.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into roles(id, name, description, is_system_role, rate_limit)
		 values($1,$2,$3,$4,$5)`,
		role.ID, role.Name, role.Description, role.IsSystemRole, role.RateLimit,
	)
	return mapConstraint(err)
}

func scanRoles(rows *sql.Rows) ([]*Role, error) {
	defer rows.Close()
	var roles []*Role
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.IsSystemRole, &r.RateLimit, &r.CreatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, &r)
	}
	return roles, rows.Err()
}

func (s *roleStore) FindByName(ctx context.Context, name string) (*Role, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, name, coalesce(description,''), is_system_role, rate_limit, created_at from roles where name=$1`, name)
	var r Role
	err := row.Scan(&r.ID, &r.Name, &r.Description, &r.IsSystemRole, &r.RateLimit, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *roleStore) List(ctx context.Context) ([]*Role, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, name, coalesce(description,''), is_system_role, rate_limit, created_at from roles order by created_at`)
	if err != nil {
		return nil, err
	}
	return scanRoles(rows)
}

func (s *roleStore) Assign(ctx context.Context, userID, roleID string) error {
	_, err := s.db.ExecContext(ctx,
		`insert into user_roles(user_id, role_id) values($1,$2) on conflict do nothing`,
		userID, roleID)
	return err
}

func (s *roleStore) RolesForUser(ctx context.Context, userID string) ([]*Role, error) {
	rows, err := s.db.QueryContext(ctx,
		`select r.id, r.name, coalesce(r.description,''), r.is_system_role, r.rate_limit, r.created_at
		 from roles r join user_roles ur on ur.role_id=r.id where ur.user_id=$1`, userID)
	if err != nil {
		return nil, err
	}
	return scanRoles(rows)
}

// Permission store ---------------------------------------------------------

type permissionStore struct{ db *sql.DB }

func (s *permissionStore) Create(ctx context.Context, perm *Permission) error {
	if perm.ID == "" {
		perm.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into permissions(id, tool_name, action, description) values($1,$2,$3,$4)`,
		perm.ID, perm.ToolName, perm.Action, perm.Description)
	return mapConstraint(err)
}

func (s *permissionStore) Find(ctx context.Context, toolName, action string) (*Permission, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, tool_name, action, coalesce(description,''), created_at
		 from permissions where tool_name=$1 and action=$2`, toolName, action)
	var p Permission
	err := row.Scan(&p.ID, &p.ToolName, &p.Action, &p.Description, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPermissions(rows *sql.Rows) ([]*Permission, error) {
	defer rows.Close()
	var perms []*Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.ToolName, &p.Action, &p.Description, &p.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, &p)
	}
	return perms, rows.Err()
}

func (s *permissionStore) List(ctx context.Context) ([]*Permission, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, tool_name, action, coalesce(description,''), created_at from permissions order by tool_name, action`)
	if err != nil {
		return nil, err
	}
	return scanPermissions(rows)
}

func (s *permissionStore) Attach(ctx context.Context, roleID, permissionID string) error {
	_, err := s.db.ExecContext(ctx,
		`insert into role_permissions(role_id, permission_id) values($1,$2) on conflict do nothing`,
		roleID, permissionID)
	return err
}

func (s *permissionStore) PermissionsForRole(ctx context.Context, roleID string) ([]*Permission, error) {
	rows, err := s.db.QueryContext(ctx,
		`select p.id, p.tool_name, p.action, coalesce(p.description,''), p.created_at
		 from permissions p join role_permissions rp on rp.permission_id=p.id where rp.role_id=$1`, roleID)
	if err != nil {
		return nil, err
	}
	return scanPermissions(rows)
}

// Refresh token store ------------------------------------------------------

type refreshTokenStore struct{ db *sql.DB }

func (s *refreshTokenStore) Create(ctx context.Context, tok *RefreshToken) error {
	if tok.ID == "" {
		tok.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into refresh_tokens(id, user_id, token, expires_at, ip_address, user_agent)
		 values($1,$2,$3,$4,$5,$6)`,
		tok.ID, tok.UserID, tok.Token, tok.ExpiresAt, tok.IPAddress, tok.UserAgent)
	return mapConstraint(err)
}

func (s *refreshTokenStore) FindByToken(ctx context.Context, token string) (*RefreshToken, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, user_id, token, expires_at, is_revoked, coalesce(revoked_at, to_timestamp(0)),
		        coalesce(ip_address,''), coalesce(user_agent,''), created_at
		 from refresh_tokens where token=$1`, token)
	var t RefreshToken
	err := row.Scan(&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &t.IsRevoked, &t.RevokedAt,
		&t.IPAddress, &t.UserAgent, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *refreshTokenStore) Revoke(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`update refresh_tokens set is_revoked=true, revoked_at=now() where id=$1 and not is_revoked`, id)
	return err
}

func (s *refreshTokenStore) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`update refresh_tokens set is_revoked=true, revoked_at=now() where user_id=$1 and not is_revoked`, userID)
	return err
}

// Audit store --------------------------------------------------------------

type auditStore struct{ db *sql.DB }

func (s *auditStore) Append(ctx context.Context, rec *AuditRecord) error {
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into audit_logs(id, user_id, username, tool_name, action, endpoint, method,
		        ip_address, user_agent, request_payload, response_status, response_message, duration_ms, created_at)
		 values($1,nullif($2,''),$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		rec.ID, rec.UserID, rec.Username, rec.ToolName, rec.Action, rec.Endpoint, rec.Method,
		rec.IPAddress, rec.UserAgent, rec.RequestPayload, rec.ResponseStatus, rec.ResponseMessage,
		rec.DurationMS, rec.CreatedAt)
	return err
}

func (s *auditStore) ListRecent(ctx context.Context, limit int) ([]*AuditRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`select id, coalesce(user_id,''), coalesce(username,''), coalesce(tool_name,''), action, endpoint, method,
		        coalesce(ip_address,''), coalesce(user_agent,''), coalesce(request_payload,'{}'),
		        coalesce(response_status,0), coalesce(response_message,''), coalesce(duration_ms,0), created_at
		 from audit_logs order by created_at desc limit $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*AuditRecord
	for rows.Next() {
		var rec AuditRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Username, &rec.ToolName, &rec.Action, &rec.Endpoint,
			&rec.Method, &rec.IPAddress, &rec.UserAgent, &rec.RequestPayload, &rec.ResponseStatus,
			&rec.ResponseMessage, &rec.DurationMS, &rec.CreatedAt); err != nil {
			return nil, err
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}

// IP access store ----------------------------------------------------------

type ipAccessStore struct{ db *sql.DB }

func (s *ipAccessStore) Create(ctx context.Context, entry *IPAccessEntry) error {
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into ip_access(id, ip_address, ip_type, description, is_active, created_by)
		 values($1,$2,$3,$4,$5,$6)`,
		entry.ID, entry.IPAddress, entry.Type, entry.Description, entry.IsActive, entry.CreatedBy)
	return mapConstraint(err)
}

func (s *ipAccessStore) ListActive(ctx context.Context) ([]*IPAccessEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, ip_address, ip_type, coalesce(description,''), is_active, coalesce(created_by,''), created_at, updated_at
		 from ip_access where is_active=true`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*IPAccessEntry
	for rows.Next() {
		var e IPAccessEntry
		if err := rows.Scan(&e.ID, &e.IPAddress, &e.Type, &e.Description, &e.IsActive, &e.CreatedBy,
			&e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (s *ipAccessStore) Deactivate(ctx context.Context, ipAddress string) error {
	res, err := s.db.ExecContext(ctx,
		`update ip_access set is_active=false, updated_at=now() where ip_address=$1`, ipAddress)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
