// Package sqlite provides a SQLite-backed team workflow store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/okian/maison/internal/adapters/repository"
	"github.com/okian/maison/internal/adapters/repository/sqlite/migrations"
	"github.com/okian/maison/internal/domain/access"
	"github.com/okian/maison/internal/domain/model"
	"github.com/okian/maison/internal/domain/teamrequest"
	"github.com/okian/maison/pkg/metrics"
)

const driverName = "sqlite"

// Store persists the team workflow in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ teamrequest.SeedStore = (*Store)(nil)

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

// Open opens a SQLite store at path and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func observe(op string) func() {
	start := time.Now()
	return func() {
		metrics.RecordStoreLatency(driverName, op, float64(time.Since(start).Microseconds())/1000)
	}
}

func encodeScope(sc access.Scope) (string, error) {
	b, err := json.Marshal(sc.Normalize())
	if err != nil {
		return "", fmt.Errorf("encode scope: %w", err)
	}
	return string(b), nil
}

func decodeScope(raw string) (access.Scope, error) {
	var sc access.Scope
	if err := json.Unmarshal([]byte(raw), &sc); err != nil {
		return access.Scope{}, fmt.Errorf("decode scope: %w", err)
	}
	return sc, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SaveGroup implements teamrequest.Seeder.
func (s *Store) SaveGroup(ctx context.Context, g model.Group) error {
	defer observe("save_group")()
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO groups (id, name) VALUES (?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name`,
		g.ID, g.Name,
	)
	if err != nil {
		return fmt.Errorf("save group: %w", err)
	}
	return nil
}

// SaveBrand implements teamrequest.Seeder.
func (s *Store) SaveBrand(ctx context.Context, b model.Brand) error {
	defer observe("save_brand")()
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO brands (id, group_id, name, requires_group_approval) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   group_id = excluded.group_id,
		   name = excluded.name,
		   requires_group_approval = excluded.requires_group_approval`,
		b.ID, b.GroupID, b.Name, boolInt(b.RequiresGroupApproval),
	)
	if err != nil {
		return fmt.Errorf("save brand: %w", err)
	}
	return nil
}

// SaveBrandMember implements teamrequest.Seeder.
func (s *Store) SaveBrandMember(ctx context.Context, m model.BrandMember) error {
	defer observe("save_brand_member")()
	return upsertBrandMember(ctx, s.sqlDB, m)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertBrandMember(ctx context.Context, db execer, m model.BrandMember) error {
	scope, err := encodeScope(m.Scope)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO brand_members (brand_id, profile_id, role, scope, active, joined_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (brand_id, profile_id) DO UPDATE SET
		   role = excluded.role,
		   scope = excluded.scope,
		   active = excluded.active,
		   joined_at = excluded.joined_at`,
		m.BrandID, m.ProfileID, string(m.Role), scope, boolInt(m.Active), toMillis(m.JoinedAt),
	)
	if err != nil {
		return fmt.Errorf("save brand member: %w", err)
	}
	return nil
}

// SaveGroupMember implements teamrequest.Seeder.
func (s *Store) SaveGroupMember(ctx context.Context, m model.GroupMember) error {
	defer observe("save_group_member")()
	scope, err := encodeScope(m.Scope)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO group_members (group_id, profile_id, role, scope) VALUES (?, ?, ?, ?)
		 ON CONFLICT (group_id, profile_id) DO UPDATE SET role = excluded.role, scope = excluded.scope`,
		m.GroupID, m.ProfileID, string(m.Role), scope,
	)
	if err != nil {
		return fmt.Errorf("save group member: %w", err)
	}
	return nil
}

// Brand implements teamrequest.Store.
func (s *Store) Brand(ctx context.Context, id string) (model.Brand, error) {
	defer observe("brand")()
	var (
		b        model.Brand
		approval int
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, group_id, name, requires_group_approval FROM brands WHERE id = ?`, id,
	).Scan(&b.ID, &b.GroupID, &b.Name, &approval)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Brand{}, teamrequest.ErrNotFound
	}
	if err != nil {
		return model.Brand{}, fmt.Errorf("get brand: %w", err)
	}
	b.RequiresGroupApproval = approval != 0
	return b, nil
}

// Group implements teamrequest.Store.
func (s *Store) Group(ctx context.Context, id string) (model.Group, error) {
	defer observe("group")()
	var g model.Group
	err := s.sqlDB.QueryRowContext(ctx, `SELECT id, name FROM groups WHERE id = ?`, id).Scan(&g.ID, &g.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Group{}, teamrequest.ErrNotFound
	}
	if err != nil {
		return model.Group{}, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

// BrandsInGroup implements teamrequest.Store.
func (s *Store) BrandsInGroup(ctx context.Context, groupID string) ([]model.Brand, error) {
	defer observe("brands_in_group")()
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, group_id, name, requires_group_approval FROM brands WHERE group_id = ? ORDER BY id`, groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}
	defer rows.Close()
	var out []model.Brand
	for rows.Next() {
		var (
			b        model.Brand
			approval int
		)
		if err := rows.Scan(&b.ID, &b.GroupID, &b.Name, &approval); err != nil {
			return nil, fmt.Errorf("scan brand: %w", err)
		}
		b.RequiresGroupApproval = approval != 0
		out = append(out, b)
	}
	return out, rows.Err()
}

// BrandMember implements teamrequest.Store.
func (s *Store) BrandMember(ctx context.Context, brandID, profileID string) (model.BrandMember, error) {
	defer observe("brand_member")()
	var (
		m        model.BrandMember
		role     string
		scope    string
		joinedAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT brand_id, profile_id, role, scope, joined_at FROM brand_members
		 WHERE brand_id = ? AND profile_id = ? AND active = 1`,
		brandID, profileID,
	).Scan(&m.BrandID, &m.ProfileID, &role, &scope, &joinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.BrandMember{}, teamrequest.ErrNotFound
	}
	if err != nil {
		return model.BrandMember{}, fmt.Errorf("get brand member: %w", err)
	}
	m.Role = access.Role(role)
	m.Active = true
	m.JoinedAt = fromMillis(joinedAt)
	if m.Scope, err = decodeScope(scope); err != nil {
		return model.BrandMember{}, err
	}
	return m, nil
}

// GroupMember implements teamrequest.Store.
func (s *Store) GroupMember(ctx context.Context, groupID, profileID string) (model.GroupMember, error) {
	defer observe("group_member")()
	var (
		m     model.GroupMember
		role  string
		scope string
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT group_id, profile_id, role, scope FROM group_members WHERE group_id = ? AND profile_id = ?`,
		groupID, profileID,
	).Scan(&m.GroupID, &m.ProfileID, &role, &scope)
	if errors.Is(err, sql.ErrNoRows) {
		return model.GroupMember{}, teamrequest.ErrNotFound
	}
	if err != nil {
		return model.GroupMember{}, fmt.Errorf("get group member: %w", err)
	}
	m.Role = access.Role(role)
	if m.Scope, err = decodeScope(scope); err != nil {
		return model.GroupMember{}, err
	}
	return m, nil
}

// CountBrandMembers implements teamrequest.Store.
func (s *Store) CountBrandMembers(ctx context.Context, brandID string) (int, error) {
	defer observe("count_brand_members")()
	var n int
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM brand_members WHERE brand_id = ? AND active = 1`, brandID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count brand members: %w", err)
	}
	return n, nil
}

const requestColumns = `id, brand_id, profile_id, requested_role, requested_scope, department, status,
	requires_group_approval, created_at, expires_at, reviewed_by, reviewed_at, review_notes,
	reviewer_level, assigned_role, assigned_scope`

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(row scanner) (model.TeamRequest, error) {
	var (
		r              model.TeamRequest
		role, status   string
		requestedScope string
		approval       int
		createdAt      int64
		expiresAt      int64
		reviewedAt     sql.NullInt64
		reviewerLevel  string
		assignedRole   string
		assignedScope  sql.NullString
	)
	err := row.Scan(
		&r.ID, &r.BrandID, &r.ProfileID, &role, &requestedScope, &r.Department, &status,
		&approval, &createdAt, &expiresAt, &r.ReviewedBy, &reviewedAt, &r.ReviewNotes,
		&reviewerLevel, &assignedRole, &assignedScope,
	)
	if err != nil {
		return model.TeamRequest{}, err
	}
	r.RequestedRole = access.Role(role)
	r.Status = model.Status(status)
	r.RequiresGroupApproval = approval != 0
	r.CreatedAt = fromMillis(createdAt)
	r.ExpiresAt = fromMillis(expiresAt)
	r.ReviewerLevel = access.Tier(reviewerLevel)
	r.AssignedRole = access.Role(assignedRole)
	if r.RequestedScope, err = decodeScope(requestedScope); err != nil {
		return model.TeamRequest{}, err
	}
	if reviewedAt.Valid {
		at := fromMillis(reviewedAt.Int64)
		r.ReviewedAt = &at
	}
	if assignedScope.Valid {
		sc, err := decodeScope(assignedScope.String)
		if err != nil {
			return model.TeamRequest{}, err
		}
		r.AssignedScope = &sc
	}
	return r, nil
}

func collectRequests(rows *sql.Rows) ([]model.TeamRequest, error) {
	defer rows.Close()
	var out []model.TeamRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan team request: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Request implements teamrequest.Store.
func (s *Store) Request(ctx context.Context, id string) (model.TeamRequest, error) {
	defer observe("request")()
	r, err := scanRequest(s.sqlDB.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM team_requests WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.TeamRequest{}, teamrequest.ErrNotFound
	}
	if err != nil {
		return model.TeamRequest{}, fmt.Errorf("get team request: %w", err)
	}
	return r, nil
}

// ListRequests implements teamrequest.Store.
func (s *Store) ListRequests(ctx context.Context, q teamrequest.RequestQuery) ([]model.TeamRequest, error) {
	defer observe("list_requests")()
	if len(q.BrandIDs) == 0 {
		return nil, nil
	}
	status := q.Filter.Status
	if status == "" {
		status = model.StatusPending
	}
	args := make([]any, 0, len(q.BrandIDs)+3)
	for _, id := range q.BrandIDs {
		args = append(args, id)
	}
	query := `SELECT ` + requestColumns + ` FROM team_requests
		WHERE brand_id IN (?` + strings.Repeat(", ?", len(q.BrandIDs)-1) + `) AND status = ?`
	args = append(args, string(status))
	if q.Filter.Department != "" {
		query += ` AND department = ? COLLATE NOCASE`
		args = append(args, q.Filter.Department)
	}
	if q.Filter.RequestedRole != "" {
		query += ` AND requested_role = ?`
		args = append(args, string(q.Filter.RequestedRole))
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list team requests: %w", err)
	}
	return collectRequests(rows)
}

// PendingRequestID implements teamrequest.Store.
func (s *Store) PendingRequestID(ctx context.Context, profileID string, now time.Time) (string, error) {
	defer observe("pending_request_id")()
	var id string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id FROM team_requests WHERE profile_id = ? AND status = 'pending' AND expires_at > ?`,
		profileID, toMillis(now),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", teamrequest.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("pending team request: %w", err)
	}
	return id, nil
}

// CreateRequest implements teamrequest.Store.
func (s *Store) CreateRequest(ctx context.Context, req model.TeamRequest) (err error) {
	defer observe("create_request")()
	requested, err := encodeScope(req.RequestedScope)
	if err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create request: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`UPDATE team_requests SET status = 'expired'
		 WHERE profile_id = ? AND status = 'pending' AND expires_at <= ?`,
		req.ProfileID, toMillis(req.CreatedAt),
	); err != nil {
		return fmt.Errorf("expire stale requests: %w", err)
	}

	var found int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM team_requests WHERE profile_id = ? AND status = 'pending'`, req.ProfileID,
	).Scan(&found)
	switch {
	case err == nil:
		return teamrequest.ErrPendingExists
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("check pending request: %w", err)
	}
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM brand_members WHERE brand_id = ? AND profile_id = ? AND active = 1`,
		req.BrandID, req.ProfileID,
	).Scan(&found)
	switch {
	case err == nil:
		return teamrequest.ErrAlreadyMember
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("check membership: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO team_requests (
		   id, brand_id, profile_id, requested_role, requested_scope, department, status,
		   requires_group_approval, created_at, expires_at
		 ) VALUES (?, ?, ?, ?, ?, ?, 'pending', ?, ?, ?)`,
		req.ID, req.BrandID, req.ProfileID, string(req.RequestedRole), requested, req.Department,
		boolInt(req.RequiresGroupApproval), toMillis(req.CreatedAt), toMillis(req.ExpiresAt),
	)
	if err != nil {
		return classifyInsert(err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create request: %w", err)
	}
	return nil
}

func classifyInsert(err error) error {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY:
			return teamrequest.ErrDuplicateID
		case sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return teamrequest.ErrPendingExists
		}
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique constraint failed: team_requests.id") {
		return teamrequest.ErrDuplicateID
	}
	if strings.Contains(msg, "unique constraint failed") {
		return teamrequest.ErrPendingExists
	}
	return fmt.Errorf("insert team request: %w", err)
}

// ResolveRequest implements teamrequest.Store.
func (s *Store) ResolveRequest(ctx context.Context, id string, res model.Resolution) (_ model.TeamRequest, err error) {
	defer observe("resolve_request")()

	var r model.TeamRequest
	r.Status = model.StatusPending
	repository.ApplyResolution(&r, res)

	var (
		reviewedAt    any
		assignedScope any
	)
	if r.ReviewedAt != nil {
		reviewedAt = toMillis(*r.ReviewedAt)
	}
	if r.AssignedScope != nil {
		enc, err := encodeScope(*r.AssignedScope)
		if err != nil {
			return model.TeamRequest{}, err
		}
		assignedScope = enc
	}
	expiryGuard := `expires_at > ?`
	if res.Status == model.StatusExpired {
		expiryGuard = `expires_at <= ?`
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return model.TeamRequest{}, fmt.Errorf("begin resolve request: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	updated, err := scanRequest(tx.QueryRowContext(ctx,
		`UPDATE team_requests SET
		   status = ?, reviewed_by = ?, reviewed_at = ?, review_notes = ?,
		   reviewer_level = ?, assigned_role = ?, assigned_scope = ?
		 WHERE id = ? AND status = 'pending' AND `+expiryGuard+`
		 RETURNING `+requestColumns,
		string(r.Status), r.ReviewedBy, reviewedAt, r.ReviewNotes,
		string(r.ReviewerLevel), string(r.AssignedRole), assignedScope,
		id, toMillis(res.ReviewedAt),
	))
	if errors.Is(err, sql.ErrNoRows) {
		var found int
		lookup := tx.QueryRowContext(ctx, `SELECT 1 FROM team_requests WHERE id = ?`, id).Scan(&found)
		if errors.Is(lookup, sql.ErrNoRows) {
			return model.TeamRequest{}, teamrequest.ErrNotFound
		}
		return model.TeamRequest{}, teamrequest.ErrNotPending
	}
	if err != nil {
		return model.TeamRequest{}, fmt.Errorf("resolve team request: %w", err)
	}

	if updated.Status == model.StatusApproved {
		if err = upsertBrandMember(ctx, tx, repository.MembershipFor(updated, res.ReviewedAt)); err != nil {
			return model.TeamRequest{}, err
		}
	}
	if err = tx.Commit(); err != nil {
		return model.TeamRequest{}, fmt.Errorf("commit resolve request: %w", err)
	}
	return updated, nil
}

// ExpireOverdue implements teamrequest.Store.
func (s *Store) ExpireOverdue(ctx context.Context, now time.Time) ([]model.TeamRequest, error) {
	defer observe("expire_overdue")()
	rows, err := s.sqlDB.QueryContext(ctx,
		`UPDATE team_requests SET status = 'expired'
		 WHERE status = 'pending' AND expires_at <= ?
		 RETURNING `+requestColumns,
		toMillis(now),
	)
	if err != nil {
		return nil, fmt.Errorf("expire overdue requests: %w", err)
	}
	out, err := collectRequests(rows)
	if err != nil {
		return nil, err
	}
	repository.SortRequests(out)
	return out, nil
}

// CountRequests implements teamrequest.Store.
func (s *Store) CountRequests(ctx context.Context) (map[model.Status]int, error) {
	defer observe("count_requests")()
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT status, COUNT(*) FROM team_requests GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count team requests: %w", err)
	}
	defer rows.Close()
	out := make(map[model.Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[model.Status(status)] = n
	}
	return out, rows.Err()
}
