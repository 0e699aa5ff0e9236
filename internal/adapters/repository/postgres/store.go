// Package postgres provides a PostgreSQL-backed team workflow store on pgxpool.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/maison/internal/adapters/repository"
	"github.com/okian/maison/internal/adapters/repository/postgres/migrations"
	"github.com/okian/maison/internal/domain/access"
	"github.com/okian/maison/internal/domain/model"
	"github.com/okian/maison/internal/domain/teamrequest"
	"github.com/okian/maison/pkg/metrics"
)

const (
	driverName       = "postgres"
	uniqueViolation  = "23505"
	requestPKey      = "team_requests_pkey"
	migrationTable   = "schema_migrations"
	migrationUpToken = "-- +migrate Up"
	migrationDown    = "-- +migrate Down"
)

// Store persists the team workflow in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ teamrequest.SeedStore = (*Store)(nil)

// Open connects to databaseURL, verifies the connection and applies the
// embedded migrations.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("database url is required")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	if err := migrate(ctx, pool, migrations.FS); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool, migrationFS fs.FS) error {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+migrationTable+` (
    name TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, name := range files {
		var found int
		err := pool.QueryRow(ctx, `SELECT 1 FROM `+migrationTable+` WHERE name = $1`, name).Scan(&found)
		switch {
		case err == nil:
			continue
		case !errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		content, err := fs.ReadFile(migrationFS, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		up := string(content)
		if i := strings.Index(up, migrationUpToken); i != -1 {
			up = up[i+len(migrationUpToken):]
		}
		if j := strings.Index(up, migrationDown); j != -1 {
			up = up[:j]
		}
		err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, up); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO `+migrationTable+` (name) VALUES ($1) ON CONFLICT DO NOTHING`, name)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

func observe(op string) func() {
	start := time.Now()
	return func() {
		metrics.RecordStoreLatency(driverName, op, float64(time.Since(start).Microseconds())/1000)
	}
}

func encodeScope(sc access.Scope) ([]byte, error) {
	b, err := json.Marshal(sc.Normalize())
	if err != nil {
		return nil, fmt.Errorf("encode scope: %w", err)
	}
	return b, nil
}

func decodeScope(raw []byte) (access.Scope, error) {
	var sc access.Scope
	if err := json.Unmarshal(raw, &sc); err != nil {
		return access.Scope{}, fmt.Errorf("decode scope: %w", err)
	}
	return sc, nil
}

// SaveGroup implements teamrequest.Seeder.
func (s *Store) SaveGroup(ctx context.Context, g model.Group) error {
	defer observe("save_group")()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO groups (id, name) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
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
	_, err := s.pool.Exec(ctx,
		`INSERT INTO brands (id, group_id, name, requires_group_approval) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET
		   group_id = EXCLUDED.group_id,
		   name = EXCLUDED.name,
		   requires_group_approval = EXCLUDED.requires_group_approval`,
		b.ID, b.GroupID, b.Name, b.RequiresGroupApproval,
	)
	if err != nil {
		return fmt.Errorf("save brand: %w", err)
	}
	return nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func upsertBrandMember(ctx context.Context, db execer, m model.BrandMember) error {
	scope, err := encodeScope(m.Scope)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx,
		`INSERT INTO brand_members (brand_id, profile_id, role, scope, active, joined_at)
		 VALUES ($1, $2, $3, $4::jsonb, $5, $6)
		 ON CONFLICT (brand_id, profile_id) DO UPDATE SET
		   role = EXCLUDED.role,
		   scope = EXCLUDED.scope,
		   active = EXCLUDED.active,
		   joined_at = EXCLUDED.joined_at`,
		m.BrandID, m.ProfileID, string(m.Role), string(scope), m.Active, m.JoinedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save brand member: %w", err)
	}
	return nil
}

// SaveBrandMember implements teamrequest.Seeder.
func (s *Store) SaveBrandMember(ctx context.Context, m model.BrandMember) error {
	defer observe("save_brand_member")()
	return upsertBrandMember(ctx, s.pool, m)
}

// SaveGroupMember implements teamrequest.Seeder.
func (s *Store) SaveGroupMember(ctx context.Context, m model.GroupMember) error {
	defer observe("save_group_member")()
	scope, err := encodeScope(m.Scope)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO group_members (group_id, profile_id, role, scope) VALUES ($1, $2, $3, $4::jsonb)
		 ON CONFLICT (group_id, profile_id) DO UPDATE SET role = EXCLUDED.role, scope = EXCLUDED.scope`,
		m.GroupID, m.ProfileID, string(m.Role), string(scope),
	)
	if err != nil {
		return fmt.Errorf("save group member: %w", err)
	}
	return nil
}

// Brand implements teamrequest.Store.
func (s *Store) Brand(ctx context.Context, id string) (model.Brand, error) {
	defer observe("brand")()
	var b model.Brand
	err := s.pool.QueryRow(ctx,
		`SELECT id, group_id, name, requires_group_approval FROM brands WHERE id = $1`, id,
	).Scan(&b.ID, &b.GroupID, &b.Name, &b.RequiresGroupApproval)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Brand{}, teamrequest.ErrNotFound
	}
	if err != nil {
		return model.Brand{}, fmt.Errorf("get brand: %w", err)
	}
	return b, nil
}

// Group implements teamrequest.Store.
func (s *Store) Group(ctx context.Context, id string) (model.Group, error) {
	defer observe("group")()
	var g model.Group
	err := s.pool.QueryRow(ctx, `SELECT id, name FROM groups WHERE id = $1`, id).Scan(&g.ID, &g.Name)
	if errors.Is(err, pgx.ErrNoRows) {
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
	rows, err := s.pool.Query(ctx,
		`SELECT id, group_id, name, requires_group_approval FROM brands WHERE group_id = $1 ORDER BY id`, groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}
	defer rows.Close()
	var out []model.Brand
	for rows.Next() {
		var b model.Brand
		if err := rows.Scan(&b.ID, &b.GroupID, &b.Name, &b.RequiresGroupApproval); err != nil {
			return nil, fmt.Errorf("scan brand: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// BrandMember implements teamrequest.Store.
func (s *Store) BrandMember(ctx context.Context, brandID, profileID string) (model.BrandMember, error) {
	defer observe("brand_member")()
	var (
		m     model.BrandMember
		role  string
		scope []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT brand_id, profile_id, role, scope, joined_at FROM brand_members
		 WHERE brand_id = $1 AND profile_id = $2 AND active`,
		brandID, profileID,
	).Scan(&m.BrandID, &m.ProfileID, &role, &scope, &m.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.BrandMember{}, teamrequest.ErrNotFound
	}
	if err != nil {
		return model.BrandMember{}, fmt.Errorf("get brand member: %w", err)
	}
	m.Role = access.Role(role)
	m.Active = true
	m.JoinedAt = m.JoinedAt.UTC()
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
		scope []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT group_id, profile_id, role, scope FROM group_members WHERE group_id = $1 AND profile_id = $2`,
		groupID, profileID,
	).Scan(&m.GroupID, &m.ProfileID, &role, &scope)
	if errors.Is(err, pgx.ErrNoRows) {
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
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM brand_members WHERE brand_id = $1 AND active`, brandID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count brand members: %w", err)
	}
	return n, nil
}

const requestColumns = `id, brand_id, profile_id, requested_role, requested_scope, department, status,
	requires_group_approval, created_at, expires_at, reviewed_by, reviewed_at, review_notes,
	reviewer_level, assigned_role, assigned_scope`

func scanRequest(row pgx.Row) (model.TeamRequest, error) {
	var (
		r              model.TeamRequest
		role, status   string
		requestedScope []byte
		reviewedAt     *time.Time
		reviewerLevel  string
		assignedRole   string
		assignedScope  []byte
	)
	err := row.Scan(
		&r.ID, &r.BrandID, &r.ProfileID, &role, &requestedScope, &r.Department, &status,
		&r.RequiresGroupApproval, &r.CreatedAt, &r.ExpiresAt, &r.ReviewedBy, &reviewedAt, &r.ReviewNotes,
		&reviewerLevel, &assignedRole, &assignedScope,
	)
	if err != nil {
		return model.TeamRequest{}, err
	}
	r.RequestedRole = access.Role(role)
	r.Status = model.Status(status)
	r.CreatedAt = r.CreatedAt.UTC()
	r.ExpiresAt = r.ExpiresAt.UTC()
	r.ReviewerLevel = access.Tier(reviewerLevel)
	r.AssignedRole = access.Role(assignedRole)
	if r.RequestedScope, err = decodeScope(requestedScope); err != nil {
		return model.TeamRequest{}, err
	}
	if reviewedAt != nil {
		at := reviewedAt.UTC()
		r.ReviewedAt = &at
	}
	if assignedScope != nil {
		sc, err := decodeScope(assignedScope)
		if err != nil {
			return model.TeamRequest{}, err
		}
		r.AssignedScope = &sc
	}
	return r, nil
}

func collectRequests(rows pgx.Rows) ([]model.TeamRequest, error) {
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
	r, err := scanRequest(s.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM team_requests WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
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
	rows, err := s.pool.Query(ctx,
		`SELECT `+requestColumns+` FROM team_requests
		 WHERE brand_id = ANY($1) AND status = $2
		   AND ($3 = '' OR lower(department) = lower($3))
		   AND ($4 = '' OR requested_role = $4)
		 ORDER BY created_at, id`,
		q.BrandIDs, string(status), q.Filter.Department, string(q.Filter.RequestedRole),
	)
	if err != nil {
		return nil, fmt.Errorf("list team requests: %w", err)
	}
	return collectRequests(rows)
}

// PendingRequestID implements teamrequest.Store.
func (s *Store) PendingRequestID(ctx context.Context, profileID string, now time.Time) (string, error) {
	defer observe("pending_request_id")()
	var id string
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM team_requests WHERE profile_id = $1 AND status = 'pending' AND expires_at > $2`,
		profileID, now.UTC(),
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", teamrequest.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("pending team request: %w", err)
	}
	return id, nil
}

// CreateRequest implements teamrequest.Store.
func (s *Store) CreateRequest(ctx context.Context, req model.TeamRequest) error {
	defer observe("create_request")()
	requested, err := encodeScope(req.RequestedScope)
	if err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE team_requests SET status = 'expired'
			 WHERE profile_id = $1 AND status = 'pending' AND expires_at <= $2`,
			req.ProfileID, req.CreatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("expire stale requests: %w", err)
		}

		var found int
		err := tx.QueryRow(ctx,
			`SELECT 1 FROM team_requests WHERE profile_id = $1 AND status = 'pending'`, req.ProfileID,
		).Scan(&found)
		switch {
		case err == nil:
			return teamrequest.ErrPendingExists
		case !errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("check pending request: %w", err)
		}
		err = tx.QueryRow(ctx,
			`SELECT 1 FROM brand_members WHERE brand_id = $1 AND profile_id = $2 AND active`,
			req.BrandID, req.ProfileID,
		).Scan(&found)
		switch {
		case err == nil:
			return teamrequest.ErrAlreadyMember
		case !errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("check membership: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO team_requests (
			   id, brand_id, profile_id, requested_role, requested_scope, department, status,
			   requires_group_approval, created_at, expires_at
			 ) VALUES ($1, $2, $3, $4, $5::jsonb, $6, 'pending', $7, $8, $9)`,
			req.ID, req.BrandID, req.ProfileID, string(req.RequestedRole), string(requested), req.Department,
			req.RequiresGroupApproval, req.CreatedAt.UTC(), req.ExpiresAt.UTC(),
		)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if pgErr.ConstraintName == requestPKey {
				return teamrequest.ErrDuplicateID
			}
			return teamrequest.ErrPendingExists
		}
		if err != nil {
			return fmt.Errorf("insert team request: %w", err)
		}
		return nil
	})
}

// ResolveRequest implements teamrequest.Store.
func (s *Store) ResolveRequest(ctx context.Context, id string, res model.Resolution) (model.TeamRequest, error) {
	defer observe("resolve_request")()

	var r model.TeamRequest
	r.Status = model.StatusPending
	repository.ApplyResolution(&r, res)

	var assignedScope any
	if r.AssignedScope != nil {
		enc, err := encodeScope(*r.AssignedScope)
		if err != nil {
			return model.TeamRequest{}, err
		}
		assignedScope = string(enc)
	}
	expiryGuard := `expires_at > $9`
	if res.Status == model.StatusExpired {
		expiryGuard = `expires_at <= $9`
	}

	var updated model.TeamRequest
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		updated, err = scanRequest(tx.QueryRow(ctx,
			`UPDATE team_requests SET
			   status = $1, reviewed_by = $2, reviewed_at = $3, review_notes = $4,
			   reviewer_level = $5, assigned_role = $6, assigned_scope = $7::jsonb
			 WHERE id = $8 AND status = 'pending' AND `+expiryGuard+`
			 RETURNING `+requestColumns,
			string(r.Status), r.ReviewedBy, r.ReviewedAt, r.ReviewNotes,
			string(r.ReviewerLevel), string(r.AssignedRole), assignedScope,
			id, res.ReviewedAt.UTC(),
		))
		if errors.Is(err, pgx.ErrNoRows) {
			var found int
			lookup := tx.QueryRow(ctx, `SELECT 1 FROM team_requests WHERE id = $1`, id).Scan(&found)
			if errors.Is(lookup, pgx.ErrNoRows) {
				return teamrequest.ErrNotFound
			}
			return teamrequest.ErrNotPending
		}
		if err != nil {
			return fmt.Errorf("resolve team request: %w", err)
		}
		if updated.Status == model.StatusApproved {
			return upsertBrandMember(ctx, tx, repository.MembershipFor(updated, res.ReviewedAt))
		}
		return nil
	})
	if err != nil {
		return model.TeamRequest{}, err
	}
	return updated, nil
}

// ExpireOverdue implements teamrequest.Store.
func (s *Store) ExpireOverdue(ctx context.Context, now time.Time) ([]model.TeamRequest, error) {
	defer observe("expire_overdue")()
	rows, err := s.pool.Query(ctx,
		`UPDATE team_requests SET status = 'expired'
		 WHERE status = 'pending' AND expires_at <= $1
		 RETURNING `+requestColumns,
		now.UTC(),
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
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM team_requests GROUP BY status`)
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
