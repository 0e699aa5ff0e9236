package teamrequest

import (
	"context"
	"time"

	"github.com/okian/maison/internal/domain/model"
)

// RequestQuery selects requests across one or more brands.
type RequestQuery struct {
	BrandIDs []string
	Filter   model.RequestFilter
}

// Store is the persistence boundary of the team request workflow.
//
// CreateRequest and ResolveRequest are the only writes to request rows and
// each is atomic: preconditions are checked in the same step as the write.
type Store interface {
	Brand(ctx context.Context, id string) (model.Brand, error)
	Group(ctx context.Context, id string) (model.Group, error)
	BrandsInGroup(ctx context.Context, groupID string) ([]model.Brand, error)

	// BrandMember returns the active membership of profileID in brandID.
	BrandMember(ctx context.Context, brandID, profileID string) (model.BrandMember, error)
	GroupMember(ctx context.Context, groupID, profileID string) (model.GroupMember, error)
	CountBrandMembers(ctx context.Context, brandID string) (int, error)

	Request(ctx context.Context, id string) (model.TeamRequest, error)
	// ListRequests orders by created_at then id.
	ListRequests(ctx context.Context, q RequestQuery) ([]model.TeamRequest, error)
	// PendingRequestID derives the id of the profile's live pending request
	// at now from the request rows. Returns ErrNotFound when there is none.
	PendingRequestID(ctx context.Context, profileID string, now time.Time) (string, error)

	// CreateRequest inserts req. Pending requests of the profile that are
	// overdue at req.CreatedAt are expired first; Service.Create sweeps
	// before inserting so those carry a decision payload. Fails with ErrPendingExists
	// when the profile still has a live pending request and with
	// ErrAlreadyMember when it is an active member of the brand.
	CreateRequest(ctx context.Context, req model.TeamRequest) error

	// ResolveRequest moves request id out of pending with a conditional
	// update. Approvals and rejections only apply while the request has not
	// passed its expiry at res.ReviewedAt; expirations only apply once it
	// has. An approval activates the membership in the same step. Fails with
	// ErrNotPending when the condition does not hold.
	ResolveRequest(ctx context.Context, id string, res model.Resolution) (model.TeamRequest, error)

	// ExpireOverdue flips every pending request whose expiry is at or before
	// now to expired and returns them.
	ExpireOverdue(ctx context.Context, now time.Time) ([]model.TeamRequest, error)

	// CountRequests returns the number of requests per status.
	CountRequests(ctx context.Context) (map[model.Status]int, error)

	Close() error
}

// Seeder loads organisations and memberships.
type Seeder interface {
	SaveGroup(ctx context.Context, g model.Group) error
	SaveBrand(ctx context.Context, b model.Brand) error
	SaveBrandMember(ctx context.Context, m model.BrandMember) error
	SaveGroupMember(ctx context.Context, m model.GroupMember) error
}

// SeedStore is a Store that can also be seeded.
type SeedStore interface {
	Store
	Seeder
}
