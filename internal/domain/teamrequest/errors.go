package teamrequest

import "errors"

// Causes attached to classified errors.
var (
	ErrMissingActor          = errors.New("actor id is required")
	ErrNoMembership          = errors.New("actor is not a member of the request's organisation")
	ErrNotPermitted          = errors.New("actor lacks approval permission for this scope")
	ErrGroupApprovalRequired = errors.New("request requires group approval")
	ErrGroupApprovalNotSet   = errors.New("request does not require group approval")
	ErrRequestClosed         = errors.New("request is no longer pending")
	ErrRequestExpired        = errors.New("request has expired")
)

// Store errors. Implementations of Store return these, possibly wrapped.
var (
	ErrNotFound      = errors.New("record not found")
	ErrPendingExists = errors.New("profile already has a pending team request")
	ErrAlreadyMember = errors.New("profile is already an active member of the brand")
	ErrNotPending    = errors.New("team request is not pending")
	ErrDuplicateID   = errors.New("duplicate id")
)
