package authz

import (
	"context"
	"errors"
	"time"
)

// Domain errors.
//
// Authorization denials are NOT errors: they are returned as a normal
// AuthorizationDecision value so callers branch without error handling on the
// common deny path. The errors below signal configuration defects
// (unknown identifiers), missing records, or collaborator failures.
var (
	ErrUnknownRoleType       = errors.New("unknown role type")
	ErrUnknownPermission     = errors.New("unknown permission")
	ErrUnknownResource       = errors.New("unknown resource")
	ErrUnknownCondition      = errors.New("unknown condition key")
	ErrInvalidScope          = errors.New("invalid scope")
	ErrInvalidHierarchyLevel = errors.New("invalid hierarchy level")
	ErrAssignmentNotFound    = errors.New("assignment not found")
	ErrDuplicateAssignment   = errors.New("duplicate assignment")

	// ErrDependencyUnavailable wraps store or collaborator failures. Callers
	// must treat it as "cannot determine" and deny by default (fail closed).
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)

// Scope defines the data boundary under which a grant applies.
type Scope string

const (
	ScopeGlobal     Scope = "global"
	ScopeTenant     Scope = "tenant"
	ScopeCompany    Scope = "company"
	ScopeDepartment Scope = "department"
	ScopeSelf       Scope = "self"
)

// ValidScope reports whether s is in the closed scope vocabulary.
func ValidScope(s Scope) bool {
	switch s {
	case ScopeGlobal, ScopeTenant, ScopeCompany, ScopeDepartment, ScopeSelf:
		return true
	}
	return false
}

// DenyReason is the closed set of structured denial reasons. Reasons are for
// audit and logs only; outward-facing responses carry a generic message.
type DenyReason string

const (
	DenyNoMatchingPermission  DenyReason = "NO_MATCHING_PERMISSION"
	DenyScopeNotContained     DenyReason = "SCOPE_NOT_CONTAINED"
	DenySiteNotAuthorized     DenyReason = "SITE_NOT_AUTHORIZED"
	DenyConditionNotMet       DenyReason = "CONDITION_NOT_MET"
	DenyInsufficientHierarchy DenyReason = "INSUFFICIENT_HIERARCHY_LEVEL"
	DenyDuplicateAssignment   DenyReason = "DUPLICATE_ASSIGNMENT"
	DenyTenantMismatch        DenyReason = "TENANT_MISMATCH"
)

// RoleAssignment is a principal's grant of a catalog role within a tenant.
// Lifecycle: absent -> active -> (expired | deactivated). Terminal states are
// never re-entered; a fresh assignment is created instead, which keeps the
// history reconstructible from the soft-delete trail.
type RoleAssignment struct {
	ID            string
	PersonID      string
	TenantID      string
	RoleType      RoleType
	CompanyID     *string
	DepartmentID  *string
	IsPrimary     bool
	IsActive      bool
	AssignedBy    string
	AssignedAt    time.Time
	ExpiresAt     *time.Time
	DeactivatedAt *time.Time
}

// Expired reports whether the assignment's expiry has passed at now.
func (a *RoleAssignment) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && !a.ExpiresAt.After(now)
}

// Usable reports whether the assignment may contribute to a decision.
func (a *RoleAssignment) Usable(now time.Time) bool {
	return a.IsActive && a.DeactivatedAt == nil && !a.Expired(now)
}

// PermissionGrant is a basic permission overlay attached to a RoleAssignment.
// IsGranted=false removes a catalog-default permission (deny overrides the
// default); IsGranted=true adds a permission outside the default set. Grants
// are owned by their assignment and removed with it.
type PermissionGrant struct {
	ID           string
	AssignmentID string
	Permission   string
	IsGranted    bool
	GrantedBy    string
	GrantedAt    time.Time
}

// AdvancedPermission is a fine-grained (resource, action, scope, condition)
// rule attached to a RoleAssignment.
type AdvancedPermission struct {
	ID           string
	AssignmentID string
	Resource     string
	Action       string
	Scope        Scope

	// SiteAccess restricts the grant below company granularity. Empty means
	// no site restriction.
	SiteAccess []string

	// AllowedFields is the ordered set of response fields the grant exposes.
	// Nil means "all non-sensitive fields" per the field catalog.
	AllowedFields []string

	// Conditions is a closed map evaluated with AND semantics, e.g.
	// {ownedBy: "self"}, {companyId: "same"}, {status: "active"}.
	Conditions map[string]string
}

// TargetOwnership carries the ownership attributes of the record an
// authorization request targets.
type TargetOwnership struct {
	TenantID     string
	CompanyID    string
	DepartmentID string
	OwnerID      string
	SiteID       string
	Status       string
}

// AuthorizationRequest is the normalized input to the engine. Identity and
// tenant are established upstream and trusted here.
type AuthorizationRequest struct {
	PersonID string
	TenantID string

	// Permission names a basic permission for CheckPermission.
	Permission string

	// Resource/Action select advanced-permission candidates for
	// CheckAdvancedPermission.
	Resource string
	Action   string

	// CompanyID/DepartmentID narrow the considered assignments when the
	// check is company- or department-scoped.
	CompanyID    string
	DepartmentID string

	// Target is the ownership data of the record under access, when the
	// check is record-scoped.
	Target *TargetOwnership
}

// AuthorizationDecision is the engine's verdict.
type AuthorizationDecision struct {
	Allowed           bool
	Reason            DenyReason
	MatchedScope      Scope
	VisibleFields     []string
	SourceAssignments []string
}

// Denied builds a deny decision with a structured reason.
func Denied(reason DenyReason) AuthorizationDecision {
	return AuthorizationDecision{Allowed: false, Reason: reason}
}

// RoleStore is the persistence contract the engine consumes. Every call is
// tenant-scoped; the engine never issues a query without a tenant ID. The
// store provides the locking and transaction discipline (unique-constraint
// enforcement for the active-assignment tuple, atomic child writes).
type RoleStore interface {
	// FindActiveAssignments returns the active, non-expired assignments for
	// a person within a tenant.
	FindActiveAssignments(ctx context.Context, tenantID, personID string) ([]*RoleAssignment, error)

	// FindPermissionGrants returns the basic permission overlays attached to
	// the given assignments.
	FindPermissionGrants(ctx context.Context, tenantID string, assignmentIDs []string) ([]*PermissionGrant, error)

	// FindAdvancedPermissions returns the advanced rules attached to the
	// given assignments.
	FindAdvancedPermissions(ctx context.Context, tenantID string, assignmentIDs []string) ([]*AdvancedPermission, error)

	// CreateAssignment persists an assignment together with its overlay
	// children in one transactional unit. Returns ErrDuplicateAssignment if
	// an identical active tuple already exists.
	CreateAssignment(ctx context.Context, a *RoleAssignment, grants []*PermissionGrant, advanced []*AdvancedPermission) error

	// DeactivateAssignment soft-deletes an assignment and cascades removal
	// of its overlay children. Deactivating a terminal assignment is a no-op.
	DeactivateAssignment(ctx context.Context, tenantID, assignmentID string) error

	// ReplacePermissionOverlay swaps an assignment's basic overlay
	// atomically (all-or-nothing).
	ReplacePermissionOverlay(ctx context.Context, tenantID, assignmentID string, grants []*PermissionGrant) error

	// SweepExpired deactivates up to batchSize assignments whose expiry has
	// passed and reports how many were touched.
	SweepExpired(ctx context.Context, tenantID string, batchSize int) (int64, error)
}
