// Copyright 2026 The AuthCore Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/elementmedica/authcore/internal/audit"
)

// sweepBatchSize bounds one SweepExpired round so the cleanup loop can be
// interrupted and resumed between batches.
const sweepBatchSize = 500

// Engine is the authorization core: permission evaluation, role-mutation
// guards and the expiry sweep. It performs no cross-request caching itself;
// wrap the RoleStore with a caching decorator if a short staleness horizon
// is acceptable.
type Engine struct {
	store   RoleStore
	emitter audit.Emitter

	decisions metric.Int64Counter
	expired   metric.Int64Counter
}

// NewEngine creates the authorization engine.
func NewEngine(store RoleStore, emitter audit.Emitter) *Engine {
	meter := otel.Meter("github.com/elementmedica/authcore/internal/authz")
	decisions, err := meter.Int64Counter("authz_decisions_total",
		metric.WithDescription("Authorization decisions by outcome and reason"))
	if err != nil {
		slog.Error("failed to create decisions counter", "error", err.Error())
	}
	expired, err := meter.Int64Counter("authz_expired_roles_total",
		metric.WithDescription("Role assignments deactivated by the expiry sweep"))
	if err != nil {
		slog.Error("failed to create expiry counter", "error", err.Error())
	}

	return &Engine{
		store:     store,
		emitter:   emitter,
		decisions: decisions,
		expired:   expired,
	}
}

// dependency wraps a collaborator failure so callers can fail closed on
// errors.Is(err, ErrDependencyUnavailable).
func dependency(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrDependencyUnavailable, err)
}

// activeAssignments loads and re-filters the principal's assignments: only
// the requested tenant's active, non-expired rows may ever contribute to a
// decision, whatever the store returned.
func (e *Engine) activeAssignments(ctx context.Context, tenantID, personID string) ([]*RoleAssignment, error) {
	rows, err := e.store.FindActiveAssignments(ctx, tenantID, personID)
	if err != nil {
		return nil, dependency("find active assignments", err)
	}

	now := time.Now()
	var out []*RoleAssignment
	for _, a := range rows {
		if a.TenantID != tenantID || a.PersonID != personID {
			continue
		}
		if !a.Usable(now) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// narrowAssignments drops assignments whose company/department binding does
// not cover the requested context. An assignment without a binding applies
// everywhere in the tenant.
func narrowAssignments(assignments []*RoleAssignment, companyID, departmentID string) []*RoleAssignment {
	var out []*RoleAssignment
	for _, a := range assignments {
		if companyID != "" && a.CompanyID != nil && *a.CompanyID != companyID {
			continue
		}
		if departmentID != "" && a.DepartmentID != nil && *a.DepartmentID != departmentID {
			continue
		}
		out = append(out, a)
	}
	return out
}

// effectivePermissions merges catalog defaults with an assignment's overlay.
// Grants extend the defaults, then denies are removed, so an explicit deny
// always wins over a catalog default.
func effectivePermissions(rt RoleType, overlay []*PermissionGrant) map[string]bool {
	set := defaultPermissionSet(rt)
	for _, g := range overlay {
		if g.IsGranted {
			set[g.Permission] = true
		}
	}
	for _, g := range overlay {
		if !g.IsGranted {
			delete(set, g.Permission)
		}
	}
	return set
}

func assignmentIDs(assignments []*RoleAssignment) []string {
	ids := make([]string, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.ID)
	}
	return ids
}

func principalContextFor(req AuthorizationRequest, a *RoleAssignment) principalContext {
	pc := principalContext{
		PersonID: req.PersonID,
		TenantID: req.TenantID,
	}
	if a.CompanyID != nil {
		pc.CompanyID = *a.CompanyID
	}
	if a.DepartmentID != nil {
		pc.DepartmentID = *a.DepartmentID
	}
	return pc
}

// denyRank orders deny reasons by how far evaluation progressed; when several
// candidates fail at different stages the furthest-reaching reason is
// reported.
func denyRank(r DenyReason) int {
	switch r {
	case DenyNoMatchingPermission:
		return 0
	case DenyScopeNotContained:
		return 1
	case DenySiteNotAuthorized:
		return 2
	case DenyConditionNotMet:
		return 3
	case DenyTenantMismatch:
		return 4
	}
	return -1
}

func worseReason(current, candidate DenyReason) DenyReason {
	if denyRank(candidate) > denyRank(current) {
		return candidate
	}
	return current
}

// CheckPermission resolves a basic named permission for the principal.
// Denials are values; only unknown identifiers or store failures are errors.
func (e *Engine) CheckPermission(ctx context.Context, req AuthorizationRequest) (AuthorizationDecision, error) {
	if !KnownPermission(req.Permission) {
		return AuthorizationDecision{}, fmt.Errorf("check permission %q: %w", req.Permission, ErrUnknownPermission)
	}

	assignments, err := e.activeAssignments(ctx, req.TenantID, req.PersonID)
	if err != nil {
		return AuthorizationDecision{}, err
	}
	assignments = narrowAssignments(assignments, req.CompanyID, req.DepartmentID)
	if len(assignments) == 0 {
		return e.deny(ctx, req, DenyNoMatchingPermission), nil
	}

	grants, err := e.store.FindPermissionGrants(ctx, req.TenantID, assignmentIDs(assignments))
	if err != nil {
		return AuthorizationDecision{}, dependency("find permission grants", err)
	}
	overlay := groupGrants(grants)

	for _, a := range assignments {
		if !effectivePermissions(a.RoleType, overlay[a.ID])[req.Permission] {
			continue
		}
		spec, err := RoleCatalog(a.RoleType)
		if err != nil {
			return AuthorizationDecision{}, fmt.Errorf("assignment %s: %w", a.ID, err)
		}
		dec := AuthorizationDecision{
			Allowed:           true,
			MatchedScope:      spec.DefaultScope,
			SourceAssignments: []string{a.ID},
		}
		e.record(ctx, req, dec)
		return dec, nil
	}
	return e.deny(ctx, req, DenyNoMatchingPermission), nil
}

// CheckAdvancedPermission resolves a (resource, action) request against the
// principal's advanced grants: scope containment, site restriction and the
// closed condition vocabulary, falling back to the broad basic grant
// "resource.action" under the role's default scope. The winning grant
// determines the visible response fields.
func (e *Engine) CheckAdvancedPermission(ctx context.Context, req AuthorizationRequest) (AuthorizationDecision, error) {
	if !KnownResource(req.Resource) {
		return AuthorizationDecision{}, fmt.Errorf("check %q: %w", req.Resource, ErrUnknownResource)
	}
	if req.Action == "" {
		return AuthorizationDecision{}, fmt.Errorf("check %s: empty action: %w", req.Resource, ErrUnknownPermission)
	}

	assignments, err := e.activeAssignments(ctx, req.TenantID, req.PersonID)
	if err != nil {
		return AuthorizationDecision{}, err
	}
	assignments = narrowAssignments(assignments, req.CompanyID, req.DepartmentID)
	if len(assignments) == 0 {
		return e.deny(ctx, req, DenyNoMatchingPermission), nil
	}

	// Tenant isolation applies in addition to scope containment: even a
	// global-scope grant stays tenant-bound unless the principal holds the
	// single tenant-unbound tier.
	if req.Target != nil && req.Target.TenantID != "" && req.Target.TenantID != req.TenantID {
		if HighestRole(assignments) != RoleSuperAdmin {
			return e.deny(ctx, req, DenyTenantMismatch), nil
		}
	}

	byID := make(map[string]*RoleAssignment, len(assignments))
	for _, a := range assignments {
		byID[a.ID] = a
	}

	advanced, err := e.store.FindAdvancedPermissions(ctx, req.TenantID, assignmentIDs(assignments))
	if err != nil {
		return AuthorizationDecision{}, dependency("find advanced permissions", err)
	}

	reason := DenyNoMatchingPermission
	type match struct {
		perm       *AdvancedPermission
		assignment *RoleAssignment
	}
	var matches []match

	for _, ap := range advanced {
		if ap.Resource != req.Resource || ap.Action != req.Action {
			continue
		}
		a := byID[ap.AssignmentID]
		if a == nil {
			continue
		}
		if !ValidScope(ap.Scope) {
			return AuthorizationDecision{}, fmt.Errorf("advanced permission %s: scope %q: %w", ap.ID, ap.Scope, ErrInvalidScope)
		}

		principal := principalContextFor(req, a)
		if !ScopeContains(ap.Scope, principal, req.Target) {
			reason = worseReason(reason, DenyScopeNotContained)
			continue
		}
		if len(ap.SiteAccess) > 0 && !siteAuthorized(ap.SiteAccess, req.Target) {
			reason = worseReason(reason, DenySiteNotAuthorized)
			continue
		}
		ok, err := evalConditions(ap.Conditions, principal, req.Target)
		if err != nil {
			return AuthorizationDecision{}, fmt.Errorf("advanced permission %s: %w", ap.ID, err)
		}
		if !ok {
			reason = worseReason(reason, DenyConditionNotMet)
			continue
		}
		matches = append(matches, match{perm: ap, assignment: a})
	}

	if len(matches) > 0 {
		// Deterministic winner independent of storage order: the widest
		// matching scope prevails; among equal scopes an unrestricted field
		// list beats any explicit one, otherwise explicit lists are unioned.
		winner := matches[0]
		for _, m := range matches[1:] {
			if scopeBreadth(m.perm.Scope) < scopeBreadth(winner.perm.Scope) {
				winner = m
			}
		}
		var fields []string
		unrestricted := false
		sources := make(map[string]bool)
		for _, m := range matches {
			if m.perm.Scope != winner.perm.Scope {
				continue
			}
			sources[m.assignment.ID] = true
			if m.perm.AllowedFields == nil {
				unrestricted = true
				continue
			}
			fields = append(fields, m.perm.AllowedFields...)
		}
		if unrestricted {
			fields = nil
		}
		visible, err := VisibleFields(req.Resource, fields)
		if err != nil {
			return AuthorizationDecision{}, err
		}
		dec := AuthorizationDecision{
			Allowed:           true,
			MatchedScope:      winner.perm.Scope,
			VisibleFields:     visible,
			SourceAssignments: sortedKeys(sources),
		}
		e.record(ctx, req, dec)
		return dec, nil
	}

	// Fallback: a broad basic grant covering the same resource/action, under
	// the holding role's default scope.
	basic := PermissionFor(req.Resource, req.Action)
	if KnownPermission(basic) {
		grants, err := e.store.FindPermissionGrants(ctx, req.TenantID, assignmentIDs(assignments))
		if err != nil {
			return AuthorizationDecision{}, dependency("find permission grants", err)
		}
		overlay := groupGrants(grants)

		for _, a := range assignments {
			if !effectivePermissions(a.RoleType, overlay[a.ID])[basic] {
				continue
			}
			spec, err := RoleCatalog(a.RoleType)
			if err != nil {
				return AuthorizationDecision{}, fmt.Errorf("assignment %s: %w", a.ID, err)
			}
			if !ScopeContains(spec.DefaultScope, principalContextFor(req, a), req.Target) {
				reason = worseReason(reason, DenyScopeNotContained)
				continue
			}
			visible, err := VisibleFields(req.Resource, nil)
			if err != nil {
				return AuthorizationDecision{}, err
			}
			dec := AuthorizationDecision{
				Allowed:           true,
				MatchedScope:      spec.DefaultScope,
				VisibleFields:     visible,
				SourceAssignments: []string{a.ID},
			}
			e.record(ctx, req, dec)
			return dec, nil
		}
	}

	return e.deny(ctx, req, reason), nil
}

func siteAuthorized(sites []string, target *TargetOwnership) bool {
	if target == nil || target.SiteID == "" {
		return false
	}
	for _, s := range sites {
		if s == target.SiteID {
			return true
		}
	}
	return false
}

func groupGrants(grants []*PermissionGrant) map[string][]*PermissionGrant {
	out := make(map[string][]*PermissionGrant)
	for _, g := range grants {
		out[g.AssignmentID] = append(out[g.AssignmentID], g)
	}
	return out
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ListAssignments returns a person's active assignments for admin views,
// tenant-scoped like every other read.
func (e *Engine) ListAssignments(ctx context.Context, tenantID, personID string) ([]*RoleAssignment, error) {
	return e.activeAssignments(ctx, tenantID, personID)
}

// holdsPermission reports whether any of the principal's assignments carries
// a basic permission after overlay merging.
func (e *Engine) holdsPermission(ctx context.Context, tenantID string, assignments []*RoleAssignment, permission string) (bool, error) {
	if len(assignments) == 0 {
		return false, nil
	}
	grants, err := e.store.FindPermissionGrants(ctx, tenantID, assignmentIDs(assignments))
	if err != nil {
		return false, dependency("find permission grants", err)
	}
	overlay := groupGrants(grants)
	for _, a := range assignments {
		if effectivePermissions(a.RoleType, overlay[a.ID])[permission] {
			return true, nil
		}
	}
	return false, nil
}

func (e *Engine) deny(ctx context.Context, req AuthorizationRequest, reason DenyReason) AuthorizationDecision {
	dec := Denied(reason)
	e.record(ctx, req, dec)
	return dec
}

// record updates metrics and emits the audit event for a decision. Audit
// emission is fire-and-forget and never fails the decision.
func (e *Engine) record(ctx context.Context, req AuthorizationRequest, dec AuthorizationDecision) {
	outcome := audit.OutcomeAllowed
	eventType := audit.TypeAccessGranted
	if !dec.Allowed {
		outcome = audit.OutcomeDenied
		eventType = audit.TypeAccessDenied
	}

	if e.decisions != nil {
		e.decisions.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("outcome", outcome),
				attribute.String("reason", string(dec.Reason)),
			))
	}
	if e.emitter == nil {
		return
	}

	resource := req.Resource
	if resource == "" {
		resource = req.Permission
	}
	e.emitter.Emit(ctx, audit.Event{
		Type:     eventType,
		TenantID: req.TenantID,
		ActorID:  req.PersonID,
		Resource: resource,
		Outcome:  outcome,
		Reason:   string(dec.Reason),
		Detail: map[string]any{
			"action":        req.Action,
			"matched_scope": string(dec.MatchedScope),
		},
	})
}

// AssignRoleInput describes a role-assignment mutation.
type AssignRoleInput struct {
	AssignerID     string
	TargetPersonID string
	TenantID       string
	RoleType       RoleType
	CompanyID      *string
	DepartmentID   *string
	IsPrimary      bool
	ExpiresAt      *time.Time

	// Optional overlays created with the assignment in one transactional
	// unit.
	Grants   []*PermissionGrant
	Advanced []*AdvancedPermission
}

// AssignRole creates a role assignment after the hierarchy check. The
// assignability rule runs here, server-side, on every call; nothing about it
// is ever trusted from a client-supplied flag.
func (e *Engine) AssignRole(ctx context.Context, in AssignRoleInput) (AuthorizationDecision, *RoleAssignment, error) {
	if !KnownRoleType(in.RoleType) {
		return AuthorizationDecision{}, nil, fmt.Errorf("assign role %q: %w", in.RoleType, ErrUnknownRoleType)
	}
	if err := validateOverlays(in.Grants, in.Advanced); err != nil {
		return AuthorizationDecision{}, nil, err
	}

	assignerRoles, err := e.activeAssignments(ctx, in.TenantID, in.AssignerID)
	if err != nil {
		return AuthorizationDecision{}, nil, err
	}
	highest := HighestRole(assignerRoles)
	if !CanAssign(highest, in.RoleType) {
		dec := Denied(DenyInsufficientHierarchy)
		e.auditMutation(ctx, audit.TypeRoleAssigned, in.TenantID, in.AssignerID, in.TargetPersonID, in.RoleType, dec)
		return dec, nil, nil
	}

	existing, err := e.activeAssignments(ctx, in.TenantID, in.TargetPersonID)
	if err != nil {
		return AuthorizationDecision{}, nil, err
	}
	for _, a := range existing {
		if a.RoleType == in.RoleType && equalBinding(a.CompanyID, in.CompanyID) {
			dec := Denied(DenyDuplicateAssignment)
			e.auditMutation(ctx, audit.TypeRoleAssigned, in.TenantID, in.AssignerID, in.TargetPersonID, in.RoleType, dec)
			return dec, nil, nil
		}
	}

	now := time.Now().UTC()
	assignment := &RoleAssignment{
		ID:           uuid.NewString(),
		PersonID:     in.TargetPersonID,
		TenantID:     in.TenantID,
		RoleType:     in.RoleType,
		CompanyID:    in.CompanyID,
		DepartmentID: in.DepartmentID,
		IsPrimary:    in.IsPrimary,
		IsActive:     true,
		AssignedBy:   in.AssignerID,
		AssignedAt:   now,
		ExpiresAt:    in.ExpiresAt,
	}
	for _, g := range in.Grants {
		g.ID = uuid.NewString()
		g.AssignmentID = assignment.ID
		g.GrantedBy = in.AssignerID
		g.GrantedAt = now
	}
	for _, ap := range in.Advanced {
		ap.ID = uuid.NewString()
		ap.AssignmentID = assignment.ID
	}

	if err := e.store.CreateAssignment(ctx, assignment, in.Grants, in.Advanced); err != nil {
		if errors.Is(err, ErrDuplicateAssignment) {
			dec := Denied(DenyDuplicateAssignment)
			e.auditMutation(ctx, audit.TypeRoleAssigned, in.TenantID, in.AssignerID, in.TargetPersonID, in.RoleType, dec)
			return dec, nil, nil
		}
		return AuthorizationDecision{}, nil, dependency("create assignment", err)
	}

	dec := AuthorizationDecision{Allowed: true, SourceAssignments: []string{assignment.ID}}
	e.auditMutation(ctx, audit.TypeRoleAssigned, in.TenantID, in.AssignerID, in.TargetPersonID, in.RoleType, dec)
	return dec, assignment, nil
}

func validateOverlays(grants []*PermissionGrant, advanced []*AdvancedPermission) error {
	for _, g := range grants {
		if !KnownPermission(g.Permission) {
			return fmt.Errorf("grant %q: %w", g.Permission, ErrUnknownPermission)
		}
	}
	for _, ap := range advanced {
		if !KnownResource(ap.Resource) {
			return fmt.Errorf("advanced grant resource %q: %w", ap.Resource, ErrUnknownResource)
		}
		if !ValidScope(ap.Scope) {
			return fmt.Errorf("advanced grant scope %q: %w", ap.Scope, ErrInvalidScope)
		}
		if err := ValidConditions(ap.Conditions); err != nil {
			return fmt.Errorf("advanced grant conditions: %w", err)
		}
	}
	return nil
}

func equalBinding(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// RemoveRoleInput describes a role-removal mutation.
type RemoveRoleInput struct {
	AssignerID     string
	TargetPersonID string
	TenantID       string
	RoleType       RoleType
	CompanyID      *string
}

// RemoveRole deactivates an assignment. The assigner must either be the
// target role's superior in the hierarchy or hold users.manage_roles.
// Removal is a soft delete; overlay children are cascaded by the store.
func (e *Engine) RemoveRole(ctx context.Context, in RemoveRoleInput) (AuthorizationDecision, error) {
	if !KnownRoleType(in.RoleType) {
		return AuthorizationDecision{}, fmt.Errorf("remove role %q: %w", in.RoleType, ErrUnknownRoleType)
	}

	target, err := e.findAssignment(ctx, in.TenantID, in.TargetPersonID, in.RoleType, in.CompanyID)
	if err != nil {
		return AuthorizationDecision{}, err
	}

	allowed, err := e.mayManage(ctx, in.TenantID, in.AssignerID, in.RoleType)
	if err != nil {
		return AuthorizationDecision{}, err
	}
	if !allowed {
		dec := Denied(DenyInsufficientHierarchy)
		e.auditMutation(ctx, audit.TypeRoleRemoved, in.TenantID, in.AssignerID, in.TargetPersonID, in.RoleType, dec)
		return dec, nil
	}

	if err := e.store.DeactivateAssignment(ctx, in.TenantID, target.ID); err != nil {
		return AuthorizationDecision{}, dependency("deactivate assignment", err)
	}

	dec := AuthorizationDecision{Allowed: true, SourceAssignments: []string{target.ID}}
	e.auditMutation(ctx, audit.TypeRoleRemoved, in.TenantID, in.AssignerID, in.TargetPersonID, in.RoleType, dec)
	return dec, nil
}

// UpdatePermissionsInput describes a basic-overlay replacement.
type UpdatePermissionsInput struct {
	AssignerID     string
	TargetPersonID string
	TenantID       string
	RoleType       RoleType
	CompanyID      *string
	Permissions    []*PermissionGrant
}

// UpdatePermissions replaces an assignment's basic overlay. Every entry is
// validated against the permission catalog before anything is written, so an
// unknown identifier rejects the whole update.
func (e *Engine) UpdatePermissions(ctx context.Context, in UpdatePermissionsInput) (AuthorizationDecision, error) {
	if !KnownRoleType(in.RoleType) {
		return AuthorizationDecision{}, fmt.Errorf("update permissions for %q: %w", in.RoleType, ErrUnknownRoleType)
	}
	for _, g := range in.Permissions {
		if !KnownPermission(g.Permission) {
			return AuthorizationDecision{}, fmt.Errorf("update permissions: %q: %w", g.Permission, ErrUnknownPermission)
		}
	}

	target, err := e.findAssignment(ctx, in.TenantID, in.TargetPersonID, in.RoleType, in.CompanyID)
	if err != nil {
		return AuthorizationDecision{}, err
	}

	allowed, err := e.mayManage(ctx, in.TenantID, in.AssignerID, in.RoleType)
	if err != nil {
		return AuthorizationDecision{}, err
	}
	if !allowed {
		dec := Denied(DenyInsufficientHierarchy)
		e.auditMutation(ctx, audit.TypePermissionsUpdated, in.TenantID, in.AssignerID, in.TargetPersonID, in.RoleType, dec)
		return dec, nil
	}

	now := time.Now().UTC()
	for _, g := range in.Permissions {
		g.ID = uuid.NewString()
		g.AssignmentID = target.ID
		g.GrantedBy = in.AssignerID
		g.GrantedAt = now
	}
	if err := e.store.ReplacePermissionOverlay(ctx, in.TenantID, target.ID, in.Permissions); err != nil {
		return AuthorizationDecision{}, dependency("replace permission overlay", err)
	}

	dec := AuthorizationDecision{Allowed: true, SourceAssignments: []string{target.ID}}
	e.auditMutation(ctx, audit.TypePermissionsUpdated, in.TenantID, in.AssignerID, in.TargetPersonID, in.RoleType, dec)
	return dec, nil
}

// CleanupExpiredRoles deactivates all assignments past their expiry in
// bounded batches. Idempotent and safe to run concurrently with live checks
// and with itself: deactivation is a monotonic one-way transition, so a
// double sweep is a no-op.
func (e *Engine) CleanupExpiredRoles(ctx context.Context, tenantID string) (int64, error) {
	var total int64
	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		n, err := e.store.SweepExpired(ctx, tenantID, sweepBatchSize)
		if err != nil {
			return total, dependency("sweep expired assignments", err)
		}
		total += n
		if n < sweepBatchSize {
			break
		}
	}

	if e.expired != nil && total > 0 {
		e.expired.Add(ctx, total)
	}
	if e.emitter != nil && total > 0 {
		e.emitter.Emit(ctx, audit.Event{
			Type:     audit.TypeRolesExpired,
			TenantID: tenantID,
			Outcome:  audit.OutcomeAllowed,
			Detail:   map[string]any{"count": total},
		})
	}
	return total, nil
}

func (e *Engine) findAssignment(ctx context.Context, tenantID, personID string, rt RoleType, companyID *string) (*RoleAssignment, error) {
	assignments, err := e.activeAssignments(ctx, tenantID, personID)
	if err != nil {
		return nil, err
	}
	for _, a := range assignments {
		if a.RoleType != rt {
			continue
		}
		if companyID != nil && !equalBinding(a.CompanyID, companyID) {
			continue
		}
		return a, nil
	}
	return nil, fmt.Errorf("person %s role %s: %w", personID, rt, ErrAssignmentNotFound)
}

// mayManage reports whether the assigner may mutate assignments of the given
// role: either a hierarchy superior or a holder of users.manage_roles.
func (e *Engine) mayManage(ctx context.Context, tenantID, assignerID string, rt RoleType) (bool, error) {
	assignerRoles, err := e.activeAssignments(ctx, tenantID, assignerID)
	if err != nil {
		return false, err
	}
	if CanAssign(HighestRole(assignerRoles), rt) {
		return true, nil
	}
	return e.holdsPermission(ctx, tenantID, assignerRoles, PermUsersManageRoles)
}

func (e *Engine) auditMutation(ctx context.Context, eventType, tenantID, actorID, targetID string, rt RoleType, dec AuthorizationDecision) {
	if e.decisions != nil {
		outcome := audit.OutcomeAllowed
		if !dec.Allowed {
			outcome = audit.OutcomeDenied
		}
		e.decisions.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("outcome", outcome),
				attribute.String("reason", string(dec.Reason)),
			))
	}
	if e.emitter == nil {
		return
	}
	outcome := audit.OutcomeAllowed
	if !dec.Allowed {
		outcome = audit.OutcomeDenied
	}
	e.emitter.Emit(ctx, audit.Event{
		Type:     eventType,
		TenantID: tenantID,
		ActorID:  actorID,
		TargetID: targetID,
		Outcome:  outcome,
		Reason:   string(dec.Reason),
		Detail:   map[string]any{"role_type": string(rt)},
	})
}
