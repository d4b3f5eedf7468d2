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

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/elementmedica/authcore/internal/authz"
)

// uniqueViolation is the PostgreSQL error code backing the active-assignment
// tuple invariant.
const uniqueViolation = "23505"

// RoleStore implements authz.RoleStore on PostgreSQL. Every query is
// tenant-scoped; child tables are reached through their assignment row so the
// tenant filter always applies.
type RoleStore struct {
	db *DB
}

// NewRoleStore creates a new role store
func NewRoleStore(db *DB) *RoleStore {
	return &RoleStore{db: db}
}

// FindActiveAssignments returns active, non-expired assignments for a person
func (s *RoleStore) FindActiveAssignments(ctx context.Context, tenantID, personID string) ([]*authz.RoleAssignment, error) {
	rows, err := s.db.pool.Query(ctx, `
		SELECT id, person_id, tenant_id, role_type, company_id, department_id,
		       is_primary, is_active, assigned_by, assigned_at, expires_at, deactivated_at
		FROM role_assignments
		WHERE tenant_id = $1 AND person_id = $2
		  AND is_active AND deactivated_at IS NULL
		  AND (expires_at IS NULL OR expires_at > NOW())
	`, tenantID, personID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*authz.RoleAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func scanAssignment(row pgx.Row) (*authz.RoleAssignment, error) {
	var a authz.RoleAssignment
	var roleType string
	var companyID, departmentID sql.NullString
	var expiresAt, deactivatedAt sql.NullTime

	if err := row.Scan(
		&a.ID, &a.PersonID, &a.TenantID, &roleType, &companyID, &departmentID,
		&a.IsPrimary, &a.IsActive, &a.AssignedBy, &a.AssignedAt, &expiresAt, &deactivatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan assignment: %w", err)
	}

	a.RoleType = authz.RoleType(roleType)
	if companyID.Valid {
		a.CompanyID = &companyID.String
	}
	if departmentID.Valid {
		a.DepartmentID = &departmentID.String
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		a.ExpiresAt = &t
	}
	if deactivatedAt.Valid {
		t := deactivatedAt.Time
		a.DeactivatedAt = &t
	}
	return &a, nil
}

// FindPermissionGrants returns the basic overlays attached to the given assignments
func (s *RoleStore) FindPermissionGrants(ctx context.Context, tenantID string, assignmentIDs []string) ([]*authz.PermissionGrant, error) {
	if len(assignmentIDs) == 0 {
		return nil, nil
	}

	rows, err := s.db.pool.Query(ctx, `
		SELECT g.id, g.assignment_id, g.permission, g.is_granted, g.granted_by, g.granted_at
		FROM permission_grants g
		INNER JOIN role_assignments a ON a.id = g.assignment_id
		WHERE a.tenant_id = $1 AND g.assignment_id = ANY($2)
	`, tenantID, assignmentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query permission grants: %w", err)
	}
	defer rows.Close()

	var grants []*authz.PermissionGrant
	for rows.Next() {
		var g authz.PermissionGrant
		if err := rows.Scan(&g.ID, &g.AssignmentID, &g.Permission, &g.IsGranted, &g.GrantedBy, &g.GrantedAt); err != nil {
			return nil, fmt.Errorf("failed to scan permission grant: %w", err)
		}
		grants = append(grants, &g)
	}
	return grants, rows.Err()
}

// FindAdvancedPermissions returns the advanced rules attached to the given assignments
func (s *RoleStore) FindAdvancedPermissions(ctx context.Context, tenantID string, assignmentIDs []string) ([]*authz.AdvancedPermission, error) {
	if len(assignmentIDs) == 0 {
		return nil, nil
	}

	rows, err := s.db.pool.Query(ctx, `
		SELECT p.id, p.assignment_id, p.resource, p.action, p.scope,
		       COALESCE(p.site_access, '{}'), p.allowed_fields, p.conditions
		FROM advanced_permissions p
		INNER JOIN role_assignments a ON a.id = p.assignment_id
		WHERE a.tenant_id = $1 AND p.assignment_id = ANY($2)
	`, tenantID, assignmentIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query advanced permissions: %w", err)
	}
	defer rows.Close()

	var perms []*authz.AdvancedPermission
	for rows.Next() {
		var p authz.AdvancedPermission
		var scope string
		var conditions []byte

		if err := rows.Scan(&p.ID, &p.AssignmentID, &p.Resource, &p.Action, &scope,
			&p.SiteAccess, &p.AllowedFields, &conditions); err != nil {
			return nil, fmt.Errorf("failed to scan advanced permission: %w", err)
		}
		p.Scope = authz.Scope(scope)
		if len(conditions) > 0 {
			if err := json.Unmarshal(conditions, &p.Conditions); err != nil {
				return nil, fmt.Errorf("failed to decode conditions for %s: %w", p.ID, err)
			}
		}
		perms = append(perms, &p)
	}
	return perms, rows.Err()
}

// CreateAssignment persists an assignment and its overlay children in one
// transaction. The partial unique index turns a duplicate active tuple into
// authz.ErrDuplicateAssignment.
func (s *RoleStore) CreateAssignment(ctx context.Context, a *authz.RoleAssignment, grants []*authz.PermissionGrant, advanced []*authz.AdvancedPermission) error {
	tx, err := s.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO role_assignments (
			id, person_id, tenant_id, role_type, company_id, department_id,
			is_primary, is_active, assigned_by, assigned_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		a.ID, a.PersonID, a.TenantID, string(a.RoleType), a.CompanyID, a.DepartmentID,
		a.IsPrimary, a.IsActive, a.AssignedBy, a.AssignedAt, a.ExpiresAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return authz.ErrDuplicateAssignment
		}
		return fmt.Errorf("failed to create assignment: %w", err)
	}

	for _, g := range grants {
		if _, err := tx.Exec(ctx, `
			INSERT INTO permission_grants (id, assignment_id, permission, is_granted, granted_by, granted_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, g.ID, g.AssignmentID, g.Permission, g.IsGranted, g.GrantedBy, g.GrantedAt); err != nil {
			return fmt.Errorf("failed to create permission grant: %w", err)
		}
	}

	for _, p := range advanced {
		conditions, err := json.Marshal(p.Conditions)
		if err != nil {
			return fmt.Errorf("failed to encode conditions: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO advanced_permissions (id, assignment_id, resource, action, scope, site_access, allowed_fields, conditions)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, p.ID, p.AssignmentID, p.Resource, p.Action, string(p.Scope), p.SiteAccess, p.AllowedFields, conditions); err != nil {
			return fmt.Errorf("failed to create advanced permission: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// DeactivateAssignment soft-deletes an assignment. Children stay behind for
// the audit trail; they become unreachable because every child read joins
// through the active assignment row. Re-deactivation is a no-op.
func (s *RoleStore) DeactivateAssignment(ctx context.Context, tenantID, assignmentID string) error {
	_, err := s.db.pool.Exec(ctx, `
		UPDATE role_assignments
		SET is_active = FALSE, deactivated_at = $3
		WHERE tenant_id = $1 AND id = $2 AND is_active AND deactivated_at IS NULL
	`, tenantID, assignmentID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to deactivate assignment: %w", err)
	}
	return nil
}

// ReplacePermissionOverlay swaps an assignment's basic overlay atomically.
func (s *RoleStore) ReplacePermissionOverlay(ctx context.Context, tenantID, assignmentID string, grants []*authz.PermissionGrant) error {
	tx, err := s.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM permission_grants g
		USING role_assignments a
		WHERE a.id = g.assignment_id AND a.tenant_id = $1 AND g.assignment_id = $2
	`, tenantID, assignmentID); err != nil {
		return fmt.Errorf("failed to clear permission overlay: %w", err)
	}

	for _, g := range grants {
		if _, err := tx.Exec(ctx, `
			INSERT INTO permission_grants (id, assignment_id, permission, is_granted, granted_by, granted_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, g.ID, g.AssignmentID, g.Permission, g.IsGranted, g.GrantedBy, g.GrantedAt); err != nil {
			return fmt.Errorf("failed to insert permission grant: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// SweepExpired deactivates one bounded batch of expired assignments.
// SKIP LOCKED keeps concurrent sweeps from contending on the same rows.
func (s *RoleStore) SweepExpired(ctx context.Context, tenantID string, batchSize int) (int64, error) {
	result, err := s.db.pool.Exec(ctx, `
		UPDATE role_assignments
		SET is_active = FALSE, deactivated_at = NOW()
		WHERE id IN (
			SELECT id FROM role_assignments
			WHERE tenant_id = $1 AND is_active AND deactivated_at IS NULL
			  AND expires_at IS NOT NULL AND expires_at <= NOW()
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
	`, tenantID, batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired assignments: %w", err)
	}
	return result.RowsAffected(), nil
}
