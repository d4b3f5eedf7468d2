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

// -----------------------------------------------------------------------------
// Role Catalog
// Static registry of role types, their hierarchy level and the permission set
// each role grants by default. Immutable, process-wide, never persisted
// per-tenant. Lower level = higher privilege; level 0 is reserved for the
// single super-admin tier.
// -----------------------------------------------------------------------------

// RoleType identifies a catalog role.
type RoleType string

const (
	RoleSuperAdmin   RoleType = "SUPER_ADMIN"
	RoleAdmin        RoleType = "ADMIN"
	RoleCompanyAdmin RoleType = "COMPANY_ADMIN"
	RoleHRManager    RoleType = "HR_MANAGER"
	RoleManager      RoleType = "MANAGER"
	RoleTrainer      RoleType = "TRAINER"
	RoleEmployee     RoleType = "EMPLOYEE"
	RoleViewer       RoleType = "VIEWER"

	// RoleNone is the sentinel for a principal with no active assignments.
	// It satisfies no permission check and can never assign anything.
	RoleNone RoleType = ""
)

// Hierarchy level bounds. Level 0 is held only by the super-admin tier and
// must never be produced by a hierarchy move.
const (
	LevelSuperAdmin  = 0
	MinMutableLevel  = 1
	MaxHierarchyLevel = 6
)

// RoleSpec describes a catalog entry.
type RoleSpec struct {
	Type               RoleType
	Level              int
	DefaultScope       Scope
	DefaultPermissions []string
}

// roleCatalog is read-only after package init; safe for unsynchronized
// concurrent reads.
var roleCatalog = map[RoleType]RoleSpec{
	RoleSuperAdmin: {
		Type:               RoleSuperAdmin,
		Level:              LevelSuperAdmin,
		DefaultScope:       ScopeGlobal,
		DefaultPermissions: allPermissions,
	},
	RoleAdmin: {
		Type:               RoleAdmin,
		Level:              1,
		DefaultScope:       ScopeGlobal,
		DefaultPermissions: allPermissions,
	},
	RoleCompanyAdmin: {
		Type:         RoleCompanyAdmin,
		Level:        2,
		DefaultScope: ScopeCompany,
		DefaultPermissions: []string{
			PermUsersRead,
			PermUsersManageRoles,
			PermRolesRead,
			PermCompaniesRead,
			PermCompaniesUpdate,
			PermPersonsRead,
			PermPersonsCreate,
			PermPersonsUpdate,
			PermPersonsDelete,
			PermCoursesRead,
			PermCoursesEnroll,
			PermDocumentsRead,
			PermDocumentsCreate,
			PermDocumentsDownload,
			PermSitesRead,
			PermSitesManage,
		},
	},
	RoleHRManager: {
		Type:         RoleHRManager,
		Level:        3,
		DefaultScope: ScopeCompany,
		DefaultPermissions: []string{
			PermUsersRead,
			PermRolesRead,
			PermPersonsRead,
			PermPersonsCreate,
			PermPersonsUpdate,
			PermCoursesRead,
			PermCoursesEnroll,
			PermDocumentsRead,
			PermDocumentsDownload,
		},
	},
	RoleManager: {
		Type:         RoleManager,
		Level:        3,
		DefaultScope: ScopeDepartment,
		DefaultPermissions: []string{
			PermUsersRead,
			PermPersonsRead,
			PermCoursesRead,
			PermCoursesEnroll,
			PermDocumentsRead,
		},
	},
	RoleTrainer: {
		Type:         RoleTrainer,
		Level:        4,
		DefaultScope: ScopeDepartment,
		DefaultPermissions: []string{
			PermPersonsRead,
			PermCoursesRead,
			PermCoursesUpdate,
			PermDocumentsRead,
		},
	},
	RoleEmployee: {
		Type:         RoleEmployee,
		Level:        5,
		DefaultScope: ScopeSelf,
		DefaultPermissions: []string{
			PermPersonsRead,
			PermCoursesRead,
			PermDocumentsRead,
			PermDocumentsDownload,
		},
	},
	RoleViewer: {
		Type:         RoleViewer,
		Level:        6,
		DefaultScope: ScopeSelf,
		DefaultPermissions: []string{
			PermCoursesRead,
			PermDocumentsRead,
		},
	},
}

// RoleCatalog returns the spec for a role type.
func RoleCatalog(rt RoleType) (RoleSpec, error) {
	spec, ok := roleCatalog[rt]
	if !ok {
		return RoleSpec{}, ErrUnknownRoleType
	}
	return spec, nil
}

// KnownRoleType reports whether rt is a catalog role.
func KnownRoleType(rt RoleType) bool {
	_, ok := roleCatalog[rt]
	return ok
}

// RoleTypes returns all catalog role identifiers.
func RoleTypes() []RoleType {
	types := make([]RoleType, 0, len(roleCatalog))
	for rt := range roleCatalog {
		types = append(types, rt)
	}
	return types
}

// defaultPermissionSet returns the catalog default permissions for a role as a
// fresh set. Unknown roles yield an empty set.
func defaultPermissionSet(rt RoleType) map[string]bool {
	set := make(map[string]bool)
	spec, ok := roleCatalog[rt]
	if !ok {
		return set
	}
	for _, p := range spec.DefaultPermissions {
		set[p] = true
	}
	return set
}
