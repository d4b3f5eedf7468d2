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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleCatalog_Consistency(t *testing.T) {
	for _, rt := range RoleTypes() {
		spec, err := RoleCatalog(rt)
		require.NoError(t, err)

		assert.Equal(t, rt, spec.Type)
		assert.GreaterOrEqual(t, spec.Level, LevelSuperAdmin)
		assert.LessOrEqual(t, spec.Level, MaxHierarchyLevel)
		assert.True(t, ValidScope(spec.DefaultScope), "role %s", rt)

		// Every default permission must be a catalog identifier.
		for _, p := range spec.DefaultPermissions {
			assert.True(t, KnownPermission(p), "role %s permission %s", rt, p)
		}
	}
}

func TestRoleCatalog_LevelZeroIsSuperAdminOnly(t *testing.T) {
	for _, rt := range RoleTypes() {
		level, err := LevelOf(rt)
		require.NoError(t, err)
		if level == LevelSuperAdmin {
			assert.Equal(t, RoleSuperAdmin, rt)
		}
	}
}

func TestRoleCatalog_UnknownRole(t *testing.T) {
	_, err := RoleCatalog(RoleType("INTERN"))
	assert.ErrorIs(t, err, ErrUnknownRoleType)
	assert.False(t, KnownRoleType(RoleType("INTERN")))
	assert.False(t, KnownRoleType(RoleNone))
}

func TestPermissionCatalog(t *testing.T) {
	assert.True(t, KnownPermission(PermCompaniesRead))
	assert.False(t, KnownPermission("companies.explode"))
	assert.False(t, KnownPermission(""))

	all := AllPermissions()
	assert.Contains(t, all, PermUsersManageRoles)

	// Returned slices are copies; mutating them must not poison the catalog.
	all[0] = "tampered"
	assert.NotContains(t, AllPermissions(), "tampered")

	cats := PermissionCategories()
	cats["users"][0] = "tampered"
	assert.NotContains(t, PermissionCategories()["users"], "tampered")
}

func TestPermissionFor(t *testing.T) {
	assert.Equal(t, PermCompaniesRead, PermissionFor("companies", "read"))
	assert.False(t, KnownPermission(PermissionFor("companies", "fly")))
}

func TestAdminTiersHoldEveryPermission(t *testing.T) {
	for _, rt := range []RoleType{RoleSuperAdmin, RoleAdmin} {
		set := defaultPermissionSet(rt)
		for _, p := range AllPermissions() {
			assert.True(t, set[p], "role %s missing %s", rt, p)
		}
	}
}
