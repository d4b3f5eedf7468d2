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

func TestCanAssign_StrictMonotonicity(t *testing.T) {
	// For every pair of catalog roles the rule must hold exactly:
	// assignable iff the assigner's level is strictly lower.
	for _, assigner := range RoleTypes() {
		for _, target := range RoleTypes() {
			assignerLevel, err := LevelOf(assigner)
			require.NoError(t, err)
			targetLevel, err := LevelOf(target)
			require.NoError(t, err)

			want := assignerLevel < targetLevel
			assert.Equal(t, want, CanAssign(assigner, target),
				"assigner=%s target=%s", assigner, target)
		}
	}
}

func TestCanAssign_EqualLevelDenied(t *testing.T) {
	// HR_MANAGER and MANAGER share a level; neither may assign the other,
	// and no role may assign a peer of its own type.
	assert.False(t, CanAssign(RoleHRManager, RoleManager))
	assert.False(t, CanAssign(RoleManager, RoleHRManager))
	assert.False(t, CanAssign(RoleAdmin, RoleAdmin))
}

func TestCanAssign_SuperAdminNeverAssignable(t *testing.T) {
	for _, assigner := range RoleTypes() {
		assert.False(t, CanAssign(assigner, RoleSuperAdmin),
			"assigner=%s", assigner)
	}
}

func TestCanAssign_UnknownRoleDenies(t *testing.T) {
	assert.False(t, CanAssign(RoleNone, RoleViewer))
	assert.False(t, CanAssign(RoleAdmin, RoleType("INTERN")))
	assert.False(t, CanAssign(RoleType("INTERN"), RoleViewer))
}

func TestHighestRole_PicksMostPrivileged(t *testing.T) {
	assignments := []*RoleAssignment{
		{RoleType: RoleViewer},
		{RoleType: RoleCompanyAdmin},
		{RoleType: RoleEmployee},
	}
	assert.Equal(t, RoleCompanyAdmin, HighestRole(assignments))
}

func TestHighestRole_PrimaryWinsLevelTie(t *testing.T) {
	assignments := []*RoleAssignment{
		{RoleType: RoleHRManager},
		{RoleType: RoleManager, IsPrimary: true},
	}
	assert.Equal(t, RoleManager, HighestRole(assignments))

	// Order independence.
	assignments = []*RoleAssignment{
		{RoleType: RoleManager, IsPrimary: true},
		{RoleType: RoleHRManager},
	}
	assert.Equal(t, RoleManager, HighestRole(assignments))
}

func TestHighestRole_LexicographicTieBreak(t *testing.T) {
	// No primary among the tied roles: the smaller identifier wins.
	assignments := []*RoleAssignment{
		{RoleType: RoleManager},
		{RoleType: RoleHRManager},
	}
	assert.Equal(t, RoleHRManager, HighestRole(assignments))

	// Both primary: same rule.
	assignments = []*RoleAssignment{
		{RoleType: RoleManager, IsPrimary: true},
		{RoleType: RoleHRManager, IsPrimary: true},
	}
	assert.Equal(t, RoleHRManager, HighestRole(assignments))
}

func TestHighestRole_Empty(t *testing.T) {
	assert.Equal(t, RoleNone, HighestRole(nil))
	assert.Equal(t, RoleNone, HighestRole([]*RoleAssignment{}))
}

func TestHighestRole_IgnoresUnknownRoles(t *testing.T) {
	assignments := []*RoleAssignment{
		{RoleType: RoleType("LEGACY_ROLE")},
		{RoleType: RoleViewer},
	}
	assert.Equal(t, RoleViewer, HighestRole(assignments))
}

func TestCanManageHierarchy(t *testing.T) {
	assert.True(t, CanManageHierarchy(RoleSuperAdmin))
	assert.True(t, CanManageHierarchy(RoleAdmin))
	assert.False(t, CanManageHierarchy(RoleCompanyAdmin))
	assert.False(t, CanManageHierarchy(RoleViewer))
	assert.False(t, CanManageHierarchy(RoleNone))
}

func TestValidateHierarchyMove(t *testing.T) {
	dec, err := ValidateHierarchyMove(RoleAdmin, 3)
	require.NoError(t, err)
	assert.True(t, dec.Allowed)

	// Level 0 is reserved.
	_, err = ValidateHierarchyMove(RoleSuperAdmin, 0)
	assert.ErrorIs(t, err, ErrInvalidHierarchyLevel)

	_, err = ValidateHierarchyMove(RoleAdmin, MaxHierarchyLevel+1)
	assert.ErrorIs(t, err, ErrInvalidHierarchyLevel)

	dec, err = ValidateHierarchyMove(RoleManager, 4)
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Equal(t, DenyInsufficientHierarchy, dec.Reason)
}
