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

// Role hierarchy rules. Everything here is pure computation over the
// immutable role catalog, so it never touches the store and needs no context.

// LevelOf returns a role's hierarchy level.
func LevelOf(rt RoleType) (int, error) {
	spec, ok := roleCatalog[rt]
	if !ok {
		return 0, ErrUnknownRoleType
	}
	return spec.Level, nil
}

// HighestRole reduces a principal's assignments to the single most privileged
// role (the numerically smallest level). Selection is deterministic and
// independent of storage order: a primary assignment wins a level tie; with
// zero or several primaries the lexicographically smallest role identifier
// wins. An empty input yields RoleNone, which satisfies no check.
func HighestRole(assignments []*RoleAssignment) RoleType {
	best := RoleNone
	bestLevel := MaxHierarchyLevel + 1
	bestPrimary := false

	for _, a := range assignments {
		spec, ok := roleCatalog[a.RoleType]
		if !ok {
			continue
		}
		switch {
		case spec.Level < bestLevel:
			best, bestLevel, bestPrimary = a.RoleType, spec.Level, a.IsPrimary
		case spec.Level == bestLevel:
			if a.IsPrimary && !bestPrimary {
				best, bestPrimary = a.RoleType, true
			} else if a.IsPrimary == bestPrimary && a.RoleType < best {
				best = a.RoleType
			}
		}
	}
	return best
}

// CanAssign implements strict privilege monotonicity: an assigner may only
// grant roles strictly less privileged than their own highest role. Equal
// levels are denied, so no principal can mint a peer or escalate itself, and
// SUPER_ADMIN can never be assigned through this path at all. Unknown roles
// on either side deny.
func CanAssign(assigner, target RoleType) bool {
	assignerLevel, err := LevelOf(assigner)
	if err != nil {
		return false
	}
	targetLevel, err := LevelOf(target)
	if err != nil {
		return false
	}
	return assignerLevel < targetLevel
}

// CanManageHierarchy gates structural hierarchy operations (level moves,
// reparenting) to the two top tiers.
func CanManageHierarchy(rt RoleType) bool {
	level, err := LevelOf(rt)
	if err != nil {
		return false
	}
	return level <= 1
}

// ValidateHierarchyMove checks a requested level change. Level 0 is reserved
// for the super-admin tier and must never be produced by a move.
func ValidateHierarchyMove(mover RoleType, newLevel int) (AuthorizationDecision, error) {
	if newLevel < MinMutableLevel || newLevel > MaxHierarchyLevel {
		return AuthorizationDecision{}, ErrInvalidHierarchyLevel
	}
	if !CanManageHierarchy(mover) {
		return Denied(DenyInsufficientHierarchy), nil
	}
	return AuthorizationDecision{Allowed: true}, nil
}
