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

// principalContext is the ownership identity of the principal for one
// candidate grant. Company and department come from the assignment carrying
// the grant, not from any client-supplied value.
type principalContext struct {
	PersonID     string
	TenantID     string
	CompanyID    string
	DepartmentID string
}

// ScopeContains decides whether a target record falls inside a granted scope.
// A nil target means the check is not record-scoped; the scope then acts as a
// data filter downstream and containment holds. Tenant isolation is enforced
// separately and in addition to this check.
func ScopeContains(scope Scope, principal principalContext, target *TargetOwnership) bool {
	if target == nil {
		return true
	}
	switch scope {
	case ScopeGlobal:
		return true
	case ScopeTenant:
		return target.TenantID == "" || target.TenantID == principal.TenantID
	case ScopeCompany:
		return principal.CompanyID != "" && target.CompanyID == principal.CompanyID
	case ScopeDepartment:
		return principal.DepartmentID != "" && target.DepartmentID == principal.DepartmentID
	case ScopeSelf:
		return target.OwnerID != "" && target.OwnerID == principal.PersonID
	}
	return false
}

// scopeBreadth ranks scopes from widest to narrowest. Used to pick a
// deterministic winner when several advanced grants match the same request.
func scopeBreadth(scope Scope) int {
	switch scope {
	case ScopeGlobal:
		return 0
	case ScopeTenant:
		return 1
	case ScopeCompany:
		return 2
	case ScopeDepartment:
		return 3
	case ScopeSelf:
		return 4
	}
	return 5
}
