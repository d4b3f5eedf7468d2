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

// Condition keys form a small closed vocabulary, deliberately not a rule DSL.
// Each key has exactly one interpretation; unknown keys are configuration
// defects and fail loudly.
const (
	CondOwnedBy    = "ownedBy"
	CondCompany    = "companyId"
	CondDepartment = "departmentId"
	CondStatus     = "status"
)

// Relational condition values.
const (
	condValueSelf = "self"
	condValueSame = "same"
)

// evalConditions evaluates a grant's condition map against the request
// context. All present conditions must hold (logical AND). A condition that
// needs target data fails when the target is absent.
func evalConditions(conds map[string]string, principal principalContext, target *TargetOwnership) (bool, error) {
	for key, want := range conds {
		ok, err := evalCondition(key, want, principal, target)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func evalCondition(key, want string, principal principalContext, target *TargetOwnership) (bool, error) {
	switch key {
	case CondOwnedBy:
		if want != condValueSelf {
			return false, ErrUnknownCondition
		}
		return target != nil && target.OwnerID == principal.PersonID, nil
	case CondCompany:
		if want == condValueSame {
			return target != nil && principal.CompanyID != "" &&
				target.CompanyID == principal.CompanyID, nil
		}
		return target != nil && target.CompanyID == want, nil
	case CondDepartment:
		if want == condValueSame {
			return target != nil && principal.DepartmentID != "" &&
				target.DepartmentID == principal.DepartmentID, nil
		}
		return target != nil && target.DepartmentID == want, nil
	case CondStatus:
		return target != nil && target.Status == want, nil
	}
	return false, ErrUnknownCondition
}

// ValidConditions verifies every key of a condition map is in the closed
// vocabulary. Used when accepting advanced-permission payloads.
func ValidConditions(conds map[string]string) error {
	for key, want := range conds {
		switch key {
		case CondOwnedBy:
			if want != condValueSelf {
				return ErrUnknownCondition
			}
		case CondCompany, CondDepartment, CondStatus:
		default:
			return ErrUnknownCondition
		}
	}
	return nil
}
