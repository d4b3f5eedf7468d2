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

import "sort"

// -----------------------------------------------------------------------------
// Permission Catalog
// Canonical permission identifiers, grouped by category. Identifiers follow
// the "resource.action" convention; permission strings outside this registry
// are rejected as configuration defects, never silently ignored.
// -----------------------------------------------------------------------------

const (
	PermUsersRead        = "users.read"
	PermUsersCreate      = "users.create"
	PermUsersUpdate      = "users.update"
	PermUsersDelete      = "users.delete"
	PermUsersManageRoles = "users.manage_roles"

	PermRolesRead   = "roles.read"
	PermRolesManage = "roles.manage"

	PermCompaniesRead   = "companies.read"
	PermCompaniesCreate = "companies.create"
	PermCompaniesUpdate = "companies.update"
	PermCompaniesDelete = "companies.delete"

	PermPersonsRead   = "persons.read"
	PermPersonsCreate = "persons.create"
	PermPersonsUpdate = "persons.update"
	PermPersonsDelete = "persons.delete"

	PermCoursesRead   = "courses.read"
	PermCoursesCreate = "courses.create"
	PermCoursesUpdate = "courses.update"
	PermCoursesDelete = "courses.delete"
	PermCoursesEnroll = "courses.enroll"

	PermDocumentsRead     = "documents.read"
	PermDocumentsCreate   = "documents.create"
	PermDocumentsDelete   = "documents.delete"
	PermDocumentsDownload = "documents.download"

	PermSitesRead   = "sites.read"
	PermSitesManage = "sites.manage"
)

// permissionCategories groups catalog permissions for listing APIs.
var permissionCategories = map[string][]string{
	"users": {
		PermUsersRead, PermUsersCreate, PermUsersUpdate, PermUsersDelete,
		PermUsersManageRoles,
	},
	"roles": {
		PermRolesRead, PermRolesManage,
	},
	"companies": {
		PermCompaniesRead, PermCompaniesCreate, PermCompaniesUpdate, PermCompaniesDelete,
	},
	"persons": {
		PermPersonsRead, PermPersonsCreate, PermPersonsUpdate, PermPersonsDelete,
	},
	"courses": {
		PermCoursesRead, PermCoursesCreate, PermCoursesUpdate, PermCoursesDelete,
		PermCoursesEnroll,
	},
	"documents": {
		PermDocumentsRead, PermDocumentsCreate, PermDocumentsDelete, PermDocumentsDownload,
	},
	"sites": {
		PermSitesRead, PermSitesManage,
	},
}

// Initialization order matters: the role catalog references allPermissions,
// so both are dependency-ordered package vars, frozen before any use.
var (
	permissionSet  = buildPermissionSet()
	allPermissions = buildAllPermissions()
)

func buildPermissionSet() map[string]bool {
	set := make(map[string]bool)
	for _, perms := range permissionCategories {
		for _, p := range perms {
			set[p] = true
		}
	}
	return set
}

func buildAllPermissions() []string {
	all := make([]string, 0, len(permissionSet))
	for p := range permissionSet {
		all = append(all, p)
	}
	sort.Strings(all)
	return all
}

// KnownPermission reports whether p is a catalog permission identifier.
func KnownPermission(p string) bool {
	return permissionSet[p]
}

// AllPermissions returns every catalog permission, sorted.
func AllPermissions() []string {
	out := make([]string, len(allPermissions))
	copy(out, allPermissions)
	return out
}

// PermissionCategories returns the catalog grouped by category.
func PermissionCategories() map[string][]string {
	out := make(map[string][]string, len(permissionCategories))
	for cat, perms := range permissionCategories {
		cp := make([]string, len(perms))
		copy(cp, perms)
		out[cat] = cp
	}
	return out
}

// PermissionFor builds the basic permission identifier covering a
// resource/action pair, used as the broad-grant fallback for advanced checks.
func PermissionFor(resource, action string) string {
	return resource + "." + action
}
