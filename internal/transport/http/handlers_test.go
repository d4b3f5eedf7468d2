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

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elementmedica/authcore/internal/audit"
	"github.com/elementmedica/authcore/internal/authz"
)

var testSecret = []byte("test-gateway-secret")

// stubStore serves a fixed assignment set; mutations are accepted blindly.
type stubStore struct {
	assignments []*authz.RoleAssignment
	advanced    []*authz.AdvancedPermission
}

func (s *stubStore) FindActiveAssignments(_ context.Context, tenantID, personID string) ([]*authz.RoleAssignment, error) {
	var out []*authz.RoleAssignment
	for _, a := range s.assignments {
		if a.TenantID == tenantID && a.PersonID == personID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *stubStore) FindPermissionGrants(context.Context, string, []string) ([]*authz.PermissionGrant, error) {
	return nil, nil
}

func (s *stubStore) FindAdvancedPermissions(context.Context, string, []string) ([]*authz.AdvancedPermission, error) {
	return s.advanced, nil
}

func (s *stubStore) CreateAssignment(_ context.Context, a *authz.RoleAssignment, _ []*authz.PermissionGrant, _ []*authz.AdvancedPermission) error {
	s.assignments = append(s.assignments, a)
	return nil
}

func (s *stubStore) DeactivateAssignment(context.Context, string, string) error { return nil }

func (s *stubStore) ReplacePermissionOverlay(context.Context, string, string, []*authz.PermissionGrant) error {
	return nil
}

func (s *stubStore) SweepExpired(context.Context, string, int) (int64, error) { return 0, nil }

func newTestServer(t *testing.T, store authz.RoleStore) *httptest.Server {
	t.Helper()
	engine := authz.NewEngine(store, audit.NopEmitter{})
	handler := NewHandler(engine)
	rl := NewRateLimiter(1000, 1000)
	srv := httptest.NewServer(NewRouter(handler, rl, testSecret))
	t.Cleanup(srv.Close)
	return srv
}

func mintAssertion(t *testing.T, personID, tenantID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, principalClaims{
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   personID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	signed, err := token.SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

func doJSON(t *testing.T, srv *httptest.Server, method, path, assertion string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if assertion != "" {
		req.Header.Set("Authorization", "Bearer "+assertion)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t, &stubStore{})
	resp, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCheck_RequiresAssertion(t *testing.T) {
	srv := newTestServer(t, &stubStore{})

	resp := doJSON(t, srv, http.MethodPost, "/api/v1/authz/check", "", map[string]string{
		"permission": authz.PermCoursesRead,
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCheck_RejectsTenantHeader(t *testing.T) {
	srv := newTestServer(t, &stubStore{})
	assertion := mintAssertion(t, "p-1", "t1")

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/authz/check",
		bytes.NewBufferString(`{"permission":"courses.read"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+assertion)
	req.Header.Set("X-Tenant-ID", "t2")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheck_RejectsForgedAssertion(t *testing.T) {
	srv := newTestServer(t, &stubStore{})

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, principalClaims{
		TenantID:         "t1",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "p-1"},
	})
	forged, err := token.SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	resp := doJSON(t, srv, http.MethodPost, "/api/v1/authz/check", forged, map[string]string{
		"permission": authz.PermCoursesRead,
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCheck_AllowAndDeny(t *testing.T) {
	srv := newTestServer(t, &stubStore{assignments: []*authz.RoleAssignment{
		{ID: "a-1", PersonID: "p-1", TenantID: "t1", RoleType: authz.RoleEmployee, IsActive: true},
	}})
	assertion := mintAssertion(t, "p-1", "t1")

	resp := doJSON(t, srv, http.MethodPost, "/api/v1/authz/check", assertion, map[string]string{
		"permission": authz.PermCoursesRead,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var dec decisionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&dec))
	assert.True(t, dec.Allowed)
	assert.Equal(t, string(authz.ScopeSelf), dec.MatchedScope)

	// Denied checks answer 200 with a generic message and no reason.
	resp = doJSON(t, srv, http.MethodPost, "/api/v1/authz/check", assertion, map[string]string{
		"permission": authz.PermUsersDelete,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := decodeMap(resp)
	require.NoError(t, err)
	assert.Equal(t, false, body["allowed"])
	assert.Equal(t, "access denied", body["message"])
	assert.NotContains(t, body, "reason")
}

func TestCheck_UnknownPermissionIsBadRequest(t *testing.T) {
	srv := newTestServer(t, &stubStore{})
	assertion := mintAssertion(t, "p-1", "t1")

	resp := doJSON(t, srv, http.MethodPost, "/api/v1/authz/check", assertion, map[string]string{
		"permission": "courses.levitate",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckAdvanced_RedactsRecord(t *testing.T) {
	srv := newTestServer(t, &stubStore{
		assignments: []*authz.RoleAssignment{
			{ID: "a-1", PersonID: "p-1", TenantID: "t1", RoleType: authz.RoleCompanyAdmin,
				CompanyID: strPtr("c-1"), IsActive: true},
		},
		advanced: []*authz.AdvancedPermission{
			{ID: "ap-1", AssignmentID: "a-1", Resource: "companies", Action: "read",
				Scope: authz.ScopeCompany, AllowedFields: []string{"ragioneSociale"}},
		},
	})
	assertion := mintAssertion(t, "p-1", "t1")

	resp := doJSON(t, srv, http.MethodPost, "/api/v1/authz/check-advanced", assertion, map[string]any{
		"resource": "companies",
		"action":   "read",
		"target":   map[string]string{"tenantId": "t1", "companyId": "c-1"},
		"record": map[string]any{
			"id":             "c-1",
			"ragioneSociale": "ACME Srl",
			"iban":           "IT60X0542811101000000123456",
		},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var dec decisionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&dec))
	assert.True(t, dec.Allowed)
	assert.Equal(t, []string{"id", "ragioneSociale"}, dec.VisibleFields)
	assert.Equal(t, map[string]any{"id": "c-1", "ragioneSociale": "ACME Srl"}, dec.Record)
}

func TestAssignRole_ForbiddenWithoutHierarchy(t *testing.T) {
	srv := newTestServer(t, &stubStore{assignments: []*authz.RoleAssignment{
		{ID: "a-1", PersonID: "p-1", TenantID: "t1", RoleType: authz.RoleEmployee, IsActive: true},
	}})
	assertion := mintAssertion(t, "p-1", "t1")

	resp := doJSON(t, srv, http.MethodPost, "/api/v1/roles/", assertion, map[string]any{
		"targetPersonId": "p-2",
		"roleType":       string(authz.RoleAdmin),
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	body, err := decodeMap(resp)
	require.NoError(t, err)
	assert.Equal(t, "access denied", body["error"])
}

func TestAssignRole_Created(t *testing.T) {
	srv := newTestServer(t, &stubStore{assignments: []*authz.RoleAssignment{
		{ID: "a-1", PersonID: "p-1", TenantID: "t1", RoleType: authz.RoleAdmin, IsActive: true},
	}})
	assertion := mintAssertion(t, "p-1", "t1")

	resp := doJSON(t, srv, http.MethodPost, "/api/v1/roles/", assertion, map[string]any{
		"targetPersonId": "p-2",
		"roleType":       string(authz.RoleEmployee),
		"companyId":      "c-1",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body, err := decodeMap(resp)
	require.NoError(t, err)
	assert.NotEmpty(t, body["id"])
	assert.Equal(t, "p-2", body["personId"])
}

func TestRemoveRole_NotFound(t *testing.T) {
	srv := newTestServer(t, &stubStore{assignments: []*authz.RoleAssignment{
		{ID: "a-1", PersonID: "p-1", TenantID: "t1", RoleType: authz.RoleAdmin, IsActive: true},
	}})
	assertion := mintAssertion(t, "p-1", "t1")

	resp := doJSON(t, srv, http.MethodDelete, "/api/v1/roles/", assertion, map[string]any{
		"targetPersonId": "ghost",
		"roleType":       string(authz.RoleEmployee),
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListAssignments(t *testing.T) {
	srv := newTestServer(t, &stubStore{assignments: []*authz.RoleAssignment{
		{ID: "a-1", PersonID: "p-2", TenantID: "t1", RoleType: authz.RoleEmployee, IsActive: true},
		{ID: "a-2", PersonID: "p-2", TenantID: "t2", RoleType: authz.RoleAdmin, IsActive: true},
	}})
	assertion := mintAssertion(t, "p-1", "t1")

	resp := doJSON(t, srv, http.MethodGet, "/api/v1/roles/p-2", assertion, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Assignments []struct {
			ID       string `json:"id"`
			RoleType string `json:"roleType"`
		} `json:"assignments"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Assignments, 1, "other tenant's assignment must not appear")
	assert.Equal(t, "a-1", body.Assignments[0].ID)
}

func decodeMap(resp *http.Response) (map[string]any, error) {
	var m map[string]any
	err := json.NewDecoder(resp.Body).Decode(&m)
	return m, err
}

func strPtr(s string) *string { return &s }
