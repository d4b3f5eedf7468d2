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
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/elementmedica/authcore/internal/authz"
	"github.com/elementmedica/authcore/internal/observability/logger"
)

// Handler exposes the authorization engine as a JSON RPC surface for the
// surrounding services. Structured deny reasons stay in audit and logs;
// responses carry only a generic message so the permission model's shape is
// not revealed outward.
type Handler struct {
	engine *authz.Engine
}

// NewHandler creates a new HTTP handler
func NewHandler(engine *authz.Engine) *Handler {
	return &Handler{engine: engine}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter, gatewaySecret []byte) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "authcore")
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(PrincipalMiddleware(gatewaySecret))

		r.Post("/authz/check", h.Check)
		r.Post("/authz/check-advanced", h.CheckAdvanced)

		r.Route("/roles", func(r chi.Router) {
			r.Get("/{personID}", h.ListAssignments)
			r.Post("/", h.AssignRole)
			r.Delete("/", h.RemoveRole)
			r.Put("/permissions", h.UpdatePermissions)
			r.Post("/cleanup", h.Cleanup)
		})
	})

	return r
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type targetPayload struct {
	TenantID     string `json:"tenantId"`
	CompanyID    string `json:"companyId"`
	DepartmentID string `json:"departmentId"`
	OwnerID      string `json:"ownerId"`
	SiteID       string `json:"siteId"`
	Status       string `json:"status"`
}

func (t *targetPayload) toOwnership() *authz.TargetOwnership {
	if t == nil {
		return nil
	}
	return &authz.TargetOwnership{
		TenantID:     t.TenantID,
		CompanyID:    t.CompanyID,
		DepartmentID: t.DepartmentID,
		OwnerID:      t.OwnerID,
		SiteID:       t.SiteID,
		Status:       t.Status,
	}
}

type decisionResponse struct {
	Allowed       bool             `json:"allowed"`
	MatchedScope  string           `json:"matchedScope,omitempty"`
	VisibleFields []string         `json:"visibleFields,omitempty"`
	Record        map[string]any   `json:"record,omitempty"`
	Records       []map[string]any `json:"records,omitempty"`
	Message       string           `json:"message,omitempty"`
}

const deniedMessage = "access denied"

// Check resolves a basic named permission for the asserted principal.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Permission   string `json:"permission"`
		CompanyID    string `json:"companyId"`
		DepartmentID string `json:"departmentId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	decision, err := h.engine.CheckPermission(r.Context(), authz.AuthorizationRequest{
		PersonID:     GetPersonID(r.Context()),
		TenantID:     GetTenantID(r.Context()),
		Permission:   req.Permission,
		CompanyID:    req.CompanyID,
		DepartmentID: req.DepartmentID,
	})
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}

	respondDecision(w, decision, nil, nil)
}

// CheckAdvanced resolves a (resource, action) request, optionally redacting
// a caller-supplied record or record list down to the visible fields.
func (h *Handler) CheckAdvanced(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Resource     string           `json:"resource"`
		Action       string           `json:"action"`
		CompanyID    string           `json:"companyId"`
		DepartmentID string           `json:"departmentId"`
		Target       *targetPayload   `json:"target"`
		Record       map[string]any   `json:"record"`
		Records      []map[string]any `json:"records"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	decision, err := h.engine.CheckAdvancedPermission(r.Context(), authz.AuthorizationRequest{
		PersonID:     GetPersonID(r.Context()),
		TenantID:     GetTenantID(r.Context()),
		Resource:     req.Resource,
		Action:       req.Action,
		CompanyID:    req.CompanyID,
		DepartmentID: req.DepartmentID,
		Target:       req.Target.toOwnership(),
	})
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}

	var record map[string]any
	var records []map[string]any
	if decision.Allowed {
		if req.Record != nil {
			record = redactByVisible(req.Record, decision.VisibleFields)
		}
		for _, rec := range req.Records {
			records = append(records, redactByVisible(rec, decision.VisibleFields))
		}
	}
	respondDecision(w, decision, record, records)
}

// redactByVisible keeps only the decision's visible fields of a record.
func redactByVisible(record map[string]any, visible []string) map[string]any {
	out := make(map[string]any, len(visible))
	for _, name := range visible {
		if v, ok := record[name]; ok {
			out[name] = v
		}
	}
	return out
}

type grantPayload struct {
	Permission string `json:"permission"`
	IsGranted  bool   `json:"isGranted"`
}

type advancedPayload struct {
	Resource      string            `json:"resource"`
	Action        string            `json:"action"`
	Scope         string            `json:"scope"`
	SiteAccess    []string          `json:"siteAccess"`
	AllowedFields []string          `json:"allowedFields"`
	Conditions    map[string]string `json:"conditions"`
}

// AssignRole creates a role assignment for a target person.
func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TargetPersonID string            `json:"targetPersonId"`
		RoleType       string            `json:"roleType"`
		CompanyID      *string           `json:"companyId"`
		DepartmentID   *string           `json:"departmentId"`
		IsPrimary      bool              `json:"isPrimary"`
		ExpiresAt      *time.Time        `json:"expiresAt"`
		Grants         []grantPayload    `json:"grants"`
		Advanced       []advancedPayload `json:"advanced"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in := authz.AssignRoleInput{
		AssignerID:     GetPersonID(r.Context()),
		TargetPersonID: req.TargetPersonID,
		TenantID:       GetTenantID(r.Context()),
		RoleType:       authz.RoleType(req.RoleType),
		CompanyID:      req.CompanyID,
		DepartmentID:   req.DepartmentID,
		IsPrimary:      req.IsPrimary,
		ExpiresAt:      req.ExpiresAt,
	}
	for _, g := range req.Grants {
		in.Grants = append(in.Grants, &authz.PermissionGrant{
			Permission: g.Permission,
			IsGranted:  g.IsGranted,
		})
	}
	for _, ap := range req.Advanced {
		in.Advanced = append(in.Advanced, &authz.AdvancedPermission{
			Resource:      ap.Resource,
			Action:        ap.Action,
			Scope:         authz.Scope(ap.Scope),
			SiteAccess:    ap.SiteAccess,
			AllowedFields: ap.AllowedFields,
			Conditions:    ap.Conditions,
		})
	}

	decision, assignment, err := h.engine.AssignRole(r.Context(), in)
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	if !decision.Allowed {
		respondError(w, http.StatusForbidden, deniedMessage)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"id":        assignment.ID,
		"personId":  assignment.PersonID,
		"roleType":  string(assignment.RoleType),
		"expiresAt": assignment.ExpiresAt,
	})
}

// RemoveRole deactivates a role assignment.
func (h *Handler) RemoveRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TargetPersonID string  `json:"targetPersonId"`
		RoleType       string  `json:"roleType"`
		CompanyID      *string `json:"companyId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	decision, err := h.engine.RemoveRole(r.Context(), authz.RemoveRoleInput{
		AssignerID:     GetPersonID(r.Context()),
		TargetPersonID: req.TargetPersonID,
		TenantID:       GetTenantID(r.Context()),
		RoleType:       authz.RoleType(req.RoleType),
		CompanyID:      req.CompanyID,
	})
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	if !decision.Allowed {
		respondError(w, http.StatusForbidden, deniedMessage)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// UpdatePermissions replaces the basic overlay of an assignment.
func (h *Handler) UpdatePermissions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TargetPersonID string         `json:"targetPersonId"`
		RoleType       string         `json:"roleType"`
		CompanyID      *string        `json:"companyId"`
		Permissions    []grantPayload `json:"permissions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in := authz.UpdatePermissionsInput{
		AssignerID:     GetPersonID(r.Context()),
		TargetPersonID: req.TargetPersonID,
		TenantID:       GetTenantID(r.Context()),
		RoleType:       authz.RoleType(req.RoleType),
		CompanyID:      req.CompanyID,
	}
	for _, g := range req.Permissions {
		in.Permissions = append(in.Permissions, &authz.PermissionGrant{
			Permission: g.Permission,
			IsGranted:  g.IsGranted,
		})
	}

	decision, err := h.engine.UpdatePermissions(r.Context(), in)
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	if !decision.Allowed {
		respondError(w, http.StatusForbidden, deniedMessage)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// ListAssignments returns a person's active assignments for admin views.
func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	personID := chi.URLParam(r, "personID")

	assignments, err := h.engine.ListAssignments(r.Context(), GetTenantID(r.Context()), personID)
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}

	type assignmentView struct {
		ID           string     `json:"id"`
		RoleType     string     `json:"roleType"`
		CompanyID    *string    `json:"companyId,omitempty"`
		DepartmentID *string    `json:"departmentId,omitempty"`
		IsPrimary    bool       `json:"isPrimary"`
		AssignedAt   time.Time  `json:"assignedAt"`
		ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
	}
	views := make([]assignmentView, 0, len(assignments))
	for _, a := range assignments {
		views = append(views, assignmentView{
			ID:           a.ID,
			RoleType:     string(a.RoleType),
			CompanyID:    a.CompanyID,
			DepartmentID: a.DepartmentID,
			IsPrimary:    a.IsPrimary,
			AssignedAt:   a.AssignedAt,
			ExpiresAt:    a.ExpiresAt,
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{"assignments": views})
}

// Cleanup triggers the expired-assignment sweep for the asserted tenant.
func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	count, err := h.engine.CleanupExpiredRoles(r.Context(), GetTenantID(r.Context()))
	if err != nil {
		h.respondEngineError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"deactivated": count})
}

func respondDecision(w http.ResponseWriter, decision authz.AuthorizationDecision, record map[string]any, records []map[string]any) {
	resp := decisionResponse{Allowed: decision.Allowed}
	if decision.Allowed {
		resp.MatchedScope = string(decision.MatchedScope)
		resp.VisibleFields = decision.VisibleFields
		resp.Record = record
		resp.Records = records
	} else {
		resp.Message = deniedMessage
	}
	respondJSON(w, http.StatusOK, resp)
}

// respondEngineError maps engine failures outward. Store unavailability is
// "cannot determine": the caller must treat it as a denial (fail closed).
func (h *Handler) respondEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, authz.ErrDependencyUnavailable):
		slog.ErrorContext(r.Context(), "authorization dependency unavailable", logger.Error(err))
		respondError(w, http.StatusServiceUnavailable, "authorization temporarily unavailable")
	case errors.Is(err, authz.ErrAssignmentNotFound):
		respondError(w, http.StatusNotFound, "assignment not found")
	case errors.Is(err, authz.ErrUnknownRoleType),
		errors.Is(err, authz.ErrUnknownPermission),
		errors.Is(err, authz.ErrUnknownResource),
		errors.Is(err, authz.ErrUnknownCondition),
		errors.Is(err, authz.ErrInvalidScope),
		errors.Is(err, authz.ErrInvalidHierarchyLevel):
		slog.WarnContext(r.Context(), "rejected malformed authorization request", logger.Error(err))
		respondError(w, http.StatusBadRequest, "invalid request")
	default:
		slog.ErrorContext(r.Context(), "authorization check failed", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
