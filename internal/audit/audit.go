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

package audit

import (
	"context"
	"log/slog"
	"time"
)

// Event types
const (
	TypeAccessGranted      = "access_granted"
	TypeAccessDenied       = "access_denied"
	TypeRoleAssigned       = "role_assigned"
	TypeRoleRemoved        = "role_removed"
	TypePermissionsUpdated = "permissions_updated"
	TypeRolesExpired       = "roles_expired"
)

// Outcomes
const (
	OutcomeAllowed = "allowed"
	OutcomeDenied  = "denied"
)

// Event represents an authorization decision or role mutation to record.
type Event struct {
	Type      string
	TenantID  string
	ActorID   string
	TargetID  string
	Resource  string
	Outcome   string
	Reason    string
	Detail    map[string]any
	Timestamp time.Time
}

// Emitter receives audit events. Emission is fire-and-forget from the
// engine's perspective: an emitter must never block or fail the decision.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

// SlogEmitter implements Emitter on the process logger
type SlogEmitter struct{}

// NewSlogEmitter creates a new audit emitter
func NewSlogEmitter() *SlogEmitter {
	return &SlogEmitter{}
}

// Emit records an audit event
func (e *SlogEmitter) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	attrs := []any{
		slog.String("audit_type", event.Type),
		slog.String("tenant_id", event.TenantID),
		slog.String("actor_id", event.ActorID),
		slog.Time("timestamp", event.Timestamp),
	}
	if event.TargetID != "" {
		attrs = append(attrs, slog.String("target_id", event.TargetID))
	}
	if event.Resource != "" {
		attrs = append(attrs, slog.String("resource", event.Resource))
	}
	if event.Outcome != "" {
		attrs = append(attrs, slog.String("outcome", event.Outcome))
	}
	if event.Reason != "" {
		attrs = append(attrs, slog.String("reason", event.Reason))
	}

	if len(event.Detail) > 0 {
		group := []any{}
		for k, v := range event.Detail {
			if isSecret(k) {
				v = "[REDACTED]"
			}
			group = append(group, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("detail", group...))
	}

	slog.InfoContext(ctx, "AUDIT_EVENT", append(attrs, slog.String("component", "audit"))...)
}

// isSecret checks if a key likely contains a secret
func isSecret(key string) bool {
	secrets := []string{"password", "secret", "token", "key", "authorization"}
	for _, s := range secrets {
		if key == s {
			return true
		}
	}
	return false
}

// NopEmitter discards all events. Useful in tests.
type NopEmitter struct{}

func (NopEmitter) Emit(ctx context.Context, event Event) {}
