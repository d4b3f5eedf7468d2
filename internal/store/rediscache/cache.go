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

package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/elementmedica/authcore/internal/authz"
)

// Store decorates an authz.RoleStore with a short-TTL assignment cache.
//
// Only FindActiveAssignments is cached; grant and advanced-permission reads
// pass through, so overlay updates need no invalidation. Assignment-set
// mutations invalidate the affected person's entry explicitly. The expiry
// sweep invalidates nothing: the engine re-checks expiry on every decision,
// so a cached expired assignment can never satisfy a check. The TTL must
// stay in the seconds range; it is the staleness horizon for a concurrently
// revoked role.
type Store struct {
	inner  authz.RoleStore
	client *redis.Client
	ttl    time.Duration
}

// New creates the caching decorator.
func New(inner authz.RoleStore, client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 || ttl > time.Minute {
		ttl = 10 * time.Second
	}
	return &Store{inner: inner, client: client, ttl: ttl}
}

func personKey(tenantID, personID string) string {
	return fmt.Sprintf("authz:assignments:%s:%s", tenantID, personID)
}

func indexKey(tenantID, assignmentID string) string {
	return fmt.Sprintf("authz:assignment_person:%s:%s", tenantID, assignmentID)
}

// FindActiveAssignments serves from cache when possible. Cache failures fall
// back to the inner store; the cache is an optimization, never a dependency.
func (s *Store) FindActiveAssignments(ctx context.Context, tenantID, personID string) ([]*authz.RoleAssignment, error) {
	key := personKey(tenantID, personID)

	payload, err := s.client.Get(ctx, key).Bytes()
	if err == nil {
		var assignments []*authz.RoleAssignment
		if err := json.Unmarshal(payload, &assignments); err == nil {
			return assignments, nil
		}
		// Corrupt entry: drop it and fall through to the store.
		s.client.Del(ctx, key)
	} else if err != redis.Nil {
		slog.WarnContext(ctx, "assignment cache read failed", "error", err.Error())
	}

	assignments, err := s.inner.FindActiveAssignments(ctx, tenantID, personID)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(assignments); err == nil {
		pipe := s.client.Pipeline()
		pipe.Set(ctx, key, payload, s.ttl)
		for _, a := range assignments {
			pipe.Set(ctx, indexKey(tenantID, a.ID), personID, s.ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			slog.WarnContext(ctx, "assignment cache write failed", "error", err.Error())
		}
	}
	return assignments, nil
}

func (s *Store) FindPermissionGrants(ctx context.Context, tenantID string, assignmentIDs []string) ([]*authz.PermissionGrant, error) {
	return s.inner.FindPermissionGrants(ctx, tenantID, assignmentIDs)
}

func (s *Store) FindAdvancedPermissions(ctx context.Context, tenantID string, assignmentIDs []string) ([]*authz.AdvancedPermission, error) {
	return s.inner.FindAdvancedPermissions(ctx, tenantID, assignmentIDs)
}

// CreateAssignment writes through and invalidates the person's cached set.
func (s *Store) CreateAssignment(ctx context.Context, a *authz.RoleAssignment, grants []*authz.PermissionGrant, advanced []*authz.AdvancedPermission) error {
	if err := s.inner.CreateAssignment(ctx, a, grants, advanced); err != nil {
		return err
	}
	s.invalidatePerson(ctx, a.TenantID, a.PersonID)
	return nil
}

// DeactivateAssignment writes through, then resolves the owning person via
// the index entry written at cache-fill time.
func (s *Store) DeactivateAssignment(ctx context.Context, tenantID, assignmentID string) error {
	if err := s.inner.DeactivateAssignment(ctx, tenantID, assignmentID); err != nil {
		return err
	}
	idx := indexKey(tenantID, assignmentID)
	if personID, err := s.client.Get(ctx, idx).Result(); err == nil {
		s.invalidatePerson(ctx, tenantID, personID)
	}
	s.client.Del(ctx, idx)
	return nil
}

func (s *Store) ReplacePermissionOverlay(ctx context.Context, tenantID, assignmentID string, grants []*authz.PermissionGrant) error {
	return s.inner.ReplacePermissionOverlay(ctx, tenantID, assignmentID, grants)
}

func (s *Store) SweepExpired(ctx context.Context, tenantID string, batchSize int) (int64, error) {
	return s.inner.SweepExpired(ctx, tenantID, batchSize)
}

func (s *Store) invalidatePerson(ctx context.Context, tenantID, personID string) {
	if err := s.client.Del(ctx, personKey(tenantID, personID)).Err(); err != nil {
		slog.WarnContext(ctx, "assignment cache invalidation failed", "error", err.Error())
	}
}
