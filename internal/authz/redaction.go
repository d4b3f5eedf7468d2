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

// Field redaction is a pure, side-effect-free transform with no I/O.
// Sensitive fields are dropped entirely, never masked; masking is a display
// concern outside this core.

// VisibleFields computes the field names a grant exposes for a resource.
// With allowedFields nil the result is every non-sensitive catalog field;
// otherwise it is the intersection of allowedFields with the catalog, with
// the identifier always retained. Output order follows the field catalog.
func VisibleFields(resource string, allowedFields []string) ([]string, error) {
	if !KnownResource(resource) {
		return nil, ErrUnknownResource
	}
	if allowedFields == nil {
		return nonSensitiveFields(resource), nil
	}

	allowed := map[string]bool{IdentifierField: true}
	for _, f := range allowedFields {
		allowed[f] = true
	}

	order := catalogFieldOrder(resource)
	var visible []string
	for name := range allowed {
		if _, ok := order[name]; ok {
			visible = append(visible, name)
		}
	}
	sort.Slice(visible, func(i, j int) bool {
		return order[visible[i]] < order[visible[j]]
	})
	return visible, nil
}

// FilterRecord returns the subset of record safe to return under the given
// allowed-field list (nil meaning all non-sensitive fields). The identifier
// field is always retained when present. Idempotent: filtering a filtered
// record is a no-op.
func FilterRecord(resource string, record map[string]any, allowedFields []string) (map[string]any, error) {
	visible, err := VisibleFields(resource, allowedFields)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(visible))
	for _, name := range visible {
		if v, ok := record[name]; ok {
			out[name] = v
		}
	}
	return out, nil
}

// FilterRecords applies FilterRecord per record of a list.
func FilterRecords(resource string, records []map[string]any, allowedFields []string) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(records))
	for _, r := range records {
		filtered, err := FilterRecord(resource, r, allowedFields)
		if err != nil {
			return nil, err
		}
		out = append(out, filtered)
	}
	return out, nil
}
