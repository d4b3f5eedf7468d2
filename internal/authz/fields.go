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

// FieldSpec marks a single resource field as sensitive or not. Sensitive
// fields are dropped from outbound records unless an advanced permission
// names them explicitly in its allowed-field list.
type FieldSpec struct {
	Name      string
	Sensitive bool
}

// IdentifierField is always retained by redaction so callers can reference
// the record they received.
const IdentifierField = "id"

// resourceFields is the static field catalog for the business entities the
// surrounding system exposes. The entities themselves live outside this core;
// only their names and sensitivity flags matter here.
var resourceFields = map[string][]FieldSpec{
	"companies": {
		{Name: "id"},
		{Name: "ragioneSociale"},
		{Name: "citta"},
		{Name: "provincia"},
		{Name: "telefono"},
		{Name: "mail"},
		{Name: "partitaIva", Sensitive: true},
		{Name: "codiceFiscale", Sensitive: true},
		{Name: "iban", Sensitive: true},
	},
	"persons": {
		{Name: "id"},
		{Name: "firstName"},
		{Name: "lastName"},
		{Name: "email"},
		{Name: "phone"},
		{Name: "companyId"},
		{Name: "departmentId"},
		{Name: "taxCode", Sensitive: true},
		{Name: "birthDate", Sensitive: true},
		{Name: "residenceAddress", Sensitive: true},
		{Name: "medicalNotes", Sensitive: true},
	},
	"courses": {
		{Name: "id"},
		{Name: "title"},
		{Name: "description"},
		{Name: "durationHours"},
		{Name: "certification"},
		{Name: "pricePerPerson", Sensitive: true},
	},
	"documents": {
		{Name: "id"},
		{Name: "title"},
		{Name: "mimeType"},
		{Name: "uploadedBy"},
		{Name: "storagePath", Sensitive: true},
		{Name: "checksum", Sensitive: true},
	},
	"sites": {
		{Name: "id"},
		{Name: "name"},
		{Name: "address"},
		{Name: "companyId"},
		{Name: "riskAssessment", Sensitive: true},
	},
}

// KnownResource reports whether the field catalog covers a resource.
func KnownResource(resource string) bool {
	_, ok := resourceFields[resource]
	return ok
}

// ResourceFields returns the field specs for a resource.
func ResourceFields(resource string) ([]FieldSpec, error) {
	specs, ok := resourceFields[resource]
	if !ok {
		return nil, ErrUnknownResource
	}
	out := make([]FieldSpec, len(specs))
	copy(out, specs)
	return out, nil
}

// nonSensitiveFields returns the names of a resource's non-sensitive fields
// in catalog order.
func nonSensitiveFields(resource string) []string {
	specs := resourceFields[resource]
	var names []string
	for _, f := range specs {
		if !f.Sensitive {
			names = append(names, f.Name)
		}
	}
	return names
}

// catalogFieldOrder returns the index of each catalog field for a resource,
// used to keep computed field lists in a stable order.
func catalogFieldOrder(resource string) map[string]int {
	order := make(map[string]int)
	for i, f := range resourceFields[resource] {
		order[f.Name] = i
	}
	return order
}
