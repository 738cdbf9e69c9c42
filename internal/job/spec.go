// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package job

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mia-platform/feedagg/internal/mapper"
)

const (
	supplierIDKey     = "supplier_id"
	sourceKey         = "source"
	columnMapRulesKey = "column_map_rules"
	versionKey        = "version"
	nameKey           = "name"
)

var requiredKeys = []string{supplierIDKey, sourceKey, columnMapRulesKey, versionKey}

// Spec is a validated job description.
type Spec struct {
	// Name is an optional label used when logging the job.
	Name       string
	SupplierID int
	// TypeID selects the reader of a single-source job. It is nil when absent or null.
	TypeID *int
	// Locator is the plain source of a single-source job.
	Locator string
	// SubSources are the cooperating sources of a multi-source job in declaration order.
	SubSources []*SubSource
	Columns    *mapper.ColumnMap
	// Selector is the optional job wide range, inherited by sub-sources without their own.
	Selector string
	Version  int

	multiSource bool
}

// IsMultiSource reports whether the job source names several cooperating sub-sources.
func (s *Spec) IsMultiSource() bool {
	return s.multiSource
}

// Parse validates a JSON job description.
//
// The source field decides the job mode once and for all: an object, an array or a string that
// parses as one of them makes a multi-source job, any other string is trimmed and used as the
// single locator. When the job is multi-source every sub-source is validated upfront and the
// first invalid one fails the whole job.
func Parse(payload []byte) (*Spec, error) {
	if kind(payload) != '{' {
		return nil, fieldError("", "payload must be a JSON object")
	}

	var values map[string]json.RawMessage
	if err := json.Unmarshal(payload, &values); err != nil {
		return nil, fieldError("", err.Error())
	}

	missing := make([]string, 0)
	for _, key := range requiredKeys {
		if raw, ok := values[key]; !ok || isNull(raw) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fieldError(strings.Join(missing, ", "), "required field missing")
	}

	spec := new(Spec)
	var err error
	if spec.SupplierID, err = decodeInt(values[supplierIDKey], true); err != nil {
		return nil, fieldError(supplierIDKey, err.Error())
	}

	if spec.Version, err = decodeInt(values[versionKey], true); err != nil {
		return nil, fieldError(versionKey, err.Error())
	}

	if raw, ok := values[typeIDKey]; ok && !isNull(raw) {
		typeID, err := decodeInt(raw, true)
		if err != nil {
			return nil, fieldError(typeIDKey, err.Error())
		}
		spec.TypeID = &typeID
	}

	if raw, ok := values[rangeKey]; ok && !isNull(raw) {
		if spec.Selector, err = decodeString(raw); err != nil {
			return nil, fieldError(rangeKey, "must be a string or null")
		}
	}

	if raw, ok := values[nameKey]; ok && !isNull(raw) {
		if spec.Name, err = decodeString(raw); err != nil {
			return nil, fieldError(nameKey, "must be a string or null")
		}
	}

	if kind(values[columnMapRulesKey]) != '{' {
		return nil, fieldError(columnMapRulesKey, "must be an object")
	}
	var rawColumns map[string]any
	if err := json.Unmarshal(values[columnMapRulesKey], &rawColumns); err != nil {
		return nil, fieldError(columnMapRulesKey, err.Error())
	}
	if spec.Columns, err = mapper.NewColumnMap(rawColumns); err != nil {
		return nil, fmt.Errorf("%s: %w", columnMapRulesKey, err)
	}

	if err := spec.parseSource(values[sourceKey]); err != nil {
		return nil, err
	}

	return spec, nil
}

func (s *Spec) parseSource(raw json.RawMessage) error {
	switch kind(raw) {
	case '{', '[':
		return s.setSubSources(raw)
	case '"':
	default:
		return fieldError(sourceKey, "must be a string or an object")
	}

	locator, err := decodeString(raw)
	if err != nil {
		return fieldError(sourceKey, err.Error())
	}

	trimmed := strings.TrimSpace(locator)
	if trimmed == "" {
		return fieldError(sourceKey, "must not be empty")
	}

	// a string that does not decode as a JSON object or array is a plain locator
	if k := kind(json.RawMessage(trimmed)); (k == '{' || k == '[') && json.Valid([]byte(trimmed)) {
		return s.setSubSources(json.RawMessage(trimmed))
	}

	s.Locator = trimmed
	return nil
}

func (s *Spec) setSubSources(raw json.RawMessage) error {
	members, err := orderedMembers(raw)
	if err != nil {
		return fieldError(sourceKey, err.Error())
	}

	subSources, err := newSubSources(members)
	if err != nil {
		return err
	}

	s.multiSource = true
	s.SubSources = subSources
	return nil
}
