// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package job

import (
	"encoding/json"
	"fmt"
)

const (
	typeIDKey   = "type_id"
	filenameKey = "filename"
	joinKeyKey  = "key"
	fieldsKey   = "fields"
	rangeKey    = "range"
)

var requiredSubSourceKeys = []string{typeIDKey, filenameKey, joinKeyKey, fieldsKey}

// SubSource is one cooperating source of a multi-source job.
type SubSource struct {
	// Name is the key of the sub-source in the job source object.
	Name   string
	TypeID int
	// Locator identifies the data to read, its meaning depends on TypeID.
	Locator string
	// JoinKey is the field used to align the rows of this sub-source with the merge base.
	JoinKey string
	// Fields lists the fields this sub-source may write into existing merge rows.
	Fields []string
	// Selector is an optional range, empty when the job selector applies.
	Selector string
}

// SelectorOr returns the sub-source selector, or fallback when it has none.
func (s *SubSource) SelectorOr(fallback string) string {
	if s.Selector != "" {
		return s.Selector
	}
	return fallback
}

// newSubSource validates the raw descriptor named name.
func newSubSource(name string, raw json.RawMessage) (*SubSource, error) {
	if kind(raw) != '{' {
		return nil, subSourceError(name, "", "expected an object")
	}

	var values map[string]json.RawMessage
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, subSourceError(name, "", err.Error())
	}

	for _, key := range requiredSubSourceKeys {
		if _, ok := values[key]; !ok {
			return nil, subSourceError(name, key, "required field missing")
		}
	}

	typeID, err := decodeInt(values[typeIDKey], false)
	if err != nil {
		return nil, subSourceError(name, typeIDKey, err.Error())
	}

	locator, err := decodeString(values[filenameKey])
	if err != nil || locator == "" {
		return nil, subSourceError(name, filenameKey, "must be a non-empty string")
	}

	joinKey, err := decodeString(values[joinKeyKey])
	if err != nil || joinKey == "" {
		return nil, subSourceError(name, joinKeyKey, "must be a non-empty string")
	}

	fields, err := decodeFields(name, values[fieldsKey])
	if err != nil {
		return nil, err
	}

	var selector string
	if raw, ok := values[rangeKey]; ok && !isNull(raw) {
		if selector, err = decodeString(raw); err != nil {
			return nil, subSourceError(name, rangeKey, "must be a string or null")
		}
	}

	return &SubSource{
		Name:     name,
		TypeID:   typeID,
		Locator:  locator,
		JoinKey:  joinKey,
		Fields:   fields,
		Selector: selector,
	}, nil
}

func decodeFields(name string, raw json.RawMessage) ([]string, error) {
	var items []json.RawMessage
	if kind(raw) != '[' || json.Unmarshal(raw, &items) != nil || len(items) == 0 {
		return nil, subSourceError(name, fieldsKey, "must be a non-empty array")
	}

	fields := make([]string, 0, len(items))
	for i, item := range items {
		field, err := decodeString(item)
		if err != nil || field == "" {
			return nil, subSourceError(name, fmt.Sprintf("%s[%d]", fieldsKey, i), "must be a non-empty string")
		}
		fields = append(fields, field)
	}

	return fields, nil
}

// newSubSources validates every entry of the source object in declaration order.
// The first invalid entry aborts the whole batch.
func newSubSources(members []member) ([]*SubSource, error) {
	subSources := make([]*SubSource, 0, len(members))
	for _, m := range members {
		subSource, err := newSubSource(m.name, m.value)
		if err != nil {
			return nil, err
		}
		subSources = append(subSources, subSource)
	}

	return subSources, nil
}
