// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package record

import (
	"encoding/json"
	"fmt"
	"iter"
	"maps"
	"strconv"
)

// SkipReason explains why a record was left out of a MergeSet operation.
type SkipReason string

const (
	// SkipMissingKey marks records without a usable value in the key field.
	SkipMissingKey SkipReason = "missing-key"
	// SkipUnknownKey marks enrichment records whose key is not present in the set.
	SkipUnknownKey SkipReason = "unknown-key"
)

// Skip describes a record dropped during Insert or Enrich.
type Skip struct {
	Reason   SkipReason
	KeyField string
	Key      string
	Fields   map[string]any
}

// MergeSet is a collection of records indexed by the value of a key field.
// Iteration follows the order in which each key was first inserted.
type MergeSet struct {
	keyField string
	rules    Rules

	keys    []string
	records map[string]*Record
	skipped []Skip
}

// NewMergeSet returns an empty MergeSet indexed on keyField, merging colliding records with rules.
func NewMergeSet(keyField string, rules Rules) *MergeSet {
	return &MergeSet{
		keyField: keyField,
		rules:    maps.Clone(rules),
		records:  make(map[string]*Record),
	}
}

// NewMergeSetFromRecords builds a MergeSet with no rules by inserting every record of set in order.
// Later records sharing a key replace earlier ones.
func NewMergeSetFromRecords(set *Set, keyField string) *MergeSet {
	merged := NewMergeSet(keyField, nil)
	for _, r := range set.All() {
		merged.Insert(r)
	}
	return merged
}

// KeyField returns the name of the field used as unique key.
func (m *MergeSet) KeyField() string {
	return m.keyField
}

// Rules returns a copy of the merge rules.
func (m *MergeSet) Rules() Rules {
	return maps.Clone(m.rules)
}

// Len returns the number of distinct keys.
func (m *MergeSet) Len() int {
	return len(m.keys)
}

// Insert stores a copy of r under the value of its key field, applying the merge rules against
// the record already stored under the same key. It returns false and records a Skip when r has
// no usable key.
func (m *MergeSet) Insert(r *Record) bool {
	key, ok := KeyOf(r, m.keyField)
	if !ok {
		m.skip(SkipMissingKey, "", r)
		return false
	}

	incoming := r.Clone()
	if len(m.rules) > 0 {
		old, hasOld := m.records[key]
		for field, rule := range m.rules {
			value, present := incoming.Lookup(field)
			if !present {
				continue
			}

			var oldValue any
			if hasOld {
				oldValue = old.Get(field)
			}
			incoming.Set(field, rule.resolve(oldValue, hasOld, value))
		}
	}

	if _, exists := m.records[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.records[key] = incoming
	return true
}

// Lookup returns the record stored under key.
func (m *MergeSet) Lookup(key string) (*Record, bool) {
	r, ok := m.records[key]
	return r, ok
}

// Enrich copies the allowed fields of every record of set into the stored record sharing the
// same key, read from keyField of the incoming records. Records whose key is missing or unknown
// are skipped, and no new key is ever added. It returns the number of records that were applied.
func (m *MergeSet) Enrich(set *Set, keyField string, allowed []string) int {
	applied := 0
	for _, r := range set.All() {
		key, ok := KeyOf(r, keyField)
		if !ok {
			m.skipWithKey(SkipMissingKey, keyField, "", r)
			continue
		}

		target, ok := m.records[key]
		if !ok {
			m.skipWithKey(SkipUnknownKey, keyField, key, r)
			continue
		}

		for _, field := range allowed {
			if value, present := r.Lookup(field); present {
				target.Set(field, value)
			}
		}
		applied++
	}

	return applied
}

// All iterates the stored records by key in first-insertion order.
func (m *MergeSet) All() iter.Seq2[string, *Record] {
	return func(yield func(string, *Record) bool) {
		for _, key := range m.keys {
			if !yield(key, m.records[key]) {
				return
			}
		}
	}
}

// Records flattens the set into an ordered Set.
func (m *MergeSet) Records() *Set {
	set := &Set{records: make([]*Record, 0, len(m.keys))}
	for _, r := range m.All() {
		set.Add(r)
	}
	return set
}

// Skipped returns every record dropped so far, in the order they were met.
func (m *MergeSet) Skipped() []Skip {
	return append([]Skip(nil), m.skipped...)
}

func (m *MergeSet) skip(reason SkipReason, key string, r *Record) {
	m.skipWithKey(reason, m.keyField, key, r)
}

func (m *MergeSet) skipWithKey(reason SkipReason, keyField, key string, r *Record) {
	m.skipped = append(m.skipped, Skip{
		Reason:   reason,
		KeyField: keyField,
		Key:      key,
		Fields:   r.Fields(),
	})
}

// KeyOf returns the string form of field in r, used to index records.
// Absent, null, empty and non scalar values are not usable as keys.
func KeyOf(r *Record, field string) (string, bool) {
	value, ok := r.Lookup(field)
	if !ok {
		return "", false
	}

	var key string
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		key = v
	case json.Number:
		key = v.String()
	case float64:
		key = strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		key = strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, bool:
		key = fmt.Sprint(v)
	default:
		return "", false
	}

	return key, key != ""
}
