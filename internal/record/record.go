// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package record

import (
	"iter"
	"maps"
	"slices"
)

// Record is a flat mapping of field names to values.
// A field set to nil is present with a null value and is different from an absent field.
type Record struct {
	fields map[string]any
}

// New returns a Record holding a copy of fields.
func New(fields map[string]any) *Record {
	r := &Record{fields: make(map[string]any, len(fields))}
	maps.Copy(r.fields, fields)
	return r
}

// Get returns the value of name, or nil when the field is absent.
func (r *Record) Get(name string) any {
	return r.fields[name]
}

// Lookup returns the value of name and whether the field is present.
func (r *Record) Lookup(name string) (any, bool) {
	value, ok := r.fields[name]
	return value, ok
}

// Has reports whether name is present, even with a null value.
func (r *Record) Has(name string) bool {
	_, ok := r.fields[name]
	return ok
}

// Set stores value under name.
func (r *Record) Set(name string, value any) {
	if r.fields == nil {
		r.fields = make(map[string]any)
	}
	r.fields[name] = value
}

// Len returns the number of fields.
func (r *Record) Len() int {
	return len(r.fields)
}

// Names returns the field names in lexical order.
func (r *Record) Names() []string {
	return slices.Sorted(maps.Keys(r.fields))
}

// Fields returns a shallow copy of the record content.
func (r *Record) Fields() map[string]any {
	return maps.Clone(r.fields)
}

// Clone returns an independent copy of the record.
func (r *Record) Clone() *Record {
	return New(r.fields)
}

// Set is an ordered, duplicate-tolerant list of records.
type Set struct {
	records []*Record
}

// NewSet returns a Set containing records in the given order.
func NewSet(records ...*Record) *Set {
	return &Set{records: slices.Clone(records)}
}

// NewSetFromMaps builds a Set with one record per element of rows.
func NewSetFromMaps(rows []map[string]any) *Set {
	set := &Set{records: make([]*Record, 0, len(rows))}
	for _, row := range rows {
		set.Add(New(row))
	}
	return set
}

// Add appends r at the end of the set.
func (s *Set) Add(r *Record) {
	s.records = append(s.records, r)
}

// Len returns the number of records.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// At returns the record at position i.
func (s *Set) At(i int) *Record {
	return s.records[i]
}

// All iterates records in insertion order together with their position.
func (s *Set) All() iter.Seq2[int, *Record] {
	return func(yield func(int, *Record) bool) {
		if s == nil {
			return
		}
		for i, r := range s.records {
			if !yield(i, r) {
				return
			}
		}
	}
}

// Records returns a copy of the underlying slice.
func (s *Set) Records() []*Record {
	if s == nil {
		return nil
	}
	return slices.Clone(s.records)
}
