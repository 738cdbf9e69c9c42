// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package record holds the in-memory data model shared by readers, the mapper and the pipeline.
// A Record is a flat set of named values, a Set is an ordered list of records and a MergeSet is
// a keyed collection that resolves conflicts between records sharing the same key through
// per-field merge rules.
package record
