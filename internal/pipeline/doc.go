// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package pipeline runs one aggregation job end to end.
// A pipeline parses the job description, reads the single source or every sub-source through
// the registered readers, folds sub-sources into a keyed merge set in declaration order, maps
// the rows to normalized records and hands them to a destination one at a time.
package pipeline
