// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package tabular turns CSV and Excel supplier files into record sets.
// The first row is the header, every following row becomes a record keyed by header names.
package tabular
