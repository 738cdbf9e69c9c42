// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package writer implements a destination that prints every received record to the given
// io.Writer instance.
// It is primarily useful for debugging purposes, or for tweaking and adjusting column mappings
// before sending the records to a real destination.
package writer
