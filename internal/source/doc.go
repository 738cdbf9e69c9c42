// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package source defines the contracts used to implement feedagg data readers.
// A Reader turns a locator into raw rows, and a Registry resolves the reader serving a source
// type identifier, creating supplier specific readers on demand.
package source
