// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package transport defines how raw supplier files are fetched before being parsed.
// Each sub-package implements Fetcher for one storage or protocol.
package transport
