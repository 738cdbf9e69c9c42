// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package destination defines the primitives used to implement feedagg outbound destinations.
// Every destination receives the normalized records of a job one by one and acknowledges each
// delivery synchronously.
package destination
