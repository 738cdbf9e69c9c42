// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package blob downloads supplier files dropped in an Azure Storage container.
package blob
