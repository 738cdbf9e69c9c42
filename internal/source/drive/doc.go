// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package drive reads the supplier file dropped in a Google Drive folder.
package drive
