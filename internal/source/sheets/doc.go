// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package sheets reads supplier feeds published as Google spreadsheets.
package sheets
