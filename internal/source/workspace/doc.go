// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package workspace holds the client setup shared by the Google Sheets and Google Drive readers:
// credentials discovery, request throttling and retries of transient API failures.
package workspace
