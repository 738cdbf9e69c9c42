// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package webhook implements a destination posting every record as a JSON document to an HTTP
// endpoint. Requests are authenticated with a static bearer token or with a token obtained
// through the OAuth2 client credentials flow.
package webhook
