// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package rest reads the items of a supplier JSON API.
// Pages are requested with configurable page and size parameters until the API stops
// advertising a next page, and every request carries a bearer token obtained from the supplier
// login endpoint and cached on disk between runs.
package rest
