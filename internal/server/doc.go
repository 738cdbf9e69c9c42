// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package server contains the HTTP server used by the serve command.
// It sets up the server using the Fiber framework, configures the request logging middleware,
// and exposes the status routes next to the routes registered by the caller.
package server
