// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package logger wraps hclog behind the Logger interface used across feedagg.
// Loggers travel through context helpers; the fiber middleware adds a per request logger and
// writes the request completed line, enriched with the fields handlers attach to the request.
package logger
