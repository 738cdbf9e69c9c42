// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package httpfetch downloads supplier files published on a web server or available on disk.
package httpfetch
