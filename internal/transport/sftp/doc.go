// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package sftp downloads the newest supplier file from an SFTP drop folder, optionally through
// a SOCKS5 proxy, and archives the older files matching the same prefix.
package sftp
