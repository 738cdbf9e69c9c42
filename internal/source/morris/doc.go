// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package morris reads the stock feed that Morris publishes as XML on its SFTP server.
package morris
