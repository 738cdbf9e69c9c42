// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package s3 downloads supplier files dropped in an S3 compatible bucket.
package s3
