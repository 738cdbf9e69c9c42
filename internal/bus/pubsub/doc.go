// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package pubsub receives job descriptions from a Google Cloud Pub/Sub subscription.
// Each invocation takes at most one message, acknowledges it on receipt and hands its payload to
// the caller, so a job is never delivered twice even when running it fails.
package pubsub
