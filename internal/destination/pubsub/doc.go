// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package pubsub implements a destination publishing every record to a Google Cloud Pub/Sub
// topic. The message body is the JSON encoded record and the run metadata travels as message
// attributes.
package pubsub
