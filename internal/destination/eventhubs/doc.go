// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package eventhubs implements a destination sending every record to an Azure Event Hub.
// Records are partitioned by their deduplication key so that updates of the same product keep
// their relative order.
package eventhubs
