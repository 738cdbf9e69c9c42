// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package destination

import (
	"context"
	"encoding/json"
	"strconv"
)

// Sender delivers normalized records to a destination, one at a time.
// SendData returns only once the destination has acknowledged the record.
type Sender interface {
	SendData(ctx context.Context, data *Data) error
}

// ClosableSender is implemented by senders holding connections that must be released.
type ClosableSender interface {
	Sender
	Close(ctx context.Context) error
}

// Data bundles one normalized record with the metadata of the job that produced it.
type Data struct {
	// RunID identifies the pipeline run that produced the record.
	RunID      string
	SupplierID int
	// Key is the deduplication key of the record.
	Key    string
	Fields map[string]any
}

// MarshalJSON encodes only the record fields as a flat JSON object, the wire format expected
// by the downstream consumers.
func (d Data) MarshalJSON() ([]byte, error) {
	if d.Fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d.Fields)
}

// Attributes returns the metadata of d as string pairs, suitable for message headers.
func (d Data) Attributes() map[string]string {
	attributes := map[string]string{
		"supplier_id": strconv.Itoa(d.SupplierID),
		"key":         d.Key,
	}
	if d.RunID != "" {
		attributes["run_id"] = d.RunID
	}
	return attributes
}
