// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package eventhubs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azeventhubs/v2"

	"github.com/mia-platform/feedagg/internal/destination"
	"github.com/mia-platform/feedagg/internal/logger"
)

const (
	loggerName  = "feedagg:destination:eventhubs"
	contentType = "application/json"
)

var (
	// ErrEventHubsDestination wraps errors emitted while sending records.
	ErrEventHubsDestination = errors.New("event hubs destination")
)

// producer sends single events to the hub.
type producer interface {
	Send(ctx context.Context, event *azeventhubs.EventData, partitionKey string) error
	Close(ctx context.Context) error
}

type clientProducer struct {
	client *azeventhubs.ProducerClient
}

// Send wraps event in a batch of its own, so it returns only once the hub accepted it.
func (p *clientProducer) Send(ctx context.Context, event *azeventhubs.EventData, partitionKey string) error {
	batch, err := p.client.NewEventDataBatch(ctx, &azeventhubs.EventDataBatchOptions{PartitionKey: &partitionKey})
	if err != nil {
		return err
	}
	if err := batch.AddEventData(event, nil); err != nil {
		return err
	}
	return p.client.SendEventDataBatch(ctx, batch, nil)
}

func (p *clientProducer) Close(ctx context.Context) error {
	return p.client.Close(ctx)
}

var _ destination.ClosableSender = &Destination{}

// Destination sends records to an Event Hub.
type Destination struct {
	producer producer
}

// NewDestination validates cfg and connects to the Event Hub.
func NewDestination(cfg Config) (*Destination, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	client, err := cfg.newProducerClient()
	if err != nil {
		return nil, handleError(err)
	}

	return &Destination{producer: &clientProducer{client: client}}, nil
}

// SendData implements destination.Sender.
func (d *Destination) SendData(ctx context.Context, data *destination.Data) error {
	body, err := json.Marshal(data)
	if err != nil {
		return handleError(err)
	}

	properties := make(map[string]any)
	for key, value := range data.Attributes() {
		properties[key] = value
	}

	event := &azeventhubs.EventData{
		Body:        body,
		ContentType: toPtr(contentType),
		Properties:  properties,
	}
	if err := d.producer.Send(ctx, event, data.Key); err != nil {
		return handleError(err)
	}

	logger.FromContext(ctx).WithName(loggerName).Trace("record sent", "key", data.Key)
	return nil
}

// Close implements destination.ClosableSender.
func (d *Destination) Close(ctx context.Context) error {
	log := logger.FromContext(ctx).WithName(loggerName)
	log.Debug("closing event hub producer")
	if err := d.producer.Close(ctx); err != nil {
		return handleError(err)
	}

	log.Trace("closed event hub producer")
	return nil
}

func toPtr[T any](value T) *T {
	return &value
}

func handleError(err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%w: %w", ErrEventHubsDestination, err)
}
