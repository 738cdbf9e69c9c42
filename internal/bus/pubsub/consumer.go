// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mia-platform/feedagg/internal/logger"
)

const (
	loggerName = "feedagg:bus:pubsub"
)

var (
	// ErrBus wraps errors emitted while talking to Pub/Sub.
	ErrBus = errors.New("job bus")
)

// Message is a job description received from the subscription.
type Message struct {
	ID          string
	Data        []byte
	PublishTime time.Time
}

// Handler processes the payload of a received message.
type Handler func(ctx context.Context, message *Message) error

// Consumer takes job descriptions from the configured subscription one at a time.
type Consumer struct {
	config Config
	client *pubsub.Client
}

// NewConsumer validates cfg and connects to Pub/Sub. Options are forwarded to the client, mostly
// to reach an emulator.
func NewConsumer(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Consumer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, handleError(err)
	}

	return &Consumer{config: cfg, client: client}, nil
}

// Receive waits up to the configured timeout for one message and acknowledges it. It returns
// nil without error when no message arrived in time.
func (c *Consumer) Receive(ctx context.Context) (*Message, error) {
	log := logger.FromContext(ctx).WithName(loggerName)

	subscriber := c.client.Subscriber(c.config.SubscriptionID)
	subscriber.ReceiveSettings.MaxOutstandingMessages = 1
	subscriber.ReceiveSettings.NumGoroutines = 1

	waitCtx, cancel := context.WithTimeout(ctx, c.config.WaitTimeout)
	defer cancel()

	log.Debug("waiting for job", "subscriptionId", c.config.SubscriptionID, "timeout", c.config.WaitTimeout.String())

	var (
		lock     sync.Mutex
		received *Message
	)
	err := subscriber.Receive(waitCtx, func(_ context.Context, msg *pubsub.Message) {
		lock.Lock()
		defer lock.Unlock()
		if received != nil {
			msg.Nack()
			return
		}

		received = &Message{ID: msg.ID, Data: msg.Data, PublishTime: msg.PublishTime}
		msg.Ack()
		cancel()
	})
	if err := handleError(err); err != nil {
		return nil, err
	}

	if received == nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return received, nil
}

// Consume receives one message and runs handler on it. Payloads that are not valid JSON are
// logged and dropped. The returned boolean reports whether a message was received.
func (c *Consumer) Consume(ctx context.Context, handler Handler) (bool, error) {
	log := logger.FromContext(ctx).WithName(loggerName)

	message, err := c.Receive(ctx)
	if err != nil {
		return false, err
	}
	if message == nil {
		log.Info("no messages to process", "subscriptionId", c.config.SubscriptionID)
		return false, nil
	}

	if !json.Valid(message.Data) {
		log.Error("invalid json payload", "messageId", message.ID, "size", len(message.Data))
		return true, nil
	}

	log.Debug("job received", "messageId", message.ID, "size", len(message.Data))
	return true, handler(ctx, message)
}

// Close releases the Pub/Sub client.
func (c *Consumer) Close(ctx context.Context) error {
	log := logger.FromContext(ctx).WithName(loggerName)
	log.Debug("closing pub/sub client")
	if err := c.client.Close(); err != nil {
		return handleError(err)
	}

	log.Trace("closed pub/sub client")
	return nil
}

// handleError flattens grpc status errors and wraps them with ErrBus. Context cancellation is
// the regular end of a receive and is swallowed.
func handleError(err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	if code := status.Code(err); code == codes.Canceled || code == codes.DeadlineExceeded {
		return nil
	}

	if statusErr, ok := status.FromError(err); ok {
		err = errors.New(statusErr.Message())
	}

	return fmt.Errorf("%w: %w", ErrBus, err)
}
