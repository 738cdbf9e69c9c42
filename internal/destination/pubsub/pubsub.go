// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub/v2"
	"github.com/caarlos0/env/v11"
	"google.golang.org/api/option"
	"google.golang.org/grpc/status"

	"github.com/mia-platform/feedagg/internal/destination"
	"github.com/mia-platform/feedagg/internal/logger"
)

const (
	loggerName = "feedagg:destination:pubsub"
)

var (
	// ErrMissingEnvVariable reports missing mandatory environment variables.
	ErrMissingEnvVariable = errors.New("missing environment variable")
	// ErrPubSubDestination wraps errors emitted while publishing records.
	ErrPubSubDestination = errors.New("pubsub destination")
)

// Config holds the settings of the record topic.
type Config struct {
	ProjectID string `env:"GOOGLE_CLOUD_PUBSUB_PROJECT"`
	TopicID   string `env:"FEEDAGG_RECORDS_TOPIC"`
}

// ConfigFromEnv parses and validates the configuration from the environment.
func ConfigFromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	missingEnvs := make([]string, 0)
	if c.ProjectID == "" {
		missingEnvs = append(missingEnvs, "GOOGLE_CLOUD_PUBSUB_PROJECT")
	}
	if c.TopicID == "" {
		missingEnvs = append(missingEnvs, "FEEDAGG_RECORDS_TOPIC")
	}
	if len(missingEnvs) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingEnvVariable, strings.Join(missingEnvs, ", "))
	}
	return nil
}

var _ destination.ClosableSender = &Destination{}

// Destination publishes records and waits for the server acknowledgement of each one.
type Destination struct {
	config    Config
	client    *pubsub.Client
	publisher *pubsub.Publisher
}

// NewDestination validates cfg and connects to Pub/Sub. Options are forwarded to the client.
func NewDestination(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Destination, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, handleError(err)
	}

	return &Destination{
		config:    cfg,
		client:    client,
		publisher: client.Publisher(cfg.TopicID),
	}, nil
}

// SendData implements destination.Sender.
func (d *Destination) SendData(ctx context.Context, data *destination.Data) error {
	body, err := json.Marshal(data)
	if err != nil {
		return handleError(err)
	}

	result := d.publisher.Publish(ctx, &pubsub.Message{
		Data:       body,
		Attributes: data.Attributes(),
	})
	serverID, err := result.Get(ctx)
	if err != nil {
		return handleError(err)
	}

	logger.FromContext(ctx).WithName(loggerName).Trace("record published", "key", data.Key, "messageId", serverID)
	return nil
}

// Close implements destination.ClosableSender. Pending messages are flushed first.
func (d *Destination) Close(ctx context.Context) error {
	log := logger.FromContext(ctx).WithName(loggerName)
	log.Debug("closing pub/sub publisher", "topicId", d.config.TopicID)
	d.publisher.Stop()
	if err := d.client.Close(); err != nil {
		return handleError(err)
	}

	log.Trace("closed pub/sub publisher")
	return nil
}

// handleError flattens grpc status errors and wraps them with ErrPubSubDestination.
func handleError(err error) error {
	if err == nil {
		return nil
	}

	if statusErr, ok := status.FromError(err); ok {
		err = errors.New(statusErr.Message())
	}

	return fmt.Errorf("%w: %w", ErrPubSubDestination, err)
}
