// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package eventhubs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azeventhubs/v2"
	"github.com/caarlos0/env/v11"
)

var (
	// ErrMissingEnvVariable reports missing mandatory environment variables.
	ErrMissingEnvVariable = errors.New("missing environment variable")
	// ErrInvalidEnvVariable reports malformed environment variable values.
	ErrInvalidEnvVariable = errors.New("invalid environment value")
)

// Config holds the settings needed to reach the Event Hub.
type Config struct {
	ConnectionString string `env:"AZURE_EVENT_HUB_CONNECTION_STRING"`
	Namespace        string `env:"AZURE_EVENT_HUB_NAMESPACE"`
	Name             string `env:"AZURE_EVENT_HUB_NAME"`
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
	switch {
	case len(c.ConnectionString) == 0 && len(c.Namespace) == 0:
		return fmt.Errorf("%w: %s", ErrInvalidEnvVariable, "one of AZURE_EVENT_HUB_CONNECTION_STRING or AZURE_EVENT_HUB_NAMESPACE must be present")
	case len(c.Namespace) > 0 && len(c.Name) == 0:
		return fmt.Errorf("%w: %s", ErrMissingEnvVariable, "AZURE_EVENT_HUB_NAME")
	}

	return nil
}

func (c Config) fullyQualifiedNamespace() string {
	if strings.Contains(c.Namespace, ".servicebus.windows.net") {
		return c.Namespace
	}

	return c.Namespace + ".servicebus.windows.net"
}

// newProducerClient connects with the connection string when present, with the default Azure
// credential chain otherwise. The hub name may be embedded in the connection string as EntityPath.
func (c Config) newProducerClient() (*azeventhubs.ProducerClient, error) {
	if c.ConnectionString != "" {
		return azeventhubs.NewProducerClientFromConnectionString(c.ConnectionString, c.Name, nil)
	}

	credentials, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, err
	}

	return azeventhubs.NewProducerClient(c.fullyQualifiedNamespace(), c.Name, credentials, nil)
}
