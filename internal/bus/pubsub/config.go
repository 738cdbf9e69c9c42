// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package pubsub

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

var (
	// ErrMissingEnvVariable reports missing mandatory environment variables.
	ErrMissingEnvVariable = errors.New("missing environment variable")
	// ErrInvalidEnvVariable reports malformed environment variable values.
	ErrInvalidEnvVariable = errors.New("invalid environment value")
)

// Config holds the settings of the job subscription.
type Config struct {
	ProjectID      string        `env:"GOOGLE_CLOUD_PUBSUB_PROJECT"`
	SubscriptionID string        `env:"FEEDAGG_JOBS_SUBSCRIPTION"`
	WaitTimeout    time.Duration `env:"FEEDAGG_JOBS_WAIT_TIMEOUT" envDefault:"10s"`
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
	if c.SubscriptionID == "" {
		missingEnvs = append(missingEnvs, "FEEDAGG_JOBS_SUBSCRIPTION")
	}
	if len(missingEnvs) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingEnvVariable, strings.Join(missingEnvs, ", "))
	}

	if c.WaitTimeout <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidEnvVariable, "FEEDAGG_JOBS_WAIT_TIMEOUT must be positive")
	}
	return nil
}
