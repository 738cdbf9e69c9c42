// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package workspace

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/mia-platform/feedagg/internal/info"
	"github.com/mia-platform/feedagg/internal/logger"
)

const (
	loggerName = "feedagg:source:workspace"
)

var (
	// ErrInvalidEnvVariable reports malformed environment variable values.
	ErrInvalidEnvVariable = errors.New("invalid environment value")

	retryableCodes = []int{http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable}
)

// Config holds the settings shared by the Google API readers.
type Config struct {
	// Endpoint overrides the API base URL and disables authentication, for emulators and tests.
	Endpoint          string        `env:"FEEDAGG_GOOGLE_API_ENDPOINT"`
	RequestsPerMinute int           `env:"FEEDAGG_GOOGLE_REQUESTS_PER_MINUTE" envDefault:"60"`
	MaxAttempts       int           `env:"FEEDAGG_GOOGLE_MAX_ATTEMPTS" envDefault:"10"`
	RetryBaseDelay    time.Duration `env:"FEEDAGG_GOOGLE_RETRY_BASE_DELAY" envDefault:"5s"`
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
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%w: %s", ErrInvalidEnvVariable, "FEEDAGG_GOOGLE_MAX_ATTEMPTS must be at least 1")
	}
	if c.RetryBaseDelay < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidEnvVariable, "FEEDAGG_GOOGLE_RETRY_BASE_DELAY must not be negative")
	}
	return nil
}

// ClientOptions returns the options to build an API service with the given scopes.
// Credentials come from the Application Default Credentials chain.
func (c Config) ClientOptions(ctx context.Context, scopes ...string) ([]option.ClientOption, error) {
	options := []option.ClientOption{option.WithUserAgent(info.UserAgent())}
	if c.Endpoint != "" {
		return append(options, option.WithEndpoint(c.Endpoint), option.WithoutAuthentication()), nil
	}

	credentials, err := google.FindDefaultCredentials(ctx, scopes...)
	if err != nil {
		return nil, fmt.Errorf("google credentials: %w", err)
	}
	return append(options, option.WithCredentials(credentials)), nil
}

// Retrier throttles API calls and retries the transient failures with a linear backoff.
type Retrier struct {
	limiter     *rate.Limiter
	maxAttempts int
	baseDelay   time.Duration
}

// NewRetrier returns the Retrier described by the configuration.
func (c Config) NewRetrier() *Retrier {
	limit := rate.Inf
	burst := 1
	if c.RequestsPerMinute > 0 {
		limit = rate.Limit(float64(c.RequestsPerMinute) / time.Minute.Seconds())
		burst = c.RequestsPerMinute
	}

	return &Retrier{
		limiter:     rate.NewLimiter(limit, burst),
		maxAttempts: max(1, c.MaxAttempts),
		baseDelay:   c.RetryBaseDelay,
	}
}

// Do runs call until it succeeds, fails with a non transient error or the attempts run out.
// The n-th retry waits n times the base delay.
func Do[T any](ctx context.Context, r *Retrier, call func(context.Context) (T, error)) (T, error) {
	log := logger.FromContext(ctx).WithName(loggerName)

	var zero T
	for attempt := 1; ; attempt++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return zero, err
		}

		result, err := call(ctx)
		if err == nil || !IsRetryable(err) || attempt >= r.maxAttempts {
			return result, err
		}

		delay := r.baseDelay * time.Duration(attempt)
		log.Warn("transient api error, retrying", "attempt", attempt, "delay", delay.String(), "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}

// IsRetryable reports whether err is a transient API failure.
func IsRetryable(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && slices.Contains(retryableCodes, apiErr.Code)
}

// IsNotFound reports whether err is an API not found failure.
func IsNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
