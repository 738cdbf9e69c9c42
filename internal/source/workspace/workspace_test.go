// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package workspace

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestConfigFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := ConfigFromEnv()
		require.NoError(t, err)
		assert.Equal(t, Config{
			RequestsPerMinute: 60,
			MaxAttempts:       10,
			RetryBaseDelay:    5 * time.Second,
		}, cfg)
	})

	t.Run("invalid attempts", func(t *testing.T) {
		t.Setenv("FEEDAGG_GOOGLE_MAX_ATTEMPTS", "0")
		_, err := ConfigFromEnv()
		assert.ErrorIs(t, err, ErrInvalidEnvVariable)
	})

	t.Run("emulator endpoint", func(t *testing.T) {
		t.Setenv("FEEDAGG_GOOGLE_API_ENDPOINT", "http://localhost:8085/")
		cfg, err := ConfigFromEnv()
		require.NoError(t, err)

		options, err := cfg.ClientOptions(t.Context(), "scope")
		require.NoError(t, err)
		assert.Len(t, options, 3)
	})
}

func TestDo(t *testing.T) {
	t.Parallel()

	retrier := Config{MaxAttempts: 3, RetryBaseDelay: time.Millisecond}.NewRetrier()

	testCases := map[string]struct {
		failures      []error
		expectedCalls int
		expectedError error
	}{
		"success at first attempt": {
			expectedCalls: 1,
		},
		"transient failures are retried": {
			failures: []error{
				&googleapi.Error{Code: http.StatusTooManyRequests},
				&googleapi.Error{Code: http.StatusServiceUnavailable},
			},
			expectedCalls: 3,
		},
		"attempts run out": {
			failures: []error{
				&googleapi.Error{Code: http.StatusInternalServerError},
				&googleapi.Error{Code: http.StatusInternalServerError},
				&googleapi.Error{Code: http.StatusInternalServerError},
				&googleapi.Error{Code: http.StatusInternalServerError},
			},
			expectedCalls: 3,
			expectedError: &googleapi.Error{Code: http.StatusInternalServerError},
		},
		"permanent failure is not retried": {
			failures:      []error{&googleapi.Error{Code: http.StatusForbidden}},
			expectedCalls: 1,
			expectedError: &googleapi.Error{Code: http.StatusForbidden},
		},
	}

	for testName, test := range testCases {
		t.Run(testName, func(t *testing.T) {
			t.Parallel()

			calls := 0
			result, err := Do(t.Context(), retrier, func(context.Context) (string, error) {
				calls++
				if calls <= len(test.failures) {
					return "", test.failures[calls-1]
				}
				return "ok", nil
			})

			assert.Equal(t, test.expectedCalls, calls)
			if test.expectedError != nil {
				assert.Equal(t, test.expectedError, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ok", result)
		})
	}
}

func TestDoCancelled(t *testing.T) {
	t.Parallel()

	retrier := Config{MaxAttempts: 5, RetryBaseDelay: time.Hour}.NewRetrier()
	ctx, cancel := context.WithCancel(t.Context())

	calls := 0
	_, err := Do(ctx, retrier, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, &googleapi.Error{Code: http.StatusTooManyRequests}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	assert.True(t, IsNotFound(&googleapi.Error{Code: http.StatusNotFound}))
	assert.False(t, IsNotFound(assert.AnError))
	assert.True(t, IsRetryable(&googleapi.Error{Code: http.StatusTooManyRequests}))
	assert.False(t, IsRetryable(&googleapi.Error{Code: http.StatusBadRequest}))
}
