// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/feedagg/internal/destination"
	"github.com/mia-platform/feedagg/internal/info"
)

func TestInitialization(t *testing.T) {
	t.Run("without envs", func(t *testing.T) {
		dest, err := NewDestination()
		assert.ErrorIs(t, err, env.VarIsNotSetError{Key: "FEEDAGG_WEBHOOK_ENDPOINT"})
		assert.Nil(t, dest)
	})

	t.Run("with required env", func(t *testing.T) {
		t.Setenv("FEEDAGG_WEBHOOK_ENDPOINT", "http://localhost:8080/records")
		dest, err := NewDestination()
		require.NoError(t, err)
		webhook, ok := dest.(*webhookDestination)
		require.True(t, ok)

		assert.Equal(t, "http://localhost:8080/records", webhook.Endpoint)
		assert.Empty(t, webhook.Token)
		assert.Empty(t, webhook.ClientID)
		assert.Equal(t, "http://localhost:8080/oauth/token", webhook.AuthEndpoint)
		assert.Equal(t, 30*time.Second, webhook.Timeout)
	})

	t.Run("with static token", func(t *testing.T) {
		t.Setenv("FEEDAGG_WEBHOOK_ENDPOINT", "http://localhost:8080/records")
		t.Setenv("FEEDAGG_WEBHOOK_TOKEN", "test-token")
		t.Setenv("FEEDAGG_WEBHOOK_TIMEOUT", "5s")
		dest, err := NewDestination()
		require.NoError(t, err)
		webhook, ok := dest.(*webhookDestination)
		require.True(t, ok)

		assert.Equal(t, "test-token", webhook.Token)
		assert.Equal(t, 5*time.Second, webhook.Timeout)
	})

	t.Run("with explicit auth endpoint", func(t *testing.T) {
		t.Setenv("FEEDAGG_WEBHOOK_ENDPOINT", "http://localhost:8080/records")
		t.Setenv("FEEDAGG_WEBHOOK_CLIENT_ID", "client-id")
		t.Setenv("FEEDAGG_WEBHOOK_CLIENT_SECRET", "client-secret")
		t.Setenv("FEEDAGG_WEBHOOK_AUTH_ENDPOINT", "http://localhost:8081/custom/auth")
		dest, err := NewDestination()
		require.NoError(t, err)
		webhook, ok := dest.(*webhookDestination)
		require.True(t, ok)

		assert.Equal(t, "client-id", webhook.ClientID)
		assert.Equal(t, "client-secret", webhook.ClientSecret)
		assert.Equal(t, "http://localhost:8081/custom/auth", webhook.AuthEndpoint)
	})

	t.Run("with invalid endpoint URL", func(t *testing.T) {
		t.Setenv("FEEDAGG_WEBHOOK_ENDPOINT", "http://%41:8080/")
		dest, err := NewDestination()
		assert.ErrorIs(t, err, url.EscapeError("%41"))
		assert.Nil(t, dest)
	})

	t.Run("with both static token and client credentials", func(t *testing.T) {
		t.Setenv("FEEDAGG_WEBHOOK_ENDPOINT", "http://localhost:8080/records")
		t.Setenv("FEEDAGG_WEBHOOK_TOKEN", "test-token")
		t.Setenv("FEEDAGG_WEBHOOK_CLIENT_ID", "client-id")
		dest, err := NewDestination()
		assert.ErrorIs(t, err, errMultipleAuthMethods)
		assert.Nil(t, dest)
	})

	t.Run("missing secret with client id", func(t *testing.T) {
		t.Setenv("FEEDAGG_WEBHOOK_ENDPOINT", "http://localhost:8080/records")
		t.Setenv("FEEDAGG_WEBHOOK_CLIENT_ID", "client-id")
		dest, err := NewDestination()
		assert.ErrorIs(t, err, errMissingClientSecret)
		assert.Nil(t, dest)
	})

	t.Run("missing client id with secret", func(t *testing.T) {
		t.Setenv("FEEDAGG_WEBHOOK_ENDPOINT", "http://localhost:8080/records")
		t.Setenv("FEEDAGG_WEBHOOK_CLIENT_SECRET", "client-secret")
		dest, err := NewDestination()
		assert.ErrorIs(t, err, errMissingClientID)
		assert.Nil(t, dest)
	})

	t.Run("invalid auth endpoint", func(t *testing.T) {
		t.Setenv("FEEDAGG_WEBHOOK_ENDPOINT", "http://localhost:8080/records")
		t.Setenv("FEEDAGG_WEBHOOK_AUTH_ENDPOINT", "http://%41:8080/")
		dest, err := NewDestination()
		assert.ErrorIs(t, err, url.EscapeError("%41"))
		assert.Nil(t, dest)
	})
}

func TestSendData(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		endpoint      string
		data          *destination.Data
		expectedBody  map[string]any
		expectedError error
	}{
		"successful send": {
			endpoint: "/valid-endpoint",
			data: &destination.Data{
				RunID:      "run-1",
				SupplierID: 7,
				Key:        "0123456789012",
				Fields: map[string]any{
					"upc":         "0123456789012",
					"qty":         3,
					"price":       19.99,
					"supplier_id": 7,
				},
			},
			expectedBody: map[string]any{
				"upc":         "0123456789012",
				"qty":         float64(3),
				"price":       19.99,
				"supplier_id": float64(7),
			},
		},
		"accepted send": {
			endpoint: "/accepted-endpoint",
			data:     &destination.Data{Key: "1"},
		},
		"failed send": {
			endpoint:      "/invalid-endpoint",
			data:          &destination.Data{Key: "1"},
			expectedError: &WebhookError{err: errors.New("error message")},
		},
		"unauthorized send": {
			endpoint:      "/unauthorized-endpoint",
			data:          &destination.Data{Key: "1"},
			expectedError: &WebhookError{err: errors.New("invalid token or insufficient permissions")},
		},
		"not found send": {
			endpoint:      "/not-found-endpoint",
			data:          &destination.Data{Key: "1"},
			expectedError: &WebhookError{err: errors.New("webhook endpoint not found")},
		},
		"invalid error response": {
			endpoint:      "/invalid-error-response",
			data:          &destination.Data{Key: "1"},
			expectedError: &WebhookError{err: errors.New("unexpected error")},
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Body != nil {
					defer r.Body.Close()
				}

				if r.Method != http.MethodPost {
					http.Error(w, "invalid method", http.StatusMethodNotAllowed)
					return
				}

				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
				assert.Equal(t, info.AppName+"/"+info.Version, r.Header.Get("User-Agent"))
				assert.Equal(t, tc.data.RunID+":"+tc.data.Key, r.Header.Get("Idempotency-Key"))

				switch r.RequestURI {
				case "/valid-endpoint":
					decodedBody := make(map[string]any)
					err := json.NewDecoder(r.Body).Decode(&decodedBody)
					assert.NoError(t, err)
					assert.Equal(t, tc.expectedBody, decodedBody)
					w.WriteHeader(http.StatusNoContent)
				case "/accepted-endpoint":
					w.WriteHeader(http.StatusAccepted)
				case "/not-found-endpoint":
					http.NotFound(w, r)
				case "/invalid-error-response":
					http.Error(w, "unexpected error", http.StatusBadGateway)
				case "/unauthorized-endpoint":
					http.Error(w, "unauthorized", http.StatusUnauthorized)
				default:
					errCode := http.StatusInternalServerError
					w.WriteHeader(errCode)
					err := json.NewEncoder(w).Encode(map[string]any{
						"statusCode": errCode,
						"error":      http.StatusText(errCode),
						"message":    "error message",
					})
					assert.NoError(t, err)
				}
			}))
			defer testServer.Close()

			ctx, cancel := context.WithTimeout(t.Context(), 1*time.Second)
			defer cancel()

			dest := &webhookDestination{
				Endpoint: testServer.URL + tc.endpoint,
				Token:    "test-token",
			}

			err := dest.SendData(ctx, tc.data)
			if tc.expectedError != nil {
				assert.ErrorIs(t, err, tc.expectedError)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestContextCancelled(t *testing.T) {
	t.Parallel()

	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "should not be called", http.StatusInternalServerError)
	}))
	defer testServer.Close()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	dest := &webhookDestination{
		Endpoint: testServer.URL,
	}

	err := dest.SendData(ctx, &destination.Data{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClientCredentialFlow(t *testing.T) {
	t.Parallel()

	tokenRequests := 0
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			defer r.Body.Close()
		}
		if r.Method == http.MethodPost && r.RequestURI == "/oauth/token" {
			tokenRequests++
			err := r.ParseForm()
			assert.NoError(t, err)
			assert.Equal(t, "client_credentials", r.FormValue("grant_type"))
			assert.Equal(t, "Basic dGVzdC1jbGllbnQtaWQ6dGVzdC1jbGllbnQtc2VjcmV0", r.Header.Get("Authorization"))

			w.Header().Set("Content-Type", "application/json")
			err = json.NewEncoder(w).Encode(map[string]any{
				"access_token": "generated-token",
				"token_type":   "Bearer",
				"expires_in":   3600,
			})
			assert.NoError(t, err)
			return
		}

		if r.Method == http.MethodPost && r.RequestURI == "/" {
			assert.Equal(t, "Bearer generated-token", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusNoContent)
			return
		}

		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer testServer.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 1*time.Second)
	defer cancel()

	dest := &webhookDestination{
		Endpoint:     testServer.URL + "/",
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		AuthEndpoint: testServer.URL + "/oauth/token",
	}

	require.NoError(t, dest.SendData(ctx, &destination.Data{Key: "1"}))
	require.NoError(t, dest.SendData(ctx, &destination.Data{Key: "2"}))
	assert.Equal(t, 1, tokenRequests)
}
