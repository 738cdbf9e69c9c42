// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/mia-platform/feedagg/internal/destination"
	"github.com/mia-platform/feedagg/internal/info"
)

const (
	defaultAuthPath = "/oauth/token"
)

var (
	errMultipleAuthMethods = errors.New("only one of FEEDAGG_WEBHOOK_TOKEN or FEEDAGG_WEBHOOK_CLIENT_ID can be set")
	errMissingClientSecret = errors.New("FEEDAGG_WEBHOOK_CLIENT_SECRET is required with FEEDAGG_WEBHOOK_CLIENT_ID")
	errMissingClientID     = errors.New("FEEDAGG_WEBHOOK_CLIENT_ID is required with FEEDAGG_WEBHOOK_CLIENT_SECRET")
)

var _ destination.Sender = &webhookDestination{}

type WebhookError struct {
	err error
}

func (e *WebhookError) Error() string {
	return "webhook: " + e.err.Error()
}

func (e *WebhookError) Unwrap() error {
	return e.err
}

func (e *WebhookError) Is(target error) bool {
	we, ok := target.(*WebhookError)
	if !ok {
		return false
	}

	return e.err.Error() == we.err.Error()
}

// webhookDestination implements destination.Sender posting records to an HTTP endpoint.
type webhookDestination struct {
	Endpoint     string        `env:"FEEDAGG_WEBHOOK_ENDPOINT,required"`
	Token        string        `env:"FEEDAGG_WEBHOOK_TOKEN"`
	ClientID     string        `env:"FEEDAGG_WEBHOOK_CLIENT_ID"`
	ClientSecret string        `env:"FEEDAGG_WEBHOOK_CLIENT_SECRET"`
	AuthEndpoint string        `env:"FEEDAGG_WEBHOOK_AUTH_ENDPOINT"`
	Timeout      time.Duration `env:"FEEDAGG_WEBHOOK_TIMEOUT" envDefault:"30s"`

	clientOnce sync.Once
	client     *http.Client
}

// NewDestination returns a new destination.Sender configured from environment variables.
// Without FEEDAGG_WEBHOOK_AUTH_ENDPOINT the token endpoint is /oauth/token on the webhook host.
func NewDestination() (destination.Sender, error) {
	destination := new(webhookDestination)
	if err := env.Parse(destination); err != nil {
		return nil, handleError(err)
	}

	if err := destination.validate(); err != nil {
		return nil, handleError(err)
	}

	return destination, nil
}

func (d *webhookDestination) validate() error {
	endpoint, err := url.Parse(d.Endpoint)
	if err != nil {
		return err
	}

	if d.AuthEndpoint == "" {
		d.AuthEndpoint = (&url.URL{Scheme: endpoint.Scheme, Host: endpoint.Host, Path: defaultAuthPath}).String()
	} else if _, err := url.Parse(d.AuthEndpoint); err != nil {
		return err
	}

	switch {
	case d.Token != "" && (d.ClientID != "" || d.ClientSecret != ""):
		return errMultipleAuthMethods
	case d.ClientID != "" && d.ClientSecret == "":
		return errMissingClientSecret
	case d.ClientID == "" && d.ClientSecret != "":
		return errMissingClientID
	}
	return nil
}

// SendData implements destination.Sender.
func (d *webhookDestination) SendData(ctx context.Context, data *destination.Data) error {
	body, err := json.Marshal(data)
	if err != nil {
		return handleError(err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Endpoint, bytes.NewReader(body))
	if err != nil {
		return handleError(err)
	}

	request.Header.Set("User-Agent", info.UserAgent())
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Idempotency-Key", data.RunID+":"+data.Key)
	if d.Token != "" {
		request.Header.Set("Authorization", "Bearer "+d.Token)
	}

	resp, err := d.httpClient().Do(request)
	if err != nil {
		return handleError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return handleError(errors.New("invalid token or insufficient permissions"))
	case resp.StatusCode == http.StatusNotFound:
		return handleError(errors.New("webhook endpoint not found"))
	}

	decoder := json.NewDecoder(resp.Body)
	var respBody map[string]any
	if err := decoder.Decode(&respBody); err == nil {
		if message, ok := respBody["message"].(string); ok {
			return handleError(errors.New(message))
		}
	}

	return handleError(errors.New("unexpected error"))
}

// httpClient returns the client used for the webhook calls, adding the client credentials flow
// when it is configured.
func (d *webhookDestination) httpClient() *http.Client {
	d.clientOnce.Do(func() {
		d.client = &http.Client{Timeout: d.Timeout}
		if d.ClientID != "" {
			credentials := &clientcredentials.Config{
				ClientID:     d.ClientID,
				ClientSecret: d.ClientSecret,
				TokenURL:     d.AuthEndpoint,
			}
			d.client = credentials.Client(context.Background())
			d.client.Timeout = d.Timeout
		}
	})
	return d.client
}

func handleError(err error) error {
	var parseErr env.AggregateError
	if errors.As(err, &parseErr) {
		err = parseErr.Errors[0]
	}

	return &WebhookError{
		err: err,
	}
}
