// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/mia-platform/feedagg/internal/config"
	"github.com/mia-platform/feedagg/internal/info"
	"github.com/mia-platform/feedagg/internal/transport/httpfetch"
)

const (
	plainTokenLifetime = 24 * time.Hour
	maxErrorBody       = 512
)

var (
	// ErrAuthentication is returned when the login endpoint does not hand out a token.
	ErrAuthentication = errors.New("authentication failed")
)

// storedToken is the on disk form of a cached token.
type storedToken struct {
	Token     string `json:"token"`
	ExpiresAt *int64 `json:"expiresAt"`
}

// tokenStore persists tokens in a JSON file shared by every supplier, keyed by supplier id.
// A store with an empty path keeps nothing.
type tokenStore struct {
	path string
	lock sync.Mutex
}

func (s *tokenStore) load() map[string]storedToken {
	content, err := os.ReadFile(s.path)
	if err != nil {
		return map[string]storedToken{}
	}

	tokens := map[string]storedToken{}
	if err := json.Unmarshal(content, &tokens); err != nil {
		return map[string]storedToken{}
	}
	return tokens
}

func (s *tokenStore) write(tokens map[string]storedToken) error {
	content, err := json.MarshalIndent(tokens, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, content, 0o600)
}

// Restore returns the token cached for supplierID, nil when there is none.
func (s *tokenStore) Restore(supplierID int) *oauth2.Token {
	if s == nil || s.path == "" {
		return nil
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	stored, ok := s.load()[strconv.Itoa(supplierID)]
	if !ok || stored.Token == "" {
		return nil
	}

	token := &oauth2.Token{AccessToken: stored.Token, TokenType: "Bearer"}
	if stored.ExpiresAt != nil {
		token.Expiry = time.Unix(*stored.ExpiresAt, 0)
	}
	return token
}

// Save caches token for supplierID.
func (s *tokenStore) Save(supplierID int, token *oauth2.Token) error {
	if s == nil || s.path == "" {
		return nil
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	tokens := s.load()
	stored := storedToken{Token: token.AccessToken}
	if !token.Expiry.IsZero() {
		expiresAt := token.Expiry.Unix()
		stored.ExpiresAt = &expiresAt
	}
	tokens[strconv.Itoa(supplierID)] = stored
	return s.write(tokens)
}

// Delete drops the token cached for supplierID.
func (s *tokenStore) Delete(supplierID int) error {
	if s == nil || s.path == "" {
		return nil
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	tokens := s.load()
	if _, ok := tokens[strconv.Itoa(supplierID)]; !ok {
		return nil
	}
	delete(tokens, strconv.Itoa(supplierID))
	return s.write(tokens)
}

var _ oauth2.TokenSource = &loginTokenSource{}

// loginTokenSource hands out the cached token while it is valid and logs in again otherwise.
type loginTokenSource struct {
	ctx        context.Context
	client     *http.Client
	api        *config.REST
	supplierID int
	store      *tokenStore
}

// Token implements oauth2.TokenSource.
func (s *loginTokenSource) Token() (*oauth2.Token, error) {
	if token := s.store.Restore(s.supplierID); token.Valid() {
		return token, nil
	}

	token, err := s.login()
	if err != nil {
		return nil, err
	}

	if err := s.store.Save(s.supplierID, token); err != nil {
		return nil, fmt.Errorf("saving token of supplier %d: %w", s.supplierID, err)
	}
	return token, nil
}

func (s *loginTokenSource) login() (*oauth2.Token, error) {
	body, err := json.Marshal(map[string]string{
		"username": s.api.Auth.Username,
		"password": s.api.Auth.Password,
	})
	if err != nil {
		return nil, err
	}

	tokenURL := s.api.TokenURI
	if !httpfetch.IsRemote(tokenURL) {
		tokenURL = joinURL(s.api.BaseURI, tokenURL)
	}

	request, err := http.NewRequestWithContext(s.ctx, http.MethodPost, tokenURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("User-Agent", info.UserAgent())
	if s.api.Auth.CompanyID != "" {
		request.Header.Set("Company", s.api.Auth.CompanyID)
	}

	response, err := s.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	defer response.Body.Close()

	content, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	if response.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: status %d: %s", ErrAuthentication, response.StatusCode, truncate(content))
	}

	if s.api.TokenKey == "" {
		return plainToken(content)
	}
	return jsonToken(content, s.api.TokenKey, s.api.ExpireKey)
}

// plainToken reads a login response whose whole body is the token.
func plainToken(content []byte) (*oauth2.Token, error) {
	accessToken := strings.Trim(strings.TrimSpace(string(content)), `"`)
	if accessToken == "" {
		return nil, fmt.Errorf("%w: empty token", ErrAuthentication)
	}
	return &oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(plainTokenLifetime),
	}, nil
}

// jsonToken reads the token at tokenKey of a JSON login response. The value at expireKey, when
// present, is the token lifetime in seconds.
func jsonToken(content []byte, tokenKey, expireKey string) (*oauth2.Token, error) {
	payload := map[string]any{}
	decoder := json.NewDecoder(bytes.NewReader(content))
	decoder.UseNumber()
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: invalid login response: %w", ErrAuthentication, err)
	}

	accessToken, _ := payload[tokenKey].(string)
	if accessToken == "" {
		return nil, fmt.Errorf("%w: login response without %q", ErrAuthentication, tokenKey)
	}

	token := &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}
	if expireKey == "" {
		return token, nil
	}

	var lifetime float64
	switch value := payload[expireKey].(type) {
	case json.Number:
		lifetime, _ = value.Float64()
	case string:
		lifetime, _ = strconv.ParseFloat(value, 64)
	}
	if lifetime > 0 {
		token.Expiry = time.Now().Add(time.Duration(lifetime * float64(time.Second)))
	}
	return token, nil
}

func truncate(content []byte) string {
	if len(content) > maxErrorBody {
		return string(content[:maxErrorBody]) + "..."
	}
	return string(content)
}
