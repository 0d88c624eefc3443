/*
Package transport implements the client side of the game server's two transports:
the request/response HTTP API (authentication, storage records, one-shot RPCs)
and the persistent realtime socket (match, chat, streamed game data).

This file defines the HTTP API client. Every response arrives in the server's
standard JSON envelope {code, message, data}; non-zero codes are lifted into
*errs.CustomError verbatim so the rest of the client sees the uniform result
contract.
*/
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"blobparty/internal/pkg/errs"
	"blobparty/internal/pkg/logx"
)

// requestTimeout bounds a single HTTP API call when the caller's context
// carries no deadline of its own.
const requestTimeout = 15 * time.Second

// jsonEnvelope is the standard JSON response structure returned by the server.
type jsonEnvelope struct {
	// Code is the application result code (0 for success, see errs package).
	Code int `json:"code"`

	// Message is the client-friendly status description or error message.
	Message string `json:"message"`

	// Data is the optional response payload.
	Data json.RawMessage `json:"data,omitempty"`
}

// Client is the HTTP API client for the game server.
type Client struct {
	// base URL of the server API, e.g. "http://localhost:7350".
	baseURL string

	// shared server key sent with unauthenticated calls.
	serverKey string

	// underlying HTTP client.
	httpClient *http.Client

	// structured logger with client context.
	logger zerolog.Logger
}

// NewClient constructs and returns a new HTTP API Client instance.
func NewClient(baseURL string, serverKey string) *Client {
	clientLogger := logx.Logger().With().
		Str("component", "APIClient").
		Str("base_url", baseURL).
		Logger()

	return &Client{
		baseURL:    baseURL,
		serverKey:  serverKey,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     clientLogger,
	}
}

// call performs one HTTP API request and unwraps the server's JSON envelope.
// A non-zero envelope code is returned verbatim as a *CustomError; any failure
// below the envelope (network, bad response body) maps to ErrTransportUnavailable.
func (c *Client) call(ctx context.Context, method string, path string, token string, body any) (json.RawMessage, *errs.CustomError) {
	var reqBody *bytes.Reader

	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, errs.FromTransport(err)
		}
		reqBody = bytes.NewReader(encoded)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, errs.FromTransport(err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Server-Key", c.serverKey)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("path", path).Msg("HTTP API request failed")
		return nil, errs.FromTransport(err)
	}
	defer res.Body.Close()

	var envelope jsonEnvelope
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		c.logger.Warn().Err(err).
			Str("path", path).
			Int("http_status", res.StatusCode).
			Msg("HTTP API response is not a valid envelope")
		return nil, errs.NewError(errs.ErrTransportUnavailable,
			fmt.Sprintf("invalid server response (HTTP %d)", res.StatusCode))
	}

	if envelope.Code != errs.CodeOK {
		return nil, errs.FromServer(envelope.Code, envelope.Message)
	}

	return envelope.Data, nil
}

// Authenticate exchanges email/password credentials for a session token.
// When create is true the server registers a new account first.
func (c *Client) Authenticate(ctx context.Context, email string, password string, create bool) (string, *errs.CustomError) {
	path := fmt.Sprintf("/v1/account/authenticate?create=%t", create)

	body := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{
		Email:    email,
		Password: password,
	}

	data, customErr := c.call(ctx, http.MethodPost, path, "", body)
	if customErr != nil {
		return "", customErr
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &result); err != nil || result.Token == "" {
		return "", errs.NewError(errs.ErrTransportUnavailable, "authenticate response carried no token")
	}

	return result.Token, nil
}

// ReadObject fetches one record from the remote record store. An absent record
// is not an error: it returns (nil, nil).
func (c *Client) ReadObject(ctx context.Context, token string, collection string, key string) (json.RawMessage, *errs.CustomError) {
	path := fmt.Sprintf("/v1/storage/%s/%s", url.PathEscape(collection), url.PathEscape(key))

	data, customErr := c.call(ctx, http.MethodGet, path, token, nil)
	if customErr != nil {
		return nil, customErr
	}

	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	return data, nil
}

// WriteObject creates or overwrites one record in the remote record store.
func (c *Client) WriteObject(ctx context.Context, token string, collection string, key string, value any) *errs.CustomError {
	path := fmt.Sprintf("/v1/storage/%s/%s", url.PathEscape(collection), url.PathEscape(key))

	_, customErr := c.call(ctx, http.MethodPut, path, token, value)
	return customErr
}

// DeleteObject removes one record from the remote record store. Deleting an
// absent record succeeds.
func (c *Client) DeleteObject(ctx context.Context, token string, collection string, key string) *errs.CustomError {
	path := fmt.Sprintf("/v1/storage/%s/%s", url.PathEscape(collection), url.PathEscape(key))

	_, customErr := c.call(ctx, http.MethodDelete, path, token, nil)
	return customErr
}
