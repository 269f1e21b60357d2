package bugzilla

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	gosync "sync"
	"time"

	"bugboard/internal/source"
)

// Client is a thin HTTP client for the Bugzilla REST API. It handles
// authentication (API key or login token), JSON marshaling, and error
// decoding. Requests are issued once; the caller decides whether a
// failed fetch is worth repeating.
type Client struct {
	baseURL    string
	apiKey     string
	username   string
	password   string
	httpClient *http.Client

	// mu guards token: the poller and UI commands share one client.
	mu    gosync.Mutex
	token string
}

// NewClient creates a new Bugzilla HTTP client. The baseURL should be
// the normalized root URL of the instance (e.g., https://bugzilla.example.com).
// When apiKey is empty, username and password are used to obtain a
// login token on first use.
func NewClient(baseURL, username, password, apiKey string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Get performs an HTTP GET request against a REST path with the given
// query parameters and unmarshals the JSON response.
func (c *Client) Get(
	ctx context.Context,
	path string,
	params url.Values,
	result interface{},
) error {
	return c.do(ctx, http.MethodGet, path, params, nil, result)
}

// Post performs an HTTP POST request with a JSON body and unmarshals
// the JSON response.
func (c *Client) Post(
	ctx context.Context,
	path string,
	body interface{},
	result interface{},
) error {
	return c.do(ctx, http.MethodPost, path, nil, body, result)
}

// do is the core HTTP method that builds the request, attaches
// credentials, and handles JSON (de)serialization and error decoding.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	params url.Values,
	body interface{},
	result interface{},
) error {
	if err := c.ensureAuth(ctx, path); err != nil {
		return err
	}

	if params == nil {
		params = url.Values{}
	}
	c.attachCredentials(params, path)

	reqURL := c.baseURL + path
	if encoded := params.Encode(); encoded != "" {
		reqURL += "?" + encoded
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request %s %s: %w", method, path, err)
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return fmt.Errorf("reading response body: %w", readErr)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return &source.AuthError{
			SourceType: source.SourceTypeBugzilla,
			Message: fmt.Sprintf(
				"authentication failed (401): check your "+
					"credentials for %s", c.baseURL,
			),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var bzErr ErrorResponse
		if json.Unmarshal(respBody, &bzErr) == nil && bzErr.Error {
			return fmt.Errorf(
				"bugzilla API error (%d, code %d) on %s %s: %s",
				resp.StatusCode, bzErr.Code, method, path, bzErr.Message,
			)
		}
		return fmt.Errorf(
			"unexpected status %d on %s %s: %s",
			resp.StatusCode, method, path, string(respBody),
		)
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf(
			"unmarshaling response from %s %s: %w", method, path, err,
		)
	}

	return nil
}

// ensureAuth obtains a login token when password authentication is
// configured and no token has been issued yet. The lock is held across
// the login round trip so concurrent first requests log in once.
func (c *Client) ensureAuth(ctx context.Context, path string) error {
	if c.apiKey != "" || path == "/rest/login" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return nil
	}

	params := url.Values{}
	params.Set("login", c.username)
	params.Set("password", c.password)

	reqURL := c.baseURL + "/rest/login?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating login request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing login request: %w", err)
	}

	respBody, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return fmt.Errorf("reading login response: %w", readErr)
	}

	if resp.StatusCode == http.StatusUnauthorized ||
		resp.StatusCode == http.StatusBadRequest {
		return &source.AuthError{
			SourceType: source.SourceTypeBugzilla,
			Message: fmt.Sprintf(
				"login failed for %q on %s", c.username, c.baseURL,
			),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf(
			"unexpected status %d on login: %s",
			resp.StatusCode, string(respBody),
		)
	}

	var login LoginResponse
	if err := json.Unmarshal(respBody, &login); err != nil {
		return fmt.Errorf("unmarshaling login response: %w", err)
	}
	if login.Token == "" {
		return &source.AuthError{
			SourceType: source.SourceTypeBugzilla,
			Message:    fmt.Sprintf("no session token issued by %s", c.baseURL),
		}
	}

	c.token = login.Token
	return nil
}

// attachCredentials adds the api_key or session token to the request
// parameters. The login endpoint carries its own credentials.
func (c *Client) attachCredentials(params url.Values, path string) {
	if path == "/rest/login" {
		return
	}
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
		return
	}

	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		params.Set("token", token)
	}
}
