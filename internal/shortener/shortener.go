// Package shortener shortens URLs through the CleanURI API.
package shortener

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultEndpoint = "https://cleanuri.com/api/v1/shorten"

// APIError is an error message returned by the shortening service itself,
// as opposed to a transport failure. Callers may surface Message to users.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("shortening service rejected the URL: %s", e.Message)
}

// ShortURL is a successfully shortened URL.
type ShortURL struct {
	// URL is the full short URL, e.g. https://cleanuri.com/pEqXje.
	URL string
	// Code is the unique path segment, e.g. pEqXje.
	Code string
}

// Client calls the CleanURI shortening API.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// ClientOption is a functional option for Client.
type ClientOption func(*Client)

// WithEndpoint overrides the API endpoint. Used by tests.
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a shortening client. The API needs no credentials.
func NewClient(options ...ClientOption) *Client {
	c := &Client{
		endpoint:   defaultEndpoint,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

type shortenResponse struct {
	ResultURL string `json:"result_url"`
	Error     string `json:"error"`
}

// Shorten submits the long URL as a form-encoded POST and returns the short
// URL. A service-side rejection comes back as *APIError.
func (c *Client) Shorten(ctx context.Context, longURL string) (*ShortURL, error) {
	form := url.Values{}
	form.Set("url", longURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build shorten request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("shorten request failed: %w", err)
	}
	defer resp.Body.Close()

	var parsed shortenResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode shorten response: %w", err)
	}

	if parsed.Error != "" {
		return nil, &APIError{Message: parsed.Error}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("shorten request failed with status %d", resp.StatusCode)
	}
	if parsed.ResultURL == "" {
		return nil, fmt.Errorf("shorten response carries no result URL")
	}

	return &ShortURL{
		URL:  parsed.ResultURL,
		Code: parsed.ResultURL[strings.LastIndex(parsed.ResultURL, "/")+1:],
	}, nil
}
