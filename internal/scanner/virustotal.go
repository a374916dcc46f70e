package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oklahomer/go-kasumi/logger"
)

const defaultVirusTotalBaseURL = "https://www.virustotal.com/api/v3"

// VirusTotalClient is the fallback provider: a reputation aggregator whose
// analyses move through queued to completed and report per-engine counts.
// Every endpoint requires the API key header.
type VirusTotalClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// VirusTotalOption is a functional option for VirusTotalClient.
type VirusTotalOption func(*VirusTotalClient)

// WithVirusTotalBaseURL overrides the API base URL. Used by tests.
func WithVirusTotalBaseURL(baseURL string) VirusTotalOption {
	return func(c *VirusTotalClient) {
		c.baseURL = baseURL
	}
}

// WithVirusTotalHTTPClient overrides the underlying HTTP client.
func WithVirusTotalHTTPClient(httpClient *http.Client) VirusTotalOption {
	return func(c *VirusTotalClient) {
		c.httpClient = httpClient
	}
}

// NewVirusTotalClient creates a client for the fallback provider. An empty
// apiKey is allowed; Submit then fails fast with ErrNoAPIKey.
func NewVirusTotalClient(apiKey string, options ...VirusTotalOption) *VirusTotalClient {
	c := &VirusTotalClient{
		baseURL:    defaultVirusTotalBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Name identifies this provider in logs and audit payloads.
func (c *VirusTotalClient) Name() string {
	return "VirusTotal"
}

type virustotalSubmitResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Submit sends the URL for analysis as a form-encoded POST and returns the
// analysis handle.
func (c *VirusTotalClient) Submit(ctx context.Context, target string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}

	form := url.Values{}
	form.Set("url", target)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/urls", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("x-apikey", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submission request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("submission rejected with status %d", resp.StatusCode)
	}

	var parsed virustotalSubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode submission response: %w", err)
	}
	if parsed.Data.ID == "" {
		return "", fmt.Errorf("submission response carries no analysis ID")
	}

	logger.Debugf("Submitted %s to %s. Analysis ID: %s", target, c.Name(), parsed.Data.ID)
	return parsed.Data.ID, nil
}

type virustotalAnalysis struct {
	Data struct {
		Attributes struct {
			Status string        `json:"status"`
			Stats  FallbackStats `json:"stats"`
		} `json:"attributes"`
	} `json:"data"`
}

// Report fetches the analysis identified by the handle. It returns (nil, nil)
// when the analysis is not known yet; a non-completed status is returned
// as-is so the caller keeps polling.
func (c *VirusTotalClient) Report(ctx context.Context, handle string) (*FallbackReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/analyses/"+handle, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build report request: %w", err)
	}
	req.Header.Set("x-apikey", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("report request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("report fetch failed with status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read report response: %w", err)
	}

	var parsed virustotalAnalysis
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode report response: %w", err)
	}

	return &FallbackReport{
		Status: parsed.Data.Attributes.Status,
		Stats:  parsed.Data.Attributes.Stats,
		Raw:    raw,
	}, nil
}
