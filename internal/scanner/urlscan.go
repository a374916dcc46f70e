package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/oklahomer/go-kasumi/logger"
)

// ErrNoAPIKey indicates that a provider client was constructed without the
// API key its submission endpoint requires.
var ErrNoAPIKey = errors.New("provider API key is not configured")

const defaultURLScanBaseURL = "https://urlscan.io/api/v1"

// URLScanClient is the primary provider: a sandbox-style scanner that accepts
// a URL submission and serves the report at a separate endpoint once the
// sandbox run finishes. A 404 on the report endpoint means the report is not
// ready yet, not that something went wrong.
type URLScanClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// URLScanOption is a functional option for URLScanClient.
type URLScanOption func(*URLScanClient)

// WithURLScanBaseURL overrides the API base URL. Used by tests.
func WithURLScanBaseURL(baseURL string) URLScanOption {
	return func(c *URLScanClient) {
		c.baseURL = baseURL
	}
}

// WithURLScanHTTPClient overrides the underlying HTTP client.
func WithURLScanHTTPClient(httpClient *http.Client) URLScanOption {
	return func(c *URLScanClient) {
		c.httpClient = httpClient
	}
}

// NewURLScanClient creates a client for the primary provider. An empty apiKey
// is allowed at construction time; Submit then fails fast with ErrNoAPIKey.
func NewURLScanClient(apiKey string, options ...URLScanOption) *URLScanClient {
	c := &URLScanClient{
		baseURL:    defaultURLScanBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Name identifies this provider in logs and audit payloads.
func (c *URLScanClient) Name() string {
	return "urlscan.io"
}

type urlscanSubmitRequest struct {
	URL        string `json:"url"`
	Visibility string `json:"visibility"`
}

type urlscanSubmitResponse struct {
	UUID string `json:"uuid"`
}

// Submit sends the URL for analysis and returns the scan handle. Any
// transport, auth or HTTP-level failure is returned as an error; callers
// treat that as "primary unavailable", never as a verdict.
func (c *URLScanClient) Submit(ctx context.Context, target string) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}

	body, err := json.Marshal(urlscanSubmitRequest{URL: target, Visibility: "public"})
	if err != nil {
		return "", fmt.Errorf("failed to encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/scan/", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submission request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("submission rejected with status %d", resp.StatusCode)
	}

	var parsed urlscanSubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode submission response: %w", err)
	}
	if parsed.UUID == "" {
		return "", errors.New("submission response carries no scan ID")
	}

	logger.Debugf("Submitted %s to %s. Scan ID: %s", target, c.Name(), parsed.UUID)
	return parsed.UUID, nil
}

type urlscanResult struct {
	Task struct {
		UUID string `json:"uuid"`
	} `json:"task"`
	Verdicts struct {
		Overall struct {
			Malicious bool `json:"malicious"`
			Score     int  `json:"score"`
		} `json:"overall"`
		Engine struct {
			Malicious bool `json:"malicious"`
		} `json:"urlscan"`
		Community struct {
			Malicious bool `json:"malicious"`
		} `json:"community"`
	} `json:"verdicts"`
	Lists []string `json:"lists"`
}

// Report fetches the report for a previously submitted scan. It returns
// (nil, nil) while the report is still being produced; the result endpoint
// answers 404 until then. A response whose task ID does not match the handle
// is treated the same way.
func (c *URLScanClient) Report(ctx context.Context, handle string) (*PrimaryReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/result/"+handle+"/", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build report request: %w", err)
	}

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

	var parsed urlscanResult
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode report response: %w", err)
	}
	if parsed.Task.UUID != handle {
		logger.Warnf("Report for %s carries task ID %q. Treating as not ready.", handle, parsed.Task.UUID)
		return nil, nil
	}

	return &PrimaryReport{
		ScanID:             handle,
		Malicious:          parsed.Verdicts.Overall.Malicious,
		EngineMalicious:    parsed.Verdicts.Engine.Malicious,
		CommunityMalicious: parsed.Verdicts.Community.Malicious,
		Score:              parsed.Verdicts.Overall.Score,
		Blocklists:         parsed.Lists,
		Raw:                raw,
	}, nil
}
