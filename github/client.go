package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// apiVersion pins the REST API version header.
const apiVersion = "2022-11-28"

const defaultBaseURL = "https://api.github.com"

// maxResponseSize bounds response body reads.
const maxResponseSize int64 = 64 << 20

// Config holds configuration for a Client.
type Config struct {
	// BaseURL defaults to https://api.github.com. Must use HTTPS.
	BaseURL string

	// Token is a personal access or OAuth token. Empty means anonymous
	// access, which GitHub allows for public reads at a lower rate limit.
	Token string

	// HTTPClient defaults to a client with a 30 second timeout.
	HTTPClient *http.Client

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Client is a GitHub REST API client bound to one credential.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	etags      *etagCache
	logger     *slog.Logger
}

// NewClient creates a Client from config.
func NewClient(config Config) (*Client, error) {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("github: API client requires HTTPS (got %q)", baseURL)
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    baseURL,
		token:      config.Token,
		httpClient: httpClient,
		etags:      newETagCache(),
		logger:     logger,
	}, nil
}

// Authenticated reports whether the client carries a token.
func (client *Client) Authenticated() bool {
	return client.token != ""
}

// do executes a request against path (relative to the base URL) and returns
// the response body. Non-2xx responses become *APIError.
func (client *Client) do(ctx context.Context, method, path string, requestBody any) ([]byte, http.Header, error) {
	url := client.baseURL + path

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, nil, fmt.Errorf("github: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, nil, fmt.Errorf("github: creating request: %w", err)
	}
	if client.token != "" {
		request.Header.Set("Authorization", "Bearer "+client.token)
	}
	request.Header.Set("Accept", "application/vnd.github+json")
	request.Header.Set("X-GitHub-Api-Version", apiVersion)
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodGet {
		if etag := client.etags.get(url); etag != "" {
			request.Header.Set("If-None-Match", etag)
		}
	}

	response, err := client.httpClient.Do(request)
	if err != nil {
		return nil, nil, fmt.Errorf("github: %s %s: %w", method, path, err)
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNotModified {
		if cached := client.etags.body(url); cached != nil {
			return cached, response.Header, nil
		}
	}

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
	if err != nil {
		return nil, nil, fmt.Errorf("github: reading response body: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		apiError := parseAPIError(response.StatusCode, response.Header, body)
		if apiError.rateLimited() {
			client.logger.Warn("github rate limit hit",
				"method", method,
				"path", path,
				"status", response.StatusCode,
				"reset", apiError.RateLimitReset,
			)
		}
		return nil, nil, apiError
	}

	if method == http.MethodGet {
		client.etags.put(url, response.Header.Get("ETag"), body)
	}
	return body, response.Header, nil
}

func (client *Client) get(ctx context.Context, path string, result any) error {
	body, _, err := client.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return decode(body, result)
}

func (client *Client) send(ctx context.Context, method, path string, requestBody any, result any) error {
	body, _, err := client.do(ctx, method, path, requestBody)
	if err != nil {
		return err
	}
	if result == nil || len(body) == 0 {
		return nil
	}
	return decode(body, result)
}

func decode(body []byte, result any) error {
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("github: decoding response: %w", err)
	}
	return nil
}
