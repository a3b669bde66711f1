package github

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"testing"
	"time"
)

func newTestClient(t *testing.T, server *httptest.Server, token string) *Client {
	t.Helper()
	client, err := NewClient(Config{
		BaseURL:    server.URL,
		Token:      token,
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestNewClient_HTTPSEnforcement(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "http://api.github.com", Token: "test"})
	if err == nil {
		t.Fatal("expected error for HTTP URL")
	}
	if got := err.Error(); got != `github: API client requires HTTPS (got "http://api.github.com")` {
		t.Errorf("unexpected error: %s", got)
	}
}

func TestClient_Headers(t *testing.T) {
	var auth, accept, version string
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		accept = r.Header.Get("Accept")
		version = r.Header.Get("X-GitHub-Api-Version")
		w.Write([]byte(`{"login":"alice","id":7}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, "test-token")
	user, err := client.AuthenticatedUser(context.Background())
	if err != nil {
		t.Fatalf("AuthenticatedUser: %v", err)
	}
	if user.Login != "alice" {
		t.Errorf("Login = %q, want alice", user.Login)
	}
	if auth != "Bearer test-token" {
		t.Errorf("Authorization = %q, want %q", auth, "Bearer test-token")
	}
	if accept != "application/vnd.github+json" {
		t.Errorf("Accept = %q", accept)
	}
	if version != apiVersion {
		t.Errorf("X-GitHub-Api-Version = %q, want %q", version, apiVersion)
	}
}

func TestClient_AnonymousSendsNoAuthorization(t *testing.T) {
	var auth string
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Write([]byte(`{"name":"notes","default_branch":"main"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, "")
	if client.Authenticated() {
		t.Fatal("client without token reports authenticated")
	}
	if _, err := client.GetRepository(context.Background(), "alice", "notes"); err != nil {
		t.Fatalf("GetRepository: %v", err)
	}
	if auth != "" {
		t.Errorf("Authorization = %q, want empty", auth)
	}
}

func TestClient_ErrorClassification(t *testing.T) {
	reset := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	tests := []struct {
		name        string
		status      int
		headers     map[string]string
		message     string
		notFound    bool
		conflict    bool
		rateLimited bool
		missingSHA  bool
		server      bool
	}{
		{name: "not found", status: 404, message: "Not Found", notFound: true},
		{name: "conflict", status: 409, message: "is at abc but expected def", conflict: true},
		{name: "secondary limit", status: 429, message: "slow down", rateLimited: true},
		{
			name:        "primary limit headers",
			status:      403,
			headers:     map[string]string{"X-RateLimit-Remaining": "0", "X-RateLimit-Reset": strconv.FormatInt(reset.Unix(), 10)},
			message:     "forbidden",
			rateLimited: true,
		},
		{name: "plain forbidden", status: 403, headers: map[string]string{"X-RateLimit-Remaining": "4000"}, message: "Resource not accessible"},
		{name: "missing sha", status: 422, message: `Invalid request. "sha" wasn't supplied.`, missingSHA: true},
		{name: "server", status: 502, message: "Bad Gateway", server: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.headers {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(map[string]string{"message": tt.message})
			}))
			defer server.Close()

			client := newTestClient(t, server, "test-token")
			_, err := client.GetRepository(context.Background(), "alice", "notes")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := IsNotFound(err); got != tt.notFound {
				t.Errorf("IsNotFound = %v, want %v", got, tt.notFound)
			}
			if got := IsConflict(err); got != tt.conflict {
				t.Errorf("IsConflict = %v, want %v", got, tt.conflict)
			}
			if got := IsRateLimited(err); got != tt.rateLimited {
				t.Errorf("IsRateLimited = %v, want %v", got, tt.rateLimited)
			}
			if got := IsMissingSHA(err); got != tt.missingSHA {
				t.Errorf("IsMissingSHA = %v, want %v", got, tt.missingSHA)
			}
			if got := IsServerError(err); got != tt.server {
				t.Errorf("IsServerError = %v, want %v", got, tt.server)
			}
		})
	}
}

func TestClient_RateLimitResetParsed(t *testing.T) {
	reset := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"API rate limit exceeded"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, "test-token")
	_, err := client.AuthenticatedUser(context.Background())

	var inner *APIError
	if !errors.As(err, &inner) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if !inner.RateLimitReset.Equal(reset) {
		t.Errorf("RateLimitReset = %v, want %v", inner.RateLimitReset, reset)
	}
	if inner.RateLimitRemaining != 0 {
		t.Errorf("RateLimitRemaining = %d, want 0", inner.RateLimitRemaining)
	}
}

func TestClient_ETagConditionalGet(t *testing.T) {
	requests := 0
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Header.Get("If-None-Match") == `"etag-1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"etag-1"`)
		w.Write([]byte(`{"name":"notes","description":"cached"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, "test-token")
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		repo, err := client.GetRepository(ctx, "alice", "notes")
		if err != nil {
			t.Fatalf("GetRepository #%d: %v", i+1, err)
		}
		if repo.Description != "cached" {
			t.Errorf("Description #%d = %q, want cached", i+1, repo.Description)
		}
	}
	if requests != 2 {
		t.Errorf("requests = %d, want 2", requests)
	}
}

func TestClient_ValidationErrorDetails(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantErrors []string
		exists     bool
	}{
		{
			name:       "repository name taken",
			body:       `{"message":"Repository creation failed.","errors":[{"resource":"Repository","code":"custom","field":"name","message":"name already exists on this account"}]}`,
			wantErrors: []string{"name already exists on this account"},
			exists:     true,
		},
		{
			name:       "code only",
			body:       `{"message":"Validation Failed","errors":[{"resource":"Repository","code":"invalid","field":"name"}]}`,
			wantErrors: []string{"invalid"},
		},
		{
			name:       "string entries",
			body:       `{"message":"Validation Failed","errors":["description is too long"]}`,
			wantErrors: []string{"description is too long"},
		},
		{
			name: "missing sha",
			body: `{"message":"Invalid request. \"sha\" wasn't supplied."}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnprocessableEntity)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := newTestClient(t, server, "test-token")
			_, err := client.CreateRepository(context.Background(), CreateRepositoryRequest{Name: "notes"})
			var apiError *APIError
			if !errors.As(err, &apiError) {
				t.Fatalf("err = %v, want *APIError", err)
			}
			if !slices.Equal(apiError.Errors, tt.wantErrors) {
				t.Errorf("Errors = %q, want %q", apiError.Errors, tt.wantErrors)
			}
			if got := IsAlreadyExists(err); got != tt.exists {
				t.Errorf("IsAlreadyExists = %v, want %v", got, tt.exists)
			}
			if tt.exists && IsMissingSHA(err) {
				t.Error("IsMissingSHA = true for a repository name clash")
			}
		})
	}
}
