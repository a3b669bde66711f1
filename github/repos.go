package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// GetRepository fetches repository metadata.
func (client *Client) GetRepository(ctx context.Context, owner, repo string) (*Repository, error) {
	var result Repository
	path := fmt.Sprintf("/repos/%s/%s", url.PathEscape(owner), url.PathEscape(repo))
	if err := client.get(ctx, path, &result); err != nil {
		return nil, fmt.Errorf("getting repository %s/%s: %w", owner, repo, err)
	}
	return &result, nil
}

// CreateRepository creates a repository owned by the authenticated user.
func (client *Client) CreateRepository(ctx context.Context, request CreateRepositoryRequest) (*Repository, error) {
	var result Repository
	if err := client.send(ctx, http.MethodPost, "/user/repos", request, &result); err != nil {
		return nil, fmt.Errorf("creating repository %s: %w", request.Name, err)
	}
	return &result, nil
}

// UpdateRepository patches repository metadata.
func (client *Client) UpdateRepository(ctx context.Context, owner, repo string, request UpdateRepositoryRequest) (*Repository, error) {
	var result Repository
	path := fmt.Sprintf("/repos/%s/%s", url.PathEscape(owner), url.PathEscape(repo))
	if err := client.send(ctx, http.MethodPatch, path, request, &result); err != nil {
		return nil, fmt.Errorf("updating repository %s/%s: %w", owner, repo, err)
	}
	return &result, nil
}

// AuthenticatedUser returns the account the token belongs to.
func (client *Client) AuthenticatedUser(ctx context.Context) (*User, error) {
	var user User
	if err := client.get(ctx, "/user", &user); err != nil {
		return nil, fmt.Errorf("getting authenticated user: %w", err)
	}
	return &user, nil
}
