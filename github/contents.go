package github

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

func contentsPath(owner, repo, filePath string) string {
	segments := strings.Split(strings.Trim(filePath, "/"), "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return fmt.Sprintf("/repos/%s/%s/contents/%s", url.PathEscape(owner), url.PathEscape(repo), strings.Join(segments, "/"))
}

// GetContents fetches a file or directory. ref may be empty for the default
// branch.
func (client *Client) GetContents(ctx context.Context, owner, repo, filePath, ref string) (*Contents, error) {
	path := contentsPath(owner, repo, filePath)
	if ref != "" {
		path += "?ref=" + url.QueryEscape(ref)
	}
	body, _, err := client.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("getting contents %s in %s/%s: %w", filePath, owner, repo, err)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var entries []ContentEntry
		if err := decode(trimmed, &entries); err != nil {
			return nil, err
		}
		return &Contents{Entries: entries}, nil
	}
	var file ContentEntry
	if err := decode(trimmed, &file); err != nil {
		return nil, err
	}
	if file.Type == "dir" {
		return &Contents{Entries: []ContentEntry{}}, nil
	}
	return &Contents{File: &file}, nil
}

// PutContents creates or updates a file.
func (client *Client) PutContents(ctx context.Context, owner, repo, filePath string, request PutContentsRequest) (*ContentsCommit, error) {
	var result ContentsCommit
	if err := client.send(ctx, http.MethodPut, contentsPath(owner, repo, filePath), request, &result); err != nil {
		return nil, fmt.Errorf("writing %s in %s/%s: %w", filePath, owner, repo, err)
	}
	return &result, nil
}

// DeleteContents deletes a file.
func (client *Client) DeleteContents(ctx context.Context, owner, repo, filePath string, request DeleteContentsRequest) error {
	if err := client.send(ctx, http.MethodDelete, contentsPath(owner, repo, filePath), request, nil); err != nil {
		return fmt.Errorf("deleting %s in %s/%s: %w", filePath, owner, repo, err)
	}
	return nil
}
