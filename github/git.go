package github

import (
	"context"
	"fmt"
	"net/url"
)

// GetTree fetches the tree for ref (a branch name or tree sha). With
// recursive set, every blob in the repository is returned in one response
// unless GitHub marks it Truncated.
func (client *Client) GetTree(ctx context.Context, owner, repo, ref string, recursive bool) (*Tree, error) {
	path := fmt.Sprintf("/repos/%s/%s/git/trees/%s", url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(ref))
	if recursive {
		path += "?recursive=1"
	}
	var tree Tree
	if err := client.get(ctx, path, &tree); err != nil {
		return nil, fmt.Errorf("getting tree %s in %s/%s: %w", ref, owner, repo, err)
	}
	return &tree, nil
}

// GetBlob fetches a blob by sha.
func (client *Client) GetBlob(ctx context.Context, owner, repo, sha string) (*Blob, error) {
	path := fmt.Sprintf("/repos/%s/%s/git/blobs/%s", url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(sha))
	var blob Blob
	if err := client.get(ctx, path, &blob); err != nil {
		return nil, fmt.Errorf("getting blob %s in %s/%s: %w", sha, owner, repo, err)
	}
	return &blob, nil
}
