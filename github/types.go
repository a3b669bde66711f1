package github

// ContentEntry is one item of the contents API: a file (with inline
// content when fetched individually) or a directory listing entry.
type ContentEntry struct {
	Type     string `json:"type"` // "file", "dir", "symlink", "submodule"
	Name     string `json:"name"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Size     int64  `json:"size"`
	Content  string `json:"content,omitempty"`
	Encoding string `json:"encoding,omitempty"`
}

// Contents is the response of GET /repos/{owner}/{repo}/contents/{path}.
// Exactly one of File and Entries is meaningful: GitHub answers with an
// object for a file and an array for a directory.
type Contents struct {
	File    *ContentEntry
	Entries []ContentEntry
}

// IsDir reports whether the path resolved to a directory.
func (c *Contents) IsDir() bool { return c.File == nil }

// PutContentsRequest creates or updates a file. SHA must be the current blob
// sha when updating and empty when creating.
type PutContentsRequest struct {
	Message string `json:"message"`
	Content string `json:"content"` // base64
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

// DeleteContentsRequest deletes a file whose current blob sha is SHA.
type DeleteContentsRequest struct {
	Message string `json:"message"`
	SHA     string `json:"sha"`
	Branch  string `json:"branch,omitempty"`
}

// ContentsCommit is the response of a contents write.
type ContentsCommit struct {
	Content *ContentEntry `json:"content"`
	Commit  struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

// Tree is a git tree object.
type Tree struct {
	SHA       string      `json:"sha"`
	Entries   []TreeEntry `json:"tree"`
	Truncated bool        `json:"truncated"`
}

// TreeEntry is a single entry in a git tree.
type TreeEntry struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"` // "blob", "tree", "commit"
	SHA  string `json:"sha"`
	Size int64  `json:"size"`
}

// Blob is a git blob object.
type Blob struct {
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
	Size     int64  `json:"size"`
}

// Repository is the subset of repository metadata gitpress reads.
type Repository struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	Description   string `json:"description"`
	DefaultBranch string `json:"default_branch"`
	Private       bool   `json:"private"`
	HTMLURL       string `json:"html_url"`
}

// CreateRepositoryRequest is the body of POST /user/repos.
type CreateRepositoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Private     bool   `json:"private"`
	AutoInit    bool   `json:"auto_init"`
}

// UpdateRepositoryRequest is the body of PATCH /repos/{owner}/{repo}.
type UpdateRepositoryRequest struct {
	Description *string `json:"description,omitempty"`
}

// User is the authenticated GitHub account.
type User struct {
	Login     string `json:"login"`
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}
