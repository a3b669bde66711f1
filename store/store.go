// Package store defines the document store contract gitpress keeps its
// content in: a tree of files addressed by path inside one repository, with
// sha-conditioned writes and deletes as the only concurrency primitive.
//
// GitHub is the production backend (NewGitHub). localstore provides a SQLite
// implementation with identical semantics for offline use and tests.
package store

import (
	"context"
	"errors"
	"fmt"
)

// EntryType distinguishes files from directories.
type EntryType string

const (
	TypeFile EntryType = "file"
	TypeDir  EntryType = "dir"
)

// File is a file's content together with the sha it was read at.
type File struct {
	Path    string
	Content []byte
	SHA     string
}

// Entry is one item of a directory listing.
type Entry struct {
	Name string
	Path string
	Type EntryType
	SHA  string
}

// TreeEntry is one blob or subtree of a recursive tree listing.
type TreeEntry struct {
	Path string
	Type EntryType
	SHA  string
}

// Result is what a path resolves to: exactly one of FileResult,
// DirectoryResult or NotFoundResult.
type Result interface {
	result()
}

// FileResult is returned when the path holds a file.
type FileResult struct {
	File File
}

// DirectoryResult is returned when the path is a directory.
type DirectoryResult struct {
	Path    string
	Entries []Entry
}

// NotFoundResult is returned when nothing exists at the path.
type NotFoundResult struct {
	Path string
}

func (FileResult) result()      {}
func (DirectoryResult) result() {}
func (NotFoundResult) result()  {}

// RepoInfo is repository-level metadata.
type RepoInfo struct {
	Owner         string
	Name          string
	Description   string
	DefaultBranch string
}

// Repository is one user's content repository. Every method is a remote
// round trip; implementations bound each call with a timeout.
type Repository interface {
	Owner() string
	Name() string

	// Fetch resolves path without treating absence as an error.
	Fetch(ctx context.Context, path string) (Result, error)

	// WriteFile creates path when expectedSHA is empty, failing with
	// ErrExists if a file is already there, or replaces it only when its
	// current sha equals expectedSHA, failing with ErrConflict otherwise.
	// It returns the new sha.
	WriteFile(ctx context.Context, path string, content []byte, message, expectedSHA string) (string, error)

	// DeleteFile removes path if its current sha equals expectedSHA.
	DeleteFile(ctx context.Context, path, expectedSHA, message string) error

	// ListTree returns every blob reachable from ref in one call.
	ListTree(ctx context.Context, ref string) ([]TreeEntry, error)

	// ReadBlob returns the content of the blob with the given sha.
	ReadBlob(ctx context.Context, sha string) ([]byte, error)

	// DefaultBranch names the branch reads and writes go to.
	DefaultBranch(ctx context.Context) (string, error)

	// Info returns repository metadata, or ErrNotFound if the repository
	// itself does not exist.
	Info(ctx context.Context) (RepoInfo, error)

	// Create creates the repository.
	Create(ctx context.Context, description string) error

	// SetDescription replaces the repository description.
	SetDescription(ctx context.Context, description string) error

	// RawURL is the public URL serving path's raw bytes on branch.
	RawURL(branch, path string) string
}

// Key scopes cache keys and log lines to one repository.
func Key(repo Repository) string {
	return repo.Owner() + ":" + repo.Name()
}

// ReadFile fetches path and requires it to be a file.
func ReadFile(ctx context.Context, repo Repository, path string) (File, error) {
	result, err := repo.Fetch(ctx, path)
	if err != nil {
		return File{}, err
	}
	switch r := result.(type) {
	case FileResult:
		return r.File, nil
	case DirectoryResult:
		return File{}, &Error{Op: "read", Path: path, Kind: ErrNotFound, Err: errors.New("path is a directory")}
	case NotFoundResult:
		return File{}, &Error{Op: "read", Path: path, Kind: ErrNotFound}
	default:
		return File{}, fmt.Errorf("store: read %s: unexpected result %T", path, result)
	}
}

// ListDirectory fetches path and requires it to be a directory.
func ListDirectory(ctx context.Context, repo Repository, path string) ([]Entry, error) {
	result, err := repo.Fetch(ctx, path)
	if err != nil {
		return nil, err
	}
	switch r := result.(type) {
	case DirectoryResult:
		return r.Entries, nil
	case FileResult:
		return nil, &Error{Op: "list", Path: path, Kind: ErrNotFound, Err: errors.New("path is a file")}
	case NotFoundResult:
		return nil, &Error{Op: "list", Path: path, Kind: ErrNotFound}
	default:
		return nil, fmt.Errorf("store: list %s: unexpected result %T", path, result)
	}
}
