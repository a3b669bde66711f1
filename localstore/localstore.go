// Package localstore implements store.Repository on SQLite so gitpress can
// run without GitHub. Blob shas are computed the way git computes them, and
// writes are conditioned on them exactly as the contents API does.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5/plumbing"
	_ "modernc.org/sqlite"

	"github.com/eringen/gitpress/store"
)

const defaultBranch = "main"

// DB holds any number of repositories in one SQLite database.
type DB struct {
	db      *sql.DB
	rawBase string

	// SQLite allows one writer at a time. Serializing writers here keeps a
	// read-then-write transaction from losing its snapshot to another writer.
	writeMu sync.Mutex
}

// Open opens (or creates) the database at path. rawBase prefixes the URLs
// returned by RawURL; the HTTP server mounts the raw file handler there.
func Open(path, rawBase string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	d := &DB{db: db, rawBase: strings.TrimRight(rawBase, "/")}
	if err := d.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) ensureSchema() error {
	_, err := d.db.Exec(`
CREATE TABLE IF NOT EXISTS repos (
    owner TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    default_branch TEXT NOT NULL DEFAULT 'main',
    PRIMARY KEY (owner, name)
);
CREATE TABLE IF NOT EXISTS files (
    owner TEXT NOT NULL,
    repo TEXT NOT NULL,
    path TEXT NOT NULL,
    content BLOB NOT NULL,
    sha TEXT NOT NULL,
    PRIMARY KEY (owner, repo, path)
);
CREATE INDEX IF NOT EXISTS idx_files_sha ON files(owner, repo, sha);
`)
	return err
}

// Repository returns a handle on owner/name. The repository need not exist
// yet; Create makes it.
func (d *DB) Repository(owner, name string) *Repository {
	return &Repository{db: d, owner: owner, name: name}
}

// BlobSHA is the git object id of a blob holding content.
func BlobSHA(content []byte) string {
	return plumbing.ComputeHash(plumbing.BlobObject, content).String()
}

// Repository is one repository inside a DB.
type Repository struct {
	db    *DB
	owner string
	name  string
}

var _ store.Repository = (*Repository)(nil)

func (r *Repository) Owner() string { return r.owner }

func (r *Repository) Name() string { return r.name }

func notFound(op, path string) error {
	return &store.Error{Op: op, Path: path, Kind: store.ErrNotFound}
}

func (r *Repository) exists(ctx context.Context, q querier) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM repos WHERE owner = ? AND name = ?`, r.owner, r.name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func cleanPath(path string) string {
	return strings.Trim(path, "/")
}

func (r *Repository) Fetch(ctx context.Context, path string) (store.Result, error) {
	path = cleanPath(path)
	ok, err := r.exists(ctx, r.db.db)
	if err != nil {
		return nil, &store.Error{Op: "fetch", Path: path, Err: err}
	}
	if !ok {
		return nil, notFound("fetch", path)
	}

	var content []byte
	var sha string
	err = r.db.db.QueryRowContext(ctx,
		`SELECT content, sha FROM files WHERE owner = ? AND repo = ? AND path = ?`,
		r.owner, r.name, path).Scan(&content, &sha)
	switch {
	case err == nil:
		return store.FileResult{File: store.File{Path: path, Content: content, SHA: sha}}, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, &store.Error{Op: "fetch", Path: path, Err: err}
	}

	entries, err := r.children(ctx, path)
	if err != nil {
		return nil, &store.Error{Op: "fetch", Path: path, Err: err}
	}
	if len(entries) == 0 && path != "" {
		return store.NotFoundResult{Path: path}, nil
	}
	return store.DirectoryResult{Path: path, Entries: entries}, nil
}

// children lists the immediate children of dir. Directories exist only as
// prefixes of file paths, as in git.
func (r *Repository) children(ctx context.Context, dir string) ([]store.Entry, error) {
	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}
	rows, err := r.db.db.QueryContext(ctx,
		`SELECT path, sha FROM files WHERE owner = ? AND repo = ? AND substr(path, 1, ?) = ? ORDER BY path`,
		r.owner, r.name, len(prefix), prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []store.Entry
	subdirs := map[string][]string{}
	for rows.Next() {
		var path, sha string
		if err := rows.Scan(&path, &sha); err != nil {
			return nil, err
		}
		rest := strings.TrimPrefix(path, prefix)
		name, below, nested := strings.Cut(rest, "/")
		if nested {
			subdirs[name] = append(subdirs[name], below+":"+sha)
			continue
		}
		entries = append(entries, store.Entry{Name: name, Path: path, Type: store.TypeFile, SHA: sha})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for name, members := range subdirs {
		entries = append(entries, store.Entry{
			Name: name,
			Path: prefix + name,
			Type: store.TypeDir,
			SHA:  treeSHA(members),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// treeSHA derives a stable id for a directory from its members. It changes
// whenever any file below the directory changes.
func treeSHA(members []string) string {
	sort.Strings(members)
	return plumbing.ComputeHash(plumbing.TreeObject, []byte(strings.Join(members, "\n"))).String()
}

func (r *Repository) WriteFile(ctx context.Context, path string, content []byte, message, expectedSHA string) (string, error) {
	path = cleanPath(path)
	if path == "" {
		return "", &store.Error{Op: "write", Err: errors.New("empty path")}
	}
	sha := BlobSHA(content)
	err := r.inTx(ctx, "write", path, func(tx *sql.Tx) error {
		current, err := currentSHA(ctx, tx, r, path)
		if err != nil {
			return err
		}
		switch {
		case expectedSHA == "" && current != "":
			return &store.Error{Op: "write", Path: path, Kind: store.ErrExists}
		case expectedSHA != "" && current == "":
			return &store.Error{Op: "write", Path: path, Kind: store.ErrNotFound}
		case expectedSHA != "" && current != expectedSHA:
			return &store.Error{Op: "write", Path: path, Kind: store.ErrConflict,
				Err: fmt.Errorf("%s is at %s but expected %s", path, current, expectedSHA)}
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO files (owner, repo, path, content, sha) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(owner, repo, path) DO UPDATE SET content = excluded.content, sha = excluded.sha`,
			r.owner, r.name, path, content, sha)
		return err
	})
	if err != nil {
		return "", err
	}
	return sha, nil
}

func (r *Repository) DeleteFile(ctx context.Context, path, expectedSHA, message string) error {
	path = cleanPath(path)
	return r.inTx(ctx, "delete", path, func(tx *sql.Tx) error {
		current, err := currentSHA(ctx, tx, r, path)
		if err != nil {
			return err
		}
		switch {
		case current == "":
			return &store.Error{Op: "delete", Path: path, Kind: store.ErrNotFound}
		case current != expectedSHA:
			return &store.Error{Op: "delete", Path: path, Kind: store.ErrConflict,
				Err: fmt.Errorf("%s is at %s but expected %s", path, current, expectedSHA)}
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM files WHERE owner = ? AND repo = ? AND path = ?`, r.owner, r.name, path)
		return err
	})
}

// inTx runs fn in a write transaction against an existing repository.
func (r *Repository) inTx(ctx context.Context, op, path string, fn func(tx *sql.Tx) error) error {
	r.db.writeMu.Lock()
	defer r.db.writeMu.Unlock()

	tx, err := r.db.db.BeginTx(ctx, nil)
	if err != nil {
		return &store.Error{Op: op, Path: path, Err: err}
	}
	defer tx.Rollback()

	ok, err := r.exists(ctx, tx)
	if err != nil {
		return &store.Error{Op: op, Path: path, Err: err}
	}
	if !ok {
		return notFound(op, path)
	}
	if err := fn(tx); err != nil {
		var storeError *store.Error
		if errors.As(err, &storeError) {
			return err
		}
		return &store.Error{Op: op, Path: path, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &store.Error{Op: op, Path: path, Err: err}
	}
	return nil
}

func currentSHA(ctx context.Context, q querier, r *Repository, path string) (string, error) {
	var sha string
	err := q.QueryRowContext(ctx, `SELECT sha FROM files WHERE owner = ? AND repo = ? AND path = ?`, r.owner, r.name, path).Scan(&sha)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return sha, err
}

func (r *Repository) ListTree(ctx context.Context, ref string) ([]store.TreeEntry, error) {
	info, err := r.Info(ctx)
	if err != nil {
		return nil, err
	}
	if ref != "" && ref != info.DefaultBranch {
		return nil, notFound("tree", ref)
	}

	rows, err := r.db.db.QueryContext(ctx,
		`SELECT path, sha FROM files WHERE owner = ? AND repo = ? ORDER BY path`, r.owner, r.name)
	if err != nil {
		return nil, &store.Error{Op: "tree", Path: ref, Err: err}
	}
	defer rows.Close()

	var entries []store.TreeEntry
	dirs := map[string][]string{}
	for rows.Next() {
		var path, sha string
		if err := rows.Scan(&path, &sha); err != nil {
			return nil, &store.Error{Op: "tree", Path: ref, Err: err}
		}
		entries = append(entries, store.TreeEntry{Path: path, Type: store.TypeFile, SHA: sha})
		for dir := filepath.ToSlash(filepath.Dir(path)); dir != "."; dir = filepath.ToSlash(filepath.Dir(dir)) {
			dirs[dir] = append(dirs[dir], strings.TrimPrefix(path, dir+"/")+":"+sha)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &store.Error{Op: "tree", Path: ref, Err: err}
	}
	for dir, members := range dirs {
		entries = append(entries, store.TreeEntry{Path: dir, Type: store.TypeDir, SHA: treeSHA(members)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func (r *Repository) ReadBlob(ctx context.Context, sha string) ([]byte, error) {
	var content []byte
	err := r.db.db.QueryRowContext(ctx,
		`SELECT content FROM files WHERE owner = ? AND repo = ? AND sha = ? LIMIT 1`,
		r.owner, r.name, sha).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("blob", sha)
	}
	if err != nil {
		return nil, &store.Error{Op: "blob", Path: sha, Err: err}
	}
	return content, nil
}

func (r *Repository) DefaultBranch(ctx context.Context) (string, error) {
	info, err := r.Info(ctx)
	if err != nil {
		return "", err
	}
	return info.DefaultBranch, nil
}

func (r *Repository) Info(ctx context.Context) (store.RepoInfo, error) {
	info := store.RepoInfo{Owner: r.owner, Name: r.name}
	err := r.db.db.QueryRowContext(ctx,
		`SELECT description, default_branch FROM repos WHERE owner = ? AND name = ?`,
		r.owner, r.name).Scan(&info.Description, &info.DefaultBranch)
	if errors.Is(err, sql.ErrNoRows) {
		return store.RepoInfo{}, notFound("info", "")
	}
	if err != nil {
		return store.RepoInfo{}, &store.Error{Op: "info", Err: err}
	}
	return info, nil
}

// Create makes the repository with an initial README, mirroring GitHub's
// auto_init. ErrExists if it is already there.
func (r *Repository) Create(ctx context.Context, description string) error {
	r.db.writeMu.Lock()
	defer r.db.writeMu.Unlock()

	tx, err := r.db.db.BeginTx(ctx, nil)
	if err != nil {
		return &store.Error{Op: "create", Err: err}
	}
	defer tx.Rollback()

	ok, err := r.exists(ctx, tx)
	if err != nil {
		return &store.Error{Op: "create", Err: err}
	}
	if ok {
		return &store.Error{Op: "create", Kind: store.ErrExists}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO repos (owner, name, description, default_branch) VALUES (?, ?, ?, ?)`,
		r.owner, r.name, description, defaultBranch); err != nil {
		return &store.Error{Op: "create", Err: err}
	}
	readme := []byte("# " + r.name + "\n")
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO files (owner, repo, path, content, sha) VALUES (?, ?, 'README.md', ?, ?)`,
		r.owner, r.name, readme, BlobSHA(readme)); err != nil {
		return &store.Error{Op: "create", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &store.Error{Op: "create", Err: err}
	}
	return nil
}

func (r *Repository) SetDescription(ctx context.Context, description string) error {
	result, err := r.db.db.ExecContext(ctx,
		`UPDATE repos SET description = ? WHERE owner = ? AND name = ?`, description, r.owner, r.name)
	if err != nil {
		return &store.Error{Op: "describe", Err: err}
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return notFound("describe", "")
	}
	return nil
}

func (r *Repository) RawURL(branch, path string) string {
	segments := []string{r.owner, r.name, branch}
	segments = append(segments, strings.Split(cleanPath(path), "/")...)
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return r.db.rawBase + "/" + strings.Join(segments, "/")
}
