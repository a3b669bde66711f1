package content

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/eringen/gitpress/clock"
	"github.com/eringen/gitpress/localstore"
	"github.com/eringen/gitpress/retry"
	"github.com/eringen/gitpress/store"
)

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

// instantClock fires backoff timers immediately.
type instantClock struct{}

func (instantClock) Now() time.Time { return fixedNow }

func (instantClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- fixedNow
	return ch
}

// faultyRepo wraps a store.Repository and lets tests inject failures and
// interleave concurrent writers.
type faultyRepo struct {
	store.Repository

	mu           sync.Mutex
	beforeWrite  func(path string) error
	beforeDelete func(path string) error
	readErr      error
	treeErr      error
	writes       map[string]int
	deletes      map[string]int
	fetches      int
}

func newFaultyRepo(repo store.Repository) *faultyRepo {
	return &faultyRepo{Repository: repo, writes: map[string]int{}, deletes: map[string]int{}}
}

func (f *faultyRepo) setReadErr(err error) {
	f.mu.Lock()
	f.readErr = err
	f.mu.Unlock()
}

func (f *faultyRepo) writeCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes[path]
}

func (f *faultyRepo) totalWrites() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.writes {
		n += c
	}
	return n
}

func (f *faultyRepo) Fetch(ctx context.Context, path string) (store.Result, error) {
	f.mu.Lock()
	f.fetches++
	err := f.readErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.Repository.Fetch(ctx, path)
}

func (f *faultyRepo) ListTree(ctx context.Context, ref string) ([]store.TreeEntry, error) {
	f.mu.Lock()
	err := f.treeErr
	if err == nil {
		err = f.readErr
	}
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.Repository.ListTree(ctx, ref)
}

func (f *faultyRepo) ReadBlob(ctx context.Context, sha string) ([]byte, error) {
	f.mu.Lock()
	err := f.readErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.Repository.ReadBlob(ctx, sha)
}

func (f *faultyRepo) WriteFile(ctx context.Context, path string, content []byte, message, expectedSHA string) (string, error) {
	f.mu.Lock()
	f.writes[path]++
	hook := f.beforeWrite
	f.mu.Unlock()
	if hook != nil {
		if err := hook(path); err != nil {
			return "", err
		}
	}
	return f.Repository.WriteFile(ctx, path, content, message, expectedSHA)
}

func (f *faultyRepo) DeleteFile(ctx context.Context, path, expectedSHA, message string) error {
	f.mu.Lock()
	f.deletes[path]++
	hook := f.beforeDelete
	f.mu.Unlock()
	if hook != nil {
		if err := hook(path); err != nil {
			return err
		}
	}
	return f.Repository.DeleteFile(ctx, path, expectedSHA, message)
}

type testEnv struct {
	service *Service
	clock   *clock.FakeClock
	db      *localstore.DB
	local   *localstore.Repository
	repo    *faultyRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := localstore.Open(filepath.Join(t.TempDir(), "gitpress.db"), "http://localhost:3000/raw")
	if err != nil {
		t.Fatalf("localstore.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	local := db.Repository("alice", "gitpress-content")
	clk := clock.Fake(fixedNow)
	return &testEnv{
		service: newTestService(clk),
		clock:   clk,
		db:      db,
		local:   local,
		repo:    newFaultyRepo(local),
	}
}

func newTestService(clk clock.Clock) *Service {
	return New(Config{
		Clock:  clk,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Retry: retry.Policy{
			Clock:  instantClock{},
			Jitter: func(time.Duration) time.Duration { return 0 },
		},
	})
}

// bootstrap prepares the repository so later write counts only reflect the
// operation under test.
func (e *testEnv) bootstrap(t *testing.T) {
	t.Helper()
	if err := e.service.EnsureStructure(context.Background(), e.repo); err != nil {
		t.Fatalf("EnsureStructure: %v", err)
	}
	e.repo.mu.Lock()
	e.repo.writes = map[string]int{}
	e.repo.mu.Unlock()
}

func (e *testEnv) readFile(t *testing.T, path string) string {
	t.Helper()
	file, err := store.ReadFile(context.Background(), e.local, path)
	if err != nil {
		t.Fatalf("ReadFile(%s): %v", path, err)
	}
	return string(file.Content)
}

func (e *testEnv) exists(t *testing.T, path string) bool {
	t.Helper()
	result, err := e.local.Fetch(context.Background(), path)
	if err != nil {
		t.Fatalf("Fetch(%s): %v", path, err)
	}
	_, ok := result.(store.FileResult)
	return ok
}
