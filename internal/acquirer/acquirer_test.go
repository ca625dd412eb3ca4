package acquirer_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"github.com/Aravind0403/ServiceScope-v2/internal/acquirer"
)

// initFixtureRepo creates a local git repository with two Python files and
// one non-Python file, committed on the default branch (master).
func initFixtureRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init fixture repo: %v", err)
	}

	files := map[string]string{
		"service_a/app.py":    "import requests\n",
		"service_b/client.py": "import httpx\n",
		"README.md":           "fixture\n",
	}
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	if _, err := wt.Add("."); err != nil {
		t.Fatalf("add: %v", err)
	}
	_, err = wt.Commit("initial", &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  "fixture",
			Email: "fixture@example.com",
			When:  time.Now(),
		},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	return dir
}

func newTestAcquirer(t *testing.T) *acquirer.Acquirer {
	t.Helper()
	return acquirer.New(t.TempDir(), 30*time.Second, zap.NewNop())
}

// Test: cloning a local fixture produces a snapshot with resolved commit
// and Python file count.
func TestAcquire_LocalClone(t *testing.T) {
	fixture := initFixtureRepo(t)
	a := newTestAcquirer(t)

	snapshot, err := a.Acquire(context.Background(), fixture, "master")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer a.Cleanup(snapshot)

	if snapshot.Path == "" {
		t.Fatal("expected snapshot path")
	}
	if _, err := os.Stat(filepath.Join(snapshot.Path, "service_a", "app.py")); err != nil {
		t.Errorf("expected cloned file: %v", err)
	}
	if len(snapshot.CommitHash) != 40 {
		t.Errorf("expected full commit hash, got %q", snapshot.CommitHash)
	}
	if snapshot.FileCount != 2 {
		t.Errorf("expected 2 python files, got %d", snapshot.FileCount)
	}
	if snapshot.Branch != "master" {
		t.Errorf("expected branch master, got %s", snapshot.Branch)
	}
}

// Test: a nonexistent branch fails the clone and leaves no scratch dir.
func TestAcquire_UnknownBranch(t *testing.T) {
	fixture := initFixtureRepo(t)
	scratch := t.TempDir()
	a := acquirer.New(scratch, 30*time.Second, zap.NewNop())

	_, err := a.Acquire(context.Background(), fixture, "does-not-exist")
	if err == nil {
		t.Fatal("expected error")
	}

	entries, readErr := os.ReadDir(scratch)
	if readErr != nil {
		t.Fatalf("read scratch dir: %v", readErr)
	}
	if len(entries) != 0 {
		t.Errorf("expected partial checkout removed, found %d entries", len(entries))
	}
}

// Test: an unreachable repository URL fails the clone.
func TestAcquire_BadURL(t *testing.T) {
	a := newTestAcquirer(t)

	_, err := a.Acquire(context.Background(), filepath.Join(t.TempDir(), "nope"), "master")
	if err == nil {
		t.Fatal("expected error")
	}
}

// Test: Cleanup removes the snapshot directory and tolerates nil input.
func TestCleanup(t *testing.T) {
	fixture := initFixtureRepo(t)
	a := newTestAcquirer(t)

	snapshot, err := a.Acquire(context.Background(), fixture, "master")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a.Cleanup(snapshot)
	if _, err := os.Stat(snapshot.Path); !os.IsNotExist(err) {
		t.Errorf("expected snapshot removed, stat err: %v", err)
	}

	// Nil and empty snapshots are no-ops.
	a.Cleanup(nil)
}
