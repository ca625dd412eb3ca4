// Package acquirer fetches a disposable snapshot of a remote repository
// into local scratch storage via a shallow, single-branch clone.
package acquirer

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"go.uber.org/zap"

	"github.com/Aravind0403/ServiceScope-v2/internal/domain"
	"github.com/Aravind0403/ServiceScope-v2/internal/repository"
)

var _ repository.SourceAcquirer = (*Acquirer)(nil)

const defaultBranch = "main"

// Acquirer clones repositories into a scratch directory.
type Acquirer struct {
	cloneDir string
	timeout  time.Duration
	logger   *zap.Logger
}

// New creates an Acquirer writing snapshots under cloneDir.
func New(cloneDir string, timeout time.Duration, logger *zap.Logger) *Acquirer {
	return &Acquirer{
		cloneDir: cloneDir,
		timeout:  timeout,
		logger:   logger,
	}
}

// Acquire performs a depth-1, single-branch clone of url at branch and
// resolves the checked-out commit. The clone is bounded by the configured
// timeout; on any failure the partial checkout is removed and the error is
// returned (fatal to the owning job, nothing downstream can run).
func (a *Acquirer) Acquire(ctx context.Context, url, branch string) (*domain.RepositorySnapshot, error) {
	if branch == "" {
		branch = defaultBranch
	}

	path, err := a.scratchPath()
	if err != nil {
		return nil, err
	}

	cloneCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	repo, err := gogit.PlainCloneContext(cloneCtx, path, false, &gogit.CloneOptions{
		URL:           url,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
		Depth:         1,
	})
	if err != nil {
		_ = os.RemoveAll(path)
		return nil, fmt.Errorf("acquirer: clone %s@%s: %w", url, branch, err)
	}

	head, err := repo.Head()
	if err != nil {
		_ = os.RemoveAll(path)
		return nil, fmt.Errorf("acquirer: resolve HEAD: %w", err)
	}

	fileCount, err := countPythonFiles(path)
	if err != nil {
		_ = os.RemoveAll(path)
		return nil, fmt.Errorf("acquirer: count files: %w", err)
	}

	a.logger.Info("Repository cloned",
		zap.String("url", url),
		zap.String("branch", branch),
		zap.String("commit", head.Hash().String()),
		zap.Int("python_files", fileCount),
	)

	return &domain.RepositorySnapshot{
		URL:        url,
		Branch:     branch,
		Path:       path,
		CommitHash: head.Hash().String(),
		FileCount:  fileCount,
	}, nil
}

// Cleanup removes the snapshot directory. Best-effort: a deletion error is
// logged and never surfaces to the job.
func (a *Acquirer) Cleanup(snapshot *domain.RepositorySnapshot) {
	if snapshot == nil || snapshot.Path == "" {
		return
	}
	if err := os.RemoveAll(snapshot.Path); err != nil {
		a.logger.Warn("Failed to remove repository snapshot",
			zap.String("path", snapshot.Path),
			zap.Error(err),
		)
	}
}

func (a *Acquirer) scratchPath() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("acquirer: random suffix: %w", err)
	}
	path := filepath.Join(a.cloneDir, "repo_"+hex.EncodeToString(buf))
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("acquirer: create scratch dir: %w", err)
	}
	return path, nil
}

func countPythonFiles(root string) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), ".py") {
			count++
		}
		return nil
	})
	return count, err
}
