package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/docsmcp/internal/config"
	docserrors "github.com/Aman-CERP/docsmcp/internal/errors"
)

// GitRunner runs git with args in dir ("" for the current directory).
type GitRunner func(ctx context.Context, dir string, args ...string) error

// ExecGit runs the git binary.
func ExecGit(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("git %s: %w", args[0], err)
		}
		return fmt.Errorf("git %s: %w: %s", args[0], err, msg)
	}
	return nil
}

// GitFetcher clones or updates git projects below ReposDir.
type GitFetcher struct {
	ReposDir string
	Run      GitRunner
	Retry    docserrors.RetryConfig
	Logger   *slog.Logger
}

// Fetch makes a shallow clone of p into ReposDir/p.Name, or pulls when a
// clone already exists. Returns the checkout directory.
func (g *GitFetcher) Fetch(ctx context.Context, p config.ProjectConfig) (string, error) {
	dir := filepath.Join(g.ReposDir, p.Name)
	run := g.Run
	if run == nil {
		run = ExecGit
	}
	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}

	retry := g.Retry
	retry.ShouldRetry = func(err error) bool {
		return !errors.Is(err, exec.ErrNotFound) && !errors.Is(err, context.Canceled) &&
			!errors.Is(err, context.DeadlineExceeded)
	}

	_, statErr := os.Stat(filepath.Join(dir, ".git"))
	exists := statErr == nil

	err := docserrors.Retry(ctx, retry, func() error {
		if exists {
			logger.Info("git_pull", slog.String("project", p.Name), slog.String("dir", dir))
			return run(ctx, dir, "pull", "--ff-only")
		}

		logger.Info("git_clone", slog.String("project", p.Name), slog.String("url", p.URL))
		// A failed attempt can leave a partial checkout behind.
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
		if err := os.MkdirAll(g.ReposDir, 0o755); err != nil {
			return err
		}
		args := []string{"clone", "--depth", "1"}
		if p.Branch != "" {
			args = append(args, "--branch", p.Branch)
		}
		args = append(args, p.URL, dir)
		return run(ctx, "", args...)
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", docserrors.New(docserrors.ErrCodeSourceFetch,
			fmt.Sprintf("fetch project %q", p.Name), err).
			WithDetail("url", p.URL)
	}
	return dir, nil
}
