package kittify

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

func openRepo(root string) (*git.Repository, error) {
	return git.PlainOpenWithOptions(root, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
}

// IsGitRepo reports whether root is inside a git checkout (main or linked
// worktree).
func IsGitRepo(root string) bool {
	_, err := openRepo(root)
	return err == nil
}

// CurrentBranch returns the short branch name checked out at root, or "" for
// a detached or unborn HEAD.
func CurrentBranch(root string) string {
	repo, err := openRepo(root)
	if err != nil {
		return ""
	}
	ref, err := repo.Head()
	if err != nil {
		return ""
	}
	if !ref.Name().IsBranch() {
		return ""
	}
	return ref.Name().Short()
}

// HooksDir returns the directory git runs hooks from for the checkout at
// root. Linked worktrees share the hooks of their common git dir, and
// core.hooksPath overrides both.
func HooksDir(root string) (string, error) {
	gitDir, err := findGitDir(root)
	if err != nil {
		return "", err
	}
	commonDir := resolveCommonDir(gitDir)

	if repo, err := openRepo(root); err == nil {
		if cfg, err := repo.Config(); err == nil && cfg.Raw != nil {
			if hp := cfg.Raw.Section("core").Options.Get("hooksPath"); hp != "" {
				if !filepath.IsAbs(hp) {
					hp = filepath.Join(root, hp)
				}
				return hp, nil
			}
		}
	}

	return filepath.Join(commonDir, "hooks"), nil
}

// findGitDir walks up from root to the nearest .git entry. A .git file
// (linked worktree or submodule) is followed through its gitdir: line.
func findGitDir(root string) (string, error) {
	dir, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	for {
		dotGit := filepath.Join(dir, ".git")
		info, err := os.Stat(dotGit)
		if err == nil {
			if info.IsDir() {
				return dotGit, nil
			}
			return readGitFile(dotGit)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s: %w", root, git.ErrRepositoryNotExists)
		}
		dir = parent
	}
}

func readGitFile(path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 - .git file inside the project
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if rest, ok := strings.CutPrefix(line, "gitdir:"); ok {
			gitDir := strings.TrimSpace(rest)
			if !filepath.IsAbs(gitDir) {
				gitDir = filepath.Join(filepath.Dir(path), gitDir)
			}
			return filepath.Clean(gitDir), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", errors.New("malformed .git file: " + path)
}

// resolveCommonDir follows a worktree gitdir's commondir file.
func resolveCommonDir(gitDir string) string {
	data, err := os.ReadFile(filepath.Join(gitDir, "commondir")) // #nosec G304
	if err != nil {
		return gitDir
	}
	common := strings.TrimSpace(string(data))
	if !filepath.IsAbs(common) {
		common = filepath.Join(gitDir, common)
	}
	return filepath.Clean(common)
}

// GitCheck opens root and classifies the failure, if any.
func GitCheck(root string) error {
	_, err := openRepo(root)
	if err == nil {
		return nil
	}
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return fmt.Errorf("%s is not inside a git repository", root)
	}
	return fmt.Errorf("opening git repository at %s: %w", root, err)
}
