// Package gitops keeps a declara project, and the declarations it files,
// under git.
package gitops

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Identity used for commits made by declara.
const (
	AuthorName  = "declara"
	AuthorEmail = "declara@localhost"
)

// ErrNothingToCommit is returned by Commit when the paths are unchanged.
var ErrNothingToCommit = errors.New("nothing to commit")

// Repo is a git working tree.
type Repo struct {
	Dir string
}

// Init initializes a repository at dir, or opens the one already there.
func Init(dir string) (*Repo, error) {
	if IsRepo(dir) {
		return &Repo{Dir: dir}, nil
	}
	r := &Repo{Dir: dir}
	if _, err := r.git("init", "-q"); err != nil {
		return nil, err
	}
	return r, nil
}

// Open finds the repository containing dir.
func Open(dir string) (*Repo, bool) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, false
	}
	for {
		if IsRepo(abs) {
			return &Repo{Dir: abs}, true
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return nil, false
		}
		abs = parent
	}
}

// IsRepo reports whether dir is the root of a git working tree.
func IsRepo(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// Commit stages paths and commits them. Returns the short commit hash.
func (r *Repo) Commit(message string, paths ...string) (string, error) {
	if _, err := r.git(append([]string{"add", "--"}, paths...)...); err != nil {
		return "", err
	}

	// diff --cached --quiet exits 1 when something is staged.
	diff := exec.Command("git", "diff", "--cached", "--quiet")
	diff.Dir = r.Dir
	if err := diff.Run(); err == nil {
		return "", ErrNothingToCommit
	}

	author := fmt.Sprintf("%s <%s>", AuthorName, AuthorEmail)
	if _, err := r.git("-c", "user.name="+AuthorName, "-c", "user.email="+AuthorEmail,
		"commit", "-q", "-m", message, "--author", author); err != nil {
		return "", err
	}
	return r.git("rev-parse", "--short", "HEAD")
}

func (r *Repo) git(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.Dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s: %s: %w", args[0], strings.TrimSpace(string(out)), err)
	}
	return strings.TrimSpace(string(out)), nil
}
