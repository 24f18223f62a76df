// Package gitrepo wraps the git CLI, which is the only source-control
// interface the pipeline uses.
package gitrepo

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"partpipe/internal/pipeline"
)

// LookupPath is used to find the git executable in PATH. It's exposed as a
// package variable so tests can mock it and avoid depending on system
// binaries being installed.
var LookupPath = exec.LookPath

// GitRepository implements pipeline.Repository by shelling out to git.
// All commands run with the work tree root as cwd, so root-relative
// pathspecs resolve the same no matter where the process was started.
type GitRepository struct {
	gitPath string
	dir     string
}

// NewGitRepository creates a repository handle for the work tree containing
// dir. Fails when git is not installed or dir is not inside a work tree.
func NewGitRepository(dir string) (*GitRepository, error) {
	gitPath, err := LookupPath("git")
	if err != nil {
		return nil, fmt.Errorf("git not found in PATH: %w", err)
	}

	r := &GitRepository{gitPath: gitPath, dir: dir}
	root, err := r.Root()
	if err != nil {
		return nil, err
	}
	r.dir = root
	return r, nil
}

// Root returns the absolute path of the repository work tree.
func (r *GitRepository) Root() (string, error) {
	out, err := r.run("rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("not inside a git work tree: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// CurrentBranch returns the checked-out branch name.
func (r *GitRepository) CurrentBranch() (string, error) {
	out, err := r.run("rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("determining current branch: %w", err)
	}
	branch := strings.TrimSpace(out)
	if branch == "HEAD" {
		return "", fmt.Errorf("detached HEAD, cannot determine branch")
	}
	return branch, nil
}

// ChangedFiles lists files added or modified between ref and the work tree,
// as repository-relative forward-slash paths, deduplicated and sorted by git.
func (r *GitRepository) ChangedFiles(ref string) ([]string, error) {
	out, err := r.run("diff", "--name-only", "--diff-filter=AM", ref)
	if err != nil {
		return nil, fmt.Errorf("diffing against %s: %w", ref, err)
	}

	var files []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		files = append(files, strings.ReplaceAll(line, "\\", "/"))
	}
	return files, nil
}

// Stage adds the given paths to the index. Paths that do not exist yet are
// fine: `git add` with a directory picks up whatever is there.
func (r *GitRepository) Stage(paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"add", "--"}, paths...)
	if _, err := r.run(args...); err != nil {
		return fmt.Errorf("git add: %w", err)
	}
	return nil
}

// HasStagedChanges reports whether the index differs from HEAD.
func (r *GitRepository) HasStagedChanges() (bool, error) {
	// Exit code 1 means differences; anything else is a real error.
	_, err := r.run("diff", "--cached", "--quiet")
	if err == nil {
		return false, nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) && ee.ExitCode() == 1 {
		return true, nil
	}
	return false, fmt.Errorf("checking staged changes: %w", err)
}

// Commit records the staged changes under the automation identity. The
// identity is passed per-invocation so the runner's global git config is
// never touched.
func (r *GitRepository) Commit(message string, author pipeline.Identity) error {
	_, err := r.run(
		"-c", "user.name="+author.Name,
		"-c", "user.email="+author.Email,
		"commit", "-m", message,
	)
	if err != nil {
		return fmt.Errorf("git commit: %w", err)
	}
	return nil
}

// Push pushes branch to remote. A rejected push surfaces as an error with
// git's stderr attached; no retry or rebase is attempted.
func (r *GitRepository) Push(remote, branch string) error {
	if _, err := r.run("push", remote, branch); err != nil {
		return fmt.Errorf("git push: %w", err)
	}
	return nil
}

// run executes git with the given arguments and returns stdout.
// On failure the error includes trimmed stderr.
func (r *GitRepository) run(args ...string) (string, error) {
	cmd := exec.Command(r.gitPath, args...)
	cmd.Dir = r.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return stdout.String(), fmt.Errorf("%w: %s", err, msg)
		}
		return stdout.String(), err
	}
	return stdout.String(), nil
}

// Compile-time check that GitRepository implements pipeline.Repository
var _ pipeline.Repository = (*GitRepository)(nil)
