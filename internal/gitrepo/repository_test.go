package gitrepo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"partpipe/internal/pipeline"
)

// writeFakeGit installs a shell script standing in for the git binary. Every
// invocation is appended to a log file so tests can assert on the arguments.
func writeFakeGit(t *testing.T, body string) (gitPath, logPath string) {
	t.Helper()
	dir := t.TempDir()
	logPath = filepath.Join(dir, "git.log")
	gitPath = filepath.Join(dir, "git")

	script := "#!/bin/sh\nprintf '%s\\n' \"$*\" >> " + logPath + "\n" + body
	if err := os.WriteFile(gitPath, []byte(script), 0755); err != nil {
		t.Fatalf("writing fake git: %v", err)
	}

	orig := LookupPath
	t.Cleanup(func() { LookupPath = orig })
	LookupPath = func(string) (string, error) { return gitPath, nil }
	return gitPath, logPath
}

func invocations(t *testing.T, logPath string) []string {
	t.Helper()
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading git log: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

// standardGit is a fake git script rooted at a real directory. Commands run
// with the discovered toplevel as cwd, so the script has to report one that
// exists.
func standardGit(root string) string {
	return `case "$*" in
  "rev-parse --show-toplevel") echo ` + root + ` ;;
  "rev-parse --abbrev-ref HEAD") echo main ;;
  "diff --name-only --diff-filter=AM "*) printf 'Bracket.ipt\nassembly/Mount.ipt\n' ;;
  "diff --cached --quiet") exit 1 ;;
esac
`
}

func TestGitRepository(t *testing.T) {
	t.Run("discovers the work tree root", func(t *testing.T) {
		root := t.TempDir()
		writeFakeGit(t, standardGit(root))

		r, err := NewGitRepository(root)
		if err != nil {
			t.Fatalf("NewGitRepository() error = %v", err)
		}

		got, err := r.Root()
		if err != nil {
			t.Fatalf("Root() error = %v", err)
		}
		if got != root {
			t.Errorf("Root() = %q, want %q", got, root)
		}
	})

	t.Run("fails outside a work tree", func(t *testing.T) {
		writeFakeGit(t, "echo 'fatal: not a git repository' >&2\nexit 128\n")

		if _, err := NewGitRepository(t.TempDir()); err == nil {
			t.Fatal("NewGitRepository() expected error")
		}
	})

	t.Run("lists changed files with forward slashes", func(t *testing.T) {
		root := t.TempDir()
		writeFakeGit(t, standardGit(root))

		r, _ := NewGitRepository(root)
		files, err := r.ChangedFiles("origin/main")
		if err != nil {
			t.Fatalf("ChangedFiles() error = %v", err)
		}

		want := []string{"Bracket.ipt", "assembly/Mount.ipt"}
		if len(files) != len(want) {
			t.Fatalf("got %v, want %v", files, want)
		}
		for i := range want {
			if files[i] != want[i] {
				t.Errorf("files[%d] = %q, want %q", i, files[i], want[i])
			}
		}
	})

	t.Run("reports the current branch", func(t *testing.T) {
		root := t.TempDir()
		writeFakeGit(t, standardGit(root))

		r, _ := NewGitRepository(root)
		branch, err := r.CurrentBranch()
		if err != nil {
			t.Fatalf("CurrentBranch() error = %v", err)
		}
		if branch != "main" {
			t.Errorf("CurrentBranch() = %q, want main", branch)
		}
	})

	t.Run("rejects a detached HEAD", func(t *testing.T) {
		root := t.TempDir()
		writeFakeGit(t, `case "$*" in
  "rev-parse --show-toplevel") echo `+root+` ;;
  "rev-parse --abbrev-ref HEAD") echo HEAD ;;
esac
`)

		r, _ := NewGitRepository(root)
		if _, err := r.CurrentBranch(); err == nil {
			t.Fatal("CurrentBranch() expected error for detached HEAD")
		}
	})

	t.Run("staged changes detected via exit code", func(t *testing.T) {
		root := t.TempDir()
		writeFakeGit(t, standardGit(root))

		r, _ := NewGitRepository(root)
		staged, err := r.HasStagedChanges()
		if err != nil {
			t.Fatalf("HasStagedChanges() error = %v", err)
		}
		if !staged {
			t.Error("HasStagedChanges() = false, want true for exit code 1")
		}
	})

	t.Run("clean index reports no staged changes", func(t *testing.T) {
		root := t.TempDir()
		writeFakeGit(t, `case "$*" in
  "rev-parse --show-toplevel") echo `+root+` ;;
esac
`)

		r, _ := NewGitRepository(root)
		staged, err := r.HasStagedChanges()
		if err != nil {
			t.Fatalf("HasStagedChanges() error = %v", err)
		}
		if staged {
			t.Error("HasStagedChanges() = true, want false for exit code 0")
		}
	})

	t.Run("commit carries the automation identity inline", func(t *testing.T) {
		root := t.TempDir()
		_, logPath := writeFakeGit(t, standardGit(root))

		r, _ := NewGitRepository(root)
		author := pipeline.Identity{Name: "partpipe", Email: "partpipe@localhost"}
		if err := r.Commit("Add STEP exports", author); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}

		calls := invocations(t, logPath)
		last := calls[len(calls)-1]
		if !strings.Contains(last, "user.name=partpipe") || !strings.Contains(last, "commit -m Add STEP exports") {
			t.Errorf("commit invocation = %q", last)
		}
	})

	t.Run("push targets the requested remote and branch", func(t *testing.T) {
		root := t.TempDir()
		_, logPath := writeFakeGit(t, standardGit(root))

		r, _ := NewGitRepository(root)
		if err := r.Push("origin", "main"); err != nil {
			t.Fatalf("Push() error = %v", err)
		}

		calls := invocations(t, logPath)
		if calls[len(calls)-1] != "push origin main" {
			t.Errorf("push invocation = %q, want push origin main", calls[len(calls)-1])
		}
	})

	t.Run("rejected push surfaces stderr", func(t *testing.T) {
		root := t.TempDir()
		writeFakeGit(t, `case "$*" in
  "rev-parse --show-toplevel") echo `+root+` ;;
  "push "*) echo 'rejected: non-fast-forward' >&2; exit 1 ;;
esac
`)

		r, _ := NewGitRepository(root)
		err := r.Push("origin", "main")
		if err == nil || !strings.Contains(err.Error(), "non-fast-forward") {
			t.Fatalf("Push() error = %v, want rejection with stderr", err)
		}
	})

	t.Run("stages root-relative paths from a subdirectory", func(t *testing.T) {
		root := t.TempDir()
		sub := filepath.Join(root, "assembly")
		if err := os.Mkdir(sub, 0755); err != nil {
			t.Fatalf("creating subdirectory: %v", err)
		}
		cwdLog := filepath.Join(t.TempDir(), "cwd.log")
		writeFakeGit(t, `case "$*" in
  "rev-parse --show-toplevel") echo `+root+` ;;
  "add "*) pwd -P > `+cwdLog+` ;;
esac
`)

		r, err := NewGitRepository(sub)
		if err != nil {
			t.Fatalf("NewGitRepository() error = %v", err)
		}
		if err := r.Stage([]string{"STEP_Exports"}); err != nil {
			t.Fatalf("Stage() error = %v", err)
		}

		data, err := os.ReadFile(cwdLog)
		if err != nil {
			t.Fatalf("reading cwd log: %v", err)
		}
		got := strings.TrimSpace(string(data))
		want, err := filepath.EvalSymlinks(root)
		if err != nil {
			t.Fatalf("resolving root: %v", err)
		}
		if got != want {
			t.Errorf("git add ran in %q, want work tree root %q", got, want)
		}
	})
}
