package pipeline

// Identity is the author/committer identity used for automation commits.
type Identity struct {
	Name  string
	Email string
}

// Repository abstracts the git operations the pipeline needs. All paths
// passed in or returned are repository-relative with forward slashes.
type Repository interface {
	// Root returns the absolute path of the repository work tree.
	Root() (string, error)

	// CurrentBranch returns the checked-out branch name.
	CurrentBranch() (string, error)

	// ChangedFiles lists files added or modified between ref and HEAD,
	// including uncommitted changes in the work tree.
	ChangedFiles(ref string) ([]string, error)

	// Stage adds the given paths (files or directories) to the index.
	Stage(paths []string) error

	// HasStagedChanges reports whether the index differs from HEAD.
	HasStagedChanges() (bool, error)

	// Commit records the staged changes with the given author identity.
	Commit(message string, author Identity) error

	// Push pushes branch to remote. A rejected push is returned as an error;
	// no retry or rebase is attempted.
	Push(remote, branch string) error
}
