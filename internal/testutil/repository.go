package testutil

import (
	"partpipe/internal/pipeline"
)

// Commit is one commit recorded by FakeRepository.
type Commit struct {
	Message string
	Author  pipeline.Identity
	Staged  []string
}

// Push is one push recorded by FakeRepository.
type Push struct {
	Remote string
	Branch string
}

// FakeRepository is an in-memory pipeline.Repository. Staged paths
// accumulate until Commit, which records them and clears the index.
type FakeRepository struct {
	// RepoRoot is returned by Root. Defaults to "/repo".
	RepoRoot string

	// Branch is returned by CurrentBranch. Defaults to "main".
	Branch string

	// Changed is returned by ChangedFiles regardless of ref.
	Changed []string

	// Dirty makes HasStagedChanges report true after the next Stage call.
	// The pipeline regenerates output files on disk; whether that changed
	// the index is the test's choice.
	Dirty bool

	// CommitErr and PushErr inject failures.
	CommitErr error
	PushErr   error

	StagedPaths []string
	Commits     []Commit
	Pushes      []Push
}

func NewFakeRepository() *FakeRepository {
	return &FakeRepository{RepoRoot: "/repo", Branch: "main", Dirty: true}
}

func (r *FakeRepository) Root() (string, error)          { return r.RepoRoot, nil }
func (r *FakeRepository) CurrentBranch() (string, error) { return r.Branch, nil }

func (r *FakeRepository) ChangedFiles(ref string) ([]string, error) {
	return r.Changed, nil
}

func (r *FakeRepository) Stage(paths []string) error {
	r.StagedPaths = append(r.StagedPaths, paths...)
	return nil
}

func (r *FakeRepository) HasStagedChanges() (bool, error) {
	return r.Dirty && len(r.StagedPaths) > 0, nil
}

func (r *FakeRepository) Commit(message string, author pipeline.Identity) error {
	if r.CommitErr != nil {
		return r.CommitErr
	}
	r.Commits = append(r.Commits, Commit{
		Message: message,
		Author:  author,
		Staged:  append([]string(nil), r.StagedPaths...),
	})
	r.StagedPaths = nil
	return nil
}

func (r *FakeRepository) Push(remote, branch string) error {
	if r.PushErr != nil {
		return r.PushErr
	}
	r.Pushes = append(r.Pushes, Push{Remote: remote, Branch: branch})
	return nil
}

var _ pipeline.Repository = (*FakeRepository)(nil)
