package pipeline

import "fmt"

// CommitOutputs stages the batch's output directories and, when the index
// actually changed, commits under the automation identity and pushes to the
// branch that triggered the run.
//
// Re-running on an unchanged file set is idempotent: regenerated outputs
// with identical content leave the index clean and no commit is created.
// Returns whether a commit was made.
func (s *Service) CommitOutputs(batch *CommitBatch, push bool) (bool, error) {
	if len(batch.Dirs) == 0 {
		return false, nil
	}

	if err := s.repo.Stage(batch.Dirs); err != nil {
		return false, fmt.Errorf("staging outputs: %w", err)
	}

	staged, err := s.repo.HasStagedChanges()
	if err != nil {
		return false, fmt.Errorf("checking staged changes: %w", err)
	}
	if !staged {
		s.logger.Info("outputs unchanged, nothing to commit")
		return false, nil
	}

	if err := s.repo.Commit(batch.Message, s.opts.Author); err != nil {
		return false, fmt.Errorf("committing outputs: %w", err)
	}
	s.logger.Info("outputs committed", "message", batch.Message)

	if !push {
		return true, nil
	}

	branch, err := s.repo.CurrentBranch()
	if err != nil {
		return true, fmt.Errorf("determining branch: %w", err)
	}
	if err := s.repo.Push(s.opts.Remote, branch); err != nil {
		// Push rejection requires manual resolution; no retry or rebase.
		return true, fmt.Errorf("pushing to %s/%s: %w", s.opts.Remote, branch, err)
	}
	s.logger.Info("outputs pushed", "remote", s.opts.Remote, "branch", branch)
	return true, nil
}
