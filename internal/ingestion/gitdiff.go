package ingestion

import (
	"errors"
	"sort"

	"github.com/go-git/go-git/v5"

	"github.com/reqtrace/reqtrace-go/internal/config"
)

// GitInfo describes the repository state of the project root.
type GitInfo struct {
	// Branch is the checked-out branch name, empty on detached HEAD.
	Branch string

	// Commit is the HEAD commit hash.
	Commit string

	// Dirty reports uncommitted changes anywhere in the worktree.
	Dirty bool

	// ChangedArtifacts lists uncommitted files the pipeline would
	// ingest. A non-empty list means the snapshot may not reflect
	// what is on disk.
	ChangedArtifacts []string
}

// InspectGit reads the repository state of the project root. Projects
// that are not git repositories yield (nil, nil).
func InspectGit(root string, cfg *config.Config) (*GitInfo, error) {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	info := &GitInfo{}
	if head, err := repo.Head(); err == nil {
		info.Commit = head.Hash().String()
		if head.Name().IsBranch() {
			info.Branch = head.Name().Short()
		}
	}

	wt, err := repo.Worktree()
	if err != nil {
		return info, nil
	}
	status, err := wt.Status()
	if err != nil {
		return info, nil
	}

	sel := newSelector(root, cfg)
	for path, st := range status {
		if st.Worktree == git.Unmodified && st.Staging == git.Unmodified {
			continue
		}
		info.Dirty = true
		if sel.wants(path) {
			info.ChangedArtifacts = append(info.ChangedArtifacts, path)
		}
	}
	sort.Strings(info.ChangedArtifacts)

	return info, nil
}
