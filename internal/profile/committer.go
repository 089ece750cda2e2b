package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureauhq/bureau/internal/storage"
)

// ErrCommitContention is returned when a commit loses the version race on
// every attempt.
var ErrCommitContention = errors.New("profile commit contention, retries exhausted")

// CommitterStore defines the storage operations the Committer needs.
// Implemented by storage.Store.
type CommitterStore interface {
	LatestProfileCardVersion(workspaceID, projectID string) (int, error)
	InsertProfileCard(rec storage.ProfileCardRecord) error
}

// defaultCommitAttempts bounds the optimistic retry loop.
const defaultCommitAttempts = 3

// Committer appends new profile card versions with optimistic concurrency:
// read the current max version, insert at max+1, and retry on a version
// collision. Versions are dense per scope; nothing is ever updated in place.
type Committer struct {
	store    CommitterStore
	attempts int
}

// NewCommitter creates a Committer with the given retry ceiling. Zero or
// negative means the default of 3.
func NewCommitter(store CommitterStore, attempts int) *Committer {
	if attempts <= 0 {
		attempts = defaultCommitAttempts
	}
	return &Committer{store: store, attempts: attempts}
}

// CommitNextVersion appends cards as the next version of the scope and
// returns the version it landed on. A scope with no prior card gets
// version 1. Returns ErrCommitContention when every attempt loses the race.
func (c *Committer) CommitNextVersion(ctx context.Context, scope Scope, cards CardSet) (int, error) {
	for attempt := 0; attempt < c.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		last, err := c.store.LatestProfileCardVersion(scope.WorkspaceID, scope.ProjectID)
		if err != nil {
			return 0, fmt.Errorf("reading latest card version: %w", err)
		}

		next := last + 1
		rec, err := RecordFromCardSet(scope, next, cards)
		if err != nil {
			return 0, fmt.Errorf("encoding cards for version %d: %w", next, err)
		}

		err = c.store.InsertProfileCard(rec)
		if err == nil {
			return next, nil
		}
		if errors.Is(err, storage.ErrVersionConflict) {
			continue
		}
		return 0, fmt.Errorf("inserting card version %d: %w", next, err)
	}
	return 0, ErrCommitContention
}
