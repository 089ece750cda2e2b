package profile

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/bureauhq/bureau/internal/storage"
)

// ResolverStore defines the storage operations the Resolver needs.
// Implemented by storage.Store.
type ResolverStore interface {
	LatestProfileCard(workspaceID, projectID string) (storage.ProfileCardRecord, error)
	ListProfileAnswers(workspaceID, projectID string) ([]storage.ProfileAnswer, error)
	ListExamples(workspaceID, projectID string) ([]storage.Example, error)
}

// Resolver assembles the effective profile for a scope by overlaying the
// project level on top of the workspace level.
type Resolver struct {
	store ResolverStore
}

func NewResolver(store ResolverStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve reads both scope levels in parallel and merges them: cards via
// DeepMerge with project precedence, answers keyed with project wins,
// examples with project examples first. A workspace-level scope skips the
// project reads.
func (r *Resolver) Resolve(ctx context.Context, scope Scope) (EffectiveProfile, error) {
	if err := ctx.Err(); err != nil {
		return EffectiveProfile{}, err
	}

	var (
		workspaceCard     storage.ProfileCardRecord
		projectCard       storage.ProfileCardRecord
		workspaceAnswers  []storage.ProfileAnswer
		projectAnswers    []storage.ProfileAnswer
		workspaceExamples []storage.Example
		projectExamples   []storage.Example
		haveWorkspaceCard bool
		haveProjectCard   bool
	)

	var g errgroup.Group

	g.Go(func() error {
		card, err := r.store.LatestProfileCard(scope.WorkspaceID, "")
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("loading workspace card: %w", err)
		}
		workspaceCard = card
		haveWorkspaceCard = true
		return nil
	})

	g.Go(func() error {
		answers, err := r.store.ListProfileAnswers(scope.WorkspaceID, "")
		if err != nil {
			return fmt.Errorf("loading workspace answers: %w", err)
		}
		workspaceAnswers = answers
		return nil
	})

	g.Go(func() error {
		examples, err := r.store.ListExamples(scope.WorkspaceID, "")
		if err != nil {
			return fmt.Errorf("loading workspace examples: %w", err)
		}
		workspaceExamples = examples
		return nil
	})

	if scope.IsProject() {
		g.Go(func() error {
			card, err := r.store.LatestProfileCard(scope.WorkspaceID, scope.ProjectID)
			if errors.Is(err, storage.ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("loading project card: %w", err)
			}
			projectCard = card
			haveProjectCard = true
			return nil
		})

		g.Go(func() error {
			answers, err := r.store.ListProfileAnswers(scope.WorkspaceID, scope.ProjectID)
			if err != nil {
				return fmt.Errorf("loading project answers: %w", err)
			}
			projectAnswers = answers
			return nil
		})

		g.Go(func() error {
			examples, err := r.store.ListExamples(scope.WorkspaceID, scope.ProjectID)
			if err != nil {
				return fmt.Errorf("loading project examples: %w", err)
			}
			projectExamples = examples
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return EffectiveProfile{}, err
	}

	var workspaceCards, projectCards CardSet
	if haveWorkspaceCard {
		workspaceCards = CardSetFromRecord(workspaceCard)
	}
	if haveProjectCard {
		projectCards = CardSetFromRecord(projectCard)
	}

	answersByKey := make(map[string]Answer, len(workspaceAnswers)+len(projectAnswers))
	for _, a := range workspaceAnswers {
		answersByKey[a.QuestionKey] = Answer{Text: a.AnswerText, JSON: a.AnswerJSON}
	}
	for _, a := range projectAnswers {
		answersByKey[a.QuestionKey] = Answer{Text: a.AnswerText, JSON: a.AnswerJSON}
	}

	examples := make([]storage.Example, 0, len(projectExamples)+len(workspaceExamples))
	examples = append(examples, projectExamples...)
	examples = append(examples, workspaceExamples...)

	effective := EffectiveProfile{
		Cards:        MergeCardSets(workspaceCards, projectCards),
		AnswersByKey: answersByKey,
		Examples:     examples,
	}
	if haveWorkspaceCard {
		effective.WorkspaceCardVersion = workspaceCard.Version
	}
	if haveProjectCard {
		effective.ProjectCardVersion = projectCard.Version
	}
	return effective, nil
}
