package profile

import (
	"context"
	"testing"

	"github.com/bureauhq/bureau/internal/storage"
)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestResolveEmptyScope resolves a scope with no data and expects empty cards
// and zero versions.
func TestResolveEmptyScope(t *testing.T) {
	s := openTestStore(t)
	r := NewResolver(s)

	got, err := r.Resolve(context.Background(), Scope{WorkspaceID: "ws1"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.WorkspaceCardVersion != 0 || got.ProjectCardVersion != 0 {
		t.Errorf("versions = (%d, %d), want (0, 0)", got.WorkspaceCardVersion, got.ProjectCardVersion)
	}
	if got.PinnedVersion() != 0 {
		t.Errorf("PinnedVersion = %d, want 0", got.PinnedVersion())
	}
	if len(got.Cards.Voice) != 0 {
		t.Errorf("Voice = %v, want empty", got.Cards.Voice)
	}
}

// TestResolveWorkspaceOnly resolves a workspace-level scope and expects the
// latest workspace card.
func TestResolveWorkspaceOnly(t *testing.T) {
	s := openTestStore(t)

	for v := 1; v <= 2; v++ {
		rec := storage.ProfileCardRecord{
			WorkspaceID: "ws1",
			Version:     v,
			VoiceCard:   []byte(`{"formality":"neutraal"}`),
		}
		if err := s.InsertProfileCard(rec); err != nil {
			t.Fatalf("InsertProfileCard v%d: %v", v, err)
		}
	}

	r := NewResolver(s)
	got, err := r.Resolve(context.Background(), Scope{WorkspaceID: "ws1"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.WorkspaceCardVersion != 2 {
		t.Errorf("WorkspaceCardVersion = %d, want 2", got.WorkspaceCardVersion)
	}
	if got.Cards.Voice["formality"] != "neutraal" {
		t.Errorf("formality = %v", got.Cards.Voice["formality"])
	}
}

// TestResolveProjectOverridesWorkspace sets conflicting card fields at both
// levels and verifies project precedence with workspace fallback.
func TestResolveProjectOverridesWorkspace(t *testing.T) {
	s := openTestStore(t)

	workspace := storage.ProfileCardRecord{
		WorkspaceID: "ws1",
		Version:     1,
		VoiceCard:   []byte(`{"formality":"formeel","tone":"zakelijk"}`),
		Constraints: []byte(`{"bannedPhrases":["gratis"]}`),
	}
	if err := s.InsertProfileCard(workspace); err != nil {
		t.Fatalf("insert workspace card: %v", err)
	}
	project := storage.ProfileCardRecord{
		WorkspaceID: "ws1",
		ProjectID:   "p1",
		Version:     1,
		VoiceCard:   []byte(`{"formality":"informeel"}`),
	}
	if err := s.InsertProfileCard(project); err != nil {
		t.Fatalf("insert project card: %v", err)
	}

	r := NewResolver(s)
	got, err := r.Resolve(context.Background(), Scope{WorkspaceID: "ws1", ProjectID: "p1"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if got.Cards.Voice["formality"] != "informeel" {
		t.Errorf("formality = %v, want project value informeel", got.Cards.Voice["formality"])
	}
	if got.Cards.Voice["tone"] != "zakelijk" {
		t.Errorf("tone = %v, want workspace value zakelijk", got.Cards.Voice["tone"])
	}
	phrases := Constraints(got.Cards.Constraints).BannedPhrases
	if len(phrases) != 1 || phrases[0] != "gratis" {
		t.Errorf("bannedPhrases = %v, want [gratis] from workspace", phrases)
	}
	if got.PinnedVersion() != 1 {
		t.Errorf("PinnedVersion = %d, want 1 (project)", got.PinnedVersion())
	}
}

// TestResolveAnswersProjectWins overlays project answers over workspace
// answers on the same key.
func TestResolveAnswersProjectWins(t *testing.T) {
	s := openTestStore(t)

	if err := s.UpsertProfileAnswer(storage.ProfileAnswer{
		WorkspaceID: "ws1", QuestionKey: "foundations.target_audience", AnswerText: "mkb",
	}); err != nil {
		t.Fatalf("upsert workspace answer: %v", err)
	}
	if err := s.UpsertProfileAnswer(storage.ProfileAnswer{
		WorkspaceID: "ws1", QuestionKey: "foundations.main_offer", AnswerText: "consultancy",
	}); err != nil {
		t.Fatalf("upsert workspace answer 2: %v", err)
	}
	if err := s.UpsertProfileAnswer(storage.ProfileAnswer{
		WorkspaceID: "ws1", ProjectID: "p1", QuestionKey: "foundations.target_audience", AnswerText: "startups",
	}); err != nil {
		t.Fatalf("upsert project answer: %v", err)
	}

	r := NewResolver(s)
	got, err := r.Resolve(context.Background(), Scope{WorkspaceID: "ws1", ProjectID: "p1"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if got.AnswersByKey["foundations.target_audience"].Text != "startups" {
		t.Errorf("target_audience = %q, want project value", got.AnswersByKey["foundations.target_audience"].Text)
	}
	if got.AnswersByKey["foundations.main_offer"].Text != "consultancy" {
		t.Errorf("main_offer = %q, want workspace value", got.AnswersByKey["foundations.main_offer"].Text)
	}
}

// TestResolveExamplesProjectFirst verifies example ordering: project examples
// before workspace examples.
func TestResolveExamplesProjectFirst(t *testing.T) {
	s := openTestStore(t)

	if err := s.SaveExample(storage.Example{ID: "ex-ws", WorkspaceID: "ws1", Content: "workspace"}); err != nil {
		t.Fatalf("save workspace example: %v", err)
	}
	if err := s.SaveExample(storage.Example{ID: "ex-p", WorkspaceID: "ws1", ProjectID: "p1", Content: "project"}); err != nil {
		t.Fatalf("save project example: %v", err)
	}

	r := NewResolver(s)
	got, err := r.Resolve(context.Background(), Scope{WorkspaceID: "ws1", ProjectID: "p1"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if len(got.Examples) != 2 {
		t.Fatalf("got %d examples, want 2", len(got.Examples))
	}
	if got.Examples[0].Content != "project" || got.Examples[1].Content != "workspace" {
		t.Errorf("example order = [%q, %q], want project first", got.Examples[0].Content, got.Examples[1].Content)
	}
}

// TestResolveWorkspaceScopeSkipsProjectReads resolves a workspace scope in a
// workspace that also has project data and verifies no project data leaks in.
func TestResolveWorkspaceScopeSkipsProjectReads(t *testing.T) {
	s := openTestStore(t)

	if err := s.InsertProfileCard(storage.ProfileCardRecord{
		WorkspaceID: "ws1", ProjectID: "p1", Version: 1,
		VoiceCard: []byte(`{"formality":"informeel"}`),
	}); err != nil {
		t.Fatalf("insert project card: %v", err)
	}

	r := NewResolver(s)
	got, err := r.Resolve(context.Background(), Scope{WorkspaceID: "ws1"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if got.ProjectCardVersion != 0 {
		t.Errorf("ProjectCardVersion = %d, want 0", got.ProjectCardVersion)
	}
	if _, ok := got.Cards.Voice["formality"]; ok {
		t.Error("project card leaked into workspace resolve")
	}
}
