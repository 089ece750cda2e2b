package profile

import (
	"encoding/json"
	"log/slog"

	"github.com/bureauhq/bureau/internal/storage"
)

// Scope identifies the tenant level a profile operation targets. An empty
// ProjectID means the workspace level; project scopes override it.
type Scope struct {
	WorkspaceID string
	ProjectID   string
}

// IsProject reports whether the scope targets a project rather than the
// workspace as a whole.
func (s Scope) IsProject() bool { return s.ProjectID != "" }

// Workspace returns the workspace-level scope for the same workspace.
func (s Scope) Workspace() Scope { return Scope{WorkspaceID: s.WorkspaceID} }

// Doc is an open JSON document. Well-known fields are read through the typed
// views below; unknown keys ride along untouched through merge and commit.
type Doc map[string]any

// CardSet groups the four card documents that make up one profile version.
type CardSet struct {
	Voice       Doc
	Audience    Doc
	Offer       Doc
	Constraints Doc
}

// Answer is the latest answer for one question key.
type Answer struct {
	Text string
	JSON string
}

// EffectiveProfile is the merged view of a scope: workspace cards overlaid
// with project cards, answers with project precedence, and examples with
// project examples first.
type EffectiveProfile struct {
	WorkspaceCardVersion int // 0 when the workspace has no card yet
	ProjectCardVersion   int // 0 when the project has no card (or scope is workspace-level)
	Cards                CardSet
	AnswersByKey         map[string]Answer
	Examples             []storage.Example
}

// PinnedVersion returns the card version generation should pin to: the
// project card version when present, otherwise the workspace card version.
// Zero means no card exists for either level.
func (p EffectiveProfile) PinnedVersion() int {
	if p.ProjectCardVersion != 0 {
		return p.ProjectCardVersion
	}
	return p.WorkspaceCardVersion
}

// ConstraintsView is a typed read of the well-known constraint fields.
// Malformed or missing values parse to zero values; nothing errors.
type ConstraintsView struct {
	BannedPhrases     []string
	BannedTopics      []string
	CTALevel          string
	BannedCTAPatterns []string
	HasCTAPatterns    bool // distinguishes an explicit empty list from an absent one
}

// VoiceView is a typed read of the well-known voice fields.
type VoiceView struct {
	Formality          string
	AvoidStylePatterns []string
}

// Constraints parses the well-known constraint fields out of a document.
func Constraints(d Doc) ConstraintsView {
	v := ConstraintsView{
		BannedPhrases: stringSlice(d["bannedPhrases"]),
		BannedTopics:  stringSlice(d["bannedTopics"]),
	}
	if cta, ok := d["ctaStyle"].(map[string]any); ok {
		v.CTALevel, _ = cta["level"].(string)
		if raw, present := cta["bannedCtaPatterns"]; present {
			v.BannedCTAPatterns = stringSlice(raw)
			v.HasCTAPatterns = true
		}
	}
	return v
}

// Voice parses the well-known voice fields out of a document.
func Voice(d Doc) VoiceView {
	formality, _ := d["formality"].(string)
	return VoiceView{
		Formality:          formality,
		AvoidStylePatterns: stringSlice(d["avoidStylePatterns"]),
	}
}

// stringSlice coerces a decoded JSON value into a string slice, keeping only
// string elements. A bare string becomes a one-element slice.
func stringSlice(v any) []string {
	switch val := v.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	case string:
		return []string{val}
	default:
		return nil
	}
}

// CardSetFromRecord decodes the stored card JSON into documents. Malformed
// columns are logged and replaced with an empty document.
func CardSetFromRecord(rec storage.ProfileCardRecord) CardSet {
	return CardSet{
		Voice:       decodeDoc(rec.VoiceCard, "voice_card"),
		Audience:    decodeDoc(rec.AudienceCard, "audience_card"),
		Offer:       decodeDoc(rec.OfferCard, "offer_card"),
		Constraints: decodeDoc(rec.Constraints, "constraints"),
	}
}

// RecordFromCardSet encodes a card set at an explicit version for insertion.
func RecordFromCardSet(scope Scope, version int, cards CardSet) (storage.ProfileCardRecord, error) {
	voice, err := encodeDoc(cards.Voice)
	if err != nil {
		return storage.ProfileCardRecord{}, err
	}
	audience, err := encodeDoc(cards.Audience)
	if err != nil {
		return storage.ProfileCardRecord{}, err
	}
	offer, err := encodeDoc(cards.Offer)
	if err != nil {
		return storage.ProfileCardRecord{}, err
	}
	constraints, err := encodeDoc(cards.Constraints)
	if err != nil {
		return storage.ProfileCardRecord{}, err
	}
	return storage.ProfileCardRecord{
		WorkspaceID:  scope.WorkspaceID,
		ProjectID:    scope.ProjectID,
		Version:      version,
		VoiceCard:    voice,
		AudienceCard: audience,
		OfferCard:    offer,
		Constraints:  constraints,
	}, nil
}

func decodeDoc(raw json.RawMessage, column string) Doc {
	if len(raw) == 0 {
		return Doc{}
	}
	var d Doc
	if err := json.Unmarshal(raw, &d); err != nil {
		slog.Warn("malformed card document, using empty", "column", column, "error", err)
		return Doc{}
	}
	if d == nil {
		return Doc{}
	}
	return d
}

func encodeDoc(d Doc) (json.RawMessage, error) {
	if d == nil {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(d)
}
