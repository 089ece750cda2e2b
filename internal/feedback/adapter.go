// Package feedback turns user ratings into profile card adjustments. The
// rules are deliberately small and additive: ordinals step one level at a
// time, list edits only ever append.
package feedback

import (
	"github.com/bureauhq/bureau/internal/profile"
)

// ctaLevels orders CTA directness from softest to most sales-driven.
var ctaLevels = []string{"heel_zacht", "neutraal", "duidelijk", "sales_gericht"}

// formalityLevels orders voice formality from most informal to most formal.
var formalityLevels = []string{"zeer_informeel", "informeel", "neutraal", "formeel", "zeer_formeel"}

// hypeBanWords are appended to bannedPhrases when feedback flags hype.
var hypeBanWords = []string{"10x", "game changer", "revolutionair"}

// noHypePattern is appended to the voice card's avoidStylePatterns.
const noHypePattern = "geen hype-taal"

// Adapter applies feedback to a card set.
type Adapter struct {
	detector Detector
}

// NewAdapter creates an Adapter. A nil detector means SubstringDetector.
func NewAdapter(detector Detector) *Adapter {
	if detector == nil {
		detector = SubstringDetector{}
	}
	return &Adapter{detector: detector}
}

// Apply maps a rating and notes to an adjusted card set. Ratings of 4 and 5
// never mutate the profile; neutral ratings (3) don't either. Ratings of 2
// and below apply the triggered adjustments. The input cards are never
// mutated; when updated is false the returned set is the input.
func (a *Adapter) Apply(rating int, notes string, current profile.CardSet) (updated bool, next profile.CardSet) {
	if rating > 2 {
		return false, current
	}

	triggers := a.detector.Detect(notes)

	next = copyCardSet(current)

	if triggers.TooSalesy {
		if softenCTALevel(next.Constraints) {
			updated = true
		}
		var toAdd []string
		if triggers.MentionsCTASignup {
			toAdd = append(toAdd, "meld je aan")
		}
		if triggers.MentionsCTABuyNow {
			toAdd = append(toAdd, "koop nu")
		}
		if len(toAdd) > 0 && appendCTAPatterns(next.Constraints, toAdd) {
			updated = true
		}
	}

	if triggers.TooFormal {
		if softenFormality(next.Voice) {
			updated = true
		}
	}

	if triggers.TooHypey {
		if appendUnique(next.Voice, "avoidStylePatterns", []string{noHypePattern}) {
			updated = true
		}
		if appendUnique(next.Constraints, "bannedPhrases", hypeBanWords) {
			updated = true
		}
	}

	if !updated {
		return false, current
	}
	return true, next
}

// softenCTALevel steps ctaStyle.level one position toward the soft end.
// Unknown or absent levels are left alone; the softest level stays put.
func softenCTALevel(constraints profile.Doc) bool {
	cta, _ := constraints["ctaStyle"].(map[string]any)
	level, _ := cta["level"].(string)
	softer, ok := stepDown(ctaLevels, level)
	if !ok || softer == level {
		return false
	}
	if cta == nil {
		cta = map[string]any{}
	}
	cta["level"] = softer
	constraints["ctaStyle"] = cta
	return true
}

// softenFormality steps voice formality one position toward informal.
func softenFormality(voice profile.Doc) bool {
	level, _ := voice["formality"].(string)
	softer, ok := stepDown(formalityLevels, level)
	if !ok || softer == level {
		return false
	}
	voice["formality"] = softer
	return true
}

// stepDown returns the level one position earlier in the ordinal. The first
// level maps to itself; values outside the ordinal report ok=false.
func stepDown(levels []string, level string) (string, bool) {
	for i, l := range levels {
		if l == level {
			if i == 0 {
				return levels[0], true
			}
			return levels[i-1], true
		}
	}
	return "", false
}

// appendCTAPatterns adds patterns to ctaStyle.bannedCtaPatterns, skipping
// duplicates.
func appendCTAPatterns(constraints profile.Doc, patterns []string) bool {
	cta, _ := constraints["ctaStyle"].(map[string]any)
	if cta == nil {
		cta = map[string]any{}
	}
	existing := toAnySlice(cta["bannedCtaPatterns"])
	changed := false
	for _, p := range patterns {
		if !containsString(existing, p) {
			existing = append(existing, p)
			changed = true
		}
	}
	if !changed {
		return false
	}
	cta["bannedCtaPatterns"] = existing
	constraints["ctaStyle"] = cta
	return true
}

// appendUnique adds values to a string-array field on a document, skipping
// duplicates.
func appendUnique(doc profile.Doc, field string, values []string) bool {
	existing := toAnySlice(doc[field])
	changed := false
	for _, v := range values {
		if !containsString(existing, v) {
			existing = append(existing, v)
			changed = true
		}
	}
	if !changed {
		return false
	}
	doc[field] = existing
	return true
}

// toAnySlice coerces a decoded JSON value into a mutable []any. A bare
// non-nil scalar becomes a one-element slice, mirroring the defensive
// array handling elsewhere.
func toAnySlice(v any) []any {
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		copy(out, val)
		return out
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	case nil:
		return nil
	default:
		return []any{val}
	}
}

func containsString(list []any, s string) bool {
	for _, item := range list {
		if str, ok := item.(string); ok && str == s {
			return true
		}
	}
	return false
}

// copyCardSet deep-copies the documents so adjustments never alias the
// caller's maps.
func copyCardSet(c profile.CardSet) profile.CardSet {
	return profile.CardSet{
		Voice:       copyDoc(c.Voice),
		Audience:    copyDoc(c.Audience),
		Offer:       copyDoc(c.Offer),
		Constraints: copyDoc(c.Constraints),
	}
}

func copyDoc(d profile.Doc) profile.Doc {
	out := make(profile.Doc, len(d))
	for k, v := range d {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = copyValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	default:
		return val
	}
}
