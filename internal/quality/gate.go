// Package quality evaluates generated content against channel specs and
// profile constraints. Everything here is a pure function over the input
// text: no I/O, no randomness, same input always yields the same result.
package quality

import (
	"fmt"
	"strings"

	"github.com/bureauhq/bureau/internal/profile"
)

// hypePatterns flag hype-sounding language. Only the first hit counts.
var hypePatterns = []string{
	"revolutionair",
	"game changer",
	"10x",
	"sky is the limit",
	"crushing it",
	"gegarandeerd succes",
	"passief inkomen in je slaap",
}

// salesyCTAPatterns is the default aggressive-CTA list, used when the
// profile does not carry its own bannedCtaPatterns.
var salesyCTAPatterns = []string{
	"koop nu",
	"nu kopen",
	"beperkte plekken",
	"nog maar",
	"meld je nu aan",
	"schrijf je nu in",
}

// Result is the outcome of one evaluation. ViolatedConstraints carries
// machine-readable tags ("bannedPhrase:x", "bannedCliche:x", "bannedTopic:x",
// "salesyCta:x"); Issues and Suggestions are user-facing Dutch strings.
type Result struct {
	Score               float64  `json:"score"`
	Issues              []string `json:"issues"`
	Suggestions         []string `json:"suggestions"`
	ViolatedConstraints []string `json:"violatedConstraints"`
}

// Evaluate scores text against a channel spec and the effective constraints
// document. Matching is case-insensitive literal substring matching. The
// score starts at 1.0, loses a flat 0.6 when any constraint is violated, and
// loses 0.1 per issue capped at 0.4, clamped to zero.
func Evaluate(text string, spec Spec, constraints profile.Doc) Result {
	lower := strings.ToLower(text)

	r := Result{
		Score:               1,
		Issues:              []string{},
		Suggestions:         []string{},
		ViolatedConstraints: []string{},
	}

	view := profile.Constraints(constraints)

	for _, phrase := range view.BannedPhrases {
		p := strings.ToLower(phrase)
		if p != "" && strings.Contains(lower, p) {
			r.ViolatedConstraints = append(r.ViolatedConstraints, "bannedPhrase:"+p)
			r.Issues = append(r.Issues, fmt.Sprintf("Bevat verboden uitdrukking: %q.", p))
		}
	}

	for _, cliche := range spec.BannedCliches {
		c := strings.ToLower(cliche)
		if c != "" && strings.Contains(lower, c) {
			r.ViolatedConstraints = append(r.ViolatedConstraints, "bannedCliche:"+c)
			r.Issues = append(r.Issues, fmt.Sprintf("Bevat verboden cliché: %q.", cliche))
		}
	}

	// Topics count as violations too, the issue text just signals softer.
	for _, topic := range view.BannedTopics {
		tp := strings.ToLower(topic)
		if tp != "" && strings.Contains(lower, tp) {
			r.ViolatedConstraints = append(r.ViolatedConstraints, "bannedTopic:"+tp)
			r.Issues = append(r.Issues, fmt.Sprintf("Raakt een onderwerp dat je liever vermijdt: %q.", tp))
		}
	}

	for _, pattern := range hypePatterns {
		if strings.Contains(lower, pattern) {
			r.Issues = append(r.Issues, "Tekst bevat hype-achtige formuleringen.")
			r.Suggestions = append(r.Suggestions, "Formuleer claims concreter en nuchterder, vermijd hype-termen.")
			break
		}
	}

	ctaPatterns := salesyCTAPatterns
	if view.HasCTAPatterns {
		ctaPatterns = view.BannedCTAPatterns
	}
	for _, pattern := range ctaPatterns {
		p := strings.ToLower(pattern)
		if p != "" && strings.Contains(lower, p) {
			r.Issues = append(r.Issues, "Call-to-action is te salesy voor de ingestelde stijl.")
			r.Suggestions = append(r.Suggestions, "Gebruik een zachtere uitnodiging, bijvoorbeeld een vraag of een uitnodiging tot gesprek.")
			r.ViolatedConstraints = append(r.ViolatedConstraints, "salesyCta:"+p)
			break
		}
	}

	if spec.MinLines > 0 && countNonEmptyLines(text) < spec.MinLines {
		r.Issues = append(r.Issues, "De post is erg kort; overweeg iets meer context (story/insight) toe te voegen.")
		r.Suggestions = append(r.Suggestions, "Voeg 1–2 korte alinea's toe met een concreet voorbeeld of een korte uitleg.")
	}

	if spec.MinWords > 0 && len(strings.Fields(text)) < spec.MinWords {
		r.Issues = append(r.Issues, fmt.Sprintf(
			"De blog is korter dan de aanbevolen minimale lengte voor %s (minimaal %d woorden).",
			spec.LengthMode, spec.MinWords))
		r.Suggestions = append(r.Suggestions, "Voeg extra context, voorbeelden of verdieping toe om de blog completer te maken.")
	}

	if len(r.ViolatedConstraints) > 0 {
		r.Score -= 0.6
	}
	if len(r.Issues) > 0 {
		penalty := float64(len(r.Issues)) * 0.1
		if penalty > 0.4 {
			penalty = 0.4
		}
		r.Score -= penalty
	}
	if r.Score < 0 {
		r.Score = 0
	}

	return r
}

func countNonEmptyLines(text string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
