package feedback

import "strings"

// Triggers is the set of profile adjustments a piece of feedback asks for.
type Triggers struct {
	TooSalesy         bool
	TooFormal         bool
	TooHypey          bool
	MentionsCTASignup bool // notes quote "meld je aan"
	MentionsCTABuyNow bool // notes quote "koop nu"
}

// Detector extracts adjustment triggers from feedback notes. The default is
// literal substring matching; richer detection can be swapped in without
// touching the adapter rules.
type Detector interface {
	Detect(notes string) Triggers
}

// SubstringDetector matches the fixed Dutch trigger phrases case-insensitively.
type SubstringDetector struct{}

func (SubstringDetector) Detect(notes string) Triggers {
	lower := strings.ToLower(notes)
	return Triggers{
		TooSalesy: strings.Contains(lower, "salesy") ||
			strings.Contains(lower, "te sales") ||
			strings.Contains(lower, "te commerc"),
		TooFormal: strings.Contains(lower, "te formeel") ||
			strings.Contains(lower, "te stijf"),
		TooHypey: strings.Contains(lower, "te hype") ||
			strings.Contains(lower, "klinkt als guru"),
		MentionsCTASignup: strings.Contains(lower, "meld je aan"),
		MentionsCTABuyNow: strings.Contains(lower, "koop nu"),
	}
}
