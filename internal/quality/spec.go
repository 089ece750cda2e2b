package quality

// Spec pins the channel rules a piece of content is evaluated against.
// Zero-valued checks are skipped: MinLines 0 disables the structure check,
// MinWords 0 disables the length check, an empty BannedCliches list disables
// the cliché check.
type Spec struct {
	Version       string
	BannedCliches []string
	MinLines      int
	MinWords      int
	LengthMode    string // "short", "medium" or "long"
}

// LinkedInSpecV1 is the fixed rule set for LinkedIn posts.
var LinkedInSpecV1 = Spec{
	Version: "LinkedInSpecV1",
	BannedCliches: []string{
		"game changer",
		"revolutionair",
		"10x",
		"sky is the limit",
		"crushing it",
		"hustle",
	},
	MinLines: 3,
}

// BuildBlogSpec returns the blog rule set for a length mode. Unknown modes
// fall back to the short minimum.
func BuildBlogSpec(lengthMode string) Spec {
	minWords := 400
	switch lengthMode {
	case "medium":
		minWords = 800
	case "long":
		minWords = 1200
	}
	return Spec{
		Version:    "BlogSpecV1",
		MinWords:   minWords,
		LengthMode: lengthMode,
	}
}
