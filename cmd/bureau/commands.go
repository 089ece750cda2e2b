package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bureauhq/bureau/internal/config"
)

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage the writing profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective profile as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), withQuery("/profile/effective", scopeValues()))
		if err != nil {
			return err
		}

		var effective any
		if err := decodeJSON(resp, &effective); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(effective)
	},
}

var profileNextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the next onboarding question",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), withQuery("/profile/next-question", scopeValues()))
		if err != nil {
			return err
		}

		var q struct {
			QuestionKey  string   `json:"questionKey"`
			QuestionText string   `json:"questionText"`
			AnswerType   string   `json:"answerType"`
			Options      []string `json:"options"`
			Stop         bool     `json:"stop"`
		}
		if err := decodeJSON(resp, &q); err != nil {
			return err
		}

		if q.Stop {
			printSuccess("No open questions, the profile is complete enough")
			return nil
		}

		fmt.Printf("%s\n", colorize(colorBold, q.QuestionText))
		printStatus("Key", "%s", q.QuestionKey)
		printStatus("Answer type", "%s", q.AnswerType)
		if len(q.Options) > 0 {
			printStatus("Options", "%s", strings.Join(q.Options, ", "))
		}
		return nil
	},
}

var profileAnswerCmd = &cobra.Command{
	Use:   "answer <question-key> <answer>",
	Short: "Answer an onboarding question",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		answer := strings.Join(args[1:], " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := scopeBody()
		body["questionKey"] = key
		body["answerText"] = answer

		resp, err := client.post(cmd.Context(), "/profile/answers", body)
		if err != nil {
			return err
		}

		var result struct {
			OK    bool `json:"ok"`
			State struct {
				MissingKeys []string `json:"missingKeys"`
				Confidence  float64  `json:"confidenceScore"`
			} `json:"state"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Recorded answer for %s", key)
		printStatus("Confidence", "%.2f", result.State.Confidence)
		printStatus("Missing", "%d foundation questions", len(result.State.MissingKeys))
		return nil
	},
}

var profileSynthesizeCmd = &cobra.Command{
	Use:   "synthesize",
	Short: "Synthesize profile cards from the recorded answers",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Synthesizing profile...")
		resp, err := client.post(cmd.Context(), "/profile/synthesize", scopeBody())
		if err != nil {
			return err
		}

		var result struct {
			OK      bool `json:"ok"`
			Version int  `json:"version"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Profile synthesized as version %d", result.Version)
		return nil
	},
}

func init() {
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileNextCmd)
	profileCmd.AddCommand(profileAnswerCmd)
	profileCmd.AddCommand(profileSynthesizeCmd)
}

// --- generate ---

var generateCmd = &cobra.Command{
	Use:   "generate <channel>",
	Short: "Generate a post for a channel (linkedin or blog)",
	Long: `Generate content from a raw thought.

Examples:
  bureau generate linkedin --thought "Waarom wij alleen nog fixed-price offertes doen"
  bureau generate blog --thought "Lessen uit drie mislukte migraties" --length long
  bureau generate linkedin --file ./thought.txt`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		channel := args[0]
		if channel != "linkedin" && channel != "blog" {
			return fmt.Errorf("unknown channel %q, expected linkedin or blog", channel)
		}

		thought, _ := cmd.Flags().GetString("thought")
		file, _ := cmd.Flags().GetString("file")
		length, _ := cmd.Flags().GetString("length")

		if thought == "" && file == "" {
			return fmt.Errorf("one of --thought or --file is required")
		}
		if file != "" {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			thought = string(data)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := scopeBody()
		body["thought"] = thought
		if length != "" {
			body["length"] = length
		}

		printStep("Generating %s post...", channel)
		resp, err := client.post(cmd.Context(), "/generate/"+channel, body)
		if err != nil {
			return err
		}

		var result struct {
			OK      bool   `json:"ok"`
			Content string `json:"content"`
			Quality struct {
				Score       float64  `json:"score"`
				Issues      []string `json:"issues"`
				Suggestions []string `json:"suggestions"`
			} `json:"quality"`
			OutputID           string `json:"outputId"`
			ProfileCardVersion int    `json:"profileCardVersion"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Content)

		printStatus("Output", "%s", result.OutputID)
		printStatus("Quality", "%.2f", result.Quality.Score)
		if result.ProfileCardVersion > 0 {
			printStatus("Profile version", "%d", result.ProfileCardVersion)
		}
		for _, issue := range result.Quality.Issues {
			printWarning("%s", issue)
		}
		return nil
	},
}

func init() {
	generateCmd.Flags().String("thought", "", "raw thought to expand into a post")
	generateCmd.Flags().String("file", "", "file containing the thought")
	generateCmd.Flags().String("length", "", "target length: short, medium, or long")
}

// --- outputs ---

var outputsCmd = &cobra.Command{
	Use:   "outputs",
	Short: "Browse generated outputs",
}

var outputsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent outputs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		q := scopeValues()
		q.Set("limit", fmt.Sprintf("%d", limit))
		resp, err := client.get(cmd.Context(), withQuery("/outputs", q))
		if err != nil {
			return err
		}

		var outputs []struct {
			ID        string `json:"ID"`
			Channel   string `json:"Channel"`
			Content   string `json:"Content"`
			CreatedAt string `json:"CreatedAt"`
		}
		if err := decodeJSON(resp, &outputs); err != nil {
			return err
		}

		if len(outputs) == 0 {
			fmt.Println("No outputs found.")
			return nil
		}

		for _, o := range outputs {
			content := strings.ReplaceAll(o.Content, "\n", " ")
			if len(content) > 80 {
				content = content[:80] + "..."
			}
			fmt.Printf("%s  %-8s  %s  %s\n",
				colorize(colorCyan, o.ID[:8]),
				o.Channel,
				o.CreatedAt,
				content,
			)
		}
		return nil
	},
}

var outputsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), withQuery("/outputs/"+args[0], scopeValues()))
		if err != nil {
			return err
		}

		var output any
		if err := decodeJSON(resp, &output); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(output)
	},
}

func init() {
	outputsListCmd.Flags().Int("limit", 20, "maximum number of outputs to list")
	outputsCmd.AddCommand(outputsListCmd)
	outputsCmd.AddCommand(outputsShowCmd)
}

// --- feedback ---

var feedbackCmd = &cobra.Command{
	Use:   "feedback <output-id>",
	Short: "Rate a generated output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rating, _ := cmd.Flags().GetInt("rating")
		notes, _ := cmd.Flags().GetString("notes")

		if rating == 0 {
			return fmt.Errorf("--rating is required (1-5)")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]any{"rating": rating}
		if workspaceFlag != "" {
			body["workspaceId"] = workspaceFlag
		}
		if notes != "" {
			body["notes"] = notes
		}

		resp, err := client.post(cmd.Context(), "/outputs/"+args[0]+"/feedback", body)
		if err != nil {
			return err
		}

		var result struct {
			OK                bool `json:"ok"`
			NewProfileVersion int  `json:"newProfileVersion"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Feedback recorded, profile at version %d", result.NewProfileVersion)
		return nil
	},
}

func init() {
	feedbackCmd.Flags().Int("rating", 0, "rating from 1 (bad) to 5 (great)")
	feedbackCmd.Flags().String("notes", "", "free-form notes on what was off")
}

// --- examples ---

var examplesCmd = &cobra.Command{
	Use:   "examples",
	Short: "Manage writing examples",
}

var examplesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a writing example",
	Long: `Add a writing example to steer generation.

Examples:
  bureau examples add --text "Vorige week zei een klant iets dat bleef hangen..."
  bureau examples add --url https://example.com/blog/post
  bureau examples add --pdf ./oude-nieuwsbrief.pdf --kind bad`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		urlFlag, _ := cmd.Flags().GetString("url")
		pdfPath, _ := cmd.Flags().GetString("pdf")
		kind, _ := cmd.Flags().GetString("kind")

		if text == "" && urlFlag == "" && pdfPath == "" {
			return fmt.Errorf("one of --text, --url, or --pdf is required")
		}

		body := scopeBody()
		body["kind"] = kind

		switch {
		case text != "":
			body["content"] = text
		case urlFlag != "":
			body["url"] = urlFlag
		case pdfPath != "":
			data, err := os.ReadFile(pdfPath)
			if err != nil {
				return fmt.Errorf("reading PDF: %w", err)
			}
			body["pdfBase64"] = base64.StdEncoding.EncodeToString(data)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/examples", body)
		if err != nil {
			return err
		}

		var result struct {
			OK     bool   `json:"ok"`
			ID     string `json:"id"`
			JobID  string `json:"jobId"`
			Status string `json:"status"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if result.Status == "queued" {
			printSuccess("Queued example job %s", result.JobID)
		} else {
			printSuccess("Added example %s", result.ID)
		}
		return nil
	},
}

var examplesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List writing examples in scope",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), withQuery("/examples", scopeValues()))
		if err != nil {
			return err
		}

		var examples []struct {
			ID      string `json:"ID"`
			Kind    string `json:"Kind"`
			Source  string `json:"Source"`
			Content string `json:"Content"`
		}
		if err := decodeJSON(resp, &examples); err != nil {
			return err
		}

		if len(examples) == 0 {
			fmt.Println("No examples found.")
			return nil
		}

		for _, e := range examples {
			content := strings.ReplaceAll(e.Content, "\n", " ")
			if len(content) > 80 {
				content = content[:80] + "..."
			}
			fmt.Printf("%s  %-4s  %-4s  %s\n",
				colorize(colorCyan, e.ID[:8]),
				e.Kind,
				e.Source,
				content,
			)
		}
		return nil
	},
}

func init() {
	examplesAddCmd.Flags().String("text", "", "example text to add directly")
	examplesAddCmd.Flags().String("url", "", "URL to fetch and extract")
	examplesAddCmd.Flags().String("pdf", "", "PDF file to extract")
	examplesAddCmd.Flags().String("kind", "good", "example kind: good or bad")
	examplesCmd.AddCommand(examplesAddCmd)
	examplesCmd.AddCommand(examplesListCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
