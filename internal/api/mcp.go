package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bureauhq/bureau/internal/generate"
	"github.com/bureauhq/bureau/internal/profile"
	"github.com/bureauhq/bureau/internal/quality"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Tracker   *profile.Tracker
	Resolver  *profile.Resolver
	Generator *generate.Service
}

// NewMCPServer creates an MCP server with the profile and generation tools
// registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"bureau",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("bureau — personalization profile engine for on-brand LinkedIn and blog content."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("answer_question",
			mcp.WithDescription("Record an answer to a profile intake question and return the updated interview state."),
			mcp.WithString("questionKey", mcp.Description("Question key, e.g. 'foundations.target_audience'"), mcp.Required()),
			mcp.WithString("answerText", mcp.Description("The answer text"), mcp.Required()),
			mcp.WithString("workspaceId", mcp.Description("Workspace scope (default 'default')")),
			mcp.WithString("projectId", mcp.Description("Optional project scope")),
		),
		mcpAnswerQuestion(deps),
	)

	s.AddTool(
		mcp.NewTool("next_question",
			mcp.WithDescription("Return the next unanswered profile intake question for a scope."),
			mcp.WithString("workspaceId", mcp.Description("Workspace scope (default 'default')")),
			mcp.WithString("projectId", mcp.Description("Optional project scope")),
		),
		mcpNextQuestion(deps),
	)

	s.AddTool(
		mcp.NewTool("generate_linkedin",
			mcp.WithDescription("Turn a raw thought into a LinkedIn post using the effective profile, gated on quality."),
			mcp.WithString("thought", mcp.Description("The raw thought to turn into a post"), mcp.Required()),
			mcp.WithString("length", mcp.Description("Length mode: short, medium or long (default medium)")),
			mcp.WithString("workspaceId", mcp.Description("Workspace scope (default 'default')")),
			mcp.WithString("projectId", mcp.Description("Optional project scope")),
		),
		mcpGenerateLinkedIn(deps),
	)

	s.AddTool(
		mcp.NewTool("submit_feedback",
			mcp.WithDescription("Rate a generated output. Low ratings with trigger phrases adjust the profile."),
			mcp.WithString("outputId", mcp.Description("ID of the output to rate"), mcp.Required()),
			mcp.WithNumber("rating", mcp.Description("Rating from 1 to 5"), mcp.Required()),
			mcp.WithString("notes", mcp.Description("Optional free-form feedback notes")),
			mcp.WithString("workspaceId", mcp.Description("Workspace scope (default 'default')")),
		),
		mcpSubmitFeedback(deps),
	)

	s.AddTool(
		mcp.NewTool("evaluate_quality",
			mcp.WithDescription("Score a piece of content against the channel rules and the scope's constraints."),
			mcp.WithString("text", mcp.Description("The content to evaluate"), mcp.Required()),
			mcp.WithString("channel", mcp.Description("Channel: linkedin or blog (default linkedin)")),
			mcp.WithString("length", mcp.Description("Blog length mode: short, medium or long")),
			mcp.WithString("workspaceId", mcp.Description("Workspace scope (default 'default')")),
			mcp.WithString("projectId", mcp.Description("Optional project scope")),
		),
		mcpEvaluateQuality(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"profile://effective",
			"Effective Profile",
			mcp.WithResourceDescription("The merged workspace+project profile for the default workspace"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceEffectiveProfile(deps),
	)

	return s
}

func mcpScope(req mcp.CallToolRequest) profile.Scope {
	ws := req.GetString("workspaceId", DefaultWorkspaceID)
	if ws == "" {
		ws = DefaultWorkspaceID
	}
	return profile.Scope{WorkspaceID: ws, ProjectID: req.GetString("projectId", "")}
}

func mcpAnswerQuestion(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		questionKey, err := req.RequireString("questionKey")
		if err != nil {
			return mcpError("questionKey is required"), nil
		}
		answerText, err := req.RequireString("answerText")
		if err != nil {
			return mcpError("answerText is required"), nil
		}

		state, err := deps.Tracker.RecordAnswer(mcpScope(req), questionKey, answerText, "")
		if err != nil {
			return mcpError(fmt.Sprintf("failed to record answer: %v", err)), nil
		}

		b, err := json.Marshal(state)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal state: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpNextQuestion(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		q, ok, err := deps.Tracker.NextQuestion(mcpScope(req))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to determine next question: %v", err)), nil
		}
		if !ok {
			return mcpText(`{"stop": true}`), nil
		}

		b, err := json.Marshal(q)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal question: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGenerateLinkedIn(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		thought, err := req.RequireString("thought")
		if err != nil {
			return mcpError("thought is required"), nil
		}

		res, err := deps.Generator.Generate(ctx, mcpScope(req), generate.Request{
			Channel: generate.ChannelLinkedIn,
			Thought: thought,
			Length:  req.GetString("length", "medium"),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("generation failed: %v", err)), nil
		}

		b, err := json.Marshal(map[string]any{
			"outputId":           res.OutputID,
			"content":            res.Content,
			"score":              res.Quality.Score,
			"profileCardVersion": res.ProfileCardVersion,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSubmitFeedback(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		outputID, err := req.RequireString("outputId")
		if err != nil {
			return mcpError("outputId is required"), nil
		}
		rating, err := req.RequireInt("rating")
		if err != nil {
			return mcpError("rating is required"), nil
		}

		ws := req.GetString("workspaceId", DefaultWorkspaceID)
		version, err := deps.Generator.SubmitFeedback(ctx, ws, outputID, rating, req.GetString("notes", ""))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to submit feedback: %v", err)), nil
		}
		return mcpText(fmt.Sprintf(`{"newProfileVersion": %d}`, version)), nil
	}
}

func mcpEvaluateQuality(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcpError("text is required"), nil
		}

		var spec quality.Spec
		switch req.GetString("channel", "linkedin") {
		case "blog":
			spec = quality.BuildBlogSpec(req.GetString("length", "medium"))
		default:
			spec = quality.LinkedInSpecV1
		}

		effective, err := deps.Resolver.Resolve(ctx, mcpScope(req))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to resolve profile: %v", err)), nil
		}

		result := quality.Evaluate(text, spec, effective.Cards.Constraints)
		b, err := json.Marshal(result)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceEffectiveProfile(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		effective, err := deps.Resolver.Resolve(ctx, profile.Scope{WorkspaceID: DefaultWorkspaceID})
		if err != nil {
			return nil, fmt.Errorf("failed to resolve profile: %w", err)
		}

		b, err := json.Marshal(map[string]any{
			"workspaceCardVersion": effective.WorkspaceCardVersion,
			"projectCardVersion":   effective.ProjectCardVersion,
			"voiceCard":            effective.Cards.Voice,
			"audienceCard":         effective.Cards.Audience,
			"offerCard":            effective.Cards.Offer,
			"constraints":          effective.Cards.Constraints,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profile: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: message},
		},
	}
}
