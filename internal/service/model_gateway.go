package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voxpop/internal/config"
	"voxpop/internal/model"
)

// ChatMessage is a provider-agnostic role-tagged message. Callers always use
// the abstract role set {system, user, assistant}; provider quirks (Gemini has
// no system role and calls the assistant "model") are handled here.
type ChatMessage struct {
	Role    model.Role
	Content string
}

// GenerateOptions tunes a single generation call.
type GenerateOptions struct {
	Temperature     float64
	MaxOutputTokens int
	// JSONOutput constrains the model to emit a JSON document.
	JSONOutput bool
}

// GenerateResult is the backend's reply plus its token accounting. Token
// counts come from the provider, not from estimates.
type GenerateResult struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Generator is the model-backend contract every classifier depends on.
// Errors wrap model.ErrTransient (retryable) or model.ErrContentFiltered
// (non-retryable refusal); anything else is fatal.
type Generator interface {
	Generate(ctx context.Context, modelName string, messages []ChatMessage, opts GenerateOptions) (*GenerateResult, error)
}

// ModelGateway talks to the Gemini generateContent API.
type ModelGateway struct {
	config *config.AIConfig
	client *http.Client
}

func NewModelGateway(cfg *config.AIConfig) *ModelGateway {
	return &ModelGateway{
		config: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
		},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig map[string]interface{} `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// Generate sends one generation request and maps provider errors onto the
// pipeline taxonomy.
func (g *ModelGateway) Generate(ctx context.Context, modelName string, messages []ChatMessage, opts GenerateOptions) (*GenerateResult, error) {
	reqBody := geminiRequest{
		Contents:         toGeminiContents(messages),
		GenerationConfig: map[string]interface{}{},
	}
	if opts.Temperature > 0 {
		reqBody.GenerationConfig["temperature"] = opts.Temperature
	}
	if opts.MaxOutputTokens > 0 {
		reqBody.GenerationConfig["maxOutputTokens"] = opts.MaxOutputTokens
	}
	if opts.JSONOutput {
		reqBody.GenerationConfig["responseMimeType"] = "application/json"
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s?key=%s", g.config.ModelEndpoint(modelName), g.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", model.ErrTransient, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: backend status %d", model.ErrTransient, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backend status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return nil, fmt.Errorf("decode backend response: %w", err)
	}

	if geminiResp.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("%w: %s", model.ErrContentFiltered, geminiResp.PromptFeedback.BlockReason)
	}
	if len(geminiResp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from backend")
	}

	candidate := geminiResp.Candidates[0]
	switch candidate.FinishReason {
	case "SAFETY", "PROHIBITED_CONTENT", "BLOCKLIST":
		return nil, fmt.Errorf("%w: finish reason %s", model.ErrContentFiltered, candidate.FinishReason)
	}
	if len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("empty candidate from backend")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		sb.WriteString(part.Text)
	}

	return &GenerateResult{
		Text:         sb.String(),
		InputTokens:  geminiResp.UsageMetadata.PromptTokenCount,
		OutputTokens: geminiResp.UsageMetadata.CandidatesTokenCount,
	}, nil
}

// toGeminiContents maps abstract roles onto Gemini's. Gemini rejects a
// "system" role, so system content is folded into the first user turn, and
// the assistant becomes "model".
func toGeminiContents(messages []ChatMessage) []geminiContent {
	var systemParts []string
	contents := make([]geminiContent, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			systemParts = append(systemParts, msg.Content)
		case model.RoleAssistant:
			contents = append(contents, geminiContent{
				Role:  "model",
				Parts: []geminiPart{{Text: msg.Content}},
			})
		default:
			contents = append(contents, geminiContent{
				Role:  "user",
				Parts: []geminiPart{{Text: msg.Content}},
			})
		}
	}

	if len(systemParts) > 0 {
		prefix := strings.Join(systemParts, "\n\n")
		if len(contents) > 0 && contents[0].Role == "user" {
			contents[0].Parts[0].Text = prefix + "\n\n" + contents[0].Parts[0].Text
		} else {
			contents = append([]geminiContent{{
				Role:  "user",
				Parts: []geminiPart{{Text: prefix}},
			}}, contents...)
		}
	}

	return contents
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
