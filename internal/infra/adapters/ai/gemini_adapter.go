package ai

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"

	"github.com/hn770123/memory-assistant-v3/internal/domain/ports/adapter"
)

var _ adapter.AIServiceAdapter = (*GeminiAdapter)(nil)

// GeminiAdapter implements the AI port on top of the Gemini API.
type GeminiAdapter struct {
	client *genai.Client
	model  string
	maxOut int
}

// NewGeminiAdapter connects to the Gemini API. baseURL overrides the
// endpoint for proxies and compatible gateways; empty means the default.
func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, model string, maxOut int) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions.BaseURL = baseURL
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &GeminiAdapter{client: client, model: model, maxOut: maxOut}, nil
}

func (g *GeminiAdapter) ListModels(ctx context.Context) ([]string, error) {
	return []string{g.model}, nil
}

func (g *GeminiAdapter) GetModelInfo(model string) (adapter.ModelInfo, error) {
	if model == "" {
		model = g.model
	}
	return adapter.ModelInfo{
		Name:        model,
		Description: "Google Gemini model",
		Supports:    []string{"text"},
	}, nil
}

func (g *GeminiAdapter) Chat(ctx context.Context, model string, messages []adapter.Message) (string, error) {
	reply, _, err := g.chatCore(ctx, model, messages)
	return reply, err
}

func (g *GeminiAdapter) ChatWithUsage(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	return g.chatCore(ctx, model, messages)
}

func (g *GeminiAdapter) Generate(ctx context.Context, model, prompt string) (string, error) {
	reply, _, err := g.chatCore(ctx, model, []adapter.Message{{Role: "user", Content: prompt}})
	return reply, err
}

func (g *GeminiAdapter) chatCore(ctx context.Context, model string, messages []adapter.Message) (string, adapter.Usage, error) {
	if len(messages) == 0 {
		return "", adapter.Usage{}, errors.New("gemini: no messages")
	}
	last := messages[len(messages)-1]
	if strings.ToLower(last.Role) != "user" {
		return "", adapter.Usage{}, errors.New("gemini: last message must be from user")
	}

	var cfg *genai.GenerateContentConfig
	if g.maxOut > 0 {
		cfg = &genai.GenerateContentConfig{MaxOutputTokens: int32(g.maxOut)}
	}

	chat, err := g.client.Chats.Create(ctx, modelOrDefault(model, g.model), cfg, toGenAIHistory(messages[:len(messages)-1]))
	if err != nil {
		return "", adapter.Usage{}, err
	}

	resp, err := chat.SendMessage(ctx, genai.Part{Text: last.Content})
	if err != nil {
		return "", adapter.Usage{}, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", adapter.Usage{}, errors.New("gemini: empty response")
	}

	var u adapter.Usage
	if meta := resp.UsageMetadata; meta != nil {
		u.PromptTokens = int(meta.PromptTokenCount)
		u.CompletionTokens = int(meta.CandidatesTokenCount)
		u.TotalTokens = int(meta.TotalTokenCount)
	}
	return resp.Candidates[0].Content.Parts[0].Text, u, nil
}

// toGenAIHistory maps chat roles onto genai roles. Gemini has no system
// role in chat history, so system messages ride along as user turns.
func toGenAIHistory(messages []adapter.Message) []*genai.Content {
	history := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := genai.RoleUser
		if strings.ToLower(m.Role) == "assistant" {
			role = genai.RoleModel
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	return history
}
