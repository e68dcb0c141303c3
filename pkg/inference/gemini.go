package inference

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const providerGemini = "gemini"

// Gemini implements Provider with Google's Gemini API.
type Gemini struct {
	config *Config
	client *genai.Client
	logger *slog.Logger
}

// NewGemini creates a Gemini provider. An API key is required.
func NewGemini(ctx context.Context, opts ...Option) (*Gemini, error) {
	cfg := DefaultConfig()
	cfg.Model = "gemini-2.0-flash"
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, WrapError(providerGemini, ErrNoAPIKey)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clientOpts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.BaseURL))
	}
	client, err := genai.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}

	return &Gemini{
		config: cfg,
		client: client,
		logger: cfg.Logger.With("component", "inference.gemini"),
	}, nil
}

// Chat generates a chat completion using Gemini.
func (g *Gemini) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if req == nil {
		return nil, WrapError(providerGemini, ErrNoMessages)
	}
	start := time.Now()

	modelName := req.Model
	if modelName == "" {
		modelName = g.config.Model
	}
	model := g.client.GenerativeModel(modelName)
	g.configure(model, req)

	system, dialogue := splitSystem(req.Messages)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	history, last, err := toContents(dialogue)
	if err != nil {
		return nil, WrapError(providerGemini, err)
	}

	cs := model.StartChat()
	cs.History = history
	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return nil, classify(providerGemini, err)
	}

	text, finish := firstCandidate(resp)
	if text == "" {
		return nil, WrapError(providerGemini, ErrEmptyResponse)
	}

	out := &ChatResponse{
		Message:      NewAssistantMessage(text),
		FinishReason: finish,
		Model:        modelName,
		LatencyMs:    time.Since(start).Milliseconds(),
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

func (g *Gemini) configure(model *genai.GenerativeModel, req *ChatRequest) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = g.config.MaxTokens
	}
	temp := req.Temperature
	if temp == 0 {
		temp = g.config.Temperature
	}
	model.SetMaxOutputTokens(int32(maxTokens))
	model.SetTemperature(float32(temp))
	if len(req.Stop) > 0 {
		model.StopSequences = req.Stop
	}
}

// toContents maps the dialogue to Gemini history plus the final user turn.
func toContents(dialogue []Message) (history []*genai.Content, last string, err error) {
	if len(dialogue) == 0 || dialogue[len(dialogue)-1].Role != RoleUser {
		return nil, "", ErrNoMessages
	}
	for _, m := range dialogue[:len(dialogue)-1] {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}
	return history, dialogue[len(dialogue)-1].Content, nil
}

func firstCandidate(resp *genai.GenerateContentResponse) (text, finish string) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ""
	}
	cand := resp.Candidates[0]
	finish = strings.ToLower(cand.FinishReason.String())
	if cand.Content == nil {
		return "", finish
	}
	var b strings.Builder
	for _, p := range cand.Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return strings.TrimSpace(b.String()), finish
}

// Health checks the API key by listing one model.
func (g *Gemini) Health(ctx context.Context) error {
	it := g.client.ListModels(ctx)
	if _, err := it.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return classify(providerGemini, err)
	}
	return nil
}

// Close releases the underlying client.
func (g *Gemini) Close() error {
	return g.client.Close()
}

// Verify Gemini implements Provider at compile time.
var _ Provider = (*Gemini)(nil)
