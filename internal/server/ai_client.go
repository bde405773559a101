package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"choti/apps/backend/internal/config"
)

type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type AIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type AIModelRequest struct {
	Model        string
	SystemPrompt string
	Conversation []ChatTurn
	UserPrompt   string
}

type AIModelResponse struct {
	Answer string
	Model  string
	Usage  AIUsage
}

type AIClient interface {
	Query(ctx context.Context, req AIModelRequest) (AIModelResponse, error)
}

var errEmptyCompletion = errors.New("openrouter response answer is empty")

// OpenRouterClient talks to the OpenRouter chat-completions endpoint through
// the OpenAI-compatible SDK.
type OpenRouterClient struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// attributionTransport adds the headers OpenRouter uses to attribute
// traffic to an app.
type attributionTransport struct {
	base    http.RoundTripper
	referer string
	title   string
}

func (t *attributionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	if t.referer != "" {
		cloned.Header.Set("HTTP-Referer", t.referer)
	}
	if t.title != "" {
		cloned.Header.Set("X-Title", t.title)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(cloned)
}

func NewOpenRouterClient(cfg config.Config) *OpenRouterClient {
	timeoutSeconds := cfg.AITimeoutSeconds
	if timeoutSeconds <= 0 {
		timeoutSeconds = 20
	}
	clientCfg := openai.DefaultConfig(strings.TrimSpace(cfg.OpenRouterAPIKey))
	if baseURL := strings.TrimRight(strings.TrimSpace(cfg.OpenRouterBaseURL), "/"); baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	clientCfg.HTTPClient = &http.Client{
		Timeout: time.Duration(timeoutSeconds) * time.Second,
		Transport: &attributionTransport{
			referer: strings.TrimSpace(cfg.AIReferer),
			title:   strings.TrimSpace(cfg.AIAppTitle),
		},
	}

	return &OpenRouterClient{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       strings.TrimSpace(cfg.OpenRouterModel),
		maxTokens:   cfg.AIMaxOutputTokens,
		temperature: float32(cfg.AITemperature),
	}
}

func (c *OpenRouterClient) Query(ctx context.Context, req AIModelRequest) (AIModelResponse, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.model
	}
	if model == "" {
		return AIModelResponse{}, errors.New("OPENROUTER_MODEL is not configured")
	}

	messages := buildCompletionMessages(req)
	if len(messages) == 0 {
		return AIModelResponse{}, errors.New("AI request input is empty")
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return AIModelResponse{}, err
	}
	if len(resp.Choices) == 0 {
		return AIModelResponse{}, errEmptyCompletion
	}
	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return AIModelResponse{}, errEmptyCompletion
	}

	modelName := strings.TrimSpace(resp.Model)
	if modelName == "" {
		modelName = model
	}
	return AIModelResponse{
		Answer: answer,
		Model:  modelName,
		Usage: AIUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// buildCompletionMessages flattens the system prompt, prior turns and the
// new user prompt. Blank turns and unknown roles are dropped.
func buildCompletionMessages(req AIModelRequest) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Conversation)+2)
	if system := strings.TrimSpace(req.SystemPrompt); system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, turn := range req.Conversation {
		role := strings.ToLower(strings.TrimSpace(turn.Role))
		switch role {
		case "model":
			role = openai.ChatMessageRoleAssistant
		case openai.ChatMessageRoleUser, openai.ChatMessageRoleAssistant:
		default:
			continue
		}
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: content})
	}
	if prompt := strings.TrimSpace(req.UserPrompt); prompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		})
	}
	return messages
}
