// Package openai adapts the OpenAI chat-completions API to llm.Provider,
// also serving "local" OpenAI-compatible servers (spec §4.9's configurable
// provider) since they share the same wire format.
package openai

import (
	"context"
	"net/http"
	"strings"
	"time"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"docintel/internal/config"
	"docintel/internal/llm"
	"docintel/internal/observability"
)

const defaultModel = sdk.ChatModelGPT4o

// Client is a single-shot chat client over the OpenAI SDK.
type Client struct {
	sdk   sdk.Client
	model string
}

// New builds a Client. An empty cfg.BaseURL targets api.openai.com; a
// non-empty one points at an OpenAI-compatible local server.
func New(cfg config.OpenAIConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
		option.WithHTTPClient(httpClient),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(base, "/")))
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	return &Client{sdk: sdk.NewClient(opts...), model: model}
}

// Chat sends one chat-completion request and returns the assistant's reply.
func (c *Client) Chat(ctx context.Context, msgs []llm.Message, tools []llm.ToolSchema, model string) (llm.Message, error) {
	effectiveModel := firstNonEmpty(model, c.model)

	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(effectiveModel),
		Messages: AdaptMessages(msgs),
	}
	if len(tools) > 0 {
		params.Tools = AdaptSchemas(tools)
	}

	log := observability.LoggerWithTrace(ctx)
	start := time.Now()
	comp, err := c.sdk.Chat.Completions.New(ctx, params)
	dur := time.Since(start)
	if err != nil {
		log.Error().Err(err).Str("model", effectiveModel).Dur("duration", dur).Msg("openai: chat completion failed")
		return llm.Message{}, err
	}
	log.Debug().
		Str("model", effectiveModel).
		Dur("duration", dur).
		Int("prompt_tokens", int(comp.Usage.PromptTokens)).
		Int("completion_tokens", int(comp.Usage.CompletionTokens)).
		Msg("openai: chat completion ok")

	if len(comp.Choices) == 0 {
		return llm.Message{}, nil
	}
	return llm.Message{Role: "assistant", Content: comp.Choices[0].Message.Content}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
