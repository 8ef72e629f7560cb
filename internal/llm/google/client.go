// Package google adapts the Gemini GenerateContent API to llm.Provider.
package google

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	genai "google.golang.org/genai"

	"docintel/internal/config"
	"docintel/internal/llm"
	"docintel/internal/observability"
)

const defaultModel = "gemini-1.5-flash"

// Client is a single-shot chat client over the Gemini SDK.
type Client struct {
	client *genai.Client
	model  string
}

func New(cfg config.GoogleConfig, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	httpOpts := genai.HTTPOptions{}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		httpOpts.BaseURL = strings.TrimSuffix(base, "/") + "/"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      strings.TrimSpace(cfg.APIKey),
		HTTPClient:  httpClient,
		HTTPOptions: httpOpts,
	})
	if err != nil {
		return nil, fmt.Errorf("init google client: %w", err)
	}

	return &Client{client: client, model: model}, nil
}

// Chat sends one GenerateContent request and returns the assistant's reply.
func (c *Client) Chat(ctx context.Context, msgs []llm.Message, tools []llm.ToolSchema, model string) (llm.Message, error) {
	effectiveModel := c.pickModel(model)
	log := observability.LoggerWithTrace(ctx)

	contents, err := toContents(msgs)
	if err != nil {
		return llm.Message{}, err
	}

	var genaiTools []*genai.Tool
	if len(tools) > 0 {
		genaiTools = adaptTools(tools)
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, effectiveModel, contents, &genai.GenerateContentConfig{Tools: genaiTools})
	dur := time.Since(start)
	if err != nil {
		log.Error().Err(err).Str("model", effectiveModel).Dur("duration", dur).Msg("google: chat failed")
		return llm.Message{}, err
	}

	msg, err := messageFromResponse(resp)
	if err != nil {
		return llm.Message{}, err
	}
	log.Debug().Str("model", effectiveModel).Dur("duration", dur).Msg("google: chat ok")
	return msg, nil
}

func (c *Client) pickModel(model string) string {
	if m := strings.TrimSpace(model); m != "" {
		return m
	}
	return c.model
}
