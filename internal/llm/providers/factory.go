package providers

import (
	"fmt"
	"net/http"

	"docintel/internal/config"
	"docintel/internal/llm"
	"docintel/internal/llm/anthropic"
	"docintel/internal/llm/google"
	openaillm "docintel/internal/llm/openai"
)

// Build constructs an llm.Provider based on the configured provider name.
// - openai: uses the OpenAI client
// - local: uses the OpenAI client with the same OpenAI settings; API is set
//   to "completions", which the client does not read (it always calls
//   Chat Completions)
// - anthropic/google: use the Anthropic and Google Gemini clients
func Build(cfg config.Config, httpClient *http.Client) (llm.Provider, error) {
	switch cfg.LLMClient.Provider {
	case "", "openai":
		return openaillm.New(cfg.LLMClient.OpenAI, httpClient), nil
	case "local":
		oc := cfg.LLMClient.OpenAI
		oc.API = "completions"
		return openaillm.New(oc, httpClient), nil
	case "anthropic":
		return anthropic.New(cfg.LLMClient.Anthropic, httpClient), nil
	case "google":
		return google.New(cfg.LLMClient.Google, httpClient)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.LLMClient.Provider)
	}
}
