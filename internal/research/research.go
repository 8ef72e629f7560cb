// Package research is the Research Engine (spec §4.9): retrieval-augmented
// question answering over the document corpus, built on top of
// internal/search and a configurable foundation-model provider.
package research

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"docintel/internal/config"
	"docintel/internal/llm"
	"docintel/internal/llm/providers"
	"docintel/internal/model"
	"docintel/internal/search"
)

// RateLimitExceeded is surfaced to the HTTP layer as a 429 with Retry-After,
// per spec §4.9's retry policy.
type RateLimitExceeded struct {
	RetryAfter time.Duration
}

func (e *RateLimitExceeded) Error() string {
	return fmt.Sprintf("research: rate limited by provider, retry after %s", e.RetryAfter)
}

// Retriever is the subset of search.Engine the Research Engine depends on.
type Retriever interface {
	Search(ctx context.Context, req search.Request) ([]search.Result, error)
}

// ChunkExpander resolves a chunk's text and neighbors for context packing.
type ChunkExpander interface {
	GetChunk(ctx context.Context, docID, chunkID string) (model.TextChunk, error)
}

// Source is one numbered reference in the research answer.
type Source struct {
	CitationNumber int
	DocID          string
	Filename       string
	Page           int
	ChunkID        string
	Text           string
	Score          float64
}

// Request is one POST /api/research/ask body.
type Request struct {
	Question              string
	NumSources            int
	Provider              string // "" uses the configured default
	Model                 string // "" uses the provider's configured default
	PreprocessingEnabled  *bool  // nil defers to config default
	PreprocessingStrategy string // "" defers to config default
	Temperature           *float64
}

// Response is the §4.9 result shape.
type Response struct {
	Question              string
	Answer                string
	Sources               []Source
	ProcessingTimeMS      int64
	ModelUsed             string
	SourcesFound          int
	ContextTruncated      bool
	PreprocessingMetadata map[string]any
}

const defaultSourceTokenBudget = 600

var citationRe = regexp.MustCompile(`\[(\d+)\]`)

// Engine runs the retrieve -> pack -> preprocess -> prompt -> invoke ->
// parse pipeline described in spec §4.9.
type Engine struct {
	retriever     Retriever
	chunks        ChunkExpander
	cfg           config.Config
	httpClient    *http.Client
	now           func() time.Time
	sleep         func(time.Duration)
	buildProvider func(cfg config.Config, httpClient *http.Client) (llm.Provider, error)
}

// New builds a research Engine. httpClient is shared across provider builds,
// matching providers.Build's expectations.
func New(retriever Retriever, chunks ChunkExpander, cfg config.Config, httpClient *http.Client) *Engine {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Engine{
		retriever: retriever, chunks: chunks, cfg: cfg, httpClient: httpClient,
		now: time.Now, sleep: time.Sleep, buildProvider: providers.Build,
	}
}

// Ask runs the full pipeline for one question.
func (e *Engine) Ask(ctx context.Context, req Request) (Response, error) {
	start := e.now()
	if strings.TrimSpace(req.Question) == "" {
		return Response{}, fmt.Errorf("research: question must not be empty")
	}

	numSources := req.NumSources
	if numSources <= 0 {
		numSources = e.cfg.Research.NumSources
	}
	if max := e.cfg.Research.MaxSources; max > 0 && numSources > max {
		numSources = max
	}

	results, err := e.retriever.Search(ctx, search.Request{Query: req.Question, Mode: search.ModeHybrid, TopN: numSources})
	if err != nil {
		return Response{}, fmt.Errorf("research: retrieve: %w", err)
	}

	candidates, truncated := e.packSources(ctx, results)
	sourcesFound := len(candidates)

	preprocessMeta := e.runPreprocessing(ctx, req, &candidates)

	for i := range candidates {
		candidates[i].CitationNumber = i + 1
	}

	answer, modelUsed, err := e.invoke(ctx, req, req.Question, candidates)
	if err != nil {
		return Response{}, err
	}

	answer = cleanCitations(answer, len(candidates))

	return Response{
		Question:              req.Question,
		Answer:                answer,
		Sources:               candidates,
		ProcessingTimeMS:      e.now().Sub(start).Milliseconds(),
		ModelUsed:             modelUsed,
		SourcesFound:          sourcesFound,
		ContextTruncated:      truncated,
		PreprocessingMetadata: preprocessMeta,
	}, nil
}

// packSources pulls each retrieved hit's chunk text (expanded with prev/next
// neighbors up to a per-source token budget) into an unnumbered candidate
// list; citation numbers are assigned after preprocessing may drop entries.
func (e *Engine) packSources(ctx context.Context, results []search.Result) ([]Source, bool) {
	out := make([]Source, 0, len(results))
	truncated := false
	for _, r := range results {
		src := Source{DocID: r.DocID, Filename: r.Filename, Page: r.Page, ChunkID: r.ChunkID, Score: r.Score}
		if r.ChunkID == "" || e.chunks == nil {
			src.Text = r.Preview
			out = append(out, src)
			continue
		}
		text, cut := e.expandChunk(ctx, r.DocID, r.ChunkID)
		src.Text = text
		if cut {
			truncated = true
		}
		out = append(out, src)
	}
	return out, truncated
}

func (e *Engine) expandChunk(ctx context.Context, docID, chunkID string) (string, bool) {
	base, err := e.chunks.GetChunk(ctx, docID, chunkID)
	if err != nil {
		return "", false
	}
	tokens := base.TokenCount
	text := base.Text
	truncated := false

	prevID := base.PrevChunkID
	for prevID != "" {
		prev, err := e.chunks.GetChunk(ctx, docID, prevID)
		if err != nil {
			break
		}
		if tokens+prev.TokenCount > defaultSourceTokenBudget {
			truncated = true
			break
		}
		text = prev.Text + "\n" + text
		tokens += prev.TokenCount
		prevID = prev.PrevChunkID
	}
	nextID := base.NextChunkID
	for nextID != "" {
		next, err := e.chunks.GetChunk(ctx, docID, nextID)
		if err != nil {
			break
		}
		if tokens+next.TokenCount > defaultSourceTokenBudget {
			truncated = true
			break
		}
		text = text + "\n" + next.Text
		tokens += next.TokenCount
		nextID = next.NextChunkID
	}
	return text, truncated
}

func (e *Engine) invoke(ctx context.Context, req Request, question string, sources []Source) (string, string, error) {
	provider, model, err := e.resolveProvider(req)
	if err != nil {
		return "", "", fmt.Errorf("research: %w", err)
	}

	msgs := []llm.Message{
		{Role: "system", Content: systemPrompt()},
		{Role: "user", Content: userPrompt(question, sources)},
	}

	reply, err := provider.Chat(ctx, msgs, nil, model)
	if err != nil {
		if !llm.IsRetryable(err) {
			return "", "", fmt.Errorf("research: provider chat: %w", err)
		}
		e.sleep(2 * time.Second)
		reply, err = provider.Chat(ctx, msgs, nil, model)
		if err != nil {
			if llm.IsRateLimited(err) {
				return "", "", &RateLimitExceeded{RetryAfter: 30 * time.Second}
			}
			return "", "", fmt.Errorf("research: provider chat retry: %w", err)
		}
	}
	return reply.Content, model, nil
}

func (e *Engine) resolveProvider(req Request) (llm.Provider, string, error) {
	cfg := e.cfg
	name := req.Provider
	if name == "" {
		name = cfg.LLMClient.Provider
	}
	cfg.LLMClient.Provider = name

	provider, err := e.buildProvider(cfg, e.httpClient)
	if err != nil {
		return nil, "", err
	}

	model := req.Model
	if model == "" {
		switch name {
		case "anthropic":
			model = cfg.LLMClient.Anthropic.Model
		case "google":
			model = cfg.LLMClient.Google.Model
		default:
			model = cfg.LLMClient.OpenAI.Model
		}
	}
	return provider, model, nil
}

func systemPrompt() string {
	return "You are a research assistant answering questions from a numbered set of document excerpts. " +
		"Every factual assertion in your answer must end with one or more citation markers like [1] or [2][3], " +
		"where N refers to the numbered source list provided by the user. Do not cite a source number that was not given to you."
}

func userPrompt(question string, sources []Source) string {
	var b strings.Builder
	b.WriteString("Sources:\n")
	for _, s := range sources {
		fmt.Fprintf(&b, "[%d] (%s, page %d)\n%s\n\n", s.CitationNumber, s.Filename, s.Page, s.Text)
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

// cleanCitations drops any [N] marker referring to an index outside
// 1..sourceCount, logging what was dropped rather than leaving a dangling
// reference in the rendered answer.
func cleanCitations(answer string, sourceCount int) string {
	return citationRe.ReplaceAllStringFunc(answer, func(m string) string {
		n, err := strconv.Atoi(citationRe.FindStringSubmatch(m)[1])
		if err != nil || n < 1 || n > sourceCount {
			log.Warn().Str("marker", m).Msg("research: dropping citation to unknown source")
			return ""
		}
		return m
	})
}
