package research

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docintel/internal/config"
	"docintel/internal/llm"
	"docintel/internal/model"
	"docintel/internal/search"
)

type fakeRetriever struct {
	results []search.Result
	err     error
}

func (f *fakeRetriever) Search(_ context.Context, _ search.Request) ([]search.Result, error) {
	return f.results, f.err
}

type fakeChunks struct {
	chunks map[string]model.TextChunk
}

func (f *fakeChunks) GetChunk(_ context.Context, docID, chunkID string) (model.TextChunk, error) {
	c, ok := f.chunks[docID+":"+chunkID]
	if !ok {
		return model.TextChunk{}, errors.New("not found")
	}
	return c, nil
}

type fakeProvider struct {
	replies []llm.Message
	errs    []error
	calls   int
}

func (f *fakeProvider) Chat(_ context.Context, _ []llm.Message, _ []llm.ToolSchema, _ string) (llm.Message, error) {
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if err != nil {
		return llm.Message{}, err
	}
	if i < len(f.replies) {
		return f.replies[i], nil
	}
	return f.replies[len(f.replies)-1], nil
}

func newTestEngine(retriever Retriever, chunks ChunkExpander, provider llm.Provider) *Engine {
	cfg := config.Config{}
	cfg.Research = config.ResearchConfig{NumSources: 10, MaxSources: 20, PreprocessThreshold: 7}
	eng := New(retriever, chunks, cfg, nil)
	eng.buildProvider = func(config.Config, *http.Client) (llm.Provider, error) { return provider, nil }
	eng.now = func() time.Time { return time.Unix(0, 0) }
	eng.sleep = func(time.Duration) {}
	return eng
}

func TestEngineAskHappyPath(t *testing.T) {
	retriever := &fakeRetriever{results: []search.Result{
		{DocID: "doc1", Filename: "q4.pdf", Page: 2, ChunkID: "c1", Score: 0.9},
	}}
	chunks := &fakeChunks{chunks: map[string]model.TextChunk{
		"doc1:c1": {ChunkID: "c1", Text: "Q4 revenue was $10M.", TokenCount: 6},
	}}
	provider := &fakeProvider{replies: []llm.Message{
		{Role: "assistant", Content: "Revenue was $10M [1]."},
	}}
	eng := newTestEngine(retriever, chunks, provider)

	resp, err := eng.Ask(context.Background(), Request{Question: "What was Q4 revenue?"})
	require.NoError(t, err)
	assert.Equal(t, "Revenue was $10M [1].", resp.Answer)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, 1, resp.Sources[0].CitationNumber)
	assert.Equal(t, "q4.pdf", resp.Sources[0].Filename)
	assert.Equal(t, 1, resp.SourcesFound)
	assert.Equal(t, 1, provider.calls)
}

func TestEngineAskDropsUnknownCitations(t *testing.T) {
	retriever := &fakeRetriever{results: []search.Result{
		{DocID: "doc1", Filename: "a.pdf", Page: 1, ChunkID: "c1"},
	}}
	chunks := &fakeChunks{chunks: map[string]model.TextChunk{
		"doc1:c1": {ChunkID: "c1", Text: "some fact", TokenCount: 2},
	}}
	provider := &fakeProvider{replies: []llm.Message{
		{Role: "assistant", Content: "A fact [1] and an invented one [7]."},
	}}
	eng := newTestEngine(retriever, chunks, provider)

	resp, err := eng.Ask(context.Background(), Request{Question: "q"})
	require.NoError(t, err)
	assert.Contains(t, resp.Answer, "[1]")
	assert.NotContains(t, resp.Answer, "[7]")
}

func TestEngineAskRetriesOnTransientError(t *testing.T) {
	retriever := &fakeRetriever{results: []search.Result{{DocID: "doc1", ChunkID: "c1"}}}
	chunks := &fakeChunks{chunks: map[string]model.TextChunk{"doc1:c1": {ChunkID: "c1", Text: "x", TokenCount: 1}}}
	provider := &fakeProvider{
		errs:    []error{errors.New("upstream: 503 Service Unavailable")},
		replies: []llm.Message{{}, {Role: "assistant", Content: "ok [1]"}},
	}
	eng := newTestEngine(retriever, chunks, provider)

	resp, err := eng.Ask(context.Background(), Request{Question: "q"})
	require.NoError(t, err)
	assert.Equal(t, "ok [1]", resp.Answer)
	assert.Equal(t, 2, provider.calls)
}

func TestEngineAskSurfacesRateLimitAfterRetry(t *testing.T) {
	retriever := &fakeRetriever{results: []search.Result{{DocID: "doc1", ChunkID: "c1"}}}
	chunks := &fakeChunks{chunks: map[string]model.TextChunk{"doc1:c1": {ChunkID: "c1", Text: "x", TokenCount: 1}}}
	provider := &fakeProvider{errs: []error{
		errors.New("upstream: 429 Too Many Requests"),
		errors.New("upstream: 429 Too Many Requests"),
	}}
	eng := newTestEngine(retriever, chunks, provider)

	_, err := eng.Ask(context.Background(), Request{Question: "q"})
	require.Error(t, err)
	var rle *RateLimitExceeded
	require.ErrorAs(t, err, &rle)
	assert.Equal(t, 2, provider.calls)
}

func TestEngineAskRejectsEmptyQuestion(t *testing.T) {
	eng := newTestEngine(&fakeRetriever{}, &fakeChunks{}, &fakeProvider{})
	_, err := eng.Ask(context.Background(), Request{Question: "  "})
	assert.Error(t, err)
}

func TestEngineAskPreprocessingFilterDropsLowScoreSources(t *testing.T) {
	retriever := &fakeRetriever{results: []search.Result{
		{DocID: "doc1", Filename: "a.pdf", Page: 1, ChunkID: "c1"},
		{DocID: "doc1", Filename: "a.pdf", Page: 2, ChunkID: "c2"},
	}}
	chunks := &fakeChunks{chunks: map[string]model.TextChunk{
		"doc1:c1": {ChunkID: "c1", Text: "relevant fact", TokenCount: 2},
		"doc1:c2": {ChunkID: "c2", Text: "irrelevant fact", TokenCount: 2},
	}}
	provider := &fakeProvider{replies: []llm.Message{
		{Role: "assistant", Content: `{"1": 9, "2": 2}`},
		{Role: "assistant", Content: "Answer [1]."},
	}}
	eng := newTestEngine(retriever, chunks, provider)
	enabled := true

	resp, err := eng.Ask(context.Background(), Request{
		Question: "q", PreprocessingEnabled: &enabled, PreprocessingStrategy: "filter",
	})
	require.NoError(t, err)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "c1", resp.Sources[0].ChunkID)
	assert.NotNil(t, resp.PreprocessingMetadata)
}
