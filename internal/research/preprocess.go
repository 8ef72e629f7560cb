package research

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"docintel/internal/llm"
)

// runPreprocessing applies the configured local-model strategy in place on
// candidates, per spec §4.9 step 3. Preprocessing never renumbers sources
// across a compress/synthesize pass (citations still apply to the original
// per-source slots); a filter pass may shrink the slice, and citation
// numbers are assigned by the caller only after this returns. Any
// preprocessing error is swallowed with a graceful fallback to the
// unprocessed sources, per spec: "these are lossy... tolerates a graceful
// fallback."
func (e *Engine) runPreprocessing(ctx context.Context, req Request, candidates *[]Source) map[string]any {
	enabled := e.cfg.Research.PreprocessEnabled
	if req.PreprocessingEnabled != nil {
		enabled = *req.PreprocessingEnabled
	}
	if !enabled || len(*candidates) == 0 {
		return nil
	}

	strategy := req.PreprocessingStrategy
	if strategy == "" {
		strategy = e.cfg.Research.PreprocessStrategy
	}

	provider, model, err := e.resolveProvider(Request{Provider: "local"})
	if err != nil {
		log.Warn().Err(err).Msg("research: preprocessing provider unavailable, skipping")
		return nil
	}

	switch strategy {
	case "compress", "synthesize":
		compacted, err := e.preprocessCompress(ctx, provider, model, *candidates)
		if err != nil {
			log.Warn().Err(err).Msg("research: compress preprocessing failed, using raw sources")
			return nil
		}
		*candidates = compacted
		return map[string]any{"strategy": strategy, "applied": true}
	case "filter":
		threshold := e.cfg.Research.PreprocessThreshold
		kept, dropped, err := e.preprocessFilter(ctx, provider, model, *candidates, threshold)
		if err != nil {
			log.Warn().Err(err).Msg("research: filter preprocessing failed, using raw sources")
			return nil
		}
		*candidates = kept
		return map[string]any{"strategy": strategy, "applied": true, "threshold": threshold, "dropped": dropped}
	default:
		return nil
	}
}

// preprocessCompress asks the local model to produce a shorter version of
// each source's text in one batched call, preserving per-source alignment
// so citation numbers remain stable.
func (e *Engine) preprocessCompress(ctx context.Context, provider llm.Provider, model string, sources []Source) ([]Source, error) {
	var b strings.Builder
	b.WriteString("Condense each numbered excerpt below to its essential facts, preserving numeric meaning. ")
	b.WriteString("Respond with a JSON object mapping each index (as a string) to its condensed text, no commentary.\n\n")
	for i, s := range sources {
		fmt.Fprintf(&b, "%d: %s\n\n", i+1, s.Text)
	}

	reply, err := provider.Chat(ctx, []llm.Message{
		{Role: "system", Content: "You compress text for a retrieval pipeline. Always respond with valid JSON."},
		{Role: "user", Content: b.String()},
	}, nil, model)
	if err != nil {
		return nil, fmt.Errorf("compress call: %w", err)
	}

	var compacted map[string]string
	if err := json.Unmarshal([]byte(extractJSON(reply.Content)), &compacted); err != nil {
		return nil, fmt.Errorf("parse compress response: %w", err)
	}

	out := make([]Source, len(sources))
	copy(out, sources)
	for i := range out {
		if text, ok := compacted[strconv.Itoa(i+1)]; ok && strings.TrimSpace(text) != "" {
			out[i].Text = text
		}
	}
	return out, nil
}

// preprocessFilter scores each source 0-10 via one batched call and drops
// those below threshold, preserving the original relative ordering of the
// survivors.
func (e *Engine) preprocessFilter(ctx context.Context, provider llm.Provider, model string, sources []Source, threshold float64) ([]Source, int, error) {
	var b strings.Builder
	b.WriteString("Score how relevant each numbered excerpt is to answering the question, from 0 (irrelevant) to 10 (directly answers it). ")
	b.WriteString("Respond with a JSON object mapping each index (as a string) to its numeric score, no commentary.\n\n")
	for i, s := range sources {
		fmt.Fprintf(&b, "%d: %s\n\n", i+1, s.Text)
	}

	reply, err := provider.Chat(ctx, []llm.Message{
		{Role: "system", Content: "You score retrieval candidates for a search pipeline. Always respond with valid JSON."},
		{Role: "user", Content: b.String()},
	}, nil, model)
	if err != nil {
		return nil, 0, fmt.Errorf("filter call: %w", err)
	}

	var scores map[string]float64
	if err := json.Unmarshal([]byte(extractJSON(reply.Content)), &scores); err != nil {
		return nil, 0, fmt.Errorf("parse filter response: %w", err)
	}

	kept := make([]Source, 0, len(sources))
	dropped := 0
	for i, s := range sources {
		score, ok := scores[strconv.Itoa(i+1)]
		if ok && score < threshold {
			dropped++
			continue
		}
		kept = append(kept, s)
	}
	return kept, dropped, nil
}

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// extractJSON pulls the first JSON object out of a model reply, tolerating
// surrounding prose or markdown code fences some providers add despite
// instructions.
func extractJSON(s string) string {
	if m := jsonObjectRe.FindString(s); m != "" {
		return m
	}
	return s
}
