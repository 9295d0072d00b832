package corpus

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hazyhaar/savoir/corpus/internal/store"
)

// minScore is the relevance floor below which chunks are dropped.
const minScore = 0.1

// snippetRunes bounds the text returned per candidate.
const snippetRunes = 300

// ChunkScorer scores one chunk text against a query, 0 meaning no
// relevance. The default is lexical overlap; a vector strategy can
// replace it through WithScorer without changing the contract.
type ChunkScorer interface {
	Score(query, text string) float64
}

// LexicalScorer scores by word overlap: the fraction of query words that
// appear in (or contain, or are contained by) a chunk word.
type LexicalScorer struct{}

func (LexicalScorer) Score(query, text string) float64 {
	queryWords := tokenize(query)
	if len(queryWords) == 0 {
		return 0
	}
	chunkWords := tokenize(text)

	matched := 0
	for _, q := range queryWords {
		for _, c := range chunkWords {
			if strings.Contains(c, q) || strings.Contains(q, c) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(queryWords))
}

func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

// Retrieve returns the top-K most relevant snippets from a source's most
// recent chunks. topK <= 0 falls back to the configured default.
func (svc *Service) Retrieve(ctx context.Context, sourceID, query string, topK int) ([]RetrievalCandidate, error) {
	if sourceID == "" || strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: source id and query are required", ErrInvalidInput)
	}
	if topK <= 0 {
		topK = svc.config.RetrievalTopK
	}

	chunks, err := svc.store.ListRecentBySource(ctx, sourceID, svc.config.RetrievalWindow)
	if err != nil {
		return nil, fmt.Errorf("corpus: load chunks: %w", err)
	}

	type scored struct {
		chunk *store.Chunk
		score float64
	}
	var hits []scored
	for _, c := range chunks {
		if s := svc.scorer.Score(query, c.Text); s > minScore {
			hits = append(hits, scored{chunk: c, score: s})
		}
	}

	// Chunks arrive newest first; a stable sort keeps recency as the
	// tie-break.
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}

	top := make([]*store.Chunk, len(hits))
	for i, h := range hits {
		top[i] = h.chunk
	}
	labels := svc.sourceLabels(ctx, top)

	out := make([]RetrievalCandidate, len(hits))
	for i, h := range hits {
		out[i] = RetrievalCandidate{
			ChunkID: h.chunk.ID,
			Title:   labels[h.chunk.SourceRef],
			Text:    truncate(h.chunk.Text, snippetRunes),
			Source:  labels[h.chunk.SourceRef],
			Score:   h.score,
		}
	}
	return out, nil
}

// sourceLabels resolves one human-readable label per distinct source_ref,
// looking file names up once.
func (svc *Service) sourceLabels(ctx context.Context, chunks []*store.Chunk) map[string]string {
	labels := make(map[string]string)
	for _, c := range chunks {
		if _, ok := labels[c.SourceRef]; ok {
			continue
		}
		filename := ""
		if c.SourceType == store.SourceFile {
			if f, err := svc.store.GetFile(ctx, c.SourceRef); err == nil {
				filename = f.Filename
			}
		}
		labels[c.SourceRef] = sourceLabel(c.SourceType, c.SourceRef, filename)
	}
	return labels
}
