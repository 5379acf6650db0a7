package chat

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/stockwise/stockwizard/internal/index"
	"github.com/stockwise/stockwizard/internal/metrics"
	"github.com/stockwise/stockwizard/pkg/logger"
)

const DefaultContextPassages = 2

// ContextSource is the document index as seen by the retriever.
type ContextSource interface {
	Query(ctx context.Context, text string, k int) ([]index.Passage, error)
}

type Retriever struct {
	source ContextSource
	k      int
}

// NewRetriever accepts a nil source; Retrieve then always returns "".
func NewRetriever(source ContextSource, k int) *Retriever {
	if k <= 0 {
		k = DefaultContextPassages
	}
	return &Retriever{source: source, k: k}
}

func (r *Retriever) Available() bool {
	return r != nil && r.source != nil
}

// Retrieve joins the top passages, most similar first, with newlines. Lookup
// failures are logged and yield "".
func (r *Retriever) Retrieve(ctx context.Context, question string) string {
	if !r.Available() {
		return ""
	}

	passages, err := r.source.Query(ctx, question, r.k)
	if err != nil {
		logger.Warn("Context retrieval failed", zap.Error(err))
		return ""
	}
	metrics.ContextPassages.Observe(float64(len(passages)))
	if len(passages) == 0 {
		return ""
	}

	sorted := make([]index.Passage, len(passages))
	copy(sorted, passages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Similarity > sorted[j].Similarity
	})
	if len(sorted) > r.k {
		sorted = sorted[:r.k]
	}

	texts := make([]string, 0, len(sorted))
	for _, p := range sorted {
		texts = append(texts, p.Text)
	}

	logger.Debug("Context retrieved", zap.Int("passages", len(texts)))
	return strings.Join(texts, "\n")
}
