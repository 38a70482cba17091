package knowledge

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nhatai1995/DreamSight-AI/internal/logging"
)

// Retriever embeds queries and searches the document store. It applies a
// per-call timeout so a slow embedding backend cannot stall an analysis.
type Retriever struct {
	store   *Store
	engine  Engine
	timeout time.Duration
	log     *zap.Logger
}

const defaultRetrieveTimeout = 10 * time.Second

func NewRetriever(store *Store, engine Engine) *Retriever {
	return &Retriever{
		store:   store,
		engine:  engine,
		timeout: defaultRetrieveTimeout,
		log:     logging.Named(logging.CategoryKnowledge),
	}
}

// Retrieve returns the top-k documents for query. An empty sourceType
// searches across the whole corpus. An empty corpus yields no results and no
// error.
func (r *Retriever) Retrieve(ctx context.Context, query, sourceType string, k int) ([]Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	count, err := r.store.Count(ctx, sourceType)
	if err != nil {
		return nil, fmt.Errorf("failed to count corpus: %w", err)
	}
	if count == 0 {
		r.log.Warn("knowledge corpus is empty", zap.String("source_type", sourceType))
		return nil, nil
	}
	if k > count {
		k = count
	}

	embedding, err := r.engine.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := r.store.Search(ctx, embedding, sourceType, k)
	if err != nil {
		return nil, err
	}
	r.log.Info("retrieved documents",
		zap.String("source_type", sourceType),
		zap.Int("count", len(results)))
	return results, nil
}
