package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nhatai1995/DreamSight-AI/internal/dreambook"
	"github.com/nhatai1995/DreamSight-AI/internal/logging"
)

// Knowledge source types as stored in the document store.
const (
	SourcePsychology = "psychology_text"
	SourceMystical   = "mystical_text"
	SourceSymbols    = "symbol_dictionary"
)

// Per-lens retrieval depth. Psychology carries the heaviest weight in the
// synthesis so it gets two documents.
const (
	psychologyK = 2
	mysticalK   = 1
	symbolsK    = 1
)

const sourceExcerptLimit = 200

// Snippet is one retrieved knowledge document with its metadata and
// similarity distance (lower is closer).
type Snippet struct {
	Text       string
	SourceType string
	Title      string
	Distance   float64
}

// Retriever fetches the top-k documents for a query. An empty sourceType
// searches across all source types.
type Retriever interface {
	Retrieve(ctx context.Context, query, sourceType string, k int) ([]Snippet, error)
}

// LLM produces a completion for a system/user prompt pair.
type LLM interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Orchestrator runs the Analysis Triangle pipeline end to end.
type Orchestrator struct {
	llm        LLM
	retriever  Retriever
	book       *dreambook.Index
	maxRetries int
	retryDelay time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	log        *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRetries sets the number of retries after the first attempt.
func WithRetries(n int) Option {
	return func(o *Orchestrator) { o.maxRetries = n }
}

// WithRetryDelay sets the pause between parse-failure retries.
func WithRetryDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.retryDelay = d }
}

// WithSleep replaces the retry pause. Tests inject a no-op.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = fn }
}

func NewOrchestrator(llm LLM, retriever Retriever, book *dreambook.Index, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		llm:        llm,
		retriever:  retriever,
		book:       book,
		maxRetries: 2,
		retryDelay: time.Second,
		sleep:      sleepCtx,
		log:        logging.Named(logging.CategoryAnalysis),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// retrieveAll queries the three lenses concurrently. A failed lens degrades
// to an empty context rather than failing the run.
func (o *Orchestrator) retrieveAll(ctx context.Context, dream string) (psych, mystic, iching []string) {
	lenses := []struct {
		sourceType string
		k          int
		out        *[]string
	}{
		{SourcePsychology, psychologyK, &psych},
		{SourceMystical, mysticalK, &mystic},
		{SourceSymbols, symbolsK, &iching},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, lens := range lenses {
		g.Go(func() error {
			snippets, err := o.retriever.Retrieve(gctx, dream, lens.sourceType, lens.k)
			if err != nil {
				o.log.Warn("context retrieval failed",
					zap.String("source_type", lens.sourceType), zap.Error(err))
				return nil
			}
			docs := make([]string, len(snippets))
			for i, s := range snippets {
				docs[i] = s.Text
			}
			*lens.out = docs
			return nil
		})
	}
	g.Wait()

	o.log.Info("parallel retrieval complete",
		zap.Int("psychology", len(psych)),
		zap.Int("mystical", len(mystic)),
		zap.Int("iching", len(iching)))
	return psych, mystic, iching
}

// AnalyzeTriangle runs the full pipeline: concurrent three-lens retrieval,
// folk-number lookup, prompt assembly, bounded-retry LLM invocation and
// result assembly. It never returns an error; every failure mode degrades to
// the fallback analysis.
func (o *Orchestrator) AnalyzeTriangle(ctx context.Context, userDream string) *TriangleResult {
	id := uuid.NewString()
	o.log.Info("starting triangle analysis", zap.String("id", id))

	psych, mystic, iching := o.retrieveAll(ctx, userDream)

	var folkKeyword, folkNumber string
	if match, ok := o.book.Lookup(userDream); ok {
		folkKeyword = match.Keyword
		folkNumber = match.Codes
		o.log.Info("folk keyword detected",
			zap.String("keyword", folkKeyword), zap.String("number", folkNumber))
	}

	systemPrompt := BuildPrompt(userDream, psych, mystic, iching, folkKeyword, folkNumber)

	var analysis *DreamAnalysis
	lastErr := ""
	attempts := o.maxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		o.log.Info("llm call", zap.Int("attempt", attempt), zap.Int("of", attempts))

		raw, err := o.llm.Complete(ctx, systemPrompt, UserMessage)
		if err != nil {
			// Transport failures do not retry; the model is unreachable.
			lastErr = err.Error()
			o.log.Error("llm call failed", zap.Error(err))
			break
		}

		parsed, err := ParseAnalysis(raw)
		if err == nil {
			analysis = parsed
			break
		}
		lastErr = err.Error()
		o.log.Warn("parse attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		if attempt < attempts {
			if err := o.sleep(ctx, o.retryDelay); err != nil {
				lastErr = err.Error()
				break
			}
		}
	}

	if analysis == nil {
		o.log.Warn("serving fallback analysis", zap.String("last_error", lastErr))
		analysis = FallbackAnalysis(userDream, lastErr)
	}

	return &TriangleResult{
		ID:        id,
		UserDream: userDream,
		Analysis:  *analysis,
		Sources: map[string][]string{
			"psychology": excerpts(psych),
			"tarot":      excerpts(mystic),
			"iching":     excerpts(iching),
		},
		CreatedAt: time.Now().UTC(),
	}
}

func excerpts(docs []string) []string {
	out := make([]string, len(docs))
	for i, doc := range docs {
		out[i] = truncate(doc, sourceExcerptLimit) + "..."
	}
	return out
}
