package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhatai1995/DreamSight-AI/internal/analysis"
	"github.com/nhatai1995/DreamSight-AI/internal/api"
	"github.com/nhatai1995/DreamSight-AI/internal/config"
	"github.com/nhatai1995/DreamSight-AI/internal/dreambook"
	"github.com/nhatai1995/DreamSight-AI/internal/knowledge"
	"github.com/nhatai1995/DreamSight-AI/internal/logging"
	"github.com/nhatai1995/DreamSight-AI/internal/oracle"
	"github.com/nhatai1995/DreamSight-AI/internal/supastore"
)

// serveCmd starts the HTTP API server
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the DreamSight HTTP API",
	Long: `Starts the HTTP server with all analysis endpoints.

The server degrades gracefully when collaborators are unavailable:
without a Gemini key every analysis returns the deterministic fallback
reading, without Supabase all requests run as unmetered guests, and
without embeddings the prompts simply carry no retrieved context.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logging.Named(logging.CategoryBoot)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	llm := oracle.NewGeminiClient(oracle.Config{
		APIKey:          cfg.LLM.APIKey,
		BaseURL:         cfg.LLM.BaseURL,
		Model:           cfg.LLM.Model,
		Timeout:         config.ParseDuration(cfg.LLM.Timeout, 60*time.Second),
		MaxOutputTokens: cfg.LLM.MaxOutputTokens,
		Temperature:     cfg.LLM.Temperature,
	})
	if cfg.LLM.APIKey == "" {
		log.Warn("GEMINI_API_KEY not set, analyses will use the fallback reading")
	}

	searcher := buildSearcher(log)

	book := loadDreambook(log)

	orch := analysis.NewOrchestrator(llm, searcher, book,
		analysis.WithRetries(cfg.Analysis.MaxRetries),
		analysis.WithRetryDelay(config.ParseDuration(cfg.Analysis.RetryDelay, time.Second)))

	analyzer := analysis.NewAnalyzeService(llm, searcher,
		config.ParseDuration(cfg.Cache.TTL, time.Hour), cfg.Cache.MaxSize)

	users := supastore.New(cfg.Supabase.URL, cfg.Supabase.Key)
	if !users.Enabled() {
		log.Warn("Supabase not configured, auth, quotas and history are disabled")
	}

	srv := api.NewServer(cfg, orch, analyzer, searcher, users)
	log.Info("DreamSight starting",
		zap.String("version", cfg.Version),
		zap.String("addr", cfg.Server.Addr()),
		zap.String("model", llm.Model()))
	return srv.Run(ctx)
}

// buildSearcher wires the embedding engine and vector store into a retriever.
// Any missing piece degrades to an empty retriever rather than failing boot.
func buildSearcher(log *zap.Logger) analysis.Retriever {
	engine, err := knowledge.NewGenAIEngine(
		cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.TaskType)
	if err != nil {
		log.Warn("embedding engine unavailable, retrieval disabled", zap.Error(err))
		return emptyRetriever{}
	}

	store, err := knowledge.NewStore(cfg.Knowledge.DatabasePath)
	if err != nil {
		log.Warn("knowledge store unavailable, retrieval disabled", zap.Error(err))
		return emptyRetriever{}
	}

	return snippetRetriever{inner: knowledge.NewRetriever(store, engine)}
}

// loadDreambook reads the configured dataset, falling back to the embedded
// copy. A broken dream book only costs the folk-number guidance.
func loadDreambook(log *zap.Logger) *dreambook.Index {
	if cfg.Analysis.DreambookPath == "" {
		return dreambook.LoadDefault()
	}
	data, err := os.ReadFile(cfg.Analysis.DreambookPath)
	if err != nil {
		log.Warn("could not read dreambook dataset, using embedded copy", zap.Error(err))
		return dreambook.LoadDefault()
	}
	idx, err := dreambook.NewIndex(data)
	if err != nil {
		log.Warn("could not parse dreambook dataset, using embedded copy", zap.Error(err))
		return dreambook.LoadDefault()
	}
	return idx
}

// snippetRetriever adapts the knowledge retriever to the analysis interface.
type snippetRetriever struct {
	inner *knowledge.Retriever
}

func (r snippetRetriever) Retrieve(ctx context.Context, query, sourceType string, k int) ([]analysis.Snippet, error) {
	results, err := r.inner.Retrieve(ctx, query, sourceType, k)
	if err != nil {
		return nil, err
	}
	snippets := make([]analysis.Snippet, 0, len(results))
	for _, res := range results {
		snippets = append(snippets, analysis.Snippet{
			Text:       res.Document.Content,
			SourceType: res.Document.SourceType,
			Title:      res.Document.Title,
			Distance:   res.Distance,
		})
	}
	return snippets, nil
}

// emptyRetriever satisfies the retrieval interface when no knowledge base is
// available.
type emptyRetriever struct{}

func (emptyRetriever) Retrieve(context.Context, string, string, int) ([]analysis.Snippet, error) {
	return nil, nil
}
