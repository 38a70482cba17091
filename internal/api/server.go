// Package api exposes the dream-interpretation service over HTTP. All
// responses are JSON; errors use the {"detail": ...} envelope the frontend
// expects.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nhatai1995/DreamSight-AI/internal/analysis"
	"github.com/nhatai1995/DreamSight-AI/internal/config"
	"github.com/nhatai1995/DreamSight-AI/internal/logging"
	"github.com/nhatai1995/DreamSight-AI/internal/supastore"
)

// Triangler runs the three-lens analysis pipeline.
type Triangler interface {
	AnalyzeTriangle(ctx context.Context, userDream string) *analysis.TriangleResult
}

// Analyzer runs the single-lens RAG analysis.
type Analyzer interface {
	Analyze(ctx context.Context, userDream string, mode analysis.AnalysisMode) (*analysis.AnalyzeResult, error)
}

// UserStore is the auth, quota and history backend.
type UserStore interface {
	VerifyToken(ctx context.Context, token string) (string, error)
	GetProfile(ctx context.Context, userID string) (*supastore.Profile, error)
	CheckGuestQuota(ctx context.Context, ip string) (allowed bool, remaining int)
	CheckMemberQuota(ctx context.Context, userID string) (allowed bool, remaining int)
	IncrementUsage(ctx context.Context, userID string) error
	SaveDream(ctx context.Context, userID, content string, analysisData any) int64
	ListDreams(ctx context.Context, userID string, limit int) ([]supastore.DreamRecord, error)
	CronReset(ctx context.Context) (supastore.ResetStats, error)
}

// Server holds the HTTP surface and its collaborators.
type Server struct {
	cfg      *config.Config
	triangle Triangler
	analyzer Analyzer
	searcher analysis.Retriever
	users    UserStore
	log      *zap.Logger
}

// NewServer wires the handlers to their backing services.
func NewServer(cfg *config.Config, triangle Triangler, analyzer Analyzer, searcher analysis.Retriever, users UserStore) *Server {
	return &Server{
		cfg:      cfg,
		triangle: triangle,
		analyzer: analyzer,
		searcher: searcher,
		users:    users,
		log:      logging.Named(logging.CategoryAPI),
	}
}

// Handler builds the full middleware-wrapped route table.
func (s *Server) Handler() http.Handler {
	apiKey := APIKeyMiddleware(s.cfg.Server.APISecretKey)
	rateLimit := RateLimitMiddleware(
		s.cfg.Server.RateLimitRequests,
		config.ParseDuration(s.cfg.Server.RateLimitWindow, time.Minute))

	// The analysis endpoints burn model tokens, so they sit behind both the
	// shared API key and the per-IP rate limit.
	guarded := func(h http.HandlerFunc) http.Handler {
		return apiKey(rateLimit(h))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.Handle("POST /api/dreams/analyze", guarded(s.handleAnalyze))
	mux.Handle("POST /api/dreams/triangle", guarded(s.handleTriangle))
	mux.Handle("POST /api/dreams/triangle-tiered", guarded(s.handleTriangleTiered))
	mux.Handle("POST /api/dreams/search", guarded(s.handleSearch))
	mux.Handle("GET /api/dreams/history", apiKey(http.HandlerFunc(s.handleHistory)))
	mux.Handle("GET /api/dreams/symbols/common", apiKey(http.HandlerFunc(s.handleCommonSymbols)))
	mux.HandleFunc("POST /api/admin/cron/reset-usage", s.handleCronReset)

	var handler http.Handler = mux
	handler = CORSMiddleware(s.cfg.Server.AllowedOrigins)(handler)
	handler = LoggingMiddleware(handler)
	handler = RequestIDMiddleware(handler)
	handler = RecoveryMiddleware(handler)
	return handler
}

// Run serves HTTP until ctx is cancelled, then drains with a grace period.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
