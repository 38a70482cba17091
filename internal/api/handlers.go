package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/nhatai1995/DreamSight-AI/internal/analysis"
	"github.com/nhatai1995/DreamSight-AI/internal/oracle"
	"github.com/nhatai1995/DreamSight-AI/internal/supastore"
	"github.com/nhatai1995/DreamSight-AI/internal/tier"
)

// =============================================================================
// REQUEST / RESPONSE SHAPES
// =============================================================================

type dreamRequest struct {
	UserDream string `json:"user_dream"`
	Mode      string `json:"mode"`
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type searchResult struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
	Score    float64           `json:"score"`
}

type searchResponse struct {
	Query      string         `json:"query"`
	Results    []searchResult `json:"results"`
	TotalCount int            `json:"total_count"`
}

type symbolEntry struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Meaning  string `json:"meaning"`
}

// quotaDetail is the 402 payload steering the frontend to the pricing page.
type quotaDetail struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	Tier       string `json:"tier"`
	UpgradeURL string `json:"upgrade_url"`
}

// The analyze path caps dreams at 500 characters to keep token spend down.
const analyzeMaxDreamLength = 500

// =============================================================================
// HELPERS
// =============================================================================

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. Returns "" when the header is absent or malformed.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

func (s *Server) decodeDream(w http.ResponseWriter, r *http.Request, maxLen int) (dreamRequest, bool) {
	var req dreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return req, false
	}
	length := utf8.RuneCountInString(req.UserDream)
	if length < s.cfg.Server.MinDreamLength || length > maxLen {
		writeError(w, http.StatusBadRequest, fmt.Sprintf(
			"user_dream must be between %d and %d characters.",
			s.cfg.Server.MinDreamLength, maxLen))
		return req, false
	}
	return req, true
}

// optionalUserID resolves the Bearer token to a user ID. Auth failures are
// non-fatal; the caller just proceeds as a guest.
func (s *Server) optionalUserID(r *http.Request) string {
	token := bearerToken(r)
	if token == "" {
		return ""
	}
	userID, err := s.users.VerifyToken(r.Context(), token)
	if err != nil {
		s.log.Warn("auth verification failed, treating as guest", zap.Error(err))
		return ""
	}
	return userID
}

func relevance(distance float64) float64 {
	return math.Round(10000/(1+distance)) / 10000
}

// =============================================================================
// HANDLERS
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": s.cfg.Name,
		"version": s.cfg.Version,
	})
}

// handleAnalyze runs the single-lens RAG analysis. A valid Bearer token is
// optional; when present the result is saved to the user's history.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeDream(w, r, analyzeMaxDreamLength)
	if !ok {
		return
	}

	mode := analysis.ModePsychological
	if req.Mode != "" {
		var err error
		if mode, err = analysis.ParseMode(req.Mode); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	userID := s.optionalUserID(r)

	result, err := s.analyzer.Analyze(r.Context(), req.UserDream, mode)
	if err != nil {
		s.log.Error("dream analysis failed", zap.Error(err))
		// Misconfiguration is stated plainly; only transient failures hide
		// behind the generic busy message.
		if errors.Is(err, oracle.ErrNotConfigured) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusServiceUnavailable, oracleBusyMessage)
		return
	}

	if userID != "" {
		analysisData := map[string]any{
			"interpretation": result.Interpretation,
			"image_prompt":   result.ImagePrompt,
			"mode":           string(result.Mode),
			"sources":        result.Sources,
		}
		if id := s.users.SaveDream(r.Context(), userID, req.UserDream, analysisData); id != 0 {
			s.log.Info("dream saved to history", zap.Int64("dream_id", id))
		}
	}

	writeJSON(w, http.StatusOK, result)
}

// handleTriangle runs the full three-lens analysis with no tier masking.
// The pipeline degrades to a fallback reading on any model failure, so this
// endpoint always answers 200 for a valid request.
func (s *Server) handleTriangle(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeDream(w, r, s.cfg.Server.MaxDreamLength)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.triangle.AnalyzeTriangle(r.Context(), req.UserDream))
}

// handleTriangleTiered is the monetized triangle endpoint: resolve tier,
// enforce the daily quota, analyze, persist for members, mask premium
// sections for non-Masters.
func (s *Server) handleTriangleTiered(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeDream(w, r, s.cfg.Server.MaxDreamLength)
	if !ok {
		return
	}

	ctx := r.Context()

	userID := s.optionalUserID(r)
	userTier := tier.Guest
	if userID != "" {
		profile, err := s.users.GetProfile(ctx, userID)
		if err != nil {
			s.log.Warn("profile lookup failed, defaulting to member", zap.Error(err))
		}
		if profile != nil {
			userTier = tier.FromProfile(profile.Tier)
		} else {
			// New user without a profile row yet.
			userTier = tier.Member
		}
	}

	var allowed bool
	var remaining int
	switch userTier {
	case tier.Master:
		allowed, remaining = true, tier.Unlimited
	case tier.Member:
		allowed, remaining = s.users.CheckMemberQuota(ctx, userID)
	default:
		allowed, remaining = s.users.CheckGuestQuota(ctx, clientIP(r))
	}

	if !allowed {
		tierName := "Member"
		if userTier == tier.Member {
			tierName = "Cao Thủ"
		}
		s.log.Warn("quota exceeded", zap.String("tier", string(userTier)))
		writeError(w, http.StatusPaymentRequired, quotaDetail{
			Error:      "Đã hết lượt sử dụng hôm nay",
			Message:    fmt.Sprintf("Nâng cấp lên %s để có thêm lượt giải mã", tierName),
			Tier:       string(userTier),
			UpgradeURL: "/pricing",
		})
		return
	}

	full := s.triangle.AnalyzeTriangle(ctx, req.UserDream)

	if userID != "" {
		s.users.SaveDream(ctx, userID, req.UserDream, full.Analysis)
		if userTier == tier.Member {
			if err := s.users.IncrementUsage(ctx, userID); err != nil {
				s.log.Warn("usage increment failed", zap.Error(err))
			}
		}
	}

	writeJSON(w, http.StatusOK, tier.Mask(full, userTier, remaining))
}

// handleHistory returns the authenticated user's saved dreams.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		writeError(w, http.StatusUnauthorized,
			"Login required. Please provide Authorization header.")
		return
	}
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized,
			"Invalid Authorization header format. Use: Bearer <token>")
		return
	}

	userID, err := s.users.VerifyToken(r.Context(), token)
	if err != nil {
		s.log.Error("token verification failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, oracleBusyMessage)
		return
	}
	if userID == "" {
		writeError(w, http.StatusUnauthorized,
			"Invalid or expired token. Please login again.")
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	dreams, err := s.users.ListDreams(r.Context(), userID, limit)
	if err != nil {
		s.log.Error("failed to fetch dream history", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, oracleBusyMessage)
		return
	}
	if dreams == nil {
		dreams = []supastore.DreamRecord{}
	}
	writeJSON(w, http.StatusOK, dreams)
}

// handleSearch does a raw semantic search over the knowledge base.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	qlen := utf8.RuneCountInString(req.Query)
	if qlen < 2 || qlen > 200 {
		writeError(w, http.StatusBadRequest, "query must be between 2 and 200 characters.")
		return
	}
	if req.Limit <= 0 {
		req.Limit = 5
	}
	if req.Limit > 20 {
		req.Limit = 20
	}

	snippets, err := s.searcher.Retrieve(r.Context(), req.Query, "", req.Limit)
	if err != nil {
		s.log.Error("knowledge search failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, oracleBusyMessage)
		return
	}

	results := make([]searchResult, 0, len(snippets))
	for _, sn := range snippets {
		results = append(results, searchResult{
			Content: sn.Text,
			Metadata: map[string]string{
				"source_type": sn.SourceType,
				"title":       sn.Title,
			},
			Score: relevance(sn.Distance),
		})
	}
	writeJSON(w, http.StatusOK, searchResponse{
		Query:      req.Query,
		Results:    results,
		TotalCount: len(results),
	})
}

// handleCommonSymbols serves the static reference list of frequent symbols.
func (s *Server) handleCommonSymbols(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]symbolEntry{
		"symbols": {
			{Name: "Water", Category: "Nature", Meaning: "Emotions, subconscious"},
			{Name: "Flying", Category: "Action", Meaning: "Freedom, ambition"},
			{Name: "Falling", Category: "Action", Meaning: "Loss of control, anxiety"},
			{Name: "House", Category: "Place", Meaning: "Self, psyche"},
			{Name: "Snake", Category: "Animal", Meaning: "Transformation, fear"},
			{Name: "Death", Category: "Event", Meaning: "Endings, new beginnings"},
			{Name: "Teeth", Category: "Body", Meaning: "Confidence, appearance"},
			{Name: "Chase", Category: "Action", Meaning: "Avoidance, pressure"},
			{Name: "Fire", Category: "Element", Meaning: "Passion, destruction"},
			{Name: "Baby", Category: "Person", Meaning: "New beginnings, vulnerability"},
		},
	})
}

// handleCronReset triggers the daily usage reset. Meant for an external cron
// service, gated by a shared secret header.
func (s *Server) handleCronReset(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Server.CronSecret == "" {
		s.log.Warn("cron secret not configured, endpoint disabled")
		writeError(w, http.StatusForbidden, "Cron endpoint not configured")
		return
	}
	if r.Header.Get("X-Cron-Secret") != s.cfg.Server.CronSecret {
		s.log.Warn("invalid cron secret provided")
		writeError(w, http.StatusForbidden, "Invalid cron secret")
		return
	}

	stats, err := s.users.CronReset(r.Context())
	if err != nil {
		s.log.Error("cron reset failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Reset failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"message": "Daily reset and cleanup completed",
		"details": stats,
	})
}
