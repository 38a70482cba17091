// Package supastore is the Supabase collaborator: token verification against
// GoTrue, dream history and profile access through PostgREST, and the quota
// RPCs. Every operation degrades gracefully when Supabase is not configured,
// so the analysis pipeline never depends on it.
package supastore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nhatai1995/DreamSight-AI/internal/logging"
	"github.com/nhatai1995/DreamSight-AI/internal/tier"
)

// Client talks to one Supabase project. A zero-configured client is valid
// and reports Enabled() == false.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *zap.Logger
	now        func() time.Time
}

// New creates a client. Empty url or key yields a disabled client.
func New(url, key string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(url, "/"),
		apiKey:     key,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        logging.Named(logging.CategoryStore),
		now:        time.Now,
	}
}

// Enabled reports whether the client has a project URL and key.
func (c *Client) Enabled() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// Profile is the quota-relevant slice of a user profile row.
type Profile struct {
	Tier          string `json:"tier"`
	DailyUsage    int    `json:"daily_usage"`
	LastResetDate string `json:"last_reset_date"`
}

// DreamRecord is one saved dream with its analysis payload.
type DreamRecord struct {
	ID        int64           `json:"id"`
	UserID    string          `json:"user_id"`
	Content   string          `json:"content"`
	Analysis  json.RawMessage `json:"analysis"`
	CreatedAt string          `json:"created_at"`
}

// ResetStats reports what the daily cron reset touched.
type ResetStats struct {
	ProfilesReset    int    `json:"profiles_reset"`
	GuestsCleaned    int    `json:"guests_cleaned"`
	OldDreamsDeleted int    `json:"old_dreams_deleted"`
	ProfilesError    string `json:"profiles_error,omitempty"`
	GuestsError      string `json:"guests_error,omitempty"`
	DreamsError      string `json:"dreams_error,omitempty"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, auth string, prefer string) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	if auth == "" {
		auth = c.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+auth)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// =============================================================================
// AUTH
// =============================================================================

// VerifyToken validates a user JWT against Supabase Auth and returns the
// user ID. An invalid or expired token yields an empty ID without error;
// transport failures are returned.
func (c *Client) VerifyToken(ctx context.Context, token string) (string, error) {
	if !c.Enabled() {
		c.log.Warn("cannot verify token: supabase not configured")
		return "", nil
	}

	status, body, err := c.do(ctx, http.MethodGet, "/auth/v1/user", nil, token, "")
	if err != nil {
		return "", err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return "", nil
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("auth request failed with status %d: %s", status, string(body))
	}

	var user struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &user); err != nil {
		return "", fmt.Errorf("failed to decode user: %w", err)
	}
	if user.ID != "" {
		c.log.Debug("token verified", zap.String("user_prefix", prefix(user.ID)))
	}
	return user.ID, nil
}

// =============================================================================
// DREAM HISTORY
// =============================================================================

// SaveDream stores a dream with its analysis. Returns the new record ID, or
// 0 when the store is disabled or the insert fails; persistence is best
// effort.
func (c *Client) SaveDream(ctx context.Context, userID, content string, analysisData any) int64 {
	if !c.Enabled() {
		return 0
	}

	record := map[string]any{
		"user_id":  userID,
		"content":  content,
		"analysis": analysisData,
	}
	status, body, err := c.do(ctx, http.MethodPost, "/rest/v1/dreams", record, "", "return=representation")
	if err != nil || status >= 300 {
		c.log.Error("failed to save dream",
			zap.Int("status", status), zap.Error(err))
		return 0
	}

	var inserted []DreamRecord
	if err := json.Unmarshal(body, &inserted); err != nil || len(inserted) == 0 {
		c.log.Warn("dream insert returned no data")
		return 0
	}
	c.log.Info("dream saved",
		zap.String("user_prefix", prefix(userID)), zap.Int64("id", inserted[0].ID))
	return inserted[0].ID
}

// ListDreams returns the user's most recent dreams, newest first.
func (c *Client) ListDreams(ctx context.Context, userID string, limit int) ([]DreamRecord, error) {
	if !c.Enabled() {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	path := fmt.Sprintf("/rest/v1/dreams?user_id=eq.%s&order=created_at.desc&limit=%d", userID, limit)
	status, body, err := c.do(ctx, http.MethodGet, path, nil, "", "")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("dreams query failed with status %d: %s", status, string(body))
	}

	var dreams []DreamRecord
	if err := json.Unmarshal(body, &dreams); err != nil {
		return nil, fmt.Errorf("failed to decode dreams: %w", err)
	}
	return dreams, nil
}

// =============================================================================
// PROFILES AND QUOTA
// =============================================================================

// GetProfile fetches the quota columns of a user profile. A missing profile
// returns nil without error.
func (c *Client) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	if !c.Enabled() {
		return nil, nil
	}

	path := fmt.Sprintf("/rest/v1/profiles?id=eq.%s&select=tier,daily_usage,last_reset_date", userID)
	status, body, err := c.do(ctx, http.MethodGet, path, nil, "", "")
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("profile query failed with status %d: %s", status, string(body))
	}

	var profiles []Profile
	if err := json.Unmarshal(body, &profiles); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	if len(profiles) == 0 {
		return nil, nil
	}
	return &profiles[0], nil
}

// CheckGuestQuota consumes one unit of the IP-tracked guest quota via the
// check_guest_quota database function. Store failures fail open: a broken
// quota backend must not take the product down.
func (c *Client) CheckGuestQuota(ctx context.Context, ip string) (allowed bool, remaining int) {
	if !c.Enabled() {
		return true, 0
	}

	status, body, err := c.do(ctx, http.MethodPost, "/rest/v1/rpc/check_guest_quota",
		map[string]string{"guest_ip": ip}, "", "")
	if err != nil || status != http.StatusOK {
		c.log.Error("guest quota check failed, allowing request",
			zap.Int("status", status), zap.Error(err))
		return true, 0
	}

	var ok bool
	if err := json.Unmarshal(body, &ok); err != nil {
		c.log.Error("guest quota response malformed, allowing request", zap.Error(err))
		return true, 0
	}
	// Guests get one request per day, so nothing remains after this one.
	return ok, 0
}

// CheckMemberQuota reports whether a member may run one more analysis today
// and how many requests remain after it. Masters are always allowed with
// tier.Unlimited remaining.
func (c *Client) CheckMemberQuota(ctx context.Context, userID string) (allowed bool, remaining int) {
	profile, err := c.GetProfile(ctx, userID)
	if err != nil {
		c.log.Error("member quota check failed, allowing request", zap.Error(err))
		return true, 0
	}
	if profile == nil {
		// New user without a profile row gets a fresh daily budget.
		return true, tier.DailyQuota(tier.Member) - 1
	}
	if tier.FromProfile(profile.Tier) == tier.Master {
		return true, tier.Unlimited
	}

	left := tier.DailyQuota(tier.Member) - profile.DailyUsage
	if left > 0 {
		return true, left - 1
	}
	return false, 0
}

// IncrementUsage bumps a member's daily usage counter via the
// increment_daily_usage database function.
func (c *Client) IncrementUsage(ctx context.Context, userID string) error {
	if !c.Enabled() {
		return nil
	}

	status, body, err := c.do(ctx, http.MethodPost, "/rest/v1/rpc/increment_daily_usage",
		map[string]string{"p_user_id": userID}, "", "")
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("usage increment failed with status %d: %s", status, string(body))
	}
	return nil
}

// =============================================================================
// DAILY RESET
// =============================================================================

// CronReset runs the daily maintenance: zero all usage counters, drop stale
// guest records and delete dreams older than 30 days. Each step is
// independent; a failing step is recorded in the stats and the rest proceed.
func (c *Client) CronReset(ctx context.Context) (ResetStats, error) {
	var stats ResetStats
	if !c.Enabled() {
		return stats, fmt.Errorf("supabase not configured")
	}

	status, body, err := c.do(ctx, http.MethodPatch, "/rest/v1/profiles?daily_usage=neq.0",
		map[string]int{"daily_usage": 0}, "", "return=representation")
	if err != nil || status >= 300 {
		stats.ProfilesError = resetErr(status, body, err)
	} else {
		stats.ProfilesReset = countRows(body)
	}

	today := c.now().UTC().Format("2006-01-02")
	status, body, err = c.do(ctx, http.MethodDelete,
		"/rest/v1/guest_usage?usage_date=lt."+today, nil, "", "return=representation")
	if err != nil || status >= 300 {
		stats.GuestsError = resetErr(status, body, err)
	} else {
		stats.GuestsCleaned = countRows(body)
	}

	cutoff := c.now().UTC().AddDate(0, 0, -30).Format(time.RFC3339)
	status, body, err = c.do(ctx, http.MethodDelete,
		"/rest/v1/dreams?created_at=lt."+cutoff, nil, "", "return=representation")
	if err != nil || status >= 300 {
		stats.DreamsError = resetErr(status, body, err)
	} else {
		stats.OldDreamsDeleted = countRows(body)
	}

	c.log.Info("cron reset completed",
		zap.Int("profiles_reset", stats.ProfilesReset),
		zap.Int("guests_cleaned", stats.GuestsCleaned),
		zap.Int("old_dreams_deleted", stats.OldDreamsDeleted))
	return stats, nil
}

func resetErr(status int, body []byte, err error) string {
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("status %d: %s", status, string(body))
}

func countRows(body []byte) int {
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return 0
	}
	return len(rows)
}

func prefix(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
