// Package tier implements the access-tier model: per-tier daily quotas and
// masking of premium analysis content for non-paying users.
package tier

import (
	"github.com/nhatai1995/DreamSight-AI/internal/analysis"
)

// Tier is a user access level. The wire values match the profile rows in the
// user database.
type Tier string

const (
	// Guest is an anonymous caller, tracked by IP.
	Guest Tier = "guest"
	// Member is a logged-in free user. The user database stores this as
	// "free".
	Member Tier = "free"
	// Master is the premium tier with full access.
	Master Tier = "master"
)

// FromProfile maps a profile tier value to a Tier. Anything that is not
// "master" is a member.
func FromProfile(dbTier string) Tier {
	if dbTier == string(Master) {
		return Master
	}
	return Member
}

// Unlimited marks a quota with no daily bound.
const Unlimited = -1

// DailyQuota returns the requests-per-day budget for a tier.
func DailyQuota(t Tier) int {
	switch t {
	case Guest:
		return 1
	case Member:
		return 3
	default:
		return Unlimited
	}
}

// LockedContent is the placeholder served in place of premium content.
type LockedContent struct {
	IsLocked    bool   `json:"is_locked"`
	Message     string `json:"message"`
	UpgradeHint string `json:"upgrade_hint"`
}

// NewLockedContent returns the standard upsell placeholder.
func NewLockedContent() LockedContent {
	return LockedContent{
		IsLocked:    true,
		Message:     "🔒 Nâng cấp lên Cao Thủ để mở khóa",
		UpgradeHint: "Tarot, Kinh Dịch, Số May Mắn & Lời Khuyên Chi Tiết",
	}
}

// TieredResult is a triangle analysis with premium sections replaced by
// LockedContent for non-Master tiers. Union fields hold either the full
// section or a LockedContent.
type TieredResult struct {
	ID             string              `json:"id"`
	UserDream      string              `json:"user_dream"`
	UserTier       Tier                `json:"user_tier"`
	RemainingQuota *int                `json:"remaining_quota"`
	Psychology     any                 `json:"psychology"`
	Tarot          any                 `json:"tarot"`
	IChing         any                 `json:"iching"`
	Synthesis      any                 `json:"synthesis"`
	LuckyNumbers   any                 `json:"lucky_numbers"`
	Sources        map[string][]string `json:"sources"`
	CreatedAt      string              `json:"created_at"`
}

// Mask builds the tier view of a full analysis. Psychology is always served
// in full; tarot, I Ching, synthesis and lucky numbers are locked for
// non-Master tiers. remainingQuota below zero means unlimited and is
// rendered as null.
func Mask(full *analysis.TriangleResult, userTier Tier, remainingQuota int) *TieredResult {
	var quota *int
	if remainingQuota >= 0 {
		quota = &remainingQuota
	}

	out := &TieredResult{
		ID:             full.ID,
		UserDream:      full.UserDream,
		UserTier:       userTier,
		RemainingQuota: quota,
		Psychology:     full.Analysis.Psychology,
		Sources:        full.Sources,
		// Numeric zone offset so UTC renders as "+00:00", not "Z".
		CreatedAt:      full.CreatedAt.Format("2006-01-02T15:04:05.999999-07:00"),
	}

	if userTier == Master {
		out.Tarot = full.Analysis.Tarot
		out.IChing = full.Analysis.IChing
		out.Synthesis = full.Analysis.Synthesis
		out.LuckyNumbers = full.Analysis.Synthesis.Numbers
		return out
	}

	locked := NewLockedContent()
	out.Tarot = locked
	out.IChing = locked
	out.Synthesis = locked
	out.LuckyNumbers = locked
	return out
}
