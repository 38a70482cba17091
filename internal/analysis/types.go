// Package analysis implements the Analysis Triangle pipeline: three-lens
// retrieval, folk-number lookup, prompt assembly, LLM invocation with bounded
// retries, strict JSON parsing, fallback synthesis and result assembly.
package analysis

import (
	"fmt"
	"time"
)

// PsychologyDetailed is the four-layer psychology reading
// (emotion, Freudian conflict, Jungian archetype, therapeutic action).
type PsychologyDetailed struct {
	CoreEmotion        string `json:"core_emotion"`
	EmotionIntensity   int    `json:"emotion_intensity"`
	HiddenDesire       string `json:"hidden_desire"`
	InnerConflict      string `json:"inner_conflict"`
	Archetype          string `json:"archetype"`
	ShadowAspect       string `json:"shadow_aspect"`
	TherapyType        string `json:"therapy_type"`
	ActionableExercise string `json:"actionable_exercise"`
}

// TarotDetailed is the three-layer tarot reading
// (orientation, elemental energy, visual bridge).
type TarotDetailed struct {
	CardName          string `json:"card_name"`
	CardNumber        int    `json:"card_number"`
	IsReversed        bool   `json:"is_reversed"`
	OrientationReason string `json:"orientation_reason"`
	Suit              string `json:"suit"`
	Element           string `json:"element"`
	EnergyAnalysis    string `json:"energy_analysis"`
	VisualBridge      string `json:"visual_bridge"`
	Prediction        string `json:"prediction"`
}

// IChingDetailed is the hexagram reading with per-domain advice.
type IChingDetailed struct {
	HexagramName       string `json:"hexagram_name"`
	Structure          string `json:"structure"`
	JudgmentSummary    string `json:"judgment_summary"`
	ImageMeaning       string `json:"image_meaning"`
	AdviceCareer       string `json:"advice_career"`
	AdviceRelationship string `json:"advice_relationship"`
	ActionableStep     string `json:"actionable_step"`
}

// LuckyNumber is a single lucky number with its source and meaning. Number
// may encode several dash-separated codes ("11 - 51 - 91").
type LuckyNumber struct {
	Number  string `json:"number"`
	Source  string `json:"source"`
	Meaning string `json:"meaning"`
}

// FinalSynthesis combines all lenses into one message plus exactly three
// lucky numbers.
type FinalSynthesis struct {
	CoreMessage string        `json:"core_message"`
	Numbers     []LuckyNumber `json:"numbers"`
}

// DreamAnalysis is the complete three-lens analysis. All sub-structures are
// required; a payload missing any field is invalid.
type DreamAnalysis struct {
	Psychology PsychologyDetailed `json:"psychology"`
	Tarot      TarotDetailed      `json:"tarot"`
	IChing     IChingDetailed     `json:"iching"`
	Synthesis  FinalSynthesis     `json:"synthesis"`
	ArtPrompt  string             `json:"art_prompt"`
}

// Bounds enforced on every DreamAnalysis.
const (
	MaxEmotionIntensity = 100
	MaxCardNumber       = 77
	LuckyNumberCount    = 3
)

// Validate enforces range and shape invariants. Field-presence checks happen
// at parse time; Validate guards the numeric bounds and the lucky-number
// count for any DreamAnalysis regardless of origin.
func (a *DreamAnalysis) Validate() error {
	if a.Psychology.EmotionIntensity < 0 || a.Psychology.EmotionIntensity > MaxEmotionIntensity {
		return fmt.Errorf("emotion_intensity %d out of range [0,%d]",
			a.Psychology.EmotionIntensity, MaxEmotionIntensity)
	}
	if a.Tarot.CardNumber < 0 || a.Tarot.CardNumber > MaxCardNumber {
		return fmt.Errorf("card_number %d out of range [0,%d]",
			a.Tarot.CardNumber, MaxCardNumber)
	}
	if got := len(a.Synthesis.Numbers); got != LuckyNumberCount {
		return fmt.Errorf("synthesis.numbers has %d entries, want exactly %d",
			got, LuckyNumberCount)
	}
	return nil
}

// TriangleResult is the immutable outcome of one orchestration run.
type TriangleResult struct {
	ID        string              `json:"id"`
	UserDream string              `json:"user_dream"`
	Analysis  DreamAnalysis       `json:"analysis"`
	Sources   map[string][]string `json:"sources"`
	CreatedAt time.Time           `json:"created_at"`
}
