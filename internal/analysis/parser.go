package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError reports a recoverable model-output failure. The orchestrator
// treats it as retryable, unlike transport errors.
type ParseError struct {
	Stage string // "extract", "decode" or "validate"
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Stage, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func parseErr(stage string, err error) *ParseError {
	return &ParseError{Stage: stage, Err: err}
}

// Required keys per top-level section. Presence is checked on the raw JSON
// object so an omitted field is distinguishable from an empty one.
var requiredFields = map[string][]string{
	"psychology": {
		"core_emotion", "emotion_intensity", "hidden_desire", "inner_conflict",
		"archetype", "shadow_aspect", "therapy_type", "actionable_exercise",
	},
	"tarot": {
		"card_name", "card_number", "is_reversed", "orientation_reason",
		"suit", "element", "energy_analysis", "visual_bridge", "prediction",
	},
	"iching": {
		"hexagram_name", "structure", "judgment_summary", "image_meaning",
		"advice_career", "advice_relationship", "actionable_step",
	},
	"synthesis": {"core_message", "numbers"},
}

// ExtractJSON strips markdown code fences and any prose around the payload,
// returning the substring from the first '{' to the last '}'.
func ExtractJSON(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("no JSON object in %d bytes of output", len(raw))
	}
	return s[start : end+1], nil
}

// checkNumberKeys verifies each synthesis.numbers entry carries all three
// keys. Values are not inspected; an empty string is as acceptable here as
// anywhere else in the payload.
func checkNumberKeys(raw json.RawMessage) error {
	var numbers []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &numbers); err != nil {
		return fmt.Errorf("synthesis.numbers: %w", err)
	}
	for i, n := range numbers {
		for _, f := range []string{"number", "source", "meaning"} {
			if _, ok := n[f]; !ok {
				return fmt.Errorf("missing field synthesis.numbers[%d].%s", i, f)
			}
		}
	}
	return nil
}

// ParseAnalysis turns raw model output into a validated DreamAnalysis.
// Any failure is a *ParseError.
func ParseAnalysis(raw string) (*DreamAnalysis, error) {
	payload, err := ExtractJSON(raw)
	if err != nil {
		return nil, parseErr("extract", err)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &top); err != nil {
		return nil, parseErr("decode", err)
	}
	if _, ok := top["art_prompt"]; !ok {
		return nil, parseErr("validate", fmt.Errorf("missing field art_prompt"))
	}
	for section, fields := range requiredFields {
		rawSection, ok := top[section]
		if !ok {
			return nil, parseErr("validate", fmt.Errorf("missing section %s", section))
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(rawSection, &obj); err != nil {
			return nil, parseErr("decode", fmt.Errorf("section %s: %w", section, err))
		}
		for _, f := range fields {
			if _, ok := obj[f]; !ok {
				return nil, parseErr("validate", fmt.Errorf("missing field %s.%s", section, f))
			}
		}
		if section == "synthesis" {
			if err := checkNumberKeys(obj["numbers"]); err != nil {
				return nil, parseErr("validate", err)
			}
		}
	}

	var analysis DreamAnalysis
	if err := json.Unmarshal([]byte(payload), &analysis); err != nil {
		return nil, parseErr("decode", err)
	}
	if err := analysis.Validate(); err != nil {
		return nil, parseErr("validate", err)
	}
	return &analysis, nil
}
