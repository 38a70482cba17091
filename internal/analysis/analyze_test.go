package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validAnalyzeJSON = `{"interpretation": "Giấc mơ về biển thể hiện sự tự do.", "image_prompt": "A Surrealist painting in the style of Salvador Dalí depicting an endless ocean"}`

func newAnalyzeService(llm LLM, retriever Retriever) *AnalyzeService {
	return NewAnalyzeService(llm, retriever, time.Hour, 100)
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("mystical")
	require.NoError(t, err)
	assert.Equal(t, ModeMystical, mode)

	mode, err = ParseMode("psychological")
	require.NoError(t, err)
	assert.Equal(t, ModePsychological, mode)

	_, err = ParseMode("prophetic")
	assert.Error(t, err)
}

func TestAnalyze_Success(t *testing.T) {
	llm := &fakeLLM{responses: []string{validAnalyzeJSON}}
	retriever := &fakeRetriever{docs: map[string][]Snippet{
		"": {
			{Text: "Water symbolizes emotion", SourceType: "psychology_text", Title: "Jung on Water", Distance: 0.25},
			{Text: "Oceans in myth", Distance: 1.0},
		},
	}}
	svc := newAnalyzeService(llm, retriever)

	result, err := svc.Analyze(context.Background(), "tôi mơ thấy biển rộng", ModeMystical)
	require.NoError(t, err)

	assert.Equal(t, "Giấc mơ về biển thể hiện sự tự do.", result.Interpretation)
	assert.Equal(t, ModeMystical, result.Mode)
	require.Len(t, result.Sources, 2)
	assert.Equal(t, "psychology_text", result.Sources[0].SourceType)
	assert.Equal(t, "Jung on Water", result.Sources[0].Title)
	assert.InDelta(t, 0.8, result.Sources[0].RelevanceScore, 0.0001)
	assert.Equal(t, "dream_knowledge", result.Sources[1].SourceType)
	assert.Equal(t, "Document 2", result.Sources[1].Title)
	assert.InDelta(t, 0.5, result.Sources[1].RelevanceScore, 0.0001)
}

func TestAnalyze_PersonaSelection(t *testing.T) {
	llm := &fakeLLM{responses: []string{validAnalyzeJSON, validAnalyzeJSON}}
	svc := newAnalyzeService(llm, &fakeRetriever{})

	_, err := svc.Analyze(context.Background(), "giấc mơ một", ModeMystical)
	require.NoError(t, err)
	_, err = svc.Analyze(context.Background(), "giấc mơ hai", ModePsychological)
	require.NoError(t, err)

	require.Len(t, llm.prompts, 2)
	assert.Contains(t, llm.prompts[0], "Mystic Dream Interpreter")
	assert.Contains(t, llm.prompts[1], "Jungian psychology")
	assert.Contains(t, llm.prompts[0], "CRITICAL SECURITY RULES")
	assert.Contains(t, llm.prompts[1], "CRITICAL SECURITY RULES")
}

func TestAnalyze_CacheHitSkipsLLM(t *testing.T) {
	llm := &fakeLLM{responses: []string{validAnalyzeJSON}}
	svc := newAnalyzeService(llm, &fakeRetriever{})

	first, err := svc.Analyze(context.Background(), "tôi mơ thấy biển", ModeMystical)
	require.NoError(t, err)

	// Same dream modulo case and whitespace.
	second, err := svc.Analyze(context.Background(), "  Tôi Mơ Thấy Biển  ", ModeMystical)
	require.NoError(t, err)

	assert.Equal(t, 1, llm.calls)
	assert.Same(t, first, second)
}

func TestAnalyze_ModeSplitsCache(t *testing.T) {
	llm := &fakeLLM{responses: []string{validAnalyzeJSON, validAnalyzeJSON}}
	svc := newAnalyzeService(llm, &fakeRetriever{})

	_, err := svc.Analyze(context.Background(), "tôi mơ thấy biển", ModeMystical)
	require.NoError(t, err)
	_, err = svc.Analyze(context.Background(), "tôi mơ thấy biển", ModePsychological)
	require.NoError(t, err)

	assert.Equal(t, 2, llm.calls)
}

func TestAnalyze_TransportErrorPropagates(t *testing.T) {
	llm := &fakeLLM{responses: []string{""}}
	svc := newAnalyzeService(llm, &fakeRetriever{})

	_, err := svc.Analyze(context.Background(), "tôi mơ thấy biển", ModeMystical)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm analysis failed")
}

func TestAnalyze_LenientParseFallsBackToRawText(t *testing.T) {
	llm := &fakeLLM{responses: []string{"The ocean in your dream means freedom."}}
	svc := newAnalyzeService(llm, &fakeRetriever{})

	result, err := svc.Analyze(context.Background(), "tôi mơ thấy biển", ModeMystical)
	require.NoError(t, err)

	assert.Equal(t, "The ocean in your dream means freedom.", result.Interpretation)
	assert.Contains(t, result.ImagePrompt, "Salvador Dalí")
	assert.Contains(t, result.ImagePrompt, "tôi mơ thấy biển")
}

func TestAnalyze_RetrievalFailureDegrades(t *testing.T) {
	llm := &fakeLLM{responses: []string{validAnalyzeJSON}}
	svc := newAnalyzeService(llm, &fakeRetriever{err: errors.New("store offline")})

	result, err := svc.Analyze(context.Background(), "tôi mơ thấy biển", ModeMystical)
	require.NoError(t, err)
	assert.Empty(t, result.Sources)
	assert.NotContains(t, llm.prompts[0], "Reference Knowledge")
}
