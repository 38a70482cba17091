package analysis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nhatai1995/DreamSight-AI/internal/dreambook"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeLLM struct {
	responses []string // consumed in order; empty string means transport error
	calls     int
	prompts   []string
}

func (f *fakeLLM) Complete(_ context.Context, system, _ string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, system)
	if len(f.responses) == 0 {
		return "", errors.New("no responses configured")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	if resp == "" {
		return "", errors.New("connection refused")
	}
	return resp, nil
}

type fakeRetriever struct {
	docs map[string][]Snippet
	err  error

	// errSource fails only the named source type, leaving the others intact.
	errSource string
}

func (f *fakeRetriever) Retrieve(_ context.Context, _, sourceType string, k int) ([]Snippet, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.errSource != "" && sourceType == f.errSource {
		return nil, errors.New("lens offline")
	}
	docs := f.docs[sourceType]
	if len(docs) > k {
		docs = docs[:k]
	}
	return docs, nil
}

func noSleep(context.Context, time.Duration) error { return nil }

func testBook(t *testing.T) *dreambook.Index {
	t.Helper()
	idx, err := dreambook.NewIndex([]byte(`"11": ["chó"]` + "\n" + `"32": ["rắn"]`))
	require.NoError(t, err)
	return idx
}

func TestAnalyzeTriangle_Success(t *testing.T) {
	llm := &fakeLLM{responses: []string{validAnalysisJSON(t, nil)}}
	retriever := &fakeRetriever{docs: map[string][]Snippet{
		SourcePsychology: {{Text: "Jung on shadows"}, {Text: "Freud on dreams"}},
		SourceMystical:   {{Text: "The Tower card meaning"}},
		SourceSymbols:    {{Text: "Hexagram 5 Nhu"}},
	}}
	o := NewOrchestrator(llm, retriever, testBook(t), WithSleep(noSleep))

	result := o.AnalyzeTriangle(context.Background(), "tôi mơ thấy chó đuổi theo")

	require.NotNil(t, result)
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, "tôi mơ thấy chó đuổi theo", result.UserDream)
	assert.Equal(t, "The Tower", result.Analysis.Tarot.CardName)
	assert.Equal(t, 1, llm.calls)
	assert.Len(t, result.Sources["psychology"], 2)
	assert.Len(t, result.Sources["tarot"], 1)
	assert.Len(t, result.Sources["iching"], 1)
	assert.False(t, result.CreatedAt.IsZero())
}

func TestAnalyzeTriangle_FolkNumberInPrompt(t *testing.T) {
	llm := &fakeLLM{responses: []string{validAnalysisJSON(t, nil)}}
	o := NewOrchestrator(llm, &fakeRetriever{}, testBook(t), WithSleep(noSleep))

	o.AnalyzeTriangle(context.Background(), "đêm qua mơ thấy rắn bò vào nhà")

	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], `DETECTED KEYWORD: "rắn"`)
	assert.Contains(t, llm.prompts[0], "12 - 32 - 72")
}

func TestAnalyzeTriangle_NoKeywordFallbackGuidance(t *testing.T) {
	llm := &fakeLLM{responses: []string{validAnalysisJSON(t, nil)}}
	o := NewOrchestrator(llm, &fakeRetriever{}, testBook(t), WithSleep(noSleep))

	o.AnalyzeTriangle(context.Background(), "một giấc mơ không có từ khóa nào cả")

	require.Len(t, llm.prompts, 1)
	assert.NotContains(t, llm.prompts[0], "DETECTED KEYWORD")
	assert.Contains(t, llm.prompts[0], "No specific keyword detected")
}

func TestAnalyzeTriangle_RetryOnParseFailure(t *testing.T) {
	llm := &fakeLLM{responses: []string{"garbage, not json", validAnalysisJSON(t, nil)}}
	slept := 0
	o := NewOrchestrator(llm, &fakeRetriever{}, testBook(t),
		WithSleep(func(context.Context, time.Duration) error { slept++; return nil }))

	result := o.AnalyzeTriangle(context.Background(), "một giấc mơ dài về biển cả")

	assert.Equal(t, 2, llm.calls)
	assert.Equal(t, 1, slept)
	assert.Equal(t, "The Tower", result.Analysis.Tarot.CardName)
}

func TestAnalyzeTriangle_SucceedsOnFinalAttempt(t *testing.T) {
	llm := &fakeLLM{responses: []string{"bad", "also bad", validAnalysisJSON(t, nil)}}
	slept := 0
	o := NewOrchestrator(llm, &fakeRetriever{}, testBook(t),
		WithSleep(func(context.Context, time.Duration) error { slept++; return nil }))

	result := o.AnalyzeTriangle(context.Background(), "một giấc mơ dài về biển cả")

	assert.Equal(t, 3, llm.calls)
	assert.Equal(t, 2, slept)
	assert.Equal(t, "The Tower", result.Analysis.Tarot.CardName)
}

func TestAnalyzeTriangle_ExhaustedRetriesServeFallback(t *testing.T) {
	llm := &fakeLLM{responses: []string{"bad", "bad", "bad"}}
	o := NewOrchestrator(llm, &fakeRetriever{}, testBook(t), WithSleep(noSleep))

	result := o.AnalyzeTriangle(context.Background(), "một giấc mơ dài về biển cả")

	assert.Equal(t, 3, llm.calls)
	assert.Equal(t, "The Wheel of Fortune", result.Analysis.Tarot.CardName)
	require.NoError(t, result.Analysis.Validate())
}

func TestAnalyzeTriangle_TransportErrorSkipsRetries(t *testing.T) {
	llm := &fakeLLM{responses: []string{""}}
	slept := 0
	o := NewOrchestrator(llm, &fakeRetriever{}, testBook(t),
		WithSleep(func(context.Context, time.Duration) error { slept++; return nil }))

	result := o.AnalyzeTriangle(context.Background(), "một giấc mơ dài về biển cả")

	assert.Equal(t, 1, llm.calls)
	assert.Zero(t, slept)
	assert.Equal(t, "The Wheel of Fortune", result.Analysis.Tarot.CardName)
	assert.Contains(t, result.Analysis.Psychology.InnerConflict, "connection refused")
}

func TestAnalyzeTriangle_RetrievalFailureDegrades(t *testing.T) {
	llm := &fakeLLM{responses: []string{validAnalysisJSON(t, nil)}}
	retriever := &fakeRetriever{err: errors.New("store offline")}
	o := NewOrchestrator(llm, retriever, testBook(t), WithSleep(noSleep))

	result := o.AnalyzeTriangle(context.Background(), "một giấc mơ dài về biển cả")

	assert.Equal(t, "The Tower", result.Analysis.Tarot.CardName)
	assert.Empty(t, result.Sources["psychology"])
	assert.Contains(t, llm.prompts[0], "No psychology context available")
}

func TestAnalyzeTriangle_SingleLensFailureLeavesOthersIntact(t *testing.T) {
	llm := &fakeLLM{responses: []string{validAnalysisJSON(t, nil)}}
	retriever := &fakeRetriever{
		docs: map[string][]Snippet{
			SourcePsychology: {{Text: "Jung on shadows"}},
			SourceMystical:   {{Text: "The Tower card meaning"}},
			SourceSymbols:    {{Text: "Hexagram 5 Nhu"}},
		},
		errSource: SourceMystical,
	}
	o := NewOrchestrator(llm, retriever, testBook(t), WithSleep(noSleep))

	result := o.AnalyzeTriangle(context.Background(), "một giấc mơ dài về biển cả")

	assert.Len(t, result.Sources["psychology"], 1)
	assert.Empty(t, result.Sources["tarot"])
	assert.Len(t, result.Sources["iching"], 1)

	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "Jung on shadows")
	assert.Contains(t, llm.prompts[0], "Hexagram 5 Nhu")
	assert.Contains(t, llm.prompts[0], "No tarot/mystic context available")
}

func TestAnalyzeTriangle_SourceExcerptsBounded(t *testing.T) {
	long := ""
	for range 50 {
		long += "0123456789"
	}
	llm := &fakeLLM{responses: []string{validAnalysisJSON(t, nil)}}
	retriever := &fakeRetriever{docs: map[string][]Snippet{
		SourcePsychology: {{Text: long}},
	}}
	o := NewOrchestrator(llm, retriever, testBook(t), WithSleep(noSleep))

	result := o.AnalyzeTriangle(context.Background(), "một giấc mơ dài về biển cả")

	require.Len(t, result.Sources["psychology"], 1)
	assert.Equal(t, long[:200]+"...", result.Sources["psychology"][0])
}

func TestBuildPrompt_Deterministic(t *testing.T) {
	psych := []string{"doc a", "doc b"}
	mystic := []string{"doc c"}
	iching := []string{"doc d"}
	first := BuildPrompt("giấc mơ", psych, mystic, iching, "chó", "11 - 51 - 91")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, BuildPrompt("giấc mơ", psych, mystic, iching, "chó", "11 - 51 - 91"),
			"prompt must be byte-identical for identical inputs (iteration %d)", i)
	}
}

func TestBuildPrompt_TruncatesContextDocs(t *testing.T) {
	long := ""
	for range 100 {
		long += "0123456789"
	}
	prompt := BuildPrompt("giấc mơ", []string{long}, nil, nil, "", "")
	assert.Contains(t, prompt, long[:500])
	assert.NotContains(t, prompt, long[:501])
}

func TestTruncate_RuneSafe(t *testing.T) {
	s := "mơ thấy rắn"
	assert.Equal(t, "mơ th", truncate(s, 5))
	assert.Equal(t, s, truncate(s, 100))
	assert.Equal(t, fmt.Sprintf("%s", s), truncate(s, len([]rune(s))))
}
