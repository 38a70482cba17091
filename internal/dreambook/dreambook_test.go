package dreambook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandShadow(t *testing.T) {
	tests := []struct {
		name  string
		codes []string
		want  string
	}{
		{"low base gets both shadows", []string{"11"}, "11 - 51 - 91"},
		{"zero-padded base", []string{"05"}, "05 - 45 - 85"},
		{"plus40 overflows, plus80 wraps", []string{"65"}, "45 - 65"},
		{"wrap boundary at 139", []string{"59"}, "39 - 59 - 99"},
		{"no wrap past 139", []string{"60"}, "60"},
		{"upper edge", []string{"99"}, "99"},
		{"duplicates collapse", []string{"11", "51"}, "11 - 31 - 51 - 91"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandShadow(tt.codes))
		})
	}
}

func TestLookup_LongestKeywordWins(t *testing.T) {
	idx, err := NewIndex([]byte(`
"01": ["cá trắng"]
"54": ["cá"]
`))
	require.NoError(t, err)

	m, ok := idx.Lookup("Đêm qua tôi mơ thấy cá trắng bơi quanh nhà")
	require.True(t, ok)
	assert.Equal(t, "cá trắng", m.Keyword)
	assert.Equal(t, "01 - 41 - 81", m.Codes)
}

func TestLookup_Deterministic(t *testing.T) {
	idx := LoadDefault()
	require.NotZero(t, idx.Len())

	first, ok := idx.Lookup("tôi mơ thấy con chó đuổi theo mình")
	require.True(t, ok)
	for i := 0; i < 20; i++ {
		again, ok := idx.Lookup("tôi mơ thấy con chó đuổi theo mình")
		require.True(t, ok)
		assert.Equal(t, first, again)
	}
}

func TestLookup_NoMatch(t *testing.T) {
	idx, err := NewIndex([]byte(`"11": ["chó"]`))
	require.NoError(t, err)

	_, ok := idx.Lookup("an entirely unrelated dream")
	assert.False(t, ok)
}

func TestLookup_SubstringContainment(t *testing.T) {
	// Substring matching is intentional: no word-boundary rules.
	idx, err := NewIndex([]byte(`"32": ["rắn"]`))
	require.NoError(t, err)

	m, ok := idx.Lookup("giấc mơ bị rắn cắn vào chân")
	require.True(t, ok)
	assert.Equal(t, "rắn", m.Keyword)
	assert.Equal(t, "12 - 32 - 72", m.Codes)
}

func TestNewIndex_MalformedDataset(t *testing.T) {
	idx, err := NewIndex([]byte("not: [valid: yaml"))
	assert.Error(t, err)
	require.NotNil(t, idx)

	_, ok := idx.Lookup("chó")
	assert.False(t, ok)
}

func TestNewIndex_InvalidCode(t *testing.T) {
	_, err := NewIndex([]byte(`"1x": ["chó"]`))
	assert.Error(t, err)
}
