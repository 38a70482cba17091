package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTaskType(t *testing.T) {
	assert.Equal(t, TaskDocument, resolveTaskType(TaskDocument))
	assert.Equal(t, TaskSimilarity, resolveTaskType(TaskSimilarity))
	assert.Equal(t, TaskQuery, resolveTaskType(TaskQuery))

	// Serving queries is the default for anything unrecognized.
	assert.Equal(t, TaskQuery, resolveTaskType(""))
	assert.Equal(t, TaskQuery, resolveTaskType("CLUSTERING"))
}

func TestCosineSimilarity(t *testing.T) {
	got, err := CosineSimilarity([]float32{1, 0, 0}, []float32{1, 0, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, got, 1e-9)

	got, err = CosineSimilarity([]float32{1, 0, 0}, []float32{0, 1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, got, 1e-9)

	got, err = CosineSimilarity([]float32{0, 0, 0}, []float32{0, 1, 0})
	require.NoError(t, err)
	assert.Zero(t, got)

	_, err = CosineSimilarity([]float32{1}, []float32{1, 2})
	assert.Error(t, err)
}
