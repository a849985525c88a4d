package vectorindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortMatches(t *testing.T) {
	t.Parallel()

	matches := []Match{
		{Id: "c", Score: 0.5},
		{Id: "a", Score: 0.9},
		{Id: "b", Score: 0.9},
	}

	SortMatches(matches)

	assert.Equal(t, "a", matches[0].Id)
	assert.Equal(t, "b", matches[1].Id)
	assert.Equal(t, "c", matches[2].Id)
}

func TestCosineSimilarity(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)

	assert.Zero(t, CosineSimilarity(nil, nil))
	assert.Zero(t, CosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}
