package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roninchain/indexer/internal/constants"
)

func TestEffectiveParallelismClampsToUpperLimit(t *testing.T) {
	assert.LessOrEqual(t, effectiveParallelism(1000), constants.UpperThreadLimit)
}

func TestEffectiveParallelismNeverZero(t *testing.T) {
	assert.GreaterOrEqual(t, effectiveParallelism(0), 1)
}

func TestPlanChunksCoversFullRangeWithoutOverlap(t *testing.T) {
	chunks := planChunks(1, 25, 10)

	assert.Equal(t, []chunk{
		{start: 1, stop: 10},
		{start: 11, stop: 20},
		{start: 21, stop: 25},
	}, chunks)
}

func TestPlanChunksSingleChunkWhenSizeExceedsRange(t *testing.T) {
	chunks := planChunks(5, 8, 100)
	assert.Equal(t, []chunk{{start: 5, stop: 8}}, chunks)
}

func TestChunkSizeNeverExceedsSpan(t *testing.T) {
	size := chunkSize(1, 10, 1)
	assert.LessOrEqual(t, size, uint64(10))
}
