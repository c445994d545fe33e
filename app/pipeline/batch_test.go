package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsd/app/ai"
)

func batchItems(sizes ...int) []ai.BatchInput {
	items := make([]ai.BatchInput, len(sizes))
	for i, size := range sizes {
		items[i] = ai.BatchInput{
			ID:   string(rune('a' + i)),
			Text: strings.Repeat("x", size),
		}
	}
	return items
}

func TestBatcherPackRespectsBudget(t *testing.T) {
	b := NewBatcher(500)
	budget := 500 - batchBaseOverhead

	items := batchItems(100, 120, 40, 200, 10, 90, 60)
	batches := b.Pack(items)
	require.NotEmpty(t, batches)

	var flat []ai.BatchInput
	for _, batch := range batches {
		size := 0
		for _, item := range batch {
			size += len(item.Text) + batchItemOverhead
		}
		if len(batch) > 1 {
			assert.LessOrEqual(t, size, budget)
		}
		flat = append(flat, batch...)
	}

	// Packing never reorders or drops items.
	require.Len(t, flat, len(items))
	for i, item := range items {
		assert.Equal(t, item.ID, flat[i].ID)
	}
}

func TestBatcherLoneOversizeItem(t *testing.T) {
	b := NewBatcher(500)

	batch, rest := b.Next(batchItems(5000, 10))
	require.Len(t, batch, 1)
	assert.Equal(t, "a", batch[0].ID)
	require.Len(t, rest, 1)
	assert.Equal(t, "b", rest[0].ID)
}

func TestBatcherNextClosesBeforeOverflow(t *testing.T) {
	// Budget is 300; two 120-char items cost 288, a third would overflow.
	b := NewBatcher(500)

	batch, rest := b.Next(batchItems(120, 120, 120))
	require.Len(t, batch, 2)
	require.Len(t, rest, 1)
	assert.Equal(t, "c", rest[0].ID)

	batch, rest = b.Next(rest)
	require.Len(t, batch, 1)
	assert.Empty(t, rest)
}

func TestBatcherEmptyInput(t *testing.T) {
	b := NewBatcher(500)

	batch, rest := b.Next(nil)
	assert.Empty(t, batch)
	assert.Empty(t, rest)
	assert.Empty(t, b.Pack(nil))
}
