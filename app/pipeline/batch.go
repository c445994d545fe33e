package pipeline

import (
	"newsd/app/ai"
)

const (
	// Reserved for the prompt preamble of every batch request.
	batchBaseOverhead = 200
	// Per-item framing (id header and separators) inside the prompt.
	batchItemOverhead = 24
)

// Batcher packs candidate texts into batches that fit a provider's
// character budget.
type Batcher struct {
	charLimit int
}

func NewBatcher(charLimit int) *Batcher {
	return &Batcher{charLimit: charLimit}
}

// Next greedily accumulates items in their original order and returns the
// first batch plus the remaining items. The batch is closed the moment
// adding the next item would exceed the budget; an item too large for any
// batch is still emitted alone rather than starving the queue.
func (b *Batcher) Next(items []ai.BatchInput) (batch, rest []ai.BatchInput) {
	budget := b.charLimit - batchBaseOverhead

	size := 0
	for i, item := range items {
		cost := len(item.Text) + batchItemOverhead
		if len(batch) > 0 && size+cost > budget {
			return batch, items[i:]
		}
		batch = append(batch, item)
		size += cost
	}
	return batch, nil
}

// Pack splits all items into budget-respecting batches.
func (b *Batcher) Pack(items []ai.BatchInput) [][]ai.BatchInput {
	var batches [][]ai.BatchInput
	for len(items) > 0 {
		var batch []ai.BatchInput
		batch, items = b.Next(items)
		batches = append(batches, batch)
	}
	return batches
}
