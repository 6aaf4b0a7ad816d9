package kvcache

import (
	"cmp"
	"slices"

	heap "github.com/emirpasic/gods/v2/trees/binaryheap"
)

type scoredPosition struct {
	pos   int
	score float32
}

// topK returns the positions of the k highest scores, sorted ascending so
// the gathered entries keep their original order. Ties break toward the
// earlier position, which keeps selection deterministic.
func topK(scores []float32, k int) []int {
	if k > len(scores) {
		k = len(scores)
	}
	if k <= 0 {
		return nil
	}

	queue := heap.NewWith(func(a, b scoredPosition) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.pos, b.pos)
	})

	for i, score := range scores {
		queue.Push(scoredPosition{pos: i, score: score})
	}

	selected := make([]int, 0, k)
	for range k {
		head, _ := queue.Pop()
		selected = append(selected, head.pos)
	}

	slices.Sort(selected)

	return selected
}
