package kvcache

import (
	"fmt"

	"github.com/jmorganca/pyramidkv/ml"
)

// UpdateKV compresses one layer's freshly prefilled cache and returns the
// replacement key/value tensors. The inputs are never modified; in the
// passthrough case they are returned as-is.
//
// attentionMask is accepted for call-site compatibility with the host's
// attention path and is ignored: the estimator builds its own window mask.
// numKeyValueGroups must agree with the configured n_rep. capacityOverride
// replaces the configured budget for this call only; pass 0 to use the
// configured value.
func (c *Compressor) UpdateKV(key, query, value, attentionMask *ml.Tensor, numKeyValueGroups, capacityOverride int) (*ml.Tensor, *ml.Tensor, error) {
	_ = attentionMask

	if key.Seq() != query.Seq() {
		return nil, nil, fmt.Errorf("%w: key %d, query %d", ErrPrefillOnly, key.Seq(), query.Seq())
	}

	nRep := max(c.config.NRep, 1)
	if numKeyValueGroups > 1 && numKeyValueGroups != nRep {
		return nil, nil, fmt.Errorf("%w: num_key_value_groups %d does not match configured n_rep %d", ErrInvalidConfig, numKeyValueGroups, c.config.NRep)
	}

	currentMax := c.config.MaxCapacityPrompt
	if capacityOverride > 0 {
		currentMax = capacityOverride
	}

	qLen := key.Seq()
	windowSize := c.config.WindowSize

	if classify(qLen, currentMax, windowSize) == regimePassthrough {
		return key, value, nil
	}

	// Degenerate budget: nothing beyond the window can be kept, so skip
	// scoring and truncate.
	if currentMax <= windowSize {
		w := min(windowSize, qLen)
		kCur, err := key.Narrow(qLen-w, w)
		if err != nil {
			return nil, nil, err
		}
		vCur, err := value.Narrow(qLen-w, w)
		if err != nil {
			return nil, nil, err
		}
		return kCur, vCur, nil
	}

	history := qLen - windowSize

	keep := currentMax - windowSize
	if classify(qLen, currentMax, windowSize) == regimeAggressive {
		keep = c.config.layerBudget(qLen, currentMax)
	}
	keep = min(keep, history)

	indices, err := c.selectPositions(key.Repeat(nRep), query, keep)
	if err != nil {
		return nil, nil, err
	}

	keyOut, err := gatherWithWindow(key, indices, windowSize)
	if err != nil {
		return nil, nil, err
	}

	valueOut, err := gatherWithWindow(value, indices, windowSize)
	if err != nil {
		return nil, nil, err
	}

	return keyOut, valueOut, nil
}

// selectPositions runs the estimator, smoother and top-k selection, returning
// the retained historical positions per batch and key/value head, ascending.
func (c *Compressor) selectPositions(key, query *ml.Tensor, keep int) ([][][]int, error) {
	nRep := max(c.config.NRep, 1)
	mass := windowAttention(query, key, c.config.WindowSize)

	indices := make([][][]int, len(mass))
	for b, headScores := range mass {
		smoothed := make([][]float32, len(headScores))
		for h, scores := range headScores {
			var err error
			if smoothed[h], err = pool1d(scores, c.config.KernelSize, c.config.Pooling); err != nil {
				return nil, err
			}
		}

		smoothed = groupHeads(smoothed, nRep)

		indices[b] = make([][]int, len(smoothed))
		for h, scores := range smoothed {
			indices[b][h] = topK(scores, keep)
		}
	}

	return indices, nil
}

// gatherWithWindow picks the selected historical rows and appends the
// trailing window unchanged.
func gatherWithWindow(t *ml.Tensor, indices [][][]int, windowSize int) (*ml.Tensor, error) {
	past, err := t.Narrow(0, t.Seq()-windowSize)
	if err != nil {
		return nil, err
	}

	compressed, err := past.Gather(indices)
	if err != nil {
		return nil, err
	}

	window, err := t.Narrow(t.Seq()-windowSize, windowSize)
	if err != nil {
		return nil, err
	}

	return ml.Concat(compressed, window)
}
