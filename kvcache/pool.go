package kvcache

import (
	"fmt"
	"math"
)

// pool1d smooths a score vector with a sliding window of the given odd kernel
// size, stride 1, symmetric padding kernelSize/2, so the output keeps the
// input's length. Average pooling treats padding as zeros and divides by the
// full kernel size; max pooling ignores padding.
func pool1d(scores []float32, kernelSize int, pooling Pooling) ([]float32, error) {
	pad := kernelSize / 2
	out := make([]float32, len(scores))

	switch pooling {
	case PoolingAvg:
		for i := range scores {
			var sum float32
			for j := i - pad; j <= i+pad; j++ {
				if j >= 0 && j < len(scores) {
					sum += scores[j]
				}
			}
			out[i] = sum / float32(kernelSize)
		}
	case PoolingMax:
		for i := range scores {
			best := float32(math.Inf(-1))
			for j := max(i-pad, 0); j <= min(i+pad, len(scores)-1); j++ {
				if scores[j] > best {
					best = scores[j]
				}
			}
			out[i] = best
		}
	default:
		return nil, fmt.Errorf("%w: pooling method %q not supported", ErrInvalidConfig, pooling)
	}

	return out, nil
}

// groupHeads reduces per-query-head scores to per-key/value-head scores by
// averaging each run of nRep repeated heads. scores is indexed [head][pos];
// head ordering is the repeat_kv layout, kv*nRep+r.
func groupHeads(scores [][]float32, nRep int) [][]float32 {
	if nRep <= 1 {
		return scores
	}

	kvHeads := len(scores) / nRep
	out := make([][]float32, kvHeads)

	for kv := range kvHeads {
		mean := make([]float32, len(scores[kv*nRep]))
		for r := range nRep {
			for i, v := range scores[kv*nRep+r] {
				mean[i] += v
			}
		}
		for i := range mean {
			mean[i] /= float32(nRep)
		}
		out[kv] = mean
	}

	return out
}
