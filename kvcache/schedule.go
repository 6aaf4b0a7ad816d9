package kvcache

// regime classifies a call by how much the prefill overshoots the budget.
type regime int

const (
	// regimePassthrough: the cache fits the budget, nothing to evict.
	regimePassthrough regime = iota

	// regimeModerate: over budget, but by less than the budgeted history
	// size. Every layer keeps the same number of historical positions.
	regimeModerate

	// regimeAggressive: well over budget. The pyramid schedule applies and
	// deep layers keep less history than shallow ones.
	regimeAggressive
)

func (r regime) String() string {
	switch r {
	case regimePassthrough:
		return "passthrough"
	case regimeModerate:
		return "moderate"
	case regimeAggressive:
		return "aggressive"
	}
	return "unknown"
}

// classify picks the regime from the sequence length alone.
func classify(qLen, currentMax, windowSize int) regime {
	switch {
	case qLen < currentMax:
		return regimePassthrough
	case qLen < 2*(currentMax-windowSize):
		return regimeModerate
	default:
		return regimeAggressive
	}
}

// layerBudget computes this layer's historical retention budget under the
// pyramid schedule. Shallow layers land near maxNum, deep layers near minNum,
// with equal steps in between. When the spread would exceed the available
// history, maxNum is clamped to it and minNum rebalanced so the mean budget
// stays at currentMax-windowSize.
func (c Config) layerBudget(qLen, currentMax int) int {
	minNum := (currentMax - c.WindowSize) / c.Beta
	maxNum := 2*(currentMax-c.WindowSize) - minNum

	if maxNum >= qLen-c.WindowSize {
		maxNum = qLen - c.WindowSize
		minNum = 2*(currentMax-c.WindowSize) - maxNum
	}

	steps := (maxNum - minNum) / (c.NumHiddenLayers - 1)

	return maxNum - c.LayerIdx*steps
}
