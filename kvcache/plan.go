package kvcache

// LayerPlan reports the eviction outcome for one layer: how many historical
// positions it may keep and the resulting cache length, window included.
type LayerPlan struct {
	Layer    int `json:"layer"`
	Budget   int `json:"budget"`
	Retained int `json:"retained"`
}

// Plan is a dry run of the eviction policy across every layer for a given
// prefill length. It performs no tensor work.
type Plan struct {
	Regime   string      `json:"regime"`
	QLen     int         `json:"q_len"`
	Capacity int         `json:"capacity"`
	Layers   []LayerPlan `json:"layers"`
}

// Plan previews the retention schedule at qLen. capacityOverride replaces
// the configured budget when positive, mirroring UpdateKV.
func (c Config) Plan(qLen, capacityOverride int) Plan {
	currentMax := c.MaxCapacityPrompt
	if capacityOverride > 0 {
		currentMax = capacityOverride
	}

	r := classify(qLen, currentMax, c.WindowSize)
	history := max(qLen-c.WindowSize, 0)

	plan := Plan{
		Regime:   r.String(),
		QLen:     qLen,
		Capacity: currentMax,
		Layers:   make([]LayerPlan, c.NumHiddenLayers),
	}

	for i := range plan.Layers {
		var budget int
		switch {
		case r == regimePassthrough:
			budget = history
		case currentMax <= c.WindowSize:
			budget = 0
		case r == regimeModerate:
			budget = min(currentMax-c.WindowSize, history)
		default:
			layer := c
			layer.LayerIdx = i
			budget = min(layer.layerBudget(qLen, currentMax), history)
		}

		plan.Layers[i] = LayerPlan{Layer: i, Budget: budget, Retained: budget + min(c.WindowSize, qLen)}
	}

	return plan
}
