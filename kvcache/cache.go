// Package kvcache compresses the key/value cache produced by a prefill pass.
//
// Given the query, key and value tensors for one layer, the compressor keeps
// the trailing window of positions verbatim and retains only the most
// relevant historical positions, with a retention budget that shrinks as
// layer depth grows (shallow layers keep more history, deep layers keep
// less). Relevance is estimated from the attention mass the trailing window
// places on each historical position.
package kvcache

import (
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

var (
	ErrInvalidConfig = errors.New("invalid compression config")
	ErrPrefillOnly   = errors.New("key and query sequence lengths differ")
)

// Pooling selects how importance scores are smoothed before selection.
type Pooling string

const (
	PoolingAvg Pooling = "avgpool"
	PoolingMax Pooling = "maxpool"
)

// Config holds the static configuration for one layer's compressor.
type Config struct {
	// NumHiddenLayers is the depth of the network. Must be greater than 1:
	// the pyramid schedule divides by NumHiddenLayers-1.
	NumHiddenLayers int `mapstructure:"num_hidden_layers"`

	// WindowSize is the number of trailing positions always kept verbatim.
	WindowSize int `mapstructure:"window_size"`

	// MaxCapacityPrompt is the total retention budget, window included.
	// Must exceed WindowSize.
	MaxCapacityPrompt int `mapstructure:"max_capacity_prompt"`

	// KernelSize is the pooling kernel width. Odd.
	KernelSize int `mapstructure:"kernel_size"`

	Pooling Pooling `mapstructure:"pooling"`

	// Beta spreads the pyramid: larger values widen the gap between the
	// shallowest and deepest layer budgets.
	Beta int `mapstructure:"beta"`

	// NumLayers is informational only.
	NumLayers int `mapstructure:"num_layers"`

	// LayerIdx is the 0-indexed depth of the layer this compressor serves.
	LayerIdx int `mapstructure:"layer_idx"`

	// NRep is the number of query heads per key/value head. 0 or 1 means
	// multi-head attention with no sharing.
	NRep int `mapstructure:"n_rep"`
}

func (c Config) validate() error {
	if c.NumHiddenLayers <= 1 {
		return fmt.Errorf("%w: num_hidden_layers must be greater than 1, got %d", ErrInvalidConfig, c.NumHiddenLayers)
	}

	if c.WindowSize < 1 {
		return fmt.Errorf("%w: window_size must be at least 1, got %d", ErrInvalidConfig, c.WindowSize)
	}

	if c.MaxCapacityPrompt <= c.WindowSize {
		return fmt.Errorf("%w: max_capacity_prompt (%d) must exceed window_size (%d)", ErrInvalidConfig, c.MaxCapacityPrompt, c.WindowSize)
	}

	if c.KernelSize < 1 || c.KernelSize%2 == 0 {
		return fmt.Errorf("%w: kernel_size must be a positive odd number, got %d", ErrInvalidConfig, c.KernelSize)
	}

	if c.Pooling != PoolingAvg && c.Pooling != PoolingMax {
		return fmt.Errorf("%w: pooling method %q not supported", ErrInvalidConfig, c.Pooling)
	}

	if c.Beta < 1 {
		return fmt.Errorf("%w: beta must be at least 1, got %d", ErrInvalidConfig, c.Beta)
	}

	if c.LayerIdx < 0 || c.LayerIdx >= c.NumHiddenLayers {
		return fmt.Errorf("%w: layer_idx %d out of range for %d layers", ErrInvalidConfig, c.LayerIdx, c.NumHiddenLayers)
	}

	if c.NRep < 0 {
		return fmt.Errorf("%w: n_rep must not be negative, got %d", ErrInvalidConfig, c.NRep)
	}

	return nil
}

// ConfigFromMap decodes the recognized option names into a Config. Unknown
// keys are rejected so call-site typos surface instead of silently using
// defaults.
func ConfigFromMap(opts map[string]any) (Config, error) {
	var config Config

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &config,
		ErrorUnused: true,
	})
	if err != nil {
		return Config{}, err
	}

	if err := dec.Decode(opts); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// Compressor applies pyramid cache eviction for a single layer. It holds no
// state beyond its configuration; calls are independent and may run in
// parallel across layers and batches.
type Compressor struct {
	config Config
}

func NewCompressor(config Config) (*Compressor, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	return &Compressor{config: config}, nil
}

func (c *Compressor) Config() Config {
	return c.config
}

// Reset replaces the per-call tunables, leaving layer identity
// (LayerIdx, NumHiddenLayers) and Beta untouched. The previous configuration
// is kept when validation fails.
func (c *Compressor) Reset(windowSize, maxCapacityPrompt, kernelSize int, pooling Pooling, nRep int) error {
	next := c.config
	next.WindowSize = windowSize
	next.MaxCapacityPrompt = maxCapacityPrompt
	next.KernelSize = kernelSize
	next.Pooling = pooling
	next.NRep = nRep

	if err := next.validate(); err != nil {
		return err
	}

	c.config = next
	return nil
}
