// Package ml provides the dense tensor type used by the cache compression
// engine. Tensors are rank-4, float32, and laid out row-major as
// (batch, heads, sequence, headDim). Only the handful of operations the
// engine needs are implemented: slicing and gathering along the sequence
// axis, concatenation, and key/value head repetition for grouped-query
// attention.
package ml

import (
	"fmt"
	"slices"
)

type Tensor struct {
	data []float32

	batch   int
	heads   int
	seqLen  int
	headDim int
}

// New wraps a flat row-major slice as a (batch, heads, seq, headDim) tensor.
// The slice is not copied; the caller must not modify it afterwards.
func New(batch, heads, seqLen, headDim int, data []float32) (*Tensor, error) {
	if batch < 1 || heads < 1 || seqLen < 0 || headDim < 1 {
		return nil, fmt.Errorf("invalid tensor shape (%d, %d, %d, %d)", batch, heads, seqLen, headDim)
	}

	if len(data) != batch*heads*seqLen*headDim {
		return nil, fmt.Errorf("tensor shape (%d, %d, %d, %d) requires %d elements, got %d",
			batch, heads, seqLen, headDim, batch*heads*seqLen*headDim, len(data))
	}

	return &Tensor{data: data, batch: batch, heads: heads, seqLen: seqLen, headDim: headDim}, nil
}

// Zeros returns a zero-filled tensor of the given shape.
func Zeros(batch, heads, seqLen, headDim int) *Tensor {
	return &Tensor{
		data:    make([]float32, batch*heads*seqLen*headDim),
		batch:   batch,
		heads:   heads,
		seqLen:  seqLen,
		headDim: headDim,
	}
}

func (t *Tensor) Batch() int   { return t.batch }
func (t *Tensor) Heads() int   { return t.heads }
func (t *Tensor) Seq() int     { return t.seqLen }
func (t *Tensor) HeadDim() int { return t.headDim }

// Shape returns (batch, heads, seq, headDim).
func (t *Tensor) Shape() []int {
	return []int{t.batch, t.heads, t.seqLen, t.headDim}
}

// Floats returns the backing slice. Shared, not a copy.
func (t *Tensor) Floats() []float32 {
	return t.data
}

// Row returns the headDim vector at (batch, head, pos) as a subslice of the
// backing store.
func (t *Tensor) Row(batch, head, pos int) []float32 {
	off := ((batch*t.heads+head)*t.seqLen + pos) * t.headDim
	return t.data[off : off+t.headDim]
}

func (t *Tensor) At(batch, head, pos, dim int) float32 {
	return t.data[((batch*t.heads+head)*t.seqLen+pos)*t.headDim+dim]
}

// Narrow returns a copy of length positions along the sequence axis starting
// at start, for every batch and head.
func (t *Tensor) Narrow(start, length int) (*Tensor, error) {
	if start < 0 || length < 0 || start+length > t.seqLen {
		return nil, fmt.Errorf("narrow [%d, %d) out of range for sequence length %d", start, start+length, t.seqLen)
	}

	out := Zeros(t.batch, t.heads, length, t.headDim)
	for b := range t.batch {
		for h := range t.heads {
			for s := range length {
				copy(out.Row(b, h, s), t.Row(b, h, start+s))
			}
		}
	}

	return out, nil
}

// Gather copies the rows at the given sequence indices, per batch and head.
// indices[b][h] lists the positions to take, in the order they should appear.
func (t *Tensor) Gather(indices [][][]int) (*Tensor, error) {
	if len(indices) != t.batch {
		return nil, fmt.Errorf("gather expects %d batch index lists, got %d", t.batch, len(indices))
	}

	n := -1
	for b := range indices {
		if len(indices[b]) != t.heads {
			return nil, fmt.Errorf("gather expects %d head index lists, got %d", t.heads, len(indices[b]))
		}
		for h := range indices[b] {
			if n < 0 {
				n = len(indices[b][h])
			} else if len(indices[b][h]) != n {
				return nil, fmt.Errorf("gather index lists must have equal length")
			}
		}
	}

	out := Zeros(t.batch, t.heads, max(n, 0), t.headDim)
	for b := range t.batch {
		for h := range t.heads {
			for s, idx := range indices[b][h] {
				if idx < 0 || idx >= t.seqLen {
					return nil, fmt.Errorf("gather index %d out of range for sequence length %d", idx, t.seqLen)
				}
				copy(out.Row(b, h, s), t.Row(b, h, idx))
			}
		}
	}

	return out, nil
}

// Concat joins two tensors along the sequence axis.
func Concat(a, b *Tensor) (*Tensor, error) {
	if a.batch != b.batch || a.heads != b.heads || a.headDim != b.headDim {
		return nil, fmt.Errorf("concat shape mismatch: %v vs %v", a.Shape(), b.Shape())
	}

	out := Zeros(a.batch, a.heads, a.seqLen+b.seqLen, a.headDim)
	for bi := range a.batch {
		for h := range a.heads {
			for s := range a.seqLen {
				copy(out.Row(bi, h, s), a.Row(bi, h, s))
			}
			for s := range b.seqLen {
				copy(out.Row(bi, h, a.seqLen+s), b.Row(bi, h, s))
			}
		}
	}

	return out, nil
}

// Repeat replicates each key/value head nRep times along the head axis so a
// grouped-query cache lines up with the query heads. Head ordering matches
// the usual repeat_kv layout: output head kv*nRep+r maps to input head kv.
func (t *Tensor) Repeat(nRep int) *Tensor {
	if nRep <= 1 {
		return t
	}

	out := Zeros(t.batch, t.heads*nRep, t.seqLen, t.headDim)
	for b := range t.batch {
		for h := range t.heads {
			for r := range nRep {
				for s := range t.seqLen {
					copy(out.Row(b, h*nRep+r, s), t.Row(b, h, s))
				}
			}
		}
	}

	return out
}

// Equal reports whether two tensors have the same shape and contents.
func (t *Tensor) Equal(o *Tensor) bool {
	if o == nil {
		return t == nil
	}

	return t.batch == o.batch && t.heads == o.heads &&
		t.seqLen == o.seqLen && t.headDim == o.headDim &&
		slices.Equal(t.data, o.data)
}
