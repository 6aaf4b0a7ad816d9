package kvcache

import (
	"math"
	"testing"

	"github.com/jmorganca/pyramidkv/ml"
)

func TestWindowAttentionUniform(t *testing.T) {
	// All-zero queries and keys: every visible position gets equal mass.
	// With q_len 4 and window 2, window row 0 (position 2) sees history plus
	// itself (3 positions), row 1 sees everything (4 positions). Each
	// historical position therefore collects 1/3 + 1/4 = 7/12.
	query := ml.Zeros(1, 1, 4, 4)
	key := ml.Zeros(1, 1, 4, 4)

	mass := windowAttention(query, key, 2)

	if len(mass) != 1 || len(mass[0]) != 1 || len(mass[0][0]) != 2 {
		t.Fatalf("unexpected mass shape: %d batches", len(mass))
	}

	for pos, got := range mass[0][0] {
		if math.Abs(float64(got)-7.0/12) > 1e-6 {
			t.Errorf("position %d: expected %f, got %f", pos, 7.0/12, got)
		}
	}
}

func TestWindowAttentionCausalMask(t *testing.T) {
	// The first window row must not see the later window position, whose key
	// is far larger than everything else. If the mask leaked, nearly all of
	// row 0's mass would shift there and history would get almost nothing.
	query, err := ml.New(1, 1, 3, 1, []float32{0, 1, 1})
	if err != nil {
		t.Fatal(err)
	}

	key, err := ml.New(1, 1, 3, 1, []float32{0, 0, 20})
	if err != nil {
		t.Fatal(err)
	}

	mass := windowAttention(query, key, 2)

	// Row 0 splits evenly between history and itself (1/2 each); row 1 puts
	// nearly everything on the huge key. History mass is 1/2 + epsilon.
	if got := float64(mass[0][0][0]); math.Abs(got-0.5) > 1e-3 {
		t.Errorf("history mass = %f, expected 0.5", got)
	}
}

func TestWindowAttentionRowsSumToWindow(t *testing.T) {
	// Softmax rows each sum to 1, so history plus window mass per row is 1
	// and the history total never exceeds the window size.
	query, err := ml.New(1, 2, 6, 2, ramp(1*2*6*2, 0.13))
	if err != nil {
		t.Fatal(err)
	}

	key, err := ml.New(1, 2, 6, 2, ramp(1*2*6*2, -0.07))
	if err != nil {
		t.Fatal(err)
	}

	mass := windowAttention(query, key, 3)

	for h := range 2 {
		var total float64
		for _, v := range mass[0][h] {
			total += float64(v)
		}
		if total < 0 || total > 3 {
			t.Errorf("head %d: history mass %f outside [0, window]", h, total)
		}
	}
}

// ramp fills a slice with a deterministic, non-constant pattern.
func ramp(n int, step float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i%7)*step - float32(i%3)*0.5
	}
	return out
}
