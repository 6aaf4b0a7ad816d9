package kvcache

import (
	"math"
	"testing"
)

func TestPool1DAvg(t *testing.T) {
	got, err := pool1d([]float32{1, 2, 3}, 3, PoolingAvg)
	if err != nil {
		t.Fatal(err)
	}

	// Zero padding counts toward the kernel divisor.
	expected := []float32{1, 2, 5.0 / 3}
	for i := range expected {
		if math.Abs(float64(got[i]-expected[i])) > 1e-6 {
			t.Errorf("position %d: expected %f, got %f", i, expected[i], got[i])
		}
	}
}

func TestPool1DMax(t *testing.T) {
	got, err := pool1d([]float32{1, 5, 2, 0, 4}, 3, PoolingMax)
	if err != nil {
		t.Fatal(err)
	}

	expected := []float32{5, 5, 5, 4, 4}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("position %d: expected %f, got %f", i, expected[i], got[i])
		}
	}
}

func TestPool1DKernelOne(t *testing.T) {
	in := []float32{3, 1, 4}
	got, err := pool1d(in, 1, PoolingAvg)
	if err != nil {
		t.Fatal(err)
	}

	for i := range in {
		if got[i] != in[i] {
			t.Errorf("kernel 1 should be identity, position %d changed: %f -> %f", i, in[i], got[i])
		}
	}
}

func TestPool1DUnsupported(t *testing.T) {
	if _, err := pool1d([]float32{1}, 3, Pooling("median")); err == nil {
		t.Fatal("expected error for unsupported pooling")
	}
}

func TestGroupHeads(t *testing.T) {
	scores := [][]float32{
		{1, 3},
		{3, 5},
		{10, 0},
		{20, 2},
	}

	got := groupHeads(scores, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 kv heads, got %d", len(got))
	}

	expected := [][]float32{{2, 4}, {15, 1}}
	for h := range expected {
		for i := range expected[h] {
			if got[h][i] != expected[h][i] {
				t.Errorf("head %d position %d: expected %f, got %f", h, i, expected[h][i], got[h][i])
			}
		}
	}
}

func TestGroupHeadsNoRepeat(t *testing.T) {
	scores := [][]float32{{1, 2}}
	if got := groupHeads(scores, 1); &got[0][0] != &scores[0][0] {
		t.Error("nRep=1 should return the input untouched")
	}
}
