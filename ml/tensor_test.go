package ml

import (
	"testing"
)

func TestNewShapeMismatch(t *testing.T) {
	if _, err := New(1, 1, 2, 2, []float32{1, 2, 3}); err == nil {
		t.Fatal("expected error for short backing slice")
	}

	if _, err := New(0, 1, 2, 2, nil); err == nil {
		t.Fatal("expected error for zero batch")
	}
}

func TestNarrow(t *testing.T) {
	in, err := New(1, 2, 3, 2, []float32{
		11, 12, 21, 22, 31, 32, // head 0, positions 0..2
		41, 42, 51, 52, 61, 62, // head 1, positions 0..2
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := in.Narrow(1, 2)
	if err != nil {
		t.Fatal(err)
	}

	expected, _ := New(1, 2, 2, 2, []float32{
		21, 22, 31, 32,
		51, 52, 61, 62,
	})

	if !got.Equal(expected) {
		t.Errorf("expected %v, got %v", expected.Floats(), got.Floats())
	}

	if _, err := in.Narrow(2, 2); err == nil {
		t.Error("expected out of range error")
	}
}

func TestGather(t *testing.T) {
	in, err := New(1, 2, 4, 1, []float32{
		10, 11, 12, 13,
		20, 21, 22, 23,
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := in.Gather([][][]int{{{0, 3}, {1, 2}}})
	if err != nil {
		t.Fatal(err)
	}

	expected, _ := New(1, 2, 2, 1, []float32{10, 13, 21, 22})
	if !got.Equal(expected) {
		t.Errorf("expected %v, got %v", expected.Floats(), got.Floats())
	}

	if _, err := in.Gather([][][]int{{{0, 4}, {1, 2}}}); err == nil {
		t.Error("expected out of range error")
	}

	if _, err := in.Gather([][][]int{{{0}, {1, 2}}}); err == nil {
		t.Error("expected unequal length error")
	}
}

func TestConcat(t *testing.T) {
	a, _ := New(1, 1, 2, 2, []float32{1, 2, 3, 4})
	b, _ := New(1, 1, 1, 2, []float32{5, 6})

	got, err := Concat(a, b)
	if err != nil {
		t.Fatal(err)
	}

	expected, _ := New(1, 1, 3, 2, []float32{1, 2, 3, 4, 5, 6})
	if !got.Equal(expected) {
		t.Errorf("expected %v, got %v", expected.Floats(), got.Floats())
	}

	c, _ := New(1, 2, 1, 2, []float32{5, 6, 7, 8})
	if _, err := Concat(a, c); err == nil {
		t.Error("expected shape mismatch error")
	}
}

func TestRepeat(t *testing.T) {
	in, _ := New(1, 2, 2, 1, []float32{
		1, 2, // kv head 0
		3, 4, // kv head 1
	})

	got := in.Repeat(2)

	expected, _ := New(1, 4, 2, 1, []float32{
		1, 2,
		1, 2,
		3, 4,
		3, 4,
	})

	if !got.Equal(expected) {
		t.Errorf("expected %v, got %v", expected.Floats(), got.Floats())
	}

	if in.Repeat(1) != in {
		t.Error("expected nRep=1 to return the input")
	}
}
