package mxu

import "testing"

func TestTileAccumulatesKnownProduct(t *testing.T) {
	t.Parallel()

	array := NewArray(2)
	array.BeginTile()
	array.LoadRow([]int32{1, 2})  // stationary row k=0
	array.LoadRow([]int32{3, -1}) // stationary row k=1

	activations := [][]int32{
		{5, 7},
		{-2, 4},
	}
	array.Accumulate(activations, 2)

	// out[r][c] = sum_k act[r][k] * w[k][c]
	expected := [][]int32{
		{5*1 + 7*3, 5*2 + 7*(-1)},
		{-2*1 + 4*3, -2*2 + 4*(-1)},
	}
	for r := int64(0); r < 2; r++ {
		row := array.ResultRow(r, false, 0)
		for c := int64(0); c < 2; c++ {
			if row[c] != expected[r][c] {
				t.Fatalf("expected out[%d][%d] = %d, got %d", r, c, expected[r][c], row[c])
			}
		}
	}
}

func TestZeroWeightsAreSkipped(t *testing.T) {
	t.Parallel()

	array := NewArray(2)
	array.BeginTile()
	array.LoadRow([]int32{0, 2})
	array.LoadRow([]int32{3, 0})

	array.Accumulate([][]int32{{1, 1}, {1, 1}}, 2)

	// Two zero weights, visited once per activation row.
	if got := array.ZeroSkips(); got != 4 {
		t.Fatalf("expected 4 zero-skips, got %d", got)
	}
	if got := array.Macs(); got != 4 {
		t.Fatalf("expected 4 performed MACs, got %d", got)
	}

	row := array.ResultRow(0, false, 0)
	if row[0] != 3 || row[1] != 2 {
		t.Fatalf("expected skipped MACs to contribute zero, got %v", row)
	}
}

func TestDepthBoundsReduction(t *testing.T) {
	t.Parallel()

	array := NewArray(2)
	array.BeginTile()
	array.LoadRow([]int32{1, 1})
	array.LoadRow([]int32{1, 1})

	array.Accumulate([][]int32{{10, 99}, {20, 99}}, 1)

	row := array.ResultRow(0, false, 0)
	if row[0] != 10 || row[1] != 10 {
		t.Fatalf("expected depth-1 reduction to ignore k=1, got %v", row)
	}
	row = array.ResultRow(1, false, 0)
	if row[0] != 20 {
		t.Fatalf("expected row 1 to reduce its own stream, got %v", row)
	}
}

func TestAccumulationPersistsAcrossPasses(t *testing.T) {
	t.Parallel()

	array := NewArray(2)
	array.BeginTile()
	array.LoadRow([]int32{1, 0})
	array.LoadRow([]int32{0, 1})
	array.Accumulate([][]int32{{1, 2}, {3, 4}}, 2)
	array.Accumulate([][]int32{{1, 2}, {3, 4}}, 2)

	row := array.ResultRow(0, false, 0)
	if row[0] != 2 || row[1] != 4 {
		t.Fatalf("expected accumulators to add across passes, got %v", row)
	}

	array.BeginTile()
	if got := array.LoadedRows(); got != 0 {
		t.Fatalf("expected BeginTile to reset the load counter, got %d", got)
	}
}

func TestNarrowModes(t *testing.T) {
	t.Parallel()

	if got := Narrow(1000, true, 3); got != 125 {
		t.Fatalf("expected 1000>>3 = 125, got %d", got)
	}
	if got := Narrow(4000, true, 3); got != 127 {
		t.Fatalf("expected saturation at 127, got %d", got)
	}
	if got := Narrow(-4000, true, 3); got != -128 {
		t.Fatalf("expected saturation at -128, got %d", got)
	}
	if got := Narrow(-16, true, 2); got != -4 {
		t.Fatalf("expected arithmetic shift to keep sign, got %d", got)
	}

	// Narrow accumulation wraps like the 32-bit result register.
	wrapped := Narrow(int64(1)<<31, false, 0)
	if wrapped != -(1 << 31) {
		t.Fatalf("expected 32-bit wraparound, got %d", wrapped)
	}
}
