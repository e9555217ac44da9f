package mxu

import (
	"errors"
)

// Array is the functional model of the weight-stationary compute array. The
// tile scheduler owns all timing; this model only answers what the array
// would emit. Weights stay resident in stationary registers for the length
// of a tile, activations stream through, and accumulated rows are collected
// by the drain phase.
type Array struct {
	n           int64
	weights     [][]int32
	accumulator [][]int64
	loadedRows  int64
	zeroSkips   int64
	macs        int64
}

// NewArray constructs a functional array with the given edge length.
func NewArray(n int64) *Array {
	if n <= 0 {
		n = 1
	}

	weights := make([][]int32, n)
	accumulator := make([][]int64, n)
	for i := int64(0); i < n; i++ {
		weights[i] = make([]int32, n)
		accumulator[i] = make([]int64, n)
	}

	return &Array{
		n:           n,
		weights:     weights,
		accumulator: accumulator,
	}
}

func (a *Array) Dim() int64 {
	return a.n
}

// BeginTile clears the accumulators and the stationary load counter for a new
// tile pass.
func (a *Array) BeginTile() {
	a.loadedRows = 0
	for r := int64(0); r < a.n; r++ {
		for c := int64(0); c < a.n; c++ {
			a.accumulator[r][c] = 0
		}
	}
}

// LoadRow latches one row of stationary weights. The scheduler calls it once
// per LOAD_WEIGHTS cycle, in row order.
func (a *Array) LoadRow(values []int32) {
	if a.loadedRows >= a.n {
		err := errors.New("stationary registers already fully loaded")
		panic(err)
	}
	if int64(len(values)) != a.n {
		err := errors.New("weight row width does not match the array edge")
		panic(err)
	}

	copy(a.weights[a.loadedRows], values)
	a.loadedRows++
}

func (a *Array) LoadedRows() int64 {
	return a.loadedRows
}

// Accumulate folds the streamed activations into the accumulators. Row r of
// activations feeds array row r; depth bounds the reduction and never exceeds
// the loaded stationary rows. Multiply-accumulate steps with a zero weight
// operand are elided and counted as zero-skips.
func (a *Array) Accumulate(activations [][]int32, depth int64) {
	if a.loadedRows < a.n {
		err := errors.New("accumulate before stationary load completed")
		panic(err)
	}
	if int64(len(activations)) < a.n {
		err := errors.New("activation stream narrower than the array edge")
		panic(err)
	}
	if depth > a.n {
		depth = a.n
	}

	for r := int64(0); r < a.n; r++ {
		row := activations[r]
		if int64(len(row)) < depth {
			err := errors.New("activation row shorter than the reduction depth")
			panic(err)
		}
		for c := int64(0); c < a.n; c++ {
			var acc int64
			for k := int64(0); k < depth; k++ {
				w := a.weights[k][c]
				if w == 0 {
					a.zeroSkips++
					continue
				}
				acc += int64(row[k]) * int64(w)
				a.macs++
			}
			a.accumulator[r][c] += acc
		}
	}
}

// ResultRow narrows one accumulator row for the drain phase. With wide
// accumulation the value is requantized back to the signed 8-bit range after
// the configured shift; otherwise it truncates to 32 bits the way the
// datapath register would.
func (a *Array) ResultRow(row int64, wide bool, shift int64) []int32 {
	if row < 0 || row >= a.n {
		err := errors.New("drain row outside the array")
		panic(err)
	}

	return NarrowRow(a.accumulator[row], wide, shift)
}

// ZeroSkips returns the cumulative count of elided multiply-accumulates.
func (a *Array) ZeroSkips() int64 {
	return a.zeroSkips
}

// Macs returns the cumulative count of performed multiply-accumulates.
func (a *Array) Macs() int64 {
	return a.macs
}
