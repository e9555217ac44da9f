package mxu

import (
	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/misc"
)

// Narrow converts one accumulator lane to the output element width. Wide
// accumulation applies an arithmetic right shift and saturates into int8,
// matching the requantize stage of the drain path; narrow accumulation
// truncates to 32 bits and wraps, the behavior of the bare result register.
func Narrow(acc int64, wide bool, shift int64) int32 {
	if wide {
		if shift < 0 {
			shift = 0
		}
		if shift > 62 {
			shift = 62
		}
		return misc.SaturateInt8(acc >> uint(shift))
	}
	return int32(acc)
}

// NarrowRow narrows a full accumulator row for one drain-cycle write.
func NarrowRow(accs []int64, wide bool, shift int64) []int32 {
	row := make([]int32, len(accs))
	for i, acc := range accs {
		row[i] = Narrow(acc, wide, shift)
	}
	return row
}
