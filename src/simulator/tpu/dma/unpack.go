package dma

import (
	"errors"

	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/misc"
)

// Width selects how a flat byte stream unpacks into buffer elements.
type Width int

const (
	// W8 moves one sign-extended byte per beat, the native element width.
	W8 Width = iota
	// W16 moves one sign-extended half-word per beat.
	W16
	// W32 moves one full word per beat.
	W32
)

func (this Width) Bytes() int64 {
	switch this {
	case W8:
		return 1
	case W16:
		return 2
	case W32:
		return 4
	default:
		err := errors.New("unknown transfer width")
		panic(err)
	}
}

func (this Width) String() string {
	switch this {
	case W8:
		return "W8"
	case W16:
		return "W16"
	case W32:
		return "W32"
	default:
		return "UNKNOWN"
	}
}

// ParseWidth decodes the two-bit width field of the DMA control register.
func ParseWidth(code int64) (Width, bool) {
	switch code {
	case 0:
		return W8, true
	case 1:
		return W16, true
	case 2:
		return W32, true
	default:
		return W8, false
	}
}

// ElementsPerBeat is 4 in packed mode, where one bus word carries four byte
// lanes, and 1 otherwise.
func ElementsPerBeat(width Width, pack bool) int64 {
	if pack && width == W32 {
		return 4
	}
	return 1
}

// DecodeBeat expands one raw bus beat into buffer elements. The count return
// says how many lanes of the result are populated.
func DecodeBeat(raw uint32, width Width, pack bool) ([4]int32, int64) {
	var elements [4]int32

	if pack && width == W32 {
		lanes := misc.SplitInt8Lanes(raw)
		copy(elements[:], lanes[:])
		return elements, 4
	}

	switch width {
	case W8:
		elements[0] = misc.SignExtend8(raw)
	case W16:
		elements[0] = misc.SignExtend16(raw)
	case W32:
		elements[0] = int32(raw)
	}
	return elements, 1
}

// EncodeBeat packs buffer elements into one raw bus beat, truncating each
// element to the transfer width.
func EncodeBeat(elements [4]int32, width Width, pack bool) uint32 {
	if pack && width == W32 {
		return misc.JoinInt8Lanes(elements)
	}

	switch width {
	case W8:
		return uint32(elements[0]) & 0xFF
	case W16:
		return uint32(elements[0]) & 0xFFFF
	default:
		return uint32(elements[0])
	}
}
