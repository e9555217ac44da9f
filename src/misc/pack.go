package misc

// SignExtend8 widens the low 8 bits of a bus word into a signed 32-bit value.
func SignExtend8(value uint32) int32 {
	bits := value & 0xFF
	if bits&0x80 != 0 {
		bits |= 0xFFFFFF00
	}
	return int32(bits)
}

// SignExtend16 widens the low 16 bits of a bus word into a signed 32-bit value.
func SignExtend16(value uint32) int32 {
	bits := value & 0xFFFF
	if bits&0x8000 != 0 {
		bits |= 0xFFFF0000
	}
	return int32(bits)
}

// SplitInt8Lanes unpacks one 32-bit bus word into four sign-extended byte
// lanes, lane 0 carrying the least significant byte.
func SplitInt8Lanes(word uint32) [4]int32 {
	var lanes [4]int32
	for lane := 0; lane < 4; lane++ {
		lanes[lane] = SignExtend8(word >> (8 * uint(lane)))
	}
	return lanes
}

// JoinInt8Lanes packs four values into one 32-bit bus word, truncating each
// lane to its low 8 bits.
func JoinInt8Lanes(lanes [4]int32) uint32 {
	var word uint32
	for lane := 0; lane < 4; lane++ {
		word |= (uint32(lanes[lane]) & 0xFF) << (8 * uint(lane))
	}
	return word
}

// SaturateInt8 clamps a wide accumulator value to the signed 8-bit range.
func SaturateInt8(value int64) int32 {
	if value > 127 {
		return 127
	}
	if value < -128 {
		return -128
	}
	return int32(value)
}

// SaturateInt32 clamps a wide accumulator value to the signed 32-bit range.
func SaturateInt32(value int64) int32 {
	if value > 0x7FFFFFFF {
		return 0x7FFFFFFF
	}
	if value < -0x80000000 {
		return -(0x7FFFFFFF) - 1
	}
	return int32(value)
}

// SaturateUint32 clamps a counter delta so a telemetry register sticks at its
// maximum instead of wrapping.
func SaturateUint32(value uint64) uint32 {
	if value > 0xFFFFFFFF {
		return 0xFFFFFFFF
	}
	return uint32(value)
}
