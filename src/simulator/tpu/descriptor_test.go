package tpu

import (
	"strings"
	"testing"
)

func TestDescriptorPackUnpackRoundTrip(t *testing.T) {
	t.Parallel()

	descriptor := new(Descriptor)
	descriptor.Init()
	descriptor.Opcode = OpcodeMatmul
	descriptor.Chain = true
	descriptor.IrqEn = true
	descriptor.DmaEn = true
	descriptor.PackWeights = true
	descriptor.WideAccumulate = true
	descriptor.DataflowStream = true
	descriptor.TileId = 0x3FFFF
	descriptor.OutputBase = 0xDEADBEEF
	descriptor.ActivationBase = 0x01020304
	descriptor.WeightBase = 0xBEEF
	descriptor.KTileLen = 0xFF
	descriptor.MSel = 0xF
	descriptor.NSel = 0xF

	decoded := UnpackDescriptor(descriptor.Pack())
	if *decoded != *descriptor {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", decoded, descriptor)
	}
}

func TestDescriptorWireLayout(t *testing.T) {
	t.Parallel()

	descriptor := new(Descriptor)
	descriptor.Init()
	descriptor.Opcode = OpcodeMatmul
	descriptor.Chain = true
	descriptor.IrqEn = true
	descriptor.TileId = 5
	descriptor.WeightBase = 0x1234
	descriptor.KTileLen = 0x56
	descriptor.MSel = 0x7
	descriptor.NSel = 0x8

	words := descriptor.Pack()
	if words[0] != 0x00014301 {
		t.Fatalf("word0: got 0x%08x, want 0x00014301", words[0])
	}
	if words[3] != 0x87561234 {
		t.Fatalf("word3: got 0x%08x, want 0x87561234", words[3])
	}
}

func TestDescriptorFieldMasking(t *testing.T) {
	t.Parallel()

	descriptor := new(Descriptor)
	descriptor.Init()
	descriptor.TileId = 0xFFFFF
	descriptor.MSel = 0xFF
	descriptor.NSel = 0xFF

	decoded := UnpackDescriptor(descriptor.Pack())
	if decoded.TileId != 0x3FFFF {
		t.Fatalf("tile id not masked to 18 bits: got 0x%x", decoded.TileId)
	}
	if decoded.MSel != 0xF || decoded.NSel != 0xF {
		t.Fatalf("selectors not masked to 4 bits: m=0x%x n=0x%x", decoded.MSel, decoded.NSel)
	}
}

func TestOpcodeLegality(t *testing.T) {
	t.Parallel()

	if !OpcodeNop.Legal() || !OpcodeMatmul.Legal() {
		t.Fatalf("defined opcodes must be legal")
	}
	bogus := Opcode(0x7F)
	if bogus.Legal() {
		t.Fatalf("undefined opcode reported legal")
	}
	if !strings.Contains(bogus.String(), "ILLEGAL") {
		t.Fatalf("undefined opcode string: %q", bogus.String())
	}
}
