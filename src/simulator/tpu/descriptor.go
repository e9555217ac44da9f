package tpu

import "fmt"

type Opcode uint8

const (
	OpcodeNop    Opcode = 0x00
	OpcodeMatmul Opcode = 0x01
)

func (this Opcode) Legal() bool {
	return this == OpcodeNop || this == OpcodeMatmul
}

func (this Opcode) String() string {
	switch this {
	case OpcodeNop:
		return "NOP"
	case OpcodeMatmul:
		return "MATMUL"
	default:
		return fmt.Sprintf("ILLEGAL(0x%02x)", uint8(this))
	}
}

// Flag bit positions inside the descriptor's 6-bit flag field.
const (
	flagChain          uint32 = 1 << 0
	flagIrqEn          uint32 = 1 << 1
	flagDmaEn          uint32 = 1 << 2
	flagPackWeights    uint32 = 1 << 3
	flagWideAccumulate uint32 = 1 << 4
	flagDataflowStream uint32 = 1 << 5
)

// Descriptor is one 128-bit work item. Word 0 carries the opcode, the flag
// field and a host-assigned tile id; word 1 the output base, word 2 the
// activation base, and word 3 packs the weight base with the K length and the
// M/N tile-count selectors. Selectors encode multiples of the array dimension
// minus one, so a zero selector means exactly one tile.
type Descriptor struct {
	Opcode         Opcode
	Chain          bool
	IrqEn          bool
	DmaEn          bool
	PackWeights    bool
	WideAccumulate bool
	DataflowStream bool
	TileId         uint32
	OutputBase     uint32
	ActivationBase uint32
	WeightBase     uint16
	KTileLen       uint8
	MSel           uint8
	NSel           uint8
}

func (this *Descriptor) Init() {
	this.Opcode = OpcodeNop
}

func (this *Descriptor) flagBits() uint32 {
	flags := uint32(0)
	if this.Chain {
		flags |= flagChain
	}
	if this.IrqEn {
		flags |= flagIrqEn
	}
	if this.DmaEn {
		flags |= flagDmaEn
	}
	if this.PackWeights {
		flags |= flagPackWeights
	}
	if this.WideAccumulate {
		flags |= flagWideAccumulate
	}
	if this.DataflowStream {
		flags |= flagDataflowStream
	}
	return flags
}

func (this *Descriptor) setFlagBits(flags uint32) {
	this.Chain = flags&flagChain != 0
	this.IrqEn = flags&flagIrqEn != 0
	this.DmaEn = flags&flagDmaEn != 0
	this.PackWeights = flags&flagPackWeights != 0
	this.WideAccumulate = flags&flagWideAccumulate != 0
	this.DataflowStream = flags&flagDataflowStream != 0
}

// Pack serializes the descriptor into its four-word wire form.
func (this *Descriptor) Pack() [4]uint32 {
	var words [4]uint32
	words[0] = uint32(this.Opcode) |
		this.flagBits()<<8 |
		(this.TileId&0x3FFFF)<<14
	words[1] = this.OutputBase
	words[2] = this.ActivationBase
	words[3] = uint32(this.WeightBase) |
		uint32(this.KTileLen)<<16 |
		uint32(this.MSel&0xF)<<24 |
		uint32(this.NSel&0xF)<<28
	return words
}

// UnpackDescriptor decodes the four staging words written by the host.
func UnpackDescriptor(words [4]uint32) *Descriptor {
	descriptor := new(Descriptor)
	descriptor.Opcode = Opcode(words[0] & 0xFF)
	descriptor.setFlagBits(words[0] >> 8 & 0x3F)
	descriptor.TileId = words[0] >> 14 & 0x3FFFF
	descriptor.OutputBase = words[1]
	descriptor.ActivationBase = words[2]
	descriptor.WeightBase = uint16(words[3] & 0xFFFF)
	descriptor.KTileLen = uint8(words[3] >> 16 & 0xFF)
	descriptor.MSel = uint8(words[3] >> 24 & 0xF)
	descriptor.NSel = uint8(words[3] >> 28 & 0xF)
	return descriptor
}

func (this *Descriptor) String() string {
	return fmt.Sprintf("%s tile=%d flags=0x%02x out=0x%08x act=0x%08x wgt=0x%04x k=%d m_sel=%d n_sel=%d",
		this.Opcode, this.TileId, this.flagBits(), this.OutputBase, this.ActivationBase,
		this.WeightBase, this.KTileLen, this.MSel, this.NSel)
}
