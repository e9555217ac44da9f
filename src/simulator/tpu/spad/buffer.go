package spad

import (
	"errors"
	"fmt"

	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/misc"
)

// Buffer is one banked scratchpad mirrored into two generations. Writers (the
// DMA engine and direct host stores) always land in the shadow generation;
// readers (the tile scheduler) always see the active generation. The roles
// flip only on a scheduler-issued swap pulse, so data loaded during one tile
// becomes visible exactly at the next tile boundary.
//
// Addresses are element granular and interleave across banks: bank is
// address mod num_banks, row is address div num_banks.
type Buffer struct {
	name       string
	num_banks  int64
	bank_depth int64
	capacity   int64

	generations [2][]int32
	active      int

	read_mask       uint64
	write_mask      uint64
	conflicted_mask uint64
	conflict_count  uint32

	swap_count        int64
	writes_since_swap int64
	max_shadow_row    int64

	stat_factory *misc.StatFactory
}

func (this *Buffer) Init(name string, num_banks int64, bank_depth int64, stat_factory *misc.StatFactory) {
	if num_banks <= 0 {
		err := errors.New(name + " buffer bank count <= 0")
		panic(err)
	}
	if num_banks > 64 {
		err := errors.New(name + " buffer bank count > 64")
		panic(err)
	}
	if bank_depth <= 0 {
		err := errors.New(name + " buffer bank depth <= 0")
		panic(err)
	}

	this.name = name
	this.num_banks = num_banks
	this.bank_depth = bank_depth
	this.capacity = num_banks * bank_depth
	this.generations[0] = make([]int32, this.capacity)
	this.generations[1] = make([]int32, this.capacity)
	this.active = 0
	this.max_shadow_row = -1
	this.stat_factory = stat_factory
}

func (this *Buffer) Name() string {
	return this.name
}

func (this *Buffer) Capacity() int64 {
	return this.capacity
}

func (this *Buffer) NumBanks() int64 {
	return this.num_banks
}

func (this *Buffer) BankDepth() int64 {
	return this.bank_depth
}

func (this *Buffer) BankIndex(address int64) int64 {
	return address % this.num_banks
}

func (this *Buffer) RowIndex(address int64) int64 {
	return address / this.num_banks
}

// BeginCycle clears the per-cycle access masks used by conflict telemetry.
// The platform calls it once per tick, before any component issues accesses.
func (this *Buffer) BeginCycle() {
	this.read_mask = 0
	this.write_mask = 0
	this.conflicted_mask = 0
}

// Write stores one element into the shadow generation.
func (this *Buffer) Write(address int64, value int32) {
	this.validateRange(address)

	bank := this.BankIndex(address)
	this.markAccess(bank, &this.write_mask, this.read_mask)

	shadow := this.active ^ 1
	this.generations[shadow][address] = value

	this.writes_since_swap++
	if row := this.RowIndex(address); row > this.max_shadow_row {
		this.max_shadow_row = row
	}
	if this.stat_factory != nil {
		this.stat_factory.Increment(this.name+"_shadow_writes", 1)
	}
}

// Read returns one element from the active generation.
func (this *Buffer) Read(address int64) int32 {
	this.validateRange(address)

	bank := this.BankIndex(address)
	this.markAccess(bank, &this.read_mask, this.write_mask)

	if this.stat_factory != nil {
		this.stat_factory.Increment(this.name+"_active_reads", 1)
	}
	return this.generations[this.active][address]
}

// ActiveValue inspects the active generation without touching the access
// masks. The functional compute model uses it to fetch operand snapshots; it
// never represents a bank port.
func (this *Buffer) ActiveValue(address int64) int32 {
	this.validateRange(address)
	return this.generations[this.active][address]
}

// ShadowValue inspects the shadow generation without touching the access
// masks. Used by the DMA readback path in tests.
func (this *Buffer) ShadowValue(address int64) int32 {
	this.validateRange(address)
	return this.generations[this.active^1][address]
}

// Swap flips the active/shadow designation. Single-cycle and self-contained;
// the caller guarantees it never lands mid-compute or mid-drain.
func (this *Buffer) Swap() {
	this.active ^= 1
	this.swap_count++

	if this.stat_factory != nil {
		this.stat_factory.Increment(this.name+"_swaps", 1)
		this.stat_factory.Increment(this.name+"_published_writes", this.writes_since_swap)
	}
	this.writes_since_swap = 0
	this.max_shadow_row = -1
}

func (this *Buffer) SwapCount() int64 {
	return this.swap_count
}

func (this *Buffer) WritesSinceSwap() int64 {
	return this.writes_since_swap
}

func (this *Buffer) MaxShadowRow() int64 {
	return this.max_shadow_row
}

// ConflictCount returns the saturating telemetry counter of cycles in which a
// read and a write hit the same bank. It never blocks or alters an access.
func (this *Buffer) ConflictCount() uint32 {
	return this.conflict_count
}

func (this *Buffer) markAccess(bank int64, own_mask *uint64, other_mask uint64) {
	bit := uint64(1) << uint(bank)
	*own_mask |= bit

	if other_mask&bit != 0 && this.conflicted_mask&bit == 0 {
		this.conflicted_mask |= bit
		this.conflict_count = misc.SaturateUint32(uint64(this.conflict_count) + 1)
		if this.stat_factory != nil {
			this.stat_factory.Increment(this.name+"_bank_conflicts", 1)
		}
	}
}

func (this *Buffer) validateRange(address int64) {
	if address < 0 {
		err := fmt.Errorf("%s buffer address %d < 0", this.name, address)
		panic(err)
	}
	if address >= this.capacity {
		err := fmt.Errorf("%s buffer address %d >= capacity %d", this.name, address, this.capacity)
		panic(err)
	}
}
