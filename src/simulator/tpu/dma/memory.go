package dma

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/misc"
)

type memoryState int

const (
	memoryIdle memoryState = iota
	memoryReadPending
	memoryReadStream
	memoryWritePending
	memoryWriteStream
)

// ModelMemory is the flat byte-addressed external memory behind the burst
// engine. The address phase of a burst is accepted after the configured
// latency; data then streams at one beat per cycle. The direct byte accessors
// bypass the bus model and are used by the host to stage workload images.
type ModelMemory struct {
	size          int64
	data          []uint8
	read_latency  int64
	write_latency int64

	state             memoryState
	current_address   int64
	beats_remaining   int64
	beat_bytes        int64
	latency_countdown int64

	fault_armed bool
	fault_after int64
	beats_done  int64

	stat_factory *misc.StatFactory
}

func (this *ModelMemory) Init(size int64, read_latency int64, write_latency int64, stat_factory *misc.StatFactory) {
	if size <= 0 {
		err := errors.New("model memory size <= 0")
		panic(err)
	}
	if read_latency < 1 {
		err := errors.New("model memory read latency < 1")
		panic(err)
	}
	if write_latency < 1 {
		err := errors.New("model memory write latency < 1")
		panic(err)
	}

	this.size = size
	this.data = make([]uint8, size)
	this.read_latency = read_latency
	this.write_latency = write_latency
	this.state = memoryIdle
	this.stat_factory = stat_factory
}

func (this *ModelMemory) Size() int64 {
	return this.size
}

// InjectFaultAfterBeats arms a one-shot bus fault that fires once the next
// accepted burst has moved the given number of beats.
func (this *ModelMemory) InjectFaultAfterBeats(beats int64) {
	this.fault_armed = true
	this.fault_after = beats
}

func (this *ModelMemory) RequestRead(address int64, beats int64, beat_bytes int64) bool {
	return this.requestTransfer(address, beats, beat_bytes, memoryReadPending, memoryReadStream, this.read_latency)
}

func (this *ModelMemory) RequestWrite(address int64, beats int64, beat_bytes int64) bool {
	return this.requestTransfer(address, beats, beat_bytes, memoryWritePending, memoryWriteStream, this.write_latency)
}

func (this *ModelMemory) requestTransfer(address int64, beats int64, beat_bytes int64,
	pending memoryState, stream memoryState, latency int64) bool {
	if this.state == memoryIdle {
		this.state = pending
		this.current_address = address
		this.beats_remaining = beats
		this.beat_bytes = beat_bytes
		this.latency_countdown = latency
	}

	if this.state != pending {
		err := errors.New("model memory address phase issued while busy")
		panic(err)
	}

	this.latency_countdown--
	if this.latency_countdown > 0 {
		return false
	}

	this.state = stream
	this.beats_done = 0
	return true
}

func (this *ModelMemory) ReadBeat() (uint32, bool) {
	if this.state != memoryReadStream {
		err := errors.New("model memory read beat without accepted burst")
		panic(err)
	}

	if this.beatFaults() {
		return 0, true
	}

	raw := uint32(0)
	for i := int64(0); i < this.beat_bytes; i++ {
		raw |= uint32(this.data[this.current_address+i]) << (8 * uint(i))
	}
	this.advanceBeat()
	if this.stat_factory != nil {
		this.stat_factory.Increment("memory_read_beats", 1)
	}
	return raw, false
}

func (this *ModelMemory) WriteBeat(raw uint32) bool {
	if this.state != memoryWriteStream {
		err := errors.New("model memory write beat without accepted burst")
		panic(err)
	}

	if this.beatFaults() {
		return true
	}

	for i := int64(0); i < this.beat_bytes; i++ {
		this.data[this.current_address+i] = uint8(raw >> (8 * uint(i)))
	}
	this.advanceBeat()
	if this.stat_factory != nil {
		this.stat_factory.Increment("memory_write_beats", 1)
	}
	return false
}

func (this *ModelMemory) beatFaults() bool {
	if this.fault_armed && this.beats_done >= this.fault_after {
		this.fault_armed = false
		this.state = memoryIdle
		if this.stat_factory != nil {
			this.stat_factory.Increment("memory_faults", 1)
		}
		return true
	}

	if this.current_address < 0 || this.current_address+this.beat_bytes > this.size {
		this.state = memoryIdle
		if this.stat_factory != nil {
			this.stat_factory.Increment("memory_faults", 1)
		}
		return true
	}
	return false
}

func (this *ModelMemory) advanceBeat() {
	this.current_address += this.beat_bytes
	this.beats_remaining--
	this.beats_done++
	if this.beats_remaining <= 0 {
		this.state = memoryIdle
	}
}

// ReadBytes copies count bytes starting at address. Host staging path only.
func (this *ModelMemory) ReadBytes(address int64, count int64) []uint8 {
	this.validateRange(address, count)

	copied := make([]uint8, count)
	copy(copied, this.data[address:address+count])
	return copied
}

// WriteBytes stores the given bytes starting at address. Host staging path
// only.
func (this *ModelMemory) WriteBytes(address int64, data []uint8) {
	this.validateRange(address, int64(len(data)))
	copy(this.data[address:], data)
}

func (this *ModelMemory) ReadWord(address int64) uint32 {
	this.validateRange(address, 4)
	return binary.LittleEndian.Uint32(this.data[address:])
}

func (this *ModelMemory) WriteWord(address int64, value uint32) {
	this.validateRange(address, 4)
	binary.LittleEndian.PutUint32(this.data[address:], value)
}

func (this *ModelMemory) validateRange(address int64, count int64) {
	if address < 0 {
		err := fmt.Errorf("model memory address %d < 0", address)
		panic(err)
	}
	if count < 0 {
		err := fmt.Errorf("model memory access count %d < 0", count)
		panic(err)
	}
	if address+count > this.size {
		err := fmt.Errorf("model memory access [%d, %d) exceeds size %d", address, address+count, this.size)
		panic(err)
	}
}
