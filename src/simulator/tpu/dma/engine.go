package dma

import (
	"errors"

	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/misc"
	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/simulator/tpu/spad"
)

type State int

const (
	StateIdle State = iota
	StateCalcBurst
	StateReadAddr
	StateReadData
	StateWriteAddr
	StateWriteData
	StateDone
	StateError
)

func (this State) String() string {
	switch this {
	case StateIdle:
		return "IDLE"
	case StateCalcBurst:
		return "CALC_BURST"
	case StateReadAddr:
		return "READ_ADDR"
	case StateReadData:
		return "READ_DATA"
	case StateWriteAddr:
		return "WRITE_ADDR"
	case StateWriteData:
		return "WRITE_DATA"
	case StateDone:
		return "DONE"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Target selects which on-chip memory a transfer touches.
type Target int

const (
	TargetWeight Target = iota
	TargetActivation
	TargetOutput
)

func (this Target) String() string {
	switch this {
	case TargetWeight:
		return "WEIGHT"
	case TargetActivation:
		return "ACTIVATION"
	case TargetOutput:
		return "OUTPUT"
	default:
		return "UNKNOWN"
	}
}

// ParseTarget decodes the two-bit buffer-select field of the DMA control
// register.
func ParseTarget(code int64) (Target, bool) {
	switch code {
	case 0:
		return TargetWeight, true
	case 1:
		return TargetActivation, true
	case 2:
		return TargetOutput, true
	default:
		return TargetWeight, false
	}
}

const ErrorCodeBusFault = uint32(1)

// Request describes one burst transfer. Lengths are element granular; the
// width mode decides how many bus bytes each element occupies.
type Request struct {
	Direction       Direction
	Target          Target
	Width           Width
	Pack            bool
	ExternalAddress int64
	InternalAddress int64
	Elements        int64
}

// Engine is the DMA burst state machine. Inbound transfers retire every
// accepted beat straight into the destination buffer's shadow generation,
// with no staging in between, so a fault can never lose an accepted beat.
// Outbound transfers read the active generation (or the output store) and
// stream it to external memory. A transport fault latches a sticky error that
// halts the engine until ClearError.
type Engine struct {
	state   State
	request Request

	elements_done       int64
	burst_elements      int64
	burst_beats         int64
	beats_done          int64
	elements_done_burst int64
	bytes_transferred   int64
	external_address    int64
	internal_address    int64

	done_flag  bool
	error_flag bool
	error_code uint32

	max_burst  int64
	transport  Transport
	weight     *spad.Buffer
	activation *spad.Buffer
	output     *spad.OutputStore

	stat_factory *misc.StatFactory
}

func (this *Engine) Init(transport Transport, weight *spad.Buffer, activation *spad.Buffer,
	output *spad.OutputStore, max_burst int64, stat_factory *misc.StatFactory) {
	if transport == nil {
		err := errors.New("dma engine requires a transport")
		panic(err)
	}
	if max_burst <= 0 {
		err := errors.New("dma engine max burst <= 0")
		panic(err)
	}

	this.state = StateIdle
	this.transport = transport
	this.weight = weight
	this.activation = activation
	this.output = output
	this.max_burst = max_burst
	this.stat_factory = stat_factory
}

// Start accepts a new transfer when the engine is idle and the request is
// well formed. It returns false, leaving all state untouched, when the engine
// is busy, a sticky error is pending, or the request cannot be executed.
func (this *Engine) Start(request Request) bool {
	if this.state != StateIdle && this.state != StateDone {
		this.countRejected()
		return false
	}
	if this.error_flag {
		this.countRejected()
		return false
	}
	if request.Elements <= 0 {
		this.countRejected()
		return false
	}
	if request.Pack && request.Width != W32 {
		this.countRejected()
		return false
	}
	if request.Pack && request.Elements%4 != 0 {
		this.countRejected()
		return false
	}
	if request.Direction == DirectionRead && request.Target == TargetOutput {
		this.countRejected()
		return false
	}
	if request.Direction == DirectionWrite && request.Target == TargetOutput && this.output == nil {
		this.countRejected()
		return false
	}

	this.request = request
	this.elements_done = 0
	this.bytes_transferred = 0
	this.external_address = request.ExternalAddress
	this.internal_address = request.InternalAddress
	this.done_flag = false
	this.state = StateCalcBurst

	if this.stat_factory != nil {
		this.stat_factory.Increment("dma_transfers_started", 1)
	}
	return true
}

// ClearError releases the sticky fault latch and returns the engine to idle.
// Committed counters keep their pre-fault values for diagnosis.
func (this *Engine) ClearError() {
	if this.state != StateError && !this.error_flag {
		return
	}
	this.error_flag = false
	this.error_code = 0
	this.state = StateIdle
}

func (this *Engine) Tick() {
	switch this.state {
	case StateIdle:
		// Nothing to do until the next start pulse.
	case StateCalcBurst:
		this.calcBurst()
	case StateReadAddr:
		if this.transport.RequestRead(this.external_address, this.burst_beats, this.request.Width.Bytes()) {
			this.state = StateReadData
		}
	case StateReadData:
		this.readBeat()
	case StateWriteAddr:
		if this.transport.RequestWrite(this.external_address, this.burst_beats, this.request.Width.Bytes()) {
			this.state = StateWriteData
		}
	case StateWriteData:
		this.writeBeat()
	case StateDone:
		this.state = StateIdle
	case StateError:
		// Halted until an explicit clear.
	}
}

func (this *Engine) calcBurst() {
	remaining := this.request.Elements - this.elements_done
	if remaining <= 0 {
		this.complete()
		return
	}

	this.burst_elements = remaining
	if this.burst_elements > this.max_burst {
		this.burst_elements = this.max_burst
	}
	per_beat := ElementsPerBeat(this.request.Width, this.request.Pack)
	this.burst_beats = (this.burst_elements + per_beat - 1) / per_beat
	this.beats_done = 0
	this.elements_done_burst = 0

	if this.stat_factory != nil {
		this.stat_factory.Increment("dma_bursts", 1)
	}

	if this.request.Direction == DirectionRead {
		this.state = StateReadAddr
	} else {
		this.state = StateWriteAddr
	}
}

func (this *Engine) readBeat() {
	raw, fault := this.transport.ReadBeat()
	if fault {
		this.latchFault()
		return
	}

	elements, lanes := DecodeBeat(raw, this.request.Width, this.request.Pack)
	count := this.burst_elements - this.elements_done_burst
	if count > lanes {
		count = lanes
	}
	for lane := int64(0); lane < count; lane++ {
		this.storeElement(this.internal_address, elements[lane])
		this.internal_address++
	}

	this.retireBeat(count)
}

func (this *Engine) writeBeat() {
	var elements [4]int32
	count := this.burst_elements - this.elements_done_burst
	lanes := ElementsPerBeat(this.request.Width, this.request.Pack)
	if count > lanes {
		count = lanes
	}
	for lane := int64(0); lane < count; lane++ {
		elements[lane] = this.loadElement(this.internal_address + lane)
	}

	raw := EncodeBeat(elements, this.request.Width, this.request.Pack)
	if fault := this.transport.WriteBeat(raw); fault {
		this.latchFault()
		return
	}

	this.internal_address += count
	this.retireBeat(count)
}

func (this *Engine) retireBeat(count int64) {
	this.bytes_transferred += this.request.Width.Bytes()
	this.external_address += this.request.Width.Bytes()
	this.elements_done += count
	this.elements_done_burst += count
	this.beats_done++

	if this.stat_factory != nil {
		this.stat_factory.Increment("dma_beats", 1)
		this.stat_factory.Increment("dma_bytes", this.request.Width.Bytes())
	}

	if this.beats_done >= this.burst_beats {
		this.state = StateCalcBurst
	}
}

func (this *Engine) storeElement(address int64, value int32) {
	switch this.request.Target {
	case TargetWeight:
		this.weight.Write(address, value)
	case TargetActivation:
		this.activation.Write(address, value)
	default:
		err := errors.New("dma read into output store")
		panic(err)
	}
}

func (this *Engine) loadElement(address int64) int32 {
	switch this.request.Target {
	case TargetWeight:
		return this.weight.Read(address)
	case TargetActivation:
		return this.activation.Read(address)
	default:
		return this.output.Read(address)
	}
}

func (this *Engine) complete() {
	this.state = StateDone
	this.done_flag = true
	if this.stat_factory != nil {
		this.stat_factory.Increment("dma_transfers_completed", 1)
	}
}

func (this *Engine) latchFault() {
	this.state = StateError
	this.error_flag = true
	this.error_code = ErrorCodeBusFault
	if this.stat_factory != nil {
		this.stat_factory.Increment("dma_faults", 1)
	}
}

func (this *Engine) countRejected() {
	if this.stat_factory != nil {
		this.stat_factory.Increment("dma_rejected_starts", 1)
	}
}

func (this *Engine) State() State {
	return this.state
}

func (this *Engine) Busy() bool {
	switch this.state {
	case StateCalcBurst, StateReadAddr, StateReadData, StateWriteAddr, StateWriteData:
		return true
	default:
		return false
	}
}

// Done reports the sticky completion flag of the most recent transfer. It
// clears on the next accepted start.
func (this *Engine) Done() bool {
	return this.done_flag
}

func (this *Engine) Faulted() bool {
	return this.error_flag
}

func (this *Engine) ErrorCode() uint32 {
	return this.error_code
}

// BytesTransferred counts bus bytes committed by the current or most recent
// transfer. After a fault it reflects only the beats that completed.
func (this *Engine) BytesTransferred() int64 {
	return this.bytes_transferred
}

func (this *Engine) ElementsTransferred() int64 {
	return this.elements_done
}
