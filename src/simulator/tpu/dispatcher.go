package tpu

import (
	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/misc"
)

type DispatcherState int

const (
	DispatcherIdle DispatcherState = iota
	DispatcherExecuting
	DispatcherChainWait
	DispatcherDone
)

func (this DispatcherState) String() string {
	switch this {
	case DispatcherIdle:
		return "IDLE"
	case DispatcherExecuting:
		return "EXECUTING"
	case DispatcherChainWait:
		return "CHAIN_WAIT"
	case DispatcherDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// Dispatcher drives the scheduler from the command queue. The head descriptor
// stays queue resident while it executes; completion retires it, raises the
// one-shot interrupt when requested, and either chains straight into the next
// head or parks. A latched queue error suspends all automatic dispatch until
// the host clears it.
type Dispatcher struct {
	state DispatcherState

	array_dim int64

	queue     *CommandQueue
	scheduler *Scheduler

	irq_enabled bool
	irq_pending bool

	stat_factory *misc.StatFactory
}

func (this *Dispatcher) Init(array_dim int64, queue *CommandQueue, scheduler *Scheduler,
	stat_factory *misc.StatFactory) {
	this.state = DispatcherIdle
	this.array_dim = array_dim
	this.queue = queue
	this.scheduler = scheduler
	this.irq_enabled = false
	this.irq_pending = false
	this.stat_factory = stat_factory
}

func (this *Dispatcher) State() DispatcherState {
	return this.state
}

func (this *Dispatcher) Busy() bool {
	return this.state == DispatcherExecuting || this.state == DispatcherChainWait
}

// SetIrqEnabled is the global interrupt gate from the control register. A
// descriptor's irq_en flag only fires when this gate is open.
func (this *Dispatcher) SetIrqEnabled(enabled bool) {
	this.irq_enabled = enabled
}

func (this *Dispatcher) IrqPending() bool {
	return this.irq_pending
}

// AckIrq drops the pending interrupt. Used by the host's irq-ack control
// pulse.
func (this *Dispatcher) AckIrq() {
	this.irq_pending = false
}

func (this *Dispatcher) Tick() {
	switch this.state {
	case DispatcherIdle:
		if this.queue.ErrorFlag() {
			return
		}
		if this.queue.Head() != nil && this.scheduler.Idle() {
			this.dispatchHead()
		}
	case DispatcherExecuting:
		if this.scheduler.ConsumeDone() {
			this.completeHead()
		}
	case DispatcherChainWait:
		if this.queue.ErrorFlag() {
			this.state = DispatcherIdle
			return
		}
		if this.queue.Head() != nil {
			this.dispatchHead()
		}
	case DispatcherDone:
		this.state = DispatcherIdle
	}
}

// dispatchHead validates the head descriptor and hands it to the scheduler.
// NOP descriptors complete on the spot, still honoring their chain and irq
// flags; an illegal opcode or degenerate geometry fails the descriptor
// immediately.
func (this *Dispatcher) dispatchHead() {
	descriptor := this.queue.PopForExecution()

	if !descriptor.Opcode.Legal() {
		this.stat_factory.Increment("illegal_opcodes", 1)
		this.finishHead(descriptor, false, ErrorCodeIllegalOpcode)
		return
	}

	if descriptor.Opcode == OpcodeNop {
		this.stat_factory.Increment("nops_dispatched", 1)
		this.finishHead(descriptor, true, ErrorCodeNone)
		return
	}

	geometry := DeriveGeometry(descriptor, this.array_dim)
	if !geometry.Valid() {
		this.stat_factory.Increment("bad_geometries", 1)
		this.finishHead(descriptor, false, ErrorCodeBadGeometry)
		return
	}

	job := new(TileJob)
	job.Init(descriptor, geometry)
	if !this.scheduler.Start(job) {
		// scheduler still winding down; the head stays resident and the
		// hand-off retries next cycle
		this.state = DispatcherChainWait
		return
	}

	this.state = DispatcherExecuting
	this.stat_factory.Increment("dispatches", 1)
}

func (this *Dispatcher) completeHead() {
	descriptor := this.queue.Head()
	this.finishHead(descriptor, true, ErrorCodeNone)
}

// finishHead retires the head descriptor and picks the next dispatcher state.
// Chained descriptors re-present the new head without returning to IDLE, so a
// back-to-back pair keeps the scheduler's DONE-to-LOAD_WEIGHTS window.
func (this *Dispatcher) finishHead(descriptor *Descriptor, success bool, error_code uint32) {
	this.queue.OnExecutionDone(success, error_code)

	if descriptor.IrqEn && this.irq_enabled {
		this.irq_pending = true
		this.stat_factory.Increment("irqs_raised", 1)
	}

	if !success {
		this.state = DispatcherIdle
		return
	}

	if descriptor.Chain {
		if this.queue.Head() != nil {
			this.dispatchHead()
			return
		}
		this.state = DispatcherChainWait
		return
	}

	this.state = DispatcherDone
}
