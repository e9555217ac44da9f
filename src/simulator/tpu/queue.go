package tpu

import (
	"errors"

	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/misc"
)

// ErrQueueFull is returned by Push when every slot is occupied. The offered
// descriptor is discarded and the queue is left untouched.
var ErrQueueFull = errors.New("QueueFull")

// CommandQueue is the fixed-depth FIFO between the host-facing register file
// and the dispatcher. The head entry stays resident while it executes and is
// only retired by OnExecutionDone, so a mid-flight flush cannot pull work out
// from under the scheduler's feet.
type CommandQueue struct {
	entries []*Descriptor
	head    int64
	count   int64
	depth   int64

	executing bool

	error_flag    bool
	error_code    uint32
	overflow_flag bool

	stat_factory *misc.StatFactory
}

func (this *CommandQueue) Init(depth int64, stat_factory *misc.StatFactory) {
	if depth <= 0 {
		err := errors.New("command queue depth must be positive")
		panic(err)
	}

	this.entries = make([]*Descriptor, depth)
	this.head = 0
	this.count = 0
	this.depth = depth
	this.executing = false
	this.error_flag = false
	this.error_code = ErrorCodeNone
	this.overflow_flag = false
	this.stat_factory = stat_factory
}

func (this *CommandQueue) Depth() int64 {
	return this.depth
}

func (this *CommandQueue) Count() int64 {
	return this.count
}

func (this *CommandQueue) Empty() bool {
	return this.count == 0
}

func (this *CommandQueue) Full() bool {
	return this.count == this.depth
}

// Push appends a descriptor at the tail. A full queue rejects the descriptor
// outright; the caller sees ErrQueueFull and nothing else changes.
func (this *CommandQueue) Push(descriptor *Descriptor) error {
	if this.Full() {
		this.overflow_flag = true
		this.stat_factory.Increment("queue_overflows", 1)
		return ErrQueueFull
	}

	tail := (this.head + this.count) % this.depth
	this.entries[tail] = descriptor
	this.count++
	this.stat_factory.Increment("queue_pushes", 1)
	return nil
}

// Head returns the oldest descriptor without removing it, or nil when empty.
func (this *CommandQueue) Head() *Descriptor {
	if this.Empty() {
		return nil
	}
	return this.entries[this.head]
}

// PopForExecution hands the head descriptor to the dispatcher. The entry
// remains the queue head until OnExecutionDone retires it.
func (this *CommandQueue) PopForExecution() *Descriptor {
	head := this.Head()
	if head == nil {
		return nil
	}
	this.executing = true
	return head
}

// OnExecutionDone retires the head descriptor. On failure the sticky error
// flag latches with the given code and suspends further dispatch until the
// host clears it.
func (this *CommandQueue) OnExecutionDone(success bool, error_code uint32) {
	if !this.executing || this.Empty() {
		err := errors.New("execution completion without an executing head descriptor")
		panic(err)
	}

	this.entries[this.head] = nil
	this.head = (this.head + 1) % this.depth
	this.count--
	this.executing = false

	if success {
		this.stat_factory.Increment("queue_completions", 1)
	} else {
		this.error_flag = true
		this.error_code = error_code
		this.stat_factory.Increment("queue_failures", 1)
	}
}

// Executing reports whether the head descriptor has been handed out.
func (this *CommandQueue) Executing() bool {
	return this.executing
}

// Flush discards all pending entries. A head descriptor that is already
// executing stays resident until OnExecutionDone retires it, since tile jobs
// cannot be aborted mid-flight. Error state is left alone; clearing it takes
// an explicit ClearError.
func (this *CommandQueue) Flush() {
	var survivor *Descriptor
	if this.executing {
		survivor = this.entries[this.head]
	}

	for i := range this.entries {
		this.entries[i] = nil
	}
	this.head = 0
	this.count = 0

	if survivor != nil {
		this.entries[0] = survivor
		this.count = 1
	}
	this.stat_factory.Increment("queue_flushes", 1)
}

func (this *CommandQueue) ErrorFlag() bool {
	return this.error_flag
}

func (this *CommandQueue) ErrorCode() uint32 {
	return this.error_code
}

func (this *CommandQueue) OverflowFlag() bool {
	return this.overflow_flag
}

// ClearError drops the sticky error and overflow flags so dispatch can
// resume.
func (this *CommandQueue) ClearError() {
	this.error_flag = false
	this.error_code = ErrorCodeNone
	this.overflow_flag = false
}
