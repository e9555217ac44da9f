package tpu

import (
	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/misc"
	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/simulator/tpu/dma"
	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/simulator/tpu/mxu"
	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/simulator/tpu/spad"
)

// Core assembles one accelerator: the operand buffers, the systolic array,
// the DMA engine, the command queue with its dispatcher, the tile scheduler
// and the host-facing register file. The host talks to it exclusively through
// WriteRegister and ReadRegister between cycles.
type Core struct {
	config *Config

	weight     *spad.Buffer
	activation *spad.Buffer
	output     *spad.OutputStore
	streamer   *spad.Streamer
	array      *mxu.Array

	engine     *dma.Engine
	queue      *CommandQueue
	dispatcher *Dispatcher
	scheduler  *Scheduler
	regfile    *RegisterFile

	cycle int64

	stat_factory *misc.StatFactory
}

func (this *Core) Init(config *Config, transport dma.Transport, stat_factory *misc.StatFactory) {
	this.config = config
	this.stat_factory = stat_factory

	this.weight = new(spad.Buffer)
	this.weight.Init("weight", config.WeightBanks, config.WeightBankDepth, stat_factory)

	this.activation = new(spad.Buffer)
	this.activation.Init("activation", config.ActivationBanks, config.ActivationBankDepth, stat_factory)

	this.output = new(spad.OutputStore)
	this.output.Init("output", config.OutputElements, stat_factory)

	this.streamer = new(spad.Streamer)
	this.streamer.Init(this.activation, stat_factory)

	this.array = mxu.NewArray(config.ArrayDim)

	this.engine = new(dma.Engine)
	this.engine.Init(transport, this.weight, this.activation, this.output,
		config.MaxBurstBeats, stat_factory)

	this.queue = new(CommandQueue)
	this.queue.Init(config.QueueDepth, stat_factory)

	this.scheduler = new(Scheduler)
	this.scheduler.Init(this.array, this.weight, this.activation, this.streamer, this.output,
		config.PipelinedDrain, config.RequantShift, stat_factory)

	this.dispatcher = new(Dispatcher)
	this.dispatcher.Init(config.ArrayDim, this.queue, this.scheduler, stat_factory)

	this.regfile = new(RegisterFile)
	this.regfile.Init(config.ArrayDim, this.queue, this.dispatcher, this.scheduler, this.engine,
		this.array, this.weight, this.activation, stat_factory)
}

// Cycle advances the core one clock. Register pulses land first so host
// writes made since the previous cycle take effect before the dispatcher and
// scheduler run; the perf sample closes the cycle after every source has
// settled.
func (this *Core) Cycle() {
	this.cycle++

	this.weight.BeginCycle()
	this.activation.BeginCycle()

	this.regfile.Tick()
	if this.regfile.QueueModeEnabled() {
		this.dispatcher.Tick()
	}
	this.scheduler.Tick()
	this.engine.Tick()
	this.regfile.TickPerf()
}

// Idle reports whether every subsystem has drained. The register file's
// pending pulses are host-ordered, so a freshly staged descriptor flips the
// queue non-empty before the host could observe an idle core.
func (this *Core) Idle() bool {
	return this.scheduler.Idle() &&
		!this.dispatcher.Busy() &&
		this.queue.Empty() &&
		!this.engine.Busy() &&
		!this.regfile.LegacyActive()
}

func (this *Core) CycleCount() int64 {
	return this.cycle
}

func (this *Core) WriteRegister(offset int64, value uint32) {
	this.regfile.WriteRegister(offset, value)
}

func (this *Core) ReadRegister(offset int64) uint32 {
	return this.regfile.ReadRegister(offset)
}

func (this *Core) Config() *Config {
	return this.config
}

func (this *Core) RegisterFile() *RegisterFile {
	return this.regfile
}

func (this *Core) Queue() *CommandQueue {
	return this.queue
}

func (this *Core) Dispatcher() *Dispatcher {
	return this.dispatcher
}

func (this *Core) Scheduler() *Scheduler {
	return this.scheduler
}

func (this *Core) Engine() *dma.Engine {
	return this.engine
}

func (this *Core) Array() *mxu.Array {
	return this.array
}

func (this *Core) WeightBuffer() *spad.Buffer {
	return this.weight
}

func (this *Core) ActivationBuffer() *spad.Buffer {
	return this.activation
}

func (this *Core) OutputStore() *spad.OutputStore {
	return this.output
}
