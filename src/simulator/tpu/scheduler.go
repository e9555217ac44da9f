package tpu

import (
	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/misc"
	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/simulator/tpu/mxu"
	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/simulator/tpu/spad"
)

type SchedulerState int

const (
	SchedulerIdle SchedulerState = iota
	SchedulerLoadWeights
	SchedulerCompute
	SchedulerDrain
	SchedulerDone
)

func (this SchedulerState) String() string {
	switch this {
	case SchedulerIdle:
		return "IDLE"
	case SchedulerLoadWeights:
		return "LOAD_WEIGHTS"
	case SchedulerCompute:
		return "COMPUTE"
	case SchedulerDrain:
		return "DRAIN"
	case SchedulerDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// Scheduler walks one descriptor's tile sweep through the fixed phase
// sequence of the weight-stationary array. Each tile costs exactly ArrayDim
// cycles of LOAD_WEIGHTS, 2*ArrayDim-1 cycles of COMPUTE for the skewed
// wavefront, and ArrayDim-1 drain cycles in baseline mode (the first result
// row leaves with the final compute beat) or 2*ArrayDim-1 in pipelined mode.
// Every transition out of DRAIN swaps both operand buffer generations exactly
// once, which is how a prefetching host publishes the next tile's data.
type Scheduler struct {
	state SchedulerState

	job     *TileJob
	pending *TileJob

	array      *mxu.Array
	weight     *spad.Buffer
	activation *spad.Buffer
	streamer   *spad.Streamer
	output     *spad.OutputStore

	pipelined_drain bool
	requant_shift   int64

	drain_elapsed int64

	done_pulse bool
	done_latch bool
	swap_pulse bool

	stat_factory *misc.StatFactory
}

func (this *Scheduler) Init(array *mxu.Array, weight *spad.Buffer, activation *spad.Buffer,
	streamer *spad.Streamer, output *spad.OutputStore, pipelined_drain bool, requant_shift int64,
	stat_factory *misc.StatFactory) {
	this.state = SchedulerIdle
	this.job = nil
	this.pending = nil
	this.array = array
	this.weight = weight
	this.activation = activation
	this.streamer = streamer
	this.output = output
	this.pipelined_drain = pipelined_drain
	this.requant_shift = requant_shift
	this.drain_elapsed = 0
	this.done_pulse = false
	this.done_latch = false
	this.swap_pulse = false
	this.stat_factory = stat_factory
}

func (this *Scheduler) State() SchedulerState {
	return this.state
}

func (this *Scheduler) Busy() bool {
	return this.state != SchedulerIdle || this.pending != nil
}

func (this *Scheduler) Idle() bool {
	return this.state == SchedulerIdle && this.pending == nil
}

func (this *Scheduler) Job() *TileJob {
	return this.job
}

// Start offers a job for execution. It is accepted while idle, or during the
// DONE cycle of the previous job so a chained descriptor can enter
// LOAD_WEIGHTS with no idle gap in between.
func (this *Scheduler) Start(job *TileJob) bool {
	if this.pending != nil {
		return false
	}
	if this.state != SchedulerIdle && this.state != SchedulerDone {
		return false
	}
	this.pending = job
	this.done_pulse = false
	this.done_latch = false
	return true
}

// ConsumeDone returns true exactly once per completed job.
func (this *Scheduler) ConsumeDone() bool {
	if this.done_pulse {
		this.done_pulse = false
		return true
	}
	return false
}

// DoneLatch is the host-visible completion flag. It holds until the next
// Start or an explicit clear.
func (this *Scheduler) DoneLatch() bool {
	return this.done_latch
}

func (this *Scheduler) ClearDoneLatch() {
	this.done_latch = false
}

// SwapPulse is true for the one cycle in which a tile boundary swapped the
// operand generations.
func (this *Scheduler) SwapPulse() bool {
	return this.swap_pulse
}

func (this *Scheduler) Tick() {
	this.swap_pulse = false

	switch this.state {
	case SchedulerIdle:
		if this.pending != nil {
			this.beginJob()
		}
	case SchedulerLoadWeights:
		this.tickLoad()
	case SchedulerCompute:
		this.tickCompute()
	case SchedulerDrain:
		this.tickDrain()
	case SchedulerDone:
		if this.pending != nil {
			this.beginJob()
		} else {
			this.state = SchedulerIdle
			this.job = nil
		}
	}
}

func (this *Scheduler) beginJob() {
	this.job = this.pending
	this.pending = nil
	this.done_latch = false
	this.array.BeginTile()
	this.state = SchedulerLoadWeights
	this.stat_factory.Increment("jobs_started", 1)
}

// tickLoad fetches one weight row from the active generation and parks it in
// the array. Column tiles sit Depth elements apart in the weight layout, so
// the row address advances by ArrayDim per load step within a tile.
func (this *Scheduler) tickLoad() {
	geometry := this.job.Geometry

	address := geometry.WeightReadAddress(this.job.ColTileOffset, this.job.LoadCounter)
	this.weight.Read(address)

	row := make([]int32, geometry.ArrayDim)
	for column := int64(0); column < geometry.ArrayDim; column++ {
		row[column] = this.weight.ActiveValue(address + column)
	}
	this.array.LoadRow(row)

	this.job.LoadCounter++
	this.stat_factory.Increment("load_cycles", 1)

	if this.job.LoadCounter == geometry.ArrayDim {
		this.enterCompute()
	}
}

func (this *Scheduler) enterCompute() {
	this.job.ComputeCycle = 0
	this.accumulateTile()

	if this.job.Descriptor.DataflowStream {
		geometry := this.job.Geometry
		base := geometry.ActivationReadAddress(this.job.RowTileOffset, 0)
		count := 2*geometry.ArrayDim - 1
		if available := this.activation.Capacity() - base; count > available {
			count = available
		}
		this.streamer.StartStream(base, count)
	}

	this.state = SchedulerCompute
}

// accumulateTile snapshots the active activation generation and runs the
// whole tile's multiply-accumulate in one step. Nothing can disturb the
// active generation mid-tile, writers only ever touch the shadow, so the
// snapshot is equivalent to the cycle-by-cycle wavefront.
func (this *Scheduler) accumulateTile() {
	geometry := this.job.Geometry

	depth := geometry.Depth
	if depth > geometry.ArrayDim {
		depth = geometry.ArrayDim
	}

	activations := make([][]int32, geometry.ArrayDim)
	for row := int64(0); row < geometry.ArrayDim; row++ {
		values := make([]int32, depth)
		row_base := geometry.ActivationBase + (this.job.RowTileOffset+row)*geometry.Depth
		for k := int64(0); k < depth; k++ {
			values[k] = this.activation.ActiveValue(row_base + k)
		}
		activations[row] = values
	}

	this.array.Accumulate(activations, depth)
}

// tickCompute models one cycle of the skewed activation feed. The tail of the
// wavefront reads don't-care addresses past the operand rows, so the port
// access is suppressed once the address walks off the end of the buffer.
func (this *Scheduler) tickCompute() {
	geometry := this.job.Geometry

	if this.job.Descriptor.DataflowStream {
		this.streamer.Tick()
	} else {
		address := geometry.ActivationReadAddress(this.job.RowTileOffset, this.job.ComputeCycle)
		if address < this.activation.Capacity() {
			this.activation.Read(address)
		}
	}

	this.job.ComputeCycle++
	this.stat_factory.Increment("compute_cycles", 1)

	if this.job.ComputeCycle == 2*geometry.ArrayDim-1 {
		this.enterDrain()
	}
}

func (this *Scheduler) enterDrain() {
	this.drain_elapsed = 0
	this.job.DrainCount = 0

	if !this.pipelined_drain {
		// row 0 exits alongside the final compute beat
		this.writeOutputRow()
		if this.job.Geometry.ArrayDim == 1 {
			this.finishTile()
			return
		}
	}

	this.state = SchedulerDrain
}

func (this *Scheduler) tickDrain() {
	geometry := this.job.Geometry
	this.drain_elapsed++
	this.stat_factory.Increment("drain_cycles", 1)

	if this.pipelined_drain {
		if this.drain_elapsed > geometry.ArrayDim-1 {
			this.writeOutputRow()
		}
		if this.drain_elapsed == 2*geometry.ArrayDim-1 {
			this.finishTile()
		}
	} else {
		this.writeOutputRow()
		if this.drain_elapsed == geometry.ArrayDim-1 {
			this.finishTile()
		}
	}
}

func (this *Scheduler) writeOutputRow() {
	geometry := this.job.Geometry
	row := this.job.DrainCount

	values := this.array.ResultRow(row, this.job.Descriptor.WideAccumulate, this.requant_shift)
	base := geometry.OutputRowAddress(this.job.RowTileOffset+row, this.job.ColTileOffset)
	for column := int64(0); column < geometry.ArrayDim; column++ {
		this.output.Write(base+column, values[column])
	}

	this.job.DrainCount++
	this.stat_factory.Increment("output_rows", 1)
}

// finishTile closes the current tile. Both operand generations swap exactly
// once here and nowhere else; the sweep then advances column-major within the
// row of tiles before stepping to the next tile row.
func (this *Scheduler) finishTile() {
	this.weight.Swap()
	this.activation.Swap()
	this.swap_pulse = true
	this.stat_factory.Increment("generation_swaps", 1)
	this.job.TilesDone++

	geometry := this.job.Geometry
	if !this.job.LastColTile() {
		this.job.ColTileOffset += geometry.ArrayDim
		this.beginTilePass()
	} else if !this.job.LastRowTile() {
		this.job.ColTileOffset = 0
		this.job.RowTileOffset += geometry.ArrayDim
		this.beginTilePass()
	} else {
		this.state = SchedulerDone
		this.done_pulse = true
		this.done_latch = true
		this.stat_factory.Increment("jobs_completed", 1)
	}
}

func (this *Scheduler) beginTilePass() {
	this.job.LoadCounter = 0
	this.array.BeginTile()
	this.state = SchedulerLoadWeights
}
