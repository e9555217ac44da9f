package host

import (
	"errors"

	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/misc"
	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/simulator/tpu"
	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/simulator/tpu/dma"
)

type DriverState int

const (
	DriverConfig DriverState = iota
	DriverPreload
	DriverPrime
	DriverReload
	DriverEnqueue
	DriverWait
	DriverReadback
	DriverDone
	DriverFailed
)

func (this DriverState) String() string {
	switch this {
	case DriverConfig:
		return "CONFIG"
	case DriverPreload:
		return "PRELOAD"
	case DriverPrime:
		return "PRIME"
	case DriverReload:
		return "RELOAD"
	case DriverEnqueue:
		return "ENQUEUE"
	case DriverWait:
		return "WAIT"
	case DriverReadback:
		return "READBACK"
	case DriverDone:
		return "DONE"
	case DriverFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Driver is the firmware loop that runs one program against the core,
// touching it only through the register window and external memory.
//
// The operand scratchpads are double buffered and every tile boundary flips
// the generations, so the boot sequence loads the images, runs one warmup
// tile whose drain swap publishes them, then loads the same images again.
// After that both generations hold identical data and any number of tile
// swaps reads correctly. Performance counters are enabled only once the
// warmup traffic is behind us.
type Driver struct {
	state          DriverState
	core           *tpu.Core
	memory         *dma.ModelMemory
	program        *Program
	descriptors    []*tpu.Descriptor
	image_cursor   int
	job_cursor     int
	dma_inflight   bool
	primer_staged  bool
	readback_base  int64
	readback_count int64
	mismatches     int64
	fault          string
	stat_factory   *misc.StatFactory
}

func (this *Driver) Init(core *tpu.Core, memory *dma.ModelMemory, program *Program, stat_factory *misc.StatFactory) {
	if core == nil || memory == nil || stat_factory == nil {
		err := errors.New("driver requires a core, a memory, and a stat factory")
		panic(err)
	}
	if err := program.Validate(); err != nil {
		panic(err)
	}
	descriptors, err := program.Descriptors()
	if err != nil {
		panic(err)
	}

	this.state = DriverConfig
	this.core = core
	this.memory = memory
	this.program = program
	this.descriptors = descriptors
	this.image_cursor = 0
	this.job_cursor = 0
	this.dma_inflight = false
	this.primer_staged = false
	this.mismatches = 0
	this.fault = ""
	this.stat_factory = stat_factory

	this.readback_base = alignUp(program.ImageEnd(), 64)
	this.readback_count = 0
	for _, check := range program.Checks {
		if check.Address+1 > this.readback_count {
			this.readback_count = check.Address + 1
		}
	}
	if this.readback_base+this.readback_count*4 > memory.Size() {
		err := errors.New("model memory cannot hold the readback window")
		panic(err)
	}

	for _, image := range this.program.Images {
		if image.Address+int64(len(image.Values)) > memory.Size() {
			err := errors.New("model memory cannot hold the operand images")
			panic(err)
		}
		data := make([]uint8, len(image.Values))
		for index, value := range image.Values {
			data[index] = uint8(int8(value))
		}
		this.memory.WriteBytes(image.Address, data)
	}
}

func (this *Driver) Fini() {
	this.core = nil
	this.memory = nil
	this.program = nil
	this.descriptors = nil
	this.stat_factory = nil
}

func (this *Driver) State() DriverState {
	return this.state
}

func (this *Driver) Finished() bool {
	return this.state == DriverDone || this.state == DriverFailed
}

func (this *Driver) Failed() bool {
	return this.state == DriverFailed
}

func (this *Driver) Fault() string {
	return this.fault
}

func (this *Driver) Mismatches() int64 {
	return this.mismatches
}

// Tick issues at most one register transaction. The platform calls it once
// per cycle, before the core advances.
func (this *Driver) Tick() {
	switch this.state {
	case DriverConfig:
		this.core.WriteRegister(tpu.RegCtrl, tpu.CtrlQueueMode|tpu.CtrlIrqEn)
		this.image_cursor = 0
		this.state = DriverPreload
	case DriverPreload:
		this.tickImageLoad(DriverPrime)
	case DriverPrime:
		this.tickPrime()
	case DriverReload:
		this.tickImageLoad(DriverEnqueue)
	case DriverEnqueue:
		this.tickEnqueue()
	case DriverWait:
		this.tickWait()
	case DriverReadback:
		this.tickReadback()
	case DriverDone, DriverFailed:
	}
}

func (this *Driver) tickImageLoad(next DriverState) {
	if this.dma_inflight {
		status := this.core.ReadRegister(tpu.RegDmaStatus)
		if status&tpu.DmaStatusError != 0 {
			this.failRun("image transfer fault")
			return
		}
		if status&tpu.DmaStatusDone == 0 {
			return
		}
		this.dma_inflight = false
		this.image_cursor++
		this.stat_factory.Increment("driver_images_loaded", 1)
	}

	if this.image_cursor >= len(this.program.Images) {
		if next == DriverEnqueue {
			this.core.WriteRegister(tpu.RegPerfCtrl,
				tpu.PerfEnableBusy|tpu.PerfEnableZeroSkip|tpu.PerfEnableConflict|tpu.PerfEnableDmaBytes)
		}
		this.primer_staged = false
		this.state = next
		return
	}

	image := this.program.Images[this.image_cursor]
	target, err := parseImageTarget(image.Target)
	if err != nil {
		this.failRun("unroutable image target")
		return
	}
	this.core.WriteRegister(tpu.RegDmaExtAddr, uint32(image.Address))
	this.core.WriteRegister(tpu.RegDmaIntAddr, uint32(image.InternalBase))
	this.core.WriteRegister(tpu.RegDmaLen, uint32(len(image.Values)))
	this.core.WriteRegister(tpu.RegDmaCtrl,
		tpu.DmaCtrlStart|uint32(target)<<tpu.DmaCtrlTargetShift|uint32(dma.W8)<<tpu.DmaCtrlWidthShift)
	this.dma_inflight = true
}

func (this *Driver) tickPrime() {
	if !this.primer_staged {
		words := this.primerDescriptor().Pack()
		this.core.WriteRegister(tpu.RegCqDesc0, words[0])
		this.core.WriteRegister(tpu.RegCqDesc1, words[1])
		this.core.WriteRegister(tpu.RegCqDesc2, words[2])
		this.core.WriteRegister(tpu.RegCqDesc3, words[3])
		this.primer_staged = true
		this.stat_factory.Increment("driver_warmup_jobs", 1)
		return
	}
	if !this.coreQuiet() {
		return
	}
	this.image_cursor = 0
	this.state = DriverReload
}

// primerDescriptor builds the warmup tile. It borrows the first real job's
// reduction depth so the warmup reads the freshly loaded operands, and it
// carries the maximum tile id so traces show it for what it is.
func (this *Driver) primerDescriptor() *tpu.Descriptor {
	depth := uint8(1)
	for _, job := range this.program.Jobs {
		if opcode, err := parseOpcode(job.Op); err == nil && opcode == tpu.OpcodeMatmul {
			depth = job.K
			break
		}
	}

	descriptor := new(tpu.Descriptor)
	descriptor.Init()
	descriptor.Opcode = tpu.OpcodeMatmul
	descriptor.TileId = 1<<18 - 1
	descriptor.KTileLen = depth
	return descriptor
}

func (this *Driver) tickEnqueue() {
	if this.job_cursor >= len(this.descriptors) {
		this.state = DriverWait
		return
	}
	cq := this.core.ReadRegister(tpu.RegCqStatus)
	if cq&tpu.CqStatusFull != 0 {
		this.stat_factory.Increment("driver_enqueue_stalls", 1)
		return
	}

	words := this.descriptors[this.job_cursor].Pack()
	this.core.WriteRegister(tpu.RegCqDesc0, words[0])
	this.core.WriteRegister(tpu.RegCqDesc1, words[1])
	this.core.WriteRegister(tpu.RegCqDesc2, words[2])
	this.core.WriteRegister(tpu.RegCqDesc3, words[3])
	this.job_cursor++
	this.stat_factory.Increment("driver_jobs_enqueued", 1)
}

func (this *Driver) tickWait() {
	status := this.core.ReadRegister(tpu.RegStatus)
	if status&tpu.StatusError != 0 {
		this.stat_factory.Set("driver_queue_status", int64(this.core.ReadRegister(tpu.RegCqStatus)))
		this.stat_factory.Set("driver_dma_status", int64(this.core.ReadRegister(tpu.RegDmaStatus)))
		this.failRun("job reported an error")
		return
	}
	cq := this.core.ReadRegister(tpu.RegCqStatus)
	if status&tpu.StatusBusy != 0 || cq&tpu.CqStatusEmpty == 0 {
		return
	}

	if cq&tpu.CqStatusIrqPending != 0 {
		this.core.WriteRegister(tpu.RegCqCtrl, tpu.CqCtrlIrqAck)
		this.stat_factory.Increment("driver_irqs_acked", 1)
	}
	this.dma_inflight = false
	this.state = DriverReadback
}

func (this *Driver) tickReadback() {
	if this.readback_count == 0 {
		this.state = DriverDone
		return
	}

	if !this.dma_inflight {
		control := tpu.DmaCtrlStart | tpu.DmaCtrlWrite |
			uint32(dma.TargetOutput)<<tpu.DmaCtrlTargetShift |
			uint32(dma.W32)<<tpu.DmaCtrlWidthShift
		this.core.WriteRegister(tpu.RegDmaExtAddr, uint32(this.readback_base))
		this.core.WriteRegister(tpu.RegDmaIntAddr, 0)
		this.core.WriteRegister(tpu.RegDmaLen, uint32(this.readback_count))
		this.core.WriteRegister(tpu.RegDmaCtrl, control)
		this.dma_inflight = true
		return
	}

	status := this.core.ReadRegister(tpu.RegDmaStatus)
	if status&tpu.DmaStatusError != 0 {
		this.failRun("readback transfer fault")
		return
	}
	if status&tpu.DmaStatusDone == 0 {
		return
	}
	this.dma_inflight = false
	this.compareChecks()
}

func (this *Driver) compareChecks() {
	for _, check := range this.program.Checks {
		word := this.memory.ReadWord(this.readback_base + check.Address*4)
		if int32(word) != check.Value {
			this.mismatches++
		}
	}
	this.stat_factory.Set("driver_checks_total", int64(len(this.program.Checks)))
	this.stat_factory.Set("driver_check_mismatches", this.mismatches)

	if this.mismatches != 0 {
		this.failRun("result checks failed")
		return
	}
	this.state = DriverDone
}

func (this *Driver) coreQuiet() bool {
	status := this.core.ReadRegister(tpu.RegStatus)
	cq := this.core.ReadRegister(tpu.RegCqStatus)
	return status&tpu.StatusBusy == 0 && cq&tpu.CqStatusEmpty != 0
}

func (this *Driver) failRun(reason string) {
	this.fault = reason
	this.state = DriverFailed
	this.stat_factory.Increment("driver_faults", 1)
}
