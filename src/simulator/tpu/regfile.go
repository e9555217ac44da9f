package tpu

import (
	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/misc"
	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/simulator/tpu/dma"
	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/simulator/tpu/mxu"
	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/simulator/tpu/spad"
)

// Register offsets of the memory-mapped control surface, word aligned.
const (
	RegCtrl           int64 = 0x00
	RegStatus         int64 = 0x04
	RegZeroSkip       int64 = 0x08
	RegOutputBase     int64 = 0x0C
	RegActivationBase int64 = 0x10
	RegWeightBase     int64 = 0x14
	RegDimK           int64 = 0x18
	RegDimM           int64 = 0x1C
	RegDimN           int64 = 0x20
	RegPerfCtrl       int64 = 0x24
	RegPerfBusy       int64 = 0x28
	RegPerfZeroSkip   int64 = 0x2C
	RegPerfConflict   int64 = 0x30
	RegPerfDmaBytes   int64 = 0x34
	RegDmaExtAddr     int64 = 0x38
	RegDmaIntAddr     int64 = 0x3C
	RegDmaLen         int64 = 0x40
	RegDmaCtrl        int64 = 0x44
	RegDmaStatus      int64 = 0x48
	RegDmaBytes       int64 = 0x4C
	RegCqCtrl         int64 = 0x50
	RegCqStatus       int64 = 0x54
	RegCqDesc0        int64 = 0x58
	RegCqDesc1        int64 = 0x5C
	RegCqDesc2        int64 = 0x60
	RegCqDesc3        int64 = 0x64
)

// Control register bits. START and CLEAR are write-one pulses; the rest are
// levels restated on every write.
const (
	CtrlStart     uint32 = 1 << 0
	CtrlClear     uint32 = 1 << 1
	CtrlIrqEn     uint32 = 1 << 2
	CtrlQueueMode uint32 = 1 << 3
)

const (
	StatusBusy  uint32 = 1 << 0
	StatusDone  uint32 = 1 << 1
	StatusError uint32 = 1 << 2
)

// Perf control: low bits enable individual counters, bits 8..11 are
// write-one-to-clear pulses for the matching counter.
const (
	PerfEnableBusy     uint32 = 1 << 0
	PerfEnableZeroSkip uint32 = 1 << 1
	PerfEnableConflict uint32 = 1 << 2
	PerfEnableDmaBytes uint32 = 1 << 3
	PerfClearBusy      uint32 = 1 << 8
	PerfClearZeroSkip  uint32 = 1 << 9
	PerfClearConflict  uint32 = 1 << 10
	PerfClearDmaBytes  uint32 = 1 << 11
)

const (
	DmaCtrlStart      uint32 = 1 << 0
	DmaCtrlWrite      uint32 = 1 << 1
	DmaCtrlPack       uint32 = 1 << 6
	DmaCtrlClearError uint32 = 1 << 8

	DmaCtrlTargetShift uint32 = 2
	DmaCtrlTargetMask  uint32 = 0x3
	DmaCtrlWidthShift  uint32 = 4
	DmaCtrlWidthMask   uint32 = 0x3
)

const (
	DmaStatusBusy      uint32 = 1 << 0
	DmaStatusDone      uint32 = 1 << 1
	DmaStatusError     uint32 = 1 << 2
	DmaStatusCodeShift uint32 = 8
)

const (
	CqCtrlFlush      uint32 = 1 << 0
	CqCtrlClearError uint32 = 1 << 1
	CqCtrlIrqAck     uint32 = 1 << 2
)

const (
	CqStatusCountMask  uint32 = 0xFF
	CqStatusEmpty      uint32 = 1 << 8
	CqStatusFull       uint32 = 1 << 9
	CqStatusError      uint32 = 1 << 10
	CqStatusIrqPending uint32 = 1 << 11
	CqStatusCodeShift  uint32 = 16
	CqStatusOverflow   uint32 = 1 << 24
)

const (
	perfBusy = iota
	perfZeroSkip
	perfConflict
	perfDmaBytes
	perfCounters
)

// RegisterDescriptor names one register of the control surface for the
// register-map manifest the platform dumps alongside its stats.
type RegisterDescriptor struct {
	Name   string `json:"name"`
	Offset int64  `json:"offset"`
}

// RegisterMap lists the host-visible registers in offset order.
func RegisterMap() []RegisterDescriptor {
	return []RegisterDescriptor{
		{Name: "CTRL", Offset: RegCtrl},
		{Name: "STATUS", Offset: RegStatus},
		{Name: "ZSKIP", Offset: RegZeroSkip},
		{Name: "OBASE", Offset: RegOutputBase},
		{Name: "ABASE", Offset: RegActivationBase},
		{Name: "WBASE", Offset: RegWeightBase},
		{Name: "KDIM", Offset: RegDimK},
		{Name: "MSEL", Offset: RegDimM},
		{Name: "NSEL", Offset: RegDimN},
		{Name: "PERF_CTRL", Offset: RegPerfCtrl},
		{Name: "PERF_BUSY", Offset: RegPerfBusy},
		{Name: "PERF_ZSKIP", Offset: RegPerfZeroSkip},
		{Name: "PERF_CONFLICT", Offset: RegPerfConflict},
		{Name: "PERF_DMABYTES", Offset: RegPerfDmaBytes},
		{Name: "DMA_EXT_ADDR", Offset: RegDmaExtAddr},
		{Name: "DMA_INT_ADDR", Offset: RegDmaIntAddr},
		{Name: "DMA_LEN", Offset: RegDmaLen},
		{Name: "DMA_CTRL", Offset: RegDmaCtrl},
		{Name: "DMA_STAT", Offset: RegDmaStatus},
		{Name: "DMA_BYTES", Offset: RegDmaBytes},
		{Name: "CQ_CTRL", Offset: RegCqCtrl},
		{Name: "CQ_STAT", Offset: RegCqStatus},
		{Name: "CQ_DESC0", Offset: RegCqDesc0},
		{Name: "CQ_DESC1", Offset: RegCqDesc1},
		{Name: "CQ_DESC2", Offset: RegCqDesc2},
		{Name: "CQ_DESC3", Offset: RegCqDesc3},
	}
}

// RegisterFile is the host-visible control surface. Writes latch levels and
// arm pulse flags; Tick consumes the pulses once per cycle so host accesses
// between cycles behave like a synchronous register bus. Writing the last
// descriptor staging word doubles as the enqueue strobe.
type RegisterFile struct {
	array_dim int64

	queue      *CommandQueue
	dispatcher *Dispatcher
	scheduler  *Scheduler
	engine     *dma.Engine
	array      *mxu.Array
	weight     *spad.Buffer
	activation *spad.Buffer

	irq_enable bool
	queue_mode bool

	output_base     uint32
	activation_base uint32
	weight_base     uint32
	dim_k           uint32
	dim_m           uint32
	dim_n           uint32

	dma_ext_addr uint32
	dma_int_addr uint32
	dma_len      uint32
	dma_write    bool
	dma_target   uint32
	dma_width    uint32
	dma_pack     bool

	staged [4]uint32

	pending_start       bool
	pending_clear       bool
	pending_dma_start   bool
	pending_dma_clear   bool
	pending_flush       bool
	pending_queue_clear bool
	pending_irq_ack     bool
	pending_enqueue     bool

	legacy_active      bool
	legacy_irq_pending bool

	perf_enable [perfCounters]bool
	perf_acc    [perfCounters]int64
	perf_prev   [perfCounters]int64

	stat_factory *misc.StatFactory
}

func (this *RegisterFile) Init(array_dim int64, queue *CommandQueue, dispatcher *Dispatcher,
	scheduler *Scheduler, engine *dma.Engine, array *mxu.Array, weight *spad.Buffer,
	activation *spad.Buffer, stat_factory *misc.StatFactory) {
	this.array_dim = array_dim
	this.queue = queue
	this.dispatcher = dispatcher
	this.scheduler = scheduler
	this.engine = engine
	this.array = array
	this.weight = weight
	this.activation = activation
	this.stat_factory = stat_factory
}

func (this *RegisterFile) QueueModeEnabled() bool {
	return this.queue_mode
}

func (this *RegisterFile) LegacyActive() bool {
	return this.legacy_active
}

// IrqPending ORs the queue-mode and direct-mode interrupt sources.
func (this *RegisterFile) IrqPending() bool {
	return this.dispatcher.IrqPending() || this.legacy_irq_pending
}

// AggregateError folds every sticky error source into one bit vector.
func (this *RegisterFile) AggregateError() uint32 {
	aggregate := uint32(0)
	if this.queue.ErrorFlag() {
		aggregate |= AggregateErrorQueue
	}
	if this.engine.Faulted() {
		aggregate |= AggregateErrorDma
	}
	if this.queue.OverflowFlag() {
		aggregate |= AggregateErrorOverflow
	}
	return aggregate
}

func (this *RegisterFile) WriteRegister(offset int64, value uint32) {
	switch offset {
	case RegCtrl:
		if value&CtrlStart != 0 {
			this.pending_start = true
		}
		if value&CtrlClear != 0 {
			this.pending_clear = true
		}
		this.irq_enable = value&CtrlIrqEn != 0
		this.queue_mode = value&CtrlQueueMode != 0
		this.dispatcher.SetIrqEnabled(this.irq_enable)
	case RegOutputBase:
		this.output_base = value
	case RegActivationBase:
		this.activation_base = value
	case RegWeightBase:
		this.weight_base = value
	case RegDimK:
		this.dim_k = value
	case RegDimM:
		this.dim_m = value
	case RegDimN:
		this.dim_n = value
	case RegPerfCtrl:
		this.perf_enable[perfBusy] = value&PerfEnableBusy != 0
		this.perf_enable[perfZeroSkip] = value&PerfEnableZeroSkip != 0
		this.perf_enable[perfConflict] = value&PerfEnableConflict != 0
		this.perf_enable[perfDmaBytes] = value&PerfEnableDmaBytes != 0
		if value&PerfClearBusy != 0 {
			this.perf_acc[perfBusy] = 0
		}
		if value&PerfClearZeroSkip != 0 {
			this.perf_acc[perfZeroSkip] = 0
		}
		if value&PerfClearConflict != 0 {
			this.perf_acc[perfConflict] = 0
		}
		if value&PerfClearDmaBytes != 0 {
			this.perf_acc[perfDmaBytes] = 0
		}
	case RegDmaExtAddr:
		this.dma_ext_addr = value
	case RegDmaIntAddr:
		this.dma_int_addr = value
	case RegDmaLen:
		this.dma_len = value
	case RegDmaCtrl:
		this.dma_write = value&DmaCtrlWrite != 0
		this.dma_target = value >> DmaCtrlTargetShift & DmaCtrlTargetMask
		this.dma_width = value >> DmaCtrlWidthShift & DmaCtrlWidthMask
		this.dma_pack = value&DmaCtrlPack != 0
		if value&DmaCtrlStart != 0 {
			this.pending_dma_start = true
		}
		if value&DmaCtrlClearError != 0 {
			this.pending_dma_clear = true
		}
	case RegCqCtrl:
		if value&CqCtrlFlush != 0 {
			this.pending_flush = true
		}
		if value&CqCtrlClearError != 0 {
			this.pending_queue_clear = true
		}
		if value&CqCtrlIrqAck != 0 {
			this.pending_irq_ack = true
		}
	case RegCqDesc0:
		this.staged[0] = value
	case RegCqDesc1:
		this.staged[1] = value
	case RegCqDesc2:
		this.staged[2] = value
	case RegCqDesc3:
		this.staged[3] = value
		this.pending_enqueue = true
	default:
		this.stat_factory.Increment("reg_unknown_writes", 1)
	}
}

func (this *RegisterFile) ReadRegister(offset int64) uint32 {
	switch offset {
	case RegCtrl:
		value := uint32(0)
		if this.irq_enable {
			value |= CtrlIrqEn
		}
		if this.queue_mode {
			value |= CtrlQueueMode
		}
		return value
	case RegStatus:
		value := uint32(0)
		if this.scheduler.Busy() || this.dispatcher.Busy() {
			value |= StatusBusy
		}
		if this.scheduler.DoneLatch() {
			value |= StatusDone
		}
		if this.AggregateError() != 0 {
			value |= StatusError
		}
		value |= uint32(this.scheduler.State()) << 8
		value |= uint32(this.engine.State()) << 16
		return value
	case RegZeroSkip:
		return misc.SaturateUint32(uint64(this.array.ZeroSkips()))
	case RegOutputBase:
		return this.output_base
	case RegActivationBase:
		return this.activation_base
	case RegWeightBase:
		return this.weight_base
	case RegDimK:
		return this.dim_k
	case RegDimM:
		return this.dim_m
	case RegDimN:
		return this.dim_n
	case RegPerfCtrl:
		value := uint32(0)
		if this.perf_enable[perfBusy] {
			value |= PerfEnableBusy
		}
		if this.perf_enable[perfZeroSkip] {
			value |= PerfEnableZeroSkip
		}
		if this.perf_enable[perfConflict] {
			value |= PerfEnableConflict
		}
		if this.perf_enable[perfDmaBytes] {
			value |= PerfEnableDmaBytes
		}
		return value
	case RegPerfBusy:
		return misc.SaturateUint32(uint64(this.perf_acc[perfBusy]))
	case RegPerfZeroSkip:
		return misc.SaturateUint32(uint64(this.perf_acc[perfZeroSkip]))
	case RegPerfConflict:
		return misc.SaturateUint32(uint64(this.perf_acc[perfConflict]))
	case RegPerfDmaBytes:
		return misc.SaturateUint32(uint64(this.perf_acc[perfDmaBytes]))
	case RegDmaExtAddr:
		return this.dma_ext_addr
	case RegDmaIntAddr:
		return this.dma_int_addr
	case RegDmaLen:
		return this.dma_len
	case RegDmaCtrl:
		value := this.dma_target<<DmaCtrlTargetShift | this.dma_width<<DmaCtrlWidthShift
		if this.dma_write {
			value |= DmaCtrlWrite
		}
		if this.dma_pack {
			value |= DmaCtrlPack
		}
		return value
	case RegDmaStatus:
		value := uint32(0)
		if this.engine.Busy() {
			value |= DmaStatusBusy
		}
		if this.engine.Done() {
			value |= DmaStatusDone
		}
		if this.engine.Faulted() {
			value |= DmaStatusError
		}
		value |= this.engine.ErrorCode() << DmaStatusCodeShift
		return value
	case RegDmaBytes:
		return misc.SaturateUint32(uint64(this.engine.BytesTransferred()))
	case RegCqCtrl:
		return 0
	case RegCqStatus:
		value := misc.SaturateUint32(uint64(this.queue.Count())) & CqStatusCountMask
		if this.queue.Empty() {
			value |= CqStatusEmpty
		}
		if this.queue.Full() {
			value |= CqStatusFull
		}
		if this.queue.ErrorFlag() {
			value |= CqStatusError
		}
		if this.IrqPending() {
			value |= CqStatusIrqPending
		}
		value |= (this.queue.ErrorCode() & 0xFF) << CqStatusCodeShift
		if this.queue.OverflowFlag() {
			value |= CqStatusOverflow
		}
		return value
	case RegCqDesc0:
		return this.staged[0]
	case RegCqDesc1:
		return this.staged[1]
	case RegCqDesc2:
		return this.staged[2]
	case RegCqDesc3:
		return this.staged[3]
	default:
		this.stat_factory.Increment("reg_unknown_reads", 1)
		return 0
	}
}

// Tick consumes the pulses armed by host writes since the previous cycle.
// Descriptor enqueue runs first so a descriptor staged this cycle can
// dispatch in the same cycle's dispatcher tick.
func (this *RegisterFile) Tick() {
	if this.pending_enqueue {
		this.pending_enqueue = false
		descriptor := UnpackDescriptor(this.staged)
		if push_err := this.queue.Push(descriptor); push_err == nil {
			this.stat_factory.Increment("descriptors_enqueued", 1)
		}
	}

	if this.pending_clear {
		this.pending_clear = false
		this.scheduler.ClearDoneLatch()
		this.dispatcher.AckIrq()
		this.legacy_irq_pending = false
	}

	if this.pending_flush {
		this.pending_flush = false
		this.queue.Flush()
	}

	if this.pending_queue_clear {
		this.pending_queue_clear = false
		this.queue.ClearError()
	}

	if this.pending_irq_ack {
		this.pending_irq_ack = false
		this.dispatcher.AckIrq()
		this.legacy_irq_pending = false
	}

	if this.pending_dma_clear {
		this.pending_dma_clear = false
		this.engine.ClearError()
	}

	if this.pending_dma_start {
		this.pending_dma_start = false
		this.startDma()
	}

	if this.pending_start {
		this.pending_start = false
		this.startLegacy()
	}

	if this.legacy_active && this.scheduler.ConsumeDone() {
		this.legacy_active = false
		if this.irq_enable {
			this.legacy_irq_pending = true
			this.stat_factory.Increment("irqs_raised", 1)
		}
	}
}

func (this *RegisterFile) startDma() {
	width, width_ok := dma.ParseWidth(int64(this.dma_width))
	target, target_ok := dma.ParseTarget(int64(this.dma_target))
	if !width_ok || !target_ok {
		this.stat_factory.Increment("dma_bad_config", 1)
		return
	}

	direction := dma.DirectionRead
	if this.dma_write {
		direction = dma.DirectionWrite
	}

	request := dma.Request{
		Direction:       direction,
		Target:          target,
		Width:           width,
		Pack:            this.dma_pack,
		ExternalAddress: int64(this.dma_ext_addr),
		InternalAddress: int64(this.dma_int_addr),
		Elements:        int64(this.dma_len),
	}
	this.engine.Start(request)
}

// startLegacy launches a direct-mode job synthesized from the base and
// dimension registers, bypassing the command queue. Only honored while the
// queue mode bit is off and the scheduler is idle.
func (this *RegisterFile) startLegacy() {
	if this.queue_mode {
		this.stat_factory.Increment("legacy_start_ignored", 1)
		return
	}
	if !this.scheduler.Idle() {
		this.stat_factory.Increment("legacy_start_ignored", 1)
		return
	}

	descriptor := new(Descriptor)
	descriptor.Init()
	descriptor.Opcode = OpcodeMatmul
	descriptor.OutputBase = this.output_base
	descriptor.ActivationBase = this.activation_base
	descriptor.WeightBase = uint16(this.weight_base)
	descriptor.KTileLen = uint8(this.dim_k)
	descriptor.MSel = uint8(this.dim_m & 0xF)
	descriptor.NSel = uint8(this.dim_n & 0xF)

	geometry := DeriveGeometry(descriptor, this.array_dim)
	if !geometry.Valid() {
		this.stat_factory.Increment("legacy_start_ignored", 1)
		return
	}

	job := new(TileJob)
	job.Init(descriptor, geometry)
	if this.scheduler.Start(job) {
		this.legacy_active = true
		this.stat_factory.Increment("legacy_starts", 1)
	}
}

// TickPerf samples the gated performance counters. Sources advance their
// shadow sample even while disabled, so enabling a counter later does not
// replay history.
func (this *RegisterFile) TickPerf() {
	if this.perf_enable[perfBusy] && this.scheduler.Busy() {
		this.perf_acc[perfBusy]++
	}

	zskip_now := this.array.ZeroSkips()
	if this.perf_enable[perfZeroSkip] {
		this.perf_acc[perfZeroSkip] += zskip_now - this.perf_prev[perfZeroSkip]
	}
	this.perf_prev[perfZeroSkip] = zskip_now

	conflict_now := int64(this.weight.ConflictCount()) + int64(this.activation.ConflictCount())
	if this.perf_enable[perfConflict] {
		this.perf_acc[perfConflict] += conflict_now - this.perf_prev[perfConflict]
	}
	this.perf_prev[perfConflict] = conflict_now

	dma_bytes_now := this.stat_factory.Value("dma_bytes")
	if this.perf_enable[perfDmaBytes] {
		this.perf_acc[perfDmaBytes] += dma_bytes_now - this.perf_prev[perfDmaBytes]
	}
	this.perf_prev[perfDmaBytes] = dma_bytes_now
}
