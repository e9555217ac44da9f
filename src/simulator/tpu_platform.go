package simulator

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/misc"
	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/simulator/host"
	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/simulator/tpu"
	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/simulator/tpu/dma"
)

// TpuPlatform assembles the accelerator core, its external memory, and the
// host driver into one lockstep simulation. Each platform cycle gives the
// driver its register transaction first and then advances the core, so the
// driver always observes state as of the previous cycle, the way firmware
// polling over a bus would.
type TpuPlatform struct {
	config  *tpu.Config
	memory  *dma.ModelMemory
	core    *tpu.Core
	library *host.Library
	program *host.Program
	driver  *host.Driver

	bin_dirpath  string
	stat_factory *misc.StatFactory

	current_cycle     int64
	last_driver_state host.DriverState

	progress_interval   int64
	next_progress_cycle int64

	stats_flush_interval   int64
	next_stats_flush_cycle int64

	cycle_log []string
}

func (this *TpuPlatform) Init(command_line_parser *misc.CommandLineParser) {
	config_loader := new(misc.ConfigLoader)
	config_loader.Init()

	config := tpu.LoadConfig(config_loader)
	bin_dirpath := command_line_parser.StringParameter("bin_dirpath")

	stat_factory := new(misc.StatFactory)
	stat_factory.Init("TpuPlatform")

	memory := new(dma.ModelMemory)
	memory.Init(config_loader.ModelMemoryBytes(), config_loader.MemoryReadLatency(),
		config_loader.MemoryWriteLatency(), stat_factory)

	core := new(tpu.Core)
	core.Init(config, memory, stat_factory)

	library := host.NewLibrary(config)

	var program *host.Program
	if program_path := config_loader.ProgramPath(); program_path != "" {
		loaded, load_err := host.LoadProgram(program_path)
		if load_err != nil {
			panic(load_err)
		}
		program = loaded
		fmt.Printf("[tpu] loaded program %s from %s\n", program.Name, program_path)
	} else {
		// Workload rows and cols arrive in elements and are validated as
		// multiples of the array dimension.
		row_tiles := config_loader.WorkloadRows() / config.ArrayDim
		col_tiles := config_loader.WorkloadCols() / config.ArrayDim
		built, build_err := library.Build(config_loader.Workload(), row_tiles, col_tiles,
			config_loader.WorkloadDepth(), config_loader.WorkloadJobs(),
			config_loader.WorkloadSeed())
		if build_err != nil {
			panic(build_err)
		}
		program = built
		fmt.Printf("[tpu] built workload program %s\n", program.Name)
	}

	driver := new(host.Driver)
	driver.Init(core, memory, program, stat_factory)

	this.config = config
	this.memory = memory
	this.core = core
	this.library = library
	this.program = program
	this.driver = driver
	this.bin_dirpath = bin_dirpath
	this.stat_factory = stat_factory
	this.current_cycle = 0
	this.last_driver_state = driver.State()
	this.cycle_log = []string{"cycle,driver_state,core_status,scheduler_state,dma_state,queue_count,irq_pending,busy_cycles,zero_skips,bank_conflicts,dma_bytes"}

	progress_interval := command_line_parser.IntParameter("tpu_progress_interval")
	if progress_interval < 0 {
		progress_interval = 0
	}
	this.progress_interval = progress_interval
	if progress_interval > 0 {
		this.next_progress_cycle = progress_interval
		fmt.Printf("[tpu] init complete; progress reported every %d cycles.\n", progress_interval)
	} else {
		fmt.Println("[tpu] init complete; progress reporting disabled.")
	}

	stats_flush_interval := command_line_parser.IntParameter("tpu_stats_flush_interval")
	if stats_flush_interval < 0 {
		stats_flush_interval = 0
	}
	this.stats_flush_interval = stats_flush_interval
	if stats_flush_interval > 0 {
		this.next_stats_flush_cycle = stats_flush_interval
		fmt.Printf("[tpu] stats snapshot every %d cycles.\n", stats_flush_interval)
	} else {
		fmt.Println("[tpu] stats written once at the end of the run.")
	}
}

func (this *TpuPlatform) Fini() {
	if this.driver != nil {
		this.driver.Fini()
	}
}

func (this *TpuPlatform) IsFinished() bool {
	if this.driver == nil {
		return true
	}
	return this.driver.Finished()
}

func (this *TpuPlatform) Cycle() {
	if this.driver == nil || this.core == nil {
		return
	}

	this.current_cycle++
	this.stat_factory.Increment("cycles", 1)

	this.driver.Tick()
	if state := this.driver.State(); state != this.last_driver_state {
		this.last_driver_state = state
		if misc.RuntimeVerboseLevel() >= 1 {
			fmt.Printf("[tpu] cycle=%d driver entered %s\n", this.current_cycle, state)
		}
	}
	this.core.Cycle()

	this.logCycleMetrics()
	this.emitProgress()
	this.maybeFlushStats()
}

func (this *TpuPlatform) logCycleMetrics() {
	if this.bin_dirpath == "" {
		return
	}

	status := this.core.ReadRegister(tpu.RegStatus)
	cq := this.core.ReadRegister(tpu.RegCqStatus)

	entry := fmt.Sprintf("%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d",
		this.current_cycle,
		int64(this.driver.State()),
		status&0x7,
		(status>>8)&0xFF,
		(status>>16)&0xFF,
		cq&tpu.CqStatusCountMask,
		(cq>>11)&0x1,
		this.core.ReadRegister(tpu.RegPerfBusy),
		this.core.ReadRegister(tpu.RegPerfZeroSkip),
		this.core.ReadRegister(tpu.RegPerfConflict),
		this.core.ReadRegister(tpu.RegPerfDmaBytes),
	)
	this.cycle_log = append(this.cycle_log, entry)
}

func (this *TpuPlatform) emitProgress() {
	if this.progress_interval <= 0 {
		return
	}
	if this.current_cycle < this.next_progress_cycle {
		return
	}
	this.next_progress_cycle += this.progress_interval

	cq := this.core.ReadRegister(tpu.RegCqStatus)
	fmt.Printf("[tpu] cycle=%d | driver=%s | queue=%d | irq_pending=%d | busy_cycles=%d | zero_skips=%d | conflicts=%d | dma_bytes=%d\n",
		this.current_cycle,
		this.driver.State(),
		cq&tpu.CqStatusCountMask,
		(cq>>11)&0x1,
		this.core.ReadRegister(tpu.RegPerfBusy),
		this.core.ReadRegister(tpu.RegPerfZeroSkip),
		this.core.ReadRegister(tpu.RegPerfConflict),
		this.core.ReadRegister(tpu.RegPerfDmaBytes),
	)
}

func (this *TpuPlatform) maybeFlushStats() {
	if this.stats_flush_interval <= 0 {
		return
	}
	if this.current_cycle < this.next_stats_flush_cycle {
		return
	}
	this.next_stats_flush_cycle += this.stats_flush_interval
	this.writeStatsFiles()
}

func (this *TpuPlatform) Dump() {
	this.writeRegisterMap()
	this.writeStatsFiles()

	fmt.Printf("[tpu] run %s finished in state %s after %d cycles with %d mismatches\n",
		this.program.Name, this.driver.State(), this.current_cycle, this.driver.Mismatches())
}

// writeRegisterMap dumps the control-surface layout as a JSON manifest so
// driver-side tooling can symbolize register traces.
func (this *TpuPlatform) writeRegisterMap() {
	if this.bin_dirpath == "" {
		return
	}

	payload, marshal_err := json.MarshalIndent(tpu.RegisterMap(), "", "  ")
	if marshal_err != nil {
		panic(marshal_err)
	}

	file_dumper := new(misc.FileDumper)
	file_dumper.Init(filepath.Join(this.bin_dirpath, "regmap.json"))
	file_dumper.WriteLines([]string{string(payload)})
}

func (this *TpuPlatform) writeStatsFiles() {
	if this.bin_dirpath == "" {
		return
	}

	file_dumper := new(misc.FileDumper)
	file_dumper.Init(filepath.Join(this.bin_dirpath, "tpu_log.txt"))

	lines := make([]string, 0)
	lines = append(lines, this.stat_factory.ToLines()...)

	status := this.core.ReadRegister(tpu.RegStatus)
	cq := this.core.ReadRegister(tpu.RegCqStatus)
	busy_cycles := this.core.ReadRegister(tpu.RegPerfBusy)

	lines = append(lines,
		fmt.Sprintf("TpuPlatform_total_cycles: %d", this.current_cycle),
		fmt.Sprintf("TpuPlatform_program: %s", this.program.Name),
		fmt.Sprintf("TpuPlatform_driver_state: %s", this.driver.State()),
		fmt.Sprintf("TpuPlatform_check_mismatch_count: %d", this.driver.Mismatches()),
		fmt.Sprintf("TpuPlatform_core_status_bits: %d", status&0x7),
		fmt.Sprintf("TpuPlatform_queue_overflowed: %d", (cq>>24)&0x1),
		fmt.Sprintf("TpuPlatform_perf_busy_cycles: %d", busy_cycles),
		fmt.Sprintf("TpuPlatform_perf_zero_skips: %d", this.core.ReadRegister(tpu.RegPerfZeroSkip)),
		fmt.Sprintf("TpuPlatform_perf_bank_conflicts: %d", this.core.ReadRegister(tpu.RegPerfConflict)),
		fmt.Sprintf("TpuPlatform_perf_dma_bytes: %d", this.core.ReadRegister(tpu.RegPerfDmaBytes)),
		fmt.Sprintf("TpuPlatform_array_dim: %d", this.config.ArrayDim),
	)
	if this.current_cycle > 0 {
		utilization := float64(busy_cycles) / float64(this.current_cycle)
		lines = append(lines, fmt.Sprintf("TpuPlatform_core_utilization: %.4f", utilization))
	}

	file_dumper.WriteLines(lines)

	if len(this.cycle_log) > 1 {
		cycle_logger := new(misc.FileDumper)
		cycle_logger.Init(filepath.Join(this.bin_dirpath, "tpu_cycle_log.csv"))
		cycle_logger.WriteLines(this.cycle_log)
	}
}
