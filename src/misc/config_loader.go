package misc

import (
	"os"
	"path/filepath"
	"strings"
)

type runtimeConfig struct {
	RootDirpath string
	BinDirpath  string
}

type tpuRuntimeConfig struct {
	ArrayDim            int64
	WeightBanks         int64
	WeightBankDepth     int64
	ActivationBanks     int64
	ActivationBankDepth int64
	OutputElements      int64
	QueueDepth          int64
	MaxBurstBeats       int64
	PipelinedDrain      int64
	ModelMemoryBytes    int64
	MemoryReadLatency   int64
	MemoryWriteLatency  int64
	RequantShift        int64
	Workload            string
	WorkloadRows        int64
	WorkloadCols        int64
	WorkloadDepth       int64
	WorkloadJobs        int64
	WorkloadSeed        int64
	ProgramPath         string
}

var globalConfig = runtimeConfig{
	RootDirpath: ".",
	BinDirpath:  "bin",
}

var globalTpuConfig = tpuRuntimeConfig{
	ArrayDim:            8,
	WeightBanks:         8,
	WeightBankDepth:     2048,
	ActivationBanks:     8,
	ActivationBankDepth: 2048,
	OutputElements:      65536,
	QueueDepth:          8,
	MaxBurstBeats:       16,
	PipelinedDrain:      0,
	ModelMemoryBytes:    1 << 20,
	MemoryReadLatency:   4,
	MemoryWriteLatency:  4,
	RequantShift:        5,
	Workload:            "gemm",
	WorkloadRows:        16,
	WorkloadCols:        16,
	WorkloadDepth:       8,
	WorkloadJobs:        2,
	WorkloadSeed:        1,
	ProgramPath:         "",
}

// ConfigureRuntime copies every parsed command-line option into the package
// level configuration so components constructed later observe one consistent
// snapshot. Call it once, after Parse and before any platform Init.
func ConfigureRuntime(command_line_parser *CommandLineParser) {
	mode, known := PlatformModeFromString(command_line_parser.StringParameter("platform_mode"))
	if known {
		SetRuntimePlatformMode(mode)
	}
	SetRuntimeVerboseLevel(command_line_parser.IntParameter("verbose"))

	globalConfig.RootDirpath = command_line_parser.StringParameter("root_dirpath")
	globalConfig.BinDirpath = command_line_parser.StringParameter("bin_dirpath")

	globalTpuConfig.ArrayDim = command_line_parser.IntParameter("tpu_array_dim")
	globalTpuConfig.WeightBanks = command_line_parser.IntParameter("tpu_weight_banks")
	globalTpuConfig.WeightBankDepth = command_line_parser.IntParameter("tpu_weight_bank_depth")
	globalTpuConfig.ActivationBanks = command_line_parser.IntParameter("tpu_activation_banks")
	globalTpuConfig.ActivationBankDepth = command_line_parser.IntParameter("tpu_activation_bank_depth")
	globalTpuConfig.OutputElements = command_line_parser.IntParameter("tpu_output_elements")
	globalTpuConfig.QueueDepth = command_line_parser.IntParameter("tpu_queue_depth")
	globalTpuConfig.MaxBurstBeats = command_line_parser.IntParameter("tpu_max_burst_beats")
	globalTpuConfig.PipelinedDrain = command_line_parser.IntParameter("tpu_pipelined_drain")
	globalTpuConfig.ModelMemoryBytes = command_line_parser.IntParameter("tpu_model_memory_bytes")
	globalTpuConfig.MemoryReadLatency = command_line_parser.IntParameter("tpu_memory_read_latency")
	globalTpuConfig.MemoryWriteLatency = command_line_parser.IntParameter("tpu_memory_write_latency")
	globalTpuConfig.RequantShift = command_line_parser.IntParameter("tpu_requant_shift")
	globalTpuConfig.Workload = command_line_parser.StringParameter("tpu_workload")
	globalTpuConfig.WorkloadRows = command_line_parser.IntParameter("tpu_workload_rows")
	globalTpuConfig.WorkloadCols = command_line_parser.IntParameter("tpu_workload_cols")
	globalTpuConfig.WorkloadDepth = command_line_parser.IntParameter("tpu_workload_depth")
	globalTpuConfig.WorkloadJobs = command_line_parser.IntParameter("tpu_workload_jobs")
	globalTpuConfig.WorkloadSeed = command_line_parser.IntParameter("tpu_workload_seed")
	globalTpuConfig.ProgramPath = command_line_parser.StringParameter("tpu_program_path")
}

// ConfigLoader exposes the runtime configuration through getters so consumers
// do not touch the package globals directly.
type ConfigLoader struct {
}

func (this *ConfigLoader) Init() {
}

func (this *ConfigLoader) RootDirpath() string {
	return globalConfig.RootDirpath
}

func (this *ConfigLoader) BinDirpath() string {
	return globalConfig.BinDirpath
}

// AddressWidth is the width of the memory-mapped register bus in bits.
func (this *ConfigLoader) AddressWidth() int64 {
	return 32
}

// WordBytes is the size of one register or bus word.
func (this *ConfigLoader) WordBytes() int64 {
	return 4
}

// DescriptorWords is the number of staging words per work descriptor.
func (this *ConfigLoader) DescriptorWords() int64 {
	return 4
}

func (this *ConfigLoader) ArrayDim() int64 {
	return globalTpuConfig.ArrayDim
}

func (this *ConfigLoader) WeightBanks() int64 {
	return globalTpuConfig.WeightBanks
}

func (this *ConfigLoader) WeightBankDepth() int64 {
	return globalTpuConfig.WeightBankDepth
}

func (this *ConfigLoader) ActivationBanks() int64 {
	return globalTpuConfig.ActivationBanks
}

func (this *ConfigLoader) ActivationBankDepth() int64 {
	return globalTpuConfig.ActivationBankDepth
}

func (this *ConfigLoader) OutputElements() int64 {
	return globalTpuConfig.OutputElements
}

func (this *ConfigLoader) QueueDepth() int64 {
	return globalTpuConfig.QueueDepth
}

func (this *ConfigLoader) MaxBurstBeats() int64 {
	return globalTpuConfig.MaxBurstBeats
}

func (this *ConfigLoader) PipelinedDrain() bool {
	return globalTpuConfig.PipelinedDrain != 0
}

func (this *ConfigLoader) ModelMemoryBytes() int64 {
	return globalTpuConfig.ModelMemoryBytes
}

func (this *ConfigLoader) MemoryReadLatency() int64 {
	return globalTpuConfig.MemoryReadLatency
}

func (this *ConfigLoader) MemoryWriteLatency() int64 {
	return globalTpuConfig.MemoryWriteLatency
}

func (this *ConfigLoader) RequantShift() int64 {
	return globalTpuConfig.RequantShift
}

func (this *ConfigLoader) Workload() string {
	return globalTpuConfig.Workload
}

func (this *ConfigLoader) WorkloadRows() int64 {
	return globalTpuConfig.WorkloadRows
}

func (this *ConfigLoader) WorkloadCols() int64 {
	return globalTpuConfig.WorkloadCols
}

func (this *ConfigLoader) WorkloadDepth() int64 {
	return globalTpuConfig.WorkloadDepth
}

func (this *ConfigLoader) WorkloadJobs() int64 {
	return globalTpuConfig.WorkloadJobs
}

func (this *ConfigLoader) WorkloadSeed() int64 {
	return globalTpuConfig.WorkloadSeed
}

// ProgramPath resolves the configured descriptor program file, or returns the
// empty string when the built-in workload library should be used instead.
func (this *ConfigLoader) ProgramPath() string {
	raw_path := strings.TrimSpace(globalTpuConfig.ProgramPath)
	if raw_path == "" {
		return ""
	}
	return resolveConfigPath(raw_path)
}

// resolveConfigPath turns a possibly relative path from the command line into
// an absolute one. Relative paths are tried against the configured root
// directory, the working directory, and each of its ancestors, so the
// simulator can be launched from anywhere inside the repository.
func resolveConfigPath(raw_path string) string {
	trimmed := strings.TrimSpace(raw_path)
	if trimmed == "" {
		return trimmed
	}
	if filepath.IsAbs(trimmed) {
		return trimmed
	}

	candidates := make([]string, 0)
	seen := make(map[string]bool)

	appendCandidate := func(candidate string) {
		if candidate == "" {
			return
		}
		cleaned := filepath.Clean(candidate)
		if seen[cleaned] {
			return
		}
		seen[cleaned] = true
		candidates = append(candidates, cleaned)
	}

	if globalConfig.RootDirpath != "" {
		appendCandidate(filepath.Join(globalConfig.RootDirpath, trimmed))
	}

	if cwd, cwd_err := os.Getwd(); cwd_err == nil {
		dir := cwd
		for {
			appendCandidate(filepath.Join(dir, trimmed))
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	appendCandidate(trimmed)

	for _, candidate := range candidates {
		if _, stat_err := os.Stat(candidate); stat_err == nil {
			if abs_path, abs_err := filepath.Abs(candidate); abs_err == nil {
				return abs_path
			}
			return candidate
		}
	}

	if abs_path, abs_err := filepath.Abs(trimmed); abs_err == nil {
		return abs_path
	}
	return trimmed
}
