package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/misc"
	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/simulator"
	"github.com/tebeka/atexit"
)

func main() {
	command_line_parser := InitCommandLineParser()
	command_line_parser.Parse(os.Args)

	if command_line_parser.IsArgSet("help") {
		fmt.Printf("%s", command_line_parser.StringifyHelpMsgs())
	} else {
		misc.ConfigureRuntime(command_line_parser)

		command_line_validator := new(misc.CommandLineValidator)
		command_line_validator.Init(command_line_parser)
		command_line_validator.Validate()

		config_loader := new(misc.ConfigLoader)
		config_loader.Init()

		config_validator := new(misc.ConfigValidator)
		config_validator.Init(config_loader)
		config_validator.Validate()

		bin_dirpath := command_line_parser.StringParameter("bin_dirpath")
		args_filepath := filepath.Join(bin_dirpath, "args.txt")
		options_filepath := filepath.Join(bin_dirpath, "options.txt")

		args_file_dumper := new(misc.FileDumper)
		args_file_dumper.Init(args_filepath)
		args_file_dumper.WriteLines([]string{command_line_parser.StringifyArgs()})

		options_file_dumper := new(misc.FileDumper)
		options_file_dumper.Init(options_filepath)
		options_file_dumper.WriteLines([]string{command_line_parser.StringifyOptions()})

		simulator_ := new(simulator.Simulator)
		simulator_.Init(command_line_parser)

		// Handlers run in reverse registration order, so Dump lands before
		// Fini tears the platform down.
		atexit.Register(simulator_.Fini)
		atexit.Register(simulator_.Dump)

		for !simulator_.IsFinished() {
			simulator_.Cycle()
		}
	}

	atexit.Exit(0)
}

func InitCommandLineParser() *misc.CommandLineParser {
	command_line_parser := new(misc.CommandLineParser)
	command_line_parser.Init()

	// Explanation of verbose level
	// level 0: Only prints simulation output
	// level 1: level 0 + prints driver state transitions per cycle
	command_line_parser.AddOption(misc.INT, "verbose", "0", "verbosity of the simulation")

	command_line_parser.AddOption(
		misc.STRING,
		"platform_mode",
		string(misc.DefaultPlatformMode()),
		"simulation platform mode (tpu)",
	)

	command_line_parser.AddOption(misc.STRING, "root_dirpath", ".",
		"path to the root directory")
	command_line_parser.AddOption(misc.STRING, "bin_dirpath", "bin",
		"path to the bin directory")

	command_line_parser.AddOption(misc.INT, "tpu_array_dim", "8",
		"systolic array dimension in processing elements")
	command_line_parser.AddOption(misc.INT, "tpu_weight_banks", "8",
		"number of weight scratchpad banks")
	command_line_parser.AddOption(misc.INT, "tpu_weight_bank_depth", "2048",
		"weight scratchpad bank depth in elements")
	command_line_parser.AddOption(misc.INT, "tpu_activation_banks", "8",
		"number of activation scratchpad banks")
	command_line_parser.AddOption(misc.INT, "tpu_activation_bank_depth", "2048",
		"activation scratchpad bank depth in elements")
	command_line_parser.AddOption(misc.INT, "tpu_output_elements", "65536",
		"output store capacity in 32-bit elements")
	command_line_parser.AddOption(misc.INT, "tpu_queue_depth", "8",
		"command queue depth in descriptors")
	command_line_parser.AddOption(misc.INT, "tpu_max_burst_beats", "16",
		"maximum DMA burst length in beats")
	command_line_parser.AddOption(misc.INT, "tpu_pipelined_drain", "0",
		"overlap drain with the next tile load (0|1)")

	command_line_parser.AddOption(misc.INT, "tpu_model_memory_bytes", "1048576",
		"model memory size in bytes")
	command_line_parser.AddOption(
		misc.INT,
		"tpu_memory_read_latency",
		"4",
		"model memory read latency [cycle]",
	)
	command_line_parser.AddOption(
		misc.INT,
		"tpu_memory_write_latency",
		"4",
		"model memory write latency [cycle]",
	)

	command_line_parser.AddOption(misc.INT, "tpu_requant_shift", "5",
		"arithmetic right shift applied on the wide accumulate path")

	command_line_parser.AddOption(misc.INT, "tpu_progress_interval", "1000",
		"cycles between progress reports, 0 disables")
	command_line_parser.AddOption(misc.INT, "tpu_stats_flush_interval", "0",
		"cycles between stats snapshots, 0 writes stats once at the end")

	command_line_parser.AddOption(misc.STRING, "tpu_workload", "gemm",
		"workload name (gemm|streamed_gemm|quantized_gemm|chained_gemms)")
	command_line_parser.AddOption(misc.INT, "tpu_workload_rows", "16",
		"workload output rows in elements")
	command_line_parser.AddOption(misc.INT, "tpu_workload_cols", "16",
		"workload output columns in elements")
	command_line_parser.AddOption(misc.INT, "tpu_workload_depth", "8",
		"workload reduction depth in elements")
	command_line_parser.AddOption(misc.INT, "tpu_workload_jobs", "2",
		"job count for chained workloads")
	command_line_parser.AddOption(misc.INT, "tpu_workload_seed", "1",
		"seed for workload operand generation")

	command_line_parser.AddOption(
		misc.STRING,
		"tpu_program_path",
		"",
		"path to a program JSON overriding the built-in workloads",
	)

	return command_line_parser
}
