package misc

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

type CommandLineValidator struct {
	command_line_parser *CommandLineParser
}

func (this *CommandLineValidator) Init(command_line_parser *CommandLineParser) {
	this.command_line_parser = command_line_parser
}

func (this *CommandLineValidator) Validate() {
	if this.command_line_parser.IntParameter("verbose") < 0 {
		err := errors.New("verbose < 0")
		panic(err)
	}

	platform_mode := this.command_line_parser.StringParameter("platform_mode")
	if _, ok := PlatformModeFromString(platform_mode); !ok {
		err := fmt.Errorf("platform_mode %s is not supported", platform_mode)
		panic(err)
	}

	root_dirpath := this.command_line_parser.StringParameter("root_dirpath")
	if strings.TrimSpace(root_dirpath) == "" {
		err := errors.New("root_dirpath is empty")
		panic(err)
	}
	if _, stat_err := os.Stat(root_dirpath); stat_err != nil {
		err := fmt.Errorf("root_dirpath %s does not exist", root_dirpath)
		panic(err)
	}

	if strings.TrimSpace(this.command_line_parser.StringParameter("bin_dirpath")) == "" {
		err := errors.New("bin_dirpath is empty")
		panic(err)
	}

	array_dim := this.command_line_parser.IntParameter("tpu_array_dim")
	if array_dim <= 0 {
		err := errors.New("tpu_array_dim <= 0")
		panic(err)
	}
	if array_dim > 256 {
		err := errors.New("tpu_array_dim > 256")
		panic(err)
	}

	weight_banks := this.command_line_parser.IntParameter("tpu_weight_banks")
	if weight_banks <= 0 {
		err := errors.New("tpu_weight_banks <= 0")
		panic(err)
	}
	if weight_banks > 64 {
		err := errors.New("tpu_weight_banks > 64")
		panic(err)
	}

	if this.command_line_parser.IntParameter("tpu_weight_bank_depth") <= 0 {
		err := errors.New("tpu_weight_bank_depth <= 0")
		panic(err)
	}

	activation_banks := this.command_line_parser.IntParameter("tpu_activation_banks")
	if activation_banks <= 0 {
		err := errors.New("tpu_activation_banks <= 0")
		panic(err)
	}
	if activation_banks > 64 {
		err := errors.New("tpu_activation_banks > 64")
		panic(err)
	}

	if this.command_line_parser.IntParameter("tpu_activation_bank_depth") <= 0 {
		err := errors.New("tpu_activation_bank_depth <= 0")
		panic(err)
	}

	if this.command_line_parser.IntParameter("tpu_output_elements") <= 0 {
		err := errors.New("tpu_output_elements <= 0")
		panic(err)
	}

	if this.command_line_parser.IntParameter("tpu_queue_depth") <= 0 {
		err := errors.New("tpu_queue_depth <= 0")
		panic(err)
	}

	max_burst_beats := this.command_line_parser.IntParameter("tpu_max_burst_beats")
	if max_burst_beats <= 0 {
		err := errors.New("tpu_max_burst_beats <= 0")
		panic(err)
	}
	if max_burst_beats > 256 {
		err := errors.New("tpu_max_burst_beats > 256")
		panic(err)
	}

	pipelined_drain := this.command_line_parser.IntParameter("tpu_pipelined_drain")
	if pipelined_drain != 0 && pipelined_drain != 1 {
		err := errors.New("tpu_pipelined_drain must be 0 or 1")
		panic(err)
	}

	word_bytes := int64(4)
	model_memory_bytes := this.command_line_parser.IntParameter("tpu_model_memory_bytes")
	if model_memory_bytes <= 0 {
		err := errors.New("tpu_model_memory_bytes <= 0")
		panic(err)
	}
	if model_memory_bytes%word_bytes != 0 {
		err := errors.New("tpu_model_memory_bytes is not word aligned")
		panic(err)
	}

	if this.command_line_parser.IntParameter("tpu_memory_read_latency") < 1 {
		err := errors.New("tpu_memory_read_latency < 1")
		panic(err)
	}

	if this.command_line_parser.IntParameter("tpu_memory_write_latency") < 1 {
		err := errors.New("tpu_memory_write_latency < 1")
		panic(err)
	}

	requant_shift := this.command_line_parser.IntParameter("tpu_requant_shift")
	if requant_shift < 0 || requant_shift > 31 {
		err := errors.New("tpu_requant_shift out of range [0, 31]")
		panic(err)
	}

	if this.command_line_parser.IntParameter("tpu_progress_interval") < 0 {
		err := errors.New("tpu_progress_interval < 0")
		panic(err)
	}

	if this.command_line_parser.IntParameter("tpu_stats_flush_interval") < 0 {
		err := errors.New("tpu_stats_flush_interval < 0")
		panic(err)
	}

	if strings.TrimSpace(this.command_line_parser.StringParameter("tpu_workload")) == "" {
		err := errors.New("tpu_workload is empty")
		panic(err)
	}

	workload_rows := this.command_line_parser.IntParameter("tpu_workload_rows")
	if workload_rows <= 0 {
		err := errors.New("tpu_workload_rows <= 0")
		panic(err)
	}
	if workload_rows%array_dim != 0 {
		err := errors.New("tpu_workload_rows is not a multiple of tpu_array_dim")
		panic(err)
	}

	workload_cols := this.command_line_parser.IntParameter("tpu_workload_cols")
	if workload_cols <= 0 {
		err := errors.New("tpu_workload_cols <= 0")
		panic(err)
	}
	if workload_cols%array_dim != 0 {
		err := errors.New("tpu_workload_cols is not a multiple of tpu_array_dim")
		panic(err)
	}

	if this.command_line_parser.IntParameter("tpu_workload_depth") <= 0 {
		err := errors.New("tpu_workload_depth <= 0")
		panic(err)
	}

	if this.command_line_parser.IntParameter("tpu_workload_jobs") <= 0 {
		err := errors.New("tpu_workload_jobs <= 0")
		panic(err)
	}

	if this.command_line_parser.IntParameter("tpu_workload_seed") < 0 {
		err := errors.New("tpu_workload_seed < 0")
		panic(err)
	}

	program_path := strings.TrimSpace(this.command_line_parser.StringParameter("tpu_program_path"))
	if program_path != "" {
		resolved := resolveConfigPath(program_path)
		if _, stat_err := os.Stat(resolved); stat_err != nil {
			err := fmt.Errorf("tpu_program_path %s does not exist", program_path)
			panic(err)
		}
	}
}
