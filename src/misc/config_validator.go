package misc

import (
	"errors"
	"fmt"
)

// ConfigValidator checks cross-field consistency of the loaded configuration.
// Per-option range checks live in CommandLineValidator; this validator catches
// combinations that individually pass but cannot work together.
type ConfigValidator struct {
	config_loader *ConfigLoader
}

func (this *ConfigValidator) Init(config_loader *ConfigLoader) {
	this.config_loader = config_loader
}

func (this *ConfigValidator) Validate() {
	array_dim := this.config_loader.ArrayDim()
	depth := this.config_loader.WorkloadDepth()

	if depth > array_dim {
		err := fmt.Errorf("workload depth %d exceeds the array reduction depth %d", depth, array_dim)
		panic(err)
	}

	weight_capacity := this.config_loader.WeightBanks() * this.config_loader.WeightBankDepth()
	weight_need := (this.config_loader.WorkloadCols()-array_dim)*depth + array_dim*array_dim
	if weight_need > weight_capacity {
		err := fmt.Errorf("weight buffer capacity %d cannot hold one tile sweep (%d elements)",
			weight_capacity, weight_need)
		panic(err)
	}

	activation_capacity := this.config_loader.ActivationBanks() * this.config_loader.ActivationBankDepth()
	activation_need := this.config_loader.WorkloadRows() * depth
	if activation_need > activation_capacity {
		err := fmt.Errorf("activation buffer capacity %d cannot hold the workload (%d elements)",
			activation_capacity, activation_need)
		panic(err)
	}

	output_need := this.config_loader.WorkloadRows() * this.config_loader.WorkloadCols()
	if output_need > this.config_loader.OutputElements() {
		err := fmt.Errorf("output store %d cannot hold the workload result (%d elements)",
			this.config_loader.OutputElements(), output_need)
		panic(err)
	}

	memory_need := activation_need +
		this.config_loader.WorkloadCols()*depth +
		output_need*this.config_loader.WordBytes()
	if memory_need > this.config_loader.ModelMemoryBytes() {
		err := errors.New("tpu_model_memory_bytes cannot hold the workload images")
		panic(err)
	}

	if array_dim*array_dim > 65536 {
		err := errors.New("tpu_array_dim exceeds the physical weight register capacity")
		panic(err)
	}
}
