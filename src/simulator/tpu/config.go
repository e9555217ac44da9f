package tpu

import "github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/misc"

// Config bundles the runtime parameters required to construct one accelerator
// core. All dimensions are element granular.
type Config struct {
	ArrayDim            int64
	WeightBanks         int64
	WeightBankDepth     int64
	ActivationBanks     int64
	ActivationBankDepth int64
	OutputElements      int64
	QueueDepth          int64
	MaxBurstBeats       int64
	PipelinedDrain      bool
	RequantShift        int64
}

// LoadConfig pulls core-specific parameters from the shared ConfigLoader.
func LoadConfig(loader *misc.ConfigLoader) *Config {
	config := new(Config)

	config.ArrayDim = loader.ArrayDim()
	config.WeightBanks = loader.WeightBanks()
	config.WeightBankDepth = loader.WeightBankDepth()
	config.ActivationBanks = loader.ActivationBanks()
	config.ActivationBankDepth = loader.ActivationBankDepth()
	config.OutputElements = loader.OutputElements()
	config.QueueDepth = loader.QueueDepth()
	config.MaxBurstBeats = loader.MaxBurstBeats()
	config.PipelinedDrain = loader.PipelinedDrain()
	config.RequantShift = loader.RequantShift()

	return config
}
