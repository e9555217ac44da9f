package host

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/simulator/tpu"
	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/simulator/tpu/mxu"
)

// Library provides canned self-checking programs sized for a given core
// configuration. Each builder generates operand images, the job list, and
// the full expected output.
type Library struct {
	config *tpu.Config
}

// NewLibrary constructs a program library sized for the given core.
func NewLibrary(config *tpu.Config) *Library {
	if config == nil || config.ArrayDim <= 0 {
		err := errors.New("library requires a sized core config")
		panic(err)
	}
	return &Library{config: config}
}

// Gemm builds one matmul job covering row_tiles by col_tiles output tiles
// with the given reduction depth.
func (lib *Library) Gemm(row_tiles int64, col_tiles int64, depth int64, seed int64) *Program {
	lib.checkShape(row_tiles, col_tiles, depth)

	n := lib.config.ArrayDim
	rows := row_tiles * n
	cols := col_tiles * n

	rng := rand.New(rand.NewSource(seed))
	weights := lib.weightImage(rng, cols, depth, smallValue)
	activations := lib.activationImage(rng, rows, depth, smallValue)

	program := &Program{
		Name:   fmt.Sprintf("gemm_%dx%dx%d", rows, cols, depth),
		Images: lib.layoutImages(weights, activations),
		Jobs: []JobSpec{
			{
				Op:   "matmul",
				Irq:  true,
				K:    uint8(depth),
				MSel: uint8(row_tiles - 1),
				NSel: uint8(col_tiles - 1),
			},
		},
	}
	program.Checks = lib.gemmChecks(weights, activations, rows, cols, depth, 0, 0, false)
	return program
}

// StreamedGemm is Gemm with the activation operand fed through the
// dataflow port instead of discrete reads.
func (lib *Library) StreamedGemm(row_tiles int64, col_tiles int64, depth int64, seed int64) *Program {
	program := lib.Gemm(row_tiles, col_tiles, depth, seed)
	program.Name = "streamed_" + program.Name
	program.Jobs[0].Stream = true
	return program
}

// QuantizedGemm builds a matmul job running the wide accumulate path, so
// results pass through the arithmetic shift and saturate into signed bytes.
// Operand magnitudes are chosen to make some lanes saturate.
func (lib *Library) QuantizedGemm(row_tiles int64, col_tiles int64, depth int64, seed int64) *Program {
	lib.checkShape(row_tiles, col_tiles, depth)

	n := lib.config.ArrayDim
	rows := row_tiles * n
	cols := col_tiles * n

	rng := rand.New(rand.NewSource(seed))
	weights := lib.weightImage(rng, cols, depth, largeValue)
	activations := lib.activationImage(rng, rows, depth, largeValue)

	program := &Program{
		Name:   fmt.Sprintf("quantized_gemm_%dx%dx%d", rows, cols, depth),
		Images: lib.layoutImages(weights, activations),
		Jobs: []JobSpec{
			{
				Op:   "matmul",
				Irq:  true,
				Wide: true,
				K:    uint8(depth),
				MSel: uint8(row_tiles - 1),
				NSel: uint8(col_tiles - 1),
			},
		},
	}
	program.Checks = lib.gemmChecks(weights, activations, rows, cols, depth, 0, lib.config.RequantShift, true)
	return program
}

// ChainedGemms builds a back-to-back sequence of single-tile matmuls. All
// jobs share one weight image; each consumes its own activation rows and
// writes its own output tile. Only the final job raises the interrupt.
func (lib *Library) ChainedGemms(count int64, depth int64, seed int64) *Program {
	if count < 1 {
		err := errors.New("chained gemm count < 1")
		panic(err)
	}
	lib.checkShape(count, 1, depth)

	n := lib.config.ArrayDim
	rows := count * n

	rng := rand.New(rand.NewSource(seed))
	weights := lib.weightImage(rng, n, depth, smallValue)
	activations := lib.activationImage(rng, rows, depth, smallValue)

	jobs := make([]JobSpec, 0, count)
	checks := make([]CheckSpec, 0, count*n*n)
	for index := int64(0); index < count; index++ {
		jobs = append(jobs, JobSpec{
			Op:             "matmul",
			TileId:         uint32(index),
			Chain:          index+1 < count,
			Irq:            index+1 == count,
			OutputBase:     uint32(index * n * n),
			ActivationBase: uint32(index * n * depth),
			K:              uint8(depth),
		})

		slice := activations[index*n*depth : (index+1)*n*depth]
		checks = append(checks, lib.gemmChecks(weights, slice, n, n, depth, index*n*n, 0, false)...)
	}

	return &Program{
		Name:   fmt.Sprintf("chained_gemms_%dx%d", count, depth),
		Images: lib.layoutImages(weights, activations),
		Jobs:   jobs,
		Checks: checks,
	}
}

// Build resolves a workload name from the command line into a program.
// Degenerate shape parameters fall back to a single full-depth tile.
func (lib *Library) Build(name string, row_tiles int64, col_tiles int64, depth int64, jobs int64, seed int64) (*Program, error) {
	if row_tiles < 1 {
		row_tiles = 1
	}
	if col_tiles < 1 {
		col_tiles = 1
	}
	if depth < 1 {
		depth = lib.config.ArrayDim
	}
	if jobs < 1 {
		jobs = 1
	}

	switch name {
	case "gemm":
		return lib.Gemm(row_tiles, col_tiles, depth, seed), nil
	case "streamed_gemm":
		return lib.StreamedGemm(row_tiles, col_tiles, depth, seed), nil
	case "quantized_gemm":
		return lib.QuantizedGemm(row_tiles, col_tiles, depth, seed), nil
	case "chained_gemms":
		return lib.ChainedGemms(jobs, depth, seed), nil
	default:
		return nil, fmt.Errorf("unknown workload %q", name)
	}
}

func (lib *Library) checkShape(row_tiles int64, col_tiles int64, depth int64) {
	if row_tiles < 1 || row_tiles > 16 || col_tiles < 1 || col_tiles > 16 {
		err := errors.New("tile count outside the selector range")
		panic(err)
	}
	if depth < 1 || depth > lib.config.ArrayDim {
		err := errors.New("reduction depth exceeds the array dimension")
		panic(err)
	}

	n := lib.config.ArrayDim
	if col_tiles*n*depth > lib.config.WeightBanks*lib.config.WeightBankDepth {
		err := errors.New("weight image exceeds scratchpad capacity")
		panic(err)
	}
	if row_tiles*n*depth > lib.config.ActivationBanks*lib.config.ActivationBankDepth {
		err := errors.New("activation image exceeds scratchpad capacity")
		panic(err)
	}
	if row_tiles*col_tiles*n*n > lib.config.OutputElements {
		err := errors.New("result exceeds the output store")
		panic(err)
	}
}

// weightImage lays out a depth-by-cols operand in the column-tiled order
// the tile walker's address generator expects: column tile regions of
// n*depth elements, each holding depth rows of n lanes.
func (lib *Library) weightImage(rng *rand.Rand, cols int64, depth int64, draw func(*rand.Rand) int32) []int32 {
	n := lib.config.ArrayDim
	image := make([]int32, cols*depth)
	for j := int64(0); j < cols; j++ {
		for k := int64(0); k < depth; k++ {
			image[(j/n)*n*depth+k*n+j%n] = draw(rng)
		}
	}
	return image
}

func (lib *Library) activationImage(rng *rand.Rand, rows int64, depth int64, draw func(*rand.Rand) int32) []int32 {
	image := make([]int32, rows*depth)
	for i := int64(0); i < rows; i++ {
		for k := int64(0); k < depth; k++ {
			image[i*depth+k] = draw(rng)
		}
	}
	return image
}

func (lib *Library) layoutImages(weights []int32, activations []int32) []ImageSpec {
	activation_address := alignUp(int64(len(weights)), 64)
	return []ImageSpec{
		{Label: "weights", Target: "weight", Address: 0, Values: weights},
		{Label: "activations", Target: "activation", Address: activation_address, Values: activations},
	}
}

func (lib *Library) gemmChecks(weights []int32, activations []int32, rows int64, cols int64, depth int64, output_base int64, shift int64, wide bool) []CheckSpec {
	n := lib.config.ArrayDim
	checks := make([]CheckSpec, 0, rows*cols)
	for i := int64(0); i < rows; i++ {
		for j := int64(0); j < cols; j++ {
			acc := int64(0)
			for k := int64(0); k < depth; k++ {
				acc += int64(activations[i*depth+k]) * int64(weights[(j/n)*n*depth+k*n+j%n])
			}
			checks = append(checks, CheckSpec{
				Address: output_base + i*cols + j,
				Value:   mxu.Narrow(acc, wide, shift),
			})
		}
	}
	return checks
}

func smallValue(rng *rand.Rand) int32 {
	return int32(rng.Intn(7)) - 3
}

func largeValue(rng *rand.Rand) int32 {
	return int32(rng.Intn(41)) - 20
}

func alignUp(value int64, alignment int64) int64 {
	return (value + alignment - 1) / alignment * alignment
}
