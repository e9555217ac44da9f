package host

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/simulator/tpu"
	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/simulator/tpu/dma"
)

// ImageSpec places one operand image in external memory. Values are signed
// byte quantities stored one per element; the driver moves them into the
// named scratchpad over the burst engine before any job runs.
type ImageSpec struct {
	Label        string  `json:"label,omitempty"`
	Target       string  `json:"target"`
	Address      int64   `json:"address"`
	InternalBase int64   `json:"internal_base,omitempty"`
	Values       []int32 `json:"values"`
}

// JobSpec describes one command queue entry. Base fields address scratchpad
// elements, not bytes.
type JobSpec struct {
	Op             string `json:"op"`
	TileId         uint32 `json:"tile_id,omitempty"`
	Chain          bool   `json:"chain,omitempty"`
	Irq            bool   `json:"irq,omitempty"`
	Wide           bool   `json:"wide,omitempty"`
	Stream         bool   `json:"stream,omitempty"`
	OutputBase     uint32 `json:"output_base"`
	ActivationBase uint32 `json:"activation_base"`
	WeightBase     uint16 `json:"weight_base"`
	K              uint8  `json:"k"`
	MSel           uint8  `json:"m_sel,omitempty"`
	NSel           uint8  `json:"n_sel,omitempty"`
}

// CheckSpec pins one expected value in the output store, addressed in
// elements relative to the store base.
type CheckSpec struct {
	Address int64 `json:"address"`
	Value   int32 `json:"value"`
}

// Program bundles the operand images, the job list, and the expected
// results for one run of the accelerator.
type Program struct {
	Name   string      `json:"name"`
	Images []ImageSpec `json:"images"`
	Jobs   []JobSpec   `json:"jobs"`
	Checks []CheckSpec `json:"checks,omitempty"`
}

// LoadProgram reads a JSON encoded program from disk and validates it.
func LoadProgram(path string) (*Program, error) {
	if path == "" {
		return nil, errors.New("empty program path")
	}

	clean := filepath.Clean(path)
	data, err := os.ReadFile(clean)
	if err != nil {
		return nil, fmt.Errorf("read program: %w", err)
	}

	program := new(Program)
	if err := json.Unmarshal(data, program); err != nil {
		return nil, fmt.Errorf("parse program %s: %w", clean, err)
	}
	if err := program.Validate(); err != nil {
		return nil, fmt.Errorf("program %s: %w", clean, err)
	}
	return program, nil
}

// Validate rejects programs the driver could not run to completion.
func (program *Program) Validate() error {
	if program == nil {
		return errors.New("nil program")
	}
	if len(program.Jobs) == 0 {
		return errors.New("program contains no jobs")
	}

	for index, image := range program.Images {
		if _, err := parseImageTarget(image.Target); err != nil {
			return fmt.Errorf("image %d: %w", index, err)
		}
		if image.Address < 0 {
			return fmt.Errorf("image %d: negative external address %d", index, image.Address)
		}
		if image.InternalBase < 0 {
			return fmt.Errorf("image %d: negative internal base %d", index, image.InternalBase)
		}
		if len(image.Values) == 0 {
			return fmt.Errorf("image %d: no values", index)
		}
		for _, value := range image.Values {
			if value < -128 || value > 127 {
				return fmt.Errorf("image %d: value %d outside the signed byte range", index, value)
			}
		}
	}

	for index, job := range program.Jobs {
		opcode, err := parseOpcode(job.Op)
		if err != nil {
			return fmt.Errorf("job %d: %w", index, err)
		}
		if job.MSel > 15 || job.NSel > 15 {
			return fmt.Errorf("job %d: tile selector out of range", index)
		}
		if opcode == tpu.OpcodeMatmul && job.K == 0 {
			return fmt.Errorf("job %d: zero reduction depth", index)
		}
	}

	// A trailing chain flag would leave the dispatcher waiting forever.
	if program.Jobs[len(program.Jobs)-1].Chain {
		return errors.New("final job must not set chain")
	}

	for index, check := range program.Checks {
		if check.Address < 0 {
			return fmt.Errorf("check %d: negative address %d", index, check.Address)
		}
	}

	return nil
}

// Descriptors translates the job list into command queue entries.
func (program *Program) Descriptors() ([]*tpu.Descriptor, error) {
	descriptors := make([]*tpu.Descriptor, 0, len(program.Jobs))
	for index, job := range program.Jobs {
		opcode, err := parseOpcode(job.Op)
		if err != nil {
			return nil, fmt.Errorf("job %d: %w", index, err)
		}

		descriptor := new(tpu.Descriptor)
		descriptor.Init()
		descriptor.Opcode = opcode
		descriptor.Chain = job.Chain
		descriptor.IrqEn = job.Irq
		descriptor.WideAccumulate = job.Wide
		descriptor.DataflowStream = job.Stream
		descriptor.TileId = job.TileId
		descriptor.OutputBase = job.OutputBase
		descriptor.ActivationBase = job.ActivationBase
		descriptor.WeightBase = job.WeightBase
		descriptor.KTileLen = job.K
		descriptor.MSel = job.MSel
		descriptor.NSel = job.NSel
		descriptors = append(descriptors, descriptor)
	}
	return descriptors, nil
}

// ImageEnd reports the first external byte past all images, which the
// driver uses as its readback staging base.
func (program *Program) ImageEnd() int64 {
	end := int64(0)
	for _, image := range program.Images {
		limit := image.Address + int64(len(image.Values))
		if limit > end {
			end = limit
		}
	}
	return end
}

func parseImageTarget(target string) (dma.Target, error) {
	switch strings.ToLower(strings.TrimSpace(target)) {
	case "weight", "weights":
		return dma.TargetWeight, nil
	case "activation", "activations":
		return dma.TargetActivation, nil
	default:
		return dma.TargetWeight, fmt.Errorf("unknown image target %q", target)
	}
}

func parseOpcode(op string) (tpu.Opcode, error) {
	switch strings.ToLower(strings.TrimSpace(op)) {
	case "matmul":
		return tpu.OpcodeMatmul, nil
	case "nop":
		return tpu.OpcodeNop, nil
	default:
		return tpu.OpcodeNop, fmt.Errorf("unknown opcode %q", op)
	}
}
