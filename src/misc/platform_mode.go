package misc

// PlatformMode defines the high-level execution platform that the simulator
// should instantiate. Additional modes can be added as new accelerator
// variants are integrated.
type PlatformMode string

const (
	// PlatformModeTpu represents the systolic-array tensor core with its DMA
	// front end and descriptor queue.
	PlatformModeTpu PlatformMode = "tpu"
)

// DefaultPlatformMode returns the mode used when no explicit selection is made.
func DefaultPlatformMode() PlatformMode {
	return PlatformModeTpu
}

// PlatformModeFromString converts an arbitrary string into a PlatformMode. When
// the provided value is unknown the bool return will be false.
func PlatformModeFromString(value string) (PlatformMode, bool) {
	switch value {
	case string(PlatformModeTpu):
		return PlatformModeTpu, true
	default:
		return "", false
	}
}
