package tpu

// Queue error codes, latched by the dispatcher when a descriptor fails and
// held until the host clears them.
const (
	ErrorCodeNone          uint32 = 0
	ErrorCodeIllegalOpcode uint32 = 1
	ErrorCodeBadGeometry   uint32 = 2
)

// Aggregate error bits as seen through the status register. Each bit tracks
// one sticky source; the top-level error flag is their OR.
const (
	AggregateErrorQueue    uint32 = 1 << 0
	AggregateErrorDma      uint32 = 1 << 1
	AggregateErrorOverflow uint32 = 1 << 2
)
