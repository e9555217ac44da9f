package dma

// Direction of a burst transfer relative to the accelerator.
type Direction int

const (
	// DirectionRead moves data from external memory into an on-chip buffer.
	DirectionRead Direction = iota
	// DirectionWrite moves data from an on-chip buffer out to external memory.
	DirectionWrite
)

func (this Direction) String() string {
	switch this {
	case DirectionRead:
		return "READ"
	case DirectionWrite:
		return "WRITE"
	default:
		return "UNKNOWN"
	}
}

// Transport is the external bus protocol the burst engine drives. The engine
// issues at most one call per cycle. RequestRead and RequestWrite model the
// address phase: they return false while the slave stalls and true on the
// cycle the burst is accepted. ReadBeat and WriteBeat then move one beat per
// cycle; their fault return aborts the burst.
type Transport interface {
	RequestRead(address int64, beats int64, beat_bytes int64) bool
	ReadBeat() (uint32, bool)
	RequestWrite(address int64, beats int64, beat_bytes int64) bool
	WriteBeat(raw uint32) bool
}
