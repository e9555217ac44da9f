package spad

import (
	"errors"

	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/misc"
)

// Streamer models the activation prefetch stream: once started it reads one
// element per cycle from the active generation at consecutive addresses,
// without per-access requests, and raises a completion flag after the
// programmed count. Restarting clears the flag.
type Streamer struct {
	buffer *Buffer

	next      int64
	remaining int64
	active    bool
	complete  bool

	stat_factory *misc.StatFactory
}

func (this *Streamer) Init(buffer *Buffer, stat_factory *misc.StatFactory) {
	if buffer == nil {
		err := errors.New("streamer requires a backing buffer")
		panic(err)
	}

	this.buffer = buffer
	this.stat_factory = stat_factory
}

// StartStream arms the streamer for count elements beginning at base. A zero
// or negative count completes immediately on the next tick.
func (this *Streamer) StartStream(base int64, count int64) {
	this.next = base
	this.remaining = count
	this.active = count > 0
	this.complete = count <= 0

	if this.stat_factory != nil {
		this.stat_factory.Increment("stream_starts", 1)
	}
}

func (this *Streamer) Active() bool {
	return this.active
}

// Complete reports the sticky completion flag. It stays set until the next
// StartStream.
func (this *Streamer) Complete() bool {
	return this.complete
}

// Tick produces the next element while the stream is active. The bool result
// reports whether the value is valid this cycle.
func (this *Streamer) Tick() (int32, bool) {
	if !this.active {
		return 0, false
	}

	value := this.buffer.Read(this.next)
	this.next++
	this.remaining--
	if this.stat_factory != nil {
		this.stat_factory.Increment("stream_elements", 1)
	}

	if this.remaining <= 0 {
		this.active = false
		this.complete = true
	}
	return value, true
}
