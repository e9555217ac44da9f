package spad

import (
	"fmt"

	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/misc"
)

// OutputStore is the flat result scratchpad the tile scheduler drains into.
// Unlike the operand buffers it is not double-buffered: the scheduler is its
// only writer and the DMA write-back path its only concurrent reader.
type OutputStore struct {
	name        string
	data        []int32
	write_count int64

	stat_factory *misc.StatFactory
}

func (this *OutputStore) Init(name string, size int64, stat_factory *misc.StatFactory) {
	if size <= 0 {
		err := fmt.Errorf("%s store size %d <= 0", name, size)
		panic(err)
	}

	this.name = name
	this.data = make([]int32, size)
	this.stat_factory = stat_factory
}

func (this *OutputStore) Size() int64 {
	return int64(len(this.data))
}

func (this *OutputStore) Write(address int64, value int32) {
	this.validateRange(address)

	this.data[address] = value
	this.write_count++
	if this.stat_factory != nil {
		this.stat_factory.Increment(this.name+"_writes", 1)
	}
}

func (this *OutputStore) Read(address int64) int32 {
	this.validateRange(address)
	return this.data[address]
}

// Writes returns the cumulative element write count, one per row and column
// pair the scheduler has drained.
func (this *OutputStore) Writes() int64 {
	return this.write_count
}

func (this *OutputStore) validateRange(address int64) {
	if address < 0 || address >= int64(len(this.data)) {
		err := fmt.Errorf("%s store address %d out of range [0, %d)", this.name, address, len(this.data))
		panic(err)
	}
}
