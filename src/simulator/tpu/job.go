package tpu

// TileJob is the scheduler's working state for one descriptor. Offsets are
// element granular and advance by the array dimension per tile; the three
// counters track progress inside the current tile's phases.
type TileJob struct {
	Descriptor *Descriptor
	Geometry   Geometry

	RowTileOffset int64
	ColTileOffset int64

	LoadCounter  int64
	ComputeCycle int64
	DrainCount   int64

	TilesDone int64
}

func (this *TileJob) Init(descriptor *Descriptor, geometry Geometry) {
	this.Descriptor = descriptor
	this.Geometry = geometry
	this.RowTileOffset = 0
	this.ColTileOffset = 0
	this.LoadCounter = 0
	this.ComputeCycle = 0
	this.DrainCount = 0
	this.TilesDone = 0
}

// LastColTile reports whether the current tile is the final one in its row.
func (this *TileJob) LastColTile() bool {
	return this.ColTileOffset+this.Geometry.ArrayDim >= this.Geometry.TotalCols
}

// LastRowTile reports whether the current tile row is the final one.
func (this *TileJob) LastRowTile() bool {
	return this.RowTileOffset+this.Geometry.ArrayDim >= this.Geometry.TotalRows
}
