package tpu

// Geometry is the tile sweep derived from one descriptor. The selectors scale
// the array dimension, so total rows and columns are always whole multiples of
// it and the sweep needs no edge-tile handling.
type Geometry struct {
	ArrayDim       int64
	TotalRows      int64
	TotalCols      int64
	Depth          int64
	WeightBase     int64
	ActivationBase int64
	OutputBase     int64
}

// DeriveGeometry expands the descriptor's packed dimensions against the
// configured array size.
func DeriveGeometry(descriptor *Descriptor, array_dim int64) Geometry {
	return Geometry{
		ArrayDim:       array_dim,
		TotalRows:      (int64(descriptor.MSel) + 1) * array_dim,
		TotalCols:      (int64(descriptor.NSel) + 1) * array_dim,
		Depth:          int64(descriptor.KTileLen),
		WeightBase:     int64(descriptor.WeightBase),
		ActivationBase: int64(descriptor.ActivationBase),
		OutputBase:     int64(descriptor.OutputBase),
	}
}

// Valid reports whether the sweep describes any work at all. Hosts are
// expected to reject degenerate dimensions before enqueueing; this is the
// dispatch-side backstop.
func (this Geometry) Valid() bool {
	return this.Depth > 0 && this.TotalRows > 0 && this.TotalCols > 0
}

// RowTiles is the number of tile rows in the sweep.
func (this Geometry) RowTiles() int64 {
	return this.TotalRows / this.ArrayDim
}

// ColTiles is the number of tile columns in the sweep.
func (this Geometry) ColTiles() int64 {
	return this.TotalCols / this.ArrayDim
}

// Tiles is the total tile count of the sweep.
func (this Geometry) Tiles() int64 {
	return this.RowTiles() * this.ColTiles()
}

// WeightReadAddress is the bank-interleaved address of the weight row fetched
// on one LOAD_WEIGHTS cycle. Column tiles are laid out K elements apart, and
// each load step advances one array row.
func (this Geometry) WeightReadAddress(col_tile_offset int64, load_counter int64) int64 {
	return this.WeightBase + col_tile_offset*this.Depth + load_counter*this.ArrayDim
}

// ActivationReadAddress is the address streamed on one COMPUTE cycle.
func (this Geometry) ActivationReadAddress(row_tile_offset int64, compute_cycle int64) int64 {
	return this.ActivationBase + row_tile_offset*this.Depth + compute_cycle
}

// OutputRowAddress is the base address of one drained output row in the
// row-major result matrix.
func (this Geometry) OutputRowAddress(row_index int64, col_tile_offset int64) int64 {
	return this.OutputBase + row_index*this.TotalCols + col_tile_offset
}
