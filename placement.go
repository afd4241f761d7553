package purfectgfx

// ImageRef is a placement: an instance of an Image anchored to the text
// grid. A virtual ref is a template driven by grid placeholder cells and
// never rendered directly; it is materialized per-cell into real refs.
type ImageRef struct {
	internalID uint32
	clientID   uint32

	// IsVirtual marks a template placement. Virtual refs are never
	// matched by scroll or clear filters that operate on real refs.
	IsVirtual bool

	// VirtualID is the internal id of the originating virtual ref when
	// this ref was materialized from a placeholder cell, else 0.
	VirtualID uint32

	StartRow int
	StartCol int

	// Requested span in cells. 0 means derive from the image size.
	NumCols int
	NumRows int

	// Effective span after edge clipping.
	EffectiveNumCols int
	EffectiveNumRows int

	// Source rectangle in image pixels.
	SrcX      float32
	SrcY      float32
	SrcWidth  float32
	SrcHeight float32

	// Sub-cell pixel offsets of the image within the starting cell.
	CellXOffset int
	CellYOffset int

	ZIndex int32
}

// clone copies every field except the internal id into a new ref.
func (r *ImageRef) clone() *ImageRef {
	c := *r
	c.internalID = 0
	return &c
}

// InternalID returns the ref's internal id. It is never 0.
func (r *ImageRef) InternalID() uint32 { return r.internalID }

// ClientID returns the client-visible placement id, or 0.
func (r *ImageRef) ClientID() uint32 { return r.clientID }

// endRow returns the first grid row below the ref.
func (r *ImageRef) endRow() int { return r.StartRow + r.EffectiveNumRows }

// endCol returns the first grid column right of the ref.
func (r *ImageRef) endCol() int { return r.StartCol + r.EffectiveNumCols }

// occupiesCell reports whether the ref covers the given grid cell.
func (r *ImageRef) occupiesCell(row, col int) bool {
	return row >= r.StartRow && row < r.endRow() && col >= r.StartCol && col < r.endCol()
}

// overlapsRows reports whether the ref covers any row in [top, bottom].
func (r *ImageRef) overlapsRows(top, bottom int) bool {
	return r.StartRow <= bottom && r.endRow()-1 >= top
}
