package purfectgfx

import "math"

// imageFit describes the aspect-preserving fit of an image into a box of
// cells: a uniform scale from image pixels to screen pixels, and the
// pixel offset of the scaled image's top-left corner within the box.
type imageFit struct {
	scale float64
	dx    float64
	dy    float64
}

// fitImageInBox fits an image into boxCols x boxRows cells preserving
// aspect ratio. If the image aspect is wider than the box it is fitted
// to the box width and centered vertically, otherwise fitted to the box
// height and centered horizontally.
func fitImageInBox(imgWidth, imgHeight, boxCols, boxRows, cellWidth, cellHeight int) imageFit {
	boxW := float64(boxCols * cellWidth)
	boxH := float64(boxRows * cellHeight)
	var fit imageFit
	if float64(imgWidth)*boxH >= float64(imgHeight)*boxW {
		// Image is wider than the box.
		fit.scale = boxW / float64(imgWidth)
		fit.dy = (boxH - float64(imgHeight)*fit.scale) / 2
	} else {
		fit.scale = boxH / float64(imgHeight)
		fit.dx = (boxW - float64(imgWidth)*fit.scale) / 2
	}
	return fit
}

// sourceRange inverts the fit transform for a span of screen pixels
// along one axis, returning source pixel coordinates.
func (fit imageFit) sourceRange(screen0, screen1 int, offset float64) (float64, float64) {
	return (float64(screen0) - offset) / fit.scale, (float64(screen1) - offset) / fit.scale
}

// defaultSpan returns the number of cells an image occupies at its
// natural size.
func defaultSpan(imgPixels, cellPixels int) int {
	if cellPixels <= 0 {
		return 1
	}
	n := (imgPixels + cellPixels - 1) / cellPixels
	if n < 1 {
		n = 1
	}
	return n
}

// resolveRef computes the source rectangle, effective spans, sub-cell
// offsets and adjusted start position for a placement. It returns false
// when the placement is fully out of bounds after clipping, in which
// case the placement is a silent no-op and must not be rendered.
func resolveRef(img *Image, ref *ImageRef, cellWidth, cellHeight int) bool {
	if img.Width <= 0 || img.Height <= 0 || cellWidth <= 0 || cellHeight <= 0 {
		return false
	}
	cols := ref.NumCols
	rows := ref.NumRows
	if cols == 0 {
		cols = defaultSpan(img.Width, cellWidth)
	}
	if rows == 0 {
		rows = defaultSpan(img.Height, cellHeight)
	}

	fit := fitImageInBox(img.Width, img.Height, cols, rows, cellWidth, cellHeight)

	startCol, effCols, srcX, srcW, xoff, ok := clipAxis(
		cols, cellWidth, fit.dx, fit.scale, img.Width, ref.StartCol)
	if !ok {
		return false
	}
	startRow, effRows, srcY, srcH, yoff, ok := clipAxis(
		rows, cellHeight, fit.dy, fit.scale, img.Height, ref.StartRow)
	if !ok {
		return false
	}

	ref.StartCol, ref.StartRow = startCol, startRow
	ref.EffectiveNumCols, ref.EffectiveNumRows = effCols, effRows
	ref.SrcX, ref.SrcY = float32(srcX), float32(srcY)
	ref.SrcWidth, ref.SrcHeight = float32(srcW), float32(srcH)
	ref.CellXOffset, ref.CellYOffset = xoff, yoff
	return true
}

// clipAxis clips one axis of a fitted placement.
//
// A negative source origin (the box extends before the image starts)
// shrinks the source range, converting the overflow into whole leading
// cells plus a sub-cell pixel offset and advancing the start position.
// A source range past the image's far edge trims only whole redundant
// trailing cells; partial edge cells are kept so no visible seam
// appears. Either clip consuming the entire span makes the placement a
// no-op.
func clipAxis(span, cellPixels int, offset, scale float64, imgPixels, start int) (
	newStart, effSpan int, src0, srcLen float64, subCellOffset int, ok bool) {

	s0, s1 := (0-offset)/scale, (float64(span*cellPixels)-offset)/scale

	leadCells := 0
	if s0 < 0 {
		// offset is the screen-pixel overflow before the image.
		leadCells = int(offset) / cellPixels
		subCellOffset = int(math.Round(offset)) - leadCells*cellPixels
		if leadCells >= span {
			return 0, 0, 0, 0, 0, false
		}
		s0 = 0
	}

	trailCells := 0
	if s1 > float64(imgPixels) {
		redundant := float64(span*cellPixels) - (offset + float64(imgPixels)*scale)
		if redundant > 0 {
			trailCells = int(redundant) / cellPixels
		}
		s1 = float64(imgPixels)
	}

	effSpan = span - leadCells - trailCells
	if effSpan <= 0 || s1 <= s0 {
		return 0, 0, 0, 0, 0, false
	}
	return start + leadCells, effSpan, s0, s1 - s0, subCellOffset, true
}
