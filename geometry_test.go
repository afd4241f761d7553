package purfectgfx

import (
	"math"
	"testing"
)

func TestFitImageInBox_NaturalSize(t *testing.T) {
	// A box exactly matching the image's natural size fits at scale 1
	// with zero offsets.
	const cellW, cellH = 10, 20
	imgW, imgH := 8*cellW, 3*cellH
	fit := fitImageInBox(imgW, imgH, 8, 3, cellW, cellH)
	if math.Abs(fit.scale-1.0) > 1e-9 {
		t.Errorf("scale = %v, want 1.0", fit.scale)
	}
	if fit.dx != 0 || fit.dy != 0 {
		t.Errorf("offsets = (%v, %v), want (0, 0)", fit.dx, fit.dy)
	}
}

func TestFitImageInBox_WideImageFitsWidth(t *testing.T) {
	// 200x50 image into a 100x100 pixel box: fit to width, center
	// vertically.
	fit := fitImageInBox(200, 50, 10, 5, 10, 20)
	if fit.scale != 0.5 {
		t.Errorf("scale = %v, want 0.5", fit.scale)
	}
	if fit.dx != 0 {
		t.Errorf("dx = %v, want 0", fit.dx)
	}
	if fit.dy != (100-25)/2.0 {
		t.Errorf("dy = %v, want 37.5", fit.dy)
	}
}

func TestFitImageInBox_TallImageFitsHeight(t *testing.T) {
	fit := fitImageInBox(50, 200, 10, 5, 10, 20)
	if fit.scale != 0.5 {
		t.Errorf("scale = %v, want 0.5", fit.scale)
	}
	if fit.dy != 0 {
		t.Errorf("dy = %v, want 0", fit.dy)
	}
	if fit.dx != (100-25)/2.0 {
		t.Errorf("dx = %v, want 37.5", fit.dx)
	}
}

func TestResolveRef_ExactFitHasFullSourceRect(t *testing.T) {
	img := &Image{Width: 40, Height: 40}
	ref := &ImageRef{NumCols: 4, NumRows: 2}
	if !resolveRef(img, ref, 10, 20) {
		t.Fatal("exact fit must resolve")
	}
	if ref.SrcX != 0 || ref.SrcY != 0 || ref.SrcWidth != 40 || ref.SrcHeight != 40 {
		t.Errorf("src rect = (%v,%v %vx%v), want full image",
			ref.SrcX, ref.SrcY, ref.SrcWidth, ref.SrcHeight)
	}
	if ref.EffectiveNumCols != 4 || ref.EffectiveNumRows != 2 {
		t.Errorf("effective span = %dx%d, want 4x2",
			ref.EffectiveNumCols, ref.EffectiveNumRows)
	}
	if ref.CellXOffset != 0 || ref.CellYOffset != 0 {
		t.Errorf("cell offsets = (%d,%d), want (0,0)", ref.CellXOffset, ref.CellYOffset)
	}
}

func TestResolveRef_CenteredImageTrimsWholeCellsOnly(t *testing.T) {
	// A 40x40 image in an 8x2 cell box (80x40 px) is centered with 20px
	// margins left and right: two whole cells lead, two trail.
	img := &Image{Width: 40, Height: 40}
	ref := &ImageRef{StartCol: 3, NumCols: 8, NumRows: 2}
	if !resolveRef(img, ref, 10, 20) {
		t.Fatal("placement must resolve")
	}
	if ref.StartCol != 5 {
		t.Errorf("StartCol = %d, want advanced to 5", ref.StartCol)
	}
	if ref.CellXOffset != 0 {
		t.Errorf("CellXOffset = %d, want 0 (margin is whole cells)", ref.CellXOffset)
	}
	if ref.EffectiveNumCols != 4 {
		t.Errorf("EffectiveNumCols = %d, want 4", ref.EffectiveNumCols)
	}
	if ref.SrcX != 0 || ref.SrcWidth != 40 {
		t.Errorf("src x range = %v+%v, want 0+40", ref.SrcX, ref.SrcWidth)
	}
}

func TestResolveRef_SubCellOffset(t *testing.T) {
	// A 54x40 image in a 9x2 box of 8x20 cells (72x40 px) is centered
	// with 9px margins: one whole 8px cell plus a 1px sub-cell offset.
	img := &Image{Width: 54, Height: 40}
	ref := &ImageRef{NumCols: 9, NumRows: 2}
	if !resolveRef(img, ref, 8, 20) {
		t.Fatal("placement must resolve")
	}
	if ref.StartCol != 1 {
		t.Errorf("StartCol = %d, want 1", ref.StartCol)
	}
	if ref.CellXOffset != 1 {
		t.Errorf("CellXOffset = %d, want 1px", ref.CellXOffset)
	}
}

func TestResolveRef_DegenerateIsNoop(t *testing.T) {
	img := &Image{Width: 0, Height: 10}
	ref := &ImageRef{NumCols: 2, NumRows: 2}
	if resolveRef(img, ref, 10, 20) {
		t.Error("zero-width image must be a silent no-op")
	}
}

func TestDefaultSpan(t *testing.T) {
	if got := defaultSpan(95, 10); got != 10 {
		t.Errorf("defaultSpan(95, 10) = %d, want 10", got)
	}
	if got := defaultSpan(3, 10); got != 1 {
		t.Errorf("defaultSpan(3, 10) = %d, want 1", got)
	}
}

func TestPutCellImage_MaterializesTopmostRef(t *testing.T) {
	g, _ := newTestManager(t)
	transmitSolid(t, g, 1, 40, 40)

	resp, err := g.HandlePlacement(&PlacementCommand{
		ImageID: 1, PlacementID: 5, Virtual: true, NumCols: 4, NumRows: 2,
	})
	if err != nil || resp != "OK" {
		t.Fatalf("virtual placement: resp=%q err=%v", resp, err)
	}

	g.PutCellImage(3, 7, 1, 5, 0, 2)

	img, _ := g.ImageForClientID(1)
	var real *ImageRef
	for _, ref := range img.refs {
		if !ref.IsVirtual {
			real = ref
		}
	}
	if real == nil {
		t.Fatal("expected a materialized placement")
	}
	if real.StartRow != 3 || real.StartCol != 7 {
		t.Errorf("position = (%d,%d), want (3,7)", real.StartRow, real.StartCol)
	}
	if real.ZIndex != zIndexTopmost {
		t.Error("materialized placements must render above normal content")
	}
	if real.VirtualID == 0 {
		t.Error("materialized placement must reference its template")
	}
	// Cell (row 0, col 2) of a 4x2 box over a 40x40 image: the fit is
	// 40x40 px centered at dx=0, scale 1; source is cells of 10x20 px.
	if real.SrcX != 20 || real.SrcWidth != 10 {
		t.Errorf("src x = %v+%v, want 20+10", real.SrcX, real.SrcWidth)
	}
}

func TestPutCellImage_RepeatedCellReplacesNotAccumulates(t *testing.T) {
	g, _ := newTestManager(t)
	img := transmitSolid(t, g, 1, 40, 40)
	resp, _ := g.HandlePlacement(&PlacementCommand{
		ImageID: 1, PlacementID: 5, Virtual: true, NumCols: 4, NumRows: 2,
	})
	if resp != "OK" {
		t.Fatalf("virtual placement = %q", resp)
	}

	// A host re-scanning its placeholder cells emits the same cell on
	// every redraw.
	for i := 0; i < 3; i++ {
		g.PutCellImage(3, 7, 1, 5, 0, 2)
	}
	if len(img.refs) != 2 { // the template plus one materialized cell
		t.Fatalf("%d refs after repeated materialization, want 2", len(img.refs))
	}

	g.PutCellImage(3, 8, 1, 5, 0, 3)
	if len(img.refs) != 3 {
		t.Errorf("%d refs after a second cell, want 3", len(img.refs))
	}
}

func TestPutCellImage_OutOfRangeCellIsNoop(t *testing.T) {
	g, _ := newTestManager(t)
	img := transmitSolid(t, g, 1, 40, 40)
	resp, _ := g.HandlePlacement(&PlacementCommand{
		ImageID: 1, PlacementID: 5, Virtual: true, NumCols: 2, NumRows: 2,
	})
	if resp != "OK" {
		t.Fatalf("virtual placement = %q", resp)
	}
	g.PutCellImage(0, 0, 1, 5, 9, 9)
	if len(img.refs) != 1 {
		t.Errorf("out-of-range cell created a placement: %d refs", len(img.refs))
	}
}
