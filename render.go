package purfectgfx

import (
	"sort"
	"time"
)

// RenderItem is one draw call's worth of data for a visible placement.
type RenderItem struct {
	Texture Texture

	// Normalized source rectangle in texture coordinates [0, 1].
	SrcX, SrcY          float32
	SrcWidth, SrcHeight float32

	// Destination rectangle in pixels relative to the grid origin.
	DestX, DestY          int
	DestWidth, DestHeight int

	ZIndex int32
}

// Resolve returns the image's texture handle. pending is true when the
// image exists but its texture has not been uploaded yet (for example
// because no rendering context was current).
func (g *GraphicsManager) Resolve(imageID uint32) (tex Texture, pending bool) {
	img, ok := g.ImageForClientID(imageID)
	if !ok {
		return nil, false
	}
	if img.texture == nil {
		return nil, true
	}
	return img.texture, false
}

// PlacementsForVisibleRows collects draw data for every real placement
// covering rows [top, bottom], ordered back to front by stacking index.
// Placements whose texture is not yet resolved are skipped for this
// frame.
func (g *GraphicsManager) PlacementsForVisibleRows(top, bottom int) []RenderItem {
	now := time.Now()
	var items []RenderItem
	for _, img := range g.images {
		imgUsed := false
		for _, ref := range img.refs {
			if ref.IsVirtual || !ref.overlapsRows(top, bottom) {
				continue
			}
			if img.texture == nil {
				continue
			}
			imgUsed = true
			items = append(items, RenderItem{
				Texture:    img.texture,
				SrcX:       ref.SrcX / float32(img.Width),
				SrcY:       ref.SrcY / float32(img.Height),
				SrcWidth:   ref.SrcWidth / float32(img.Width),
				SrcHeight:  ref.SrcHeight / float32(img.Height),
				DestX:      ref.StartCol*g.cellWidth + ref.CellXOffset,
				DestY:      (ref.StartRow-top)*g.cellHeight + ref.CellYOffset,
				DestWidth:  ref.EffectiveNumCols*g.cellWidth - ref.CellXOffset,
				DestHeight: ref.EffectiveNumRows*g.cellHeight - ref.CellYOffset,
				ZIndex:     ref.ZIndex,
			})
		}
		if imgUsed {
			img.touch(now)
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].ZIndex < items[j].ZIndex })
	return items
}

// --- Clip-Space Helpers ---
//
// Converters from pixel measurements to the OpenGL coordinate system,
// for hosts that issue draw calls directly.

// GLSize converts a pixel size to clip-space units.
func GLSize(sz, viewportSize int) float32 {
	return 2.0 / float32(viewportSize) * float32(sz)
}

// GLPosX converts pixels from the left margin to a clip-space x position.
func GLPosX(pxFromLeft, viewportSize int) float32 {
	return -1.0 + float32(pxFromLeft)*(2.0/float32(viewportSize))
}

// GLPosY converts pixels from the top margin to a clip-space y position.
func GLPosY(pxFromTop, viewportSize int) float32 {
	return 1.0 - float32(pxFromTop)*(2.0/float32(viewportSize))
}
