package purfectgfx

// --- Placement Traversal ---
//
// Two traversal modes cover every scroll and clear operation: a
// destructive filter that removes matching placements, and a mutating
// filter that may rewrite a placement's fields and removes it only if
// the predicate signals removal after mutation. Both collect matches
// first and remove second, so deleting the element currently visited is
// always safe.

// filterRefs removes every placement matching the predicate. When an
// image is left without placements it is removed too, if freeImages is
// set or the image has no client-visible id. Reports whether anything
// was removed.
func (g *GraphicsManager) filterRefs(freeImages bool, match func(*Image, *ImageRef) bool) bool {
	changed := false
	// Images may be removed during the sweep; walk a snapshot.
	snapshot := append([]*Image(nil), g.images...)
	for _, img := range snapshot {
		var doomed []uint32
		for _, ref := range img.refs {
			if match(img, ref) {
				doomed = append(doomed, ref.internalID)
			}
		}
		if len(doomed) == 0 {
			continue
		}
		changed = true
		for _, id := range doomed {
			for i, ref := range img.refs {
				if ref.internalID == id {
					img.refs = append(img.refs[:i], img.refs[i+1:]...)
					break
				}
			}
		}
		if len(img.refs) == 0 && (freeImages || img.clientID == 0) {
			g.removeImage(img)
		}
	}
	return changed
}

// modifyRefs applies fn to every placement. fn may rewrite the
// placement's fields; it reports whether it mutated the placement and
// whether the placement should be removed after the mutation. Images
// orphaned by removals are cleaned up as in filterRefs. Reports whether
// any placement was mutated or removed.
func (g *GraphicsManager) modifyRefs(fn func(*Image, *ImageRef) (mutated, remove bool)) bool {
	changed := false
	snapshot := append([]*Image(nil), g.images...)
	for _, img := range snapshot {
		var doomed []uint32
		for _, ref := range img.refs {
			mutated, remove := fn(img, ref)
			if mutated {
				changed = true
			}
			if remove {
				doomed = append(doomed, ref.internalID)
			}
		}
		for _, id := range doomed {
			changed = true
			for i, ref := range img.refs {
				if ref.internalID == id {
					img.refs = append(img.refs[:i], img.refs[i+1:]...)
					break
				}
			}
		}
		if len(img.refs) == 0 && img.clientID == 0 {
			g.removeImage(img)
		}
	}
	return changed
}

// --- Scrolling ---

// ScrollData describes a scroll of the text grid as it affects
// placements: the signed row delta, the limit row beyond which scrolled
// out placements are dropped, and the scroll-region margins if any.
type ScrollData struct {
	Amt   int
	Limit int

	MarginTop    int
	MarginBottom int
	HasMargins   bool
}

// ScrollImages moves real placements with the grid content. Virtual
// placements are templates and never scroll. With margins, only
// placements inside the scroll region move; a placement pushed fully
// outside the region is removed, one partially overlapping it is
// clipped so its effective row count shrinks. Without margins,
// placements whose rows scroll entirely past the limit are removed.
// Reports whether any placement moved or was removed.
func (g *GraphicsManager) ScrollImages(s ScrollData) bool {
	return g.modifyRefs(func(img *Image, ref *ImageRef) (mutated, remove bool) {
		if ref.IsVirtual {
			return false, false
		}
		moved := s.Amt != 0
		if s.HasMargins {
			if !ref.overlapsRows(s.MarginTop, s.MarginBottom) {
				return false, false
			}
			ref.StartRow += s.Amt
			if ref.endRow()-1 < s.MarginTop || ref.StartRow > s.MarginBottom {
				return moved, true
			}
			// Clip to the scroll region instead of removing.
			if ref.StartRow < s.MarginTop {
				ref.EffectiveNumRows -= s.MarginTop - ref.StartRow
				ref.StartRow = s.MarginTop
			}
			if ref.endRow()-1 > s.MarginBottom {
				ref.EffectiveNumRows = s.MarginBottom - ref.StartRow + 1
			}
			return moved, ref.EffectiveNumRows <= 0
		}
		ref.StartRow += s.Amt
		return moved, ref.endRow() <= s.Limit
	})
}

// --- Clearing ---

// RemoveAllCellImages removes every cell-anchored (real) placement.
// Virtual templates survive; they hold no grid position of their own.
func (g *GraphicsManager) RemoveAllCellImages(freeImages bool) bool {
	return g.filterRefs(freeImages, func(_ *Image, ref *ImageRef) bool {
		return !ref.IsVirtual
	})
}

// RemoveCellImagesInRowRange removes real placements covering any row in
// [top, bottom].
func (g *GraphicsManager) RemoveCellImagesInRowRange(top, bottom int, freeImages bool) bool {
	return g.filterRefs(freeImages, func(_ *Image, ref *ImageRef) bool {
		return !ref.IsVirtual && ref.overlapsRows(top, bottom)
	})
}
