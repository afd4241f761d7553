package purfectgfx

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// GraphicsManager owns all images and their placements for one terminal
// session. Images live in a dense slice with a client-id index map
// maintained alongside, so both lookups stay O(1) without
// pointer-chasing hash structures.
//
// All methods must be called from the session's render goroutine.
type GraphicsManager struct {
	opts    Options
	backend Backend
	cache   *ContentCache
	atlas   *SpriteAtlas

	cellWidth  int
	cellHeight int

	images     []*Image
	byClientID map[uint32]int // index into images

	imageIDCounter uint32
	refIDCounter   uint32

	// totalStorage is the sum of billed bytes across all images. It
	// never exceeds the configured storage budget.
	totalStorage int64

	deferred []deferredUpload
	loading  *loadingTransmission
}

// NewGraphicsManager creates a manager using the given GPU backend and
// cell pixel size.
func NewGraphicsManager(backend Backend, opts Options, cellWidth, cellHeight int) (*GraphicsManager, error) {
	cache, err := NewContentCache(opts.CacheDir, opts.StorageLimitBytes())
	if err != nil {
		return nil, fmt.Errorf("open content cache: %w", err)
	}
	g := &GraphicsManager{
		opts:       opts,
		backend:    backend,
		cache:      cache,
		atlas:      NewSpriteAtlas(backend, cellWidth, cellHeight),
		cellWidth:  cellWidth,
		cellHeight: cellHeight,
		byClientID: make(map[uint32]int),
	}
	cache.SetEvictionHooks(g.imageAtime, g.onCacheEvict)
	return g, nil
}

// Close releases every image texture, the sprite atlas and the content
// cache.
func (g *GraphicsManager) Close() error {
	for _, img := range g.images {
		if img.texture != nil {
			img.texture.Release()
			img.texture = nil
		}
	}
	g.images = nil
	g.byClientID = make(map[uint32]int)
	g.totalStorage = 0
	g.atlas.Release()
	return g.cache.Close()
}

// Atlas returns the glyph sprite atlas shared with the font renderer.
func (g *GraphicsManager) Atlas() *SpriteAtlas { return g.atlas }

// Cache returns the content cache.
func (g *GraphicsManager) Cache() *ContentCache { return g.cache }

// ImageCount returns the number of live images.
func (g *GraphicsManager) ImageCount() int { return len(g.images) }

// TotalStorage returns the bytes currently billed against the budget.
func (g *GraphicsManager) TotalStorage() int64 { return g.totalStorage }

// SetCellSize updates the cell pixel size and recomputes the geometry of
// every placement, since the instantiating grid geometry changed.
func (g *GraphicsManager) SetCellSize(cellWidth, cellHeight int) {
	if cellWidth == g.cellWidth && cellHeight == g.cellHeight {
		return
	}
	g.cellWidth, g.cellHeight = cellWidth, cellHeight
	g.modifyRefs(func(img *Image, ref *ImageRef) (mutated, remove bool) {
		if ref.IsVirtual {
			return false, false
		}
		return true, !resolveRef(img, ref, cellWidth, cellHeight)
	})
}

// --- ID Generation ---

// nextImageID returns the next internal image id. Internal id 0 means
// "unset", so generation wraps past it.
func (g *GraphicsManager) nextImageID() uint32 {
	g.imageIDCounter++
	if g.imageIDCounter == 0 {
		g.imageIDCounter = 1
	}
	return g.imageIDCounter
}

func (g *GraphicsManager) nextRefID() uint32 {
	g.refIDCounter++
	if g.refIDCounter == 0 {
		g.refIDCounter = 1
	}
	return g.refIDCounter
}

// --- Image Lookup and Lifetime ---

// NewImage creates an image with the given client identifiers and pixel
// dimensions and takes ownership of it.
func (g *GraphicsManager) NewImage(clientID, clientNumber uint32, width, height int) *Image {
	img := &Image{
		internalID:   g.nextImageID(),
		clientID:     clientID,
		clientNumber: clientNumber,
		Width:        width,
		Height:       height,
		atime:        time.Now(),
	}
	img.root = Frame{ID: 1, Width: width, Height: height}
	if clientID != 0 {
		// A client id is unique among live images; replacing reuses the
		// slot semantics of a delete followed by a create.
		if old, ok := g.ImageForClientID(clientID); ok {
			g.removeImage(old)
		}
		g.byClientID[clientID] = len(g.images)
	}
	g.images = append(g.images, img)
	return img
}

// ImageForClientID looks an image up by its client-visible id. A missing
// id is reported as not found, not as an error.
func (g *GraphicsManager) ImageForClientID(clientID uint32) (*Image, bool) {
	if clientID == 0 {
		return nil, false
	}
	idx, ok := g.byClientID[clientID]
	if !ok {
		return nil, false
	}
	return g.images[idx], true
}

func (g *GraphicsManager) imageByInternalID(id uint32) *Image {
	for _, img := range g.images {
		if img.internalID == id {
			return img
		}
	}
	return nil
}

// imagesForClientNumber returns all images carrying the given client
// number, a secondary non-unique handle.
func (g *GraphicsManager) imagesForClientNumber(number uint32) []*Image {
	var out []*Image
	for _, img := range g.images {
		if img.clientNumber == number && number != 0 {
			out = append(out, img)
		}
	}
	return out
}

func (g *GraphicsManager) imageAtime(imageID uint32) time.Time {
	if img := g.imageByInternalID(imageID); img != nil {
		return img.atime
	}
	return time.Time{}
}

// onCacheEvict keeps the billed-byte accounting consistent with actual
// cache state when the cache drops an entry for storage pressure.
func (g *GraphicsManager) onCacheEvict(imageID, frameID uint32, size int64) {
	g.totalStorage -= size
	if img := g.imageByInternalID(imageID); img != nil {
		img.usedStorage -= size
	}
}

// removeImage destroys an image: its cache entries, its billed storage
// and its texture. The texture is released here and nowhere else.
func (g *GraphicsManager) removeImage(img *Image) {
	released := g.cache.RemoveImage(img.internalID)
	g.totalStorage -= img.usedStorage
	if released != img.usedStorage {
		// Entries already evicted were un-billed by the eviction hook.
		logV("image %d released %s from cache, %s was billed",
			img.internalID, humanize.Bytes(uint64(released)), humanize.Bytes(uint64(img.usedStorage)))
	}
	img.usedStorage = 0
	if img.texture != nil {
		img.texture.Release()
		img.texture = nil
	}

	for i, cand := range g.images {
		if cand != img {
			continue
		}
		last := len(g.images) - 1
		g.images[i] = g.images[last]
		g.images = g.images[:last]
		if img.clientID != 0 {
			delete(g.byClientID, img.clientID)
		}
		if i < len(g.images) {
			if moved := g.images[i]; moved.clientID != 0 {
				g.byClientID[moved.clientID] = i
			}
		}
		break
	}
}

// --- Frame Storage ---

// storeFrameData persists a frame's pixel bytes and bills them against
// the owning image, so the image's billed bytes always equal the sum of
// its cached frame sizes.
func (g *GraphicsManager) storeFrameData(img *Image, f *Frame, data []byte) error {
	key := frameKey{img.internalID, f.ID}
	old, replaced := g.cache.entries[key]
	if err := g.cache.Store(img.internalID, f.ID, data); err != nil {
		// The previous entry is still cached; its bytes stay billed.
		return err
	}
	if replaced {
		img.usedStorage -= old
		g.totalStorage -= old
	}
	img.usedStorage += int64(len(data))
	g.totalStorage += int64(len(data))
	return nil
}

// removeFrameData removes a frame's cached bytes and decrements the
// owning image's billed bytes by exactly the entry's size.
func (g *GraphicsManager) removeFrameData(img *Image, frameID uint32) bool {
	key := frameKey{img.internalID, frameID}
	size, ok := g.cache.entries[key]
	if !ok {
		return false
	}
	if !g.cache.Remove(img.internalID, frameID) {
		return false
	}
	img.usedStorage -= size
	g.totalStorage -= size
	return true
}

// --- Placement Lifetime ---

// createRef creates a placement on the image, optionally cloning an
// existing placement's fields.
func (g *GraphicsManager) createRef(img *Image, template *ImageRef) *ImageRef {
	var ref *ImageRef
	if template != nil {
		ref = template.clone()
	} else {
		ref = &ImageRef{}
	}
	ref.internalID = g.nextRefID()
	img.refs = append(img.refs, ref)
	return ref
}

// refForClientID returns the image's placement with the given
// client-visible placement id, or nil.
func (img *Image) refForClientID(clientID uint32) *ImageRef {
	if clientID == 0 {
		return nil
	}
	for _, ref := range img.refs {
		if ref.clientID == clientID {
			return ref
		}
	}
	return nil
}

// refForInternalID returns the image's placement with the given internal
// id, or nil.
func (img *Image) refForInternalID(id uint32) *ImageRef {
	for _, ref := range img.refs {
		if ref.internalID == id {
			return ref
		}
	}
	return nil
}

// materializedRefAt returns the cell placement instantiated from the
// given virtual placement at grid position (row, col), or nil.
func (img *Image) materializedRefAt(virtualID uint32, row, col int) *ImageRef {
	for _, ref := range img.refs {
		if ref.VirtualID == virtualID && ref.StartRow == row && ref.StartCol == col {
			return ref
		}
	}
	return nil
}

// dropRef removes the placement with the given internal id without
// touching the image's lifetime.
func (img *Image) dropRef(id uint32) {
	for i, ref := range img.refs {
		if ref.internalID == id {
			img.refs = append(img.refs[:i], img.refs[i+1:]...)
			return
		}
	}
}

// removeRef removes one placement. When the image is left with zero
// placements and has no client-visible id, the image itself is removed:
// nothing can ever reference it again. Removing a placement that does
// not exist is a no-op.
func (g *GraphicsManager) removeRef(img *Image, refInternalID uint32) {
	img.dropRef(refInternalID)
	if len(img.refs) == 0 && img.clientID == 0 {
		g.removeImage(img)
	}
}

// PutCellImage materializes one cell of a virtual placement at the given
// grid position: the placeholder cell at (row, col) displays cell
// (imgRow, imgCol) of the virtual placement's box. Materialized
// placements always render above normal content. Out-of-bounds cells
// are silent no-ops. Re-materializing a cell replaces its earlier
// placement, so hosts may re-emit placeholder cells on every redraw.
func (g *GraphicsManager) PutCellImage(row, col int, imageID, placementID uint32, imgRow, imgCol int) {
	img, ok := g.ImageForClientID(imageID)
	if !ok {
		return
	}
	vref := img.refForClientID(placementID)
	if vref == nil || !vref.IsVirtual {
		return
	}
	cols := vref.NumCols
	rows := vref.NumRows
	if cols == 0 {
		cols = defaultSpan(img.Width, g.cellWidth)
	}
	if rows == 0 {
		rows = defaultSpan(img.Height, g.cellHeight)
	}
	if imgCol < 0 || imgCol >= cols || imgRow < 0 || imgRow >= rows {
		return
	}
	fit := fitImageInBox(img.Width, img.Height, cols, rows, g.cellWidth, g.cellHeight)
	sx0, sx1 := fit.sourceRange(imgCol*g.cellWidth, (imgCol+1)*g.cellWidth, fit.dx)
	sy0, sy1 := fit.sourceRange(imgRow*g.cellHeight, (imgRow+1)*g.cellHeight, fit.dy)
	sx0, sx1 = clampRange(sx0, sx1, float64(img.Width))
	sy0, sy1 = clampRange(sy0, sy1, float64(img.Height))
	if sx1 <= sx0 || sy1 <= sy0 {
		return
	}

	// Hosts re-scan placeholder cells on every redraw; re-materializing
	// a cell rewrites its placement instead of accumulating a new one.
	ref := img.materializedRefAt(vref.internalID, row, col)
	if ref == nil {
		ref = g.createRef(img, nil)
	}
	ref.VirtualID = vref.internalID
	ref.StartRow, ref.StartCol = row, col
	ref.NumCols, ref.NumRows = 1, 1
	ref.EffectiveNumCols, ref.EffectiveNumRows = 1, 1
	ref.SrcX, ref.SrcY = float32(sx0), float32(sy0)
	ref.SrcWidth, ref.SrcHeight = float32(sx1-sx0), float32(sy1-sy0)
	ref.ZIndex = zIndexTopmost
	img.touch(time.Now())
}

// zIndexTopmost stacks virtual-instantiated placements above all normal
// content.
const zIndexTopmost = int32(1<<31 - 1)

func clampRange(a, b, limit float64) (float64, float64) {
	if a < 0 {
		a = 0
	}
	if b > limit {
		b = limit
	}
	return a, b
}
