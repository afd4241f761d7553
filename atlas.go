package purfectgfx

// SpriteAtlas tracks a growable layered texture array holding many
// cell-sized tiles (glyph sprites or image tiles). Tiles are allocated
// left to right, top to bottom, then on new layers. The atlas never
// shrinks during a session: on overflow of either dimension a larger
// array is allocated, existing content is bulk-copied across, and the
// old array is released.
type SpriteAtlas struct {
	backend    Backend
	cellWidth  int
	cellHeight int

	// Current layout in cells per layer, and the next free position.
	xnum, ynum int
	x, y, z    int

	// Extent of the previously allocated texture, used to size the
	// bulk copy on reallocation.
	lastYnum   int
	lastLayers int

	tex TextureArray
}

// NewSpriteAtlas creates an atlas for tiles of the given cell size.
func NewSpriteAtlas(backend Backend, cellWidth, cellHeight int) *SpriteAtlas {
	return &SpriteAtlas{
		backend:    backend,
		cellWidth:  cellWidth,
		cellHeight: cellHeight,
		xnum:       max(1, min(32, backend.MaxTextureSize()/max(1, cellWidth))),
		ynum:       1,
		lastYnum:   -1,
		lastLayers: 1,
	}
}

// Layout returns the current layout: cells per row, rows per layer and
// the number of layers in use.
func (a *SpriteAtlas) Layout() (xnum, ynum, layers int) {
	return a.xnum, a.ynum, a.z + 1
}

// NextPosition reserves the next free tile position, growing the layout
// bookkeeping when a row or layer fills up. The texture itself is only
// reallocated on the next upload.
func (a *SpriteAtlas) NextPosition() (x, y, z int) {
	x, y, z = a.x, a.y, a.z
	a.x++
	if a.x >= a.xnum {
		a.x = 0
		a.y++
		if a.ynum < a.y+1 {
			a.ynum = a.y + 1
		}
		if a.y*a.cellHeight >= a.backend.MaxTextureSize()-a.cellHeight {
			a.y = 0
			a.ynum = maxYnum(a.backend, a.cellHeight)
			a.z++
		}
	}
	return x, y, z
}

func maxYnum(b Backend, cellHeight int) int {
	return max(1, b.MaxTextureSize()/max(1, cellHeight))
}

// SendSprite uploads one tile's pixels to position (x, y, z),
// reallocating the texture array first when the tile lies outside the
// currently allocated extent.
func (a *SpriteAtlas) SendSprite(x, y, z int, pix []byte) error {
	if a.tex == nil || z >= a.lastLayers || (z == 0 && a.ynum > a.lastYnum) {
		if err := a.realloc(); err != nil {
			return err
		}
	}
	return a.tex.SubUpload(x*a.cellWidth, y*a.cellHeight, z,
		a.cellWidth, a.cellHeight, pix)
}

var atlasCopyWarned = false

// realloc allocates a texture array sized to the current layout, copies
// the old content into it and releases the old texture. A GPU-side copy
// is preferred; when the backend has none, a host-memory round trip is
// used with a one-time warning.
func (a *SpriteAtlas) realloc() error {
	width := a.xnum * a.cellWidth
	height := a.ynum * a.cellHeight
	layers := a.z + 1
	tex, err := a.backend.NewTextureArray(width, height, layers)
	if err != nil {
		return err
	}
	if a.tex != nil {
		srcYnum := max(1, a.lastYnum)
		copyHeight := srcYnum * a.cellHeight
		if copyHeight > height {
			copyHeight = height
		}
		if !tex.CopyFrom(a.tex, width, copyHeight, a.lastLayers) {
			if !atlasCopyWarned {
				atlasCopyWarned = true
				logError("WARNING: backend has no GPU-side texture copy, falling back to a slower implementation")
			}
			if err := roundTripCopy(a.tex, tex, a.lastLayers); err != nil {
				tex.Release()
				return err
			}
		}
		a.tex.Release()
	}
	a.lastYnum = a.ynum
	a.lastLayers = layers
	a.tex = tex
	logV("sprite atlas reallocated to %dx%d cells, %d layers", a.xnum, a.ynum, layers)
	return nil
}

// roundTripCopy copies texture array contents through host memory, one
// layer at a time.
func roundTripCopy(src, dst TextureArray, layers int) error {
	pix, err := src.ReadPixels()
	if err != nil {
		return err
	}
	srcW, srcH, srcLayers := src.Layout()
	if layers > srcLayers {
		layers = srcLayers
	}
	layerSize := srcW * srcH * 4
	for z := 0; z < layers; z++ {
		if err := dst.SubUpload(0, 0, z, srcW, srcH, pix[z*layerSize:(z+1)*layerSize]); err != nil {
			return err
		}
	}
	return nil
}

// Texture returns the atlas texture array, or nil before the first
// upload.
func (a *SpriteAtlas) Texture() TextureArray { return a.tex }

// Release frees the atlas texture. The atlas owner calls it exactly
// once, when the session ends.
func (a *SpriteAtlas) Release() {
	if a.tex != nil {
		a.tex.Release()
		a.tex = nil
	}
}
