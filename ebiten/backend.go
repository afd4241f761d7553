// Package purfectgfxebiten implements the purfectgfx GPU backend on
// Ebitengine, where an ebiten.Image is backed by a GPU texture.
package purfectgfxebiten

import (
	"fmt"
	"image"
	"log"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/phroun/purfectgfx"
)

// Conservative limits matching what low-end GPU drivers guarantee.
const (
	maxTextureSize = 8192
	maxArrayLayers = 512
	bytesPerTexel  = 4
)

// Backend implements purfectgfx.Backend on Ebitengine.
type Backend struct {
	contextCurrent bool
	mirrorWarned   bool
}

// NewBackend creates the backend. The host must call SetContextCurrent
// from its draw path; before the first render no context is current and
// uploads are deferred by the engine.
func NewBackend() *Backend {
	return &Backend{}
}

// SetContextCurrent records whether the window's rendering context is
// active. Ebitengine serializes all GPU work, so "current" simply means
// the game loop has reached its draw phase at least once.
func (b *Backend) SetContextCurrent(current bool) { b.contextCurrent = current }

func (b *Backend) ContextCurrent() bool { return b.contextCurrent }

func (b *Backend) MaxTextureSize() int { return maxTextureSize }

func (b *Backend) MaxArrayLayers() int { return maxArrayLayers }

// NewTexture allocates a GPU texture for one image.
func (b *Backend) NewTexture(width, height int, opts purfectgfx.TextureOptions) (purfectgfx.Texture, error) {
	if width <= 0 || height <= 0 || width > maxTextureSize || height > maxTextureSize {
		return nil, fmt.Errorf("texture size %dx%d out of range", width, height)
	}
	return &texture{
		img:     ebiten.NewImage(width, height),
		opts:    opts,
		backend: b,
	}, nil
}

// NewTextureArray allocates a layered texture for the sprite atlas.
func (b *Backend) NewTextureArray(width, height, layers int) (purfectgfx.TextureArray, error) {
	if width <= 0 || height <= 0 || layers <= 0 || width > maxTextureSize || height > maxTextureSize || layers > maxArrayLayers {
		return nil, fmt.Errorf("texture array %dx%dx%d out of range", width, height, layers)
	}
	arr := &textureArray{width: width, height: height}
	for i := 0; i < layers; i++ {
		arr.layers = append(arr.layers, ebiten.NewImage(width, height))
	}
	return arr, nil
}

// --- 2D Texture ---

type texture struct {
	img     *ebiten.Image
	opts    purfectgfx.TextureOptions
	backend *Backend
}

// Upload converts rows to tightly packed RGBA before writing, so the
// row alignment hint is not needed here.
func (t *texture) Upload(pix []byte, width, height int, opaque, _ bool) error {
	if opaque {
		pix = expandRGB(pix, width, height)
	}
	if len(pix) != width*height*bytesPerTexel {
		return fmt.Errorf("pixel buffer is %d bytes, want %d", len(pix), width*height*bytesPerTexel)
	}
	w, h := t.img.Bounds().Dx(), t.img.Bounds().Dy()
	if w != width || h != height {
		t.img.Deallocate()
		t.img = ebiten.NewImage(width, height)
	}
	t.img.WritePixels(pix)
	return nil
}

func (t *texture) Size() (int, int) {
	b := t.img.Bounds()
	return b.Dx(), b.Dy()
}

func (t *texture) Release() {
	t.img.Deallocate()
}

// Image returns the underlying ebiten image for draw calls.
func (t *texture) Image() *ebiten.Image { return t.img }

// Filter returns the sampling filter the host should draw with. Images
// use linear filtering because they may be scaled.
func (t *texture) Filter() ebiten.Filter {
	if t.opts.Linear {
		return ebiten.FilterLinear
	}
	return ebiten.FilterNearest
}

// Address returns the sampling address mode for the configured edge
// policy. Ebitengine has no mirrored repeat; mirror degrades to repeat
// with a one-time warning.
func (t *texture) Address() ebiten.Address {
	switch t.opts.Edge {
	case purfectgfx.EdgeRepeat:
		return ebiten.AddressRepeat
	case purfectgfx.EdgeMirror:
		if !t.backend.mirrorWarned {
			t.backend.mirrorWarned = true
			log.Printf("purfectgfx: ebiten has no mirrored-repeat addressing, using repeat")
		}
		return ebiten.AddressRepeat
	default:
		return ebiten.AddressClampToZero
	}
}

// Image returns the ebiten image behind a texture created by this
// backend, or nil for textures from another backend.
func Image(t purfectgfx.Texture) *ebiten.Image {
	if tex, ok := t.(*texture); ok {
		return tex.img
	}
	return nil
}

// DrawParams returns the filter and address mode to draw the texture
// with, matching its configured options.
func DrawParams(t purfectgfx.Texture) (ebiten.Filter, ebiten.Address) {
	tex, ok := t.(*texture)
	if !ok {
		return ebiten.FilterNearest, ebiten.AddressUnsafe
	}
	return tex.Filter(), tex.Address()
}

// expandRGB converts 3-byte pixels to RGBA with alpha 255.
func expandRGB(pix []byte, width, height int) []byte {
	out := make([]byte, width*height*bytesPerTexel)
	for i, o := 0, 0; i+2 < len(pix); i, o = i+3, o+4 {
		out[o], out[o+1], out[o+2], out[o+3] = pix[i], pix[i+1], pix[i+2], 255
	}
	return out
}

// --- Texture Array ---

type textureArray struct {
	width  int
	height int
	layers []*ebiten.Image
}

func (a *textureArray) Layout() (int, int, int) {
	return a.width, a.height, len(a.layers)
}

func (a *textureArray) SubUpload(x, y, layer, width, height int, pix []byte) error {
	if layer < 0 || layer >= len(a.layers) {
		return fmt.Errorf("layer %d out of range (%d layers)", layer, len(a.layers))
	}
	if len(pix) != width*height*bytesPerTexel {
		return fmt.Errorf("tile buffer is %d bytes, want %d", len(pix), width*height*bytesPerTexel)
	}
	rect := image.Rect(x, y, x+width, y+height)
	sub := a.layers[layer].SubImage(rect).(*ebiten.Image)
	sub.WritePixels(pix)
	return nil
}

// CopyFrom bulk-copies src layer by layer with GPU-side draws; no host
// round trip is ever needed with Ebitengine.
func (a *textureArray) CopyFrom(src purfectgfx.TextureArray, width, height, layers int) bool {
	other, ok := src.(*textureArray)
	if !ok {
		return false
	}
	if layers > len(other.layers) {
		layers = len(other.layers)
	}
	if layers > len(a.layers) {
		layers = len(a.layers)
	}
	rect := image.Rect(0, 0, width, height)
	op := &ebiten.DrawImageOptions{Blend: ebiten.BlendCopy}
	for z := 0; z < layers; z++ {
		srcLayer := other.layers[z].SubImage(rect).(*ebiten.Image)
		a.layers[z].DrawImage(srcLayer, op)
	}
	return true
}

func (a *textureArray) ReadPixels() ([]byte, error) {
	layerSize := a.width * a.height * bytesPerTexel
	out := make([]byte, layerSize*len(a.layers))
	for z, layer := range a.layers {
		layer.ReadPixels(out[z*layerSize : (z+1)*layerSize])
	}
	return out, nil
}

func (a *textureArray) Release() {
	for _, layer := range a.layers {
		layer.Deallocate()
	}
	a.layers = nil
}

// Layer returns one layer's ebiten image for draw calls, or nil when the
// index is out of range.
func (a *textureArray) Layer(z int) *ebiten.Image {
	if z < 0 || z >= len(a.layers) {
		return nil
	}
	return a.layers[z]
}
