package purfectgfx

import (
	"testing"
)

// --- In-Memory Backend Fakes ---

type fakeBackend struct {
	maxSize    int
	ctx        bool
	directCopy bool

	textures []*fakeTexture
	arrays   []*fakeArray
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{maxSize: 4096, ctx: true, directCopy: true}
}

func (b *fakeBackend) MaxTextureSize() int  { return b.maxSize }
func (b *fakeBackend) MaxArrayLayers() int  { return 64 }
func (b *fakeBackend) ContextCurrent() bool { return b.ctx }

func (b *fakeBackend) NewTexture(w, h int, opts TextureOptions) (Texture, error) {
	t := &fakeTexture{w: w, h: h, opts: opts}
	b.textures = append(b.textures, t)
	return t, nil
}

func (b *fakeBackend) NewTextureArray(w, h, layers int) (TextureArray, error) {
	a := &fakeArray{backend: b, w: w, h: h, pix: make([]byte, w*h*layers*4), layers: layers}
	b.arrays = append(b.arrays, a)
	return a, nil
}

type fakeTexture struct {
	w, h       int
	opts       TextureOptions
	pix        []byte
	opaque     bool
	rowAligned bool
	uploads    int
	released   bool
}

func (t *fakeTexture) Upload(pix []byte, w, h int, opaque, rowAligned bool) error {
	t.pix = append([]byte(nil), pix...)
	t.w, t.h = w, h
	t.opaque = opaque
	t.rowAligned = rowAligned
	t.uploads++
	return nil
}

func (t *fakeTexture) Size() (int, int) { return t.w, t.h }
func (t *fakeTexture) Release()         { t.released = true }

type fakeArray struct {
	backend  *fakeBackend
	w, h     int
	layers   int
	pix      []byte
	released bool
	copies   int
}

func (a *fakeArray) Layout() (int, int, int) { return a.w, a.h, a.layers }

func (a *fakeArray) SubUpload(x, y, layer, w, h int, pix []byte) error {
	for row := 0; row < h; row++ {
		dst := ((layer*a.h+y+row)*a.w + x) * 4
		src := row * w * 4
		copy(a.pix[dst:dst+w*4], pix[src:src+w*4])
	}
	return nil
}

func (a *fakeArray) CopyFrom(src TextureArray, w, h, layers int) bool {
	if !a.backend.directCopy {
		return false
	}
	other := src.(*fakeArray)
	for z := 0; z < layers && z < a.layers && z < other.layers; z++ {
		for row := 0; row < h; row++ {
			dst := ((z*a.h + row) * a.w) * 4
			from := ((z*other.h + row) * other.w) * 4
			copy(a.pix[dst:dst+w*4], other.pix[from:from+w*4])
		}
	}
	a.copies++
	return true
}

func (a *fakeArray) ReadPixels() ([]byte, error) {
	return append([]byte(nil), a.pix...), nil
}

func (a *fakeArray) Release() { a.released = true }

// --- Manager Construction ---

func newTestManager(t *testing.T) (*GraphicsManager, *fakeBackend) {
	t.Helper()
	backend := newFakeBackend()
	opts := DefaultOptions()
	opts.CacheDir = t.TempDir()
	g, err := NewGraphicsManager(backend, opts, 10, 20)
	if err != nil {
		t.Fatalf("NewGraphicsManager() error: %v", err)
	}
	t.Cleanup(func() { _ = g.Close() })
	return g, backend
}

// solidFrame returns a width*height RGBA buffer filled with one pixel value.
func solidFrame(width, height int, r, g, b, a byte) []byte {
	pix := make([]byte, width*height*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = r, g, b, a
	}
	return pix
}

// transmitSolid creates an image via the command path with a solid
// RGBA payload.
func transmitSolid(t *testing.T, g *GraphicsManager, clientID uint32, w, h int) *Image {
	t.Helper()
	resp, err := g.HandleTransmit(&TransmitCommand{
		Format:  FormatRGBA,
		Medium:  MediumDirect,
		ImageID: clientID,
		Width:   w,
		Height:  h,
	}, solidFrame(w, h, 10, 20, 30, 255))
	if err != nil {
		t.Fatalf("HandleTransmit() error: %v", err)
	}
	if resp != "OK" {
		t.Fatalf("HandleTransmit() = %q, want OK", resp)
	}
	img, ok := g.ImageForClientID(clientID)
	if !ok {
		t.Fatalf("image %d not found after transmit", clientID)
	}
	return img
}
