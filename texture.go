package purfectgfx

import (
	"image"
	"time"

	xdraw "golang.org/x/image/draw"
)

// EdgePolicy selects texture sampling behavior past the image edges.
type EdgePolicy int

const (
	// EdgeRepeat tiles the image.
	EdgeRepeat EdgePolicy = iota
	// EdgeMirror tiles the image with alternating reflections.
	EdgeMirror
	// EdgeClamp clamps to a transparent border.
	EdgeClamp
)

// TextureOptions describes how an image texture is sampled.
type TextureOptions struct {
	// Linear selects smooth (linear) filtering. Image textures use it
	// because images may be scaled; the sprite atlas does not, to avoid
	// bleeding between cells.
	Linear bool

	Edge EdgePolicy
}

// Texture is a GPU-resident 2D texture. A texture is owned exclusively
// by its Image (or by the sprite atlas) and released exactly once, by
// the owner.
type Texture interface {
	// Upload replaces the texture contents with the given pixel rows.
	// opaque marks 3-byte RGB rows instead of RGBA; frames of one image
	// may alternate formats, so it is per upload, not per texture.
	// rowAligned reports whether rows start on 4-byte boundaries, for
	// backends that must set a row-unpack alignment before uploading.
	Upload(pix []byte, width, height int, opaque, rowAligned bool) error
	Size() (width, height int)
	Release()
}

// TextureArray is a layered GPU texture used for the sprite atlas.
type TextureArray interface {
	// SubUpload writes one cell-sized tile at (x, y) on the given layer.
	SubUpload(x, y, layer, width, height int, pix []byte) error

	// CopyFrom bulk-copies the given region of src into this array using
	// a GPU-side copy primitive. It reports false when no such primitive
	// is available, in which case the caller falls back to a host-memory
	// round trip.
	CopyFrom(src TextureArray, width, height, layers int) bool

	// ReadPixels returns the full RGBA contents, layer after layer.
	// It is the slow path used only by the copy fallback.
	ReadPixels() ([]byte, error)

	Layout() (width, height, layers int)
	Release()
}

// Backend abstracts the GPU. Implementations live in subpackages (see
// the ebiten backend); tests use in-memory fakes.
type Backend interface {
	MaxTextureSize() int
	MaxArrayLayers() int

	// ContextCurrent reports whether a rendering context is active for
	// the owning window. Uploads attempted without one are deferred, not
	// failed.
	ContextCurrent() bool

	NewTexture(width, height int, opts TextureOptions) (Texture, error)
	NewTextureArray(width, height, layers int) (TextureArray, error)
}

// is4ByteAligned computes whether pixel rows start on 4-byte boundaries
// from the true row stride.
func is4ByteAligned(width, bytesPerPixel int) bool {
	return bytesPerPixel == 4 || (width*bytesPerPixel)%4 == 0
}

// updateImageTexture recomposes the image's current frame and uploads it
// to the image's texture, deferring when no context is current.
func (g *GraphicsManager) updateImageTexture(img *Image, now time.Time) {
	f := img.frameAt(img.currentFrame)
	if f == nil {
		return
	}
	buf, err := g.coalescedFrameData(img, f)
	if err != nil {
		// Degraded service: the frame's display is skipped.
		logError("skipping frame display: %v", err)
		return
	}
	img.touch(now)
	g.uploadImagePixels(img, buf)
}

// uploadImagePixels sends a composed pixel buffer to the image's
// texture, creating the texture on first use. Without an active context
// the upload is queued and drained on the next render.
func (g *GraphicsManager) uploadImagePixels(img *Image, buf *frameBuffer) {
	if !g.backend.ContextCurrent() {
		g.deferUpload(img.internalID, buf)
		return
	}
	buf = g.downscaleIfOversized(buf)
	if img.texture == nil {
		tex, err := g.backend.NewTexture(buf.width, buf.height, TextureOptions{
			Linear: true,
			Edge:   g.opts.ResolveEdgePolicy(),
		})
		if err != nil {
			logError("texture allocation for image %d: %v", img.internalID, err)
			return
		}
		img.texture = tex
	}
	if err := img.texture.Upload(buf.px, buf.width, buf.height, buf.opaque, buf.aligned); err != nil {
		logError("texture upload for image %d: %v", img.internalID, err)
	}
}

// maxTextureSize returns the backend texture size limit, reduced by the
// configured cap when one is set.
func (g *GraphicsManager) maxTextureSize() int {
	limit := g.backend.MaxTextureSize()
	if g.opts.MaxTextureSize > 0 && g.opts.MaxTextureSize < limit {
		limit = g.opts.MaxTextureSize
	}
	return limit
}

// downscaleIfOversized scales a pixel buffer down to fit the GPU's
// maximum texture dimension, preserving aspect ratio. Buffers within the
// limit are returned unchanged.
func (g *GraphicsManager) downscaleIfOversized(buf *frameBuffer) *frameBuffer {
	limit := g.maxTextureSize()
	if limit <= 0 || (buf.width <= limit && buf.height <= limit) {
		return buf
	}
	w, h := buf.width, buf.height
	for w > limit || h > limit {
		w = (w + 1) / 2
		h = (h + 1) / 2
	}
	src := &image.RGBA{Pix: asRGBA(buf), Stride: buf.width * 4,
		Rect: image.Rect(0, 0, buf.width, buf.height)}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Rect, src, src.Rect, xdraw.Src, nil)
	logV("downscaled oversized image from %dx%d to %dx%d (texture limit %d)",
		buf.width, buf.height, w, h, limit)
	return &frameBuffer{px: dst.Pix, width: w, height: h, aligned: true}
}

// asRGBA returns the buffer's pixels as RGBA, expanding opaque RGB rows.
func asRGBA(buf *frameBuffer) []byte {
	if !buf.opaque {
		return buf.px
	}
	out := make([]byte, buf.width*buf.height*4)
	for i, o := 0, 0; i+2 < len(buf.px); i, o = i+3, o+4 {
		out[o], out[o+1], out[o+2], out[o+3] = buf.px[i], buf.px[i+1], buf.px[i+2], 255
	}
	return out
}

type deferredUpload struct {
	imageID uint32
	buf     *frameBuffer
}

// deferUpload queues a pixel upload until a rendering context is
// current. At most one pending upload is kept per image.
func (g *GraphicsManager) deferUpload(imageID uint32, buf *frameBuffer) {
	for i := range g.deferred {
		if g.deferred[i].imageID == imageID {
			g.deferred[i].buf = buf
			return
		}
	}
	g.deferred = append(g.deferred, deferredUpload{imageID, buf})
	logV("deferred texture upload for image %d (no context current)", imageID)
}

// DrainDeferredUploads performs uploads that were queued while no
// rendering context was current. The host calls this at the start of a
// render pass, when the window's context is known to be current.
func (g *GraphicsManager) DrainDeferredUploads() {
	if len(g.deferred) == 0 || !g.backend.ContextCurrent() {
		return
	}
	pending := g.deferred
	g.deferred = nil
	for _, d := range pending {
		if img := g.imageByInternalID(d.imageID); img != nil {
			g.uploadImagePixels(img, d.buf)
		}
	}
}
