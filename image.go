package purfectgfx

import "time"

// AnimationState describes where an animated image is in its lifecycle.
type AnimationState int

const (
	// AnimationStopped means the image never animates, or was stopped by
	// the client or by reaching its loop limit.
	AnimationStopped AnimationState = iota
	// AnimationLoading means frames are still being streamed in; the
	// image animates but loop counting is suppressed.
	AnimationLoading
	// AnimationRunning means the image animates normally.
	AnimationRunning
)

// Frame is one animation frame of an Image. The pixel payload is never
// held here; it lives in the content cache, addressed by (image id,
// frame id).
type Frame struct {
	ID     uint32
	Width  int
	Height int
	X      int // offset within the image canvas
	Y      int

	// Bgcolor fills the canvas before the frame is composed onto it,
	// as 0xRRGGBBAA. Zero fills with transparent black.
	Bgcolor uint32

	// BaseFrameID is the frame this one is a delta against.
	// 0 means standalone (full frame).
	BaseFrameID uint32

	// AlphaBlend selects alpha compositing rather than overwrite when
	// the frame is composed onto its base.
	AlphaBlend bool

	// Opaque is true for 3-byte (RGB) pixel data, false for RGBA.
	Opaque bool

	// FourByteAligned records whether rows of the pixel data start on
	// 4-byte boundaries, computed from the true row stride.
	FourByteAligned bool

	// Gap is how long the frame is displayed. Zero-gap frames are
	// skipped by the animation scheduler.
	Gap time.Duration
}

// bytesPerPixel returns the pixel size of the frame's cached data.
func (f *Frame) bytesPerPixel() int {
	if f.Opaque {
		return 3
	}
	return 4
}

// dataSize returns the size in bytes of the frame's cached pixel data.
func (f *Frame) dataSize() int {
	return f.Width * f.Height * f.bytesPerPixel()
}

// coversCanvas reports whether the frame fills the whole image canvas
// at offset (0,0).
func (f *Frame) coversCanvas(img *Image) bool {
	return f.X == 0 && f.Y == 0 && f.Width == img.Width && f.Height == img.Height
}

// Image is one decoded graphic, identified independently by an internal
// id and a client-visible id. It owns its frames and placements and is
// destroyed when explicitly deleted, evicted for storage pressure, or
// left with zero placements and no client id.
type Image struct {
	internalID   uint32
	clientID     uint32
	clientNumber uint32

	Width  int
	Height int

	// texture is owned exclusively by the image and released exactly
	// once, when the image is destroyed or the texture is replaced.
	texture Texture

	// usedStorage is the number of bytes billed against the storage
	// budget; it always equals the sum of the image's cached frame sizes.
	usedStorage int64

	atime time.Time // last access, used for LRU eviction

	root        Frame
	extraFrames []Frame
	refs        []*ImageRef

	animationState AnimationState
	currentFrame   int // index into the frame sequence, 0 = root
	currentLoop    int
	maxLoops       int // 0 = loop forever

	currentFrameShownAt time.Time
}

// InternalID returns the image's internal id. It is never 0.
func (img *Image) InternalID() uint32 { return img.internalID }

// ClientID returns the client-visible id, or 0 if the image has none.
func (img *Image) ClientID() uint32 { return img.clientID }

// ClientNumber returns the client "number", a secondary non-unique handle.
func (img *Image) ClientNumber() uint32 { return img.clientNumber }

// FrameCount returns the number of frames, including the root frame.
func (img *Image) FrameCount() int { return 1 + len(img.extraFrames) }

// frameAt returns the frame at the given sequence index (0 = root),
// or nil if the index is out of range.
func (img *Image) frameAt(idx int) *Frame {
	if idx == 0 {
		return &img.root
	}
	if idx < 1 || idx > len(img.extraFrames) {
		return nil
	}
	return &img.extraFrames[idx-1]
}

// frameByID returns the frame with the given frame id, or nil.
func (img *Image) frameByID(id uint32) *Frame {
	if img.root.ID == id {
		return &img.root
	}
	for i := range img.extraFrames {
		if img.extraFrames[i].ID == id {
			return &img.extraFrames[i]
		}
	}
	return nil
}

// nextFrameID returns the next unused frame id for this image.
// Frame ids start at 1 for the root frame.
func (img *Image) nextFrameID() uint32 {
	max := img.root.ID
	for i := range img.extraFrames {
		if img.extraFrames[i].ID > max {
			max = img.extraFrames[i].ID
		}
	}
	return max + 1
}

// hasNonzeroGap reports whether any frame has a nonzero display duration.
func (img *Image) hasNonzeroGap() bool {
	if img.root.Gap > 0 {
		return true
	}
	for i := range img.extraFrames {
		if img.extraFrames[i].Gap > 0 {
			return true
		}
	}
	return false
}

// animationEligible reports whether the image can advance its animation.
func (img *Image) animationEligible() bool {
	if img.animationState == AnimationStopped {
		return false
	}
	if img.FrameCount() < 2 || !img.hasNonzeroGap() {
		return false
	}
	return img.maxLoops == 0 || img.currentLoop < img.maxLoops
}

// touch updates the image's last-access time.
func (img *Image) touch(now time.Time) { img.atime = now }
