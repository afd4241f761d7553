package purfectgfx

import (
	"fmt"
	"time"
)

// maxFrameResolutionDepth caps base-frame chain recursion so malformed
// (cyclic or very deep) chains cannot exhaust the stack.
const maxFrameResolutionDepth = 32

// coalescedFrameData resolves the final pixel buffer for a frame,
// recursively composing delta frames against their base frames.
func (g *GraphicsManager) coalescedFrameData(img *Image, f *Frame) (*frameBuffer, error) {
	// A standalone frame covering the whole canvas needs no compositing;
	// its cached bytes are the answer directly.
	if f.BaseFrameID == 0 && f.coversCanvas(img) {
		data, ok := g.cache.Read(img.internalID, f.ID)
		if !ok {
			return nil, fmt.Errorf("frame %d of image %d missing from cache", f.ID, img.internalID)
		}
		return &frameBuffer{
			px: data, width: f.Width, height: f.Height, opaque: f.Opaque,
			aligned: f.FourByteAligned,
		}, nil
	}
	return g.resolveFrame(img, f, 0)
}

func (g *GraphicsManager) resolveFrame(img *Image, f *Frame, depth int) (*frameBuffer, error) {
	if depth >= maxFrameResolutionDepth {
		return nil, fmt.Errorf("base frame chain for image %d exceeds depth %d",
			img.internalID, maxFrameResolutionDepth)
	}

	var canvas *frameBuffer
	if f.BaseFrameID != 0 {
		base := img.frameByID(f.BaseFrameID)
		if base == nil {
			return nil, fmt.Errorf("image %d frame %d references unknown base frame %d",
				img.internalID, f.ID, f.BaseFrameID)
		}
		resolved, err := g.resolveFrameOrDirect(img, base, depth+1)
		if err != nil {
			return nil, err
		}
		canvas = resolved
	} else {
		canvas = &frameBuffer{
			px:      make([]byte, img.Width*img.Height*4),
			width:   img.Width,
			height:  img.Height,
			aligned: true,
		}
		if f.Bgcolor != 0 {
			canvas.fill(f.Bgcolor)
		}
	}

	data, ok := g.cache.Read(img.internalID, f.ID)
	if !ok {
		return nil, fmt.Errorf("frame %d of image %d missing from cache", f.ID, img.internalID)
	}
	over := &frameBuffer{
		px: data, width: f.Width, height: f.Height,
		x: f.X, y: f.Y, opaque: f.Opaque,
	}
	compose(canvas, over, f.AlphaBlend)
	return canvas, nil
}

// resolveFrameOrDirect is resolveFrame with the full-canvas fast path,
// used when resolving base frames so an unmodified full base costs one
// cache read.
func (g *GraphicsManager) resolveFrameOrDirect(img *Image, f *Frame, depth int) (*frameBuffer, error) {
	if f.BaseFrameID == 0 && f.coversCanvas(img) {
		data, ok := g.cache.Read(img.internalID, f.ID)
		if !ok {
			return nil, fmt.Errorf("frame %d of image %d missing from cache", f.ID, img.internalID)
		}
		// Copy so composing onto the canvas never mutates cached bytes.
		buf := make([]byte, len(data))
		copy(buf, data)
		return &frameBuffer{
			px: buf, width: f.Width, height: f.Height, opaque: f.Opaque,
			aligned: f.FourByteAligned,
		}, nil
	}
	return g.resolveFrame(img, f, depth)
}

// AdvanceAnimations advances every eligible animated image whose current
// frame is past due at now. It reports whether any image changed and the
// minimum wait until the next required update, so the caller can
// schedule exactly one future wake instead of polling. A zero delay
// means no image is currently animating.
func (g *GraphicsManager) AdvanceAnimations(now time.Time) (changed bool, nextWake time.Duration) {
	if g.opts.DisableAnimation {
		return false, 0
	}
	for _, img := range g.images {
		if !img.animationEligible() {
			continue
		}
		cur := img.frameAt(img.currentFrame)
		if cur == nil {
			continue
		}
		due := img.currentFrameShownAt.Add(cur.Gap)
		if now.Before(due) {
			nextWake = minWake(nextWake, due.Sub(now))
			continue
		}

		if g.advanceFrame(img) {
			img.currentFrameShownAt = now
			changed = true
			g.updateImageTexture(img, now)
		}
		if img.animationEligible() {
			next := img.frameAt(img.currentFrame)
			if next != nil {
				nextWake = minWake(nextWake, next.Gap)
			}
		}
	}
	return changed, nextWake
}

// advance moves the image to its next displayable frame, skipping
// zero-gap frames, counting loops at every wrap to frame 0 and stopping
// the animation when the loop limit is reached. It reports whether the
// current frame actually changed.
func (img *Image) advance(loading bool) bool {
	n := img.FrameCount()
	prev := img.currentFrame
	idx := prev
	for step := 0; step < n; step++ {
		idx = (idx + 1) % n
		if idx == 0 && !loading {
			// Loop counting is suppressed while frames are still
			// streaming in.
			img.currentLoop++
			if img.maxLoops > 0 && img.currentLoop >= img.maxLoops {
				img.animationState = AnimationStopped
				img.currentFrame = 0
				return prev != 0
			}
		}
		if f := img.frameAt(idx); f != nil && f.Gap > 0 {
			img.currentFrame = idx
			return idx != prev
		}
	}
	return false
}

func (g *GraphicsManager) advanceFrame(img *Image) bool {
	return img.advance(img.animationState == AnimationLoading)
}

func minWake(cur, candidate time.Duration) time.Duration {
	if candidate <= 0 {
		return cur
	}
	if cur == 0 || candidate < cur {
		return candidate
	}
	return cur
}
