package purfectgfx

import (
	"bytes"
	"fmt"
	"time"
)

// The command layer consumes requests already parsed from the wire
// protocol by the host terminal. Handlers return the response string the
// host should relay to the client ("" means no response, e.g. while a
// chunked transmission is still in flight) and an error for conditions
// the host may want to log.

// TransmitCommand describes one image or frame data transmission.
type TransmitCommand struct {
	Format TransmissionFormat
	Medium TransmissionMedium

	ImageID     uint32 // client-visible image id
	ImageNumber uint32 // secondary, non-unique handle
	PlacementID uint32

	Width  int
	Height int

	DataOffset int64 // offset into file-backed payloads
	DataSize   int64 // 0 means read to the end

	Compressed bool // payload is zlib compressed
	More       bool // further chunks follow
	Quiet      int  // 1 = no success response, 2 = no responses at all

	// Frame fields, used when IsFrame is set.
	IsFrame     bool
	FrameID     uint32 // 0 = append a new frame, else edit that frame
	BaseFrameID uint32 // 0 = standalone frame
	X, Y        int    // offset within the image canvas
	Bgcolor     uint32 // canvas fill as 0xRRGGBBAA
	AlphaBlend  bool
	GapMS       int // display duration; negative means gapless
}

// PlacementCommand anchors an image to the grid.
type PlacementCommand struct {
	ImageID     uint32
	ImageNumber uint32
	PlacementID uint32

	// Virtual creates a template placement driven by grid placeholder
	// cells instead of an explicit position.
	Virtual bool

	StartRow int
	StartCol int
	NumCols  int // 0 = derive from image size
	NumRows  int
	ZIndex   int32
}

// DeleteTarget selects what a DeleteCommand removes.
type DeleteTarget int

const (
	DeleteAll DeleteTarget = iota
	DeleteByID
	DeleteByNumber
	DeleteAtPosition
	DeleteByColumn
	DeleteByRow
	DeleteByZIndex
)

// DeleteCommand removes placements, and optionally the image data
// backing them.
type DeleteCommand struct {
	What        DeleteTarget
	ImageID     uint32
	ImageNumber uint32
	PlacementID uint32
	Row         int
	Col         int
	ZIndex      int32

	// FreeData also removes images left without placements even when
	// they still have a client id.
	FreeData bool
}

// AnimationControlCommand adjusts animation state of an existing image.
type AnimationControlCommand struct {
	ImageID     uint32
	ImageNumber uint32

	// Action: 1 = stop, 2 = run with loop counting suppressed (frames
	// still streaming), 3 = run. 0 leaves the state unchanged.
	Action int

	FrameID      uint32 // frame whose gap to change, 0 = none
	GapMS        int    // new gap for FrameID; negative means gapless
	CurrentFrame int    // 1-based frame to jump to, 0 = no jump
	MaxLoops     int    // new loop limit, 0 = no change, negative = infinite
}

type loadingTransmission struct {
	cmd TransmitCommand
	buf bytes.Buffer
}

func respond(code, format string, args ...interface{}) string {
	if code == "OK" {
		return "OK"
	}
	return code + ":" + fmt.Sprintf(format, args...)
}

// targetImage finds the image addressed by id or, failing that, number.
func (g *GraphicsManager) targetImage(id, number uint32) (*Image, bool) {
	if img, ok := g.ImageForClientID(id); ok {
		return img, true
	}
	if number != 0 {
		if imgs := g.imagesForClientNumber(number); len(imgs) > 0 {
			// The most recent image with the number wins.
			return imgs[len(imgs)-1], true
		}
	}
	return nil, false
}

// HandleTransmit ingests image or frame pixel data. Chunked direct
// transmissions accumulate until the final chunk arrives. On decode
// failure no image is created and the accumulated message is returned.
func (g *GraphicsManager) HandleTransmit(cmd *TransmitCommand, payload []byte) (string, error) {
	if cmd.Medium == MediumDirect {
		if g.loading != nil {
			g.loading.buf.Write(payload)
			if cmd.More {
				return "", nil
			}
			full := g.loading
			g.loading = nil
			return g.transmitComplete(&full.cmd, full.buf.Bytes())
		}
		if cmd.More {
			g.loading = &loadingTransmission{cmd: *cmd}
			g.loading.buf.Write(payload)
			return "", nil
		}
	}
	return g.transmitComplete(cmd, payload)
}

func (g *GraphicsManager) transmitComplete(cmd *TransmitCommand, payload []byte) (string, error) {
	frame, err := loadFrameData(cmd, payload)
	if err != nil {
		return respond("EBADF", "%v", err), err
	}
	if cmd.IsFrame {
		return g.addFrame(cmd, frame)
	}
	return g.addRootImage(cmd, frame)
}

// addRootImage creates a new image from a decoded frame buffer.
func (g *GraphicsManager) addRootImage(cmd *TransmitCommand, frame *decodedFrame) (string, error) {
	img := g.NewImage(cmd.ImageID, cmd.ImageNumber, frame.width, frame.height)
	img.root = Frame{
		ID:              1,
		Width:           frame.width,
		Height:          frame.height,
		Opaque:          frame.opaque,
		FourByteAligned: is4ByteAligned(frame.width, bppOf(frame)),
	}
	if err := g.storeFrameData(img, &img.root, frame.px); err != nil {
		g.removeImage(img)
		return respond("EIO", "%v", err), err
	}
	img.touch(time.Now())
	g.uploadImagePixels(img, &frameBuffer{
		px: frame.px, width: frame.width, height: frame.height, opaque: frame.opaque,
		aligned: img.root.FourByteAligned,
	})
	return "OK", nil
}

func bppOf(f *decodedFrame) int {
	if f.opaque {
		return 3
	}
	return 4
}

// addFrame appends or edits an animation frame of an existing image.
func (g *GraphicsManager) addFrame(cmd *TransmitCommand, data *decodedFrame) (string, error) {
	img, ok := g.targetImage(cmd.ImageID, cmd.ImageNumber)
	if !ok {
		err := fmt.Errorf("no image with id %d or number %d", cmd.ImageID, cmd.ImageNumber)
		return respond("ENOENT", "%v", err), err
	}
	if data.width+cmd.X > img.Width || data.height+cmd.Y > img.Height {
		err := fmt.Errorf("frame %dx%d at (%d,%d) exceeds the %dx%d canvas",
			data.width, data.height, cmd.X, cmd.Y, img.Width, img.Height)
		return respond("EINVAL", "%v", err), err
	}

	gap := time.Duration(cmd.GapMS) * time.Millisecond
	if cmd.GapMS < 0 {
		gap = 0
	}
	var f *Frame
	if cmd.FrameID != 0 {
		if f = img.frameByID(cmd.FrameID); f == nil {
			err := fmt.Errorf("image %d has no frame %d", img.clientID, cmd.FrameID)
			return respond("ENOENT", "%v", err), err
		}
	} else {
		img.extraFrames = append(img.extraFrames, Frame{ID: img.nextFrameID()})
		f = &img.extraFrames[len(img.extraFrames)-1]
		if img.animationState == AnimationStopped {
			img.animationState = AnimationLoading
		}
	}
	f.Width, f.Height = data.width, data.height
	f.X, f.Y = cmd.X, cmd.Y
	f.Bgcolor = cmd.Bgcolor
	f.BaseFrameID = cmd.BaseFrameID
	f.AlphaBlend = cmd.AlphaBlend
	f.Opaque = data.opaque
	f.FourByteAligned = is4ByteAligned(data.width, bppOf(data))
	f.Gap = gap

	if err := g.storeFrameData(img, f, data.px); err != nil {
		return respond("EIO", "%v", err), err
	}
	img.touch(time.Now())
	return "OK", nil
}

// HandleAnimationControl applies an animation control command.
func (g *GraphicsManager) HandleAnimationControl(cmd *AnimationControlCommand) (string, error) {
	img, ok := g.targetImage(cmd.ImageID, cmd.ImageNumber)
	if !ok {
		err := fmt.Errorf("no image with id %d or number %d", cmd.ImageID, cmd.ImageNumber)
		return respond("ENOENT", "%v", err), err
	}
	if cmd.FrameID != 0 {
		if f := img.frameByID(cmd.FrameID); f != nil {
			if cmd.GapMS < 0 {
				f.Gap = 0
			} else {
				f.Gap = time.Duration(cmd.GapMS) * time.Millisecond
			}
		}
	}
	if cmd.CurrentFrame > 0 && cmd.CurrentFrame <= img.FrameCount() {
		img.currentFrame = cmd.CurrentFrame - 1
		img.currentFrameShownAt = time.Time{}
		g.updateImageTexture(img, time.Now())
	}
	switch cmd.Action {
	case 1:
		img.animationState = AnimationStopped
	case 2:
		img.animationState = AnimationLoading
	case 3:
		img.animationState = AnimationRunning
		img.currentLoop = 0
	}
	if cmd.MaxLoops != 0 {
		if cmd.MaxLoops < 0 {
			img.maxLoops = 0
		} else {
			img.maxLoops = cmd.MaxLoops
		}
	}
	return "OK", nil
}

// HandlePlacement creates a placement for a previously transmitted
// image. A repeated placement id rewrites the earlier placement in
// place. Geometrically degenerate placements are silent no-ops.
func (g *GraphicsManager) HandlePlacement(cmd *PlacementCommand) (string, error) {
	img, ok := g.targetImage(cmd.ImageID, cmd.ImageNumber)
	if !ok {
		err := fmt.Errorf("no image with id %d or number %d", cmd.ImageID, cmd.ImageNumber)
		return respond("ENOENT", "%v", err), err
	}

	var ref *ImageRef
	if existing := img.refForClientID(cmd.PlacementID); existing != nil {
		ref = existing
	} else {
		ref = g.createRef(img, nil)
		ref.clientID = cmd.PlacementID
	}
	ref.IsVirtual = cmd.Virtual
	ref.StartRow, ref.StartCol = cmd.StartRow, cmd.StartCol
	ref.NumCols, ref.NumRows = cmd.NumCols, cmd.NumRows
	ref.ZIndex = cmd.ZIndex
	img.touch(time.Now())

	if !ref.IsVirtual {
		if !resolveRef(img, ref, g.cellWidth, g.cellHeight) {
			// Fully out of bounds after clipping: drop the ref and
			// leave the image itself unchanged, even when it has no
			// client-visible id.
			img.dropRef(ref.internalID)
			return "OK", nil
		}
	}
	return "OK", nil
}

// HandleDelete removes placements matching the command, cascading image
// removal per its FreeData flag.
func (g *GraphicsManager) HandleDelete(cmd *DeleteCommand) (string, error) {
	switch cmd.What {
	case DeleteAll:
		g.RemoveAllCellImages(cmd.FreeData)

	case DeleteByID:
		img, ok := g.targetImage(cmd.ImageID, 0)
		if !ok {
			return "OK", nil // deleting what is absent is a no-op
		}
		g.filterRefs(cmd.FreeData, func(cand *Image, ref *ImageRef) bool {
			return cand == img && (cmd.PlacementID == 0 || ref.clientID == cmd.PlacementID)
		})
		if cmd.FreeData && cmd.PlacementID == 0 {
			if live := g.imageByInternalID(img.internalID); live != nil {
				g.removeImage(live)
			}
		}

	case DeleteByNumber:
		for _, img := range g.imagesForClientNumber(cmd.ImageNumber) {
			g.filterRefs(cmd.FreeData, func(cand *Image, ref *ImageRef) bool {
				return cand == img && (cmd.PlacementID == 0 || ref.clientID == cmd.PlacementID)
			})
			if cmd.FreeData && cmd.PlacementID == 0 {
				if live := g.imageByInternalID(img.internalID); live != nil {
					g.removeImage(live)
				}
			}
		}

	case DeleteAtPosition:
		g.filterRefs(cmd.FreeData, func(_ *Image, ref *ImageRef) bool {
			return !ref.IsVirtual && ref.occupiesCell(cmd.Row, cmd.Col)
		})

	case DeleteByColumn:
		g.filterRefs(cmd.FreeData, func(_ *Image, ref *ImageRef) bool {
			return !ref.IsVirtual && cmd.Col >= ref.StartCol && cmd.Col < ref.endCol()
		})

	case DeleteByRow:
		g.filterRefs(cmd.FreeData, func(_ *Image, ref *ImageRef) bool {
			return !ref.IsVirtual && cmd.Row >= ref.StartRow && cmd.Row < ref.endRow()
		})

	case DeleteByZIndex:
		g.filterRefs(cmd.FreeData, func(_ *Image, ref *ImageRef) bool {
			return !ref.IsVirtual && ref.ZIndex == cmd.ZIndex
		})
	}
	return "OK", nil
}

// HandleQuery validates that the transmitted data would decode, without
// creating an image.
func (g *GraphicsManager) HandleQuery(cmd *TransmitCommand, payload []byte) (string, error) {
	if _, err := loadFrameData(cmd, payload); err != nil {
		return respond("EBADF", "%v", err), err
	}
	return "OK", nil
}
