package purfectgfx

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// Wire protocol front end. The host terminal's escape parser recognizes
// an APC graphics sequence (ESC _ G controls ; payload ESC \) and hands
// the body between "G" and the terminator to HandleAPC. The response,
// when non-empty, is a complete APC sequence to write back to the
// client.

// wireCommand holds every control key of a graphics APC verbatim. Key
// meanings depend on the action, so mapping into typed commands happens
// per action after parsing.
type wireCommand struct {
	action     byte // a
	deleteWhat byte // d

	format int  // f
	medium byte // t

	imageID     uint32 // i
	imageNumber uint32 // I
	placementID uint32 // p

	dataWidth  int   // s
	dataHeight int   // v
	dataSize   int64 // S
	dataOffset int64 // O

	compression byte // o
	more        bool // m
	quiet       int  // q

	x, y int // x, y
	w, h int // w, h

	cellXOff int // X (also composition mode for frames)
	cellYOff int // Y (also bgcolor for frames)

	cols, rows int   // c, r
	z          int32 // z
	virtual    bool  // U

	loops int // v reused by a=a; kept separately

	payload []byte
}

// parseWireCommand parses the body of a graphics APC: comma-separated
// key=value controls, optionally followed by ";" and a base64 payload.
func parseWireCommand(body []byte) (*wireCommand, error) {
	controls := string(body)
	var b64 string
	if idx := strings.IndexByte(controls, ';'); idx >= 0 {
		controls, b64 = controls[:idx], controls[idx+1:]
	}

	cmd := &wireCommand{action: 't', format: int(FormatRGBA), medium: 'd'}
	for _, kv := range strings.Split(controls, ",") {
		if kv == "" {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq != 1 || len(kv) < 3 {
			return nil, fmt.Errorf("malformed control %q", kv)
		}
		if err := cmd.setKey(kv[0], kv[2:]); err != nil {
			return nil, err
		}
	}

	if b64 != "" {
		payload, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("payload is not valid base64: %w", err)
		}
		cmd.payload = payload
	}
	return cmd, nil
}

func (c *wireCommand) setKey(key byte, val string) error {
	atoi := func() (int, error) {
		n, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("key %c: %w", key, err)
		}
		return n, nil
	}
	atou := func() (uint32, error) {
		n, err := strconv.ParseUint(val, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("key %c: %w", key, err)
		}
		return uint32(n), nil
	}

	var err error
	var n int
	switch key {
	case 'a':
		c.action = val[0]
	case 'd':
		c.deleteWhat = val[0]
	case 'f':
		c.format, err = atoi()
	case 't':
		c.medium = val[0]
	case 'i':
		c.imageID, err = atou()
	case 'I':
		c.imageNumber, err = atou()
	case 'p':
		c.placementID, err = atou()
	case 's':
		c.dataWidth, err = atoi()
	case 'v':
		// Data height for transmissions, loop count for a=a.
		n, err = atoi()
		c.dataHeight, c.loops = n, n
	case 'S':
		n, err = atoi()
		c.dataSize = int64(n)
	case 'O':
		n, err = atoi()
		c.dataOffset = int64(n)
	case 'o':
		c.compression = val[0]
	case 'm':
		n, err = atoi()
		c.more = n != 0
	case 'q':
		c.quiet, err = atoi()
	case 'x':
		c.x, err = atoi()
	case 'y':
		c.y, err = atoi()
	case 'w':
		c.w, err = atoi()
	case 'h':
		c.h, err = atoi()
	case 'X':
		c.cellXOff, err = atoi()
	case 'Y':
		c.cellYOff, err = atoi()
	case 'c':
		c.cols, err = atoi()
	case 'r':
		c.rows, err = atoi()
	case 'z':
		n, err = atoi()
		c.z = int32(n)
	case 'U':
		n, err = atoi()
		c.virtual = n != 0
	default:
		// Unknown keys are ignored so newer clients keep working.
	}
	return err
}

func (c *wireCommand) transmissionMedium() TransmissionMedium {
	switch c.medium {
	case 'f':
		return MediumFile
	case 't':
		return MediumTempFile
	case 's':
		return MediumSharedMemory
	default:
		return MediumDirect
	}
}

func (c *wireCommand) transmitCommand(frame bool) *TransmitCommand {
	t := &TransmitCommand{
		Format:      TransmissionFormat(c.format),
		Medium:      c.transmissionMedium(),
		ImageID:     c.imageID,
		ImageNumber: c.imageNumber,
		PlacementID: c.placementID,
		Width:       c.dataWidth,
		Height:      c.dataHeight,
		DataOffset:  c.dataOffset,
		DataSize:    c.dataSize,
		Compressed:  c.compression == 'z',
		More:        c.more,
		Quiet:       c.quiet,
	}
	if frame {
		t.IsFrame = true
		t.FrameID = uint32(c.rows)
		t.BaseFrameID = uint32(c.cols)
		t.X, t.Y = c.x, c.y
		t.Bgcolor = uint32(c.cellYOff)
		t.AlphaBlend = c.cellXOff != 1
		t.GapMS = int(c.z)
	}
	return t
}

func (c *wireCommand) placementCommand() *PlacementCommand {
	return &PlacementCommand{
		ImageID:     c.imageID,
		ImageNumber: c.imageNumber,
		PlacementID: c.placementID,
		Virtual:     c.virtual,
		StartRow:    c.y,
		StartCol:    c.x,
		NumCols:     c.cols,
		NumRows:     c.rows,
		ZIndex:      c.z,
	}
}

func (c *wireCommand) deleteCommand() (*DeleteCommand, error) {
	d := &DeleteCommand{
		ImageID:     c.imageID,
		ImageNumber: c.imageNumber,
		PlacementID: c.placementID,
		Row:         c.y,
		Col:         c.x,
		ZIndex:      c.z,
	}
	what := c.deleteWhat
	if what == 0 {
		what = 'a'
	}
	d.FreeData = what >= 'A' && what <= 'Z'
	switch what {
	case 'a', 'A':
		d.What = DeleteAll
	case 'i', 'I':
		d.What = DeleteByID
	case 'n', 'N':
		d.What = DeleteByNumber
		d.ImageID = 0
	case 'p', 'P':
		d.What = DeleteAtPosition
	case 'x', 'X':
		d.What = DeleteByColumn
	case 'y', 'Y':
		d.What = DeleteByRow
	case 'z', 'Z':
		d.What = DeleteByZIndex
	default:
		return nil, fmt.Errorf("unknown delete target %c", what)
	}
	return d, nil
}

// HandleAPC executes the body of one graphics APC sequence and returns
// the response sequence to send back, or "" when the command produces no
// response (quiet levels, chunked transmissions in flight, deletes).
func (g *GraphicsManager) HandleAPC(body []byte) string {
	cmd, err := parseWireCommand(body)
	if err != nil {
		// Without parsed controls there is no id to address the
		// response to; the error is only logged.
		logError("graphics command rejected: %v", err)
		return ""
	}

	var resp string
	switch cmd.action {
	case 't', 'T':
		resp, err = g.HandleTransmit(cmd.transmitCommand(false), cmd.payload)
		if cmd.action == 'T' && resp == "OK" {
			resp, err = g.HandlePlacement(cmd.placementCommand())
		}
	case 'f':
		resp, err = g.HandleTransmit(cmd.transmitCommand(true), cmd.payload)
	case 'a':
		resp, err = g.HandleAnimationControl(&AnimationControlCommand{
			ImageID:      cmd.imageID,
			ImageNumber:  cmd.imageNumber,
			Action:       cmd.dataWidth, // s
			FrameID:      uint32(cmd.rows),
			GapMS:        int(cmd.z),
			CurrentFrame: cmd.cols,
			MaxLoops:     cmd.loops,
		})
	case 'p':
		resp, err = g.HandlePlacement(cmd.placementCommand())
	case 'q':
		resp, err = g.HandleQuery(cmd.transmitCommand(false), cmd.payload)
	case 'd':
		del, derr := cmd.deleteCommand()
		if derr != nil {
			logError("graphics command rejected: %v", derr)
			return ""
		}
		g.HandleDelete(del)
		return "" // deletes are never acknowledged
	default:
		resp = respond("EINVAL", "unknown action %c", cmd.action)
	}
	if err != nil {
		logV("graphics command failed: %v", err)
	}
	return wrapResponse(cmd, resp)
}

// wrapResponse builds the APC response sequence, honoring the quiet
// level: 1 suppresses success responses, 2 suppresses everything.
func wrapResponse(cmd *wireCommand, resp string) string {
	if resp == "" {
		return ""
	}
	if cmd.quiet >= 2 || (cmd.quiet == 1 && resp == "OK") {
		return ""
	}
	var keys strings.Builder
	fmt.Fprintf(&keys, "i=%d", cmd.imageID)
	if cmd.imageNumber != 0 {
		fmt.Fprintf(&keys, ",I=%d", cmd.imageNumber)
	}
	if cmd.placementID != 0 {
		fmt.Fprintf(&keys, ",p=%d", cmd.placementID)
	}
	return "\x1b_G" + keys.String() + ";" + resp + "\x1b\\"
}
