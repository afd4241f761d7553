package purfectgfx

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zlib"
)

// TransmissionFormat identifies the pixel encoding of transmitted data.
// Values match the wire protocol.
type TransmissionFormat int

const (
	FormatRGB  TransmissionFormat = 24  // raw 3-byte pixels
	FormatRGBA TransmissionFormat = 32  // raw 4-byte pixels
	FormatPNG  TransmissionFormat = 100 // PNG encoded
)

// TransmissionMedium identifies where transmitted data lives.
type TransmissionMedium int

const (
	MediumDirect TransmissionMedium = iota // escape-sequence payload
	MediumFile                             // regular file, left in place
	MediumTempFile                         // file deleted after reading
	MediumSharedMemory                     // POSIX shared memory object
)

// decodedFrame is the output of the decode boundary: a pixel buffer plus
// dimensions and format.
type decodedFrame struct {
	px     []byte
	width  int
	height int
	opaque bool // 3-byte pixels
}

// decodeErrors accumulates decode failure messages instead of raising
// them as control flow across the decode boundary.
type decodeErrors struct {
	msgs []string
}

func (e *decodeErrors) addf(format string, args ...interface{}) {
	e.msgs = append(e.msgs, fmt.Sprintf(format, args...))
}

func (e *decodeErrors) err() error {
	if len(e.msgs) == 0 {
		return nil
	}
	return fmt.Errorf("image decode failed: %s", strings.Join(e.msgs, "; "))
}

// loadFrameData obtains and decodes the pixel data for a transmit
// command. On failure the accumulated error is returned and no image
// state has been touched.
func loadFrameData(cmd *TransmitCommand, payload []byte) (*decodedFrame, error) {
	var errs decodeErrors

	data, err := readTransmissionPayload(cmd, payload)
	if err != nil {
		errs.addf("%v", err)
		return nil, errs.err()
	}

	if cmd.Compressed {
		data, err = inflate(data)
		if err != nil {
			errs.addf("zlib: %v", err)
			return nil, errs.err()
		}
	}

	switch cmd.Format {
	case FormatPNG:
		return decodePNG(data, &errs)
	case FormatRGB, FormatRGBA:
		bpp := 4
		if cmd.Format == FormatRGB {
			bpp = 3
		}
		expected := cmd.Width * cmd.Height * bpp
		if cmd.Width <= 0 || cmd.Height <= 0 {
			errs.addf("raw data needs explicit positive dimensions, got %dx%d", cmd.Width, cmd.Height)
			return nil, errs.err()
		}
		if len(data) != expected {
			errs.addf("raw data size %d does not match %dx%d at %d bytes per pixel (want %d)",
				len(data), cmd.Width, cmd.Height, bpp, expected)
			return nil, errs.err()
		}
		return &decodedFrame{px: data, width: cmd.Width, height: cmd.Height, opaque: bpp == 3}, nil
	default:
		errs.addf("unknown transmission format %d", cmd.Format)
		return nil, errs.err()
	}
}

// readTransmissionPayload fetches the raw bytes for the command's
// medium. File reads honor the command's offset and size; temporary
// files are unlinked after reading, but only when the path looks like
// one created for graphics transmission, so a malicious client cannot
// delete arbitrary files.
func readTransmissionPayload(cmd *TransmitCommand, payload []byte) ([]byte, error) {
	switch cmd.Medium {
	case MediumDirect:
		return payload, nil

	case MediumFile, MediumTempFile:
		path := string(payload)
		data, err := readFileSlice(path, cmd.DataOffset, cmd.DataSize)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if cmd.Medium == MediumTempFile && strings.Contains(filepath.Base(path), "tty-graphics-protocol") {
			_ = os.Remove(path)
		}
		return data, nil

	case MediumSharedMemory:
		name := strings.TrimPrefix(string(payload), "/")
		path := filepath.Join("/dev/shm", name)
		data, err := readFileSlice(path, cmd.DataOffset, cmd.DataSize)
		if err != nil {
			return nil, fmt.Errorf("read shared memory %s: %w", name, err)
		}
		_ = os.Remove(path)
		return data, nil

	default:
		return nil, fmt.Errorf("unknown transmission medium %d", cmd.Medium)
	}
}

func readFileSlice(path string, offset, size int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return nil, err
		}
	}
	if size > 0 {
		data := make([]byte, size)
		if _, err := io.ReadFull(f, data); err != nil {
			return nil, err
		}
		return data, nil
	}
	return io.ReadAll(f)
}

func inflate(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func decodePNG(data []byte, errs *decodeErrors) (*decodedFrame, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		errs.addf("png: %v", err)
		return nil, errs.err()
	}
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 {
		converted := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(converted, converted.Bounds(), img, bounds.Min, draw.Src)
		rgba = converted
	}
	return &decodedFrame{px: rgba.Pix, width: bounds.Dx(), height: bounds.Dy()}, nil
}
