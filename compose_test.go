package purfectgfx

import (
	"bytes"
	"testing"
)

func rgbaBuf(w, h int, pixels ...byte) *frameBuffer {
	return &frameBuffer{px: pixels, width: w, height: h}
}

func TestCompose_OpaqueSourceReplacesDestination(t *testing.T) {
	// For all opaque source pixels the destination must equal the source
	// exactly, whatever it held before.
	destinations := [][]byte{
		{0, 0, 0, 0},
		{255, 255, 255, 255},
		{1, 2, 3, 4},
		{200, 100, 50, 128},
	}
	src := []byte{17, 99, 203, 255}
	for _, d := range destinations {
		under := rgbaBuf(1, 1, append([]byte(nil), d...)...)
		over := rgbaBuf(1, 1, append([]byte(nil), src...)...)
		compose(under, over, true)
		if !bytes.Equal(under.px, src) {
			t.Errorf("opaque compose over %v = %v, want %v", d, under.px, src)
		}
	}
}

func TestCompose_TransparentSourceLeavesDestination(t *testing.T) {
	dst := []byte{200, 100, 50, 128}
	under := rgbaBuf(1, 1, append([]byte(nil), dst...)...)
	over := rgbaBuf(1, 1, 17, 99, 203, 0)
	compose(under, over, true)
	if !bytes.Equal(under.px, dst) {
		t.Errorf("alpha-0 compose changed destination: %v, want %v", under.px, dst)
	}
}

func TestCompose_NoBlendSameFormatCopiesRows(t *testing.T) {
	under := &frameBuffer{px: make([]byte, 4*4*4), width: 4, height: 4}
	over := &frameBuffer{px: solidFrame(2, 2, 9, 8, 7, 6), width: 2, height: 2, x: 1, y: 1}
	compose(under, over, false)

	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			o := (y*4 + x) * 4
			inside := x >= 1 && x < 3 && y >= 1 && y < 3
			want := []byte{0, 0, 0, 0}
			if inside {
				want = []byte{9, 8, 7, 6}
			}
			if !bytes.Equal(under.px[o:o+4], want) {
				t.Errorf("pixel (%d,%d) = %v, want %v", x, y, under.px[o:o+4], want)
			}
		}
	}
}

func TestCompose_NoBlendSynthesizesAlpha(t *testing.T) {
	// RGB source over RGBA destination: alpha 255 is synthesized.
	under := rgbaBuf(1, 1, 0, 0, 0, 0)
	over := &frameBuffer{px: []byte{5, 6, 7}, width: 1, height: 1, opaque: true}
	compose(under, over, false)
	want := []byte{5, 6, 7, 255}
	if !bytes.Equal(under.px, want) {
		t.Errorf("compose = %v, want %v", under.px, want)
	}
}

func TestCompose_BlendOntoOpaqueDestination(t *testing.T) {
	// Destination with no alpha channel: under = over*a + under*(1-a).
	under := &frameBuffer{px: []byte{100, 100, 100}, width: 1, height: 1, opaque: true}
	over := rgbaBuf(1, 1, 200, 200, 200, 128)
	compose(under, over, true)
	// a = 128/255; 200*a + 100*(1-a) = 150.19..., rounds to 150
	want := []byte{150, 150, 150}
	if !bytes.Equal(under.px, want) {
		t.Errorf("blend = %v, want %v", under.px, want)
	}
}

func TestCompose_BlendOverCompositing(t *testing.T) {
	under := rgbaBuf(1, 1, 0, 0, 255, 255)
	over := rgbaBuf(1, 1, 255, 0, 0, 128)
	compose(under, over, true)

	// na = 1 since destination is fully opaque; rgb blends linearly.
	if under.px[3] != 255 {
		t.Errorf("alpha = %d, want 255", under.px[3])
	}
	if under.px[0] != 128 || under.px[2] != 127 {
		t.Errorf("rgb = %v, want [128 0 127 255]", under.px)
	}
}

func TestCompose_ZeroCombinedAlphaGuard(t *testing.T) {
	under := rgbaBuf(1, 1, 80, 90, 100, 0)
	over := rgbaBuf(1, 1, 10, 20, 30, 1)
	compose(under, over, true)
	// Nonzero source alpha over transparent destination keeps the
	// source contribution.
	if under.px[3] != 1 {
		t.Errorf("alpha = %d, want 1", under.px[3])
	}
	if under.px[0] != 10 || under.px[1] != 20 || under.px[2] != 30 {
		t.Errorf("rgb = %v, want source color", under.px[:3])
	}
}

func TestCompose_ClipsToOverlap(t *testing.T) {
	under := &frameBuffer{px: make([]byte, 2*2*4), width: 2, height: 2}
	// Over buffer hangs off the bottom-right corner.
	over := &frameBuffer{px: solidFrame(2, 2, 1, 1, 1, 255), width: 2, height: 2, x: 1, y: 1}
	compose(under, over, false)

	if under.px[0] != 0 {
		t.Error("pixel (0,0) should be untouched")
	}
	last := (1*2 + 1) * 4
	if under.px[last] != 1 || under.px[last+3] != 255 {
		t.Errorf("pixel (1,1) = %v, want composed", under.px[last:last+4])
	}
}

func TestCompose_DisjointIsNoop(t *testing.T) {
	under := &frameBuffer{px: make([]byte, 2*2*4), width: 2, height: 2}
	over := &frameBuffer{px: solidFrame(1, 1, 9, 9, 9, 9), width: 1, height: 1, x: 5, y: 5}
	compose(under, over, false)
	for _, b := range under.px {
		if b != 0 {
			t.Fatal("disjoint compose touched the destination")
		}
	}
}

func TestFrameBuffer_Fill(t *testing.T) {
	buf := &frameBuffer{px: make([]byte, 2*1*4), width: 2, height: 1}
	buf.fill(0x11223344)
	want := []byte{0x11, 0x22, 0x33, 0x44, 0x11, 0x22, 0x33, 0x44}
	if !bytes.Equal(buf.px, want) {
		t.Errorf("fill = %v, want %v", buf.px, want)
	}
}
