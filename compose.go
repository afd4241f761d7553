package purfectgfx

// frameBuffer describes a pixel buffer positioned on the image canvas.
// Pixels are row-major RGB (opaque) or RGBA.
type frameBuffer struct {
	px     []byte
	width  int
	height int
	x      int // offset of the buffer within the canvas
	y      int
	opaque bool // 3 bytes per pixel instead of 4

	// aligned reports whether rows start on 4-byte boundaries; it is
	// carried to Texture.Upload.
	aligned bool
}

func (b *frameBuffer) bpp() int {
	if b.opaque {
		return 3
	}
	return 4
}

// fill sets every pixel of the buffer to the given 0xRRGGBBAA color.
func (b *frameBuffer) fill(color uint32) {
	r := byte(color >> 24)
	g := byte(color >> 16)
	bl := byte(color >> 8)
	a := byte(color)
	bpp := b.bpp()
	for i := 0; i < len(b.px); i += bpp {
		b.px[i] = r
		b.px[i+1] = g
		b.px[i+2] = bl
		if bpp == 4 {
			b.px[i+3] = a
		}
	}
}

// compose draws over onto under, clipping to their overlap. Pixels of
// under outside the overlap are left untouched.
//
// With blending disabled and matching pixel formats, whole overlapping
// rows are copied verbatim. With blending disabled and differing
// formats, RGB channels are copied and alpha 255 is synthesized when the
// destination has an alpha channel the source lacks.
//
// With blending enabled, source pixels with alpha 0 are skipped. When
// the destination has no alpha channel, RGB blends as
// under = over*a + under*(1-a). When it has one, standard
// non-premultiplied "over" compositing is used, with a divide-by-zero
// guard forcing fully transparent output when the combined alpha is 0.
func compose(under, over *frameBuffer, blend bool) {
	// Overlap rectangle in canvas coordinates.
	x0 := max(over.x, under.x)
	y0 := max(over.y, under.y)
	x1 := min(over.x+over.width, under.x+under.width)
	y1 := min(over.y+over.height, under.y+under.height)
	if x0 >= x1 || y0 >= y1 {
		return
	}

	obpp, ubpp := over.bpp(), under.bpp()
	cols := x1 - x0

	if !blend && obpp == ubpp {
		// Fast path: copy whole overlapping rows.
		for y := y0; y < y1; y++ {
			so := ((y-over.y)*over.width + (x0 - over.x)) * obpp
			do := ((y-under.y)*under.width + (x0 - under.x)) * ubpp
			copy(under.px[do:do+cols*ubpp], over.px[so:so+cols*obpp])
		}
		return
	}

	for y := y0; y < y1; y++ {
		so := ((y-over.y)*over.width + (x0 - over.x)) * obpp
		do := ((y-under.y)*under.width + (x0 - under.x)) * ubpp
		for x := 0; x < cols; x++ {
			composePixel(under.px[do:do+ubpp], over.px[so:so+obpp], blend)
			so += obpp
			do += ubpp
		}
	}
}

// composePixel composes a single source pixel onto a destination pixel.
// Slices are 3 or 4 bytes long depending on format.
func composePixel(dst, src []byte, blend bool) {
	srcAlpha := byte(255)
	if len(src) == 4 {
		srcAlpha = src[3]
	}

	if !blend {
		dst[0], dst[1], dst[2] = src[0], src[1], src[2]
		if len(dst) == 4 {
			dst[3] = srcAlpha
		}
		return
	}

	if srcAlpha == 0 {
		return
	}

	sa := float32(srcAlpha) / 255

	if len(dst) == 3 {
		// Destination has no alpha channel.
		for i := 0; i < 3; i++ {
			dst[i] = byte(float32(src[i])*sa + float32(dst[i])*(1-sa) + 0.5)
		}
		return
	}

	da := float32(dst[3]) / 255
	na := sa + da*(1-sa)
	if na == 0 {
		dst[0], dst[1], dst[2], dst[3] = 0, 0, 0, 0
		return
	}
	for i := 0; i < 3; i++ {
		c := (float32(src[i])*sa + float32(dst[i])*da*(1-sa)) / na
		dst[i] = byte(c + 0.5)
	}
	dst[3] = byte(na*255 + 0.5)
}
