package purfectgfx

import (
	"testing"
	"time"
)

func TestHandleTransmit_ChunkedAccumulation(t *testing.T) {
	g, _ := newTestManager(t)
	payload := solidFrame(2, 2, 40, 50, 60, 255)

	cmd := TransmitCommand{
		Format: FormatRGBA, Medium: MediumDirect,
		ImageID: 3, Width: 2, Height: 2, More: true,
	}
	resp, err := g.HandleTransmit(&cmd, payload[:7])
	if err != nil || resp != "" {
		t.Fatalf("first chunk: resp=%q err=%v, want empty response", resp, err)
	}
	// Continuation chunks carry only the more flag, no metadata.
	resp, err = g.HandleTransmit(&TransmitCommand{Medium: MediumDirect, More: true}, payload[7:12])
	if err != nil || resp != "" {
		t.Fatalf("middle chunk: resp=%q err=%v", resp, err)
	}
	resp, err = g.HandleTransmit(&TransmitCommand{Medium: MediumDirect}, payload[12:])
	if err != nil || resp != "OK" {
		t.Fatalf("final chunk: resp=%q err=%v", resp, err)
	}

	img, ok := g.ImageForClientID(3)
	if !ok {
		t.Fatal("image not created after final chunk")
	}
	if img.Width != 2 || img.Height != 2 {
		t.Errorf("image is %dx%d, want 2x2", img.Width, img.Height)
	}
}

func TestHandleTransmit_DecodeFailureCreatesNothing(t *testing.T) {
	g, _ := newTestManager(t)
	resp, err := g.HandleTransmit(&TransmitCommand{
		Format: FormatRGBA, Medium: MediumDirect,
		ImageID: 3, Width: 2, Height: 2,
	}, make([]byte, 5))
	if err == nil {
		t.Fatal("short payload must fail")
	}
	if len(resp) < 6 || resp[:6] != "EBADF:" {
		t.Errorf("resp = %q, want EBADF prefix", resp)
	}
	if _, ok := g.ImageForClientID(3); ok {
		t.Error("failed transmission must not create an image")
	}
	if g.ImageCount() != 0 {
		t.Error("no image state may survive a decode failure")
	}
}

func TestHandleTransmit_FrameForUnknownImage(t *testing.T) {
	g, _ := newTestManager(t)
	resp, err := g.HandleTransmit(&TransmitCommand{
		Format: FormatRGBA, Medium: MediumDirect,
		ImageID: 9, Width: 1, Height: 1, IsFrame: true,
	}, solidFrame(1, 1, 0, 0, 0, 255))
	if err == nil {
		t.Fatal("frame for a missing image must fail")
	}
	if resp[:7] != "ENOENT:" {
		t.Errorf("resp = %q, want ENOENT prefix", resp)
	}
}

func TestHandleTransmit_FrameExceedingCanvas(t *testing.T) {
	g, _ := newTestManager(t)
	transmitSolid(t, g, 1, 4, 4)

	resp, err := g.HandleTransmit(&TransmitCommand{
		Format: FormatRGBA, Medium: MediumDirect,
		ImageID: 1, Width: 3, Height: 3, IsFrame: true, X: 2, Y: 2,
	}, solidFrame(3, 3, 0, 0, 0, 255))
	if err == nil {
		t.Fatal("out-of-canvas frame must fail")
	}
	if resp[:7] != "EINVAL:" {
		t.Errorf("resp = %q, want EINVAL prefix", resp)
	}
}

func TestHandleTransmit_AppendedFrameStartsLoading(t *testing.T) {
	g, _ := newTestManager(t)
	img := transmitSolid(t, g, 1, 2, 2)

	resp, err := g.HandleTransmit(&TransmitCommand{
		Format: FormatRGBA, Medium: MediumDirect,
		ImageID: 1, Width: 2, Height: 2, IsFrame: true, GapMS: 100,
	}, solidFrame(2, 2, 5, 5, 5, 255))
	if err != nil || resp != "OK" {
		t.Fatalf("frame transmit: resp=%q err=%v", resp, err)
	}
	if img.FrameCount() != 2 {
		t.Fatalf("FrameCount = %d, want 2", img.FrameCount())
	}
	if img.animationState != AnimationLoading {
		t.Error("first appended frame moves the image into the loading state")
	}
	f := img.frameByID(2)
	if f == nil || f.Gap != 100*time.Millisecond {
		t.Error("frame 2 must carry its display gap")
	}
}

func TestHandleTransmit_FrameEditByID(t *testing.T) {
	g, _ := newTestManager(t)
	img := transmitSolid(t, g, 1, 2, 2)
	addTestFrame(t, g, 1, 2, 2, 50)

	// Retransmit frame 2's pixels with a new gap.
	resp, err := g.HandleTransmit(&TransmitCommand{
		Format: FormatRGBA, Medium: MediumDirect,
		ImageID: 1, Width: 2, Height: 2, IsFrame: true,
		FrameID: 2, GapMS: 250,
	}, solidFrame(2, 2, 9, 9, 9, 255))
	if err != nil || resp != "OK" {
		t.Fatalf("frame edit: resp=%q err=%v", resp, err)
	}
	if img.FrameCount() != 2 {
		t.Errorf("editing must not append, FrameCount = %d", img.FrameCount())
	}
	if f := img.frameByID(2); f.Gap != 250*time.Millisecond {
		t.Errorf("gap = %v, want 250ms", f.Gap)
	}
}

func TestHandleTransmit_RowAlignmentReachesUpload(t *testing.T) {
	g, backend := newTestManager(t)

	// 3-wide RGB rows are 9 bytes, so they do not start on 4-byte
	// boundaries.
	resp, err := g.HandleTransmit(&TransmitCommand{
		Format: FormatRGB, Medium: MediumDirect, ImageID: 1, Width: 3, Height: 2,
	}, make([]byte, 3*2*3))
	if err != nil || resp != "OK" {
		t.Fatalf("HandleTransmit() = %q, %v", resp, err)
	}
	if backend.textures[0].rowAligned {
		t.Error("9-byte RGB rows must upload as unaligned")
	}

	// RGBA rows are always 4-byte aligned.
	transmitSolid(t, g, 2, 3, 2)
	if !backend.textures[1].rowAligned {
		t.Error("RGBA rows must upload as aligned")
	}
}

func TestHandleAnimationControl_JumpAndRun(t *testing.T) {
	g, _ := newTestManager(t)
	img := transmitSolid(t, g, 1, 2, 2)
	addTestFrame(t, g, 1, 2, 2, 50)
	addTestFrame(t, g, 1, 2, 2, 50)

	resp, err := g.HandleAnimationControl(&AnimationControlCommand{
		ImageID: 1, Action: 3, CurrentFrame: 2, MaxLoops: 5,
	})
	if err != nil || resp != "OK" {
		t.Fatalf("animation control: resp=%q err=%v", resp, err)
	}
	if img.animationState != AnimationRunning {
		t.Error("action 3 must run the animation")
	}
	if img.currentFrame != 1 {
		t.Errorf("currentFrame = %d, want 1 (second frame)", img.currentFrame)
	}
	if img.maxLoops != 5 {
		t.Errorf("maxLoops = %d, want 5", img.maxLoops)
	}

	// Negative loop count means unlimited.
	g.HandleAnimationControl(&AnimationControlCommand{ImageID: 1, MaxLoops: -1})
	if img.maxLoops != 0 {
		t.Errorf("maxLoops = %d, want 0 (unlimited)", img.maxLoops)
	}
}

func TestHandleAnimationControl_GaplessFrame(t *testing.T) {
	g, _ := newTestManager(t)
	img := transmitSolid(t, g, 1, 2, 2)
	addTestFrame(t, g, 1, 2, 2, 50)

	g.HandleAnimationControl(&AnimationControlCommand{ImageID: 1, FrameID: 2, GapMS: -1})
	if f := img.frameByID(2); f.Gap != 0 {
		t.Errorf("gap = %v, want 0 for a gapless frame", f.Gap)
	}
}

func TestHandleQuery_ValidatesWithoutCreating(t *testing.T) {
	g, _ := newTestManager(t)

	resp, err := g.HandleQuery(&TransmitCommand{
		Format: FormatRGBA, Medium: MediumDirect, ImageID: 77, Width: 1, Height: 1,
	}, solidFrame(1, 1, 0, 0, 0, 255))
	if err != nil || resp != "OK" {
		t.Fatalf("valid query: resp=%q err=%v", resp, err)
	}
	if g.ImageCount() != 0 {
		t.Error("queries must never create images")
	}

	resp, err = g.HandleQuery(&TransmitCommand{
		Format: FormatRGBA, Medium: MediumDirect, ImageID: 77, Width: 2, Height: 2,
	}, make([]byte, 3))
	if err == nil {
		t.Fatal("invalid query payload must fail")
	}
	if resp[:6] != "EBADF:" {
		t.Errorf("resp = %q, want EBADF prefix", resp)
	}
}

func TestTargetImage_NumberPicksMostRecent(t *testing.T) {
	g, _ := newTestManager(t)
	g.NewImage(0, 4, 1, 1)
	latest := g.NewImage(0, 4, 2, 2)

	img, ok := g.targetImage(0, 4)
	if !ok || img != latest {
		t.Error("the most recently created image with the number must win")
	}
}
