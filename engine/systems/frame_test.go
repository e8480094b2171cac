package systems

import (
	"testing"

	"github.com/spaghettifunk/prisma/engine/renderer/headless"
	"github.com/spaghettifunk/prisma/engine/renderer/metadata"
)

func TestFrameResourcesPerSlot(t *testing.T) {
	rig := newTestRig(t, headless.Config{FrameCount: 3}, 3, metadata.Extent{Width: 800, Height: 600})
	defer rig.teardown()

	if got := rig.frames.FrameCount(); got != 3 {
		t.Fatalf("frame count = %d, want 3", got)
	}
	seenImages := map[string]bool{}
	for slot := uint32(0); slot < 3; slot++ {
		frame := rig.frames.Frame(slot)
		if frame.SlotIndex != slot {
			t.Errorf("slot %d carries index %d", slot, frame.SlotIndex)
		}
		if frame.OutputImage == nil || frame.OutputImage.Width != 800 || frame.OutputImage.Height != 600 {
			t.Errorf("slot %d output image is missing or missized", slot)
		}
		if seenImages[frame.OutputImage.ID] {
			t.Errorf("slot %d shares its output image with another slot", slot)
		}
		seenImages[frame.OutputImage.ID] = true
		if frame.UniformBuffer == nil || frame.UniformBuffer.TotalSize != metadata.UniformDataSize {
			t.Errorf("slot %d uniform buffer is missing or missized", slot)
		}
		if frame.UniformBuffer != nil && frame.UniformBuffer.Mapped == nil {
			t.Errorf("slot %d uniform buffer is not host mapped", slot)
		}
		if frame.DescriptorSet == nil || frame.CommandBuffer == nil || frame.InFlightFence == nil {
			t.Errorf("slot %d is missing backend resources", slot)
		}
	}
}

func TestOnResizeRecreatesOutputImages(t *testing.T) {
	rig := newTestRig(t, headless.Config{FrameCount: 3}, 3, metadata.Extent{Width: 800, Height: 600})
	defer rig.teardown()

	oldImages := make([]string, 3)
	for slot := uint32(0); slot < 3; slot++ {
		oldImages[slot] = rig.frames.Frame(slot).OutputImage.ID
	}

	newExtent := metadata.Extent{Width: 1280, Height: 720}
	if err := rig.frames.OnResize(newExtent); err != nil {
		t.Fatalf("OnResize failed: %v", err)
	}

	if rig.frames.Extent() != newExtent {
		t.Errorf("extent = %+v, want %+v", rig.frames.Extent(), newExtent)
	}
	for slot := uint32(0); slot < 3; slot++ {
		frame := rig.frames.Frame(slot)
		if !rig.backend.Destroyed(oldImages[slot]) {
			t.Errorf("slot %d old image survived the resize", slot)
		}
		if frame.OutputImage.Width != 1280 || frame.OutputImage.Height != 720 {
			t.Errorf("slot %d image is %dx%d after resize", slot, frame.OutputImage.Width, frame.OutputImage.Height)
		}
	}
	if got := rig.backend.LiveImages(); got != 3 {
		t.Errorf("%d images live after resize, want 3", got)
	}
}

func TestOnResizeWaitsForDeviceIdle(t *testing.T) {
	rig := newTestRig(t, headless.Config{}, 3, metadata.Extent{Width: 800, Height: 600})
	defer rig.teardown()

	before := len(rig.backend.Ops())
	if err := rig.frames.OnResize(metadata.Extent{Width: 640, Height: 480}); err != nil {
		t.Fatalf("OnResize failed: %v", err)
	}

	ops := rig.backend.Ops()[before:]
	if len(ops) == 0 || ops[0].Kind != "device-wait-idle" {
		t.Error("resize did not wait for the device before touching images")
	}
	// Every slot's binding follows its new image.
	if got := len(slotsOf(ops, "descriptor-update")); got != 3 {
		t.Errorf("%d descriptor updates during resize, want 3", got)
	}
}

// Rendering after a resize proves the rewritten bindings reference the
// new images; the headless device rejects a copy from a stale or
// missized image.
func TestDrawAfterResize(t *testing.T) {
	rig := newTestRig(t, headless.Config{FrameCount: 3}, 3, metadata.Extent{Width: 800, Height: 600})
	defer rig.teardown()

	for i := 0; i < 4; i++ {
		if err := rig.dispatcher.DrawFrame(); err != nil {
			t.Fatalf("frame %d failed: %v", i, err)
		}
	}

	if err := rig.frames.OnResize(metadata.Extent{Width: 1024, Height: 768}); err != nil {
		t.Fatalf("OnResize failed: %v", err)
	}
	for i := 0; i < 4; i++ {
		if err := rig.dispatcher.DrawFrame(); err != nil {
			t.Fatalf("post-resize frame %d failed: %v", i, err)
		}
	}
}

func TestRepeatedResize(t *testing.T) {
	rig := newTestRig(t, headless.Config{}, 3, metadata.Extent{Width: 800, Height: 600})
	defer rig.teardown()

	extents := []metadata.Extent{
		{Width: 640, Height: 480},
		{Width: 640, Height: 480},
		{Width: 1920, Height: 1080},
	}
	for _, extent := range extents {
		if err := rig.frames.OnResize(extent); err != nil {
			t.Fatalf("OnResize to %dx%d failed: %v", extent.Width, extent.Height, err)
		}
		if err := rig.dispatcher.DrawFrame(); err != nil {
			t.Fatalf("frame after resize to %dx%d failed: %v", extent.Width, extent.Height, err)
		}
	}
	if got := rig.backend.LiveImages(); got != 3 {
		t.Errorf("%d images live after repeated resizes, want 3", got)
	}
}
