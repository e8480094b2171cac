package systems

import (
	"fmt"

	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/renderer"
	"github.com/spaghettifunk/prisma/engine/renderer/metadata"
)

/**
 * @brief Owns the fixed array of frame-in-flight slot records. Slots are
 * created once, sized to the backend's swap image count; only the output
 * image (and its descriptor binding) is recreated on resize.
 */
type FrameResourceManager struct {
	backend renderer.Backend
	frames  []*metadata.FrameContext
	extent  metadata.Extent
}

// NewFrameResourceManager creates every slot's output image, uniform
// buffer, and descriptor set bound to {TLAS, output image, UBO, vertex
// buffer, index buffer}. Any failure aborts setup.
func NewFrameResourceManager(backend renderer.Backend, tlas *metadata.AccelerationStructure, scene *SceneGeometry, extent metadata.Extent) (*FrameResourceManager, error) {
	frameCount := backend.FrameCount()
	if frameCount == 0 {
		err := fmt.Errorf("func NewFrameResourceManager - backend reports zero frame slots")
		core.LogError(err.Error())
		return nil, err
	}

	fm := &FrameResourceManager{
		backend: backend,
		frames:  make([]*metadata.FrameContext, frameCount),
		extent:  extent,
	}
	for i := uint32(0); i < frameCount; i++ {
		frame := &metadata.FrameContext{SlotIndex: i}

		image, err := backend.StorageImageCreate(extent)
		if err != nil {
			core.LogError("failed to create output image for frame slot %d", i)
			return nil, err
		}
		frame.OutputImage = image

		ubo, err := backend.BufferCreate(metadata.BufferUsageUniform, metadata.UniformDataSize, nil)
		if err != nil {
			core.LogError("failed to create uniform buffer for frame slot %d", i)
			return nil, err
		}
		frame.UniformBuffer = ubo

		if err := backend.FrameResourcesCreate(frame, tlas, scene.VertexBuffer, scene.IndexBuffer); err != nil {
			core.LogError("failed to create frame resources for slot %d", i)
			return nil, err
		}
		fm.frames[i] = frame
	}

	core.LogInfo("frame resources created for %d slots at %dx%d", frameCount, extent.Width, extent.Height)
	return fm, nil
}

func (fm *FrameResourceManager) FrameCount() uint32 {
	return uint32(len(fm.frames))
}

// Frame borrows the slot record; callers must not retain it past one
// frame's recording and submission.
func (fm *FrameResourceManager) Frame(slot uint32) *metadata.FrameContext {
	return fm.frames[slot]
}

func (fm *FrameResourceManager) Extent() metadata.Extent {
	return fm.extent
}

// OnResize destroys and recreates every slot's output image at the new
// extent and rewrites only the output image descriptor binding. The
// device must be idle before any image is destroyed; this is a
// stop-the-world operation, not an incremental one.
func (fm *FrameResourceManager) OnResize(newExtent metadata.Extent) error {
	if err := fm.backend.DeviceWaitIdle(); err != nil {
		core.LogError("device failed to reach idle before resize")
		return err
	}

	for _, frame := range fm.frames {
		fm.backend.StorageImageDestroy(frame.OutputImage)

		image, err := fm.backend.StorageImageCreate(newExtent)
		if err != nil {
			core.LogError("failed to recreate output image for frame slot %d", frame.SlotIndex)
			return err
		}
		frame.OutputImage = image

		// The image and its binding always move together.
		if err := fm.backend.FrameOutputImageBindingUpdate(frame); err != nil {
			core.LogError("failed to update output image binding for frame slot %d", frame.SlotIndex)
			return err
		}
	}

	fm.extent = newExtent
	core.LogDebug("frame output images recreated at %dx%d", newExtent.Width, newExtent.Height)
	return nil
}

// Destroy releases every slot's resources.
func (fm *FrameResourceManager) Destroy() {
	for _, frame := range fm.frames {
		if frame == nil {
			continue
		}
		fm.backend.FrameResourcesDestroy(frame)
		fm.backend.StorageImageDestroy(frame.OutputImage)
		fm.backend.BufferDestroy(frame.UniformBuffer)
	}
	fm.frames = nil
}
