package systems

import (
	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/renderer"
	"github.com/spaghettifunk/prisma/engine/renderer/components"
	"github.com/spaghettifunk/prisma/engine/renderer/metadata"
)

// FenceWaitTimeoutNs bounds the per-frame fence wait; expiry is fatal.
const FenceWaitTimeoutNs uint64 = 0xFFFFFFFFFFFFFFFF

/**
 * @brief Records and submits one frame: fence wait on the target slot,
 * frame acquire, fence reset, conditional uniform refresh, then bind /
 * trace / copy-to-present / submit. Slots cycle round-robin, which
 * bounds GPU work in flight to the slot count.
 */
type DispatchOrchestrator struct {
	backend renderer.Backend
	frames  *FrameResourceManager
	table   *metadata.ShaderBindingTable
	camera  *components.Camera

	// Paused suspends uniform refresh unless the camera moved.
	Paused bool

	currentSlot uint32
}

func NewDispatchOrchestrator(backend renderer.Backend, frames *FrameResourceManager, table *metadata.ShaderBindingTable, camera *components.Camera) *DispatchOrchestrator {
	return &DispatchOrchestrator{
		backend: backend,
		frames:  frames,
		table:   table,
		camera:  camera,
	}
}

// CurrentSlot is the slot the next DrawFrame will use.
func (d *DispatchOrchestrator) CurrentSlot() uint32 {
	return d.currentSlot
}

// DrawFrame renders one frame into the current slot and advances the
// ring. Any failure is fatal to the render loop; there is no retry or
// degraded mode.
func (d *DispatchOrchestrator) DrawFrame() error {
	frame := d.frames.Frame(d.currentSlot)
	extent := d.frames.Extent()

	// The slot's previous submission must have fully completed before its
	// command buffer, descriptor set or output image can be reused.
	if err := d.backend.FenceWait(frame, FenceWaitTimeoutNs); err != nil {
		core.LogError("fence wait failed on frame slot %d", frame.SlotIndex)
		return err
	}
	if err := d.backend.FrameBegin(frame); err != nil {
		return err
	}

	// Reset only once the acquire succeeded. A failed acquire submits
	// nothing, so the fence must stay signaled for the slot's next wait.
	if err := d.backend.FenceReset(frame); err != nil {
		core.LogError("fence reset failed on frame slot %d", frame.SlotIndex)
		return err
	}

	cameraMoved := d.camera.ConsumeUpdated()
	if !d.Paused || cameraMoved {
		d.refreshUniforms(frame)
	}

	d.backend.BindPipeline(frame)
	d.backend.BindDescriptorSet(frame)
	d.backend.TraceRays(frame, d.table, extent)
	if err := d.backend.CopyOutputToPresent(frame, extent); err != nil {
		return err
	}
	if err := d.backend.FrameEnd(frame); err != nil {
		return err
	}
	if err := d.backend.FrameSubmit(frame); err != nil {
		core.LogError("submission failed on frame slot %d", frame.SlotIndex)
		return err
	}

	d.currentSlot = (d.currentSlot + 1) % d.frames.FrameCount()
	return nil
}

// refreshUniforms writes the camera's inverse matrices into the slot's
// host-mapped uniform buffer. The GPU reads this buffer only after the
// slot's fence was satisfied, so the plain copy needs no extra
// synchronization.
func (d *DispatchOrchestrator) refreshUniforms(frame *metadata.FrameContext) {
	uniforms := metadata.UniformData{
		ViewInverse: d.camera.GetView().Inverse(),
		ProjInverse: d.camera.ProjectionMatrix.Inverse(),
	}
	copy(frame.UniformBuffer.Mapped, uniforms.Bytes())
}
