package metadata

import (
	"encoding/binary"
	gomath "math"

	"github.com/spaghettifunk/prisma/engine/math"
)

// UniformDataSize is the byte size of the serialized per-frame uniforms.
const UniformDataSize = 2 * 16 * 4

/** @brief Per-frame uniforms: the camera matrices the raygen shader inverts rays with. */
type UniformData struct {
	ViewInverse math.Mat4
	ProjInverse math.Mat4
}

// Bytes serializes the two matrices in std140 order.
func (u *UniformData) Bytes() []byte {
	out := make([]byte, UniformDataSize)
	for i, f := range u.ViewInverse.Data {
		binary.LittleEndian.PutUint32(out[i*4:], gomath.Float32bits(f))
	}
	for i, f := range u.ProjInverse.Data {
		binary.LittleEndian.PutUint32(out[64+i*4:], gomath.Float32bits(f))
	}
	return out
}

/**
 * @brief All mutable GPU state of one frame-in-flight slot. The frame
 * resource manager owns the full set as a fixed array; the dispatcher
 * borrows one record per frame and never retains it.
 *
 * The output image and the descriptor binding that references it are
 * recreated together on resize, never independently.
 */
type FrameContext struct {
	/** @brief The slot index in [0, frames-in-flight). */
	SlotIndex uint32
	/** @brief The ray tracing output storage image. */
	OutputImage *Image
	/** @brief Host-mapped uniform buffer, rewritten whenever input is active. */
	UniformBuffer *Buffer
	/** @brief The backend descriptor set bound to this slot's resources. */
	DescriptorSet interface{}
	/** @brief The backend command buffer recorded for this slot. */
	CommandBuffer interface{}
	/** @brief Signaled when this slot's previous submission has completed. */
	InFlightFence interface{}
}
