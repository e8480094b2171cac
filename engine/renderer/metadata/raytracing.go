package metadata

import (
	"encoding/binary"
	gomath "math"

	"github.com/spaghettifunk/prisma/engine/math"
)

/** @brief Flags describing how a buffer will be used by the device. */
type BufferUsage uint32

const (
	BufferUsageAccelerationStructureInput BufferUsage = 1 << iota
	BufferUsageAccelerationStructureStorage
	BufferUsageScratch
	BufferUsageShaderBindingTable
	BufferUsageUniform
	BufferUsageStorage
)

/**
 * @brief A device buffer. Host-visible buffers expose their mapping through
 * Mapped; device-local buffers leave it nil. InternalData is owned by the
 * renderer backend.
 */
type Buffer struct {
	ID            string
	TotalSize     uint64
	Usage         BufferUsage
	DeviceAddress uint64
	Mapped        []byte
	InternalData  interface{}
}

/** @brief A 2D storage image with its view and memory owned by the backend. */
type Image struct {
	ID           string
	Width        uint32
	Height       uint32
	InternalData interface{}
}

type Extent struct {
	Width  uint32
	Height uint32
}

/** @brief The kind of an acceleration structure. */
type AccelerationStructureKind uint8

const (
	AccelerationStructureBottomLevel AccelerationStructureKind = iota
	AccelerationStructureTopLevel
)

func (k AccelerationStructureKind) String() string {
	if k == AccelerationStructureTopLevel {
		return "top-level"
	}
	return "bottom-level"
}

type BuildFlags uint32

const (
	BuildFlagPreferFastTrace BuildFlags = 1 << iota
	BuildFlagPreferFastBuild
	BuildFlagAllowUpdate
)

/**
 * @brief An opaque acceleration structure plus the bookkeeping the engine
 * needs: its device address (referenced by instances and descriptors) and
 * the exclusively owned backing buffer.
 */
type AccelerationStructure struct {
	ID            string
	Kind          AccelerationStructureKind
	Flags         BuildFlags
	DeviceAddress uint64
	Buffer        *Buffer
	ScratchSize   uint64
	InternalData  interface{}
}

/** @brief Triangle geometry input for a bottom level build. */
type TrianglesGeometry struct {
	VertexBuffer    *Buffer
	VertexStride    uint32
	MaxVertex       uint32
	IndexBuffer     *Buffer
	TransformBuffer *Buffer
	Opaque          bool
}

/** @brief Instance geometry input for a top level build. */
type InstancesGeometry struct {
	InstanceBuffer *Buffer
}

/**
 * @brief Everything one build command needs. A bottom level input carries
 * one TrianglesGeometry per scene object; a top level input carries exactly
 * one InstancesGeometry.
 */
type BuildInput struct {
	Kind      AccelerationStructureKind
	Flags     BuildFlags
	Triangles []TrianglesGeometry
	Instances *InstancesGeometry
}

// GeometryCount returns the number of geometry entries in the input.
func (bi *BuildInput) GeometryCount() uint32 {
	if bi.Kind == AccelerationStructureTopLevel {
		return 1
	}
	return uint32(len(bi.Triangles))
}

/** @brief Sizes reported by the device for a pending build. */
type BuildSizes struct {
	AccelerationStructureSize uint64
	BuildScratchSize          uint64
	UpdateScratchSize         uint64
}

/**
 * @brief One build-range entry per geometry of a build command. For
 * geometry i of the bottom level structure, TransformOffset is
 * i * math.TransformMatrixSize.
 */
type BuildRange struct {
	PrimitiveCount  uint32
	PrimitiveOffset uint32
	FirstVertex     uint32
	TransformOffset uint32
}

type InstanceFlags uint8

const (
	// InstanceFlagTriangleFacingCullDisable turns off back-face culling so
	// object winding is irrelevant.
	InstanceFlagTriangleFacingCullDisable InstanceFlags = 1 << iota
	InstanceFlagTriangleFlipFacing
	InstanceFlagForceOpaque
	InstanceFlagForceNoOpaque
)

// GeometryInstanceSize is the wire size of one serialized instance record.
const GeometryInstanceSize = 64

/**
 * @brief A top level instance record referencing a bottom level structure
 * by device address.
 */
type GeometryInstance struct {
	Transform                    math.TransformMatrix
	CustomIndex                  uint32 // lower 24 bits used
	Mask                         uint8
	BindingTableRecordOffset     uint32 // lower 24 bits used
	Flags                        InstanceFlags
	AccelerationStructureAddress uint64
}

// Serialize packs the instance into the 64-byte on-device layout:
// 48 bytes of row-major 3x4 transform, customIndex:24|mask:8,
// sbtRecordOffset:24|flags:8, then the 64-bit structure address.
func (gi *GeometryInstance) Serialize() []byte {
	out := make([]byte, GeometryInstanceSize)
	for i, f := range gi.Transform.Rows {
		binary.LittleEndian.PutUint32(out[i*4:], gomath.Float32bits(f))
	}
	binary.LittleEndian.PutUint32(out[48:], gi.CustomIndex&0x00FFFFFF|uint32(gi.Mask)<<24)
	binary.LittleEndian.PutUint32(out[52:], gi.BindingTableRecordOffset&0x00FFFFFF|uint32(gi.Flags)<<24)
	binary.LittleEndian.PutUint64(out[56:], gi.AccelerationStructureAddress)
	return out
}

/** @brief The device capabilities the tracer depends on. */
type RayTracingCapabilities struct {
	/** @brief True when the device can execute acceleration structure builds on the host. */
	HostBuildSupported bool
	/** @brief Size in bytes of one shader group handle. */
	ShaderGroupHandleSize uint32
	/** @brief Required alignment of shader group handles inside a binding table. */
	ShaderGroupHandleAlignment uint32
	/** @brief Upper bound for the pipeline's recursion depth. */
	MaxRayRecursionDepth uint32
}

// HandleSizeAligned is the binding table record stride: the handle size
// rounded up to the handle alignment.
func (c *RayTracingCapabilities) HandleSizeAligned() uint32 {
	return math.AlignUp(c.ShaderGroupHandleSize, c.ShaderGroupHandleAlignment)
}
