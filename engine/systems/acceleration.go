package systems

import (
	"fmt"

	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/math"
	"github.com/spaghettifunk/prisma/engine/renderer"
	"github.com/spaghettifunk/prisma/engine/renderer/metadata"
)

/**
 * @brief Builds the scene's acceleration structures. Both builds follow
 * the same sequence: one batched size query, backing allocation, a fresh
 * scratch buffer, exactly one build command, scratch freed. Setup is
 * synchronous; nothing here overlaps with steady-state rendering.
 */
type AccelerationSystem struct {
	backend renderer.Backend
}

func NewAccelerationSystem(backend renderer.Backend) *AccelerationSystem {
	return &AccelerationSystem{backend: backend}
}

// BottomLevelBuildRanges derives the per-geometry build ranges for the
// scene: entry i covers record i's triangles and reads its transform at
// i * TransformMatrixSize.
func BottomLevelBuildRanges(records []metadata.GeometryRecord) []metadata.BuildRange {
	ranges := make([]metadata.BuildRange, len(records))
	for i, record := range records {
		ranges[i] = metadata.BuildRange{
			PrimitiveCount:  record.TriangleCount,
			PrimitiveOffset: 0,
			FirstVertex:     0,
			TransformOffset: uint32(i) * math.TransformMatrixSize,
		}
	}
	return ranges
}

// BuildBottomLevel builds the multi-geometry bottom level structure. One
// geometry entry per scene object lets the closest hit shader select
// callable shaders by geometry index.
func (as *AccelerationSystem) BuildBottomLevel(scene *SceneGeometry) (*metadata.AccelerationStructure, error) {
	if len(scene.Records) == 0 {
		err := fmt.Errorf("func BuildBottomLevel - scene has no geometry records")
		core.LogError(err.Error())
		return nil, err
	}

	input := &metadata.BuildInput{
		Kind:      metadata.AccelerationStructureBottomLevel,
		Flags:     metadata.BuildFlagPreferFastTrace,
		Triangles: make([]metadata.TrianglesGeometry, len(scene.Records)),
	}
	primitiveCounts := make([]uint32, len(scene.Records))
	for i, record := range scene.Records {
		input.Triangles[i] = metadata.TrianglesGeometry{
			VertexBuffer:    record.VertexBuffer,
			VertexStride:    metadata.VertexSize,
			MaxVertex:       record.MaxVertex,
			IndexBuffer:     record.IndexBuffer,
			TransformBuffer: record.TransformBuffer,
			Opaque:          record.Opaque,
		}
		primitiveCounts[i] = record.TriangleCount
	}

	return as.build(input, primitiveCounts, BottomLevelBuildRanges(scene.Records))
}

// BuildTopLevel builds the single-instance top level structure referencing
// the bottom level structure by device address. Back-face culling is
// disabled so object orientation is irrelevant.
func (as *AccelerationSystem) BuildTopLevel(blas *metadata.AccelerationStructure) (*metadata.AccelerationStructure, error) {
	instance := metadata.GeometryInstance{
		Transform:                    math.NewTransformTranslation(0.0, 0.0, 0.0),
		CustomIndex:                  0,
		Mask:                         0xFF,
		BindingTableRecordOffset:     0,
		Flags:                        metadata.InstanceFlagTriangleFacingCullDisable,
		AccelerationStructureAddress: blas.DeviceAddress,
	}

	instanceBytes := instance.Serialize()
	instanceBuffer, err := as.backend.BufferCreate(
		metadata.BufferUsageAccelerationStructureInput,
		uint64(len(instanceBytes)), instanceBytes)
	if err != nil {
		core.LogError("failed to create instance buffer")
		return nil, err
	}
	// The instance buffer only feeds the build; it is not needed afterwards.
	defer as.backend.BufferDestroy(instanceBuffer)

	input := &metadata.BuildInput{
		Kind:      metadata.AccelerationStructureTopLevel,
		Flags:     metadata.BuildFlagPreferFastTrace,
		Instances: &metadata.InstancesGeometry{InstanceBuffer: instanceBuffer},
	}
	ranges := []metadata.BuildRange{{PrimitiveCount: 1}}

	return as.build(input, []uint32{1}, ranges)
}

// build runs the shared size-query / allocate / build / scratch-free
// sequence. Every failure aborts setup: this is one-time startup resource
// acquisition, not subject to retry.
func (as *AccelerationSystem) build(input *metadata.BuildInput, primitiveCounts []uint32, ranges []metadata.BuildRange) (*metadata.AccelerationStructure, error) {
	sizes, err := as.backend.AccelerationStructureBuildSizes(input, primitiveCounts)
	if err != nil {
		core.LogError("%s acceleration structure size query failed", input.Kind)
		return nil, err
	}

	structure, err := as.backend.AccelerationStructureCreate(input.Kind, sizes.AccelerationStructureSize)
	if err != nil {
		core.LogError("failed to allocate %s acceleration structure backing storage", input.Kind)
		return nil, err
	}
	structure.Flags = input.Flags
	structure.ScratchSize = max(sizes.BuildScratchSize, sizes.UpdateScratchSize)

	// Scratch is never pooled: allocate fresh, free as soon as the owning
	// build has completed.
	scratch, err := as.backend.BufferCreate(metadata.BufferUsageScratch, structure.ScratchSize, nil)
	if err != nil {
		core.LogError("failed to allocate scratch buffer for %s build", input.Kind)
		return nil, err
	}
	defer as.backend.BufferDestroy(scratch)

	if err := as.backend.AccelerationStructureBuild(structure, input, ranges, scratch); err != nil {
		core.LogError("%s acceleration structure build failed", input.Kind)
		return nil, err
	}

	core.LogDebug("%s acceleration structure built: %d geometries, %d bytes backing, %d bytes scratch",
		input.Kind, input.GeometryCount(), sizes.AccelerationStructureSize, structure.ScratchSize)
	return structure, nil
}

// Destroy releases a structure and its backing buffer.
func (as *AccelerationSystem) Destroy(structure *metadata.AccelerationStructure) {
	if structure == nil {
		return
	}
	as.backend.AccelerationStructureDestroy(structure)
}
