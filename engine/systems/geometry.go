package systems

import (
	"fmt"

	"github.com/spaghettifunk/prisma/engine/core"
	"github.com/spaghettifunk/prisma/engine/math"
	"github.com/spaghettifunk/prisma/engine/renderer"
	"github.com/spaghettifunk/prisma/engine/renderer/metadata"
)

// ObjectSpacing is the x distance between neighbouring objects; the row
// is centered so object i sits at x = 3i - 3.
const ObjectSpacing float32 = 3.0

/**
 * @brief The static scene: one shared triangle mesh plus one geometry
 * record per object. Uploaded once and immutable afterwards.
 */
type SceneGeometry struct {
	ObjectCount uint32
	Mesh        metadata.TriangleMesh
	Transforms  []math.TransformMatrix

	VertexBuffer    *metadata.Buffer
	IndexBuffer     *metadata.Buffer
	TransformBuffer *metadata.Buffer

	Records []metadata.GeometryRecord
}

type GeometrySystem struct {
	backend renderer.Backend
}

func NewGeometrySystem(backend renderer.Backend) *GeometrySystem {
	return &GeometrySystem{backend: backend}
}

// BuildScene generates the object transforms, uploads the shared mesh and
// transform data, and produces one geometry record per object. A zero
// object count is a configuration fault, not a draw-time condition.
func (gs *GeometrySystem) BuildScene(objectCount uint32) (*SceneGeometry, error) {
	if objectCount == 0 {
		err := fmt.Errorf("func BuildScene - objectCount must be > 0")
		core.LogError(err.Error())
		return nil, err
	}

	scene := &SceneGeometry{
		ObjectCount: objectCount,
		Mesh: metadata.TriangleMesh{
			Vertices: []metadata.Vertex{
				{Position: [3]float32{1.0, 1.0, 0.0}},
				{Position: [3]float32{-1.0, 1.0, 0.0}},
				{Position: [3]float32{0.0, -1.0, 0.0}},
			},
			Indices: []uint32{0, 1, 2},
		},
		Transforms: make([]math.TransformMatrix, objectCount),
	}
	for i := uint32(0); i < objectCount; i++ {
		scene.Transforms[i] = math.NewTransformTranslation(float32(i)*ObjectSpacing-ObjectSpacing, 0.0, 0.0)
	}

	// The vertex data stays host-visible; staging it buys nothing for a
	// three-vertex scene.
	var err error
	vertexBytes := scene.Mesh.VertexBytes()
	scene.VertexBuffer, err = gs.backend.BufferCreate(
		metadata.BufferUsageAccelerationStructureInput|metadata.BufferUsageStorage,
		uint64(len(vertexBytes)), vertexBytes)
	if err != nil {
		core.LogError("failed to create scene vertex buffer")
		return nil, err
	}
	indexBytes := scene.Mesh.IndexBytes()
	scene.IndexBuffer, err = gs.backend.BufferCreate(
		metadata.BufferUsageAccelerationStructureInput|metadata.BufferUsageStorage,
		uint64(len(indexBytes)), indexBytes)
	if err != nil {
		core.LogError("failed to create scene index buffer")
		return nil, err
	}
	transformBytes := metadata.SerializeTransforms(scene.Transforms)
	scene.TransformBuffer, err = gs.backend.BufferCreate(
		metadata.BufferUsageAccelerationStructureInput,
		uint64(len(transformBytes)), transformBytes)
	if err != nil {
		core.LogError("failed to create scene transform buffer")
		return nil, err
	}

	scene.Records = make([]metadata.GeometryRecord, objectCount)
	for i := uint32(0); i < objectCount; i++ {
		scene.Records[i] = metadata.GeometryRecord{
			VertexBuffer:    scene.VertexBuffer,
			IndexBuffer:     scene.IndexBuffer,
			TransformBuffer: scene.TransformBuffer,
			TransformOffset: i * math.TransformMatrixSize,
			TriangleCount:   uint32(len(scene.Mesh.Indices) / 3),
			MaxVertex:       uint32(len(scene.Mesh.Vertices)),
			Opaque:          true,
		}
	}

	core.LogDebug("scene built: %d objects sharing %d vertices", objectCount, len(scene.Mesh.Vertices))
	return scene, nil
}

// Destroy releases the shared scene buffers.
func (gs *GeometrySystem) Destroy(scene *SceneGeometry) {
	if scene == nil {
		return
	}
	gs.backend.BufferDestroy(scene.VertexBuffer)
	gs.backend.BufferDestroy(scene.IndexBuffer)
	gs.backend.BufferDestroy(scene.TransformBuffer)
}
