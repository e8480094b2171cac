package metadata

import (
	"encoding/binary"
	gomath "math"

	"github.com/spaghettifunk/prisma/engine/math"
)

// Vertex is a position-only vertex; the demo scene needs nothing else.
type Vertex struct {
	Position [3]float32
}

// VertexSize is the byte stride of one vertex.
const VertexSize = 3 * 4

// IndexSize is the byte size of one index (uint32 indices throughout).
const IndexSize = 4

/**
 * @brief The shared triangle mesh every scene object references. All
 * objects in the bottom level acceleration structure reuse these vertices
 * and indices and differ only by their transform record.
 */
type TriangleMesh struct {
	Vertices []Vertex
	Indices  []uint32
}

// VertexBytes serializes the vertex array for upload.
func (m *TriangleMesh) VertexBytes() []byte {
	out := make([]byte, len(m.Vertices)*VertexSize)
	for i, v := range m.Vertices {
		for j, f := range v.Position {
			binary.LittleEndian.PutUint32(out[i*VertexSize+j*4:], gomath.Float32bits(f))
		}
	}
	return out
}

// IndexBytes serializes the index array for upload.
func (m *TriangleMesh) IndexBytes() []byte {
	out := make([]byte, len(m.Indices)*IndexSize)
	for i, idx := range m.Indices {
		binary.LittleEndian.PutUint32(out[i*IndexSize:], idx)
	}
	return out
}

/**
 * @brief One geometry entry of the bottom level acceleration structure.
 * Geometry index i in the structure selects callable shader i in the
 * closest hit shader, so record order is load-bearing.
 */
type GeometryRecord struct {
	/** @brief Shared vertex data for all records. */
	VertexBuffer *Buffer
	/** @brief Shared index data for all records. */
	IndexBuffer *Buffer
	/** @brief Shared transform buffer; this record reads one 3x4 record at TransformOffset. */
	TransformBuffer *Buffer
	/** @brief Byte offset of this object's transform inside TransformBuffer. */
	TransformOffset uint32
	/** @brief Number of triangles in this geometry. */
	TriangleCount uint32
	/** @brief Highest vertex index addressable by the geometry. */
	MaxVertex uint32
	/** @brief Marks the geometry opaque so any-hit shaders are skipped. */
	Opaque bool
}

// SerializeTransforms packs the transform records contiguously,
// one math.TransformMatrixSize record per object.
func SerializeTransforms(transforms []math.TransformMatrix) []byte {
	out := make([]byte, len(transforms)*math.TransformMatrixSize)
	for i, tr := range transforms {
		for j, f := range tr.Rows {
			binary.LittleEndian.PutUint32(out[i*math.TransformMatrixSize+j*4:], gomath.Float32bits(f))
		}
	}
	return out
}
