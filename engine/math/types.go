package math

// Vec3 represents a 3D vector
type Vec3 struct {
	X, Y, Z float32
}

// Vec4 represents a 4D vector
type Vec4 struct {
	X, Y, Z, W float32
}

/** @brief a 4x4 matrix, typically used to represent object transformations. */
type Mat4 struct {
	/** @brief The matrix elements */
	Data [16]float32
}

/**
 * @brief A 3x4 row-major affine transform, laid out the way acceleration
 * structure inputs consume it (three rows of four floats, translation in
 * the last column).
 */
type TransformMatrix struct {
	Rows [12]float32
}

// TransformMatrixSize is the byte size of one transform record.
const TransformMatrixSize = 12 * 4

// NewTransformTranslation returns an identity transform translated by (x, y, z).
func NewTransformTranslation(x, y, z float32) TransformMatrix {
	return TransformMatrix{
		Rows: [12]float32{
			1.0, 0.0, 0.0, x,
			0.0, 1.0, 0.0, y,
			0.0, 0.0, 1.0, z,
		},
	}
}
