package components

import (
	"github.com/spaghettifunk/prisma/engine/math"
)

/**
 * @brief A look-at style camera. The tracer consumes the inverses of the
 * view and projection matrices, so both are kept here and the dirty flag
 * tracks whether the uniforms need a refresh.
 */
type Camera struct {
	/**
	 * @brief The position of this camera.
	 * NOTE: Do not set this directly, use SetPosition() instead
	 * so the view matrix is recalculated when needed.
	 */
	Position math.Vec3
	/**
	 * @brief The rotation of this camera using Euler angles (pitch, yaw, roll).
	 * NOTE: Do not set this directly, use SetEulerRotation() instead.
	 */
	EulerRotation math.Vec3
	/** @brief Internal flag used to determine when the view matrix needs to be rebuilt. */
	IsDirty bool
	/**
	 * @brief Set whenever position or rotation changed since the last
	 * ConsumeUpdated call; the dispatcher refreshes uniforms on it even
	 * while paused.
	 */
	Updated bool

	ViewMatrix       math.Mat4
	ProjectionMatrix math.Mat4
}

func NewCamera() *Camera {
	camera := &Camera{}
	camera.Reset()
	return camera
}

func (c *Camera) Reset() {
	c.EulerRotation = math.NewVec3Zero()
	c.Position = math.NewVec3Zero()
	c.IsDirty = false
	c.Updated = false
	c.ViewMatrix = math.NewMat4Identity()
	c.ProjectionMatrix = math.NewMat4Identity()
}

func (c *Camera) SetPosition(position math.Vec3) {
	c.Position = position
	c.IsDirty = true
	c.Updated = true
}

func (c *Camera) SetEulerRotation(rotation math.Vec3) {
	c.EulerRotation = rotation
	c.IsDirty = true
	c.Updated = true
}

// SetPerspective rebuilds the projection matrix.
func (c *Camera) SetPerspective(fovDegrees, aspectRatio, nearClip, farClip float32) {
	c.ProjectionMatrix = math.NewMat4Perspective(fovDegrees*math.DegToRad, aspectRatio, nearClip, farClip)
	c.Updated = true
}

func (c *Camera) GetView() math.Mat4 {
	if c.IsDirty {
		rotation := math.NewMat4EulerXYZ(c.EulerRotation.X, c.EulerRotation.Y, c.EulerRotation.Z)
		translation := math.NewMat4Translation(c.Position)

		c.ViewMatrix = rotation.Mul(translation)
		c.ViewMatrix = c.ViewMatrix.Inverse()

		c.IsDirty = false
	}
	return c.ViewMatrix
}

// ConsumeUpdated reports whether the camera changed since the last call
// and clears the flag.
func (c *Camera) ConsumeUpdated() bool {
	updated := c.Updated
	c.Updated = false
	return updated
}
