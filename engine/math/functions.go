package math

import (
	mt "math"
)

const DegToRad float32 = mt.Pi / 180.0

func ksin(x float32) float32 {
	return float32(mt.Sin(float64(x)))
}

func kcos(x float32) float32 {
	return float32(mt.Cos(float64(x)))
}

func ktan(x float32) float32 {
	return float32(mt.Tan(float64(x)))
}

func ksqrt(x float32) float32 {
	return float32(mt.Sqrt(float64(x)))
}

func NewVec3(x, y, z float32) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

func NewVec3Zero() Vec3 {
	return Vec3{}
}

func NewVec3Up() Vec3 {
	return Vec3{X: 0, Y: 1.0, Z: 0}
}

func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{
		X: v.X + other.X,
		Y: v.Y + other.Y,
		Z: v.Z + other.Z,
	}
}

func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{
		X: v.X - other.X,
		Y: v.Y - other.Y,
		Z: v.Z - other.Z,
	}
}

func (v Vec3) MulScalar(scalar float32) Vec3 {
	return Vec3{
		X: v.X * scalar,
		Y: v.Y * scalar,
		Z: v.Z * scalar,
	}
}

func (v Vec3) LengthSquared() float32 {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

func (v Vec3) Length() float32 {
	return ksqrt(v.LengthSquared())
}

func (v *Vec3) Normalize() {
	length := v.Length()
	if length == 0 {
		return
	}
	v.X /= length
	v.Y /= length
	v.Z /= length
}

func (v Vec3) Dot(other Vec3) float32 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

func (v Vec3) Cross(other Vec3) Vec3 {
	return Vec3{
		X: v.Y*other.Z - v.Z*other.Y,
		Y: v.Z*other.X - v.X*other.Z,
		Z: v.X*other.Y - v.Y*other.X,
	}
}

/**
 * @brief Creates and returns an identity matrix
 */
func NewMat4Identity() Mat4 {
	out_matrix := Mat4{}
	out_matrix.Data[0] = 1.0
	out_matrix.Data[5] = 1.0
	out_matrix.Data[10] = 1.0
	out_matrix.Data[15] = 1.0
	return out_matrix
}

/**
 * @brief Returns the result of multiplying mt and other.
 */
func (m Mat4) Mul(other Mat4) Mat4 {
	out_matrix := NewMat4Identity()

	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			sum := float32(0)
			for i := 0; i < 4; i++ {
				sum += m.Data[row*4+i] * other.Data[i*4+col]
			}
			out_matrix.Data[row*4+col] = sum
		}
	}

	return out_matrix
}

/**
 * @brief Creates and returns a perspective matrix. Typically used to render 3d scenes.
 *
 * @param fov_radians The field of view in radians.
 * @param aspect_ratio The aspect ratio.
 * @param near_clip The near clipping plane distance.
 * @param far_clip The far clipping plane distance.
 * @return A new perspective matrix.
 */
func NewMat4Perspective(fov_radians, aspect_ratio, near_clip, far_clip float32) Mat4 {
	half_tan_fov := ktan(fov_radians * 0.5)
	out_matrix := Mat4{}
	out_matrix.Data[0] = 1.0 / (aspect_ratio * half_tan_fov)
	out_matrix.Data[5] = 1.0 / half_tan_fov
	out_matrix.Data[10] = -((far_clip + near_clip) / (far_clip - near_clip))
	out_matrix.Data[11] = -1.0
	out_matrix.Data[14] = -((2.0 * far_clip * near_clip) / (far_clip - near_clip))
	return out_matrix
}

/**
 * @brief Creates and returns a look-at matrix, or a matrix looking
 * at target from the perspective of position.
 */
func NewMat4LookAt(position, target, up Vec3) Mat4 {
	out_matrix := Mat4{}
	z_axis := target.Sub(position)
	z_axis.Normalize()
	x_axis := up.Cross(z_axis)
	x_axis.Normalize()
	y_axis := z_axis.Cross(x_axis)

	out_matrix.Data[0] = x_axis.X
	out_matrix.Data[1] = y_axis.X
	out_matrix.Data[2] = -z_axis.X
	out_matrix.Data[3] = 0
	out_matrix.Data[4] = x_axis.Y
	out_matrix.Data[5] = y_axis.Y
	out_matrix.Data[6] = -z_axis.Y
	out_matrix.Data[7] = 0
	out_matrix.Data[8] = x_axis.Z
	out_matrix.Data[9] = y_axis.Z
	out_matrix.Data[10] = -z_axis.Z
	out_matrix.Data[11] = 0
	out_matrix.Data[12] = -x_axis.Dot(position)
	out_matrix.Data[13] = -y_axis.Dot(position)
	out_matrix.Data[14] = z_axis.Dot(position)
	out_matrix.Data[15] = 1.0

	return out_matrix
}

/**
 * @brief Returns a transposed copy of the provided matrix (rows->columns).
 */
func NewMat4Transposed(matrix Mat4) Mat4 {
	out_matrix := NewMat4Identity()
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			out_matrix.Data[row*4+col] = matrix.Data[col*4+row]
		}
	}
	return out_matrix
}

/**
 * @brief Creates and returns an inverse of the provided matrix.
 */
func (m Mat4) Inverse() Mat4 {
	d := m.Data

	t0 := d[10] * d[15]
	t1 := d[14] * d[11]
	t2 := d[6] * d[15]
	t3 := d[14] * d[7]
	t4 := d[6] * d[11]
	t5 := d[10] * d[7]
	t6 := d[2] * d[15]
	t7 := d[14] * d[3]
	t8 := d[2] * d[11]
	t9 := d[10] * d[3]
	t10 := d[2] * d[7]
	t11 := d[6] * d[3]
	t12 := d[8] * d[13]
	t13 := d[12] * d[9]
	t14 := d[4] * d[13]
	t15 := d[12] * d[5]
	t16 := d[4] * d[9]
	t17 := d[8] * d[5]
	t18 := d[0] * d[13]
	t19 := d[12] * d[1]
	t20 := d[0] * d[9]
	t21 := d[8] * d[1]
	t22 := d[0] * d[5]
	t23 := d[4] * d[1]

	out_matrix := Mat4{}
	o := &out_matrix.Data

	o[0] = (t0*d[5] + t3*d[9] + t4*d[13]) - (t1*d[5] + t2*d[9] + t5*d[13])
	o[1] = (t1*d[1] + t6*d[9] + t9*d[13]) - (t0*d[1] + t7*d[9] + t8*d[13])
	o[2] = (t2*d[1] + t7*d[5] + t10*d[13]) - (t3*d[1] + t6*d[5] + t11*d[13])
	o[3] = (t5*d[1] + t8*d[5] + t11*d[9]) - (t4*d[1] + t9*d[5] + t10*d[9])

	det := 1.0 / (d[0]*o[0] + d[4]*o[1] + d[8]*o[2] + d[12]*o[3])

	o[0] = det * o[0]
	o[1] = det * o[1]
	o[2] = det * o[2]
	o[3] = det * o[3]
	o[4] = det * ((t1*d[4] + t2*d[8] + t5*d[12]) - (t0*d[4] + t3*d[8] + t4*d[12]))
	o[5] = det * ((t0*d[0] + t7*d[8] + t8*d[12]) - (t1*d[0] + t6*d[8] + t9*d[12]))
	o[6] = det * ((t3*d[0] + t6*d[4] + t11*d[12]) - (t2*d[0] + t7*d[4] + t10*d[12]))
	o[7] = det * ((t4*d[0] + t9*d[4] + t10*d[8]) - (t5*d[0] + t8*d[4] + t11*d[8]))
	o[8] = det * ((t12*d[7] + t15*d[11] + t16*d[15]) - (t13*d[7] + t14*d[11] + t17*d[15]))
	o[9] = det * ((t13*d[3] + t18*d[11] + t21*d[15]) - (t12*d[3] + t19*d[11] + t20*d[15]))
	o[10] = det * ((t14*d[3] + t19*d[7] + t22*d[15]) - (t15*d[3] + t18*d[7] + t23*d[15]))
	o[11] = det * ((t17*d[3] + t20*d[7] + t23*d[11]) - (t16*d[3] + t21*d[7] + t22*d[11]))
	o[12] = det * ((t14*d[10] + t17*d[14] + t13*d[6]) - (t16*d[14] + t12*d[6] + t15*d[10]))
	o[13] = det * ((t20*d[14] + t12*d[2] + t19*d[10]) - (t18*d[10] + t21*d[14] + t13*d[2]))
	o[14] = det * ((t18*d[6] + t23*d[14] + t15*d[2]) - (t22*d[14] + t14*d[2] + t19*d[6]))
	o[15] = det * ((t22*d[10] + t16*d[2] + t21*d[6]) - (t20*d[6] + t23*d[10] + t17*d[2]))

	return out_matrix
}

/**
 * @brief Creates and returns a translation matrix from the given position.
 */
func NewMat4Translation(position Vec3) Mat4 {
	out_matrix := NewMat4Identity()
	out_matrix.Data[12] = position.X
	out_matrix.Data[13] = position.Y
	out_matrix.Data[14] = position.Z
	return out_matrix
}

func NewMat4EulerX(angle_radians float32) Mat4 {
	out_matrix := NewMat4Identity()
	c := kcos(angle_radians)
	s := ksin(angle_radians)
	out_matrix.Data[5] = c
	out_matrix.Data[6] = s
	out_matrix.Data[9] = -s
	out_matrix.Data[10] = c
	return out_matrix
}

func NewMat4EulerY(angle_radians float32) Mat4 {
	out_matrix := NewMat4Identity()
	c := kcos(angle_radians)
	s := ksin(angle_radians)
	out_matrix.Data[0] = c
	out_matrix.Data[2] = -s
	out_matrix.Data[8] = s
	out_matrix.Data[10] = c
	return out_matrix
}

func NewMat4EulerZ(angle_radians float32) Mat4 {
	out_matrix := NewMat4Identity()
	c := kcos(angle_radians)
	s := ksin(angle_radians)
	out_matrix.Data[0] = c
	out_matrix.Data[1] = s
	out_matrix.Data[4] = -s
	out_matrix.Data[5] = c
	return out_matrix
}

func NewMat4EulerXYZ(x_radians, y_radians, z_radians float32) Mat4 {
	rx := NewMat4EulerX(x_radians)
	ry := NewMat4EulerY(y_radians)
	rz := NewMat4EulerZ(z_radians)
	out_matrix := rx.Mul(ry)
	return out_matrix.Mul(rz)
}
