package kinematics

// BedLevel is a pluggable bed-leveling correction. Implementations must be
// total functions over the reachable workspace, with no singularities.
// The extruder coordinate is never touched.
type BedLevel interface {
	Transform(pos Position) Position
}

// Matrix3x3 applies a linear correction to (x, y, z), row-major.
type Matrix3x3 [9]float64

// IdentityMatrix returns the no-correction matrix.
func IdentityMatrix() Matrix3x3 {
	return Matrix3x3{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
}

// Transform multiplies (x, y, z) by the matrix. E passes through.
func (m Matrix3x3) Transform(pos Position) Position {
	return Position{
		X: m[0]*pos.X + m[1]*pos.Y + m[2]*pos.Z,
		Y: m[3]*pos.X + m[4]*pos.Y + m[5]*pos.Z,
		Z: m[6]*pos.X + m[7]*pos.Y + m[8]*pos.Z,
		E: pos.E,
	}
}
