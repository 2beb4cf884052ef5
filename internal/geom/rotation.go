package geom

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// RotationTolerance bounds the orthonormality and determinant checks in
// Rotation.IsProper.
const RotationTolerance = 1e-3

// Rotation is a 3x3 row-major rotation matrix
// (m00,m01,m02, m10,m11,m12, m20,m21,m22).
// Column i is local axis i expressed in the working frame.
type Rotation [9]float64

// IdentityRotation leaves vectors unchanged.
var IdentityRotation = Rotation{1, 0, 0, 0, 1, 0, 0, 0, 1}

// RotationFromAxes builds a rotation whose columns are the given local axes.
func RotationFromAxes(x, y, z r3.Vector) Rotation {
	return Rotation{
		x.X, y.X, z.X,
		x.Y, y.Y, z.Y,
		x.Z, y.Z, z.Z,
	}
}

// RotationAboutZ returns a rotation of theta radians about the Z axis.
func RotationAboutZ(theta float64) Rotation {
	c, s := math.Cos(theta), math.Sin(theta)
	return Rotation{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	}
}

// Axis returns local axis i (0, 1 or 2) in the working frame.
func (r Rotation) Axis(i int) r3.Vector {
	return r3.Vector{X: r[i], Y: r[3+i], Z: r[6+i]}
}

// Apply rotates v from the local frame into the working frame (R*v).
func (r Rotation) Apply(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: r[0]*v.X + r[1]*v.Y + r[2]*v.Z,
		Y: r[3]*v.X + r[4]*v.Y + r[5]*v.Z,
		Z: r[6]*v.X + r[7]*v.Y + r[8]*v.Z,
	}
}

// ApplyInverse rotates v from the working frame into the local frame (Rᵀ*v).
func (r Rotation) ApplyInverse(v r3.Vector) r3.Vector {
	return r3.Vector{
		X: r[0]*v.X + r[3]*v.Y + r[6]*v.Z,
		Y: r[1]*v.X + r[4]*v.Y + r[7]*v.Z,
		Z: r[2]*v.X + r[5]*v.Y + r[8]*v.Z,
	}
}

// Mul returns r*o.
func (r Rotation) Mul(o Rotation) Rotation {
	var out Rotation
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[3*i+j] = r[3*i]*o[j] + r[3*i+1]*o[3+j] + r[3*i+2]*o[6+j]
		}
	}
	return out
}

// Det returns the determinant.
func (r Rotation) Det() float64 {
	return r[0]*(r[4]*r[8]-r[5]*r[7]) - r[1]*(r[3]*r[8]-r[5]*r[6]) + r[2]*(r[3]*r[7]-r[4]*r[6])
}

// IsProper reports whether r is orthonormal with determinant +1.
func (r Rotation) IsProper() bool {
	if math.Abs(r.Det()-1) > RotationTolerance {
		return false
	}
	for i := 0; i < 3; i++ {
		ai := r.Axis(i)
		if math.Abs(ai.Norm()-1) > RotationTolerance {
			return false
		}
		for j := i + 1; j < 3; j++ {
			if math.Abs(ai.Dot(r.Axis(j))) > RotationTolerance {
				return false
			}
		}
	}
	return true
}

// Quaternion converts r to a unit quaternion (Real = w; Imag, Jmag, Kmag = x, y, z).
func (r Rotation) Quaternion() quat.Number {
	m00, m01, m02 := r[0], r[1], r[2]
	m10, m11, m12 := r[3], r[4], r[5]
	m20, m21, m22 := r[6], r[7], r[8]

	var q quat.Number
	switch trace := m00 + m11 + m22; {
	case trace > 0:
		s := 0.5 / math.Sqrt(trace+1)
		q = quat.Number{Real: 0.25 / s, Imag: (m21 - m12) * s, Jmag: (m02 - m20) * s, Kmag: (m10 - m01) * s}
	case m00 > m11 && m00 > m22:
		s := 2 * math.Sqrt(1+m00-m11-m22)
		q = quat.Number{Real: (m21 - m12) / s, Imag: 0.25 * s, Jmag: (m01 + m10) / s, Kmag: (m02 + m20) / s}
	case m11 > m22:
		s := 2 * math.Sqrt(1+m11-m00-m22)
		q = quat.Number{Real: (m02 - m20) / s, Imag: (m01 + m10) / s, Jmag: 0.25 * s, Kmag: (m12 + m21) / s}
	default:
		s := 2 * math.Sqrt(1+m22-m00-m11)
		q = quat.Number{Real: (m10 - m01) / s, Imag: (m02 + m20) / s, Jmag: (m12 + m21) / s, Kmag: 0.25 * s}
	}

	n := quat.Abs(q)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	q = quat.Scale(1/n, q)
	// Canonical hemisphere so equal rotations compare equal.
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	return q
}

// Component returns v.X, v.Y or v.Z for i = 0, 1, 2.
func Component(v r3.Vector, i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// WithComponent returns v with component i replaced by f.
func WithComponent(v r3.Vector, i int, f float64) r3.Vector {
	switch i {
	case 0:
		v.X = f
	case 1:
		v.Y = f
	default:
		v.Z = f
	}
	return v
}
