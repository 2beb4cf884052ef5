package geom

import (
	"math"

	"github.com/golang/geo/r3"
)

// Transform is a 4x4 row-major rigid transform
// (m00..m03, m10..m13, m20..m23, m30..m33).
type Transform [16]float64

// IdentityTransform is the 4x4 identity.
var IdentityTransform = Transform{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

// TransformMatrixTolerance is the determinant tolerance used by IsRigid.
const TransformMatrixTolerance = 0.01

// Apply maps p through the transform.
func (t Transform) Apply(p r3.Vector) r3.Vector {
	return r3.Vector{
		X: t[0]*p.X + t[1]*p.Y + t[2]*p.Z + t[3],
		Y: t[4]*p.X + t[5]*p.Y + t[6]*p.Z + t[7],
		Z: t[8]*p.X + t[9]*p.Y + t[10]*p.Z + t[11],
	}
}

// Rotation returns the upper-left 3x3 block.
func (t Transform) Rotation() Rotation {
	return Rotation{t[0], t[1], t[2], t[4], t[5], t[6], t[8], t[9], t[10]}
}

// Translation returns the translation column.
func (t Transform) Translation() r3.Vector {
	return r3.Vector{X: t[3], Y: t[7], Z: t[11]}
}

// IsRigid reports whether t is a proper rigid transform: rotation block with
// determinant ≈ 1 and a homogeneous last row of [0 0 0 1].
func (t Transform) IsRigid() bool {
	if math.Abs(t.Rotation().Det()-1.0) > TransformMatrixTolerance {
		return false
	}
	if t[12] != 0 || t[13] != 0 || t[14] != 0 || math.Abs(t[15]-1.0) > 0.001 {
		return false
	}
	return true
}
