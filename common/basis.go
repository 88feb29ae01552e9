package common

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Basis is an orthonormal, right-handed frame.
type Basis struct {
	Forward mgl64.Vec3
	Right   mgl64.Vec3
	Up      mgl64.Vec3
}

// IdentityBasis is aligned with the world axes.
var IdentityBasis = Basis{
	Forward: mgl64.Vec3{1, 0, 0},
	Right:   mgl64.Vec3{0, 1, 0},
	Up:      mgl64.Vec3{0, 0, 1},
}

// BasisFromZX builds a frame whose Up is z and whose Forward is x with its z
// component removed. When x is parallel to z a world axis is substituted.
func BasisFromZX(z, x mgl64.Vec3) Basis {
	up := SafeNormal(z)
	if IsZero(up) {
		up = WorldUp
	}
	fwd := SafeNormal(ProjectOnPlane(x, up))
	if IsZero(fwd) {
		ref := mgl64.Vec3{1, 0, 0}
		if math.Abs(up.Dot(ref)) > 0.9 {
			ref = mgl64.Vec3{0, 1, 0}
		}
		fwd = SafeNormal(ProjectOnPlane(ref, up))
	}
	return Basis{
		Forward: fwd,
		Right:   up.Cross(fwd),
		Up:      up,
	}
}

// Quat returns the rotation taking the identity basis onto b.
func (b Basis) Quat() mgl64.Quat {
	m := mgl64.Mat3FromCols(b.Forward, b.Right, b.Up)
	return mgl64.Mat4ToQuat(m.Mat4()).Normalize()
}
