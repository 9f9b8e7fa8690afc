package wall

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

const parallelEpsilon = 1e-9

// Viewpoint returns where a ray from pos, oriented by yaw/pitch/roll
// (radians, facing the wall at zero), hits the wall plane z = 0.
// It reports false when the ray runs parallel to the wall.
func Viewpoint(pos r3.Vec, yaw, pitch, roll float64) (r3.Vec, bool) {
	dir := r3.Vec{Z: 1}
	dir = r3.NewRotation(roll, r3.Vec{Z: 1}).Rotate(dir)
	dir = r3.NewRotation(pitch, r3.Vec{X: 1}).Rotate(dir)
	dir = r3.NewRotation(yaw, r3.Vec{Y: 1}).Rotate(dir)
	return intersectPlane(pos, dir, r3.Vec{}, r3.Vec{Z: 1})
}

func intersectPlane(linePt, lineDir, planePt, normal r3.Vec) (r3.Vec, bool) {
	denom := r3.Dot(lineDir, normal)
	if math.Abs(denom) <= parallelEpsilon {
		return r3.Vec{}, false
	}
	length := r3.Dot(r3.Sub(planePt, linePt), normal) / denom
	return r3.Add(linePt, r3.Scale(length, r3.Unit(lineDir))), true
}
