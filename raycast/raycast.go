// Package raycast defines the single external collaborator the vehicle
// core depends on for ground contact: a re-entrant, side-effect-free
// single-ray intersection query against static geometry.
package raycast

import "github.com/go-gl/mathgl/mgl64"

// Hit is the result of a successful ray intersection.
type Hit struct {
	Point    mgl64.Vec3 // world-space intersection point
	Normal   mgl64.Vec3 // unit surface normal, pointing away from the struck surface
	Distance float64    // distance from origin to Point, in [0, maxDist]
}

// Query answers single-ray intersections against static world geometry.
// Implementations must be safe to call many times per tick and must
// observe a coherent snapshot of the geometry for the whole tick — no
// identity, no side effects.
type Query interface {
	Raycast(origin, dirUnit mgl64.Vec3, maxDist float64) (Hit, bool)
}
