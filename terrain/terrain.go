// Package terrain is a concrete raycast.Query backend: a static triangle
// soup indexed by a uniform spatial grid, adapted from the broad-phase
// cell-hashing machinery of a rigid-body physics engine (originally used
// there to bucket dynamic-body AABBs for pair finding; here used to bucket
// static triangles for single-ray cell traversal).
package terrain

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/jtothec67/racecore/raycast"
)

// Triangle is a single static collision triangle, in world space.
type Triangle struct {
	A, B, C mgl64.Vec3
}

func (t Triangle) normal() mgl64.Vec3 {
	n := t.B.Sub(t.A).Cross(t.C.Sub(t.A))
	l := n.Len()
	if l < 1e-12 {
		return mgl64.Vec3{0, 1, 0}
	}
	return n.Mul(1.0 / l)
}

func (t Triangle) aabbMin() mgl64.Vec3 {
	return mgl64.Vec3{
		math.Min(t.A.X(), math.Min(t.B.X(), t.C.X())),
		math.Min(t.A.Y(), math.Min(t.B.Y(), t.C.Y())),
		math.Min(t.A.Z(), math.Min(t.B.Z(), t.C.Z())),
	}
}

func (t Triangle) aabbMax() mgl64.Vec3 {
	return mgl64.Vec3{
		math.Max(t.A.X(), math.Max(t.B.X(), t.C.X())),
		math.Max(t.A.Y(), math.Max(t.B.Y(), t.C.Y())),
		math.Max(t.A.Z(), math.Max(t.B.Z(), t.C.Z())),
	}
}

type cellKey struct {
	X, Y, Z int
}

// World is a static-geometry raycast backend. It implements raycast.Query.
type World struct {
	cellSize  float64
	triangles []Triangle
	cells     map[cellKey][]int
}

// NewWorld creates an empty terrain world. cellSize should be on the order
// of the largest triangle edge expected; too small wastes memory on
// duplicate bucketing, too large defeats the point of the index.
func NewWorld(cellSize float64) *World {
	if cellSize <= 0 {
		cellSize = 1.0
	}
	return &World{
		cellSize: cellSize,
		cells:    make(map[cellKey][]int),
	}
}

// AddTriangle inserts a static collision triangle into every grid cell its
// AABB overlaps.
func (w *World) AddTriangle(a, b, c mgl64.Vec3) {
	idx := len(w.triangles)
	tri := Triangle{A: a, B: b, C: c}
	w.triangles = append(w.triangles, tri)

	minCell := w.worldToCell(tri.aabbMin())
	maxCell := w.worldToCell(tri.aabbMax())

	for x := minCell.X; x <= maxCell.X; x++ {
		for y := minCell.Y; y <= maxCell.Y; y++ {
			for z := minCell.Z; z <= maxCell.Z; z++ {
				key := cellKey{x, y, z}
				w.cells[key] = append(w.cells[key], idx)
			}
		}
	}
}

// AddQuad inserts a flat quadrilateral (a,b,c,d in winding order) as two
// triangles.
func (w *World) AddQuad(a, b, c, d mgl64.Vec3) {
	w.AddTriangle(a, b, c)
	w.AddTriangle(a, c, d)
}

// AddGroundPlane inserts a large flat square centered at the origin at the
// given height, useful for test tracks such as cmd/racecore-drive's and the
// S5 curb-strike scenario's.
func (w *World) AddGroundPlane(height, halfExtent float64) {
	w.AddQuad(
		mgl64.Vec3{-halfExtent, height, -halfExtent},
		mgl64.Vec3{halfExtent, height, -halfExtent},
		mgl64.Vec3{halfExtent, height, halfExtent},
		mgl64.Vec3{-halfExtent, height, halfExtent},
	)
}

// AddStep inserts a rectangular raised step (a curb) of the given height
// spanning [x0,x1]x[z0,z1], on top of a world whose surrounding ground is
// at baseHeight. Used by the S5 curb-strike scenario.
func (w *World) AddStep(baseHeight, stepHeight, x0, x1, z0, z1 float64) {
	top := baseHeight + stepHeight
	w.AddQuad(
		mgl64.Vec3{x0, top, z0},
		mgl64.Vec3{x1, top, z0},
		mgl64.Vec3{x1, top, z1},
		mgl64.Vec3{x0, top, z1},
	)
	// leading face so a ray grazing the edge still finds geometry
	w.AddQuad(
		mgl64.Vec3{x0, baseHeight, z0},
		mgl64.Vec3{x0, top, z0},
		mgl64.Vec3{x1, top, z0},
		mgl64.Vec3{x1, baseHeight, z0},
	)
}

func (w *World) worldToCell(p mgl64.Vec3) cellKey {
	return cellKey{
		X: int(math.Floor(p.X() / w.cellSize)),
		Y: int(math.Floor(p.Y() / w.cellSize)),
		Z: int(math.Floor(p.Z() / w.cellSize)),
	}
}

// Raycast walks the grid cells the segment [origin, origin+dirUnit*maxDist]
// passes through, gathers candidate triangles exactly once each, and
// returns the nearest Möller-Trumbore intersection, if any. Side-effect
// free and safe to call repeatedly against the same unchanged World.
func (w *World) Raycast(origin, dirUnit mgl64.Vec3, maxDist float64) (raycast.Hit, bool) {
	if maxDist <= 0 {
		return raycast.Hit{}, false
	}
	dir := dirUnit
	if l := dir.Len(); l > 1e-12 {
		dir = dir.Mul(1.0 / l)
	}

	seen := make(map[int]bool)
	best := raycast.Hit{}
	found := false

	// Sample cells along the segment at half-cell-size steps: coarser
	// than a full 3D-DDA but sufficient given the up-to-20-queries/tick
	// budget and the cell size being tuned to the geometry scale.
	step := w.cellSize * 0.5
	if step <= 0 {
		step = 0.1
	}
	for t := 0.0; t <= maxDist; t += step {
		p := origin.Add(dir.Mul(t))
		key := w.worldToCell(p)
		for _, triIdx := range w.cells[key] {
			if seen[triIdx] {
				continue
			}
			seen[triIdx] = true

			dist, ok := intersectTriangle(origin, dir, w.triangles[triIdx])
			if !ok || dist < 0 || dist > maxDist {
				continue
			}
			if !found || dist < best.Distance {
				point := origin.Add(dir.Mul(dist))
				n := w.triangles[triIdx].normal()
				if n.Dot(dir) > 0 {
					n = n.Mul(-1)
				}
				best = raycast.Hit{Point: point, Normal: n, Distance: dist}
				found = true
			}
		}
	}
	// Ensure the final endpoint's cell is sampled even if maxDist isn't an
	// exact multiple of step.
	if !found {
		p := origin.Add(dir.Mul(maxDist))
		key := w.worldToCell(p)
		for _, triIdx := range w.cells[key] {
			if seen[triIdx] {
				continue
			}
			dist, ok := intersectTriangle(origin, dir, w.triangles[triIdx])
			if ok && dist >= 0 && dist <= maxDist {
				point := origin.Add(dir.Mul(dist))
				n := w.triangles[triIdx].normal()
				if n.Dot(dir) > 0 {
					n = n.Mul(-1)
				}
				best = raycast.Hit{Point: point, Normal: n, Distance: dist}
				found = true
			}
		}
	}

	return best, found
}

// intersectTriangle is the Möller-Trumbore ray-triangle intersection test.
// Returns the distance along dir (assumed unit length) to the hit point.
func intersectTriangle(origin, dir mgl64.Vec3, tri Triangle) (float64, bool) {
	const epsilon = 1e-9

	edge1 := tri.B.Sub(tri.A)
	edge2 := tri.C.Sub(tri.A)
	h := dir.Cross(edge2)
	a := edge1.Dot(h)
	if math.Abs(a) < epsilon {
		return 0, false
	}

	f := 1.0 / a
	s := origin.Sub(tri.A)
	u := f * s.Dot(h)
	if u < 0 || u > 1 {
		return 0, false
	}

	q := s.Cross(edge1)
	v := f * dir.Dot(q)
	if v < 0 || u+v > 1 {
		return 0, false
	}

	dist := f * edge2.Dot(q)
	if dist < epsilon {
		return 0, false
	}
	return dist, true
}
