package main

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Arena is the toroidal field [0,W) x [0,H).
type Arena struct {
	W, H float64
}

// Wrap maps a position into [0,W) x [0,H).
func (a Arena) Wrap(x mgl64.Vec2) mgl64.Vec2 {
	return mgl64.Vec2{wrapAxis(x[0], a.W), wrapAxis(x[1], a.H)}
}

func wrapAxis(v, size float64) float64 {
	v = math.Mod(v, size)
	if v < 0 {
		v += size
	}
	// -tiny + size rounds to size
	if v >= size {
		v = 0
	}
	return v
}

// Mirrors returns the wrapped position followed by one virtual copy across
// every edge closer than radius. The first element is always the actual
// position.
func (a Arena) Mirrors(actual mgl64.Vec2, radius float64) []mgl64.Vec2 {
	out := make([]mgl64.Vec2, 1, 5)
	out[0] = actual
	if a.H-actual[1] < radius {
		out = append(out, mgl64.Vec2{actual[0], actual[1] - a.H})
	}
	if actual[1] < radius {
		out = append(out, mgl64.Vec2{actual[0], actual[1] + a.H})
	}
	if a.W-actual[0] < radius {
		out = append(out, mgl64.Vec2{actual[0] - a.W, actual[1]})
	}
	if actual[0] < radius {
		out = append(out, mgl64.Vec2{actual[0] + a.W, actual[1]})
	}
	return out
}

// NearestImage returns the lattice copy of b (b shifted by multiples of W and
// H) closest to a.
func (a Arena) NearestImage(from, b mgl64.Vec2) mgl64.Vec2 {
	return mgl64.Vec2{
		from[0] + minimumOffset(b[0]-from[0], a.W),
		from[1] + minimumOffset(b[1]-from[1], a.H),
	}
}

func minimumOffset(d, size float64) float64 {
	d = math.Mod(d, size)
	if d > size/2 {
		d -= size
	} else if d < -size/2 {
		d += size
	}
	return d
}

// Area returns W*H.
func (a Arena) Area() float64 {
	return a.W * a.H
}
