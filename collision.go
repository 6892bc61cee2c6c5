package main

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// Restitution is the coefficient applied to solid-solid contacts.
	Restitution = 0.95
	// MaxRewind bounds how far back a contact may be resolved, in seconds.
	MaxRewind = 0.5
)

// Parametric is the straight-line trajectory X(t) = X + V·t.
type Parametric struct {
	X, V mgl64.Vec2
}

// DistanceCoefficients returns a, b, c with |q(t) - p(t)|² = a·t² + b·t + c.
func DistanceCoefficients(p, q Parametric) (a, b, c float64) {
	dx := q.X.Sub(p.X)
	dv := q.V.Sub(p.V)
	return dv.Dot(dv), 2 * dx.Dot(dv), dx.Dot(dx)
}

// TimesAtDistance returns the real times, ascending, at which p and q are d
// apart. It returns nil when they never are, including when they do not
// move relative to each other.
func TimesAtDistance(p, q Parametric, d float64) []float64 {
	a, b, c := DistanceCoefficients(p, q)
	c -= d * d
	if a == 0 {
		return nil
	}
	disc := b*b - 4*a*c
	if disc < 0 || math.IsNaN(disc) {
		return nil
	}
	// avoids cancellation when b² dominates 4ac
	k := -0.5 * (b + math.Copysign(math.Sqrt(disc), b))
	if k == 0 {
		return []float64{0, 0}
	}
	t1, t2 := k/a, c/k
	if t1 > t2 {
		t1, t2 = t2, t1
	}
	return []float64{t1, t2}
}

// ContactTime returns the offset from the present at which p and q first
// touched at distance d, within [-maxRewind, 0]. Pairs without a real
// contact time resolve at 0.
func ContactTime(p, q Parametric, d, maxRewind float64) float64 {
	roots := TimesAtDistance(p, q, d)
	if len(roots) == 0 {
		return 0
	}
	return Clamp(roots[0], -maxRewind, 0)
}

// NearestMirror returns the distance from point to the closest of mirrors and
// that mirror.
func NearestMirror(point mgl64.Vec2, mirrors []mgl64.Vec2) (float64, mgl64.Vec2) {
	best := math.Inf(1)
	var closest mgl64.Vec2
	for _, m := range mirrors {
		if d := point.Sub(m).Len(); d < best {
			best, closest = d, m
		}
	}
	return best, closest
}

// solidDistance is the smallest cached distance between a and b, looking at
// b's mirrors from a and a's mirrors from b.
func solidDistance(a, b *Body) float64 {
	d1, _ := NearestMirror(a.pos, b.mirrors)
	d2, _ := NearestMirror(b.pos, a.mirrors)
	return math.Min(d1, d2)
}

// DetectSolids tests a against b on the cached snapshot and updates both
// touching sets. It returns true only for the tick on which the pair starts
// to overlap.
func DetectSolids(a, b *Solid) bool {
	hit := solidDistance(&a.Body, &b.Body) < a.Radius+b.Radius
	if !hit {
		delete(a.touching, b.ID)
		delete(b.touching, a.ID)
		return false
	}
	if a.Touching(b.ID) {
		return false
	}
	a.touching[b.ID] = struct{}{}
	b.touching[a.ID] = struct{}{}
	return true
}

// DetectBullet tests bullet b against solid s on the cached snapshot and
// returns whether it hits and at what distance. A bullet hits nothing until
// it has left its shooter's radius; shooterKnown is false when the shooter
// is no longer in the world, which makes the bullet away at once.
func DetectBullet(b *Bullet, s *Solid, shooterKnown bool) (bool, float64) {
	if !b.Alive {
		return false, 0
	}
	if !shooterKnown {
		b.Away = true
	}
	dist, _ := NearestMirror(b.pos, s.mirrors)
	hit := dist < s.Radius
	if b.Away {
		return hit, dist
	}
	if !hit && s.ID == b.ShooterID {
		b.Away = true
	}
	return false, dist
}

// Restitute returns the post-contact normal speeds of two bodies with masses
// m1, m2 and normal speeds u1, u2.
func Restitute(m1, m2, u1, u2, cr float64) (v1, v2 float64) {
	p := m1*u1 + m2*u2
	v1 = (cr*m2*(u2-u1) + p) / (m1 + m2)
	v2 = (cr*m1*(u1-u2) + p) / (m1 + m2)
	return v1, v2
}

// ResolveSolids applies the contact impulse between a and b. Both are brought
// up to now, rewound along their own trajectories to the moment of contact,
// and given new velocities along the contact normal. Tanks are never
// rewound.
func ResolveSolids(now float64, a, b SolidObject, cr float64) error {
	if err := a.advance(now); err != nil {
		return err
	}
	if err := b.advance(now); err != nil {
		return err
	}
	ab, bb := a.body(), b.body()
	arena := ab.arena
	p := Parametric{X: ab.X, V: ab.V}
	q := Parametric{X: arena.NearestImage(ab.X, bb.X), V: bb.V}
	if tc := ContactTime(p, q, ab.Radius+bb.Radius, MaxRewind); tc != 0 {
		if err := ab.advanceTo(now + tc); err != nil {
			return err
		}
		if err := bb.advanceTo(now + tc); err != nil {
			return err
		}
	}

	normal := arena.NearestImage(ab.X, bb.X).Sub(ab.X)
	if normal.Len() == 0 {
		return nil
	}
	normal = normal.Normalize()
	u1, u2 := ab.V.Dot(normal), bb.V.Dot(normal)
	v1, v2 := Restitute(ab.Mass, bb.Mass, u1, u2, cr)
	ab.V = ab.V.Add(normal.Mul(v1 - u1))
	bb.V = bb.V.Add(normal.Mul(v2 - u2))
	a.onVelocityChange(v1 - u1)
	b.onVelocityChange(v2 - u2)
	return nil
}

// ResolveBullet applies a bullet hit on s at now. The bullet dies and no
// momentum is exchanged.
func ResolveBullet(now float64, b *Bullet, s SolidObject) error {
	b.Alive = false
	if err := s.advance(now); err != nil {
		return err
	}
	s.absorb(b)
	return nil
}
