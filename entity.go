package main

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Kind tags the closed set of object variants.
type Kind uint8

const (
	KindShip Kind = iota + 1
	KindAsteroid
	KindBullet
)

func (k Kind) String() string {
	switch k {
	case KindShip:
		return "ship"
	case KindAsteroid:
		return "asteroid"
	case KindBullet:
		return "bullet"
	}
	return "unknown"
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{KindShip, KindAsteroid, KindBullet} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown object kind %q", s)
}

// Visuals are opaque client-supplied images carried with a ship.
type Visuals struct {
	Image       []byte `json:"image" msgpack:"image"`
	ImageW      int    `json:"imagex" msgpack:"imagex"`
	ImageH      int    `json:"imagey" msgpack:"imagey"`
	ThrustImage []byte `json:"thrustimg" msgpack:"thrustimg"`
	BulletImage []byte `json:"bulletimg" msgpack:"bulletimg"`
}

// Body holds the state shared by every object.
type Body struct {
	ID   int64
	Kind Kind
	Name string
	Kinematics
	Radius float64
	Mass   float64
	Alive  bool

	arena Arena

	// Per-tick cache, written once by cachePosition and read-only for the
	// rest of the tick.
	pos     mgl64.Vec2
	heading float64
	mirrors []mgl64.Vec2
}

func (b *Body) body() *Body { return b }

// Object is implemented by Ship, Asteroid and Bullet.
type Object interface {
	body() *Body
}

// cachePosition forecasts the wrapped position, heading and mirrors at now.
func (b *Body) cachePosition(now float64) error {
	x, r, err := b.ForecastPosition(now - b.Timestamp)
	if err != nil {
		return fmt.Errorf("object %d: %w", b.ID, err)
	}
	b.pos = b.arena.Wrap(x)
	b.heading = r
	b.mirrors = b.arena.Mirrors(b.pos, b.Radius)
	return nil
}

// advanceTo moves the authoritative state to time t. t may be earlier than
// Timestamp, which is how contact rewinds work.
func (b *Body) advanceTo(t float64) error {
	k, err := b.Forecast(t - b.Timestamp)
	if err != nil {
		return fmt.Errorf("object %d: %w", b.ID, err)
	}
	k.X = b.arena.Wrap(k.X)
	k.R = normalizeHeading(k.R)
	b.Kinematics = k
	return nil
}

func normalizeHeading(r float64) float64 {
	r = math.Mod(r, 2*math.Pi)
	if r < 0 {
		r += 2 * math.Pi
	}
	return r
}

// ObjectSpec carries constructor input for every kind. Fields that do not
// apply to a kind are ignored.
type ObjectSpec struct {
	ID         int64
	Name       string
	Kinematics Kinematics
	Radius     float64

	// ships
	WMax, FMax, SMax float64
	Visuals          Visuals

	// bullets
	Energy    float64
	Velocity  float64
	ShooterID int64
}

type constructor func(spec ObjectSpec, arena Arena) Object

var constructors = map[Kind]constructor{
	KindShip:     func(s ObjectSpec, a Arena) Object { return NewShip(s, a) },
	KindAsteroid: func(s ObjectSpec, a Arena) Object { return NewAsteroid(s, a) },
	KindBullet:   func(s ObjectSpec, a Arena) Object { return NewBullet(s, a) },
}

// Build constructs an object of the given kind.
func Build(kind Kind, spec ObjectSpec, arena Arena) (Object, error) {
	c, ok := constructors[kind]
	if !ok {
		return nil, fmt.Errorf("no constructor for kind %d", kind)
	}
	return c(spec, arena), nil
}

func newBody(kind Kind, spec ObjectSpec, arena Arena) Body {
	return Body{
		ID:         spec.ID,
		Kind:       kind,
		Name:       spec.Name,
		Kinematics: spec.Kinematics,
		Radius:     spec.Radius,
		Alive:      true,
		arena:      arena,
	}
}

// massFor returns density·r²/100.
func massFor(density, radius float64) float64 {
	return density * radius * radius / 100
}

// Solid is a Body that takes part in solid-solid contacts.
type Solid struct {
	Body
	// ids of solids currently overlapping this one; written only by the
	// collision detector
	touching map[int64]struct{}
}

func (s *Solid) solid() *Solid { return s }

func newSolid(kind Kind, spec ObjectSpec, arena Arena) Solid {
	return Solid{Body: newBody(kind, spec, arena), touching: make(map[int64]struct{})}
}

// Touching reports whether the detector currently considers s in contact
// with the solid id.
func (s *Solid) Touching(id int64) bool {
	_, ok := s.touching[id]
	return ok
}

// SolidObject is implemented by Ship and Asteroid.
type SolidObject interface {
	Object
	solid() *Solid
	// advance moves all time-dependent state to t
	advance(t float64) error
	// onVelocityChange receives the scalar normal velocity change of a contact
	onVelocityChange(dv float64)
	// absorb applies a bullet hit
	absorb(b *Bullet)
}
