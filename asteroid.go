package main

const (
	AsteroidDensity   = ShipDensity * 5
	MaxAsteroidRadius = 130.0
	MinAsteroidRadius = 10.0

	// field spawn ranges
	asteroidSpawnMaxRadius = MaxAsteroidRadius / 5
	asteroidSpinRange      = 1.0
)

// Asteroid is an inert solid. It never thrusts and ignores impacts apart
// from the momentum exchange.
type Asteroid struct {
	Solid
}

// NewAsteroid builds an asteroid, clamping its radius.
func NewAsteroid(spec ObjectSpec, arena Arena) *Asteroid {
	spec.Radius = Clamp(spec.Radius, MinAsteroidRadius, MaxAsteroidRadius)
	if spec.Name == "" {
		spec.Name = KindAsteroid.String()
	}
	a := &Asteroid{Solid: newSolid(KindAsteroid, spec, arena)}
	a.Mass = massFor(AsteroidDensity, a.Radius)
	return a
}

func (a *Asteroid) advance(t float64) error { return a.advanceTo(t) }

func (a *Asteroid) onVelocityChange(float64) {}

func (a *Asteroid) absorb(*Bullet) {}
