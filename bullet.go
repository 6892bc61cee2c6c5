package main

import "math"

const (
	BulletKEFactor     = 0.0001 // weapon cost per unit of energy·v²
	BulletEnergyFactor = 5.0    // shield drain per unit of energy on impact
	BulletRange        = 1500.0
	MaxBulletLife      = 20.0 // seconds
	MaxBulletVelocity  = 120.0
)

// Bullet is a point projectile. It refers to its shooter by id only.
type Bullet struct {
	Body
	Energy           float64
	RelativeVelocity float64
	ShooterID        int64
	// Away is set once the bullet has left its shooter's radius. Until then
	// it cannot hit anything.
	Away      bool
	EndOfLife float64
}

// NewBullet launches a bullet from the shooter kinematics in spec. The
// relative velocity is added along the shooter's heading and the bullet
// itself neither accelerates nor turns.
func NewBullet(spec ObjectSpec, arena Arena) *Bullet {
	rel := math.Min(math.Abs(spec.Velocity), MaxBulletVelocity)
	spec.Radius = 0
	if spec.Name == "" {
		spec.Name = KindBullet.String()
	}
	b := &Bullet{
		Body:             newBody(KindBullet, spec, arena),
		Energy:           math.Abs(spec.Energy),
		RelativeVelocity: rel,
		ShooterID:        spec.ShooterID,
	}
	b.V = b.V.Add(Direction(b.R).Mul(rel))
	b.A = 0
	b.RR = 0
	life := MaxBulletLife
	if rel > 0 {
		life = math.Min(life, BulletRange/rel)
	}
	b.EndOfLife = b.Timestamp + life
	return b
}

// GenerationEnergy is the weapon tank cost of firing b.
func (b *Bullet) GenerationEnergy() float64 {
	return b.Energy + BulletKEFactor*b.Energy*b.RelativeVelocity*b.RelativeVelocity
}

// ImpactEnergy is the shield drain b inflicts on a ship it hits.
func (b *Bullet) ImpactEnergy() float64 {
	return BulletEnergyFactor * b.Energy
}

// Expired reports whether b has reached its end of life at now.
func (b *Bullet) Expired(now float64) bool {
	return now >= b.EndOfLife
}
