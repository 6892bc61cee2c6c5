package main

import (
	"math"
)

const (
	ShipAccel     = 75.0    // acceleration multiplier
	ShipRAccel    = 0.25    // rotational acceleration multiplier
	ShipDensity   = 25.0    // mass multiplier
	RefuelRate    = 0.5     // default regeneration rate for every tank
	FuelUseRate   = 0.02    // fuel per unit of thrust per second
	RFuelUseRate  = 0.002   // fuel per unit of rotational impulse
	ShipKEFactor  = 0.00001 // shield drain per unit of m·Δv²
	MinShipRadius = 5.0
	MaxShipRadius = 50.0
	DefaultRadius = 20.0
	// MaxThrust bounds |thrust| and |ccwThrust| of a command.
	MaxThrust = 1000.0
)

// Never is the fuel exhaustion time of a ship whose fuel does not drain.
// Every finite time compares less than it.
var Never = math.Inf(1)

// Tank is one bounded ship resource.
type Tank struct {
	Max       float64
	Level     float64
	UseRate   float64
	RegenRate float64
}

// Forecast returns the level dt seconds from now, clamped to [0, Max].
func (t Tank) Forecast(dt float64) float64 {
	return Clamp(t.Level-(t.UseRate-t.RegenRate)*dt, 0, t.Max)
}

// Ship is a player-controlled solid with weapon, fuel and shield tanks.
type Ship struct {
	Solid
	Weapon Tank
	Fuel   Tank
	Shield Tank

	Thrust       float64
	CCWThrust    float64
	ShotVelocity float64
	ShotEnergy   float64

	// FuelOut is when forward thrust stops for lack of fuel, or Never.
	FuelOut float64

	Visuals Visuals

	// tank levels are valid at tanksAt; contact rewinds move Timestamp back
	// but never the tanks
	tanksAt float64
}

// NewShip builds a ship from a join request. The radius is clamped and the
// three tank maxima are normalized to a total of 100 before scaling by the
// ship's energy capacity.
func NewShip(spec ObjectSpec, arena Arena) *Ship {
	spec.Radius = Clamp(spec.Radius, MinShipRadius, MaxShipRadius)
	s := &Ship{
		Solid:   newSolid(KindShip, spec, arena),
		FuelOut: Never,
		Visuals: spec.Visuals,
		tanksAt: spec.Kinematics.Timestamp,
	}
	s.Mass = massFor(ShipDensity, s.Radius)
	factor := s.Mass / massFor(ShipDensity, DefaultRadius)
	w, f, sh := NormalizeTankMaxima(spec.WMax, spec.FMax, spec.SMax)
	s.Weapon = Tank{Max: w * factor, Level: w * factor, RegenRate: RefuelRate}
	s.Fuel = Tank{Max: f * factor, Level: f * factor, RegenRate: RefuelRate}
	s.Shield = Tank{Max: sh * factor, Level: sh * factor, RegenRate: RefuelRate}
	return s
}

// NormalizeTankMaxima scales the requested maxima to sum to 100. All zero
// means equal thirds.
func NormalizeTankMaxima(w, f, s float64) (float64, float64, float64) {
	w, f, s = math.Abs(w), math.Abs(f), math.Abs(s)
	if m := math.Max(w, math.Max(f, s)); m > 0 {
		// keeps the sum below overflow for huge requests
		w, f, s = w/m, f/m, s/m
	} else {
		w, f, s = 1, 1, 1
	}
	factor := 100 / (w + f + s)
	w, f = w*factor, f*factor
	if w > 100 {
		w = 100
	}
	if w+f > 100 {
		f = 100 - w
	}
	return w, f, 100 - w - f
}

func (s *Ship) advance(t float64) error {
	if err := s.advanceTo(t); err != nil {
		return err
	}
	if dt := t - s.tanksAt; dt > 0 {
		s.Weapon.Level = s.Weapon.Forecast(dt)
		s.Fuel.Level = s.Fuel.Forecast(dt)
		s.Shield.Level = s.Shield.Forecast(dt)
		s.tanksAt = t
	}
	return nil
}

// ForecastFuelOut returns the seconds until fuel runs out at the current
// rates, or Never.
func (s *Ship) ForecastFuelOut() float64 {
	if s.Fuel.UseRate <= s.Fuel.RegenRate {
		return Never
	}
	return s.Fuel.Level / (s.Fuel.UseRate - s.Fuel.RegenRate)
}

// ApplyCommand brings the ship up to now and applies a control command.
// Thrust and rotational thrust are clamped to ±MaxThrust. Rotational impulse
// and shots that cannot be paid for are dropped without error. maneuvering
// is false only when thrust is unchanged and no rotational thrust was
// requested.
func (s *Ship) ApplyCommand(now, thrust, ccwThrust, shotVelocity, shotEnergy float64) (maneuvering bool, shot *Bullet, err error) {
	if !finite(thrust, ccwThrust, shotVelocity, shotEnergy) {
		return false, nil, errNonFiniteField
	}
	thrust = Clamp(thrust, -MaxThrust, MaxThrust)
	ccwThrust = Clamp(ccwThrust, -MaxThrust, MaxThrust)
	maneuvering = !(thrust == s.Thrust && ccwThrust == 0)
	if err := s.advance(now); err != nil {
		return false, nil, err
	}
	s.Thrust = thrust
	s.CCWThrust = ccwThrust
	s.A = ShipAccel * thrust / s.Mass
	s.Fuel.UseRate = math.Abs(thrust) * FuelUseRate

	if cost := RFuelUseRate * math.Abs(ccwThrust); cost <= s.Fuel.Level {
		s.RR += ShipRAccel * ccwThrust / s.Mass
		if math.Abs(s.RR) < rrEpsilon {
			s.RR = 0
		}
		s.Fuel.Level -= cost
	}
	s.FuelOut = s.Timestamp + s.ForecastFuelOut()

	if shotEnergy != 0 {
		o, err := Build(KindBullet, ObjectSpec{
			Kinematics: s.Kinematics,
			Energy:     shotEnergy,
			Velocity:   shotVelocity,
			ShooterID:  s.ID,
		}, s.arena)
		if err != nil {
			return maneuvering, nil, err
		}
		b := o.(*Bullet)
		if cost := b.GenerationEnergy(); cost <= s.Weapon.Level {
			s.Weapon.Level -= cost
			s.ShotEnergy, s.ShotVelocity = shotEnergy, shotVelocity
			shot = b
		} else {
			s.ShotEnergy, s.ShotVelocity = 0, 0
		}
	}
	return maneuvering, shot, nil
}

// FuelExhausted reports whether the fuel-out time has been reached.
func (s *Ship) FuelExhausted(now float64) bool {
	return now >= s.FuelOut
}

func (s *Ship) onVelocityChange(dv float64) {
	s.Shield.Level -= ShipKEFactor * s.Mass * dv * dv
	s.Alive = s.Shield.Level >= 0
}

func (s *Ship) absorb(b *Bullet) {
	s.Shield.Level -= b.ImpactEnergy()
	s.Alive = s.Shield.Level >= 0
}
