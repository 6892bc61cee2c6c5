package main

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Rotation rates smaller than this are treated as zero.
const rrEpsilon = 1e-10

// Below this |rr*dt| the (θ - sin θ)/θ² term uses its series expansion.
const seriesThreshold = 1e-2

// ErrNonFiniteTime is returned when an elapsed time or timestamp is NaN or Inf.
var ErrNonFiniteTime = errors.New("non-finite time")

// Kinematics is the authoritative motion state of an object at Timestamp.
// Between updates the object moves under constant axial acceleration A along
// its heading R while the heading turns at constant rate RR.
type Kinematics struct {
	X         mgl64.Vec2 // position
	V         mgl64.Vec2 // velocity
	A         float64    // axial acceleration
	R         float64    // heading, radians
	RR        float64    // rotation rate, radians/s
	Timestamp float64    // server seconds
}

// Direction returns the unit vector along heading r.
func Direction(r float64) mgl64.Vec2 {
	return mgl64.Vec2{math.Cos(r), math.Sin(r)}
}

func checkElapsed(dt float64) error {
	if math.IsNaN(dt) || math.IsInf(dt, 0) {
		return ErrNonFiniteTime
	}
	return nil
}

func (k Kinematics) rotating() bool {
	return math.Abs(k.RR) >= rrEpsilon
}

// ForecastPosition returns the unwrapped position and heading dt seconds after
// Timestamp. The closed form has no step size, so forecasting never drifts.
func (k Kinematics) ForecastPosition(dt float64) (mgl64.Vec2, float64, error) {
	if err := checkElapsed(dt); err != nil {
		return k.X, k.R, err
	}
	if dt == 0 {
		return k.X, k.R, nil
	}
	x := k.X.Add(k.V.Mul(dt))
	switch {
	case k.rotating():
		// Integral of a·dir(r + rr·t) twice over [0, dt], written in the frame of
		// the starting heading so no term divides by rr.
		theta := k.RR * dt
		d0 := Direction(k.R)
		n0 := mgl64.Vec2{-d0[1], d0[0]}
		scale := k.A * dt * dt
		x = x.Add(d0.Mul(scale * oneMinusCosOverSq(theta))).Add(n0.Mul(scale * thetaMinusSinOverSq(theta)))
		return x, k.R + theta, nil
	case k.A != 0:
		x = x.Add(Direction(k.R).Mul(0.5 * k.A * dt * dt))
	}
	return x, k.R, nil
}

// ForecastRates returns the velocity dt seconds after Timestamp.
func (k Kinematics) ForecastRates(dt float64) (mgl64.Vec2, error) {
	if err := checkElapsed(dt); err != nil {
		return k.V, err
	}
	if dt == 0 || k.A == 0 {
		return k.V, nil
	}
	if !k.rotating() {
		return k.V.Add(Direction(k.R).Mul(k.A * dt)), nil
	}
	theta := k.RR * dt
	d0 := Direction(k.R)
	n0 := mgl64.Vec2{-d0[1], d0[0]}
	scale := k.A * dt
	return k.V.Add(d0.Mul(scale * sinc(theta))).Add(n0.Mul(scale * theta * oneMinusCosOverSq(theta))), nil
}

// Forecast returns the full state dt seconds later, stamped at Timestamp+dt.
func (k Kinematics) Forecast(dt float64) (Kinematics, error) {
	x, r, err := k.ForecastPosition(dt)
	if err != nil {
		return k, err
	}
	v, err := k.ForecastRates(dt)
	if err != nil {
		return k, err
	}
	k.X, k.R, k.V = x, r, v
	k.Timestamp += dt
	return k, nil
}

// sinc returns sin(θ)/θ.
func sinc(theta float64) float64 {
	if math.Abs(theta) < seriesThreshold {
		t2 := theta * theta
		return 1 - t2/6 + t2*t2/120
	}
	return math.Sin(theta) / theta
}

// oneMinusCosOverSq returns (1 - cos θ)/θ², computed as ½·sinc²(θ/2).
func oneMinusCosOverSq(theta float64) float64 {
	s := sinc(theta / 2)
	return 0.5 * s * s
}

// thetaMinusSinOverSq returns (θ - sin θ)/θ².
func thetaMinusSinOverSq(theta float64) float64 {
	if math.Abs(theta) < seriesThreshold {
		t2 := theta * theta
		return theta/6 - theta*t2/120 + theta*t2*t2/5040
	}
	return (theta - math.Sin(theta)) / (theta * theta)
}
