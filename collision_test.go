package main

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func testShip(t *testing.T, id int64, x, v mgl64.Vec2, now float64) *Ship {
	t.Helper()
	s := NewShip(ObjectSpec{ID: id, Name: "pilot", Radius: DefaultRadius, Kinematics: Kinematics{X: x, V: v, Timestamp: now}}, testArena)
	if err := s.cachePosition(now); err != nil {
		t.Fatal(err)
	}
	return s
}

func testAsteroid(t *testing.T, id int64, x mgl64.Vec2, radius, now float64) *Asteroid {
	t.Helper()
	a := NewAsteroid(ObjectSpec{ID: id, Radius: radius, Kinematics: Kinematics{X: x, Timestamp: now}}, testArena)
	if err := a.cachePosition(now); err != nil {
		t.Fatal(err)
	}
	return a
}

func TestRestituteHeadOn(t *testing.T) {
	v1, v2 := Restitute(100, 100, 10, -10, Restitution)
	if math.Abs(v1+9.5) > 1e-12 || math.Abs(v2-9.5) > 1e-12 {
		t.Errorf("got %v, %v, want -9.5, 9.5", v1, v2)
	}
}

func TestRestituteConservesMomentum(t *testing.T) {
	cases := []struct{ m1, m2, u1, u2 float64 }{
		{100, 100, 10, -10},
		{100, 2500, 3, 0},
		{1, 50, -4, 7},
		{625, 9, 0.5, -12},
	}
	for _, tc := range cases {
		v1, v2 := Restitute(tc.m1, tc.m2, tc.u1, tc.u2, 1)
		before := tc.m1*tc.u1 + tc.m2*tc.u2
		after := tc.m1*v1 + tc.m2*v2
		if math.Abs(before-after) > 1e-9*math.Max(1, math.Abs(before)) {
			t.Errorf("%+v: momentum %v -> %v", tc, before, after)
		}
		keBefore := tc.m1*tc.u1*tc.u1 + tc.m2*tc.u2*tc.u2
		keAfter := tc.m1*v1*v1 + tc.m2*v2*v2
		if math.Abs(keBefore-keAfter) > 1e-9*keBefore {
			t.Errorf("%+v: elastic contact changed energy %v -> %v", tc, keBefore, keAfter)
		}

		v1, v2 = Restitute(tc.m1, tc.m2, tc.u1, tc.u2, Restitution)
		if ke := tc.m1*v1*v1 + tc.m2*v2*v2; ke >= keBefore {
			t.Errorf("%+v: inelastic contact did not lose energy: %v -> %v", tc, keBefore, ke)
		}
	}
}

func TestTimesAtDistance(t *testing.T) {
	p := Parametric{}
	q := Parametric{X: mgl64.Vec2{10, 0}, V: mgl64.Vec2{-1, 0}}
	got := TimesAtDistance(p, q, 2)
	if len(got) != 2 || math.Abs(got[0]-8) > 1e-9 || math.Abs(got[1]-12) > 1e-9 {
		t.Errorf("roots %v, want [8 12]", got)
	}

	still := Parametric{X: mgl64.Vec2{3, 4}}
	if got := TimesAtDistance(p, still, 5); got != nil {
		t.Errorf("no relative motion: roots %v, want nil", got)
	}

	passing := Parametric{X: mgl64.Vec2{-10, 5}, V: mgl64.Vec2{1, 0}}
	if got := TimesAtDistance(p, passing, 2); got != nil {
		t.Errorf("closest approach 5 never reaches 2: roots %v, want nil", got)
	}
}

func TestContactTime(t *testing.T) {
	p := Parametric{}
	q := Parametric{X: mgl64.Vec2{1, 0}, V: mgl64.Vec2{-1, 0}}
	// first at distance 2 one second ago
	if got := ContactTime(p, q, 2, MaxRewind); got != -MaxRewind {
		t.Errorf("clamped contact time %v, want %v", got, -MaxRewind)
	}
	if got := ContactTime(p, q, 2, 5); math.Abs(got+1) > 1e-9 {
		t.Errorf("contact time %v, want -1", got)
	}
	still := Parametric{X: mgl64.Vec2{1, 0}}
	if got := ContactTime(p, still, 2, MaxRewind); got != 0 {
		t.Errorf("resting overlap contact time %v, want 0", got)
	}
	// roots in the future clamp to the present
	ahead := Parametric{X: mgl64.Vec2{10, 0}, V: mgl64.Vec2{-1, 0}}
	if got := ContactTime(p, ahead, 2, MaxRewind); got != 0 {
		t.Errorf("future contact time %v, want 0", got)
	}
}

func TestDetectSolidsOncePerContact(t *testing.T) {
	a := testAsteroid(t, 1, mgl64.Vec2{100, 100}, 20, 0)
	b := testAsteroid(t, 2, mgl64.Vec2{130, 100}, 20, 0)

	hits := 0
	for i := 0; i < 5; i++ {
		if DetectSolids(&a.Solid, &b.Solid) {
			hits++
		}
	}
	if hits != 1 {
		t.Fatalf("overlap held for 5 ticks detected %d times, want 1", hits)
	}
	if !a.Touching(b.ID) || !b.Touching(a.ID) {
		t.Fatal("touching sets not symmetric after contact")
	}

	b.X = mgl64.Vec2{300, 100}
	if err := b.cachePosition(0); err != nil {
		t.Fatal(err)
	}
	if DetectSolids(&a.Solid, &b.Solid) {
		t.Fatal("separated pair reported a contact")
	}
	if a.Touching(b.ID) || b.Touching(a.ID) {
		t.Fatal("touching sets not cleared after separation")
	}

	b.X = mgl64.Vec2{130, 100}
	if err := b.cachePosition(0); err != nil {
		t.Fatal(err)
	}
	if !DetectSolids(&a.Solid, &b.Solid) {
		t.Fatal("renewed overlap not detected")
	}
}

func TestDetectSolidsAcrossEdge(t *testing.T) {
	a := testAsteroid(t, 1, mgl64.Vec2{5, 200}, 10, 0)
	b := testAsteroid(t, 2, mgl64.Vec2{795, 200}, 10, 0)
	if !DetectSolids(&a.Solid, &b.Solid) {
		t.Error("pair 10 apart through the edge not detected")
	}
}

func TestDetectBulletLeavesShooterFirst(t *testing.T) {
	shooter := testShip(t, 1, mgl64.Vec2{100, 100}, mgl64.Vec2{}, 0)
	other := testShip(t, 2, mgl64.Vec2{105, 100}, mgl64.Vec2{}, 0)
	b := NewBullet(ObjectSpec{ID: 3, ShooterID: 1, Energy: 1, Kinematics: Kinematics{X: mgl64.Vec2{100, 100}}}, testArena)
	if err := b.cachePosition(0); err != nil {
		t.Fatal(err)
	}

	if hit, _ := DetectBullet(b, &shooter.Solid, true); hit || b.Away {
		t.Fatalf("bullet inside its shooter: hit=%v away=%v", hit, b.Away)
	}
	if hit, _ := DetectBullet(b, &other.Solid, true); hit {
		t.Fatal("bullet that has not left its shooter hit another ship")
	}

	b.X = mgl64.Vec2{150, 100}
	if err := b.cachePosition(0); err != nil {
		t.Fatal(err)
	}
	if hit, _ := DetectBullet(b, &shooter.Solid, true); hit || !b.Away {
		t.Fatalf("bullet clear of its shooter: hit=%v away=%v", hit, b.Away)
	}

	b.X = mgl64.Vec2{110, 100}
	if err := b.cachePosition(0); err != nil {
		t.Fatal(err)
	}
	hit, dist := DetectBullet(b, &shooter.Solid, true)
	if !hit || math.Abs(dist-10) > 1e-9 {
		t.Errorf("returning bullet: hit=%v dist=%v, want hit at 10", hit, dist)
	}
}

func TestDetectBulletUnknownShooter(t *testing.T) {
	s := testShip(t, 2, mgl64.Vec2{100, 100}, mgl64.Vec2{}, 0)
	b := NewBullet(ObjectSpec{ID: 3, ShooterID: 99, Energy: 1, Kinematics: Kinematics{X: mgl64.Vec2{105, 100}}}, testArena)
	if err := b.cachePosition(0); err != nil {
		t.Fatal(err)
	}
	if hit, _ := DetectBullet(b, &s.Solid, false); !hit || !b.Away {
		t.Errorf("orphan bullet: hit=%v away=%v, want hit and away", hit, b.Away)
	}
}

func TestResolveSolidsHeadOn(t *testing.T) {
	const now = 10.0
	a := testShip(t, 1, mgl64.Vec2{100, 100}, mgl64.Vec2{10, 0}, now)
	b := testShip(t, 2, mgl64.Vec2{139, 100}, mgl64.Vec2{-10, 0}, now)
	shield := a.Shield.Level

	if err := ResolveSolids(now, a, b, Restitution); err != nil {
		t.Fatal(err)
	}
	if !vecNear(a.V, mgl64.Vec2{-9.5, 0}, 1e-9) || !vecNear(b.V, mgl64.Vec2{9.5, 0}, 1e-9) {
		t.Errorf("velocities %v, %v, want (-9.5, 0), (9.5, 0)", a.V, b.V)
	}
	// they first touched 0.05 s ago
	if math.Abs(a.Timestamp-(now-0.05)) > 1e-9 || math.Abs(b.Timestamp-(now-0.05)) > 1e-9 {
		t.Errorf("timestamps %v, %v, want %v", a.Timestamp, b.Timestamp, now-0.05)
	}
	if !vecNear(a.X, mgl64.Vec2{99.5, 100}, 1e-9) || !vecNear(b.X, mgl64.Vec2{139.5, 100}, 1e-9) {
		t.Errorf("contact positions %v, %v", a.X, b.X)
	}
	drain := ShipKEFactor * a.Mass * 19.5 * 19.5
	if math.Abs(a.Shield.Level-(shield-drain)) > 1e-9 {
		t.Errorf("shield %v, want %v", a.Shield.Level, shield-drain)
	}
	if !a.Alive || !b.Alive {
		t.Error("gentle contact destroyed a ship")
	}
}

func TestResolveSolidsDestroysWeakShield(t *testing.T) {
	a := testShip(t, 1, mgl64.Vec2{100, 100}, mgl64.Vec2{10, 0}, 0)
	b := testAsteroid(t, 2, mgl64.Vec2{125, 100}, 10, 0)
	a.Shield.Level = 0.01
	if err := ResolveSolids(0, a, b, Restitution); err != nil {
		t.Fatal(err)
	}
	if a.Alive {
		t.Errorf("ship with shield %v survived", a.Shield.Level)
	}
	if !b.Alive {
		t.Error("asteroid died")
	}
}

func TestResolveBullet(t *testing.T) {
	s := testShip(t, 1, mgl64.Vec2{100, 100}, mgl64.Vec2{}, 0)
	b := NewBullet(ObjectSpec{ID: 2, ShooterID: 7, Energy: 2, Kinematics: Kinematics{X: mgl64.Vec2{100, 100}}}, testArena)
	shield := s.Shield.Level
	if err := ResolveBullet(0, b, s); err != nil {
		t.Fatal(err)
	}
	if b.Alive {
		t.Error("bullet survived its hit")
	}
	if want := shield - 10; math.Abs(s.Shield.Level-want) > 1e-9 {
		t.Errorf("shield %v, want %v", s.Shield.Level, want)
	}
	if !s.V.ApproxEqual(mgl64.Vec2{}) {
		t.Errorf("bullet hit changed velocity to %v", s.V)
	}
}
