package main

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	ErrUnknownShip   = errors.New("unknown ship")
	ErrAlreadyJoined = errors.New("already joined")
)

// New objects are dropped at random until one lands clear of everything.
const placementAttempts = 200

// Outbound is a world event for every connection, or only for the owner of
// ship Owner when Owner is non-zero.
type Outbound struct {
	Owner int64
	// Except keeps the event from the owner of that ship
	Except int64
	Type   string
	Data   interface{}
}

// World is the authoritative object table. It is not safe for concurrent
// use; the game loop owns it.
type World struct {
	arena  Arena
	rng    *rand.Rand
	stats  *PlayerStats
	grid   *SpatialGrid
	nextID int64

	// each slice is ordered by id
	ships     []*Ship
	asteroids []*Asteroid
	bullets   []*Bullet
	byID      map[int64]Object
}

// NewWorld creates an empty world.
func NewWorld(arena Arena, rng *rand.Rand, stats *PlayerStats) *World {
	return &World{
		arena: arena,
		rng:   rng,
		stats: stats,
		grid:  NewSpatialGrid(arena, SpatialCellSize),
		byID:  make(map[int64]Object),
	}
}

func (w *World) newID() int64 {
	w.nextID++
	return w.nextID
}

// Arena returns the world's bounds.
func (w *World) Arena() Arena { return w.arena }

// Ships, Asteroids and Bullets return the live tables in id order.
func (w *World) Ships() []*Ship         { return w.ships }
func (w *World) Asteroids() []*Asteroid { return w.asteroids }
func (w *World) Bullets() []*Bullet     { return w.bullets }

// Ship looks up a ship by id.
func (w *World) Ship(id int64) (*Ship, bool) {
	s, ok := w.byID[id].(*Ship)
	return s, ok
}

func (w *World) add(o Object) {
	w.byID[o.body().ID] = o
	switch v := o.(type) {
	case *Ship:
		w.ships = append(w.ships, v)
	case *Asteroid:
		w.asteroids = append(w.asteroids, v)
	case *Bullet:
		w.bullets = append(w.bullets, v)
	}
}

// solids returns ships followed by asteroids.
func (w *World) solids() []SolidObject {
	out := make([]SolidObject, 0, len(w.ships)+len(w.asteroids))
	for _, s := range w.ships {
		out = append(out, s)
	}
	for _, a := range w.asteroids {
		out = append(out, a)
	}
	return out
}

// SpawnAsteroids fills the field with stationary, slowly spinning asteroids
// until their total area reaches density of the arena.
func (w *World) SpawnAsteroids(now, density float64) (int, error) {
	target := density * w.arena.Area()
	n := 0
	for area := 0.0; area < target; n++ {
		radius := MinAsteroidRadius + w.rng.Float64()*(asteroidSpawnMaxRadius-MinAsteroidRadius)
		o, err := Build(KindAsteroid, ObjectSpec{
			ID:     w.newID(),
			Radius: radius,
			Kinematics: Kinematics{
				RR:        (w.rng.Float64() - 0.5) * asteroidSpinRange,
				Timestamp: now,
			},
		}, w.arena)
		if err != nil {
			return n, err
		}
		a := o.(*Asteroid)
		if err := w.place(now, &a.Body); err != nil {
			return n, err
		}
		w.add(a)
		area += math.Pi * a.Radius * a.Radius
	}
	return n, nil
}

// place moves b to a random spot clear of every other object, falling back
// to the last spot tried.
func (w *World) place(now float64, b *Body) error {
	w.grid.Clear()
	for _, o := range w.byID {
		ob := o.body()
		if err := ob.cachePosition(now); err != nil {
			return err
		}
		r := ob.Radius
		if ob.Kind == KindBullet {
			r = 0
		}
		w.grid.InsertCircle(ob.pos, r, ob.ID)
	}

	var ids []int64
	for attempt := 0; attempt < placementAttempts; attempt++ {
		candidate := mgl64.Vec2{w.rng.Float64() * w.arena.W, w.rng.Float64() * w.arena.H}
		b.X = w.arena.Wrap(candidate)
		ids = w.grid.QueryBuf(b.X, b.Radius, ids[:0])
		if !w.overlapsAny(b, ids) {
			break
		}
	}
	return nil
}

func (w *World) overlapsAny(b *Body, ids []int64) bool {
	for _, id := range ids {
		ob := w.byID[id].body()
		r := ob.Radius
		if ob.Kind == KindBullet {
			r = 0
		}
		d := w.arena.NearestImage(b.X, ob.pos).Sub(b.X).Len()
		if d < b.Radius+r {
			return true
		}
	}
	return false
}

// Join creates a ship for spec at a clear spot, facing up the screen.
func (w *World) Join(now float64, spec ObjectSpec) (*Ship, []Outbound, error) {
	if math.IsNaN(now) || math.IsInf(now, 0) {
		return nil, nil, ErrNonFiniteTime
	}
	spec.ID = w.newID()
	spec.Kinematics = Kinematics{R: math.Pi / 2, Timestamp: now}
	o, err := Build(KindShip, spec, w.arena)
	if err != nil {
		return nil, nil, err
	}
	s := o.(*Ship)
	if err := w.place(now, &s.Body); err != nil {
		return nil, nil, err
	}
	w.add(s)
	w.stats.Spawn(s.Name, now)

	out := []Outbound{{Type: EvtJoin, Data: joinEvent(s), Except: s.ID}}
	out = append(out, publish(s)...)
	return s, out, nil
}

// Control applies a pilot's command to ship id at now.
func (w *World) Control(now float64, id int64, ctl ControlMsg) ([]Outbound, error) {
	s, ok := w.Ship(id)
	if !ok || !s.Alive {
		return nil, ErrUnknownShip
	}
	maneuvering, shot, err := s.ApplyCommand(now, ctl.Thrust, ctl.CCWThrust, ctl.ShotVelocity, ctl.ShotEnergy)
	if err != nil {
		return nil, fmt.Errorf("control ship %d: %w", id, err)
	}
	var out []Outbound
	if maneuvering {
		out = append(out, publish(s)...)
	}
	if shot != nil {
		shot.ID = w.newID()
		w.add(shot)
		out = append(out, Outbound{Type: EvtState, Data: stateEvent(&shot.Body)})
		out = append(out, Outbound{Owner: s.ID, Type: EvtPrivate, Data: privateEvent(s)})
	}
	return out, nil
}

// Quit removes ship id without counting a death.
func (w *World) Quit(now float64, id int64) ([]Outbound, error) {
	s, ok := w.Ship(id)
	if !ok {
		return nil, ErrUnknownShip
	}
	w.stats.Leave(s.Name, now)
	w.remove(id)
	return []Outbound{{Type: EvtDrop, Data: DropEvent{ID: id, Timestamp: now}}}, nil
}

// FullState describes everything in the world to one connection. The
// requester's own ship gets no join event; it already knows itself.
func (w *World) FullState(requester int64) []Outbound {
	var out []Outbound
	for _, s := range w.solids() {
		b := s.body()
		if b.ID != requester {
			out = append(out, Outbound{Type: EvtJoin, Data: joinEvent(s)})
		}
		out = append(out, Outbound{Type: EvtState, Data: stateEvent(b)})
	}
	for _, b := range w.bullets {
		out = append(out, Outbound{Type: EvtState, Data: stateEvent(&b.Body)})
	}
	return out
}

// StatsDump reports every pilot followed by the empty-name sentinel.
func (w *World) StatsDump(now float64) []Outbound {
	var out []Outbound
	for _, p := range w.stats.Snapshot(now) {
		out = append(out, Outbound{Type: EvtStats, Data: StatsEvent{
			Name: p.Name, Playtime: p.Playtime, Kills: p.Kills, Deaths: p.Deaths,
		}})
	}
	return append(out, Outbound{Type: EvtStats, Data: StatsEvent{}})
}

// Tick runs one simulation step at now and returns the resulting events.
func (w *World) Tick(now float64) ([]Outbound, error) {
	if math.IsNaN(now) || math.IsInf(now, 0) {
		return nil, ErrNonFiniteTime
	}
	var out []Outbound

	// 1. bullet expiry
	for _, b := range w.bullets {
		if !b.Alive {
			continue
		}
		if b.Expired(now) {
			b.Alive = false
			out = append(out, Outbound{Type: EvtDrop, Data: DropEvent{ID: b.ID, Timestamp: b.EndOfLife}})
			continue
		}
		if err := b.cachePosition(now); err != nil {
			return out, err
		}
	}

	// 2. involuntary drift
	for _, s := range w.ships {
		if !s.Alive || !s.FuelExhausted(now) {
			continue
		}
		if _, _, err := s.ApplyCommand(now, 0, 0, 0, 0); err != nil {
			return out, err
		}
		out = append(out, publish(s)...)
	}

	// 3. snapshot
	solids := w.solids()
	for _, s := range solids {
		if err := s.body().cachePosition(now); err != nil {
			return out, err
		}
	}

	// 4-5. scan and resolve
	for _, b := range w.bullets {
		if !b.Alive {
			continue
		}
		target := w.bulletTarget(b, solids)
		if target == nil {
			continue
		}
		events, err := w.hit(now, b, target)
		if err != nil {
			return out, err
		}
		out = append(out, events...)
	}

	var touched []SolidObject
	seen := make(map[int64]bool)
	for i := 0; i < len(solids); i++ {
		a := solids[i]
		for j := i + 1; j < len(solids); j++ {
			b := solids[j]
			if !a.body().Alive || !b.body().Alive {
				continue
			}
			if !DetectSolids(a.solid(), b.solid()) {
				continue
			}
			if err := ResolveSolids(now, a, b, Restitution); err != nil {
				return out, err
			}
			for _, s := range []SolidObject{a, b} {
				if !seen[s.body().ID] {
					seen[s.body().ID] = true
					touched = append(touched, s)
				}
			}
		}
	}
	for _, s := range touched {
		out = append(out, publish(s)...)
	}

	// 6. purge
	out = append(out, w.purge(now)...)
	return out, nil
}

// bulletTarget returns the nearest solid b hits, preferring the lower id on
// a tie, or nil.
func (w *World) bulletTarget(b *Bullet, solids []SolidObject) SolidObject {
	_, shooterKnown := w.Ship(b.ShooterID)
	var best SolidObject
	bestDist := math.Inf(1)
	for _, s := range solids {
		if !s.body().Alive {
			continue
		}
		hit, d := DetectBullet(b, s.solid(), shooterKnown)
		if !hit {
			continue
		}
		if best == nil || d < bestDist || (d == bestDist && s.body().ID < best.body().ID) {
			best, bestDist = s, d
		}
	}
	return best
}

func (w *World) hit(now float64, b *Bullet, target SolidObject) ([]Outbound, error) {
	wasAlive := target.body().Alive
	if err := ResolveBullet(now, b, target); err != nil {
		return nil, err
	}
	out := []Outbound{{Type: EvtDrop, Data: DropEvent{ID: b.ID, Timestamp: now}}}
	victim, ok := target.(*Ship)
	if !ok {
		return out, nil
	}
	if victim.Alive {
		return append(out, Outbound{Owner: victim.ID, Type: EvtPrivate, Data: privateEvent(victim)}), nil
	}
	if wasAlive {
		if shooter, ok := w.Ship(b.ShooterID); ok && shooter.ID != victim.ID {
			w.stats.Kill(shooter.Name, now)
		}
	}
	return out, nil
}

// purge removes dead objects and announces dead ships.
func (w *World) purge(now float64) []Outbound {
	var out []Outbound
	bullets := w.bullets[:0]
	for _, b := range w.bullets {
		if b.Alive {
			bullets = append(bullets, b)
		} else {
			delete(w.byID, b.ID)
		}
	}
	w.bullets = bullets

	var dead []*Ship
	for _, s := range w.ships {
		if !s.Alive {
			dead = append(dead, s)
		}
	}
	for _, s := range dead {
		w.stats.Killed(s.Name, now)
		w.remove(s.ID)
		out = append(out, Outbound{Type: EvtDrop, Data: DropEvent{ID: s.ID, Timestamp: now}})
	}
	return out
}

// remove deletes a solid from every table and touching set.
func (w *World) remove(id int64) {
	delete(w.byID, id)
	ships := w.ships[:0]
	for _, s := range w.ships {
		if s.ID != id {
			ships = append(ships, s)
		}
	}
	w.ships = ships
	for _, s := range w.solids() {
		delete(s.solid().touching, id)
	}
}

// publish returns the public state of s and, for ships, the owner's tank
// levels.
func publish(s SolidObject) []Outbound {
	out := []Outbound{{Type: EvtState, Data: stateEvent(s.body())}}
	if ship, ok := s.(*Ship); ok {
		out = append(out, Outbound{Owner: ship.ID, Type: EvtPrivate, Data: privateEvent(ship)})
	}
	return out
}

func stateEvent(b *Body) StateEvent {
	return StateEvent{
		ID:        b.ID,
		Kind:      b.Kind.String(),
		Name:      b.Name,
		Timestamp: b.Timestamp,
		X:         b.X[0],
		Y:         b.X[1],
		VX:        b.V[0],
		VY:        b.V[1],
		A:         b.A,
		R:         b.R,
		RR:        b.RR,
	}
}

func joinEvent(s SolidObject) JoinEvent {
	b := s.body()
	ev := JoinEvent{ID: b.ID, Kind: b.Kind.String(), Name: b.Name, Radius: b.Radius}
	if ship, ok := s.(*Ship); ok {
		ev.Visuals = ship.Visuals
	}
	return ev
}

func privateEvent(s *Ship) PrivateEvent {
	return PrivateEvent{ID: s.ID, Weapon: s.Weapon.Level, Fuel: s.Fuel.Level, Shield: s.Shield.Level}
}
