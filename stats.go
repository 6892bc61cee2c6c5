package main

import "sort"

// PlayerRecord is one pilot's statistics since the server started.
type PlayerRecord struct {
	Name     string
	Playtime float64 // seconds
	Kills    int
	Deaths   int

	flying bool
	since  float64
}

// StatDelta is an increment to a pilot's lifetime statistics.
type StatDelta struct {
	Name     string
	Kills    int
	Deaths   int
	Playtime float64
}

// StatsSink receives every StatDelta. Implementations must not block.
type StatsSink interface {
	Record(d StatDelta)
}

// PlayerStats tracks every pilot who has flown since start. Owned by the
// game loop.
type PlayerStats struct {
	players map[string]*PlayerRecord
	sink    StatsSink
}

// NewPlayerStats creates a tracker. sink may be nil.
func NewPlayerStats(sink StatsSink) *PlayerStats {
	return &PlayerStats{players: make(map[string]*PlayerRecord), sink: sink}
}

func (ps *PlayerStats) get(name string) *PlayerRecord {
	p, ok := ps.players[name]
	if !ok {
		p = &PlayerRecord{Name: name}
		ps.players[name] = p
	}
	return p
}

func (ps *PlayerStats) emit(d StatDelta) {
	if ps.sink != nil {
		ps.sink.Record(d)
	}
}

// updatePlaytime folds the time flown since the last update into Playtime.
func (ps *PlayerStats) updatePlaytime(p *PlayerRecord, now float64) float64 {
	if !p.flying || now <= p.since {
		return 0
	}
	dt := now - p.since
	p.Playtime += dt
	p.since = now
	return dt
}

// Spawn starts the playtime clock for name.
func (ps *PlayerStats) Spawn(name string, now float64) {
	p := ps.get(name)
	ps.updatePlaytime(p, now)
	p.flying = true
	p.since = now
}

// Kill credits name with a kill.
func (ps *PlayerStats) Kill(name string, now float64) {
	p := ps.get(name)
	p.Kills++
	ps.emit(StatDelta{Name: name, Kills: 1, Playtime: ps.updatePlaytime(p, now)})
}

// Killed records a death and stops the playtime clock.
func (ps *PlayerStats) Killed(name string, now float64) {
	p := ps.get(name)
	p.Deaths++
	ps.emit(StatDelta{Name: name, Deaths: 1, Playtime: ps.updatePlaytime(p, now)})
	p.flying = false
}

// Leave stops the playtime clock without counting a death.
func (ps *PlayerStats) Leave(name string, now float64) {
	p := ps.get(name)
	if dt := ps.updatePlaytime(p, now); dt > 0 {
		ps.emit(StatDelta{Name: name, Playtime: dt})
	}
	p.flying = false
}

// Snapshot brings every playtime up to now and returns the records sorted
// by name.
func (ps *PlayerStats) Snapshot(now float64) []PlayerRecord {
	out := make([]PlayerRecord, 0, len(ps.players))
	for _, p := range ps.players {
		if dt := ps.updatePlaytime(p, now); dt > 0 {
			ps.emit(StatDelta{Name: p.Name, Playtime: dt})
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns a copy of name's record.
func (ps *PlayerStats) Get(name string) (PlayerRecord, bool) {
	p, ok := ps.players[name]
	if !ok {
		return PlayerRecord{}, false
	}
	return *p, true
}
