package main

import (
	"errors"
	"log"
	"sync"
	"time"
)

// DefaultTickInterval is the target period of the simulation loop.
const DefaultTickInterval = 20 * time.Millisecond

// Broadcaster interface for sending messages to clients
type Broadcaster interface {
	SendJSON(msg interface{})
	SendBinary(data []byte)
}

// Commands accepted on Game.Inbox. They are applied between ticks.
type (
	// Attach registers a connection for world events.
	Attach struct {
		Conn Broadcaster
	}
	// JoinCmd asks for a ship. The game answers the connection with
	// MsgJoined or MsgError, and also on Reply when it is non-nil.
	JoinCmd struct {
		Conn  Broadcaster
		Spec  ObjectSpec
		Reply chan<- JoinResult
	}
	ControlCmd struct {
		Conn Broadcaster
		Msg  ControlMsg
	}
	RequestCmd struct {
		Conn Broadcaster
		Code string
	}
	EventCmd struct {
		Conn Broadcaster
		Code string
	}
	// Detach is issued on disconnect.
	Detach struct {
		Conn Broadcaster
	}
)

// JoinResult reports the outcome of a JoinCmd.
type JoinResult struct {
	Joined JoinedMsg
	Err    error
}

// Clock returns server time in seconds. It must be safe for concurrent use.
type Clock func() float64

// WallClock is Unix time in seconds.
func WallClock() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// Game runs the world on a single goroutine.
type Game struct {
	Inbox chan any

	world    *World
	clock    Clock
	interval time.Duration

	conns  map[Broadcaster]struct{}
	shipOf map[Broadcaster]int64
	owners map[int64]Broadcaster

	skip     int
	quit     chan struct{}
	stopOnce sync.Once
}

// NewGame wraps world. interval <= 0 selects DefaultTickInterval.
func NewGame(world *World, clock Clock, interval time.Duration) *Game {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if clock == nil {
		clock = WallClock
	}
	return &Game{
		Inbox:    make(chan any, 256),
		world:    world,
		clock:    clock,
		interval: interval,
		conns:    make(map[Broadcaster]struct{}),
		shipOf:   make(map[Broadcaster]int64),
		owners:   make(map[int64]Broadcaster),
		quit:     make(chan struct{}),
	}
}

// Run starts the game loop
func (g *Game) Run() {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-g.quit:
			return
		case cmd := <-g.Inbox:
			g.handleCommand(cmd)
		case <-ticker.C:
			g.onTick()
		}
	}
}

// onTick steps the world unless earlier overruns left ticks to skip.
func (g *Game) onTick() {
	if g.skip > 0 {
		g.skip--
		return
	}
	start := time.Now()
	g.step()
	elapsed := time.Since(start)
	if g.skip = ticksToSkip(elapsed, g.interval); g.skip > 0 {
		log.Printf("game: tick overran by %v, skipping %d", elapsed-g.interval, g.skip)
	}
}

// Stop terminates the game loop
func (g *Game) Stop() {
	g.stopOnce.Do(func() { close(g.quit) })
}

// ticksToSkip returns how many whole intervals a tick that took elapsed ran
// past its own interval.
func ticksToSkip(elapsed, interval time.Duration) int {
	if interval <= 0 || elapsed <= interval {
		return 0
	}
	return int((elapsed - interval) / interval)
}

func (g *Game) step() {
	out, err := g.world.Tick(g.clock())
	if err != nil {
		log.Printf("game: tick error: %v", err)
	}
	g.dispatch(out)
}

func (g *Game) handleCommand(cmd any) {
	switch c := cmd.(type) {
	case Attach:
		g.conns[c.Conn] = struct{}{}
	case JoinCmd:
		g.join(c)
	case ControlCmd:
		id, ok := g.shipOf[c.Conn]
		if !ok {
			return
		}
		out, err := g.world.Control(g.clock(), id, c.Msg)
		if err != nil {
			if !errors.Is(err, ErrUnknownShip) {
				log.Printf("game: %v", err)
			}
			return
		}
		g.dispatch(out)
	case RequestCmd:
		var out []Outbound
		switch c.Code {
		case RequestFullUpdate:
			out = g.world.FullState(g.shipOf[c.Conn])
		case RequestStats:
			out = g.world.StatsDump(g.clock())
		default:
			return
		}
		for _, o := range out {
			if frame := encodeOutbound(o); frame != nil {
				c.Conn.SendBinary(frame)
			}
		}
	case EventCmd:
		if c.Code == EventQuit {
			g.leave(c.Conn)
		}
	case Detach:
		g.leave(c.Conn)
		delete(g.conns, c.Conn)
	}
}

func (g *Game) join(c JoinCmd) {
	reply := func(res JoinResult) {
		if res.Err != nil {
			c.Conn.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: res.Err.Error()}})
		} else {
			c.Conn.SendJSON(Envelope{T: MsgJoined, Data: res.Joined})
		}
		if c.Reply != nil {
			c.Reply <- res
		}
	}
	if _, ok := g.shipOf[c.Conn]; ok {
		reply(JoinResult{Err: ErrAlreadyJoined})
		return
	}
	g.conns[c.Conn] = struct{}{}
	now := g.clock()
	ship, out, err := g.world.Join(now, c.Spec)
	if err != nil {
		log.Printf("game: join %q: %v", c.Spec.Name, err)
		reply(JoinResult{Err: err})
		return
	}
	g.shipOf[c.Conn] = ship.ID
	g.owners[ship.ID] = c.Conn
	arena := g.world.Arena()
	log.Printf("game: %q joined as ship %d", ship.Name, ship.ID)
	reply(JoinResult{Joined: JoinedMsg{ID: ship.ID, ServerTime: now, Width: arena.W, Height: arena.H}})
	g.dispatch(out)
}

func (g *Game) leave(conn Broadcaster) {
	id, ok := g.shipOf[conn]
	if !ok {
		return
	}
	out, err := g.world.Quit(g.clock(), id)
	if err != nil && !errors.Is(err, ErrUnknownShip) {
		log.Printf("game: quit ship %d: %v", id, err)
	}
	delete(g.shipOf, conn)
	delete(g.owners, id)
	g.dispatch(out)
}

// dispatch encodes each event once and hands it to its recipients. Drops of
// owned ships release the owning connection so it can join again. A ship's
// own join event is not echoed to its pilot.
func (g *Game) dispatch(out []Outbound) {
	for _, o := range out {
		frame := encodeOutbound(o)
		if frame == nil {
			continue
		}
		if o.Owner != 0 {
			if conn, ok := g.owners[o.Owner]; ok {
				conn.SendBinary(frame)
			}
			continue
		}
		var except Broadcaster
		if o.Except != 0 {
			except = g.owners[o.Except]
		}
		for conn := range g.conns {
			if except != nil && conn == except {
				continue
			}
			conn.SendBinary(frame)
		}
		if drop, ok := o.Data.(DropEvent); ok {
			if conn, owned := g.owners[drop.ID]; owned {
				delete(g.owners, drop.ID)
				delete(g.shipOf, conn)
			}
		}
	}
}

func encodeOutbound(o Outbound) []byte {
	frame, err := EncodeEvent(o.Type, o.Data)
	if err != nil {
		log.Printf("game: encode %s: %v", o.Type, err)
		return nil
	}
	return frame
}
