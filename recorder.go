package main

import (
	"log"
	"sync"
	"time"
)

const (
	recorderQueueSize  = 1024
	recorderFlushEvery = 5 * time.Second
	recorderBatchLimit = 50 // distinct pilots per batch
)

// Recorder persists stat deltas with batched background writes so the game
// loop never waits on the database.
type Recorder struct {
	db       *DB
	deltas   chan StatDelta
	stop     chan struct{}
	interval time.Duration
	wg       sync.WaitGroup

	mu      sync.Mutex
	dropped int
}

// NewRecorder creates and starts the background writer. interval <= 0
// selects the default flush period.
func NewRecorder(db *DB, interval time.Duration) *Recorder {
	if interval <= 0 {
		interval = recorderFlushEvery
	}
	r := &Recorder{
		db:       db,
		deltas:   make(chan StatDelta, recorderQueueSize),
		stop:     make(chan struct{}),
		interval: interval,
	}
	r.wg.Add(1)
	go r.writer()
	return r
}

// Record enqueues a delta (non-blocking)
func (r *Recorder) Record(d StatDelta) {
	select {
	case r.deltas <- d:
	default:
		// Queue full, drop rather than block the game loop
		r.mu.Lock()
		r.dropped++
		r.mu.Unlock()
	}
}

// Dropped returns how many deltas were discarded because the queue was full
func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Stop flushes pending deltas and shuts down the writer
func (r *Recorder) Stop() {
	close(r.stop)
	r.wg.Wait()
	if n := r.Dropped(); n > 0 {
		log.Printf("recorder: dropped %d stat deltas", n)
	}
}

// writer merges deltas per pilot and flushes on size or time
func (r *Recorder) writer() {
	defer r.wg.Done()

	pending := make(map[string]*StatDelta)
	var order []string
	add := func(d StatDelta) {
		p, ok := pending[d.Name]
		if !ok {
			p = &StatDelta{Name: d.Name}
			pending[d.Name] = p
			order = append(order, d.Name)
		}
		p.Kills += d.Kills
		p.Deaths += d.Deaths
		p.Playtime += d.Playtime
	}
	flush := func() {
		if len(order) == 0 {
			return
		}
		batch := make([]StatDelta, 0, len(order))
		for _, name := range order {
			batch = append(batch, *pending[name])
		}
		r.flush(batch)
		pending = make(map[string]*StatDelta)
		order = order[:0]
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case d := <-r.deltas:
			add(d)
			if len(order) >= recorderBatchLimit {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-r.stop:
			// Drain remaining deltas
			for {
				select {
				case d := <-r.deltas:
					add(d)
				default:
					flush()
					return
				}
			}
		}
	}
}

// flush writes a batch of deltas to the database
func (r *Recorder) flush(batch []StatDelta) {
	if r.db == nil || len(batch) == 0 {
		return
	}
	if err := r.db.ApplyStatDeltas(batch); err != nil {
		log.Printf("recorder: flush of %d pilots failed: %v", len(batch), err)
	}
}
