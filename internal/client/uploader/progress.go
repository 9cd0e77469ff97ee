package uploader

import (
	"sync"
	"time"
)

const (
	smoothingKeep   = 0.8
	defaultSampling = 200 * time.Millisecond
)

// Progress is a snapshot of the upload of one file.
type Progress struct {
	File      string
	FileIndex int
	FileCount int
	State     State
	Sent      int64
	Total     int64
	// Percent stays at or below 99 until the file is finalized.
	Percent        int
	BytesPerSecond float64
	ETA            time.Duration
}

// progressTracker aggregates committed and in-flight chunk bytes of one file
// and keeps an exponentially smoothed throughput estimate.
type progressTracker struct {
	mu        sync.Mutex
	total     int64
	committed int64
	inFlight  map[int]int64

	interval   time.Duration
	now        func() time.Time
	lastSample time.Time
	lastBytes  int64
	speed      float64
	eta        time.Duration

	emit func(sent int64, percent int, speed float64, eta time.Duration)
}

func newProgressTracker(total, committed int64, interval time.Duration, now func() time.Time,
	emit func(sent int64, percent int, speed float64, eta time.Duration)) *progressTracker {
	if interval <= 0 {
		interval = defaultSampling
	}
	return &progressTracker{
		total:      total,
		committed:  committed,
		inFlight:   make(map[int]int64),
		interval:   interval,
		now:        now,
		lastSample: now(),
		lastBytes:  committed,
		emit:       emit,
	}
}

// sent records the in-flight byte count of chunk index.
func (p *progressTracker) sent(index int, n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight[index] = n
	p.updateLocked()
}

// commit moves chunk index from in flight to committed.
func (p *progressTracker) commit(index int, size int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, index)
	p.committed += size
	p.updateLocked()
}

// drop forgets the in-flight bytes of a failed attempt.
func (p *progressTracker) drop(index int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, index)
}

func (p *progressTracker) updateLocked() {
	current := p.committed
	for _, n := range p.inFlight {
		current += n
	}

	percent := 99
	if p.total > 0 {
		percent = min(int(current*100/p.total), 99)
	}

	now := p.now()
	if elapsed := now.Sub(p.lastSample); elapsed >= p.interval {
		instant := float64(current-p.lastBytes) / elapsed.Seconds()
		p.speed = p.speed*smoothingKeep + instant*(1-smoothingKeep)
		p.eta = 0
		if p.speed > 0 {
			p.eta = time.Duration(float64(p.total-current) / p.speed * float64(time.Second))
		}
		p.lastSample = now
		p.lastBytes = current
	}

	if p.emit != nil {
		p.emit(current, percent, p.speed, p.eta)
	}
}
