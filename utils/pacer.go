package utils

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Pacer spaces out page loads with a base delay plus uniform jitter.
type Pacer struct {
	delay  time.Duration
	jitter time.Duration

	mu    sync.Mutex
	rng   *rand.Rand
	sleep func(context.Context, time.Duration) error
}

// NewPacer creates a Pacer waiting delay ± uniform(jitter) per call.
func NewPacer(delay, jitter time.Duration) *Pacer {
	return &Pacer{
		delay:  delay,
		jitter: jitter,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:  Sleep,
	}
}

// Next returns the next pause length. It never returns a negative duration.
func (p *Pacer) Next() time.Duration {
	d := p.delay
	if p.jitter > 0 {
		p.mu.Lock()
		offset := (p.rng.Float64()*2 - 1) * float64(p.jitter)
		p.mu.Unlock()
		d += time.Duration(offset)
	}
	if d < 0 {
		return 0
	}
	return d
}

// Wait blocks for the next pause length or until ctx is cancelled.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.sleep(ctx, p.Next())
}
