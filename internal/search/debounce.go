package search

import (
	"strings"
	"sync"
	"time"
)

// DefaultPause is how long the transcript must stay unchanged before a voice
// query is submitted.
const DefaultPause = 1500 * time.Millisecond

// Debouncer submits a speech transcript once the speaker pauses. Every
// update restarts the pause timer; when it expires the latest transcript is
// submitted, unless it is empty or was already submitted.
type Debouncer struct {
	pause  time.Duration
	submit func(string)

	mu        sync.Mutex
	timer     *time.Timer
	gen       uint64
	latest    string
	submitted string
	stopped   bool
}

func NewDebouncer(pause time.Duration, submit func(string)) *Debouncer {
	if pause <= 0 {
		pause = DefaultPause
	}
	return &Debouncer{pause: pause, submit: submit}
}

// Update records the current transcript.
func (d *Debouncer) Update(transcript string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.latest = strings.TrimSpace(transcript)
	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.pause, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || gen != d.gen || d.latest == "" || d.latest == d.submitted {
		d.mu.Unlock()
		return
	}
	d.submitted = d.latest
	q := d.latest
	d.mu.Unlock()

	d.submit(q)
}

// Stop cancels a pending submit; later updates are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
