package search

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	mu  sync.Mutex
	got []string
}

func (r *recorder) submit(q string) {
	r.mu.Lock()
	r.got = append(r.got, q)
	r.mu.Unlock()
}

func (r *recorder) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.got...)
}

const pause = 40 * time.Millisecond

func TestDebouncer_FiresOncePerPause(t *testing.T) {
	rec := &recorder{}
	d := NewDebouncer(pause, rec.submit)
	defer d.Stop()

	for _, partial := range []string{"cheap", "cheap wireless", "cheap wireless earbuds"} {
		d.Update(partial)
		time.Sleep(pause / 4)
	}
	assert.Empty(t, rec.calls(), "no submit while speech continues")

	time.Sleep(3 * pause)
	assert.Equal(t, []string{"cheap wireless earbuds"}, rec.calls())

	// A second utterance after the pause gets its own submit.
	d.Update("phones")
	time.Sleep(3 * pause)
	assert.Equal(t, []string{"cheap wireless earbuds", "phones"}, rec.calls())
}

func TestDebouncer_SkipsRepeatsAndEmpty(t *testing.T) {
	rec := &recorder{}
	d := NewDebouncer(pause, rec.submit)
	defer d.Stop()

	d.Update("laptop")
	time.Sleep(3 * pause)
	d.Update(" laptop ")
	time.Sleep(3 * pause)
	d.Update("   ")
	time.Sleep(3 * pause)

	assert.Equal(t, []string{"laptop"}, rec.calls())
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	rec := &recorder{}
	d := NewDebouncer(pause, rec.submit)
	d.Update("speaker")
	d.Stop()
	d.Update("speaker again")
	time.Sleep(3 * pause)
	assert.Empty(t, rec.calls())
}

func TestDebouncer_DefaultPause(t *testing.T) {
	d := NewDebouncer(0, func(string) {})
	assert.Equal(t, 1500*time.Millisecond, d.pause)
}
