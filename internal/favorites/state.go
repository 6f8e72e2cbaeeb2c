// Package favorites tracks the favorite flag displayed for each gadget.
//
// A toggle flips the displayed flag immediately, then settles it to whatever
// the backend answered. A failed toggle falls back to the last value the
// backend confirmed. When toggles overlap, the display follows the response
// of the most recent successful toggle once no newer toggle is in flight.
package favorites

import (
	"context"
	"log/slog"
	"sync"
)

// Toggler flips a favorite server-side and returns the new state.
type Toggler interface {
	ToggleFavorite(ctx context.Context, gadgetID string) (bool, error)
}

type entry struct {
	shown        bool
	seq          uint64
	confirmed    bool
	confirmedSeq uint64
	pending      int
}

type State struct {
	toggler Toggler

	mu      sync.Mutex
	entries map[string]*entry
}

func NewState(t Toggler) *State {
	return &State{toggler: t, entries: map[string]*entry{}}
}

// Seed records flags from a fetched list without touching gadgets that have
// a toggle in flight.
func (s *State) Seed(flags map[string]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, v := range flags {
		e, ok := s.entries[id]
		if !ok {
			s.entries[id] = &entry{shown: v, confirmed: v}
			continue
		}
		if e.pending > 0 {
			continue
		}
		e.shown, e.confirmed = v, v
	}
}

func (s *State) Shown(gadgetID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[gadgetID]; ok {
		return e.shown
	}
	return false
}

// Toggle flips the displayed flag and reconciles it with the backend.
func (s *State) Toggle(ctx context.Context, gadgetID string) (bool, error) {
	s.mu.Lock()
	e, ok := s.entries[gadgetID]
	if !ok {
		e = &entry{}
		s.entries[gadgetID] = e
	}
	e.shown = !e.shown
	e.seq++
	e.pending++
	seq := e.seq
	s.mu.Unlock()

	got, err := s.toggler.ToggleFavorite(ctx, gadgetID)

	s.mu.Lock()
	defer s.mu.Unlock()
	e.pending--
	if err != nil {
		slog.Warn("Favorite toggle failed", "gadget_id", gadgetID, "error", err)
		if seq == e.seq || e.pending == 0 {
			e.shown = e.confirmed
		}
		return e.shown, err
	}
	if seq > e.confirmedSeq {
		e.confirmed = got
		e.confirmedSeq = seq
	}
	if seq == e.seq || e.pending == 0 {
		e.shown = e.confirmed
	}
	return e.shown, nil
}
