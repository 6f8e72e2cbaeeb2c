// Package notify fans push notifications out to every open session and
// keeps the device-token state shared by a signed-in user's sessions.
package notify

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"storefront-bff/internal/models"
)

// Message is one background push message.
type Message struct {
	ID           string              `json:"id"`
	Notification models.Notification `json:"notification"`
	SentAt       time.Time           `json:"sentAt"`
}

// Session is one open subscriber, the equivalent of a browser tab listening
// on the broadcast channel.
type Session struct {
	ID string
	C  <-chan Message

	ch chan Message
}

// Broker delivers every published message to every session.
//
// A single goroutine owns the session set; public methods talk to it over
// channels. A session whose buffer is full misses messages rather than
// stalling the others.
type Broker struct {
	subscribeCh   chan *Session
	unsubscribeCh chan *Session
	publishCh     chan Message
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

func NewBroker() *Broker {
	b := &Broker{
		subscribeCh:   make(chan *Session),
		unsubscribeCh: make(chan *Session),
		publishCh:     make(chan Message, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	sessions := make(map[*Session]struct{})

	for {
		select {
		case <-b.stopCh:
			for s := range sessions {
				close(s.ch)
			}
			return

		case s := <-b.subscribeCh:
			sessions[s] = struct{}{}

		case s := <-b.unsubscribeCh:
			if _, ok := sessions[s]; ok {
				delete(sessions, s)
				close(s.ch)
			}

		case msg := <-b.publishCh:
			for s := range sessions {
				select {
				case s.ch <- msg:
				default:
				}
			}

		case resp := <-b.countReqCh:
			resp <- len(sessions)
		}
	}
}

// Close stops the broker and closes every session channel.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe opens a session. Its channel is closed by Unsubscribe or Close.
func (b *Broker) Subscribe() *Session {
	ch := make(chan Message, 64)
	s := &Session{ID: uuid.NewString(), C: ch, ch: ch}
	if b.closed.Load() {
		close(ch)
		return s
	}

	select {
	case b.subscribeCh <- s:
	case <-b.stopped:
		close(ch)
	}
	return s
}

func (b *Broker) Unsubscribe(s *Session) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- s:
	case <-b.stopped:
	}
}

func (b *Broker) SessionCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish broadcasts n to all sessions and returns the message sent.
func (b *Broker) Publish(n models.Notification) Message {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	msg := Message{ID: uuid.NewString(), Notification: n, SentAt: time.Now()}
	if b.closed.Load() {
		return msg
	}
	select {
	case b.publishCh <- msg:
	case <-b.stopped:
	}
	return msg
}

// ServeHTTP streams messages to one session as server-sent events.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s := b.Subscribe()
	defer b.Unsubscribe(s)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.C:
			if !ok {
				return
			}
			payload, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			_, _ = fmt.Fprintf(w, "id: %s\nevent: notification\ndata: %s\n\n", msg.ID, payload)
			flusher.Flush()
		}
	}
}
