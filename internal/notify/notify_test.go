package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-bff/internal/models"
)

func TestBroker_EverySessionReceives(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	tabs := []*Session{b.Subscribe(), b.Subscribe(), b.Subscribe()}
	assert.Equal(t, 3, b.SessionCount())
	assert.NotEqual(t, tabs[0].ID, tabs[1].ID)

	sent := b.Publish(models.Notification{Title: "Order shipped", Body: "o-2 is on its way"})
	assert.NotEmpty(t, sent.Notification.ID)

	for _, tab := range tabs {
		select {
		case msg := <-tab.C:
			assert.Equal(t, sent.ID, msg.ID)
			assert.Equal(t, "Order shipped", msg.Notification.Title)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for message")
		}
	}
}

func TestBroker_UnsubscribeClosesSession(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	s := b.Subscribe()
	b.Unsubscribe(s)
	assert.Equal(t, 0, b.SessionCount())
	_, ok := <-s.C
	assert.False(t, ok)
}

func TestBroker_SlowSessionDoesNotBlock(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	slow := b.Subscribe()
	defer b.Unsubscribe(slow)

	for i := 0; i < 100; i++ {
		b.Publish(models.Notification{Title: "spam"})
	}
	fast := b.Subscribe()
	defer b.Unsubscribe(fast)
	b.Publish(models.Notification{Title: "after"})

	timeout := time.After(time.Second)
	for {
		select {
		case msg := <-fast.C:
			if msg.Notification.Title == "after" {
				return
			}
		case <-timeout:
			t.Fatal("fast session starved")
		}
	}
}

func TestBroker_CloseIsSafe(t *testing.T) {
	b := NewBroker()
	s := b.Subscribe()
	b.Close()

	select {
	case _, ok := <-s.C:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("session not closed")
	}

	assert.Equal(t, 0, b.SessionCount())
	b.Publish(models.Notification{Title: "late"})
	late := b.Subscribe()
	_, ok := <-late.C
	assert.False(t, ok)
	b.Close()
}

func TestBroker_ServeHTTP(t *testing.T) {
	b := NewBroker()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	require.Eventually(t, func() bool { return b.SessionCount() == 1 }, time.Second, 10*time.Millisecond)
	b.Publish(models.Notification{Title: "Price drop"})
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	assert.Contains(t, body, "event: notification")
	assert.True(t, strings.Contains(body, `"title":"Price drop"`), body)
	require.Eventually(t, func() bool { return b.SessionCount() == 0 }, time.Second, 10*time.Millisecond)
}

type countingRegistrar struct {
	tokens []string
	fail   bool
}

func (c *countingRegistrar) RegisterDeviceToken(_ context.Context, token string) error {
	if c.fail {
		return errors.New("offline")
	}
	c.tokens = append(c.tokens, token)
	return nil
}

func TestDeviceState(t *testing.T) {
	reg := &countingRegistrar{}
	d := NewDeviceState(reg)
	ctx := context.Background()

	require.NoError(t, d.Set(ctx, "tok-1"))
	require.NoError(t, d.Set(ctx, "tok-1"))
	require.NoError(t, d.Set(ctx, ""))
	require.NoError(t, d.Set(ctx, "tok-2"))
	assert.Equal(t, []string{"tok-1", "tok-2"}, reg.tokens)
	assert.Equal(t, "tok-2", d.Token())

	reg.fail = true
	assert.Error(t, d.Set(ctx, "tok-3"))
	reg.fail = false
	require.NoError(t, d.Set(ctx, "tok-3"))
	assert.Equal(t, []string{"tok-1", "tok-2", "tok-3"}, reg.tokens)

	d.Reset()
	require.NoError(t, d.Set(ctx, "tok-3"))
	assert.Len(t, reg.tokens, 4)
}
