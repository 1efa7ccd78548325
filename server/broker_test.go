package server

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/etnz/valuation"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	if got := b.ClientCount(); got != 0 {
		t.Fatalf("ClientCount() = %d, want 0", got)
	}
	ch := b.Subscribe()
	if got := b.ClientCount(); got != 1 {
		t.Fatalf("ClientCount() = %d, want 1", got)
	}
	b.Unsubscribe(ch)
	if got := b.ClientCount(); got != 0 {
		t.Fatalf("ClientCount() after Unsubscribe = %d, want 0", got)
	}
}

func TestForward(t *testing.T) {
	b := NewBroker()
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	e := valuation.NewEditor(valuation.DefaultModel())
	cancel := b.Forward(e)
	defer cancel()

	e.Fail(e.Begin(valuation.FeedRates), errors.New("timeout"))

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.HasPrefix(s, "event: unavailable\n") {
			t.Errorf("message = %q, want an unavailable event", s)
		}
		if !strings.Contains(s, `"source":"rates"`) || !strings.Contains(s, "timeout") {
			t.Errorf("message = %q, want the source and the error", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestNewMessage(t *testing.T) {
	p := valuation.MustParsePath("lbo_input.financing.tranches[1].interest_rate")
	got := NewMessage(valuation.Event{Kind: valuation.Unlinked, Path: p, CanUndo: true})
	want := Message{Kind: "unlinked", CanUndo: true, Path: p.String()}
	if got != want {
		t.Errorf("NewMessage() = %+v, want %+v", got, want)
	}
}

func TestCloseEndsClients(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	b.Close()
	if _, ok := <-ch; ok {
		t.Error("client channel still open after Close")
	}
	b.Publish(Message{Kind: "changed"})
	if got := b.ClientCount(); got != 0 {
		t.Errorf("ClientCount() after Close = %d, want 0", got)
	}
	closed := b.Subscribe()
	if _, ok := <-closed; ok {
		t.Error("Subscribe() after Close returned an open channel")
	}
}
