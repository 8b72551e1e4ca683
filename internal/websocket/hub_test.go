package websocket

import (
	"encoding/json"
	"testing"
	"time"
)

func receive(t *testing.T, c *Client) ([]byte, bool) {
	t.Helper()
	select {
	case msg, ok := <-c.Send:
		return msg, ok
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for message")
		return nil, false
	}
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	a := NewClient(hub, nil)
	b := NewClient(hub, nil)
	hub.Register <- a
	hub.Register <- b

	hub.Publish(NewTasksChangedMessage())

	for _, c := range []*Client{a, b} {
		msg, ok := receive(t, c)
		if !ok {
			t.Fatalf("Send closed, want message")
		}
		var m Message
		if err := json.Unmarshal(msg, &m); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if m.Action != ActionTasksChanged {
			t.Errorf("Action = %q, want %q", m.Action, ActionTasksChanged)
		}
	}

	hub.Unregister <- a
	if _, ok := receive(t, a); ok {
		t.Errorf("Send still open after Unregister")
	}
	if a.Deliver([]byte("late")) {
		t.Errorf("Deliver() after close = true, want false")
	}
}

func TestHubStopClosesClients(t *testing.T) {
	hub := NewHub()
	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()

	c := NewClient(hub, nil)
	hub.Register <- c
	hub.Stop()

	if _, ok := receive(t, c); ok {
		t.Errorf("Send still open after Stop")
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run() did not return after Stop()")
	}
}

func TestMessages(t *testing.T) {
	var m Message
	if err := json.Unmarshal(NewErrorMessage("boom"), &m); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if m.Action != ActionError || string(m.Payload) != `"boom"` {
		t.Errorf("NewErrorMessage() = %+v", m)
	}

	if err := json.Unmarshal(NewStateMessage(map[string]int{"n": 1}), &m); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if m.Action != ActionState || string(m.Payload) != `{"n":1}` {
		t.Errorf("NewStateMessage() = %+v", m)
	}
}
