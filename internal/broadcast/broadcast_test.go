package broadcast

import (
	"sync"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSubscribeAndEmit(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	id, ch := hub.Subscribe()
	if hub.SubscriberCount() != 1 {
		t.Fatalf("subscribers = %d, want 1", hub.SubscriberCount())
	}

	hub.Emit("alert_created", map[string]string{"id": "al-1"})

	msg := <-ch
	if msg.Event != "alert_created" {
		t.Errorf("event = %q, want alert_created", msg.Event)
	}
	payload, ok := msg.Payload.(map[string]string)
	if !ok || payload["id"] != "al-1" {
		t.Errorf("payload = %#v", msg.Payload)
	}

	hub.Unsubscribe(id)
	if hub.SubscriberCount() != 0 {
		t.Errorf("subscribers after unsubscribe = %d, want 0", hub.SubscriberCount())
	}
	if _, open := <-ch; open {
		t.Error("channel still open after unsubscribe")
	}
}

func TestEmit_ReachesAllSubscribers(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	const n = 5
	chans := make([]<-chan Message, n)
	for i := range chans {
		_, chans[i] = hub.Subscribe()
	}

	hub.Emit("incident_created", 42)

	for i, ch := range chans {
		msg := <-ch
		if msg.Event != "incident_created" {
			t.Errorf("subscriber %d event = %q", i, msg.Event)
		}
	}
}

func TestEmit_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	_, slow := hub.Subscribe()
	_, fast := hub.Subscribe()

	// overflow the slow subscriber's buffer without draining it
	for i := 0; i < subscriberBuffer+10; i++ {
		hub.Emit("tick", i)
		<-fast
	}

	// the slow channel holds exactly one full buffer; the overflow was
	// dropped, not queued
	drained := 0
	for {
		select {
		case <-slow:
			drained++
			continue
		default:
		}
		break
	}
	if drained != subscriberBuffer {
		t.Errorf("slow subscriber received %d messages, want %d", drained, subscriberBuffer)
	}
}

func TestEmit_NoSubscribers(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	// must not panic or block
	hub.Emit("alert_created", nil)
}

func TestClose_IsIdempotent(t *testing.T) {
	hub := NewHub()

	id, ch := hub.Subscribe()
	hub.Close()
	hub.Close()

	if _, open := <-ch; open {
		t.Error("channel still open after close")
	}
	// unsubscribing a closed hub is a no-op
	hub.Unsubscribe(id)
	if hub.SubscriberCount() != 0 {
		t.Errorf("subscribers = %d, want 0", hub.SubscriberCount())
	}
}

func TestEmit_ConcurrentWithSubscribe(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				hub.Emit("tick", i)
			}
		}()
	}
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, ch := hub.Subscribe()
			for range 10 {
				select {
				case <-ch:
				default:
				}
			}
			hub.Unsubscribe(id)
		}()
	}
	wg.Wait()
}
