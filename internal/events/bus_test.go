package events

import (
	"io"
	"log"
	"testing"

	"github.com/JonJonesBR/Ecosse-sub003/internal/protocol"
)

func testBus() *Bus {
	return New(log.New(io.Discard, "", 0), 0)
}

func TestPublish_RegistrationOrderAndPayload(t *testing.T) {
	b := testBus()

	var got []string
	b.Subscribe("foo", func(p any) {
		m := p.(map[string]int)
		if m["n"] != 1 {
			t.Fatalf("first payload: %v", m)
		}
		got = append(got, "a")
	}, nil)
	b.Subscribe("foo", func(p any) {
		m := p.(map[string]int)
		if m["n"] != 1 {
			t.Fatalf("second payload: %v", m)
		}
		got = append(got, "b")
	}, nil)

	n := b.Publish("foo", map[string]int{"n": 1})
	if n != 2 {
		t.Fatalf("notified: got %d want 2", n)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("dispatch order: %v", got)
	}
}

func TestPublish_EmptyNameDegrades(t *testing.T) {
	b := testBus()
	if n := b.Publish("", 1); n != 0 {
		t.Fatalf("empty publish: got %d want 0", n)
	}
}

func TestSubscribe_BadInputReturnsNoop(t *testing.T) {
	b := testBus()
	unsub := b.Subscribe("", func(any) {}, nil)
	if unsub() {
		t.Fatal("noop handle for empty name returned true")
	}
	unsub = b.Subscribe("foo", nil, nil)
	if unsub() {
		t.Fatal("noop handle for nil handler returned true")
	}
	if b.HasSubscribers("foo") {
		t.Fatal("bad input registered a subscriber")
	}
}

func TestUnsubscribe_ExactMatchOnce(t *testing.T) {
	b := testBus()
	calls := 0
	fn := func(any) { calls++ }

	b.Subscribe("foo", fn, "ctx")
	b.Subscribe("foo", fn, "ctx") // duplicate kept

	if !b.Unsubscribe("foo", fn, "ctx") {
		t.Fatal("first unsubscribe: want true")
	}
	if got := b.SubscriberCount("foo"); got != 1 {
		t.Fatalf("after one removal: got %d want 1", got)
	}
	b.Publish("foo", nil)
	if calls != 1 {
		t.Fatalf("surviving duplicate calls: got %d want 1", calls)
	}

	if !b.Unsubscribe("foo", fn, "ctx") {
		t.Fatal("second unsubscribe: want true")
	}
	if b.Unsubscribe("foo", fn, "ctx") {
		t.Fatal("third unsubscribe: want false")
	}
	if b.Unsubscribe("never", fn, "ctx") {
		t.Fatal("unknown event: want false")
	}
}

func TestUnsubscribe_ContextMismatchKeepsRegistration(t *testing.T) {
	b := testBus()
	fn := func(any) {}
	b.Subscribe("foo", fn, "owner1")
	if b.Unsubscribe("foo", fn, "owner2") {
		t.Fatal("context mismatch removed a registration")
	}
	if got := b.SubscriberCount("foo"); got != 1 {
		t.Fatalf("count: got %d want 1", got)
	}
}

func TestSubscribeHandle_RemovesOwnRegistrationOnly(t *testing.T) {
	b := testBus()
	fn := func(any) {}
	unsub1 := b.Subscribe("foo", fn, nil)
	unsub2 := b.Subscribe("foo", fn, nil)

	if !unsub1() {
		t.Fatal("handle 1: want true")
	}
	if unsub1() {
		t.Fatal("handle 1 repeated: want false")
	}
	if got := b.SubscriberCount("foo"); got != 1 {
		t.Fatalf("count after handle 1: got %d want 1", got)
	}
	if !unsub2() {
		t.Fatal("handle 2: want true")
	}
}

func TestHistory_BoundedNewestFirst(t *testing.T) {
	b := testBus()
	for i := 0; i < 60; i++ {
		b.Publish("tick", i)
	}
	recent := b.RecentEvents()
	if len(recent) != DefaultHistoryCap {
		t.Fatalf("history length: got %d want %d", len(recent), DefaultHistoryCap)
	}
	if recent[0].Payload.(int) != 59 {
		t.Fatalf("newest entry payload: got %v want 59", recent[0].Payload)
	}
	if recent[len(recent)-1].Payload.(int) != 10 {
		t.Fatalf("oldest entry payload: got %v want 10", recent[len(recent)-1].Payload)
	}

	// Defensive copy: mutating the result must not leak into the ring.
	recent[0].Name = "mutated"
	if b.RecentEvents()[0].Name != "tick" {
		t.Fatal("RecentEvents returned a live reference")
	}
}

func TestPublish_PanicIsolatedAndReported(t *testing.T) {
	b := testBus()

	errs := 0
	b.Subscribe(protocol.EvSystemError, func(p any) {
		errs++
		if se, ok := p.(protocol.SystemError); !ok || se.Action != "foo" {
			t.Fatalf("system error payload: %#v", p)
		}
	}, nil)

	later := 0
	b.Subscribe("foo", func(any) { panic("boom") }, nil)
	b.Subscribe("foo", func(any) { later++ }, nil)

	if n := b.Publish("foo", nil); n != 2 {
		t.Fatalf("notified: got %d want 2", n)
	}
	if later != 1 {
		t.Fatal("subscriber after the panicking one was not invoked")
	}
	if errs != 1 {
		t.Fatalf("system error publishes: got %d want 1", errs)
	}
}

func TestPublish_SystemErrorPanicDoesNotRecurse(t *testing.T) {
	b := testBus()
	calls := 0
	b.Subscribe(protocol.EvSystemError, func(any) {
		calls++
		panic("handler is itself broken")
	}, nil)

	b.Publish(protocol.EvSystemError, protocol.SystemError{Source: "test"})
	if calls != 1 {
		t.Fatalf("system error handler calls: got %d want 1", calls)
	}
}

func TestPublish_MidDispatchChangesAffectLaterPublishesOnly(t *testing.T) {
	b := testBus()

	lateCalls := 0
	late := func(any) { lateCalls++ }
	b.Subscribe("foo", func(any) { b.Subscribe("foo", late, nil) }, nil)

	if n := b.Publish("foo", nil); n != 1 {
		t.Fatalf("first publish notified: got %d want 1", n)
	}
	if lateCalls != 0 {
		t.Fatal("subscriber added mid-dispatch ran in the same dispatch")
	}
	if n := b.Publish("foo", nil); n != 2 {
		t.Fatalf("second publish notified: got %d want 2", n)
	}
	if lateCalls != 1 {
		t.Fatalf("late calls: got %d want 1", lateCalls)
	}
}

func TestPublish_RecursionDepthBounded(t *testing.T) {
	b := testBus()
	depth := 0
	b.Subscribe("loop", func(any) {
		depth++
		b.Publish("loop", nil)
	}, nil)

	b.Publish("loop", nil)
	if depth == 0 || depth > maxPublishDepth {
		t.Fatalf("recursion depth: got %d, want within (0, %d]", depth, maxPublishDepth)
	}
}

func TestClear(t *testing.T) {
	b := testBus()
	b.Subscribe("a", func(any) {}, nil)
	b.Subscribe("b", func(any) {}, nil)

	b.ClearEvent("a")
	if b.HasSubscribers("a") {
		t.Fatal("ClearEvent left subscribers")
	}
	if !b.HasSubscribers("b") {
		t.Fatal("ClearEvent removed unrelated subscribers")
	}
	b.ClearAll()
	if b.HasSubscribers("b") {
		t.Fatal("ClearAll left subscribers")
	}
}
