package events

import "testing"

func TestBusDeliversInOrder(t *testing.T) {
	bus := NewBus[int]()

	var got []string
	bus.Subscribe(func(v int) { got = append(got, "a") })
	bus.Subscribe(func(v int) { got = append(got, "b") })

	bus.Publish(1)

	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected delivery order: %v", got)
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := NewBus[string]()

	calls := 0
	unsub := bus.Subscribe(func(string) { calls++ })

	bus.Publish("x")
	unsub()
	unsub()
	bus.Publish("y")

	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if bus.Len() != 0 {
		t.Errorf("expected no listeners, got %d", bus.Len())
	}
}

func TestBusUnsubscribeDuringPublish(t *testing.T) {
	bus := NewBus[int]()

	var unsub func()
	first, second := 0, 0
	unsub = bus.Subscribe(func(int) {
		first++
		unsub()
	})
	bus.Subscribe(func(int) { second++ })

	bus.Publish(1)
	bus.Publish(2)

	if first != 1 {
		t.Errorf("self-removing listener ran %d times", first)
	}
	if second != 2 {
		t.Errorf("second listener ran %d times, want 2", second)
	}
}

func TestBusClose(t *testing.T) {
	bus := NewBus[int]()
	called := false
	bus.Subscribe(func(int) { called = true })

	bus.Close()
	bus.Subscribe(func(int) { called = true })
	bus.Publish(1)

	if called {
		t.Error("listener called after Close")
	}
}
