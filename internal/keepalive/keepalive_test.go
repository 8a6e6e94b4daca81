package keepalive

import (
	"testing"
)

func TestManager_Aggregate(t *testing.T) {
	m := NewManager(nil)

	if m.Active() {
		t.Error("new manager should not be active")
	}

	m.UpdateKeepAlive("a", true)
	m.UpdateKeepAlive("b", true)
	if !m.Active() {
		t.Error("Active() = false, want true")
	}
	if got := m.Holders(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Holders() = %v, want [a b]", got)
	}

	m.UpdateKeepAlive("a", false)
	if !m.Active() {
		t.Error("Active() = false while b still holds")
	}

	m.UpdateKeepAlive("b", false)
	if m.Active() {
		t.Error("Active() = true after all released")
	}
	if m.Updates() != 4 {
		t.Errorf("Updates() = %d, want 4", m.Updates())
	}
}

func TestManager_ReleaseUnknownKey(t *testing.T) {
	m := NewManager(nil)
	m.UpdateKeepAlive("ghost", false)
	if m.Active() {
		t.Error("releasing an unknown key should leave the manager inactive")
	}
}

func TestManager_SubscribeTransitionsOnly(t *testing.T) {
	m := NewManager(nil)
	ch := m.Subscribe()

	m.UpdateKeepAlive("a", true)
	select {
	case v := <-ch:
		if !v {
			t.Errorf("got %v, want true", v)
		}
	default:
		t.Fatal("expected a transition to true")
	}

	// Second holder does not change the aggregate.
	m.UpdateKeepAlive("b", true)
	select {
	case v := <-ch:
		t.Errorf("unexpected notification %v", v)
	default:
	}

	m.UpdateKeepAlive("a", false)
	m.UpdateKeepAlive("b", false)
	select {
	case v := <-ch:
		if v {
			t.Errorf("got %v, want false", v)
		}
	default:
		t.Fatal("expected a transition to false")
	}
}

func TestManager_SlowSubscriberGetsLatest(t *testing.T) {
	m := NewManager(nil)
	ch := m.Subscribe()

	m.UpdateKeepAlive("a", true)
	m.UpdateKeepAlive("a", false)
	m.UpdateKeepAlive("a", true)

	if v := <-ch; !v {
		t.Errorf("got %v, want latest value true", v)
	}
	select {
	case v := <-ch:
		t.Errorf("unexpected extra value %v", v)
	default:
	}
}
