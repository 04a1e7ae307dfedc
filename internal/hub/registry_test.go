package hub

import (
	"testing"

	"github.com/maddox/harmony-api/internal/harmony"
	"github.com/maddox/harmony-api/internal/hub/hubtest"
)

func newIdleSession(name string) *Session {
	fake := hubtest.NewFakeClient(harmony.Config{})
	return NewSession(IdentityFromInfo(harmony.HubInfo{IP: "10.0.0.1", FriendlyName: name}), fake, SessionOptions{Intervals: quiet})
}

func TestRegistry_ReplaceCancelsPrevious(t *testing.T) {
	r := NewRegistry()
	first := newIdleSession("Den")
	second := newIdleSession("Den")

	if prev := r.Replace(first); prev != nil {
		t.Fatalf("Replace() on empty slot returned %v", prev)
	}
	prev := r.Replace(second)
	if prev != first {
		t.Fatal("Replace() should return the displaced session")
	}
	if !first.stopped() {
		t.Error("displaced session's timers still armed")
	}
	if got, _ := r.Get("den"); got != second {
		t.Error("Get() does not return the new session")
	}

	// Re-registering the same session is a no-op.
	if prev := r.Replace(second); prev != nil {
		t.Error("Replace() with the same session returned a previous one")
	}
}

func TestRegistry_RemoveOnlyCurrent(t *testing.T) {
	r := NewRegistry()
	old := newIdleSession("Den")
	current := newIdleSession("Den")
	r.Replace(old)
	r.Replace(current)

	if r.Remove(old) {
		t.Error("Remove() of a displaced session should not unregister the current one")
	}
	if !r.Remove(current) {
		t.Error("Remove() of the current session failed")
	}
	if _, ok := r.Get("den"); ok {
		t.Error("session still registered")
	}
}

func TestRegistry_OrderingAndDefault(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Default(); ok {
		t.Error("Default() on empty registry reported a session")
	}

	r.Replace(newIdleSession("Office"))
	r.Replace(newIdleSession("Bedroom"))
	r.Replace(newIdleSession("Kitchen"))

	slugs := r.Slugs()
	want := []string{"bedroom", "kitchen", "office"}
	for i := range want {
		if slugs[i] != want[i] {
			t.Fatalf("Slugs() = %v, want %v", slugs, want)
		}
	}
	if s, _ := r.Default(); s.Slug() != "bedroom" {
		t.Errorf("Default() = %s, want bedroom", s.Slug())
	}

	if cleared := r.Clear(); len(cleared) != 3 || r.Len() != 0 {
		t.Errorf("Clear() returned %d, Len() = %d", len(cleared), r.Len())
	}
}
