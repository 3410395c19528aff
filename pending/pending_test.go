package pending

import "testing"

func TestAddRemoveIsPending(t *testing.T) {
	g := NewGuard()

	if g.IsPending("a1", "u1") {
		t.Error("fresh guard should have no pending removals")
	}

	g.Add("a1", "u1")
	if !g.IsPending("a1", "u1") {
		t.Error("u1 should be pending for a1")
	}
	if g.IsPending("a2", "u1") {
		t.Error("pending markers must be scoped per account")
	}

	g.Remove("a1", "u1")
	if g.IsPending("a1", "u1") {
		t.Error("u1 should no longer be pending after Remove")
	}
}

func TestNormalizedLookup(t *testing.T) {
	g := NewGuard()

	g.Add("a1", "  Addon.Example.COM/manifest  ")
	if !g.IsPending("a1", "addon.example.com/manifest") {
		t.Error("lookup should be case-insensitive and trimmed")
	}

	// NFKD: ligature fi vs "fi".
	g.Add("a1", "ﬁlter")
	if !g.IsPending("a1", "filter") {
		t.Error("lookup should be form-insensitive")
	}
}

func TestClearAccount(t *testing.T) {
	g := NewGuard()

	g.Add("a1", "u1")
	g.Add("a1", "u2")
	g.Add("a2", "u1")

	g.ClearAccount("a1")

	if g.IsPending("a1", "u1") || g.IsPending("a1", "u2") {
		t.Error("ClearAccount should wipe all markers for the account")
	}
	if !g.IsPending("a2", "u1") {
		t.Error("ClearAccount must not touch other accounts")
	}
}

func TestSubscribe(t *testing.T) {
	g := NewGuard()

	var calls int
	unsubscribe := g.Subscribe(func() { calls++ })

	g.Add("a1", "u1")
	if calls != 1 {
		t.Errorf("expected 1 synchronous notification after Add, got %d", calls)
	}
	g.Remove("a1", "u1")
	if calls != 2 {
		t.Errorf("expected 2 notifications after Remove, got %d", calls)
	}
	g.ClearAccount("a1")
	if calls != 3 {
		t.Errorf("expected 3 notifications after ClearAccount, got %d", calls)
	}

	unsubscribe()
	g.Add("a1", "u2")
	if calls != 3 {
		t.Errorf("expected no notification after unsubscribe, got %d", calls)
	}
}

func TestSubscriberMayReadGuard(t *testing.T) {
	g := NewGuard()

	var sawPending bool
	g.Subscribe(func() {
		sawPending = g.IsPending("a1", "u1")
	})

	g.Add("a1", "u1")
	if !sawPending {
		t.Error("subscriber should observe the mutation that triggered it")
	}
}
