// Package pending tracks targets that are mid-deletion locally, so a
// concurrent background refresh cannot resurrect an item that is still
// present upstream. State is in-process only: it is never persisted and is
// not visible across horizontally scaled replicas.
package pending

import (
	"strings"
	"sync"

	"github.com/jmarlow/keepsync/internal/util"
)

// Guard holds per-account sets of pending-removal target identifiers.
type Guard struct {
	mu          sync.Mutex
	removals    map[string]map[string]struct{}
	subscribers map[int]func()
	nextSubID   int
}

// NewGuard returns an empty Guard.
func NewGuard() *Guard {
	return &Guard{
		removals:    make(map[string]map[string]struct{}),
		subscribers: make(map[int]func()),
	}
}

// normalizeTarget canonicalizes target identifiers so that lookups are
// case- and form-insensitive.
func normalizeTarget(targetID string) string {
	return strings.ToLower(util.Normalize(strings.TrimSpace(targetID)))
}

// Add marks targetID as pending removal for the account.
func (g *Guard) Add(accountID, targetID string) {
	g.mu.Lock()
	set, ok := g.removals[accountID]
	if !ok {
		set = make(map[string]struct{})
		g.removals[accountID] = set
	}
	set[normalizeTarget(targetID)] = struct{}{}
	subs := g.snapshotSubscribers()
	g.mu.Unlock()

	notify(subs)
}

// Remove clears the pending-removal marker for targetID.
func (g *Guard) Remove(accountID, targetID string) {
	g.mu.Lock()
	if set, ok := g.removals[accountID]; ok {
		delete(set, normalizeTarget(targetID))
		if len(set) == 0 {
			delete(g.removals, accountID)
		}
	}
	subs := g.snapshotSubscribers()
	g.mu.Unlock()

	notify(subs)
}

// IsPending reports whether targetID is currently marked for removal.
func (g *Guard) IsPending(accountID, targetID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	set, ok := g.removals[accountID]
	if !ok {
		return false
	}
	_, pending := set[normalizeTarget(targetID)]
	return pending
}

// ClearAccount wipes all pending markers for an account.
func (g *Guard) ClearAccount(accountID string) {
	g.mu.Lock()
	delete(g.removals, accountID)
	subs := g.snapshotSubscribers()
	g.mu.Unlock()

	notify(subs)
}

// Subscribe registers a callback invoked synchronously after every mutation.
// The returned function unsubscribes.
func (g *Guard) Subscribe(fn func()) func() {
	g.mu.Lock()
	id := g.nextSubID
	g.nextSubID++
	g.subscribers[id] = fn
	g.mu.Unlock()

	return func() {
		g.mu.Lock()
		delete(g.subscribers, id)
		g.mu.Unlock()
	}
}

func (g *Guard) snapshotSubscribers() []func() {
	subs := make([]func(), 0, len(g.subscribers))
	for _, fn := range g.subscribers {
		subs = append(subs, fn)
	}
	return subs
}

// notify runs outside the lock so subscribers may call back into the Guard.
func notify(subs []func()) {
	for _, fn := range subs {
		fn()
	}
}
