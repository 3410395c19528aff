package client

import (
	"strings"

	"github.com/jmarlow/keepsync/internal/util"
	"github.com/jmarlow/keepsync/pending"
)

// State is the client-side local state synchronized across devices. The
// server only ever sees its encrypted form; the structure is opaque to
// everything past the orchestrator.
type State struct {
	Accounts []Account `json:"accounts,omitempty"`
	Addons   []Addon   `json:"addons,omitempty"`
	Rules    []Rule    `json:"rules,omitempty"`
}

// Account is a configured upstream service account.
type Account struct {
	ID       string `json:"id"`
	Service  string `json:"service"`
	Username string `json:"username,omitempty"`
}

// Addon is an installed addon, identified by its transport URL.
type Addon struct {
	TransportURL string `json:"transportUrl"`
	Name         string `json:"name,omitempty"`
	Enabled      bool   `json:"enabled"`
}

// Rule is an automation rule.
type Rule struct {
	ID      string `json:"id"`
	Trigger string `json:"trigger,omitempty"`
	Action  string `json:"action,omitempty"`
}

// clone returns a copy that shares no slices with the receiver, so a caller
// mutating the result cannot reach back into stored state.
func (s *State) clone() *State {
	return &State{
		Accounts: append([]Account(nil), s.Accounts...),
		Addons:   append([]Addon(nil), s.Addons...),
		Rules:    append([]Rule(nil), s.Rules...),
	}
}

// NormalizeAddonID canonicalizes an addon transport URL for pending-removal
// bookkeeping.
func NormalizeAddonID(transportURL string) string {
	return strings.ToLower(util.Normalize(strings.TrimSpace(transportURL)))
}

// filterPendingRemovals drops addons the user is deleting locally, so a pull
// racing the deletion cannot resurrect them.
func filterPendingRemovals(state *State, guard *pending.Guard, accountID string) {
	if guard == nil {
		return
	}
	kept := state.Addons[:0]
	for _, addon := range state.Addons {
		if !guard.IsPending(accountID, NormalizeAddonID(addon.TransportURL)) {
			kept = append(kept, addon)
		}
	}
	state.Addons = kept
}
