package brain

import (
	"fmt"
	"sort"
	"strings"
)

// Capability is a behavior flag queried by states instead of inspecting actor types.
type Capability string

const (
	// CapCharge enables charge-kind patterns.
	CapCharge Capability = "charge"
	// CapBreath enables ranged breath patterns.
	CapBreath Capability = "breath"
	// CapDestructible enables part damage and the Destruct main state.
	CapDestructible Capability = "destructible"
	// CapStaggerable lets critical hits interrupt into Stun.
	CapStaggerable Capability = "staggerable"
	// CapPassive keeps the actor out of Combat until it is hit.
	CapPassive Capability = "passive"
	// CapRetreats lets the retreat threshold switch Combat to Retreat.
	CapRetreats Capability = "retreats"
	// CapRoars plays a roar when Combat is entered.
	CapRoars Capability = "roars"
	// CapAimTurn turns to face the target before ranged patterns.
	CapAimTurn Capability = "aim_turn"
)

var knownCapabilities = map[Capability]struct{}{
	CapCharge:       {},
	CapBreath:       {},
	CapDestructible: {},
	CapStaggerable:  {},
	CapPassive:      {},
	CapRetreats:     {},
	CapRoars:        {},
	CapAimTurn:      {},
}

// ParseCapability validates name.
func ParseCapability(name string) (Capability, error) {
	c := Capability(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := knownCapabilities[c]; !ok {
		return "", fmt.Errorf("brain.ParseCapability: unknown capability %q", name)
	}
	return c, nil
}

// Capabilities is an immutable capability set.
type Capabilities map[Capability]struct{}

// NewCapabilities builds a set from caps.
func NewCapabilities(caps ...Capability) Capabilities {
	s := make(Capabilities, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

// Has reports whether c is in the set.
func (s Capabilities) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// Union returns a new set containing s and caps.
func (s Capabilities) Union(caps ...Capability) Capabilities {
	out := make(Capabilities, len(s)+len(caps))
	for c := range s {
		out[c] = struct{}{}
	}
	for _, c := range caps {
		out[c] = struct{}{}
	}
	return out
}

// Sorted returns the capabilities in lexical order.
func (s Capabilities) Sorted() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, string(c))
	}
	sort.Strings(out)
	return out
}
