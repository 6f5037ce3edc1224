// Package workflow holds the transition tables for every approval-governed
// entity. Services ask a Machine for the next status instead of assigning
// status literals, so a new code path cannot skip a guard.
package workflow

import (
	"fmt"

	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

// Machine is a status × event transition table for one entity.
type Machine[S ~string, E ~string] struct {
	entity string
	edges  map[S]map[E]S
	// locked states reject every event with LOCKED instead of INVALID_STATE.
	locked map[S]string
}

func newMachine[S ~string, E ~string](entity string, edges map[S]map[E]S) *Machine[S, E] {
	return &Machine[S, E]{entity: entity, edges: edges, locked: map[S]string{}}
}

func (m *Machine[S, E]) lock(state S, reason string) *Machine[S, E] {
	m.locked[state] = reason
	return m
}

// Transition returns the status reached by applying event in from.
func (m *Machine[S, E]) Transition(from S, event E) (S, error) {
	if reason, ok := m.locked[from]; ok {
		return from, appErrors.Clone(appErrors.ErrLocked, fmt.Sprintf("%s is %s: %s", m.entity, from, reason))
	}
	if next, ok := m.edges[from][event]; ok {
		return next, nil
	}
	return from, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("%s cannot %s from %s", m.entity, event, from))
}

// Can reports whether event is defined in from.
func (m *Machine[S, E]) Can(from S, event E) bool {
	_, err := m.Transition(from, event)
	return err == nil
}

// Entity names the governed entity in error messages and metrics.
func (m *Machine[S, E]) Entity() string {
	return m.entity
}
