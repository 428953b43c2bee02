// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package validation implements C6: the three queue consumers — system
// validation, app validation, and integration — as edge-triggered dispatch
// loops over their limbos, grounded on the teacher's networking/handler
// dispatch-loop shape (a buffered capacity-1 channel, a non-blocking
// Trigger send, a loop that drains to empty before re-blocking).
package validation

// Trigger is a coalescing wakeup signal: any number of Fire calls between
// two receives on C collapse into a single wakeup, so a consumer draining
// its limbo never needs to process more than one extra signal per drain.
type Trigger struct {
	C chan struct{}
}

// NewTrigger returns a Trigger ready to fire.
func NewTrigger() Trigger {
	return Trigger{C: make(chan struct{}, 1)}
}

// Fire wakes the consumer if it is blocked, or leaves an already-pending
// wakeup alone.
func (t Trigger) Fire() {
	select {
	case t.C <- struct{}{}:
	default:
	}
}
