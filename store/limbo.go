// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/luxfi/dhtcore/codec"
	"github.com/luxfi/dhtcore/dhtop"
	"github.com/luxfi/dhtcore/hash"
)

// ValidationStatus is one op's position in the validation state machine of
// spec.md §4.6.
type ValidationStatus byte

const (
	Pending ValidationStatus = iota
	AwaitingSysDeps
	SysValidated
	AwaitingAppDeps
	AwaitingProof
	Rejected
	Integrated
)

func (s ValidationStatus) String() string {
	switch s {
	case Pending:
		return "Pending"
	case AwaitingSysDeps:
		return "AwaitingSysDeps"
	case SysValidated:
		return "SysValidated"
	case AwaitingAppDeps:
		return "AwaitingAppDeps"
	case AwaitingProof:
		return "AwaitingProof"
	case Rejected:
		return "Rejected"
	case Integrated:
		return "Integrated"
	default:
		return "Unknown"
	}
}

// Warrant records a Rejected op for gossip, per SPEC_FULL.md's supplemented
// warrant feature: a rejected op is evidence of misbehavior, not silently
// dropped.
type Warrant struct {
	OpHash hash.Hash
	Author hash.Hash
	Reason string
}

// LimboEntry is one op's validation bookkeeping.
type LimboEntry struct {
	Op        dhtop.Op
	Status    ValidationStatus
	Deps      []hash.Hash
	LastTry   int64
	NumTries  uint32
	Reason    string // set on Rejected
}

// ValidationLimbo is the queue of spec.md §4.6: ops move Pending ->
// AwaitingSysDeps(deps) | SysValidated -> AwaitingAppDeps(deps) |
// AwaitingProof -> Integrated, or to Rejected at any validation stage.
type ValidationLimbo struct {
	mu      sync.Mutex
	entries map[hash.Hash]*LimboEntry
	// waiters maps an unmet dependency hash to the ops blocked on it;
	// Satisfy hands them back and clears them. Nothing in this module calls
	// Satisfy: the validation workflows instead rescan their
	// AwaitingSysDeps/AwaitingAppDeps ops on every drain.
	waiters map[hash.Hash][]hash.Hash
}

// NewValidationLimbo returns an empty ValidationLimbo.
func NewValidationLimbo() *ValidationLimbo {
	return &ValidationLimbo{
		entries: map[hash.Hash]*LimboEntry{},
		waiters: map[hash.Hash][]hash.Hash{},
	}
}

// Add enqueues op as Pending if not already known. Returns false if op was
// already present.
func (l *ValidationLimbo) Add(op dhtop.Op) (hash.Hash, bool, error) {
	opHash, err := op.Hash()
	if err != nil {
		return hash.Hash{}, false, fmt.Errorf("store: hash op: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[opHash]; ok {
		return opHash, false, nil
	}
	l.entries[opHash] = &LimboEntry{Op: op, Status: Pending}
	return opHash, true, nil
}

// AwaitDeps marks opHash as waiting on deps, registering it as a waiter on
// each so a later Satisfy call returns it.
func (l *ValidationLimbo) AwaitDeps(opHash hash.Hash, status ValidationStatus, deps []hash.Hash, now int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[opHash]
	if !ok {
		return
	}
	e.Status = status
	e.Deps = deps
	e.LastTry = now
	e.NumTries++
	for _, dep := range deps {
		l.waiters[dep] = append(l.waiters[dep], opHash)
	}
}

// Satisfy returns the ops that were waiting on dep, clearing them from the
// waiter index. Callers re-enqueue these for another validation pass.
func (l *ValidationLimbo) Satisfy(dep hash.Hash) []hash.Hash {
	l.mu.Lock()
	defer l.mu.Unlock()
	waiting, ok := l.waiters[dep]
	if !ok {
		return nil
	}
	delete(l.waiters, dep)
	return waiting
}

// Advance sets opHash's status directly, used for the Pending->SysValidated
// and SysValidated->AwaitingProof->Integrated transitions that carry no new
// dependency.
func (l *ValidationLimbo) Advance(opHash hash.Hash, status ValidationStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[opHash]; ok {
		e.Status = status
	}
}

// Reject marks opHash Rejected with reason and returns the Warrant to
// gossip, per SPEC_FULL.md's supplemented warrant feature.
func (l *ValidationLimbo) Reject(opHash hash.Hash, reason string) (Warrant, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[opHash]
	if !ok {
		return Warrant{}, false
	}
	e.Status = Rejected
	e.Reason = reason
	return Warrant{OpHash: opHash, Author: e.Op.Header.Author, Reason: reason}, true
}

// Remove drops opHash from the limbo, used once it has been integrated.
func (l *ValidationLimbo) Remove(opHash hash.Hash) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, opHash)
}

// PendingByStatus returns a snapshot of ops matching status, oldest LastTry
// first, for a dispatch loop to retry.
func (l *ValidationLimbo) PendingByStatus(status ValidationStatus) []hash.Hash {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []hash.Hash
	for h, e := range l.entries {
		if e.Status == status {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return l.entries[out[i]].LastTry < l.entries[out[j]].LastTry
	})
	return out
}

// Get returns a copy of the entry for opHash.
func (l *ValidationLimbo) Get(opHash hash.Hash) (LimboEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[opHash]
	if !ok {
		return LimboEntry{}, false
	}
	return *e, true
}

// IntegrationLimbo holds SysValidated-or-later ops waiting for their turn
// in the single-writer integration workflow, per spec.md §4.6.
type IntegrationLimbo struct {
	mu    sync.Mutex
	queue []hash.Hash
	set   map[hash.Hash]struct{}
}

// NewIntegrationLimbo returns an empty IntegrationLimbo.
func NewIntegrationLimbo() *IntegrationLimbo {
	return &IntegrationLimbo{set: map[hash.Hash]struct{}{}}
}

// Push enqueues opHash if not already queued.
func (q *IntegrationLimbo) Push(opHash hash.Hash) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.set[opHash]; ok {
		return
	}
	q.set[opHash] = struct{}{}
	q.queue = append(q.queue, opHash)
}

// Pop removes and returns the oldest queued op, in FIFO order.
func (q *IntegrationLimbo) Pop() (hash.Hash, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.queue) == 0 {
		return hash.Hash{}, false
	}
	h := q.queue[0]
	q.queue = q.queue[1:]
	delete(q.set, h)
	return h, true
}

// Len reports the number of ops currently queued.
func (q *IntegrationLimbo) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// IntegratedOps is the durable index of ops that have completed
// integration, keyed by op hash, per spec.md §4.6.
type IntegratedOps struct {
	mu sync.RWMutex
	kv KV
}

// NewIntegratedOps returns an IntegratedOps index over kv.
func NewIntegratedOps(kv KV) *IntegratedOps {
	return &IntegratedOps{kv: kv}
}

// Mark records op as integrated.
func (idx *IntegratedOps) Mark(op dhtop.Op) error {
	opHash, err := op.Hash()
	if err != nil {
		return fmt.Errorf("store: hash op: %w", err)
	}
	raw, err := codec.Marshal(codec.CurrentVersion, op)
	if err != nil {
		return fmt.Errorf("store: encode op: %w", err)
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.kv.Put(tableKey(tableIntegratedOps, opHash[:]), raw)
}

// Has reports whether opHash has already been integrated.
func (idx *IntegratedOps) Has(opHash hash.Hash) (bool, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.kv.Has(tableKey(tableIntegratedOps, opHash[:]))
}

// Get returns the integrated op for opHash, if present.
func (idx *IntegratedOps) Get(opHash hash.Hash) (dhtop.Op, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	raw, err := idx.kv.Get(tableKey(tableIntegratedOps, opHash[:]))
	if err != nil {
		return dhtop.Op{}, false
	}
	var op dhtop.Op
	if err := codec.Unmarshal(raw, &op); err != nil {
		return dhtop.Op{}, false
	}
	return op, true
}
