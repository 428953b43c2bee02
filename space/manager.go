// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package space

import (
	"fmt"
	"sync"

	"github.com/luxfi/dhtcore/hash"
	"github.com/luxfi/dhtcore/store"
)

// KVFactory opens (or creates) the three KV handles a new Space needs for
// dna. Kept as a factory rather than a fixed set of handles so a Manager
// hosting many DNAs can defer opening storage until a space is first
// referenced.
type KVFactory func(dna hash.Hash) (vault, cache, integrated store.KV, err error)

// Manager is the process-wide registry of spaces, constructing each lazily
// on first reference and handing out the same shared handle to every
// subsequent caller, grounded on the teacher's "construct on first
// reference, hand out shared handles" chains/atomic pattern.
type Manager struct {
	mu       sync.Mutex
	spaces   map[hash.Hash]*Space
	kv       KVFactory
	depsBase Deps
}

// NewManager returns an empty Manager. depsBase supplies every Deps field
// except the per-DNA KV handles, which kv opens on demand.
func NewManager(kv KVFactory, depsBase Deps) *Manager {
	return &Manager{spaces: map[hash.Hash]*Space{}, kv: kv, depsBase: depsBase}
}

// GetOrCreate returns the existing Space for dna, or constructs one if this
// is the first reference.
func (m *Manager) GetOrCreate(dna hash.Hash) (*Space, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sp, ok := m.spaces[dna]; ok {
		return sp, nil
	}

	vault, cache, integrated, err := m.kv(dna)
	if err != nil {
		return nil, fmt.Errorf("space manager: open storage for %s: %w", dna.String(), err)
	}
	deps := m.depsBase
	deps.VaultKV, deps.CacheKV, deps.IntegratedKV = vault, cache, integrated

	sp, err := New(dna, deps)
	if err != nil {
		return nil, fmt.Errorf("space manager: construct space for %s: %w", dna.String(), err)
	}
	m.spaces[dna] = sp
	return sp, nil
}

// Get returns the already-constructed Space for dna, or ok=false if none
// has been referenced yet.
func (m *Manager) Get(dna hash.Hash) (*Space, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sp, ok := m.spaces[dna]
	return sp, ok
}

// List returns every DNA hash with a constructed space.
func (m *Manager) List() []hash.Hash {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]hash.Hash, 0, len(m.spaces))
	for dna := range m.spaces {
		out = append(out, dna)
	}
	return out
}
