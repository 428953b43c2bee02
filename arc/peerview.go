// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package arc

import (
	"fmt"
	"sort"
	"sync"

	luxids "github.com/luxfi/ids"
	luxvalidators "github.com/luxfi/validators"

	"github.com/luxfi/dhtcore/hash"
)

// Peer is one remote agent's claimed arc, generalized from
// validators/validators.go's Validator (ID + Light/weight) to an agent
// identified by hash plus the arc it claims to cover instead of a stake
// weight.
type Peer struct {
	Agent hash.Hash
	Arc   Arc
}

// PeerView tracks every remote agent's claimed arc for one space,
// generalized from validators/validators.go's Set/Manager ("known identity
// + weight") shape to "known identity + coverage", per spec.md §4.7.
type PeerView struct {
	mu    sync.RWMutex
	peers map[hash.Hash]Arc
}

// NewPeerView returns an empty PeerView.
func NewPeerView() *PeerView {
	return &PeerView{peers: map[hash.Hash]Arc{}}
}

// Set records or replaces agent's claimed arc.
func (v *PeerView) Set(agent hash.Hash, a Arc) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.peers[agent] = a
}

// Remove drops agent from the view, mirroring
// SetCallbackListener.OnValidatorRemoved's role for validator sets.
func (v *PeerView) Remove(agent hash.Hash) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.peers, agent)
}

// Has reports whether agent is known.
func (v *PeerView) Has(agent hash.Hash) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.peers[agent]
	return ok
}

// Len reports how many peers are known.
func (v *PeerView) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.peers)
}

// List returns a snapshot of every known peer.
func (v *PeerView) List() []Peer {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]Peer, 0, len(v.peers))
	for agent, a := range v.peers {
		out = append(out, Peer{Agent: agent, Arc: a})
	}
	return out
}

// CoveringLoc returns every known peer whose claimed arc contains loc, the
// authority set a cascade or gossip round consults for that location.
func (v *PeerView) CoveringLoc(loc uint32) []Peer {
	v.mu.RLock()
	defer v.mu.RUnlock()
	var out []Peer
	for agent, a := range v.peers {
		if a.Contains(loc) {
			out = append(out, Peer{Agent: agent, Arc: a})
		}
	}
	return out
}

// ArqStrat ("arc resize strategy") is the target this node sizes its own
// arc against: a minimum number of peers it wants covering any location it
// itself covers, per spec.md §4.7's coverage-target redesign.
type ArqStrat struct {
	MinRedundantCoverage int
}

// DefaultArqStrat returns a conservative default target.
func DefaultArqStrat() ArqStrat {
	return ArqStrat{MinRedundantCoverage: 3}
}

// Resize grows or shrinks current to move its coverage fraction toward
// strat's redundancy target, given the peer view's aggregate coverage
// density. It halves Count (shrink) when local density already exceeds the
// target with margin, and doubles Count (grow, up to full-ring) when
// density falls short, keeping StartLoc and Power unchanged.
func (v *PeerView) Resize(current Arc, strat ArqStrat) Arc {
	if current.Empty() {
		return current
	}
	density := v.densityAt(current.StartLoc)
	switch {
	case density > strat.MinRedundantCoverage+1 && current.Count > 1:
		return Arc{StartLoc: current.StartLoc, Power: current.Power, Count: current.Count / 2}
	case density < strat.MinRedundantCoverage && !current.Full():
		grown, ok := current.RequantizeDown(current.Power)
		if !ok {
			return current
		}
		grown.Count *= 2
		return grown
	default:
		return current
	}
}

func (v *PeerView) densityAt(loc uint32) int {
	return len(v.CoveringLoc(loc))
}

// SeedFromValidatorSet seeds view with one contiguous, non-overlapping arc
// per known validator at the given quantum power, sized proportionally to
// stake weight against the full ring. This is the direct wiring of
// validators/validators.go's github.com/luxfi/validators.GetValidatorOutput
// ("known identity + weight") that PeerView's own doc comment generalizes
// from: a validator's NodeID becomes its agent hash (content-hashed, since
// ids.NodeID and hash.Hash are different widths) and its Weight becomes a
// coverage fraction instead of a consensus vote weight. Validators are
// assigned arcs in agent-hash order so two callers seeding from the same
// set always produce the same partition; the last validator absorbs
// whatever quanta integer division leaves over, so the arcs still tile the
// full ring.
func SeedFromValidatorSet(view *PeerView, power uint8, vdrs map[luxids.NodeID]*luxvalidators.GetValidatorOutput) error {
	if power > 32 {
		return fmt.Errorf("arc: quantum power %d exceeds the 32-bit ring", power)
	}
	if len(vdrs) == 0 {
		return nil
	}

	type weighted struct {
		agent  hash.Hash
		weight uint64
	}
	ordered := make([]weighted, 0, len(vdrs))
	var totalWeight uint64
	for nodeID, out := range vdrs {
		agent, err := hash.Of(hash.KindAgent, nodeID.Bytes())
		if err != nil {
			return fmt.Errorf("arc: hash validator %s: %w", nodeID, err)
		}
		ordered = append(ordered, weighted{agent: agent, weight: out.Weight})
		totalWeight += out.Weight
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].agent.String() < ordered[j].agent.String() })

	totalQuanta := uint64(1) << (32 - power)
	var cursor uint64
	for i, w := range ordered {
		var count uint64
		switch {
		case i == len(ordered)-1:
			count = totalQuanta - cursor
		case totalWeight > 0:
			count = w.weight * totalQuanta / totalWeight
		}
		view.Set(w.agent, Arc{StartLoc: uint32(cursor) << power, Power: power, Count: count})
		cursor += count
	}
	return nil
}
