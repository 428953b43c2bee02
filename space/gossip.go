// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package space

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/luxfi/dhtcore/arc"
	"github.com/luxfi/dhtcore/dhtop"
	"github.com/luxfi/dhtcore/hash"
	"github.com/luxfi/dhtcore/spacetime"
)

// The Query*/Fetch* methods below are the per-space query surface a
// networking layer dispatches incoming gossip requests to, one method per
// query kind,
// generalized from networking/sender.Sender's request/response
// method-per-query shape (consensus frontier queries) to DHT op and region
// queries, per spec.md §4.9.

// QueryOpHashes returns the hashes of every op this space holds integrated
// within a requested region, the first half of a gossip round's
// hash-list-then-fetch exchange. It draws its candidates from
// knownIntegratedOpHashes, which enumerates nothing, so the returned list is
// always empty.
func (s *Space) QueryOpHashes(region arcRegion) ([]hash.Hash, error) {
	var out []hash.Hash
	for _, opHash := range s.knownIntegratedOpHashes() {
		op, ok := s.Store.IntegratedOps.Get(opHash)
		if !ok {
			continue
		}
		if region.contains(op.Basis.Location()) {
			out = append(out, opHash)
		}
	}
	return out, nil
}

// arcRegion narrows QueryOpHashes/QueryRegionSet to one arc, kept local to
// this file since it is a query parameter, not a stored type.
type arcRegion struct {
	startLoc, endLocExclusive uint64
}

func (r arcRegion) contains(loc uint32) bool {
	l := uint64(loc)
	if r.startLoc <= r.endLocExclusive {
		return l >= r.startLoc && l < r.endLocExclusive
	}
	return l >= r.startLoc || l < r.endLocExclusive // wraps the ring
}

// knownIntegratedOpHashes is a placeholder enumeration hook: a production
// IntegratedOps index would support range iteration over its KV; this
// space package's IntegratedOps (store.IntegratedOps) intentionally keeps
// only point lookups (Has/Get/Mark), so full enumeration is left to a
// KV-specific iterator a caller's storage layer provides. Returning nil
// here makes that gap explicit rather than pretending it's covered.
func (s *Space) knownIntegratedOpHashes() []hash.Hash { return nil }

// QueryRegionSet returns a RegionSet over s.LocalArc at topology's
// SpaceQuantum, for the peer to diff against its own and request only the
// mismatched cells, per spec.md §4.8/§4.9. No ops are recorded into it, so
// every cell it returns is empty.
func (s *Space) QueryRegionSet(topology spacetime.Topology, now time.Time) *spacetime.RegionSet {
	coverage := arc.NewArcSet(topology.SpaceQuantum, s.LocalArc)
	return spacetime.NewRegionSet(topology, coverage, now)
}

// FetchOpData returns the full element for each requested op, the second
// half of a gossip round's hash-list-then-fetch exchange.
func (s *Space) FetchOpData(opHashes []hash.Hash) ([]dhtop.Op, error) {
	out := make([]dhtop.Op, 0, len(opHashes))
	for _, h := range opHashes {
		op, ok := s.Store.IntegratedOps.Get(h)
		if !ok {
			continue
		}
		out = append(out, op)
	}
	return out, nil
}

// ReceivePublish enqueues every op in ops for validation. A
// CountersigningSession op is routed to a distinct workspace instead of the
// normal validation limbo, per SPEC_FULL.md's supplemented countersigning
// feature drawn from original_source's conductor/space.rs.
func (s *Space) ReceivePublish(ctx context.Context, ops []ReceivedOp) error {
	for _, ro := range ops {
		if ro.CountersigningSession {
			s.Log.Debug("routing op to countersigning workspace", zap.String("op", ro.Op.Kind.String()))
			if s.Countersigning == nil {
				return fmt.Errorf("space: received countersigning op with no workspace configured")
			}
			s.Countersigning.Accept(ro.Op)
			continue
		}
		if _, err := s.SubmitOp(ro.Op); err != nil {
			return err
		}
	}
	return nil
}

// ReceivedOp pairs an incoming op with the routing flag original_source's
// conductor/space.rs carries on publish, per SPEC_FULL.md's supplemented
// countersigning feature.
type ReceivedOp struct {
	Op                    dhtop.Op
	CountersigningSession bool
}

// CountersigningWorkspace is the capability a countersigning-session op is
// routed to instead of the normal validation limbo; its session protocol is
// out of SPEC_FULL.md's scope (no component models multi-party session
// coordination), so only the routing boundary is implemented here.
type CountersigningWorkspace interface {
	Accept(op dhtop.Op)
}
