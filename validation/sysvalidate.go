// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validation

import (
	"context"

	"github.com/luxfi/dhtcore/cascade"
	"github.com/luxfi/dhtcore/dhtop"
	"github.com/luxfi/dhtcore/hash"
	"github.com/luxfi/dhtcore/record"
)

// sysOutcome is the result of a structural check: either the op is ready
// to advance, it needs a dependency fetched first, or it is structurally
// invalid and must be rejected.
type sysOutcome struct {
	ready   bool
	deps    []hash.Hash
	reason  string
	invalid bool
}

// sysValidate runs the structural (dependency-independent once its deps are
// in hand) checks of spec.md §4.6: the header's chain invariants against its
// immediate predecessor, and — when the op carries an entry — the
// entry-hash match already enforced by record.Chain.Append on
// the author's own node, re-checked here because a gossiped op did not pass
// through that code path.
func sysValidate(ctx context.Context, op dhtop.Op, cas *cascade.Cascade) (sysOutcome, error) {
	h := op.Header

	if h.PrevHeader != nil {
		prevEl, found, err := cas.GetHeader(ctx, *h.PrevHeader, cascade.GetOptions{Strategy: cascade.Content})
		if err != nil {
			return sysOutcome{}, err
		}
		if !found {
			return sysOutcome{deps: []hash.Hash{*h.PrevHeader}}, nil
		}
		if err := record.ValidateInvariants(h, &prevEl.Signed.Header); err != nil {
			return sysOutcome{invalid: true, reason: err.Error()}, nil
		}
	} else if err := record.ValidateInvariants(h, nil); err != nil {
		return sysOutcome{invalid: true, reason: err.Error()}, nil
	}

	// Only StoreRecord/StoreEntry ops carry an Entry payload (dhtop's
	// expansion table); every other op kind derived from a
	// Create/Update header references the entry by hash only, so the
	// entry-match check does not apply to them.
	if op.Kind == dhtop.StoreRecord || op.Kind == dhtop.StoreEntry {
		if wantHash, hasEntry := h.EntryHash(); hasEntry {
			if op.Entry == nil {
				return sysOutcome{invalid: true, reason: "op: header declares an entry hash but carries none"}, nil
			}
			gotHash, err := op.Entry.Hash()
			if err != nil {
				return sysOutcome{}, err
			}
			if gotHash != wantHash {
				return sysOutcome{invalid: true, reason: "op: entry hash does not match header"}, nil
			}
		}
	}

	return sysOutcome{ready: true}, nil
}
