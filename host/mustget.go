// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package host

import (
	"context"
	"errors"
	"fmt"

	"github.com/luxfi/dhtcore/cascade"
	"github.com/luxfi/dhtcore/hash"
	"github.com/luxfi/dhtcore/record"
)

// ErrMissingDependency distinguishes "this op declares a dependency no
// local or known-peer state can currently resolve" from an ordinary
// not-found result, so app validation can suspend the op (AwaitingAppDeps)
// rather than reject it, per SPEC_FULL.md's supplemented must_get_*
// feature (grounded on crates/hdk/src/entry.rs's must_get_* family).
var ErrMissingDependency = errors.New("host: missing dependency")

// MustGetEntry resolves entryHash via the network strategy (forcing a fresh
// round rather than trusting a possibly-stale cache) and returns
// ErrMissingDependency if it cannot be resolved, rather than a plain
// not-found result.
func (h *Host) MustGetEntry(ctx context.Context, entryHash hash.Hash) (record.Element, error) {
	el, found, err := h.Space.Cascade.GetEntry(ctx, entryHash, cascade.GetOptions{Strategy: cascade.Network})
	if err != nil {
		return record.Element{}, fmt.Errorf("host: must_get_entry %s: %w", entryHash, err)
	}
	if !found {
		return record.Element{}, fmt.Errorf("%w: entry %s", ErrMissingDependency, entryHash)
	}
	return el, nil
}

// MustGetHeader resolves headerHash via the network strategy and returns
// ErrMissingDependency if it cannot be resolved.
func (h *Host) MustGetHeader(ctx context.Context, headerHash hash.Hash) (record.Element, error) {
	el, found, err := h.Space.Cascade.GetHeader(ctx, headerHash, cascade.GetOptions{Strategy: cascade.Network})
	if err != nil {
		return record.Element{}, fmt.Errorf("host: must_get_header %s: %w", headerHash, err)
	}
	if !found {
		return record.Element{}, fmt.Errorf("%w: header %s", ErrMissingDependency, headerHash)
	}
	return el, nil
}

// MustGetValidRecord resolves headerHash like MustGetHeader, additionally
// requiring the element not be tombstoned by a Delete, since a record
// rejected or superseded by deletion is not "valid" in the sense app
// validation logic depends on.
func (h *Host) MustGetValidRecord(ctx context.Context, headerHash hash.Hash) (record.Element, error) {
	el, err := h.MustGetHeader(ctx, headerHash)
	if err != nil {
		return record.Element{}, err
	}
	if len(h.Space.Store.Metadata.DeletesOnHeader(headerHash)) > 0 {
		return record.Element{}, fmt.Errorf("%w: header %s is deleted, not a valid record", ErrMissingDependency, headerHash)
	}
	return el, nil
}
