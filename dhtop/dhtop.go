// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package dhtop implements C3: expanding one authored record into the
// fixed set of DHT operations it implies. The expansion table is grounded
// on spec.md §4.3 and on original_source/crates/holochain/src/conductor/space.rs's
// per-op-kind dispatch; the "unique form excludes signature" hashing rule
// reuses the canonical codec from C1 the same way RegisterAgentActivity
// dedups identical headers signed twice.
package dhtop

import (
	"fmt"

	"github.com/luxfi/dhtcore/hash"
	"github.com/luxfi/dhtcore/record"
)

// Kind discriminates the nine DHT operation kinds of spec.md §3/§4.3.
type Kind byte

const (
	StoreRecord Kind = iota
	StoreEntry
	RegisterAgentActivity
	RegisterUpdatedContent
	RegisterUpdatedRecord
	RegisterDeletedBy
	RegisterDeletedEntryHeader
	RegisterAddLink
	RegisterRemoveLink
)

func (k Kind) String() string {
	switch k {
	case StoreRecord:
		return "StoreRecord"
	case StoreEntry:
		return "StoreEntry"
	case RegisterAgentActivity:
		return "RegisterAgentActivity"
	case RegisterUpdatedContent:
		return "RegisterUpdatedContent"
	case RegisterUpdatedRecord:
		return "RegisterUpdatedRecord"
	case RegisterDeletedBy:
		return "RegisterDeletedBy"
	case RegisterDeletedEntryHeader:
		return "RegisterDeletedEntryHeader"
	case RegisterAddLink:
		return "RegisterAddLink"
	case RegisterRemoveLink:
		return "RegisterRemoveLink"
	default:
		return "Unknown"
	}
}

// Op is one DHT operation: the authoring signature plus enough of the
// record to be independently validatable, per spec.md §4.3.
type Op struct {
	Kind      Kind
	Signature record.Signature
	Header    record.Header
	Entry     *record.Entry // only populated for StoreRecord/StoreEntry when present
	// Basis is the hash whose location determines authority assignment
	// for this op, per spec.md §3 "DHT operation".
	Basis hash.Hash
}

// uniqueForm is the portion of an op that determines its hash: everything
// except the signature, so two signatures over the same header collapse to
// one op, per spec.md §4.3.
type uniqueForm struct {
	Kind   Kind
	Header record.Header
	Entry  *record.Entry
}

// Hash computes this op's content address from its unique form.
func (op Op) Hash() (hash.Hash, error) {
	return hash.Of(hash.KindDhtOp, uniqueForm{Kind: op.Kind, Header: op.Header, Entry: op.Entry})
}

// ProduceOpsFromElement expands el into the ordered, deterministic set of
// DHT operations its header kind implies, per spec.md §4.3's per-kind
// table. The same element always yields the same ordered multiset
// (testable property 2 of spec.md §8).
func ProduceOpsFromElement(el record.Element) ([]Op, error) {
	h := el.Signed.Header
	sig := el.Signed.Signature
	headerHash, err := el.HeaderHash()
	if err != nil {
		return nil, fmt.Errorf("dhtop: hash header: %w", err)
	}

	ops := []Op{
		{
			Kind:      StoreRecord,
			Signature: sig,
			Header:    h,
			Entry:     el.Entry,
			Basis:     headerHash,
		},
		{
			Kind:      RegisterAgentActivity,
			Signature: sig,
			Header:    h,
			Basis:     h.Author,
		},
	}

	switch h.Kind {
	case record.HeaderCreate:
		if el.Entry == nil {
			return nil, fmt.Errorf("dhtop: Create header missing entry")
		}
		ops = append(ops, Op{
			Kind:      StoreEntry,
			Signature: sig,
			Header:    h,
			Entry:     el.Entry,
			Basis:     h.Create.EntryHash,
		})

	case record.HeaderUpdate:
		if el.Entry == nil {
			return nil, fmt.Errorf("dhtop: Update header missing entry")
		}
		ops = append(ops,
			Op{Kind: StoreEntry, Signature: sig, Header: h, Entry: el.Entry, Basis: h.Update.EntryHash},
			Op{Kind: RegisterUpdatedContent, Signature: sig, Header: h, Basis: h.Update.OriginalEntryHash},
			Op{Kind: RegisterUpdatedRecord, Signature: sig, Header: h, Basis: h.Update.OriginalHeaderHash},
		)

	case record.HeaderDelete:
		ops = append(ops,
			Op{Kind: RegisterDeletedBy, Signature: sig, Header: h, Basis: h.Delete.DeletesHeaderHash},
			Op{Kind: RegisterDeletedEntryHeader, Signature: sig, Header: h, Basis: h.Delete.DeletesEntryHash},
		)

	case record.HeaderCreateLink:
		ops = append(ops, Op{Kind: RegisterAddLink, Signature: sig, Header: h, Basis: h.CreateLink.BaseHash})

	case record.HeaderDeleteLink:
		ops = append(ops, Op{Kind: RegisterRemoveLink, Signature: sig, Header: h, Basis: h.DeleteLink.BaseHash})
	}

	return ops, nil
}
