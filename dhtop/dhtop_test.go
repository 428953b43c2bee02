// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package dhtop_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/dhtcore/dhtop"
	"github.com/luxfi/dhtcore/hash"
	"github.com/luxfi/dhtcore/record"
)

func agentHash(b byte) hash.Hash {
	var d [32]byte
	d[0] = b
	return hash.From(hash.KindAgent, d)
}

func TestProduceOpsFromElementDeterministic(t *testing.T) {
	entry := &record.Entry{Kind: record.EntryApp, Bytes: []byte("payload")}
	entryHash, err := entry.Hash()
	require.NoError(t, err)

	el := record.Element{
		Signed: record.SignedHeader{
			Header: record.Header{
				Kind:      record.HeaderCreate,
				Author:    agentHash(1),
				Timestamp: 10,
				Sequence:  3,
				Create:    &record.CreateFields{EntryHash: entryHash, EntryType: "note", Visibility: record.Public},
			},
		},
		Entry: entry,
	}

	first, err := dhtop.ProduceOpsFromElement(el)
	require.NoError(t, err)
	second, err := dhtop.ProduceOpsFromElement(el)
	require.NoError(t, err)
	require.Equal(t, len(first), len(second))

	require.Len(t, first, 3)
	require.Equal(t, dhtop.StoreRecord, first[0].Kind)
	require.Equal(t, dhtop.RegisterAgentActivity, first[1].Kind)
	require.Equal(t, dhtop.StoreEntry, first[2].Kind)
	require.Equal(t, entryHash, first[2].Basis)

	for i := range first {
		h1, err := first[i].Hash()
		require.NoError(t, err)
		h2, err := second[i].Hash()
		require.NoError(t, err)
		require.Equal(t, h1, h2)
	}
}

func TestDeleteOpsBasisIsDeletedTarget(t *testing.T) {
	el := record.Element{
		Signed: record.SignedHeader{
			Header: record.Header{
				Kind:     record.HeaderDelete,
				Author:   agentHash(2),
				Sequence: 5,
				Delete: &record.DeleteFields{
					DeletesHeaderHash: agentHash(9),
					DeletesEntryHash:  agentHash(8),
				},
			},
		},
	}
	ops, err := dhtop.ProduceOpsFromElement(el)
	require.NoError(t, err)
	require.Len(t, ops, 4)
	kinds := []dhtop.Kind{ops[2].Kind, ops[3].Kind}
	require.ElementsMatch(t, []dhtop.Kind{dhtop.RegisterDeletedBy, dhtop.RegisterDeletedEntryHeader}, kinds)
}

func TestOpHashExcludesSignature(t *testing.T) {
	el := record.Element{
		Signed: record.SignedHeader{
			Header: record.Header{Kind: record.HeaderDna, Author: agentHash(3), Sequence: 0},
		},
	}
	ops1, err := dhtop.ProduceOpsFromElement(el)
	require.NoError(t, err)

	el.Signed.Signature = record.Signature{0xFF}
	ops2, err := dhtop.ProduceOpsFromElement(el)
	require.NoError(t, err)

	h1, err := ops1[0].Hash()
	require.NoError(t, err)
	h2, err := ops2[0].Hash()
	require.NoError(t, err)
	require.Equal(t, h1, h2, "op hash must not depend on the carried signature")
}
