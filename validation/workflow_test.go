// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package validation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/dhtcore/cascade"
	"github.com/luxfi/dhtcore/dhtop"
	"github.com/luxfi/dhtcore/hash"
	"github.com/luxfi/dhtcore/log"
	"github.com/luxfi/dhtcore/record"
	"github.com/luxfi/dhtcore/store"
)

var errNotFound = errors.New("memkv: not found")

type memKV struct{ data map[string][]byte }

func newMemKV() memKV { return memKV{data: map[string][]byte{}} }

func (m memKV) Has(key []byte) (bool, error) { _, ok := m.data[string(key)]; return ok, nil }
func (m memKV) Get(key []byte) ([]byte, error) {
	v, ok := m.data[string(key)]
	if !ok {
		return nil, errNotFound
	}
	return v, nil
}
func (m memKV) Put(key, value []byte) error {
	m.data[string(key)] = append([]byte(nil), value...)
	return nil
}
func (m memKV) Delete(key []byte) error { delete(m.data, string(key)); return nil }

type noNetwork struct{}

func (noNetwork) FetchElement(context.Context, hash.Hash) (record.Element, bool, error) {
	return record.Element{}, false, nil
}
func (noNetwork) FetchEntryHeaders(context.Context, hash.Hash) ([]record.Element, error) {
	return nil, nil
}
func (noNetwork) FetchLinks(context.Context, hash.Hash, uint8, []byte) ([]record.Element, error) {
	return nil, nil
}

// acceptKeystore always agrees with itself, suitable for exercising the
// workflow plumbing without a real signing capability.
type acceptKeystore struct{}

func (acceptKeystore) Sign(context.Context, hash.Hash, []byte) (record.Signature, error) {
	return record.Signature{}, nil
}
func (acceptKeystore) Verify(hash.Hash, []byte, record.Signature) bool { return true }

func agentHash(b byte) hash.Hash {
	var d [32]byte
	d[0] = b
	return hash.From(hash.KindAgent, d)
}

func TestIntegrationWorkflowAppliesStoreRecord(t *testing.T) {
	s := store.New(newMemKV(), newMemKV(), newMemKV())
	limbo := store.NewValidationLimbo()
	integ := store.NewIntegrationLimbo()

	entry := &record.Entry{Kind: record.EntryApp, Bytes: []byte("hi")}
	entryHash, err := entry.Hash()
	require.NoError(t, err)
	header := record.Header{
		Kind:      record.HeaderCreate,
		Author:    agentHash(1),
		Timestamp: 1,
		Sequence:  0,
		Create:    &record.CreateFields{EntryHash: entryHash, EntryType: "note"},
	}
	op := dhtop.Op{Kind: dhtop.StoreRecord, Header: header, Entry: entry, Basis: entryHash}
	opHash, added, err := limbo.Add(op)
	require.NoError(t, err)
	require.True(t, added)
	limbo.Advance(opHash, store.AwaitingProof)

	w := &IntegrationWorkflow{
		Limbo:    limbo,
		Integ:    integ,
		Store:    s,
		Keystore: acceptKeystore{},
		Trigger:  NewTrigger(),
		Log:      log.NewNoOpLogger(),
	}
	integ.Push(opHash)
	w.drain()

	headerHash, err := record.SignedHeader{Header: header}.Hash()
	require.NoError(t, err)
	el, found := s.Vault.GetElement(headerHash)
	require.True(t, found)
	require.Equal(t, "hi", string(el.Entry.Bytes))

	has, err := s.IntegratedOps.Has(opHash)
	require.NoError(t, err)
	require.True(t, has)

	_, stillPending := limbo.Get(opHash)
	require.False(t, stillPending)
}

func TestSysValidateAcceptsDerivedOpWithNoEntryPayload(t *testing.T) {
	s := store.New(newMemKV(), newMemKV(), newMemKV())
	cas := cascade.New(s, noNetwork{})

	original := &record.Entry{Kind: record.EntryApp, Bytes: []byte("v1")}
	originalEntryHash, err := original.Hash()
	require.NoError(t, err)
	createHeader := record.Header{
		Kind:      record.HeaderCreate,
		Author:    agentHash(1),
		Timestamp: 1,
		Sequence:  0,
		Create:    &record.CreateFields{EntryHash: originalEntryHash, EntryType: "note"},
	}
	createHeaderHash, err := record.SignedHeader{Header: createHeader}.Hash()
	require.NoError(t, err)
	require.NoError(t, s.Vault.Put(record.Element{Signed: record.SignedHeader{Header: createHeader}, Entry: original}))

	updated := &record.Entry{Kind: record.EntryApp, Bytes: []byte("v2")}
	updatedEntryHash, err := updated.Hash()
	require.NoError(t, err)
	updateHeader := record.Header{
		Kind:       record.HeaderUpdate,
		Author:     agentHash(1),
		Timestamp:  2,
		Sequence:   1,
		PrevHeader: &createHeaderHash,
		Update: &record.UpdateFields{
			EntryHash:          updatedEntryHash,
			EntryType:          "note",
			OriginalHeaderHash: createHeaderHash,
			OriginalEntryHash:  originalEntryHash,
		},
	}

	// RegisterUpdatedContent never carries an Entry payload even though
	// its header kind (Update) declares an entry hash; sysValidate must
	// not reject it on that account.
	op := dhtop.Op{Kind: dhtop.RegisterUpdatedContent, Header: updateHeader, Basis: originalEntryHash}
	outcome, err := sysValidate(context.Background(), op, cas)
	require.NoError(t, err)
	require.True(t, outcome.ready)
	require.False(t, outcome.invalid)
}

func TestSysValidationRejectsBadSequence(t *testing.T) {
	s := store.New(newMemKV(), newMemKV(), newMemKV())
	cas := cascade.New(s, noNetwork{})
	limbo := store.NewValidationLimbo()

	header := record.Header{
		Kind:     record.HeaderCreateLink,
		Author:   agentHash(2),
		Sequence: 5, // non-zero with no PrevHeader: invalid
		CreateLink: &record.CreateLinkFields{
			BaseHash: agentHash(3), ZomeIndex: 0, LinkType: 0, Tag: []byte("t"),
		},
	}
	op := dhtop.Op{Kind: dhtop.RegisterAddLink, Header: header, Basis: agentHash(3)}
	opHash, _, err := limbo.Add(op)
	require.NoError(t, err)

	w := &SysValidationWorkflow{
		Limbo:   limbo,
		Cascade: cas,
		Trigger: NewTrigger(),
		Cfg:     DefaultConfig(),
		Log:     log.NewNoOpLogger(),
	}
	w.drain(context.Background())

	e, ok := limbo.Get(opHash)
	require.True(t, ok)
	require.Equal(t, store.Rejected, e.Status)
}
