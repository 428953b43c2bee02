// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package space

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

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

func agentHash(b byte) hash.Hash {
	var d [32]byte
	d[0] = b
	return hash.From(hash.KindAgent, d)
}

func dnaHash(b byte) hash.Hash {
	var d [32]byte
	d[0] = b
	return hash.From(hash.KindDna, d)
}

func testDeps() Deps {
	return Deps{
		VaultKV:      newMemKV(),
		CacheKV:      newMemKV(),
		IntegratedKV: newMemKV(),
		Network:      noNetwork{},
		Log:          log.NewNoOpLogger(),
	}
}

func TestNewSharesStoreLimboAcrossWorkflows(t *testing.T) {
	sp, err := New(dnaHash(1), testDeps())
	require.NoError(t, err)

	require.Same(t, sp.Store.ValidationLimbo, sp.SysQueue.Limbo)
	require.Same(t, sp.Store.ValidationLimbo, sp.AppQueue.Limbo)
	require.Same(t, sp.Store.ValidationLimbo, sp.IntQueue.Limbo)
	require.Same(t, sp.Store.IntegrationLimbo, sp.IntQueue.Integ)
}

func TestSubmitOpEnqueuesAndFiresTrigger(t *testing.T) {
	sp, err := New(dnaHash(2), testDeps())
	require.NoError(t, err)

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

	opHash, err := sp.SubmitOp(op)
	require.NoError(t, err)

	e, ok := sp.Store.ValidationLimbo.Get(opHash)
	require.True(t, ok)
	require.Equal(t, store.Pending, e.Status)

	select {
	case <-sp.SysQueue.Trigger.C:
	default:
		t.Fatal("expected sys validation trigger to have fired")
	}
}

func TestManagerGetOrCreateIsLazyAndShared(t *testing.T) {
	opened := 0
	factory := func(dna hash.Hash) (store.KV, store.KV, store.KV, error) {
		opened++
		return newMemKV(), newMemKV(), newMemKV(), nil
	}
	mgr := NewManager(factory, Deps{Network: noNetwork{}, Log: log.NewNoOpLogger()})

	_, ok := mgr.Get(dnaHash(3))
	require.False(t, ok)

	sp1, err := mgr.GetOrCreate(dnaHash(3))
	require.NoError(t, err)
	require.Equal(t, 1, opened)

	sp2, err := mgr.GetOrCreate(dnaHash(3))
	require.NoError(t, err)
	require.Same(t, sp1, sp2)
	require.Equal(t, 1, opened, "second reference must not reopen storage")

	require.ElementsMatch(t, []hash.Hash{dnaHash(3)}, mgr.List())
}

type fakeCountersigningWorkspace struct{ accepted []dhtop.Op }

func (f *fakeCountersigningWorkspace) Accept(op dhtop.Op) { f.accepted = append(f.accepted, op) }

func TestReceivePublishRoutesCountersigningOpsAway(t *testing.T) {
	sp, err := New(dnaHash(4), testDeps())
	require.NoError(t, err)
	cs := &fakeCountersigningWorkspace{}
	sp.Countersigning = cs

	entry := &record.Entry{Kind: record.EntryApp, Bytes: []byte("normal")}
	entryHash, err := entry.Hash()
	require.NoError(t, err)
	normalHeader := record.Header{
		Kind:   record.HeaderCreate,
		Author: agentHash(1),
		Create: &record.CreateFields{EntryHash: entryHash, EntryType: "note"},
	}
	normalOp := dhtop.Op{Kind: dhtop.StoreRecord, Header: normalHeader, Entry: entry, Basis: entryHash}

	csEntry := &record.Entry{Kind: record.EntryApp, Bytes: []byte("countersigned")}
	csEntryHash, err := csEntry.Hash()
	require.NoError(t, err)
	csHeader := record.Header{
		Kind:   record.HeaderCreate,
		Author: agentHash(2),
		Create: &record.CreateFields{EntryHash: csEntryHash, EntryType: "note"},
	}
	csOp := dhtop.Op{Kind: dhtop.StoreRecord, Header: csHeader, Entry: csEntry, Basis: csEntryHash}

	err = sp.ReceivePublish(context.Background(), []ReceivedOp{
		{Op: normalOp},
		{Op: csOp, CountersigningSession: true},
	})
	require.NoError(t, err)

	require.Len(t, cs.accepted, 1)
	require.Equal(t, csEntryHash, cs.accepted[0].Header.Create.EntryHash)

	pendingHashes := sp.Store.ValidationLimbo.PendingByStatus(store.Pending)
	require.Len(t, pendingHashes, 1)
	entry, ok := sp.Store.ValidationLimbo.Get(pendingHashes[0])
	require.True(t, ok)
	require.Equal(t, "note", entry.Op.Header.Create.EntryType)
}

func TestReceivePublishErrorsWithoutCountersigningWorkspace(t *testing.T) {
	sp, err := New(dnaHash(5), testDeps())
	require.NoError(t, err)

	entry := &record.Entry{Kind: record.EntryApp, Bytes: []byte("countersigned")}
	entryHash, err := entry.Hash()
	require.NoError(t, err)
	header := record.Header{
		Kind:   record.HeaderCreate,
		Author: agentHash(1),
		Create: &record.CreateFields{EntryHash: entryHash, EntryType: "note"},
	}
	op := dhtop.Op{Kind: dhtop.StoreRecord, Header: header, Entry: entry, Basis: entryHash}

	err = sp.ReceivePublish(context.Background(), []ReceivedOp{{Op: op, CountersigningSession: true}})
	require.Error(t, err)
}
