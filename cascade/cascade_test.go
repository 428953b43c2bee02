// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cascade_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/dhtcore/cascade"
	"github.com/luxfi/dhtcore/hash"
	"github.com/luxfi/dhtcore/record"
	"github.com/luxfi/dhtcore/store"
)

var errNotFound = errors.New("memkv: not found")

// fakeNetwork answers from a fixed, in-memory fixture of elements, keyed by
// header hash, simulating peers that already hold what the local node
// lacks.
type fakeNetwork struct {
	byHeader map[hash.Hash]record.Element
	byEntry  map[hash.Hash][]record.Element
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{byHeader: map[hash.Hash]record.Element{}, byEntry: map[hash.Hash][]record.Element{}}
}

func (n *fakeNetwork) FetchElement(_ context.Context, headerHash hash.Hash) (record.Element, bool, error) {
	el, ok := n.byHeader[headerHash]
	return el, ok, nil
}

func (n *fakeNetwork) FetchEntryHeaders(_ context.Context, entryHash hash.Hash) ([]record.Element, error) {
	return n.byEntry[entryHash], nil
}

func (n *fakeNetwork) FetchLinks(_ context.Context, base hash.Hash, zome uint8, tag []byte) ([]record.Element, error) {
	return nil, nil
}

// memKV is a minimal in-memory store.KV for tests.
type memKV struct{ data map[string][]byte }

func (m memKV) Has(key []byte) (bool, error) {
	_, ok := m.data[string(key)]
	return ok, nil
}

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

func (m memKV) Delete(key []byte) error {
	delete(m.data, string(key))
	return nil
}

func agentHash(b byte) hash.Hash {
	var d [32]byte
	d[0] = b
	return hash.From(hash.KindAgent, d)
}

func makeCreate(author hash.Hash, seq uint32, ts int64, payload string) (record.Element, hash.Hash) {
	entry := &record.Entry{Kind: record.EntryApp, Bytes: []byte(payload)}
	entryHash, _ := entry.Hash()
	el := record.Element{
		Signed: record.SignedHeader{
			Header: record.Header{
				Kind:      record.HeaderCreate,
				Author:    author,
				Timestamp: ts,
				Sequence:  seq,
				Create:    &record.CreateFields{EntryHash: entryHash, EntryType: "note", Visibility: record.Public},
			},
		},
		Entry: entry,
	}
	return el, entryHash
}

func newStore() *store.Store {
	return store.New(memKV{data: map[string][]byte{}}, memKV{data: map[string][]byte{}}, memKV{data: map[string][]byte{}})
}

func TestGetHeaderFallsBackToNetworkAndCaches(t *testing.T) {
	net := newFakeNetwork()
	el, _ := makeCreate(agentHash(1), 0, 10, "hello")
	headerHash, err := el.HeaderHash()
	require.NoError(t, err)
	net.byHeader[headerHash] = el

	c := cascade.New(newStore(), net)

	got, found, err := c.GetHeader(context.Background(), headerHash, cascade.GetOptions{Strategy: cascade.Content})
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, el.Entry.Bytes, got.Entry.Bytes)

	cached, found := c.Store.Cache.GetElement(headerHash)
	require.True(t, found)
	require.Equal(t, el.Entry.Bytes, cached.Entry.Bytes)
}

func TestGetHeaderHonorsTombstone(t *testing.T) {
	net := newFakeNetwork()
	el, _ := makeCreate(agentHash(1), 0, 10, "hello")
	headerHash, err := el.HeaderHash()
	require.NoError(t, err)

	s := newStore()
	require.NoError(t, s.Vault.Put(el))
	s.Metadata.AddDeleteOnHeader(headerHash, agentHash(99), 20)

	c := cascade.New(s, net)
	_, found, err := c.GetHeader(context.Background(), headerHash, cascade.GetOptions{Strategy: cascade.Content})
	require.NoError(t, err)
	require.False(t, found)
}

func TestGetEntryPicksOldestLiveHeader(t *testing.T) {
	net := newFakeNetwork()
	author := agentHash(1)
	el1, entryHash := makeCreate(author, 0, 10, "v1")
	h1, err := el1.HeaderHash()
	require.NoError(t, err)

	s := newStore()
	require.NoError(t, s.Vault.Put(el1))
	s.Metadata.AddHeaderOnEntry(entryHash, h1, 10)

	c := cascade.New(s, net)
	got, found, err := c.GetEntry(context.Background(), entryHash, cascade.GetOptions{Strategy: cascade.Content})
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "v1", string(got.Entry.Bytes))
}

func TestGetLinksFiltersRemoved(t *testing.T) {
	net := newFakeNetwork()
	base := agentHash(5)
	add := record.Element{
		Signed: record.SignedHeader{
			Header: record.Header{
				Kind:       record.HeaderCreateLink,
				Author:     agentHash(1),
				Sequence:   0,
				CreateLink: &record.CreateLinkFields{BaseHash: base, TargetHash: agentHash(6), ZomeIndex: 0, LinkType: 1, Tag: []byte("t")},
			},
		},
	}
	addHash, err := add.HeaderHash()
	require.NoError(t, err)

	s := newStore()
	require.NoError(t, s.Vault.Put(add))
	s.Metadata.AddLink(base, 0, []byte("t"), addHash, 5)

	c := cascade.New(s, net)
	links, err := c.GetLinks(context.Background(), base, 0, []byte("t"), cascade.LinkFilter{}, cascade.GetOptions{Strategy: cascade.Content})
	require.NoError(t, err)
	require.Len(t, links, 1)

	s.Metadata.RemoveLink(addHash, agentHash(9))
	links, err = c.GetLinks(context.Background(), base, 0, []byte("t"), cascade.LinkFilter{}, cascade.GetOptions{Strategy: cascade.Content})
	require.NoError(t, err)
	require.Empty(t, links)
}
