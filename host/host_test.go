// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package host

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/dhtcore/cascade"
	"github.com/luxfi/dhtcore/dhtop"
	"github.com/luxfi/dhtcore/hash"
	"github.com/luxfi/dhtcore/log"
	"github.com/luxfi/dhtcore/record"
	"github.com/luxfi/dhtcore/space"
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

type acceptKeystore struct{}

func (acceptKeystore) Sign(context.Context, hash.Hash, []byte) (record.Signature, error) {
	return record.Signature{}, nil
}
func (acceptKeystore) Verify(hash.Hash, []byte, record.Signature) bool { return true }

// acceptGuest approves every op unconditionally, standing in for the
// zome/ribosome sandbox (out of scope per §1) so tests can drive ops all
// the way through the validation/integration pipeline.
type acceptGuest struct{}

func (acceptGuest) ValidateOp(context.Context, dhtop.Op, record.Element) (bool, []hash.Hash, string, error) {
	return true, nil, "", nil
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

// newTestHost builds a Host whose space runs its validation/integration
// pipeline in the background for the lifetime of the test, so writes
// become visible through Metadata-backed reads (tombstones, link indexes)
// without the test reaching into workflow internals.
func newTestHost(t *testing.T, author hash.Hash) *Host {
	t.Helper()
	sp, err := space.New(dnaHash(1), space.Deps{
		VaultKV:      newMemKV(),
		CacheKV:      newMemKV(),
		IntegratedKV: newMemKV(),
		Network:      noNetwork{},
		Keystore:     acceptKeystore{},
		Guest:        acceptGuest{},
		Log:          log.NewNoOpLogger(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go sp.Run(ctx)

	tick := int64(0)
	clock := func() int64 {
		tick++
		return tick
	}
	h := New(author, sp, acceptKeystore{}, clock)
	// Genesis: a chain only accepts app headers after Dna and the agent
	// validation package.
	_, err = h.Chain.Append(context.Background(), h.Chain.PrepareBuilder(record.HeaderDna), nil, clock())
	require.NoError(t, err)
	_, err = h.Chain.Append(context.Background(), h.Chain.PrepareBuilder(record.HeaderAgentValidationPackage), nil, clock())
	require.NoError(t, err)
	return h
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, time.Second, time.Millisecond, msg)
}

func TestCreateThenGetResolvesLocally(t *testing.T) {
	h := newTestHost(t, agentHash(1))

	headerHash, err := h.Create(context.Background(), "note", record.Public, []byte("hello"))
	require.NoError(t, err)

	el, found, err := h.Get(context.Background(), headerHash, cascade.GetOptions{Strategy: cascade.Content})
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "hello", string(el.Entry.Bytes))
}

func TestUpdateAndDeleteTombstoneOriginal(t *testing.T) {
	h := newTestHost(t, agentHash(1))
	ctx := context.Background()

	headerHash, err := h.Create(ctx, "note", record.Public, []byte("v1"))
	require.NoError(t, err)

	updatedHash, err := h.Update(ctx, headerHash, "note", record.Public, []byte("v2"))
	require.NoError(t, err)
	require.NotEqual(t, headerHash, updatedHash)

	_, err = h.Delete(ctx, updatedHash)
	require.NoError(t, err)

	eventually(t, func() bool {
		_, found, err := h.Get(ctx, updatedHash, cascade.GetOptions{Strategy: cascade.Content})
		return err == nil && !found
	}, "deleted header must eventually stop resolving once integrated")
}

func TestCreateLinkAndGetLinksRoundTrip(t *testing.T) {
	h := newTestHost(t, agentHash(1))
	ctx := context.Background()

	base := agentHash(2)
	target := agentHash(3)
	linkHash, err := h.CreateLink(ctx, base, target, 0, 7, []byte("friend"))
	require.NoError(t, err)

	eventually(t, func() bool {
		links, err := h.GetLinks(ctx, base, 0, []byte("friend"), cascade.LinkFilter{}, cascade.GetOptions{Strategy: cascade.Content})
		return err == nil && len(links) == 1
	}, "created link must eventually be visible once integrated")

	_, err = h.DeleteLink(ctx, linkHash, base)
	require.NoError(t, err)

	eventually(t, func() bool {
		links, err := h.GetLinks(ctx, base, 0, []byte("friend"), cascade.LinkFilter{}, cascade.GetOptions{Strategy: cascade.Content})
		return err == nil && len(links) == 0
	}, "removed link must eventually stop being returned once integrated")
}

func TestDispatchAuthorizesAgainstHeldGrant(t *testing.T) {
	h := newTestHost(t, agentHash(1))
	ctx := context.Background()

	secret := [32]byte{9, 9, 9}
	caller := agentHash(2)
	_, err := h.GrantCapability(ctx, secret, []hash.Hash{caller}, []string{"do_thing"})
	require.NoError(t, err)

	called := false
	result, err := h.Dispatch(ctx, CapabilityRequest{Secret: secret, Provenance: caller, ZomeFn: "do_thing"}, func(ctx context.Context) (interface{}, error) {
		called = true
		return "ok", nil
	})
	require.NoError(t, err)
	require.True(t, called)
	require.Equal(t, "ok", result)

	_, err = h.Dispatch(ctx, CapabilityRequest{Secret: secret, Provenance: agentHash(3), ZomeFn: "do_thing"}, func(ctx context.Context) (interface{}, error) {
		t.Fatal("must not be called for an unauthorized assignee")
		return nil, nil
	})
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = h.Dispatch(ctx, CapabilityRequest{Secret: secret, Provenance: caller, ZomeFn: "other_fn"}, func(ctx context.Context) (interface{}, error) {
		t.Fatal("must not be called for an ungranted zome function")
		return nil, nil
	})
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestMustGetEntryReturnsMissingDependencyError(t *testing.T) {
	h := newTestHost(t, agentHash(1))

	unknown := hash.From(hash.KindEntry, [32]byte{42})
	_, err := h.MustGetEntry(context.Background(), unknown)
	require.ErrorIs(t, err, ErrMissingDependency)
}

func TestMustGetValidRecordRejectsDeletedHeader(t *testing.T) {
	h := newTestHost(t, agentHash(1))
	ctx := context.Background()

	headerHash, err := h.Create(ctx, "note", record.Public, []byte("v1"))
	require.NoError(t, err)
	_, err = h.Delete(ctx, headerHash)
	require.NoError(t, err)

	eventually(t, func() bool {
		_, err := h.MustGetValidRecord(ctx, headerHash)
		return errors.Is(err, ErrMissingDependency)
	}, "deleted header must eventually be rejected as an invalid record once integrated")
}

func TestAgentInfoReportsSelf(t *testing.T) {
	author := agentHash(7)
	h := newTestHost(t, author)
	info := h.AgentInfo()
	require.Equal(t, author, info.Agent)
	require.Equal(t, dnaHash(1), info.DNA)
}
