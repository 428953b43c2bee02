// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	luxdb "github.com/luxfi/database"
)

var errLuxDBNotFound = errors.New("memluxdb: not found")

// memLuxDB is a minimal in-memory github.com/luxfi/database.Database, stood
// in for the real pebble/leveldb-backed implementation the teacher's engine
// packages construct, so FromLuxDB can be exercised without a live database.
type memLuxDB struct{ data map[string][]byte }

func newMemLuxDB() *memLuxDB { return &memLuxDB{data: map[string][]byte{}} }

func (m *memLuxDB) Has(key []byte) (bool, error) { _, ok := m.data[string(key)]; return ok, nil }

func (m *memLuxDB) Get(key []byte) ([]byte, error) {
	v, ok := m.data[string(key)]
	if !ok {
		return nil, errLuxDBNotFound
	}
	return v, nil
}

func (m *memLuxDB) Put(key, value []byte) error {
	m.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (m *memLuxDB) Delete(key []byte) error { delete(m.data, string(key)); return nil }

func (m *memLuxDB) NewBatch() luxdb.Batch { return &memLuxBatch{db: m} }

func (m *memLuxDB) Close() error { return nil }

type luxBatchOp struct {
	del   bool
	key   []byte
	value []byte
}

type memLuxBatch struct {
	db  *memLuxDB
	ops []luxBatchOp
}

func (b *memLuxBatch) Put(key, value []byte) error {
	b.ops = append(b.ops, luxBatchOp{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
	return nil
}

func (b *memLuxBatch) Delete(key []byte) error {
	b.ops = append(b.ops, luxBatchOp{del: true, key: append([]byte(nil), key...)})
	return nil
}

func (b *memLuxBatch) Size() int { return len(b.ops) }

func (b *memLuxBatch) Write() error {
	for _, op := range b.ops {
		if op.del {
			_ = b.db.Delete(op.key)
			continue
		}
		_ = b.db.Put(op.key, op.value)
	}
	return nil
}

func (b *memLuxBatch) Reset() { b.ops = nil }

func (b *memLuxBatch) Replay(w luxdb.Writer) error {
	for _, op := range b.ops {
		if op.del {
			if err := w.Delete(op.key); err != nil {
				return err
			}
			continue
		}
		if err := w.Put(op.key, op.value); err != nil {
			return err
		}
	}
	return nil
}

func TestFromLuxDBSatisfiesKV(t *testing.T) {
	var db luxdb.Database = newMemLuxDB()
	kv := FromLuxDB(db)

	require.NoError(t, kv.Put([]byte("k"), []byte("v")))

	has, err := kv.Has([]byte("k"))
	require.NoError(t, err)
	require.True(t, has)

	v, err := kv.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, "v", string(v))

	require.NoError(t, kv.Delete([]byte("k")))
	has, err = kv.Has([]byte("k"))
	require.NoError(t, err)
	require.False(t, has)
}

func TestFromLuxDBBatchReplaysOntoAnotherWriter(t *testing.T) {
	db := newMemLuxDB()
	batch := db.NewBatch()
	require.NoError(t, batch.Put([]byte("a"), []byte("1")))
	require.NoError(t, batch.Delete([]byte("b")))
	require.Equal(t, 2, batch.Size())

	target := newMemLuxDB()
	require.NoError(t, target.Put([]byte("b"), []byte("stale")))
	require.NoError(t, batch.Replay(target))

	v, err := target.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, "1", string(v))

	_, err = target.Get([]byte("b"))
	require.ErrorIs(t, err, errLuxDBNotFound)
}

func TestNamespacedLuxDBReturnsThreeIndependentHandles(t *testing.T) {
	vault, cache, integrated := NamespacedLuxDB(newMemLuxDB(), newMemLuxDB(), newMemLuxDB())

	require.NoError(t, vault.Put([]byte("k"), []byte("vault")))
	_, err := cache.Get([]byte("k"))
	require.Error(t, err, "vault and cache must not share storage")
	_, err = integrated.Get([]byte("k"))
	require.Error(t, err, "vault and integrated must not share storage")
}
