// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package arc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	luxids "github.com/luxfi/ids"
	luxvalidators "github.com/luxfi/validators"

	"github.com/luxfi/dhtcore/arc"
)

func TestSeedFromValidatorSetTilesTheFullRing(t *testing.T) {
	vdrs := map[luxids.NodeID]*luxvalidators.GetValidatorOutput{
		luxids.GenerateTestNodeID(): {NodeID: luxids.GenerateTestNodeID(), Weight: 100},
		luxids.GenerateTestNodeID(): {NodeID: luxids.GenerateTestNodeID(), Weight: 200},
		luxids.GenerateTestNodeID(): {NodeID: luxids.GenerateTestNodeID(), Weight: 300},
	}

	view := arc.NewPeerView()
	require.NoError(t, arc.SeedFromValidatorSet(view, 8, vdrs))
	require.Equal(t, 3, view.Len())

	var total uint64
	for _, p := range view.List() {
		total += p.Arc.Count
	}
	require.Equal(t, uint64(1)<<(32-8), total, "seeded arcs must tile the entire ring with no gap or overlap")
}

func TestSeedFromValidatorSetIsDeterministic(t *testing.T) {
	a := luxids.GenerateTestNodeID()
	b := luxids.GenerateTestNodeID()
	vdrs := map[luxids.NodeID]*luxvalidators.GetValidatorOutput{
		a: {NodeID: a, Weight: 50},
		b: {NodeID: b, Weight: 150},
	}

	v1 := arc.NewPeerView()
	require.NoError(t, arc.SeedFromValidatorSet(v1, 4, vdrs))
	v2 := arc.NewPeerView()
	require.NoError(t, arc.SeedFromValidatorSet(v2, 4, vdrs))

	require.ElementsMatch(t, v1.List(), v2.List(), "seeding from the same validator set twice must produce the same partition")
}

func TestSeedFromValidatorSetRejectsOversizedPower(t *testing.T) {
	vdrs := map[luxids.NodeID]*luxvalidators.GetValidatorOutput{
		luxids.GenerateTestNodeID(): {Weight: 1},
	}
	err := arc.SeedFromValidatorSet(arc.NewPeerView(), 33, vdrs)
	require.Error(t, err)
}

func TestSeedFromValidatorSetNoopOnEmptySet(t *testing.T) {
	view := arc.NewPeerView()
	require.NoError(t, arc.SeedFromValidatorSet(view, 8, nil))
	require.Equal(t, 0, view.Len())
}
