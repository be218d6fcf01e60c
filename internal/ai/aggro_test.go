package ai

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAggroHighestAfterAdd(t *testing.T) {
	t.Parallel()
	m := NewAggroMgr()
	require.Equal(t, NothingSelected, m.HighestAggro())
	require.Equal(t, 5.0, m.AddAggro(7, 5))
	require.Equal(t, CharacterID(7), m.HighestAggro())
	require.Equal(t, 8.0, m.AddAggro(7, 3))
	m.AddAggro(9, 10)
	require.Equal(t, CharacterID(9), m.HighestAggro())
	require.Equal(t, []AggroEntry{{9, 10}, {7, 8}}, m.Entries())
}

func TestAggroDecaysToRemoval(t *testing.T) {
	t.Parallel()
	m := NewAggroMgr()
	m.AddAggro(1, 2)
	m.Update(1000)
	e, ok := m.HighestEntry()
	require.True(t, ok)
	require.InDelta(t, 1.0, e.Aggro, 1e-9)
	m.Update(1000)
	require.Zero(t, m.Len())
	require.Equal(t, NothingSelected, m.HighestAggro())
}

func TestAggroReduceByRatio(t *testing.T) {
	t.Parallel()
	m := NewAggroMgr()
	m.SetReduceByRatio(0.5, 1)
	m.AddAggro(1, 4)
	m.Update(1000)
	require.InDelta(t, 2.0, m.Entries()[0].Aggro, 1e-9)
	m.Update(1000)
	require.Equal(t, 1, m.Len())
	m.Update(1000)
	require.Zero(t, m.Len(), "below the minimum")
}

func TestAggroReduceDisabled(t *testing.T) {
	t.Parallel()
	m := NewAggroMgr()
	m.ResetReduceValue()
	require.Equal(t, ReduceDisabled, m.ReductionType())
	m.AddAggro(1, 1)
	m.Update(60_000)
	require.Equal(t, 1, m.Len())
	require.True(t, m.Remove(1))
	require.False(t, m.Remove(1))
}

func TestAggroIgnoresNonPositiveAmounts(t *testing.T) {
	t.Parallel()
	m := NewAggroMgr()
	require.Zero(t, m.AddAggro(1, -3))
	require.Zero(t, m.Len())
}
