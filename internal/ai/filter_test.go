package ai

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// fixed is a filter appending a fixed list of ids.
func fixed(ids ...CharacterID) Filter {
	return NewFuncFilter("Fixed", "", func(ai *AI) {
		for _, id := range ids {
			ai.AddFilteredEntity(id)
		}
	})
}

func runFilter(t *testing.T, ctor FilterFactoryFunc, params string, current []CharacterID, subs ...Filter) []CharacterID {
	t.Helper()
	f, err := ctor(&FilterFactoryContext{Parameters: params, Filters: subs})
	require.NoError(t, err)
	a := newTestAI(t, 1, nil)
	a.SetFilteredEntities(current)
	f.Filter(a)
	return a.FilteredEntities()
}

func TestCompositeFilters(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		ctor    FilterFactoryFunc
		current []CharacterID
		want    []CharacterID
	}{
		{"First", NewFirst, []CharacterID{42}, []CharacterID{3}},
		{"Last", NewLast, nil, []CharacterID{2}},
		{"Union", NewUnion, nil, []CharacterID{1, 2, 3, 4}},
		{"Intersection", NewIntersection, nil, []CharacterID{1}},
		{"Difference", NewDifference, nil, []CharacterID{3}},
		{"Complement", NewComplement, []CharacterID{1, 5, 4, 6}, []CharacterID{5, 6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := runFilter(t, tt.ctor, "", tt.current, fixed(3, 1, 1), fixed(4, 1, 2))
			require.Equal(t, tt.want, got)
		})
	}
}

func TestCompositeFilterRequiresChildren(t *testing.T) {
	t.Parallel()
	_, err := NewUnion(&FilterFactoryContext{})
	require.ErrorIs(t, err, ErrInvalidParameters)
}

func TestRandomFilter(t *testing.T) {
	t.Parallel()
	got := runFilter(t, NewRandom, "2", nil, fixed(1, 2, 3, 4))
	require.Len(t, got, 2)
	require.Subset(t, []CharacterID{1, 2, 3, 4}, got)
	require.Len(t, runFilter(t, NewRandom, "10", nil, fixed(1, 2)), 2)
}

func TestZoneAndGroupFilters(t *testing.T) {
	t.Parallel()
	a := newTestAI(t, 1, nil)
	b := newTestAI(t, 2, nil)
	c := newTestAI(t, 3, nil)
	z := newTestZone(t, a, b, c)
	z.GroupMgr().Add(7, c)
	z.GroupMgr().Add(7, b)
	a.AggroMgr().AddAggro(2, 1)
	a.AggroMgr().AddAggro(3, 5)

	r := NewDefaultRegistry()
	run := func(src string) []CharacterID {
		f, err := r.ParseFilter(src)
		require.NoError(t, err)
		a.SetFilteredEntities(nil)
		f.Filter(a)
		return a.FilteredEntities()
	}
	require.Equal(t, []CharacterID{1, 2, 3}, run("SelectZone"))
	require.Equal(t, []CharacterID{3}, run("SelectGroupLeader{7}"))
	require.Equal(t, []CharacterID{2, 3}, run("SelectGroupMembers{7}"))
	require.Equal(t, []CharacterID{3}, run("SelectHighestAggro"))
	require.Empty(t, run("SelectEmpty"))
	require.Equal(t, []CharacterID{1, 2}, run("Difference(SelectZone,SelectGroupLeader{7})"))

	a.SetFilteredEntities([]CharacterID{9})
	f, _ := r.ParseFilter("SelectAll")
	f.Filter(a)
	require.Equal(t, []CharacterID{9}, a.FilteredEntities())
}

func TestFilterCondition(t *testing.T) {
	t.Parallel()
	a := newTestAI(t, 1, nil)
	newTestZone(t, a)
	r := NewDefaultRegistry()

	c, err := r.ParseCondition("Filter(SelectZone)")
	require.NoError(t, err)
	require.True(t, c.Evaluate(a))
	require.Equal(t, []CharacterID{1}, a.FilteredEntities())

	c, err = r.ParseCondition("Filter(SelectEmpty)")
	require.NoError(t, err)
	require.False(t, c.Evaluate(a))
}
