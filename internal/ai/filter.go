package ai

import (
	"errors"
	"slices"
	"strconv"
	"strings"
)

// Filter narrows or extends the filtered entity list of an AI.
type Filter interface {
	Name() string
	Parameters() string
	Filter(ai *AI)
}

// FilterParent is implemented by filters composed of sub-filters.
type FilterParent interface {
	Filters() []Filter
}

// FilterFactoryContext carries everything a filter constructor gets.
type FilterFactoryContext struct {
	Parameters string
	Filters    []Filter
}

// FilterFactory creates filters of one type.
type FilterFactory interface {
	Create(ctx *FilterFactoryContext) (Filter, error)
}

// FilterFactoryFunc adapts a function to FilterFactory.
type FilterFactoryFunc func(ctx *FilterFactoryContext) (Filter, error)

func (f FilterFactoryFunc) Create(ctx *FilterFactoryContext) (Filter, error) { return f(ctx) }

// FuncFilter is a leaf filter backed by a function.
type FuncFilter struct {
	name   string
	params string
	fn     func(ai *AI)
}

// NewFuncFilter creates a filter of type name running fn.
func NewFuncFilter(name, params string, fn func(ai *AI)) *FuncFilter {
	return &FuncFilter{name: name, params: params, fn: fn}
}

func (f *FuncFilter) Name() string       { return f.name }
func (f *FuncFilter) Parameters() string { return f.params }
func (f *FuncFilter) Filter(ai *AI)      { f.fn(ai) }

// FilterString renders f in the tree grammar.
func FilterString(f Filter) string {
	var b strings.Builder
	var write func(Filter)
	write = func(f Filter) {
		b.WriteString(f.Name())
		if p := f.Parameters(); p != "" {
			b.WriteString("{" + p + "}")
		}
		if fp, ok := f.(FilterParent); ok && len(fp.Filters()) > 0 {
			b.WriteByte('(')
			for i, s := range fp.Filters() {
				if i > 0 {
					b.WriteByte(',')
				}
				write(s)
			}
			b.WriteByte(')')
		}
	}
	write(f)
	return b.String()
}

type leafFilter struct {
	name   string
	params string
}

func (f leafFilter) Name() string       { return f.name }
func (f leafFilter) Parameters() string { return f.params }

// SelectEmpty clears the filtered list.
type SelectEmpty struct{ leafFilter }

func NewSelectEmpty(ctx *FilterFactoryContext) (Filter, error) {
	return &SelectEmpty{leafFilter{"SelectEmpty", ctx.Parameters}}, nil
}

func (f *SelectEmpty) Filter(ai *AI) { ai.filtered = ai.filtered[:0] }

// SelectAll keeps the already filtered entities.
type SelectAll struct{ leafFilter }

func NewSelectAll(ctx *FilterFactoryContext) (Filter, error) {
	return &SelectAll{leafFilter{"SelectAll", ctx.Parameters}}, nil
}

func (f *SelectAll) Filter(*AI) {}

// SelectZone adds every character of the AI's zone.
type SelectZone struct{ leafFilter }

func NewSelectZone(ctx *FilterFactoryContext) (Filter, error) {
	return &SelectZone{leafFilter{"SelectZone", ctx.Parameters}}, nil
}

func (f *SelectZone) Filter(ai *AI) {
	if z := ai.Zone(); z != nil {
		ai.filtered = append(ai.filtered, z.IDs()...)
	}
}

// SelectHighestAggro adds the character with the highest aggro.
type SelectHighestAggro struct{ leafFilter }

func NewSelectHighestAggro(ctx *FilterFactoryContext) (Filter, error) {
	return &SelectHighestAggro{leafFilter{"SelectHighestAggro", ctx.Parameters}}, nil
}

func (f *SelectHighestAggro) Filter(ai *AI) {
	if id := ai.AggroMgr().HighestAggro(); id != NothingSelected {
		ai.filtered = append(ai.filtered, id)
	}
}

type groupFilter struct {
	leafFilter
	id GroupID
}

func parseGroupFilter(name string, ctx *FilterFactoryContext) (groupFilter, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(ctx.Parameters), 10, 32)
	if err != nil {
		return groupFilter{}, invalidParams(name, ctx.Parameters, err)
	}
	return groupFilter{leafFilter{name, ctx.Parameters}, GroupID(v)}, nil
}

// SelectGroupLeader adds the leader of the group.
type SelectGroupLeader struct{ groupFilter }

func NewSelectGroupLeader(ctx *FilterFactoryContext) (Filter, error) {
	g, err := parseGroupFilter("SelectGroupLeader", ctx)
	if err != nil {
		return nil, err
	}
	return &SelectGroupLeader{g}, nil
}

func (f *SelectGroupLeader) Filter(ai *AI) {
	m := groupMgrOf(ai)
	if m == nil {
		return
	}
	if leader := m.Leader(f.id); leader != nil {
		ai.filtered = append(ai.filtered, leader.ID())
	}
}

// SelectGroupMembers adds every member of the group.
type SelectGroupMembers struct{ groupFilter }

func NewSelectGroupMembers(ctx *FilterFactoryContext) (Filter, error) {
	g, err := parseGroupFilter("SelectGroupMembers", ctx)
	if err != nil {
		return nil, err
	}
	return &SelectGroupMembers{g}, nil
}

func (f *SelectGroupMembers) Filter(ai *AI) {
	m := groupMgrOf(ai)
	if m == nil {
		return
	}
	for _, member := range m.Members(f.id) {
		ai.filtered = append(ai.filtered, member.ID())
	}
}

// compositeFilter runs each sub-filter against an empty list and leaves the
// AI's list untouched.
type compositeFilter struct {
	name    string
	params  string
	filters []Filter
}

func newComposite(name string, ctx *FilterFactoryContext) (compositeFilter, error) {
	if len(ctx.Filters) == 0 {
		return compositeFilter{}, invalidParams(name, ctx.Parameters, errors.New("no sub-filters"))
	}
	return compositeFilter{name: name, params: ctx.Parameters, filters: ctx.Filters}, nil
}

func (f compositeFilter) Name() string       { return f.name }
func (f compositeFilter) Parameters() string { return f.params }
func (f compositeFilter) Filters() []Filter  { return f.filters }

func (f compositeFilter) results(ai *AI) [][]CharacterID {
	saved := ai.filtered
	out := make([][]CharacterID, len(f.filters))
	for i, sub := range f.filters {
		ai.filtered = nil
		sub.Filter(ai)
		out[i] = ai.filtered
	}
	ai.filtered = saved
	return out
}

// First keeps the first entity of the sub-filter results.
type First struct{ compositeFilter }

func NewFirst(ctx *FilterFactoryContext) (Filter, error) {
	c, err := newComposite("First", ctx)
	if err != nil {
		return nil, err
	}
	return &First{c}, nil
}

func (f *First) Filter(ai *AI) {
	all := slices.Concat(f.results(ai)...)
	ai.filtered = ai.filtered[:0]
	if len(all) > 0 {
		ai.filtered = append(ai.filtered, all[0])
	}
}

// Last keeps the last entity of the sub-filter results.
type Last struct{ compositeFilter }

func NewLast(ctx *FilterFactoryContext) (Filter, error) {
	c, err := newComposite("Last", ctx)
	if err != nil {
		return nil, err
	}
	return &Last{c}, nil
}

func (f *Last) Filter(ai *AI) {
	all := slices.Concat(f.results(ai)...)
	ai.filtered = ai.filtered[:0]
	if len(all) > 0 {
		ai.filtered = append(ai.filtered, all[len(all)-1])
	}
}

// Union keeps every entity selected by any sub-filter.
type Union struct{ compositeFilter }

func NewUnion(ctx *FilterFactoryContext) (Filter, error) {
	c, err := newComposite("Union", ctx)
	if err != nil {
		return nil, err
	}
	return &Union{c}, nil
}

func (f *Union) Filter(ai *AI) {
	all := slices.Concat(f.results(ai)...)
	slices.Sort(all)
	ai.filtered = slices.Compact(all)
}

// Intersection keeps the entities selected by every sub-filter.
type Intersection struct{ compositeFilter }

func NewIntersection(ctx *FilterFactoryContext) (Filter, error) {
	c, err := newComposite("Intersection", ctx)
	if err != nil {
		return nil, err
	}
	return &Intersection{c}, nil
}

func (f *Intersection) Filter(ai *AI) {
	results := f.results(ai)
	out := slices.Clone(results[0])
	slices.Sort(out)
	out = slices.Compact(out)
	for _, r := range results[1:] {
		out = slices.DeleteFunc(out, func(id CharacterID) bool { return !slices.Contains(r, id) })
	}
	ai.filtered = out
}

// Difference keeps the entities of the first sub-filter that no other
// sub-filter selected.
type Difference struct{ compositeFilter }

func NewDifference(ctx *FilterFactoryContext) (Filter, error) {
	c, err := newComposite("Difference", ctx)
	if err != nil {
		return nil, err
	}
	return &Difference{c}, nil
}

func (f *Difference) Filter(ai *AI) {
	results := f.results(ai)
	rest := slices.Concat(results[1:]...)
	ai.filtered = slices.DeleteFunc(slices.Clone(results[0]), func(id CharacterID) bool {
		return slices.Contains(rest, id)
	})
}

// Complement keeps the currently filtered entities that none of the
// sub-filters selected.
type Complement struct{ compositeFilter }

func NewComplement(ctx *FilterFactoryContext) (Filter, error) {
	c, err := newComposite("Complement", ctx)
	if err != nil {
		return nil, err
	}
	return &Complement{c}, nil
}

func (f *Complement) Filter(ai *AI) {
	union := slices.Concat(f.results(ai)...)
	ai.filtered = slices.DeleteFunc(ai.filtered, func(id CharacterID) bool {
		return slices.Contains(union, id)
	})
}

// Random keeps n randomly chosen entities of the sub-filter results.
type Random struct {
	compositeFilter
	n int
}

func NewRandom(ctx *FilterFactoryContext) (Filter, error) {
	c, err := newComposite("Random", ctx)
	if err != nil {
		return nil, err
	}
	n := 1
	if p := strings.TrimSpace(ctx.Parameters); p != "" {
		if n, err = strconv.Atoi(p); err != nil || n < 0 {
			return nil, invalidParams("Random", ctx.Parameters, err)
		}
	}
	return &Random{compositeFilter: c, n: n}, nil
}

func (f *Random) Filter(ai *AI) {
	all := slices.Concat(f.results(ai)...)
	ai.Rand().Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	if len(all) > f.n {
		all = all[:f.n]
	}
	ai.filtered = all
}
