package ai

import (
	"cmp"
	"maps"
	"slices"
	"sync"
)

// GroupID identifies a group within a zone.
type GroupID int32

type group struct {
	leader   *AI
	members  map[*AI]struct{}
	position Vec3
}

// GroupMgr maintains the group memberships of one zone. Every method takes
// the same lock, since the debugger and tree nodes of other AIs read it.
type GroupMgr struct {
	mu     sync.RWMutex
	groups map[GroupID]*group
	byAI   map[*AI]map[GroupID]struct{}
}

// NewGroupMgr returns an empty manager.
func NewGroupMgr() *GroupMgr {
	return &GroupMgr{
		groups: make(map[GroupID]*group),
		byAI:   make(map[*AI]map[GroupID]struct{}),
	}
}

// Add puts ai into the group, creating the group with ai as leader if it did
// not exist. Returns false if ai already was a member.
func (m *GroupMgr) Add(id GroupID, ai *AI) bool {
	if ai == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[id]
	if !ok {
		g = &group{leader: ai, members: make(map[*AI]struct{}), position: ai.Character().Position()}
		m.groups[id] = g
	}
	if _, exists := g.members[ai]; exists {
		return false
	}
	g.members[ai] = struct{}{}
	ids := m.byAI[ai]
	if ids == nil {
		ids = make(map[GroupID]struct{})
		m.byAI[ai] = ids
	}
	ids[id] = struct{}{}
	return true
}

// Remove evicts ai from the group. A removed leader is replaced by the
// remaining member with the lowest character id; an empty group is deleted.
func (m *GroupMgr) Remove(id GroupID, ai *AI) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(id, ai)
}

func (m *GroupMgr) removeLocked(id GroupID, ai *AI) bool {
	g, ok := m.groups[id]
	if !ok {
		return false
	}
	if _, ok := g.members[ai]; !ok {
		return false
	}
	delete(g.members, ai)
	if ids := m.byAI[ai]; ids != nil {
		delete(ids, id)
		if len(ids) == 0 {
			delete(m.byAI, ai)
		}
	}
	if len(g.members) == 0 {
		delete(m.groups, id)
		return true
	}
	if g.leader == ai {
		g.leader = lowestID(g.members)
	}
	return true
}

func lowestID(members map[*AI]struct{}) *AI {
	var best *AI
	for m := range members {
		if best == nil || m.ID() < best.ID() {
			best = m
		}
	}
	return best
}

// RemoveFromAllGroups evicts ai from every group it is a member of.
func (m *GroupMgr) RemoveFromAllGroups(ai *AI) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.byAI[ai] {
		m.removeLocked(id, ai)
	}
	delete(m.byAI, ai)
}

// Update recomputes the average position of every group.
func (m *GroupMgr) Update(int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.groups {
		var sum Vec3
		for member := range g.members {
			sum = sum.Add(member.Character().Position())
		}
		g.position = sum.Scale(1 / float64(len(g.members)))
	}
}

// Position returns the average position computed by the last Update.
func (m *GroupMgr) Position(id GroupID) (Vec3, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[id]
	if !ok {
		return InfiniteVec3, false
	}
	return g.position, true
}

// Leader returns the group leader, or nil.
func (m *GroupMgr) Leader(id GroupID) *AI {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if g, ok := m.groups[id]; ok {
		return g.leader
	}
	return nil
}

// Members returns the members of a group ordered by character id.
func (m *GroupMgr) Members(id GroupID) []*AI {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[id]
	if !ok {
		return nil
	}
	out := slices.Collect(maps.Keys(g.members))
	slices.SortFunc(out, func(a, b *AI) int { return cmp.Compare(a.ID(), b.ID()) })
	return out
}

// Size returns the member count, zero for unknown groups.
func (m *GroupMgr) Size(id GroupID) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if g, ok := m.groups[id]; ok {
		return len(g.members)
	}
	return 0
}

// Groups returns the ids of the groups ai is a member of, sorted.
func (m *GroupMgr) Groups(ai *AI) []GroupID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := slices.Collect(maps.Keys(m.byAI[ai]))
	slices.Sort(out)
	return out
}

func (m *GroupMgr) IsInAnyGroup(ai *AI) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byAI[ai]) > 0
}

func (m *GroupMgr) IsInGroup(id GroupID, ai *AI) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[id]
	if !ok {
		return false
	}
	_, ok = g.members[ai]
	return ok
}

func (m *GroupMgr) IsGroupLeader(id GroupID, ai *AI) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[id]
	return ok && ai != nil && g.leader == ai
}
