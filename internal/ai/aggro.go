package ai

import (
	"cmp"
	"slices"
)

// ReductionType selects how AggroMgr decays its entries.
type ReductionType int

const (
	// ReduceDisabled keeps aggro values until removed explicitly.
	ReduceDisabled ReductionType = iota
	// ReduceByRatio multiplies the value by (1 - ratio*seconds) and clears it below a minimum.
	ReduceByRatio
	// ReduceByValue subtracts a fixed amount per second.
	ReduceByValue
)

// DefaultAggroReducePerSecond is the decay applied by a new AggroMgr.
const DefaultAggroReducePerSecond = 1.0

// AggroEntry is one target in an AggroMgr.
type AggroEntry struct {
	CharacterID CharacterID `json:"id"`
	Aggro       float64     `json:"aggro"`
}

// AggroMgr tracks a decaying threat score per target for one AI. It is only
// touched from the owning zone's tick, so it carries no lock.
type AggroMgr struct {
	entries     []AggroEntry
	dirty       bool
	reduceType  ReductionType
	reduceValue float64
	reduceRatio float64
	minAggro    float64
}

// NewAggroMgr returns a manager that decays by DefaultAggroReducePerSecond.
func NewAggroMgr() *AggroMgr {
	return &AggroMgr{
		reduceType:  ReduceByValue,
		reduceValue: DefaultAggroReducePerSecond,
	}
}

// SetReduceByRatio decays each entry by ratioPerSecond of its value; entries
// falling below minAggro are removed.
func (m *AggroMgr) SetReduceByRatio(ratioPerSecond, minAggro float64) {
	m.reduceType = ReduceByRatio
	m.reduceRatio = ratioPerSecond
	m.minAggro = minAggro
}

// SetReduceByValue decays each entry by valuePerSecond.
func (m *AggroMgr) SetReduceByValue(valuePerSecond float64) {
	m.reduceType = ReduceByValue
	m.reduceValue = valuePerSecond
}

// ResetReduceValue disables decay.
func (m *AggroMgr) ResetReduceValue() {
	m.reduceType = ReduceDisabled
	m.reduceValue = 0
	m.reduceRatio = 0
	m.minAggro = 0
}

// ReductionType returns the active decay mode.
func (m *AggroMgr) ReductionType() ReductionType { return m.reduceType }

// AddAggro creates or increments the entry for id and returns its new value.
// Non-positive amounts are ignored.
func (m *AggroMgr) AddAggro(id CharacterID, amount float64) float64 {
	for i := range m.entries {
		if m.entries[i].CharacterID == id {
			if amount > 0 {
				m.entries[i].Aggro += amount
				m.dirty = true
			}
			return m.entries[i].Aggro
		}
	}
	if amount <= 0 {
		return 0
	}
	m.entries = append(m.entries, AggroEntry{CharacterID: id, Aggro: amount})
	m.dirty = true
	return amount
}

// Remove drops the entry for id.
func (m *AggroMgr) Remove(id CharacterID) bool {
	n := len(m.entries)
	m.entries = slices.DeleteFunc(m.entries, func(e AggroEntry) bool { return e.CharacterID == id })
	return len(m.entries) != n
}

// Update decays every entry for deltaMillis and removes entries reaching zero.
func (m *AggroMgr) Update(deltaMillis int64) {
	if deltaMillis <= 0 || m.reduceType == ReduceDisabled || len(m.entries) == 0 {
		return
	}
	seconds := float64(deltaMillis) / 1000
	for i := range m.entries {
		e := &m.entries[i]
		switch m.reduceType {
		case ReduceByValue:
			e.Aggro -= m.reduceValue * seconds
		case ReduceByRatio:
			f := m.reduceRatio * seconds
			if f > 1 {
				f = 1
			}
			e.Aggro *= 1 - f
			if e.Aggro < m.minAggro {
				e.Aggro = 0
			}
		}
		if e.Aggro < 0 {
			e.Aggro = 0
		}
	}
	m.entries = slices.DeleteFunc(m.entries, func(e AggroEntry) bool { return e.Aggro <= 0 })
	m.dirty = true
}

func (m *AggroMgr) sort() {
	if !m.dirty {
		return
	}
	slices.SortStableFunc(m.entries, func(a, b AggroEntry) int {
		if c := cmp.Compare(b.Aggro, a.Aggro); c != 0 {
			return c
		}
		return cmp.Compare(a.CharacterID, b.CharacterID)
	})
	m.dirty = false
}

// HighestEntry returns the entry with the highest aggro.
func (m *AggroMgr) HighestEntry() (AggroEntry, bool) {
	if len(m.entries) == 0 {
		return AggroEntry{CharacterID: NothingSelected}, false
	}
	m.sort()
	return m.entries[0], true
}

// HighestAggro returns the id with the highest aggro, or NothingSelected.
func (m *AggroMgr) HighestAggro() CharacterID {
	e, _ := m.HighestEntry()
	return e.CharacterID
}

// Entries returns a copy of all entries, highest first.
func (m *AggroMgr) Entries() []AggroEntry {
	m.sort()
	return slices.Clone(m.entries)
}

// Len returns the number of tracked targets.
func (m *AggroMgr) Len() int { return len(m.entries) }

// Clear removes every entry.
func (m *AggroMgr) Clear() {
	m.entries = m.entries[:0]
	m.dirty = false
}
