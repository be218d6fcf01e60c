package ai

import (
	"maps"
	"sync"
)

// CharacterID identifies a character (and the AI bound to it) within a zone.
type CharacterID int32

// NothingSelected is the sentinel id returned when no character applies.
const NothingSelected CharacterID = -1

// Character is the entity capability an AI drives. Implementations must be
// safe for concurrent readers, since filters and steerings of other AIs read
// positions while this AI's owner writes them.
type Character interface {
	ID() CharacterID
	Position() Vec3
	SetPosition(Vec3)
	Orientation() float64
	SetOrientation(float64)
	Speed() float64
	SetSpeed(float64)
	// Attributes returns a copy of the named debug attributes.
	Attributes() map[string]string
	SetAttribute(key, value string)
	// Update is called once per tick before the behaviour executes.
	Update(deltaMillis int64, debuggingActive bool)
}

// BaseCharacter is a mutex-guarded Character with no game logic. Embed it to
// get the bookkeeping for free.
type BaseCharacter struct {
	mu          sync.RWMutex
	id          CharacterID
	position    Vec3
	orientation float64
	speed       float64
	attributes  map[string]string
}

// NewBaseCharacter returns a character at the origin.
func NewBaseCharacter(id CharacterID) *BaseCharacter {
	return &BaseCharacter{id: id, attributes: make(map[string]string)}
}

func (c *BaseCharacter) ID() CharacterID { return c.id }

func (c *BaseCharacter) Position() Vec3 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.position
}

func (c *BaseCharacter) SetPosition(p Vec3) {
	c.mu.Lock()
	c.position = p
	c.mu.Unlock()
}

func (c *BaseCharacter) Orientation() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.orientation
}

func (c *BaseCharacter) SetOrientation(o float64) {
	c.mu.Lock()
	c.orientation = o
	c.mu.Unlock()
}

func (c *BaseCharacter) Speed() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.speed
}

func (c *BaseCharacter) SetSpeed(s float64) {
	c.mu.Lock()
	c.speed = s
	c.mu.Unlock()
}

func (c *BaseCharacter) Attributes() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.attributes)
}

func (c *BaseCharacter) SetAttribute(key, value string) {
	c.mu.Lock()
	if c.attributes == nil {
		c.attributes = make(map[string]string)
	}
	c.attributes[key] = value
	c.mu.Unlock()
}

// Update does nothing.
func (c *BaseCharacter) Update(int64, bool) {}
