package debug

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/vengi-voxel/vengi-sub015/internal/ai"
)

// ClientID identifies one connected debugger.
type ClientID string

// Network delivers encoded server messages. Implementations must be safe for
// concurrent use; the server calls them from its own goroutine and from zone
// ticks.
type Network interface {
	Broadcast(msg []byte)
	Send(client ClientID, msg []byte)
	ClientCount() int
}

var (
	errNoZone       = errors.New("no zone attached")
	errRootDeletion = errors.New("the root node cannot be deleted")
)

type broadcastMask uint8

const (
	sentState broadcastMask = 1 << iota
	sentStatic
	sentDetails
)

type (
	zoneAdd      struct{ zone *ai.Zone }
	zoneRemove   struct{ zone *ai.Zone }
	newClient    struct{}
	lostClient   struct{}
	selectEvent  struct{ id ai.CharacterID }
	pauseEvent   struct{ pause bool }
	stepEvent    struct{ millis int64 }
	resetEvent   struct{}
	setDebug     struct{ name string }
	addNodeEvent struct {
		id       ai.CharacterID
		parent   int32
		name     string
		nodeType string
		cond     string
	}
	deleteNodeEvent struct {
		id   ai.CharacterID
		node int32
	}
	updateNodeEvent struct {
		id       ai.CharacterID
		node     int32
		name     string
		nodeType string
		cond     string
	}
	pingEvent struct{}
)

type event struct {
	client  ClientID
	request string
	payload any
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRecorder mirrors every broadcast into r.
func WithRecorder(r *Recorder) Option {
	return func(s *Server) { s.recorder = r }
}

// Server attaches a debugger to at most one zone at a time. All requests,
// whether from the network or the Go API, are queued and processed by
// Update, which must be called from a single goroutine.
type Server struct {
	registry *ai.Registry
	network  Network
	logger   *slog.Logger
	recorder *Recorder

	eventsMu sync.Mutex
	events   []event

	mu       sync.Mutex
	zones    []*ai.Zone
	zone     *ai.Zone
	selected ai.CharacterID
	paused   bool
	mask     broadcastMask
}

// NewServer returns a detached server. Node edits are parsed with registry.
func NewServer(registry *ai.Registry, network Network, opts ...Option) *Server {
	if registry == nil {
		registry = ai.NewDefaultRegistry()
	}
	s := &Server{
		registry: registry,
		network:  network,
		logger:   slog.Default(),
		selected: ai.NothingSelected,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "debug")
	return s
}

func (s *Server) enqueue(client ClientID, request string, payload any) {
	s.eventsMu.Lock()
	s.events = append(s.events, event{client: client, request: request, payload: payload})
	s.eventsMu.Unlock()
}

// AddZone makes a zone available for debugging.
func (s *Server) AddZone(z *ai.Zone) { s.enqueue("", "", zoneAdd{z}) }

// RemoveZone forgets a zone, detaching from it if it is the debugged one.
func (s *Server) RemoveZone(z *ai.Zone) { s.enqueue("", "", zoneRemove{z}) }

// SetDebug attaches to the zone with the given name. An unknown name detaches.
func (s *Server) SetDebug(name string) { s.enqueue("", "", setDebug{name}) }

// Select chooses the character whose tree and details get broadcast.
func (s *Server) Select(id ai.CharacterID) { s.enqueue("", "", selectEvent{id}) }

// Pause pauses or resumes every AI of the attached zone.
func (s *Server) Pause(pause bool) { s.enqueue("", "", pauseEvent{pause}) }

// Step advances every paused AI of the attached zone by millis.
func (s *Server) Step(millis int64) { s.enqueue("", "", stepEvent{millis}) }

// Reset clears the node state of every AI in the attached zone.
func (s *Server) Reset() { s.enqueue("", "", resetEvent{}) }

// AddNode appends a new node below parentID in the tree of character id.
func (s *Server) AddNode(id ai.CharacterID, parentID int32, name, nodeType, condition string) {
	s.enqueue("", TypeAddNode, addNodeEvent{id: id, parent: parentID, name: name, nodeType: nodeType, cond: condition})
}

// DeleteNode removes a node from the tree of character id.
func (s *Server) DeleteNode(id ai.CharacterID, nodeID int32) {
	s.enqueue("", TypeDeleteNode, deleteNodeEvent{id: id, node: nodeID})
}

// UpdateNode replaces a node of the tree of character id, keeping its children.
func (s *Server) UpdateNode(id ai.CharacterID, nodeID int32, name, nodeType, condition string) {
	s.enqueue("", TypeUpdateNode, updateNodeEvent{id: id, node: nodeID, name: name, nodeType: nodeType, cond: condition})
}

// OnConnect is called by the transport for every new client.
func (s *Server) OnConnect(client ClientID) { s.enqueue(client, "", newClient{}) }

// OnDisconnect is called by the transport after a client went away.
func (s *Server) OnDisconnect(client ClientID) { s.enqueue(client, "", lostClient{}) }

// HandleMessage decodes a client message and queues it. Malformed messages
// are rejected right away with a result message.
func (s *Server) HandleMessage(client ClientID, raw []byte) error {
	msg, err := Decode(raw)
	if err != nil {
		s.logger.Debug("rejected debugger message", "client", client, "err", err)
		s.send(client, result("", err))
		return err
	}
	switch m := msg.(type) {
	case *SelectMsg:
		s.enqueue(client, m.Type, selectEvent{m.CharacterID})
	case *PauseMsg:
		s.enqueue(client, m.Type, pauseEvent{m.Pause})
	case *StepMsg:
		s.enqueue(client, m.Type, stepEvent{m.Millis})
	case *AddNodeMsg:
		s.enqueue(client, m.Type, addNodeEvent{id: m.CharacterID, parent: m.ParentNodeID, name: m.Name, nodeType: m.NodeType, cond: m.Condition})
	case *DeleteNodeMsg:
		s.enqueue(client, m.Type, deleteNodeEvent{id: m.CharacterID, node: m.NodeID})
	case *UpdateNodeMsg:
		s.enqueue(client, m.Type, updateNodeEvent{id: m.CharacterID, node: m.NodeID, name: m.Name, nodeType: m.NodeType, cond: m.Condition})
	case *ChangeZoneMsg:
		s.enqueue(client, m.Type, setDebug{m.Name})
	case *Envelope:
		if m.Type == TypeReset {
			s.enqueue(client, m.Type, resetEvent{})
		} else {
			s.enqueue(client, m.Type, pingEvent{})
		}
	}
	return nil
}

// Update processes the queued events and broadcasts the state of the
// attached zone while it is running and watched.
func (s *Server) Update(int64) {
	s.eventsMu.Lock()
	events := s.events
	s.events = nil
	s.eventsMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.mask = 0

	for _, ev := range events {
		err := s.handle(ev)
		switch {
		case ev.client != "" && ev.request != "":
			s.send(ev.client, result(ev.request, err))
		case err != nil:
			s.logger.Warn("debugger request failed", "request", ev.request, "err", err)
		}
	}

	if s.connected() && s.zone != nil {
		if !s.paused {
			s.broadcastState()
			s.broadcastCharacterDetails()
		}
		return
	}
	if s.paused {
		s.pause(false)
	}
	s.resetSelection()
}

// connected reports whether anyone receives broadcasts. Recording only
// captures what connected clients are sent.
func (s *Server) connected() bool {
	return s.network != nil && s.network.ClientCount() > 0
}

func (s *Server) handle(ev event) error {
	switch p := ev.payload.(type) {
	case zoneAdd:
		s.addZone(p.zone)
	case zoneRemove:
		s.removeZone(p.zone)
	case newClient:
		s.onConnect(ev.client)
	case lostClient:
		s.onDisconnect()
	case setDebug:
		s.setDebug(p.name)
	case selectEvent:
		return s.selectCharacter(p.id)
	case pauseEvent:
		return s.pause(p.pause)
	case stepEvent:
		return s.step(p.millis)
	case resetEvent:
		return s.reset()
	case addNodeEvent:
		return s.addNode(p)
	case deleteNodeEvent:
		return s.deleteNode(p)
	case updateNodeEvent:
		return s.updateNode(p)
	case pingEvent:
	}
	return nil
}

func (s *Server) addZone(z *ai.Zone) {
	if z == nil || slices.Contains(s.zones, z) {
		return
	}
	s.zones = append(s.zones, z)
	s.broadcastNames()
}

func (s *Server) removeZone(z *ai.Zone) {
	i := slices.Index(s.zones, z)
	if i < 0 {
		return
	}
	if s.zone == z {
		s.detach()
	}
	s.zones = slices.Delete(s.zones, i, i+1)
	s.broadcastNames()
}

func (s *Server) zoneNames() []string {
	names := make([]string, 0, len(s.zones))
	for _, z := range s.zones {
		names = append(names, z.Name())
	}
	slices.Sort(names)
	return names
}

func (s *Server) onConnect(client ClientID) {
	s.send(client, PauseMsg{Envelope: envelope(TypePause), Pause: s.paused})
	s.send(client, NamesMsg{Envelope: envelope(TypeNames), Names: s.zoneNames()})
	if s.zone != nil {
		s.broadcastStaticCharacterDetails()
	}
}

func (s *Server) onDisconnect() {
	if s.zone == nil || s.connected() {
		return
	}
	s.detach()
}

func (s *Server) detach() {
	if s.paused {
		s.pause(false)
	}
	if s.zone != nil {
		s.zone.SetDebug(false)
	}
	s.zone = nil
	s.resetSelection()
}

func (s *Server) setDebug(name string) {
	if s.paused {
		s.pause(false)
	}
	s.zone = nil
	s.resetSelection()
	for _, z := range s.zones {
		debug := z.Name() == name
		z.SetDebug(debug)
		if debug {
			s.zone = z
		}
	}
	if s.zone != nil {
		s.logger.Info("debugger attached", "zone", name)
	}
}

func (s *Server) selectCharacter(id ai.CharacterID) error {
	s.resetSelection()
	if s.zone == nil {
		return errNoZone
	}
	s.selected = id
	s.broadcastStaticCharacterDetails()
	if s.paused {
		s.broadcastState()
		s.broadcastCharacterDetails()
	}
	return nil
}

func (s *Server) resetSelection() { s.selected = ai.NothingSelected }

func (s *Server) pause(state bool) error {
	z := s.zone
	if z == nil {
		s.paused = false
		return errNoZone
	}
	s.paused = state
	err := z.ExecuteParallel(context.Background(), func(_ context.Context, a *ai.AI) error {
		a.SetPause(state)
		return nil
	})
	if !s.connected() {
		return err
	}
	s.broadcast(TypePause, PauseMsg{Envelope: envelope(TypePause), Pause: state})
	if state {
		s.broadcastState()
		s.broadcastCharacterDetails()
	}
	return err
}

func (s *Server) step(millis int64) error {
	z := s.zone
	if z == nil {
		return errNoZone
	}
	if !s.paused {
		return fmt.Errorf("%w: step requires a paused zone", ErrProtocol)
	}
	z.RunBetweenTicks(func() {
		z.ExecuteAll(func(a *ai.AI) {
			if !a.IsPaused() {
				return
			}
			a.SetPause(false)
			defer a.SetPause(true)
			a.Update(millis, true)
			a.Execute(millis)
		})
	})
	s.broadcastState()
	s.broadcastCharacterDetails()
	return nil
}

func (s *Server) reset() error {
	z := s.zone
	if z == nil {
		return errNoZone
	}
	z.RunBetweenTicks(func() {
		z.ExecuteAll(func(a *ai.AI) {
			if root := a.Behaviour(); root != nil {
				root.ResetState(a)
			}
		})
	})
	return nil
}

// edit parses the node and condition of an edit and runs apply against the
// target AI while the zone is between ticks.
func (s *Server) edit(id ai.CharacterID, nodeType, name, cond string, apply func(a *ai.AI, node ai.TreeNode) error) error {
	z := s.zone
	if z == nil {
		return errNoZone
	}
	var node ai.TreeNode
	if nodeType != "" {
		var err error
		if node, err = s.registry.ParseNode(nodeType, name, cond); err != nil {
			return fmt.Errorf("%w: %w", ErrProtocol, err)
		}
	}
	var err error
	z.RunBetweenTicks(func() {
		a := z.GetAI(id)
		if a == nil {
			err = fmt.Errorf("%w: no character %d in zone %s", ErrProtocol, id, z.Name())
			return
		}
		err = apply(a, node)
	})
	if err != nil {
		return err
	}
	s.broadcastStaticCharacterDetails()
	return nil
}

func (s *Server) addNode(e addNodeEvent) error {
	return s.edit(e.id, e.nodeType, e.name, e.cond, func(a *ai.AI, node ai.TreeNode) error {
		parent := ai.FindNode(a.Behaviour(), e.parent)
		if parent == nil {
			return fmt.Errorf("%w: no node %d", ErrProtocol, e.parent)
		}
		if !parent.AddChild(node) {
			return fmt.Errorf("%w: node %d does not accept another child", ErrProtocol, e.parent)
		}
		return nil
	})
}

func (s *Server) deleteNode(e deleteNodeEvent) error {
	return s.edit(e.id, "", "", "", func(a *ai.AI, _ ai.TreeNode) error {
		root := a.Behaviour()
		if root == nil || root.ID() == e.node {
			return fmt.Errorf("%w: %w", ErrProtocol, errRootDeletion)
		}
		parent := ai.FindParent(root, e.node)
		if parent == nil {
			return fmt.Errorf("%w: no node %d", ErrProtocol, e.node)
		}
		parent.ReplaceChild(e.node, nil)
		// cursors into the shifted children are stale for every AI
		s.zone.ExecuteAll(func(o *ai.AI) { o.ClearSelectorState(parent.ID()) })
		return nil
	})
}

func (s *Server) updateNode(e updateNodeEvent) error {
	return s.edit(e.id, e.nodeType, e.name, e.cond, func(a *ai.AI, node ai.TreeNode) error {
		root := a.Behaviour()
		old := ai.FindNode(root, e.node)
		if old == nil {
			return fmt.Errorf("%w: no node %d", ErrProtocol, e.node)
		}
		for _, child := range old.Children() {
			if !node.AddChild(child) {
				return fmt.Errorf("%w: %s does not accept the children of node %d", ErrProtocol, node.Type(), e.node)
			}
		}
		if old == root {
			a.SetBehaviour(node)
			return nil
		}
		parent := ai.FindParent(root, e.node)
		if parent == nil || !parent.ReplaceChild(e.node, node) {
			return fmt.Errorf("%w: no parent for node %d", ErrProtocol, e.node)
		}
		return nil
	})
}

func (s *Server) broadcastNames() {
	s.broadcast(TypeNames, NamesMsg{Envelope: envelope(TypeNames), Names: s.zoneNames()})
}

func (s *Server) broadcastState() {
	z := s.zone
	if z == nil || s.mask&sentState != 0 || !s.connected() {
		return
	}
	s.mask |= sentState
	msg := StateMsg{Envelope: envelope(TypeState), States: []WorldState{}}
	z.ExecuteAll(func(a *ai.AI) {
		chr := a.Character()
		p := chr.Position()
		msg.States = append(msg.States, WorldState{
			CharacterID: chr.ID(),
			Position:    Position{X: p.X, Y: p.Y, Z: p.Z},
			Orientation: chr.Orientation(),
			Attributes:  chr.Attributes(),
		})
	})
	s.broadcast(TypeState, msg)
}

// broadcastStaticCharacterDetails sends the tree of the selected character
// on the next tick of its zone.
func (s *Server) broadcastStaticCharacterDetails() {
	z, id := s.zone, s.selected
	if z == nil || id == ai.NothingSelected || s.mask&sentStatic != 0 || !s.connected() {
		return
	}
	s.mask |= sentStatic
	ok := z.ExecuteAsync(id, func(a *ai.AI) {
		msg := CharacterStaticMsg{Envelope: envelope(TypeCharacterStatic), CharacterID: a.ID(), Nodes: []NodeStatic{}}
		ai.Walk(a.Behaviour(), func(n ai.TreeNode, _ int) {
			cond := n.Condition()
			msg.Nodes = append(msg.Nodes, NodeStatic{
				ID:                  n.ID(),
				Name:                n.Name(),
				NodeType:            n.Type(),
				Parameters:          n.Parameters(),
				ConditionType:       cond.Name(),
				ConditionParameters: cond.Parameters(),
			})
		})
		s.broadcast(TypeCharacterStatic, msg)
	})
	if !ok {
		s.resetSelection()
	}
}

// broadcastCharacterDetails sends the runtime state of the selected
// character on the next tick of its zone.
func (s *Server) broadcastCharacterDetails() {
	z, id := s.zone, s.selected
	if z == nil || id == ai.NothingSelected || s.mask&sentDetails != 0 || !s.connected() {
		return
	}
	s.mask |= sentDetails
	ok := z.ExecuteAsync(id, func(a *ai.AI) {
		root := a.Behaviour()
		if root == nil {
			return
		}
		state := s.nodeState(a, root, true)
		msg := CharacterDetailsMsg{
			Envelope:    envelope(TypeCharacterDetails),
			CharacterID: a.ID(),
			Aggro:       a.AggroMgr().Entries(),
			Root:        state,
		}
		if msg.Aggro == nil {
			msg.Aggro = []ai.AggroEntry{}
		}
		s.broadcast(TypeCharacterDetails, msg)
	})
	if !ok {
		s.resetSelection()
	}
}

func (s *Server) nodeState(a *ai.AI, n ai.TreeNode, running bool) NodeState {
	st := NodeState{
		ID:        n.ID(),
		Condition: s.conditionState(a, n),
		LastRun:   -1,
		Status:    a.LastStatus(n.ID()).String(),
		Running:   running,
	}
	if last := a.LastExecMillis(n.ID()); last >= 0 {
		st.LastRun = a.Time() - last
	}
	children := n.Children()
	active := n.RunningChildren(a)
	for i, c := range children {
		st.Children = append(st.Children, s.nodeState(a, c, i < len(active) && active[i]))
	}
	return st
}

// conditionState evaluates the condition for display. Conditions run user
// code, so a fault is shown instead of aborting the broadcast.
func (s *Server) conditionState(a *ai.AI, n ai.TreeNode) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = ai.ConditionString(n.Condition()) + "[!]"
		}
	}()
	return ai.ConditionState(n.Condition(), a)
}

func (s *Server) broadcast(typ string, msg any) {
	b, err := Encode(msg)
	if err != nil {
		s.logger.Error("failed to encode debugger message", "type", typ, "err", err)
		return
	}
	if s.recorder != nil {
		if err := s.recorder.Record(b); err != nil {
			s.logger.Warn("failed to record debugger message", "type", typ, "err", err)
		}
	}
	if s.network != nil {
		s.network.Broadcast(b)
	}
}

func (s *Server) send(client ClientID, msg any) {
	if s.network == nil || client == "" {
		return
	}
	b, err := Encode(msg)
	if err != nil {
		s.logger.Error("failed to encode debugger message", "err", err)
		return
	}
	s.network.Send(client, b)
}

// ZoneNames returns the names of the known zones, sorted.
func (s *Server) ZoneNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zoneNames()
}

// Zone returns the attached zone, or nil.
func (s *Server) Zone() *ai.Zone {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zone
}

// Selected returns the selected character, or ai.NothingSelected.
func (s *Server) Selected() ai.CharacterID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// IsPaused reports whether the attached zone is paused.
func (s *Server) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}
