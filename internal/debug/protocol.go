// Package debug implements the live debugger of the behaviour tree runtime:
// a JSON message protocol, the Server state machine that attaches to one
// zone at a time, and a recorder for the broadcast stream.
package debug

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vengi-voxel/vengi-sub015/internal/ai"
)

// ErrProtocol is wrapped by every error caused by a malformed or rejected
// client message.
var ErrProtocol = errors.New("protocol error")

// Client to server message types.
const (
	TypeSelect     = "select"
	TypePause      = "pause"
	TypeStep       = "step"
	TypeReset      = "reset"
	TypeAddNode    = "addNode"
	TypeDeleteNode = "deleteNode"
	TypeUpdateNode = "updateNode"
	TypeChangeZone = "changeZone"
	TypePing       = "ping"
)

// Server to client message types. TypePause is shared.
const (
	TypeNames            = "names"
	TypeCharacterStatic  = "characterStatic"
	TypeCharacterDetails = "characterDetails"
	TypeState            = "state"
	TypeResult           = "result"
)

// Envelope is the header of every message.
type Envelope struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

func envelope(typ string) Envelope { return Envelope{Type: typ, Success: true} }

// SelectMsg selects the character whose details get broadcast.
type SelectMsg struct {
	Envelope
	CharacterID ai.CharacterID `json:"characterId"`
}

// PauseMsg is sent by clients to toggle pausing and by the server to
// announce the current pause state.
type PauseMsg struct {
	Envelope
	Pause bool `json:"pause"`
}

// StepMsg advances a paused zone by Millis.
type StepMsg struct {
	Envelope
	Millis int64 `json:"millis"`
}

// AddNodeMsg adds a node below ParentNodeID of the character's tree.
type AddNodeMsg struct {
	Envelope
	CharacterID  ai.CharacterID `json:"characterId"`
	ParentNodeID int32          `json:"parentNodeId"`
	Name         string         `json:"name"`
	NodeType     string         `json:"nodeType"`
	Condition    string         `json:"condition"`
}

// DeleteNodeMsg removes a non-root node.
type DeleteNodeMsg struct {
	Envelope
	CharacterID ai.CharacterID `json:"characterId"`
	NodeID      int32          `json:"nodeId"`
}

// UpdateNodeMsg replaces a node, keeping its children.
type UpdateNodeMsg struct {
	Envelope
	CharacterID ai.CharacterID `json:"characterId"`
	NodeID      int32          `json:"nodeId"`
	Name        string         `json:"name"`
	NodeType    string         `json:"nodeType"`
	Condition   string         `json:"condition"`
}

// ChangeZoneMsg attaches the debugger to the named zone.
type ChangeZoneMsg struct {
	Envelope
	Name string `json:"name"`
}

// NamesMsg lists the zones known to the server.
type NamesMsg struct {
	Envelope
	Names []string `json:"names"`
}

// NodeStatic is the static description of one tree node.
type NodeStatic struct {
	ID                  int32  `json:"id"`
	Name                string `json:"name"`
	NodeType            string `json:"nodeType"`
	Parameters          string `json:"parameters"`
	ConditionType       string `json:"conditionType"`
	ConditionParameters string `json:"conditionParameters"`
}

// CharacterStaticMsg carries the flattened tree of the selected character,
// root first, depth first.
type CharacterStaticMsg struct {
	Envelope
	CharacterID ai.CharacterID `json:"characterId"`
	Nodes       []NodeStatic   `json:"nodes"`
}

// NodeState is the runtime state of one node for one AI.
type NodeState struct {
	ID        int32  `json:"id"`
	Condition string `json:"condition"`
	// LastRun is the time since the node last ran, -1 if it never did.
	LastRun  int64       `json:"lastRun"`
	Status   string      `json:"status"`
	Running  bool        `json:"running"`
	Children []NodeState `json:"children,omitempty"`
}

// CharacterDetailsMsg carries the runtime state of the selected character.
type CharacterDetailsMsg struct {
	Envelope
	CharacterID ai.CharacterID  `json:"characterId"`
	Aggro       []ai.AggroEntry `json:"aggro"`
	Root        NodeState       `json:"root"`
}

// Position is the wire form of ai.Vec3.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// WorldState is the world view of one character.
type WorldState struct {
	CharacterID ai.CharacterID    `json:"id"`
	Position    Position          `json:"position"`
	Orientation float64           `json:"orientation"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// StateMsg carries the world state of every character in the zone.
type StateMsg struct {
	Envelope
	States []WorldState `json:"states"`
}

// ResultMsg answers a client request.
type ResultMsg struct {
	Envelope
	Request string `json:"request"`
}

func result(request string, err error) ResultMsg {
	m := ResultMsg{Envelope: envelope(TypeResult), Request: request}
	if err != nil {
		m.Success = false
		m.Reason = err.Error()
	}
	return m
}

// Decode validates raw against the client schema and decodes it into the
// typed message for its type.
func Decode(raw []byte) (any, error) {
	if err := validateClient(raw); err != nil {
		return nil, err
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	var msg any
	switch env.Type {
	case TypeSelect:
		msg = &SelectMsg{}
	case TypePause:
		msg = &PauseMsg{}
	case TypeStep:
		msg = &StepMsg{}
	case TypeReset, TypePing:
		return &env, nil
	case TypeAddNode:
		msg = &AddNodeMsg{}
	case TypeDeleteNode:
		msg = &DeleteNodeMsg{}
	case TypeUpdateNode:
		msg = &UpdateNodeMsg{}
	case TypeChangeZone:
		msg = &ChangeZoneMsg{}
	default:
		return nil, fmt.Errorf("%w: unknown message type %q", ErrProtocol, env.Type)
	}
	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrProtocol, env.Type, err)
	}
	return msg, nil
}

// Encode marshals a server message.
func Encode(msg any) ([]byte, error) {
	return json.Marshal(msg)
}
