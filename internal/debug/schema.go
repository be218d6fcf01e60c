package debug

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const clientSchemaURL = "simpleai://debug/client.schema.json"

// clientSchema describes every message a debugger client may send.
const clientSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type"],
  "properties": {
    "type": {
      "enum": ["select", "pause", "step", "reset", "addNode", "deleteNode", "updateNode", "changeZone", "ping"]
    },
    "success": {"type": "boolean"},
    "reason": {"type": "string"}
  },
  "$defs": {
    "id": {"type": "integer", "minimum": -2147483648, "maximum": 2147483647},
    "text": {"type": "string", "maxLength": 4096}
  },
  "allOf": [
    {
      "if": {"properties": {"type": {"const": "select"}}},
      "then": {"required": ["characterId"], "properties": {"characterId": {"$ref": "#/$defs/id"}}}
    },
    {
      "if": {"properties": {"type": {"const": "pause"}}},
      "then": {"required": ["pause"], "properties": {"pause": {"type": "boolean"}}}
    },
    {
      "if": {"properties": {"type": {"const": "step"}}},
      "then": {"properties": {"millis": {"type": "integer", "minimum": 0}}}
    },
    {
      "if": {"properties": {"type": {"const": "addNode"}}},
      "then": {
        "required": ["characterId", "parentNodeId", "nodeType"],
        "properties": {
          "characterId": {"$ref": "#/$defs/id"},
          "parentNodeId": {"$ref": "#/$defs/id"},
          "name": {"$ref": "#/$defs/text"},
          "nodeType": {"$ref": "#/$defs/text", "minLength": 1},
          "condition": {"$ref": "#/$defs/text"}
        }
      }
    },
    {
      "if": {"properties": {"type": {"const": "deleteNode"}}},
      "then": {
        "required": ["characterId", "nodeId"],
        "properties": {"characterId": {"$ref": "#/$defs/id"}, "nodeId": {"$ref": "#/$defs/id"}}
      }
    },
    {
      "if": {"properties": {"type": {"const": "updateNode"}}},
      "then": {
        "required": ["characterId", "nodeId", "nodeType"],
        "properties": {
          "characterId": {"$ref": "#/$defs/id"},
          "nodeId": {"$ref": "#/$defs/id"},
          "name": {"$ref": "#/$defs/text"},
          "nodeType": {"$ref": "#/$defs/text", "minLength": 1},
          "condition": {"$ref": "#/$defs/text"}
        }
      }
    },
    {
      "if": {"properties": {"type": {"const": "changeZone"}}},
      "then": {"required": ["name"], "properties": {"name": {"type": "string"}}}
    }
  ]
}`

var compiledClientSchema = jsonschema.MustCompileString(clientSchemaURL, clientSchema)

func validateClient(raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if err := compiledClientSchema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	return nil
}
