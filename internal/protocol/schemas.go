package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var ErrUnknownType = errors.New("protocol: no schema for message type")

const schemaBase = "https://combatkeep.ai/schemas/"

// Inbound (client -> server) message schemas.
var inboundSchemas = map[string]string{
	TypeHello: `{
	  "type": "object",
	  "required": ["type", "protocol_version", "player_name"],
	  "properties": {
	    "type": {"const": "HELLO"},
	    "protocol_version": {"type": "string"},
	    "player_name": {"type": "string", "minLength": 1, "maxLength": 32},
	    "player_id": {"type": "string", "pattern": "^[0-9a-fA-F-]{36}$"},
	    "max_queue": {"type": "integer", "minimum": 1, "maximum": 64}
	  }
	}`,
	TypeAttack: `{
	  "type": "object",
	  "required": ["type", "protocol_version", "target"],
	  "properties": {
	    "type": {"const": "ATTACK"},
	    "protocol_version": {"type": "string"},
	    "target": {"type": "string", "minLength": 1, "maxLength": 64},
	    "ranged": {"type": "boolean"}
	  }
	}`,
	TypeDie: `{
	  "type": "object",
	  "required": ["type", "protocol_version"],
	  "properties": {
	    "type": {"const": "DIE"},
	    "protocol_version": {"type": "string"},
	    "cause": {"type": "string", "maxLength": 64}
	  }
	}`,
	TypeRespawn: `{
	  "type": "object",
	  "required": ["type", "protocol_version"],
	  "properties": {
	    "type": {"const": "RESPAWN"},
	    "protocol_version": {"type": "string"}
	  }
	}`,
	TypeMove: `{
	  "type": "object",
	  "required": ["type", "protocol_version", "pos"],
	  "properties": {
	    "type": {"const": "MOVE"},
	    "protocol_version": {"type": "string"},
	    "pos": {"type": "array", "items": {"type": "number"}, "minItems": 3, "maxItems": 3}
	  }
	}`,
	TypeGive: `{
	  "type": "object",
	  "required": ["type", "protocol_version", "item", "count"],
	  "properties": {
	    "type": {"const": "GIVE"},
	    "protocol_version": {"type": "string"},
	    "item": {"type": "string", "pattern": "^[A-Z0-9_]{1,48}$"},
	    "count": {"type": "integer", "minimum": 1, "maximum": 4096}
	  }
	}`,
}

// Validator checks raw inbound messages against their schema.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	for typ, src := range inboundSchemas {
		if err := c.AddResource(schemaURL(typ), strings.NewReader(src)); err != nil {
			return nil, fmt.Errorf("schema %s: %w", typ, err)
		}
	}
	v := &Validator{schemas: make(map[string]*jsonschema.Schema, len(inboundSchemas))}
	for typ := range inboundSchemas {
		s, err := c.Compile(schemaURL(typ))
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", typ, err)
		}
		v.schemas[typ] = s
	}
	return v, nil
}

func (v *Validator) Validate(typ string, raw []byte) error {
	s, ok := v.schemas[typ]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return s.Validate(doc)
}

func schemaURL(typ string) string {
	return schemaBase + strings.ToLower(typ) + ".schema.json"
}
