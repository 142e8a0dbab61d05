// Package automation builds, validates and delivers payloads for the external
// content-generation workflows.
package automation

import (
	"encoding/json"
	"maps"
	"slices"
)

// Identifier selects the external workflow a payload targets.
type Identifier string

const (
	GenerateAngles   Identifier = "generate-angles"
	GenerateIdeas    Identifier = "generate-ideas"
	GenerateContent  Identifier = "generate-content"
	Autofill         Identifier = "autofill"
	RealEstateIngest Identifier = "real-estate-ingest"
	AvatarVideo      Identifier = "avatar-video"
	ProductCampaign  Identifier = "product-campaign"
)

// DefaultSource tags payloads that originate from this service.
const DefaultSource = "contentflow-core"

const genericContract = "generic@1"

var contractVersions = map[Identifier]string{
	GenerateAngles:   "generate-angles@2",
	GenerateIdeas:    "generate-ideas@2",
	GenerateContent:  "generate-content@2",
	Autofill:         "autofill@1",
	RealEstateIngest: "real-estate-ingest@1",
	AvatarVideo:      "avatar-video@1",
	ProductCampaign:  "product-campaign@1",
}

// Identifiers lists the known workflows.
func Identifiers() []Identifier {
	return []Identifier{
		GenerateAngles, GenerateIdeas, GenerateContent, Autofill,
		RealEstateIngest, AvatarVideo, ProductCampaign,
	}
}

// Known reports whether id is one of the fixed workflows.
func (id Identifier) Known() bool {
	_, ok := contractVersions[id]
	return ok
}

// Contract returns the contract version tag of the workflow.
func (id Identifier) Contract() string {
	if v, ok := contractVersions[id]; ok {
		return v
	}
	return genericContract
}

// Meta is the envelope metadata attached to every payload.
type Meta struct {
	UserID    *string `json:"user_id"`
	Source    string  `json:"source"`
	TS        string  `json:"ts"`
	Contract  string  `json:"contract"`
	RequestID string  `json:"request_id"`
}

// Payload is one outbound workflow call. Fields carries the workflow specific
// top-level keys and is flattened next to identifier, operation and meta on
// the wire.
type Payload struct {
	Identifier Identifier
	Operation  string
	Meta       *Meta
	Fields     map[string]any
}

// RequestID returns meta.request_id, or "" when meta is absent.
func (p *Payload) RequestID() string {
	if p == nil || p.Meta == nil {
		return ""
	}
	return p.Meta.RequestID
}

// Get returns a workflow field.
func (p *Payload) Get(key string) (any, bool) {
	if p == nil || p.Fields == nil {
		return nil, false
	}
	v, ok := p.Fields[key]
	return v, ok
}

// Set stores a workflow field, allocating Fields on first use.
func (p *Payload) Set(key string, value any) {
	if p.Fields == nil {
		p.Fields = map[string]any{}
	}
	p.Fields[key] = value
}

// Clone returns a deep copy so validation never aliases the caller's payload.
func (p *Payload) Clone() *Payload {
	if p == nil {
		return nil
	}
	out := &Payload{Identifier: p.Identifier, Operation: p.Operation}
	if p.Meta != nil {
		m := *p.Meta
		if p.Meta.UserID != nil {
			uid := *p.Meta.UserID
			m.UserID = &uid
		}
		out.Meta = &m
	}
	if p.Fields != nil {
		out.Fields = make(map[string]any, len(p.Fields))
		for k, v := range p.Fields {
			out.Fields[k] = cloneValue(v)
		}
	}
	return out
}

func cloneValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, item := range typed {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return slices.Clone(typed)
	case map[string]string:
		return maps.Clone(typed)
	default:
		return v
	}
}

var reservedKeys = map[string]struct{}{"identifier": {}, "operation": {}, "meta": {}}

// MarshalJSON flattens Fields into the top-level object.
func (p Payload) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Fields)+3)
	for k, v := range p.Fields {
		if _, reserved := reservedKeys[k]; reserved {
			continue
		}
		out[k] = v
	}
	out["identifier"] = p.Identifier
	out["operation"] = p.Operation
	if p.Meta != nil {
		out["meta"] = p.Meta
	}
	return json.Marshal(out)
}

// UnmarshalJSON is lenient: malformed meta is dropped rather than rejected so
// the validator can report and repair it.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Payload{Fields: map[string]any{}}
	for k, v := range raw {
		switch k {
		case "identifier":
			var s string
			if json.Unmarshal(v, &s) == nil {
				p.Identifier = Identifier(s)
			}
		case "operation":
			var s string
			if json.Unmarshal(v, &s) == nil {
				p.Operation = s
			}
		case "meta":
			var m Meta
			if json.Unmarshal(v, &m) == nil && string(v) != "null" {
				p.Meta = &m
			}
		default:
			var item any
			if err := json.Unmarshal(v, &item); err != nil {
				return err
			}
			p.Fields[k] = item
		}
	}
	return nil
}
