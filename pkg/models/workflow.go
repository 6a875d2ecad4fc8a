package models

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/tidwall/gjson"
)

// FieldType is the declared primitive type of a schema field.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldObject  FieldType = "object"
	FieldArray   FieldType = "array"
)

// SchemaField is one named, typed property of a flat object schema.
type SchemaField struct {
	Name string
	Type FieldType
}

// Schema is the flat object shape a workflow declares for its input or
// output. Property order is the declaration order of the source document;
// the field matcher's tie-breaking rules depend on it, so it survives JSON
// round-trips.
type Schema struct {
	Properties []SchemaField
	Required   []string
}

// IsEmpty reports whether the schema declares no properties.
func (s Schema) IsEmpty() bool {
	return len(s.Properties) == 0
}

// TypeOf returns the declared type of the named property.
func (s Schema) TypeOf(name string) (FieldType, bool) {
	for _, p := range s.Properties {
		if p.Name == name {
			return p.Type, true
		}
	}
	return "", false
}

// UnmarshalJSON accepts a JSON-Schema-like object
// {"type":"object","properties":{...},"required":[...]} and preserves the
// document order of the properties keys. Anything malformed (non-object
// input, missing properties) degrades to an empty schema rather than
// erroring; trivial compatibility handles it downstream.
func (s *Schema) UnmarshalJSON(data []byte) error {
	*s = Schema{}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil
	}
	doc.Get("properties").ForEach(func(key, value gjson.Result) bool {
		s.Properties = append(s.Properties, SchemaField{
			Name: key.String(),
			Type: FieldType(value.Get("type").String()),
		})
		return true
	})
	for _, r := range doc.Get("required").Array() {
		s.Required = append(s.Required, r.String())
	}
	return nil
}

// MarshalJSON writes the schema back out with properties in declaration
// order.
func (s Schema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"type":"object","properties":{`)
	for i, p := range s.Properties {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(p.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteString(`:{"type":"`)
		buf.WriteString(string(p.Type))
		buf.WriteString(`"}`)
	}
	buf.WriteByte('}')
	if len(s.Required) > 0 {
		req, err := json.Marshal(s.Required)
		if err != nil {
			return nil, err
		}
		buf.WriteString(`,"required":`)
		buf.Write(req)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// WorkflowDescriptor is an externally hosted, priced unit of work listed on
// the marketplace. Descriptors are immutable for the duration of a
// composition pass; the catalog owns them.
type WorkflowDescriptor struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	Description          string    `json:"description"`
	Category             string    `json:"category"`
	OwnerAddress         string    `json:"owner_address,omitempty"`
	Endpoint             string    `json:"endpoint,omitempty"`
	InputSchema          Schema    `json:"input_schema"`
	OutputSchema         Schema    `json:"output_schema"`
	Price                int64     `json:"price"` // smallest currency unit (micro-USDC)
	TotalExecutions      int64     `json:"total_executions"`
	SuccessfulExecutions int64     `json:"successful_executions"`
	CreatedAt            time.Time `json:"created_at,omitempty"`
	UpdatedAt            time.Time `json:"updated_at,omitempty"`
}

// SuccessRate returns the fraction of recorded executions that succeeded.
func (w *WorkflowDescriptor) SuccessRate() float64 {
	if w.TotalExecutions == 0 {
		return 0
	}
	return float64(w.SuccessfulExecutions) / float64(w.TotalExecutions)
}
