package erdfile

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ha1tch/erd-toolkit/pkg/erd"
)

// jsonDiagram is the JSON representation of a diagram.
type jsonDiagram struct {
	Name          string             `json:"name,omitempty"`
	Entities      []jsonEntity       `json:"entities"`
	Relationships []erd.Relationship `json:"relationships"`
}

type jsonEntity struct {
	ID     string      `json:"id"`
	Label  string      `json:"label,omitempty"`
	Fields []jsonField `json:"fields"`
	X      *float64    `json:"x,omitempty"`
	Y      *float64    `json:"y,omitempty"`
}

// jsonField is either {"name": ..., "isKey": ...} or a bare string, where a
// leading '#' marks a key field.
type jsonField erd.Field

func (f *jsonField) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		f.IsKey = strings.HasPrefix(s, "#")
		f.Name = strings.TrimPrefix(s, "#")
		return nil
	}
	var obj struct {
		Name  string `json:"name"`
		IsKey bool   `json:"isKey"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("field must be a string or an object: %w", err)
	}
	f.Name, f.IsKey = obj.Name, obj.IsKey
	return nil
}

// ParseJSON parses a diagram from JSON.
// Entities without a position are placed on the default grid.
func ParseJSON(data []byte) (*erd.Diagram, error) {
	var j jsonDiagram
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}

	d := erd.New(j.Name)
	for i, je := range j.Entities {
		label := je.Label
		if label == "" {
			label = je.ID
		}
		e := erd.Entity{ID: je.ID, Label: label, Fields: make([]erd.Field, len(je.Fields))}
		for k, f := range je.Fields {
			e.Fields[k] = erd.Field(f)
		}
		if je.X != nil && je.Y != nil {
			e.X, e.Y = *je.X, *je.Y
		} else {
			p := GridPosition(i)
			e.X, e.Y = p.X, p.Y
		}
		d.Entities = append(d.Entities, e)
	}
	for _, r := range j.Relationships {
		d.AddRelationship(r.From, r.To)
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// ToJSON converts a diagram to JSON, positions included.
func ToJSON(d *erd.Diagram, pretty bool) ([]byte, error) {
	j := jsonDiagram{
		Name:          d.Name,
		Entities:      make([]jsonEntity, len(d.Entities)),
		Relationships: d.Relationships,
	}
	if j.Relationships == nil {
		j.Relationships = []erd.Relationship{}
	}
	for i, e := range d.Entities {
		x, y := e.X, e.Y
		je := jsonEntity{ID: e.ID, Label: e.Label, Fields: make([]jsonField, len(e.Fields)), X: &x, Y: &y}
		for k, f := range e.Fields {
			je.Fields[k] = jsonField(f)
		}
		j.Entities[i] = je
	}

	if pretty {
		return json.MarshalIndent(j, "", "  ")
	}
	return json.Marshal(j)
}
