// Package erd provides the entity-relationship diagram model.
package erd

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyID is returned when an entity has no identifier.
	ErrEmptyID = errors.New("entity id is empty")
	// ErrDuplicateID is returned when two entities share an identifier.
	ErrDuplicateID = errors.New("duplicate entity id")
)

// Field is one row of an entity.
type Field struct {
	Name  string `json:"name"`
	IsKey bool   `json:"isKey,omitempty"`
}

// Entity is a labelled box with an ordered field list.
// X and Y locate the top-left corner in world space.
type Entity struct {
	ID     string  `json:"id"`
	Label  string  `json:"label"`
	Fields []Field `json:"fields"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// Relationship is a directed connector between two entities.
type Relationship struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Diagram holds the entities and relationships of one load.
type Diagram struct {
	Name          string         `json:"name,omitempty"`
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
}

// Position is the location of a single entity.
type Position struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// Snapshot is the full set of entity positions at one point in time.
type Snapshot []Position

// New creates an empty diagram.
func New(name string) *Diagram {
	return &Diagram{
		Name:          name,
		Entities:      make([]Entity, 0),
		Relationships: make([]Relationship, 0),
	}
}

// AddEntity appends an entity. Its position is left at the origin.
func (d *Diagram) AddEntity(id, label string, fields ...Field) {
	d.Entities = append(d.Entities, Entity{ID: id, Label: label, Fields: fields})
}

// AddRelationship appends a relationship, skipping exact duplicates.
func (d *Diagram) AddRelationship(from, to string) {
	for _, r := range d.Relationships {
		if r.From == from && r.To == to {
			return
		}
	}
	d.Relationships = append(d.Relationships, Relationship{From: from, To: to})
}

// Validate checks that every entity has a unique, non-empty id.
// Relationships are not checked: dangling endpoints are tolerated.
func (d *Diagram) Validate() error {
	seen := make(map[string]bool, len(d.Entities))
	for i, e := range d.Entities {
		if e.ID == "" {
			return fmt.Errorf("entity %d: %w", i, ErrEmptyID)
		}
		if seen[e.ID] {
			return fmt.Errorf("%w: %q", ErrDuplicateID, e.ID)
		}
		seen[e.ID] = true
	}
	return nil
}

// Index maps entity ids to their slice position.
func (d *Diagram) Index() map[string]int {
	idx := make(map[string]int, len(d.Entities))
	for i, e := range d.Entities {
		idx[e.ID] = i
	}
	return idx
}

// Entity returns the entity with the given id.
func (d *Diagram) Entity(id string) (*Entity, bool) {
	for i := range d.Entities {
		if d.Entities[i].ID == id {
			return &d.Entities[i], true
		}
	}
	return nil, false
}

// Snapshot captures the current positions.
func (d *Diagram) Snapshot() Snapshot {
	s := make(Snapshot, len(d.Entities))
	for i, e := range d.Entities {
		s[i] = Position{ID: e.ID, X: e.X, Y: e.Y}
	}
	return s
}

// Apply moves entities to the positions in s. Ids not present in the
// diagram are ignored, and entities missing from s keep their position.
func (d *Diagram) Apply(s Snapshot) {
	idx := d.Index()
	for _, p := range s {
		if i, ok := idx[p.ID]; ok {
			d.Entities[i].X = p.X
			d.Entities[i].Y = p.Y
		}
	}
}

// Clone returns a deep copy of the diagram.
func (d *Diagram) Clone() *Diagram {
	c := &Diagram{
		Name:          d.Name,
		Entities:      make([]Entity, len(d.Entities)),
		Relationships: make([]Relationship, len(d.Relationships)),
	}
	for i, e := range d.Entities {
		e.Fields = append([]Field(nil), e.Fields...)
		c.Entities[i] = e
	}
	copy(c.Relationships, d.Relationships)
	return c
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	c := make(Snapshot, len(s))
	copy(c, s)
	return c
}

// Equal reports whether two snapshots hold the same positions in the same order.
func (s Snapshot) Equal(o Snapshot) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}
