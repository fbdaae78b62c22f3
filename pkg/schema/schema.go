// Package schema discovers entities and relationships from a SQLite
// database so they can be shown as a diagram.
package schema

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ha1tch/erd-toolkit/pkg/erd"
	"github.com/ha1tch/erd-toolkit/pkg/erdfile"
)

// Column is one table column.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	PK       bool   `json:"pk"`
}

// ForeignKey is a declared reference between two tables.
type ForeignKey struct {
	FromTable  string `json:"from_table"`
	FromColumn string `json:"from_column"`
	ToTable    string `json:"to_table"`
	ToColumn   string `json:"to_column,omitempty"`
}

// Table is a table and its columns in declaration order.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Schema is everything read from the database.
type Schema struct {
	Tables      []Table      `json:"tables"`
	ForeignKeys []ForeignKey `json:"foreign_keys"`
}

// Options controls discovery.
type Options struct {
	HiddenPrefixes []string // tables starting with any of these are skipped
	KeySuffixes    []string // column name endings that mark a key
	ForeignKeys    bool     // also draw declared foreign keys
}

// DefaultOptions hides bookkeeping tables and uses the usual key suffixes.
func DefaultOptions() Options {
	return Options{
		HiddenPrefixes: []string{"System_", "sqlite_"},
		KeySuffixes:    []string{"codigo", "id", "rm"},
		ForeignKeys:    true,
	}
}

// Open opens a SQLite database and checks the connection.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}
	return db, nil
}

// LoadFile opens path and discovers its diagram.
func LoadFile(ctx context.Context, path string, opts Options) (*erd.Diagram, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return Discover(ctx, db, opts)
}

// Discover reads the schema and converts it to a diagram placed on the
// default grid.
func Discover(ctx context.Context, db *sql.DB, opts Options) (*erd.Diagram, error) {
	s, err := Introspect(ctx, db, opts)
	if err != nil {
		return nil, err
	}
	return s.Diagram("", opts), nil
}

// Introspect reads tables, columns and foreign keys. Tables are sorted by
// name and hidden tables are left out.
func Introspect(ctx context.Context, db *sql.DB, opts Options) (*Schema, error) {
	names, err := tableNames(ctx, db)
	if err != nil {
		return nil, err
	}

	s := &Schema{Tables: make([]Table, 0, len(names))}
	for _, name := range names {
		if hidden(name, opts.HiddenPrefixes) {
			continue
		}
		cols, err := columns(ctx, db, name)
		if err != nil {
			return nil, err
		}
		s.Tables = append(s.Tables, Table{Name: name, Columns: cols})

		if opts.ForeignKeys {
			fks, err := foreignKeys(ctx, db, name)
			if err != nil {
				return nil, err
			}
			s.ForeignKeys = append(s.ForeignKeys, fks...)
		}
	}
	return s, nil
}

func tableNames(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func columns(ctx context.Context, db *sql.DB, table string) ([]Column, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+quoteIdent(table)+")")
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var (
			cid     int
			c       Column
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &c.Name, &c.Type, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		c.Nullable = notNull == 0
		c.PK = pk > 0
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func foreignKeys(ctx context.Context, db *sql.DB, table string) ([]ForeignKey, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA foreign_key_list("+quoteIdent(table)+")")
	if err != nil {
		return nil, fmt.Errorf("failed to read foreign keys of %s: %w", table, err)
	}
	defer rows.Close()

	var fks []ForeignKey
	for rows.Next() {
		var (
			id, seq                   int
			ref, from                 string
			to                        sql.NullString
			onUpdate, onDelete, match string
		)
		if err := rows.Scan(&id, &seq, &ref, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key of %s: %w", table, err)
		}
		fks = append(fks, ForeignKey{FromTable: table, FromColumn: from, ToTable: ref, ToColumn: to.String})
	}
	return fks, rows.Err()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func hidden(name string, prefixes []string) bool {
	for _, p := range prefixes {
		if len(name) >= len(p) && strings.EqualFold(name[:len(p)], p) {
			return true
		}
	}
	return false
}

// IsKey reports whether c looks like a key: a declared primary key, or a
// name ending in one of suffixes (case-insensitive).
func IsKey(c Column, suffixes []string) bool {
	if c.PK {
		return true
	}
	lower := strings.ToLower(c.Name)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

// Diagram converts the schema to a diagram.
//
// A relationship is inferred whenever a key column of one table shares
// its name with any column of another table; it points from that other
// table to the table owning the key. Each pair of tables is connected at
// most once, in either direction. Declared foreign keys are added from
// the referencing table to the referenced one when the pair is not yet
// connected. Entities are placed on the default grid.
func (s *Schema) Diagram(name string, opts Options) *erd.Diagram {
	d := erd.New(name)
	for _, t := range s.Tables {
		fields := make([]erd.Field, len(t.Columns))
		for i, c := range t.Columns {
			fields[i] = erd.Field{Name: c.Name, IsKey: IsKey(c, opts.KeySuffixes)}
		}
		d.AddEntity(t.Name, t.Name, fields...)
	}
	erdfile.PlaceGrid(d)

	linked := make(map[[2]string]bool)
	link := func(from, to string) {
		k := pairKey(from, to)
		if from == to || linked[k] {
			return
		}
		linked[k] = true
		d.AddRelationship(from, to)
	}

	for _, src := range d.Entities {
		for _, f := range src.Fields {
			if !f.IsKey {
				continue
			}
			for _, dst := range d.Entities {
				if dst.ID != src.ID && hasField(dst, f.Name) {
					link(dst.ID, src.ID)
				}
			}
		}
	}

	present := d.Index()
	for _, fk := range s.ForeignKeys {
		_, okFrom := present[fk.FromTable]
		_, okTo := present[fk.ToTable]
		if okFrom && okTo {
			link(fk.FromTable, fk.ToTable)
		}
	}
	return d
}

func pairKey(a, b string) [2]string {
	k := [2]string{a, b}
	sort.Strings(k[:])
	return k
}

func hasField(e erd.Entity, name string) bool {
	for _, f := range e.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}
