package erdfile

import (
	"fmt"
	"strings"

	"github.com/ha1tch/erd-toolkit/pkg/erd"
)

// GenerateDOT converts a diagram to Graphviz DOT format. Entities become
// record nodes with one row per field; key fields are marked with '#'.
// Edges follow ResolveEdges, so dangling relationships are left out.
func GenerateDOT(d *erd.Diagram) string {
	var sb strings.Builder

	sb.WriteString("digraph ERD {\n")
	sb.WriteString("    rankdir=BT;\n")
	sb.WriteString("    node [shape=record, fontname=\"Helvetica\", fontsize=11];\n")
	sb.WriteString("    edge [arrowhead=normal, color=\"#94a3b8\"];\n")
	sb.WriteString("\n")

	if d.Name != "" {
		sb.WriteString("    labelloc=\"t\";\n")
		sb.WriteString(fmt.Sprintf("    label=\"%s\";\n", escapeDOT(d.Name)))
		sb.WriteString("\n")
	}

	for _, e := range d.Entities {
		rows := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			name := escapeRecord(f.Name)
			if f.IsKey {
				name = "# " + name
			}
			rows[i] = name + "\\l"
		}
		label := escapeRecord(e.Label)
		if len(rows) > 0 {
			label += "|" + strings.Join(rows, "")
		}
		sb.WriteString(fmt.Sprintf("    \"%s\" [label=\"{%s}\"];\n", escapeDOT(e.ID), label))
	}
	sb.WriteString("\n")

	for _, e := range ResolveEdges(d) {
		sb.WriteString(fmt.Sprintf("    \"%s\" -> \"%s\";\n", escapeDOT(e.From), escapeDOT(e.To)))
	}

	sb.WriteString("}\n")
	return sb.String()
}

func escapeDOT(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	return s
}

// escapeRecord escapes text inside a record label, where braces, bars
// and angle brackets are structural.
func escapeRecord(s string) string {
	s = escapeDOT(s)
	for _, c := range []string{"{", "}", "|", "<", ">"} {
		s = strings.ReplaceAll(s, c, "\\"+c)
	}
	return s
}
