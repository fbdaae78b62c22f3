package erdfile

import (
	"strings"
	"testing"

	"github.com/ha1tch/erd-toolkit/pkg/erd"
)

func TestGenerateDOT(t *testing.T) {
	d := erd.New("school")
	d.AddEntity("alunos", "Alunos", erd.Field{Name: "rm", IsKey: true}, erd.Field{Name: "nome"})
	d.AddEntity("matriculas", "Matrículas", erd.Field{Name: "rm"})
	d.AddEntity("empty", "Empty")
	d.AddRelationship("matriculas", "alunos")
	d.AddRelationship("matriculas", "gone")

	dot := GenerateDOT(d)

	for _, want := range []string{
		"digraph ERD {",
		`label="school";`,
		`"alunos" [label="{Alunos|# rm\lnome\l}"];`,
		`"matriculas" [label="{Matrículas|rm\l}"];`,
		`"empty" [label="{Empty}"];`,
		`"matriculas" -> "alunos";`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}
	if strings.Contains(dot, "gone") {
		t.Error("dangling relationship written")
	}
	if !strings.HasSuffix(dot, "}\n") {
		t.Error("DOT not terminated")
	}
}

func TestEscapeRecord(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{`say "hi"`, `say \"hi\"`},
		{"a|b", `a\|b`},
		{"<tag>", `\<tag\>`},
		{"{x}", `\{x\}`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		if got := escapeRecord(tt.in); got != tt.want {
			t.Errorf("escapeRecord(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
