package main

import (
	"strings"
	"testing"

	"github.com/ha1tch/erd-toolkit/pkg/erd"
)

func TestOverlaps(t *testing.T) {
	d := erd.New("")
	d.AddEntity("a", "A")
	d.AddEntity("b", "B")
	d.AddEntity("c", "C")
	d.Entities[1].X = 100 // overlaps a
	d.Entities[2].X = 1000

	if got := overlaps(d); got != 1 {
		t.Errorf("got %d overlaps, want 1", got)
	}
}

func TestDescribe(t *testing.T) {
	d := erd.New("")
	d.AddEntity("users", "Users", erd.Field{Name: "user_id", IsKey: true})
	d.AddEntity("posts", "Posts", erd.Field{Name: "user_id"})
	d.Entities[1].X = 400
	d.AddRelationship("posts", "users")
	d.AddRelationship("posts", "gone")

	out := describe("blog.json", d)
	for _, want := range []string{"blog.json", "USERS", "user_id", "posts -> users", "missing endpoint"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

