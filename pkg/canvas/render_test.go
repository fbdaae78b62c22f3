package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ha1tch/erd-toolkit/pkg/erd"
	"github.com/ha1tch/erd-toolkit/pkg/erdfile"
)

func twoEntities() *erd.Diagram {
	d := erd.New("pair")
	d.AddEntity("users", "Users", erd.Field{Name: "user_id", IsKey: true}, erd.Field{Name: "name"})
	d.AddEntity("posts", "Posts", erd.Field{Name: "post_id", IsKey: true})
	d.Entities[0].X, d.Entities[0].Y = 100, 100
	d.Entities[1].X, d.Entities[1].Y = 500, 100
	d.AddRelationship("users", "posts")
	d.AddRelationship("users", "ghost")
	d.AddRelationship("posts", "posts")
	return d
}

func TestBuildFrameEntities(t *testing.T) {
	v := Viewport{PanX: 10, PanY: 20, Scale: 2}
	f := BuildFrame(twoEntities(), v, 800, 600, "posts")

	require.Len(t, f.Entities, 2)
	u := f.Entities[0]
	assert.Equal(t, erdfile.Rect{X: 210, Y: 220, W: 360, H: 2 * erdfile.EntityHeight(2)}, u.Box)
	assert.Equal(t, 2*erdfile.HeaderHeight, u.Header.H)
	require.Len(t, u.Rows, 2)
	assert.True(t, u.Rows[0].IsKey)
	assert.False(t, u.Rows[1].IsKey)
	assert.Equal(t, u.Box.Y+2*erdfile.HeaderHeight+2*erdfile.RowHeight, u.Rows[1].Box.Y)
	assert.False(t, u.Dragging)
	assert.True(t, f.Entities[1].Dragging)
}

func TestBuildFrameEdges(t *testing.T) {
	d := twoEntities()
	v := Viewport{PanX: 10, PanY: 20, Scale: 2}
	f := BuildFrame(d, v, 800, 600, "")

	// Missing endpoints and self-loops are dropped
	require.Len(t, f.Edges, 1)
	e := f.Edges[0]
	assert.Equal(t, "users", e.From)
	assert.Equal(t, "posts", e.To)

	world := erdfile.EdgeCurve(d.Entities[0], d.Entities[1])
	assert.Equal(t, v.WorldToScreen(world.Start), e.Curve.Start)
	assert.Equal(t, v.WorldToScreen(world.End), e.Curve.End)

	// Straight connector leaves the right wall of users
	assert.InDelta(t, v.WorldToScreen(erdfile.Point{X: 280}).X, e.LineStart.X, 1e-9)
}

func TestGridFollowsViewport(t *testing.T) {
	f := BuildFrame(erd.New(""), Viewport{PanX: -10, PanY: 100, Scale: 2}, 100, 100, "")
	assert.Equal(t, 48.0, f.Grid.Spacing)
	assert.Equal(t, 38.0, f.Grid.OffsetX)
	assert.Equal(t, 4.0, f.Grid.OffsetY)
}

func TestMinimap(t *testing.T) {
	v := Viewport{PanX: -100, PanY: -50, Scale: 2}
	f := BuildFrame(twoEntities(), v, 800, 600, "")

	require.Len(t, f.Minimap.Boxes, 2)
	assert.Equal(t, 600.0, f.Minimap.Boxes[0].X)
	assert.Equal(t, 600.0, f.Minimap.Boxes[0].Y)
	assert.Equal(t, erdfile.Rect{X: 550, Y: 525, W: 400, H: 300}, f.Minimap.View)

	// A 100x50 target shows the square world at 50x50, centred
	p := f.Minimap.Project(erdfile.Rect{X: 0, Y: 0, W: MinimapWorld, H: MinimapWorld}, 100, 50)
	assert.Equal(t, erdfile.Rect{X: 25, Y: 0, W: 50, H: 50}, p)
}
