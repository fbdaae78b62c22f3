package erdfile

import (
	"math"
	"sort"

	"github.com/ha1tch/erd-toolkit/pkg/erd"
)

// LayoutAlgorithm represents a layout strategy.
type LayoutAlgorithm int

const (
	LayoutForceDirected LayoutAlgorithm = iota
	LayoutGrid
	LayoutCircular
	LayoutLayered
)

// String returns the algorithm name used on the command line.
func (a LayoutAlgorithm) String() string {
	switch a {
	case LayoutGrid:
		return "grid"
	case LayoutCircular:
		return "circular"
	case LayoutLayered:
		return "layered"
	default:
		return "force"
	}
}

// ParseLayoutAlgorithm maps a name to an algorithm. ok is false for unknown names.
func ParseLayoutAlgorithm(name string) (LayoutAlgorithm, bool) {
	switch name {
	case "force", "":
		return LayoutForceDirected, true
	case "grid":
		return LayoutGrid, true
	case "circular":
		return LayoutCircular, true
	case "layered":
		return LayoutLayered, true
	}
	return LayoutForceDirected, false
}

// Grid placement used when a diagram arrives without positions.
const (
	GridColumns = 3
	GridSpacing = 250.0
	GridOrigin  = 100.0
)

// LayoutOptions tunes the force simulation.
type LayoutOptions struct {
	Iterations      int     // fixed number of steps, no convergence check
	Center          Point   // gravity well
	Repulsion       float64 // Coulomb constant
	RepulsionScale  float64 // applied on top of Repulsion
	SpringLength    float64 // ideal edge length
	SpringStiffness float64
	Gravity         float64 // fraction of the distance to Center per step
}

// DefaultLayoutOptions returns the standard simulation constants.
func DefaultLayoutOptions() LayoutOptions {
	return LayoutOptions{
		Iterations:      100,
		Center:          Point{500, 400},
		Repulsion:       500000,
		RepulsionScale:  0.1,
		SpringLength:    250,
		SpringStiffness: 0.05,
		Gravity:         0.005,
	}
}

// Simulation is a resumable force-directed layout run.
// It works on a private copy of the positions; the diagram is not touched.
type Simulation struct {
	opts  LayoutOptions
	ids   []string
	pos   []Point // top-left corners
	half  []Point // half extents
	edges [][2]int
	iter  int
}

// NewSimulation seeds a run from the diagram's current positions.
func NewSimulation(d *erd.Diagram, opts LayoutOptions) *Simulation {
	if opts.Iterations < 0 {
		opts.Iterations = 0
	}
	s := &Simulation{
		opts: opts,
		ids:  make([]string, len(d.Entities)),
		pos:  make([]Point, len(d.Entities)),
		half: make([]Point, len(d.Entities)),
	}
	for i, e := range d.Entities {
		r := EntityRect(e)
		s.ids[i] = e.ID
		s.pos[i] = Point{e.X, e.Y}
		s.half[i] = Point{r.W / 2, r.H / 2}
	}
	s.edges = edgeIndices(d)
	return s
}

// Step runs one iteration. It returns false once the budget is spent.
func (s *Simulation) Step() bool {
	if s.iter >= s.opts.Iterations {
		return false
	}
	s.pos = step(s.pos, s.half, s.edges, s.opts)
	s.iter++
	return true
}

// Advance runs up to n iterations and returns how many remain.
func (s *Simulation) Advance(n int) int {
	for i := 0; i < n && s.Step(); i++ {
	}
	return s.Remaining()
}

// Run finishes the remaining iterations.
func (s *Simulation) Run() erd.Snapshot {
	for s.Step() {
	}
	return s.Snapshot()
}

// Iteration returns the number of completed iterations.
func (s *Simulation) Iteration() int { return s.iter }

// Remaining returns the number of iterations left.
func (s *Simulation) Remaining() int { return s.opts.Iterations - s.iter }

// Done reports whether the iteration budget is spent.
func (s *Simulation) Done() bool { return s.iter >= s.opts.Iterations }

// Snapshot returns the current simulated positions.
func (s *Simulation) Snapshot() erd.Snapshot {
	snap := make(erd.Snapshot, len(s.ids))
	for i, id := range s.ids {
		snap[i] = erd.Position{ID: id, X: s.pos[i].X, Y: s.pos[i].Y}
	}
	return snap
}

// Step applies one iteration to snap and returns the new snapshot.
// snap is read, never written. Entities missing from snap keep the
// position stored in d.
func Step(d *erd.Diagram, snap erd.Snapshot, opts LayoutOptions) erd.Snapshot {
	work := d.Clone()
	work.Apply(snap)
	sim := NewSimulation(work, opts)
	sim.pos = step(sim.pos, sim.half, sim.edges, opts)
	return sim.Snapshot()
}

// AutoLayout computes new positions with the chosen algorithm.
// The diagram itself is left unchanged.
func AutoLayout(d *erd.Diagram, algorithm LayoutAlgorithm, opts LayoutOptions) erd.Snapshot {
	switch algorithm {
	case LayoutGrid:
		return layoutGrid(d)
	case LayoutCircular:
		return layoutCircular(d, opts.Center)
	case LayoutLayered:
		return layoutLayered(d, opts.Center)
	default:
		return NewSimulation(d, opts).Run()
	}
}

// GridPosition returns the default slot for the i-th entity.
func GridPosition(i int) Point {
	return Point{
		X: float64(i%GridColumns)*GridSpacing + GridOrigin,
		Y: float64(i/GridColumns)*GridSpacing + GridOrigin,
	}
}

// PlaceGrid moves every entity to its default grid slot.
func PlaceGrid(d *erd.Diagram) {
	d.Apply(layoutGrid(d))
}

// step is one Jacobi iteration: every displacement is computed from pos
// and the sum applied at the end.
func step(pos, half []Point, edges [][2]int, opts LayoutOptions) []Point {
	n := len(pos)
	centers := make([]Point, n)
	for i := range pos {
		centers[i] = pos[i].Add(half[i])
	}
	disp := make([]Point, n)

	// Repulsion between all pairs
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dx := centers[i].X - centers[j].X
			dy := centers[i].Y - centers[j].Y
			if dx == 0 && dy == 0 {
				// Coincident: separate along x, lower index to the right
				dx = 1
			}
			distSq := dx*dx + dy*dy
			if distSq < 1 {
				distSq = 1
			}
			dist := math.Sqrt(distSq)

			force := opts.Repulsion / distSq * opts.RepulsionScale
			fx := dx / dist * force
			fy := dy / dist * force

			disp[i].X += fx
			disp[i].Y += fy
			disp[j].X -= fx
			disp[j].Y -= fy
		}
	}

	// Springs along edges
	for _, e := range edges {
		a, b := e[0], e[1]
		dx := centers[a].X - centers[b].X
		dy := centers[a].Y - centers[b].Y
		dist := math.Sqrt(dx*dx + dy*dy)
		if dist == 0 {
			continue
		}

		force := (dist - opts.SpringLength) * opts.SpringStiffness
		fx := dx / dist * force
		fy := dy / dist * force

		disp[a].X -= fx
		disp[a].Y -= fy
		disp[b].X += fx
		disp[b].Y += fy
	}

	out := make([]Point, n)
	for i := range pos {
		// Centering gravity
		disp[i].X += (opts.Center.X - centers[i].X) * opts.Gravity
		disp[i].Y += (opts.Center.Y - centers[i].Y) * opts.Gravity
		out[i] = pos[i].Add(disp[i])
	}
	return out
}

// edgeIndices resolves relationships to index pairs, dropping dangling
// endpoints, self-references and repeated pairs.
func edgeIndices(d *erd.Diagram) [][2]int {
	idx := d.Index()
	seen := make(map[[2]int]bool)
	var edges [][2]int
	for _, r := range d.Relationships {
		a, ok := idx[r.From]
		if !ok {
			continue
		}
		b, ok := idx[r.To]
		if !ok || a == b {
			continue
		}
		key := [2]int{a, b}
		if seen[key] {
			continue
		}
		seen[key] = true
		edges = append(edges, key)
	}
	return edges
}

func layoutGrid(d *erd.Diagram) erd.Snapshot {
	snap := make(erd.Snapshot, len(d.Entities))
	for i, e := range d.Entities {
		p := GridPosition(i)
		snap[i] = erd.Position{ID: e.ID, X: p.X, Y: p.Y}
	}
	return snap
}

// layoutCircular arranges entities on a circle, best-connected first,
// starting at the top and going clockwise.
func layoutCircular(d *erd.Diagram, center Point) erd.Snapshot {
	n := len(d.Entities)
	snap := make(erd.Snapshot, 0, n)
	if n == 0 {
		return snap
	}

	degree := make([]int, n)
	for _, e := range edgeIndices(d) {
		degree[e[0]]++
		degree[e[1]]++
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return degree[order[a]] > degree[order[b]]
	})

	// Circumference large enough to keep neighbours a spring length apart
	radius := math.Max(GridSpacing, float64(n)*GridSpacing/(2*math.Pi))
	for k, i := range order {
		e := d.Entities[i]
		r := EntityRect(e)
		angle := -math.Pi/2 + 2*math.Pi*float64(k)/float64(n)
		cx := center.X + radius*math.Cos(angle)
		cy := center.Y + radius*math.Sin(angle)
		snap = append(snap, erd.Position{ID: e.ID, X: cx - r.W/2, Y: cy - r.H/2})
	}
	return snap
}
