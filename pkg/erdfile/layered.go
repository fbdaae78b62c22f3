package erdfile

import (
	"sort"

	"github.com/ha1tch/erd-toolkit/pkg/erd"
)

// Spacing for the layered layout.
const (
	LayerGap = 100.0 // vertical space between layers
	NodeGap  = 60.0  // horizontal space between entities in a layer
)

// layoutLayered places referenced entities above the entities that
// reference them, in the manner of Sugiyama's method:
//  1. Layer assignment by longest path towards the referenced side
//  2. Crossing reduction with barycenter sweeps
//  3. Coordinates: layers stacked downwards, each centred on center.X
//
// Cycles are tolerated; ranks are capped at the entity count.
func layoutLayered(d *erd.Diagram, center Point) erd.Snapshot {
	n := len(d.Entities)
	snap := make(erd.Snapshot, n)
	if n == 0 {
		return snap
	}
	edges := edgeIndices(d)

	layers := assignRanks(n, edges)
	layers = orderLayers(layers, edges)

	heights := make([]float64, len(layers))
	total := 0.0
	for l, layer := range layers {
		for _, i := range layer {
			if h := EntityHeight(len(d.Entities[i].Fields)); h > heights[l] {
				heights[l] = h
			}
		}
		total += heights[l]
	}
	total += float64(len(layers)-1) * LayerGap

	y := center.Y - total/2
	for l, layer := range layers {
		width := float64(len(layer))*NodeWidth + float64(len(layer)-1)*NodeGap
		x := center.X - width/2
		for _, i := range layer {
			e := d.Entities[i]
			snap[i] = erd.Position{ID: e.ID, X: x, Y: y}
			x += NodeWidth + NodeGap
		}
		y += heights[l] + LayerGap
	}
	return snap
}

// assignRanks gives every entity the length of its longest chain of
// references; entities referencing nothing get rank 0. Empty ranks are
// dropped and each layer keeps entity order.
func assignRanks(n int, edges [][2]int) [][]int {
	rank := make([]int, n)
	for round := 0; round < n; round++ {
		changed := false
		for _, e := range edges {
			from, to := e[0], e[1]
			if r := rank[to] + 1; r > rank[from] && r < n {
				rank[from] = r
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	byRank := make([][]int, n)
	for i, r := range rank {
		byRank[r] = append(byRank[r], i)
	}
	var layers [][]int
	for _, layer := range byRank {
		if len(layer) > 0 {
			layers = append(layers, layer)
		}
	}
	return layers
}

// orderLayers reorders each layer by the mean position of its neighbours
// in the adjacent layer, sweeping down then up a few times.
func orderLayers(layers [][]int, edges [][2]int) [][]int {
	if len(layers) <= 1 {
		return layers
	}

	layerOf := make(map[int]int)
	pos := make(map[int]float64)
	for l, layer := range layers {
		for k, i := range layer {
			layerOf[i] = l
			pos[i] = float64(k)
		}
	}
	neighbours := make(map[int][]int)
	for _, e := range edges {
		neighbours[e[0]] = append(neighbours[e[0]], e[1])
		neighbours[e[1]] = append(neighbours[e[1]], e[0])
	}

	sweep := func(l, adjacent int) {
		layer := layers[l]
		bary := make(map[int]float64, len(layer))
		for _, i := range layer {
			sum, count := 0.0, 0
			for _, j := range neighbours[i] {
				if layerOf[j] == adjacent {
					sum += pos[j]
					count++
				}
			}
			if count > 0 {
				bary[i] = sum / float64(count)
			} else {
				bary[i] = pos[i]
			}
		}
		sort.SliceStable(layer, func(a, b int) bool {
			return bary[layer[a]] < bary[layer[b]]
		})
		for k, i := range layer {
			pos[i] = float64(k)
		}
	}

	for pass := 0; pass < 4; pass++ {
		for l := 1; l < len(layers); l++ {
			sweep(l, l-1)
		}
		for l := len(layers) - 2; l >= 0; l-- {
			sweep(l, l+1)
		}
	}
	return layers
}

// countCrossings counts crossing edge pairs between adjacent layers.
func countCrossings(layers [][]int, edges [][2]int) int {
	layerOf := make(map[int]int)
	pos := make(map[int]int)
	for l, layer := range layers {
		for k, i := range layer {
			layerOf[i] = l
			pos[i] = k
		}
	}

	type span struct{ upper, lower int }
	byGap := make(map[int][]span)
	for _, e := range edges {
		a, b := e[0], e[1]
		if layerOf[a] > layerOf[b] {
			a, b = b, a
		}
		if layerOf[b]-layerOf[a] != 1 {
			continue
		}
		byGap[layerOf[a]] = append(byGap[layerOf[a]], span{pos[a], pos[b]})
	}

	crossings := 0
	for _, spans := range byGap {
		for i := 0; i < len(spans); i++ {
			for j := i + 1; j < len(spans); j++ {
				s, t := spans[i], spans[j]
				if (s.upper < t.upper && s.lower > t.lower) || (s.upper > t.upper && s.lower < t.lower) {
					crossings++
				}
			}
		}
	}
	return crossings
}
