// Package graph implements the dependency-graph detector (spec §4.6):
// strongly-connected-component detection (Tarjan), a greedy minimum
// feedback-vertex-set over each SCC, sampled betweenness centrality, and
// fan-in/fan-out features, yielding ImpactCycle and Chokepoint findings.
package graph

import (
	"fmt"
	"math"
	"sort"

	"github.com/sibyllinesoft/valknut/internal/config"
	"github.com/sibyllinesoft/valknut/internal/entity"
	"github.com/sibyllinesoft/valknut/internal/feature"
	"github.com/sibyllinesoft/valknut/internal/finding"
)

// Graph is a directed dependency graph over arena entities (module/file
// granularity): edge u->v means u depends on v.
type Graph struct {
	nodes []entity.ID
	index map[entity.ID]int
	adj   [][]int // adjacency by node index
	radj  [][]int // reverse adjacency, for fan-in and reverse BFS
}

// New builds a Graph from a deterministic node order and an edge list.
// Node order should already be fixed by callers (e.g. entity ID order) so
// that SCC numbering and centrality sampling stay reproducible across runs.
func New(nodes []entity.ID, edges [][2]entity.ID) *Graph {
	g := &Graph{nodes: nodes, index: make(map[entity.ID]int, len(nodes))}
	for i, n := range nodes {
		g.index[n] = i
	}
	g.adj = make([][]int, len(nodes))
	g.radj = make([][]int, len(nodes))
	for _, e := range edges {
		ui, uok := g.index[e[0]]
		vi, vok := g.index[e[1]]
		if !uok || !vok {
			continue
		}
		g.adj[ui] = append(g.adj[ui], vi)
		g.radj[vi] = append(g.radj[vi], ui)
	}
	return g
}

// Result carries the per-entity fan-in/fan-out feature vectors plus any
// ImpactCycle/Chokepoint findings.
type Result struct {
	Features []*feature.Vector
	Findings []*finding.Finding
}

// Analyze runs SCC detection, betweenness sampling, and fan-in/fan-out
// accumulation over g, using repoFingerprint to seed the deterministic
// centrality sample so results are stable for a given input graph
// regardless of worker count.
func Analyze(cfg *config.Config, g *Graph, repoFingerprint uint64) Result {
	var result Result
	n := len(g.nodes)

	sccs := tarjanSCC(g)
	centrality := sampledBetweenness(g, cfg.Graph.CentralitySamples, repoFingerprint)

	for i := 0; i < n; i++ {
		fanIn := len(g.radj[i])
		fanOut := len(g.adj[i])
		fv := feature.NewVector(g.nodes[i])
		fv.Set("fan_in", float64(fanIn), feature.SourceGraph)
		fv.Set("fan_out", float64(fanOut), feature.SourceGraph)
		fv.Set("betweenness_centrality", centrality[i], feature.SourceGraph)
		result.Features = append(result.Features, fv)
	}

	// Chokepoint: nodes at or above the 95th percentile of sampled betweenness.
	threshold := percentile(centrality, 0.95)
	for i, c := range centrality {
		if c >= threshold && c > 0 {
			f := finding.New(finding.KindChokepoint, g.nodes[i])
			f.Severity = math.Min(1.0, c)
			f.Effort = float64(len(g.adj[i]) + len(g.radj[i]))
			f.WithReason(fmt.Sprintf("betweenness centrality %.4f is at or above the 95th percentile sample", c))
			result.Findings = append(result.Findings, f)
		}
	}

	// ImpactCycle: every SCC of two or more entities gets a finding
	// anchored on the feedback-vertex-set's first pick.
	for _, scc := range sccs {
		if len(scc) < 2 {
			continue
		}
		fvs := greedyFeedbackVertexSet(g, scc)
		if len(fvs) == 0 {
			continue
		}
		primary := g.nodes[fvs[0]]
		f := finding.New(finding.KindImpactCycle, primary)
		for _, idx := range scc {
			if g.nodes[idx] != primary {
				f.OtherEntities = append(f.OtherEntities, g.nodes[idx])
			}
		}
		f.Severity = math.Min(1.0, float64(len(scc))/float64(n+1))
		f.Effort = float64(len(fvs))
		f.WithReason(fmt.Sprintf("cycle of %d entities; removing %d node(s) breaks it", len(scc), len(fvs)))
		result.Findings = append(result.Findings, f)
	}

	return result
}

// tarjanSCC returns strongly connected components as lists of node indices,
// in discovery order (deterministic given a fixed node/edge order).
func tarjanSCC(g *Graph) [][]int {
	n := len(g.nodes)
	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}
	var stack []int
	var sccs [][]int
	counter := 0

	var strongconnect func(v int)
	strongconnect = func(v int) {
		index[v] = counter
		low[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.adj[v] {
			if index[w] == -1 {
				strongconnect(w)
				if low[w] < low[v] {
					low[v] = low[w]
				}
			} else if onStack[w] {
				if index[w] < low[v] {
					low[v] = index[w]
				}
			}
		}

		if low[v] == index[v] {
			var comp []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, comp)
		}
	}

	for v := 0; v < n; v++ {
		if index[v] == -1 {
			strongconnect(v)
		}
	}
	return sccs
}

// greedyFeedbackVertexSet repeatedly removes the highest-degree node within
// the SCC's induced subgraph until no cycle remains, a standard
// approximation to the NP-hard minimum feedback-vertex-set problem.
func greedyFeedbackVertexSet(g *Graph, scc []int) []int {
	inComp := make(map[int]bool, len(scc))
	for _, v := range scc {
		inComp[v] = true
	}
	removed := make(map[int]bool)
	var result []int

	for hasCycleInDuced(g, inComp, removed) {
		best, bestDeg := -1, -1
		for _, v := range scc {
			if removed[v] {
				continue
			}
			deg := 0
			for _, w := range g.adj[v] {
				if inComp[w] && !removed[w] {
					deg++
				}
			}
			for _, w := range g.radj[v] {
				if inComp[w] && !removed[w] {
					deg++
				}
			}
			if deg > bestDeg {
				bestDeg = deg
				best = v
			}
		}
		if best == -1 {
			break
		}
		removed[best] = true
		result = append(result, best)
	}
	return result
}

func hasCycleInDuced(g *Graph, inComp, removed map[int]bool) bool {
	visited := make(map[int]int) // 0 unvisited, 1 in-progress, 2 done
	var dfs func(v int) bool
	dfs = func(v int) bool {
		visited[v] = 1
		for _, w := range g.adj[v] {
			if !inComp[w] || removed[w] {
				continue
			}
			if visited[w] == 1 {
				return true
			}
			if visited[w] == 0 && dfs(w) {
				return true
			}
		}
		visited[v] = 2
		return false
	}
	for v := range inComp {
		if removed[v] {
			continue
		}
		if visited[v] == 0 && dfs(v) {
			return true
		}
	}
	return false
}

// sampledBetweenness estimates betweenness centrality via BFS from a
// deterministic sample of up to `samples` source nodes, seeded from
// repoFingerprint so results don't depend on worker count or file order
// beyond the graph's own fixed node ordering.
func sampledBetweenness(g *Graph, samples int, seed uint64) []float64 {
	n := len(g.nodes)
	scores := make([]float64, n)
	if n == 0 {
		return scores
	}
	if samples > n {
		samples = n
	}
	sources := deterministicSample(n, samples, seed)

	for _, s := range sources {
		// Single-source shortest path counts + dependency accumulation
		// (Brandes' algorithm, restricted to one source per sample).
		dist := make([]int, n)
		sigma := make([]float64, n)
		preds := make([][]int, n)
		for i := range dist {
			dist[i] = -1
		}
		dist[s] = 0
		sigma[s] = 1
		queue := []int{s}
		var order []int
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			order = append(order, v)
			for _, w := range g.adj[v] {
				if dist[w] == -1 {
					dist[w] = dist[v] + 1
					queue = append(queue, w)
				}
				if dist[w] == dist[v]+1 {
					sigma[w] += sigma[v]
					preds[w] = append(preds[w], v)
				}
			}
		}
		delta := make([]float64, n)
		for i := len(order) - 1; i >= 0; i-- {
			w := order[i]
			for _, v := range preds[w] {
				if sigma[w] > 0 {
					delta[v] += (sigma[v] / sigma[w]) * (1 + delta[w])
				}
			}
			if w != s {
				scores[w] += delta[w]
			}
		}
	}

	if samples > 0 {
		for i := range scores {
			scores[i] /= float64(samples)
		}
	}
	return scores
}

// deterministicSample picks k indices from [0,n) using a simple
// splitmix64-derived sequence seeded by seed, so the same graph + seed
// always samples the same nodes.
func deterministicSample(n, k int, seed uint64) []int {
	if k >= n {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	state := seed
	next := func() uint64 {
		state += 0x9E3779B97F4A7C15
		z := state
		z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
		z = (z ^ (z >> 27)) * 0x94D049BB133111EB
		return z ^ (z >> 31)
	}
	seen := make(map[int]bool, k)
	var out []int
	for len(out) < k {
		idx := int(next() % uint64(n))
		if !seen[idx] {
			seen[idx] = true
			out = append(out, idx)
		}
	}
	sort.Ints(out)
	return out
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	idx := int(p * float64(len(sorted)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
