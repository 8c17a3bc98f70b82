// Package structure implements the Structure detector (spec §4.5):
// per-directory file/branch/size pressure, a Gini/Shannon dispersion
// measure, the Imbalance score that drives BranchReorg findings, and a
// per-file huge-file gate that drives FileSplit findings with proposed
// splits from a cohesion-graph community detection pass.
package structure

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/surgebase/porter2"

	"github.com/sibyllinesoft/valknut/internal/config"
	"github.com/sibyllinesoft/valknut/internal/entity"
	"github.com/sibyllinesoft/valknut/internal/feature"
	"github.com/sibyllinesoft/valknut/internal/finding"
)

// DirStats summarizes one directory's file entities for the imbalance
// computation. Callers build this from discovery output; valknut does not
// require real directory entities in the arena to run structure analysis.
type DirStats struct {
	Path         string
	Files        []string // relative paths of files in this directory, for import-subgraph clustering
	FileCount    int
	SubdirCount  int
	TotalLOC     int
	TotalBytes   int64
	BranchCounts []int // decision-point count per file, for branch_pressure
}

// TopLevelEntity is one function/method/class/type declared at a file's
// top level, carried with its stemmed name tokens so the file-split
// cohesion graph can approximate shared-symbol edges from name overlap
// (the same signal internal/clone uses for its name-overlap blend, since
// this codebase extracts no deeper reference graph between top-level
// declarations).
type TopLevelEntity struct {
	Entity entity.ID
	Name   string
	Tokens map[string]bool
}

// FileStats summarizes one file for the huge-file gate and FileSplit
// proposal. CycleParticipation and CloneContribution are optional
// [0,1] signals from the graph and clone detectors (spec §4.5's value
// formula); callers that haven't run those detectors may leave them 0.
type FileStats struct {
	Path                   string
	FileEntity             entity.ID
	LOC                    int
	Bytes                  int64
	TopLevel               []TopLevelEntity
	PublicExportCount      int
	ExternalImporterCount  int
	CycleParticipation     float64
	CloneContribution      float64
}

// Result is one directory's (or file's) structure features plus any
// triggered finding.
type Result struct {
	Path     string
	Features *feature.Vector
	Finding  *finding.Finding
}

// Analyze computes the Imbalance score for each directory and emits a
// BranchReorg finding when the compound gate (imbalance past
// min_branch_gain AND a raw file/subdir/LOC threshold exceeded) fires.
// primaryEntity maps a directory path to the arena entity that should be
// named as the finding's primary_entity (typically the largest file in
// that directory).
func Analyze(cfg *config.Config, dirs []DirStats, primaryEntity map[string]entity.ID) []Result {
	out := make([]Result, 0, len(dirs))
	for _, d := range dirs {
		filePressure := ratio(float64(d.FileCount), float64(cfg.Structure.MaxFilesPerDir))
		branchPressure := branchPressure(d.BranchCounts)
		sizePressure := ratio(float64(d.TotalLOC), float64(cfg.Structure.MaxDirLOC))
		dispersion := dispersion(d.BranchCounts)

		imbalance := 0.35*filePressure + 0.25*branchPressure + 0.25*sizePressure + 0.15*dispersion

		fv := feature.NewVector(primaryEntity[d.Path])
		fv.Set("file_pressure", filePressure, feature.SourceStructure)
		fv.Set("branch_pressure", branchPressure, feature.SourceStructure)
		fv.Set("size_pressure", sizePressure, feature.SourceStructure)
		fv.Set("dispersion", dispersion, feature.SourceStructure)
		fv.Set("imbalance", imbalance, feature.SourceStructure)

		res := Result{Path: d.Path, Features: fv}

		rawExceeded := d.FileCount > cfg.Structure.MaxFilesPerDir ||
			d.SubdirCount > cfg.Structure.MaxSubdirsPerDir ||
			d.TotalLOC > cfg.Structure.MaxDirLOC
		if imbalance >= cfg.Structure.MinBranchGain && rawExceeded {
			f := finding.New(finding.KindBranchReorg, primaryEntity[d.Path])
			f.Path = d.Path
			f.Severity = math.Min(1.0, imbalance)
			f.Effort = branchPressure * float64(d.FileCount)
			f.WithReason(fmt.Sprintf("imbalance score %.2f exceeds min_branch_gain %.2f with a raw threshold also exceeded", imbalance, cfg.Structure.MinBranchGain))
			for _, c := range clusterFiles(d.Files) {
				f.WithReason(fmt.Sprintf("proposed cluster %q: %s", c.name, strings.Join(c.members, ", ")))
			}
			res.Finding = f
		}
		out = append(out, res)
	}
	return out
}

// AnalyzeFiles applies the huge-file gate (spec §4.5: a single file at or
// above huge_loc or huge_bytes) to each file independently, emitting a
// FileSplit finding with the spec's value/effort formulas and a proposed
// 2-3-way split from community detection over the file's top-level-entity
// cohesion graph.
func AnalyzeFiles(cfg *config.Config, files []FileStats) []Result {
	out := make([]Result, 0)
	for _, f := range files {
		huge := f.LOC >= cfg.Structure.HugeLOC || (cfg.Structure.HugeBytes > 0 && f.Bytes >= cfg.Structure.HugeBytes)
		if !huge {
			continue
		}

		value := 0.6*ratio(float64(f.LOC), float64(cfg.Structure.HugeLOC)) + 0.3*f.CycleParticipation + 0.1*f.CloneContribution
		effort := 0.5*float64(f.PublicExportCount) + 0.5*float64(f.ExternalImporterCount)

		fnd := finding.New(finding.KindFileSplit, f.FileEntity)
		fnd.Path = f.Path
		fnd.Severity = value
		fnd.Effort = effort
		fnd.WithReason(fmt.Sprintf("file %s is %d LOC / %d bytes, at or above huge thresholds %d LOC / %d bytes",
			f.Path, f.LOC, f.Bytes, cfg.Structure.HugeLOC, cfg.Structure.HugeBytes))

		for _, c := range clusterTopLevel(f.TopLevel) {
			fnd.WithReason(fmt.Sprintf("suggested split %q: %s", c.name, strings.Join(c.members, ", ")))
		}

		out = append(out, Result{Path: f.Path, Finding: fnd})
	}
	return out
}

// fileCluster is one proposed group of members (top-level entity names,
// or file paths for the directory-level BranchReorg clusters) sharing a
// derived or fallback name.
type fileCluster struct {
	name    string
	members []string
}

// fallbackClusterNames is the spec §4.5 fallback label list for
// BranchReorg clusters lacking a dominant shared token.
var fallbackClusterNames = []string{"core", "io", "api", "util"}

// clusterTopLevel groups a file's top-level entities into 2-3 clusters by
// agglomeratively merging the pair sharing the most stemmed name tokens
// (a community-detection proxy for the cohesion graph spec §4.5
// describes, since this extractor has no deeper symbol-reference graph
// between declarations) until at most 3 groups remain; entities that
// share no tokens with anything fall back to a balanced split by
// declaration order.
func clusterTopLevel(entities []TopLevelEntity) []fileCluster {
	n := len(entities)
	if n == 0 {
		return nil
	}
	if n == 1 {
		return []fileCluster{{name: entities[0].Name, members: []string{entities[0].Name}}}
	}

	edges := make([]weightedEdge, 0, n*n/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if w := sharedTokenCount(entities[i].Tokens, entities[j].Tokens); w > 0 {
				edges = append(edges, weightedEdge{i, j, w})
			}
		}
	}

	target := 3
	if n < target {
		target = n
	}
	if target < 2 {
		target = 2
	}
	groups := clusterByEdges(n, edges, target)

	clusters := make([]fileCluster, 0, len(groups))
	for _, idxs := range groups {
		members := make([]string, len(idxs))
		for i, idx := range idxs {
			members[i] = entities[idx].Name
		}
		clusters = append(clusters, fileCluster{name: dominantTokenName(entities, idxs, "part"), members: members})
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].members[0] < clusters[j].members[0] })
	return clusters
}

// clusterFiles groups a directory's files into 2-4 clusters by connected
// components of their shared filename-token graph, approximating the
// spec's "min-cut over the intra-directory import subgraph, falling back
// to balanced size-clustering by filename token similarity" (the import
// subgraph itself is resolved upstream in cmd/valknut and not threaded
// into this detector, so the filename-token fallback is this package's
// only signal). Clusters get a fallback name unless a dominant shared
// token names them.
func clusterFiles(files []string) []fileCluster {
	n := len(files)
	if n < 2 {
		return nil
	}

	tokens := make([]map[string]bool, n)
	for i, path := range files {
		tokens[i] = stemmedWords(strings.TrimSuffix(filepathBase(path), filepathExt(path)))
	}

	edges := make([]weightedEdge, 0, n*n/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if w := sharedTokenCountMap(tokens[i], tokens[j]); w > 0 {
				edges = append(edges, weightedEdge{i, j, w})
			}
		}
	}

	target := 4
	if n < target {
		target = n
	}
	if target < 2 {
		target = 2
	}
	groups := clusterByEdges(n, edges, target)

	clusters := make([]fileCluster, 0, len(groups))
	for i, idxs := range groups {
		members := make([]string, len(idxs))
		for j, idx := range idxs {
			members[j] = files[idx]
		}
		name := dominantTokenFromSets(tokens, idxs)
		if name == "" {
			name = fallbackClusterNames[i%len(fallbackClusterNames)]
		}
		clusters = append(clusters, fileCluster{name: name, members: members})
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].members[0] < clusters[j].members[0] })
	return clusters
}

type weightedEdge struct {
	a, b   int
	weight int
}

// clusterByEdges agglomeratively merges the n nodes [0,n) via union-find,
// processing edges in descending weight order, until at most target
// connected components remain. If the edges run out first, the remaining
// groups (in first-member order) are folded into target contiguous
// buckets, a balanced split by position, so the result never has more
// than target groups.
func clusterByEdges(n int, edges []weightedEdge, target int) [][]int {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b int) bool {
		ra, rb := find(a), find(b)
		if ra == rb {
			return false
		}
		parent[ra] = rb
		return true
	}

	sort.Slice(edges, func(i, j int) bool { return edges[i].weight > edges[j].weight })

	components := n
	for _, e := range edges {
		if components <= target {
			break
		}
		if union(e.a, e.b) {
			components--
		}
	}

	groups := map[int][]int{}
	var order []int
	for i := 0; i < n; i++ {
		r := find(i)
		if _, ok := groups[r]; !ok {
			order = append(order, r)
		}
		groups[r] = append(groups[r], i)
	}
	out := make([][]int, len(order))
	for i, r := range order {
		out[i] = groups[r]
	}
	if len(out) > target {
		folded := make([][]int, target)
		for i, grp := range out {
			b := i * target / len(out)
			folded[b] = append(folded[b], grp...)
		}
		out = folded
	}
	return out
}

func sharedTokenCount(a, b map[string]bool) int {
	return sharedTokenCountMap(a, b)
}

func sharedTokenCountMap(a, b map[string]bool) int {
	shared := 0
	for t := range a {
		if b[t] {
			shared++
		}
	}
	return shared
}

// dominantTokenName returns the most frequent shared token among the
// cluster's entities, title-cased as a split-file label, or prefix+index
// when no token is shared by more than one member.
func dominantTokenName(entities []TopLevelEntity, idxs []int, prefix string) string {
	counts := map[string]int{}
	for _, idx := range idxs {
		for t := range entities[idx].Tokens {
			counts[t]++
		}
	}
	best, bestCount := "", 0
	for t, c := range counts {
		if c > bestCount || (c == bestCount && t < best) {
			best, bestCount = t, c
		}
	}
	if bestCount > 1 {
		return best
	}
	return fmt.Sprintf("%s_%d", prefix, idxs[0])
}

func dominantTokenFromSets(tokens []map[string]bool, idxs []int) string {
	counts := map[string]int{}
	for _, idx := range idxs {
		for t := range tokens[idx] {
			counts[t]++
		}
	}
	best, bestCount := "", 0
	for t, c := range counts {
		if c > bestCount || (c == bestCount && t < best) {
			best, bestCount = t, c
		}
	}
	if bestCount > 1 {
		return best
	}
	return ""
}

// TokensForName stems name's constituent words (camelCase/snake_case
// split, Porter2 stemming) into the token set TopLevelEntity.Tokens and
// DirStats clustering expect. Exported so callers building FileStats from
// extracted entity names don't need to duplicate the tokenizer.
func TokensForName(name string) map[string]bool {
	return stemmedWords(name)
}

func stemmedWords(name string) map[string]bool {
	words := splitIdentifier(name)
	set := make(map[string]bool, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		set[porter2.Stem(strings.ToLower(w))] = true
	}
	return set
}

// splitIdentifier breaks a camelCase, snake_case, or kebab-case
// identifier/filename into its constituent words.
func splitIdentifier(name string) []string {
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	runes := []rune(name)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == '.':
			flush()
		case r >= 'A' && r <= 'Z' && i > 0 && !isUpperOrDigit(runes[i-1]):
			flush()
			cur.WriteRune(r)
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return words
}

func isUpperOrDigit(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func filepathBase(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}

func filepathExt(p string) string {
	if i := strings.LastIndexByte(p, '.'); i >= 0 {
		return p[i:]
	}
	return ""
}

func ratio(value, cap float64) float64 {
	if cap <= 0 {
		return 0
	}
	r := value / cap
	if r > 2 {
		return 2
	}
	return r
}

func branchPressure(counts []int) float64 {
	if len(counts) == 0 {
		return 0
	}
	total := 0
	for _, c := range counts {
		total += c
	}
	mean := float64(total) / float64(len(counts))
	return math.Min(2.0, mean/10.0)
}

// dispersion blends a Gini coefficient and normalized Shannon entropy of
// per-file branch counts into a single [0,1] spread measure: high when a
// directory's complexity is concentrated in a few files.
func dispersion(counts []int) float64 {
	if len(counts) == 0 {
		return 0
	}
	gini := giniCoefficient(counts)
	entropy := shannonEntropy(counts)
	maxEntropy := math.Log2(float64(len(counts)))
	normEntropy := 1.0
	if maxEntropy > 0 {
		normEntropy = entropy / maxEntropy
	}
	// High gini (concentrated) + low normalized entropy (uneven) both push
	// dispersion up.
	return math.Min(1.0, 0.5*gini+0.5*(1-normEntropy))
}

func giniCoefficient(counts []int) float64 {
	n := len(counts)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	sum := 0.0
	for i, c := range counts {
		sorted[i] = float64(c)
		sum += float64(c)
	}
	if sum == 0 {
		return 0
	}
	sort.Float64s(sorted)
	var weightedSum float64
	for i, v := range sorted {
		weightedSum += float64(i+1) * v
	}
	return (2*weightedSum)/(float64(n)*sum) - float64(n+1)/float64(n)
}

func shannonEntropy(counts []int) float64 {
	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return 0
	}
	var h float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}
