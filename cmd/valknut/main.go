package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/urfave/cli/v2"

	"github.com/sibyllinesoft/valknut/internal/ast"
	"github.com/sibyllinesoft/valknut/internal/clone"
	"github.com/sibyllinesoft/valknut/internal/complexity"
	"github.com/sibyllinesoft/valknut/internal/config"
	"github.com/sibyllinesoft/valknut/internal/coverage"
	"github.com/sibyllinesoft/valknut/internal/debug"
	"github.com/sibyllinesoft/valknut/internal/discovery"
	"github.com/sibyllinesoft/valknut/internal/entity"
	"github.com/sibyllinesoft/valknut/internal/extract"
	"github.com/sibyllinesoft/valknut/internal/feature"
	"github.com/sibyllinesoft/valknut/internal/finding"
	"github.com/sibyllinesoft/valknut/internal/gate"
	"github.com/sibyllinesoft/valknut/internal/graph"
	"github.com/sibyllinesoft/valknut/internal/health"
	"github.com/sibyllinesoft/valknut/internal/jsimports"
	"github.com/sibyllinesoft/valknut/internal/normalize"
	"github.com/sibyllinesoft/valknut/internal/orchestrator"
	"github.com/sibyllinesoft/valknut/internal/output"
	"github.com/sibyllinesoft/valknut/internal/pack"
	"github.com/sibyllinesoft/valknut/internal/score"
	"github.com/sibyllinesoft/valknut/internal/structure"
	"github.com/sibyllinesoft/valknut/internal/version"
)

func main() {
	app := &cli.App{
		Name:    "valknut",
		Usage:   "batch static-analysis engine: complexity, structure, dependency, clone, and coverage findings ranked into refactor packs",
		Version: version.Version,
		Commands: []*cli.Command{
			analyzeCommand(),
			gateCommand(),
			versionCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "valknut:", err)
		os.Exit(1)
	}
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "root", Aliases: []string{"r"}, Value: ".", Usage: "project root to analyze"},
		&cli.StringFlag{Name: "profile", Aliases: []string{"p"}, Value: "balanced", Usage: "fast|balanced|thorough|extreme"},
		&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "write JSON report to this path instead of stdout"},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	root, err := filepath.Abs(c.String("root"))
	if err != nil {
		return nil, err
	}
	return config.Load(root, config.Profile(c.String("profile")))
}

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "run the full pipeline and print ranked refactor packs",
		Flags: commonFlags(),
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			report, err := runPipeline(c.Context, cfg)
			if err != nil {
				return err
			}
			return writeReport(c, report)
		},
	}
}

func gateCommand() *cli.Command {
	return &cli.Command{
		Name:  "gate",
		Usage: "run the pipeline and exit non-zero if the quality gate fails",
		Flags: commonFlags(),
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			cfg.Gate.Enabled = true
			report, err := runPipeline(c.Context, cfg)
			if err != nil {
				return err
			}
			if err := writeReport(c, report); err != nil {
				return err
			}
			if !report.Gate.Passed {
				return cli.Exit("quality gate failed", 1)
			}
			return nil
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "print build and version information",
		Action: func(c *cli.Context) error {
			fmt.Println(version.FullInfo())
			return nil
		},
	}
}

func writeReport(c *cli.Context, report output.Report) error {
	formatter := output.JSONFormatter{}
	if outPath := c.String("out"); outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		return formatter.Format(f, report)
	}
	return formatter.Format(os.Stdout, report)
}

// fileRecord carries the per-file state runPipeline needs across the
// extract -> structure/graph/clone/coverage stages without re-parsing.
type fileRecord struct {
	sf        discovery.SourceFile
	fileID    entity.ID
	content   []byte
	functions []extract.FunctionLike
	requires  []string // raw require()/import specifiers, unresolved
}

// runPipeline drives discovery -> parse -> extract -> detect -> normalize
// -> score -> pack -> gate for one run as a registered orchestrator.Pass
// sequence (spec §4.12): the per-file parse/extract/complexity stage fans
// out over orchestrator.FanOut so cfg.Performance.MaxThreads bounds real
// concurrency and cfg.Performance.FileTimeoutSeconds bounds each file,
// while the directory/whole-program detectors (structure, graph, clones,
// coverage) and the normalize/score/pack/gate tail run as later passes
// that each depend on every file having been processed first.
func runPipeline(ctx context.Context, cfg *config.Config) (output.Report, error) {
	arena := entity.New(4096)
	orch := orchestrator.New(cfg)

	var (
		mu              sync.Mutex
		files           []discovery.SourceFile
		allFindings     []*finding.Finding
		allFeatures     []*feature.Vector
		records         []fileRecord
		fileIDByRelPath = map[string]entity.ID{}
		cloneCandidates []clone.Candidate
		lineRanges      = map[entity.ID]coverage.LineRange{}
		sumCyclomatic   float64
		cyclomaticCount int
		fanIn           = map[entity.ID]float64{}
	)

	orch.Register(orchestrator.Pass{
		Name: "discover", Enabled: true,
		Run: func(ctx context.Context) error {
			discoverer := discovery.NewDiscoverer(cfg)
			found, err := discoverer.Discover(ctx)
			if err != nil {
				return err
			}
			files = found
			debug.LogDiscover("found %d candidate files under %s", len(files), cfg.Project.Root)
			return nil
		},
	})

	orch.Register(orchestrator.Pass{
		Name: "parse_extract_complexity", Enabled: true,
		Run: func(ctx context.Context) error {
			timeouts, err := orchestrator.FanOut(ctx, cfg, files, func(_ context.Context, sf discovery.SourceFile) error {
				adapter := ast.ForLanguage(sf.Language)
				if adapter == nil {
					return nil
				}
				_, content, err := discovery.ContentHash(sf.AbsPath)
				if err != nil {
					return nil
				}
				tree, err := adapter.Parse(content)
				if err != nil {
					return nil
				}
				defer tree.Close()

				result, err := extract.Extract(arena, adapter, tree, content, sf.RelPath)
				if err != nil {
					return nil
				}

				var requires []string
				if sf.Language == "javascript" || sf.Language == "typescript" {
					requires = jsimports.Extract(string(content))
				}

				var fileFeatures []*feature.Vector
				var fileFindings []*finding.Finding
				var fileCandidates []clone.Candidate
				fileLineRanges := map[entity.ID]coverage.LineRange{}
				var fileCyclomaticSum float64
				var fileCyclomaticCount int

				for _, fn := range result.Functions {
					if e, ok := arena.Get(fn.ID); ok {
						fileLineRanges[fn.ID] = coverage.LineRange{Path: sf.RelPath, Start: e.Span.StartLine, End: e.Span.EndLine}
					}
					fileCandidates = append(fileCandidates, clone.NewCandidate(fn, content))
				}

				if cfg.Modules.Complexity {
					for _, r := range complexity.Analyze(cfg, sf.Language, result.Functions) {
						fileFeatures = append(fileFeatures, r.Features)
						if r.Finding != nil {
							fileFindings = append(fileFindings, r.Finding)
						}
						fileCyclomaticSum += float64(r.Cyclomatic)
						fileCyclomaticCount++
					}
				}

				mu.Lock()
				fileIDByRelPath[sf.RelPath] = result.FileEntity
				records = append(records, fileRecord{sf: sf, fileID: result.FileEntity, content: content, functions: result.Functions, requires: requires})
				for id, lr := range fileLineRanges {
					lineRanges[id] = lr
				}
				cloneCandidates = append(cloneCandidates, fileCandidates...)
				allFeatures = append(allFeatures, fileFeatures...)
				allFindings = append(allFindings, fileFindings...)
				sumCyclomatic += fileCyclomaticSum
				cyclomaticCount += fileCyclomaticCount
				mu.Unlock()
				return nil
			})
			allFindings = append(allFindings, timeouts...)
			return err
		},
	})

	orch.Register(orchestrator.Pass{
		Name: "graph", Enabled: cfg.Modules.Graph,
		Run: func(ctx context.Context) error {
			nodes := make([]entity.ID, len(records))
			for i, r := range records {
				nodes[i] = r.fileID
			}
			edges := resolveImportEdges(records, fileIDByRelPath)
			g := graph.New(nodes, edges)
			// The repository fingerprint hashes the sorted per-file content
			// hashes, so the centrality sample depends only on the analyzed
			// content, not on where the repository is checked out.
			contentHashes := make([]string, len(records))
			for i, r := range records {
				contentHashes[i] = fmt.Sprintf("%016x", xxhash.Sum64(r.content))
			}
			sort.Strings(contentHashes)
			fingerprint := xxhash.Sum64String(strings.Join(contentHashes, ""))
			result := graph.Analyze(cfg, g, fingerprint)
			allFeatures = append(allFeatures, result.Features...)
			allFindings = append(allFindings, result.Findings...)
			for _, e := range edges {
				fanIn[e[1]]++
			}
			return nil
		},
	})

	orch.Register(orchestrator.Pass{
		Name: "clones", Enabled: cfg.Modules.Clones,
		Run: func(ctx context.Context) error {
			allFindings = append(allFindings, clone.Analyze(cfg, cloneCandidates)...)
			return nil
		},
	})

	// structure runs after graph/clones so its FileSplit value formula
	// (spec §4.5: cycle_participation, clone_contribution terms) can read
	// their findings; FileSplit's effort also reads fanIn (filled by the
	// graph pass) for ExternalImporterCount.
	orch.Register(orchestrator.Pass{
		Name: "structure", Enabled: cfg.Modules.Structure,
		Run: func(ctx context.Context) error {
			dirIDs := insertDirectoryEntities(arena, records)
			dirStats := aggregateDirStats(records)
			for _, r := range structure.Analyze(cfg, dirStats, dirIDs) {
				allFeatures = append(allFeatures, r.Features)
				if r.Finding != nil {
					allFindings = append(allFindings, r.Finding)
				}
			}

			cycleParticipants, cloneParticipants := participantSets(allFindings)
			fileStats := buildFileStats(records, fanIn, cycleParticipants, cloneParticipants)
			for _, r := range structure.AnalyzeFiles(cfg, fileStats) {
				if r.Finding != nil {
					allFindings = append(allFindings, r.Finding)
				}
			}
			return nil
		},
	})

	orch.Register(orchestrator.Pass{
		Name: "coverage", Enabled: cfg.Modules.Coverage,
		Run: func(ctx context.Context) error {
			coverageReport, cerr := coverage.Discover(cfg)
			if cerr != nil || coverageReport == nil {
				return nil
			}
			covFeatures := coverage.Analyze(coverageReport, lineRanges)
			for id, lr := range lineRanges {
				allFeatures = append(allFeatures, covFeatures[id])
				pct, known := coverageReport.Coverage(lr)
				if f := coverage.GapFinding(cfg, id, pct, known); f != nil {
					allFindings = append(allFindings, f)
				}
			}
			return nil
		},
	})

	var report output.Report
	orch.Register(orchestrator.Pass{
		Name: "normalize_score_pack_gate", Enabled: true,
		Run: func(ctx context.Context) error {
			arena.Seal()

			stats := normalize.Fit(allFeatures)
			normalized := normalize.Transform(allFeatures, stats, cfg.Performance.EnableSIMD)
			scores := score.Compute(normalized, fanIn)

			nonOverlap := cfg.Graph.NonOverlapThreshold
			packs := pack.Build(allFindings, fanIn, nonOverlap, 200, 25)

			avgCyclomatic := 0.0
			if cyclomaticCount > 0 {
				avgCyclomatic = sumCyclomatic / float64(cyclomaticCount)
			}
			metrics := health.Aggregate(scores, allFindings, 0, avgCyclomatic)
			gateReport := gate.Evaluate(cfg, metrics)

			report = output.Report{Packs: packs, Gate: gateReport}
			return nil
		},
	})

	if err := orch.Run(ctx); err != nil {
		return output.Report{}, err
	}
	return report, nil
}

// insertDirectoryEntities adds one arena entity per distinct directory
// found among records, returning a path -> entity.ID lookup for the
// structure detector's primaryEntity argument.
func insertDirectoryEntities(arena *entity.Arena, records []fileRecord) map[string]entity.ID {
	dirIDs := map[string]entity.ID{}
	for _, r := range records {
		dir := filepath.Dir(r.sf.RelPath)
		if _, ok := dirIDs[dir]; ok {
			continue
		}
		id := arena.Insert(entity.KindDirectory, dir, dir, entity.Span{}, entity.Invalid)
		dirIDs[dir] = id
	}
	return dirIDs
}

// aggregateDirStats rolls per-file counts up to their containing
// directory, the shape structure.Analyze expects.
func aggregateDirStats(records []fileRecord) []structure.DirStats {
	byDir := map[string]*structure.DirStats{}
	var order []string
	for _, r := range records {
		dir := filepath.Dir(r.sf.RelPath)
		ds, ok := byDir[dir]
		if !ok {
			ds = &structure.DirStats{Path: dir}
			byDir[dir] = ds
			order = append(order, dir)
		}
		ds.FileCount++
		ds.Files = append(ds.Files, r.sf.RelPath)
		ds.TotalBytes += int64(len(r.content))
		lines := 1
		for _, b := range r.content {
			if b == '\n' {
				lines++
			}
		}
		ds.TotalLOC += lines
		ds.BranchCounts = append(ds.BranchCounts, len(r.functions))
	}
	out := make([]structure.DirStats, 0, len(order))
	for _, dir := range order {
		out = append(out, *byDir[dir])
	}
	return out
}

// participantSets collects the entity IDs named by already-emitted
// ImpactCycle and Clone findings, so the structure detector's FileSplit
// value formula (spec §4.5: 0.3·cycle_participation + 0.1·clone_contribution)
// can look a file's or function's membership up by ID instead of
// re-deriving it from the graph/clone internals.
func participantSets(findings []*finding.Finding) (cycles, clones map[entity.ID]bool) {
	cycles = map[entity.ID]bool{}
	clones = map[entity.ID]bool{}
	for _, f := range findings {
		var set map[entity.ID]bool
		switch f.Kind {
		case finding.KindImpactCycle:
			set = cycles
		case finding.KindClone:
			set = clones
		default:
			continue
		}
		set[f.PrimaryEntity] = true
		for _, e := range f.OtherEntities {
			set[e] = true
		}
	}
	return cycles, clones
}

// buildFileStats derives structure.FileStats for every extracted file:
// LOC/bytes for the huge-file gate, top-level entities (name + stemmed
// tokens) for the cohesion-graph split proposal, a public-export-count
// heuristic (capitalized top-level names, the common cross-language
// exported-identifier convention), external importer count from the
// graph detector's fan-in, and cycle/clone participation booleans.
func buildFileStats(records []fileRecord, fanIn map[entity.ID]float64, cycleParticipants, cloneParticipants map[entity.ID]bool) []structure.FileStats {
	out := make([]structure.FileStats, 0, len(records))
	for _, r := range records {
		lines := 1
		for _, b := range r.content {
			if b == '\n' {
				lines++
			}
		}

		topLevel := make([]structure.TopLevelEntity, 0, len(r.functions))
		publicExports := 0
		fileClone := 0
		for _, fn := range r.functions {
			topLevel = append(topLevel, structure.TopLevelEntity{Entity: fn.ID, Name: fn.Name, Tokens: structure.TokensForName(fn.Name)})
			if len(fn.Name) > 0 && fn.Name[0] >= 'A' && fn.Name[0] <= 'Z' {
				publicExports++
			}
			if cloneParticipants[fn.ID] {
				fileClone++
			}
		}
		cloneContribution := 0.0
		if len(r.functions) > 0 {
			cloneContribution = float64(fileClone) / float64(len(r.functions))
		}
		cycleParticipation := 0.0
		if cycleParticipants[r.fileID] {
			cycleParticipation = 1.0
		}

		out = append(out, structure.FileStats{
			Path:                  r.sf.RelPath,
			FileEntity:            r.fileID,
			LOC:                   lines,
			Bytes:                 int64(len(r.content)),
			TopLevel:              topLevel,
			PublicExportCount:     publicExports,
			ExternalImporterCount: int(fanIn[r.fileID]),
			CycleParticipation:    cycleParticipation,
			CloneContribution:     cloneContribution,
		})
	}
	return out
}

// resolveImportEdges turns each file's raw require()/import specifiers
// into file-entity edges, skipping bare package specifiers (node_modules,
// stdlib packages) that don't resolve to a file this run discovered.
func resolveImportEdges(records []fileRecord, fileIDByRelPath map[string]entity.ID) [][2]entity.ID {
	var edges [][2]entity.ID
	for _, r := range records {
		for _, spec := range r.requires {
			if !strings.HasPrefix(spec, ".") {
				continue // bare package specifier, not a local file
			}
			target := filepath.Clean(filepath.Join(filepath.Dir(r.sf.RelPath), spec))
			if id, ok := resolveWithExtensions(target, fileIDByRelPath); ok {
				edges = append(edges, [2]entity.ID{r.fileID, id})
			}
		}
	}
	return edges
}

func resolveWithExtensions(target string, fileIDByRelPath map[string]entity.ID) (entity.ID, bool) {
	candidates := []string{target, target + ".js", target + ".ts", target + ".jsx", target + ".tsx",
		filepath.Join(target, "index.js"), filepath.Join(target, "index.ts")}
	for _, c := range candidates {
		if id, ok := fileIDByRelPath[c]; ok {
			return id, true
		}
	}
	return entity.Invalid, false
}
