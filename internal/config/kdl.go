package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"

	"github.com/sibyllinesoft/valknut/internal/verrors"
)

// LoadKDL attempts to load configuration from .valknut.kdl in projectRoot.
// Returns (nil, nil) when no such file exists, so the caller can fall back
// to a profile preset.
func LoadKDL(projectRoot string) (*Config, error) {
	kdlPath := filepath.Join(projectRoot, ".valknut.kdl")

	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, verrors.NewConfigInvalid(".valknut.kdl", err)
	}

	cfg, err := parseKDL(string(content))
	if err != nil {
		return nil, err
	}

	if cfg.Project.Root == "" {
		absRoot, err := filepath.Abs(projectRoot)
		if err == nil {
			cfg.Project.Root = absRoot
		} else {
			cfg.Project.Root = projectRoot
		}
	} else if !filepath.IsAbs(cfg.Project.Root) {
		cfg.Project.Root = filepath.Clean(filepath.Join(projectRoot, cfg.Project.Root))
	}

	return cfg, nil
}

// parseKDL parses the document model against the closed Config struct,
// starting from the balanced profile's defaults and overlaying anything the
// document specifies. An unrecognized top-level node name is a
// ConfigInvalid error — the model is closed, not best-effort.
func parseKDL(content string) (*Config, error) {
	cfg := balancedProfile()

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, verrors.NewConfigInvalid(".valknut.kdl", fmt.Errorf("parse: %w", err))
	}

	for _, n := range doc.Nodes {
		name := nodeName(n)
		switch name {
		case "profile":
			if s, ok := firstStringArg(n); ok {
				applyProfileOverlay(cfg, Profile(s))
			}
		case "project":
			for _, cn := range n.Children {
				assignSimpleString(cn, "root", func(v string) { cfg.Project.Root = v })
				assignSimpleString(cn, "name", func(v string) { cfg.Project.Name = v })
			}
		case "index":
			parseIndexNode(cfg, n)
		case "modules":
			parseModulesNode(cfg, n)
		case "complexity":
			parseComplexityNode(cfg, n)
		case "structure":
			parseStructureNode(cfg, n)
		case "graph":
			parseGraphNode(cfg, n)
		case "clones":
			parseClonesNode(cfg, n)
		case "coverage":
			parseCoverageNode(cfg, n)
		case "gate":
			parseGateNode(cfg, n)
		case "performance":
			parsePerformanceNode(cfg, n)
		case "include":
			cfg.Include = append(cfg.Include, collectStringArgs(n)...)
		case "exclude":
			cfg.Exclude = collectStringArgs(n)
		default:
			return nil, verrors.NewConfigInvalid(name, fmt.Errorf("unrecognized .valknut.kdl section %q", name))
		}
	}

	return cfg, nil
}

func applyProfileOverlay(cfg *Config, p Profile) {
	preset := DefaultConfig(p)
	root, name := cfg.Project.Root, cfg.Project.Name
	include, exclude := cfg.Include, cfg.Exclude
	*cfg = *preset
	if root != "" {
		cfg.Project.Root = root
	}
	if name != "" {
		cfg.Project.Name = name
	}
	cfg.Include = include
	cfg.Exclude = exclude
}

func parseIndexNode(cfg *Config, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "max_files":
			if v, ok := firstIntArg(cn); ok {
				cfg.Index.MaxFiles = v
			}
		case "max_file_size":
			if s, ok := firstStringArg(cn); ok {
				if sz, err := parseSize(s); err == nil {
					cfg.Index.MaxFileSizeBytes = sz
				}
			} else if v, ok := firstIntArg(cn); ok {
				cfg.Index.MaxFileSizeBytes = int64(v)
			}
		case "languages":
			cfg.Index.Languages = collectStringArgs(cn)
		case "follow_symlinks":
			if b, ok := firstBoolArg(cn); ok {
				cfg.Index.FollowSymlinks = b
			}
		case "respect_gitignore":
			if b, ok := firstBoolArg(cn); ok {
				cfg.Index.RespectGitignore = b
			}
		}
	}
}

func parseModulesNode(cfg *Config, n *document.Node) {
	for _, cn := range n.Children {
		b, ok := firstBoolArg(cn)
		if !ok {
			continue
		}
		switch nodeName(cn) {
		case "complexity":
			cfg.Modules.Complexity = b
		case "structure":
			cfg.Modules.Structure = b
		case "graph":
			cfg.Modules.Graph = b
		case "clones":
			cfg.Modules.Clones = b
		case "coverage":
			cfg.Modules.Coverage = b
		case "refactoring":
			cfg.Modules.Refactoring = b
		}
	}
}

func parseComplexityNode(cfg *Config, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "default_threshold":
			if v, ok := firstIntArg(cn); ok {
				cfg.Complexity.DefaultThreshold = v
			}
		case "per_language":
			for _, ln := range cn.Children {
				if v, ok := firstIntArg(ln); ok {
					if cfg.Complexity.PerLanguage == nil {
						cfg.Complexity.PerLanguage = map[string]int{}
					}
					cfg.Complexity.PerLanguage[nodeName(ln)] = v
				}
			}
		}
	}
}

func parseStructureNode(cfg *Config, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "max_files_per_dir":
			if v, ok := firstIntArg(cn); ok {
				cfg.Structure.MaxFilesPerDir = v
			}
		case "max_subdirs_per_dir":
			if v, ok := firstIntArg(cn); ok {
				cfg.Structure.MaxSubdirsPerDir = v
			}
		case "max_dir_loc":
			if v, ok := firstIntArg(cn); ok {
				cfg.Structure.MaxDirLOC = v
			}
		case "huge_loc":
			if v, ok := firstIntArg(cn); ok {
				cfg.Structure.HugeLOC = v
			}
		case "huge_bytes":
			if v, ok := firstIntArg(cn); ok {
				cfg.Structure.HugeBytes = int64(v)
			}
		case "min_branch_gain":
			if v, ok := firstFloatArg(cn); ok {
				cfg.Structure.MinBranchGain = v
			}
		case "fallback_cluster_names":
			cfg.Structure.FallbackClusterNames = collectStringArgs(cn)
		}
	}
}

func parseGraphNode(cfg *Config, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "centrality_samples":
			if v, ok := firstIntArg(cn); ok {
				cfg.Graph.CentralitySamples = v
			}
		case "non_overlap_threshold":
			if v, ok := firstFloatArg(cn); ok {
				cfg.Graph.NonOverlapThreshold = v
			}
		}
	}
}

func parseClonesNode(cfg *Config, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "shingle_k":
			if v, ok := firstIntArg(cn); ok {
				cfg.Clones.ShingleK = v
			}
		case "min_function_tokens":
			if v, ok := firstIntArg(cn); ok {
				cfg.Clones.MinFunctionTokens = v
			}
		case "min_match_tokens":
			if v, ok := firstIntArg(cn); ok {
				cfg.Clones.MinMatchTokens = v
			}
		case "require_blocks":
			if v, ok := firstIntArg(cn); ok {
				cfg.Clones.RequireBlocks = v
			}
		case "min_shared_motifs":
			if v, ok := firstIntArg(cn); ok {
				cfg.Clones.MinSharedMotifs = v
			}
		case "similarity_threshold":
			if v, ok := firstFloatArg(cn); ok {
				cfg.Clones.SimilarityThreshold = v
			}
		case "num_bands":
			if v, ok := firstIntArg(cn); ok {
				cfg.Clones.NumBands = v
			}
		case "rows_per_band":
			if v, ok := firstIntArg(cn); ok {
				cfg.Clones.RowsPerBand = v
			}
		case "apted_verify":
			if b, ok := firstBoolArg(cn); ok {
				cfg.Clones.AptedVerify = b
			}
		case "apted_max_nodes":
			if v, ok := firstIntArg(cn); ok {
				cfg.Clones.AptedMaxNodes = v
			}
		case "io_penalty":
			if v, ok := firstFloatArg(cn); ok {
				cfg.Clones.IOPenalty = v
			}
		case "denoise":
			if b, ok := firstBoolArg(cn); ok {
				cfg.Clones.Denoise = b
			}
		}
	}
}

func parseCoverageNode(cfg *Config, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "auto_discover":
			if b, ok := firstBoolArg(cn); ok {
				cfg.Coverage.AutoDiscover = b
			}
		case "search_paths":
			cfg.Coverage.SearchPaths = collectStringArgs(cn)
		case "file_patterns":
			cfg.Coverage.FilePatterns = collectStringArgs(cn)
		case "max_age_days":
			if v, ok := firstIntArg(cn); ok {
				cfg.Coverage.MaxAgeDays = v
			}
		case "coverage_file":
			if s, ok := firstStringArg(cn); ok {
				cfg.Coverage.CoverageFile = s
			}
		case "gap_threshold":
			if v, ok := firstFloatArg(cn); ok {
				cfg.Coverage.GapThreshold = v
			}
		}
	}
}

func parseGateNode(cfg *Config, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "enabled":
			if b, ok := firstBoolArg(cn); ok {
				cfg.Gate.Enabled = b
			}
		case "max_complexity":
			if v, ok := firstIntArg(cn); ok {
				cfg.Gate.MaxComplexity = v
			}
		case "min_health":
			if v, ok := firstFloatArg(cn); ok {
				cfg.Gate.MinHealth = v
			}
		case "max_debt":
			if v, ok := firstFloatArg(cn); ok {
				cfg.Gate.MaxDebt = v
			}
		case "min_maintainability":
			if v, ok := firstFloatArg(cn); ok {
				cfg.Gate.MinMaintainability = v
			}
		case "min_doc_health":
			if v, ok := firstFloatArg(cn); ok {
				cfg.Gate.MinDocHealth = v
			}
		case "max_issues":
			if v, ok := firstIntArg(cn); ok {
				cfg.Gate.MaxIssues = v
			}
		case "max_critical":
			if v, ok := firstIntArg(cn); ok {
				cfg.Gate.MaxCritical = v
			}
		case "max_high_priority":
			if v, ok := firstIntArg(cn); ok {
				cfg.Gate.MaxHighPriority = v
			}
		}
	}
}

func parsePerformanceNode(cfg *Config, n *document.Node) {
	for _, cn := range n.Children {
		switch nodeName(cn) {
		case "max_threads":
			if v, ok := firstIntArg(cn); ok {
				cfg.Performance.MaxThreads = v
			}
		case "memory_limit_mb":
			if v, ok := firstIntArg(cn); ok {
				cfg.Performance.MemoryLimitMB = int64(v)
			}
		case "file_timeout_seconds":
			if v, ok := firstIntArg(cn); ok {
				cfg.Performance.FileTimeoutSeconds = v
			}
		case "total_timeout_seconds":
			if v, ok := firstIntArg(cn); ok {
				cfg.Performance.TotalTimeoutSeconds = v
			}
		case "ast_cache_entries":
			if v, ok := firstIntArg(cn); ok {
				cfg.Performance.ASTCacheEntries = v
			}
		case "enable_simd":
			if b, ok := firstBoolArg(cn); ok {
				cfg.Performance.EnableSIMD = b
			}
		}
	}
}

// Document-model helpers, grounded on the teacher's kdl_config.go traversal
// idiom over github.com/sblinch/kdl-go.

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func firstFloatArg(n *document.Node) (float64, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		log.Printf("WARNING: invalid numeric value for %q in .valknut.kdl, expected number but got %T", nodeName(n), n.Arguments[0].Value)
		return 0, false
	}
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 && len(n.Children) > 0 {
		out = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}

// parseSize handles size strings like "10MB", "500KB", "1GB".
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	var multiplier int64 = 1
	var numStr string

	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		multiplier = 1
		numStr = strings.TrimSuffix(s, "B")
	default:
		numStr = s
	}

	num, err := strconv.ParseInt(strings.TrimSpace(numStr), 10, 64)
	if err != nil {
		return 0, err
	}
	return num * multiplier, nil
}
