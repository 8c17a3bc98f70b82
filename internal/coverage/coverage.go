// Package coverage implements the Coverage detector (spec §4.8): report
// discovery across LCOV, Cobertura, Istanbul, and Tarpaulin formats, report
// age rejection, and line-range coverage lookup for entities. A missing or
// unparseable report yields the "unknown" sentinel rather than a coverage
// value of zero, since the two mean very different things to the scorer.
package coverage

import (
	"bufio"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sibyllinesoft/valknut/internal/config"
	"github.com/sibyllinesoft/valknut/internal/entity"
	"github.com/sibyllinesoft/valknut/internal/feature"
	"github.com/sibyllinesoft/valknut/internal/finding"
)

// FileCoverage maps a source file's path to the set of line numbers a test
// run executed at least once.
type FileCoverage struct {
	Path        string
	CoveredLine map[int]bool
	TotalLines  int
}

// Report is the parsed form of one coverage artifact.
type Report struct {
	Files map[string]FileCoverage
	Age   time.Duration
}

// Discover locates a coverage report under cfg.Coverage.SearchPaths
// matching cfg.Coverage.FilePatterns, honoring an explicit CoverageFile
// override. Returns (nil, nil) if auto-discovery is disabled or nothing
// is found — callers must treat that as "unknown", not "zero coverage".
func Discover(cfg *config.Config) (*Report, error) {
	path := cfg.Coverage.CoverageFile
	if path == "" {
		if !cfg.Coverage.AutoDiscover {
			return nil, nil
		}
		for _, dir := range cfg.Coverage.SearchPaths {
			for _, pattern := range cfg.Coverage.FilePatterns {
				matches, _ := filepath.Glob(filepath.Join(dir, pattern))
				if len(matches) > 0 {
					path = matches[0]
					break
				}
			}
			if path != "" {
				break
			}
		}
	}
	if path == "" {
		return nil, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, nil // unreadable report is "unknown", not an error
	}
	age := time.Since(info.ModTime())
	if cfg.Coverage.MaxAgeDays > 0 && age > time.Duration(cfg.Coverage.MaxAgeDays)*24*time.Hour {
		return nil, nil // too stale to trust
	}

	report, err := parseAny(path)
	if err != nil {
		return nil, nil // malformed report is "unknown", not fatal
	}
	report.Age = age
	return report, nil
}

func parseAny(path string) (*Report, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch {
	case strings.HasSuffix(path, ".info") || strings.Contains(string(content[:min(64, len(content))]), "SF:"):
		return parseLCOV(content)
	case strings.HasSuffix(path, ".xml"):
		return parseCobertura(content)
	case strings.HasSuffix(path, ".json"):
		return parseIstanbul(content)
	default:
		return parseLCOV(content)
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// parseLCOV parses the lcov.info text format (also used by Tarpaulin's
// --out Lcov mode): SF:<path>, DA:<line>,<hits>, end_of_record.
func parseLCOV(content []byte) (*Report, error) {
	report := &Report{Files: map[string]FileCoverage{}}
	scanner := bufio.NewScanner(strings.NewReader(string(content)))
	var cur FileCoverage
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "SF:"):
			cur = FileCoverage{Path: strings.TrimPrefix(line, "SF:"), CoveredLine: map[int]bool{}}
		case strings.HasPrefix(line, "DA:"):
			parts := strings.Split(strings.TrimPrefix(line, "DA:"), ",")
			if len(parts) < 2 {
				continue
			}
			lineNum, err1 := strconv.Atoi(parts[0])
			hits, err2 := strconv.Atoi(parts[1])
			if err1 != nil || err2 != nil {
				continue
			}
			cur.TotalLines++
			if hits > 0 {
				cur.CoveredLine[lineNum] = true
			}
		case line == "end_of_record":
			if cur.Path != "" {
				report.Files[cur.Path] = cur
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return report, nil
}

// cobertura XML schema, trimmed to the fields valknut needs.
type coberturaXML struct {
	Packages struct {
		Package []struct {
			Classes struct {
				Class []struct {
					Filename string `xml:"filename,attr"`
					Lines    struct {
						Line []struct {
							Number int `xml:"number,attr"`
							Hits   int `xml:"hits,attr"`
						} `xml:"line"`
					} `xml:"lines"`
				} `xml:"class"`
			} `xml:"classes"`
		} `xml:"package"`
	} `xml:"packages"`
}

func parseCobertura(content []byte) (*Report, error) {
	var doc coberturaXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("cobertura: %w", err)
	}
	report := &Report{Files: map[string]FileCoverage{}}
	for _, pkg := range doc.Packages.Package {
		for _, cls := range pkg.Classes.Class {
			fc, ok := report.Files[cls.Filename]
			if !ok {
				fc = FileCoverage{Path: cls.Filename, CoveredLine: map[int]bool{}}
			}
			for _, l := range cls.Lines.Line {
				fc.TotalLines++
				if l.Hits > 0 {
					fc.CoveredLine[l.Number] = true
				}
			}
			report.Files[cls.Filename] = fc
		}
	}
	return report, nil
}

// istanbulJSON matches istanbul/nyc's coverage-final.json shape: a map of
// absolute file path to a statement map + statement hit counts.
type istanbulFileJSON struct {
	Path         string `json:"path"`
	StatementMap map[string]struct {
		Start struct {
			Line int `json:"line"`
		} `json:"start"`
		End struct {
			Line int `json:"line"`
		} `json:"end"`
	} `json:"statementMap"`
	S map[string]int `json:"s"`
}

func parseIstanbul(content []byte) (*Report, error) {
	var doc map[string]istanbulFileJSON
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("istanbul: %w", err)
	}
	report := &Report{Files: map[string]FileCoverage{}}
	for _, file := range doc {
		fc := FileCoverage{Path: file.Path, CoveredLine: map[int]bool{}}
		for stmtID, span := range file.StatementMap {
			hits := file.S[stmtID]
			for ln := span.Start.Line; ln <= span.End.Line; ln++ {
				fc.TotalLines++
				if hits > 0 {
					fc.CoveredLine[ln] = true
				}
			}
		}
		report.Files[file.Path] = fc
	}
	return report, nil
}

// LineRange is a 1-based inclusive [Start,End] line span for an entity.
type LineRange struct {
	Path  string
	Start int
	End   int
}

// Coverage returns the fraction of lines in r covered within the given
// range, or (feature.Sentinel, false) if the report has no data for that
// path at all.
func (r *Report) Coverage(lr LineRange) (float64, bool) {
	if r == nil {
		return feature.Sentinel, false
	}
	fc, ok := r.Files[lr.Path]
	if !ok {
		return feature.Sentinel, false
	}
	total, covered := 0, 0
	for ln := lr.Start; ln <= lr.End; ln++ {
		total++
		if fc.CoveredLine[ln] {
			covered++
		}
	}
	if total == 0 {
		return feature.Sentinel, false
	}
	return float64(covered) / float64(total), true
}

// Analyze computes coverage features for each entity range. An entity with
// no data in the report gets the sentinel feature value.
func Analyze(r *Report, ranges map[entity.ID]LineRange) map[entity.ID]*feature.Vector {
	out := make(map[entity.ID]*feature.Vector, len(ranges))
	for id, lr := range ranges {
		fv := feature.NewVector(id)
		cov, _ := r.Coverage(lr)
		fv.Set("line_coverage", cov, feature.SourceCoverage)
		out[id] = fv
	}
	return out
}

// GapFinding returns a CoverageGap finding if measured coverage for the
// given entity is below cfg.Coverage.GapThreshold, or nil if coverage is
// unknown or acceptable.
func GapFinding(cfg *config.Config, id entity.ID, coveragePct float64, known bool) *finding.Finding {
	if !known || feature.IsSentinel(coveragePct) {
		return nil
	}
	if coveragePct >= cfg.Coverage.GapThreshold {
		return nil
	}
	f := finding.New(finding.KindCoverageGap, id)
	f.Severity = 1 - coveragePct
	f.Effort = 1 - coveragePct
	f.WithReason(fmt.Sprintf("line coverage %.1f%% is below gap threshold %.1f%%", coveragePct*100, cfg.Coverage.GapThreshold*100))
	return f
}
