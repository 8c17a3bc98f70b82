// Package discovery walks a project root and produces the ordered list of
// SourceFile entries later pipeline stages operate on. It is VCS-aware
// (shells out to `git ls-files` when a `.git` directory is present),
// gitignore-aware, and binary-aware, mirroring the teacher's
// internal/indexing.FileScanner but without any watch/persistence concerns
// (file watching is out of scope, per the specification's Non-goals).
package discovery

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/sibyllinesoft/valknut/internal/config"
	"github.com/sibyllinesoft/valknut/internal/debug"
	"github.com/sibyllinesoft/valknut/internal/verrors"
)

// SourceFile is one file discovery decided to hand to the parse stage.
// Content is not read here — ContentHash is computed lazily by the AST
// service at parse time, not at listing time, so a discovery pass over a
// huge repo never pays for I/O on files that end up skipped.
type SourceFile struct {
	AbsPath  string
	RelPath  string // slash-normalized, relative to Project.Root
	Language string // "" if no adapter is registered for this extension
	Size     int64
}

// Discoverer walks a project root and yields the ordered SourceFile list.
type Discoverer struct {
	cfg             *config.Config
	gitignoreParser *GitignoreParser
	binaryDetector  *BinaryDetector
	exclude         []string
}

// NewDiscoverer builds a Discoverer for cfg. The built-in denylist,
// gitignore patterns and language-specific build-output directories are
// folded into the exclusion set once, up front, so each visited path pays
// only for a doublestar match.
func NewDiscoverer(cfg *config.Config) *Discoverer {
	d := &Discoverer{cfg: cfg, binaryDetector: NewBinaryDetector()}

	// Built-in denylist: dependency and VCS directories are never analyzed.
	d.exclude = append(d.exclude, "**/node_modules/**", "**/.git/**")
	d.exclude = append(d.exclude, cfg.Exclude...)
	d.exclude = append(d.exclude, NewBuildArtifactDetector(cfg.Project.Root).DetectOutputDirectories()...)

	if cfg.Index.RespectGitignore {
		d.gitignoreParser = NewGitignoreParser()
		if err := d.gitignoreParser.LoadGitignore(cfg.Project.Root); err != nil {
			debug.Log("discover", "failed to load .gitignore: %v", err)
		} else {
			d.exclude = append(d.exclude, d.gitignoreParser.GetExclusionPatterns()...)
		}
	}

	return d
}

// Discover returns the ordered set of files to analyze under cfg.Project.Root,
// in lexicographic path order so entity ID assignment downstream is
// deterministic across runs and across parallel parsing.
func (d *Discoverer) Discover(ctx context.Context) ([]SourceFile, error) {
	root := d.cfg.Project.Root
	if _, err := os.Stat(root); err != nil {
		return nil, verrors.NewPathUnreadable(root, err)
	}

	var relPaths []string
	var err error
	if isGitRepo(root) {
		relPaths, err = d.listGitFiles(ctx, root)
		if err != nil {
			debug.Log("discover", "git ls-files failed, falling back to filesystem walk: %v", err)
			relPaths = nil
		}
	}
	if relPaths == nil {
		relPaths, err = d.walk(ctx, root)
		if err != nil {
			return nil, err
		}
	}

	sort.Strings(relPaths)

	files := make([]SourceFile, 0, len(relPaths))
	for _, rel := range relPaths {
		if ctx.Err() != nil {
			return nil, verrors.NewCancelled("discover")
		}
		abs := filepath.Join(root, filepath.FromSlash(rel))
		info, err := os.Stat(abs)
		if err != nil || info.IsDir() {
			continue
		}
		if !d.accept(rel, info) {
			continue
		}
		files = append(files, SourceFile{
			AbsPath:  abs,
			RelPath:  rel,
			Language: LanguageFromExtension(filepath.Ext(rel)),
			Size:     info.Size(),
		})
		if d.cfg.Index.MaxFiles > 0 && len(files) >= d.cfg.Index.MaxFiles {
			debug.Log("discover", "truncating discovery at max_files=%d", d.cfg.Index.MaxFiles)
			break
		}
	}

	return files, nil
}

func (d *Discoverer) accept(relPath string, info os.FileInfo) bool {
	if info.Size() > d.cfg.Index.MaxFileSizeBytes {
		return false
	}
	if d.shouldExclude(relPath) {
		return false
	}
	if !d.shouldInclude(relPath) {
		return false
	}
	if d.binaryDetector.IsBinaryByExtension(relPath) {
		return false
	}
	if len(d.cfg.Index.Languages) > 0 {
		lang := LanguageFromExtension(filepath.Ext(relPath))
		found := false
		for _, want := range d.cfg.Index.Languages {
			if want == lang {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (d *Discoverer) shouldExclude(path string) bool {
	for _, pattern := range d.exclude {
		if matched, err := doublestar.Match(pattern, path); err == nil && matched {
			return true
		}
	}
	return false
}

func (d *Discoverer) shouldInclude(path string) bool {
	if len(d.cfg.Include) == 0 {
		return true
	}
	for _, pattern := range d.cfg.Include {
		if matched, err := doublestar.Match(pattern, path); err == nil && matched {
			return true
		}
	}
	return false
}

func isGitRepo(root string) bool {
	_, err := os.Stat(filepath.Join(root, ".git"))
	return err == nil
}

// listGitFiles shells out to `git ls-files` to enumerate tracked (and,
// with --others --exclude-standard, untracked-but-not-ignored) files,
// mirroring the teacher's shell-out pattern in internal/git.Analyzer.
func (d *Discoverer) listGitFiles(ctx context.Context, root string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard", "-z")
	cmd.Dir = root
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range strings.Split(out.String(), "\x00") {
		if entry != "" {
			files = append(files, filepath.ToSlash(entry))
		}
	}
	return files, nil
}

func (d *Discoverer) walk(ctx context.Context, root string) ([]string, error) {
	visitedDirs := make(map[string]bool)
	var relPaths []string

	err := filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if walkErr != nil {
			return nil
		}

		if info.IsDir() {
			if !d.cfg.Index.FollowSymlinks {
				real, err := filepath.EvalSymlinks(path)
				if err != nil {
					return nil
				}
				if visitedDirs[real] {
					return filepath.SkipDir
				}
				visitedDirs[real] = true
			}
			if path == root {
				return nil
			}
			rel, _ := filepath.Rel(root, path)
			rel = filepath.ToSlash(rel)
			if d.shouldExclude(rel) || d.shouldExclude(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		relPaths = append(relPaths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, verrors.NewFileIoFailure(root, err)
	}
	return relPaths, nil
}

// ContentHash reads path and returns its SHA-256 hex digest, computed
// lazily at the point of use (parse time), never at discovery time.
func ContentHash(path string) (string, []byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, verrors.NewFileIoFailure(path, err)
	}
	defer f.Close()

	h := sha256.New()
	buf := bufio.NewReader(f)
	var content bytes.Buffer
	if _, err := io.Copy(io.MultiWriter(h, &content), buf); err != nil {
		return "", nil, verrors.NewFileIoFailure(path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), content.Bytes(), nil
}
