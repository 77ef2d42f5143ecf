package report

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
)

// Simplifier shortens file names for display.
type Simplifier interface {
	Simplify(path string) string
}

// PathSimplifier rewrites paths below a base directory relative to it.
// Paths outside the base are returned unchanged.
type PathSimplifier struct {
	base string
}

// NewPathSimplifier returns a simplifier relative to the working directory.
func NewPathSimplifier() (*PathSimplifier, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return &PathSimplifier{base: wd}, nil
}

// PathSimplifierAt returns a simplifier relative to base.
func PathSimplifierAt(base string) *PathSimplifier {
	return &PathSimplifier{base: filepath.Clean(base)}
}

// Simplify implements Simplifier.
func (s *PathSimplifier) Simplify(path string) string {
	if !filepath.IsAbs(path) {
		return path
	}
	rel, err := filepath.Rel(s.base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}

// ModuleSimplifier names files inside a Go module by import path:
// <module path>/<slash-separated path below the module root>.
type ModuleSimplifier struct {
	root   string
	module string
}

// NewModuleSimplifier reads the go.mod in root.
func NewModuleSimplifier(root string) (*ModuleSimplifier, error) {
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return nil, err
	}
	mod := modfile.ModulePath(data)
	if mod == "" {
		return nil, &os.PathError{Op: "parse", Path: filepath.Join(root, "go.mod"), Err: os.ErrInvalid}
	}
	return &ModuleSimplifier{root: filepath.Clean(root), module: mod}, nil
}

// Module returns the module path.
func (s *ModuleSimplifier) Module() string {
	return s.module
}

// Simplify implements Simplifier.
func (s *ModuleSimplifier) Simplify(path string) string {
	p := path
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.root, p)
	}
	rel, err := filepath.Rel(s.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return s.module + "/" + filepath.ToSlash(rel)
}

// Rename returns a copy of c with every file name passed through s.
// Files that map to the same name are merged.
func Rename(c *Coverage, s Simplifier) *Coverage {
	out := &Coverage{Meta: c.Meta, Files: make(map[string]*File, len(c.Files))}
	for name, f := range c.Files {
		key := s.Simplify(name)
		prev, ok := out.Files[key]
		if !ok {
			cp := *f
			out.Files[key] = &cp
			continue
		}
		merged := &File{}
		merged.ExecutedLines, merged.MissingLines = mergeLines(
			prev.ExecutedLines, f.ExecutedLines, prev.MissingLines, f.MissingLines)
		if c.Meta.BranchCoverage {
			merged.ExecutedBranches, merged.MissingBranches = mergeBranches(
				prev.ExecutedBranches, f.ExecutedBranches, prev.MissingBranches, f.MissingBranches)
		}
		out.Files[key] = merged
	}
	AddSummaries(out)
	return out
}
