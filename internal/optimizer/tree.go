// Package optimizer implements the Context Optimizer (C7): the
// coverage-constrained, multi-objective placement engine that decides, for
// each instruction, which directories should receive a compiled copy.
package optimizer

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// excludedDirs are never walked into: they hold primitive sources or
// dependency installs, not project source files an instruction would apply
// to.
var excludedDirs = map[string]bool{
	".git":        true,
	".apm":        true,
	".github":     true,
	"apm_modules": true,
	".specify":    true,
}

// DirectoryAnalysis is the cached per-directory snapshot the optimizer
// scores candidates against. Paths are slash-separated and relative to the
// project root; the root directory itself is the empty string "".
type DirectoryAnalysis struct {
	Path           string
	Depth          int
	TotalFiles     int            // non-hidden regular files, direct children
	PatternMatches map[string]int // pattern -> direct-child match count, filled lazily per pattern

	files             []string // direct-child file paths, relative to root, slash-separated
	subtreeTotalFiles int
	subtreeMatches    map[string]int
	children          []string
}

// Tree is one filesystem snapshot, built once per optimization pass and
// discarded at its end (the optimizer has no state machine and retains no
// cache between passes).
type Tree struct {
	Root string
	Dirs map[string]*DirectoryAnalysis
	// Ordered holds every directory path sorted lexicographically, giving
	// the optimizer its deterministic iteration order.
	Ordered []string
}

// BuildTree walks root on fs and produces a Tree. Hidden directories
// (dot-prefixed) and the excluded scope directories are pruned from
// traversal entirely; hidden files are never counted.
func BuildTree(fs afero.Fs, root string) (*Tree, error) {
	dirs := make(map[string]*DirectoryAnalysis)
	dirs[""] = &DirectoryAnalysis{Path: "", Depth: 0, PatternMatches: map[string]int{}, subtreeMatches: map[string]int{}}

	var walk func(relDir string) error
	walk = func(relDir string) error {
		absDir := filepath.Join(root, relDir)
		entries, err := afero.ReadDir(fs, absDir)
		if err != nil {
			return err
		}

		node := dirs[relDir]
		for _, entry := range entries {
			if strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			if entry.IsDir() {
				if excludedDirs[entry.Name()] {
					continue
				}
				childRel := joinRel(relDir, entry.Name())
				child := &DirectoryAnalysis{
					Path:           childRel,
					Depth:          node.Depth + 1,
					PatternMatches: map[string]int{},
					subtreeMatches: map[string]int{},
				}
				dirs[childRel] = child
				node.children = append(node.children, childRel)
				continue
			}
			node.TotalFiles++
			node.files = append(node.files, joinRel(relDir, entry.Name()))
		}

		for _, child := range node.children {
			if err := walk(child); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(""); err != nil {
		return nil, err
	}

	ordered := make([]string, 0, len(dirs))
	for p := range dirs {
		ordered = append(ordered, p)
	}
	sort.Strings(ordered)

	t := &Tree{Root: root, Dirs: dirs, Ordered: ordered}
	t.computeSubtreeTotals()
	return t, nil
}

func joinRel(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

// computeSubtreeTotals fills subtreeTotalFiles for every directory by
// summing its own TotalFiles with every descendant's, processed deepest
// first so each parent sums already-finalized children.
func (t *Tree) computeSubtreeTotals() {
	order := make([]string, len(t.Ordered))
	copy(order, t.Ordered)
	sort.Slice(order, func(i, j int) bool { return len(order[i]) > len(order[j]) })

	for _, path := range order {
		node := t.Dirs[path]
		node.subtreeTotalFiles = node.TotalFiles
		for _, childPath := range node.children {
			child := t.Dirs[childPath]
			node.subtreeTotalFiles += child.subtreeTotalFiles
		}
	}
}

// isAncestorOrSelf reports whether ancestor is "" (the root, ancestor of
// everything) or a proper path-segment prefix of descendant, or equal to it.
func isAncestorOrSelf(ancestor, descendant string) bool {
	if ancestor == "" {
		return true
	}
	if ancestor == descendant {
		return true
	}
	return strings.HasPrefix(descendant, ancestor+"/")
}

// lowestCommonAncestor returns the deepest directory that is an ancestor
// (or itself) of every path given. Falls back to "" (root) for an empty
// input or when the paths share no ancestor segments.
func lowestCommonAncestor(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	segs := strings.Split(paths[0], "/")
	if paths[0] == "" {
		segs = nil
	}

	for _, p := range paths[1:] {
		var other []string
		if p != "" {
			other = strings.Split(p, "/")
		}
		segs = commonPrefix(segs, other)
	}
	if len(segs) == 0 {
		return ""
	}
	return strings.Join(segs, "/")
}

func commonPrefix(a, b []string) []string {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return a[:i]
}
