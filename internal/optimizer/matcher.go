package optimizer

import "github.com/bmatcuk/doublestar/v4"

// ComputeMatches fills PatternMatches[pattern] and the subtree match totals
// for pattern across every directory in the tree. Malformed globs surface
// as an error so the caller can fall back to conservative root placement
// per the optimizer's failure-mode contract; they are never fatal to the
// overall compile.
func (t *Tree) ComputeMatches(pattern string) error {
	if pattern == "" {
		return nil
	}

	for _, path := range t.Ordered {
		node := t.Dirs[path]
		count := 0
		for _, f := range node.files {
			matched, err := doublestar.Match(pattern, f)
			if err != nil {
				return err
			}
			if matched {
				count++
			}
		}
		node.PatternMatches[pattern] = count
	}

	// Deepest-first accumulation, mirroring computeSubtreeTotals.
	order := make([]string, len(t.Ordered))
	copy(order, t.Ordered)
	sortByDepthDesc(order, t)

	for _, path := range order {
		node := t.Dirs[path]
		node.subtreeMatches[pattern] = node.PatternMatches[pattern]
		for _, childPath := range node.children {
			node.subtreeMatches[pattern] += t.Dirs[childPath].subtreeMatches[pattern]
		}
	}
	return nil
}

func sortByDepthDesc(paths []string, t *Tree) {
	for i := 1; i < len(paths); i++ {
		j := i
		for j > 0 && t.Dirs[paths[j-1]].Depth < t.Dirs[paths[j]].Depth {
			paths[j-1], paths[j] = paths[j], paths[j-1]
			j--
		}
	}
}

// MatchingDirectories returns every directory path with at least one
// direct-child file matching pattern. ComputeMatches(pattern) must have
// been called first.
func (t *Tree) MatchingDirectories(pattern string) []string {
	var out []string
	for _, path := range t.Ordered {
		if t.Dirs[path].PatternMatches[pattern] > 0 {
			out = append(out, path)
		}
	}
	return out
}
