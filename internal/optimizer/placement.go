package optimizer

import (
	"sort"

	"github.com/apm-run/apm/internal/logger"
	"github.com/apm-run/apm/internal/primitives"
)

// Distribution thresholds dispatching the three placement strategies.
const (
	lowDistributionMax    = 0.15
	mediumDistributionMax = 0.4
)

// PlacementMap maps a project-relative directory path ("" is the project
// root) to the ordered set of instructions to emit there.
type PlacementMap map[string][]*primitives.Instruction

// Add appends instruction to dir's placement list, skipping an instruction
// already present at that directory (placement is a set, not a multiset).
func (m PlacementMap) Add(dir string, instr *primitives.Instruction) {
	for _, existing := range m[dir] {
		if existing == instr {
			return
		}
	}
	m[dir] = append(m[dir], instr)
}

// SortedDirs returns every directory key in lexicographic order, the
// deterministic emission order the compiler iterates in.
func (m PlacementMap) SortedDirs() []string {
	dirs := make([]string, 0, len(m))
	for d := range m {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}

// Optimize is a function of (project tree, instruction list): against the
// single filesystem snapshot BuildTree produced, it decides, for each
// instruction, which directories receive a compiled copy. It cannot fail
// on valid input; a malformed glob is logged and that instruction is
// conservatively placed at root instead of aborting the run.
func Optimize(tree *Tree, instructions []*primitives.Instruction) PlacementMap {
	placement := make(PlacementMap)

	for _, instr := range instructions {
		placeInstruction(tree, instr, placement)
	}

	return placement
}

func placeInstruction(tree *Tree, instr *primitives.Instruction, placement PlacementMap) {
	pattern := instr.ApplyTo

	if pattern == "" {
		placement.Add("", instr)
		return
	}

	if err := tree.ComputeMatches(pattern); err != nil {
		logger.Std().WithField("pattern", pattern).WithError(err).
			Warn("malformed apply_to glob; placing instruction at root")
		placement.Add("", instr)
		return
	}

	matchingDirs := tree.MatchingDirectories(pattern)
	if len(matchingDirs) == 0 {
		placement.Add("", instr)
		return
	}

	dist := distributionScore(tree, matchingDirs)
	var chosen []string

	switch {
	case dist > mediumDistributionMax:
		chosen = []string{""}
	case dist >= lowDistributionMax:
		chosen = selectiveMultiPlacement(tree, pattern, matchingDirs)
	default:
		chosen = []string{singlePoint(tree, pattern)}
	}

	chosen = enforceCoverage(tree, pattern, matchingDirs, chosen)

	for _, dir := range chosen {
		placement.Add(dir, instr)
	}
}

func distributionScore(tree *Tree, matchingDirs []string) float64 {
	if len(tree.Ordered) == 0 {
		return 0
	}
	return float64(len(matchingDirs)) / float64(len(tree.Ordered))
}

// singlePoint picks the single highest-scoring directory across the whole
// tree, ties broken by shallower then lexicographically-earlier path for
// determinism.
func singlePoint(tree *Tree, pattern string) string {
	total := tree.totalMatches(pattern)
	best := ""
	bestScore := -1.0
	for _, path := range tree.Ordered {
		s := score(tree.Dirs[path], pattern, total)
		if betterCandidate(s, path, bestScore, best, tree) {
			best, bestScore = path, s
		}
	}
	return best
}

// betterCandidate reports whether (score, path) should replace
// (bestScore, bestPath) as the current winner.
func betterCandidate(s float64, path string, bestScore float64, bestPath string, tree *Tree) bool {
	const epsilon = 1e-9
	if s > bestScore+epsilon {
		return true
	}
	if s < bestScore-epsilon {
		return false
	}
	if bestPath == "" {
		return false
	}
	if tree.Dirs[path].Depth != tree.Dirs[bestPath].Depth {
		return tree.Dirs[path].Depth < tree.Dirs[bestPath].Depth
	}
	return path < bestPath
}

// selectiveMultiPlacement greedily picks the candidate whose marginal score
// (its own score weighted by how many previously-uncovered matching
// directories it would newly cover) is highest, repeating until every
// matching directory is inheritance-reachable from the chosen set.
func selectiveMultiPlacement(tree *Tree, pattern string, matchingDirs []string) []string {
	total := tree.totalMatches(pattern)
	uncovered := make(map[string]bool, len(matchingDirs))
	for _, d := range matchingDirs {
		uncovered[d] = true
	}

	var chosen []string
	for len(uncovered) > 0 {
		bestDir := ""
		bestMarginal := -1.0
		bestCovers := 0

		for _, path := range tree.Ordered {
			covers := 0
			for m := range uncovered {
				if isAncestorOrSelf(path, m) {
					covers++
				}
			}
			if covers == 0 {
				continue
			}
			s := score(tree.Dirs[path], pattern, total)
			marginal := s * float64(covers)

			if betterMarginal(marginal, covers, path, bestMarginal, bestCovers, bestDir, tree) {
				bestDir, bestMarginal, bestCovers = path, marginal, covers
			}
		}

		if bestDir == "" {
			break // unreachable in practice: root always covers everything
		}
		chosen = append(chosen, bestDir)
		for m := range uncovered {
			if isAncestorOrSelf(bestDir, m) {
				delete(uncovered, m)
			}
		}
	}

	sort.Strings(chosen)
	return chosen
}

func betterMarginal(marginal float64, covers int, path string, bestMarginal float64, bestCovers int, bestPath string, tree *Tree) bool {
	const epsilon = 1e-9
	if marginal > bestMarginal+epsilon {
		return true
	}
	if marginal < bestMarginal-epsilon {
		return false
	}
	if covers != bestCovers {
		return covers > bestCovers
	}
	if bestPath == "" {
		return false
	}
	if tree.Dirs[path].Depth != tree.Dirs[bestPath].Depth {
		return tree.Dirs[path].Depth < tree.Dirs[bestPath].Depth
	}
	return path < bestPath
}

// enforceCoverage is the mandatory post-processing step (§4.5.4): if any
// matching directory is left uncovered by the chosen set, add the lowest
// common ancestor of the uncovered directories (root as ultimate fallback).
// Coverage takes priority over efficiency even when it forces a root-level
// placement that would otherwise lower the objective.
func enforceCoverage(tree *Tree, pattern string, matchingDirs, chosen []string) []string {
	var uncovered []string
	for _, m := range matchingDirs {
		covered := false
		for _, d := range chosen {
			if isAncestorOrSelf(d, m) {
				covered = true
				break
			}
		}
		if !covered {
			uncovered = append(uncovered, m)
		}
	}

	if len(uncovered) == 0 {
		return chosen
	}

	lca := lowestCommonAncestor(uncovered)
	for _, d := range chosen {
		if d == lca {
			return chosen
		}
	}
	return append(chosen, lca)
}
