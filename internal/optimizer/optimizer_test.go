package optimizer

import (
	"testing"

	"github.com/apm-run/apm/internal/primitives"
	"github.com/spf13/afero"
)

func touch(t *testing.T, fs afero.Fs, path string) {
	t.Helper()
	if err := afero.WriteFile(fs, path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func instruction(name, applyTo string) *primitives.Instruction {
	return &primitives.Instruction{Primitive: primitives.Primitive{Name: name}, ApplyTo: applyTo}
}

// Scenario A — single low-distribution pattern.
func TestOptimize_ScenarioA_SinglePointPlacement(t *testing.T) {
	fs := afero.NewMemMapFs()
	touch(t, fs, "/proj/scripts/deploy.sh")
	touch(t, fs, "/proj/scripts/build.sh")
	for i := 0; i < 8; i++ {
		touch(t, fs, "/proj/src/file"+string(rune('a'+i))+".go")
	}

	tree, err := BuildTree(fs, "/proj")
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	shell := instruction("shell-standards", "**/*.sh")
	placement := Optimize(tree, []*primitives.Instruction{shell})

	if len(placement) != 1 {
		t.Fatalf("expected exactly one placement key, got %d: %+v", len(placement), placement)
	}
	if _, ok := placement["scripts"]; !ok {
		t.Fatalf("expected placement at 'scripts', got keys %v", placement.SortedDirs())
	}
}

// Scenario B — sibling directory coverage.
func TestOptimize_ScenarioB_SiblingCoverage(t *testing.T) {
	fs := afero.NewMemMapFs()
	touch(t, fs, "/proj/frontend/components/Header.tsx")
	touch(t, fs, "/proj/src/components/ContactForm.tsx")

	tree, err := BuildTree(fs, "/proj")
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	instr := instruction("tsx-standards", "**/*.{tsx,jsx}")
	placement := Optimize(tree, []*primitives.Instruction{instr})

	covered := func(dir string) bool {
		for placed := range placement {
			if isAncestorOrSelf(placed, dir) {
				return true
			}
		}
		return false
	}
	if !covered("frontend/components") {
		t.Error("expected frontend/components to be covered by some ancestor")
	}
	if !covered("src/components") {
		t.Error("expected src/components to be covered by some ancestor")
	}
}

func TestOptimize_EmptyApplyTo_DistributedAtRoot(t *testing.T) {
	fs := afero.NewMemMapFs()
	touch(t, fs, "/proj/a.go")

	tree, err := BuildTree(fs, "/proj")
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	ctxLike := instruction("general", "")
	placement := Optimize(tree, []*primitives.Instruction{ctxLike})

	if len(placement) != 1 || len(placement[""]) != 1 {
		t.Fatalf("expected single root placement for empty apply_to, got %+v", placement)
	}
}

func TestOptimize_PatternMatchingZeroFiles_PlacedAtRoot(t *testing.T) {
	fs := afero.NewMemMapFs()
	touch(t, fs, "/proj/readme.txt")

	tree, err := BuildTree(fs, "/proj")
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	instr := instruction("rust-standards", "**/*.rs")
	placement := Optimize(tree, []*primitives.Instruction{instr})

	if len(placement) != 1 {
		t.Fatalf("expected placement despite zero matches, got %+v", placement)
	}
	if _, ok := placement[""]; !ok {
		t.Errorf("expected root placement for zero-match pattern, got %v", placement.SortedDirs())
	}
}

func TestOptimize_MalformedGlob_PlacedAtRootNoCrash(t *testing.T) {
	fs := afero.NewMemMapFs()
	touch(t, fs, "/proj/a.go")

	tree, err := BuildTree(fs, "/proj")
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	instr := instruction("broken", "[unterminated")
	placement := Optimize(tree, []*primitives.Instruction{instr})

	if len(placement) != 1 {
		t.Fatalf("expected single root placement for malformed glob, got %+v", placement)
	}
}

func TestOptimize_NoDataLoss(t *testing.T) {
	fs := afero.NewMemMapFs()
	touch(t, fs, "/proj/scripts/deploy.sh")
	touch(t, fs, "/proj/src/main.go")

	tree, err := BuildTree(fs, "/proj")
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	instructions := []*primitives.Instruction{
		instruction("shell", "**/*.sh"),
		instruction("go", "**/*.go"),
		instruction("general", ""),
	}
	placement := Optimize(tree, instructions)

	seen := make(map[*primitives.Instruction]bool)
	for _, list := range placement {
		for _, i := range list {
			seen[i] = true
		}
	}
	for _, i := range instructions {
		if !seen[i] {
			t.Errorf("instruction %q missing from placement map", i.Name)
		}
	}
}

func TestOptimize_DeterministicAcrossRuns(t *testing.T) {
	fs := afero.NewMemMapFs()
	touch(t, fs, "/proj/frontend/components/Header.tsx")
	touch(t, fs, "/proj/src/components/ContactForm.tsx")
	touch(t, fs, "/proj/scripts/deploy.sh")

	instructions := []*primitives.Instruction{
		instruction("tsx", "**/*.{tsx,jsx}"),
		instruction("shell", "**/*.sh"),
	}

	run := func() PlacementMap {
		tree, err := BuildTree(fs, "/proj")
		if err != nil {
			t.Fatalf("BuildTree: %v", err)
		}
		return Optimize(tree, instructions)
	}

	first := run()
	second := run()

	if len(first.SortedDirs()) != len(second.SortedDirs()) {
		t.Fatalf("non-deterministic key count: %v vs %v", first.SortedDirs(), second.SortedDirs())
	}
	for i, dir := range first.SortedDirs() {
		if second.SortedDirs()[i] != dir {
			t.Errorf("non-deterministic directory ordering: %v vs %v", first.SortedDirs(), second.SortedDirs())
		}
	}
}

func TestBuildTree_ExcludesScopeDirectories(t *testing.T) {
	fs := afero.NewMemMapFs()
	touch(t, fs, "/proj/.apm/instructions/foo.instructions.md")
	touch(t, fs, "/proj/.git/HEAD")
	touch(t, fs, "/proj/apm_modules/owner/repo/file.go")
	touch(t, fs, "/proj/src/main.go")

	tree, err := BuildTree(fs, "/proj")
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	for _, excluded := range []string{".apm", ".git", "apm_modules"} {
		if _, ok := tree.Dirs[excluded]; ok {
			t.Errorf("expected %q to be excluded from the tree", excluded)
		}
	}
	if _, ok := tree.Dirs["src"]; !ok {
		t.Error("expected 'src' to be present in the tree")
	}
}

func TestLowestCommonAncestor(t *testing.T) {
	cases := []struct {
		paths []string
		want  string
	}{
		{[]string{"frontend/components", "src/components"}, ""},
		{[]string{"a/b/c", "a/b/d"}, "a/b"},
		{[]string{"a"}, "a"},
		{[]string{}, ""},
	}
	for _, tc := range cases {
		if got := lowestCommonAncestor(tc.paths); got != tc.want {
			t.Errorf("lowestCommonAncestor(%v) = %q, want %q", tc.paths, got, tc.want)
		}
	}
}
