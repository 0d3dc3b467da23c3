package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/apm-run/apm/internal/dependency"
	"github.com/apm-run/apm/internal/optimizer"
	"github.com/apm-run/apm/internal/primitives"
	"github.com/spf13/afero"
)

func instr(name, applyTo, content string) *primitives.Instruction {
	return &primitives.Instruction{Primitive: primitives.Primitive{Name: name, Content: content}, ApplyTo: applyTo}
}

func TestConstitutionHash_Stability(t *testing.T) {
	text := "Ship Fast.\nTest First.\n"
	h1 := constitutionHash(text)
	h2 := constitutionHash(text)
	if h1 != h2 {
		t.Fatalf("expected stable hash, got %q and %q", h1, h2)
	}
	if len(h1) != 12 {
		t.Fatalf("expected 12-char hash, got %d chars: %q", len(h1), h1)
	}
	other := constitutionHash("Ship Fast.\nTest First. ")
	if h1 == other {
		t.Fatal("expected differing hash for differing input")
	}
}

// Scenario D — compile twice, same constitution hash both times.
func TestCompile_ScenarioD_ConstitutionHashStable(t *testing.T) {
	fs := afero.NewMemMapFs()
	collection := primitives.NewCollection()
	collection.AddInstruction(instr("shell", "**/*.sh", "Use bash -e."))
	placement := optimizer.PlacementMap{"": {collection.Instructions[0]}}
	cfg := Config{CompilationConfig: &dependency.CompilationConfig{}, ConstitutionText: "Ship Fast.\nTest First.\n"}

	r1, err := Compile(fs, "/proj", collection, placement, cfg)
	if err != nil {
		t.Fatalf("first compile: %v", err)
	}
	content1, err := afero.ReadFile(fs, r1.WrittenPaths[0])
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	r2, err := Compile(fs, "/proj", collection, placement, cfg)
	if err != nil {
		t.Fatalf("second compile: %v", err)
	}
	content2, err := afero.ReadFile(fs, r2.WrittenPaths[0])
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if string(content1) != string(content2) {
		t.Fatalf("expected byte-identical output across runs:\n%s\n---\n%s", content1, content2)
	}

	hash := constitutionHash(cfg.ConstitutionText)
	if !strings.Contains(string(content1), hash) {
		t.Errorf("expected output to contain constitution hash %q", hash)
	}
}

// Scenario E — write failure surfaces as WriteError with the required
// literal token in its message.
type rejectRenameFs struct {
	afero.Fs
}

func (r rejectRenameFs) Rename(_, _ string) error {
	return errors.New("permission denied")
}

func TestCompile_ScenarioE_WriteErrorOnUnwritableDestination(t *testing.T) {
	base := afero.NewMemMapFs()
	fs := rejectRenameFs{Fs: base}

	collection := primitives.NewCollection()
	collection.AddInstruction(instr("shell", "**/*.sh", "Use bash -e."))
	placement := optimizer.PlacementMap{"": {collection.Instructions[0]}}
	cfg := Config{CompilationConfig: &dependency.CompilationConfig{}}

	_, err := Compile(fs, "/proj", collection, placement, cfg)
	if err == nil {
		t.Fatal("expected a WriteError")
	}
	var writeErr *WriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("expected *WriteError, got %T: %v", err, err)
	}
	if !strings.Contains(writeErr.Error(), "Failed to write") {
		t.Errorf("expected message to contain 'Failed to write', got %q", writeErr.Error())
	}

	exists, _ := afero.Exists(base, "/proj/AGENTS.md")
	if exists {
		t.Error("expected no partially-written AGENTS.md to remain after a failed write")
	}
}

func TestCompile_SingleFileMode_IgnoresPlacementMap(t *testing.T) {
	fs := afero.NewMemMapFs()
	collection := primitives.NewCollection()
	collection.AddInstruction(instr("shell", "**/*.sh", "Use bash -e."))
	collection.AddInstruction(instr("go", "**/*.go", "gofmt always."))
	placement := optimizer.PlacementMap{
		"scripts": {collection.Instructions[0]},
		"src":     {collection.Instructions[1]},
	}
	cfg := Config{CompilationConfig: &dependency.CompilationConfig{Strategy: "single-file"}}

	result, err := Compile(fs, "/proj", collection, placement, cfg)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(result.WrittenPaths) != 1 || result.WrittenPaths[0] != "/proj/AGENTS.md" {
		t.Fatalf("expected single root AGENTS.md, got %v", result.WrittenPaths)
	}
	content, _ := afero.ReadFile(fs, "/proj/AGENTS.md")
	if !strings.Contains(string(content), "Use bash -e.") || !strings.Contains(string(content), "gofmt always.") {
		t.Errorf("expected single-file output to contain all instructions, got:\n%s", content)
	}
}

func TestCompile_GroupsSharedPatternUnderOneHeading(t *testing.T) {
	fs := afero.NewMemMapFs()
	collection := primitives.NewCollection()
	collection.AddInstruction(instr("a", "**/*.go", "Rule A."))
	collection.AddInstruction(instr("b", "**/*.go", "Rule B."))
	placement := optimizer.PlacementMap{"": collection.Instructions}
	cfg := Config{CompilationConfig: &dependency.CompilationConfig{}}

	result, err := Compile(fs, "/proj", collection, placement, cfg)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	content, _ := afero.ReadFile(fs, result.WrittenPaths[0])
	if strings.Count(string(content), "Files matching `**/*.go`") != 1 {
		t.Errorf("expected exactly one shared heading, got:\n%s", content)
	}
}

func TestCompile_LinkValidation_ReportsBrokenRelativeLink(t *testing.T) {
	fs := afero.NewMemMapFs()
	collection := primitives.NewCollection()
	collection.AddInstruction(instr("docs", "**/*.md", "See [guide](./missing.md) for details."))
	placement := optimizer.PlacementMap{"": collection.Instructions}
	cfg := Config{CompilationConfig: &dependency.CompilationConfig{}}

	result, err := Compile(fs, "/proj", collection, placement, cfg)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(result.LinkWarnings) != 1 {
		t.Fatalf("expected one link warning, got %+v", result.LinkWarnings)
	}
	if result.LinkWarnings[0].Link != "./missing.md" {
		t.Errorf("unexpected link warning: %+v", result.LinkWarnings[0])
	}
}

func TestCompile_LinkValidation_SkipsExternalAndAnchorLinks(t *testing.T) {
	fs := afero.NewMemMapFs()
	collection := primitives.NewCollection()
	collection.AddInstruction(instr("docs", "**/*.md", "See [ext](https://example.com) and [anchor](#top)."))
	placement := optimizer.PlacementMap{"": collection.Instructions}
	cfg := Config{CompilationConfig: &dependency.CompilationConfig{}}

	result, err := Compile(fs, "/proj", collection, placement, cfg)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(result.LinkWarnings) != 0 {
		t.Errorf("expected no warnings for external/anchor links, got %+v", result.LinkWarnings)
	}
}

func TestCompile_ContextAppendedToEveryOutput(t *testing.T) {
	fs := afero.NewMemMapFs()
	collection := primitives.NewCollection()
	collection.AddInstruction(instr("shell", "**/*.sh", "Use bash -e."))
	collection.AddContext(&primitives.Context{Primitive: primitives.Primitive{Name: "api-notes", Content: "Our API uses REST."}})
	placement := optimizer.PlacementMap{
		"scripts": {collection.Instructions[0]},
		"":        {collection.Instructions[0]},
	}
	cfg := Config{CompilationConfig: &dependency.CompilationConfig{}}

	result, err := Compile(fs, "/proj", collection, placement, cfg)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	for _, path := range result.WrittenPaths {
		content, _ := afero.ReadFile(fs, path)
		if !strings.Contains(string(content), "Our API uses REST.") {
			t.Errorf("expected context appended to %s, got:\n%s", path, content)
		}
	}
}
