package primitives

import (
	"testing"

	"github.com/spf13/afero"
)

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDiscover_LocalScopeOnly(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/proj/.apm/instructions/shell-standards.instructions.md",
		"---\napplyTo: \"**/*.sh\"\ndescription: d\n---\nUse shellcheck.\n")
	writeFile(t, fs, "/proj/.apm/chatmodes/architect.chatmode.md",
		"---\ndescription: persona\n---\nThink in systems.\n")
	writeFile(t, fs, "/proj/README.md", "not a primitive")

	collection, diags, err := Discover(fs, []Scope{{RootPath: "/proj", Source: "local"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(diags) != 0 {
		t.Errorf("expected no diagnostics, got %+v", diags)
	}
	if len(collection.Instructions) != 1 {
		t.Fatalf("expected 1 instruction, got %d", len(collection.Instructions))
	}
	if len(collection.Chatmodes) != 1 {
		t.Fatalf("expected 1 chatmode, got %d", len(collection.Chatmodes))
	}
}

func TestDiscover_GithubShadowDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/proj/.github/instructions/legacy.instructions.md",
		"---\napplyTo: \"**/*.go\"\ndescription: d\n---\nbody\n")

	collection, _, err := Discover(fs, []Scope{{RootPath: "/proj", Source: "local"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(collection.Instructions) != 1 {
		t.Fatalf("expected 1 instruction from .github shadow dir, got %d", len(collection.Instructions))
	}
}

func TestDiscover_TopLevelFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/proj/onboarding.context.md", "---\ndescription: d\n---\nWelcome.\n")

	collection, _, err := Discover(fs, []Scope{{RootPath: "/proj", Source: "local"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(collection.Contexts) != 1 {
		t.Fatalf("expected 1 top-level context primitive, got %d", len(collection.Contexts))
	}
}

func TestDiscover_LocalPrecedesDependency(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/modules/compliance-rules/.apm/instructions/legal-compliance.instructions.md",
		"---\napplyTo: \"**/*.md\"\ndescription: from dependency\n---\nDependency body.\n")
	writeFile(t, fs, "/proj/.apm/instructions/legal-compliance.instructions.md",
		"---\napplyTo: \"**/*.md\"\ndescription: from project\n---\nLocal body.\n")

	// Resolver pre-order always yields root (local) first; discovery must
	// be called with scopes already in that order for local to win.
	collection, _, err := Discover(fs, []Scope{
		{RootPath: "/proj", Source: "local"},
		{RootPath: "/modules/compliance-rules", Source: "danielmeppiel/compliance-rules"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(collection.Instructions) != 1 {
		t.Fatalf("expected exactly 1 merged instruction, got %d", len(collection.Instructions))
	}
	if collection.Instructions[0].Source != "local" {
		t.Errorf("expected local source to win, got %q", collection.Instructions[0].Source)
	}
	if collection.Instructions[0].Content != "Local body." {
		t.Errorf("expected local body to win, got %q", collection.Instructions[0].Content)
	}
}

func TestDiscover_UnparseableFileIsNonFatal(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/proj/.apm/instructions/broken.instructions.md",
		"---\napplyTo: [unterminated\nbody\n")
	writeFile(t, fs, "/proj/.apm/instructions/ok.instructions.md",
		"---\napplyTo: \"**/*.go\"\ndescription: d\n---\nbody\n")

	collection, diags, err := Discover(fs, []Scope{{RootPath: "/proj", Source: "local"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic for the broken file, got %d: %+v", len(diags), diags)
	}
	if len(collection.Instructions) != 1 {
		t.Fatalf("expected the valid file to still be parsed, got %d instructions", len(collection.Instructions))
	}
}

func TestDiscover_EmptyProjectYieldsEmptyCollection(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll("/empty", 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	collection, diags, err := Discover(fs, []Scope{{RootPath: "/empty", Source: "local"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(diags) != 0 {
		t.Errorf("expected no diagnostics, got %+v", diags)
	}
	if collection.Len() != 0 {
		t.Errorf("expected empty collection, got %d primitives", collection.Len())
	}
}
