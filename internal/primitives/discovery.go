package primitives

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/apm-run/apm/internal/logger"
	"github.com/spf13/afero"
)

// Scope is one root-scope walked by discovery: the project root itself, or
// a resolved dependency's local install path. Callers pass scopes in
// precedence order (project root first, then dependencies in resolver
// pre-order); Discover internally reverses that order before merging so
// that a same-(kind, name) collision resolves in favor of the
// higher-precedence scope.
type Scope struct {
	// RootPath is the absolute path discovery walks.
	RootPath string
	// Source tags every primitive found under this scope. "local" for the
	// project root; a dependency's display name (repo_url) otherwise.
	Source string
}

// structuredDirs are walked under both .apm/ and its .github/ compatibility
// shadow. Only chatmodes and instructions have a .github shadow per the
// directory layout; context and memory are .apm-only.
var structuredDirs = []string{"chatmodes", "instructions", "context", "memory"}

var githubShadowDirs = []string{"chatmodes", "instructions"}

// Diagnostic is a single non-fatal issue collected during discovery
// (unparseable or invalid file). Discovery never aborts on these; they are
// logged and returned alongside the successfully parsed Collection.
type Diagnostic struct {
	Path   string
	Reason string
}

// Discover walks every scope and returns the merged Collection plus any
// non-fatal diagnostics encountered along the way. Scopes are consumed in
// reverse of the precedence order given (lowest-precedence dependency
// first, local project last), since Collection resolves same-(kind, name)
// conflicts last-wins: processing highest precedence last makes it the
// one that survives.
func Discover(fs afero.Fs, scopes []Scope) (*Collection, []Diagnostic, error) {
	collection := NewCollection()
	var diagnostics []Diagnostic

	ordered := make([]Scope, len(scopes))
	for i, scope := range scopes {
		ordered[len(scopes)-1-i] = scope
	}

	for _, scope := range ordered {
		files, err := enumerateScope(fs, scope.RootPath)
		if err != nil {
			return nil, diagnostics, fmt.Errorf("enumerate scope %s: %w", scope.RootPath, err)
		}

		for _, path := range files {
			prim, err := parseFile(fs, path)
			if err != nil {
				diagnostics = append(diagnostics, Diagnostic{Path: path, Reason: err.Error()})
				logger.Std().WithField("path", path).WithError(err).Warn("skipping unparseable primitive")
				continue
			}

			setSource(prim, scope.Source)
			addToCollection(collection, prim)
		}
	}

	return collection, diagnostics, nil
}

// enumerateScope lists every candidate primitive file under a scope root,
// in lexicographic order, per the directory layout:
//   - {root}/.apm/{chatmodes,instructions,context,memory}/*.{kind}.md
//   - {root}/.github/{chatmodes,instructions}/*.{kind}.md (compatibility shadow)
//   - {root}/*.{kind}.md (top-level)
func enumerateScope(fs afero.Fs, root string) ([]string, error) {
	var files []string

	for _, dir := range structuredDirs {
		found, err := listDir(fs, filepath.Join(root, ".apm", dir))
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}

	for _, dir := range githubShadowDirs {
		found, err := listDir(fs, filepath.Join(root, ".github", dir))
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}

	topLevel, err := listDir(fs, root)
	if err != nil {
		return nil, err
	}
	for _, path := range topLevel {
		if isPrimitiveFile(path) {
			files = append(files, path)
		}
	}

	sort.Strings(files)
	return files, nil
}

// listDir returns the absolute paths of every primitive-suffixed file
// directly inside dir (non-recursive; discovery does not descend into
// subdirectories of a structured root). A missing directory is not an
// error — most scopes define only a subset of the four kinds.
func listDir(fs afero.Fs, dir string) ([]string, error) {
	exists, err := afero.DirExists(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("check %s: %w", dir, err)
	}
	if !exists {
		return nil, nil
	}

	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	var out []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if isPrimitiveFile(path) {
			out = append(out, path)
		}
	}
	return out, nil
}

func isPrimitiveFile(path string) bool {
	if strings.HasSuffix(path, ".prompt.md") {
		return true
	}
	_, ok := kindFromPath(path)
	return ok
}

func parseFile(fs afero.Fs, path string) (any, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	return Parse(path, raw)
}

func setSource(prim any, source string) {
	switch p := prim.(type) {
	case *Chatmode:
		p.Source = source
	case *Instruction:
		p.Source = source
	case *Context:
		p.Source = source
	case *Memory:
		p.Source = source
	}
}

func addToCollection(c *Collection, prim any) {
	switch p := prim.(type) {
	case *Chatmode:
		c.AddChatmode(p)
	case *Instruction:
		c.AddInstruction(p)
	case *Context:
		c.AddContext(p)
	case *Memory:
		c.AddMemory(p)
	}
}

// DiscoverOS is a convenience wrapper for Discover using the real operating
// system filesystem.
func DiscoverOS(scopes []Scope) (*Collection, []Diagnostic, error) {
	return Discover(afero.NewOsFs(), scopes)
}
