// Package dependency models the project manifest (C4), downloads remote
// dependency trees into a local store (C5), and resolves the transitive
// dependency graph (C6).
package dependency

import "strings"

// Reference identifies a single dependency declaration: a repository
// identifier of the form "owner/name", with an optional branch/tag/commit
// ref. Its display name is the repo URL itself.
type Reference struct {
	RepoURL   string
	RefName   string // branch, tag, or commit; empty means "default branch"
	SourceSep bool   // whether the original declaration used a "#ref" suffix
}

// DisplayName returns the identifier used for source attribution and
// dependency-graph node keys.
func (r Reference) DisplayName() string {
	return r.RepoURL
}

// String reconstructs the "owner/name#ref" declaration form.
func (r Reference) String() string {
	if r.RefName == "" {
		return r.RepoURL
	}
	return r.RepoURL + "#" + r.RefName
}

// ParseReference splits a manifest dependency string ("owner/name" or
// "owner/name#ref") into a Reference.
func ParseReference(decl string) Reference {
	repo, ref, found := strings.Cut(decl, "#")
	return Reference{RepoURL: repo, RefName: ref, SourceSep: found}
}

// CompilationConfig holds the optional "compilation" block of apm.yml.
type CompilationConfig struct {
	Output       string `yaml:"output"`
	Chatmode     string `yaml:"chatmode"`
	ResolveLinks *bool  `yaml:"resolve_links"`
	Strategy     string `yaml:"strategy"`
}

// OutputOrDefault returns the configured output filename, defaulting to
// "AGENTS.md".
func (c *CompilationConfig) OutputOrDefault() string {
	if c == nil || c.Output == "" {
		return "AGENTS.md"
	}
	return c.Output
}

// ResolveLinksOrDefault returns whether link validation is enabled,
// defaulting to true.
func (c *CompilationConfig) ResolveLinksOrDefault() bool {
	if c == nil || c.ResolveLinks == nil {
		return true
	}
	return *c.ResolveLinks
}

// SingleFileMode reports whether strategy == "single-file".
func (c *CompilationConfig) SingleFileMode() bool {
	return c != nil && c.Strategy == "single-file"
}

// dependenciesBlock is the "dependencies" mapping of apm.yml.
type dependenciesBlock struct {
	APM []string `yaml:"apm"`
	MCP []string `yaml:"mcp"`
}

// manifestDoc mirrors the on-disk YAML shape of apm.yml exactly; Package
// is the in-memory model derived from it.
type manifestDoc struct {
	Name         string             `yaml:"name"`
	Version      string             `yaml:"version"`
	Description  string             `yaml:"description"`
	Author       string             `yaml:"author"`
	Dependencies dependenciesBlock  `yaml:"dependencies"`
	Scripts      map[string]string  `yaml:"scripts"`
	Compilation  *CompilationConfig `yaml:"compilation"`
}

// Package is the parsed apm.yml: project identity, an ordered list of
// dependency references, and optional compilation/script config.
type Package struct {
	Name         string
	Version      string
	Description  string
	Author       string
	Dependencies []Reference
	MCPServers   []string
	Scripts      map[string]string
	Compilation  *CompilationConfig
}
