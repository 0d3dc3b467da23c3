package dependency

import (
	"fmt"
	"io"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// ValidationError reports a manifest missing a required field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("apm.yml: %s %s", e.Field, e.Reason)
}

// LoadManifest reads and parses an apm.yml file from fs at path.
func LoadManifest(fs afero.Fs, path string) (*Package, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return ParseManifest(raw)
}

// ParseManifest parses apm.yml content already read into memory.
func ParseManifest(raw []byte) (*Package, error) {
	var doc manifestDoc
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid apm.yml: %w", err)
	}

	if doc.Name == "" {
		return nil, &ValidationError{Field: "name", Reason: "is required"}
	}
	if doc.Version == "" {
		return nil, &ValidationError{Field: "version", Reason: "is required"}
	}

	pkg := &Package{
		Name:        doc.Name,
		Version:     doc.Version,
		Description: doc.Description,
		Author:      doc.Author,
		MCPServers:  doc.Dependencies.MCP,
		Scripts:     doc.Scripts,
		Compilation: doc.Compilation,
	}
	for _, decl := range doc.Dependencies.APM {
		pkg.Dependencies = append(pkg.Dependencies, ParseReference(decl))
	}
	return pkg, nil
}

// WriteManifest serializes a Package back to apm.yml at path, used by `apm init`.
func WriteManifest(fs afero.Fs, path string, pkg *Package) error {
	doc := manifestDoc{
		Name:        pkg.Name,
		Version:     pkg.Version,
		Description: pkg.Description,
		Author:      pkg.Author,
		Scripts:     pkg.Scripts,
		Compilation: pkg.Compilation,
	}
	for _, dep := range pkg.Dependencies {
		doc.Dependencies.APM = append(doc.Dependencies.APM, dep.String())
	}
	doc.Dependencies.MCP = pkg.MCPServers

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshal apm.yml: %w", err)
	}
	return afero.WriteFile(fs, path, out, 0o644)
}
