package primitives

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseError reports that a single file could not be turned into a
// primitive. Parsing failures are never fatal: discovery logs these and
// excludes the offending file from the collection.
type ParseError struct {
	Path   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Path, e.Reason)
}

// frontmatter is the raw YAML mapping parsed out of the leading --- block.
// Unrecognized keys fall through to ExtraAttributes on the typed primitive.
type frontmatter map[string]any

const frontmatterDelim = "---"

// recognizedKeys are consumed by typed fields; everything else lands in
// ExtraAttributes for forward compatibility (DESIGN NOTES: "dynamic
// attribute bags").
var recognizedKeys = map[string]bool{
	"description": true,
	"author":      true,
	"version":     true,
	"applyTo":     true,
}

// splitFrontmatter separates a leading "---\n...\n---\n" YAML block from the
// markdown body that follows it. A file with no frontmatter block returns a
// nil mapping and the whole file as body.
func splitFrontmatter(raw string) (frontmatter, string, error) {
	trimmed := strings.TrimLeft(raw, "\n")
	if !strings.HasPrefix(trimmed, frontmatterDelim) {
		return nil, raw, nil
	}

	rest := trimmed[len(frontmatterDelim):]
	// Require the opening delimiter to be alone on its line.
	if rest != "" && rest[0] != '\n' && rest[0] != '\r' {
		return nil, raw, nil
	}
	rest = strings.TrimPrefix(rest, "\r\n")
	rest = strings.TrimPrefix(rest, "\n")

	idx := strings.Index(rest, "\n"+frontmatterDelim)
	if idx < 0 {
		return nil, "", errors.New("unterminated frontmatter block (missing closing ---)")
	}

	yamlBlock := rest[:idx]
	after := rest[idx+len("\n"+frontmatterDelim):]
	after = strings.TrimPrefix(after, "\r\n")
	after = strings.TrimPrefix(after, "\n")

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(yamlBlock), &fm); err != nil {
		return nil, "", fmt.Errorf("invalid frontmatter YAML: %w", err)
	}

	return fm, after, nil
}

// kindSuffixes is checked longest-suffix-first so ".instructions.md" is
// matched before a hypothetical bare ".md" fallback.
var kindSuffixes = []struct {
	suffix string
	kind   Kind
}{
	{".chatmode.md", KindChatmode},
	{".instructions.md", KindInstruction},
	{".context.md", KindContext},
	{".memory.md", KindMemory},
}

// kindFromPath derives the primitive kind from a file's suffix alone. The
// containing directory (chatmodes/, instructions/, context/, memory/) is
// not consulted, so a file whose suffix names a different kind than its
// directory is parsed as the kind its suffix names.
func kindFromPath(path string) (Kind, bool) {
	base := filepath.Base(path)
	for _, ks := range kindSuffixes {
		if strings.HasSuffix(base, ks.suffix) {
			return ks.kind, true
		}
	}
	return 0, false
}

// nameFromPath strips the kind suffix from the final path component,
// yielding the canonical primitive name (e.g. "foo.instructions.md" -> "foo").
func nameFromPath(path string, kind Kind) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, kind.Suffix())
}

// ParsePromptFile is a degenerate parse path for *.prompt.md files: these
// are generic agent workflow prompts, not one of the four typed variants,
// and are folded into Context so they're still discoverable and compiled,
// tagged via ExtraAttributes["workflow"] so the compiler and downstream
// tooling can distinguish them from ordinary context material.
func ParsePromptFile(path string, raw []byte) (*Context, error) {
	fm, body, err := splitFrontmatter(string(raw))
	if err != nil {
		return nil, &ParseError{Path: path, Reason: err.Error()}
	}

	name := strings.TrimSuffix(filepath.Base(path), ".prompt.md")
	prim := newPrimitive(KindContext, name, path, fm, body)
	prim.ExtraAttributes["workflow"] = true

	ctx := &Context{Primitive: prim}
	if err := ctx.Validate(); err != nil {
		return nil, &ParseError{Path: path, Reason: err.Error()}
	}
	return ctx, nil
}

// Parse reads a single primitive file and returns its typed variant as an
// `any` holding one of *Chatmode, *Instruction, *Context, *Memory. Unknown
// suffixes are rejected with ParseError per the "unknown kinds are rejected"
// design note.
func Parse(path string, raw []byte) (any, error) {
	if strings.HasSuffix(path, ".prompt.md") {
		return ParsePromptFile(path, raw)
	}

	kind, ok := kindFromPath(path)
	if !ok {
		return nil, &ParseError{Path: path, Reason: "unrecognized primitive file suffix"}
	}

	fm, body, err := splitFrontmatter(string(raw))
	if err != nil {
		return nil, &ParseError{Path: path, Reason: err.Error()}
	}

	name := nameFromPath(path, kind)
	prim := newPrimitive(kind, name, path, fm, body)

	switch kind {
	case KindChatmode:
		c := &Chatmode{Primitive: prim, ApplyTo: stringAttr(fm, "applyTo")}
		if err := c.Validate(); err != nil {
			return nil, &ParseError{Path: path, Reason: err.Error()}
		}
		return c, nil
	case KindInstruction:
		i := &Instruction{Primitive: prim, ApplyTo: stringAttr(fm, "applyTo")}
		if err := i.Validate(); err != nil {
			return nil, &ParseError{Path: path, Reason: err.Error()}
		}
		return i, nil
	case KindContext:
		c := &Context{Primitive: prim}
		if err := c.Validate(); err != nil {
			return nil, &ParseError{Path: path, Reason: err.Error()}
		}
		return c, nil
	case KindMemory:
		m := &Memory{Primitive: prim}
		if err := m.Validate(); err != nil {
			return nil, &ParseError{Path: path, Reason: err.Error()}
		}
		return m, nil
	default:
		return nil, &ParseError{Path: path, Reason: "unrecognized primitive kind"}
	}
}

func newPrimitive(kind Kind, name, path string, fm frontmatter, body string) Primitive {
	p := Primitive{
		Kind:            kind,
		Name:            name,
		FilePath:        path,
		Content:         strings.TrimRight(body, "\n"),
		Description:     stringAttr(fm, "description"),
		Author:          stringAttr(fm, "author"),
		Version:         stringAttr(fm, "version"),
		Source:          "local",
		ExtraAttributes: make(map[string]any),
	}
	for k, v := range fm {
		if !recognizedKeys[k] {
			p.ExtraAttributes[k] = v
		}
	}
	return p
}

func stringAttr(fm frontmatter, key string) string {
	if fm == nil {
		return ""
	}
	v, ok := fm[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
