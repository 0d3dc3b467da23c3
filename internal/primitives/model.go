// Package primitives defines the typed agent-primitive model (C1), the
// frontmatter parser that produces it (C2), and the filesystem walk that
// discovers it across a project and its dependencies (C3).
package primitives

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Kind identifies which of the four primitive variants a file encodes.
type Kind int

const (
	// KindChatmode is a persona/tone primitive, optionally scoped by ApplyTo.
	KindChatmode Kind = iota
	// KindInstruction is a prescriptive primitive; ApplyTo is required.
	KindInstruction
	// KindContext is freeform reference material with no ApplyTo.
	KindContext
	// KindMemory is persisted agent notes; shaped identically to Context.
	KindMemory
)

// String returns the kind's canonical lowercase singular name. Directory
// segments and file suffixes are not derived from it (see Suffix).
func (k Kind) String() string {
	switch k {
	case KindChatmode:
		return "chatmode"
	case KindInstruction:
		return "instruction"
	case KindContext:
		return "context"
	case KindMemory:
		return "memory"
	default:
		return "unknown"
	}
}

// Suffix returns the filename suffix (including both dots) for this kind,
// e.g. ".instructions.md".
func (k Kind) Suffix() string {
	switch k {
	case KindChatmode:
		return ".chatmode.md"
	case KindInstruction:
		return ".instructions.md"
	case KindContext:
		return ".context.md"
	case KindMemory:
		return ".memory.md"
	default:
		return ""
	}
}

// kindsInOrder lists every recognized kind in the collection's canonical
// iteration order: chatmodes, then instructions, then context, then memory.
var kindsInOrder = []Kind{KindChatmode, KindInstruction, KindContext, KindMemory}

// validate is the package-wide validator singleton, extended with a
// whitespace-aware non-empty check shared by every primitive variant.
var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("nonempty", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// Primitive is the common shape every variant embeds: an identifier unique
// within its kind, the file it came from, the markdown body after
// frontmatter, and attribution back to the scope (local or dependency) that
// produced it.
type Primitive struct {
	Kind        Kind
	Name        string
	FilePath    string
	Content     string
	Description string
	Author      string
	Version     string
	// Source is "local" or a dependency reference's display name
	// (DependencyReference.RepoURL), set by discovery at scope boundaries.
	Source string
	// ExtraAttributes holds frontmatter keys not recognized by any typed
	// field, preserved for forward compatibility.
	ExtraAttributes map[string]any
}

// Chatmode is persona prose optionally scoped to a subset of files.
type Chatmode struct {
	Primitive
	ApplyTo string
}

// Validate enforces non-empty description and content.
func (c *Chatmode) Validate() error {
	return validate.Struct(struct {
		Description string `validate:"required,nonempty"`
		Content     string `validate:"required,nonempty"`
	}{c.Description, c.Content})
}

// Instruction is prescriptive content that MUST declare an ApplyTo pattern.
type Instruction struct {
	Primitive
	ApplyTo string
}

// Validate enforces a non-empty ApplyTo pattern and non-empty content.
func (i *Instruction) Validate() error {
	return validate.Struct(struct {
		ApplyTo string `validate:"required,nonempty"`
		Content string `validate:"required,nonempty"`
	}{i.ApplyTo, i.Content})
}

// Context is freeform reference material with no ApplyTo scoping.
type Context struct {
	Primitive
}

// Validate enforces non-empty content.
func (c *Context) Validate() error {
	return validate.Struct(struct {
		Content string `validate:"required,nonempty"`
	}{c.Content})
}

// Memory is persisted agent notes; identical shape and validation to Context.
type Memory struct {
	Primitive
}

// Validate enforces non-empty content.
func (m *Memory) Validate() error {
	return validate.Struct(struct {
		Content string `validate:"required,nonempty"`
	}{m.Content})
}

// Collection holds the four ordered primitive sequences plus an index for
// O(1) (kind, name) lookup. Adding a primitive whose (kind, name) is
// already present replaces the earlier one in place (last wins); Discover
// adds the lowest-precedence scope first and the local project last, so
// the local version is the one kept.
type Collection struct {
	Chatmodes    []*Chatmode
	Instructions []*Instruction
	Contexts     []*Context
	Memories     []*Memory

	byKindAndName map[string]int // key -> index into the matching slice above
}

// NewCollection returns an empty, ready-to-use Collection.
func NewCollection() *Collection {
	return &Collection{byKindAndName: make(map[string]int)}
}

func key(kind Kind, name string) string {
	return fmt.Sprintf("%d:%s", kind, name)
}

// AddChatmode inserts or overwrites (by kind+name last-wins policy) a Chatmode.
func (c *Collection) AddChatmode(p *Chatmode) {
	k := key(KindChatmode, p.Name)
	if idx, ok := c.byKindAndName[k]; ok {
		c.Chatmodes[idx] = p
		return
	}
	c.Chatmodes = append(c.Chatmodes, p)
	c.byKindAndName[k] = len(c.Chatmodes) - 1
}

// AddInstruction inserts or overwrites (last-wins) an Instruction.
func (c *Collection) AddInstruction(p *Instruction) {
	k := key(KindInstruction, p.Name)
	if idx, ok := c.byKindAndName[k]; ok {
		c.Instructions[idx] = p
		return
	}
	c.Instructions = append(c.Instructions, p)
	c.byKindAndName[k] = len(c.Instructions) - 1
}

// AddContext inserts or overwrites (last-wins) a Context.
func (c *Collection) AddContext(p *Context) {
	k := key(KindContext, p.Name)
	if idx, ok := c.byKindAndName[k]; ok {
		c.Contexts[idx] = p
		return
	}
	c.Contexts = append(c.Contexts, p)
	c.byKindAndName[k] = len(c.Contexts) - 1
}

// AddMemory inserts or overwrites (last-wins) a Memory.
func (c *Collection) AddMemory(p *Memory) {
	k := key(KindMemory, p.Name)
	if idx, ok := c.byKindAndName[k]; ok {
		c.Memories[idx] = p
		return
	}
	c.Memories = append(c.Memories, p)
	c.byKindAndName[k] = len(c.Memories) - 1
}

// Len returns the total number of primitives across all four variants.
func (c *Collection) Len() int {
	return len(c.Chatmodes) + len(c.Instructions) + len(c.Contexts) + len(c.Memories)
}

// HasChatmodeNamed reports whether a chatmode with this name is present.
func (c *Collection) HasChatmodeNamed(name string) bool {
	_, ok := c.byKindAndName[key(KindChatmode, name)]
	return ok
}

// ChatmodeNamed returns the chatmode with this name, or nil. The compiler
// uses it to resolve a --chatmode selection.
func (c *Collection) ChatmodeNamed(name string) *Chatmode {
	idx, ok := c.byKindAndName[key(KindChatmode, name)]
	if !ok {
		return nil
	}
	return c.Chatmodes[idx]
}
