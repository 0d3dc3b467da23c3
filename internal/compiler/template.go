// Package compiler implements the AGENTS Compiler (C8): it turns a
// PrimitiveCollection and a PlacementMap into one or more rendered output
// files, embedding a hashed constitution block and optionally validating
// internal markdown links.
package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/apm-run/apm/internal/dependency"
	"github.com/apm-run/apm/internal/optimizer"
	"github.com/apm-run/apm/internal/primitives"
	"github.com/cespare/xxhash/v2"
)

// Config is the subset of apm.yml's "compilation" block the compiler acts
// on, plus the constitution text read separately from
// .specify/memory/constitution.md.
type Config struct {
	*dependency.CompilationConfig
	ConstitutionText string
}

// Result is what a compile pass hands back to its caller (the CLI): every
// path written, and the PlacementMap it rendered from, so a TTY frontend
// can print a summary without the core ever touching stdout itself.
type Result struct {
	WrittenPaths []string
	Placement    optimizer.PlacementMap
	LinkWarnings []LinkValidationWarning
}

// LinkValidationWarning reports a relative markdown link that does not
// resolve under the project root. Never fatal.
type LinkValidationWarning struct {
	SourceDir string
	Link      string
}

// sectionCache memoizes a rendered instruction section by a non-cryptographic
// hash of (pattern, content), so an instruction placed at many directories
// under Selective Multi-Placement renders its body once per compile pass
// instead of once per directory.
type sectionCache map[uint64]string

func sectionCacheKey(pattern, content string) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(pattern)
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(content)
	return h.Sum64()
}

// renderInstructionsByPattern groups instructions sharing an ApplyTo
// pattern under one heading (spec: "multiple instructions sharing a
// pattern are grouped under one heading"), preserving the order
// instructions first appear in for this directory.
func renderInstructionsByPattern(instrs []*primitives.Instruction, cache sectionCache) string {
	var order []string
	grouped := make(map[string][]*primitives.Instruction)
	for _, instr := range instrs {
		if _, ok := grouped[instr.ApplyTo]; !ok {
			order = append(order, instr.ApplyTo)
		}
		grouped[instr.ApplyTo] = append(grouped[instr.ApplyTo], instr)
	}

	var b strings.Builder
	for _, pattern := range order {
		fmt.Fprintf(&b, "## Files matching `%s`\n\n", pattern)
		for _, instr := range grouped[pattern] {
			key := sectionCacheKey(pattern, instr.Content)
			body, ok := cache[key]
			if !ok {
				body = strings.TrimRight(instr.Content, "\n")
				cache[key] = body
			}
			b.WriteString(body)
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

// renderConstitutionBlock wraps constitutionText in stable sentinel lines
// carrying its truncated hash, so external tooling can detect drift
// without re-hashing every compiled file's full content.
func renderConstitutionBlock(text string) string {
	if text == "" {
		return ""
	}
	hash := constitutionHash(text)
	var b strings.Builder
	fmt.Fprintf(&b, "<!-- apm:constitution:begin hash=%s -->\n", hash)
	b.WriteString(strings.TrimRight(text, "\n"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "<!-- apm:constitution:end hash=%s -->\n\n", hash)
	return b.String()
}

func renderChatmodeSection(cm *primitives.Chatmode) string {
	if cm == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Chatmode\n\n")
	b.WriteString(strings.TrimRight(cm.Content, "\n"))
	b.WriteString("\n\n")
	return b.String()
}

func renderContextSection(contexts []*primitives.Context) string {
	if len(contexts) == 0 {
		return ""
	}
	var b strings.Builder
	for _, ctx := range contexts {
		b.WriteString(strings.TrimRight(ctx.Content, "\n"))
		b.WriteString("\n\n")
	}
	return b.String()
}

// assembleOutput builds one directory's output file in the spec's fixed
// section order: constitution block, optional chatmode, instruction
// sections grouped by pattern, then context primitives verbatim.
func assembleOutput(cfg Config, chatmode *primitives.Chatmode, instrs []*primitives.Instruction, contexts []*primitives.Context, cache sectionCache) string {
	var b strings.Builder
	b.WriteString("# AGENTS.md\n\n")
	b.WriteString(renderConstitutionBlock(cfg.ConstitutionText))
	b.WriteString(renderChatmodeSection(chatmode))
	b.WriteString(renderInstructionsByPattern(instrs, cache))
	b.WriteString(renderContextSection(contexts))
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func selectedChatmode(collection *primitives.Collection, name string) *primitives.Chatmode {
	if name == "" {
		return nil
	}
	return collection.ChatmodeNamed(name)
}

func sortedInstructions(instrs []*primitives.Instruction) []*primitives.Instruction {
	out := make([]*primitives.Instruction, len(instrs))
	copy(out, instrs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
