// Package scriptrunner implements the thin Script Runner (C9): it
// transforms an apm.yml script command referencing a *.prompt.md file into
// the concrete invocation a known agent runtime expects, and resolves
// ${input:name} placeholders in compiled prompt content. It never executes
// anything itself — constructing the command string is as far as the core
// goes; running it is left to the caller.
package scriptrunner

import (
	"regexp"
	"strings"
)

var envAssignmentPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*=\S*$`)

// splitEnvPrefix peels leading "KEY=VALUE" tokens off command, returning
// them and the remaining tokens separately.
func splitEnvPrefix(tokens []string) (prefix, rest []string) {
	i := 0
	for i < len(tokens) && envAssignmentPattern.MatchString(tokens[i]) {
		i++
	}
	return tokens[:i], tokens[i:]
}

// DetectRuntime identifies which known agent runtime a script command
// invokes, after skipping any leading environment variable assignments.
// Unrecognized commands report "unknown".
func DetectRuntime(command string) string {
	_, rest := splitEnvPrefix(strings.Fields(command))
	if len(rest) == 0 {
		return "unknown"
	}
	switch rest[0] {
	case "codex", "llm", "copilot":
		return rest[0]
	default:
		return "unknown"
	}
}

// removeToken returns tokens with every occurrence of target removed.
func removeToken(tokens []string, target string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t == target {
			continue
		}
		out = append(out, t)
	}
	return out
}

func withFlags(base string, flags []string) string {
	if len(flags) == 0 {
		return base
	}
	return base + " " + strings.Join(flags, " ")
}

func joinPrefixed(prefix []string, rest string) string {
	if len(prefix) == 0 {
		return rest
	}
	return strings.Join(prefix, " ") + " " + rest
}

// TransformRuntimeCommand rewrites an apm.yml script command referencing
// promptFile into the invocation the detected runtime actually expects, so
// the compiled prompt content is piped in rather than re-read from disk:
//
//   - "codex <file>" -> "codex exec", preserving any flags given before the
//     file.
//   - "llm <file>" -> "llm", preserving flags given after the file.
//   - "copilot <file>" -> "copilot", preserving flags and dropping a bare
//     "-p" flag (handled separately by the caller, which supplies the
//     compiled content itself as -p's argument).
//   - a bare "<file>" with no command defaults to "codex exec".
//   - any other command passes through unchanged except the prompt file
//     token is replaced with compiledPath, so the runtime reads the
//     compiled output instead of the raw, un-substituted prompt source.
func TransformRuntimeCommand(original, promptFile, compiledContent, compiledPath string) string {
	tokens := strings.Fields(original)
	prefix, rest := splitEnvPrefix(tokens)

	if len(rest) == 0 {
		return original
	}

	if rest[0] == promptFile {
		return joinPrefixed(prefix, "codex exec")
	}

	command, args := rest[0], rest[1:]
	switch command {
	case "codex":
		return joinPrefixed(prefix, withFlags("codex exec", removeToken(args, promptFile)))
	case "llm":
		return joinPrefixed(prefix, withFlags("llm", removeToken(args, promptFile)))
	case "copilot":
		filtered := removeToken(removeToken(args, promptFile), "-p")
		return joinPrefixed(prefix, withFlags("copilot", filtered))
	default:
		replaced := make([]string, len(tokens))
		copy(replaced, tokens)
		for i, t := range replaced {
			if t == promptFile {
				replaced[i] = compiledPath
			}
		}
		return strings.Join(replaced, " ")
	}
}
