package scriptrunner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// ResolveError reports that promptFile could not be found locally or under
// any installed dependency, listing every location checked so the CLI can
// print actionable guidance (run `apm install`).
type ResolveError struct {
	PromptFile string
	Tried      []string
}

func (e *ResolveError) Error() string {
	msg := fmt.Sprintf("Prompt file '%s' not found. Tried:\n  Local: %s", e.PromptFile, e.Tried[0])
	if len(e.Tried) > 1 {
		msg += "\n  Dependencies:"
		for _, t := range e.Tried[1:] {
			msg += "\n    " + t
		}
	}
	msg += "\nRun 'apm install' if this file belongs to a declared dependency."
	return msg
}

// ResolvePromptFile finds promptFile relative to root: the project's own
// tree first (local always wins, matching primitive discovery's
// precedence), then every installed dependency under apm_modules/,
// searched in lexicographic path order so repeated resolution is
// deterministic even when more than one dependency ships a same-named
// file.
func ResolvePromptFile(fs afero.Fs, root, promptFile string) (string, error) {
	local := filepath.Join(root, promptFile)
	if exists, _ := afero.Exists(fs, local); exists {
		return local, nil
	}

	modulesRoot := filepath.Join(root, "apm_modules")
	tried := []string{promptFile}

	dirExists, _ := afero.DirExists(fs, modulesRoot)
	if !dirExists {
		return "", &ResolveError{PromptFile: promptFile, Tried: tried}
	}

	var candidates []string
	_ = afero.Walk(fs, modulesRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		if matchesPromptPath(path, promptFile) {
			candidates = append(candidates, path)
		}
		return nil
	})
	sort.Strings(candidates)

	for _, c := range candidates {
		rel, err := filepath.Rel(root, c)
		if err == nil {
			tried = append(tried, rel)
		}
	}

	if len(candidates) == 0 {
		return "", &ResolveError{PromptFile: promptFile, Tried: tried}
	}
	return candidates[0], nil
}

// matchesPromptPath reports whether path's trailing path segments equal
// promptFile's segments, so a bare filename matches a file nested inside a
// dependency subdirectory while a multi-segment promptFile still requires
// an exact suffix match.
func matchesPromptPath(path, promptFile string) bool {
	pathSegs := strings.Split(filepath.ToSlash(path), "/")
	wantSegs := strings.Split(filepath.ToSlash(promptFile), "/")
	if len(wantSegs) > len(pathSegs) {
		return false
	}
	tail := pathSegs[len(pathSegs)-len(wantSegs):]
	return strings.Join(tail, "/") == strings.Join(wantSegs, "/")
}
