package git

import (
	"fmt"
	"strings"
)

// Fetcher materializes a remote repository tree into a local directory.
// It is the git implementation of the Package Downloader's (C5) remote
// collaborator — never invoked interactively, never prompting for
// credentials; any auth is supplied out-of-band via the environment
// (ssh-agent, credential helper) or embedded in the clone URL, and
// ShellCommander.RunInDir sets GIT_TERMINAL_PROMPT=0 on every invocation so
// a missing credential fails the command instead of blocking on a prompt.
type Fetcher struct {
	commander Commander
}

// NewFetcher creates a Fetcher using the real git binary.
func NewFetcher() *Fetcher {
	return &Fetcher{commander: &ShellCommander{}}
}

// NewFetcherWithCommander creates a Fetcher with a custom commander (for testing).
func NewFetcherWithCommander(commander Commander) *Fetcher {
	return &Fetcher{commander: commander}
}

// IsInstalled reports whether the git binary is available in PATH.
func (f *Fetcher) IsInstalled() bool {
	_, err := f.commander.Run("git", "--version")
	return err == nil
}

// CloneShallow performs a depth-1 checkout of repoURL at ref (or the
// default branch when ref is empty) into destDir. destDir must not already
// exist.
func (f *Fetcher) CloneShallow(repoURL, ref, destDir string) error {
	args := []string{"clone", "--quiet", "--depth", "1"}
	if ref != "" {
		args = append(args, "--branch", ref)
	}
	args = append(args, repoURL, destDir)

	if _, err := f.commander.Run("git", args...); err != nil {
		if ref != "" && looksLikeMissingRef(err.Error()) {
			return fmt.Errorf("%w: %s@%s", ErrReferenceNotFound, repoURL, ref)
		}
		return fmt.Errorf("clone %s: %w", repoURL, err)
	}
	return nil
}

// ResolveCommit returns the full commit SHA that HEAD points to in the
// given working directory. Called after CloneShallow so the
// DependencyReference can be pinned to an immutable commit rather than a
// mutable branch or tag name.
func (f *Fetcher) ResolveCommit(workDir string) (string, error) {
	out, err := f.commander.RunInDir(workDir, "git", "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolve HEAD commit: %w", err)
	}
	return out, nil
}

// DefaultBranch returns the remote's default branch name, used when a
// DependencyReference omits an explicit ref.
func (f *Fetcher) DefaultBranch(workDir string) (string, error) {
	out, err := f.commander.RunInDir(workDir, "git", "symbolic-ref", "--short", "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolve default branch: %w", err)
	}
	return out, nil
}

func looksLikeMissingRef(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "remote branch") && strings.Contains(msg, "not found") ||
		strings.Contains(msg, "couldn't find remote ref") ||
		strings.Contains(msg, "did not match any file")
}
