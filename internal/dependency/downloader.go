package dependency

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apm-run/apm/internal/credentials"
	"github.com/apm-run/apm/internal/git"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// installMarkerName records what a dependency was last installed at, so a
// later Download for the same ref can skip re-cloning entirely instead of
// hitting the network on every resolve.
const installMarkerName = ".apm-installed.yml"

// installMarker is the on-disk record of a completed install, written next
// to the installed package's own apm.yml.
type installMarker struct {
	RequestedRef   string `yaml:"requested_ref"`
	RefName        string `yaml:"ref_name"`
	ResolvedCommit string `yaml:"resolved_commit"`
}

// Errors surfaced by the downloader. NetworkError and AuthError are
// retriable/fatal classifications layered over whatever the underlying
// fetcher reports; ReferenceNotFound and DestinationBusy are reused or
// defined here since they're specific to this boundary.
var (
	ErrReferenceNotFound = git.ErrReferenceNotFound
	ErrDestinationBusy   = errors.New("destination busy: another install is in progress")
	ErrAuth              = errors.New("authentication failed or credential missing")
	ErrNetwork           = errors.New("network error fetching dependency")
)

// defaultGitHost is prepended to a bare "owner/name" repo_url to form a
// cloneable URL. A reference that already looks like a URL is used as-is.
const defaultGitHost = "https://github.com/"

// ResolvedReference pins a dependency to an immutable commit, recording the
// originally-requested ref name alongside it.
type ResolvedReference struct {
	RefName        string
	ResolvedCommit string
}

// Resolved is everything the downloader produces for a single dependency.
type Resolved struct {
	InstallPath string
	Package     *Package
	Reference   ResolvedReference
}

// fetcher is the subset of git.Fetcher the downloader needs; declared as an
// interface so tests substitute a mock without touching the real git binary.
type fetcher interface {
	IsInstalled() bool
	CloneShallow(repoURL, ref, destDir string) error
	ResolveCommit(workDir string) (string, error)
	DefaultBranch(workDir string) (string, error)
}

// Downloader materializes DependencyReferences into modulesRoot, laid out
// as modulesRoot/<owner>/<name>. Every filesystem operation it performs
// outside of the fetcher's own clone goes through fs, the same
// platform-adapter discipline Discovery and the Compiler follow.
type Downloader struct {
	modulesRoot string
	fetcher     fetcher
	tokens      credentials.TokenProvider
	fs          afero.Fs
}

// NewDownloader creates a Downloader using the real git binary and OS
// filesystem. Credential lookup defaults to the environment adapter
// (spec.md §9); the downloader itself never calls os.Getenv.
func NewDownloader(modulesRoot string) *Downloader {
	return &Downloader{modulesRoot: modulesRoot, fetcher: git.NewFetcher(), tokens: credentials.EnvTokenProvider{}, fs: afero.NewOsFs()}
}

// NewDownloaderWithFetcher creates a Downloader with a custom fetcher (for testing).
func NewDownloaderWithFetcher(modulesRoot string, f fetcher) *Downloader {
	return &Downloader{modulesRoot: modulesRoot, fetcher: f, tokens: credentials.EnvTokenProvider{}, fs: afero.NewOsFs()}
}

// WithTokenProvider overrides the default environment-backed credential
// lookup, returning d for chaining.
func (d *Downloader) WithTokenProvider(p credentials.TokenProvider) *Downloader {
	d.tokens = p
	return d
}

// WithFs overrides the default OS filesystem, returning d for chaining.
// The underlying git fetcher still addresses real paths directly (git
// itself is never routed through afero), so this is for tests that want to
// observe the downloader's own mkdir/lock/rename bookkeeping in isolation.
func (d *Downloader) WithFs(fs afero.Fs) *Downloader {
	d.fs = fs
	return d
}

// Download materializes ref into modulesRoot/<owner>/<name>, resolving the
// symbolic ref to an immutable commit. When target already holds a
// completed install for this exact ref (see loadCached), Download returns
// that install's recorded state without touching the network. Otherwise it
// clones into a fresh staging directory and atomically renames it into
// place, so concurrent or repeated installs never observe a half-written
// tree.
func (d *Downloader) Download(ref Reference) (*Resolved, error) {
	owner, name, err := splitOwnerName(ref.RepoURL)
	if err != nil {
		return nil, err
	}
	target := filepath.Join(d.modulesRoot, owner, name)

	if resolved, ok := d.loadCached(target, ref); ok {
		return resolved, nil
	}

	if err := d.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("create modules directory: %w", err)
	}

	lockPath := target + ".install.lock"
	lock, err := d.fs.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDestinationBusy, target)
		}
		return nil, fmt.Errorf("acquire install lock: %w", err)
	}
	defer func() {
		_ = lock.Close()
		_ = d.fs.Remove(lockPath)
	}()

	staging := filepath.Join(d.modulesRoot, ".staging-"+uuid.New().String())
	defer func() { _ = d.fs.RemoveAll(staging) }()

	cloneURL := withCredential(cloneURLFor(ref.RepoURL), d.token())
	if err := d.fetcher.CloneShallow(cloneURL, ref.RefName, staging); err != nil {
		return nil, classifyFetchError(err)
	}

	commit, err := d.fetcher.ResolveCommit(staging)
	if err != nil {
		return nil, classifyFetchError(err)
	}

	refName := ref.RefName
	if refName == "" {
		branch, err := d.fetcher.DefaultBranch(staging)
		if err != nil {
			return nil, classifyFetchError(err)
		}
		refName = branch
	}

	manifestPath := filepath.Join(staging, "apm.yml")
	pkg, err := LoadManifest(d.fs, manifestPath)
	if err != nil {
		return nil, fmt.Errorf("load dependency manifest %s: %w", ref.RepoURL, err)
	}

	resolvedRef := ResolvedReference{RefName: refName, ResolvedCommit: commit}
	if err := writeInstallMarker(d.fs, staging, ref, resolvedRef); err != nil {
		return nil, fmt.Errorf("write install marker for %s: %w", ref.RepoURL, err)
	}

	_ = d.fs.RemoveAll(target)
	if err := d.fs.Rename(staging, target); err != nil {
		return nil, fmt.Errorf("install %s: %w", ref.RepoURL, err)
	}

	return &Resolved{
		InstallPath: target,
		Package:     pkg,
		Reference:   resolvedRef,
	}, nil
}

// loadCached reports whether target already holds a completed install for
// exactly the requested ref (pinned ref names must match verbatim; an
// unpinned "" ref only hits the cache against a prior unpinned install).
// A cached unpinned install is reused with its recorded commit; it is not
// re-resolved against the remote's current default-branch head. This is
// what lets "deps" list an
// existing apm_modules/ tree read-only, and lets "compile"/"--watch" avoid
// re-cloning on every recompile when nothing in the manifest changed.
func (d *Downloader) loadCached(target string, ref Reference) (*Resolved, bool) {
	marker, ok := readInstallMarker(d.fs, target)
	if !ok || marker.RequestedRef != ref.RefName {
		return nil, false
	}
	pkg, err := LoadManifest(d.fs, filepath.Join(target, "apm.yml"))
	if err != nil {
		return nil, false
	}
	return &Resolved{
		InstallPath: target,
		Package:     pkg,
		Reference:   ResolvedReference{RefName: marker.RefName, ResolvedCommit: marker.ResolvedCommit},
	}, true
}

func readInstallMarker(fs afero.Fs, target string) (*installMarker, bool) {
	data, err := afero.ReadFile(fs, filepath.Join(target, installMarkerName))
	if err != nil {
		return nil, false
	}
	var marker installMarker
	if err := yaml.Unmarshal(data, &marker); err != nil {
		return nil, false
	}
	return &marker, true
}

func writeInstallMarker(fs afero.Fs, dir string, ref Reference, resolved ResolvedReference) error {
	marker := installMarker{
		RequestedRef:   ref.RefName,
		RefName:        resolved.RefName,
		ResolvedCommit: resolved.ResolvedCommit,
	}
	data, err := yaml.Marshal(marker)
	if err != nil {
		return err
	}
	return afero.WriteFile(fs, filepath.Join(dir, installMarkerName), data, 0o644)
}

// token returns the "modules" credential, or "" when no provider is
// configured (NewDownloaderWithFetcher callers that skip WithTokenProvider).
func (d *Downloader) token() string {
	if d.tokens == nil {
		return ""
	}
	return d.tokens.Token(credentials.PurposeModules)
}

// withCredential embeds token as userinfo in an https clone URL, the same
// "x-access-token:<token>@host" form CI credential helpers use, so a
// shelled-out git clone authenticates without an interactive prompt. Empty
// token or a non-https URL (ssh remotes authenticate via ssh-agent) is
// passed through unchanged.
func withCredential(cloneURL, token string) string {
	if token == "" || !strings.HasPrefix(cloneURL, "https://") {
		return cloneURL
	}
	return "https://x-access-token:" + token + "@" + strings.TrimPrefix(cloneURL, "https://")
}

func splitOwnerName(repoURL string) (owner, name string, err error) {
	trimmed := strings.TrimSuffix(repoURL, "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("invalid repo_url %q: expected owner/name", repoURL)
	}
	return parts[len(parts)-2], parts[len(parts)-1], nil
}

func cloneURLFor(repoURL string) string {
	if strings.Contains(repoURL, "://") {
		return repoURL
	}
	return defaultGitHost + repoURL + ".git"
}

func classifyFetchError(err error) error {
	if errors.Is(err, git.ErrReferenceNotFound) {
		return err
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission denied") || strings.Contains(msg, "authentication failed") || strings.Contains(msg, "could not read username"):
		return fmt.Errorf("%w: %s", ErrAuth, err)
	case strings.Contains(msg, "could not resolve host") || strings.Contains(msg, "connection") || strings.Contains(msg, "timed out"):
		return fmt.Errorf("%w: %s", ErrNetwork, err)
	default:
		return err
	}
}
