// Package project provides detection of the boundary of an apm-managed
// project.
//
// Detection follows a hierarchical precedence, highest first:
//  1. Explicit marker (apm.yml or .apm/): the project manifest itself.
//  2. VCS root (.git/): fallback when no manifest exists yet (e.g. "apm init").
//  3. Start path: used unanchored if nothing else matches.
package project

import "github.com/spf13/afero"

// MarkerType represents the type of project marker that was detected.
type MarkerType int

const (
	// MarkerNone indicates no project marker was found.
	MarkerNone MarkerType = iota

	// MarkerManifest indicates an apm.yml file was found (highest priority).
	MarkerManifest

	// MarkerAPMDir indicates a .apm directory was found.
	MarkerAPMDir

	// MarkerGit indicates a .git directory was found.
	MarkerGit
)

// String returns a human-readable name for the marker type.
func (m MarkerType) String() string {
	switch m {
	case MarkerManifest:
		return "apm.yml"
	case MarkerAPMDir:
		return ".apm"
	case MarkerGit:
		return ".git"
	default:
		return "none"
	}
}

// Priority returns the detection priority for this marker type.
// Higher values indicate higher priority.
func (m MarkerType) Priority() int {
	switch m {
	case MarkerManifest:
		return 100
	case MarkerAPMDir:
		return 50
	case MarkerGit:
		return 10
	default:
		return 0
	}
}

// Context contains information about the detected project boundary.
type Context struct {
	// RootPath is the absolute path to the detected project root.
	RootPath string

	// MarkerType indicates which marker was used to identify the project root.
	MarkerType MarkerType

	// GitRoot is the absolute path to the nearest .git directory (may differ
	// from RootPath when the manifest lives in a subdirectory of a larger
	// repository). Empty string if no git repository was found.
	GitRoot string
}

// HasManifest returns true if the project already has an apm.yml.
func (c *Context) HasManifest() bool {
	return c.MarkerType == MarkerManifest
}

// Detector defines the interface for project detection.
// This abstraction allows for easy testing with in-memory filesystems.
type Detector interface {
	// Detect finds the project root starting from the given path.
	// It walks up the directory tree looking for project markers.
	Detect(startPath string) (*Context, error)
}

// detector implements Detector using an afero filesystem.
type detector struct {
	fs afero.Fs
}

// NewDetector creates a new Detector using the provided filesystem.
// Use afero.NewOsFs() for real filesystem operations,
// or afero.NewMemMapFs() for testing.
func NewDetector(fs afero.Fs) Detector {
	return &detector{fs: fs}
}

// NewOsDetector creates a Detector using the real operating system filesystem.
func NewOsDetector() Detector {
	return NewDetector(afero.NewOsFs())
}

// Detect is a convenience function that detects the project root from the
// given path using the real operating system filesystem.
func Detect(startPath string) (*Context, error) {
	return NewOsDetector().Detect(startPath)
}
