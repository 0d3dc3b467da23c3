package project

import (
	"errors"
	"path/filepath"
)

// ErrNoProjectFound is returned when no project root could be detected.
var ErrNoProjectFound = errors.New("no project root found")

// markerFiles defines the files/directories to check for project detection.
// Order matters for same-directory precedence within priority tiers.
var markerFiles = []struct {
	name       string
	markerType MarkerType
}{
	{"apm.yml", MarkerManifest},
	{".apm", MarkerAPMDir},
	{".git", MarkerGit},
}

// Detect implements the Detector interface.
// It walks up the directory tree from startPath, looking for project markers.
//
// The detection algorithm:
//  1. For each directory from startPath upward to filesystem root:
//     - Check for markers in priority order
//     - Record the nearest directory holding .git as the git root
//     - If apm.yml found, return it (highest priority), with the git root
//       taken from the nearest .git at or above it
//     - Track best candidate (.apm dir) while continuing to look for apm.yml
//  2. Continue until filesystem root or apm.yml found
//  3. Return the best candidate, or fall back to the git root, or startPath
//
// Constraint: read-only detection using stat calls only. No files are created.
func (d *detector) Detect(startPath string) (*Context, error) {
	absPath, err := filepath.Abs(startPath)
	if err != nil {
		return nil, err
	}

	var bestCandidate *Context
	var gitRoot string

	current := absPath
	for {
		marker := d.findMarkerAt(current)

		if gitRoot == "" {
			if ok, _ := d.exists(filepath.Join(current, ".git")); ok {
				gitRoot = current
			}
		}

		if marker == MarkerManifest {
			for dir := current; gitRoot == ""; {
				parent := filepath.Dir(dir)
				if parent == dir {
					break
				}
				dir = parent
				if ok, _ := d.exists(filepath.Join(dir, ".git")); ok {
					gitRoot = dir
				}
			}
			return &Context{
				RootPath:   current,
				MarkerType: MarkerManifest,
				GitRoot:    gitRoot,
			}, nil
		}

		if marker == MarkerAPMDir {
			if bestCandidate == nil || marker.Priority() > bestCandidate.MarkerType.Priority() {
				bestCandidate = &Context{RootPath: current, MarkerType: marker}
			}
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	if bestCandidate != nil {
		bestCandidate.GitRoot = gitRoot
		return bestCandidate, nil
	}

	if gitRoot != "" {
		return &Context{RootPath: gitRoot, MarkerType: MarkerGit, GitRoot: gitRoot}, nil
	}

	return &Context{RootPath: absPath, MarkerType: MarkerNone}, nil
}

// findMarkerAt checks for project markers at the given directory.
// Returns the highest priority marker found, or MarkerNone if none found.
// Uses stat-only checks for performance (read-only, no file creation).
func (d *detector) findMarkerAt(dir string) MarkerType {
	for _, m := range markerFiles {
		path := filepath.Join(dir, m.name)
		if exists, _ := d.exists(path); exists {
			return m.markerType
		}
	}
	return MarkerNone
}

// exists checks if a file or directory exists using stat only.
func (d *detector) exists(path string) (bool, error) {
	_, err := d.fs.Stat(path)
	return err == nil, nil
}
