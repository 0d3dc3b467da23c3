package project

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupFS creates an in-memory filesystem and the specified directory structure.
func setupFS(t *testing.T, dirs []string, files []string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()

	for _, dir := range dirs {
		require.NoError(t, fs.MkdirAll(dir, 0755), "failed to create dir: %s", dir)
	}
	for _, file := range files {
		require.NoError(t, afero.WriteFile(fs, file, []byte{}, 0644), "failed to create file: %s", file)
	}
	return fs
}

func TestDetect_StandardRepo(t *testing.T) {
	fs := setupFS(t,
		[]string{"/project/.git", "/project/src"},
		[]string{"/project/apm.yml", "/project/src/main.go"},
	)
	detector := NewDetector(fs)

	ctx, err := detector.Detect("/project")
	require.NoError(t, err)
	assert.Equal(t, "/project", ctx.RootPath)
	assert.Equal(t, MarkerManifest, ctx.MarkerType)
	assert.Equal(t, "/project", ctx.GitRoot)

	ctx, err = detector.Detect("/project/src")
	require.NoError(t, err)
	assert.Equal(t, "/project", ctx.RootPath)
	assert.Equal(t, MarkerManifest, ctx.MarkerType)
}

func TestDetect_ManifestWinsOverAPMDir(t *testing.T) {
	// Parent has .apm, child has apm.yml: child should win during bubble-up.
	fs := setupFS(t,
		[]string{"/parent/.git", "/parent/.apm", "/parent/child/.apm"},
		[]string{"/parent/child/apm.yml"},
	)
	detector := NewDetector(fs)

	ctx, err := detector.Detect("/parent/child")
	require.NoError(t, err)
	assert.Equal(t, "/parent/child", ctx.RootPath)
	assert.Equal(t, MarkerManifest, ctx.MarkerType)
	assert.Equal(t, "/parent", ctx.GitRoot)
}

func TestDetect_APMDirFallback(t *testing.T) {
	// No apm.yml anywhere, but a .apm directory exists below git root.
	fs := setupFS(t,
		[]string{"/repo/.git", "/repo/sub/.apm"},
		[]string{},
	)
	detector := NewDetector(fs)

	ctx, err := detector.Detect("/repo/sub")
	require.NoError(t, err)
	assert.Equal(t, "/repo/sub", ctx.RootPath)
	assert.Equal(t, MarkerAPMDir, ctx.MarkerType)
	assert.Equal(t, "/repo", ctx.GitRoot)
}

func TestDetect_GitRootFallback(t *testing.T) {
	fs := setupFS(t, []string{"/repo/.git", "/repo/src"}, []string{})
	detector := NewDetector(fs)

	ctx, err := detector.Detect("/repo/src")
	require.NoError(t, err)
	assert.Equal(t, "/repo", ctx.RootPath)
	assert.Equal(t, MarkerGit, ctx.MarkerType)
}

func TestDetect_NoMarkersFound(t *testing.T) {
	fs := setupFS(t, []string{"/scratch/work"}, []string{})
	detector := NewDetector(fs)

	ctx, err := detector.Detect("/scratch/work")
	require.NoError(t, err)
	assert.Equal(t, "/scratch/work", ctx.RootPath)
	assert.Equal(t, MarkerNone, ctx.MarkerType)
	assert.Empty(t, ctx.GitRoot)
}
