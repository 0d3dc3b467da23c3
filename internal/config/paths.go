// Package config resolves well-known filesystem locations used by apm: the
// global per-user configuration directory, the detected project root, and
// project-relative paths derived from it (the local dependency store, the
// project manifest, the constitution file).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/apm-run/apm/internal/project"
	"github.com/spf13/viper"
)

// Errors returned by the project-context accessors.
var (
	ErrProjectContextNotSet = errors.New("project context not initialized: call SetProjectContext or DetectAndSetProjectContext first")
)

var (
	projectContext   *project.Context
	projectContextMu sync.RWMutex
)

// GetGlobalConfigDir returns the path to the global, per-user configuration
// directory (~/.apm). It is a variable so tests can override it.
var GetGlobalConfigDir = func() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".apm"), nil
}

// LoadGlobalConfig reads ~/.apm/config.yaml into the package-level Viper
// instance, following the teacher's own writer.go pattern of pointing a
// Viper instance at an explicit config file with SetConfigFile +
// ReadInConfig. A missing file is not an error — global config is optional,
// and every key it can set (currently "modules.path") has a filesystem
// default. Called once from the CLI's PersistentPreRunE before any path
// helper runs, so GetModulesPath's viper.GetString("modules.path") lookup
// reflects the file (overridable in turn by the --modules-path flag, which
// the CLI binds over it with viper.BindPFlag).
func LoadGlobalConfig() error {
	dir, err := GetGlobalConfigDir()
	if err != nil {
		return err
	}
	viper.SetConfigFile(filepath.Join(dir, "config.yaml"))
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read global config: %w", err)
	}
	return nil
}

// SetProjectContext sets the detected project context for use by every
// path helper in this package. Returns an error instead of panicking so
// callers in command Run functions can surface a clean CLI error.
func SetProjectContext(ctx *project.Context) error {
	if ctx == nil {
		return errors.New("SetProjectContext called with nil context")
	}
	projectContextMu.Lock()
	defer projectContextMu.Unlock()
	projectContext = ctx
	return nil
}

// ClearProjectContext resets the project context. Intended for tests.
func ClearProjectContext() {
	projectContextMu.Lock()
	defer projectContextMu.Unlock()
	projectContext = nil
}

// GetProjectContext returns the detected project context, or nil if unset.
func GetProjectContext() *project.Context {
	projectContextMu.RLock()
	defer projectContextMu.RUnlock()
	return projectContext
}

// GetProjectContextOrError returns the detected project context, or
// ErrProjectContextNotSet if none has been set.
func GetProjectContextOrError() (*project.Context, error) {
	ctx := GetProjectContext()
	if ctx == nil {
		return nil, ErrProjectContextNotSet
	}
	return ctx, nil
}

// DetectAndSetProjectContext detects the project root from the current
// working directory and sets it, unless a context has already been set.
func DetectAndSetProjectContext() (*project.Context, error) {
	if ctx := GetProjectContext(); ctx != nil {
		return ctx, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}

	ctx, err := project.Detect(cwd)
	if err != nil {
		return nil, fmt.Errorf("detect project root: %w", err)
	}

	if err := SetProjectContext(ctx); err != nil {
		return nil, err
	}
	return ctx, nil
}

// GetProjectRoot returns the detected project root path.
func GetProjectRoot() (string, error) {
	ctx, err := GetProjectContextOrError()
	if err != nil {
		return "", err
	}
	if ctx.RootPath == "" {
		return "", fmt.Errorf("project context has empty RootPath")
	}
	return ctx.RootPath, nil
}

// MustGetProjectRoot returns the project root or panics. Only call where the
// project root is guaranteed to have been detected already (e.g. deep in a
// command's Run function, after PersistentPreRunE has set the context).
func MustGetProjectRoot() string {
	root, err := GetProjectRoot()
	if err != nil {
		panic(err)
	}
	return root
}

// GetModulesPath returns the directory dependencies are downloaded into
// (apm_modules/ at the project root), honoring an explicit "modules.path"
// override bound in Viper: the --modules-path flag, the APM_MODULES_PATH
// env var, or the "modules.path" key in ~/.apm/config.yaml, in that
// precedence order (see LoadGlobalConfig).
func GetModulesPath() (string, error) {
	if path := viper.GetString("modules.path"); path != "" {
		return path, nil
	}
	root, err := GetProjectRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "apm_modules"), nil
}

// GetManifestPath returns the path to the project's apm.yml.
func GetManifestPath() (string, error) {
	root, err := GetProjectRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "apm.yml"), nil
}

// GetAPMDir returns the project-local .apm directory, which holds the
// project's own primitive sources.
func GetAPMDir() (string, error) {
	root, err := GetProjectRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, ".apm"), nil
}

// GetConstitutionPath returns the path to the project's constitution file,
// whose content feeds the compiler's drift-detection hash.
func GetConstitutionPath() (string, error) {
	root, err := GetProjectRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, ".specify", "memory", "constitution.md"), nil
}
