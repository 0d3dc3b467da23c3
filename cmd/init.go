package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/apm-run/apm/internal/dependency"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init [name]",
	Short: "Scaffold a new apm project",
	Long: `Creates apm.yml, the .apm/ primitive directories, and an empty
constitution document in the current directory (or a new directory named
after the given project name).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	name := "my-project"
	targetDir := "."
	if len(args) > 0 {
		name = args[0]
		targetDir = args[0]
	}

	fs := afero.NewOsFs()
	if err := fs.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("create project directory: %w", err)
	}

	manifestPath := filepath.Join(targetDir, "apm.yml")
	if exists, _ := afero.Exists(fs, manifestPath); exists {
		return fmt.Errorf("%s already exists", manifestPath)
	}

	pkg := &dependency.Package{
		Name:    name,
		Version: "0.1.0",
	}
	if err := dependency.WriteManifest(fs, manifestPath, pkg); err != nil {
		return fmt.Errorf("write apm.yml: %w", err)
	}

	for _, dir := range []string{"chatmodes", "instructions", "context", "memory"} {
		if err := fs.MkdirAll(filepath.Join(targetDir, ".apm", dir), 0o755); err != nil {
			return fmt.Errorf("create .apm/%s: %w", dir, err)
		}
	}

	constitutionPath := filepath.Join(targetDir, ".specify", "memory", "constitution.md")
	if err := fs.MkdirAll(filepath.Dir(constitutionPath), 0o755); err != nil {
		return fmt.Errorf("create constitution directory: %w", err)
	}
	if exists, _ := afero.Exists(fs, constitutionPath); !exists {
		if err := afero.WriteFile(fs, constitutionPath, []byte("# Constitution\n\n"), 0o644); err != nil {
			return fmt.Errorf("write constitution.md: %w", err)
		}
	}

	fmt.Fprintf(os.Stdout, "Initialized apm project %q in %s\n", name, targetDir)
	return nil
}
