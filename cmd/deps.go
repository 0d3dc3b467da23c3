package cmd

import (
	"fmt"
	"os"

	"github.com/apm-run/apm/internal/config"
	"github.com/apm-run/apm/internal/dependency"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var depsCmd = &cobra.Command{
	Use:   "deps",
	Short: "List installed dependencies with per-package file counts",
	RunE:  runDeps,
}

func init() {
	rootCmd.AddCommand(depsCmd)
}

func runDeps(cmd *cobra.Command, args []string) error {
	if _, err := config.DetectAndSetProjectContext(); err != nil {
		return fmt.Errorf("detect project: %w", err)
	}

	manifestPath, err := config.GetManifestPath()
	if err != nil {
		return err
	}
	fs := afero.NewOsFs()
	pkg, err := dependency.LoadManifest(fs, manifestPath)
	if err != nil {
		return fmt.Errorf("load apm.yml: %w", err)
	}

	if len(pkg.Dependencies) == 0 {
		fmt.Fprintln(os.Stdout, "no dependencies declared in apm.yml")
		return nil
	}

	modulesRoot, err := config.GetModulesPath()
	if err != nil {
		return err
	}
	resolver := dependency.NewResolver(dependency.NewDownloader(modulesRoot))
	graph, _, _, err := resolver.Resolve(pkg)
	if err != nil {
		return fmt.Errorf("resolve dependencies: %w", err)
	}

	if len(graph.Nodes) == 0 {
		fmt.Fprintln(os.Stdout, "no dependencies resolved")
		return nil
	}

	for _, node := range graph.Nodes {
		count, err := countFiles(fs, node.InstallPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not count files in %s: %v\n", node.InstallPath, err)
			continue
		}
		fmt.Fprintf(os.Stdout, "%s\t%s\t%d file(s)\n", node.Reference.DisplayName(), node.InstallPath, count)
	}
	return nil
}

// countFiles returns the number of regular files under root, walked
// recursively. Used to give the deps listing a sense of package size
// without parsing primitive content.
func countFiles(fs afero.Fs, root string) (int, error) {
	count := 0
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			count++
		}
		return nil
	})
	return count, err
}
