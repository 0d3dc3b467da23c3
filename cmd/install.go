package cmd

import (
	"fmt"
	"os"

	"github.com/apm-run/apm/internal/config"
	"github.com/apm-run/apm/internal/dependency"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Resolve and download every declared APM dependency into apm_modules/",
	RunE:  runInstall,
}

func init() {
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	ctx, err := config.DetectAndSetProjectContext()
	if err != nil {
		return fmt.Errorf("detect project: %w", err)
	}

	manifestPath, err := config.GetManifestPath()
	if err != nil {
		return err
	}
	pkg, err := dependency.LoadManifest(afero.NewOsFs(), manifestPath)
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
	graph, conflicts, cycles, err := resolver.Resolve(pkg)
	if err != nil {
		return fmt.Errorf("install dependencies: %w", err)
	}

	for _, c := range conflicts {
		fmt.Fprintf(os.Stderr, "warning: version conflict for %s: %s wins over %s (declared by %s)\n",
			c.RepoURL, c.Winner, c.Loser, c.ByParent)
	}
	for _, c := range cycles {
		fmt.Fprintf(os.Stderr, "warning: dependency cycle detected at %s (declared by %s)\n", c.RepoURL, c.ByParent)
	}
	for _, node := range graph.Nodes {
		fmt.Fprintf(os.Stdout, "installed %s -> %s\n", node.Reference.DisplayName(), node.InstallPath)
	}

	_ = ctx
	return nil
}
