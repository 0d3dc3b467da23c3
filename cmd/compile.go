package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/apm-run/apm/internal/compiler"
	"github.com/apm-run/apm/internal/config"
	"github.com/apm-run/apm/internal/dependency"
	"github.com/apm-run/apm/internal/logger"
	"github.com/apm-run/apm/internal/optimizer"
	"github.com/apm-run/apm/internal/primitives"
	"github.com/apm-run/apm/internal/watch"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var (
	compileSingleAgents bool
	compileDryRun       bool
	compileChatmode     string
	compileOutput       string
	compileWatch        bool
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Discover, resolve, optimize, and compile agent primitives into AGENTS.md",
	Long: `compile runs the full pipeline: discover local and dependency primitives,
resolve the dependency graph, optimize where compiled output is placed, and
write the resulting AGENTS.md file(s).`,
	RunE: runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)
	compileCmd.Flags().BoolVar(&compileSingleAgents, "single-agents", false, "ignore placement and emit one AGENTS.md at the project root")
	compileCmd.Flags().BoolVar(&compileDryRun, "dry-run", false, "report what would be written without writing anything")
	compileCmd.Flags().StringVar(&compileChatmode, "chatmode", "", "name of the chatmode to embed in every compiled file")
	compileCmd.Flags().StringVar(&compileOutput, "output", "", "output filename (default AGENTS.md)")
	compileCmd.Flags().BoolVar(&compileWatch, "watch", false, "recompile automatically when primitives or the constitution change")
}

func runCompile(cmd *cobra.Command, args []string) error {
	projectCtx, err := config.DetectAndSetProjectContext()
	if err != nil {
		return fmt.Errorf("detect project: %w", err)
	}
	root := projectCtx.RootPath
	fs := afero.NewOsFs()

	if err := compileOnce(fs, root); err != nil {
		return err
	}
	if !compileWatch {
		return nil
	}
	return watchAndRecompile(fs, root)
}

// watchAndRecompile recompiles root on every primitive/constitution change
// until interrupted, per "apm compile --watch".
func watchAndRecompile(fs afero.Fs, root string) error {
	w, err := watch.New(root, func() error {
		fmt.Fprintln(os.Stdout, "change detected, recompiling...")
		return compileOnce(fs, root)
	}, func(err error) {
		logger.Std().WithError(err).Warn("watch")
	})
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stdout, "watching %s for changes (ctrl-c to stop)...\n", root)
	return w.Run(ctx)
}

// compileOnce runs the discover -> resolve -> optimize -> compile pipeline
// a single time and reports its results to stdout/stderr.
func compileOnce(fs afero.Fs, root string) error {
	manifestPath, err := config.GetManifestPath()
	if err != nil {
		return err
	}
	pkg, err := dependency.LoadManifest(fs, manifestPath)
	if err != nil {
		return fmt.Errorf("load apm.yml: %w", err)
	}

	modulesRoot, err := config.GetModulesPath()
	if err != nil {
		return err
	}
	resolver := dependency.NewResolver(dependency.NewDownloader(modulesRoot))
	graph, conflicts, cycles, err := resolver.Resolve(pkg)
	if err != nil {
		return fmt.Errorf("resolve dependencies: %w", err)
	}
	for _, c := range conflicts {
		fmt.Fprintf(os.Stderr, "warning: version conflict for %s: %s wins over %s (declared by %s)\n",
			c.RepoURL, c.Winner, c.Loser, c.ByParent)
	}
	for _, c := range cycles {
		fmt.Fprintf(os.Stderr, "warning: dependency cycle detected at %s (declared by %s)\n", c.RepoURL, c.ByParent)
	}

	scopes := []primitives.Scope{{RootPath: root, Source: "local"}}
	for _, node := range graph.Nodes {
		scopes = append(scopes, primitives.Scope{RootPath: node.InstallPath, Source: node.Reference.DisplayName()})
	}
	collection, diagnostics, err := primitives.Discover(fs, scopes)
	if err != nil {
		return fmt.Errorf("discover primitives: %w", err)
	}
	for _, d := range diagnostics {
		fmt.Fprintf(os.Stderr, "warning: %s: %s\n", d.Path, d.Reason)
	}

	tree, err := optimizer.BuildTree(fs, root)
	if err != nil {
		return fmt.Errorf("build directory tree: %w", err)
	}
	placement := optimizer.Optimize(tree, collection.Instructions)

	cfg := compiler.Config{CompilationConfig: effectiveCompilationConfig(pkg)}
	if compileChatmode != "" {
		cfg.Chatmode = compileChatmode
	}
	if compileOutput != "" {
		cfg.Output = compileOutput
	}
	if compileSingleAgents {
		cfg.Strategy = "single-file"
	}

	constitutionPath, err := config.GetConstitutionPath()
	if err == nil {
		if text, readErr := afero.ReadFile(fs, constitutionPath); readErr == nil {
			cfg.ConstitutionText = string(text)
		}
	}

	if compileDryRun {
		for _, dir := range placement.SortedDirs() {
			fmt.Fprintf(os.Stdout, "would write %d instruction(s) to %s/%s\n", len(placement[dir]), dir, cfg.OutputOrDefault())
		}
		return nil
	}

	result, err := compiler.Compile(fs, root, collection, placement, cfg)
	if err != nil {
		var writeErr *compiler.WriteError
		if errors.As(err, &writeErr) {
			return writeErr
		}
		return fmt.Errorf("compile: %w", err)
	}

	for _, warn := range result.LinkWarnings {
		fmt.Fprintf(os.Stderr, "warning: broken link %q in %s\n", warn.Link, warn.SourceDir)
	}
	for _, path := range result.WrittenPaths {
		fmt.Fprintf(os.Stdout, "wrote %s\n", path)
	}
	return nil
}

// effectiveCompilationConfig returns the manifest's compilation block, or a
// zero-value one so downstream default-resolution methods still apply.
func effectiveCompilationConfig(pkg *dependency.Package) *dependency.CompilationConfig {
	if pkg.Compilation != nil {
		return pkg.Compilation
	}
	return &dependency.CompilationConfig{}
}
