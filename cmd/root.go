package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/apm-run/apm/internal/config"
	"github.com/apm-run/apm/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is the application version, set via ldflags at build time:
// -ldflags "-X github.com/apm-run/apm/cmd.version=1.0.0". Defaults to
// "dev" for local builds.
var version = "dev"

var verbose bool
var modulesPath string

// rootCmd is the base command when apm is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "apm",
	Short: "apm - Agent Primitives Compiler and Package Manager",
	Long: `apm discovers agent primitives (chatmodes, instructions, context, memory)
across a project and its declared dependencies, resolves conflicts, optimizes
where compiled output is placed in the directory tree, and compiles it all
into AGENTS.md files your coding agent actually reads.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadGlobalConfig(); err != nil {
			return err
		}
		logger.SetVersion(version)
		if len(os.Args) > 1 {
			logger.SetCommand(strings.Join(os.Args[1:], " "))
		}
		logger.SetVerbose(verbose)
		if dir, err := config.GetGlobalConfigDir(); err == nil {
			logger.SetBasePath(dir)
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			_ = cmd.Help()
			os.Exit(0)
		}
	},
}

// Execute adds all child commands to rootCmd and runs it. Called once by
// main.main().
func Execute() {
	defer logger.HandlePanic()

	rootCmd.SuggestionsMinimumDistance = 2
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug-level logging")
	rootCmd.PersistentFlags().StringVar(&modulesPath, "modules-path", "", "override where dependencies are installed (default: apm_modules/ at the project root)")
	_ = viper.BindPFlag("modules.path", rootCmd.PersistentFlags().Lookup("modules-path"))
	_ = viper.BindEnv("modules.path", "APM_MODULES_PATH")

	if err := rootCmd.Execute(); err != nil {
		if strings.Contains(err.Error(), "unknown command") {
			fmt.Fprintln(os.Stderr, "\nrun 'apm --help' to see the available commands")
		}
		os.Exit(1)
	}
}
