package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rileyhilliard/rdeploy/internal/errors"
	"github.com/rileyhilliard/rdeploy/internal/logger"
	"github.com/spf13/cobra"
)

// Global flags
var (
	noColor bool
	verbose bool
)

var deployFlags DeployFlags

// rootCmd deploys the current directory using ./config.yaml.
var rootCmd = &cobra.Command{
	Use:   "rdeploy",
	Short: "Build locally, sync to a server, run the deploy command there",
	Long: `rdeploy deploys the current directory to a remote host.

It reads config.yaml from the working directory, runs each pre_command
locally, mirrors the directory to target_username@target_host:~/target_location
with rsync --delete, then logs in over SSH and runs target_command inside
target_location.

Example config.yaml:
  pre_command:
    - make build
  target_username: deploy
  target_host: example.com
  target_location: app
  target_command: ./restart.sh

Examples:
  rdeploy
  rdeploy --timeout 10m
  rdeploy --split shell --ignore-sync-failure`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetVerbose(verbose)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return deployCommand(cmd.Context(), deployFlags)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug output")
	AddDeployFlags(rootCmd, &deployFlags)
}

// Execute runs the root command. Interrupts cancel the running phase;
// any error is printed to stderr and the process exits 1.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		// A bare exit error means the command already reported the problem.
		if _, silent := err.(*errors.ExitError); !silent {
			fmt.Fprint(os.Stderr, formatError(err))
		}
		os.Exit(1)
	}
}

// formatError renders err with a trailing newline. Structured errors
// already end in one; cobra's usage errors don't.
func formatError(err error) string {
	msg := err.Error()
	if len(msg) == 0 || msg[len(msg)-1] != '\n' {
		msg += "\n"
	}
	return msg
}

// Root returns the root command, for documentation and completion tooling.
func Root() *cobra.Command {
	return rootCmd
}
