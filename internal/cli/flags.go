package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/rileyhilliard/rdeploy/internal/config"
	"github.com/rileyhilliard/rdeploy/internal/errors"
	"github.com/rileyhilliard/rdeploy/internal/util"
	"github.com/spf13/cobra"
)

// DeployFlags holds the run-time overrides for a deployment.
type DeployFlags struct {
	IgnoreSyncFailure bool
	Split             string
	Timeout           string
}

// AddDeployFlags registers --ignore-sync-failure, --split and --timeout on a command.
func AddDeployFlags(cmd *cobra.Command, flags *DeployFlags) {
	cmd.Flags().BoolVar(&flags.IgnoreSyncFailure, "ignore-sync-failure", false,
		"report a failed rsync but still run the remote command")
	cmd.Flags().StringVar(&flags.Split, "split", "",
		"pre-command tokenizer: space (default) or shell")
	cmd.Flags().StringVar(&flags.Timeout, "timeout", "",
		"deadline for the whole deployment (e.g., 90s, 10m)")
}

// ParseTimeout parses a timeout flag into a duration.
// Returns zero duration if the flag is empty.
func ParseTimeout(flag string) (time.Duration, error) {
	if flag == "" {
		return 0, nil
	}

	duration, err := time.ParseDuration(flag)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrConfigParse,
			fmt.Sprintf("'%s' doesn't look like a valid timeout", flag),
			"Try something like 30s, 10m, or 1h.")
	}
	if duration < 0 {
		return 0, errors.New(errors.ErrConfigParse,
			fmt.Sprintf("Timeout can't be negative: %s", flag),
			"Use a positive duration, or leave --timeout off for no deadline.")
	}
	return duration, nil
}

// ValidateSplit checks a --split value. Empty means use the config file's setting.
func ValidateSplit(mode string) error {
	switch mode {
	case "", config.SplitSpace, config.SplitShell:
		return nil
	}
	modes := []string{config.SplitSpace, config.SplitShell}
	suggestion := fmt.Sprintf("Use one of: %s", strings.Join(modes, ", "))
	if similar := util.SuggestSimilar(mode, modes, 2); len(similar) > 0 {
		suggestion = fmt.Sprintf("Did you mean '%s'? %s", similar[0], suggestion)
	}
	return errors.New(errors.ErrConfigParse,
		fmt.Sprintf("Unknown split mode '%s'", mode),
		suggestion)
}
