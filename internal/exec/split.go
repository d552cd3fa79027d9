package exec

import (
	"fmt"
	"strings"

	"github.com/mattn/go-shellwords"
	"github.com/rileyhilliard/rdeploy/internal/config"
)

// Splitter turns a pre-command line into a program and its arguments.
type Splitter func(cmd string) ([]string, error)

// SplitSpaces splits on every single space. There is no quoting or escaping:
// "echo 'a b'" yields ["echo", "'a", "b'"], and consecutive spaces produce
// empty arguments.
func SplitSpaces(cmd string) ([]string, error) {
	return strings.Split(cmd, " "), nil
}

// SplitShellWords tokenizes with POSIX shell quoting rules. Environment
// variables and backticks are left alone.
func SplitShellWords(cmd string) ([]string, error) {
	parser := shellwords.NewParser()
	parser.ParseEnv = false
	parser.ParseBacktick = false

	args, err := parser.Parse(cmd)
	if err != nil {
		return nil, fmt.Errorf("can't tokenize %q: %w", cmd, err)
	}
	return args, nil
}

// SplitterFor returns the splitter for a config split mode.
func SplitterFor(mode string) Splitter {
	if mode == config.SplitShell {
		return SplitShellWords
	}
	return SplitSpaces
}
