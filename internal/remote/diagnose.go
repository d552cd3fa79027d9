package remote

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rileyhilliard/rdeploy/internal/errors"
)

// shellMiss recognizes one way a shell or tool reports a missing executable.
type shellMiss struct {
	re *regexp.Regexp
	// shellOnly marks messages that only mean "missing" with exit status 127.
	shellOnly bool
}

var shellMisses = []shellMiss{
	{regexp.MustCompile(`(?i)bash: (\S+): command not found`), true},
	{regexp.MustCompile(`(?i)zsh: command not found: (\S+)`), true},
	{regexp.MustCompile(`(?i)sh: \d+: (\S+): not found`), true},
	{regexp.MustCompile(`(?i)-bash: (\S+): No such file or directory`), true},
	{regexp.MustCompile(`(?i)make: (\S+): No such file or directory`), false},
	{regexp.MustCompile(`(?i)/bin/sh: (\S+): not found`), false},
	{regexp.MustCompile(`(?i)env: ['‘]?([^\s'’]+)['’]?: No such file or directory`), false},
	{regexp.MustCompile(`(?i)(\S+): (?:command )?not found`), true},
}

// cdFailures match the shells' complaints about the "cd <location>" prefix.
var cdFailures = []*regexp.Regexp{
	regexp.MustCompile(`cd: can't cd to (\S+)`),
	regexp.MustCompile(`cd: (\S+): No such file or directory`),
	regexp.MustCompile(`cd: (\S+): Not a directory`),
	regexp.MustCompile(`cd: (\S+): Permission denied`),
}

// MissingExecutable reports whether stderr from a failed remote command says
// an executable couldn't be found, and which one. A 127 exit is always a miss,
// even when the name can't be recovered.
func MissingExecutable(stderr string, exitCode int) (string, bool) {
	for _, m := range shellMisses {
		if m.shellOnly && exitCode != 127 {
			continue
		}
		if match := m.re.FindStringSubmatch(stderr); match != nil {
			return match[1], true
		}
	}
	return "", exitCode == 127
}

// UnreachableLocation reports the directory named in a failed cd, if any.
func UnreachableLocation(stderr string) (string, bool) {
	for _, re := range cdFailures {
		if match := re.FindStringSubmatch(stderr); match != nil {
			return match[1], true
		}
	}
	return "", false
}

// diagnose turns a recognizable remote failure into a targeted error.
// Returns nil when nothing in stderr explains the exit.
func diagnose(location, cmd, stderr string, exitCode int) error {
	exit := errors.NewExitError(exitCode)

	if dir, ok := UnreachableLocation(stderr); ok && exitCode != 127 {
		return errors.WrapWithCode(exit, errors.ErrRemoteCommand,
			fmt.Sprintf("Couldn't enter %s on the remote", dir),
			fmt.Sprintf("target_location is resolved from the login directory. Check it exists:\n   ssh <user>@<host> \"ls -ld %s\"", location))
	}

	name, ok := MissingExecutable(stderr, exitCode)
	if !ok {
		return nil
	}
	if name == "" {
		name = executableOf(cmd)
	}

	return errors.WrapWithCode(exit, errors.ErrRemoteCommand,
		fmt.Sprintf("'%s' not found in PATH on remote", name),
		fmt.Sprintf(`The command runs in a non-interactive shell, which skips login-only profile files.

   Install '%s' on the remote, or check where it lives:
     ssh <user>@<host> "command -v %s"
   then use the absolute path in target_command.`, name, name))
}

// executableOf returns the program a "cd <dir> && <command>" line runs.
func executableOf(line string) string {
	if _, after, found := strings.Cut(line, " && "); found {
		line = after
	}
	if fields := strings.Fields(line); len(fields) > 0 {
		return fields[0]
	}
	return "command"
}
