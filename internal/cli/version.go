package cli

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
)

// buildInfo is stamped by main from ldflags.
type buildInfo struct {
	Version string
	Commit  string
	Date    string
}

var build = buildInfo{Version: "dev", Commit: "none", Date: "unknown"}

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the rdeploy version, the commit it was built from, and the toolchain.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		writeVersion(cmd.OutOrStdout(), versionShort)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "print only the version number")
}

func writeVersion(w io.Writer, short bool) {
	if short {
		fmt.Fprintln(w, build.Version)
		return
	}

	fmt.Fprintf(w, "rdeploy %s\n", formatVersion(build.Version))
	for _, row := range [][2]string{
		{"commit", build.Commit},
		{"built", build.Date},
		{"go", runtime.Version()},
		{"os/arch", runtime.GOOS + "/" + runtime.GOARCH},
	} {
		fmt.Fprintf(w, "%s: %s\n", row[0], row[1])
	}
}

// formatVersion adds the "v" tag prefix to release numbers.
func formatVersion(v string) string {
	if v == "" || v == "dev" || strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}

// moduleVersion is the version `go install` recorded, for binaries built
// without ldflags.
func moduleVersion() (string, bool) {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "", false
	}
	return info.Main.Version, true
}

// SetVersionInfo records what main was stamped with. An unstamped "dev"
// build falls back to the module version when there is one.
func SetVersionInfo(v, c, d string) {
	if v == "dev" {
		if mv, ok := moduleVersion(); ok {
			v = mv
		}
	}
	build = buildInfo{Version: v, Commit: c, Date: d}
	rootCmd.Version = formatVersion(v)
}

// GetVersion returns the version main was stamped with.
func GetVersion() string {
	return build.Version
}
