// Package cli implements the rdeploy command-line interface.
//
// The root command is the deployment itself. Running "rdeploy" with no
// arguments reads config.yaml from the working directory and runs the
// phases strictly in order:
//
//  1. Load and validate config
//  2. Run the local pre-commands
//  3. rsync the working directory to user@host:~/location
//  4. Log in over SSH, verify whoami, then run the target command
//
// Any error stops the sequence; Execute prints it to stderr and exits 1.
//
// # Command Structure
//
//	rdeploy             - Deploy using ./config.yaml
//	rdeploy init        - Create config.yaml
//	rdeploy doctor      - Run preflight checks
//	rdeploy version     - Print version information
//	rdeploy completion  - Generate shell completion scripts
//
// # Flag Handling
//
// Global flags (--no-color, --verbose) are defined as persistent flags on
// the root command. Deploy flags (--ignore-sync-failure, --split, --timeout)
// override the matching optional keys in config.yaml.
//
// Deploy takes its syncer and SSH dialer through DeployOptions, so tests
// run the full sequence against FakeSyncer and MockClient.
package cli
