package cli

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/actsync/internal/action"
	"github.com/roach88/actsync/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Database   string // overrides database.path when set

	// Remote overrides the HTTP client built from remote.base_url (for testing).
	Remote store.RemoteSource
	// IDGenerator overrides the UUIDv7 action ID generator (for testing).
	IDGenerator action.IDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the actsync CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "actsync",
		Short: "actsync - activity log sync",
		Long: `Keeps a local cache of a site's activity log and rewind status in step
with the remote API, and triggers restores to a rewind point.

Commands that talk to the remote print the change they produced. Commands
that only read the cache never touch the network.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite cache (overrides database.path)")

	cmd.AddCommand(NewFetchCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewRewindStateCommand(opts))
	cmd.AddCommand(NewRewindCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))

	return cmd
}

// Execute runs the CLI with args and returns the process exit code.
// Outcome failures have already been reported on stdout by the command;
// every other error is printed to stderr.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	code := GetExitCode(err)
	if err != nil && code != ExitFailure {
		formatter := &OutputFormatter{Format: "text", Writer: stderr}
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
	}
	return code
}
