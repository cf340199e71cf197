package cli

import (
	"github.com/spf13/cobra"
)

// NewRewindStateCommand creates the rewind-state command.
func NewRewindStateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rewind-state <site>",
		Short: "Refresh a site's cached rewind status",
		Long: `Fetch the site's rewind status from the remote and replace the cached one.

Example:
  actsync rewind-state 123`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRewindState(cmd, rootOpts, args[0])
		},
	}
	return cmd
}

func runRewindState(cmd *cobra.Command, opts *RootOptions, siteArg string) error {
	site, err := parseSite(siteArg)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd)
	defer stop()

	rt, err := openRuntime(ctx, opts, cmd, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	c, err := dispatchAndWait(ctx, rt.store, func() (string, error) {
		return rt.store.FetchRewindState(site)
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "rewind-state did not complete", err)
	}
	return reportChange(newFormatter(cmd, opts), c)
}

// NewRewindCommand creates the rewind command.
func NewRewindCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rewind <site> <rewind-id>",
		Short: "Restore a site to a rewind point",
		Long: `Ask the remote to restore the site to the given rewind point and print
the restore ID it started. The cache is not changed; run rewind-state to
follow the restore.

Example:
  actsync rewind 123 1700000000.123`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRewind(cmd, rootOpts, args[0], args[1])
		},
	}
	return cmd
}

func runRewind(cmd *cobra.Command, opts *RootOptions, siteArg, rewindID string) error {
	site, err := parseSite(siteArg)
	if err != nil {
		return err
	}
	if rewindID == "" {
		return NewExitError(ExitCommandError, "rewind id must not be empty")
	}
	ctx, stop := signalContext(cmd)
	defer stop()

	rt, err := openRuntime(ctx, opts, cmd, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	c, err := dispatchAndWait(ctx, rt.store, func() (string, error) {
		return rt.store.Rewind(site, rewindID)
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "rewind did not complete", err)
	}
	return reportChange(newFormatter(cmd, opts), c)
}
