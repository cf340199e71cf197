package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/actsync/internal/activity"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Desc bool
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list <site>",
		Short: "List a site's cached activity entries",
		Long: `List the cached entries of a site ordered by published time, oldest
first unless --desc is given. Reads the cache only.

Example:
  actsync list 123 --desc`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Desc, "desc", false, "newest entries first")

	return cmd
}

func runList(cmd *cobra.Command, opts *ListOptions, siteArg string) error {
	site, err := parseSite(siteArg)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd)
	defer stop()

	rt, err := openRuntime(ctx, opts.RootOptions, cmd, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	order := activity.Ascending
	if opts.Desc {
		order = activity.Descending
	}
	entries, err := rt.store.Entries(ctx, site, order)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read entries", err)
	}
	return newFormatter(cmd, opts.RootOptions).Success(entryListView{Site: site.ID, Entries: entries})
}

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	ActivityID string
	RewindID   string
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <site>",
		Short: "Show one cached entry",
		Long: `Show one cached entry, looked up by activity ID or by rewind ID.

Example:
  actsync show 123 --activity a1b2c3
  actsync show 123 --rewind 1700000000.123`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.ActivityID, "activity", "", "activity ID to look up")
	cmd.Flags().StringVar(&opts.RewindID, "rewind", "", "rewind ID to look up")
	cmd.MarkFlagsMutuallyExclusive("activity", "rewind")
	cmd.MarkFlagsOneRequired("activity", "rewind")

	return cmd
}

func runShow(cmd *cobra.Command, opts *ShowOptions, siteArg string) error {
	site, err := parseSite(siteArg)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd)
	defer stop()

	rt, err := openRuntime(ctx, opts.RootOptions, cmd, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	var entry *activity.LogEntry
	var key string
	if opts.ActivityID != "" {
		key = "activity " + opts.ActivityID
		entry, err = rt.store.EntryByActivityID(ctx, site, opts.ActivityID)
	} else {
		key = "rewind " + opts.RewindID
		entry, err = rt.store.EntryByRewindID(ctx, site, opts.RewindID)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read entry", err)
	}

	formatter := newFormatter(cmd, opts.RootOptions)
	if entry == nil {
		msg := fmt.Sprintf("no cached entry for %s in %s", key, site)
		if err := formatter.Error(ErrCodeNotFound, msg, nil); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}
	return formatter.Success(entryView{LogEntry: *entry})
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <site>",
		Short: "Show a site's cached rewind status and entry count",
		Long: `Show the cached rewind status and the number of cached entries for a site.
Reads the cache only; run rewind-state first to refresh it.

Example:
  actsync status 123`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, rootOpts, args[0])
		},
	}
	return cmd
}

func runStatus(cmd *cobra.Command, opts *RootOptions, siteArg string) error {
	site, err := parseSite(siteArg)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd)
	defer stop()

	rt, err := openRuntime(ctx, opts, cmd, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	status, err := rt.store.RewindStatus(ctx, site)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read rewind status", err)
	}
	n, err := rt.store.CountEntries(ctx, site)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count cached entries", err)
	}
	return newFormatter(cmd, opts).Success(statusView{Site: site.ID, Status: status, Entries: n})
}
