package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/actsync/internal/activity"
	"github.com/roach88/actsync/internal/store"
)

// FetchOptions holds flags for the fetch command.
type FetchOptions struct {
	*RootOptions
	More bool
}

// NewFetchCommand creates the fetch command.
func NewFetchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FetchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fetch <site>",
		Short: "Fetch one page of a site's activity log",
		Long: `Fetch one page of activities for a site and reconcile it into the cache.

Without --more the first page is fetched and the site's cached entries are
replaced by it. With --more the page after the cached entries is appended.

Example:
  actsync fetch 123
  actsync fetch 123 --more --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.More, "more", false, "load the page after the cached entries")

	return cmd
}

func runFetch(cmd *cobra.Command, opts *FetchOptions, siteArg string) error {
	site, err := parseSite(siteArg)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(cmd)
	defer stop()

	rt, err := openRuntime(ctx, opts.RootOptions, cmd, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	c, err := dispatchAndWait(ctx, rt.store, func() (string, error) {
		return rt.store.FetchActivities(site, opts.More)
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "fetch did not complete", err)
	}
	return reportChange(newFormatter(cmd, opts.RootOptions), c)
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync <site>",
		Short: "Fetch a site's whole activity log",
		Long: `Fetch the first page of a site's activity log, then keep loading more
pages until the remote reports none are left.

Example:
  actsync sync 123`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, rootOpts, args[0])
		},
	}
	return cmd
}

func runSync(cmd *cobra.Command, opts *RootOptions, siteArg string) error {
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

	formatter := newFormatter(cmd, opts)
	view := syncView{Site: site.ID}
	loadMore := false
	cached := 0
	for {
		c, err := dispatchAndWait(ctx, rt.store, func() (string, error) {
			return rt.store.FetchActivities(site, loadMore)
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "sync did not complete", err)
		}
		view.Pages = append(view.Pages, newChangeView(c))
		formatter.VerboseLog("page %d: %d rows changed", len(view.Pages), c.RowsAffected)
		if c.Failed() {
			return reportChange(formatter, c)
		}

		n, err := rt.store.CountEntries(ctx, site)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to count cached entries", err)
		}
		if loadMore && n == cached && c.CanLoadMore {
			slog.Warn("remote reports more entries but the last page added none; stopping",
				"site", site.ID, "entries", n)
			c.CanLoadMore = false
		}
		cached = n
		if !c.CanLoadMore {
			break
		}
		loadMore = true
	}

	view.Entries = cached
	return formatter.Success(view)
}

// dispatchAndWait runs publish and returns the change its action produced.
// The subscription is taken before publishing so the change cannot be missed.
func dispatchAndWait(ctx context.Context, st *store.Store, publish func() (string, error)) (store.Change, error) {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	changes, _ := st.Subscribe(subCtx)
	actionID, err := publish()
	if err != nil {
		return store.Change{}, err
	}
	return awaitChange(ctx, changes, actionID)
}

// reportChange prints c and turns a failed outcome into ExitFailure.
func reportChange(f *OutputFormatter, c store.Change) error {
	v := newChangeView(c)
	if !c.Failed() {
		return f.Success(v)
	}
	if err := f.Error(activity.ErrorKind(c.Err), c.Err.Error(), v); err != nil {
		return err
	}
	return WrapExitError(ExitFailure, activity.Site{ID: v.Site}.String()+" "+v.Cause+" failed", c.Err)
}

func newFormatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
