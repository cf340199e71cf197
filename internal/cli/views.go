package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/roach88/actsync/internal/activity"
	"github.com/roach88/actsync/internal/store"
)

// changeView is the printable form of a store.Change.
type changeView struct {
	ActionID     string `json:"action_id,omitempty"`
	Site         int64  `json:"site"`
	Cause        string `json:"cause"`
	RowsAffected int    `json:"rows_affected"`
	CanLoadMore  bool   `json:"can_load_more"`
	RewindID     string `json:"rewind_id,omitempty"`
	RestoreID    int64  `json:"restore_id,omitempty"`
	Error        string `json:"error,omitempty"`
}

func newChangeView(c store.Change) changeView {
	v := changeView{
		ActionID:     c.ActionID,
		Site:         c.Site.ID,
		Cause:        c.Cause.String(),
		RowsAffected: c.RowsAffected,
		CanLoadMore:  c.CanLoadMore,
		RewindID:     c.RewindID,
		RestoreID:    c.RestoreID,
	}
	if c.Err != nil {
		v.Error = c.Err.Error()
	}
	return v
}

func (v changeView) renderText(w io.Writer) {
	site := activity.Site{ID: v.Site}
	if v.Error != "" {
		fmt.Fprintf(w, "%s %s %s\n", site, v.Cause, color.RedString("failed"))
		return
	}

	switch {
	case v.RestoreID != 0:
		fmt.Fprintf(w, "%s %s %s: restore %d started\n", site, v.Cause, v.RewindID, v.RestoreID)
	case v.Cause == "FETCH_ACTIVITIES":
		more := "no more pages"
		if v.CanLoadMore {
			more = color.CyanString("more available")
		}
		fmt.Fprintf(w, "%s %s: %s, %s\n", site, v.Cause, rowsChanged(v.RowsAffected), more)
	default:
		fmt.Fprintf(w, "%s %s: %s\n", site, v.Cause, rowsChanged(v.RowsAffected))
	}
}

func rowsChanged(n int) string {
	if n == 1 {
		return color.GreenString("1 row changed")
	}
	return color.GreenString("%d rows changed", n)
}

// syncView summarises a sync run.
type syncView struct {
	Site    int64        `json:"site"`
	Pages   []changeView `json:"pages"`
	Entries int          `json:"entries"`
}

func (v syncView) renderText(w io.Writer) {
	for _, p := range v.Pages {
		p.renderText(w)
	}
	fmt.Fprintf(w, "%s synced: %d entries cached\n", activity.Site{ID: v.Site}, v.Entries)
}

// entryListView is the list command's output.
type entryListView struct {
	Site    int64               `json:"site"`
	Entries []activity.LogEntry `json:"entries"`
}

func (v entryListView) renderText(w io.Writer) {
	if len(v.Entries) == 0 {
		fmt.Fprintf(w, "no entries cached for %s\n", activity.Site{ID: v.Site})
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PUBLISHED\tACTIVITY\tNAME\tREWIND\tSUMMARY")
	for _, e := range v.Entries {
		rewind := "-"
		if e.RewindID != "" {
			rewind = e.RewindID
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			formatTime(e.Published), e.ActivityID, orDash(e.Name), rewind, e.Summary)
	}
	tw.Flush()
}

// entryView is the show command's output.
type entryView struct {
	activity.LogEntry
}

func (v entryView) renderText(w io.Writer) {
	e := v.LogEntry
	label := color.New(color.Bold)
	field := func(name, value string) {
		if value == "" {
			return
		}
		label.Fprintf(w, "%-11s", name+":")
		fmt.Fprintf(w, " %s\n", value)
	}

	field("Activity", e.ActivityID)
	field("Published", formatTime(e.Published))
	field("Summary", e.Summary)
	field("Text", e.Text)
	field("Name", e.Name)
	field("Type", e.Type)
	field("Gridicon", e.Gridicon)
	field("Status", e.Status)
	field("Rewind ID", e.RewindID)
	if e.Rewindable != nil {
		field("Rewindable", fmt.Sprint(*e.Rewindable))
	}
	if e.Discarded != nil {
		field("Discarded", fmt.Sprint(*e.Discarded))
	}
	if e.Actor != nil {
		actor := e.Actor.Name
		if e.Actor.Role != "" {
			actor += " (" + e.Actor.Role + ")"
		}
		field("Actor", actor)
	}
}

// statusView is the status command's output. Status is nil when nothing is
// cached for the site.
type statusView struct {
	Site    int64                  `json:"site"`
	Status  *activity.RewindStatus `json:"status"`
	Entries int                    `json:"entries"`
}

func (v statusView) renderText(w io.Writer) {
	site := activity.Site{ID: v.Site}
	fmt.Fprintf(w, "%s: %d entries cached\n", site, v.Entries)
	if v.Status == nil {
		fmt.Fprintln(w, "rewind: no status cached")
		return
	}

	st := v.Status
	state := string(st.State)
	if st.State == activity.RewindStateActive {
		state = color.GreenString(state)
	} else {
		state = color.YellowString(state)
	}
	fmt.Fprintf(w, "rewind: %s (updated %s)\n", state, formatTime(st.LastUpdated))
	if st.Reason != "" {
		fmt.Fprintf(w, "reason: %s\n", st.Reason)
	}
	if r := st.Restore; r != nil {
		fmt.Fprintf(w, "restore: %d to %s, %s %d%%\n", r.RestoreID, r.RewindID, r.Status, r.Progress)
		if r.Reason != "" {
			fmt.Fprintf(w, "restore reason: %s\n", r.Reason)
		}
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
