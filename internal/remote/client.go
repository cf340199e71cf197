// Package remote is the HTTP client for the activity log REST API.
//
// Responses are validated at this boundary: a page or status that reaches
// the store is complete, and every failure is already one of the typed
// errors in package activity.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/roach88/actsync/internal/activity"
)

// DefaultTimeout applies when no http.Client is supplied.
const DefaultTimeout = 30 * time.Second

// maxBody caps how much of a response body is read.
const maxBody = 8 << 20

// Client talks to the activity log REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: d}
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "remote")
	return c
}

// response is a fully read HTTP response.
type response struct {
	status int
	body   []byte
}

func (r response) ok() bool {
	return r.status >= 200 && r.status < 300
}

func (r response) unauthorized() bool {
	return r.status == http.StatusUnauthorized || r.status == http.StatusForbidden
}

func (r response) describe() string {
	snippet := truncate(strings.TrimSpace(string(r.body)), maxSnippet)
	if snippet == "" {
		return fmt.Sprintf("HTTP %d", r.status)
	}
	return fmt.Sprintf("HTTP %d: %s", r.status, snippet)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values) (response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return response{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return response{}, fmt.Errorf("read body: %w", err)
	}

	c.logger.Debug("request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)
	return response{status: resp.StatusCode, body: body}, nil
}

// FetchActivities requests one window of number entries starting at offset.
// The API pages by page number, so offset is rounded down to a multiple of
// number.
func (c *Client) FetchActivities(ctx context.Context, site activity.Site, number, offset int) (activity.Page, error) {
	if number <= 0 {
		return activity.Page{}, &activity.FetchError{
			Kind:    activity.FetchGeneric,
			Message: fmt.Sprintf("page size must be positive, got %d", number),
		}
	}

	query := url.Values{}
	query.Set("number", fmt.Sprint(number))
	query.Set("page", fmt.Sprint(offset/number+1))

	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/sites/%d/activity", site.ID), query)
	if err != nil {
		return activity.Page{}, &activity.FetchError{Kind: activity.FetchGeneric, Message: err.Error()}
	}
	switch {
	case resp.unauthorized():
		return activity.Page{}, &activity.FetchError{Kind: activity.FetchAuthorizationRequired, Message: resp.describe()}
	case !resp.ok():
		return activity.Page{}, &activity.FetchError{Kind: activity.FetchGeneric, Message: resp.describe()}
	}

	var wire activityResponse
	if err := json.Unmarshal(resp.body, &wire); err != nil {
		return activity.Page{}, &activity.FetchError{Kind: activity.FetchInvalidResponse, Message: err.Error()}
	}
	if wire.TotalItems == nil {
		return activity.Page{}, &activity.FetchError{Kind: activity.FetchInvalidResponse, Message: "totalItems missing"}
	}

	page := activity.Page{TotalItems: *wire.TotalItems, Entries: []activity.LogEntry{}}
	if wire.Current == nil {
		return page, nil
	}
	for i, item := range wire.Current.OrderedItems {
		entry, ferr := item.toEntry()
		if ferr != nil {
			ferr.Message = fmt.Sprintf("item %d: %s", i, ferr.Message)
			return activity.Page{}, ferr
		}
		page.Entries = append(page.Entries, entry)
	}
	return page, nil
}

func (item activityItem) toEntry() (activity.LogEntry, *activity.FetchError) {
	if item.ActivityID == nil || *item.ActivityID == "" {
		return activity.LogEntry{}, &activity.FetchError{Kind: activity.FetchMissingActivityID, Message: "activity_id missing"}
	}
	id := *item.ActivityID
	if item.Summary == nil {
		return activity.LogEntry{}, &activity.FetchError{Kind: activity.FetchMissingSummary, Message: id}
	}
	if item.Content == nil || item.Content.Text == nil {
		return activity.LogEntry{}, &activity.FetchError{Kind: activity.FetchMissingContentText, Message: id}
	}
	if item.Published == nil {
		return activity.LogEntry{}, &activity.FetchError{Kind: activity.FetchMissingPublishedDate, Message: id}
	}
	published, err := time.Parse(time.RFC3339, *item.Published)
	if err != nil {
		return activity.LogEntry{}, &activity.FetchError{
			Kind:    activity.FetchMissingPublishedDate,
			Message: fmt.Sprintf("%s: %v", id, err),
		}
	}

	entry := activity.LogEntry{
		ActivityID: id,
		Summary:    *item.Summary,
		Text:       *item.Content.Text,
		Name:       item.Name,
		Type:       item.Type,
		Gridicon:   item.Gridicon,
		Status:     item.Status,
		Rewindable: item.IsRewindable,
		RewindID:   item.RewindID,
		Published:  published.UTC(),
		Discarded:  item.IsDiscarded,
	}
	if a := item.Actor; a != nil {
		entry.Actor = &activity.Actor{
			Type:           a.Type,
			Name:           a.Name,
			ExternalUserID: a.ExternalUserID,
			WPComUserID:    a.WPComUserID,
			Role:           a.Role,
		}
		if a.Icon != nil {
			entry.Actor.AvatarURL = a.Icon.URL
		}
	}
	return entry, nil
}

// FetchRewindStatus returns the site's rewind status. A 204 or a null body
// means the remote has no status for the site and yields (nil, nil).
func (c *Client) FetchRewindStatus(ctx context.Context, site activity.Site) (*activity.RewindStatus, error) {
	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/sites/%d/rewind", site.ID), nil)
	if err != nil {
		return nil, &activity.RewindStatusError{Kind: activity.RewindStatusGeneric, Message: err.Error()}
	}
	switch {
	case resp.unauthorized():
		return nil, &activity.RewindStatusError{Kind: activity.RewindStatusAuthorizationRequired, Message: resp.describe()}
	case !resp.ok():
		return nil, &activity.RewindStatusError{Kind: activity.RewindStatusGeneric, Message: resp.describe()}
	case resp.status == http.StatusNoContent || len(strings.TrimSpace(string(resp.body))) == 0 || isJSONNull(resp.body):
		return nil, nil
	}

	var wire rewindStatusResponse
	if err := json.Unmarshal(resp.body, &wire); err != nil {
		return nil, &activity.RewindStatusError{Kind: activity.RewindStatusInvalidResponse, Message: err.Error()}
	}
	status, serr := wire.toStatus()
	if serr != nil {
		return nil, serr
	}
	return status, nil
}

func (wire rewindStatusResponse) toStatus() (*activity.RewindStatus, *activity.RewindStatusError) {
	if wire.State == nil {
		return nil, &activity.RewindStatusError{Kind: activity.RewindStatusInvalidState, Message: "state missing"}
	}
	state, err := activity.ParseRewindState(*wire.State)
	if err != nil {
		return nil, &activity.RewindStatusError{Kind: activity.RewindStatusInvalidState, Message: err.Error()}
	}

	status := &activity.RewindStatus{State: state, Reason: wire.Reason}
	if wire.LastUpdated != "" {
		t, err := time.Parse(time.RFC3339, wire.LastUpdated)
		if err != nil {
			return nil, &activity.RewindStatusError{
				Kind:    activity.RewindStatusInvalidResponse,
				Message: fmt.Sprintf("last_updated: %v", err),
			}
		}
		status.LastUpdated = t.UTC()
	}

	if r := wire.Rewind; r != nil {
		if r.RewindID == "" {
			return nil, &activity.RewindStatusError{Kind: activity.RewindStatusMissingRewindID, Message: "rewind.rewind_id missing"}
		}
		if r.RestoreID == nil {
			return nil, &activity.RewindStatusError{Kind: activity.RewindStatusMissingRestoreID, Message: "rewind.restore_id missing"}
		}
		restoreStatus, err := activity.ParseRestoreStatus(r.Status)
		if err != nil {
			return nil, &activity.RewindStatusError{Kind: activity.RewindStatusInvalidResponse, Message: err.Error()}
		}
		status.Restore = &activity.Restore{
			RewindID:  r.RewindID,
			RestoreID: *r.RestoreID,
			Status:    restoreStatus,
			Progress:  r.Progress,
			Reason:    r.Reason,
		}
	}
	return status, nil
}

// Rewind starts a restore of the site to rewindID and returns the restore
// job's ID.
func (c *Client) Rewind(ctx context.Context, site activity.Site, rewindID string) (int64, error) {
	if rewindID == "" {
		return 0, &activity.RewindError{Kind: activity.RewindGeneric, Message: "rewind id is empty"}
	}

	path := fmt.Sprintf("/activity-log/%d/rewind/to/%s", site.ID, url.PathEscape(rewindID))
	resp, err := c.do(ctx, http.MethodPost, path, nil)
	if err != nil {
		return 0, &activity.RewindError{Kind: activity.RewindGeneric, Message: err.Error()}
	}
	switch {
	case resp.unauthorized():
		return 0, &activity.RewindError{Kind: activity.RewindAuthorizationRequired, Message: resp.describe()}
	case !resp.ok():
		return 0, &activity.RewindError{Kind: activity.RewindGeneric, Message: resp.describe()}
	}

	var wire rewindResponse
	if err := json.Unmarshal(resp.body, &wire); err != nil {
		return 0, &activity.RewindError{Kind: activity.RewindInvalidResponse, Message: err.Error()}
	}
	if wire.OK == nil {
		return 0, &activity.RewindError{Kind: activity.RewindInvalidResponse, Message: "ok missing"}
	}
	if !*wire.OK {
		return 0, &activity.RewindError{Kind: activity.RewindAPIError, Message: wire.Error}
	}
	if wire.RestoreID == nil {
		return 0, &activity.RewindError{Kind: activity.RewindMissingState, Message: "restore_id missing"}
	}
	return *wire.RestoreID, nil
}

// maxSnippet caps how many bytes of a body go into an error message.
const maxSnippet = 200

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
