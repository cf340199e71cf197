package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/actsync/internal/action"
	"github.com/roach88/actsync/internal/activity"
	"github.com/roach88/actsync/internal/testutil"
)

var site7 = activity.Site{ID: 7}

// cliEnv runs commands against one temp cache and a scripted remote.
type cliEnv struct {
	t      *testing.T
	remote *testutil.FakeRemote
	db     string
	config string
	ids    action.IDGenerator
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	return &cliEnv{
		t:      t,
		remote: testutil.NewFakeRemote(),
		db:     filepath.Join(t.TempDir(), "cache.db"),
	}
}

// withConfig writes content as the config file used by later runs.
func (e *cliEnv) withConfig(content string) *cliEnv {
	e.t.Helper()
	path := filepath.Join(e.t.TempDir(), "actsync.yaml")
	require.NoError(e.t, os.WriteFile(path, []byte(content), 0o600))
	e.config = path
	return e
}

// run executes one command line and returns stdout and the exit code.
func (e *cliEnv) run(args ...string) (string, int) {
	e.t.Helper()
	opts := &RootOptions{Remote: e.remote, IDGenerator: e.ids}
	cmd := newRootCommand(opts)

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	full := []string{"--db", e.db}
	if e.config != "" {
		full = append(full, "--config", e.config)
	}
	cmd.SetArgs(append(full, args...))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), GetExitCode(err)
}

func (e *cliEnv) runJSON(args ...string) (CLIResponse, int) {
	e.t.Helper()
	out, code := e.run(append([]string{"--format", "json"}, args...)...)
	var resp CLIResponse
	require.NoError(e.t, json.Unmarshal([]byte(out), &resp), out)
	return resp, code
}

func assertGoldenText(t *testing.T, name string, data []byte) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}

func TestGolden_CLISession(t *testing.T) {
	env := newCLIEnv(t).withConfig("store:\n  page_size: 2\n")

	log := testutil.Entries("a", 3)
	log[1].RewindID = "r-1"
	log[1].Rewindable = activity.Bool(true)
	log[1].Actor = &activity.Actor{Name: "Jane", Role: "administrator"}
	env.remote.SetLog(site7, log)
	env.remote.SetRewindStatus(site7, &activity.RewindStatus{
		State:       activity.RewindStateActive,
		LastUpdated: testutil.BaseTime.Add(time.Hour),
		Restore: &activity.Restore{
			RewindID:  "r-1",
			RestoreID: 54,
			Status:    activity.RestoreFinished,
			Progress:  100,
		},
	})
	env.remote.SetRestoreID(55)

	var transcript strings.Builder
	step := func(args ...string) {
		out, code := env.run(args...)
		fmt.Fprintf(&transcript, "$ actsync %s\n%s[exit %d]\n", strings.Join(args, " "), out, code)
	}

	step("status", "7")
	step("fetch", "7")
	step("fetch", "7", "--more")
	step("list", "7")
	step("list", "7", "--desc")
	step("show", "7", "--rewind", "r-1")
	step("rewind-state", "7")
	step("status", "7")
	step("rewind", "7", "r-1")
	step("show", "7", "--activity", "nope")
	env.remote.FailFetch(&activity.FetchError{Kind: activity.FetchAuthorizationRequired, Message: "token expired"})
	step("fetch", "7")

	assertGoldenText(t, "cli_session", []byte(transcript.String()))
}

func TestFetch_JSON(t *testing.T) {
	env := newCLIEnv(t)
	env.ids = action.NewFixedGenerator("cmd-1", "res-1")
	env.remote.SetLog(site7, testutil.Entries("a", 12))

	resp, code := env.runJSON("fetch", "7")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "ok", resp.Status)

	data := resp.Data.(map[string]any)
	assert.Equal(t, "cmd-1", data["action_id"])
	assert.Equal(t, float64(7), data["site"])
	assert.Equal(t, "FETCH_ACTIVITIES", data["cause"])
	assert.Equal(t, float64(10), data["rows_affected"])
	assert.Equal(t, true, data["can_load_more"])
	assert.NotContains(t, data, "error")
}

func TestFetch_JSONOutcomeError(t *testing.T) {
	env := newCLIEnv(t)
	env.remote.FailFetch(&activity.FetchError{Kind: activity.FetchInvalidResponse, Message: "bad body"})

	resp, code := env.runJSON("fetch", "7")
	assert.Equal(t, ExitFailure, code)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_RESPONSE", resp.Error.Code)
	assert.Equal(t, "fetch activities: INVALID_RESPONSE: bad body", resp.Error.Message)

	details := resp.Error.Details.(map[string]any)
	assert.Equal(t, true, details["can_load_more"])
	assert.Equal(t, float64(0), details["rows_affected"])
}

func TestFetch_MoreUsesCachedOffset(t *testing.T) {
	env := newCLIEnv(t)
	env.remote.SetLog(site7, testutil.Entries("a", 25))

	_, code := env.run("fetch", "7")
	require.Equal(t, ExitSuccess, code)
	_, code = env.run("fetch", "7", "--more")
	require.Equal(t, ExitSuccess, code)

	calls := env.remote.FetchCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, 0, calls[0].Offset)
	assert.Equal(t, 10, calls[1].Offset)
	assert.Equal(t, 10, calls[1].Number)
}

func TestSync_LoadsEveryPage(t *testing.T) {
	env := newCLIEnv(t)
	env.remote.SetLog(site7, testutil.Entries("a", 25))

	out, code := env.run("sync", "7")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, strings.Join([]string{
		"site:7 FETCH_ACTIVITIES: 10 rows changed, more available",
		"site:7 FETCH_ACTIVITIES: 10 rows changed, more available",
		"site:7 FETCH_ACTIVITIES: 5 rows changed, no more pages",
		"site:7 synced: 25 entries cached",
		"",
	}, "\n"), out)
	assert.Len(t, env.remote.FetchCalls(), 3)
}

func TestSync_StopsWhenPagesStopGrowing(t *testing.T) {
	env := newCLIEnv(t)
	env.remote.SetLog(site7, testutil.Entries("a", 12))
	env.remote.SetTotal(site7, 100)

	resp, code := env.runJSON("sync", "7")
	require.Equal(t, ExitSuccess, code)

	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(12), data["entries"])
	assert.Len(t, data["pages"], 3)
	assert.Len(t, env.remote.FetchCalls(), 3)
}

func TestSync_FailureStopsAndExitsOne(t *testing.T) {
	env := newCLIEnv(t)
	env.remote.FailFetch(&activity.FetchError{Kind: activity.FetchGeneric, Message: "connection reset"})

	out, code := env.run("sync", "7")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, out, "Error [GENERIC_ERROR]: fetch activities: GENERIC_ERROR: connection reset")
	assert.Len(t, env.remote.FetchCalls(), 1)
}

func TestRewind_APIError(t *testing.T) {
	env := newCLIEnv(t)
	env.remote.FailRewind(&activity.RewindError{Kind: activity.RewindAPIError, Message: "busy"})

	resp, code := env.runJSON("rewind", "7", "r-9")
	assert.Equal(t, ExitFailure, code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "API_ERROR", resp.Error.Code)
	assert.Equal(t, []string{"r-9"}, env.remote.RewindCalls())
}

func TestRewindState_NothingReported(t *testing.T) {
	env := newCLIEnv(t)

	out, code := env.run("rewind-state", "7")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "site:7 FETCH_REWIND_STATE: 0 rows changed\n", out)
}

func TestReadCommands_NeverCallRemote(t *testing.T) {
	env := newCLIEnv(t)
	env.remote.SetLog(site7, testutil.Entries("a", 3))

	for _, args := range [][]string{
		{"list", "7"},
		{"status", "7"},
		{"show", "7", "--activity", "a-000"},
	} {
		env.run(args...)
	}
	assert.Empty(t, env.remote.FetchCalls())
	assert.Empty(t, env.remote.RewindCalls())
}

func TestList_EmptyCache(t *testing.T) {
	env := newCLIEnv(t)

	out, code := env.run("list", "7")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "no entries cached for site:7\n", out)

	resp, code := env.runJSON("list", "7")
	require.Equal(t, ExitSuccess, code)
	entries := resp.Data.(map[string]any)["entries"]
	assert.Equal(t, []any{}, entries, "empty list encodes as [] not null")
}

func TestFetch_RequiresBaseURLWithoutOverride(t *testing.T) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	db := filepath.Join(t.TempDir(), "cache.db")

	code := Execute(context.Background(), []string{"--db", db, "fetch", "7"}, stdout, stderr)
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr.String(), "remote.base_url is required")
}

func TestConfig_InvalidFileExitsTwo(t *testing.T) {
	env := newCLIEnv(t).withConfig("store:\n  page_size: -3\n")

	_, code := env.run("list", "7")
	assert.Equal(t, ExitCommandError, code)
}

func TestConfig_PureGoDriver(t *testing.T) {
	env := newCLIEnv(t).withConfig("database:\n  driver: sqlite\n")
	env.remote.SetLog(site7, testutil.Entries("a", 3))

	out, code := env.run("fetch", "7")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "site:7 FETCH_ACTIVITIES: 3 rows changed, no more pages\n", out)
}

func TestConfig_RedisLockBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	env := newCLIEnv(t).withConfig(fmt.Sprintf("lock:\n  backend: redis\n  ttl: 10s\n  redis:\n    addr: %s\n", mr.Addr()))
	env.remote.SetLog(site7, testutil.Entries("a", 3))

	out, code := env.run("fetch", "7")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "site:7 FETCH_ACTIVITIES: 3 rows changed, no more pages\n", out)
	assert.False(t, mr.Exists("actsync:lock:site:7"), "lock released after the command")
}

func TestConfig_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	env := newCLIEnv(t).withConfig(fmt.Sprintf("lock:\n  backend: redis\n  redis:\n    addr: %s\n", addr))

	_, code := env.run("list", "7")
	assert.Equal(t, ExitCommandError, code)
}
