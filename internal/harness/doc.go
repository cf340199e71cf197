// Package harness runs activity store scenarios described in YAML.
//
// A scenario scripts the remote, issues store commands one at a time and
// checks the Change each command produced, then asserts on the final cache
// state. Every run uses a fresh SQLite cache in a temp directory, a scripted
// remote and fixed action IDs, so the Change trace is reproducible and can be
// compared against a golden file.
//
// # Scenario Format
//
//	name: load_more
//	description: "Second page appends after the cached entries"
//	site: 7
//	page_size: 10
//	remote:
//	  entries: 12        # remote log "a-000" ... "a-011"
//	  prefix: a
//	  total: 12          # optional TotalItems override
//	  restore_id: 55
//	  rewind_status:
//	    state: active
//	    last_updated: 2024-03-01T13:00:00Z
//	flow:
//	  - invoke: fetch_activities
//	    expect: { rows_affected: 10, can_load_more: true }
//	  - invoke: fetch_activities
//	    load_more: true
//	    expect: { rows_affected: 2, can_load_more: false }
//	  - remote:
//	      fail:
//	        - { op: rewind, kind: API_ERROR, message: busy }
//	  - invoke: rewind
//	    rewind_id: r-1
//	    expect: { error: API_ERROR }
//	assertions:
//	  - type: entry_count
//	    count: 12
//	  - type: fetch_offsets
//	    offsets: [0, 10]
//
// A flow step either invokes a store command (fetch_activities,
// fetch_rewind_state, rewind) or changes the remote script. A failure with
// an empty kind clears the failure for that operation.
//
// # Assertion Types
//
//   - entry_count: number of cached entries for the site
//   - entries: cached activity IDs in asc or desc order
//   - rewind_status: cached rewind state, or absent: true
//   - change_count: number of changes, optionally for one cause
//   - fetch_offsets: offsets the store requested from the remote, in order
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/load_more.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario)
//	if err == nil && !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
