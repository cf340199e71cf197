package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines one store scenario. See the package documentation for
// the YAML format.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Site is the site every command in the flow targets.
	Site int64 `yaml:"site"`

	// PageSize overrides the store's page size. Zero means the default.
	PageSize int `yaml:"page_size,omitempty"`

	// Remote is the remote script in place before the first step.
	Remote RemoteScript `yaml:"remote"`

	// Flow is executed in order, one step at a time.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the trace and the final cache state.
	Assertions []Assertion `yaml:"assertions"`
}

// RemoteScript changes what the scripted remote serves. Unset fields leave
// the current script alone.
type RemoteScript struct {
	// Entries replaces the site's remote log with that many generated
	// entries named "<prefix>-000", "<prefix>-001", ...
	Entries *int   `yaml:"entries,omitempty"`
	Prefix  string `yaml:"prefix,omitempty"`

	// Total overrides the TotalItems the remote reports.
	Total *int `yaml:"total,omitempty"`

	RewindStatus *StatusFixture `yaml:"rewind_status,omitempty"`
	RestoreID    int64          `yaml:"restore_id,omitempty"`

	// Fail injects (or, with an empty kind, clears) per-operation failures.
	Fail []Failure `yaml:"fail,omitempty"`
}

// StatusFixture is a rewind status the remote reports.
type StatusFixture struct {
	State       string          `yaml:"state"`
	Reason      string          `yaml:"reason,omitempty"`
	LastUpdated time.Time       `yaml:"last_updated"`
	Restore     *RestoreFixture `yaml:"restore,omitempty"`
}

// RestoreFixture is the restore job inside a StatusFixture.
type RestoreFixture struct {
	RewindID  string `yaml:"rewind_id"`
	RestoreID int64  `yaml:"restore_id"`
	Status    string `yaml:"status"`
	Progress  int    `yaml:"progress"`
	Reason    string `yaml:"reason,omitempty"`
}

// Failure makes one remote operation fail with a typed domain error.
type Failure struct {
	// Op is fetch, rewind_status or rewind.
	Op      string `yaml:"op"`
	Kind    string `yaml:"kind,omitempty"`
	Message string `yaml:"message,omitempty"`
}

// Remote operations a Failure can target.
const (
	OpFetch        = "fetch"
	OpRewindStatus = "rewind_status"
	OpRewind       = "rewind"
)

// FlowStep is either a store command (Invoke) or a remote script change
// (Remote), never both.
type FlowStep struct {
	Invoke   string `yaml:"invoke,omitempty"`
	LoadMore bool   `yaml:"load_more,omitempty"`
	RewindID string `yaml:"rewind_id,omitempty"`

	Remote *RemoteScript `yaml:"remote,omitempty"`

	// Expect checks the Change the command produced. Nil skips the check.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// Store commands a FlowStep can invoke.
const (
	InvokeFetchActivities  = "fetch_activities"
	InvokeFetchRewindState = "fetch_rewind_state"
	InvokeRewind           = "rewind"
)

// ExpectClause specifies the expected Change. Unset fields are not checked,
// except Error: an empty Error means the change must not carry one.
type ExpectClause struct {
	RowsAffected *int   `yaml:"rows_affected,omitempty"`
	CanLoadMore  *bool  `yaml:"can_load_more,omitempty"`
	RestoreID    *int64 `yaml:"restore_id,omitempty"`

	// Error is the expected error kind, e.g. AUTHORIZATION_REQUIRED.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace or the final cache state.
type Assertion struct {
	Type string `yaml:"type"`

	// Count is used by entry_count and change_count.
	Count *int `yaml:"count,omitempty"`

	// Order (asc|desc) and IDs are used by entries.
	Order string   `yaml:"order,omitempty"`
	IDs   []string `yaml:"ids,omitempty"`

	// State and Absent are used by rewind_status.
	State  string `yaml:"state,omitempty"`
	Absent bool   `yaml:"absent,omitempty"`

	// Cause limits change_count to one change cause, e.g. REWIND.
	Cause string `yaml:"cause,omitempty"`

	// Offsets is used by fetch_offsets.
	Offsets []int `yaml:"offsets,omitempty"`
}

// Assertion type constants.
const (
	AssertEntryCount   = "entry_count"
	AssertEntries      = "entries"
	AssertRewindStatus = "rewind_status"
	AssertChangeCount  = "change_count"
	AssertFetchOffsets = "fetch_offsets"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML. See LoadScenario.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Site <= 0 {
		return fmt.Errorf("site must be a positive id")
	}

	if s.PageSize < 0 {
		return fmt.Errorf("page_size must not be negative")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if err := validateRemote("remote", &s.Remote); err != nil {
		return err
	}

	for i, step := range s.Flow {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateRemote(where string, r *RemoteScript) error {
	if r.Entries != nil && *r.Entries < 0 {
		return fmt.Errorf("%s: entries must not be negative", where)
	}
	if r.Total != nil && *r.Total < 0 {
		return fmt.Errorf("%s: total must not be negative", where)
	}
	if r.RewindStatus != nil {
		if _, err := r.RewindStatus.toStatus(); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
	}
	for i, f := range r.Fail {
		switch f.Op {
		case OpFetch, OpRewindStatus, OpRewind:
		default:
			return fmt.Errorf("%s.fail[%d]: unknown op %q", where, i, f.Op)
		}
	}
	return nil
}

func validateStep(i int, step *FlowStep) error {
	switch {
	case step.Invoke != "" && step.Remote != nil:
		return fmt.Errorf("flow[%d]: invoke and remote are mutually exclusive", i)
	case step.Remote != nil:
		if step.Expect != nil {
			return fmt.Errorf("flow[%d]: expect needs an invoke step", i)
		}
		return validateRemote(fmt.Sprintf("flow[%d].remote", i), step.Remote)
	}

	switch step.Invoke {
	case InvokeFetchActivities, InvokeFetchRewindState:
	case InvokeRewind:
		if step.RewindID == "" {
			return fmt.Errorf("flow[%d]: rewind_id is required for rewind", i)
		}
	case "":
		return fmt.Errorf("flow[%d]: invoke or remote is required", i)
	default:
		return fmt.Errorf("flow[%d]: unknown invoke %q", i, step.Invoke)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertEntryCount, AssertChangeCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for %s", index, a.Type)
		}
		if *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertEntries:
		if a.Order != "" && a.Order != "asc" && a.Order != "desc" {
			return fmt.Errorf("assertions[%d]: order must be asc or desc", index)
		}
	case AssertRewindStatus:
		if a.State == "" && !a.Absent {
			return fmt.Errorf("assertions[%d]: state or absent is required for rewind_status", index)
		}
	case AssertFetchOffsets:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
