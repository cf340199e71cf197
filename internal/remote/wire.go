package remote

import "encoding/json"

// Wire shapes of the REST API. Pointer fields distinguish "absent" from
// the zero value so required fields can be reported by name.

type activityResponse struct {
	TotalItems *int          `json:"totalItems"`
	Current    *activityList `json:"current"`
}

type activityList struct {
	OrderedItems []activityItem `json:"orderedItems"`
}

type activityItem struct {
	ActivityID   *string      `json:"activity_id"`
	Summary      *string      `json:"summary"`
	Content      *wireContent `json:"content"`
	Name         string       `json:"name"`
	Type         string       `json:"type"`
	Gridicon     string       `json:"gridicon"`
	Status       string       `json:"status"`
	IsRewindable *bool        `json:"is_rewindable"`
	RewindID     string       `json:"rewind_id"`
	Published    *string      `json:"published"`
	IsDiscarded  *bool        `json:"is_discarded"`
	Actor        *wireActor   `json:"actor"`
}

type wireContent struct {
	Text *string `json:"text"`
}

type wireActor struct {
	Type           string    `json:"type"`
	Name           string    `json:"name"`
	ExternalUserID int64     `json:"external_user_id"`
	WPComUserID    int64     `json:"wpcom_user_id"`
	Icon           *wireIcon `json:"icon"`
	Role           string    `json:"role"`
}

type wireIcon struct {
	URL string `json:"url"`
}

type rewindStatusResponse struct {
	State       *string      `json:"state"`
	Reason      string       `json:"reason"`
	LastUpdated string       `json:"last_updated"`
	Rewind      *wireRestore `json:"rewind"`
}

type wireRestore struct {
	RewindID  string `json:"rewind_id"`
	RestoreID *int64 `json:"restore_id"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	Reason    string `json:"reason"`
}

type rewindResponse struct {
	OK        *bool  `json:"ok"`
	Error     string `json:"error"`
	RestoreID *int64 `json:"restore_id"`
}

// isJSONNull reports whether body is the literal null.
func isJSONNull(body []byte) bool {
	var v json.RawMessage
	if err := json.Unmarshal(body, &v); err != nil {
		return false
	}
	return string(v) == "null"
}
