package cache

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/actsync/internal/activity"
)

// nanos converts t to UTC unix nanoseconds. The zero time maps to NULL.
func nanos(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UTC().UnixNano(), Valid: true}
}

func fromNanos(n sql.NullInt64) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return time.Unix(0, n.Int64).UTC()
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func fromNullBool(b sql.NullBool) *bool {
	if !b.Valid {
		return nil
	}
	v := b.Bool
	return &v
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// marshalJSON encodes v as compact JSON TEXT with HTML escaping disabled.
// A nil pointer maps to NULL.
func marshalJSON(v any) (sql.NullString, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return sql.NullString{}, err
	}
	// Encoder adds a trailing newline
	return sql.NullString{String: strings.TrimSpace(buf.String()), Valid: true}, nil
}

func marshalActor(a *activity.Actor) (sql.NullString, error) {
	if a == nil {
		return sql.NullString{}, nil
	}
	s, err := marshalJSON(a)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal actor: %w", err)
	}
	return s, nil
}

func unmarshalActor(s sql.NullString) (*activity.Actor, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var a activity.Actor
	if err := json.Unmarshal([]byte(s.String), &a); err != nil {
		return nil, fmt.Errorf("unmarshal actor: %w", err)
	}
	return &a, nil
}

func marshalRestore(r *activity.Restore) (sql.NullString, error) {
	if r == nil {
		return sql.NullString{}, nil
	}
	s, err := marshalJSON(r)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal restore: %w", err)
	}
	return s, nil
}

func unmarshalRestore(s sql.NullString) (*activity.Restore, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var r activity.Restore
	if err := json.Unmarshal([]byte(s.String), &r); err != nil {
		return nil, fmt.Errorf("unmarshal restore: %w", err)
	}
	return &r, nil
}
