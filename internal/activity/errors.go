package activity

import (
	"errors"
	"fmt"
)

// FetchErrorKind categorizes failures of an activity page fetch.
type FetchErrorKind string

const (
	FetchGeneric               FetchErrorKind = "GENERIC_ERROR"
	FetchAuthorizationRequired FetchErrorKind = "AUTHORIZATION_REQUIRED"
	FetchInvalidResponse       FetchErrorKind = "INVALID_RESPONSE"
	FetchMissingActivityID     FetchErrorKind = "MISSING_ACTIVITY_ID"
	FetchMissingSummary        FetchErrorKind = "MISSING_SUMMARY"
	FetchMissingContentText    FetchErrorKind = "MISSING_CONTENT_TEXT"
	FetchMissingPublishedDate  FetchErrorKind = "MISSING_PUBLISHED_DATE"
)

// FetchError is the error domain of FetchActivities.
type FetchError struct {
	Kind    FetchErrorKind
	Message string
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return formatError("fetch activities", string(e.Kind), e.Message)
}

// RewindStatusErrorKind categorizes failures of a rewind status fetch.
type RewindStatusErrorKind string

const (
	RewindStatusGeneric               RewindStatusErrorKind = "GENERIC_ERROR"
	RewindStatusAuthorizationRequired RewindStatusErrorKind = "AUTHORIZATION_REQUIRED"
	RewindStatusInvalidResponse       RewindStatusErrorKind = "INVALID_RESPONSE"
	RewindStatusInvalidState          RewindStatusErrorKind = "INVALID_REWIND_STATE"
	RewindStatusMissingRewindID       RewindStatusErrorKind = "MISSING_REWIND_ID"
	RewindStatusMissingRestoreID      RewindStatusErrorKind = "MISSING_RESTORE_ID"
)

// RewindStatusError is the error domain of FetchRewindState.
type RewindStatusError struct {
	Kind    RewindStatusErrorKind
	Message string
}

// Error implements the error interface.
func (e *RewindStatusError) Error() string {
	return formatError("fetch rewind state", string(e.Kind), e.Message)
}

// RewindErrorKind categorizes failures of a rewind command.
type RewindErrorKind string

const (
	RewindGeneric               RewindErrorKind = "GENERIC_ERROR"
	RewindAPIError              RewindErrorKind = "API_ERROR"
	RewindAuthorizationRequired RewindErrorKind = "AUTHORIZATION_REQUIRED"
	RewindInvalidResponse       RewindErrorKind = "INVALID_RESPONSE"
	// RewindMissingState means the response carried no restore identifier.
	RewindMissingState RewindErrorKind = "MISSING_STATE"
)

// RewindError is the error domain of Rewind.
type RewindError struct {
	Kind    RewindErrorKind
	Message string
}

// Error implements the error interface.
func (e *RewindError) Error() string {
	return formatError("rewind", string(e.Kind), e.Message)
}

func formatError(op, kind, msg string) string {
	if msg == "" {
		return fmt.Sprintf("%s: %s", op, kind)
	}
	return fmt.Sprintf("%s: %s: %s", op, kind, msg)
}

// AsFetchError returns err as a *FetchError. Errors of any other type
// become GENERIC_ERROR carrying err's text. Returns nil for a nil err.
func AsFetchError(err error) *FetchError {
	if err == nil {
		return nil
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return &FetchError{Kind: FetchGeneric, Message: err.Error()}
}

// AsRewindStatusError is the RewindStatusError counterpart of AsFetchError.
func AsRewindStatusError(err error) *RewindStatusError {
	if err == nil {
		return nil
	}
	var se *RewindStatusError
	if errors.As(err, &se) {
		return se
	}
	return &RewindStatusError{Kind: RewindStatusGeneric, Message: err.Error()}
}

// AsRewindError is the RewindError counterpart of AsFetchError.
func AsRewindError(err error) *RewindError {
	if err == nil {
		return nil
	}
	var re *RewindError
	if errors.As(err, &re) {
		return re
	}
	return &RewindError{Kind: RewindGeneric, Message: err.Error()}
}

// ErrorKind returns the kind of the domain error carried by err, or
// GENERIC_ERROR for any other error. Returns "" for a nil err.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var fe *FetchError
	var se *RewindStatusError
	var re *RewindError
	switch {
	case errors.As(err, &fe):
		return string(fe.Kind)
	case errors.As(err, &se):
		return string(se.Kind)
	case errors.As(err, &re):
		return string(re.Kind)
	}
	return string(FetchGeneric)
}
