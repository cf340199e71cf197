package action

// Result carries either a success value or a typed error, never both.
//
// It replaces payloads that had one constructor for data and another for
// errors. E is the operation's error domain, so a Result for one operation
// cannot hold another operation's error.
type Result[T any, E error] struct {
	value  T
	err    E
	failed bool
}

// Ok returns a successful Result holding v.
func Ok[T any, E error](v T) Result[T, E] {
	return Result[T, E]{value: v}
}

// Fail returns a failed Result holding err.
func Fail[T any, E error](err E) Result[T, E] {
	return Result[T, E]{err: err, failed: true}
}

// Failed reports whether the Result holds an error.
func (r Result[T, E]) Failed() bool {
	return r.failed
}

// Value returns the success value and true, or the zero value and false.
func (r Result[T, E]) Value() (T, bool) {
	return r.value, !r.failed
}

// Err returns the error and true, or the zero E and false.
func (r Result[T, E]) Err() (E, bool) {
	return r.err, r.failed
}
