package core

import "fmt"

// Result is a value-level outcome with exactly two states: Ok or Err.
type Result[T any] struct {
	value T
	err   error
}

func Ok[T any](value T) Result[T] {
	return Result[T]{value: value}
}

// Err builds a failed result. A nil error is replaced so the result can
// never be Ok by accident.
func Err[T any](err error) Result[T] {
	if err == nil {
		err = NewUnknownError("", "nil error passed to Err", nil)
	}
	return Result[T]{err: err}
}

// ResultOf lifts a Go (value, error) pair.
func ResultOf[T any](value T, err error) Result[T] {
	if err != nil {
		return Err[T](err)
	}
	return Ok(value)
}

func (r Result[T]) IsOk() bool {
	return r.err == nil
}

func (r Result[T]) IsErr() bool {
	return r.err != nil
}

// Value returns the held value, or the zero value for an Err result.
func (r Result[T]) Value() T {
	if r.err != nil {
		var zero T
		return zero
	}
	return r.value
}

func (r Result[T]) Err() error {
	return r.err
}

func (r Result[T]) Get() (T, error) {
	return r.Value(), r.err
}

// MustGet unwraps the value and panics with the error for an Err result.
func (r Result[T]) MustGet() T {
	if r.err != nil {
		panic(r.err)
	}
	return r.value
}

func (r Result[T]) String() string {
	if r.err != nil {
		return fmt.Sprintf("Err(%v)", r.err)
	}
	return fmt.Sprintf("Ok(%v)", r.value)
}
