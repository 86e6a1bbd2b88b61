package handler

import (
	"errors"
	"fmt"

	"github.com/JonMunkholm/sheethealth/internal/core"
)

var (
	// ErrNoFile is returned when an event carries neither inline bytes nor an
	// object location.
	ErrNoFile = errors.New("no file provided")

	// ErrStorageDisabled is returned when an event names an object but no
	// fetcher is configured.
	ErrStorageDisabled = errors.New("storage disabled")
)

// DecodeError reports an event whose file could not be obtained: missing,
// not base64, an unknown format, or an unreadable object.
type DecodeError struct {
	Field string // file, format or source
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// UnexpectedError reports any other failure, including recovered panics.
type UnexpectedError struct {
	Err error
}

func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("unexpected error: %v", e.Err)
}

func (e *UnexpectedError) Unwrap() error {
	return e.Err
}

// ParseError is the loader's error for bytes that are not a spreadsheet.
type ParseError = core.ParseError

// kindOf maps a pipeline error to its result kind.
func kindOf(err error) core.Kind {
	var (
		derr *DecodeError
		perr *core.ParseError
	)
	switch {
	case errors.As(err, &derr):
		return core.KindDecode
	case errors.As(err, &perr):
		return core.KindParse
	default:
		return core.KindUnexpected
	}
}
