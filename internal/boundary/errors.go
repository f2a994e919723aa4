package boundary

import (
	"errors"
	"fmt"
)

// Code classifies a boundary assembly signal.
type Code string

// Signal codes. Fatal codes abort an assembly; the rest drop one item.
const (
	CodeEmptyBatch         Code = "empty_batch"
	CodeNoGeometry         Code = "no_geometry"
	CodeNoSegments         Code = "no_segments"
	CodeNoPolygonsToMerge  Code = "no_polygons_to_merge"
	CodeEmptyGeometry      Code = "empty_geometry"
	CodeNoOuterMembers     Code = "no_outer_members"
	CodeMissingGeometry    Code = "missing_geometry"
	CodeDegenerateRing     Code = "degenerate_ring"
	CodeInvalidCoordinate  Code = "invalid_coordinate"
	CodeUnsupportedElement Code = "unsupported_element"
	CodeUnionFailed        Code = "union_failed"
)

// Fatal reports whether the code aborts a whole batch when it is the only
// outcome available.
func (c Code) Fatal() bool {
	switch c {
	case CodeEmptyBatch, CodeNoGeometry, CodeNoSegments, CodeNoPolygonsToMerge,
		CodeEmptyGeometry, CodeNoOuterMembers:
		return true
	default:
		return false
	}
}

// Error is a typed boundary failure. Two errors match under errors.Is when
// their codes are equal, so callers can test against the Err* sentinels.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return "boundary: " + string(e.Code)
	}
	return fmt.Sprintf("boundary: %s: %s", e.Code, e.Msg)
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Sentinels for errors.Is checks.
var (
	ErrEmptyBatch        = &Error{Code: CodeEmptyBatch}
	ErrNoGeometry        = &Error{Code: CodeNoGeometry}
	ErrNoSegments        = &Error{Code: CodeNoSegments}
	ErrNoPolygonsToMerge = &Error{Code: CodeNoPolygonsToMerge}
	ErrEmptyGeometry     = &Error{Code: CodeEmptyGeometry}
	ErrNoOuterMembers    = &Error{Code: CodeNoOuterMembers}
	ErrMissingGeometry   = &Error{Code: CodeMissingGeometry}
	ErrDegenerateRing    = &Error{Code: CodeDegenerateRing}
)

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Issue is a recoverable, item-level problem recorded during assembly.
type Issue struct {
	Index int    `json:"index"`
	ID    string `json:"id,omitempty"`
	Code  Code   `json:"code"`
	Msg   string `json:"msg"`
}

func issueFrom(index int, id string, err error) Issue {
	is := Issue{Index: index, ID: id, Code: CodeOf(err), Msg: err.Error()}
	if is.Code == "" {
		is.Code = CodeUnionFailed
	}
	return is
}
