// Package failure defines the error taxonomy shared by every pipeline stage.
//
// Hosting applications use Category to decide how to present a failure:
// input errors ask the user to fix their export, config errors name the
// missing parameter, layout errors block a single form, and internal errors
// are defects to report.
package failure

import (
	"errors"
	"fmt"
)

// InputError is a problem with user-supplied bytes.
type InputError struct {
	Source string // input name or format tag
	Line   int    // 1-based, 0 if not line-specific
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	switch {
	case e.Line > 0 && e.Field != "":
		return fmt.Sprintf("%s: line %d: field %s: %s", e.Source, e.Line, e.Field, e.Reason)
	case e.Line > 0:
		return fmt.Sprintf("%s: line %d: %s", e.Source, e.Line, e.Reason)
	default:
		return fmt.Sprintf("%s: %s", e.Source, e.Reason)
	}
}

// ConfigError names a missing or invalid configuration key, such as a
// conversion rate or fiscal parameter.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

// InternalError reports a broken invariant between stages.
type InternalError struct {
	Stage  string
	Reason string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error in %s: %s (please report this)", e.Stage, e.Reason)
}

// LayoutError reports a value that does not fit the authority layout.
type LayoutError struct {
	Form   string
	Line   int // declaration line index, 0 for header/trailer
	Record string
	Field  string
	Reason string
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("%s %s record (line %d): field %s: %s", e.Form, e.Record, e.Line, e.Field, e.Reason)
}

// Input builds an InputError.
func Input(source string, line int, field, format string, args ...any) error {
	return &InputError{Source: source, Line: line, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Config builds a ConfigError.
func Config(key, format string, args ...any) error {
	return &ConfigError{Key: key, Reason: fmt.Sprintf(format, args...)}
}

// Internal builds an InternalError.
func Internal(stage, format string, args ...any) error {
	return &InternalError{Stage: stage, Reason: fmt.Sprintf(format, args...)}
}

// Kind classifies an error for presentation.
type Kind string

const (
	KindInput    Kind = "input"
	KindConfig   Kind = "config"
	KindInternal Kind = "internal"
	KindLayout   Kind = "layout"
	KindUnknown  Kind = "unknown"
)

// Category returns the Kind of the first typed failure in err's chain.
func Category(err error) Kind {
	var (
		in  *InputError
		cfg *ConfigError
		ie  *InternalError
		le  *LayoutError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ie):
		return KindInternal
	case errors.As(err, &in):
		return KindInput
	case errors.As(err, &cfg):
		return KindConfig
	case errors.As(err, &le):
		return KindLayout
	default:
		return KindUnknown
	}
}
