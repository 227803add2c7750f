package timetable

import (
	"errors"
	"fmt"
)

// Kind classifies why a timetable read did not produce data.
type Kind int

const (
	KindNone Kind = iota
	SourceAbsent
	ReadFailed
	SchemaMismatch
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case SourceAbsent:
		return "source_absent"
	case ReadFailed:
		return "read_failed"
	case SchemaMismatch:
		return "schema_mismatch"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var ErrNotLoaded = errors.New("timetable not loaded")

type SourceError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *SourceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

func Absent(op string, err error) error { return &SourceError{Kind: SourceAbsent, Op: op, Err: err} }

func Failed(op string, err error) error { return &SourceError{Kind: ReadFailed, Op: op, Err: err} }

func Mismatch(op string, err error) error { return &SourceError{Kind: SchemaMismatch, Op: op, Err: err} }

// KindOf returns the kind carried by err. Untyped errors count as read failures.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var se *SourceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ReadFailed
}
