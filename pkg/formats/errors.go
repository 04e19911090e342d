package formats

import (
	"errors"
	"fmt"
)

// Kind classifies failures of the reconstruction pipeline.
type Kind uint8

// Failure kinds. EmptySector is reported but is not a failure.
const (
	KindUnknown Kind = iota
	KindFormatMismatch
	KindTruncatedData
	KindEmptySector
	KindConflictingSector
	KindPlacementConflict
	KindRangeOverflow
)

// Kind sentinels. Every classified error matches exactly one of these with errors.Is.
var (
	ErrFormatMismatch    = errors.New("format mismatch")
	ErrTruncatedData     = errors.New("truncated data")
	ErrEmptySector       = errors.New("empty sector")
	ErrConflictingSector = errors.New("conflicting sector")
	ErrPlacementConflict = errors.New("placement conflict")
	ErrRangeOverflow     = errors.New("range overflow")
)

// ErrUnknownFormat is returned when no layout can be negotiated for a file.
var ErrUnknownFormat = errors.New("unknown sector format: no SDAT magic and no legacy layout selected")

// Kinds lists the kinds in report order.
var Kinds = []Kind{
	KindFormatMismatch,
	KindTruncatedData,
	KindEmptySector,
	KindConflictingSector,
	KindPlacementConflict,
	KindRangeOverflow,
}

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindFormatMismatch:
		return "FormatMismatch"
	case KindTruncatedData:
		return "TruncatedData"
	case KindEmptySector:
		return "EmptySector"
	case KindConflictingSector:
		return "ConflictingSector"
	case KindPlacementConflict:
		return "PlacementConflict"
	case KindRangeOverflow:
		return "RangeOverflow"
	default:
		return "Unknown"
	}
}

// Sentinel returns the error sentinel for the kind, or nil for KindUnknown.
func (k Kind) Sentinel() error {
	switch k {
	case KindFormatMismatch:
		return ErrFormatMismatch
	case KindTruncatedData:
		return ErrTruncatedData
	case KindEmptySector:
		return ErrEmptySector
	case KindConflictingSector:
		return ErrConflictingSector
	case KindPlacementConflict:
		return ErrPlacementConflict
	case KindRangeOverflow:
		return ErrRangeOverflow
	default:
		return nil
	}
}

// KindOf returns the kind of err, or KindUnknown if err is not classified.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, k := range Kinds {
		if errors.Is(err, k.Sentinel()) {
			return k
		}
	}
	return KindUnknown
}

// DecodeError reports why a sector file could not be decoded.
type DecodeError struct {
	Kind Kind
	Path string // empty when decoding from memory
	Err  error
}

// Error implements error.
func (e *DecodeError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *DecodeError) Unwrap() []error {
	if s := e.Kind.Sentinel(); s != nil {
		return []error{s, e.Err}
	}
	return []error{e.Err}
}

// WithPath attaches a file path to a *DecodeError. Other errors are returned unchanged.
func WithPath(err error, path string) error {
	var de *DecodeError
	if errors.As(err, &de) {
		cp := *de
		cp.Path = path
		return &cp
	}
	return err
}

// classify wraps a parser error into a *DecodeError of the matching kind.
func classify(err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		return err
	}
	kind := KindFormatMismatch
	if errors.Is(err, ErrTruncatedSDATData) || errors.Is(err, ErrTruncatedCSDATData) {
		kind = KindTruncatedData
	}
	return &DecodeError{Kind: kind, Err: err}
}
