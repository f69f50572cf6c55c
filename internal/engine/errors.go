package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDataLoad matches every *DataLoadError.
	ErrDataLoad = errors.New("data load failed")
	// ErrUnknownCountry matches every *UnknownCountryError.
	ErrUnknownCountry = errors.New("unknown country")
)

// DataLoadError reports why the dataset could not be loaded. It is fatal at startup.
type DataLoadError struct {
	Path   string
	Line   int    // 1-based CSV line, 0 when not tied to a row
	Column string // offending column, if any
	Err    error
}

func (e *DataLoadError) Error() string {
	var b strings.Builder
	b.WriteString("load dataset")
	if e.Path != "" {
		fmt.Fprintf(&b, " %s", e.Path)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, ": line %d", e.Line)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, ": column %q", e.Column)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *DataLoadError) Unwrap() error { return e.Err }

func (e *DataLoadError) Is(target error) bool { return target == ErrDataLoad }

// UnknownCountryError is returned when a trend selection names a country that is
// not present in the working set.
type UnknownCountryError struct {
	Country string
}

func (e *UnknownCountryError) Error() string {
	return fmt.Sprintf("unknown country %q", e.Country)
}

func (e *UnknownCountryError) Is(target error) bool { return target == ErrUnknownCountry }
