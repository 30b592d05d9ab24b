package mutator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// Args holds the literal arguments parsed from a stage. Arguments are
// always strings; the accessors convert on demand and fall back to the
// supplied default when the argument was not given.
type Args []string

// Len returns the number of supplied arguments.
func (a Args) Len() int {
	return len(a)
}

// Has reports whether the argument at index i was supplied.
func (a Args) Has(i int) bool {
	return i >= 0 && i < len(a)
}

// String returns argument i, or def when it was not supplied.
func (a Args) String(i int, def string) string {
	if !a.Has(i) {
		return def
	}
	return a[i]
}

// Int returns argument i as an int, or def when it was not supplied.
// A supplied argument that is not a base-10 integer is an error; leading
// zeros do not switch the base.
func (a Args) Int(i int, def int) (int, error) {
	if !a.Has(i) {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(a[i]))
	if err != nil {
		return 0, fmt.Errorf("argument %d: %w", i+1, err)
	}
	return n, nil
}

// Float returns argument i as a float64, or def when it was not supplied.
func (a Args) Float(i int, def float64) (float64, error) {
	if !a.Has(i) {
		return def, nil
	}
	f, err := cast.ToFloat64E(strings.TrimSpace(a[i]))
	if err != nil {
		return 0, fmt.Errorf("argument %d: %w", i+1, err)
	}
	return f, nil
}

// Bool returns argument i as a bool, or def when it was not supplied.
func (a Args) Bool(i int, def bool) (bool, error) {
	if !a.Has(i) {
		return def, nil
	}
	b, err := cast.ToBoolE(strings.TrimSpace(a[i]))
	if err != nil {
		return false, fmt.Errorf("argument %d: %w", i+1, err)
	}
	return b, nil
}
