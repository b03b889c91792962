// Package sanitize checks parameter names. A name becomes part of a field
// file name and a DATASET or REGION identifier in the simulator input, so it
// is restricted to a plain word.
package sanitize

import (
	"errors"
	"fmt"
	"regexp"
)

// MaxNameLength leaves room for a "_<n>" group member suffix within the
// simulator's 32 character word limit.
const MaxNameLength = 27

// ErrInvalidName is returned for a name that cannot be used as an identifier.
var ErrInvalidName = errors.New("invalid parameter name")

var reName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// CheckName reports whether name is a letter followed by letters, digits or
// underscores and at most MaxNameLength long.
func CheckName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case len(name) > MaxNameLength:
		return fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidName, name, MaxNameLength)
	case !reName.MatchString(name):
		return fmt.Errorf("%w: %q must start with a letter and contain only letters, digits and underscores", ErrInvalidName, name)
	}
	return nil
}
