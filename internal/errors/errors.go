// Package errors holds the gateway's sentinel errors.
package errors

import (
	"errors"
	"fmt"
)

// ErrUnknownRole reports a role path segment outside the four portals.
var ErrUnknownRole = errors.New("unknown role")

// Wrapf annotates err with context while keeping it matchable through
// errors.Is.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
