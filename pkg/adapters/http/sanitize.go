package http

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"
)

const (
	// DefaultMaxValueSize bounds the JSON body of an attribute write (64KB).
	DefaultMaxValueSize int64 = 64 << 10
	// MaxNameSize bounds attribute names in bytes.
	MaxNameSize = 256
)

// ErrInvalidName is returned for attribute names that are empty, too long, not UTF-8
// or that carry control characters.
var ErrInvalidName = errors.New("invalid attribute name")

// validateName rejects names that would poison logs or terminals when displayed.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if len(name) > MaxNameSize {
		return fmt.Errorf("%w: size=%d limit=%d", ErrInvalidName, len(name), MaxNameSize)
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("%w: invalid UTF-8", ErrInvalidName)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character %U", ErrInvalidName, r)
		}
	}
	return nil
}
