package pbosign

import (
	"fmt"
	"strings"
)

// Authority names the owner of a key. It is trimmed, lower-cased and restricted to ASCII
// letters, digits, '_', '-' and '.'.
//
// The zero value is not a valid authority. Authorities are comparable and can be used as map
// keys.
type Authority struct {
	name string
}

// NewAuthority normalizes and validates an authority name.
func NewAuthority(name string) (Authority, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return Authority{}, fmt.Errorf("%w: empty name", ErrInvalidAuthority)
	}
	for i := 0; i < len(normalized); i++ {
		if !isAuthorityChar(normalized[i]) {
			return Authority{}, fmt.Errorf("%w: unexpected character %q in %q", ErrInvalidAuthority, normalized[i], normalized)
		}
	}
	return Authority{name: normalized}, nil
}

// MustAuthority is like NewAuthority but panics on invalid names.
func MustAuthority(name string) Authority {
	authority, err := NewAuthority(name)
	if err != nil {
		panic(err)
	}
	return authority
}

func isAuthorityChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_', c == '-', c == '.':
		return true
	}
	return false
}

func (a Authority) String() string {
	return a.name
}

// IsZero reports whether a is the zero value.
func (a Authority) IsZero() bool {
	return a.name == ""
}

// MarshalText implements encoding.TextMarshaler, also used for JSON encoding.
func (a Authority) MarshalText() ([]byte, error) {
	return []byte(a.name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Authority) UnmarshalText(text []byte) error {
	authority, err := NewAuthority(string(text))
	if err != nil {
		return err
	}
	*a = authority
	return nil
}
