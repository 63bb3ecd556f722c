package email

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// ErrInvalidAddress wraps every address parse failure so callers can treat
// malformed configuration uniformly.
var ErrInvalidAddress = errors.New("invalid email address")

// Address is a display name plus an addr-spec. The zero value is "no address".
type Address struct {
	Name    string
	Address string
}

// ParseAddress accepts both bare addr-specs ("duke@openjdk.org") and full
// name-addr forms ("Duke <duke@openjdk.org>").
func ParseAddress(s string) (Address, error) {
	a, err := mail.ParseAddress(strings.TrimSpace(s))
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
	}
	return Address{Name: a.Name, Address: a.Address}, nil
}

func (a Address) IsZero() bool { return a.Name == "" && a.Address == "" }

// Domain returns the part of the addr-spec after the last "@", or "" when
// there is none.
func (a Address) Domain() string {
	i := strings.LastIndex(a.Address, "@")
	if i < 0 {
		return ""
	}
	return a.Address[i+1:]
}

func (a Address) String() string {
	if a.Name == "" {
		return a.Address
	}
	return (&mail.Address{Name: a.Name, Address: a.Address}).String()
}
