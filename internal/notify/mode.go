package notify

import (
	"errors"
	"fmt"
)

// Mode selects the delivery path for a mailing-list pipeline. It is fixed at
// assembly time; there are no runtime transitions.
type Mode int

const (
	// ModeAll sends one combined digest per commit batch and never consults
	// the forge.
	ModeAll Mode = iota

	// ModePR posts a threaded reply for every commit that correlates to its
	// originating review thread, then digests the leftovers.
	ModePR

	// ModePROnly only ever posts threaded replies; combined digests, tag
	// digests and new-branch notices are suppressed.
	ModePROnly
)

var ErrUnknownMode = errors.New("unknown delivery mode")

// ParseMode maps a config mode string to a Mode. The empty string selects
// ModeAll; anything other than "pr" and "pr-only" is an error.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "":
		return ModeAll, nil
	case "pr":
		return ModePR, nil
	case "pr-only":
		return ModePROnly, nil
	}
	return ModeAll, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

func (m Mode) String() string {
	switch m {
	case ModePR:
		return "pr"
	case ModePROnly:
		return "pr-only"
	default:
		return "all"
	}
}
