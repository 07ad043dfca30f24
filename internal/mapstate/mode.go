package mapstate

import (
	"fmt"
	"strings"

	"fibermap/internal/domain"
)

// Mode is the interaction mode of the map
type Mode int

const (
	ModeView Mode = iota
	ModeEdit
	ModeAdd
)

func (m Mode) String() string {
	switch m {
	case ModeView:
		return "view"
	case ModeEdit:
		return "edit"
	case ModeAdd:
		return "add"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode parses "view", "edit" or "add"
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "view":
		return ModeView, nil
	case "edit":
		return ModeEdit, nil
	case "add":
		return ModeAdd, nil
	}
	return 0, fmt.Errorf("%w: mode %q", domain.ErrInvalidValue, s)
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// canSwitch reports whether a user-triggered switch from m to next is
// allowed. Edit and Add are only reachable from View.
func (m Mode) canSwitch(next Mode) bool {
	if m == next {
		return true
	}
	return m == ModeView || next == ModeView
}
