package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// SplitRatio is the fan-out of a passive splitter, stored as its divisor
// (1:8 is SplitRatio(8)).
type SplitRatio int

const (
	Ratio1x2  SplitRatio = 2
	Ratio1x4  SplitRatio = 4
	Ratio1x8  SplitRatio = 8
	Ratio1x16 SplitRatio = 16
	Ratio1x32 SplitRatio = 32
	Ratio1x64 SplitRatio = 64
)

// Valid reports whether r is one of the manufactured ratios
func (r SplitRatio) Valid() bool {
	switch r {
	case Ratio1x2, Ratio1x4, Ratio1x8, Ratio1x16, Ratio1x32, Ratio1x64:
		return true
	}
	return false
}

// Ports returns the number of downstream legs
func (r SplitRatio) Ports() int {
	return int(r)
}

func (r SplitRatio) String() string {
	return fmt.Sprintf("1:%d", int(r))
}

// ParseSplitRatio accepts "1:8", "1/8" or a bare divisor "8"
func ParseSplitRatio(s string) (SplitRatio, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, fmt.Errorf("%w: split ratio", ErrMissingRequiredField)
	}
	divisor := raw
	if i := strings.IndexAny(raw, ":/"); i >= 0 {
		if strings.TrimSpace(raw[:i]) != "1" {
			return 0, fmt.Errorf("%w: split ratio %q", ErrInvalidValue, s)
		}
		divisor = raw[i+1:]
	}
	n, err := strconv.Atoi(strings.TrimSpace(divisor))
	if err != nil {
		return 0, fmt.Errorf("%w: split ratio %q", ErrInvalidValue, s)
	}
	r := SplitRatio(n)
	if !r.Valid() {
		return 0, fmt.Errorf("%w: unsupported split ratio %q", ErrInvalidValue, s)
	}
	return r, nil
}

// MarshalText encodes the ratio in its "1:N" form
func (r SplitRatio) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes "1:N", "1/N" or "N"
func (r *SplitRatio) UnmarshalText(text []byte) error {
	parsed, err := ParseSplitRatio(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
