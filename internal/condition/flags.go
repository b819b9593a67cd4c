package condition

import (
	"fmt"
	"strings"
)

const (
	valueTrue  = "true"
	valueFalse = "false"
)

// flagKeys is the fixed key order of the wire format.
var flagKeys = [...]string{"is_dirty=", "is_overweight=", "is_broken="}

// FlagSet holds the three device flags.
type FlagSet struct {
	IsDirty      bool
	IsOverweight bool
	IsBroken     bool
}

// String encodes the flags as "is_dirty=<b>,is_overweight=<b>,is_broken=<b>".
func (f FlagSet) String() string {
	return fmt.Sprintf("is_dirty=%t,is_overweight=%t,is_broken=%t", f.IsDirty, f.IsOverweight, f.IsBroken)
}

// TrueCount returns how many flags are set.
func (f FlagSet) TrueCount() int {
	n := 0
	for _, v := range [...]bool{f.IsDirty, f.IsOverweight, f.IsBroken} {
		if v {
			n++
		}
	}
	return n
}

// IsValidFlagSet reports whether s is exactly
// "is_dirty=<b>,is_overweight=<b>,is_broken=<b>" with lowercase booleans.
func IsValidFlagSet(s string) bool {
	_, ok := scanFlags(s)
	return ok
}

// ParseFlagSet validates s and decodes it.
func ParseFlagSet(s string) (FlagSet, error) {
	values, ok := scanFlags(s)
	if !ok {
		return FlagSet{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	return FlagSet{IsDirty: values[0], IsOverweight: values[1], IsBroken: values[2]}, nil
}

func scanFlags(s string) ([3]bool, bool) {
	var values [3]bool
	rest := s
	for i, key := range flagKeys {
		if !strings.HasPrefix(rest, key) {
			return values, false
		}
		rest = rest[len(key):]

		switch {
		case strings.HasPrefix(rest, valueTrue):
			values[i] = true
			rest = rest[len(valueTrue):]
		case strings.HasPrefix(rest, valueFalse):
			rest = rest[len(valueFalse):]
		default:
			return values, false
		}

		if i < len(flagKeys)-1 {
			if !strings.HasPrefix(rest, ",") {
				return values, false
			}
			rest = rest[1:]
		}
	}
	return values, rest == ""
}
