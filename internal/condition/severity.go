package condition

import (
	"fmt"
	"strings"
)

// Severity is the condition level derived from a flag string.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityInfo:     "info",
	SeverityWarning:  "warning",
	SeverityCritical: "critical",
}

// Severities lists every level in ascending order.
func Severities() []Severity {
	return []Severity{SeverityInfo, SeverityWarning, SeverityCritical}
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// MarshalText renders the wire name.
func (s Severity) MarshalText() ([]byte, error) {
	if _, ok := severityNames[s]; !ok {
		return nil, fmt.Errorf("unknown severity %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText parses the wire name.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseSeverity maps "info", "warning" or "critical" to a Severity.
func ParseSeverity(name string) (Severity, error) {
	for sev, n := range severityNames {
		if n == name {
			return sev, nil
		}
	}
	return 0, fmt.Errorf("unknown condition level %q", name)
}

// Classify validates s and maps its true-flag count to a severity.
func Classify(s string) (Severity, error) {
	if !IsValidFlagSet(s) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	return severityForCount(strings.Count(s, "="+valueTrue))
}

func severityForCount(n int) (Severity, error) {
	switch {
	case n == 0:
		return SeverityInfo, nil
	case n == 1 || n == 2:
		return SeverityWarning, nil
	case n == 3:
		return SeverityCritical, nil
	default:
		return 0, fmt.Errorf("%w: %d flags set", ErrInvariantViolation, n)
	}
}

// SeveritySet is a set of allowed levels.
type SeveritySet map[Severity]struct{}

// NewSeveritySet builds a set from the given levels.
func NewSeveritySet(levels ...Severity) SeveritySet {
	set := make(SeveritySet, len(levels))
	for _, l := range levels {
		set[l] = struct{}{}
	}
	return set
}

// ParseSeverities parses a comma separated list such as "info,critical".
func ParseSeverities(csv string) (SeveritySet, error) {
	if strings.TrimSpace(csv) == "" {
		return nil, fmt.Errorf("condition level list is empty")
	}
	set := SeveritySet{}
	for _, part := range strings.Split(csv, ",") {
		sev, err := ParseSeverity(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		set[sev] = struct{}{}
	}
	return set, nil
}

// Contains reports whether sev is in the set.
func (s SeveritySet) Contains(sev Severity) bool {
	_, ok := s[sev]
	return ok
}

func (s SeveritySet) String() string {
	names := make([]string, 0, len(s))
	for _, sev := range Severities() {
		if s.Contains(sev) {
			names = append(names, sev.String())
		}
	}
	return strings.Join(names, ",")
}
