package types

import "fmt"

// Verdict is the tri-state outcome assigned to one test.
// The zero value is Failed, so a result nobody judged never reads as a pass;
// severity falls as the numeric value grows.
type Verdict int

const (
	VerdictFailed  Verdict = iota // VerdictFailed means the check failed or could not be completed.
	VerdictWarning                // VerdictWarning means the page works but something needs a look.
	VerdictPassed                 // VerdictPassed means every rule of the check held.
)

// String returns the lower-case verdict name used in reports.
func (v Verdict) String() string {
	switch v {
	case VerdictPassed:
		return "passed"
	case VerdictWarning:
		return "warning"
	case VerdictFailed:
		return "failed"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (v Verdict) MarshalText() ([]byte, error) {
	if v < VerdictFailed || v > VerdictPassed {
		return nil, fmt.Errorf("invalid verdict %d", int(v))
	}
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Verdict) UnmarshalText(text []byte) error {
	switch string(text) {
	case "passed":
		*v = VerdictPassed
	case "warning":
		*v = VerdictWarning
	case "failed":
		*v = VerdictFailed
	default:
		return fmt.Errorf("unknown verdict %q", string(text))
	}
	return nil
}

// Worse returns the more severe of two verdicts.
func Worse(a, b Verdict) Verdict {
	if b < a {
		return b
	}
	return a
}
