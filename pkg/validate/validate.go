// Package validate reduces the findings of a check to a verdict.
//
// Validators are pure functions over data already captured; they never
// touch a live page, so a verdict can be reproduced from stored findings.
// They are total: absent optional fields map to the most conservative
// verdict instead of an error.
package validate

import (
	"fmt"
	"strings"

	"github.com/franzenzenhofer/automated-seo-tests/pkg/types"
)

// DefaultPassScore is the lowest passing performance score.
const DefaultPassScore = 80.0

// Validator derives a verdict from findings.
type Validator interface {
	Validate(f types.Findings) types.Verdict
}

// Func adapts a function to Validator.
type Func func(f types.Findings) types.Verdict

// Validate implements Validator.
func (fn Func) Validate(f types.Findings) types.Verdict {
	return fn(f)
}

// resourcesProblem matches the resources summary of a page that could not
// load all of its resources.
const resourcesProblem = "couldn't be loaded"

// Performance passes when the score is at least passScore.
func Performance(passScore float64) Validator {
	return Func(func(f types.Findings) types.Verdict {
		if !f.Score.Valid || f.Score.Float64 < passScore {
			return types.VerdictFailed
		}
		return types.VerdictPassed
	})
}

// MobileFriendly fails pages flagged as not usable on mobile, warns on a
// visual difference or resource problem, and passes otherwise.
func MobileFriendly() Validator {
	return Func(func(f types.Findings) types.Verdict {
		if !f.MobileFriendly.Valid || NotMobileUsable(f.MobileFriendly.String) {
			return types.VerdictFailed
		}
		if !f.VisualDifference.Valid || f.VisualDifference.Bool || ResourcesProblem(f.ResourcesStatus.String) {
			return types.VerdictWarning
		}
		return types.VerdictPassed
	})
}

// JsOnOff passes when the JavaScript on and off renders are equivalent.
func JsOnOff() Validator {
	return Func(func(f types.Findings) types.Verdict {
		if f.Diff == nil || f.Diff.Significant {
			return types.VerdictFailed
		}
		return types.VerdictPassed
	})
}

// URLInspection passes when the live test render matches the page and all
// resources loaded. A missing resources status fails.
func URLInspection() Validator {
	return Func(func(f types.Findings) types.Verdict {
		if !f.VisualDifference.Valid || f.VisualDifference.Bool {
			return types.VerdictFailed
		}
		if !f.ResourcesStatus.Valid || ResourcesProblem(f.ResourcesStatus.String) {
			return types.VerdictFailed
		}
		return types.VerdictPassed
	})
}

// NotMobileUsable reports whether a mobile-friendly verdict text flags the
// page as unusable.
func NotMobileUsable(verdict string) bool {
	v := strings.ToLower(strings.ReplaceAll(verdict, "’", "'"))
	return strings.Contains(v, "isn't usable") || strings.Contains(v, "not usable")
}

// ResourcesProblem reports whether a resources status reports failures.
func ResourcesProblem(status string) bool {
	return strings.Contains(strings.ToLower(strings.ReplaceAll(status, "’", "'")), resourcesProblem)
}

// Options tunes the default validators.
type Options struct {
	// PassScore is the lowest passing performance score. Zero passes any
	// measured score.
	PassScore float64
}

// For returns the validator of a check kind.
func For(kind types.TestKind, opts Options) (Validator, error) {
	switch kind {
	case types.KindPerformance:
		return Performance(opts.PassScore), nil
	case types.KindMobileFriendly:
		return MobileFriendly(), nil
	case types.KindJsOnOff:
		return JsOnOff(), nil
	case types.KindURLInspection:
		return URLInspection(), nil
	default:
		return nil, fmt.Errorf("no validator for check kind %q", kind)
	}
}
