package checks

import (
	"fmt"

	"github.com/franzenzenhofer/automated-seo-tests/pkg/types"
)

// Definitions returns the built-in checks in run order.
func Definitions() []Definition {
	return []Definition{Performance(), JsOnOff(), MobileFriendly(), URLInspection()}
}

// Lookup returns the built-in definition of kind.
func Lookup(kind types.TestKind) (Definition, error) {
	for _, def := range Definitions() {
		if def.Kind == kind {
			return def, nil
		}
	}
	return Definition{}, fmt.Errorf("unknown check %q", kind)
}
