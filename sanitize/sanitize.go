// Package sanitize strips markup from user-supplied message bodies.
package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// The strict policy removes every tag and attribute, and drops the contents
// of script/style elements entirely.
var policy = bluemonday.StrictPolicy()

// Clean returns raw with all markup removed and surrounding whitespace
// trimmed. Deterministic and pure. Callers must reject an empty result;
// that rule lives with the caller so both delivery paths share it.
func Clean(raw string) string {
	return strings.TrimSpace(policy.Sanitize(raw))
}
