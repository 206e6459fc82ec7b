package templating

import (
	"fmt"
	"strings"
)

type RendeFunc func(...any) string

// NewTemplateString returns a renderer for a printf style template. A
// template without verbs, or a call without values, renders as-is.
func NewTemplateString(tmplStr string) RendeFunc {
	return func(values ...any) string {
		if len(values) == 0 || !strings.Contains(tmplStr, "%") {
			return tmplStr
		}

		return fmt.Sprintf(tmplStr, values...)
	}
}
