package templating

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_StringTemplating(t *testing.T) {
	t.Run(
		"returns original string if no formatter is present",
		func(t *testing.T) {
			renderer := NewTemplateString("q::uploads")
			require.Equal(t, "q::uploads", renderer("ignored"))
		})

	t.Run(
		"return formatted string when formatter is present",
		func(t *testing.T) {
			renderer := NewTemplateString("q::uploads::%s")
			require.Equal(t, "q::uploads::done", renderer("done"))
		})

	t.Run(
		"returns the template when no values are given",
		func(t *testing.T) {
			renderer := NewTemplateString("q::uploads::%s")
			require.Equal(t, "q::uploads::%s", renderer())
		})
}
