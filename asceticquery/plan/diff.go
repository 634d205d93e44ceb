package plan

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Diff renders a line diff between the explain output of two plans, for
// instance before and after Optimize. Lines are prefixed with "-", "+" or " ".
func Diff(before, after IPlan) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before.Explain(), after.Explain())
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var out strings.Builder
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out.WriteString(prefix + line)
		}
	}
	return out.String()
}
