package main

import (
	"slices"
	"strings"
)

// Change represents a text replacement in a file.
// Start and End are byte offsets in the original file content.
type Change struct {
	Start int
	End   int
	Text  string
}

// applyChangesToContent applies changes in a single left-to-right pass over the
// original content. Changes with an invalid range or overlapping an earlier
// change are not applied and are returned as rejected.
func applyChangesToContent(content string, changes []Change) (string, []Change) {
	if len(changes) == 0 {
		return content, nil
	}

	ordered := slices.Clone(changes)
	slices.SortStableFunc(ordered, func(a, b Change) int {
		return a.Start - b.Start
	})

	var rejected []Change
	var builder strings.Builder
	builder.Grow(len(content))

	lastPos := 0
	for _, c := range ordered {
		if c.Start < lastPos || c.End < c.Start || c.End > len(content) {
			rejected = append(rejected, c)
			continue
		}
		builder.WriteString(content[lastPos:c.Start])
		builder.WriteString(c.Text)
		lastPos = c.End
	}
	builder.WriteString(content[lastPos:])

	return builder.String(), rejected
}
