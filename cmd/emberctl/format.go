package main

import (
	"fmt"
	"strings"

	"github.com/emberplus/emberd/internal/ember"
)

// formatRoot renders a decoded root for display, one line per element
// depth-first, similar in spirit to the teacher's inspect.Formatter but
// over the wire Element shape rather than a live device session.
func formatRoot(root *ember.Root) string {
	var b strings.Builder
	for _, el := range root.Elements {
		formatElement(&b, el, 0)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatElement(b *strings.Builder, el *ember.Element, depth int) {
	indent := strings.Repeat("  ", depth)
	label := el.Kind.String()
	if el.Qualified && el.Path != "" {
		label += " " + el.Path
	} else {
		label += fmt.Sprintf(" #%d", el.Number)
	}

	switch el.Kind {
	case ember.KindParameter:
		if el.HasValue {
			fmt.Fprintf(b, "%s%s = %v (%s, %s)\n", indent, label, el.Value, el.ParamType, el.Access)
		} else {
			fmt.Fprintf(b, "%s%s (%s, %s)\n", indent, label, el.ParamType, el.Access)
		}
	case ember.KindMatrix:
		fmt.Fprintf(b, "%s%s\n", indent, label)
		for _, c := range el.Connections {
			fmt.Fprintf(b, "%s  target %d <- sources %v\n", indent, c.Target, c.Sources)
		}
	case ember.KindCommand:
		fmt.Fprintf(b, "%s%s %s\n", indent, label, el.Cmd)
	default:
		fmt.Fprintf(b, "%s%s\n", indent, label)
	}

	for _, child := range el.Children {
		formatElement(b, child, depth+1)
	}
}
