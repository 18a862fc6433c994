package dispatch

import (
	"fmt"

	"github.com/emberplus/emberd/internal/ember"
	"github.com/emberplus/emberd/internal/tree"
)

// resolvedRequest carries everything a handler needs: the wire element
// that carried the actual payload (value/connections/command), the
// resolved live tree element it addresses (absent for a bare root-level
// command), and the form the response must take to match the request.
type resolvedRequest struct {
	wireElement *ember.Element
	cmd         *ember.Command

	target    tree.Element
	isRoot    bool
	qualified bool
}

// resolveRequest walks the request's addressing (qualified path or
// unqualified number chain) down to the element actually carrying a
// command, a matrix connection list, or a parameter value, and resolves
// the corresponding live tree element.
func resolveRequest(t *tree.Tree, top *ember.Element) (resolvedRequest, error) {
	host, cmd, numbers, isRoot := findHostAndCommand(top)

	req := resolvedRequest{
		wireElement: host,
		cmd:         cmd,
		isRoot:      isRoot,
		qualified:   top.Qualified,
	}
	if isRoot {
		return req, nil
	}

	var target tree.Element
	var ok bool
	if top.Qualified {
		target, ok = t.ByPath(top.Path)
	} else {
		target, ok = t.ByNumbers(numbers)
	}
	if !ok {
		path := top.Path
		if !top.Qualified {
			path = joinNumbers(numbers)
		}
		return resolvedRequest{}, fmt.Errorf("%w: %q", ErrUnknownPath, path)
	}
	req.target = target
	return req, nil
}

// findHostAndCommand descends the single-child request chain rooted at
// top, stopping one level before a trailing Command element (which
// describes an action on its parent rather than a further hop in the
// address) or at the deepest leaf otherwise. A bare top-level Command
// with no wrapping element addresses the tree's virtual root.
func findHostAndCommand(top *ember.Element) (host *ember.Element, cmd *ember.Command, numbers []int, isRoot bool) {
	if top.Kind == ember.KindCommand {
		c := top.Cmd
		return nil, &c, nil, true
	}

	cur := top
	numbers = []int{cur.Number}
	for len(cur.Children) == 1 && cur.Children[0].Kind != ember.KindCommand {
		cur = cur.Children[0]
		numbers = append(numbers, cur.Number)
	}
	if len(cur.Children) == 1 && cur.Children[0].Kind == ember.KindCommand {
		c := cur.Children[0].Cmd
		return cur, &c, numbers, false
	}
	return cur, nil, numbers, false
}

func joinNumbers(numbers []int) string {
	out := ""
	for i, n := range numbers {
		if i > 0 {
			out += "."
		}
		out += fmt.Sprintf("%d", n)
	}
	return out
}
