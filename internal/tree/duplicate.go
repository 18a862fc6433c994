package tree

// Duplicate returns a detached deep copy of e's subtree as a standalone
// Tree, useful for handing a snapshot to code that must not observe
// later mutations (e.g. a logger serializing the tree asynchronously).
func (e Element) Duplicate() *Tree {
	e.tree.mu.RLock()
	defer e.tree.mu.RUnlock()

	dup := New()
	dup.copySubtree(e.tree, e.id, invalidID)
	return dup
}

func (dst *Tree) copySubtree(src *Tree, id, parent ElementID) ElementID {
	n := src.arena[id]
	spec := NodeSpec{
		Number:      n.number,
		Kind:        n.kind,
		Value:       n.value,
		HasValue:    n.hasValue,
		Access:      n.access,
		ParamType:   n.paramType,
		TargetCount: n.targetCount,
		SourceCount: n.sourceCount,
		MatrixKind:  n.matrixKind,
		MatrixMode:  n.matrixMode,
		Labels:      n.labels,
	}
	newID := dst.newNode(parent, spec)
	if parent == invalidID {
		dst.roots = append(dst.roots, newID)
	} else {
		dst.arena[parent].children = append(dst.arena[parent].children, newID)
	}

	if n.connections != nil {
		newNode := dst.arena[newID]
		newNode.connections = make(map[int]map[int]struct{}, len(n.connections))
		for target, sources := range n.connections {
			set := make(map[int]struct{}, len(sources))
			for s := range sources {
				set[s] = struct{}{}
			}
			newNode.connections[target] = set
		}
	}

	for _, childID := range n.children {
		dst.copySubtree(src, childID, newID)
	}
	return newID
}
