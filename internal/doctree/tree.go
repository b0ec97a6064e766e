package doctree

// BuildTree nests a flat block sequence under its headings. Blocks before
// the first heading land in an untitled lead section.
func BuildTree(title string, doc *Document) *DocTree {
	tree := &DocTree{Title: title, Document: doc}
	if doc == nil {
		return tree
	}

	type stackEntry struct {
		node  *DocNode
		level int
	}

	// Root is level 0; every heading nests under it.
	root := &DocNode{Title: title}
	stack := []stackEntry{{node: root, level: 0}}

	var lead *DocNode
	for _, b := range doc.Blocks {
		h, ok := b.(Heading)
		if !ok {
			top := stack[len(stack)-1].node
			if top == root {
				if lead == nil {
					lead = &DocNode{}
					root.Children = append(root.Children, lead)
				}
				top = lead
			}
			top.Blocks = append(top.Blocks, b)
			continue
		}

		level := h.Level
		if level < 1 {
			level = 1
		}
		node := &DocNode{
			Title:  h.Text.PlainText(),
			Anchor: h.Anchor,
			Level:  level,
		}

		// Pop until the top has a lower level.
		for len(stack) > 1 && stack[len(stack)-1].level >= level {
			stack = stack[:len(stack)-1]
		}
		parent := stack[len(stack)-1].node
		parent.Children = append(parent.Children, node)
		stack = append(stack, stackEntry{node: node, level: level})
	}

	fillText(root.Children)
	tree.Children = root.Children
	return tree
}

func fillText(nodes []*DocNode) {
	for _, n := range nodes {
		n.Text = blocksText(n.Blocks)
		fillText(n.Children)
	}
}

// Walk visits every node depth-first with its heading breadcrumb.
func (t *DocTree) Walk(fn func(n *DocNode, breadcrumb []string)) {
	var walk func(nodes []*DocNode, path []string)
	walk = func(nodes []*DocNode, path []string) {
		for _, n := range nodes {
			bc := path
			if n.Title != "" {
				bc = append(append([]string(nil), path...), n.Title)
			}
			fn(n, bc)
			walk(n.Children, bc)
		}
	}
	walk(t.Children, nil)
}
