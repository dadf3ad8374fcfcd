package thread

// Row is one rendered line of a thread view.
type Row struct {
	Node          *Node
	Indent        int
	Collapsed     bool
	HiddenReplies int
}

// Rows flattens a tree into display rows. A collapsed node is emitted with its
// hidden reply count and its subtree is skipped. A nil collapse state expands everything.
func Rows(roots []*Node, c *Collapse) []Row {
	rows := make([]Row, 0)
	Walk(roots, func(n *Node) bool {
		row := Row{Node: n, Indent: VisualDepth(n.Depth)}
		if c != nil && c.IsCollapsed(n.Comment.ID) {
			row.Collapsed = true
			row.HiddenReplies = c.HiddenReplies(n.Comment.ID)
		}
		rows = append(rows, row)
		return !row.Collapsed
	})
	return rows
}
