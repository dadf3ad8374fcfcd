// Package thread turns a flat list of posts into a reply tree and tracks which
// branches of a thread view are collapsed.
package thread

import (
	"cmp"
	"slices"

	"reviewhub/internal/models"
)

// MaxVisualDepth caps indentation when rendering. Node.Depth keeps the real depth.
const MaxVisualDepth = 6

type Node struct {
	Comment *models.Post `json:"comment"`
	Replies []*Node      `json:"replies"`
	Depth   int          `json:"depth"`
}

// BuildTree links posts to their parents. A post whose parent is nil, missing from
// the input, or itself becomes a root. Parent cycles that never reach a root are cut
// at the member that appears first in the input, so every post appears exactly once.
// Roots are ordered newest first; replies at every level oldest first.
func BuildTree(posts []models.Post) []*Node {
	n := len(posts)
	if n == 0 {
		return []*Node{}
	}

	index := make(map[uint]int, n)
	for i := range posts {
		if _, dup := index[posts[i].ID]; !dup {
			index[posts[i].ID] = i
		}
	}

	parent := make([]int, n)
	for i := range posts {
		parent[i] = -1
		if pid := posts[i].ParentID; pid != nil && *pid != posts[i].ID {
			if j, ok := index[*pid]; ok && j != i {
				parent[i] = j
			}
		}
	}
	breakCycles(parent)

	nodes := make([]*Node, n)
	for i := range posts {
		nodes[i] = &Node{Comment: &posts[i], Replies: []*Node{}}
	}

	roots := make([]*Node, 0)
	for i, p := range parent {
		if p < 0 {
			roots = append(roots, nodes[i])
		} else {
			nodes[p].Replies = append(nodes[p].Replies, nodes[i])
		}
	}

	slices.SortFunc(roots, newestFirst)
	stack := slices.Clone(roots)
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		slices.SortFunc(node.Replies, oldestFirst)
		for _, child := range node.Replies {
			child.Depth = node.Depth + 1
			stack = append(stack, child)
		}
	}

	return roots
}

// breakCycles walks each parent chain once. A chain that runs back into itself is a
// cycle with no root; its lowest index member is detached.
func breakCycles(parent []int) {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make([]int, len(parent))
	path := make([]int, 0, 16)

	for i := range parent {
		path = path[:0]
		j := i
		for j >= 0 && state[j] == unvisited {
			state[j] = onPath
			path = append(path, j)
			j = parent[j]
		}

		if j >= 0 && state[j] == onPath {
			start := slices.Index(path, j)
			head := slices.Min(path[start:])
			parent[head] = -1
		}

		for _, k := range path {
			state[k] = done
		}
	}
}

func oldestFirst(a, b *Node) int {
	if c := a.Comment.CreatedAt.Compare(b.Comment.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.Comment.ID, b.Comment.ID)
}

func newestFirst(a, b *Node) int {
	return oldestFirst(b, a)
}

// Walk visits nodes depth first in display order. Returning false from fn skips
// that node's replies.
func Walk(nodes []*Node, fn func(*Node) bool) {
	stack := make([]*Node, 0, len(nodes))
	for i := len(nodes) - 1; i >= 0; i-- {
		stack = append(stack, nodes[i])
	}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(node) {
			continue
		}
		for i := len(node.Replies) - 1; i >= 0; i-- {
			stack = append(stack, node.Replies[i])
		}
	}
}

// Count returns the number of nodes in the forest.
func Count(nodes []*Node) int {
	total := 0
	Walk(nodes, func(*Node) bool {
		total++
		return true
	})
	return total
}

// IDs lists every post id in display order.
func IDs(nodes []*Node) []uint {
	ids := make([]uint, 0)
	Walk(nodes, func(n *Node) bool {
		ids = append(ids, n.Comment.ID)
		return true
	})
	return ids
}

// Find returns the node for id, or nil.
func Find(nodes []*Node, id uint) *Node {
	var found *Node
	Walk(nodes, func(n *Node) bool {
		if found != nil {
			return false
		}
		if n.Comment.ID == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Descendants counts every reply beneath n, at any depth.
func Descendants(n *Node) int {
	if n == nil {
		return 0
	}
	return Count(n.Replies)
}

// VisualDepth clamps depth for indentation.
func VisualDepth(depth int) int {
	return min(max(depth, 0), MaxVisualDepth)
}
